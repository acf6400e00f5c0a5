package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MrEthical07/boardguard"
)

func TestPercentile(t *testing.T) {
	samples := make([]time.Duration, 100)
	for i := range samples {
		samples[i] = time.Duration(i+1) * time.Millisecond
	}
	if got := percentile(samples, 50); got != 50*time.Millisecond {
		t.Fatalf("p50 = %s", got)
	}
	if got := percentile(samples, 100); got != 100*time.Millisecond {
		t.Fatalf("p100 = %s", got)
	}
	if got := percentile(nil, 99); got != 0 {
		t.Fatalf("empty percentile = %s", got)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want outcome
	}{
		{nil, outcomeOK},
		{fmt.Errorf("wrap: %w", boardguard.ErrConcurrentModification), outcomeConflict},
		{boardguard.ErrNotAMember, outcomeRejected},
		{boardguard.ErrCannotDisplacePinnedStep, outcomeRejected},
		{errors.New("dial tcp: refused"), outcomeFailure},
	}
	for _, tt := range tests {
		if got := classify(tt.err); got != tt.want {
			t.Fatalf("classify(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestLoadSettingsFromEnv(t *testing.T) {
	t.Setenv("BOARDGUARD_BOARDS", "3")
	t.Setenv("BOARDGUARD_LOG_LEVEL", "debug")

	s, err := loadSettings()
	if err != nil {
		t.Fatalf("loadSettings failed: %v", err)
	}
	if s.Boards != 3 || s.Steps != 8 || s.RedisPrefix != "bgload" {
		t.Fatalf("unexpected settings: %+v", s)
	}
	if s.level().String() != "DEBUG" {
		t.Fatalf("expected debug level, got %s", s.level())
	}

	s.Steps = 1
	if err := s.validate(); err == nil {
		t.Fatal("expected one step per board to be rejected")
	}
}

func TestRunSmallLoadAgainstMiniredis(t *testing.T) {
	s := settings{
		RedisPrefix: "bgloadtest",
		Boards:      3,
		Steps:       4,
		Members:     2,
		Concurrency: 4,
		Ops:         60,
		LogLevel:    "error",
	}
	if err := run(context.Background(), s); err != nil {
		t.Fatalf("run failed: %v", err)
	}
}
