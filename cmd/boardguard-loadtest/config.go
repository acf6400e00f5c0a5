package main

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// settings holds the load test parameters. Environment variables set the
// defaults; command-line flags override them.
type settings struct {
	RedisAddr   string `env:"BOARDGUARD_REDIS_ADDR"`
	RedisPrefix string `env:"BOARDGUARD_REDIS_PREFIX" envDefault:"bgload"`
	Boards      int    `env:"BOARDGUARD_BOARDS"       envDefault:"200"`
	Steps       int    `env:"BOARDGUARD_STEPS"        envDefault:"8"`
	Members     int    `env:"BOARDGUARD_MEMBERS"      envDefault:"20"`
	Concurrency int    `env:"BOARDGUARD_CONCURRENCY"  envDefault:"64"`
	Ops         int    `env:"BOARDGUARD_OPS"          envDefault:"20000"`
	LogLevel    string `env:"BOARDGUARD_LOG_LEVEL"    envDefault:"info"`
	Audit       bool   `env:"BOARDGUARD_AUDIT"        envDefault:"false"`
}

func loadSettings() (settings, error) {
	var s settings
	if err := env.Parse(&s); err != nil {
		return settings{}, err
	}
	return s, nil
}

func (s settings) validate() error {
	if s.Boards <= 0 || s.Concurrency <= 0 || s.Ops <= 0 {
		return errors.New("boards, concurrency, and ops must be > 0")
	}
	if s.Steps < 2 {
		return errors.New("steps must be at least 2 so moves have a target")
	}
	if s.Members < 1 {
		return errors.New("members must be > 0")
	}
	if strings.TrimSpace(s.RedisPrefix) == "" {
		return errors.New("redis prefix must not be empty")
	}
	return nil
}

func (s settings) level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
