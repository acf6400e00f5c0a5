// Command boardguard-loadtest seeds boards, roles, members and steps and
// then drives concurrent authorize, move and pin phases against one engine,
// reporting latency percentiles, version conflicts and any board whose step
// positions are no longer dense.
//
// With no Redis address configured it runs against an in-process miniredis.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrEthical07/boardguard"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("load test failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	s, err := loadSettings()
	if err != nil {
		slog.Error("invalid environment", "error", err)
		os.Exit(2)
	}

	cmd := &cobra.Command{
		Use:           "boardguard-loadtest",
		Short:         "Load test the boardguard authorization guard and ordering engine",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), s)
		},
	}

	f := cmd.Flags()
	f.StringVar(&s.RedisAddr, "redis-addr", s.RedisAddr, "redis address; empty uses miniredis")
	f.StringVar(&s.RedisPrefix, "prefix", s.RedisPrefix, "redis key prefix")
	f.IntVar(&s.Boards, "boards", s.Boards, "number of boards to seed")
	f.IntVar(&s.Steps, "steps", s.Steps, "steps per board")
	f.IntVar(&s.Members, "members", s.Members, "members per board")
	f.IntVar(&s.Concurrency, "concurrency", s.Concurrency, "number of concurrent workers")
	f.IntVar(&s.Ops, "ops", s.Ops, "operations per phase")
	f.StringVar(&s.LogLevel, "log-level", s.LogLevel, "debug, info, warn or error")
	f.BoolVar(&s.Audit, "audit", s.Audit, "enable the audit dispatcher with a discarding sink")

	return cmd
}

func run(ctx context.Context, s settings) error {
	if err := s.validate(); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: s.level()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	client, cleanup, err := connect(s.RedisAddr, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := boardguard.DefaultConfig()
	cfg.Store.RedisPrefix = s.RedisPrefix
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	cfg.Audit.Enabled = s.Audit
	cfg.Audit.DropIfFull = true

	engine, err := boardguard.New().
		WithConfig(cfg).
		WithRedis(client).
		WithAuditSink(boardguard.NoOpSink{}).
		WithLogger(logger).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	fixture, err := seed(ctx, engine, s, logger)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	results := []phaseResult{
		runPhase(ctx, "authorize", s, fixture.authorize(engine)),
		runPhase(ctx, "move", s, fixture.move(engine)),
		runPhase(ctx, "pin", s, fixture.pin(engine)),
	}

	broken, err := fixture.verify(ctx, engine)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	fmt.Println("---- results ----")
	for _, r := range results {
		fmt.Println(r.String())
	}
	snap := engine.MetricsSnapshot()
	fmt.Printf("engine: reorder_success=%d reorder_conflict=%d reorder_rejected=%d audit_dropped=%d\n",
		snap.Counters[boardguard.MetricReorderSuccess],
		snap.Counters[boardguard.MetricReorderConflict],
		snap.Counters[boardguard.MetricReorderRejected],
		engine.AuditDropped(),
	)
	if broken > 0 {
		return fmt.Errorf("%d boards lost dense step positions", broken)
	}
	fmt.Printf("verified %d boards: positions dense, one finish step at most\n", len(fixture.boards))
	return nil
}

func connect(addr string, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		logger.Info("using miniredis", "addr", mr.Addr())
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	logger.Info("using redis", "addr", addr)
	return client, func() { _ = client.Close() }, nil
}
