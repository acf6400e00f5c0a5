package boardguard

import (
	"errors"
	"io"
	"log/slog"

	internalaudit "github.com/MrEthical07/boardguard/internal/audit"
	"github.com/MrEthical07/boardguard/store"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. A Builder is single use.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	repos  Repositories

	operations OperationTable
	auditSink  AuditSink
	logger     *slog.Logger

	built bool
}

// New returns a Builder seeded with [DefaultConfig] and [DefaultOperations].
func New() *Builder {
	return &Builder{
		config:     defaultConfig(),
		operations: DefaultOperations(),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis backs every repository with the built-in Redis store, keyed under
// Config.Store.RedisPrefix. Repositories set with [Builder.WithRepositories]
// take precedence.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithRepositories sets the collaborators explicitly, for example a
// sqlstore.Store.
func (b *Builder) WithRepositories(repos Repositories) *Builder {
	b.repos = repos
	return b
}

// WithOperations replaces the operation table.
func (b *Builder) WithOperations(table OperationTable) *Builder {
	b.operations = table
	return b
}

// WithAuditSink sets the sink the audit dispatcher delivers to.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. The default discards.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled toggles counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the authorize latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and operation table and returns the
// engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	repos := b.repos
	if !repos.complete() && b.redis != nil {
		fallback := RepositoriesFrom(store.New(b.redis, cfg.Store.RedisPrefix))
		if repos.Resources == nil {
			repos.Resources = fallback.Resources
		}
		if repos.Members == nil {
			repos.Members = fallback.Members
		}
		if repos.Steps == nil {
			repos.Steps = fallback.Steps
		}
		if repos.Roles == nil {
			repos.Roles = fallback.Roles
		}
	}
	if !repos.complete() {
		return nil, errors.New("repositories required: call WithRedis or WithRepositories")
	}

	if len(b.operations) == 0 {
		return nil, errors.New("operations must be provided")
	}
	ops, err := compileOperations(b.operations)
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	engine := &Engine{
		config:     cfg,
		repos:      repos,
		operations: ops,
		logger:     logger,
		metrics:    NewMetrics(cfg.Metrics),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:      cfg.Audit.Enabled,
			BufferSize:   cfg.Audit.BufferSize,
			DropIfFull:   cfg.Audit.DropIfFull,
			KeepFailures: cfg.Audit.KeepFailures,
		}, b.auditSink),
		now: defaultNow,
	}

	b.built = true

	return engine, nil
}
