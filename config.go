package boardguard

import (
	"errors"
	"strings"
)

// Config holds every tunable of an [Engine]. Obtain one with
// [DefaultConfig], adjust it, and pass it to [Builder.WithConfig].
type Config struct {
	Permission PermissionConfig
	Ordering   OrderingConfig
	Store      StoreConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
PERMISSION CONFIG
====================================
*/

// PermissionConfig controls role mask validation.
type PermissionConfig struct {
	// RejectGrantDenyOverlap rejects roles that grant and deny the same flag.
	// When false the overlap is stored and denial wins at evaluation time.
	RejectGrantDenyOverlap bool
	// AllowEmptyDenied accepts roles whose denied mask is zero. When false a
	// role must deny at least one flag of its domain.
	AllowEmptyDenied bool
}

/*
====================================
ORDERING CONFIG
====================================
*/

// OrderingConfig controls positioned collections (steps and roles).
type OrderingConfig struct {
	// RecompactOnCreate recompacts the current collection before appending a
	// new item and persists any corrected positions in the same write.
	RecompactOnCreate bool
	// MaxItems caps the size of one collection. Zero means unlimited.
	MaxItems int
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig configures the built-in Redis repositories used by
// [Builder.WithRedis].
type StoreConfig struct {
	RedisPrefix string
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// KeepFailures never drops denials or rejected mutations, even with
	// DropIfFull set.
	KeepFailures bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration [New] starts from.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Permission: PermissionConfig{
			RejectGrantDenyOverlap: false,
			AllowEmptyDenied:       false,
		},
		Ordering: OrderingConfig{
			RecompactOnCreate: true,
			MaxItems:          256,
		},
		Store: StoreConfig{
			RedisPrefix: "bg",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize:   1024,
			DropIfFull:   true,
			KeepFailures: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting in c.
func (c *Config) Validate() error {
	if c.Ordering.MaxItems < 0 {
		return errors.New("Ordering MaxItems must be >= 0")
	}
	if c.Ordering.MaxItems == 1 {
		return errors.New("Ordering MaxItems must allow at least two items")
	}

	if strings.TrimSpace(c.Store.RedisPrefix) == "" {
		return errors.New("Store RedisPrefix must not be empty")
	}
	if strings.ContainsAny(c.Store.RedisPrefix, " \t\r\n") {
		return errors.New("Store RedisPrefix must not contain whitespace")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}

// LintWarning is a setting that is valid but likely unintended.
type LintWarning struct {
	Code    string
	Message string
}

// LintResult is the list of warnings produced by [Config.Lint].
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, len(r))
	for i, w := range r {
		out[i] = w.Code
	}
	return out
}

// Lint reports settings that pass [Config.Validate] but weaken consistency
// guarantees or observability.
func (c Config) Lint() LintResult {
	var out LintResult

	if !c.Ordering.RecompactOnCreate {
		out = append(out, LintWarning{
			Code:    "create_trusts_positions",
			Message: "create appends at count+1 without repairing gaps left by earlier writes",
		})
	}
	if c.Ordering.MaxItems == 0 {
		out = append(out, LintWarning{
			Code:    "unbounded_collections",
			Message: "collections have no size cap; every reorder reads the whole collection",
		})
	}
	if !c.Permission.RejectGrantDenyOverlap {
		out = append(out, LintWarning{
			Code:    "grant_deny_overlap_allowed",
			Message: "roles may grant and deny the same flag; denial wins",
		})
	}
	if c.Permission.AllowEmptyDenied {
		out = append(out, LintWarning{
			Code:    "empty_denied_allowed",
			Message: "roles may be stored with an empty denied mask",
		})
	}
	if !c.Audit.Enabled {
		out = append(out, LintWarning{
			Code:    "audit_disabled",
			Message: "authorization decisions and reorders are not audited",
		})
	} else if c.Audit.DropIfFull {
		msg := "audit events are dropped when the buffer is full"
		if !c.Audit.KeepFailures {
			msg = "audit events, denials included, are dropped when the buffer is full"
		}
		out = append(out, LintWarning{
			Code:    "audit_may_drop",
			Message: msg,
		})
	}

	return out
}
