package boardguard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	internalaudit "github.com/MrEthical07/boardguard/internal/audit"
	"github.com/MrEthical07/boardguard/permission"
	"github.com/MrEthical07/boardguard/rbac"
)

// Engine authorizes operations on boards and projects and runs the
// reordering services for steps and roles.
//
// An Engine is immutable after [Builder.Build] and safe for concurrent use.
type Engine struct {
	config     Config
	repos      Repositories
	operations map[string]compiledOperation
	logger     *slog.Logger
	metrics    *Metrics
	audit      *internalaudit.Dispatcher
	now        func() time.Time
}

func defaultNow() time.Time {
	return time.Now().UTC()
}

// Close drains the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped because the buffer
// was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditDroppedFailures returns how many dropped audit events recorded a
// denial or a rejected mutation.
func (e *Engine) AuditDroppedFailures() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.DroppedFailures()
}

// MetricsSnapshot copies the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return defaultConfig()
	}
	return cloneConfig(e.config)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// ValidateMask reports whether mask is a valid non-zero mask of domain.
func (e *Engine) ValidateMask(domain permission.Domain, mask permission.Mask) bool {
	policy, ok := permission.Lookup(domain)
	if !ok {
		return false
	}
	return policy.IsValid(mask)
}

// Authorize decides whether actorID may act with required on resourceID.
// The returned error is the denial reason, nil when allowed.
func (e *Engine) Authorize(ctx context.Context, actorID, resourceID string, required permission.Mask) (Decision, error) {
	if e == nil || !e.repos.complete() {
		return Decision{Reason: ErrEngineNotReady}, ErrEngineNotReady
	}
	if actorID == "" {
		return Decision{Reason: ErrActorMissing}, ErrActorMissing
	}

	start := time.Now()
	defer e.observeLatency(start)

	res, err := e.loadResource(ctx, resourceID)
	if err != nil {
		return Decision{Reason: err}, err
	}

	d, err := e.evaluate(ctx, actorID, res, required)
	if err != nil {
		return Decision{Reason: err}, err
	}
	e.recordDecision(ctx, "", actorID, res, d)
	return d, d.Err()
}

// Guard runs the authorization guard for operation. The resource ID is read
// from args under the operation's ResourceArg, at any depth; the actor is
// read from ctx. Exempt operations are allowed without any lookup.
//
// The returned error is nil when allowed, the denial reason when denied,
// or a lookup failure.
func (e *Engine) Guard(ctx context.Context, operation string, args map[string]any) (Decision, error) {
	if e == nil || !e.repos.complete() {
		return Decision{Reason: ErrEngineNotReady}, ErrEngineNotReady
	}

	op, err := e.operation(operation)
	if err != nil {
		return Decision{Reason: err}, err
	}
	if op.ExcludedFromGuard {
		e.metricInc(MetricAuthorizeExempt)
		return Decision{Allowed: true, Exempt: true}, nil
	}

	resourceID, err := ResourceIDFromArgs(args, op.ResourceArg)
	if err != nil {
		return Decision{Reason: err}, err
	}

	_, _, d, err := e.guard(ctx, op, resourceID)
	if err != nil {
		return Decision{Reason: err}, err
	}
	return d, d.Err()
}

// Require is [Engine.Guard] reduced to its error.
func (e *Engine) Require(ctx context.Context, operation string, args map[string]any) error {
	_, err := e.Guard(ctx, operation, args)
	return err
}

func (e *Engine) operation(name string) (compiledOperation, error) {
	op, ok := e.operations[name]
	if !ok {
		e.metricInc(MetricUnknownOperation)
		return compiledOperation{}, fmt.Errorf("%w: %s", ErrUnknownOperation, name)
	}
	return op, nil
}

// guard loads the actor and resource for op and decides. A non-nil error is
// a lookup failure; denials are reported through the decision only.
func (e *Engine) guard(ctx context.Context, op compiledOperation, resourceID string) (string, rbac.Resource, Decision, error) {
	actorID, ok := ActorFromContext(ctx)
	if !ok {
		return "", rbac.Resource{}, Decision{}, ErrActorMissing
	}

	start := time.Now()
	defer e.observeLatency(start)

	res, err := e.loadResource(ctx, resourceID)
	if err != nil {
		return actorID, rbac.Resource{}, Decision{}, err
	}

	d, err := e.decide(ctx, op, actorID, res)
	return actorID, res, d, err
}

func (e *Engine) decide(ctx context.Context, op compiledOperation, actorID string, res rbac.Resource) (Decision, error) {
	if res.Domain != op.Domain {
		e.metricInc(MetricResourceNotFound)
		return Decision{}, fmt.Errorf("%w: %s is not a %s", ErrResourceNotFound, res.ID, op.Domain)
	}

	d, err := e.evaluate(ctx, actorID, res, op.required)
	if err != nil {
		return Decision{}, err
	}
	e.recordDecision(ctx, op.name, actorID, res, d)
	return d, nil
}

// authorizeOp is the service-side guard: it returns the actor and the loaded
// resource when the operation is allowed, and the denial or lookup error
// otherwise. Exempt operations only require an actor.
func (e *Engine) authorizeOp(ctx context.Context, name, resourceID string) (string, rbac.Resource, error) {
	if e == nil || !e.repos.complete() {
		return "", rbac.Resource{}, ErrEngineNotReady
	}

	op, err := e.operation(name)
	if err != nil {
		return "", rbac.Resource{}, err
	}

	if op.ExcludedFromGuard {
		actorID, ok := ActorFromContext(ctx)
		if !ok {
			return "", rbac.Resource{}, ErrActorMissing
		}
		e.metricInc(MetricAuthorizeExempt)
		if resourceID == "" {
			return actorID, rbac.Resource{}, nil
		}
		res, err := e.loadResource(ctx, resourceID)
		return actorID, res, err
	}

	if resourceID == "" {
		return "", rbac.Resource{}, fmt.Errorf("%w: %s", ErrResourceArgumentMissing, op.ResourceArg)
	}

	actorID, res, d, err := e.guard(ctx, op, resourceID)
	if err != nil {
		return actorID, res, err
	}
	return actorID, res, d.Err()
}

// authorizeByDomain loads the resource first and authorizes boardOp or
// projectOp depending on its domain.
func (e *Engine) authorizeByDomain(ctx context.Context, resourceID, boardOp, projectOp string) (string, rbac.Resource, error) {
	if e == nil || !e.repos.complete() {
		return "", rbac.Resource{}, ErrEngineNotReady
	}
	actorID, ok := ActorFromContext(ctx)
	if !ok {
		return "", rbac.Resource{}, ErrActorMissing
	}
	if resourceID == "" {
		return "", rbac.Resource{}, fmt.Errorf("%w: resource id", ErrResourceArgumentMissing)
	}

	start := time.Now()
	defer e.observeLatency(start)

	res, err := e.loadResource(ctx, resourceID)
	if err != nil {
		return actorID, rbac.Resource{}, err
	}

	op, err := e.operation(pickOp(res, boardOp, projectOp))
	if err != nil {
		return actorID, res, err
	}
	if op.ExcludedFromGuard {
		e.metricInc(MetricAuthorizeExempt)
		return actorID, res, nil
	}

	d, err := e.decide(ctx, op, actorID, res)
	if err != nil {
		return actorID, res, err
	}
	return actorID, res, d.Err()
}

func (e *Engine) loadResource(ctx context.Context, id string) (rbac.Resource, error) {
	res, err := e.repos.Resources.FindResource(ctx, id)
	if err != nil {
		if errors.Is(err, rbac.ErrResourceNotFound) {
			e.metricInc(MetricResourceNotFound)
		}
		return rbac.Resource{}, err
	}
	return res, nil
}

// evaluate snapshots the actor's membership and the resource's role count
// and runs the authorizer over them.
func (e *Engine) evaluate(ctx context.Context, actorID string, res rbac.Resource, required permission.Mask) (Decision, error) {
	req := rbac.Request{
		ActorID:  actorID,
		Resource: res,
		Required: required,
	}

	if !res.OwnedBy(actorID) {
		m, err := e.repos.Members.FindMember(ctx, res.ID, actorID)
		switch {
		case err == nil:
			req.Member = &m
		case errors.Is(err, rbac.ErrMemberNotFound):
		default:
			return Decision{}, err
		}

		if req.Member != nil {
			count, err := e.repos.Members.CountRoles(ctx, res.ID)
			if err != nil {
				return Decision{}, err
			}
			req.RoleCount = count
		}
	}

	return rbac.Authorize(req), nil
}

func (e *Engine) recordDecision(ctx context.Context, operation, actorID string, res rbac.Resource, d Decision) {
	reason := d.Err()
	switch {
	case d.OwnerBypass:
		e.metricInc(MetricAuthorizeOwnerBypass)
	case d.Allowed:
		e.metricInc(MetricAuthorizeAllowed)
	case errors.Is(reason, rbac.ErrNotAMember):
		e.metricInc(MetricDeniedNotAMember)
	case errors.Is(reason, rbac.ErrNoRolesConfigured):
		e.metricInc(MetricDeniedNoRoles)
	default:
		e.metricInc(MetricDeniedInsufficient)
	}

	if !d.Allowed {
		e.logger.DebugContext(ctx, "authorization denied",
			slog.String("operation", operation),
			slog.String("actor_id", actorID),
			slog.String("resource_id", res.ID),
			slog.String("domain", string(res.Domain)),
			slog.String("reason", reason.Error()),
		)
	}

	e.emitAudit(ctx, auditEventAuthorize, operation, actorID, res, reason, func() map[string]string {
		meta := map[string]string{}
		if d.OwnerBypass {
			meta["owner_bypass"] = "true"
		}
		if d.Missing != 0 {
			if policy, ok := permission.Lookup(res.Domain); ok {
				meta["missing"] = strings.Join(policy.Names(d.Missing), ",")
			}
		}
		return meta
	})
}

func (e *Engine) observeLatency(start time.Time) {
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricAuthorizeLatency, time.Since(start))
	}
}

