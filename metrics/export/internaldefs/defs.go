package internaldefs

import (
	"github.com/MrEthical07/boardguard"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   boardguard.MetricID
	Name string
	Help string
}

// DecisionDef binds one outcome of the decision family to its counter.
type DecisionDef struct {
	ID      boardguard.MetricID
	Outcome string
}

// HistogramDef binds an engine histogram to its exported name.
type HistogramDef struct {
	ID   boardguard.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter.
var CounterDefs = []CounterDef{
	{ID: boardguard.MetricUnknownOperation, Name: "boardguard_unknown_operation_total", Help: "Guard calls for undeclared operations."},
	{ID: boardguard.MetricReorderSuccess, Name: "boardguard_reorder_success_total", Help: "Persisted position changes."},
	{ID: boardguard.MetricReorderRejected, Name: "boardguard_reorder_rejected_total", Help: "Reorders refused by a precondition."},
	{ID: boardguard.MetricReorderConflict, Name: "boardguard_reorder_conflict_total", Help: "Writes lost to a concurrent modification."},
	{ID: boardguard.MetricInvalidMask, Name: "boardguard_invalid_mask_total", Help: "Role writes rejected for invalid masks."},
	{ID: boardguard.MetricStepCreated, Name: "boardguard_step_created_total", Help: "Created board steps."},
	{ID: boardguard.MetricStepDeleted, Name: "boardguard_step_deleted_total", Help: "Deleted board steps."},
	{ID: boardguard.MetricRoleCreated, Name: "boardguard_role_created_total", Help: "Created roles."},
	{ID: boardguard.MetricRoleDeleted, Name: "boardguard_role_deleted_total", Help: "Deleted roles."},
	{ID: boardguard.MetricMemberAdded, Name: "boardguard_member_added_total", Help: "Added members."},
	{ID: boardguard.MetricMemberRemoved, Name: "boardguard_member_removed_total", Help: "Removed members."},
	{ID: boardguard.MetricResourceCreated, Name: "boardguard_resource_created_total", Help: "Created boards and projects."},
}

// DecisionFamily is the labeled counter family every guard outcome is
// exported under, one series per outcome.
const (
	DecisionFamily     = "boardguard_authorize_decisions_total"
	DecisionFamilyHelp = "Authorization decisions by outcome."
	DecisionLabel      = "outcome"
)

// DecisionDefs maps each outcome label to its engine counter.
var DecisionDefs = []DecisionDef{
	{ID: boardguard.MetricAuthorizeAllowed, Outcome: "allowed"},
	{ID: boardguard.MetricAuthorizeOwnerBypass, Outcome: "owner_bypass"},
	{ID: boardguard.MetricAuthorizeExempt, Outcome: "exempt"},
	{ID: boardguard.MetricDeniedNotAMember, Outcome: "not_a_member"},
	{ID: boardguard.MetricDeniedNoRoles, Outcome: "no_roles_configured"},
	{ID: boardguard.MetricDeniedInsufficient, Outcome: "insufficient_permissions"},
	{ID: boardguard.MetricResourceNotFound, Outcome: "resource_not_found"},
}

// AuditDroppedName is the counter for events the audit dispatcher dropped.
const (
	AuditDroppedName = "boardguard_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: boardguard.MetricAuthorizeLatency, Name: "boardguard_authorize_latency_seconds", Help: "Authorization latency histogram."},
}

// HistogramBounds are the upper bounds of the engine's latency buckets, in seconds.
var HistogramBounds = []string{
	"0.001",
	"0.0025",
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"+Inf",
}

// HistogramBoundSuffix names each bucket in OTel instrument names.
var HistogramBoundSuffix = []string{
	"0_001",
	"0_0025",
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size bucket array, zero-filling
// missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
