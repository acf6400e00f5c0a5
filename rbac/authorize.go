package rbac

import "github.com/MrEthical07/boardguard/permission"

// Request is the snapshot one authorization decision runs over.
type Request struct {
	ActorID  string
	Resource Resource
	// Member is the actor's member record on Resource, nil when none exists.
	Member *Member
	// RoleCount is the number of roles Resource defines.
	RoleCount int
	Required  permission.Mask
}

// Decision is the outcome of [Authorize].
type Decision struct {
	Allowed     bool
	OwnerBypass bool
	// Exempt is set by callers that skip the authorizer for an operation.
	Exempt bool
	// Reason is nil when Allowed, otherwise one of the package sentinels or
	// an error wrapping one.
	Reason    error
	Effective permission.Mask
	Missing   permission.Mask
}

// Err returns nil for an allowed decision and the denial reason otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	if d.Reason == nil {
		return ErrInsufficientPermissions
	}
	return d.Reason
}

// Authorize decides req. It never performs I/O.
func Authorize(req Request) Decision {
	if req.Resource.OwnedBy(req.ActorID) {
		return Decision{Allowed: true, OwnerBypass: true}
	}

	if req.Member == nil || req.Member.ResourceID != req.Resource.ID {
		return Decision{Reason: ErrNotAMember}
	}

	if req.RoleCount == 0 {
		return Decision{Reason: ErrNoRolesConfigured}
	}

	effective := req.Member.EffectiveMask()
	if effective.Has(req.Required) {
		return Decision{Allowed: true, Effective: effective}
	}

	missing := effective.Missing(req.Required)
	reason := &InsufficientPermissionsError{Domain: req.Resource.Domain}
	if policy, ok := permission.Lookup(req.Resource.Domain); ok {
		reason.Missing = policy.Names(missing)
	}

	return Decision{
		Effective: effective,
		Missing:   missing,
		Reason:    reason,
	}
}
