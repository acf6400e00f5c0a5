package boardguard

import (
	"errors"

	"github.com/MrEthical07/boardguard/ordering"
	"github.com/MrEthical07/boardguard/permission"
	"github.com/MrEthical07/boardguard/rbac"
	"github.com/MrEthical07/boardguard/store"
)

var (
	// ErrEngineNotReady is returned by methods called on a nil or unbuilt engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrActorMissing is returned when the request context carries no actor.
	ErrActorMissing = errors.New("actor missing from context")
	// ErrUnknownOperation is returned for operations absent from the operation table.
	ErrUnknownOperation = errors.New("unknown operation")
	// ErrInvalidOperation is returned by Build when an operation declares a flag its domain does not define.
	ErrInvalidOperation = errors.New("invalid operation declaration")
	// ErrResourceArgumentMissing is returned when the operation's resource argument is absent or not a string.
	ErrResourceArgumentMissing = errors.New("resource argument missing")
	// ErrInvalidInput is returned for blank names and similar malformed service input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrCollectionFull is returned when a create would exceed Ordering.MaxItems.
	ErrCollectionFull = errors.New("collection is full")
)

// Re-exported so callers can match every failure against this package.
var (
	ErrInvalidPermissionMask = permission.ErrInvalidPermissionMask
	ErrPermissionOverlap     = permission.ErrPermissionOverlap
	ErrUnknownFlag           = permission.ErrUnknownFlag

	ErrNotAMember              = rbac.ErrNotAMember
	ErrNoRolesConfigured       = rbac.ErrNoRolesConfigured
	ErrInsufficientPermissions = rbac.ErrInsufficientPermissions
	ErrResourceNotFound        = rbac.ErrResourceNotFound
	ErrMemberNotFound          = rbac.ErrMemberNotFound
	ErrRoleNotFound            = rbac.ErrRoleNotFound
	ErrRoleNotInResource       = rbac.ErrRoleNotInResource
	ErrAlreadyMember           = rbac.ErrAlreadyMember

	ErrItemNotFound             = ordering.ErrItemNotFound
	ErrTargetPositionNotFound   = ordering.ErrTargetPositionNotFound
	ErrSingleItemCollection     = ordering.ErrSingleItemCollection
	ErrNoOtherSteps             = ordering.ErrNoOtherSteps
	ErrCannotDisplacePinnedStep = ordering.ErrCannotDisplacePinnedStep
	ErrNotDense                 = ordering.ErrNotDense
	ErrConcurrentModification   = ordering.ErrConcurrentModification

	ErrStoreUnavailable = store.ErrUnavailable
	ErrAlreadyExists    = store.ErrAlreadyExists
)
