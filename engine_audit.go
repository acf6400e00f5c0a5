package boardguard

import (
	"context"
	"errors"

	"github.com/MrEthical07/boardguard/rbac"
	"github.com/google/uuid"
)

const (
	auditEventAuthorize       = "authorize"
	auditEventResourceCreated = "resource_created"
	auditEventStepCreated     = "step_created"
	auditEventStepMoved       = "step_moved"
	auditEventStepPinned      = "step_pinned"
	auditEventStepDeleted     = "step_deleted"
	auditEventRoleCreated     = "role_created"
	auditEventRoleUpdated     = "role_updated"
	auditEventRoleMoved       = "role_moved"
	auditEventRoleDeleted     = "role_deleted"
	auditEventMemberAdded     = "member_added"
	auditEventMemberRoles     = "member_roles_assigned"
	auditEventMemberRemoved   = "member_removed"
)

// AuditErrorCode is the stable error string carried by audit events.
type AuditErrorCode string

const (
	auditErrNotAMember        AuditErrorCode = "not_a_member"
	auditErrNoRoles           AuditErrorCode = "no_roles_configured"
	auditErrInsufficient      AuditErrorCode = "insufficient_permissions"
	auditErrResourceNotFound  AuditErrorCode = "resource_not_found"
	auditErrNotFound          AuditErrorCode = "not_found"
	auditErrInvalidMask       AuditErrorCode = "invalid_mask"
	auditErrInvalidMove       AuditErrorCode = "invalid_move"
	auditErrPinned            AuditErrorCode = "pinned_step"
	auditErrConflict          AuditErrorCode = "concurrent_modification"
	auditErrCollectionFull    AuditErrorCode = "collection_full"
	auditErrDuplicate         AuditErrorCode = "duplicate"
	auditErrRoleNotInResource AuditErrorCode = "role_not_in_resource"
	auditErrInvalidInput      AuditErrorCode = "invalid_input"
	auditErrUnavailable       AuditErrorCode = "backend_unavailable"
	auditErrInternal          AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	operation string,
	actorID string,
	res rbac.Resource,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}
	if ip := clientIPFromContext(ctx); ip != "" {
		if metadata == nil {
			metadata = map[string]string{}
		}
		metadata["ip"] = ip
	}
	if len(metadata) == 0 {
		metadata = nil
	}

	event := AuditEvent{
		ID:         uuid.NewString(),
		Timestamp:  e.now(),
		EventType:  eventType,
		Operation:  operation,
		ActorID:    actorID,
		ResourceID: res.ID,
		Domain:     string(res.Domain),
		Success:    err == nil,
	}
	event.Metadata = metadata
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrNotAMember):
		return auditErrNotAMember
	case errors.Is(err, ErrNoRolesConfigured):
		return auditErrNoRoles
	case errors.Is(err, ErrInsufficientPermissions):
		return auditErrInsufficient
	case errors.Is(err, ErrResourceNotFound):
		return auditErrResourceNotFound
	case errors.Is(err, ErrItemNotFound),
		errors.Is(err, ErrRoleNotFound),
		errors.Is(err, ErrMemberNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrInvalidPermissionMask),
		errors.Is(err, ErrPermissionOverlap):
		return auditErrInvalidMask
	case errors.Is(err, ErrTargetPositionNotFound),
		errors.Is(err, ErrSingleItemCollection),
		errors.Is(err, ErrNoOtherSteps),
		errors.Is(err, ErrNotDense):
		return auditErrInvalidMove
	case errors.Is(err, ErrCannotDisplacePinnedStep):
		return auditErrPinned
	case errors.Is(err, ErrConcurrentModification):
		return auditErrConflict
	case errors.Is(err, ErrCollectionFull):
		return auditErrCollectionFull
	case errors.Is(err, ErrAlreadyMember),
		errors.Is(err, ErrAlreadyExists):
		return auditErrDuplicate
	case errors.Is(err, ErrRoleNotInResource):
		return auditErrRoleNotInResource
	case errors.Is(err, ErrInvalidInput):
		return auditErrInvalidInput
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
