package boardguard

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrEthical07/boardguard/rbac"
	"github.com/google/uuid"
)

// AddMember makes userID a member of the resource holding roleIDs. Every
// role must belong to the resource.
func (e *Engine) AddMember(ctx context.Context, resourceID, userID string, roleIDs []string) (Member, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Member{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	actorID, res, err := e.authorizeByDomain(ctx, resourceID, OpAddBoardMember, OpAddProjectMember)
	if err != nil {
		return Member{}, err
	}
	operation := pickOp(res, OpAddBoardMember, OpAddProjectMember)

	roles, err := e.resolveRoles(ctx, res, roleIDs)
	if err != nil {
		e.rejectMutation(ctx, auditEventMemberAdded, operation, actorID, res, err)
		return Member{}, err
	}

	m := rbac.Member{
		ID:         uuid.NewString(),
		UserID:     userID,
		ResourceID: res.ID,
		Roles:      roles,
	}
	if err := e.repos.Members.AddMember(ctx, m); err != nil {
		e.emitAudit(ctx, auditEventMemberAdded, operation, actorID, res, err, memberMeta(m))
		return Member{}, err
	}

	e.metricInc(MetricMemberAdded)
	e.emitAudit(ctx, auditEventMemberAdded, operation, actorID, res, nil, memberMeta(m))
	return m, nil
}

// AssignRoles replaces the roles of an existing member. Positions are never
// touched.
func (e *Engine) AssignRoles(ctx context.Context, resourceID, userID string, roleIDs []string) (Member, error) {
	actorID, res, err := e.authorizeByDomain(ctx, resourceID, OpAssignBoardRoles, OpAssignProjectRoles)
	if err != nil {
		return Member{}, err
	}
	operation := pickOp(res, OpAssignBoardRoles, OpAssignProjectRoles)

	m, err := e.repos.Members.FindMember(ctx, res.ID, userID)
	if err != nil {
		e.emitAudit(ctx, auditEventMemberRoles, operation, actorID, res, err, nil)
		return Member{}, err
	}

	roles, err := e.resolveRoles(ctx, res, roleIDs)
	if err != nil {
		e.rejectMutation(ctx, auditEventMemberRoles, operation, actorID, res, err)
		return Member{}, err
	}

	m.Roles = roles
	if err := e.repos.Members.SaveMember(ctx, m); err != nil {
		e.emitAudit(ctx, auditEventMemberRoles, operation, actorID, res, err, memberMeta(m))
		return Member{}, err
	}

	e.emitAudit(ctx, auditEventMemberRoles, operation, actorID, res, nil, memberMeta(m))
	return m, nil
}

// RemoveMember deletes the user's member record on the resource.
func (e *Engine) RemoveMember(ctx context.Context, resourceID, userID string) error {
	actorID, res, err := e.authorizeByDomain(ctx, resourceID, OpRemoveBoardMember, OpRemoveProjectMember)
	if err != nil {
		return err
	}
	operation := pickOp(res, OpRemoveBoardMember, OpRemoveProjectMember)

	err = e.repos.Members.DeleteMember(ctx, res.ID, userID)
	e.emitAudit(ctx, auditEventMemberRemoved, operation, actorID, res, err, func() map[string]string {
		return map[string]string{"user_id": userID}
	})
	if err != nil {
		return err
	}
	e.metricInc(MetricMemberRemoved)
	return nil
}

// ListMembers returns the members of a board or project with their roles.
func (e *Engine) ListMembers(ctx context.Context, resourceID string) ([]Member, error) {
	_, res, err := e.authorizeByDomain(ctx, resourceID, OpViewBoard, OpViewProject)
	if err != nil {
		return nil, err
	}
	return e.repos.Members.ListMembers(ctx, res.ID)
}

// resolveRoles maps roleIDs to roles of res in the given order, dropping
// duplicates.
func (e *Engine) resolveRoles(ctx context.Context, res rbac.Resource, roleIDs []string) ([]Role, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}

	roles, _, err := e.repos.Roles.ListRoles(ctx, res.ID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Role, len(roles))
	for _, r := range roles {
		byID[r.ID] = r
	}

	out := make([]Role, 0, len(roleIDs))
	seen := make(map[string]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		r, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrRoleNotInResource, id)
		}
		out = append(out, r)
	}
	return out, nil
}

func memberMeta(m rbac.Member) func() map[string]string {
	return func() map[string]string {
		return map[string]string{
			"user_id": m.UserID,
			"roles":   strings.Join(m.RoleIDs(), ","),
		}
	}
}
