package boardguard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MrEthical07/boardguard/ordering"
	"github.com/MrEthical07/boardguard/permission"
	"github.com/MrEthical07/boardguard/rbac"
	"github.com/google/uuid"
)

// CreateRole adds a role to a board or project at the next position.
func (e *Engine) CreateRole(ctx context.Context, resourceID string, in RoleInput) (Role, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}

	actorID, res, err := e.authorizeByDomain(ctx, resourceID, OpCreateBoardRole, OpCreateProjectRole)
	if err != nil {
		return Role{}, err
	}
	operation := pickOp(res, OpCreateBoardRole, OpCreateProjectRole)

	if err := e.validateRoleMasks(res.Domain, in.Granted, in.Denied); err != nil {
		e.rejectMutation(ctx, auditEventRoleCreated, operation, actorID, res, err)
		return Role{}, err
	}

	roles, version, err := e.repos.Roles.ListRoles(ctx, res.ID)
	if err != nil {
		return Role{}, err
	}
	if err := e.checkCapacity(len(roles)); err != nil {
		e.rejectMutation(ctx, auditEventRoleCreated, operation, actorID, res, err)
		return Role{}, err
	}

	items := rbac.RoleItems(roles)
	var repairs []ordering.Item
	if e.config.Ordering.RecompactOnCreate {
		fixed := ordering.Recompact(items)
		repairs = ordering.Changed(items, fixed)
		items = fixed
	}

	added := ordering.Append(items, ordering.Item{ID: uuid.NewString()})
	created := Role{
		Item:       added.Created,
		ResourceID: res.ID,
		Name:       name,
		Granted:    in.Granted,
		Denied:     in.Denied,
	}

	all, err := e.writeRoles(ctx, operation, auditEventRoleCreated, actorID, res,
		append(roles, created), version, mergeItems(repairs, added.Changed()), nil)
	if err != nil {
		return Role{}, err
	}

	e.metricInc(MetricRoleCreated)
	return findRole(all, created.ID, created), nil
}

// UpdateRole changes a role's name or masks and recompacts the role list.
func (e *Engine) UpdateRole(ctx context.Context, resourceID, roleID string, upd RoleUpdate) (Role, error) {
	actorID, res, err := e.authorizeByDomain(ctx, resourceID, OpUpdateBoardRole, OpUpdateProjectRole)
	if err != nil {
		return Role{}, err
	}
	operation := pickOp(res, OpUpdateBoardRole, OpUpdateProjectRole)

	roles, version, err := e.repos.Roles.ListRoles(ctx, res.ID)
	if err != nil {
		return Role{}, err
	}

	idx := -1
	for i := range roles {
		if roles[i].ID == roleID {
			idx = i
			break
		}
	}
	if idx < 0 {
		e.rejectMutation(ctx, auditEventRoleUpdated, operation, actorID, res, rbac.ErrRoleNotFound)
		return Role{}, rbac.ErrRoleNotFound
	}

	role := roles[idx]
	if upd.Name != nil {
		role.Name = strings.TrimSpace(*upd.Name)
		if role.Name == "" {
			err := fmt.Errorf("%w: role name is required", ErrInvalidInput)
			e.rejectMutation(ctx, auditEventRoleUpdated, operation, actorID, res, err)
			return Role{}, err
		}
	}
	if upd.Granted != nil {
		role.Granted = *upd.Granted
	}
	if upd.Denied != nil {
		role.Denied = *upd.Denied
	}
	if err := e.validateRoleMasks(res.Domain, role.Granted, role.Denied); err != nil {
		e.rejectMutation(ctx, auditEventRoleUpdated, operation, actorID, res, err)
		return Role{}, err
	}

	role.UpdatedAt = e.now()
	updated := append([]Role(nil), roles...)
	updated[idx] = role

	items := rbac.RoleItems(updated)
	fixed := ordering.Recompact(items)
	all, err := e.writeRoles(ctx, operation, auditEventRoleUpdated, actorID, res,
		updated, version, mergeItems([]ordering.Item{role.Item}, ordering.Changed(items, fixed)), nil)
	if err != nil {
		return Role{}, err
	}
	return findRole(all, role.ID, role), nil
}

// MoveRole swaps the role with the one holding position and returns the
// role list in order.
func (e *Engine) MoveRole(ctx context.Context, resourceID, roleID string, position int) ([]Role, error) {
	actorID, res, err := e.authorizeByDomain(ctx, resourceID, OpMoveBoardRole, OpMoveProjectRole)
	if err != nil {
		return nil, err
	}
	operation := pickOp(res, OpMoveBoardRole, OpMoveProjectRole)

	roles, version, err := e.repos.Roles.ListRoles(ctx, res.ID)
	if err != nil {
		return nil, err
	}

	swap, err := ordering.SwapMove(rbac.RoleItems(roles), roleID, position)
	if err != nil {
		if errors.Is(err, ordering.ErrItemNotFound) {
			err = rbac.ErrRoleNotFound
		}
		e.rejectMutation(ctx, auditEventRoleMoved, operation, actorID, res, err)
		return nil, err
	}
	writes := swap.Changed()
	if len(writes) == 0 {
		return sortRoles(roles), nil
	}

	out, err := e.writeRoles(ctx, operation, auditEventRoleMoved, actorID, res, roles, version, writes, nil)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricReorderSuccess)
	return out, nil
}

// DeleteRole removes a role and closes the gap it leaves. Members that held
// the role stop receiving its flags at once: loaded members only carry roles
// that still exist.
func (e *Engine) DeleteRole(ctx context.Context, resourceID, roleID string) error {
	actorID, res, err := e.authorizeByDomain(ctx, resourceID, OpDeleteBoardRole, OpDeleteProjectRole)
	if err != nil {
		return err
	}
	operation := pickOp(res, OpDeleteBoardRole, OpDeleteProjectRole)

	roles, version, err := e.repos.Roles.ListRoles(ctx, res.ID)
	if err != nil {
		return err
	}

	items := rbac.RoleItems(roles)
	_, rest, err := ordering.Remove(items, roleID)
	if err != nil {
		if errors.Is(err, ordering.ErrItemNotFound) {
			err = rbac.ErrRoleNotFound
		}
		e.rejectMutation(ctx, auditEventRoleDeleted, operation, actorID, res, err)
		return err
	}

	if _, err := e.writeRoles(ctx, operation, auditEventRoleDeleted, actorID, res,
		withoutRole(roles, roleID), version, ordering.Changed(items, rest), []string{roleID}); err != nil {
		return err
	}
	e.metricInc(MetricRoleDeleted)
	return nil
}

// ListRoles returns the roles of a board or project ordered by position.
func (e *Engine) ListRoles(ctx context.Context, resourceID string) ([]Role, error) {
	_, res, err := e.authorizeByDomain(ctx, resourceID, OpListBoardRoles, OpListProjectRoles)
	if err != nil {
		return nil, err
	}
	roles, _, err := e.repos.Roles.ListRoles(ctx, res.ID)
	if err != nil {
		return nil, err
	}
	return sortRoles(roles), nil
}

func (e *Engine) validateRoleMasks(domain permission.Domain, granted, denied permission.Mask) error {
	policy, ok := permission.Lookup(domain)
	if !ok {
		return fmt.Errorf("%w: unknown domain %q", ErrInvalidPermissionMask, domain)
	}
	return policy.ValidateRole(granted, denied, permission.RoleRules{
		AllowEmptyDenied: e.config.Permission.AllowEmptyDenied,
		RejectOverlap:    e.config.Permission.RejectGrantDenyOverlap,
	})
}

func (e *Engine) writeRoles(
	ctx context.Context,
	operation string,
	event string,
	actorID string,
	res rbac.Resource,
	roles []Role,
	version uint64,
	writes []ordering.Item,
	deletes []string,
) ([]Role, error) {
	writes = ordering.Stamp(append([]ordering.Item(nil), writes...), e.now())
	upserts := changedRoles(roles, writes)

	if err := keepsDense(rbac.RoleItems(roles), writes); err != nil {
		e.rejectMutation(ctx, event, operation, actorID, res, err)
		return nil, err
	}

	if _, err := e.repos.Roles.PersistRoles(ctx, res.ID, version, upserts, deletes); err != nil {
		e.rejectMutation(ctx, event, operation, actorID, res, err)
		return nil, err
	}

	e.emitAudit(ctx, event, operation, actorID, res, nil, func() map[string]string {
		meta := map[string]string{"written": strconv.Itoa(len(upserts))}
		if len(deletes) > 0 {
			meta["deleted"] = strings.Join(deletes, ",")
		}
		for _, r := range upserts {
			meta["role."+r.ID] = strconv.Itoa(r.Position)
		}
		return meta
	})

	return sortRoles(rbac.ApplyRoles(roles, writes)), nil
}

func pickOp(res rbac.Resource, boardOp, projectOp string) string {
	if res.Domain == permission.DomainProject {
		return projectOp
	}
	return boardOp
}

func findRole(roles []Role, id string, fallback Role) Role {
	for _, r := range roles {
		if r.ID == id {
			return r
		}
	}
	return fallback
}
