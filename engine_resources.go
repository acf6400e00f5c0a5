package boardguard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrEthical07/boardguard/permission"
	"github.com/MrEthical07/boardguard/rbac"
	"github.com/google/uuid"
)

// CreateProject creates a project owned by the actor in ctx.
func (e *Engine) CreateProject(ctx context.Context, name string) (Resource, error) {
	actorID, _, err := e.authorizeOp(ctx, OpCreateProject, "")
	if err != nil {
		return Resource{}, err
	}

	return e.createResource(ctx, OpCreateProject, rbac.Resource{
		ID:      uuid.NewString(),
		Domain:  permission.DomainProject,
		OwnerID: actorID,
		Name:    strings.TrimSpace(name),
	})
}

// CreateBoard creates a board owned by the actor in ctx. A non-empty
// projectID links the board to that project and requires the project's
// create_board flag.
func (e *Engine) CreateBoard(ctx context.Context, projectID, name string) (Resource, error) {
	actorID, _, err := e.authorizeOp(ctx, OpCreateBoard, "")
	if err != nil {
		return Resource{}, err
	}

	if projectID != "" {
		if _, _, err := e.authorizeOp(ctx, OpAddBoardToProject, projectID); err != nil {
			return Resource{}, err
		}
	}

	return e.createResource(ctx, OpCreateBoard, rbac.Resource{
		ID:        uuid.NewString(),
		Domain:    permission.DomainBoard,
		OwnerID:   actorID,
		Name:      strings.TrimSpace(name),
		ProjectID: projectID,
	})
}

func (e *Engine) createResource(ctx context.Context, operation string, res rbac.Resource) (Resource, error) {
	if res.Name == "" {
		return Resource{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	if err := e.repos.Resources.CreateResource(ctx, res); err != nil {
		e.emitAudit(ctx, auditEventResourceCreated, operation, res.OwnerID, res, err, nil)
		return Resource{}, err
	}

	e.metricInc(MetricResourceCreated)
	e.emitAudit(ctx, auditEventResourceCreated, operation, res.OwnerID, res, nil, func() map[string]string {
		if res.ProjectID == "" {
			return nil
		}
		return map[string]string{"project_id": res.ProjectID}
	})
	e.logger.InfoContext(ctx, "resource created",
		slog.String("resource_id", res.ID),
		slog.String("domain", string(res.Domain)),
		slog.String("owner_id", res.OwnerID),
	)
	return res, nil
}

// GetResource returns a board or project the actor may view.
func (e *Engine) GetResource(ctx context.Context, resourceID string) (Resource, error) {
	_, res, err := e.authorizeByDomain(ctx, resourceID, OpViewBoard, OpViewProject)
	if err != nil {
		return Resource{}, err
	}
	return res, nil
}
