package boardguard

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/MrEthical07/boardguard/ordering"
	"github.com/MrEthical07/boardguard/rbac"
	"github.com/google/uuid"
)

// CreateStep appends a step to the board. When the board has a finish step,
// the new step takes its slot and the finish step moves to the new last
// position.
func (e *Engine) CreateStep(ctx context.Context, boardID, name string) (Step, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Step{}, fmt.Errorf("%w: step name is required", ErrInvalidInput)
	}

	actorID, res, err := e.authorizeOp(ctx, OpCreateStep, boardID)
	if err != nil {
		return Step{}, err
	}

	steps, version, err := e.repos.Steps.ListSteps(ctx, boardID)
	if err != nil {
		return Step{}, err
	}
	if err := e.checkCapacity(len(steps)); err != nil {
		e.rejectMutation(ctx, auditEventStepCreated, OpCreateStep, actorID, res, err)
		return Step{}, err
	}

	items := ordering.StepItems(steps)
	var repairs []ordering.Item
	if e.config.Ordering.RecompactOnCreate {
		fixed := ordering.Recompact(items)
		repairs = ordering.Changed(items, fixed)
		items = fixed
	}

	added := ordering.Append(items, ordering.Item{ID: uuid.NewString()})
	created := Step{Item: added.Created, BoardID: boardID, Name: name}

	all, err := e.writeSteps(ctx, OpCreateStep, auditEventStepCreated, actorID, res,
		append(steps, created), version, mergeItems(repairs, added.Changed()), nil)
	if err != nil {
		return Step{}, err
	}

	e.metricInc(MetricStepCreated)
	for _, s := range all {
		if s.ID == created.ID {
			return s, nil
		}
	}
	return created, nil
}

// MoveStep swaps the step with the one holding position and returns the
// board's steps in order. Moving a step onto its own position is a no-op.
func (e *Engine) MoveStep(ctx context.Context, boardID, stepID string, position int) ([]Step, error) {
	actorID, res, err := e.authorizeOp(ctx, OpMoveStep, boardID)
	if err != nil {
		return nil, err
	}

	steps, version, err := e.repos.Steps.ListSteps(ctx, boardID)
	if err != nil {
		return nil, err
	}

	swap, err := ordering.SwapMove(ordering.StepItems(steps), stepID, position)
	if err != nil {
		e.rejectMutation(ctx, auditEventStepMoved, OpMoveStep, actorID, res, err)
		return nil, err
	}
	writes := swap.Changed()
	if len(writes) == 0 {
		return sortSteps(steps), nil
	}

	out, err := e.writeSteps(ctx, OpMoveStep, auditEventStepMoved, actorID, res, steps, version, writes, nil)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricReorderSuccess)
	return out, nil
}

// PinStep makes stepID the board's finish step at the last position.
func (e *Engine) PinStep(ctx context.Context, boardID, stepID string) ([]Step, error) {
	actorID, res, err := e.authorizeOp(ctx, OpSetFinishStep, boardID)
	if err != nil {
		return nil, err
	}

	steps, version, err := e.repos.Steps.ListSteps(ctx, boardID)
	if err != nil {
		return nil, err
	}

	pin, err := ordering.Pin(ordering.StepItems(steps), stepID)
	if err != nil {
		e.rejectMutation(ctx, auditEventStepPinned, OpSetFinishStep, actorID, res, err)
		return nil, err
	}
	writes := pin.Changed()
	if len(writes) == 0 {
		return sortSteps(steps), nil
	}

	out, err := e.writeSteps(ctx, OpSetFinishStep, auditEventStepPinned, actorID, res, steps, version, writes, nil)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricReorderSuccess)
	return out, nil
}

// DeleteStep removes the step and closes the gap it leaves.
func (e *Engine) DeleteStep(ctx context.Context, boardID, stepID string) error {
	actorID, res, err := e.authorizeOp(ctx, OpDeleteStep, boardID)
	if err != nil {
		return err
	}

	steps, version, err := e.repos.Steps.ListSteps(ctx, boardID)
	if err != nil {
		return err
	}

	items := ordering.StepItems(steps)
	_, rest, err := ordering.Remove(items, stepID)
	if err != nil {
		e.rejectMutation(ctx, auditEventStepDeleted, OpDeleteStep, actorID, res, err)
		return err
	}

	remaining := withoutStep(steps, stepID)
	if _, err := e.writeSteps(ctx, OpDeleteStep, auditEventStepDeleted, actorID, res,
		remaining, version, ordering.Changed(items, rest), []string{stepID}); err != nil {
		return err
	}
	e.metricInc(MetricStepDeleted)
	return nil
}

// ListSteps returns the board's steps ordered by position.
func (e *Engine) ListSteps(ctx context.Context, boardID string) ([]Step, error) {
	if _, _, err := e.authorizeOp(ctx, OpListSteps, boardID); err != nil {
		return nil, err
	}
	steps, _, err := e.repos.Steps.ListSteps(ctx, boardID)
	if err != nil {
		return nil, err
	}
	return sortSteps(steps), nil
}

// writeSteps stamps and persists writes against version and returns the
// resulting collection in order. steps must already exclude deletes.
func (e *Engine) writeSteps(
	ctx context.Context,
	operation string,
	event string,
	actorID string,
	res rbac.Resource,
	steps []Step,
	version uint64,
	writes []ordering.Item,
	deletes []string,
) ([]Step, error) {
	writes = ordering.Stamp(append([]ordering.Item(nil), writes...), e.now())
	upserts := changedSteps(steps, writes)

	if err := keepsDense(ordering.StepItems(steps), writes); err != nil {
		e.rejectMutation(ctx, event, operation, actorID, res, err)
		return nil, err
	}

	if _, err := e.repos.Steps.PersistSteps(ctx, res.ID, version, upserts, deletes); err != nil {
		e.rejectMutation(ctx, event, operation, actorID, res, err)
		return nil, err
	}

	e.emitAudit(ctx, event, operation, actorID, res, nil, func() map[string]string {
		meta := map[string]string{"written": strconv.Itoa(len(upserts))}
		if len(deletes) > 0 {
			meta["deleted"] = strings.Join(deletes, ",")
		}
		for _, s := range upserts {
			meta["step."+s.ID] = strconv.Itoa(s.Position)
		}
		return meta
	})

	return sortSteps(ordering.ApplySteps(steps, writes)), nil
}
