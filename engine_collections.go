package boardguard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/MrEthical07/boardguard/ordering"
	"github.com/MrEthical07/boardguard/rbac"
)

// mergeItems concatenates change sets; a later change of the same ID
// replaces an earlier one.
func mergeItems(sets ...[]ordering.Item) []ordering.Item {
	var out []ordering.Item
	index := map[string]int{}
	for _, set := range sets {
		for _, it := range set {
			if i, ok := index[it.ID]; ok {
				out[i] = it
				continue
			}
			index[it.ID] = len(out)
			out = append(out, it)
		}
	}
	return out
}

func changedSteps(steps []ordering.Step, writes []ordering.Item) []ordering.Step {
	want := make(map[string]struct{}, len(writes))
	for _, w := range writes {
		want[w.ID] = struct{}{}
	}
	var out []ordering.Step
	for _, s := range ordering.ApplySteps(steps, writes) {
		if _, ok := want[s.ID]; ok {
			out = append(out, s)
		}
	}
	return out
}

func changedRoles(roles []rbac.Role, writes []ordering.Item) []rbac.Role {
	want := make(map[string]struct{}, len(writes))
	for _, w := range writes {
		want[w.ID] = struct{}{}
	}
	var out []rbac.Role
	for _, r := range rbac.ApplyRoles(roles, writes) {
		if _, ok := want[r.ID]; ok {
			out = append(out, r)
		}
	}
	return out
}

func sortSteps(steps []ordering.Step) []ordering.Step {
	out := append([]ordering.Step(nil), steps...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Position < out[j].Position
	})
	return out
}

func sortRoles(roles []rbac.Role) []rbac.Role {
	out := append([]rbac.Role(nil), roles...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Position < out[j].Position
	})
	return out
}

func withoutStep(steps []ordering.Step, id string) []ordering.Step {
	out := make([]ordering.Step, 0, len(steps))
	for _, s := range steps {
		if s.ID != id {
			out = append(out, s)
		}
	}
	return out
}

func withoutRole(roles []rbac.Role, id string) []rbac.Role {
	out := make([]rbac.Role, 0, len(roles))
	for _, r := range roles {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

// keepsDense fails when applying writes to a collection would produce
// positions that are not dense. A snapshot that is already broken is only
// checked for new duplicates, so it stays writable until recompacted.
func keepsDense(items []ordering.Item, writes []ordering.Item) error {
	after := ordering.Apply(items, writes)
	if ordering.CheckDense(items) != nil {
		seen := make(map[int]string, len(after))
		for _, it := range after {
			if other, ok := seen[it.Position]; ok {
				return fmt.Errorf("%w: %s and %s share position %d", ordering.ErrNotDense, other, it.ID, it.Position)
			}
			seen[it.Position] = it.ID
		}
		return nil
	}
	return ordering.CheckDense(after)
}

// checkCapacity fails with ErrCollectionFull when one more item would exceed
// Ordering.MaxItems.
func (e *Engine) checkCapacity(n int) error {
	if max := e.config.Ordering.MaxItems; max > 0 && n >= max {
		return ErrCollectionFull
	}
	return nil
}

// rejectMutation records a mutation refused by a precondition on the current
// collection or input.
func (e *Engine) rejectMutation(ctx context.Context, event, operation, actorID string, res rbac.Resource, err error) {
	switch {
	case errors.Is(err, ErrInvalidPermissionMask), errors.Is(err, ErrPermissionOverlap):
		e.metricInc(MetricInvalidMask)
	case errors.Is(err, ErrConcurrentModification):
		e.metricInc(MetricReorderConflict)
		e.logger.DebugContext(ctx, "collection write lost to concurrent modification",
			slog.String("operation", operation),
			slog.String("resource_id", res.ID),
		)
	case errors.Is(err, ErrStoreUnavailable):
		e.logger.WarnContext(ctx, "store unavailable",
			slog.String("operation", operation),
			slog.String("resource_id", res.ID),
			slog.String("error", err.Error()),
		)
	case errors.Is(err, ordering.ErrTargetPositionNotFound),
		errors.Is(err, ordering.ErrSingleItemCollection),
		errors.Is(err, ordering.ErrNoOtherSteps),
		errors.Is(err, ordering.ErrCannotDisplacePinnedStep),
		errors.Is(err, ordering.ErrNotDense),
		errors.Is(err, ordering.ErrItemNotFound),
		errors.Is(err, ErrCollectionFull):
		e.metricInc(MetricReorderRejected)
	}
	e.emitAudit(ctx, event, operation, actorID, res, err, nil)
}
