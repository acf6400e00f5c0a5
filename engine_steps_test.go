package boardguard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/boardguard/ordering"
	"github.com/MrEthical07/boardguard/permission"
	"github.com/MrEthical07/boardguard/store"
)

func newStoreEngine(t *testing.T, cfg Config, wrap func(Repositories) Repositories) (*Engine, *store.Store, func()) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	s := store.New(rdb, cfg.Store.RedisPrefix)
	repos := RepositoriesFrom(s)
	if wrap != nil {
		repos = wrap(repos)
	}
	engine, err := New().WithConfig(cfg).WithRepositories(repos).Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}
	return engine, s, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

func createSteps(t *testing.T, e *Engine, ctx context.Context, boardID string, names ...string) map[string]Step {
	t.Helper()
	out := make(map[string]Step, len(names))
	for _, n := range names {
		s, err := e.CreateStep(ctx, boardID, n)
		if err != nil {
			t.Fatalf("CreateStep(%s) failed: %v", n, err)
		}
		out[n] = s
	}
	return out
}

func positions(steps []Step) map[string]int {
	out := make(map[string]int, len(steps))
	for _, s := range steps {
		out[s.Name] = s.Position
	}
	return out
}

func assertDenseSteps(t *testing.T, steps []Step) {
	t.Helper()
	if err := ordering.CheckDense(ordering.StepItems(steps)); err != nil {
		t.Fatalf("steps not dense: %v", err)
	}
}

func TestCreateStepAppendsAtNextPosition(t *testing.T) {
	e, done := newTestEngine(t, testConfig())
	defer done()

	board, _ := boardFixture(t, e, permission.StepCreate, 0)
	steps := createSteps(t, e, as("member"), board.ID, "Todo", "Doing", "Done")

	for name, want := range map[string]int{"Todo": 1, "Doing": 2, "Done": 3} {
		if steps[name].Position != want {
			t.Fatalf("%s: expected position %d, got %d", name, want, steps[name].Position)
		}
		if steps[name].UpdatedAt.IsZero() {
			t.Fatalf("%s: expected UpdatedAt to be stamped", name)
		}
	}
}

func TestCreateStepRequiresName(t *testing.T) {
	e, done := newTestEngine(t, testConfig())
	defer done()

	if _, err := e.CreateStep(as("owner"), "b1", "   "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestMoveStepIsPairwiseSwap(t *testing.T) {
	e, done := newTestEngine(t, testConfig())
	defer done()

	board, _ := boardFixture(t, e, permission.StepCreate|permission.StepMove, 0)
	created := createSteps(t, e, as("member"), board.ID, "A", "B", "C", "D")

	out, err := e.MoveStep(as("member"), board.ID, created["A"].ID, 3)
	if err != nil {
		t.Fatalf("MoveStep failed: %v", err)
	}
	got := positions(out)
	want := map[string]int{"A": 3, "B": 2, "C": 1, "D": 4}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	assertDenseSteps(t, out)

	back, err := e.MoveStep(as("member"), board.ID, created["C"].ID, 3)
	if err != nil {
		t.Fatalf("MoveStep back failed: %v", err)
	}
	got = positions(back)
	for k, v := range map[string]int{"A": 1, "B": 2, "C": 3, "D": 4} {
		if got[k] != v {
			t.Fatalf("expected round trip to original order, got %v", got)
		}
	}
	if e.MetricsSnapshot().Counters[MetricReorderSuccess] != 2 {
		t.Fatalf("expected 2 reorder successes, got %d", e.MetricsSnapshot().Counters[MetricReorderSuccess])
	}
}

func TestMoveStepOntoOwnPositionIsNoop(t *testing.T) {
	e, done := newTestEngine(t, testConfig())
	defer done()

	board, err := e.CreateBoard(as("owner"), "", "Roadmap")
	if err != nil {
		t.Fatalf("CreateBoard failed: %v", err)
	}
	created := createSteps(t, e, as("owner"), board.ID, "A", "B")

	out, err := e.MoveStep(as("owner"), board.ID, created["B"].ID, 2)
	if err != nil {
		t.Fatalf("MoveStep failed: %v", err)
	}
	if positions(out)["B"] != 2 {
		t.Fatalf("expected B to stay at 2, got %v", positions(out))
	}
}

func TestMoveStepPreconditions(t *testing.T) {
	e, done := newTestEngine(t, testConfig())
	defer done()

	board, err := e.CreateBoard(as("owner"), "", "Roadmap")
	if err != nil {
		t.Fatalf("CreateBoard failed: %v", err)
	}
	only := createSteps(t, e, as("owner"), board.ID, "Only")

	if _, err := e.MoveStep(as("owner"), board.ID, only["Only"].ID, 1); !errors.Is(err, ErrSingleItemCollection) {
		t.Fatalf("expected ErrSingleItemCollection, got %v", err)
	}

	more := createSteps(t, e, as("owner"), board.ID, "Second")
	if _, err := e.MoveStep(as("owner"), board.ID, more["Second"].ID, 7); !errors.Is(err, ErrTargetPositionNotFound) {
		t.Fatalf("expected ErrTargetPositionNotFound, got %v", err)
	}
	if _, err := e.MoveStep(as("owner"), board.ID, "nope", 1); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
	if got := e.MetricsSnapshot().Counters[MetricReorderRejected]; got != 3 {
		t.Fatalf("expected 3 rejected reorders, got %d", got)
	}
}

func TestMoveStepDeniedWithoutMoveFlag(t *testing.T) {
	e, done := newTestEngine(t, testConfig())
	defer done()

	board, _ := boardFixture(t, e, permission.StepCreate, 0)
	created := createSteps(t, e, as("member"), board.ID, "A", "B")

	if _, err := e.MoveStep(as("member"), board.ID, created["A"].ID, 2); !errors.Is(err, ErrInsufficientPermissions) {
		t.Fatalf("expected ErrInsufficientPermissions, got %v", err)
	}
}

func TestPinStepScenario(t *testing.T) {
	e, done := newTestEngine(t, testConfig())
	defer done()

	board, err := e.CreateBoard(as("owner"), "", "Roadmap")
	if err != nil {
		t.Fatalf("CreateBoard failed: %v", err)
	}
	created := createSteps(t, e, as("owner"), board.ID, "A", "B", "C")

	out, err := e.PinStep(as("owner"), board.ID, created["C"].ID)
	if err != nil {
		t.Fatalf("PinStep(C) failed: %v", err)
	}
	for _, s := range out {
		if s.Name == "C" && (!s.Finish() || s.Position != 3) {
			t.Fatalf("expected C pinned at 3, got %+v", s)
		}
	}

	out, err = e.PinStep(as("owner"), board.ID, created["A"].ID)
	if err != nil {
		t.Fatalf("PinStep(A) failed: %v", err)
	}
	assertDenseSteps(t, out)
	for _, s := range out {
		switch s.Name {
		case "A":
			if !s.Pinned || s.Position != 3 {
				t.Fatalf("expected A pinned at 3, got %+v", s)
			}
		case "C":
			if s.Pinned || s.Position != 1 {
				t.Fatalf("expected C unpinned at 1, got %+v", s)
			}
		}
	}
}

func TestPinStepMovesFirstPinToLast(t *testing.T) {
	e, done := newTestEngine(t, testConfig())
	defer done()

	board, err := e.CreateBoard(as("owner"), "", "Roadmap")
	if err != nil {
		t.Fatalf("CreateBoard failed: %v", err)
	}
	created := createSteps(t, e, as("owner"), board.ID, "A", "B", "C")

	out, err := e.PinStep(as("owner"), board.ID, created["A"].ID)
	if err != nil {
		t.Fatalf("PinStep failed: %v", err)
	}
	assertDenseSteps(t, out)
	if got := positions(out); got["A"] != 3 || got["C"] != 1 {
		t.Fatalf("expected A at 3 and C at 1, got %v", got)
	}
}

func TestPinStepSingleStep(t *testing.T) {
	e, done := newTestEngine(t, testConfig())
	defer done()

	board, err := e.CreateBoard(as("owner"), "", "Roadmap")
	if err != nil {
		t.Fatalf("CreateBoard failed: %v", err)
	}
	created := createSteps(t, e, as("owner"), board.ID, "Only")

	if _, err := e.PinStep(as("owner"), board.ID, created["Only"].ID); !errors.Is(err, ErrNoOtherSteps) {
		t.Fatalf("expected ErrNoOtherSteps, got %v", err)
	}
}

func TestFinishStepStaysLast(t *testing.T) {
	e, done := newTestEngine(t, testConfig())
	defer done()

	board, err := e.CreateBoard(as("owner"), "", "Roadmap")
	if err != nil {
		t.Fatalf("CreateBoard failed: %v", err)
	}
	created := createSteps(t, e, as("owner"), board.ID, "Todo", "Done")
	if _, err := e.PinStep(as("owner"), board.ID, created["Done"].ID); err != nil {
		t.Fatalf("PinStep failed: %v", err)
	}

	review, err := e.CreateStep(as("owner"), board.ID, "Review")
	if err != nil {
		t.Fatalf("CreateStep failed: %v", err)
	}
	if review.Position != 2 {
		t.Fatalf("expected new step to take the finish slot 2, got %d", review.Position)
	}

	steps, err := e.ListSteps(as("owner"), board.ID)
	if err != nil {
		t.Fatalf("ListSteps failed: %v", err)
	}
	assertDenseSteps(t, steps)
	last := steps[len(steps)-1]
	if last.Name != "Done" || !last.Finish() {
		t.Fatalf("expected finish step last, got %+v", last)
	}

	if _, err := e.MoveStep(as("owner"), board.ID, created["Todo"].ID, 3); !errors.Is(err, ErrCannotDisplacePinnedStep) {
		t.Fatalf("expected ErrCannotDisplacePinnedStep moving onto finish, got %v", err)
	}
	if _, err := e.MoveStep(as("owner"), board.ID, created["Done"].ID, 1); !errors.Is(err, ErrCannotDisplacePinnedStep) {
		t.Fatalf("expected ErrCannotDisplacePinnedStep moving finish itself, got %v", err)
	}
}

func TestDeleteStepRecompacts(t *testing.T) {
	e, done := newTestEngine(t, testConfig())
	defer done()

	board, _ := boardFixture(t, e, permission.StepCreate|permission.StepDelete, 0)
	created := createSteps(t, e, as("member"), board.ID, "A", "B", "C", "D")

	if err := e.DeleteStep(as("member"), board.ID, created["B"].ID); err != nil {
		t.Fatalf("DeleteStep failed: %v", err)
	}
	steps, err := e.ListSteps(as("member"), board.ID)
	if err != nil {
		t.Fatalf("ListSteps failed: %v", err)
	}
	assertDenseSteps(t, steps)
	if got := positions(steps); len(got) != 3 || got["A"] != 1 || got["C"] != 2 || got["D"] != 3 {
		t.Fatalf("unexpected positions after delete: %v", got)
	}

	if err := e.DeleteStep(as("member"), board.ID, created["B"].ID); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound on second delete, got %v", err)
	}
}

func TestCreateStepCollectionFull(t *testing.T) {
	cfg := testConfig()
	cfg.Ordering.MaxItems = 2
	e, done := newTestEngine(t, cfg)
	defer done()

	board, err := e.CreateBoard(as("owner"), "", "Roadmap")
	if err != nil {
		t.Fatalf("CreateBoard failed: %v", err)
	}
	createSteps(t, e, as("owner"), board.ID, "A", "B")

	if _, err := e.CreateStep(as("owner"), board.ID, "C"); !errors.Is(err, ErrCollectionFull) {
		t.Fatalf("expected ErrCollectionFull, got %v", err)
	}
}

func TestCreateStepRecompactsGaps(t *testing.T) {
	e, s, done := newStoreEngine(t, testConfig(), nil)
	defer done()
	ctx := context.Background()

	board, err := e.CreateBoard(as("owner"), "", "Roadmap")
	if err != nil {
		t.Fatalf("CreateBoard failed: %v", err)
	}

	now := time.Unix(1_700_000_000, 0).UTC()
	gapped := []Step{
		{Item: ordering.Item{ID: "a", Position: 1, UpdatedAt: now}, BoardID: board.ID, Name: "A"},
		{Item: ordering.Item{ID: "c", Position: 3, UpdatedAt: now}, BoardID: board.ID, Name: "C"},
		{Item: ordering.Item{ID: "e", Position: 5, UpdatedAt: now}, BoardID: board.ID, Name: "E"},
	}
	if _, err := s.PersistSteps(ctx, board.ID, 0, gapped, nil); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	created, err := e.CreateStep(as("owner"), board.ID, "F")
	if err != nil {
		t.Fatalf("CreateStep failed: %v", err)
	}
	if created.Position != 4 {
		t.Fatalf("expected position 4 after recompaction, got %d", created.Position)
	}

	steps, _, err := s.ListSteps(ctx, board.ID)
	if err != nil {
		t.Fatalf("ListSteps failed: %v", err)
	}
	assertDenseSteps(t, steps)
}

// racingSteps lets another writer bump the collection version between the
// engine's read and its write.
type racingSteps struct {
	StepRepository
	once sync.Once
}

func (r *racingSteps) ListSteps(ctx context.Context, boardID string) ([]Step, uint64, error) {
	steps, version, err := r.StepRepository.ListSteps(ctx, boardID)
	if err != nil {
		return nil, 0, err
	}
	r.once.Do(func() {
		_, err = r.StepRepository.PersistSteps(ctx, boardID, version, nil, nil)
	})
	return steps, version, err
}

func TestMoveStepConcurrentModification(t *testing.T) {
	var racer *racingSteps
	e, _, done := newStoreEngine(t, testConfig(), func(r Repositories) Repositories {
		racer = &racingSteps{StepRepository: r.Steps}
		racer.once.Do(func() {})
		r.Steps = racer
		return r
	})
	defer done()

	board, err := e.CreateBoard(as("owner"), "", "Roadmap")
	if err != nil {
		t.Fatalf("CreateBoard failed: %v", err)
	}
	created := createSteps(t, e, as("owner"), board.ID, "A", "B")

	racer.once = sync.Once{}
	if _, err := e.MoveStep(as("owner"), board.ID, created["A"].ID, 2); !errors.Is(err, ErrConcurrentModification) {
		t.Fatalf("expected ErrConcurrentModification, got %v", err)
	}
	if got := e.MetricsSnapshot().Counters[MetricReorderConflict]; got != 1 {
		t.Fatalf("expected conflict counter 1, got %d", got)
	}

	out, err := e.MoveStep(as("owner"), board.ID, created["A"].ID, 2)
	if err != nil {
		t.Fatalf("retry after conflict failed: %v", err)
	}
	if positions(out)["A"] != 2 {
		t.Fatalf("expected A at 2, got %v", positions(out))
	}
}
