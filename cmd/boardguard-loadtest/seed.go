package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/MrEthical07/boardguard"
	"github.com/MrEthical07/boardguard/ordering"
	"github.com/MrEthical07/boardguard/permission"
)

const (
	ownerID    = "owner"
	strangerID = "stranger"
)

type seededBoard struct {
	id      string
	steps   []string
	members []string
}

type fixture struct {
	steps  int
	boards []seededBoard
}

func asActor(ctx context.Context, userID string) context.Context {
	return boardguard.WithActor(ctx, userID)
}

// seed creates every board with one "mover" role and s.Members members
// holding it.
func seed(ctx context.Context, engine *boardguard.Engine, s settings, logger *slog.Logger) (*fixture, error) {
	logger.Info("seeding", "boards", s.Boards, "steps", s.Steps, "members", s.Members)
	start := time.Now()

	owner := asActor(ctx, ownerID)
	f := &fixture{steps: s.Steps, boards: make([]seededBoard, 0, s.Boards)}
	for b := 0; b < s.Boards; b++ {
		board, err := engine.CreateBoard(owner, "", fmt.Sprintf("board-%d", b))
		if err != nil {
			return nil, err
		}
		role, err := engine.CreateRole(owner, board.ID, boardguard.RoleInput{
			Name:    "mover",
			Granted: permission.StepMove | permission.StepUpdate,
			Denied:  permission.StepDelete,
		})
		if err != nil {
			return nil, err
		}

		sb := seededBoard{id: board.ID}
		for i := 0; i < s.Steps; i++ {
			step, err := engine.CreateStep(owner, board.ID, fmt.Sprintf("step-%d", i))
			if err != nil {
				return nil, err
			}
			sb.steps = append(sb.steps, step.ID)
		}
		for m := 0; m < s.Members; m++ {
			userID := fmt.Sprintf("user-%d", m)
			if _, err := engine.AddMember(owner, board.ID, userID, []string{role.ID}); err != nil {
				return nil, err
			}
			sb.members = append(sb.members, userID)
		}
		f.boards = append(f.boards, sb)
	}

	logger.Info("seeded", "elapsed", time.Since(start).Round(time.Millisecond))
	return f, nil
}

func (f *fixture) pick(r *rand.Rand) seededBoard {
	return f.boards[r.Intn(len(f.boards))]
}

// authorize guards moveStep for a random member, or for a stranger one
// time in ten.
func (f *fixture) authorize(engine *boardguard.Engine) opFunc {
	return func(ctx context.Context, r *rand.Rand) error {
		b := f.pick(r)
		actor := b.members[r.Intn(len(b.members))]
		if r.Intn(10) == 0 {
			actor = strangerID
		}
		return engine.Require(asActor(ctx, actor), boardguard.OpMoveStep, map[string]any{boardguard.ArgBoardID: b.id})
	}
}

func (f *fixture) move(engine *boardguard.Engine) opFunc {
	return func(ctx context.Context, r *rand.Rand) error {
		b := f.pick(r)
		actor := b.members[r.Intn(len(b.members))]
		step := b.steps[r.Intn(len(b.steps))]
		_, err := engine.MoveStep(asActor(ctx, actor), b.id, step, 1+r.Intn(f.steps))
		return err
	}
}

func (f *fixture) pin(engine *boardguard.Engine) opFunc {
	return func(ctx context.Context, r *rand.Rand) error {
		b := f.pick(r)
		actor := b.members[r.Intn(len(b.members))]
		_, err := engine.PinStep(asActor(ctx, actor), b.id, b.steps[r.Intn(len(b.steps))])
		return err
	}
}

// verify lists every board and counts the ones whose steps are no longer
// dense or whose step count changed.
func (f *fixture) verify(ctx context.Context, engine *boardguard.Engine) (int, error) {
	owner := asActor(ctx, ownerID)
	broken := 0
	for _, b := range f.boards {
		steps, err := engine.ListSteps(owner, b.id)
		if err != nil {
			return broken, err
		}
		err = ordering.CheckDense(ordering.StepItems(steps))
		if err == nil && len(steps) != f.steps {
			err = fmt.Errorf("%w: %d steps, want %d", ordering.ErrNotDense, len(steps), f.steps)
		}
		if err != nil {
			if !errors.Is(err, ordering.ErrNotDense) {
				return broken, err
			}
			slog.Warn("board lost dense positions", "board_id", b.id, "error", err)
			broken++
		}
	}
	return broken, nil
}
