package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/boardguard/ordering"
	"github.com/MrEthical07/boardguard/permission"
	"github.com/MrEthical07/boardguard/rbac"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newStoreTest(t *testing.T) (*Store, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb, "bgt"), mr, func() {
		rdb.Close()
		mr.Close()
	}
}

func testSteps(boardID string, names ...string) []ordering.Step {
	now := time.Unix(1_700_000_000, 0).UTC()
	out := make([]ordering.Step, len(names))
	for i, n := range names {
		out[i] = ordering.Step{
			Item:    ordering.Item{ID: "step-" + n, Position: i + 1, UpdatedAt: now},
			BoardID: boardID,
			Name:    n,
		}
	}
	return out
}

func TestResourceCreateAndFind(t *testing.T) {
	s, _, done := newStoreTest(t)
	defer done()
	ctx := context.Background()

	res := rbac.Resource{ID: "b1", Domain: permission.DomainBoard, OwnerID: "u1", Name: "Roadmap", ProjectID: "p1"}
	if err := s.CreateResource(ctx, res); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateResource(ctx, res); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	got, err := s.FindResource(ctx, "b1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got != res {
		t.Fatalf("expected %+v, got %+v", res, got)
	}

	if _, err := s.FindResource(ctx, "missing"); !errors.Is(err, rbac.ErrResourceNotFound) {
		t.Fatalf("expected ErrResourceNotFound, got %v", err)
	}
}

func TestPersistStepsVersioning(t *testing.T) {
	s, _, done := newStoreTest(t)
	defer done()
	ctx := context.Background()

	steps, version, err := s.ListSteps(ctx, "b1")
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if len(steps) != 0 || version != 0 {
		t.Fatalf("expected empty collection at version 0, got %d items v%d", len(steps), version)
	}

	seed := testSteps("b1", "todo", "doing", "done")
	v1, err := s.PersistSteps(ctx, "b1", 0, seed, nil)
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if v1 != 1 {
		t.Fatalf("expected version 1, got %d", v1)
	}

	got, version, err := s.ListSteps(ctx, "b1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if version != 1 || len(got) != 3 {
		t.Fatalf("unexpected snapshot v%d %+v", version, got)
	}
	for i := range seed {
		if got[i] != seed[i] {
			t.Fatalf("step %d: expected %+v, got %+v", i, seed[i], got[i])
		}
	}

	// A writer holding the stale version 0 must be rejected.
	if _, err := s.PersistSteps(ctx, "b1", 0, seed[:1], nil); !errors.Is(err, ordering.ErrConcurrentModification) {
		t.Fatalf("expected ErrConcurrentModification, got %v", err)
	}

	v2, err := s.PersistSteps(ctx, "b1", 1, nil, []string{"step-doing"})
	if err != nil {
		t.Fatalf("persist delete: %v", err)
	}
	if v2 != 2 {
		t.Fatalf("expected version 2, got %d", v2)
	}
	got, _, err = s.ListSteps(ctx, "b1")
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(got))
	}
}

func TestPersistIsAllOrNothing(t *testing.T) {
	s, _, done := newStoreTest(t)
	defer done()
	ctx := context.Background()

	seed := testSteps("b1", "a", "b")
	if _, err := s.PersistSteps(ctx, "b1", 0, seed, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	swapped := append([]ordering.Step(nil), seed...)
	swapped[0].Position, swapped[1].Position = 2, 1
	if _, err := s.PersistSteps(ctx, "b1", 7, swapped, nil); !errors.Is(err, ordering.ErrConcurrentModification) {
		t.Fatalf("expected conflict, got %v", err)
	}

	got, _, err := s.ListSteps(ctx, "b1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got[0].ID != "step-a" || got[0].Position != 1 {
		t.Fatalf("rejected write leaked: %+v", got)
	}
}

func TestRolesAndMembers(t *testing.T) {
	s, _, done := newStoreTest(t)
	defer done()
	ctx := context.Background()

	roles := []rbac.Role{
		{Item: ordering.Item{ID: "r-admin", Position: 1}, ResourceID: "b1", Name: "admin", Granted: permission.Board.All()},
		{Item: ordering.Item{ID: "r-viewer", Position: 2}, ResourceID: "b1", Name: "viewer", Granted: permission.StepMove, Denied: permission.StepDelete},
	}
	if _, err := s.PersistRoles(ctx, "b1", 0, roles, nil); err != nil {
		t.Fatalf("persist roles: %v", err)
	}

	n, err := s.CountRoles(ctx, "b1")
	if err != nil || n != 2 {
		t.Fatalf("expected 2 roles, got %d (%v)", n, err)
	}
	if n, _ := s.CountRoles(ctx, "b2"); n != 0 {
		t.Fatalf("expected 0 roles on unknown resource, got %d", n)
	}

	m := rbac.Member{
		ID:         "m1",
		UserID:     "alice",
		ResourceID: "b1",
		Roles:      []rbac.Role{{Item: ordering.Item{ID: "r-viewer"}}, {Item: ordering.Item{ID: "r-gone"}}},
	}
	if err := s.AddMember(ctx, m); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if err := s.AddMember(ctx, m); !errors.Is(err, rbac.ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}

	got, err := s.FindMember(ctx, "b1", "alice")
	if err != nil {
		t.Fatalf("find member: %v", err)
	}
	if len(got.Roles) != 1 || got.Roles[0].Name != "viewer" || got.Roles[0].Granted != permission.StepMove {
		t.Fatalf("expected hydrated viewer role only, got %+v", got.Roles)
	}
	if got.EffectiveMask() != permission.StepMove {
		t.Fatalf("unexpected effective mask %b", got.EffectiveMask())
	}

	got.Roles = roles[:1]
	if err := s.SaveMember(ctx, got); err != nil {
		t.Fatalf("save member: %v", err)
	}
	members, err := s.ListMembers(ctx, "b1")
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 1 || len(members[0].Roles) != 1 || members[0].Roles[0].ID != "r-admin" {
		t.Fatalf("unexpected members %+v", members)
	}

	if _, err := s.FindMember(ctx, "b1", "bob"); !errors.Is(err, rbac.ErrMemberNotFound) {
		t.Fatalf("expected ErrMemberNotFound, got %v", err)
	}
	if err := s.DeleteMember(ctx, "b1", "alice"); err != nil {
		t.Fatalf("delete member: %v", err)
	}
	if err := s.DeleteMember(ctx, "b1", "alice"); !errors.Is(err, rbac.ErrMemberNotFound) {
		t.Fatalf("expected ErrMemberNotFound on second delete, got %v", err)
	}
}

func TestSaveMemberDoesNotRecreateRemovedMember(t *testing.T) {
	s, _, done := newStoreTest(t)
	defer done()
	ctx := context.Background()

	roles := []rbac.Role{
		{Item: ordering.Item{ID: "r-admin", Position: 1}, ResourceID: "b1", Name: "admin", Granted: permission.Board.All()},
	}
	if _, err := s.PersistRoles(ctx, "b1", 0, roles, nil); err != nil {
		t.Fatalf("persist roles: %v", err)
	}

	m := rbac.Member{ID: "m1", UserID: "alice", ResourceID: "b1"}
	if err := s.SaveMember(ctx, m); !errors.Is(err, rbac.ErrMemberNotFound) {
		t.Fatalf("expected ErrMemberNotFound for unknown member, got %v", err)
	}

	if err := s.AddMember(ctx, m); err != nil {
		t.Fatalf("add member: %v", err)
	}
	stale, err := s.FindMember(ctx, "b1", "alice")
	if err != nil {
		t.Fatalf("find member: %v", err)
	}
	if err := s.DeleteMember(ctx, "b1", "alice"); err != nil {
		t.Fatalf("delete member: %v", err)
	}

	stale.Roles = roles
	if err := s.SaveMember(ctx, stale); !errors.Is(err, rbac.ErrMemberNotFound) {
		t.Fatalf("expected ErrMemberNotFound for removed member, got %v", err)
	}
	if _, err := s.FindMember(ctx, "b1", "alice"); !errors.Is(err, rbac.ErrMemberNotFound) {
		t.Fatalf("expected removed member to stay removed, got %v", err)
	}
}

func TestRedisFailureIsWrapped(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	s := New(rdb, "bgt")
	mr.Close()

	if _, err := s.FindResource(context.Background(), "b1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, _, err := s.ListSteps(context.Background(), "b1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
