package boardguard

import (
	"errors"
	"testing"

	"github.com/MrEthical07/boardguard/permission"
)

func TestCreateRoleValidatesMasks(t *testing.T) {
	e, done := newTestEngine(t, testConfig())
	defer done()

	board, err := e.CreateBoard(as("owner"), "", "Roadmap")
	if err != nil {
		t.Fatalf("CreateBoard failed: %v", err)
	}

	tests := []struct {
		name string
		in   RoleInput
		want error
	}{
		{"zero granted", RoleInput{Name: "r", Granted: 0}, ErrInvalidPermissionMask},
		{"bit outside domain", RoleInput{Name: "r", Granted: permission.Mask(1) << 40}, ErrInvalidPermissionMask},
		{"bad denied", RoleInput{Name: "r", Granted: permission.StepMove, Denied: permission.Mask(1) << 50}, ErrInvalidPermissionMask},
		{"blank name", RoleInput{Name: " ", Granted: permission.StepMove}, ErrInvalidInput},
		{"valid", RoleInput{Name: "mover", Granted: permission.StepMove}, nil},
		{"valid with overlap", RoleInput{Name: "both", Granted: permission.StepMove, Denied: permission.StepMove}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.CreateRole(as("owner"), board.ID, tt.in)
			if tt.want == nil && err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if got := e.MetricsSnapshot().Counters[MetricInvalidMask]; got != 3 {
		t.Fatalf("expected 3 invalid mask rejections, got %d", got)
	}
}

func TestCreateRoleRequiresDeniedMaskByDefault(t *testing.T) {
	cfg := testConfig()
	cfg.Permission.AllowEmptyDenied = false
	e, done := newTestEngine(t, cfg)
	defer done()

	board, err := e.CreateBoard(as("owner"), "", "Roadmap")
	if err != nil {
		t.Fatalf("CreateBoard failed: %v", err)
	}

	_, err = e.CreateRole(as("owner"), board.ID, RoleInput{Name: "mover", Granted: permission.StepMove})
	if !errors.Is(err, ErrInvalidPermissionMask) {
		t.Fatalf("expected ErrInvalidPermissionMask, got %v", err)
	}
	var maskErr *permission.MaskError
	if !errors.As(err, &maskErr) || maskErr.Field != "denied" || maskErr.Domain != permission.DomainBoard {
		t.Fatalf("expected denied mask error on board domain, got %v", err)
	}

	role, err := e.CreateRole(as("owner"), board.ID, RoleInput{Name: "mover", Granted: permission.StepMove, Denied: permission.StepDelete})
	if err != nil {
		t.Fatalf("CreateRole failed: %v", err)
	}

	none := permission.Mask(0)
	if _, err := e.UpdateRole(as("owner"), board.ID, role.ID, RoleUpdate{Denied: &none}); !errors.Is(err, ErrInvalidPermissionMask) {
		t.Fatalf("expected clearing denied to fail, got %v", err)
	}
}

func TestCreateRoleProjectMaskOnBoardRejected(t *testing.T) {
	e, done := newTestEngine(t, testConfig())
	defer done()

	board, err := e.CreateBoard(as("owner"), "", "Roadmap")
	if err != nil {
		t.Fatalf("CreateBoard failed: %v", err)
	}
	project, err := e.CreateProject(as("owner"), "Platform")
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}

	all := permission.Board.All()
	if _, err := e.CreateRole(as("owner"), board.ID, RoleInput{Name: "admin", Granted: all}); err != nil {
		t.Fatalf("expected full board mask to be valid on board, got %v", err)
	}
	if _, err := e.CreateRole(as("owner"), project.ID, RoleInput{Name: "admin", Granted: all}); !errors.Is(err, ErrInvalidPermissionMask) {
		t.Fatalf("expected board mask to be rejected on project, got %v", err)
	}
}

func TestCreateRoleRejectOverlap(t *testing.T) {
	cfg := testConfig()
	cfg.Permission.RejectGrantDenyOverlap = true
	e, done := newTestEngine(t, cfg)
	defer done()

	board, err := e.CreateBoard(as("owner"), "", "Roadmap")
	if err != nil {
		t.Fatalf("CreateBoard failed: %v", err)
	}

	_, err = e.CreateRole(as("owner"), board.ID, RoleInput{
		Name:    "confused",
		Granted: permission.StepMove | permission.StepCreate,
		Denied:  permission.StepMove,
	})
	if !errors.Is(err, ErrPermissionOverlap) {
		t.Fatalf("expected ErrPermissionOverlap, got %v", err)
	}
}

func TestDenialWinsOverGrant(t *testing.T) {
	e, done := newTestEngine(t, testConfig())
	defer done()

	// granted 0b0110, denied 0b0010 over the first board flags.
	granted := permission.BoardDelete | permission.BoardManageMembers
	denied := permission.BoardDelete
	board, _ := boardFixture(t, e, granted, denied)

	if _, err := e.Authorize(as("member"), "member", board.ID, permission.BoardManageMembers); err != nil {
		t.Fatalf("expected manage_members allowed, got %v", err)
	}
	if _, err := e.Authorize(as("member"), "member", board.ID, permission.BoardDelete); !errors.Is(err, ErrInsufficientPermissions) {
		t.Fatalf("expected denied bit to be removed, got %v", err)
	}
}

func TestRoleOrderingLifecycle(t *testing.T) {
	e, done := newTestEngine(t, testConfig())
	defer done()

	project, err := e.CreateProject(as("owner"), "Platform")
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}

	ids := map[string]string{}
	for _, name := range []string{"admin", "editor", "viewer"} {
		r, err := e.CreateRole(as("owner"), project.ID, RoleInput{Name: name, Granted: permission.ProjectUpdate})
		if err != nil {
			t.Fatalf("CreateRole(%s) failed: %v", name, err)
		}
		ids[name] = r.ID
	}

	roles, err := e.MoveRole(as("owner"), project.ID, ids["viewer"], 1)
	if err != nil {
		t.Fatalf("MoveRole failed: %v", err)
	}
	if roles[0].Name != "viewer" || roles[2].Name != "admin" {
		t.Fatalf("expected viewer and admin swapped, got %s,%s,%s", roles[0].Name, roles[1].Name, roles[2].Name)
	}

	if _, err := e.MoveRole(as("owner"), project.ID, "missing", 1); !errors.Is(err, ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound, got %v", err)
	}

	if err := e.DeleteRole(as("owner"), project.ID, ids["editor"]); err != nil {
		t.Fatalf("DeleteRole failed: %v", err)
	}
	roles, err = e.ListRoles(as("owner"), project.ID)
	if err != nil {
		t.Fatalf("ListRoles failed: %v", err)
	}
	if len(roles) != 2 || roles[0].Position != 1 || roles[1].Position != 2 {
		t.Fatalf("expected dense positions after delete, got %+v", roles)
	}
	if roles[1].Name != "admin" {
		t.Fatalf("expected admin to close the gap, got %s", roles[1].Name)
	}
}

func TestUpdateRole(t *testing.T) {
	e, done := newTestEngine(t, testConfig())
	defer done()

	board, role := boardFixture(t, e, permission.StepCreate, 0)

	name := "writer"
	granted := permission.StepCreate | permission.StepDelete
	updated, err := e.UpdateRole(as("owner"), board.ID, role.ID, RoleUpdate{Name: &name, Granted: &granted})
	if err != nil {
		t.Fatalf("UpdateRole failed: %v", err)
	}
	if updated.Name != "writer" || updated.Granted != granted || updated.Position != 1 {
		t.Fatalf("unexpected role after update: %+v", updated)
	}
	if _, err := e.Authorize(as("member"), "member", board.ID, permission.StepDelete); err != nil {
		t.Fatalf("expected member to gain delete_step, got %v", err)
	}

	bad := permission.Mask(1) << 62
	if _, err := e.UpdateRole(as("owner"), board.ID, role.ID, RoleUpdate{Denied: &bad}); !errors.Is(err, ErrInvalidPermissionMask) {
		t.Fatalf("expected ErrInvalidPermissionMask, got %v", err)
	}
	if _, err := e.UpdateRole(as("owner"), board.ID, "missing", RoleUpdate{Name: &name}); !errors.Is(err, ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound, got %v", err)
	}
}

func TestDeleteRoleUnassignsMembers(t *testing.T) {
	e, done := newTestEngine(t, testConfig())
	defer done()

	board, role := boardFixture(t, e, permission.StepCreate, 0)
	keep, err := e.CreateRole(as("owner"), board.ID, RoleInput{Name: "viewer", Granted: permission.TaskCreate})
	if err != nil {
		t.Fatalf("CreateRole failed: %v", err)
	}
	if _, err := e.AssignRoles(as("owner"), board.ID, "member", []string{role.ID, keep.ID}); err != nil {
		t.Fatalf("AssignRoles failed: %v", err)
	}

	if err := e.DeleteRole(as("owner"), board.ID, role.ID); err != nil {
		t.Fatalf("DeleteRole failed: %v", err)
	}

	members, err := e.ListMembers(as("owner"), board.ID)
	if err != nil {
		t.Fatalf("ListMembers failed: %v", err)
	}
	if len(members) != 1 || len(members[0].Roles) != 1 || members[0].Roles[0].ID != keep.ID {
		t.Fatalf("expected only the kept role to remain, got %+v", members)
	}
	if _, err := e.Authorize(as("member"), "member", board.ID, permission.StepCreate); !errors.Is(err, ErrInsufficientPermissions) {
		t.Fatalf("expected deleted role to stop granting, got %v", err)
	}
}

func TestRoleManagementRequiresManageRoles(t *testing.T) {
	e, done := newTestEngine(t, testConfig())
	defer done()

	board, _ := boardFixture(t, e, permission.StepCreate, 0)

	if _, err := e.CreateRole(as("member"), board.ID, RoleInput{Name: "sneaky", Granted: permission.Board.All()}); !errors.Is(err, ErrInsufficientPermissions) {
		t.Fatalf("expected ErrInsufficientPermissions, got %v", err)
	}
	if _, err := e.ListRoles(as("member"), board.ID); err != nil {
		t.Fatalf("expected members to list roles, got %v", err)
	}
}
