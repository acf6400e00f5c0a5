package permission

import "fmt"

// Board flags. The constant order is the registration order of [Board].
const (
	BoardUpdate Mask = 1 << iota
	BoardDelete
	BoardManageMembers
	BoardManageRoles
	StepCreate
	StepUpdate
	StepDelete
	StepMove
	TaskCreate
	TaskUpdate
	TaskDelete
	TaskMove
	TaskAssign
)

// Project flags. The constant order is the registration order of [Project].
const (
	ProjectUpdate Mask = 1 << iota
	ProjectDelete
	ProjectManageMembers
	ProjectManageRoles
	ProjectCreateBoard
	ProjectArchiveBoard
)

type flagDef struct {
	name string
	mask Mask
}

var boardFlags = []flagDef{
	{"update_board", BoardUpdate},
	{"delete_board", BoardDelete},
	{"manage_members", BoardManageMembers},
	{"manage_roles", BoardManageRoles},
	{"create_step", StepCreate},
	{"update_step", StepUpdate},
	{"delete_step", StepDelete},
	{"move_step", StepMove},
	{"create_task", TaskCreate},
	{"update_task", TaskUpdate},
	{"delete_task", TaskDelete},
	{"move_task", TaskMove},
	{"assign_task", TaskAssign},
}

var projectFlags = []flagDef{
	{"update_project", ProjectUpdate},
	{"delete_project", ProjectDelete},
	{"manage_members", ProjectManageMembers},
	{"manage_roles", ProjectManageRoles},
	{"create_board", ProjectCreateBoard},
	{"archive_board", ProjectArchiveBoard},
}

var (
	// Board is the frozen policy for board resources.
	Board = mustPolicy(DomainBoard, boardFlags)
	// Project is the frozen policy for project resources.
	Project = mustPolicy(DomainProject, projectFlags)
)

// Lookup returns the built-in policy for domain.
func Lookup(domain Domain) (*Policy, bool) {
	switch domain {
	case DomainBoard:
		return Board, true
	case DomainProject:
		return Project, true
	default:
		return nil, false
	}
}

func mustPolicy(domain Domain, defs []flagDef) *Policy {
	p, err := NewPolicy(domain)
	if err != nil {
		panic(err)
	}
	for _, def := range defs {
		bit, err := p.Register(def.name)
		if err != nil {
			panic(fmt.Sprintf("permission: register %s.%s: %v", domain, def.name, err))
		}
		if Mask(1)<<bit != def.mask {
			panic(fmt.Sprintf("permission: %s.%s registered at bit %d, constant is %#x", domain, def.name, bit, uint64(def.mask)))
		}
	}
	p.Freeze()
	return p
}
