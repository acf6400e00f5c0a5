package boardguard

import (
	"fmt"
	"sort"

	"github.com/MrEthical07/boardguard/permission"
)

// Argument names the default operations read their resource ID from.
const (
	ArgBoardID   = "boardId"
	ArgProjectID = "projectId"
)

// Operation is the static guard declaration of one mutation or query.
type Operation struct {
	Domain permission.Domain
	// Required lists flag names of Domain; the actor must hold all of them.
	Required []string
	// ResourceArg is the argument name holding the target resource ID.
	ResourceArg string
	// ExcludedFromGuard skips authorization entirely.
	ExcludedFromGuard bool
}

// OperationTable maps operation names to their declarations.
type OperationTable map[string]Operation

// Operation names used by the engine's own services.
const (
	OpCreateProject       = "createProject"
	OpUpdateProject       = "updateProject"
	OpDeleteProject       = "deleteProject"
	OpViewProject         = "viewProject"
	OpAddBoardToProject   = "addBoardToProject"
	OpArchiveBoard        = "archiveBoard"
	OpCreateProjectRole   = "createProjectRole"
	OpUpdateProjectRole   = "updateProjectRole"
	OpMoveProjectRole     = "moveProjectRole"
	OpDeleteProjectRole   = "deleteProjectRole"
	OpListProjectRoles    = "listProjectRoles"
	OpAddProjectMember    = "addProjectMember"
	OpAssignProjectRoles  = "assignProjectRoles"
	OpRemoveProjectMember = "removeProjectMember"

	OpCreateBoard       = "createBoard"
	OpViewBoard         = "viewBoard"
	OpUpdateBoard       = "updateBoard"
	OpDeleteBoard       = "deleteBoard"
	OpCreateStep        = "createStep"
	OpUpdateStep        = "updateStep"
	OpMoveStep          = "moveStep"
	OpSetFinishStep     = "setFinishStep"
	OpDeleteStep        = "deleteStep"
	OpListSteps         = "listSteps"
	OpCreateTask        = "createTask"
	OpUpdateTask        = "updateTask"
	OpDeleteTask        = "deleteTask"
	OpMoveTask          = "moveTask"
	OpAssignTask        = "assignTask"
	OpCreateBoardRole   = "createBoardRole"
	OpUpdateBoardRole   = "updateBoardRole"
	OpMoveBoardRole     = "moveBoardRole"
	OpDeleteBoardRole   = "deleteBoardRole"
	OpListBoardRoles    = "listBoardRoles"
	OpAddBoardMember    = "addBoardMember"
	OpAssignBoardRoles  = "assignBoardRoles"
	OpRemoveBoardMember = "removeBoardMember"
)

// DefaultOperations returns the built-in table. The result is a fresh copy
// and may be extended before it is passed to [Builder.WithOperations].
func DefaultOperations() OperationTable {
	board := func(required ...string) Operation {
		return Operation{Domain: permission.DomainBoard, Required: required, ResourceArg: ArgBoardID}
	}
	project := func(required ...string) Operation {
		return Operation{Domain: permission.DomainProject, Required: required, ResourceArg: ArgProjectID}
	}

	return OperationTable{
		OpCreateProject:       {Domain: permission.DomainProject, ExcludedFromGuard: true},
		OpUpdateProject:       project("update_project"),
		OpDeleteProject:       project("delete_project"),
		OpViewProject:         project(),
		OpAddBoardToProject:   project("create_board"),
		OpArchiveBoard:        project("archive_board"),
		OpCreateProjectRole:   project("manage_roles"),
		OpUpdateProjectRole:   project("manage_roles"),
		OpMoveProjectRole:     project("manage_roles"),
		OpDeleteProjectRole:   project("manage_roles"),
		OpListProjectRoles:    project(),
		OpAddProjectMember:    project("manage_members"),
		OpAssignProjectRoles:  project("manage_members"),
		OpRemoveProjectMember: project("manage_members"),

		OpCreateBoard:       {Domain: permission.DomainBoard, ExcludedFromGuard: true},
		OpViewBoard:         board(),
		OpUpdateBoard:       board("update_board"),
		OpDeleteBoard:       board("delete_board"),
		OpCreateStep:        board("create_step"),
		OpUpdateStep:        board("update_step"),
		OpMoveStep:          board("move_step"),
		OpSetFinishStep:     board("update_step", "move_step"),
		OpDeleteStep:        board("delete_step"),
		OpListSteps:         board(),
		OpCreateTask:        board("create_task"),
		OpUpdateTask:        board("update_task"),
		OpDeleteTask:        board("delete_task"),
		OpMoveTask:          board("move_task"),
		OpAssignTask:        board("assign_task"),
		OpCreateBoardRole:   board("manage_roles"),
		OpUpdateBoardRole:   board("manage_roles"),
		OpMoveBoardRole:     board("manage_roles"),
		OpDeleteBoardRole:   board("manage_roles"),
		OpListBoardRoles:    board(),
		OpAddBoardMember:    board("manage_members"),
		OpAssignBoardRoles:  board("manage_members"),
		OpRemoveBoardMember: board("manage_members"),
	}
}

type compiledOperation struct {
	Operation
	name     string
	policy   *permission.Policy
	required permission.Mask
}

// compileOperations resolves every declaration against its domain policy.
func compileOperations(table OperationTable) (map[string]compiledOperation, error) {
	out := make(map[string]compiledOperation, len(table))
	for name, op := range table {
		if name == "" {
			return nil, fmt.Errorf("%w: empty operation name", ErrInvalidOperation)
		}
		policy, ok := permission.Lookup(op.Domain)
		if !ok {
			return nil, fmt.Errorf("%w: %s: unknown domain %q", ErrInvalidOperation, name, op.Domain)
		}
		if !op.ExcludedFromGuard && op.ResourceArg == "" {
			return nil, fmt.Errorf("%w: %s: guarded operation needs a resource argument", ErrInvalidOperation, name)
		}
		required, err := policy.MaskOf(op.Required...)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidOperation, name, err)
		}

		op.Required = append([]string(nil), op.Required...)
		out[name] = compiledOperation{
			Operation: op,
			name:      name,
			policy:    policy,
			required:  required,
		}
	}
	return out, nil
}

// lookupArg finds name anywhere in args. Each map level checks its own key
// first, then descends into values in sorted key order; slices are searched
// in index order.
func lookupArg(args any, name string) (any, bool) {
	switch v := args.(type) {
	case map[string]any:
		if found, ok := v[name]; ok {
			return found, true
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if found, ok := lookupArg(v[k], name); ok {
				return found, true
			}
		}
	case map[string]string:
		if found, ok := v[name]; ok {
			return found, true
		}
	case []any:
		for _, item := range v {
			if found, ok := lookupArg(item, name); ok {
				return found, true
			}
		}
	}
	return nil, false
}

// ResourceIDFromArgs extracts the string resource ID named arg from args.
func ResourceIDFromArgs(args map[string]any, arg string) (string, error) {
	raw, ok := lookupArg(args, arg)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrResourceArgumentMissing, arg)
	}
	id, ok := raw.(string)
	if !ok || id == "" {
		return "", fmt.Errorf("%w: %s is not a non-empty string", ErrResourceArgumentMissing, arg)
	}
	return id, nil
}
