package rbac

import (
	"errors"
	"strings"

	"github.com/MrEthical07/boardguard/permission"
)

var (
	// ErrNotAMember is returned when the actor has no member record on the resource.
	ErrNotAMember = errors.New("actor is not a member of the resource")
	// ErrNoRolesConfigured is returned when the resource defines no roles and the actor is not the owner.
	ErrNoRolesConfigured = errors.New("resource has no roles configured")
	// ErrInsufficientPermissions is returned when the member's effective mask lacks a required bit.
	ErrInsufficientPermissions = errors.New("insufficient permissions")
	// ErrResourceNotFound is returned when the target board or project does not exist.
	ErrResourceNotFound = errors.New("resource not found")
	// ErrMemberNotFound is returned when a member record does not exist.
	ErrMemberNotFound = errors.New("member not found")
	// ErrRoleNotFound is returned when a role does not exist.
	ErrRoleNotFound = errors.New("role not found")
	// ErrRoleNotInResource is returned when a role is assigned to a member of another resource.
	ErrRoleNotInResource = errors.New("role does not belong to the member's resource")
	// ErrAlreadyMember is returned when a user already has a member record on the resource.
	ErrAlreadyMember = errors.New("user is already a member of the resource")
)

// InsufficientPermissionsError names the flags the actor is missing.
type InsufficientPermissionsError struct {
	Domain  permission.Domain
	Missing []string
}

func (e *InsufficientPermissionsError) Error() string {
	if len(e.Missing) == 0 {
		return ErrInsufficientPermissions.Error()
	}
	return ErrInsufficientPermissions.Error() + ": missing " + string(e.Domain) + " " + strings.Join(e.Missing, ", ")
}

func (e *InsufficientPermissionsError) Unwrap() error {
	return ErrInsufficientPermissions
}
