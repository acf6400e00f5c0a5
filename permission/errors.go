package permission

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPermissionMask is returned when a granted or denied mask is empty
	// or carries bits outside its domain.
	ErrInvalidPermissionMask = errors.New("invalid permission mask")
	// ErrPermissionOverlap is returned when overlap checking is enabled and a
	// role grants and denies the same flag.
	ErrPermissionOverlap = errors.New("granted and denied permissions overlap")
	// ErrUnknownFlag is returned when a flag name is not declared by the domain.
	ErrUnknownFlag = errors.New("unknown permission flag")
	// ErrPolicyFrozen is returned when registering into a frozen policy.
	ErrPolicyFrozen = errors.New("policy frozen")
)

// MaskError names the value and domain that failed validation.
type MaskError struct {
	Field  string
	Domain Domain
	Mask   Mask
	err    error
}

func (e *MaskError) Error() string {
	return fmt.Sprintf("%s: %s mask %#x is not valid for domain %q", e.err, e.Field, uint64(e.Mask), e.Domain)
}

func (e *MaskError) Unwrap() error {
	return e.err
}

// FlagError reports a flag name the domain does not declare.
type FlagError struct {
	Domain Domain
	Name   string
}

func (e *FlagError) Error() string {
	return fmt.Sprintf("%s: %q in domain %q", ErrUnknownFlag, e.Name, e.Domain)
}

func (e *FlagError) Unwrap() error {
	return ErrUnknownFlag
}
