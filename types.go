package boardguard

import (
	"context"
	"io"

	internalaudit "github.com/MrEthical07/boardguard/internal/audit"
	"github.com/MrEthical07/boardguard/ordering"
	"github.com/MrEthical07/boardguard/permission"
	"github.com/MrEthical07/boardguard/rbac"
)

// Resource, Role, Member and Step are the domain records the engine reads
// and writes.
type (
	Resource = rbac.Resource
	Role     = rbac.Role
	Member   = rbac.Member
	Step     = ordering.Step
	Decision = rbac.Decision
	Mask     = permission.Mask
	Domain   = permission.Domain

	InsufficientPermissionsError = rbac.InsufficientPermissionsError
)

// ResourceRepository loads and creates boards and projects.
type ResourceRepository interface {
	// FindResource returns rbac.ErrResourceNotFound when id does not exist.
	FindResource(ctx context.Context, id string) (rbac.Resource, error)
	CreateResource(ctx context.Context, res rbac.Resource) error
}

// MemberRepository loads and writes member records. Members returned by
// FindMember and ListMembers carry their roles fully loaded.
type MemberRepository interface {
	// FindMember returns rbac.ErrMemberNotFound when the user is not a member.
	FindMember(ctx context.Context, resourceID, userID string) (rbac.Member, error)
	ListMembers(ctx context.Context, resourceID string) ([]rbac.Member, error)
	CountRoles(ctx context.Context, resourceID string) (int, error)
	// AddMember returns rbac.ErrAlreadyMember when the user is already a member.
	AddMember(ctx context.Context, m rbac.Member) error
	// SaveMember replaces the roles of an existing member. It returns
	// rbac.ErrMemberNotFound and writes nothing when the member is gone.
	SaveMember(ctx context.Context, m rbac.Member) error
	DeleteMember(ctx context.Context, resourceID, userID string) error
}

// StepRepository is the positioned-item repository for board steps.
//
// ListSteps returns a snapshot ordered by position together with the
// collection version. PersistSteps applies every upsert and delete as one
// atomic write if the collection is still at version, and fails with
// ordering.ErrConcurrentModification otherwise.
type StepRepository interface {
	ListSteps(ctx context.Context, boardID string) ([]ordering.Step, uint64, error)
	PersistSteps(ctx context.Context, boardID string, version uint64, upserts []ordering.Step, deletes []string) (uint64, error)
}

// RoleRepository is the positioned-item repository for the roles of a board
// or project, with the same snapshot and versioning contract as
// [StepRepository].
type RoleRepository interface {
	ListRoles(ctx context.Context, resourceID string) ([]rbac.Role, uint64, error)
	PersistRoles(ctx context.Context, resourceID string, version uint64, upserts []rbac.Role, deletes []string) (uint64, error)
}

// Repositories bundles the collaborators an [Engine] needs. Both
// store.Store and sqlstore.Store implement every interface.
type Repositories struct {
	Resources ResourceRepository
	Members   MemberRepository
	Steps     StepRepository
	Roles     RoleRepository
}

// Backend is satisfied by a single store that implements every repository.
type Backend interface {
	ResourceRepository
	MemberRepository
	StepRepository
	RoleRepository
}

// RepositoriesFrom wires every repository to one backend.
func RepositoriesFrom(b Backend) Repositories {
	return Repositories{Resources: b, Members: b, Steps: b, Roles: b}
}

func (r Repositories) complete() bool {
	return r.Resources != nil && r.Members != nil && r.Steps != nil && r.Roles != nil
}

// RoleInput describes a role to create.
type RoleInput struct {
	Name    string
	Granted permission.Mask
	Denied  permission.Mask
}

// RoleUpdate describes changes to an existing role. Nil fields are left
// unchanged.
type RoleUpdate struct {
	Name    *string
	Granted *permission.Mask
	Denied  *permission.Mask
}

// AuditEvent is the audit record emitted by engine operations.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the engine's dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink discards every event.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink forwards events into a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink returns a [ChannelSink] with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a [JSONWriterSink] writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
