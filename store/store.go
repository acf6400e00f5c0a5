package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/MrEthical07/boardguard/ordering"
	"github.com/MrEthical07/boardguard/rbac"
	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps every Redis transport failure.
var ErrUnavailable = errors.New("store unavailable")

// ErrAlreadyExists is returned when a record with the same ID already exists.
var ErrAlreadyExists = errors.New("record already exists")

const (
	kindSteps = "steps"
	kindRoles = "roles"
)

const persistCollectionScript = `
local current = tonumber(redis.call("GET", KEYS[2]) or "0")
if current ~= tonumber(ARGV[1]) then
  return -1
end

local upserts = tonumber(ARGV[2])
local idx = 3
for i = 1, upserts do
  redis.call("HSET", KEYS[1], ARGV[idx], ARGV[idx + 1])
  idx = idx + 2
end

while idx <= #ARGV do
  redis.call("HDEL", KEYS[1], ARGV[idx])
  idx = idx + 1
end

return redis.call("INCR", KEYS[2])
`

var persistCollectionLua = redis.NewScript(persistCollectionScript)

const saveMemberScript = `
if redis.call("HEXISTS", KEYS[1], ARGV[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
return 1
`

var saveMemberLua = redis.NewScript(saveMemberScript)

// Store is a Redis-backed repository for resources, members, steps and roles.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// New creates a [Store]. prefix sets the Redis key namespace.
func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "bg"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) resourceKey(id string) string {
	return s.prefix + ":res:" + id
}

func (s *Store) collectionKey(kind, parentID string) string {
	return s.prefix + ":col:" + kind + ":" + parentID
}

func (s *Store) versionKey(kind, parentID string) string {
	return s.prefix + ":ver:" + kind + ":" + parentID
}

func (s *Store) membersKey(resourceID string) string {
	return s.prefix + ":mem:" + resourceID
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// CreateResource stores a new board or project. An existing ID fails with
// [ErrAlreadyExists].
func (s *Store) CreateResource(ctx context.Context, res rbac.Resource) error {
	data, err := EncodeResource(res)
	if err != nil {
		return err
	}

	ok, err := s.redis.SetNX(ctx, s.resourceKey(res.ID), data, 0).Result()
	if err != nil {
		return unavailable(err)
	}
	if !ok {
		return ErrAlreadyExists
	}
	return nil
}

// FindResource returns the resource with id or [rbac.ErrResourceNotFound].
func (s *Store) FindResource(ctx context.Context, id string) (rbac.Resource, error) {
	data, err := s.redis.Get(ctx, s.resourceKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return rbac.Resource{}, rbac.ErrResourceNotFound
		}
		return rbac.Resource{}, unavailable(err)
	}
	return DecodeResource(data)
}

// readCollection returns the raw records of one collection and its version
// from a single MULTI block.
func (s *Store) readCollection(ctx context.Context, kind, parentID string) (map[string]string, uint64, error) {
	var (
		all *redis.MapStringStringCmd
		ver *redis.StringCmd
	)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		all = pipe.HGetAll(ctx, s.collectionKey(kind, parentID))
		ver = pipe.Get(ctx, s.versionKey(kind, parentID))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, unavailable(err)
	}

	records, err := all.Result()
	if err != nil {
		return nil, 0, unavailable(err)
	}

	var version uint64
	raw, err := ver.Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return nil, 0, unavailable(err)
	default:
		version, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, 0, corrupt(err)
		}
	}

	return records, version, nil
}

func (s *Store) persistCollection(ctx context.Context, kind, parentID string, version uint64, upserts map[string][]byte, deletes []string) (uint64, error) {
	args := make([]any, 0, 2+2*len(upserts)+len(deletes))
	args = append(args, version, len(upserts))

	ids := make([]string, 0, len(upserts))
	for id := range upserts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		args = append(args, id, upserts[id])
	}
	for _, id := range deletes {
		args = append(args, id)
	}

	next, err := persistCollectionLua.Run(
		ctx,
		s.redis,
		[]string{s.collectionKey(kind, parentID), s.versionKey(kind, parentID)},
		args...,
	).Int64()
	if err != nil {
		return 0, unavailable(err)
	}
	if next < 0 {
		return 0, ordering.ErrConcurrentModification
	}
	return uint64(next), nil
}

// ListSteps returns the steps of a board ordered by position, and the
// collection version the snapshot was read at.
func (s *Store) ListSteps(ctx context.Context, boardID string) ([]ordering.Step, uint64, error) {
	records, version, err := s.readCollection(ctx, kindSteps, boardID)
	if err != nil {
		return nil, 0, err
	}

	steps := make([]ordering.Step, 0, len(records))
	for _, raw := range records {
		step, err := DecodeStep([]byte(raw))
		if err != nil {
			return nil, 0, err
		}
		steps = append(steps, step)
	}
	sort.SliceStable(steps, func(i, j int) bool {
		if steps[i].Position != steps[j].Position {
			return steps[i].Position < steps[j].Position
		}
		return steps[i].ID < steps[j].ID
	})
	return steps, version, nil
}

// PersistSteps writes upserts and deletes atomically if the board's step
// collection is still at version. It returns the new version.
func (s *Store) PersistSteps(ctx context.Context, boardID string, version uint64, upserts []ordering.Step, deletes []string) (uint64, error) {
	encoded := make(map[string][]byte, len(upserts))
	for _, step := range upserts {
		data, err := EncodeStep(step)
		if err != nil {
			return 0, err
		}
		encoded[step.ID] = data
	}
	return s.persistCollection(ctx, kindSteps, boardID, version, encoded, deletes)
}

// ListRoles returns the roles of a resource ordered by position, and the
// collection version the snapshot was read at.
func (s *Store) ListRoles(ctx context.Context, resourceID string) ([]rbac.Role, uint64, error) {
	records, version, err := s.readCollection(ctx, kindRoles, resourceID)
	if err != nil {
		return nil, 0, err
	}

	roles, err := decodeRoles(records)
	if err != nil {
		return nil, 0, err
	}
	return roles, version, nil
}

func decodeRoles(records map[string]string) ([]rbac.Role, error) {
	roles := make([]rbac.Role, 0, len(records))
	for _, raw := range records {
		role, err := DecodeRole([]byte(raw))
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	sort.SliceStable(roles, func(i, j int) bool {
		if roles[i].Position != roles[j].Position {
			return roles[i].Position < roles[j].Position
		}
		return roles[i].ID < roles[j].ID
	})
	return roles, nil
}

// PersistRoles writes upserts and deletes atomically if the resource's role
// collection is still at version. It returns the new version.
func (s *Store) PersistRoles(ctx context.Context, resourceID string, version uint64, upserts []rbac.Role, deletes []string) (uint64, error) {
	encoded := make(map[string][]byte, len(upserts))
	for _, role := range upserts {
		data, err := EncodeRole(role)
		if err != nil {
			return 0, err
		}
		encoded[role.ID] = data
	}
	return s.persistCollection(ctx, kindRoles, resourceID, version, encoded, deletes)
}

// CountRoles returns how many roles the resource defines.
func (s *Store) CountRoles(ctx context.Context, resourceID string) (int, error) {
	n, err := s.redis.HLen(ctx, s.collectionKey(kindRoles, resourceID)).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	return int(n), nil
}

// FindMember returns the user's member record on the resource with its roles
// loaded, or [rbac.ErrMemberNotFound]. Role IDs that no longer exist are
// dropped.
func (s *Store) FindMember(ctx context.Context, resourceID, userID string) (rbac.Member, error) {
	var (
		rec   *redis.StringCmd
		roles *redis.MapStringStringCmd
	)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		rec = pipe.HGet(ctx, s.membersKey(resourceID), userID)
		roles = pipe.HGetAll(ctx, s.collectionKey(kindRoles, resourceID))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return rbac.Member{}, unavailable(err)
	}

	data, err := rec.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return rbac.Member{}, rbac.ErrMemberNotFound
		}
		return rbac.Member{}, unavailable(err)
	}
	member, err := DecodeMember(data)
	if err != nil {
		return rbac.Member{}, err
	}

	records, err := roles.Result()
	if err != nil {
		return rbac.Member{}, unavailable(err)
	}
	all, err := decodeRoles(records)
	if err != nil {
		return rbac.Member{}, err
	}
	return hydrate(member, all), nil
}

// ListMembers returns every member of the resource with roles loaded.
func (s *Store) ListMembers(ctx context.Context, resourceID string) ([]rbac.Member, error) {
	var (
		recs  *redis.MapStringStringCmd
		roles *redis.MapStringStringCmd
	)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		recs = pipe.HGetAll(ctx, s.membersKey(resourceID))
		roles = pipe.HGetAll(ctx, s.collectionKey(kindRoles, resourceID))
		return nil
	})
	if err != nil {
		return nil, unavailable(err)
	}

	roleRecords, err := roles.Result()
	if err != nil {
		return nil, unavailable(err)
	}
	all, err := decodeRoles(roleRecords)
	if err != nil {
		return nil, err
	}

	memberRecords, err := recs.Result()
	if err != nil {
		return nil, unavailable(err)
	}
	members := make([]rbac.Member, 0, len(memberRecords))
	for _, raw := range memberRecords {
		m, err := DecodeMember([]byte(raw))
		if err != nil {
			return nil, err
		}
		members = append(members, hydrate(m, all))
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].UserID < members[j].UserID
	})
	return members, nil
}

func hydrate(m rbac.Member, roles []rbac.Role) rbac.Member {
	byID := make(map[string]rbac.Role, len(roles))
	for _, r := range roles {
		byID[r.ID] = r
	}
	out := make([]rbac.Role, 0, len(m.Roles))
	for _, ref := range m.Roles {
		if r, ok := byID[ref.ID]; ok {
			out = append(out, r)
		}
	}
	m.Roles = out
	return m
}

// AddMember stores a new member record. A user who is already a member fails
// with [rbac.ErrAlreadyMember].
func (s *Store) AddMember(ctx context.Context, m rbac.Member) error {
	data, err := EncodeMember(m)
	if err != nil {
		return err
	}
	ok, err := s.redis.HSetNX(ctx, s.membersKey(m.ResourceID), m.UserID, data).Result()
	if err != nil {
		return unavailable(err)
	}
	if !ok {
		return rbac.ErrAlreadyMember
	}
	return nil
}

// SaveMember overwrites an existing member record. A user who is no longer a
// member fails with [rbac.ErrMemberNotFound] and is not written back.
func (s *Store) SaveMember(ctx context.Context, m rbac.Member) error {
	data, err := EncodeMember(m)
	if err != nil {
		return err
	}
	saved, err := saveMemberLua.Run(ctx, s.redis, []string{s.membersKey(m.ResourceID)}, m.UserID, data).Int64()
	if err != nil {
		return unavailable(err)
	}
	if saved == 0 {
		return rbac.ErrMemberNotFound
	}
	return nil
}

// DeleteMember removes the user's member record, or fails with
// [rbac.ErrMemberNotFound].
func (s *Store) DeleteMember(ctx context.Context, resourceID, userID string) error {
	n, err := s.redis.HDel(ctx, s.membersKey(resourceID), userID).Result()
	if err != nil {
		return unavailable(err)
	}
	if n == 0 {
		return rbac.ErrMemberNotFound
	}
	return nil
}
