package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MrEthical07/boardguard/ordering"
	"github.com/MrEthical07/boardguard/permission"
	"github.com/MrEthical07/boardguard/rbac"
	"github.com/MrEthical07/boardguard/store"

	_ "modernc.org/sqlite"
)

const (
	kindSteps = "steps"
	kindRoles = "roles"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS resources (
		id TEXT PRIMARY KEY,
		domain TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		project_id TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS steps (
		id TEXT PRIMARY KEY,
		board_id TEXT NOT NULL REFERENCES resources(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		position INTEGER NOT NULL,
		pinned INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS steps_board ON steps(board_id, position)`,
	`CREATE TABLE IF NOT EXISTS roles (
		id TEXT PRIMARY KEY,
		resource_id TEXT NOT NULL REFERENCES resources(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		position INTEGER NOT NULL,
		granted BLOB NOT NULL,
		denied BLOB NOT NULL,
		updated_at INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS roles_resource ON roles(resource_id, position)`,
	`CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		resource_id TEXT NOT NULL REFERENCES resources(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		UNIQUE (resource_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS member_roles (
		member_id TEXT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
		role_id TEXT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
		ord INTEGER NOT NULL,
		PRIMARY KEY (member_id, role_id)
	)`,
	`CREATE TABLE IF NOT EXISTS collection_versions (
		kind TEXT NOT NULL,
		parent_id TEXT NOT NULL,
		version INTEGER NOT NULL,
		PRIMARY KEY (kind, parent_id)
	)`,
}

// Store is a SQLite-backed repository for resources, members, steps and roles.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database file at path and applies the
// schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

// CreateResource stores a new board or project.
func (s *Store) CreateResource(ctx context.Context, res rbac.Resource) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resources (id, domain, owner_id, name, project_id) VALUES (?, ?, ?, ?, ?)`,
		res.ID, string(res.Domain), res.OwnerID, res.Name, res.ProjectID,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// FindResource returns the resource with id or [rbac.ErrResourceNotFound].
func (s *Store) FindResource(ctx context.Context, id string) (rbac.Resource, error) {
	var (
		res    rbac.Resource
		domain string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, domain, owner_id, name, project_id FROM resources WHERE id = ?`, id,
	).Scan(&res.ID, &domain, &res.OwnerID, &res.Name, &res.ProjectID)
	if errors.Is(err, sql.ErrNoRows) {
		return rbac.Resource{}, rbac.ErrResourceNotFound
	}
	if err != nil {
		return rbac.Resource{}, unavailable(err)
	}
	res.Domain = permission.Domain(domain)
	return res, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func readVersion(ctx context.Context, q queryer, kind, parentID string) (uint64, error) {
	var v int64
	err := q.QueryRowContext(ctx,
		`SELECT version FROM collection_versions WHERE kind = ? AND parent_id = ?`, kind, parentID,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, unavailable(err)
	}
	return uint64(v), nil
}

// bumpVersion advances the collection version from version to version+1
// inside tx, or reports a conflict.
func bumpVersion(ctx context.Context, tx *sql.Tx, kind, parentID string, version uint64) (uint64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE collection_versions SET version = version + 1 WHERE kind = ? AND parent_id = ? AND version = ?`,
		kind, parentID, int64(version),
	)
	if err != nil {
		return 0, unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable(err)
	}
	if n == 1 {
		return version + 1, nil
	}
	if version != 0 {
		return 0, ordering.ErrConcurrentModification
	}

	res, err = tx.ExecContext(ctx,
		`INSERT INTO collection_versions (kind, parent_id, version) VALUES (?, ?, 1) ON CONFLICT DO NOTHING`,
		kind, parentID,
	)
	if err != nil {
		return 0, unavailable(err)
	}
	if n, err = res.RowsAffected(); err != nil {
		return 0, unavailable(err)
	}
	if n != 1 {
		return 0, ordering.ErrConcurrentModification
	}
	return 1, nil
}

// withTx runs fn in a transaction, committing only when fn succeeds.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable(err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return unavailable(err)
	}
	return nil
}

// ListSteps returns the steps of a board ordered by position, and the
// collection version the snapshot was read at.
func (s *Store) ListSteps(ctx context.Context, boardID string) ([]ordering.Step, uint64, error) {
	var (
		steps   []ordering.Step
		version uint64
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		v, err := readVersion(ctx, tx, kindSteps, boardID)
		if err != nil {
			return err
		}
		version = v

		rows, err := tx.QueryContext(ctx,
			`SELECT id, board_id, name, position, pinned, updated_at FROM steps WHERE board_id = ? ORDER BY position, id`,
			boardID,
		)
		if err != nil {
			return unavailable(err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				st      ordering.Step
				pinned  int
				updated int64
			)
			if err := rows.Scan(&st.ID, &st.BoardID, &st.Name, &st.Position, &pinned, &updated); err != nil {
				return unavailable(err)
			}
			st.Pinned = pinned != 0
			st.UpdatedAt = fromNanos(updated)
			steps = append(steps, st)
		}
		if err := rows.Err(); err != nil {
			return unavailable(err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return steps, version, nil
}

// PersistSteps writes upserts and deletes in one transaction if the board's
// step collection is still at version. It returns the new version.
func (s *Store) PersistSteps(ctx context.Context, boardID string, version uint64, upserts []ordering.Step, deletes []string) (uint64, error) {
	var next uint64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		v, err := bumpVersion(ctx, tx, kindSteps, boardID, version)
		if err != nil {
			return err
		}
		next = v

		for _, st := range upserts {
			pinned := 0
			if st.Pinned {
				pinned = 1
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO steps (id, board_id, name, position, pinned, updated_at) VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET name = excluded.name, position = excluded.position,
					pinned = excluded.pinned, updated_at = excluded.updated_at`,
				st.ID, boardID, st.Name, st.Position, pinned, nanos(st.UpdatedAt),
			)
			if err != nil {
				return unavailable(err)
			}
		}
		for _, id := range deletes {
			if _, err := tx.ExecContext(ctx, `DELETE FROM steps WHERE id = ? AND board_id = ?`, id, boardID); err != nil {
				return unavailable(err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

func scanRoles(rows *sql.Rows) ([]rbac.Role, error) {
	defer rows.Close()

	var roles []rbac.Role
	for rows.Next() {
		var (
			r               rbac.Role
			granted, denied []byte
			updated         int64
		)
		if err := rows.Scan(&r.ID, &r.ResourceID, &r.Name, &r.Position, &granted, &denied, &updated); err != nil {
			return nil, unavailable(err)
		}
		g, err := permission.DecodeMask(granted)
		if err != nil {
			return nil, fmt.Errorf("%w: role %s granted: %v", store.ErrCorruptRecord, r.ID, err)
		}
		d, err := permission.DecodeMask(denied)
		if err != nil {
			return nil, fmt.Errorf("%w: role %s denied: %v", store.ErrCorruptRecord, r.ID, err)
		}
		r.Granted, r.Denied = g, d
		r.UpdatedAt = fromNanos(updated)
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return roles, nil
}

const selectRoles = `SELECT id, resource_id, name, position, granted, denied, updated_at FROM roles`

// ListRoles returns the roles of a resource ordered by position, and the
// collection version the snapshot was read at.
func (s *Store) ListRoles(ctx context.Context, resourceID string) ([]rbac.Role, uint64, error) {
	var (
		roles   []rbac.Role
		version uint64
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		v, err := readVersion(ctx, tx, kindRoles, resourceID)
		if err != nil {
			return err
		}
		version = v

		rows, err := tx.QueryContext(ctx, selectRoles+` WHERE resource_id = ? ORDER BY position, id`, resourceID)
		if err != nil {
			return unavailable(err)
		}
		roles, err = scanRoles(rows)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return roles, version, nil
}

// PersistRoles writes upserts and deletes in one transaction if the
// resource's role collection is still at version. It returns the new version.
func (s *Store) PersistRoles(ctx context.Context, resourceID string, version uint64, upserts []rbac.Role, deletes []string) (uint64, error) {
	var next uint64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		v, err := bumpVersion(ctx, tx, kindRoles, resourceID, version)
		if err != nil {
			return err
		}
		next = v

		for _, r := range upserts {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO roles (id, resource_id, name, position, granted, denied, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET name = excluded.name, position = excluded.position,
					granted = excluded.granted, denied = excluded.denied, updated_at = excluded.updated_at`,
				r.ID, resourceID, r.Name, r.Position,
				permission.EncodeMask(r.Granted), permission.EncodeMask(r.Denied), nanos(r.UpdatedAt),
			)
			if err != nil {
				return unavailable(err)
			}
		}
		for _, id := range deletes {
			if _, err := tx.ExecContext(ctx, `DELETE FROM roles WHERE id = ? AND resource_id = ?`, id, resourceID); err != nil {
				return unavailable(err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// CountRoles returns how many roles the resource defines.
func (s *Store) CountRoles(ctx context.Context, resourceID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM roles WHERE resource_id = ?`, resourceID).Scan(&n); err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

func loadMemberRoles(ctx context.Context, q queryer, memberID string) ([]rbac.Role, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT r.id, r.resource_id, r.name, r.position, r.granted, r.denied, r.updated_at
		FROM member_roles mr JOIN roles r ON r.id = mr.role_id
		WHERE mr.member_id = ? ORDER BY mr.ord`,
		memberID,
	)
	if err != nil {
		return nil, unavailable(err)
	}
	return scanRoles(rows)
}

// FindMember returns the user's member record on the resource with its roles
// loaded, or [rbac.ErrMemberNotFound].
func (s *Store) FindMember(ctx context.Context, resourceID, userID string) (rbac.Member, error) {
	m := rbac.Member{ResourceID: resourceID, UserID: userID}
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM members WHERE resource_id = ? AND user_id = ?`, resourceID, userID,
	).Scan(&m.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return rbac.Member{}, rbac.ErrMemberNotFound
	}
	if err != nil {
		return rbac.Member{}, unavailable(err)
	}

	roles, err := loadMemberRoles(ctx, s.db, m.ID)
	if err != nil {
		return rbac.Member{}, err
	}
	m.Roles = roles
	return m, nil
}

// ListMembers returns every member of the resource with roles loaded.
func (s *Store) ListMembers(ctx context.Context, resourceID string) ([]rbac.Member, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id FROM members WHERE resource_id = ? ORDER BY user_id`, resourceID,
	)
	if err != nil {
		return nil, unavailable(err)
	}

	var members []rbac.Member
	for rows.Next() {
		m := rbac.Member{ResourceID: resourceID}
		if err := rows.Scan(&m.ID, &m.UserID); err != nil {
			rows.Close()
			return nil, unavailable(err)
		}
		members = append(members, m)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, unavailable(err)
	}

	for i := range members {
		roles, err := loadMemberRoles(ctx, s.db, members[i].ID)
		if err != nil {
			return nil, err
		}
		members[i].Roles = roles
	}
	return members, nil
}

func writeMemberRoles(ctx context.Context, tx *sql.Tx, m rbac.Member) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM member_roles WHERE member_id = ?`, m.ID); err != nil {
		return unavailable(err)
	}
	for i, r := range m.Roles {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO member_roles (member_id, role_id, ord) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`,
			m.ID, r.ID, i,
		)
		if err != nil {
			return unavailable(err)
		}
	}
	return nil
}

// AddMember stores a new member record. A user who is already a member fails
// with [rbac.ErrAlreadyMember].
func (s *Store) AddMember(ctx context.Context, m rbac.Member) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO members (id, resource_id, user_id) VALUES (?, ?, ?)`,
			m.ID, m.ResourceID, m.UserID,
		)
		if isUniqueViolation(err) {
			return rbac.ErrAlreadyMember
		}
		if err != nil {
			return unavailable(err)
		}
		return writeMemberRoles(ctx, tx, m)
	})
}

// SaveMember replaces the role assignment of an existing member.
func (s *Store) SaveMember(ctx context.Context, m rbac.Member) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE members SET user_id = ? WHERE id = ? AND resource_id = ?`, m.UserID, m.ID, m.ResourceID,
		)
		if err != nil {
			return unavailable(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return unavailable(err)
		}
		if n == 0 {
			return rbac.ErrMemberNotFound
		}
		return writeMemberRoles(ctx, tx, m)
	})
}

// DeleteMember removes the user's member record, or fails with
// [rbac.ErrMemberNotFound].
func (s *Store) DeleteMember(ctx context.Context, resourceID, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM members WHERE resource_id = ? AND user_id = ?`, resourceID, userID)
	if err != nil {
		return unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable(err)
	}
	if n == 0 {
		return rbac.ErrMemberNotFound
	}
	return nil
}
