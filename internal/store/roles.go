package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"photoattend/internal/attendance"
)

// Roles persists role assignments.
type Roles struct {
	db DBTX
}

var _ attendance.RoleRepository = (*Roles)(nil)

// NewRoles creates a repo.
func NewRoles(db DBTX) *Roles { return &Roles{db: db} }

// Assign inserts one assignment.
func (r *Roles) Assign(ctx context.Context, a attendance.RoleAssignment) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO user_roles (id, user_id, role, created_at)
		VALUES (?, ?, ?, ?)
	`), a.ID, a.UserID, string(a.Role), a.CreatedAt.UTC())
	return errors.WithStack(err)
}

// Lookup returns the first assignment by creation time, or RoleUser.
func (r *Roles) Lookup(ctx context.Context, userID string) (attendance.Role, error) {
	var role string
	err := r.db.GetContext(ctx, &role, r.db.Rebind(`
		SELECT role FROM user_roles
		WHERE user_id = ?
		ORDER BY created_at, id
		LIMIT 1
	`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return attendance.RoleUser, nil
	}
	if err != nil {
		return "", errors.WithStack(err)
	}
	return attendance.Role(role), nil
}

// Effective returns the first assignment of every user that has one.
func (r *Roles) Effective(ctx context.Context) (map[string]attendance.Role, error) {
	var rows []attendance.RoleAssignment
	if err := r.db.SelectContext(ctx, &rows, `SELECT id, user_id, role, created_at FROM user_roles ORDER BY created_at, id`); err != nil {
		return nil, errors.WithStack(err)
	}
	out := make(map[string]attendance.Role, len(rows))
	for _, a := range rows {
		if _, seen := out[a.UserID]; !seen {
			out[a.UserID] = a.Role
		}
	}
	return out, nil
}

// ListFor returns every assignment of one user, oldest first.
func (r *Roles) ListFor(ctx context.Context, userID string) ([]attendance.RoleAssignment, error) {
	var rows []attendance.RoleAssignment
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT id, user_id, role, created_at FROM user_roles
		WHERE user_id = ?
		ORDER BY created_at, id
	`), userID)
	return rows, errors.WithStack(err)
}

// SetAll rewrites every assignment of userID in one statement.
func (r *Roles) SetAll(ctx context.Context, userID string, role attendance.Role) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE user_roles SET role = ? WHERE user_id = ?`), string(role), userID)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	n, err := res.RowsAffected()
	return n, errors.WithStack(err)
}
