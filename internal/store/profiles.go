package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"photoattend/internal/apperr"
	"photoattend/internal/attendance"
)

const profileColumns = "id, email, full_name, avatar_url, created_at, updated_at"

// Profiles persists identity records.
type Profiles struct {
	db DBTX
}

var _ attendance.ProfileRepository = (*Profiles)(nil)

// NewProfiles creates a repo.
func NewProfiles(db DBTX) *Profiles { return &Profiles{db: db} }

// Create inserts a profile. Timestamps are stored in UTC.
func (r *Profiles) Create(ctx context.Context, p attendance.Profile) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`), p.ID, p.Email, p.FullName, p.AvatarURL, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	return errors.WithStack(err)
}

// Get returns one profile or a NotFound error.
func (r *Profiles) Get(ctx context.Context, id string) (attendance.Profile, error) {
	var p attendance.Profile
	err := r.db.GetContext(ctx, &p, r.db.Rebind(`SELECT `+profileColumns+` FROM profiles WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return attendance.Profile{}, apperr.New(apperr.KindNotFound, "profile not found")
	}
	return p, errors.WithStack(err)
}

// GetByEmail looks a profile up by its unique email.
func (r *Profiles) GetByEmail(ctx context.Context, email string) (attendance.Profile, error) {
	var p attendance.Profile
	err := r.db.GetContext(ctx, &p, r.db.Rebind(`SELECT `+profileColumns+` FROM profiles WHERE email = ?`), email)
	if errors.Is(err, sql.ErrNoRows) {
		return attendance.Profile{}, apperr.New(apperr.KindNotFound, "profile not found")
	}
	return p, errors.WithStack(err)
}

// List returns every profile, newest first.
func (r *Profiles) List(ctx context.Context) ([]attendance.Profile, error) {
	var out []attendance.Profile
	err := r.db.SelectContext(ctx, &out, `SELECT `+profileColumns+` FROM profiles ORDER BY created_at DESC, id`)
	return out, errors.WithStack(err)
}

// Count returns the number of profiles.
func (r *Profiles) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM profiles`)
	return n, errors.WithStack(err)
}
