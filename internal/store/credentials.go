package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"photoattend/internal/apperr"
)

// Credentials stores bcrypt password hashes keyed by profile id.
type Credentials struct {
	db DBTX
}

// NewCredentials creates a repo.
func NewCredentials(db DBTX) *Credentials { return &Credentials{db: db} }

// Set replaces the password hash of userID.
func (r *Credentials) Set(ctx context.Context, userID, hash string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE credentials SET password_hash = ?, updated_at = ? WHERE user_id = ?`),
		hash, now.UTC(), userID)
	if err != nil {
		return errors.WithStack(err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO credentials (user_id, password_hash, updated_at) VALUES (?, ?, ?)`),
		userID, hash, now.UTC())
	return errors.WithStack(err)
}

// Hash returns the stored hash or a NotFound error.
func (r *Credentials) Hash(ctx context.Context, userID string) (string, error) {
	var hash string
	err := r.db.GetContext(ctx, &hash, r.db.Rebind(`SELECT password_hash FROM credentials WHERE user_id = ?`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.New(apperr.KindNotFound, "credentials not found")
	}
	return hash, errors.WithStack(err)
}

// RefreshToken is a persisted refresh token.
type RefreshToken struct {
	Token     string    `db:"token"`
	UserID    string    `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
	Revoked   bool      `db:"revoked"`
	CreatedAt time.Time `db:"created_at"`
}

// RefreshTokens stores issued refresh tokens for rotation checks.
type RefreshTokens struct {
	db DBTX
}

// NewRefreshTokens creates a repo.
func NewRefreshTokens(db DBTX) *RefreshTokens { return &RefreshTokens{db: db} }

// Save stores a refresh token.
func (r *RefreshTokens) Save(ctx context.Context, t RefreshToken) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO refresh_tokens (token, user_id, expires_at, revoked, created_at)
		VALUES (?, ?, ?, ?, ?)
	`), t.Token, t.UserID, t.ExpiresAt.UTC(), t.Revoked, t.CreatedAt.UTC())
	return errors.WithStack(err)
}

// Get returns a token row or a NotFound error.
func (r *RefreshTokens) Get(ctx context.Context, token string) (RefreshToken, error) {
	var t RefreshToken
	err := r.db.GetContext(ctx, &t, r.db.Rebind(`
		SELECT token, user_id, expires_at, revoked, created_at
		FROM refresh_tokens WHERE token = ?
	`), token)
	if errors.Is(err, sql.ErrNoRows) {
		return RefreshToken{}, apperr.New(apperr.KindNotFound, "refresh token not found")
	}
	return t, errors.WithStack(err)
}

// Revoke marks a token revoked and reports whether it was live before.
func (r *RefreshTokens) Revoke(ctx context.Context, token string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE refresh_tokens SET revoked = ? WHERE token = ? AND revoked = ?`), true, token, false)
	if err != nil {
		return false, errors.WithStack(err)
	}
	n, err := res.RowsAffected()
	return n > 0, errors.WithStack(err)
}
