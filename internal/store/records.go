package store

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"photoattend/internal/attendance"
)

const recordColumns = "id, user_id, check_in_time, photo_url, location, notes, status, created_at"

// Records persists attendance records. Records are append-only.
type Records struct {
	db DBTX
}

var _ attendance.RecordRepository = (*Records)(nil)

// NewRecords creates a repo.
func NewRecords(db DBTX) *Records { return &Records{db: db} }

// Insert writes a new record. Times are stored in UTC.
func (r *Records) Insert(ctx context.Context, rec attendance.Record) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO attendance_records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), rec.ID, rec.UserID, rec.CheckInTime.UTC(), rec.PhotoURL, rec.Location, rec.Notes, rec.Status, rec.CreatedAt.UTC())
	return errors.WithStack(err)
}

// Get returns a single record by id.
func (r *Records) Get(ctx context.Context, id string) (attendance.Record, error) {
	var rec attendance.Record
	err := r.db.GetContext(ctx, &rec, r.db.Rebind(`SELECT `+recordColumns+` FROM attendance_records WHERE id = ?`), id)
	return rec, errors.WithStack(err)
}

// ListByUser returns one user's records, newest first.
func (r *Records) ListByUser(ctx context.Context, userID string, page attendance.Page) ([]attendance.Record, error) {
	clauses := []string{"user_id = ?"}
	args := []any{userID}
	if page.Before != nil {
		clauses = append(clauses, "(check_in_time < ? OR (check_in_time = ? AND id < ?))")
		args = append(args, cursorArgs(page.Before)...)
	}
	query := `SELECT ` + recordColumns + ` FROM attendance_records WHERE ` + strings.Join(clauses, " AND ") +
		` ORDER BY check_in_time DESC, id DESC LIMIT ?`
	args = append(args, limitOrDefault(page.Limit))

	var out []attendance.Record
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(query), args...)
	return out, errors.WithStack(err)
}

type recordProfileRow struct {
	attendance.Record
	ProfileID       null.String `db:"profile_id"`
	ProfileEmail    null.String `db:"profile_email"`
	ProfileFullName null.String `db:"profile_full_name"`
}

// ListWithProfiles returns all records joined to their owner's profile, newest first.
// Records whose profile is gone come back with a nil Profile.
func (r *Records) ListWithProfiles(ctx context.Context, page attendance.Page) ([]attendance.RecordWithProfile, error) {
	query := `
		SELECT r.id, r.user_id, r.check_in_time, r.photo_url, r.location, r.notes, r.status, r.created_at,
		       p.id AS profile_id, p.email AS profile_email, p.full_name AS profile_full_name
		FROM attendance_records r
		LEFT JOIN profiles p ON p.id = r.user_id`
	var args []any
	if page.Before != nil {
		query += ` WHERE (r.check_in_time < ? OR (r.check_in_time = ? AND r.id < ?))`
		args = append(args, cursorArgs(page.Before)...)
	}
	query += ` ORDER BY r.check_in_time DESC, r.id DESC LIMIT ?`
	args = append(args, limitOrDefault(page.Limit))

	var rows []recordProfileRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, errors.WithStack(err)
	}
	out := make([]attendance.RecordWithProfile, 0, len(rows))
	for _, row := range rows {
		item := attendance.RecordWithProfile{Record: row.Record}
		if row.ProfileID.Valid {
			item.Profile = &attendance.ProfileRef{
				ID:       row.ProfileID.String,
				Email:    row.ProfileEmail.String,
				FullName: row.ProfileFullName,
			}
		}
		out = append(out, item)
	}
	return out, nil
}

// Count returns the number of records.
func (r *Records) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM attendance_records`)
	return n, errors.WithStack(err)
}

// CountSince counts records with check_in_time at or after since.
func (r *Records) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM attendance_records WHERE check_in_time >= ?`), since.UTC())
	return n, errors.WithStack(err)
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}

// cursorArgs binds a keyset cursor. An empty id matches nothing at the same instant.
func cursorArgs(c *attendance.Cursor) []any {
	at := c.At.UTC().Truncate(time.Microsecond)
	return []any{at, at, c.ID}
}
