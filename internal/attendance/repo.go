package attendance

import (
	"context"
	"time"
)

// ProfileRepository reads identity records.
type ProfileRepository interface {
	Count(ctx context.Context) (int64, error)
	List(ctx context.Context) ([]Profile, error)
	Get(ctx context.Context, id string) (Profile, error)
}

// RoleRepository reads and writes role assignments.
type RoleRepository interface {
	// Lookup returns the user's first assignment by creation time, or RoleUser when none exists.
	Lookup(ctx context.Context, userID string) (Role, error)
	// Effective returns the effective role of every user that has at least one assignment.
	Effective(ctx context.Context) (map[string]Role, error)
	// SetAll rewrites every assignment of userID and reports how many rows changed.
	SetAll(ctx context.Context, userID string, role Role) (int64, error)
	Assign(ctx context.Context, a RoleAssignment) error
}

// RecordRepository persists attendance records.
type RecordRepository interface {
	Insert(ctx context.Context, rec Record) error
	ListByUser(ctx context.Context, userID string, page Page) ([]Record, error)
	ListWithProfiles(ctx context.Context, page Page) ([]RecordWithProfile, error)
	Count(ctx context.Context) (int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
}
