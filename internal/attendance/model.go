package attendance

import (
	"fmt"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"
)

// StatusPresent is the only status the check-in flow writes.
const StatusPresent = "present"

// Role is the permission label attached to an identity.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool { return r == RoleAdmin || r == RoleUser }

// Flip returns the other role. Anything that is not admin flips to admin.
func (r Role) Flip() Role {
	if r == RoleAdmin {
		return RoleUser
	}
	return RoleAdmin
}

// Home is the landing route for the role.
func (r Role) Home() string {
	if r == RoleAdmin {
		return "/admin"
	}
	return "/dashboard"
}

// ParseRole validates a role string.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Profile is the identity record.
type Profile struct {
	ID        string      `db:"id" json:"id"`
	Email     string      `db:"email" json:"email"`
	FullName  null.String `db:"full_name" json:"full_name"`
	AvatarURL null.String `db:"avatar_url" json:"avatar_url"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`
}

// RoleAssignment attaches a role to a profile.
type RoleAssignment struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Role      Role      `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Record is one attendance check-in. Records are never updated or deleted.
type Record struct {
	ID          string      `db:"id" json:"id"`
	UserID      string      `db:"user_id" json:"user_id"`
	CheckInTime time.Time   `db:"check_in_time" json:"check_in_time"`
	PhotoURL    string      `db:"photo_url" json:"photo_url"`
	Location    null.String `db:"location" json:"location"`
	Notes       null.String `db:"notes" json:"notes"`
	Status      string      `db:"status" json:"status"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
}

// NewRecord is the input for a record insert.
type NewRecord struct {
	UserID      string
	PhotoURL    string
	Notes       null.String
	Location    null.String
	Status      string
	CheckInTime time.Time

	// PhotoKey is the bucket key behind PhotoURL. It is not stored.
	PhotoKey string
}

// ProfileRef is the slice of a profile joined onto admin record listings.
type ProfileRef struct {
	ID       string      `json:"id"`
	Email    string      `json:"email"`
	FullName null.String `json:"full_name"`
}

// RecordWithProfile is a record plus its owner, when the owner still exists.
type RecordWithProfile struct {
	Record
	Profile *ProfileRef `json:"profile"`
}

// UserWithRole is a profile and its effective role.
type UserWithRole struct {
	Profile
	Role Role `json:"role"`
}

// Stats are the administrator aggregate counts.
type Stats struct {
	TotalUsers    int64 `json:"total_users"`
	TodayCheckIns int64 `json:"today_check_ins"`
	TotalCheckIns int64 `json:"total_check_ins"`
}

// Cursor is the position after the last entry of a page. Listings sort by
// check-in time then id, both descending, so the pair is unique.
type Cursor struct {
	At time.Time
	ID string
}

// CursorAfter returns the cursor that continues past rec.
func CursorAfter(rec Record) *Cursor {
	return &Cursor{At: rec.CheckInTime, ID: rec.ID}
}

// String renders "<RFC 3339 time>,<id>".
func (c Cursor) String() string {
	return c.At.UTC().Format(time.RFC3339Nano) + "," + c.ID
}

func (c Cursor) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Cursor) UnmarshalText(b []byte) error {
	parsed, err := ParseCursor(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCursor reads the String form. A bare timestamp is accepted and means
// everything strictly older than it.
func ParseCursor(raw string) (Cursor, error) {
	at, id, _ := strings.Cut(raw, ",")
	t, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return Cursor{}, fmt.Errorf("cursor %q: %w", raw, err)
	}
	return Cursor{At: t, ID: id}, nil
}

// Page bounds a listing. Before, when set, returns only entries that sort after it.
type Page struct {
	Limit  int
	Before *Cursor
}

// RecordPage is one page of a personal history.
type RecordPage struct {
	Records    []Record `json:"records"`
	NextCursor *Cursor  `json:"next_cursor"`
}

// AdminRecordPage is one page of the administrator listing.
type AdminRecordPage struct {
	Records    []RecordWithProfile `json:"records"`
	NextCursor *Cursor             `json:"next_cursor"`
}
