package attendance

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"photoattend/internal/apperr"
)

type fakeProfiles struct {
	items []Profile
	err   error
}

func (f *fakeProfiles) Count(context.Context) (int64, error) { return int64(len(f.items)), f.err }
func (f *fakeProfiles) List(context.Context) ([]Profile, error) { return f.items, f.err }
func (f *fakeProfiles) Get(_ context.Context, id string) (Profile, error) {
	if f.err != nil {
		return Profile{}, f.err
	}
	for _, p := range f.items {
		if p.ID == id {
			return p, nil
		}
	}
	return Profile{}, apperr.New(apperr.KindNotFound, "profile not found")
}

type fakeRoles struct {
	rows   []RoleAssignment
	setErr error
}

func (f *fakeRoles) Lookup(_ context.Context, userID string) (Role, error) {
	for _, r := range f.rows {
		if r.UserID == userID {
			return r.Role, nil
		}
	}
	return RoleUser, nil
}

func (f *fakeRoles) Effective(context.Context) (map[string]Role, error) {
	out := map[string]Role{}
	for _, r := range f.rows {
		if _, ok := out[r.UserID]; !ok {
			out[r.UserID] = r.Role
		}
	}
	return out, nil
}

func (f *fakeRoles) SetAll(_ context.Context, userID string, role Role) (int64, error) {
	if f.setErr != nil {
		return 0, f.setErr
	}
	var n int64
	for i := range f.rows {
		if f.rows[i].UserID == userID {
			f.rows[i].Role = role
			n++
		}
	}
	return n, nil
}

func (f *fakeRoles) Assign(_ context.Context, a RoleAssignment) error {
	f.rows = append(f.rows, a)
	return nil
}

type fakeRecords struct {
	items     []Record
	insertErr error
}

func (f *fakeRecords) Insert(_ context.Context, rec Record) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.items = append(f.items, rec)
	return nil
}

// sortsAfter reports whether r comes after c in newest-first order.
func sortsAfter(r Record, c Cursor) bool {
	return r.CheckInTime.Before(c.At) || (r.CheckInTime.Equal(c.At) && r.ID < c.ID)
}

func (f *fakeRecords) sorted(keep func(Record) bool, page Page) []Record {
	var out []Record
	for _, r := range f.items {
		if keep(r) && (page.Before == nil || sortsAfter(r, *page.Before)) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return sortsAfter(out[j], *CursorAfter(out[i])) })
	if len(out) > page.Limit {
		out = out[:page.Limit]
	}
	return out
}

func (f *fakeRecords) ListByUser(_ context.Context, userID string, page Page) ([]Record, error) {
	return f.sorted(func(r Record) bool { return r.UserID == userID }, page), nil
}

func (f *fakeRecords) ListWithProfiles(_ context.Context, page Page) ([]RecordWithProfile, error) {
	var out []RecordWithProfile
	for _, r := range f.sorted(func(Record) bool { return true }, page) {
		out = append(out, RecordWithProfile{Record: r})
	}
	return out, nil
}

func (f *fakeRecords) Count(context.Context) (int64, error) { return int64(len(f.items)), nil }

func (f *fakeRecords) CountSince(_ context.Context, since time.Time) (int64, error) {
	var n int64
	for _, r := range f.items {
		if !r.CheckInTime.Before(since) {
			n++
		}
	}
	return n, nil
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestStatsCountsFromLocalMidnight(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, loc)

	profiles := &fakeProfiles{items: []Profile{{ID: "a"}, {ID: "b"}}}
	records := &fakeRecords{items: []Record{
		{ID: "1", UserID: "b", CheckInTime: now.Add(-time.Hour)},
		// 23:30 UTC on the 9th is 01:30 local on the 10th
		{ID: "2", UserID: "b", CheckInTime: time.Date(2026, 3, 9, 23, 30, 0, 0, time.UTC)},
		{ID: "3", UserID: "b", CheckInTime: now.Add(-24 * time.Hour)},
	}}
	svc := NewService(profiles, &fakeRoles{}, records, WithLocation(loc), WithClock(fixedClock(now)))

	st, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{TotalUsers: 2, TodayCheckIns: 2, TotalCheckIns: 3}, st)
}

func TestStatsEmptyStore(t *testing.T) {
	svc := NewService(&fakeProfiles{}, &fakeRoles{}, &fakeRecords{})
	st, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)
}

func TestStatsQueryFailure(t *testing.T) {
	svc := NewService(&fakeProfiles{err: errors.New("connection refused")}, &fakeRoles{}, &fakeRecords{})
	_, err := svc.Stats(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperr.KindQueryFailed, apperr.KindOf(err))
	assert.Equal(t, "connection refused", err.Error())
}

func TestMyHistoryPaging(t *testing.T) {
	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	records := &fakeRecords{}
	for i := 0; i < 12; i++ {
		records.items = append(records.items, Record{ID: string(rune('a' + i)), UserID: "u", CheckInTime: base.Add(time.Duration(i) * time.Minute)})
	}
	records.items = append(records.items, Record{ID: "other", UserID: "v", CheckInTime: base.Add(time.Hour)})
	svc := NewService(&fakeProfiles{}, &fakeRoles{}, records)

	first, err := svc.MyHistory(context.Background(), "u", nil)
	require.NoError(t, err)
	require.Len(t, first.Records, 10)
	assert.Equal(t, "l", first.Records[0].ID)
	require.NotNil(t, first.NextCursor)

	second, err := svc.MyHistory(context.Background(), "u", first.NextCursor)
	require.NoError(t, err)
	require.Len(t, second.Records, 2)
	assert.Equal(t, "b", second.Records[0].ID)
	assert.Nil(t, second.NextCursor)
}

func TestMyHistoryPagingTiedTimes(t *testing.T) {
	at := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	records := &fakeRecords{}
	for i := 0; i < 11; i++ {
		records.items = append(records.items, Record{ID: string(rune('a' + i)), UserID: "u", CheckInTime: at})
	}
	svc := NewService(&fakeProfiles{}, &fakeRoles{}, records)

	first, err := svc.MyHistory(context.Background(), "u", nil)
	require.NoError(t, err)
	require.Len(t, first.Records, 10)
	require.NotNil(t, first.NextCursor)
	assert.Equal(t, Cursor{At: at, ID: "b"}, *first.NextCursor)

	second, err := svc.MyHistory(context.Background(), "u", first.NextCursor)
	require.NoError(t, err)
	require.Len(t, second.Records, 1)
	assert.Equal(t, "a", second.Records[0].ID)
}

func TestParseCursor(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 890000000, time.UTC)
	c := Cursor{At: at, ID: "r-1"}
	got, err := ParseCursor(c.String())
	require.NoError(t, err)
	assert.True(t, got.At.Equal(at))
	assert.Equal(t, "r-1", got.ID)

	bare, err := ParseCursor("2026-03-04T05:06:07Z")
	require.NoError(t, err)
	assert.Empty(t, bare.ID)

	_, err = ParseCursor("yesterday")
	assert.Error(t, err)
}

func TestMyHistoryEmpty(t *testing.T) {
	svc := NewService(&fakeProfiles{}, &fakeRoles{}, &fakeRecords{})
	page, err := svc.MyHistory(context.Background(), "nobody", nil)
	require.NoError(t, err)
	assert.NotNil(t, page.Records)
	assert.Empty(t, page.Records)
}

func TestUsersDefaultsToUserRole(t *testing.T) {
	profiles := &fakeProfiles{items: []Profile{{ID: "a"}, {ID: "b"}}}
	roles := &fakeRoles{rows: []RoleAssignment{{UserID: "a", Role: RoleAdmin}}}
	svc := NewService(profiles, roles, &fakeRecords{})

	users, err := svc.Users(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, RoleAdmin, users[0].Role)
	assert.Equal(t, RoleUser, users[1].Role)
}

func TestToggleRole(t *testing.T) {
	profiles := &fakeProfiles{items: []Profile{{ID: "a"}, {ID: "b"}}}
	roles := &fakeRoles{rows: []RoleAssignment{{UserID: "a", Role: RoleAdmin}}}
	svc := NewService(profiles, roles, &fakeRecords{})
	ctx := context.Background()

	got, err := svc.ToggleRole(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, RoleUser, got)

	got, err = svc.ToggleRole(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, got)

	// b has no assignment yet, so one is created
	got, err = svc.ToggleRole(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, got)
	assert.Len(t, roles.rows, 2)
}

func TestToggleRoleErrors(t *testing.T) {
	profiles := &fakeProfiles{items: []Profile{{ID: "a"}}}
	svc := NewService(profiles, &fakeRoles{setErr: errors.New("permission denied for table user_roles")}, &fakeRecords{})

	_, err := svc.ToggleRole(context.Background(), "a")
	require.Error(t, err)
	assert.Equal(t, apperr.KindRoleUpdateFailed, apperr.KindOf(err))
	assert.Equal(t, "permission denied for table user_roles", err.Error())

	_, err = svc.ToggleRole(context.Background(), "ghost")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestCreateRecord(t *testing.T) {
	now := time.Date(2026, 5, 1, 7, 30, 0, 0, time.UTC)
	records := &fakeRecords{}
	svc := NewService(&fakeProfiles{}, &fakeRoles{}, records, WithClock(fixedClock(now)))

	rec, err := svc.CreateRecord(context.Background(), NewRecord{
		UserID:   "u",
		PhotoURL: "http://x/u/1.jpg",
		Notes:    null.StringFrom("   "),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPresent, rec.Status)
	assert.False(t, rec.Notes.Valid)
	assert.Equal(t, now, rec.CheckInTime)
	assert.NotEmpty(t, rec.ID)
	assert.Len(t, records.items, 1)

	_, err = svc.CreateRecord(context.Background(), NewRecord{UserID: "u"})
	assert.Equal(t, apperr.KindMissingPhoto, apperr.KindOf(err))

	records.insertErr = errors.New("new row violates row-level security policy")
	_, err = svc.CreateRecord(context.Background(), NewRecord{UserID: "u", PhotoURL: "p"})
	assert.Equal(t, apperr.KindRecordWriteFailed, apperr.KindOf(err))
	assert.Equal(t, "new row violates row-level security policy", err.Error())
}

func TestRoleHelpers(t *testing.T) {
	assert.Equal(t, RoleUser, RoleAdmin.Flip())
	assert.Equal(t, RoleAdmin, RoleUser.Flip())
	assert.Equal(t, "/admin", RoleAdmin.Home())
	assert.Equal(t, "/dashboard", RoleUser.Home())
	_, err := ParseRole("root")
	assert.Error(t, err)
}
