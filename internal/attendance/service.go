package attendance

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"photoattend/internal/apperr"
)

const (
	defaultHistoryLimit = 10
	defaultAdminLimit   = 50
)

// Service answers the history, administrator and role queries.
type Service struct {
	profiles ProfileRepository
	roles    RoleRepository
	records  RecordRepository

	loc          *time.Location
	now          func() time.Time
	newID        func() string
	historyLimit int
	adminLimit   int
}

// Option tunes a Service.
type Option func(*Service)

// WithLocation sets the timezone whose midnight starts "today".
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPageSizes overrides the personal and administrator page sizes.
func WithPageSizes(history, admin int) Option {
	return func(s *Service) {
		if history > 0 {
			s.historyLimit = history
		}
		if admin > 0 {
			s.adminLimit = admin
		}
	}
}

// NewService creates a service backed by the given repositories.
func NewService(profiles ProfileRepository, roles RoleRepository, records RecordRepository, opts ...Option) *Service {
	s := &Service{
		profiles:     profiles,
		roles:        roles,
		records:      records,
		loc:          time.Local,
		now:          time.Now,
		newID:        uuid.NewString,
		historyLimit: defaultHistoryLimit,
		adminLimit:   defaultAdminLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartOfDay returns local midnight of the day containing t.
func (s *Service) StartOfDay(t time.Time) time.Time {
	t = t.In(s.loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc)
}

// MyHistory returns the caller's own records, newest first.
func (s *Service) MyHistory(ctx context.Context, userID string, before *Cursor) (RecordPage, error) {
	if userID == "" {
		return RecordPage{}, apperr.New(apperr.KindUnauthenticated, "sign in required")
	}
	page := Page{Limit: s.historyLimit, Before: before}
	recs, err := s.records.ListByUser(ctx, userID, page)
	if err != nil {
		return RecordPage{}, apperr.Wrap(apperr.KindQueryFailed, err)
	}
	if recs == nil {
		recs = []Record{}
	}
	out := RecordPage{Records: recs}
	if len(recs) == page.Limit {
		out.NextCursor = CursorAfter(recs[len(recs)-1])
	}
	return out, nil
}

// AllRecords returns every user's records joined to their profile, newest first.
func (s *Service) AllRecords(ctx context.Context, before *Cursor) (AdminRecordPage, error) {
	page := Page{Limit: s.adminLimit, Before: before}
	recs, err := s.records.ListWithProfiles(ctx, page)
	if err != nil {
		return AdminRecordPage{}, apperr.Wrap(apperr.KindQueryFailed, err)
	}
	if recs == nil {
		recs = []RecordWithProfile{}
	}
	out := AdminRecordPage{Records: recs}
	if len(recs) == page.Limit {
		out.NextCursor = CursorAfter(recs[len(recs)-1].Record)
	}
	return out, nil
}

// Users lists profiles with their effective role.
func (s *Service) Users(ctx context.Context) ([]UserWithRole, error) {
	profiles, err := s.profiles.List(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindQueryFailed, err)
	}
	roles, err := s.roles.Effective(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindQueryFailed, err)
	}
	out := make([]UserWithRole, 0, len(profiles))
	for _, p := range profiles {
		role, ok := roles[p.ID]
		if !ok {
			role = RoleUser
		}
		out = append(out, UserWithRole{Profile: p, Role: role})
	}
	return out, nil
}

// Stats counts profiles, records since local midnight and all records.
// The three counts are independent reads and are not a consistent snapshot.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var err error
	if st.TotalUsers, err = s.profiles.Count(ctx); err != nil {
		return Stats{}, apperr.Wrap(apperr.KindQueryFailed, err)
	}
	if st.TodayCheckIns, err = s.records.CountSince(ctx, s.StartOfDay(s.now())); err != nil {
		return Stats{}, apperr.Wrap(apperr.KindQueryFailed, err)
	}
	if st.TotalCheckIns, err = s.records.Count(ctx); err != nil {
		return Stats{}, apperr.Wrap(apperr.KindQueryFailed, err)
	}
	return st, nil
}

// RoleOf returns the user's current effective role.
func (s *Service) RoleOf(ctx context.Context, userID string) (Role, error) {
	role, err := s.roles.Lookup(ctx, userID)
	if err != nil {
		return "", apperr.Wrap(apperr.KindQueryFailed, err)
	}
	return role, nil
}

// Profile returns one profile.
func (s *Service) Profile(ctx context.Context, userID string) (Profile, error) {
	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return Profile{}, err
		}
		return Profile{}, apperr.Wrap(apperr.KindQueryFailed, err)
	}
	return p, nil
}

// ToggleRole flips the user's role between admin and user and returns the new role.
// The current role is read from the store, never from a cached list.
func (s *Service) ToggleRole(ctx context.Context, userID string) (Role, error) {
	if userID == "" {
		return "", apperr.New(apperr.KindInvalidArgument, "user id is required")
	}
	if _, err := s.profiles.Get(ctx, userID); err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return "", err
		}
		return "", apperr.Wrap(apperr.KindRoleUpdateFailed, err)
	}
	current, err := s.roles.Lookup(ctx, userID)
	if err != nil {
		return "", apperr.Wrap(apperr.KindRoleUpdateFailed, err)
	}
	next := current.Flip()

	n, err := s.roles.SetAll(ctx, userID, next)
	if err != nil {
		return "", apperr.Wrap(apperr.KindRoleUpdateFailed, err)
	}
	if n == 0 {
		err = s.roles.Assign(ctx, RoleAssignment{
			ID:        s.newID(),
			UserID:    userID,
			Role:      next,
			CreatedAt: s.now().UTC(),
		})
		if err != nil {
			return "", apperr.Wrap(apperr.KindRoleUpdateFailed, err)
		}
	}
	return next, nil
}

// CreateRecord inserts a check-in record owned by in.UserID.
func (s *Service) CreateRecord(ctx context.Context, in NewRecord) (Record, error) {
	if in.UserID == "" {
		return Record{}, apperr.New(apperr.KindUnauthenticated, "sign in required")
	}
	if strings.TrimSpace(in.PhotoURL) == "" {
		return Record{}, apperr.New(apperr.KindMissingPhoto, "Please capture a photo before checking in.")
	}
	// microseconds is the coarsest precision among the supported databases
	now := s.now().UTC().Truncate(time.Microsecond)
	rec := Record{
		ID:          s.newID(),
		UserID:      in.UserID,
		CheckInTime: in.CheckInTime.UTC().Truncate(time.Microsecond),
		PhotoURL:    in.PhotoURL,
		Location:    blankToNull(in.Location),
		Notes:       blankToNull(in.Notes),
		Status:      in.Status,
		CreatedAt:   now,
	}
	if in.CheckInTime.IsZero() {
		rec.CheckInTime = now
	}
	if rec.Status == "" {
		rec.Status = StatusPresent
	}
	if err := s.records.Insert(ctx, rec); err != nil {
		return Record{}, apperr.Wrap(apperr.KindRecordWriteFailed, err)
	}
	return rec, nil
}

func blankToNull(s null.String) null.String {
	if !s.Valid || strings.TrimSpace(s.String) == "" {
		return null.String{}
	}
	return s
}
