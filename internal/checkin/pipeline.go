// Package checkin turns a captured photo into a stored object plus one
// attendance record. Upload always completes before the record is written.
package checkin

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/volatiletech/null/v8"

	"photoattend/internal/apperr"
	"photoattend/internal/attendance"
	"photoattend/internal/capture"
	"photoattend/internal/storage"
)

// State of a Pipeline.
type State int

const (
	Idle State = iota
	Captured
	Uploading
	RecordWriting
	Done
	Failed
)

var stateNames = [...]string{"idle", "captured", "uploading", "record_writing", "done", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Uploader stores the photo and resolves its public URL. storage.Bucket satisfies it.
type Uploader interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) error
	PublicURL(key string) string
}

// RecordWriter inserts the metadata record. attendance.Service satisfies it.
type RecordWriter interface {
	CreateRecord(ctx context.Context, in attendance.NewRecord) (attendance.Record, error)
}

// Pipeline drives one user's check-in: Idle -> Captured -> Uploading -> RecordWriting -> Done,
// with Failed reachable from Uploading and RecordWriting.
type Pipeline struct {
	userID   string
	uploader Uploader
	writer   RecordWriter

	now      func() time.Time
	refresh  func(ctx context.Context) error
	status   string
	observer func(from, to State)

	mu       sync.Mutex
	state    State
	photo    *capture.Photo
	note     string
	location string
	err      error
	lastKey  int64
}

// Option tunes a Pipeline.
type Option func(*Pipeline)

// WithClock replaces time.Now for key naming.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithRefresh runs fn after a successful submission, typically a history re-fetch.
func WithRefresh(fn func(ctx context.Context) error) Option {
	return func(p *Pipeline) { p.refresh = fn }
}

// WithStatus overrides the status written to the record.
func WithStatus(status string) Option {
	return func(p *Pipeline) {
		if status != "" {
			p.status = status
		}
	}
}

// WithObserver is called on every state transition.
func WithObserver(fn func(from, to State)) Option {
	return func(p *Pipeline) { p.observer = fn }
}

// New creates an idle pipeline for userID.
func New(userID string, uploader Uploader, writer RecordWriter, opts ...Option) *Pipeline {
	p := &Pipeline{
		userID:   userID,
		uploader: uploader,
		writer:   writer,
		now:      time.Now,
		status:   attendance.StatusPresent,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// transition must be called with mu held.
func (p *Pipeline) transition(to State) {
	from := p.state
	p.state = to
	if p.observer != nil && from != to {
		p.observer(from, to)
	}
}

func (p *Pipeline) busy() bool {
	return p.state == Uploading || p.state == RecordWriting
}

// Capture stores a photo to submit, replacing any earlier one.
func (p *Pipeline) Capture(photo *capture.Photo) error {
	if photo == nil || len(photo.Data) == 0 {
		return apperr.New(apperr.KindMissingPhoto, "Please capture a photo before checking in.")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.busy() {
		return apperr.New(apperr.KindConflict, "a check-in is already being submitted")
	}
	p.photo = photo
	p.err = nil
	p.transition(Captured)
	return nil
}

// Retake discards the captured photo and returns to Idle. No network call is made.
func (p *Pipeline) Retake() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.busy() {
		return apperr.New(apperr.KindConflict, "a check-in is already being submitted")
	}
	p.photo = nil
	p.err = nil
	p.transition(Idle)
	return nil
}

// SetNote sets the optional free-text note.
func (p *Pipeline) SetNote(note string) {
	p.mu.Lock()
	p.note = note
	p.mu.Unlock()
}

// SetLocation sets the optional location label.
func (p *Pipeline) SetLocation(loc string) {
	p.mu.Lock()
	p.location = loc
	p.mu.Unlock()
}

// Submit uploads the photo and writes the record. Without a photo it fails with
// MissingPhoto before any network call. On failure the photo and note are kept
// so the caller can retry; nothing is retried automatically and an uploaded
// object is left in place when the record write fails.
func (p *Pipeline) Submit(ctx context.Context) (attendance.Record, error) {
	p.mu.Lock()
	if p.busy() {
		p.mu.Unlock()
		return attendance.Record{}, apperr.New(apperr.KindConflict, "a check-in is already being submitted")
	}
	if p.photo == nil {
		p.mu.Unlock()
		return attendance.Record{}, apperr.New(apperr.KindMissingPhoto, "Please capture a photo before checking in.")
	}
	photo, note, location := p.photo, p.note, p.location
	key := p.nextKey()
	p.err = nil
	p.transition(Uploading)
	p.mu.Unlock()

	log := slog.With("user_id", p.userID, "key", key)
	log.Debug("uploading check-in photo", "bytes", len(photo.Data))
	if err := p.uploader.Upload(ctx, key, bytes.NewReader(photo.Blob()), photo.ContentType); err != nil {
		log.Warn("check-in upload failed", "err", err)
		return attendance.Record{}, p.fail(apperr.Wrap(apperr.KindUploadFailed, err))
	}
	url := p.uploader.PublicURL(key)

	p.mu.Lock()
	p.transition(RecordWriting)
	p.mu.Unlock()

	rec, err := p.writer.CreateRecord(ctx, attendance.NewRecord{
		UserID:   p.userID,
		PhotoURL: url,
		PhotoKey: key,
		Notes:    optional(note),
		Location: optional(location),
		Status:   p.status,
	})
	if err != nil {
		log.Warn("check-in record write failed, uploaded photo left in place", "err", err)
		return attendance.Record{}, p.fail(apperr.Wrap(apperr.KindRecordWriteFailed, err))
	}

	p.mu.Lock()
	p.photo = nil
	p.note = ""
	p.transition(Done)
	p.mu.Unlock()
	log.Info("check-in recorded", "record_id", rec.ID)

	if p.refresh != nil {
		if err := p.refresh(ctx); err != nil {
			log.Warn("history refresh failed", "err", err)
		}
	}
	return rec, nil
}

func (p *Pipeline) fail(err *apperr.Error) error {
	p.mu.Lock()
	p.err = err
	p.transition(Failed)
	p.mu.Unlock()
	return err
}

// nextKey never hands out the same millisecond twice; mu must be held.
func (p *Pipeline) nextKey() string {
	ms := p.now().UnixMilli()
	if ms <= p.lastKey {
		ms = p.lastKey + 1
	}
	p.lastKey = ms
	return storage.ObjectKey(p.userID, time.UnixMilli(ms))
}

func optional(s string) null.String {
	if strings.TrimSpace(s) == "" {
		return null.String{}
	}
	return null.StringFrom(s)
}

// State returns the current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Photo returns the captured photo, nil when none is held.
func (p *Pipeline) Photo() *capture.Photo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.photo
}

// Note returns the pending note.
func (p *Pipeline) Note() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.note
}

// Err returns the error of the last failed submission.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}
