// Package capture acquires a camera stream, renders a live preview and takes
// single-frame JPEG snapshots. A Session is the only handle to an acquired
// stream; it is returned by Start and released by Stop or Close.
package capture

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	"photoattend/internal/apperr"
)

// Errors a Device reports when the stream cannot be acquired.
var (
	ErrNotAllowed = errors.New("NotAllowedError: permission denied")
	ErrNotFound   = errors.New("NotFoundError: requested device not found")
)

const (
	MsgPermissionDenied  = "Camera permission denied. Please allow camera access in your system settings."
	MsgDeviceUnavailable = "Unable to access camera. Please check your device has a camera."
	MsgSourceNotReady    = "Camera is not ready yet. Please wait a moment."
)

// Constraints select the stream to request.
type Constraints struct {
	FacingMode string
	Width      int
	Height     int
	Audio      bool
}

// DefaultConstraints asks for the user-facing camera at 1280x720, no audio.
var DefaultConstraints = Constraints{FacingMode: "user", Width: 1280, Height: 720}

// Track is one media track of a stream.
type Track interface {
	Kind() string
	Stop()
	Stopped() bool
}

// Stream is an acquired media stream.
type Stream interface {
	Tracks() []Track
	// Frame returns the latest decoded frame, or nil before the first one.
	Frame() image.Image
}

// Device is a camera that hands out streams.
type Device interface {
	GetUserMedia(ctx context.Context, c Constraints) (Stream, error)
}

// Surface displays the live preview.
type Surface interface {
	Render(frame image.Image)
}

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc func(image.Image)

func (f SurfaceFunc) Render(frame image.Image) { f(frame) }

// State of a Session.
type State int

const (
	Idle State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}

// Session owns an acquired stream until Stop.
type Session struct {
	stream  Stream
	surface Surface
	every   time.Duration

	mu    sync.Mutex
	state State

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// Option tunes Start.
type Option func(*Session)

// WithPreviewInterval sets how often the preview surface is redrawn.
func WithPreviewInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.every = d
		}
	}
}

// Start requests a stream from dev and begins rendering it to surface.
// Audio is never requested. The session is released by Stop, or when ctx is cancelled.
func Start(ctx context.Context, dev Device, c Constraints, surface Surface, opts ...Option) (*Session, error) {
	c.Audio = false
	stream, err := dev.GetUserMedia(ctx, c)
	if err != nil {
		slog.Warn("camera start failed", "err", err)
		return nil, deviceError(err)
	}

	s := &Session{
		stream:  stream,
		surface: surface,
		every:   33 * time.Millisecond,
		state:   Active,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.preview(ctx)

	slog.Info("camera started", "facing", c.FacingMode, "width", c.Width, "height", c.Height)
	return s, nil
}

func deviceError(err error) error {
	if errors.Is(err, ErrNotAllowed) {
		return &apperr.Error{Kind: apperr.KindPermissionDenied, Message: MsgPermissionDenied, Err: err}
	}
	return &apperr.Error{Kind: apperr.KindDeviceUnavailable, Message: MsgDeviceUnavailable, Err: err}
}

func (s *Session) preview(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.every)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			s.release()
			return
		case <-ticker.C:
			if s.surface == nil {
				continue
			}
			if frame := s.stream.Frame(); frame != nil {
				s.surface.Render(frame)
			}
		}
	}
}

// Stop ends the preview and stops every track. Safe to call more than once and concurrently.
func (s *Session) Stop() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.done
	s.release()
}

// Close is Stop, for defer.
func (s *Session) Close() error {
	s.Stop()
	return nil
}

func (s *Session) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Idle {
		return
	}
	for _, t := range s.stream.Tracks() {
		t.Stop()
	}
	s.state = Idle
	slog.Info("camera stopped")
}

// State reports whether the session still holds the stream.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stream returns the underlying stream.
func (s *Session) Stream() Stream { return s.stream }

// Frame returns the latest frame while active, nil otherwise.
func (s *Session) Frame() image.Image {
	if s.State() != Active {
		return nil
	}
	return s.stream.Frame()
}
