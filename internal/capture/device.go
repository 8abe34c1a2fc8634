package capture

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

type mediaTrack struct {
	kind    string
	stopped atomic.Bool
}

func newTrack(kind string) *mediaTrack { return &mediaTrack{kind: kind} }

func (t *mediaTrack) Kind() string  { return t.kind }
func (t *mediaTrack) Stop()         { t.stopped.Store(true) }
func (t *mediaTrack) Stopped() bool { return t.stopped.Load() }

// SyntheticDevice generates a moving test pattern. Frames appear once WarmUp has
// elapsed, which mimics a camera that needs a moment before the first decode.
type SyntheticDevice struct {
	// Width and Height override the requested resolution when set.
	Width, Height int
	WarmUp        time.Duration
	// Deny and Absent simulate a refused permission prompt and a missing camera.
	Deny   bool
	Absent bool

	mu      sync.Mutex
	streams []*syntheticStream
}

// GetUserMedia opens a new synthetic stream.
func (d *SyntheticDevice) GetUserMedia(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch {
	case d.Deny:
		return nil, ErrNotAllowed
	case d.Absent:
		return nil, ErrNotFound
	}
	w, h := c.Width, c.Height
	if d.Width > 0 && d.Height > 0 {
		w, h = d.Width, d.Height
	}
	if w <= 0 || h <= 0 {
		w, h = DefaultConstraints.Width, DefaultConstraints.Height
	}
	s := &syntheticStream{
		width:   w,
		height:  h,
		readyAt: time.Now().Add(d.WarmUp),
		video:   newTrack("video"),
	}
	d.mu.Lock()
	d.streams = append(d.streams, s)
	d.mu.Unlock()
	return s, nil
}

// OpenStreams counts streams handed out whose tracks are still running.
func (d *SyntheticDevice) OpenStreams() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, s := range d.streams {
		if !s.video.Stopped() {
			n++
		}
	}
	return n
}

type syntheticStream struct {
	width, height int
	readyAt       time.Time
	video         *mediaTrack
	seq           atomic.Uint64
}

func (s *syntheticStream) Tracks() []Track { return []Track{s.video} }

func (s *syntheticStream) Frame() image.Image {
	if s.video.Stopped() || time.Now().Before(s.readyAt) {
		return nil
	}
	return testPattern(s.width, s.height, s.seq.Add(1))
}

var bars = []color.RGBA{
	{192, 192, 192, 255}, {192, 192, 0, 255}, {0, 192, 192, 255}, {0, 192, 0, 255},
	{192, 0, 192, 255}, {192, 0, 0, 255}, {0, 0, 192, 255},
}

// testPattern draws color bars with a white band that moves with seq.
func testPattern(w, h int, seq uint64) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	band := int(seq*4) % w
	for x := 0; x < w; x++ {
		c := bars[x*len(bars)/w]
		if x >= band && x < band+8 {
			c = color.RGBA{255, 255, 255, 255}
		}
		for y := 0; y < h; y++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// StillDevice serves one image as a virtual camera.
type StillDevice struct {
	img image.Image
}

// NewStillDevice wraps an already decoded image.
func NewStillDevice(img image.Image) *StillDevice { return &StillDevice{img: img} }

// OpenStillDevice loads a JPEG or PNG file.
func OpenStillDevice(path string) (*StillDevice, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("capture: open still %s: %w", path, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("capture: decode still %s: %w", path, err)
	}
	return &StillDevice{img: img}, nil
}

func (d *StillDevice) GetUserMedia(ctx context.Context, _ Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.img == nil {
		return nil, ErrNotFound
	}
	return &stillStream{img: d.img, video: newTrack("video")}, nil
}

type stillStream struct {
	img   image.Image
	video *mediaTrack
}

func (s *stillStream) Tracks() []Track { return []Track{s.video} }

func (s *stillStream) Frame() image.Image {
	if s.video.Stopped() {
		return nil
	}
	return s.img
}
