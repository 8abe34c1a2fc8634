package capture

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"photoattend/internal/apperr"
)

// DefaultQuality is the JPEG quality used when none is given.
const DefaultQuality = 92

const jpegType = "image/jpeg"

// Photo is an encoded still.
type Photo struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
	TakenAt     time.Time
}

// Snapshot draws one frame of an active session into an off-screen raster of
// the frame's native size, encodes it as JPEG and stops the session.
// If no frame has decoded yet it fails with SourceNotReady and leaves the session running.
func Snapshot(s *Session, quality int) (*Photo, error) {
	if s == nil || s.State() != Active {
		return nil, apperr.New(apperr.KindSourceNotReady, MsgSourceNotReady)
	}
	frame := s.Frame()
	if frame == nil || frame.Bounds().Dx() <= 0 || frame.Bounds().Dy() <= 0 {
		return nil, apperr.New(apperr.KindSourceNotReady, MsgSourceNotReady)
	}

	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	b := frame.Bounds()
	raster := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(raster, raster.Bounds(), frame, b.Min, draw.Src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, raster, &jpeg.Options{Quality: quality}); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err)
	}
	s.Stop()

	return &Photo{
		Data:        buf.Bytes(),
		ContentType: jpegType,
		Width:       b.Dx(),
		Height:      b.Dy(),
		TakenAt:     time.Now(),
	}, nil
}

// Blob returns the binary payload.
func (p *Photo) Blob() []byte { return p.Data }

// DataURL renders the photo as data:<type>;base64,<payload>.
func (p *Photo) DataURL() string {
	return "data:" + p.ContentType + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

// ParseDataURL decodes a base64 image data URL into a JPEG photo.
func ParseDataURL(s string) (*Photo, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, apperr.New(apperr.KindInvalidArgument, "photo must be a data URL")
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return nil, apperr.New(apperr.KindInvalidArgument, "photo data URL must be base64 encoded")
	}
	contentType := strings.TrimSuffix(header, ";base64")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, apperr.Newf(apperr.KindInvalidArgument, "unsupported photo type %q", contentType)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, apperr.New(apperr.KindInvalidArgument, "photo data URL is not valid base64")
	}
	return Decode(data, contentType)
}

// Decode wraps raw image bytes as a JPEG photo. JPEG input is kept as is;
// any other readable format is flattened onto white and re-encoded at
// DefaultQuality. The declared content type is not trusted.
func Decode(data []byte, _ string) (*Photo, error) {
	if len(data) == 0 {
		return nil, apperr.New(apperr.KindMissingPhoto, "Please capture a photo before checking in.")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Newf(apperr.KindInvalidArgument, "photo is not a readable image: %v", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, apperr.New(apperr.KindInvalidArgument, "photo has no pixels")
	}
	if format != "jpeg" {
		if data, err = reencode(data); err != nil {
			return nil, err
		}
	}
	return &Photo{
		Data:        data,
		ContentType: jpegType,
		Width:       cfg.Width,
		Height:      cfg.Height,
		TakenAt:     time.Now(),
	}, nil
}

func reencode(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Newf(apperr.KindInvalidArgument, "photo is not a readable image: %v", err)
	}
	b := src.Bounds()
	raster := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(raster, raster.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(raster, raster.Bounds(), src, b.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, raster, &jpeg.Options{Quality: DefaultQuality}); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err)
	}
	return buf.Bytes(), nil
}
