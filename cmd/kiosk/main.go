// Command kiosk captures a photo from a camera and checks the signed-in user in
// through the API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/term"

	"photoattend/internal/apiclient"
	"photoattend/internal/apperr"
	"photoattend/internal/capture"
	"photoattend/internal/checkin"
	"photoattend/internal/logging"
)

var readPasswordFunc = term.ReadPassword // mockable

type options struct {
	apiURL   string
	bucket   string
	email    string
	password string
	device   string
	image    string
	note     string
	location string
	quality  int
	wait     time.Duration
	history  bool
}

func main() {
	var o options
	flag.StringVar(&o.apiURL, "api", "http://localhost:8081", "API base URL")
	flag.StringVar(&o.bucket, "bucket", "attendance-photos", "storage bucket")
	flag.StringVar(&o.email, "email", "", "account email")
	flag.StringVar(&o.device, "device", "synthetic", "capture device: synthetic or still")
	flag.StringVar(&o.image, "image", "", "image file served by the still device")
	flag.StringVar(&o.note, "note", "", "optional note")
	flag.StringVar(&o.location, "location", "", "optional location label")
	flag.IntVar(&o.quality, "quality", capture.DefaultQuality, "JPEG quality")
	flag.DurationVar(&o.wait, "wait", 5*time.Second, "how long to wait for the camera's first frame")
	flag.BoolVar(&o.history, "history", false, "print recent check-ins and exit")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	logging.Setup(*logLevel, "text", "kiosk")

	if o.email == "" {
		flag.Usage()
		os.Exit(2)
	}
	o.password = os.Getenv("ATTEND_KIOSK_PASSWORD")
	if o.password == "" {
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		o.password = string(pwd)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func openDevice(o options) (capture.Device, error) {
	switch o.device {
	case "synthetic":
		return &capture.SyntheticDevice{WarmUp: 300 * time.Millisecond}, nil
	case "still":
		if o.image == "" {
			return nil, errors.New("-image is required with -device still")
		}
		dev, err := capture.OpenStillDevice(o.image)
		if err != nil {
			return nil, err
		}
		return dev, nil
	default:
		return nil, fmt.Errorf("unknown device %q", o.device)
	}
}

func run(ctx context.Context, o options, out io.Writer) error {
	client := apiclient.New(o.apiURL, o.bucket)
	sess, err := client.Login(ctx, o.email, o.password)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Logout(context.Background()); err != nil {
			slog.Warn("logout failed", "err", err)
		}
	}()

	me, err := client.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "signed in as %s (%s)\n", me.Profile.Email, me.Role)

	if o.history {
		return printHistory(ctx, client, out)
	}

	dev, err := openDevice(o)
	if err != nil {
		return err
	}
	photo, err := takePhoto(ctx, dev, o)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "captured %dx%d photo (%d bytes)\n", photo.Width, photo.Height, len(photo.Data))

	p := checkin.New(sess.UserID, client, client,
		checkin.WithRefresh(func(ctx context.Context) error { return printHistory(ctx, client, out) }),
		checkin.WithObserver(func(from, to checkin.State) {
			slog.Debug("check-in state", "from", from, "to", to)
		}),
	)
	if err := p.Capture(photo); err != nil {
		return err
	}
	p.SetNote(o.note)
	p.SetLocation(o.location)

	rec, err := p.Submit(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "checked in at %s\n", rec.CheckInTime.Local().Format(time.DateTime))
	return nil
}

// takePhoto opens the camera, waits for its first frame and snapshots it.
// The session is released on every path.
func takePhoto(ctx context.Context, dev capture.Device, o options) (*capture.Photo, error) {
	var frames atomic.Int64
	surface := capture.SurfaceFunc(func(image.Image) { frames.Add(1) })

	session, err := capture.Start(ctx, dev, capture.DefaultConstraints, surface)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	deadline := time.Now().Add(o.wait)
	for {
		photo, err := capture.Snapshot(session, o.quality)
		if err == nil {
			slog.Debug("snapshot taken", "preview_frames", frames.Load())
			return photo, nil
		}
		if !apperr.Is(err, apperr.KindSourceNotReady) || time.Now().After(deadline) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func printHistory(ctx context.Context, client *apiclient.Client, out io.Writer) error {
	page, err := client.History(ctx, nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "recent check-ins (%d):\n", len(page.Records))
	for _, r := range page.Records {
		line := fmt.Sprintf("  %s  %s", r.CheckInTime.Local().Format(time.DateTime), r.Status)
		if r.Location.Valid {
			line += "  @" + r.Location.String
		}
		if r.Notes.Valid {
			line += "  " + strings.ReplaceAll(r.Notes.String, "\n", " ")
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
