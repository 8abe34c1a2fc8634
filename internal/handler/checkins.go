package handler

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/volatiletech/null/v8"

	"photoattend/internal/apperr"
	"photoattend/internal/attendance"
	"photoattend/internal/auth"
	"photoattend/internal/capture"
	"photoattend/internal/checkin"
	"photoattend/internal/httpmiddleware"
	"photoattend/internal/storage"
)

type checkinRequest struct {
	Photo    string `json:"photo"`
	Notes    string `json:"notes"`
	Location string `json:"location"`
}

type recordRequest struct {
	Key      string `json:"key"`
	Notes    string `json:"notes"`
	Location string `json:"location"`
}

// CreateCheckin runs the whole check-in for one request: the photo arrives either as
// a multipart "photo" file or as a JSON data URL, is uploaded, then recorded.
func (h *Handler) CreateCheckin(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxPhotoBytes)

	var (
		photo *capture.Photo
		req   checkinRequest
		err   error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		photo, err = formPhoto(c)
		req.Notes = c.PostForm("notes")
		req.Location = c.PostForm("location")
	} else {
		if !bindJSON(c, &req) {
			return
		}
		if strings.TrimSpace(req.Photo) != "" {
			photo, err = capture.ParseDataURL(req.Photo)
		}
	}
	if err != nil {
		httpmiddleware.Abort(c, err)
		return
	}

	userID := auth.UserID(c)
	opts := []checkin.Option{}
	if h.Metrics != nil {
		opts = append(opts, checkin.WithObserver(h.Metrics.ObservePipeline))
	}
	p := checkin.New(userID, h.Bucket, h.Attendance, opts...)
	if photo != nil {
		if err := p.Capture(photo); err != nil {
			httpmiddleware.Abort(c, err)
			return
		}
	}
	p.SetNote(req.Notes)
	p.SetLocation(req.Location)

	rec, err := p.Submit(c.Request.Context())
	if err != nil {
		httpmiddleware.Abort(c, err)
		return
	}
	h.publish(c, rec)
	c.JSON(http.StatusCreated, rec)
}

func formPhoto(c *gin.Context) (*capture.Photo, error) {
	fh, err := c.FormFile("photo")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, apperr.Newf(apperr.KindInvalidArgument, "invalid multipart body: %v", err)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apperr.Newf(apperr.KindInvalidArgument, "read photo: %v", err)
	}
	return capture.Decode(data, fh.Header.Get("Content-Type"))
}

// History returns the caller's own check-ins, newest first.
func (h *Handler) History(c *gin.Context) {
	before, err := parseBefore(c)
	if err != nil {
		httpmiddleware.Abort(c, err)
		return
	}
	page, err := h.Attendance.MyHistory(c.Request.Context(), auth.UserID(c), before)
	if err != nil {
		httpmiddleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

const jpegType = "image/jpeg"

// jpegMagic starts every JPEG stream (SOI marker then the next marker's prefix).
var jpegMagic = []byte{0xFF, 0xD8, 0xFF}

// UploadObject stores a JPEG request body at key. Keys live under the caller's
// user id, end in .jpg and are never overwritten.
func (h *Handler) UploadObject(c *gin.Context) {
	if c.Param("bucket") != h.Bucket.Name() {
		httpmiddleware.Abort(c, apperr.Newf(apperr.KindNotFound, "Bucket not found: %s", c.Param("bucket")))
		return
	}
	key := strings.TrimPrefix(c.Param("key"), "/")
	if err := storage.ValidateKey(key, auth.UserID(c)); err != nil {
		httpmiddleware.Abort(c, apperr.Wrap(apperr.KindForbidden, err))
		return
	}
	if !strings.HasSuffix(key, ".jpg") {
		httpmiddleware.Abort(c, apperr.Newf(apperr.KindInvalidArgument, "object key %q must end in .jpg", key))
		return
	}
	if ct := c.ContentType(); ct != "" && ct != jpegType {
		httpmiddleware.Abort(c, apperr.Newf(apperr.KindInvalidArgument, "unsupported content type %q, photos are stored as %s", ct, jpegType))
		return
	}

	body := bufio.NewReader(http.MaxBytesReader(c.Writer, c.Request.Body, maxPhotoBytes))
	if head, _ := body.Peek(len(jpegMagic)); !bytes.Equal(head, jpegMagic) {
		httpmiddleware.Abort(c, apperr.New(apperr.KindInvalidArgument, "photo body is not a JPEG image"))
		return
	}
	if err := h.Bucket.Upload(c.Request.Context(), key, body, jpegType); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, storage.ErrExists):
			httpmiddleware.Abort(c, apperr.Wrap(apperr.KindConflict, err))
		case errors.As(err, &tooLarge):
			httpmiddleware.Abort(c, apperr.New(apperr.KindInvalidArgument, "photo is too large"))
		default:
			httpmiddleware.Abort(c, apperr.Wrap(apperr.KindUploadFailed, err))
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"key": key, "public_url": h.Bucket.PublicURL(key)})
}

// CreateRecord inserts a record for a photo the caller already uploaded. The
// photo is named by its bucket key and the URL is resolved here, so a record
// only ever points at the caller's own stored object.
func (h *Handler) CreateRecord(c *gin.Context) {
	var req recordRequest
	if !bindJSON(c, &req) {
		return
	}
	userID := auth.UserID(c)
	key := strings.TrimSpace(req.Key)
	if key == "" {
		httpmiddleware.Abort(c, apperr.New(apperr.KindMissingPhoto, "Please capture a photo before checking in."))
		return
	}
	if err := storage.ValidateKey(key, userID); err != nil {
		httpmiddleware.Abort(c, apperr.Wrap(apperr.KindForbidden, err))
		return
	}
	if !strings.HasSuffix(key, ".jpg") {
		httpmiddleware.Abort(c, apperr.Newf(apperr.KindInvalidArgument, "object key %q must end in .jpg", key))
		return
	}
	ok, err := storage.Exists(c.Request.Context(), h.Bucket, key)
	if err != nil {
		httpmiddleware.Abort(c, apperr.Wrap(apperr.KindRecordWriteFailed, err))
		return
	}
	if !ok {
		httpmiddleware.Abort(c, apperr.Newf(apperr.KindNotFound, "Object not found: %s", key))
		return
	}

	rec, err := h.Attendance.CreateRecord(c.Request.Context(), attendance.NewRecord{
		UserID:   userID,
		PhotoURL: h.Bucket.PublicURL(key),
		Notes:    null.StringFrom(req.Notes),
		Location: null.StringFrom(req.Location),
		Status:   attendance.StatusPresent,
	})
	if err != nil {
		httpmiddleware.Abort(c, err)
		return
	}
	h.publish(c, rec)
	c.JSON(http.StatusCreated, rec)
}
