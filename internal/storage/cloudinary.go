package storage

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Cloudinary uploads objects through the Cloudinary REST API. The bucket name
// becomes the folder and the key without its extension becomes the public id,
// so delivery URLs can be computed without a round trip.
type Cloudinary struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	HTTP      *http.Client

	// APIBase and DeliveryBase are overridable for tests.
	APIBase      string
	DeliveryBase string
	Now          func() time.Time
}

// NewCloudinary creates a Cloudinary-backed bucket.
func NewCloudinary(cloudName, apiKey, apiSecret, folder string) *Cloudinary {
	return &Cloudinary{
		CloudName:    cloudName,
		APIKey:       apiKey,
		APISecret:    apiSecret,
		Folder:       folder,
		HTTP:         &http.Client{Timeout: 30 * time.Second},
		APIBase:      "https://api.cloudinary.com",
		DeliveryBase: "https://res.cloudinary.com",
		Now:          time.Now,
	}
}

// UploadResult holds the response from Cloudinary after a successful upload.
type UploadResult struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
	Format    string `json:"format"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Bytes     int    `json:"bytes"`
}

type cloudinaryError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Cloudinary) Name() string { return c.Folder }

// publicID strips the extension: u1/1700000000000.jpg -> u1/1700000000000.
func publicID(key string) string {
	return strings.TrimSuffix(key, path.Ext(key))
}

// Upload sends the object as a signed multipart upload.
func (c *Cloudinary) Upload(ctx context.Context, key string, r io.Reader, _ string) error {
	if err := ValidateKey(key, ""); err != nil {
		return err
	}
	params := map[string]string{
		"timestamp": strconv.FormatInt(c.Now().Unix(), 10),
		"api_key":   c.APIKey,
		"public_id": publicID(key),
		"overwrite": "false",
	}
	if c.Folder != "" {
		params["folder"] = c.Folder
	}
	params["signature"] = c.sign(params)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range params {
		_ = w.WriteField(k, v)
	}
	part, err := w.CreateFormFile("file", path.Base(key))
	if err != nil {
		return fmt.Errorf("cloudinary: create form file failed: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("cloudinary: write file failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return err
	}

	url := fmt.Sprintf("%s/v1_1/%s/image/upload", c.APIBase, c.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return fmt.Errorf("cloudinary: create request failed: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("cloudinary: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		var ce cloudinaryError
		if json.Unmarshal(body, &ce) == nil && ce.Error.Message != "" {
			return errors.New(ce.Error.Message)
		}
		return fmt.Errorf("cloudinary: upload failed (%d): %s", resp.StatusCode, string(body))
	}

	var result UploadResult
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("cloudinary: decode response failed: %w", err)
	}
	return nil
}

// PublicURL is the delivery URL of the uploaded image.
func (c *Cloudinary) PublicURL(key string) string {
	id := key
	if c.Folder != "" {
		id = c.Folder + "/" + key
	}
	return fmt.Sprintf("%s/%s/image/upload/%s", c.DeliveryBase, c.CloudName, id)
}

// sign computes the Cloudinary API signature from the given params.
// api_key and file are excluded from the signature.
func (c *Cloudinary) sign(params map[string]string) string {
	excludeKeys := map[string]bool{"api_key": true, "file": true, "resource_type": true}

	pairs := make([]string, 0, len(params))
	for k, v := range params {
		if !excludeKeys[k] && v != "" {
			pairs = append(pairs, k+"="+v)
		}
	}
	sort.Strings(pairs)

	payload := strings.Join(pairs, "&") + c.APISecret
	h := sha1.New()
	h.Write([]byte(payload))
	return fmt.Sprintf("%x", h.Sum(nil))
}
