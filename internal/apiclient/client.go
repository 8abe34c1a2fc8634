// Package apiclient is the typed HTTP client the kiosk uses to talk to the API.
// Client satisfies checkin.Uploader and checkin.RecordWriter, so a pipeline can
// run on the kiosk against the remote bucket and record store.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"photoattend/internal/apperr"
	"photoattend/internal/attendance"
	"photoattend/internal/auth"
	"photoattend/internal/httpmiddleware"
)

// Me is the signed-in user as reported by /v1/me.
type Me struct {
	Profile attendance.Profile `json:"profile"`
	Role    attendance.Role    `json:"role"`
	Home    string             `json:"home"`
}

// Client calls the photoattend API.
type Client struct {
	BaseURL string
	Bucket  string
	HTTP    *http.Client

	mu      sync.Mutex
	session auth.Session
	urls    map[string]string
}

// New creates a client with a timeout suited to photo uploads.
func New(baseURL, bucket string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Bucket:  bucket,
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
		urls: map[string]string{},
	}
}

// Session returns the current session, empty before Login.
func (c *Client) Session() auth.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Login signs in and keeps the tokens for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (auth.Session, error) {
	var sess auth.Session
	err := c.doJSON(ctx, http.MethodPost, "/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &sess)
	if err != nil {
		return auth.Session{}, err
	}
	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()
	return sess, nil
}

// Refresh rotates the refresh token.
func (c *Client) Refresh(ctx context.Context) error {
	var sess auth.Session
	err := c.doJSON(ctx, http.MethodPost, "/v1/auth/refresh", map[string]string{
		"refresh_token": c.Session().RefreshToken,
	}, &sess)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()
	return nil
}

// Logout revokes the refresh token and forgets the session.
func (c *Client) Logout(ctx context.Context) error {
	err := c.doJSON(ctx, http.MethodPost, "/v1/auth/logout", map[string]string{
		"refresh_token": c.Session().RefreshToken,
	}, nil)
	c.mu.Lock()
	c.session = auth.Session{}
	c.mu.Unlock()
	return err
}

// Me returns the caller's profile and role.
func (c *Client) Me(ctx context.Context) (Me, error) {
	var out Me
	err := c.doJSON(ctx, http.MethodGet, "/v1/me", nil, &out)
	return out, err
}

// History returns one page of the caller's check-ins.
func (c *Client) History(ctx context.Context, before *attendance.Cursor) (attendance.RecordPage, error) {
	path := "/v1/checkins"
	if before != nil {
		path += "?before=" + url.QueryEscape(before.String())
	}
	var out attendance.RecordPage
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// Upload stores an object in the configured bucket and remembers its public URL.
func (c *Client) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	path := "/v1/storage/" + url.PathEscape(c.Bucket) + "/" + escapeKey(key)
	req, err := c.newRequest(ctx, http.MethodPut, path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	var out struct {
		PublicURL string `json:"public_url"`
	}
	if err := c.do(req, &out); err != nil {
		return err
	}
	c.mu.Lock()
	c.urls[key] = out.PublicURL
	c.mu.Unlock()
	return nil
}

// PublicURL returns the URL the API reported for an uploaded key.
func (c *Client) PublicURL(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.urls[key]
}

// CreateRecord inserts a record for a photo uploaded under in.PhotoKey. The
// server sets the owner and resolves the photo URL itself.
func (c *Client) CreateRecord(ctx context.Context, in attendance.NewRecord) (attendance.Record, error) {
	var out attendance.Record
	err := c.doJSON(ctx, http.MethodPost, "/v1/records", map[string]string{
		"key":       in.PhotoKey,
		"notes":     in.Notes.String,
		"location":  in.Location.String,
	}, &out)
	return out, err
}

func escapeKey(key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if tok := c.Session().AccessToken; tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

// do sends req. API errors come back as *apperr.Error with the server's kind and message.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var eb httpmiddleware.ErrorBody
		if json.Unmarshal(bodyBytes, &eb) == nil && eb.Error.Code != "" {
			return apperr.New(eb.Error.Code, eb.Error.Message)
		}
		return fmt.Errorf("api error %s: %s", resp.Status, strings.TrimSpace(string(bodyBytes)))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
