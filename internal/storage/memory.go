package storage

import (
	"context"
	"io"
	"strings"
	"sync"
)

// Object is a stored blob.
type Object struct {
	Data        []byte
	ContentType string
}

// Memory is an in-process bucket for tests and throwaway dev runs.
type Memory struct {
	name    string
	baseURL string

	mu      sync.Mutex
	objects map[string]Object
	failErr error
}

// NewMemory creates an empty bucket.
func NewMemory(name, baseURL string) *Memory {
	return &Memory{name: name, baseURL: strings.TrimRight(baseURL, "/"), objects: map[string]Object{}}
}

func (m *Memory) Name() string { return m.name }

// FailWith makes every following Upload return err. nil clears it.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	m.failErr = err
	m.mu.Unlock()
}

func (m *Memory) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	if err := ValidateKey(key, ""); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	if _, ok := m.objects[key]; ok {
		return ErrExists
	}
	m.objects[key] = Object{Data: data, ContentType: contentType}
	return nil
}

func (m *Memory) PublicURL(key string) string {
	return m.baseURL + "/" + m.name + "/" + key
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.Get(key)
	return ok, nil
}

// Get returns a stored object.
func (m *Memory) Get(key string) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[key]
	return o, ok
}

// Keys lists stored keys in no particular order.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	return out
}
