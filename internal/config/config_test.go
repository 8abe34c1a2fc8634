package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.HTTPPort)
	assert.Equal(t, "pgx", cfg.DatabaseDriver)
	assert.Equal(t, "attendance-photos", cfg.Bucket)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 10, cfg.HistoryLimit)
	assert.Equal(t, 50, cfg.AdminLimit)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ATTEND_HTTP_PORT", "9999")
	t.Setenv("ATTEND_DATABASE_DRIVER", "sqlite3")
	t.Setenv("ATTEND_JWT_ACCESS_TTL", "5m")
	t.Setenv("ATTEND_APP_TIMEZONE", "UTC")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.HTTPPort)
	assert.Equal(t, "sqlite3", cfg.DatabaseDriver)
	assert.Equal(t, 5*time.Minute, cfg.AccessTTL)
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("storage:\n  backend: memory\n  bucket: photos\napp:\n  history_limit: 5\n")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.StorageBackend)
	assert.Equal(t, "photos", cfg.Bucket)
	assert.Equal(t, 5, cfg.HistoryLimit)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutate  func(*App)
		wantErr bool
	}{
		{"defaults", func(*App) {}, false},
		{"unknown driver", func(a *App) { a.DatabaseDriver = "oracle" }, true},
		{"cloudinary without credentials", func(a *App) { a.StorageBackend = "cloudinary" }, true},
		{"cloudinary with credentials", func(a *App) {
			a.StorageBackend = "cloudinary"
			a.CloudinaryCloudName, a.CloudinaryAPIKey, a.CloudinaryAPISecret = "demo", "key", "secret"
		}, false},
		{"default key in production", func(a *App) { a.Env = "production" }, true},
		{"bad timezone", func(a *App) { a.Timezone = "Mars/Olympus" }, true},
		{"zero page size", func(a *App) { a.HistoryLimit = 0 }, true},
		{"unknown queue", func(a *App) { a.QueueBackend = "kafka" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
