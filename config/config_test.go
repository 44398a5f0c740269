package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range bindings {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Empty(t, cfg.UploadDir)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxBodySize)
	assert.Equal(t, cfg.MaxBodySize, cfg.MaxChunkedSize)
	assert.Equal(t, "/uploads/", cfg.LocationPrefix)
	assert.False(t, cfg.Quiet)
}

func TestLoadEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("UPLOAD_DIR", "/var/uploads")
	t.Setenv("UPLOAD_MAX_BODY_SIZE", "1MiB")
	t.Setenv("UPLOAD_MAX_CHUNKED_SIZE", "512KiB")
	t.Setenv("UPLOAD_LOCATION_PREFIX", "/files")
	t.Setenv("UPLOAD_QUIET", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/var/uploads", cfg.UploadDir)
	assert.Equal(t, int64(1<<20), cfg.MaxBodySize)
	assert.Equal(t, int64(512<<10), cfg.MaxChunkedSize)
	assert.Equal(t, "/files/", cfg.LocationPrefix)
	assert.True(t, cfg.Quiet)
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "upload.yaml")
	require.NoError(t, os.WriteFile(path, []byte("upload_dir: /from/file\nmax_body_size: 2MB\n"), 0o644))
	t.Setenv("UPLOAD_DIR", "/from/env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/from/env", cfg.UploadDir)
	assert.Equal(t, int64(2_000_000), cfg.MaxBodySize)
}

func TestLoadInvalidSize(t *testing.T) {
	clearEnv(t)
	t.Setenv("UPLOAD_MAX_BODY_SIZE", "lots")

	_, err := Load("")
	assert.Error(t, err)
}
