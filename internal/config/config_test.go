package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LOOKOUT_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8010, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 3, cfg.OuterConcurrency)
	assert.Equal(t, 4, cfg.InnerConcurrency)
	assert.Equal(t, time.Second, cfg.ProgressInterval)
	assert.False(t, cfg.Archive.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LOOKOUT_DATA_DIR", t.TempDir())
	t.Setenv("LOOKOUT_PORT", "9999")
	t.Setenv("LOOKOUT_OUTER_CONCURRENCY", "5")
	t.Setenv("LOOKOUT_INNER_CONCURRENCY", "8")
	t.Setenv("LOOKOUT_PROGRESS_INTERVAL", "250ms")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, 5, cfg.OuterConcurrency)
	assert.Equal(t, 8, cfg.InnerConcurrency)
	assert.Equal(t, 250*time.Millisecond, cfg.ProgressInterval)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestValidateRejectsBadBounds(t *testing.T) {
	t.Setenv("LOOKOUT_DATA_DIR", t.TempDir())
	t.Setenv("LOOKOUT_OUTER_CONCURRENCY", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outer concurrency")
}

func TestValidateRejectsIncompleteArchive(t *testing.T) {
	t.Setenv("LOOKOUT_DATA_DIR", t.TempDir())
	t.Setenv("ARCHIVE_ENABLED", "true")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive")
}
