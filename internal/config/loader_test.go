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
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "tradeflow", cfg.Database.Postgres.DBName)
	assert.Equal(t, 500, cfg.Import.BatchSize)
	assert.Equal(t, 100*time.Millisecond, cfg.Import.BatchPause)
	assert.EqualValues(t, 5<<20, cfg.Import.MaxSpreadsheetBytes)
	assert.Equal(t, 30*time.Minute, cfg.Import.JobTimeout)
	assert.True(t, cfg.Analysis.Required)
	assert.Equal(t, StorageLocal, cfg.Storage.Type)
	assert.EqualValues(t, 64<<20, cfg.Server.MaxUploadBytes)
	assert.Equal(t, 5*time.Minute, cfg.Enrichment.Timeout)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	yaml := `database:
  driver: sqlite
  sqlite_path: /tmp/imports.db
import:
  batch_size: 50
  batch_pause: 1s
analysis:
  required: false
enrichment:
  departments:
    - finance
    - ops
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	t.Setenv("TRADEFLOW_IMPORT_MAX_CONCURRENT_JOBS", "8")
	t.Setenv("TRADEFLOW_SERVER_MAX_UPLOAD_BYTES", "1048576")
	t.Setenv("TRADEFLOW_ENRICHMENT_TIMEOUT", "30s")
	t.Setenv("TRADEFLOW_SERVER_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "/tmp/imports.db", cfg.Database.SQLitePath)
	assert.Equal(t, 50, cfg.Import.BatchSize)
	assert.Equal(t, time.Second, cfg.Import.BatchPause)
	assert.Equal(t, 8, cfg.Import.MaxConcurrentJobs)
	assert.False(t, cfg.Analysis.Required)
	assert.Equal(t, []string{"finance", "ops"}, cfg.Enrichment.Departments)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.EqualValues(t, 1<<20, cfg.Server.MaxUploadBytes)
	assert.Equal(t, 30*time.Second, cfg.Enrichment.Timeout)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Database.Driver = "mysql"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Storage.Type = StorageS3
	assert.Error(t, cfg.Validate())
	cfg.Storage.S3Bucket = "imports"
	assert.NoError(t, cfg.Validate())

	cfg = Default()
	cfg.Server.MaxUploadBytes = 0
	assert.Error(t, cfg.Validate())
}
