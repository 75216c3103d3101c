package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_HOST", "")
	os.Unsetenv("DB_HOST")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "http://localhost:8000", cfg.Server.PublicURL)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "5532", cfg.Database.Port)
	assert.Equal(t, "output", cfg.Output.Dir)
	assert.Equal(t, BackendLocal, cfg.Output.Backend)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9100
  public_url: https://charts.example.com/
database:
  host: db.internal
  name: djia
output:
  dir: /var/lib/stockplot
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("DB_NAME", "djia_test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "https://charts.example.com", cfg.Server.PublicURL)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "djia_test", cfg.Database.Name)
	assert.Equal(t, "/var/lib/stockplot", cfg.Output.Dir)
	assert.Contains(t, cfg.Database.DSN(), "dbname=djia_test")
}

func TestValidateS3NeedsBucket(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "s3")
	t.Setenv("S3_BUCKET", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")
}

func TestValidateUnknownBackend(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "ftp")

	_, err := Load("")
	assert.Error(t, err)
}
