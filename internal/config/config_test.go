package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_envOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/tv")
	t.Setenv("PROBE_TIMEOUT", "3s")
	t.Setenv("PROBE_CONCURRENCY", "12")
	t.Setenv("PROBE_PACING", "250ms")
	t.Setenv("INGEST_WORKERS", "not-a-number")
	t.Setenv("SERVER_PORT", "9090")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost/tv", c.DatabaseURL)
	assert.Equal(t, 3*time.Second, c.ProbeTimeout)
	assert.Equal(t, 12, c.ProbeConcurrency)
	assert.Equal(t, 250*time.Millisecond, c.ProbePacing)
	assert.Equal(t, 4, c.IngestWorkers)
	assert.Equal(t, "9090", c.ServerPort)
	assert.Equal(t, "TarlanTV/1.0", c.UserAgent)
	assert.Equal(t, 30*time.Second, c.Timeout)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database_url: postgres://localhost/tv
redis_url: redis://localhost:6379/0
probe_timeout: 5s
probe_concurrency: 3
`), 0o600))

	c, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "redis://localhost:6379/0", c.RedisURL)
	assert.Equal(t, 5*time.Second, c.ProbeTimeout)
	assert.Equal(t, 3, c.ProbeConcurrency)
	assert.Equal(t, "8080", c.ServerPort)
	assert.Equal(t, 100*time.Millisecond, c.ProbePacing)
}

func TestLoadFromFile_missingDatabaseURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_port: \"8081\"\n"), 0o600))

	_, err := LoadFromFile(path)
	assert.ErrorIs(t, err, ErrMissingDatabaseURL)
}

func TestApplyEnvFile_doesNotOverride(t *testing.T) {
	t.Setenv("TARLANTV_TEST_A", "set")
	t.Setenv("TARLANTV_TEST_B", "")
	os.Unsetenv("TARLANTV_TEST_B")
	defer os.Unsetenv("TARLANTV_TEST_B")

	set := applyEnvFile([]byte("# comment\nTARLANTV_TEST_A=file\nTARLANTV_TEST_B=\"quoted\"\nbroken\n"))

	assert.Equal(t, []string{"TARLANTV_TEST_B"}, set)
	assert.Equal(t, "set", os.Getenv("TARLANTV_TEST_A"))
	assert.Equal(t, "quoted", os.Getenv("TARLANTV_TEST_B"))
}

func TestApplyEnvFile_exportAndComments(t *testing.T) {
	for _, k := range []string{"TARLANTV_TEST_C", "TARLANTV_TEST_D", "TARLANTV_TEST_E"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
		defer os.Unsetenv(k)
	}

	applyEnvFile([]byte("export TARLANTV_TEST_C=8 # workers\nTARLANTV_TEST_D='a # b'\nTARLANTV_TEST_E=postgres://u:p@h/db?x=1\n"))

	assert.Equal(t, "8", os.Getenv("TARLANTV_TEST_C"))
	assert.Equal(t, "a # b", os.Getenv("TARLANTV_TEST_D"))
	assert.Equal(t, "postgres://u:p@h/db?x=1", os.Getenv("TARLANTV_TEST_E"))
}
