package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 30, cfg.Server.ReadTimeout)
	assert.Equal(t, 30, cfg.Server.WriteTimeout)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	assert.Equal(t, 200, cfg.Embedding.BatchSize)
	assert.Equal(t, 1536, cfg.Embedding.Dimension)

	assert.Equal(t, "docindex.db", cfg.RelStore.Path)
	assert.Equal(t, "WAL", cfg.RelStore.JournalMode)

	assert.Equal(t, "docindex_chunks", cfg.VectorStore.Collection)
	assert.Equal(t, 1536, cfg.VectorStore.VectorSize)

	assert.Equal(t, 4, cfg.Engine.MaxParallelDocs)
	assert.Equal(t, 30, cfg.Engine.JobRetentionDays)

	assert.Equal(t, 1000, cfg.Chunker.MaxChunkSize)
	assert.Equal(t, 100, cfg.Chunker.Overlap)

	assert.NotEmpty(t, cfg.RateLimiter.Tiers)
}

func TestDefaultConfig_PassesValidation(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestValidate_RejectsInvalidServerPort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 99999
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsEmptyServerHost(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Host = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsEmptyRelStorePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RelStore.Path = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsMismatchedEmbeddingAndVectorDimensions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Embedding.Dimension = 768
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsNonPositiveMaxParallelDocs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.MaxParallelDocs = 0
	assert.Error(t, cfg.Validate())
}

func TestLoad_AppliesEnvOverrides(t *testing.T) {
	t.Setenv("DOCINDEX_SERVER_PORT", "9090")
	t.Setenv("DOCINDEX_RELSTORE_PATH", "/tmp/custom.db")
	t.Setenv("DOCINDEX_EMBEDDING_MODEL", "text-embedding-3-large")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/tmp/custom.db", cfg.RelStore.Path)
	assert.Equal(t, "text-embedding-3-large", cfg.Embedding.Model)
}

func TestLoad_OverlaysYAMLBeforeEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7000
  host: "127.0.0.1"
relstore:
  path: "./yaml.db"
`), 0o644))

	t.Setenv("DOCINDEX_RELSTORE_PATH", "./env-wins.db")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	// env overrides are applied after the YAML overlay, so they win.
	assert.Equal(t, "./env-wins.db", cfg.RelStore.Path)
}

func TestLoad_MissingYAMLFileIsNotAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
}

func TestNewLogger_DoesNotPanic(t *testing.T) {
	cfg := DefaultConfig()
	assert.NotNil(t, cfg.NewLogger())
}
