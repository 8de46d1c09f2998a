package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.InDelta(t, 0.7, cfg.Search.SemanticWeight, 1e-9)
	assert.InDelta(t, 0.3, cfg.Search.KeywordWeight, 1e-9)
	assert.Equal(t, 50, cfg.Search.DefaultTopK)
	assert.Equal(t, 200, cfg.Search.MaxTopK)
	assert.Equal(t, 30*time.Minute, cfg.Sessions.TTL)
	assert.Equal(t, 0.85, cfg.Similarity.Threshold)
	assert.Equal(t, 2, cfg.Similarity.MaxPerCluster)
	assert.Equal(t, 3*time.Second, cfg.Embeddings.Timeout)
	assert.Equal(t, 2, cfg.Embeddings.MaxRetries)
	assert.False(t, cfg.SemanticEnabled(), "no API key means semantic disabled")
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"EMBEDDING_PROVIDER_API_KEY": "sk-test",
		"DISABLE_NLP":                "true",
		"USE_UNIFIED_SEARCH":         "true",
		"UNIFIED_ROLLOUT_PERCENTAGE": "35",
		"CATALOG_PATH":               "/data/catalog.db",
		"EMBEDDINGS_PATH":            "/data/embeddings.bin",
		"SESSION_TTL_SECONDS":        "900",
		"SIMILARITY_THRESHOLD":       "0.9",
		"SIMILARITY_MAX_PER_CLUSTER": "3",
	}))
	require.NoError(t, err)

	assert.True(t, cfg.SemanticEnabled())
	assert.True(t, cfg.Query.DisableNLP)
	assert.True(t, cfg.Router.UseUnified)
	assert.Equal(t, 35, cfg.Router.RolloutPercentage)
	assert.Equal(t, "/data/catalog.db", cfg.Catalog.Path)
	assert.Equal(t, "/data/embeddings.bin", cfg.Catalog.EmbeddingsPath)
	assert.Equal(t, 15*time.Minute, cfg.Sessions.TTL)
	assert.Equal(t, 0.9, cfg.Similarity.Threshold)
	assert.Equal(t, 3, cfg.Similarity.MaxPerCluster)
}

func TestFromEnv_InvalidRolloutRejected(t *testing.T) {
	_, err := FromEnv(envMap(map[string]string{
		"UNIFIED_ROLLOUT_PERCENTAGE": "150",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rollout_percentage")
}

func TestValidate_WeightsMustSumToOne(t *testing.T) {
	cfg := Default()
	cfg.Search.SemanticWeight = 0.9
	cfg.Search.KeywordWeight = 0.3
	require.Error(t, cfg.Validate())
}

func TestValidate_SimilarityBounds(t *testing.T) {
	cfg := Default()
	cfg.Similarity.Threshold = 1.5
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Similarity.MaxPerCluster = 0
	require.Error(t, cfg.Validate())
}

func TestLoad_YAMLFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "segmenta.yaml")
	yaml := `
server:
  addr: ":9090"
search:
  semantic_weight: 0.6
  keyword_weight: 0.4
similarity:
  enabled: true
  threshold: 0.8
  max_per_cluster: 2
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	t.Setenv("SIMILARITY_THRESHOLD", "0.95")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.InDelta(t, 0.6, cfg.Search.SemanticWeight, 1e-9)
	// Env wins over file.
	assert.Equal(t, 0.95, cfg.Similarity.Threshold)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestParseBool(t *testing.T) {
	assert.True(t, parseBool("true"))
	assert.True(t, parseBool("1"))
	assert.True(t, parseBool(" YES "))
	assert.False(t, parseBool("false"))
	assert.False(t, parseBool("0"))
	assert.False(t, parseBool("nope"))
}
