// Package config builds the process-wide configuration for Segmenta.
// A Config value is constructed once at boot from an optional YAML file plus
// environment overrides, validated, and injected into constructors.
// Nothing reads environment variables after boot.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete Segmenta configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" json:"server"`
	Catalog    CatalogConfig    `yaml:"catalog" json:"catalog"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Query      QueryConfig      `yaml:"query" json:"query"`
	Similarity SimilarityConfig `yaml:"similarity" json:"similarity"`
	Sessions   SessionsConfig   `yaml:"sessions" json:"sessions"`
	Clusterer  ClustererConfig  `yaml:"clusterer" json:"clusterer"`
	Router     RouterConfig     `yaml:"router" json:"router"`
	Cache      CacheConfig      `yaml:"cache" json:"cache"`
	Degrade    DegradeConfig    `yaml:"degrade" json:"degrade"`
	LogLevel   string           `yaml:"log_level" json:"log_level"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
	// RequestDeadline bounds every public operation (default 10s).
	RequestDeadline time.Duration `yaml:"request_deadline" json:"request_deadline"`
}

// CatalogConfig configures the catalog loader.
type CatalogConfig struct {
	// Path is the catalog source: a SQLite database (preferred) or a CSV file.
	Path string `yaml:"path" json:"path"`
	// EmbeddingsPath is the binary embeddings container. Optional.
	EmbeddingsPath string `yaml:"embeddings_path" json:"embeddings_path"`
	// ReadTimeout bounds a single catalog or embeddings file read.
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`
	// WatchReload enables hot reload via file watching.
	WatchReload bool `yaml:"watch_reload" json:"watch_reload"`
	// WatchDebounce coalesces rapid file events before a reload.
	WatchDebounce time.Duration `yaml:"watch_debounce" json:"watch_debounce"`
}

// SearchConfig configures hybrid search.
type SearchConfig struct {
	// SemanticWeight and KeywordWeight are the fusion weights.
	// Must sum to 1.0. Defaults: 0.7 / 0.3.
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight"`
	KeywordWeight  float64 `yaml:"keyword_weight" json:"keyword_weight"`

	// DefaultTopK is the result cut when a request does not specify one.
	DefaultTopK int `yaml:"default_top_k" json:"default_top_k"`
	// MaxTopK is the hard cap on requested result counts.
	MaxTopK int `yaml:"max_top_k" json:"max_top_k"`

	// SemanticCandidates is the top-N pulled from the vector index before fusion.
	SemanticCandidates int `yaml:"semantic_candidates" json:"semantic_candidates"`

	// BruteForceThreshold selects exact cosine scan below this catalog size.
	BruteForceThreshold int `yaml:"brute_force_threshold" json:"brute_force_threshold"`
}

// EmbeddingsConfig configures the query-time embedding provider.
type EmbeddingsConfig struct {
	// Endpoint is the OpenAI-compatible embeddings URL.
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// APIKey authorizes provider calls. Empty disables the semantic path.
	APIKey string `yaml:"-" json:"-"`
	// Model is the embedding model name recorded in the embeddings metadata.
	Model string `yaml:"model" json:"model"`
	// Dimensions is the declared vector dimension D.
	Dimensions int `yaml:"dimensions" json:"dimensions"`
	// Timeout is the hard per-call timeout (default 3s).
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// MaxRetries is the retry count after the initial attempt (default 2).
	MaxRetries int `yaml:"max_retries" json:"max_retries"`
	// RetryBaseDelay is the exponential backoff base (default 200ms).
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" json:"retry_base_delay"`
	// RetryMaxDelay caps the backoff (default 2s).
	RetryMaxDelay time.Duration `yaml:"retry_max_delay" json:"retry_max_delay"`
	// CacheSize is the LRU cache for query embeddings.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
	// RatePerSecond limits provider calls. 0 disables limiting.
	RatePerSecond float64 `yaml:"rate_per_second" json:"rate_per_second"`
}

// QueryConfig configures the query processor pipeline.
type QueryConfig struct {
	// DisableNLP turns off numeric and concept extraction (stages 3-4).
	DisableNLP bool `yaml:"disable_nlp" json:"disable_nlp"`
	// NLPInitTimeout bounds NLP extractor initialization (default 5s).
	NLPInitTimeout time.Duration `yaml:"nlp_init_timeout" json:"nlp_init_timeout"`
	// SpellCorrect enables lexicon-based spell correction.
	SpellCorrect bool `yaml:"spell_correct" json:"spell_correct"`
	// MaxSynonyms is the per-token synonym expansion cap (default 5).
	MaxSynonyms int `yaml:"max_synonyms" json:"max_synonyms"`
}

// SimilarityConfig configures the near-duplicate result filter.
type SimilarityConfig struct {
	Enabled       bool    `yaml:"enabled" json:"enabled"`
	Threshold     float64 `yaml:"threshold" json:"threshold"`
	MaxPerCluster int     `yaml:"max_per_cluster" json:"max_per_cluster"`
}

// SessionsConfig configures the session manager.
type SessionsConfig struct {
	// TTL is the idle eviction timeout (default 30m).
	TTL time.Duration `yaml:"ttl" json:"ttl"`
	// SweepInterval is how often the janitor scans for idle sessions.
	SweepInterval time.Duration `yaml:"sweep_interval" json:"sweep_interval"`
	// MaxSessions caps concurrent live sessions. 0 means unlimited.
	MaxSessions int `yaml:"max_sessions" json:"max_sessions"`
}

// ClustererConfig configures the external segment clusterer.
type ClustererConfig struct {
	// Endpoint is the clusterer service URL. Empty selects the
	// in-process fake clusterer, which splits populations evenly.
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// Timeout bounds a single clustering call.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// DefaultK is the segment count when a request does not specify one.
	DefaultK int `yaml:"default_k" json:"default_k"`
	// BalanceTolerance is the permitted relative deviation in segment sizes.
	BalanceTolerance float64 `yaml:"balance_tolerance" json:"balance_tolerance"`
}

// RouterConfig configures the legacy/unified rollout gate.
type RouterConfig struct {
	UseUnified        bool `yaml:"use_unified" json:"use_unified"`
	RolloutPercentage int  `yaml:"rollout_percentage" json:"rollout_percentage"`
}

// CacheConfig configures the query result cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	Size    int           `yaml:"size" json:"size"`
	TTL     time.Duration `yaml:"ttl" json:"ttl"`
}

// DegradeConfig configures feature-disable circuit breakers.
type DegradeConfig struct {
	// MaxFailures within Window opens the breaker (defaults 5 / 60s).
	MaxFailures int           `yaml:"max_failures" json:"max_failures"`
	Window      time.Duration `yaml:"window" json:"window"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			RequestDeadline: 10 * time.Second,
		},
		Catalog: CatalogConfig{
			ReadTimeout:   30 * time.Second,
			WatchReload:   false,
			WatchDebounce: 500 * time.Millisecond,
		},
		Search: SearchConfig{
			SemanticWeight:      0.7,
			KeywordWeight:       0.3,
			DefaultTopK:         50,
			MaxTopK:             200,
			SemanticCandidates:  200,
			BruteForceThreshold: 100_000,
		},
		Embeddings: EmbeddingsConfig{
			Endpoint:       "https://api.openai.com/v1/embeddings",
			Model:          "text-embedding-3-small",
			Dimensions:     1536,
			Timeout:        3 * time.Second,
			MaxRetries:     2,
			RetryBaseDelay: 200 * time.Millisecond,
			RetryMaxDelay:  2 * time.Second,
			CacheSize:      4096,
			RatePerSecond:  20,
		},
		Query: QueryConfig{
			DisableNLP:     false,
			NLPInitTimeout: 5 * time.Second,
			SpellCorrect:   true,
			MaxSynonyms:    5,
		},
		Similarity: SimilarityConfig{
			Enabled:       true,
			Threshold:     0.85,
			MaxPerCluster: 2,
		},
		Sessions: SessionsConfig{
			TTL:           30 * time.Minute,
			SweepInterval: time.Minute,
			MaxSessions:   0,
		},
		Clusterer: ClustererConfig{
			Timeout:          30 * time.Second,
			DefaultK:         4,
			BalanceTolerance: 0.1,
		},
		Router: RouterConfig{
			UseUnified:        false,
			RolloutPercentage: 0,
		},
		Cache: CacheConfig{
			Enabled: true,
			Size:    10_000,
			TTL:     5 * time.Minute,
		},
		Degrade: DegradeConfig{
			MaxFailures: 5,
			Window:      60 * time.Second,
		},
		LogLevel: "info",
	}
}

// Load builds the configuration from an optional YAML file path plus the
// process environment. An empty path skips the file entirely.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds the configuration from defaults plus the given lookup
// function. Tests inject a map-backed lookup here.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := Default()
	cfg.applyEnv(getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays recognized environment variables onto the config.
func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("EMBEDDING_PROVIDER_API_KEY"); v != "" {
		c.Embeddings.APIKey = v
	}
	if v := getenv("EMBEDDING_PROVIDER_ENDPOINT"); v != "" {
		c.Embeddings.Endpoint = v
	}
	if v := getenv("DISABLE_NLP"); v != "" {
		c.Query.DisableNLP = parseBool(v)
	}
	if v := getenv("USE_UNIFIED_SEARCH"); v != "" {
		c.Router.UseUnified = parseBool(v)
	}
	if v := getenv("UNIFIED_ROLLOUT_PERCENTAGE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Router.RolloutPercentage = n
		}
	}
	if v := getenv("CATALOG_PATH"); v != "" {
		c.Catalog.Path = v
	}
	if v := getenv("EMBEDDINGS_PATH"); v != "" {
		c.Catalog.EmbeddingsPath = v
	}
	if v := getenv("SESSION_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Sessions.TTL = time.Duration(n) * time.Second
		}
	}
	if v := getenv("SIMILARITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Similarity.Threshold = f
		}
	}
	if v := getenv("SIMILARITY_MAX_PER_CLUSTER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Similarity.MaxPerCluster = n
		}
	}
	if v := getenv("CLUSTERER_ENDPOINT"); v != "" {
		c.Clusterer.Endpoint = v
	}
	if v := getenv("SEGMENTA_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := getenv("SEGMENTA_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks configuration invariants. Violations are configuration
// errors (process exit code 2).
func (c *Config) Validate() error {
	if sum := c.Search.SemanticWeight + c.Search.KeywordWeight; sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("search weights must sum to 1.0, got %.3f", sum)
	}
	if c.Search.SemanticWeight < 0 || c.Search.KeywordWeight < 0 {
		return fmt.Errorf("search weights must be non-negative")
	}
	if c.Search.DefaultTopK < 1 || c.Search.DefaultTopK > c.Search.MaxTopK {
		return fmt.Errorf("default_top_k %d outside [1,%d]", c.Search.DefaultTopK, c.Search.MaxTopK)
	}
	if c.Search.MaxTopK < 1 {
		return fmt.Errorf("max_top_k must be positive")
	}
	if c.Router.RolloutPercentage < 0 || c.Router.RolloutPercentage > 100 {
		return fmt.Errorf("rollout_percentage %d outside [0,100]", c.Router.RolloutPercentage)
	}
	if c.Similarity.Threshold < 0 || c.Similarity.Threshold > 1 {
		return fmt.Errorf("similarity threshold %.2f outside [0,1]", c.Similarity.Threshold)
	}
	if c.Similarity.MaxPerCluster < 1 {
		return fmt.Errorf("similarity max_per_cluster must be at least 1")
	}
	if c.Embeddings.Dimensions < 1 {
		return fmt.Errorf("embedding dimensions must be positive")
	}
	if c.Sessions.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	if c.Cache.Enabled && c.Cache.Size < 1 {
		return fmt.Errorf("cache size must be positive when cache is enabled")
	}
	if c.Degrade.MaxFailures < 1 || c.Degrade.Window <= 0 {
		return fmt.Errorf("degrade thresholds must be positive")
	}
	return nil
}

// SemanticEnabled reports whether the semantic path can run at all.
// Absent API key disables semantic search without failing startup.
func (c *Config) SemanticEnabled() bool {
	return c.Embeddings.APIKey != ""
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
