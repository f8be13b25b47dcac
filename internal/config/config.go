package config

import (
	"time"

	"github.com/haasonsaas/actorcore/internal/backoff"
	"github.com/haasonsaas/actorcore/internal/memory"
)

// Config is the top-level configuration for an actorcore process. It is
// decoded from a merged raw map produced by LoadRaw, after $include
// resolution and environment variable substitution.
type Config struct {
	// LLM selects and configures the language model adapter(s) an Agent uses.
	LLM LLMConfig `yaml:"llm"`

	// Retry configures the backoff policy tier used by LLM adapters when a
	// request fails with a retryable error.
	Retry RetryConfig `yaml:"retry"`

	// Context configures the Context Manager's token budget and
	// summarisation behavior.
	Context ContextManagerConfig `yaml:"context"`

	// Memory selects and configures the semantic memory backend an Actor's
	// MemorySearcher is backed by.
	Memory MemoryConfig `yaml:"memory"`

	// Scheduler configures the Timed Task Scheduler's task source.
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Logging configures structured log output.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures the Prometheus metrics endpoint.
	Metrics MetricsConfig `yaml:"metrics"`
}

// RetryConfig selects one of the named backoff policy tiers (or a custom
// one) used when an LLM adapter retries a failed request.
type RetryConfig struct {
	// Tier names a preset policy: "default", "aggressive", or "conservative".
	// Ignored if Custom is non-nil.
	Tier string `yaml:"tier"`

	// MaxAttempts bounds how many times an adapter will retry before
	// surfacing a RetryExhaustedError. Default: 3.
	MaxAttempts int `yaml:"max_attempts"`

	// Custom overrides Tier with an explicit backoff policy.
	Custom *CustomBackoffConfig `yaml:"custom"`
}

// CustomBackoffConfig mirrors internal/backoff.BackoffPolicy for
// configuration purposes, in milliseconds.
type CustomBackoffConfig struct {
	InitialMs float64 `yaml:"initial_ms"`
	MaxMs     float64 `yaml:"max_ms"`
	Factor    float64 `yaml:"factor"`
	Jitter    float64 `yaml:"jitter"`
}

// ToBackoffPolicy resolves a RetryConfig to a concrete backoff.BackoffPolicy,
// preferring Custom when set and otherwise resolving the named Tier.
func (r RetryConfig) ToBackoffPolicy() backoff.BackoffPolicy {
	if r.Custom != nil {
		return backoff.BackoffPolicy{
			InitialMs: r.Custom.InitialMs,
			MaxMs:     r.Custom.MaxMs,
			Factor:    r.Custom.Factor,
			Jitter:    r.Custom.Jitter,
		}
	}
	switch r.Tier {
	case "aggressive":
		return backoff.AggressivePolicy()
	case "conservative":
		return backoff.ConservativePolicy()
	default:
		return backoff.DefaultPolicy()
	}
}

// ContextManagerConfig configures the per-Agent Context Manager.
type ContextManagerConfig struct {
	// TokenLimit is the estimated-token threshold above which the next
	// execution round is summarised instead of replayed verbatim.
	// Default: 100000.
	TokenLimit int `yaml:"token_limit"`

	// ModelID, if set, is passed to internal/agent.Agent.ModelID so the
	// Context Manager cross-checks summarisation against internal/context's
	// known per-model window table in addition to TokenLimit.
	ModelID string `yaml:"model_id"`

	// WarnBelowTokens surfaces a warn-level log once remaining budget drops
	// under this many tokens. Default: 32000.
	WarnBelowTokens int `yaml:"warn_below_tokens"`
}

// MemoryConfig mirrors memory.Config's YAML-decodable fields so it can be
// embedded under a single process-wide config tree. It omits memory.Config's
// programmatically-set DB handle; ToMemoryConfig converts to the real type.
type MemoryConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Backend   string `yaml:"backend"` // sqlite-vec, lancedb, pgvector
	Dimension int    `yaml:"dimension"`

	SQLiteVec SQLiteVecConfig `yaml:"sqlite_vec"`
	Pgvector  PgvectorConfig  `yaml:"pgvector"`
	LanceDB   LanceDBConfig   `yaml:"lancedb"`

	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Indexing   IndexingConfig   `yaml:"indexing"`
	Search     SearchConfig     `yaml:"search"`
}

// SQLiteVecConfig mirrors memory.SQLiteVecConfig.
type SQLiteVecConfig struct {
	Path string `yaml:"path"`
}

// PgvectorConfig mirrors memory.PgvectorConfig's YAML-decodable fields.
type PgvectorConfig struct {
	DSN            string `yaml:"dsn"`
	UseCockroachDB bool   `yaml:"use_cockroachdb"`
	RunMigrations  bool   `yaml:"run_migrations"`
}

// LanceDBConfig mirrors memory.LanceDBConfig.
type LanceDBConfig struct {
	Path         string `yaml:"path"`
	IndexType    string `yaml:"index_type"`
	MetricType   string `yaml:"metric_type"`
	NProbes      int    `yaml:"n_probes"`
	EF           int    `yaml:"ef"`
	RefineFactor int    `yaml:"refine_factor"`
}

// EmbeddingsConfig mirrors memory.EmbeddingsConfig.
type EmbeddingsConfig struct {
	Provider  string `yaml:"provider"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	OllamaURL string `yaml:"ollama_url"`
	ProjectID string `yaml:"project_id"`
	Location  string `yaml:"location"`
}

// IndexingConfig mirrors memory.IndexingConfig.
type IndexingConfig struct {
	AutoIndexMessages bool `yaml:"auto_index_messages"`
	MinContentLength  int  `yaml:"min_content_length"`
	BatchSize         int  `yaml:"batch_size"`
}

// SearchConfig mirrors memory.SearchConfig.
type SearchConfig struct {
	DefaultLimit     int     `yaml:"default_limit"`
	DefaultThreshold float32 `yaml:"default_threshold"`
	DefaultScope     string  `yaml:"default_scope"`
}

// ToMemoryConfig converts the decoded MemoryConfig into memory.Config, ready
// to pass to memory.NewManager.
func (m MemoryConfig) ToMemoryConfig() memory.Config {
	return memory.Config{
		Enabled:   m.Enabled,
		Backend:   m.Backend,
		Dimension: m.Dimension,
		SQLiteVec: memory.SQLiteVecConfig{Path: m.SQLiteVec.Path},
		Pgvector: memory.PgvectorConfig{
			DSN:            m.Pgvector.DSN,
			UseCockroachDB: m.Pgvector.UseCockroachDB,
			RunMigrations:  m.Pgvector.RunMigrations,
		},
		LanceDB: memory.LanceDBConfig{
			Path:         m.LanceDB.Path,
			IndexType:    m.LanceDB.IndexType,
			MetricType:   m.LanceDB.MetricType,
			NProbes:      m.LanceDB.NProbes,
			EF:           m.LanceDB.EF,
			RefineFactor: m.LanceDB.RefineFactor,
		},
		Embeddings: memory.EmbeddingsConfig{
			Provider:  m.Embeddings.Provider,
			APIKey:    m.Embeddings.APIKey,
			BaseURL:   m.Embeddings.BaseURL,
			Model:     m.Embeddings.Model,
			OllamaURL: m.Embeddings.OllamaURL,
			ProjectID: m.Embeddings.ProjectID,
			Location:  m.Embeddings.Location,
		},
		Indexing: memory.IndexingConfig{
			AutoIndexMessages: m.Indexing.AutoIndexMessages,
			MinContentLength:  m.Indexing.MinContentLength,
			BatchSize:         m.Indexing.BatchSize,
		},
		Search: memory.SearchConfig{
			DefaultLimit:     m.Search.DefaultLimit,
			DefaultThreshold: m.Search.DefaultThreshold,
			DefaultScope:     m.Search.DefaultScope,
		},
	}
}

// SchedulerConfig configures the Timed Task Scheduler's source of tasks.
type SchedulerConfig struct {
	// Enabled turns the scheduler on for this process.
	Enabled bool `yaml:"enabled"`

	// TasksPath points at a YAML/JSON5 file (resolved through the same
	// $include loader) listing named cron/tick task definitions.
	TasksPath string `yaml:"tasks_path"`

	// TickInterval is the minimum granularity at which due tasks are
	// checked. Default: 1s.
	TickInterval time.Duration `yaml:"tick_interval"`
}

// LoggingConfig configures the process-wide structured logger.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

// MetricsConfig configures the Prometheus metrics HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// Load reads and decodes a configuration file at path, resolving $include
// directives and applying defaults to any field the file left zero-valued.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, err
	}
	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

// applyDefaults fills in zero-valued fields with the package's defaults so a
// minimal config file (or none at all) still produces a usable Config.
func applyDefaults(cfg *Config) {
	if cfg.Retry.Tier == "" && cfg.Retry.Custom == nil {
		cfg.Retry.Tier = "default"
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Context.TokenLimit == 0 {
		cfg.Context.TokenLimit = 100_000
	}
	if cfg.Context.WarnBelowTokens == 0 {
		cfg.Context.WarnBelowTokens = 32_000
	}
	if cfg.Scheduler.TickInterval == 0 {
		cfg.Scheduler.TickInterval = time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}
