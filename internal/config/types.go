package config

// Config holds all configuration for the daemon
type Config struct {
	DaemonID           string           `mapstructure:"daemon_id"`
	Database           DatabaseConfig   `mapstructure:"database"`
	Embeddings         EmbeddingsConfig `mapstructure:"embeddings"`
	LLM                LLMConfig        `mapstructure:"llm"`
	Workers            WorkersConfig    `mapstructure:"workers"`
	Watcher            WatcherConfig    `mapstructure:"watcher"`
	Jobs               JobsConfig       `mapstructure:"jobs"`
	Logging            LoggingConfig    `mapstructure:"logging"`
	Events             EventsConfig     `mapstructure:"events"`
	Summaries          SummariesConfig  `mapstructure:"summaries"`
	EnableSummaries    bool             `mapstructure:"enable_summaries"`
	EnableTagRulesSync bool             `mapstructure:"enable_tag_rules_sync"`
}

// DatabaseConfig holds control store configuration
type DatabaseConfig struct {
	ControlDSN  string `mapstructure:"control_dsn"`
	PoolSize    int    `mapstructure:"pool_size"`
	PoolTimeout int    `mapstructure:"pool_timeout"`
}

// ProviderConfig holds one embedding/LLM provider endpoint
type ProviderConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"`
}

// EmbeddingsConfig holds embedding generation configuration
type EmbeddingsConfig struct {
	Enabled                bool           `mapstructure:"enabled"`
	Provider               string         `mapstructure:"provider"`
	Model                  string         `mapstructure:"model"`
	Dimension              int            `mapstructure:"dimension"`
	BatchSize              int            `mapstructure:"batch_size"`
	BackfillOnStartup      bool           `mapstructure:"backfill_on_startup"`
	AutoRebuildIndexes     bool           `mapstructure:"auto_rebuild_indexes"`
	RebuildChangeThreshold int            `mapstructure:"rebuild_change_threshold"`
	RebuildIndexType       string         `mapstructure:"rebuild_index_type"`
	Ollama                 ProviderConfig `mapstructure:"ollama"`
	VLLM                   ProviderConfig `mapstructure:"vllm"`
	OpenAI                 ProviderConfig `mapstructure:"openai"`
}

// Active returns the provider endpoint selected by Provider
func (e *EmbeddingsConfig) Active() ProviderConfig {
	switch e.Provider {
	case "vllm":
		return e.VLLM

	case "openai":
		return e.OpenAI

	default:
		return e.Ollama
	}
}

// LLMConfig holds summarization model configuration. DeepModel handles
// whole-repo reviews; SmallModel handles per-file and per-symbol summaries.
type LLMConfig struct {
	Enabled    bool           `mapstructure:"enabled"`
	Provider   string         `mapstructure:"provider"`
	DeepModel  string         `mapstructure:"deep_model"`
	SmallModel string         `mapstructure:"small_model"`
	MaxTokens  int            `mapstructure:"max_tokens"`
	Ollama     ProviderConfig `mapstructure:"ollama"`
	VLLM       ProviderConfig `mapstructure:"vllm"`
	OpenAI     ProviderConfig `mapstructure:"openai"`
}

// Active returns the provider endpoint selected by Provider
func (l *LLMConfig) Active() ProviderConfig {
	switch l.Provider {
	case "vllm":
		return l.VLLM

	case "openai":
		return l.OpenAI

	default:
		return l.Ollama
	}
}

// WorkersConfig holds worker pool configuration
type WorkersConfig struct {
	Mode                 string         `mapstructure:"mode"`
	MaxWorkers           int            `mapstructure:"max_workers"`
	MaxConcurrentPerRepo int            `mapstructure:"max_concurrent_per_repo"`
	JobTypeLimits        map[string]int `mapstructure:"job_type_limits"`
	PollIntervalSec      int            `mapstructure:"poll_interval_sec"`
	HeartbeatIntervalSec int            `mapstructure:"heartbeat_interval_sec"`
	JobTimeoutSec        int            `mapstructure:"job_timeout_sec"`
}

// WatcherConfig holds filesystem watcher configuration
type WatcherConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	DebounceMS     int      `mapstructure:"debounce_ms"`
	IgnorePatterns []string `mapstructure:"ignore_patterns"`
	Extensions     []string `mapstructure:"extensions"`
}

// JobsConfig holds queue tuning configuration
type JobsConfig struct {
	ClaimBatchSize       int `mapstructure:"claim_batch_size"`
	MaxRetries           int `mapstructure:"max_retries"`
	RetryBackoffBaseSec  int `mapstructure:"retry_backoff_base_sec"`
	CleanupRetentionDays int `mapstructure:"cleanup_retention_days"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	File     string `mapstructure:"file"`
	JSONLogs bool   `mapstructure:"json_logs"`
}

// EventsConfig holds the optional redis job-event feed configuration
type EventsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// SummariesConfig holds the periodic summary scheduler configuration
type SummariesConfig struct {
	CheckIntervalMin int `mapstructure:"check_interval_min"`
}
