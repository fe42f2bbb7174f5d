package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/TheYonk/robomonkey/pkg/errors"
)

// EnvConfigPath is the environment variable naming the config file
const EnvConfigPath = "ROBOMONKEY_CONFIG"

// DefaultConfigPath is used when neither the flag nor the env var is set
const DefaultConfigPath = "config/robomonkey.yaml"

// Load loads configuration from file and environment. An empty configPath
// falls back to ROBOMONKEY_CONFIG, then the default location.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = os.Getenv(EnvConfigPath)
	}
	if configPath == "" {
		configPath = DefaultConfigPath
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix("ROBOMONKEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config %s", configPath).
			WithCode(errors.CodeConfig).
			WithHint("set ROBOMONKEY_CONFIG or pass --config")
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config").
			WithCode(errors.CodeConfig)
	}

	// viper lower-cases map keys; job types are upper-snake-case tags
	if len(config.Workers.JobTypeLimits) > 0 {
		limits := make(map[string]int, len(config.Workers.JobTypeLimits))
		for name, n := range config.Workers.JobTypeLimits {
			limits[strings.ToUpper(name)] = n
		}
		config.Workers.JobTypeLimits = limits
	}

	if config.DaemonID == "" {
		config.DaemonID = fmt.Sprintf("daemon-%d", os.Getpid())
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.pool_timeout", 30)

	// Embeddings defaults
	v.SetDefault("embeddings.enabled", true)
	v.SetDefault("embeddings.provider", "ollama")
	v.SetDefault("embeddings.model", "nomic-embed-text")
	v.SetDefault("embeddings.dimension", 1536)
	v.SetDefault("embeddings.batch_size", 32)
	v.SetDefault("embeddings.backfill_on_startup", false)
	v.SetDefault("embeddings.auto_rebuild_indexes", false)
	v.SetDefault("embeddings.rebuild_change_threshold", 1000)
	v.SetDefault("embeddings.rebuild_index_type", "hnsw")
	v.SetDefault("embeddings.ollama.base_url", "http://localhost:11434")
	v.SetDefault("embeddings.ollama.timeout", 60)
	v.SetDefault("embeddings.vllm.base_url", "http://localhost:8000")
	v.SetDefault("embeddings.vllm.timeout", 60)
	v.SetDefault("embeddings.openai.base_url", "https://api.openai.com")
	v.SetDefault("embeddings.openai.timeout", 60)

	// LLM defaults
	v.SetDefault("llm.enabled", false)
	v.SetDefault("llm.provider", "ollama")
	v.SetDefault("llm.deep_model", "llama3.1:70b")
	v.SetDefault("llm.small_model", "llama3.2:3b")
	v.SetDefault("llm.max_tokens", 500)
	v.SetDefault("llm.ollama.base_url", "http://localhost:11434")
	v.SetDefault("llm.ollama.timeout", 120)

	// Worker defaults
	v.SetDefault("workers.mode", "pool")
	v.SetDefault("workers.max_workers", 4)
	v.SetDefault("workers.max_concurrent_per_repo", 2)
	v.SetDefault("workers.poll_interval_sec", 5)
	v.SetDefault("workers.heartbeat_interval_sec", 30)
	v.SetDefault("workers.job_timeout_sec", 1800)

	// Watcher defaults
	v.SetDefault("watcher.enabled", true)
	v.SetDefault("watcher.debounce_ms", 500)
	v.SetDefault("watcher.ignore_patterns", []string{
		".git", ".venv", "venv", "node_modules", "__pycache__",
		".pytest_cache", "dist", "build", ".mypy_cache", ".ruff_cache",
		".next", ".vscode", ".idea", ".DS_Store", ".swp", ".swo",
	})
	v.SetDefault("watcher.extensions", []string{
		".py", ".js", ".jsx", ".ts", ".tsx", ".go", ".java",
	})

	// Jobs defaults
	v.SetDefault("jobs.claim_batch_size", 10)
	v.SetDefault("jobs.max_retries", 5)
	v.SetDefault("jobs.retry_backoff_base_sec", 60)
	v.SetDefault("jobs.cleanup_retention_days", 7)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.json_logs", true)

	// Events defaults
	v.SetDefault("events.enabled", false)
	v.SetDefault("events.addr", "localhost:6379")
	v.SetDefault("events.db", 0)
	v.SetDefault("events.channel", "robomonkey:jobs")

	// Summary scheduler defaults
	v.SetDefault("summaries.check_interval_min", 60)

	// Feature flags
	v.SetDefault("enable_summaries", false)
	v.SetDefault("enable_tag_rules_sync", true)
}

// Validate checks the configuration for fatal mistakes. Any error here
// terminates the process at startup.
func (c *Config) Validate() error {
	if c.Database.ControlDSN == "" {
		return errors.New("database.control_dsn is required").
			WithCode(errors.CodeConfig).
			WithHint("set database.control_dsn to a postgres:// DSN")
	}

	if !strings.HasPrefix(c.Database.ControlDSN, "postgres://") &&
		!strings.HasPrefix(c.Database.ControlDSN, "postgresql://") {
		return errors.Newf("database.control_dsn must begin with postgres:// or postgresql://").
			WithCode(errors.CodeConfig)
	}

	switch c.Workers.Mode {
	case "single", "per_repo", "pool":
	default:
		return errors.Newf("workers.mode must be one of single, per_repo, pool (got %q)", c.Workers.Mode).
			WithCode(errors.CodeConfig)
	}

	if c.Workers.MaxWorkers < 1 {
		return errors.New("workers.max_workers must be at least 1").
			WithCode(errors.CodeConfig)
	}

	if c.Workers.MaxConcurrentPerRepo < 1 {
		return errors.New("workers.max_concurrent_per_repo must be at least 1").
			WithCode(errors.CodeConfig)
	}

	if c.Workers.JobTimeoutSec < 1 {
		return errors.New("workers.job_timeout_sec must be at least 1").
			WithCode(errors.CodeConfig)
	}

	switch c.Embeddings.Provider {
	case "ollama", "vllm", "openai":
	default:
		return errors.Newf("embeddings.provider must be one of ollama, vllm, openai (got %q)", c.Embeddings.Provider).
			WithCode(errors.CodeConfig)
	}

	if c.Embeddings.Dimension < 128 {
		return errors.New("embeddings.dimension must be at least 128").
			WithCode(errors.CodeConfig)
	}

	switch c.Embeddings.RebuildIndexType {
	case "ivfflat", "hnsw":
	default:
		return errors.Newf("embeddings.rebuild_index_type must be ivfflat or hnsw (got %q)", c.Embeddings.RebuildIndexType).
			WithCode(errors.CodeConfig)
	}

	if c.Watcher.DebounceMS < 100 || c.Watcher.DebounceMS > 5000 {
		return errors.New("watcher.debounce_ms must be between 100 and 5000").
			WithCode(errors.CodeConfig)
	}

	if c.Jobs.ClaimBatchSize < 1 {
		return errors.New("jobs.claim_batch_size must be at least 1").
			WithCode(errors.CodeConfig)
	}

	return nil
}
