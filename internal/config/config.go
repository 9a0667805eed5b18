package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Corpus    CorpusConfig    `yaml:"corpus" mapstructure:"corpus"`
	State     StateConfig     `yaml:"state" mapstructure:"state"`
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	NER       NERConfig       `yaml:"ner" mapstructure:"ner"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Resolve   ResolveConfig   `yaml:"resolve" mapstructure:"resolve"`
	Pool      PoolConfig      `yaml:"pool" mapstructure:"pool"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// CorpusConfig locates the document corpus.
type CorpusConfig struct {
	Dir        string   `yaml:"dir" mapstructure:"dir"`
	Extensions []string `yaml:"extensions" mapstructure:"extensions"`
}

// StateConfig locates the on-disk pipeline state: checkpoint, mention
// store, and pending queue.
type StateConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ExtractConfig configures Phase 1 extraction.
type ExtractConfig struct {
	ChunkSize       int `yaml:"chunk_size" mapstructure:"chunk_size"`
	CheckpointEvery int `yaml:"checkpoint_every" mapstructure:"checkpoint_every"`
	ChunkRetries    int `yaml:"chunk_retries" mapstructure:"chunk_retries"`
	Concurrency     int `yaml:"concurrency" mapstructure:"concurrency"`
	NERTimeoutSecs  int `yaml:"ner_timeout_secs" mapstructure:"ner_timeout_secs"`
}

// NERConfig configures the entity recognizer backend.
type NERConfig struct {
	// Provider is "local" (ONNX model via hugot) or "http" (remote
	// service).
	Provider          string  `yaml:"provider" mapstructure:"provider"`
	ModelPath         string  `yaml:"model_path" mapstructure:"model_path"`
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ResolveConfig configures Phase 2 disambiguation.
type ResolveConfig struct {
	MaxCandidates     int     `yaml:"max_candidates" mapstructure:"max_candidates"`
	MinNameSimilarity float64 `yaml:"min_name_similarity" mapstructure:"min_name_similarity"`
	MaxGapYears       int     `yaml:"max_gap_years" mapstructure:"max_gap_years"`
	LLMTimeoutSecs    int     `yaml:"llm_timeout_secs" mapstructure:"llm_timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	ContextSamples    int     `yaml:"context_samples" mapstructure:"context_samples"`
	ContextWindow     int     `yaml:"context_window" mapstructure:"context_window"`
	NameWeight        float64 `yaml:"name_weight" mapstructure:"name_weight"`
	TemporalWeight    float64 `yaml:"temporal_weight" mapstructure:"temporal_weight"`
	ContextWeight     float64 `yaml:"context_weight" mapstructure:"context_weight"`
}

// PoolConfig configures the decided-pool database backend.
type PoolConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// FetchConfig configures corpus source downloads.
type FetchConfig struct {
	Manifest          string  `yaml:"manifest" mapstructure:"manifest"`
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ARCHIVIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("corpus.dir", "corpus")
	v.SetDefault("corpus.extensions", []string{".txt", ".md"})
	v.SetDefault("state.dir", "state")
	v.SetDefault("extract.chunk_size", 4096)
	v.SetDefault("extract.checkpoint_every", 25)
	v.SetDefault("extract.chunk_retries", 3)
	v.SetDefault("extract.concurrency", 4)
	v.SetDefault("extract.ner_timeout_secs", 60)
	v.SetDefault("ner.provider", "local")
	v.SetDefault("ner.model_path", "models/ner")
	v.SetDefault("ner.requests_per_second", 5)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("resolve.max_candidates", 5)
	v.SetDefault("resolve.min_name_similarity", 0.35)
	v.SetDefault("resolve.max_gap_years", 200)
	v.SetDefault("resolve.llm_timeout_secs", 60)
	v.SetDefault("resolve.requests_per_second", 2)
	v.SetDefault("resolve.context_samples", 3)
	v.SetDefault("resolve.context_window", 200)
	v.SetDefault("resolve.name_weight", 0.55)
	v.SetDefault("resolve.temporal_weight", 0.25)
	v.SetDefault("resolve.context_weight", 0.20)
	v.SetDefault("pool.driver", "sqlite")
	v.SetDefault("pool.database_url", "state/pool.db")
	v.SetDefault("fetch.manifest", "sources.yaml")
	v.SetDefault("fetch.timeout_secs", 120)
	v.SetDefault("fetch.requests_per_second", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
