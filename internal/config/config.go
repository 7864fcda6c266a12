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
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Gateway  GatewayConfig  `yaml:"gateway" mapstructure:"gateway"`
	Crossref CrossrefConfig `yaml:"crossref" mapstructure:"crossref"`
	OpenAlex OpenAlexConfig `yaml:"openalex" mapstructure:"openalex"`
	Match    MatchConfig    `yaml:"match" mapstructure:"match"`
	Dedupe   DedupeConfig   `yaml:"dedupe" mapstructure:"dedupe"`
	Quality  QualityConfig  `yaml:"quality" mapstructure:"quality"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	LLM      LLMConfig      `yaml:"llm" mapstructure:"llm"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// CacheConfig configures the metadata cache backend.
type CacheConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite, postgres, memory
	Path        string `yaml:"path" mapstructure:"path"`     // sqlite file path
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	TTLHours    int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// ProviderLimit configures one provider's token bucket.
type ProviderLimit struct {
	RatePerSec float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst      int     `yaml:"burst" mapstructure:"burst"`
}

// GatewayConfig configures the rate-limited API gateway.
type GatewayConfig struct {
	TimeoutSecs   int                      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries    int                      `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent     string                   `yaml:"user_agent" mapstructure:"user_agent"`
	BatchSize     int                      `yaml:"batch_size" mapstructure:"batch_size"`
	FlushMillis   int                      `yaml:"flush_millis" mapstructure:"flush_millis"`
	ProviderRates map[string]ProviderLimit `yaml:"provider_rates" mapstructure:"provider_rates"`
}

// CrossrefConfig holds DOI registry settings.
type CrossrefConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	MailTo  string `yaml:"mailto" mapstructure:"mailto"` // polite-pool contact
}

// OpenAlexConfig holds scholarly-graph settings.
type OpenAlexConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// MatchConfig configures citation-to-literature matching.
type MatchConfig struct {
	AcceptThreshold float64 `yaml:"accept_threshold" mapstructure:"accept_threshold"`
	MaxCandidates   int     `yaml:"max_candidates" mapstructure:"max_candidates"`
	EmbeddingURL    string  `yaml:"embedding_url" mapstructure:"embedding_url"` // empty disables the embedding scorer
	EmbeddingModel  string  `yaml:"embedding_model" mapstructure:"embedding_model"`
}

// DedupeConfig configures duplicate grouping thresholds. The combination
// (title alone, or title+authors) is business logic carried from the
// upstream system; tune with care.
type DedupeConfig struct {
	TitleThreshold         float64 `yaml:"title_threshold" mapstructure:"title_threshold"`
	CombinedTitleThreshold float64 `yaml:"combined_title_threshold" mapstructure:"combined_title_threshold"`
	AuthorThreshold        float64 `yaml:"author_threshold" mapstructure:"author_threshold"`
}

// QualityConfig points at the YAML weights file; empty uses built-ins.
// CheckLinks enables HEAD probes of reference URLs during assessment.
type QualityConfig struct {
	WeightsPath string `yaml:"weights_path" mapstructure:"weights_path"`
	CheckLinks  bool   `yaml:"check_links" mapstructure:"check_links"`
}

// PipelineConfig configures orchestration behavior.
type PipelineConfig struct {
	MaxReferences  int `yaml:"max_references" mapstructure:"max_references"`
	MaxConcurrency int `yaml:"max_concurrency" mapstructure:"max_concurrency"`
}

// LLMConfig holds the optional fallback citation generator settings.
type LLMConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("BIBLIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("cache.driver", "sqlite")
	v.SetDefault("cache.path", "biblio-cache.db")
	v.SetDefault("cache.ttl_hours", 24)
	v.SetDefault("gateway.timeout_secs", 30)
	v.SetDefault("gateway.max_retries", 3)
	v.SetDefault("gateway.user_agent", "biblio-cli/1.0")
	v.SetDefault("gateway.batch_size", 50)
	v.SetDefault("gateway.flush_millis", 200)
	v.SetDefault("crossref.base_url", "https://api.crossref.org")
	v.SetDefault("openalex.base_url", "https://api.openalex.org")
	v.SetDefault("match.accept_threshold", 0.3)
	v.SetDefault("match.max_candidates", 3)
	v.SetDefault("dedupe.title_threshold", 0.8)
	v.SetDefault("dedupe.combined_title_threshold", 0.6)
	v.SetDefault("dedupe.author_threshold", 0.5)
	v.SetDefault("quality.check_links", false)
	v.SetDefault("pipeline.max_references", 100)
	v.SetDefault("pipeline.max_concurrency", 8)
	v.SetDefault("server.port", 8080)
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

// DefaultProviderRates returns documented per-provider rate limits used
// when the config file does not override them.
func DefaultProviderRates() map[string]ProviderLimit {
	return map[string]ProviderLimit{
		"crossref": {RatePerSec: 10, Burst: 10}, // polite pool guidance
		"pubmed":   {RatePerSec: 3, Burst: 3},   // NCBI E-utilities without key
		"openalex": {RatePerSec: 10, Burst: 10},
	}
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
