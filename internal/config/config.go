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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Catastro  CatastroConfig  `yaml:"catastro" mapstructure:"catastro"`
	Docstore  DocstoreConfig  `yaml:"docstore" mapstructure:"docstore"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Export    ExportConfig    `yaml:"export" mapstructure:"export"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend. MaxConns and MinConns only
// apply to the postgres driver; zero values fall back to the pool defaults.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings. Classification runs on the
// cheaper model, extraction on the stronger one.
type AnthropicConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	ClassifyModel  string  `yaml:"classify_model" mapstructure:"classify_model"`
	ExtractModel   string  `yaml:"extract_model" mapstructure:"extract_model"`
	MaxTokens      int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature    float64 `yaml:"temperature" mapstructure:"temperature"`
	CacheSystemTTL string  `yaml:"cache_system_ttl" mapstructure:"cache_system_ttl"`
}

// CatastroConfig configures the cadastral registry client and the batch
// sync pacing.
type CatastroConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	SyncDelayMS int    `yaml:"sync_delay_ms" mapstructure:"sync_delay_ms"`
}

// DocstoreConfig configures where uploaded source documents live. The URL
// uses afs scheme syntax, e.g. file:///var/lib/intake/docs or mem://docs.
type DocstoreConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PipelineConfig configures intake processing behavior.
type PipelineConfig struct {
	MaxFileSizeMB   int     `yaml:"max_file_size_mb" mapstructure:"max_file_size_mb"`
	ReviewThreshold float64 `yaml:"review_threshold" mapstructure:"review_threshold"`
	MaxConcurrent   int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	ClassifyMaxToks int64   `yaml:"classify_max_tokens" mapstructure:"classify_max_tokens"`
}

// ExportConfig configures export output.
type ExportConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("INTAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "intake.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("anthropic.classify_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.extract_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("anthropic.temperature", 0.0)
	v.SetDefault("anthropic.cache_system_ttl", "5m")
	v.SetDefault("catastro.base_url", "https://ovc.catastro.meh.es/ovcservweb/OVCSWLocalizacionRC/OVCCallejero.asmx")
	v.SetDefault("catastro.timeout_secs", 15)
	v.SetDefault("catastro.sync_delay_ms", 400)
	v.SetDefault("docstore.base_url", "file:///var/lib/intake/docs")
	v.SetDefault("pipeline.max_file_size_mb", 20)
	v.SetDefault("pipeline.review_threshold", 0.85)
	v.SetDefault("pipeline.max_concurrent", 1)
	v.SetDefault("pipeline.classify_max_tokens", 1024)
	v.SetDefault("export.dir", "exports")

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
