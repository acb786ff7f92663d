package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/audit-engine/internal/authority"
	"github.com/sells-group/audit-engine/internal/corpus"
	"github.com/sells-group/audit-engine/internal/engine"
	"github.com/sells-group/audit-engine/internal/scorer"
	"github.com/sells-group/audit-engine/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig      `yaml:"store" mapstructure:"store"`
	Registry  RegistryConfig   `yaml:"registry" mapstructure:"registry"`
	Scorer    scorer.Config    `yaml:"scorer" mapstructure:"scorer"`
	Corpus    corpus.Config    `yaml:"corpus" mapstructure:"corpus"`
	Authority authority.Config `yaml:"authority" mapstructure:"authority"`
	Engine    engine.Config    `yaml:"engine" mapstructure:"engine"`
	Audit     AuditConfig      `yaml:"audit" mapstructure:"audit"`
	Server    ServerConfig     `yaml:"server" mapstructure:"server"`
	Log       LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	Driver      string            `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string            `yaml:"database_url" mapstructure:"database_url"`
	Pool        *store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// RegistryConfig points at the declarative rule set and optional target
// facts. An empty rules path selects the built-in rule set.
type RegistryConfig struct {
	RulesPath   string `yaml:"rules_path" mapstructure:"rules_path"`
	TargetsPath string `yaml:"targets_path" mapstructure:"targets_path"`
}

// AuditConfig configures document input and report output locations.
type AuditConfig struct {
	InputDir  string `yaml:"input_dir" mapstructure:"input_dir"`
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
}

// ServerConfig configures the read-only report API.
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
	v.SetEnvPrefix("AUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "audit.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("audit.output_dir", "reports")
	v.SetDefault("engine.workers", 4)
	v.SetDefault("scorer.compliance_target", 0.85)
	v.SetDefault("corpus.shingle_size", 5)
	v.SetDefault("corpus.minhash_size", 128)
	v.SetDefault("corpus.bands", 32)
	v.SetDefault("corpus.similarity_threshold", 0.8)
	v.SetDefault("corpus.naive_threshold", 50)
	v.SetDefault("corpus.repetition_ceiling", 3)
	v.SetDefault("corpus.coverage_threshold", 0.6)
	v.SetDefault("corpus.max_documents", 5000)
	v.SetDefault("corpus.workers", 4)
	v.SetDefault("authority.cache_ttl", "6h")
	v.SetDefault("authority.lookup_timeout", "10s")
	v.SetDefault("authority.rate_per_second", 5)
	v.SetDefault("authority.burst", 5)
	v.SetDefault("authority.queue_depth", 16)
	v.SetDefault("authority.breaker_threshold", 5)
	v.SetDefault("authority.breaker_reset", "30s")

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

// Validate checks the fields required by the given command mode.
func (c *Config) Validate(mode string) error {
	var problems []string

	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	check(c.Engine.Workers >= 1 && c.Engine.Workers <= 64, "engine.workers must be between 1 and 64")
	check(c.Scorer.ComplianceTarget > 0 && c.Scorer.ComplianceTarget <= 1, "scorer.compliance_target must be in (0,1]")
	check(c.Corpus.SimilarityThreshold > 0 && c.Corpus.SimilarityThreshold <= 1, "corpus.similarity_threshold must be in (0,1]")
	check(c.Corpus.CoverageThreshold > 0 && c.Corpus.CoverageThreshold <= 1, "corpus.coverage_threshold must be in (0,1]")

	switch mode {
	case "audit":
		check(c.Audit.InputDir != "", "audit.input_dir is required")
		check(c.Store.Driver == "sqlite" || c.Store.Driver == "postgres", "store.driver must be sqlite or postgres")
		check(c.Store.DatabaseURL != "", "store.database_url is required")
	case "score":
		// Stateless scoring needs no store.
	case "serve", "reports":
		check(c.Store.Driver == "sqlite" || c.Store.Driver == "postgres", "store.driver must be sqlite or postgres")
		check(c.Store.DatabaseURL != "", "store.database_url is required")
		if mode == "serve" {
			check(c.Server.Port > 0, "server.port must be > 0")
		}
	case "authority":
		check(c.Authority.KnowledgeBaseURL != "", "authority.knowledge_base_url is required")
		check(c.Authority.ReputationURL != "", "authority.reputation_url is required")
		check(c.Authority.CoOccurrenceURL != "", "authority.co_occurrence_url is required")
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
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
