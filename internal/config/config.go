package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/dex-cli/internal/db"
	"github.com/sells-group/dex-cli/internal/merge"
	"github.com/sells-group/dex-cli/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Dex     DexConfig     `yaml:"dex" mapstructure:"dex"`
	Sources SourcesConfig `yaml:"sources" mapstructure:"sources"`
	Compile CompileConfig `yaml:"compile" mapstructure:"compile"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// DexConfig configures the collection run.
type DexConfig struct {
	MaxID         int      `yaml:"max_id" mapstructure:"max_id"`
	RecordDir     string   `yaml:"record_dir" mapstructure:"record_dir"`
	ArtDir        string   `yaml:"art_dir" mapstructure:"art_dir"`
	RunLog        string   `yaml:"run_log" mapstructure:"run_log"`
	SkipTo        int      `yaml:"skip_to" mapstructure:"skip_to"`
	ForceUpdate   bool     `yaml:"force_update" mapstructure:"force_update"`
	ForceRewrite  bool     `yaml:"force_rewrite" mapstructure:"force_rewrite"`
	AlwaysRefresh []string `yaml:"always_refresh" mapstructure:"always_refresh"`
}

// SourcesConfig configures the upstream pages and HTTP behavior.
type SourcesConfig struct {
	DexBaseURL     string  `yaml:"dex_base_url" mapstructure:"dex_base_url"`
	WikiBaseURL    string  `yaml:"wiki_base_url" mapstructure:"wiki_base_url"`
	ArtworkBaseURL string  `yaml:"artwork_base_url" mapstructure:"artwork_base_url"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries     int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec     float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
	CacheTTLHours  int     `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// CompileConfig configures the group compiler.
type CompileConfig struct {
	Output      string `yaml:"output" mapstructure:"output"`
	TotalOutput string `yaml:"total_output" mapstructure:"total_output"`
	FailFast    bool   `yaml:"fail_fast" mapstructure:"fail_fast"`
}

// StoreConfig selects the run history backend.
type StoreConfig struct {
	Driver      string        `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string        `yaml:"database_url" mapstructure:"database_url"`
	Pool        db.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// ServerConfig configures the read-only HTTP API.
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
	v.SetEnvPrefix("DEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("dex.max_id", model.MaxDexNo)
	v.SetDefault("dex.record_dir", "./data")
	v.SetDefault("dex.art_dir", "./pics")
	v.SetDefault("dex.run_log", "./log")
	v.SetDefault("dex.skip_to", 1)
	v.SetDefault("dex.force_update", false)
	v.SetDefault("dex.force_rewrite", false)
	v.SetDefault("dex.always_refresh", []string{string(model.GroupMatchups)})
	v.SetDefault("sources.dex_base_url", "https://pokemondb.net/pokedex")
	v.SetDefault("sources.wiki_base_url", "https://bulbapedia.bulbagarden.net/wiki")
	v.SetDefault("sources.artwork_base_url", "https://img.pokemondb.net/artwork/large")
	v.SetDefault("sources.timeout_secs", 10)
	v.SetDefault("sources.max_retries", 3)
	v.SetDefault("sources.rate_per_sec", 2.0)
	v.SetDefault("sources.user_agent", "dex-cli/1.0")
	v.SetDefault("sources.cache_ttl_hours", 24)
	v.SetDefault("compile.output", "./slides.json")
	v.SetDefault("compile.total_output", "./total.json")
	v.SetDefault("compile.fail_fast", false)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "dex.db")
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

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Dex.MaxID < 1 {
		return eris.Errorf("config: dex.max_id must be positive, got %d", c.Dex.MaxID)
	}
	if c.Dex.SkipTo < 1 {
		return eris.Errorf("config: dex.skip_to must be at least 1, got %d", c.Dex.SkipTo)
	}
	if c.Dex.RecordDir == "" {
		return eris.New("config: dex.record_dir is required")
	}
	if _, err := c.RefreshGroups(); err != nil {
		return err
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	return nil
}

// RefreshGroups parses dex.always_refresh into field groups.
func (c *Config) RefreshGroups() ([]model.FieldGroup, error) {
	groups := make([]model.FieldGroup, 0, len(c.Dex.AlwaysRefresh))
	for _, s := range c.Dex.AlwaysRefresh {
		g, err := model.ParseFieldGroup(strings.TrimSpace(s))
		if err != nil {
			return nil, eris.Wrap(err, "config: dex.always_refresh")
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// Policy builds the merge policy for a collection run.
func (c *Config) Policy() (merge.Policy, error) {
	groups, err := c.RefreshGroups()
	if err != nil {
		return merge.Policy{}, err
	}
	return merge.Policy{ForceUpdate: c.Dex.ForceUpdate, AlwaysRefresh: groups}, nil
}

// RunOptions returns the run knobs recorded in run history.
func (c *Config) RunOptions() model.RunOptions {
	groups, _ := c.RefreshGroups()
	return model.RunOptions{
		MaxID:        c.Dex.MaxID,
		SkipTo:       c.Dex.SkipTo,
		ForceUpdate:  c.Dex.ForceUpdate,
		ForceRewrite: c.Dex.ForceRewrite,
		Refresh:      groups,
	}
}

// Timeout returns the per-request HTTP timeout.
func (s SourcesConfig) Timeout() time.Duration {
	if s.TimeoutSecs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(s.TimeoutSecs) * time.Second
}

// CacheTTL returns the page cache lifetime; zero disables caching.
func (s SourcesConfig) CacheTTL() time.Duration {
	if s.CacheTTLHours <= 0 {
		return 0
	}
	return time.Duration(s.CacheTTLHours) * time.Hour
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

// ValidateServe checks the settings needed by the HTTP API.
func (c *Config) ValidateServe() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return eris.Errorf("config: server.port out of range: %d", c.Server.Port)
	}
	return nil
}
