// Package config loads service configuration from config.yaml with
// KINGSROOM_-prefixed environment overrides. A .env file, when present, is
// loaded first so local development can override without exporting.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	EntityID string `mapstructure:"entity_id"`
	URLBase  string `mapstructure:"url_base"`
	DataDir  string `mapstructure:"data_dir"`
	DBPath   string `mapstructure:"db_path"`
	LogLevel string `mapstructure:"log_level"`

	// Timezone is the operating region for date-partitioned consolidation
	// keys. Same-day flights must not straddle partitions, so keys are
	// derived in this zone rather than UTC.
	Timezone string `mapstructure:"timezone"`

	Scraper ScraperConfig `mapstructure:"scraper"`
	Social  SocialConfig  `mapstructure:"social"`
	Server  ServerConfig  `mapstructure:"server"`
}

// ScraperConfig controls the range walk and parser behavior.
type ScraperConfig struct {
	MaxConsecutiveBlanks int           `mapstructure:"max_consecutive_blanks"`
	MaxNewGames          int           `mapstructure:"max_new_games"`
	InterURLDelay        time.Duration `mapstructure:"inter_url_delay"`
	ParserTimeout        time.Duration `mapstructure:"parser_timeout"`
	JobBudget            time.Duration `mapstructure:"job_budget"`
}

// SocialConfig controls post matching and twitter ingestion.
type SocialConfig struct {
	AutoLinkThreshold float64 `mapstructure:"auto_link_threshold"`
	WindowDays        int     `mapstructure:"window_days"`
	BatchLimit        int     `mapstructure:"batch_limit"`
}

// ServerConfig controls the control-surface HTTP listener.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load reads config.yaml from the working directory (or ./config) and
// applies environment overrides. Missing entity id or url base is fatal:
// nothing downstream can run without them.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("KINGSROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional when env vars carry everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.EntityID == "" {
		return nil, fmt.Errorf("entity_id is required (KINGSROOM_ENTITY_ID)")
	}
	if cfg.URLBase == "" {
		return nil, fmt.Errorf("url_base is required (KINGSROOM_URL_BASE)")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "~/.local/share/kingsroom")
	v.SetDefault("db_path", "kingsroom.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("timezone", "Australia/Sydney")
	v.SetDefault("scraper.max_consecutive_blanks", 2)
	v.SetDefault("scraper.max_new_games", 50)
	v.SetDefault("scraper.inter_url_delay", 500*time.Millisecond)
	v.SetDefault("scraper.parser_timeout", 30*time.Second)
	v.SetDefault("scraper.job_budget", 10*time.Minute)
	v.SetDefault("social.auto_link_threshold", 0.80)
	v.SetDefault("social.window_days", 7)
	v.SetDefault("social.batch_limit", 25)
	v.SetDefault("server.addr", ":8080")
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
