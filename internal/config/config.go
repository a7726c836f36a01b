package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Brokerage struct {
		BaseURL     string `yaml:"base_url"`
		AccessToken string `yaml:"access_token"`
		AccountID   string `yaml:"account_id"`
	} `yaml:"brokerage"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Fill struct {
		MaxAttempts     int           `yaml:"max_attempts"`
		PollInterval    time.Duration `yaml:"poll_interval"`
		PollsPerAttempt int           `yaml:"polls_per_attempt"`
	} `yaml:"fill"`
	Monitor struct {
		SweepCron string `yaml:"sweep_cron"`
		Disabled  bool   `yaml:"disabled"`
	} `yaml:"monitor"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("TRADIER_BASE_URL"); v != "" {
		cfg.Brokerage.BaseURL = v
	}
	if v := os.Getenv("TRADIER_ACCESS_TOKEN"); v != "" {
		cfg.Brokerage.AccessToken = v
	}
	if v := os.Getenv("TRADIER_ACCOUNT_ID"); v != "" {
		cfg.Brokerage.AccountID = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("EXIT_SWEEP_CRON"); v != "" {
		cfg.Monitor.SweepCron = v
	}

	// Defaults
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/signaldesk.db"
	}
	if cfg.Fill.MaxAttempts == 0 {
		cfg.Fill.MaxAttempts = 14
	}
	if cfg.Fill.PollInterval == 0 {
		cfg.Fill.PollInterval = 2 * time.Second
	}
	if cfg.Fill.PollsPerAttempt == 0 {
		cfg.Fill.PollsPerAttempt = 3
	}
	if cfg.Monitor.SweepCron == "" {
		// every 5 minutes during regular+extended trading hours, Mon-Fri
		cfg.Monitor.SweepCron = "0 */5 7-20 * * 1-5"
	}

	return cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	if c.Brokerage.BaseURL != "" {
		if c.Brokerage.AccessToken == "" {
			return fmt.Errorf("brokerage.access_token is required when base_url is set")
		}
		if c.Brokerage.AccountID == "" {
			return fmt.Errorf("brokerage.account_id is required when base_url is set")
		}
	}
	if c.Fill.MaxAttempts < 1 || c.Fill.MaxAttempts > 14 {
		return fmt.Errorf("fill.max_attempts must be between 1 and 14")
	}
	return nil
}
