package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/mcdev12/scoreboard/go/internal/datastore"
	"github.com/mcdev12/scoreboard/go/internal/livematch"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverNATS     = "nats"
)

type Config struct {
	Overlay struct {
		PollingInterval  time.Duration `yaml:"polling_interval"`
		MinFetchInterval time.Duration `yaml:"min_fetch_interval"`
		FetchTimeout     time.Duration `yaml:"fetch_timeout"`
		EnableRealtime   bool          `yaml:"enable_realtime"`
		Channel          string        `yaml:"channel"`
	} `yaml:"overlay"`
	Realtime struct {
		Driver          string `yaml:"driver"`
		NotifyChannel   string `yaml:"notify_channel"`
		EventsPerSecond int    `yaml:"events_per_second"`
		InstallTriggers bool   `yaml:"install_triggers"`
	} `yaml:"realtime"`
}

func defaultConfig() *Config {
	sync := livematch.DefaultConfig()
	feed := datastore.DefaultFeedConfig()

	var cfg Config
	cfg.Overlay.PollingInterval = sync.PollingInterval
	cfg.Overlay.MinFetchInterval = sync.MinFetchInterval
	cfg.Overlay.FetchTimeout = sync.FetchTimeout
	cfg.Overlay.EnableRealtime = sync.EnableRealtime
	cfg.Overlay.Channel = sync.Channel
	cfg.Realtime.Driver = DriverPostgres
	cfg.Realtime.NotifyChannel = feed.NotifyChannel
	cfg.Realtime.EventsPerSecond = feed.EventsPerSecond
	return &cfg
}

// loadConfig reads the YAML file at path over the defaults. A missing file is not an error.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	if c.Overlay.PollingInterval <= 0 {
		return fmt.Errorf("overlay.polling_interval must be positive")
	}
	if c.Overlay.MinFetchInterval < 0 {
		return fmt.Errorf("overlay.min_fetch_interval must not be negative")
	}
	switch c.Realtime.Driver {
	case DriverPostgres, DriverNATS:
	default:
		return fmt.Errorf("unknown realtime.driver %q", c.Realtime.Driver)
	}
	return nil
}

func (c *Config) synchronizerConfig() livematch.Config {
	return livematch.Config{
		PollingInterval:  c.Overlay.PollingInterval,
		MinFetchInterval: c.Overlay.MinFetchInterval,
		FetchTimeout:     c.Overlay.FetchTimeout,
		EnableRealtime:   c.Overlay.EnableRealtime,
		Channel:          c.Overlay.Channel,
	}
}

func (c *Config) feedConfig(dsn string) datastore.FeedConfig {
	feed := datastore.DefaultFeedConfig()
	feed.DatabaseURL = dsn
	feed.NotifyChannel = c.Realtime.NotifyChannel
	feed.EventsPerSecond = c.Realtime.EventsPerSecond
	return feed
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
