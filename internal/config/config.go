package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. SURVEY_REDIS_ADDR.
const EnvPrefix = "SURVEY"

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		// Mode is "production" (JSON) or "development" (console).
		Mode string `yaml:"mode"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`
	AMQP struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"amqp"`
	Survey struct {
		TTL  string `yaml:"ttl"`
		File string `yaml:"file"`
	} `yaml:"survey"`
	Session struct {
		Cookie string `yaml:"cookie"`
		TTL    string `yaml:"ttl"`
		Secure bool   `yaml:"secure"`
	} `yaml:"session"`
	Workers struct {
		Count int `yaml:"count"`
		Queue int `yaml:"queue"`
	} `yaml:"workers"`
}

// Load reads YAML config from path, then applies SURVEY_* environment
// overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("environment overrides: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Mode == "" {
		c.Log.Mode = "production"
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "surveys"
	}
	if c.AMQP.Exchange == "" {
		c.AMQP.Exchange = "surveys"
	}
	if c.Session.Cookie == "" {
		c.Session.Cookie = "survey_session"
	}
	if c.Workers.Count <= 0 {
		c.Workers.Count = 4
	}
	if c.Workers.Queue <= 0 {
		c.Workers.Queue = 100
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
