package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
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
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Quiz Quiz `yaml:"quiz"`
}

// Quiz holds the play-loop knobs. Zero values fall back to the defaults below.
type Quiz struct {
	TTL              string `yaml:"ttl"`
	InitialBatch     int    `yaml:"initial_batch"`
	RefillBatch      int    `yaml:"refill_batch"`
	RefillAt         int    `yaml:"refill_at"`
	QuestionLimit    int    `yaml:"question_limit"`
	AutoAdvance      string `yaml:"auto_advance"`
	Loading          string `yaml:"loading"`
	BundleDir        string `yaml:"bundle_dir"`
	HistoryLimit     int    `yaml:"history_limit"`
	LeaderboardLimit int    `yaml:"leaderboard_limit"`
}

const (
	DefaultInitialBatch     = 10
	DefaultRefillBatch      = 20
	DefaultRefillAt         = 8
	DefaultHistoryLimit     = 10
	DefaultLeaderboardLimit = 10
	DefaultLoading          = "random"
)

// Load reads YAML config from path and applies defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills unset quiz settings.
func (c *Config) ApplyDefaults() {
	q := &c.Quiz
	if q.InitialBatch <= 0 {
		q.InitialBatch = DefaultInitialBatch
	}
	if q.RefillBatch <= 0 {
		q.RefillBatch = DefaultRefillBatch
	}
	if q.RefillAt <= 0 {
		q.RefillAt = DefaultRefillAt
	}
	if q.QuestionLimit < 0 {
		q.QuestionLimit = 0
	}
	if q.Loading == "" {
		q.Loading = DefaultLoading
	}
	if q.HistoryLimit <= 0 {
		q.HistoryLimit = DefaultHistoryLimit
	}
	if q.LeaderboardLimit <= 0 {
		q.LeaderboardLimit = DefaultLeaderboardLimit
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
