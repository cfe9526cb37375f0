// Package config loads application settings from an optional TOML file with
// environment variable overrides. Environment always wins.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Port          string `toml:"port"`
	DBPath        string `toml:"db_path"`
	ArtifactDir   string `toml:"artifact_dir"`
	IntervalHours int    `toml:"interval_hours"`
	Workers       int    `toml:"workers"`
	SerpAPIKey    string `toml:"serpapi_key"`
}

func defaults() Config {
	return Config{
		Port:          "8080",
		DBPath:        "aggregator.db",
		ArtifactDir:   "data",
		IntervalHours: 12,
		Workers:       3,
	}
}

// Load reads the config file at path (skipped when path is empty) and then
// applies environment overrides.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.ArtifactDir = getEnv("ARTIFACT_DIR", c.ArtifactDir)
	c.IntervalHours = getEnvInt("INTERVAL_HOURS", c.IntervalHours)
	c.Workers = getEnvInt("WORKERS", c.Workers)
	c.SerpAPIKey = getEnv("SERPAPI_KEY", c.SerpAPIKey)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return fallback
		}
		n = n*10 + int(c-'0')
	}
	return n
}
