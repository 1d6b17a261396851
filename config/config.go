// Package config loads runtime settings from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is everything the binaries need at startup.
type Config struct {
	GeminiAPIKey  string `env:"GEMINI_API_KEY"`
	NarratorModel string `env:"NARRATOR_MODEL" envDefault:"gemini-2.5-flash"`

	ContentDir string `env:"MIRRORLOOP_CONTENT_DIR" envDefault:"content"`
	SaveDir    string `env:"MIRRORLOOP_SAVE_DIR"`
	SaveDB     string `env:"MIRRORLOOP_SAVE_DB"` // non-empty selects the SQLite store

	Debug bool `env:"MIRRORLOOP_DEBUG"`
}

// Load reads .env if present, then the environment. SaveDir defaults under
// the user's home directory.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.SaveDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve home dir: %w", err)
		}
		cfg.SaveDir = filepath.Join(home, ".mirrorloop", "saves")
	}
	return cfg, nil
}
