// Package config loads relay server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/BioHazard786/Questroom/internal/protocol"
)

// Config holds the relay server configuration.
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	// MaxCapacity caps the capacity a peer may request for a new room.
	MaxCapacity int `env:"MAX_CAPACITY" envDefault:"16"`

	// PoseRate and PoseBurst bound the pose messages relayed per client.
	PoseRate  float64 `env:"POSE_RATE" envDefault:"60"`
	PoseBurst int     `env:"POSE_BURST" envDefault:"10"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.MaxCapacity < 1 || cfg.MaxCapacity > protocol.MaxCapacity {
		return nil, fmt.Errorf("MAX_CAPACITY must be in [1, %d], got %d", protocol.MaxCapacity, cfg.MaxCapacity)
	}
	if cfg.PoseRate <= 0 || cfg.PoseBurst < 1 {
		return nil, fmt.Errorf("POSE_RATE and POSE_BURST must be positive")
	}
	return &cfg, nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}
