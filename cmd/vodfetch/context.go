package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	"vodfetch/internal/adapters/sqlite"
	"vodfetch/internal/config"
)

// commandContext lazily loads configuration shared by all subcommands.
type commandContext struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zerolog.Logger
}

func (c *commandContext) config() (config.Config, error) {
	if c.cfg != nil {
		return *c.cfg, nil
	}
	cfg, _, err := config.Load(c.configPath)
	if err != nil {
		return config.Config{}, err
	}
	c.cfg = &cfg
	return cfg, nil
}

func (c *commandContext) log() zerolog.Logger {
	if c.logger != nil {
		return *c.logger
	}
	level := zerolog.WarnLevel
	if c.verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
	c.logger = &logger
	return logger
}

func (c *commandContext) openDB(ctx context.Context) (*sqlite.DB, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	return sqlite.Open(ctx, cfg.Server.DBPath)
}
