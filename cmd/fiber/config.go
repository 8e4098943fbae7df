package main

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v2"

	"github.com/webriots/fiber/logging"
)

type fileConfig struct {
	Log   logConfig   `toml:"log"`
	Serve serveConfig `toml:"serve"`
}

type logConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type serveConfig struct {
	Addr    string `toml:"addr"`
	Metrics bool   `toml:"metrics"`
}

func defaultFileConfig() fileConfig {
	return fileConfig{
		Log:   logConfig{Level: "info", Format: "text"},
		Serve: serveConfig{Addr: ":8080", Metrics: true},
	}
}

// loadConfig reads path over the defaults. An empty path yields the
// defaults.
func loadConfig(path string) (fileConfig, error) {
	cfg := defaultFileConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// settings loads the config file named by --config and applies the
// global flags on top of it.
func settings(c *cli.Context) (fileConfig, logging.Logger, error) {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return cfg, nil, err
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Log.Format = c.String("log-format")
	}

	level, ok := logging.ParseLevel(cfg.Log.Level)
	if !ok {
		return cfg, nil, fmt.Errorf("unknown log level %q", cfg.Log.Level)
	}
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.Log.Format,
		Output:    c.App.ErrWriter,
		Component: c.Command.Name,
	})
	return cfg, logger, nil
}
