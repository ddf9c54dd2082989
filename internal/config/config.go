// Package config loads server configuration from defaults, an optional
// TOML file, and PYGLS_-prefixed environment variables, in that order.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "PYGLS_"

// Config holds the runtime options of the server.
type Config struct {
	// MaxWorkers is the size of the pool that executes blocking
	// transport reads off the control loop.
	MaxWorkers int `koanf:"max_workers" json:"max_workers"`

	// HandlerWorkers is the size of the pool for handlers that opt out
	// of running on the control loop. The pool is created on first use.
	HandlerWorkers int `koanf:"handler_workers" json:"handler_workers"`

	// SyncKind selects how clients report document edits:
	// "none", "full" or "incremental".
	SyncKind string `koanf:"sync_kind" json:"sync_kind"`

	// HeaderLimit caps the bytes of header lines accumulated per frame
	// before the reader reports a framing error.
	HeaderLimit int `koanf:"header_limit" json:"header_limit"`

	LogLevel string `koanf:"log_level" json:"log_level"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		MaxWorkers:     2,
		HandlerWorkers: 2,
		SyncKind:       "incremental",
		HeaderLimit:    64 * 1024,
		LogLevel:       "info",
	}
}

// Load builds a Config by layering defaults, the TOML file at path (if
// given), environment variables, and finally any explicit overrides,
// typically command line flags.
func Load(path string, overrides map[string]any) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, envPrefix)), value
		},
	}), nil); err != nil {
		return Config{}, fmt.Errorf("config: load environment: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return Config{}, fmt.Errorf("config: load overrides: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.MaxWorkers < 1 {
		return fmt.Errorf("config: max_workers must be at least 1, got %d", c.MaxWorkers)
	}
	if c.HandlerWorkers < 1 {
		return fmt.Errorf("config: handler_workers must be at least 1, got %d", c.HandlerWorkers)
	}
	switch c.SyncKind {
	case "none", "full", "incremental":
	default:
		return fmt.Errorf("config: unknown sync_kind %q", c.SyncKind)
	}
	if c.HeaderLimit < 1 {
		return fmt.Errorf("config: header_limit must be positive, got %d", c.HeaderLimit)
	}
	return nil
}
