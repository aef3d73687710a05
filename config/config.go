// Package config loads bridge and runner settings from YAML.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/jsbridge/engine"
	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/runtime"
	"github.com/wippyai/jsbridge/wasmhost"
)

// DefaultTimeout bounds how long the runner waits for pending work.
const DefaultTimeout = 30 * time.Second

// WasmModule is a core WebAssembly module exposed as a host module.
type WasmModule struct {
	Name             string `yaml:"name"`
	Path             string `yaml:"path"`
	WIT              string `yaml:"wit"`
	MemoryLimitPages uint32 `yaml:"memory_limit_pages"`
	WASI             bool   `yaml:"wasi"`
}

// Options returns the load options declared for the module.
func (m WasmModule) Options() []wasmhost.Option {
	var opts []wasmhost.Option
	if m.WIT != "" {
		opts = append(opts, wasmhost.WithWIT(m.WIT))
	}
	if m.MemoryLimitPages > 0 {
		opts = append(opts, wasmhost.WithMemoryLimitPages(m.MemoryLimitPages))
	}
	if m.WASI {
		opts = append(opts, wasmhost.WithWASI())
	}
	return opts
}

// Config holds bridge and runner settings.
type Config struct {
	Namespace   string        `yaml:"namespace"`
	WeakRefs    string        `yaml:"weak_refs"`
	LogLevel    string        `yaml:"log_level"`
	Timeout     time.Duration `yaml:"timeout"`
	WasmModules []WasmModule  `yaml:"wasm_modules"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Namespace: runtime.DefaultNamespace,
		WeakRefs:  "auto",
		LogLevel:  "warn",
		Timeout:   DefaultTimeout,
	}
}

// Load reads path. A missing file or empty path yields Default.
// Relative module paths are resolved against the file's directory.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "read "+path)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, err
	}
	dir := filepath.Dir(path)
	for i, m := range cfg.WasmModules {
		if m.Path != "" && !filepath.IsAbs(m.Path) {
			cfg.WasmModules[i].Path = filepath.Join(dir, m.Path)
		}
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "parse config")
	}
	if cfg.Namespace == "" {
		cfg.Namespace = runtime.DefaultNamespace
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated settings and module entries.
func (c *Config) Validate() error {
	if _, err := engine.ParseWeakMode(c.WeakRefs); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return errors.InvalidInput(errors.PhaseConfig, "timeout cannot be negative")
	}
	seen := make(map[string]bool, len(c.WasmModules))
	for i, m := range c.WasmModules {
		if m.Name == "" {
			return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Path("wasm_modules", strconv.Itoa(i)).
				Detail("name is required").
				Build()
		}
		if m.Path == "" {
			return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Path("wasm_modules", m.Name).
				Detail("path is required").
				Build()
		}
		if seen[m.Name] {
			return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Path("wasm_modules", m.Name).
				Detail("duplicate module name").
				Build()
		}
		seen[m.Name] = true
	}
	return nil
}

// Level parses LogLevel. The empty string is warn.
func (c *Config) Level() (zapcore.Level, error) {
	if strings.TrimSpace(c.LogLevel) == "" {
		return zapcore.WarnLevel, nil
	}
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.WarnLevel, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log_level")
	}
	return lvl, nil
}

// Logger builds a development logger at the configured level.
func (c *Config) Logger() (*zap.Logger, error) {
	lvl, err := c.Level()
	if err != nil {
		return nil, err
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.DisableStacktrace = true
	return zc.Build()
}

// BridgeConfig converts the settings into a bridge configuration.
func (c *Config) BridgeConfig(log *zap.Logger) (*runtime.Config, error) {
	mode, err := engine.ParseWeakMode(c.WeakRefs)
	if err != nil {
		return nil, err
	}
	return &runtime.Config{
		Namespace: c.Namespace,
		WeakMode:  mode,
		Logger:    log,
	}, nil
}
