package runtime

import (
	"go.uber.org/zap"

	"github.com/wippyai/jsbridge/engine"
	"github.com/wippyai/jsbridge/transcoder"
)

// DefaultNamespace is the global under which the bridge is exposed.
const DefaultNamespace = "host"

// Config configures a Bridge.
type Config struct {
	// Namespace is the global name of the root object. Defaults to "host".
	Namespace string

	// WeakMode selects how shared object wrappers are held.
	WeakMode engine.WeakMode

	// Logger overrides the engine logger for this bridge.
	Logger *zap.Logger

	// Registry supplies converters. Defaults to transcoder.DefaultRegistry().
	Registry *transcoder.Registry
}

func (c *Config) withDefaults() Config {
	var out Config
	if c != nil {
		out = *c
	}
	if out.Namespace == "" {
		out.Namespace = DefaultNamespace
	}
	if out.Logger == nil {
		out.Logger = engine.Logger()
	}
	if out.Registry == nil {
		out.Registry = transcoder.DefaultRegistry()
	}
	return out
}
