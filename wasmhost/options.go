package wasmhost

import (
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"
)

// Option configures Load.
type Option func(*options)

type signature struct {
	params  []wit.Type
	results []wit.Type
}

type options struct {
	logger           *zap.Logger
	signatures       map[string]signature
	wit              []string
	memoryLimitPages uint32
	threads          bool
	wasi             bool
	noAsync          bool
}

// WithSignature declares the WIT parameter and result types of an export.
func WithSignature(export string, params, results []wit.Type) Option {
	return func(o *options) {
		if o.signatures == nil {
			o.signatures = make(map[string]signature)
		}
		o.signatures[export] = signature{params: params, results: results}
	}
}

// WithWIT declares export signatures from WIT function declarations:
//
//	add: func(a: s32, b: s32) -> s32;
//	export is-even: func(n: u32) -> bool;
//
// Explicit WithSignature options take precedence.
func WithWIT(text string) Option {
	return func(o *options) {
		o.wit = append(o.wit, text)
	}
}

// WithMemoryLimitPages caps instance memory in 64KiB pages.
func WithMemoryLimitPages(pages uint32) Option {
	return func(o *options) {
		o.memoryLimitPages = pages
	}
}

// WithThreads enables the threads proposal (experimental).
func WithThreads() Option {
	return func(o *options) {
		o.threads = true
	}
}

// WithWASI instantiates wasi_snapshot_preview1 for modules that import it.
func WithWASI() Option {
	return func(o *options) {
		o.wasi = true
	}
}

// WithoutAsync skips the <export>Async variants.
func WithoutAsync() Option {
	return func(o *options) {
		o.noAsync = true
	}
}

// WithLogger overrides the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}
