package wasmhost

import (
	"context"
	stderrors "errors"
	"slices"
	"strconv"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/jsbridge/engine"
	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/runtime"
	"github.com/wippyai/jsbridge/transcoder"
)

// CodeTrap is the script-visible code of a failed guest call.
const CodeTrap = "ERR_WASM_TRAP"

// Export is one exported function.
type Export struct {
	fn      api.Function
	Name    string
	params  []slot
	results []slot
}

// Params returns the parameter descriptors.
func (e *Export) Params() []transcoder.Type {
	out := make([]transcoder.Type, len(e.params))
	for i, s := range e.params {
		out[i] = s.desc
	}
	return out
}

// Module is an instantiated core module. Calls are serialized: a wazero
// instance is not safe for concurrent use.
type Module struct {
	rt      wazero.Runtime
	mod     api.Module
	log     *zap.Logger
	exports map[string]*Export
	name    string
	names   []string
	noAsync bool
	mu      sync.Mutex
	closed  bool
}

// Load compiles and instantiates wasm. Exports are typed from WIT
// signatures when declared, otherwise from their core value types.
func Load(ctx context.Context, name string, wasm []byte, opts ...Option) (*Module, error) {
	if name == "" {
		return nil, errors.InvalidInput(errors.PhaseLoad, "module name cannot be empty")
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	log := o.logger
	if log == nil {
		log = engine.Logger()
	}

	sigs := make(map[string]signature)
	for _, text := range o.wit {
		parsed, err := parseWIT(text)
		if err != nil {
			return nil, err
		}
		for k, v := range parsed {
			sigs[k] = v
		}
	}
	for k, v := range o.signatures {
		sigs[k] = v
	}

	cfg := wazero.NewRuntimeConfig()
	if o.memoryLimitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(o.memoryLimitPages)
	}
	if o.threads {
		cfg = cfg.WithCoreFeatures(api.CoreFeaturesV2 | experimental.CoreFeaturesThreads)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, cfg)

	m, err := instantiate(ctx, rt, name, wasm, o.wasi, sigs)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	m.log = log.With(zap.String("wasm_module", name))
	m.noAsync = o.noAsync

	m.log.Debug("wasm module loaded", zap.Strings("exports", m.names))
	return m, nil
}

func instantiate(ctx context.Context, rt wazero.Runtime, name string, wasm []byte, wasi bool, sigs map[string]signature) (*Module, error) {
	if wasi {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
			return nil, errors.Load("instantiate wasi", err)
		}
	}

	compiled, err := rt.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Load("compile "+name, err)
	}
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name).WithStartFunctions())
	if err != nil {
		return nil, errors.Load("instantiate "+name, err)
	}

	m := &Module{rt: rt, mod: mod, name: name, exports: make(map[string]*Export)}
	for exportName, def := range compiled.ExportedFunctions() {
		e, err := newExport(mod, exportName, def, sigs)
		if err != nil {
			return nil, err
		}
		m.exports[exportName] = e
		m.names = append(m.names, exportName)
	}
	slices.Sort(m.names)

	for sigName := range sigs {
		if _, ok := m.exports[sigName]; !ok {
			return nil, errors.NotFound(errors.PhaseLoad, "export", sigName)
		}
	}
	return m, nil
}

func newExport(mod api.Module, name string, def api.FunctionDefinition, sigs map[string]signature) (*Export, error) {
	e := &Export{Name: name, fn: mod.ExportedFunction(name)}
	if e.fn == nil {
		return nil, errors.NotFound(errors.PhaseLoad, "export", name)
	}

	pt, rt := def.ParamTypes(), def.ResultTypes()
	sig, typed := sigs[name]
	if typed && (len(sig.params) != len(pt) || len(sig.results) != len(rt)) {
		return nil, errors.New(errors.PhaseLoad, errors.KindTypeMismatch).
			Call("", name).
			Detail("signature has %d params and %d results, export has %d and %d",
				len(sig.params), len(sig.results), len(pt), len(rt)).
			Build()
	}

	for i, vt := range pt {
		s, err := exportSlot(vt, typed, sig.params, i)
		if err != nil {
			return nil, withExport(err, name)
		}
		e.params = append(e.params, s)
	}
	for i, vt := range rt {
		s, err := exportSlot(vt, typed, sig.results, i)
		if err != nil {
			return nil, withExport(err, name)
		}
		e.results = append(e.results, s)
	}
	return e, nil
}

func exportSlot(vt api.ValueType, typed bool, types []wit.Type, i int) (slot, error) {
	if typed {
		return witSlot(types[i], vt)
	}
	return coreSlot(vt)
}

func withExport(err error, name string) error {
	var e *errors.Error
	if stderrors.As(err, &e) && e.Method == "" {
		e.Method = name
	}
	return err
}

// Name returns the module name.
func (m *Module) Name() string {
	return m.name
}

// Exports returns the exported function names in sorted order.
func (m *Module) Exports() []string {
	return slices.Clone(m.names)
}

// Export returns an exported function.
func (m *Module) Export(name string) (*Export, bool) {
	e, ok := m.exports[name]
	return e, ok
}

// Call invokes an export with canonical arguments. Missing arguments are
// zero. A single result is returned as is, several as []any, none as
// transcoder.Undefined.
func (m *Module) Call(ctx context.Context, name string, args ...any) (any, error) {
	e, ok := m.exports[name]
	if !ok {
		return nil, errors.NotFound(errors.PhaseCall, "export", name)
	}
	return m.call(ctx, e, args)
}

func (m *Module) call(ctx context.Context, e *Export, args []any) (any, error) {
	if len(args) > len(e.params) {
		err := errors.InvalidArgumentCount(e.Name, len(args), len(e.params))
		err.Module = m.name
		return nil, err
	}

	raw := make([]uint64, len(e.params))
	for i, s := range e.params {
		var v any
		if i < len(args) {
			v = args[i]
		}
		enc, err := s.encode(v)
		if err != nil {
			var be *errors.Error
			if stderrors.As(err, &be) {
				be.Path = append([]string{strconv.Itoa(i)}, be.Path...)
			}
			return nil, err
		}
		raw[i] = enc
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, errors.Closed(errors.PhaseCall, "wasm module "+m.name)
	}
	out, err := e.fn.Call(ctx, raw...)
	m.mu.Unlock()
	if err != nil {
		m.log.Debug("wasm call failed", zap.String("export", e.Name), zap.Error(err))
		return nil, errors.Coded(CodeTrap, "%s.%s: %v", m.name, e.Name, err)
	}

	switch len(e.results) {
	case 0:
		return transcoder.Undefined, nil
	case 1:
		return e.results[0].decode(out[0]), nil
	}
	res := make([]any, len(e.results))
	for i, s := range e.results {
		res[i] = s.decode(out[i])
	}
	return res, nil
}

// Definition builds a bridge module exposing every export and, unless
// disabled, its <export>Async variant.
func (m *Module) Definition() *runtime.ModuleDefinition {
	def := runtime.NewModule(m.name)
	for _, name := range m.names {
		e := m.exports[name]
		def.FunctionWithTypes(name, e.Params(), func(ctx context.Context, args []any) (any, error) {
			return m.call(ctx, e, args)
		})
		if m.noAsync {
			continue
		}
		def.AsyncFunctionWithTypes(name+"Async", e.Params(), func(ctx context.Context, args []any, p *runtime.Promise) error {
			go func() {
				res, err := m.call(ctx, e, args)
				if err != nil {
					p.Reject(err)
					return
				}
				p.Resolve(res)
			}()
			return nil
		})
	}
	return def
}

// Close releases the instance and its runtime.
func (m *Module) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()
	return m.rt.Close(ctx)
}
