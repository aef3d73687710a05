package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"go.uber.org/zap"

	"github.com/wippyai/jsbridge/config"
	"github.com/wippyai/jsbridge/engine"
	"github.com/wippyai/jsbridge/runtime"
	"github.com/wippyai/jsbridge/wasmhost"
)

const pollInterval = 5 * time.Millisecond

// session is one script runtime: an event loop, the bridge installed on
// its goja runtime and the wasm modules exposed through it.
type session struct {
	cfg    config.Config
	log    *zap.Logger
	loop   *eventloop.EventLoop
	inv    *engine.LoopInvoker
	bridge *runtime.Bridge
	wasm   []*wasmhost.Module
}

func newSession(ctx context.Context, cfg config.Config, log *zap.Logger, out io.Writer) (*session, error) {
	loop := eventloop.NewEventLoop(eventloop.EnableConsole(false))
	loop.Start()

	s := &session{
		cfg:  cfg,
		log:  log,
		loop: loop,
		inv:  engine.NewLoopInvoker(loop),
	}

	bc, err := cfg.BridgeConfig(log)
	if err != nil {
		s.close(ctx)
		return nil, err
	}
	var berr error
	if err := s.inv.InvokeSync(ctx, func(vm *goja.Runtime) {
		s.bridge, berr = runtime.NewWithConfig(vm, s.inv, bc)
	}); err != nil {
		s.close(ctx)
		return nil, err
	}
	if berr != nil {
		s.close(ctx)
		return nil, berr
	}

	if err := s.bridge.RegisterHost(&consoleModule{out: out}); err != nil {
		s.close(ctx)
		return nil, err
	}
	if err := s.bridge.RegisterModule(demoModule()); err != nil {
		s.close(ctx)
		return nil, err
	}

	for _, m := range cfg.WasmModules {
		if err := s.loadWasm(ctx, m); err != nil {
			s.close(ctx)
			return nil, err
		}
	}
	return s, nil
}

func (s *session) loadWasm(ctx context.Context, m config.WasmModule) error {
	data, err := os.ReadFile(m.Path)
	if err != nil {
		return fmt.Errorf("read wasm module %s: %w", m.Name, err)
	}
	mod, err := wasmhost.Load(ctx, m.Name, data, append(m.Options(), wasmhost.WithLogger(s.log))...)
	if err != nil {
		return err
	}
	s.wasm = append(s.wasm, mod)
	return s.bridge.RegisterModule(mod.Definition())
}

// modules lists the registered module names.
func (s *session) modules(ctx context.Context) []string {
	var names []string
	_ = s.inv.InvokeSync(ctx, func(*goja.Runtime) {
		names = s.bridge.ModuleNames()
	})
	return names
}

// eval runs src on the loop. When the completion value is a promise it
// waits, up to the configured timeout, for it to settle and reports its
// outcome instead.
func (s *session) eval(ctx context.Context, name, src string) (string, error) {
	var (
		out     string
		promise *goja.Promise
		err     error
	)
	if ierr := s.inv.InvokeSync(ctx, func(vm *goja.Runtime) {
		var v goja.Value
		v, err = vm.RunScript(name, src)
		if ex, ok := err.(*goja.Exception); ok {
			err = &scriptError{msg: display(vm, ex.Value())}
		}
		if err != nil {
			return
		}
		if p, ok := v.Export().(*goja.Promise); ok {
			promise = p
			return
		}
		out = display(vm, v)
	}); ierr != nil {
		return "", ierr
	}
	if err != nil || promise == nil {
		return out, err
	}
	return s.await(ctx, promise)
}

func (s *session) await(ctx context.Context, p *goja.Promise) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		var (
			out   string
			state goja.PromiseState
			err   error
		)
		if ierr := s.inv.InvokeSync(ctx, func(vm *goja.Runtime) {
			state = p.State()
			switch state {
			case goja.PromiseStateFulfilled:
				out = display(vm, p.Result())
			case goja.PromiseStateRejected:
				err = &scriptError{msg: display(vm, p.Result())}
			}
		}); ierr != nil {
			return "", fmt.Errorf("waiting for promise: %w", ierr)
		}
		if state != goja.PromiseStatePending {
			return out, err
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("promise still pending after %s", s.cfg.Timeout)
		case <-ticker.C:
		}
	}
}

func (s *session) close(ctx context.Context) {
	if s.bridge != nil {
		_ = s.inv.InvokeSync(ctx, func(*goja.Runtime) {
			_ = s.bridge.Close()
		})
	}
	s.inv.Close()
	s.loop.Stop()
	for _, m := range s.wasm {
		_ = m.Close(ctx)
	}
}

// scriptError is a rejection or uncaught exception.
type scriptError struct {
	msg string
}

func (e *scriptError) Error() string { return "Uncaught " + e.msg }

// display renders a completion value. Errors show their code when they
// carry one; plain objects are shown as JSON.
func display(vm *goja.Runtime, v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return v.String()
	}
	if _, isFn := goja.AssertFunction(obj); isFn {
		return v.String()
	}
	if obj.ClassName() == "Error" {
		if code := obj.Get("code"); code != nil && !goja.IsUndefined(code) {
			return code.String() + ": " + obj.Get("message").String()
		}
		return v.String()
	}
	b, err := obj.MarshalJSON()
	if err != nil {
		return v.String()
	}
	return string(b)
}

// runFile runs a script once and prints its completion value.
func runFile(ctx context.Context, cfg config.Config, log *zap.Logger, path string, out io.Writer) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	s, err := newSession(ctx, cfg, log, out)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	res, err := s.eval(ctx, path, string(src))
	if err != nil {
		return err
	}
	if res != "undefined" {
		fmt.Fprintln(out, res)
	}
	return nil
}
