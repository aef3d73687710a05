package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/runtime"
)

const version = "0.1.0"

// consoleModule prints script output. It is registered by reflection.
type consoleModule struct {
	out io.Writer
	mu  sync.Mutex
}

func (c *consoleModule) ModuleName() string { return "Console" }

func (c *consoleModule) Log(parts ...any)   { c.print("", parts) }
func (c *consoleModule) Warn(parts ...any)  { c.print("warn: ", parts) }
func (c *consoleModule) Error(parts ...any) { c.print("error: ", parts) }

func (c *consoleModule) print(prefix string, parts []any) {
	strs := make([]string, len(parts))
	for i, p := range parts {
		strs[i] = fmt.Sprint(p)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, prefix+strings.Join(strs, " "))
}

// counter is a shared object: the same host value always reaches
// scripts as the same wrapper.
type counter struct {
	runtime.SharedObjectBase
	n atomic.Int64
}

func (c *counter) add(delta int64) int64 {
	v := c.n.Add(delta)
	c.Emit("changed", v)
	return v
}

func counterClass() *runtime.ClassDefinition {
	return runtime.NewClass("Counter").
		Constructor(func(start int64) *counter {
			c := &counter{}
			c.n.Store(start)
			return c
		}).
		Method("increment", func(c *counter) int64 { return c.add(1) }).
		Method("add", func(c *counter, delta int64) int64 { return c.add(delta) }).
		AsyncMethod("incrementLater", func(c *counter, ms int64, p *runtime.Promise) {
			time.AfterFunc(time.Duration(ms)*time.Millisecond, func() {
				p.Resolve(c.add(1))
			})
		}).
		Property("value", func(c *counter) int64 { return c.n.Load() }, nil)
}

func demoModule() *runtime.ModuleDefinition {
	shared := &counter{}
	return runtime.NewModule("Demo").
		Constant("version", version).
		Function("add", func(a, b float64) float64 { return a + b }).
		Function("fail", func(code, msg string) error { return errors.Coded(code, msg) }).
		Function("shared", func() *counter { return shared }).
		AsyncFunction("sleep", func(ctx context.Context, ms int64) (int64, error) {
			select {
			case <-time.After(time.Duration(ms) * time.Millisecond):
				return ms, nil
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}).
		Class(counterClass())
}
