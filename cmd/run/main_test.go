package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/wippyai/jsbridge/config"
)

// addWasm exports add(i32, i32) -> i32.
var addWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x07, 0x01, 0x03, 'a', 'd', 'd', 0x00, 0x00,
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b,
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func runScript(t *testing.T, cfg config.Config, src string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := runFile(context.Background(), cfg, zap.NewNop(), writeFile(t, "main.js", []byte(src)), &out)
	return out.String(), err
}

func TestWasmFlags(t *testing.T) {
	var w wasmFlags
	if err := w.Set("Calc=calc.wasm"); err != nil {
		t.Fatal(err)
	}
	if err := w.Set(" Other = /x/other.wasm "); err != nil {
		t.Fatal(err)
	}
	if got := w.String(); got != "Calc=calc.wasm,Other=/x/other.wasm" {
		t.Errorf("String = %q", got)
	}
	for _, bad := range []string{"calc.wasm", "=calc.wasm", "Calc="} {
		if err := w.Set(bad); err == nil {
			t.Errorf("Set(%q) accepted", bad)
		}
	}
}

func TestRunFile(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantOut string
		wantErr string
	}{
		{
			name:    "console and sync call",
			src:     `host.modules.Console.log("sum", host.modules.Demo.add(2, 3)); host.modules.Demo.version`,
			wantOut: "sum 5\n0.1.0\n",
		},
		{
			name:    "async result",
			src:     `(async () => { const c = new host.modules.Demo.Counter(1); const v = await c.incrementLater(5); return v + c.value })()`,
			wantOut: "4\n",
		},
		{
			name: "shared events",
			src: `(async () => {
				const seen = [];
				const c = host.modules.Demo.shared();
				c.addListener("changed", v => seen.push(v));
				c.increment();
				c.add(2);
				await host.modules.Demo.sleep(20);
				return seen.join(",") + " " + (c === host.modules.Demo.shared());
			})()`,
			wantOut: "1,3 true\n",
		},
		{
			name:    "object result",
			src:     `({a: 1, b: [true]})`,
			wantOut: "{\"a\":1,\"b\":[true]}\n",
		},
		{
			name:    "undefined result",
			src:     `host.modules.Console.warn("careful")`,
			wantOut: "warn: careful\n",
		},
		{
			name:    "coded throw",
			src:     `host.modules.Demo.fail("E_NOPE", "nope")`,
			wantErr: "E_NOPE: nope",
		},
		{
			name:    "rejection",
			src:     `host.modules.Demo.sleep("soon")`,
			wantErr: "ERR_ARGUMENT_CAST",
		},
		{
			name:    "syntax error",
			src:     `)(`,
			wantErr: "SyntaxError",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runScript(t, config.Default(), tt.src)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("runFile: %v", err)
			}
			if out != tt.wantOut {
				t.Errorf("output = %q, want %q", out, tt.wantOut)
			}
		})
	}
}

func TestRunFile_Timeout(t *testing.T) {
	cfg := config.Default()
	cfg.Timeout = 20 * time.Millisecond

	start := time.Now()
	_, err := runScript(t, cfg, `host.modules.Demo.sleep(5000)`)
	if err == nil || !strings.Contains(err.Error(), "pending") {
		t.Fatalf("err = %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("timeout not honored")
	}
}

func TestRunFile_Wasm(t *testing.T) {
	cfg := config.Default()
	cfg.Namespace = "app"
	cfg.WasmModules = []config.WasmModule{{Name: "Calc", Path: writeFile(t, "calc.wasm", addWasm)}}

	out, err := runScript(t, cfg, `app.modules.Calc.add(2, 3) + ":" + typeof app.modules.Calc.addAsync`)
	if err != nil {
		t.Fatal(err)
	}
	if out != "5:function\n" {
		t.Errorf("output = %q", out)
	}

	cfg.WasmModules[0].Path = filepath.Join(t.TempDir(), "missing.wasm")
	if _, err := runScript(t, cfg, `1`); err == nil {
		t.Error("missing wasm file accepted")
	}
}

func TestReplModel(t *testing.T) {
	ctx := context.Background()
	m := newReplModel(ctx, config.Default(), zap.NewNop(), "")

	msg := m.load()
	loaded, ok := msg.(loadedMsg)
	if !ok || loaded.err != nil {
		t.Fatalf("load = %#v", msg)
	}
	m.Update(loaded)
	defer m.quit()

	found := false
	for _, name := range m.modules {
		if name == "Demo" {
			found = true
		}
	}
	if !found {
		t.Errorf("modules = %v", m.modules)
	}

	m.input.SetValue(`host.modules.Console.log("hi"); 40 + 2`)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil || !m.busy {
		t.Fatal("enter did not start evaluation")
	}
	m.Update(cmd())
	if m.busy || len(m.entries) != 1 {
		t.Fatalf("entries = %+v", m.entries)
	}
	e := m.entries[0]
	if e.err != nil || e.result != "42" || e.output != "hi" {
		t.Errorf("entry = %+v", e)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	if m.input.Value() != `host.modules.Console.log("hi"); 40 + 2` {
		t.Errorf("history recall = %q", m.input.Value())
	}
	if !strings.Contains(m.View(), "jsbridge REPL") {
		t.Error("view missing title")
	}
}

func TestFirstLine(t *testing.T) {
	if got := firstLine("a\nb"); got != "a ..." {
		t.Errorf("firstLine = %q", got)
	}
	if got := firstLine("a"); got != "a" {
		t.Errorf("firstLine = %q", got)
	}
}
