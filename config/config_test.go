package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/wippyai/jsbridge/engine"
	"github.com/wippyai/jsbridge/errors"
)

func TestLoad_Missing(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "nope.yaml")} {
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%q): %v", path, err)
		}
		if cfg.Namespace != "host" || cfg.Timeout != DefaultTimeout || cfg.WeakRefs != "auto" {
			t.Errorf("Load(%q) = %+v, want defaults", path, cfg)
		}
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bridge.yaml")
	data := `
namespace: app
weak_refs: strong
log_level: debug
timeout: 5s
wasm_modules:
  - name: Calc
    path: calc.wasm
    wit: "add: func(a: s32, b: s32) -> s32;"
    memory_limit_pages: 4
  - name: Abs
    path: /opt/abs.wasm
    wasi: true
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Namespace != "app" || cfg.Timeout != 5*time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(cfg.WasmModules) != 2 {
		t.Fatalf("modules = %+v", cfg.WasmModules)
	}
	if got := cfg.WasmModules[0].Path; got != filepath.Join(dir, "calc.wasm") {
		t.Errorf("relative path = %s", got)
	}
	if got := cfg.WasmModules[1].Path; got != "/opt/abs.wasm" {
		t.Errorf("absolute path = %s", got)
	}
	if n := len(cfg.WasmModules[0].Options()); n != 2 {
		t.Errorf("Calc options = %d, want 2", n)
	}
	if n := len(cfg.WasmModules[1].Options()); n != 1 {
		t.Errorf("Abs options = %d, want 1", n)
	}

	lvl, err := cfg.Level()
	if err != nil || lvl != zapcore.DebugLevel {
		t.Errorf("Level = %v, %v", lvl, err)
	}

	bc, err := cfg.BridgeConfig(nil)
	if err != nil {
		t.Fatal(err)
	}
	if bc.Namespace != "app" || bc.WeakMode != engine.WeakStrong {
		t.Errorf("BridgeConfig = %+v", bc)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"weak mode", "weak_refs: sometimes"},
		{"log level", "log_level: loud"},
		{"negative timeout", "timeout: -1s"},
		{"missing name", "wasm_modules: [{path: a.wasm}]"},
		{"missing path", "wasm_modules: [{name: A}]"},
		{"duplicate", "wasm_modules: [{name: A, path: a.wasm}, {name: A, path: b.wasm}]"},
		{"malformed", "namespace: [unclosed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			var e *errors.Error
			if !stderrors.As(err, &e) || e.Phase != errors.PhaseConfig {
				t.Errorf("err = %v, want config phase error", err)
			}
		})
	}
}

func TestParse_EmptyKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("namespace: \"\"\ntimeout: 0s\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Namespace != "host" || cfg.Timeout != DefaultTimeout {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLogger(t *testing.T) {
	cfg := Default()
	log, err := cfg.Logger()
	if err != nil {
		t.Fatal(err)
	}
	if log.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info enabled at warn level")
	}
	if !log.Core().Enabled(zapcore.ErrorLevel) {
		t.Error("error disabled at warn level")
	}
}
