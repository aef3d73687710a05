package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/jsbridge/config"
	"github.com/wippyai/jsbridge/engine"
)

// wasmFlags collects repeated -wasm name=path flags.
type wasmFlags []config.WasmModule

func (w *wasmFlags) String() string {
	parts := make([]string, len(*w))
	for i, m := range *w {
		parts[i] = m.Name + "=" + m.Path
	}
	return strings.Join(parts, ",")
}

func (w *wasmFlags) Set(v string) error {
	name, path, ok := strings.Cut(v, "=")
	name, path = strings.TrimSpace(name), strings.TrimSpace(path)
	if !ok || name == "" || path == "" {
		return fmt.Errorf("expected name=path, got %q", v)
	}
	*w = append(*w, config.WasmModule{Name: name, Path: path})
	return nil
}

func main() {
	var (
		scriptFile  = flag.String("script", "", "Path to the script to run")
		configFile  = flag.String("config", "", "Path to a YAML config file")
		watch       = flag.Bool("watch", false, "Re-run the script when it changes")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		wasm        wasmFlags
	)
	flag.Var(&wasm, "wasm", "Expose a core wasm module as name=path (repeatable)")
	flag.Parse()

	if *scriptFile == "" && !*interactive {
		fmt.Fprintln(os.Stderr, "Usage: run -script <file.js> [-config cfg.yaml] [-wasm name=path]")
		fmt.Fprintln(os.Stderr, "       run -script <file.js> -watch")
		fmt.Fprintln(os.Stderr, "       run [-script <file.js>] -i  (interactive mode)")
		os.Exit(1)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg.WasmModules = append(cfg.WasmModules, wasm...)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log, err := cfg.Logger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	engine.SetLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch {
	case *interactive:
		err = runInteractive(ctx, cfg, log, *scriptFile)
	case *watch:
		err = runWatch(ctx, cfg, log, *scriptFile, os.Stdout)
	default:
		err = runFile(ctx, cfg, log, *scriptFile, os.Stdout)
	}
	if err != nil {
		log.Debug("run failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
