package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/wippyai/jsbridge/config"
)

const debounceDelay = 200 * time.Millisecond

// runWatch runs the script, then runs it again in a fresh session each time
// it changes, until ctx is done.
func runWatch(ctx context.Context, cfg config.Config, log *zap.Logger, path string, out io.Writer) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Editors often replace files on save, so the directory is watched.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	rerun := make(chan struct{}, 1)
	runOnce := func() {
		fmt.Fprintf(out, "--- %s %s ---\n", filepath.Base(abs), time.Now().Format(time.TimeOnly))
		if err := runFile(ctx, cfg, log, abs, out); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
	runOnce()

	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceDelay, func() {
				select {
				case rerun <- struct{}{}:
				default:
				}
			})

		case <-rerun:
			runOnce()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("file watcher error", zap.Error(err))
		}
	}
}
