package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/edoli/webtool/packages/config"
	"github.com/fsnotify/fsnotify"
)

// Debounce duration - wait for rapid changes to settle
const watchDebounce = 100 * time.Millisecond

// watchSheet evaluates the sheet at path, then again after every change
// until ctx is done.
func (a *app) watchSheet(ctx context.Context, path string, opts *options) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve sheet path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// editors often replace the file, so watch its directory
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	reload := func() {
		state, err := config.LoadSheet(absPath, a.cfg.Degree)
		if err != nil {
			fmt.Fprintf(a.stderr, "Error: %v\n", err)
			return
		}
		a.bindVars(&state, opts.vars)
		fmt.Fprintf(a.stdout, "# %s (%s)\n", filepath.Base(path), time.Now().Format(time.TimeOnly))
		a.report(a.newSheet(state), opts.highlight)
	}
	reload()

	return watchLoop(ctx, watcher, absPath, watchDebounce, reload, func(err error) {
		fmt.Fprintf(a.stderr, "[WATCH ERROR] %v\n", err)
	})
}

// watchLoop calls onChange once events for target have settled for the
// debounce duration.
func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, target string, debounce time.Duration,
	onChange func(), onError func(error)) error {
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			// Only handle write and create events
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			tracer().Debugf("sheet changed: %s", event)
			timer.Reset(debounce)

		case <-timer.C:
			onChange()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			onError(err)
		}
	}
}
