package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/macropower/resc/api/v1beta1/configs"
)

// DefaultDebounce is the delay between the last change to a configuration
// file and its reload.
const DefaultDebounce = 200 * time.Millisecond

// WatchOpt configures [Watch].
type WatchOpt func(*watchOptions)

type watchOptions struct {
	loaderOpts []LoaderOpt
	debounce   time.Duration
}

// WithDebounce sets the reload delay.
func WithDebounce(d time.Duration) WatchOpt {
	return func(o *watchOptions) {
		o.debounce = d
	}
}

// WithLoaderOpts sets the options used to load the configuration.
func WithLoaderOpts(opts ...LoaderOpt) WatchOpt {
	return func(o *watchOptions) {
		o.loaderOpts = opts
	}
}

// Watch watches the configuration file at path. Every time the file changes
// and loads successfully, the new configuration is sent on the returned
// channel. Configurations that fail to load are logged and skipped. The
// channel is closed when ctx is done.
//
// The parent directory is watched, so files replaced by rename are seen.
func Watch(ctx context.Context, path string, opts ...WatchOpt) (<-chan *configs.Config, error) {
	options := &watchOptions{debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(options)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("get absolute path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	err = watcher.Add(filepath.Dir(absPath))
	if err != nil {
		_ = watcher.Close()

		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(absPath), err)
	}

	out := make(chan *configs.Config)

	go func() {
		defer close(out)
		defer func() {
			err := watcher.Close()
			if err != nil {
				slog.Error("close config watcher", slog.Any("err", err))
			}
		}()

		timer := time.NewTimer(options.debounce)
		timer.Stop()

		for {
			select {
			case <-ctx.Done():
				timer.Stop()

				return

			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(evt.Name) != absPath {
					continue
				}
				// Ignore events that do not change file content.
				if evt.Has(fsnotify.Chmod) || evt.Has(fsnotify.Remove) {
					continue
				}

				slog.DebugContext(ctx, "config file changed", slog.String("event", evt.String()))
				timer.Reset(options.debounce)

			case <-timer.C:
				cfg, err := Load(absPath, options.loaderOpts...)
				if err != nil {
					slog.ErrorContext(ctx, "reload config",
						slog.String("path", absPath),
						slog.Any("err", err),
					)

					continue
				}

				slog.InfoContext(ctx, "reloaded config", slog.String("path", absPath))

				select {
				case out <- cfg:
				case <-ctx.Done():
					return
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}

				slog.ErrorContext(ctx, "watch config", slog.Any("err", err))
			}
		}
	}()

	return out, nil
}
