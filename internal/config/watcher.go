// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileDebounce is the default duration we wait for the contents to have
// stabilised to work around some editors writing an empty file and then the
// buffer.
const FileDebounce = 10 * time.Millisecond

// Change is a configuration change identified by a Watcher. If the
// configuration file was removed or renamed away, Config and Err
// are both nil.
type Change struct {
	Event  fsnotify.Event
	Config *Config
	Sum    Sum
	Err    error
}

// Watcher watches a configuration file for semantically meaningful
// changes.
type Watcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	changes  chan<- Change
	last     Sum
	log      *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher starts watching the configuration file at path, sending
// changes to its content on the changes channel. The parent directory is
// watched so that files replaced by rename are followed. The debounce
// parameter specifies how long to wait after an fsnotify.Event before
// reading the file. If it is less than zero, FileDebounce is used. The
// sum parameter is the hash of the currently applied configuration;
// changes with the same hash are not sent.
func NewWatcher(ctx context.Context, path string, sum Sum, changes chan<- Change, debounce time.Duration, log *slog.Logger) (*Watcher, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	err = watcher.Add(filepath.Dir(path))
	if err != nil {
		watcher.Close()
		return nil, err
	}
	if debounce < 0 {
		debounce = FileDebounce
	}
	ctx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		path:     path,
		debounce: debounce,
		watcher:  watcher,
		changes:  changes,
		last:     sum,
		log:      log.With(slog.String("component", "config_watcher")),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go func() {
		defer close(w.done)
		w.process(ctx)
	}()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) process(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			switch {
			case ev.Has(fsnotify.Write | fsnotify.Create):
				w.log.LogAttrs(ctx, slog.LevelDebug, "write", slog.String("name", ev.Name), slog.String("op", ev.Op.String()))
				time.Sleep(w.debounce)
				fi, err := os.Stat(w.path)
				if err != nil {
					w.send(ctx, Change{Event: ev, Err: err})
					continue
				}
				if fi.IsDir() {
					continue
				}
				cfg, sum, err := Load(w.path)
				if err != nil {
					w.log.LogAttrs(ctx, slog.LevelError, "load config", slog.Any("error", err))
					w.send(ctx, Change{Event: ev, Err: err})
					continue
				}
				if sum == w.last {
					w.log.LogAttrs(ctx, slog.LevelDebug, "no change", slog.String("sum", sum.String()))
					continue
				}
				w.log.LogAttrs(ctx, slog.LevelDebug, "set hash", slog.String("sum", sum.String()), slog.String("previous", w.last.String()))
				w.last = sum
				w.send(ctx, Change{Event: ev, Config: cfg, Sum: sum})

			case ev.Has(fsnotify.Remove | fsnotify.Rename):
				w.log.LogAttrs(ctx, slog.LevelDebug, "remove", slog.String("name", ev.Name), slog.String("op", ev.Op.String()))
				w.last = Sum{}
				w.send(ctx, Change{Event: ev})
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.send(ctx, Change{Err: err})
		}
	}
}

func (w *Watcher) send(ctx context.Context, c Change) {
	select {
	case <-ctx.Done():
	case w.changes <- c:
	}
}
