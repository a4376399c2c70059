// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/go-cmp/cmp"

	"github.com/kortschak/animimg/internal/locked"
	"github.com/kortschak/animimg/internal/slogext"
)

// next returns the next change satisfying ok, or false if none arrives
// before the timeout.
func next(stream <-chan Change, timeout time.Duration, ok func(Change) bool) (Change, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			return Change{}, false
		case c := <-stream:
			if ok(c) {
				return c, true
			}
		}
	}
}

func TestWatcher(t *testing.T) {
	var logBuf locked.BytesBuffer
	log := slog.New(slogext.NewJSONHandler(&logBuf, &slogext.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: slogext.NewAtomicBool(*lines),
	}))
	defer func() {
		if *verbose {
			t.Logf("log:\n%s\n", &logBuf)
		}
	}()

	dir := t.TempDir()
	path := filepath.Join(dir, "animimg.toml")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := make(chan Change)
	w, err := NewWatcher(ctx, path, Sum{}, stream, -1, log)
	if err != nil {
		t.Fatalf("unexpected error starting watcher: %v", err)
	}
	defer w.Close()

	const timeout = 2 * time.Second
	hasConfig := func(c Change) bool { return c.Config != nil }

	err = os.WriteFile(filepath.Join(dir, "other.toml"), []byte("not watched"), 0o644)
	if err != nil {
		t.Fatalf("unexpected error writing file: %v", err)
	}

	err = os.WriteFile(path, []byte(`[[animation]]
row = 0
col = 1
gif = "a.gif"
`), 0o644)
	if err != nil {
		t.Fatalf("unexpected error writing config: %v", err)
	}
	got, ok := next(stream, timeout, func(c Change) bool { return c.Config != nil && len(c.Config.Animations) != 0 })
	if !ok {
		t.Fatal("did not receive create event in time")
	}
	if got.Err != nil {
		t.Fatalf("unexpected error in change: %v", got.Err)
	}
	want := &Config{Animations: []Animation{{Row: 0, Col: 1, GIF: "a.gif"}}}
	if !cmp.Equal(want, got.Config) {
		t.Errorf("unexpected config:\n--- want:\n+++ got:\n%s", cmp.Diff(want, got.Config))
	}
	if filepath.Base(got.Event.Name) != "animimg.toml" {
		t.Errorf("unexpected event name: %s", got.Event.Name)
	}

	// Reformatting does not change the semantics.
	err = os.WriteFile(path, []byte(`[[animation]]
row=0
col=1
gif="a.gif"
`), 0o644)
	if err != nil {
		t.Fatalf("unexpected error writing config: %v", err)
	}
	got, ok = next(stream, 200*time.Millisecond, hasConfig)
	if ok {
		t.Errorf("unexpected change for semantically identical config: %+v", got.Config)
	}

	err = os.WriteFile(path, []byte(`[[animation]]
row = 1
col = 1
gif = "a.gif"
`), 0o644)
	if err != nil {
		t.Fatalf("unexpected error writing config: %v", err)
	}
	got, ok = next(stream, timeout, hasConfig)
	if !ok {
		t.Fatal("did not receive write event in time")
	}
	want = &Config{Animations: []Animation{{Row: 1, Col: 1, GIF: "a.gif"}}}
	if !cmp.Equal(want, got.Config) {
		t.Errorf("unexpected config:\n--- want:\n+++ got:\n%s", cmp.Diff(want, got.Config))
	}

	err = os.WriteFile(path, []byte(`[device]
brightness = 1000
`), 0o644)
	if err != nil {
		t.Fatalf("unexpected error writing config: %v", err)
	}
	_, ok = next(stream, timeout, func(c Change) bool { return c.Err != nil })
	if !ok {
		t.Fatal("did not receive invalid config error in time")
	}

	err = os.Remove(path)
	if err != nil {
		t.Fatalf("unexpected error removing config: %v", err)
	}
	got, ok = next(stream, timeout, func(c Change) bool { return c.Event.Has(fsnotify.Remove) })
	if !ok {
		t.Fatal("did not receive remove event in time")
	}
	if got.Config != nil || got.Err != nil {
		t.Errorf("unexpected remove change: config=%v err=%v", got.Config, got.Err)
	}
}
