// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The animimg command animates frame sequences on the buttons of an El Gato
// Stream Deck.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"github.com/kortschak/animimg/internal/animation"
	"github.com/kortschak/animimg/internal/config"
	"github.com/kortschak/animimg/internal/device"
	"github.com/kortschak/animimg/internal/slogext"
	"github.com/kortschak/animimg/internal/version"
	"github.com/kortschak/animimg/internal/xdg"
)

const name = "animimg"

func main() {
	os.Exit(Main())
}

func Main() int {
	cfgPath := flag.String("config", "", "configuration file path (default $XDG_CONFIG_HOME/animimg/config.toml)")
	logging := flag.String("log", "info", "logging level (debug, info, warn or error)")
	lines := flag.Bool("lines", false, "display source line details in logs")
	dry := flag.Bool("dry", false, "use an in-memory 3x5 deck instead of a device")
	runFor := flag.Duration("for", 0, "duration to run before exiting (0 runs until interrupted)")
	v := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *v {
		vers, err := version.String()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println(vers)
		return 0
	}

	var level slog.LevelVar
	err := level.UnmarshalText([]byte(*logging))
	if err != nil {
		flag.Usage()
		return 2
	}
	if *runFor < 0 {
		flag.Usage()
		return 2
	}

	// log is the root logger.
	log := slog.New(slogext.GoID{Handler: slogext.NewJSONHandler(os.Stderr, &slogext.HandlerOptions{
		Level:     &level,
		AddSource: slogext.NewAtomicBool(*lines),
	})})
	// mlog is the logger for main.
	mlog := log.With(slog.String("component", "main"))

	runtimeDir, ok := xdg.RuntimeDir()
	if !ok {
		fmt.Fprintln(os.Stderr, "no xdg runtime directory")
		return 1
	}
	runtimeDir = filepath.Join(runtimeDir, name)
	err = os.MkdirAll(runtimeDir, 0o700)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	pidFile := filepath.Join(runtimeDir, "pid")
	fl := flock.New(pidFile)
	ok, err = fl.TryLock()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "%s is already running\n", name)
		return 1
	}
	defer func() {
		fl.Unlock()
		os.Remove(pidFile)
	}()
	err = os.WriteFile(pidFile, []byte(fmt.Sprintln(os.Getpid())), 0o600)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if *cfgPath == "" {
		*cfgPath, err = xdg.Config(filepath.Join(name, "config.toml"), false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "no config file: %v\n", err)
			return 1
		}
	}
	cfg, sum, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	dir := filepath.Dir(*cfgPath)
	mlog.LogAttrs(context.Background(), slog.LevelInfo, "loaded config", slog.String("path", *cfgPath), slog.String("sum", sum.String()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if *runFor > 0 {
		ctx, cancel = context.WithTimeout(ctx, *runFor)
		defer cancel()
	}
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)
	go func() {
		select {
		case <-sig:
			mlog.LogAttrs(ctx, slog.LevelInfo, "terminating")
			cancel()
		case <-ctx.Done():
		}
	}()

	background, err := cfg.Device.BackgroundColor()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	var ctrl *device.Controller
	if *dry {
		deck := device.NewDry(3, 5, image.Rect(0, 0, 72, 72), log.With(slog.String("component", "dry")))
		ctrl, err = device.NewController(ctx, deck, background, log.With(slog.String("component", "device")))
	} else {
		ctrl, err = device.Open(ctx, cfg.Device.PID, cfg.Device.Serial, background, log.With(slog.String("component", "device")))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open device: %v\n", err)
		return 1
	}
	defer func() {
		err := ctrl.Close()
		if err != nil {
			mlog.LogAttrs(context.Background(), slog.LevelError, "close device", slog.Any("error", err))
		}
	}()

	loop := animation.NewLoop()
	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan error, 1)
	go func() {
		loopDone <- loop.Run(loopCtx)
	}()
	defer func() {
		stopLoop()
		err := <-loopDone
		if !errors.Is(err, context.Canceled) {
			mlog.LogAttrs(context.Background(), slog.LevelError, "loop", slog.Any("error", err))
		}
	}()

	p := &player{loop: loop, ctrl: ctrl, log: log.With(slog.String("component", "player"))}
	err = p.Apply(ctx, cfg, dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to apply config: %v\n", err)
		return 1
	}
	defer func() {
		err := p.Stop(loopCtx)
		if err != nil {
			mlog.LogAttrs(context.Background(), slog.LevelError, "stop animations", slog.Any("error", err))
		}
	}()

	// SIGUSR1 pauses device drawing and SIGUSR2 resumes it.
	pause := make(chan os.Signal, 1)
	signal.Notify(pause, unix.SIGUSR1, unix.SIGUSR2)
	defer signal.Stop(pause)

	changes := make(chan config.Change)
	w, err := config.NewWatcher(ctx, *cfgPath, sum, changes, -1, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to watch config: %v\n", err)
		return 1
	}
	defer w.Close()

	for {
		select {
		case <-ctx.Done():
			mlog.LogAttrs(context.Background(), slog.LevelInfo, "exiting", slog.Any("reason", context.Cause(ctx)))
			return 0
		case s := <-pause:
			var err error
			if s == unix.SIGUSR1 {
				err = p.Pause(ctx)
			} else {
				err = p.Unpause(ctx)
			}
			if err != nil {
				mlog.LogAttrs(ctx, slog.LevelWarn, "pause", slog.Any("signal", s), slog.Any("error", err))
			}
		case c := <-changes:
			switch {
			case c.Err != nil:
				mlog.LogAttrs(ctx, slog.LevelWarn, "config stream error", slog.Any("error", c.Err))
			case c.Config == nil:
				mlog.LogAttrs(ctx, slog.LevelWarn, "config removed", slog.String("path", c.Event.Name))
			default:
				mlog.LogAttrs(ctx, slog.LevelInfo, "config changed", slog.String("sum", c.Sum.String()))
				err := p.Apply(ctx, c.Config, dir)
				if err != nil {
					mlog.LogAttrs(ctx, slog.LevelWarn, "apply config", slog.Any("error", err))
				}
			}
		}
	}
}
