// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kortschak/animimg/internal/animation"
	"github.com/kortschak/animimg/internal/config"
	"github.com/kortschak/animimg/internal/device"
	"github.com/kortschak/animimg/internal/imagesrc"
	"github.com/kortschak/animimg/internal/slogext"
)

// player applies animation configurations to the buttons of a device.
// Driver state is only touched on the loop goroutine.
type player struct {
	loop *animation.Loop
	ctrl *device.Controller
	log  *slog.Logger

	drivers []*animation.Driver
	buttons []*device.Button
}

// animated is a prepared animation ready to be attached to its button.
type animated struct {
	cfg    config.Animation
	button *device.Button
	frames *animation.FrameSet
	period time.Duration
	repeat int
}

// Apply loads the images for cfg, with relative paths resolved against
// dir, and replaces the running animations with the configured animations.
// If any image cannot be loaded, the running animations are left
// unchanged.
func (p *player) Apply(ctx context.Context, cfg *config.Config, dir string) error {
	anims, err := p.prepare(cfg, dir)
	if err != nil {
		return err
	}
	var applyErr error
	err = p.loop.Do(ctx, func() {
		applyErr = p.install(ctx, cfg.Device, anims)
	})
	if err != nil {
		return err
	}
	return applyErr
}

// prepare loads the frames for each configured animation. Animations
// with identical frame sources share a frame set and each source is
// loaded once.
func (p *player) prepare(cfg *config.Config, dir string) ([]animated, error) {
	shared := make(map[string]*animation.FrameSet)
	gifs := make(map[string]*imagesrc.GIF)
	anims := make([]animated, 0, len(cfg.Animations))
	for _, a := range cfg.Animations {
		b, err := p.ctrl.Button(a.Row, a.Col)
		if err != nil {
			return nil, fmt.Errorf("animation %s: %w", a.Label(), err)
		}
		anim := animated{cfg: a, button: b, period: a.Period(), repeat: a.Repeat}

		var key string
		if a.GIF != "" {
			key = "gif:" + a.GIF
		} else {
			key = "frames:" + strings.Join(a.Frames, "\x00")
		}
		frames, ok := shared[key]
		switch {
		case a.GIF != "":
			g, cached := gifs[key]
			if !cached {
				g, err = imagesrc.LoadGIF(a.GIF, dir)
				if err != nil {
					return nil, fmt.Errorf("animation %s: %w", a.Label(), err)
				}
				gifs[key] = g
				p.log.LogAttrs(context.Background(), slog.LevelDebug, "decoded gif", slog.String("path", a.GIF), slog.Int("frames", len(g.Frames)))
			}
			if anim.period <= 0 {
				anim.period = g.Delay
			}
			if anim.repeat == 0 {
				anim.repeat = g.Repeats()
			}
			if !ok {
				frames, err = animation.NewFrameSet(g.Frames...)
				if err != nil {
					return nil, fmt.Errorf("animation %s: %w", a.Label(), err)
				}
			}
		case !ok:
			imgs, err := imagesrc.LoadAll(a.Frames, dir)
			if err != nil {
				return nil, fmt.Errorf("animation %s: %w", a.Label(), err)
			}
			frames, err = animation.NewFrameSet(imgs...)
			if err != nil {
				return nil, fmt.Errorf("animation %s: %w", a.Label(), err)
			}
		}
		if !ok {
			shared[key] = frames
			p.log.LogAttrs(context.Background(), slog.LevelDebug, "loaded frames", slog.String("source", key), slog.Int("frames", frames.Len()))
		}
		anim.frames = frames
		anims = append(anims, anim)
	}
	return anims, nil
}

// install replaces the running animations with anims. It must be called
// on the loop goroutine.
func (p *player) install(ctx context.Context, dev config.Device, anims []animated) error {
	p.stop(ctx)
	p.ctrl.Purge()

	var errs []error
	if dev.Brightness != nil {
		err := p.ctrl.SetBrightness(*dev.Brightness)
		if err != nil {
			errs = append(errs, fmt.Errorf("set brightness: %w", err))
		}
	}
	for _, a := range anims {
		row, col := a.button.Position()
		log := p.log.With(slog.String("animation", a.cfg.Label()), slog.Int("row", row), slog.Int("col", col))
		d, err := animation.Attach(a.button, a.frames, a.period, p.loop, log)
		if err != nil {
			errs = append(errs, fmt.Errorf("animation %s: %w", a.cfg.Label(), err))
			continue
		}
		p.drivers = append(p.drivers, d)
		p.buttons = append(p.buttons, a.button)
		err = d.SetRepeatCount(a.repeat)
		if err != nil {
			errs = append(errs, fmt.Errorf("animation %s: %w", a.cfg.Label(), err))
			continue
		}
		err = d.Start()
		if err != nil {
			errs = append(errs, fmt.Errorf("animation %s: %w", a.cfg.Label(), err))
			continue
		}
		log.LogAttrs(ctx, slog.LevelInfo, "started animation", slog.Int("frames", a.frames.Len()), slog.Any("period", slogext.Stringer{Stringer: a.period}), slog.Int("repeat", a.repeat))
	}
	return errors.Join(errs...)
}

// stop detaches all running animations and clears their buttons. It
// must be called on the loop goroutine.
func (p *player) stop(ctx context.Context) {
	for i, d := range p.drivers {
		d.Detach()
		err := p.buttons[i].Clear()
		if err != nil {
			p.log.LogAttrs(ctx, slog.LevelWarn, "clear button", slog.Any("error", err))
		}
	}
	p.drivers = p.drivers[:0]
	p.buttons = p.buttons[:0]
}

// Stop detaches all running animations.
func (p *player) Stop(ctx context.Context) error {
	return p.loop.Do(ctx, func() { p.stop(ctx) })
}

// Pause holds device drawing for all buttons. Animations keep advancing
// and the latest frame of each is drawn by Unpause.
func (p *player) Pause(ctx context.Context) error {
	err := p.loop.Do(ctx, p.ctrl.Pause)
	if err != nil {
		return err
	}
	p.log.LogAttrs(ctx, slog.LevelInfo, "paused")
	return nil
}

// Unpause resumes device drawing, redrawing buttons that changed while
// paused.
func (p *player) Unpause(ctx context.Context) error {
	var drawErr error
	err := p.loop.Do(ctx, func() { drawErr = p.ctrl.Unpause() })
	if err != nil {
		return err
	}
	p.log.LogAttrs(ctx, slog.LevelInfo, "unpaused")
	return drawErr
}
