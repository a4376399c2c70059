// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package device provides types for managing the buttons of an image
// button deck.
package device

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
)

// Controller manages the buttons of a deck.
type Controller struct {
	deck  Deck
	cache *Cache
	log   *slog.Logger

	rows, cols int
	buttons    []Button
}

// NewController returns a new controller for deck. All buttons are
// cleared to the background color.
func NewController(ctx context.Context, deck Deck, background color.Color, log *slog.Logger) (*Controller, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if background == nil {
		background = color.Black
	}
	bounds, err := deck.Bounds()
	if err != nil {
		return nil, err
	}
	rows, cols := deck.Layout()
	c := &Controller{
		deck:    deck,
		cache:   NewCache(deck),
		log:     log,
		rows:    rows,
		cols:    cols,
		buttons: make([]Button, rows*cols),
	}
	bg := swatch{Uniform: &image.Uniform{background}, bounds: bounds}
	for i := range c.buttons {
		b := &c.buttons[i]
		b.deck = deck
		b.cache = c.cache
		b.row, b.col = i/cols, i%cols
		b.background = bg
	}
	err = c.Clear()
	if err != nil {
		log.LogAttrs(ctx, slog.LevelWarn, "failed to clear buttons", slog.Any("error", err))
	}
	return c, nil
}

// swatch is a subimage of a uniform color.
type swatch struct {
	*image.Uniform
	bounds image.Rectangle
}

func (i swatch) Bounds() image.Rectangle { return i.bounds }

// Layout returns the number of rows and columns of buttons.
func (c *Controller) Layout() (rows, cols int) {
	return c.rows, c.cols
}

// Bounds returns the image bounds of the device's buttons.
func (c *Controller) Bounds() (image.Rectangle, error) {
	return c.deck.Bounds()
}

// Button returns the button at the given row and column.
func (c *Controller) Button(row, col int) (*Button, error) {
	if row < 0 || c.rows <= row || col < 0 || c.cols <= col {
		return nil, fmt.Errorf("button out of range: row=%d col=%d layout=%dx%d", row, col, c.rows, c.cols)
	}
	return &c.buttons[row*c.cols+col], nil
}

// SetBrightness sets the brightness of all buttons.
func (c *Controller) SetBrightness(percent int) error {
	c.log.LogAttrs(context.Background(), slog.LevelDebug, "set brightness", slog.Int("percent", percent))
	return c.deck.SetBrightness(percent)
}

// Pause pauses drawing for all buttons.
func (c *Controller) Pause() {
	for i := range c.buttons {
		c.buttons[i].Pause()
	}
}

// Unpause unpauses all buttons, drawing any that were requested while
// paused.
func (c *Controller) Unpause() error {
	var errs []error
	for i := range c.buttons {
		errs = append(errs, c.buttons[i].Unpause())
	}
	return errors.Join(errs...)
}

// Clear clears all buttons to the background.
func (c *Controller) Clear() error {
	var errs []error
	for i := range c.buttons {
		errs = append(errs, c.buttons[i].Clear())
	}
	return errors.Join(errs...)
}

// Purge drops all cached device images.
func (c *Controller) Purge() {
	c.log.LogAttrs(context.Background(), slog.LevelDebug, "purge image cache", slog.Int("len", c.cache.Len()))
	c.cache.Purge()
}

// Close resets and closes the device.
func (c *Controller) Close() error {
	return errors.Join(c.deck.Reset(), c.deck.Close())
}
