// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package device

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"sync"

	"github.com/kortschak/ardilla"
)

// Deck is a device with a grid of image buttons.
type Deck interface {
	// Layout returns the number of rows and columns of buttons.
	Layout() (rows, cols int)
	// Bounds returns the image bounds of a button.
	Bounds() (image.Rectangle, error)
	// RawImage returns img converted to the device's internal
	// representation.
	RawImage(img image.Image) (image.Image, error)
	// SetImage renders img on the button at row and col.
	SetImage(row, col int, img image.Image) error
	// SetBrightness sets the brightness of all buttons.
	SetBrightness(percent int) error
	// Reset clears all button images.
	Reset() error
	// Close releases the device.
	Close() error
}

// Open opens the El Gato Stream Deck specified by pid and serial and returns
// a controller for it. The pid and serial parameters are interpreted according
// to the documentation for [ardilla.NewDeck].
func Open(ctx context.Context, pid ardilla.PID, serial string, background color.Color, log *slog.Logger) (*Controller, error) {
	deck, err := ardilla.NewDeck(pid, serial)
	if err != nil {
		return nil, err
	}
	if serial == "" {
		serial, err = deck.Serial()
		if err != nil {
			deck.Close()
			return nil, err
		}
	}
	model := deck.PID()
	log.LogAttrs(ctx, slog.LevelInfo, "opened deck", slog.String("pid", fmt.Sprintf("0x%04x", uint16(model))), slog.String("model", model.String()), slog.String("serial", serial))
	c, err := NewController(ctx, &locked{deck: deck}, background, log)
	if err != nil {
		deck.Close()
		return nil, err
	}
	return c, nil
}

// locked is a lock-protected [ardilla.Deck].
type locked struct {
	mu   sync.Mutex
	deck *ardilla.Deck
}

func (d *locked) Layout() (rows, cols int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deck.Layout()
}

func (d *locked) Bounds() (image.Rectangle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deck.Bounds()
}

// RawImage returns an image that has had the internal image representation
// pre-computed after resizing to fit the deck's button size.
func (d *locked) RawImage(img image.Image) (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deck.RawImage(img)
}

// SetImage renders the provided image on the button at the given row and
// column. If img is a *ardilla.RawImage the internal representation will be
// used directly.
func (d *locked) SetImage(row, col int, img image.Image) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deck.SetImage(row, col, img)
}

func (d *locked) SetBrightness(percent int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deck.SetBrightness(percent)
}

// Reset clears all button images and shows the standby image.
func (d *locked) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deck.Reset()
}

func (d *locked) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deck.Close()
}
