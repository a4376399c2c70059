// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package device

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"golang.org/x/image/draw"
)

// Dry is an in-memory deck that logs the images sent to it. It is
// used when no physical device is available.
type Dry struct {
	rows, cols int
	bounds     image.Rectangle
	log        *slog.Logger

	mu         sync.Mutex
	images     []image.Image
	brightness int
	closed     bool
}

// NewDry returns a new in-memory deck with the given layout and button
// bounds.
func NewDry(rows, cols int, bounds image.Rectangle, log *slog.Logger) *Dry {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Dry{
		rows:       rows,
		cols:       cols,
		bounds:     bounds,
		log:        log,
		images:     make([]image.Image, rows*cols),
		brightness: 100,
	}
}

func (d *Dry) Layout() (rows, cols int) { return d.rows, d.cols }

func (d *Dry) Bounds() (image.Rectangle, error) { return d.bounds, nil }

// RawImage returns img scaled to the button bounds, keeping its aspect
// ratio.
func (d *Dry) RawImage(img image.Image) (image.Image, error) {
	if img.Bounds() == d.bounds {
		return img, nil
	}
	dst := image.NewRGBA(d.bounds)
	draw.BiLinear.Scale(dst, keepAspectRatio(d.bounds, img.Bounds()), img, img.Bounds(), draw.Src, nil)
	return dst, nil
}

// keepAspectRatio returns the rectangle within dst that src scales to
// while keeping its aspect ratio, centred in dst.
func keepAspectRatio(dst, src image.Rectangle) image.Rectangle {
	dx, dy := src.Dx(), src.Dy()
	if dx == 0 || dy == 0 {
		return dst
	}
	switch {
	case dx < dy:
		dx, dy = dx*dst.Dy()/dy, dst.Dy()
	case dx > dy:
		dx, dy = dst.Dx(), dy*dst.Dx()/dx
	default:
		dx, dy = dst.Dx(), dst.Dy()
	}
	offset := image.Point{X: (dst.Dx() - dx) / 2, Y: (dst.Dy() - dy) / 2}
	return image.Rectangle{Max: image.Point{X: dx, Y: dy}}.Add(dst.Min).Add(offset)
}

func (d *Dry) SetImage(row, col int, img image.Image) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("deck closed")
	}
	if row < 0 || d.rows <= row || col < 0 || d.cols <= col {
		return fmt.Errorf("button out of range: row=%d col=%d", row, col)
	}
	d.images[row*d.cols+col] = img
	d.log.LogAttrs(context.Background(), slog.LevelDebug, "set image", slog.Int("row", row), slog.Int("col", col))
	return nil
}

// Image returns the image last set on the button at row and col.
func (d *Dry) Image(row, col int) image.Image {
	d.mu.Lock()
	defer d.mu.Unlock()
	if row < 0 || d.rows <= row || col < 0 || d.cols <= col {
		return nil
	}
	return d.images[row*d.cols+col]
}

func (d *Dry) SetBrightness(percent int) error {
	if percent < 0 || 100 < percent {
		return fmt.Errorf("brightness out of range: %d", percent)
	}
	d.mu.Lock()
	d.brightness = percent
	d.mu.Unlock()
	return nil
}

// Brightness returns the current brightness.
func (d *Dry) Brightness() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.brightness
}

func (d *Dry) Reset() error {
	d.mu.Lock()
	clear(d.images)
	d.mu.Unlock()
	return nil
}

func (d *Dry) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.log.LogAttrs(context.Background(), slog.LevelDebug, "closed deck")
	return nil
}
