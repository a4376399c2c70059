// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package imagesrc

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"io"
	"os"
	"time"

	"golang.org/x/image/draw"
)

// DefaultDelay is the frame delay used when a GIF does not specify one.
const DefaultDelay = 100 * time.Millisecond

// GIF is a GIF animation flattened into complete frames.
type GIF struct {
	// Frames holds each composited frame of the
	// animation.
	Frames []image.Image

	// Delay is the delay of the first frame.
	Delay time.Duration

	// LoopCount is the GIF loop count. Zero means
	// loop forever, -1 means show each frame once,
	// and n means loop n+1 times.
	LoopCount int
}

// Repeats returns the number of complete passes the GIF specifies, with
// zero meaning infinite repetition.
func (g *GIF) Repeats() int {
	switch {
	case g.LoopCount == 0:
		return 0
	case g.LoopCount < 0:
		return 1
	default:
		return g.LoopCount + 1
	}
}

// LoadGIF loads the named GIF file, resolved relative to dir according
// to [Path].
func LoadGIF(name, dir string) (*GIF, error) {
	path, err := Path(name, dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	defer f.Close()
	r := AsReadPeeker(f)
	if !IsGIF(r) {
		return nil, fmt.Errorf("%w: %s: not a GIF", ErrDecode, path)
	}
	g, err := DecodeGIF(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
	}
	return g, nil
}

// DecodeGIF decodes a GIF from r and composites each frame over the
// previous according to the frame disposal methods.
func DecodeGIF(r io.Reader) (*GIF, error) {
	g, err := gif.DecodeAll(r)
	if err != nil {
		return nil, err
	}
	if len(g.Image) == 0 {
		return nil, errors.New("no frames")
	}
	if len(g.Image) != len(g.Delay) && g.Delay != nil {
		return nil, fmt.Errorf("mismatched image count and delay count: %d != %d", len(g.Image), len(g.Delay))
	}
	if len(g.Image) != len(g.Disposal) && g.Disposal != nil {
		return nil, fmt.Errorf("mismatched image count and disposal count: %d != %d", len(g.Image), len(g.Disposal))
	}
	pal, ok := g.Config.ColorModel.(color.Palette)
	if idx := int(g.BackgroundIndex); ok && idx >= len(pal) {
		return nil, fmt.Errorf("global background colour index not in palette: %d", idx)
	}

	const (
		restoreBackground = 2
		restorePrevious   = 3
	)
	var background image.Image
	if ok {
		background = &image.Uniform{pal[g.BackgroundIndex]}
	}

	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() {
		bounds = g.Image[0].Bounds()
		for _, frame := range g.Image[1:] {
			bounds = bounds.Union(frame.Bounds())
		}
	}
	dst := image.NewRGBA(bounds)
	frames := make([]image.Image, len(g.Image))
	for f, frame := range g.Image {
		var restore *image.RGBA
		if g.Disposal != nil && g.Disposal[f] == restorePrevious {
			restore = image.NewRGBA(frame.Bounds())
			draw.Copy(restore, restore.Bounds().Min, dst, frame.Bounds(), draw.Src, nil)
		}
		draw.Copy(dst, frame.Bounds().Min, frame, frame.Bounds(), draw.Over, nil)

		snap := image.NewRGBA(bounds)
		draw.Copy(snap, bounds.Min, dst, bounds, draw.Src, nil)
		frames[f] = snap

		if g.Disposal == nil {
			continue
		}
		switch g.Disposal[f] {
		case restoreBackground:
			bg := background
			if bg == nil {
				if idx := int(g.BackgroundIndex); idx < len(frame.Palette) {
					bg = &image.Uniform{frame.Palette[idx]}
				} else {
					bg = image.Transparent
				}
			}
			draw.Copy(dst, frame.Bounds().Min, bg, frame.Bounds(), draw.Src, nil)
		case restorePrevious:
			draw.Copy(dst, frame.Bounds().Min, restore, restore.Bounds(), draw.Src, nil)
		}
	}

	delay := DefaultDelay
	if len(g.Delay) != 0 && g.Delay[0] > 0 {
		delay = 10 * time.Duration(g.Delay[0]) * time.Millisecond
	}
	return &GIF{Frames: frames, Delay: delay, LoopCount: g.LoopCount}, nil
}
