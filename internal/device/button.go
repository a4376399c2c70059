// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package device

import (
	"fmt"
	"image"
	"sync"
)

// Button is an individual button on a device. It retains the image it
// displays and implements the animation.Node interface.
type Button struct {
	deck     Deck
	cache    *Cache
	row, col int

	// background is the image drawn by Clear.
	background image.Image

	// mu protects content, paused and stale.
	mu sync.Mutex

	// content is the retained image.
	content image.Image

	// paused is whether drawing is paused and stale
	// is whether a redraw was requested while paused.
	paused bool
	stale  bool
}

// Position returns the row and column of the button.
func (b *Button) Position() (row, col int) {
	return b.row, b.col
}

// SetContent sets the image retained by the button. It is not drawn until
// RequestRedraw is called.
func (b *Button) SetContent(img image.Image) {
	b.mu.Lock()
	b.content = img
	b.mu.Unlock()
}

// Content returns the image retained by the button.
func (b *Button) Content() image.Image {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.content
}

// RequestRedraw draws the retained image to the device. If the button is
// paused, the redraw is deferred until it is unpaused.
func (b *Button) RequestRedraw() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.paused {
		b.stale = true
		return nil
	}
	return b.draw()
}

// Clear sets the retained image to the background and redraws.
func (b *Button) Clear() error {
	b.SetContent(b.background)
	return b.RequestRedraw()
}

// Pause pauses the button's draw operations.
func (b *Button) Pause() {
	b.mu.Lock()
	b.paused = true
	b.mu.Unlock()
}

// Unpause unpauses the button, drawing the retained image if a redraw was
// requested while it was paused.
func (b *Button) Unpause() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.paused {
		return nil
	}
	b.paused = false
	if !b.stale {
		return nil
	}
	b.stale = false
	return b.draw()
}

// draw draws the retained image. It must be called with b.mu held.
func (b *Button) draw() error {
	if b.content == nil {
		return nil
	}
	img, err := b.cache.Get(b.content)
	if err != nil {
		return fmt.Errorf("raw image for row %d col %d: %w", b.row, b.col, err)
	}
	return b.deck.SetImage(b.row, b.col, img)
}
