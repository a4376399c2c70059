// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package device

import (
	"image"
	"sync"
)

// RawImager wraps the RawImage method.
type RawImager interface {
	RawImage(img image.Image) (image.Image, error)
}

// Cache is a cache of device raw images keyed by their source image.
// Source images must have comparable dynamic types. A nil *Cache
// returns source images unconverted.
type Cache struct {
	miss func(image.Image) (image.Image, error)

	mu    sync.Mutex
	cache map[image.Image]image.Image
}

// NewCache returns a new Cache converting images with deck.
func NewCache(deck RawImager) *Cache {
	return &Cache{
		miss:  deck.RawImage,
		cache: make(map[image.Image]image.Image),
	}
}

// Get returns the raw image for img, converting and caching it if it
// has not been seen before.
func (c *Cache) Get(img image.Image) (image.Image, error) {
	if c == nil {
		return img, nil
	}
	c.mu.Lock()
	r, ok := c.cache[img]
	c.mu.Unlock()
	if ok {
		return r, nil
	}
	r, err := c.miss(img)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.cache[img] = r
	c.mu.Unlock()
	return r, nil
}

// Len returns the number of cached images.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// Purge removes all cached images.
func (c *Cache) Purge() {
	if c == nil {
		return
	}
	c.mu.Lock()
	clear(c.cache)
	c.mu.Unlock()
}
