// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package locked provides concurrency-safe helpers.
package locked

import (
	"bytes"
	"sync"
)

// BytesBuffer is a locked bytes.Buffer.
type BytesBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *BytesBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *BytesBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Bytes returns a copy of the buffer's unread contents.
func (b *BytesBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}
