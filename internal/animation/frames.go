// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"errors"
	"fmt"
	"image"
)

var (
	// ErrEmptySequence is returned when a FrameSet is constructed
	// without frames.
	ErrEmptySequence = errors.New("empty frame sequence")

	// ErrIndexOutOfRange is returned when a frame index is not
	// within the FrameSet.
	ErrIndexOutOfRange = errors.New("frame index out of range")
)

// FrameSet is an ordered immutable sequence of frames. A FrameSet may be
// shared between any number of Drivers and goroutines.
type FrameSet struct {
	frames []image.Image
}

// NewFrameSet returns a FrameSet holding the provided frames in order. The
// frames are referenced, not copied, and must not be altered while the
// FrameSet is in use.
func NewFrameSet(frames ...image.Image) (*FrameSet, error) {
	if len(frames) == 0 {
		return nil, ErrEmptySequence
	}
	return &FrameSet{frames: append([]image.Image(nil), frames...)}, nil
}

// Len returns the number of frames in the set. It is always at least one.
func (s *FrameSet) Len() int {
	return len(s.frames)
}

// Frame returns the i'th frame.
func (s *FrameSet) Frame(i int) (image.Image, error) {
	if i < 0 || len(s.frames) <= i {
		return nil, fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, i, len(s.frames))
	}
	return s.frames[i], nil
}
