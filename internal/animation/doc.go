// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package animation provides frame-sequence animation of visual nodes.
//
// A [FrameSet] holds the ordered frames of an animation and may be shared.
// A [Driver] binds a FrameSet to a single [Node] and steps through the
// frames at a fixed period, driven by a [Scheduler] such as a [Loop].
package animation
