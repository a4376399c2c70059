// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/kortschak/animimg/internal/slogext"
)

var (
	// ErrInvalidDuration is returned when a Driver is attached with
	// a non-positive frame period.
	ErrInvalidDuration = errors.New("invalid frame duration")

	// ErrInvalidState is returned when an operation is not valid for
	// the Driver's current state.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidRepeatCount is returned when a negative repeat count
	// is set.
	ErrInvalidRepeatCount = errors.New("invalid repeat count")

	// ErrDetached is wrapped by ErrInvalidState errors returned from
	// a detached Driver.
	ErrDetached = errors.New("driver detached")
)

// RepeatInfinite is the repeat count for an animation that never completes.
const RepeatInfinite = 0

// Node is a visual node that displays a single retained image.
type Node interface {
	// SetContent sets the image retained by the node.
	SetContent(img image.Image)
	// RequestRedraw requests that the node's retained
	// image be drawn.
	RequestRedraw() error
}

// Token identifies a scheduled callback.
type Token uint64

// Scheduler is a time source that calls scheduled functions. A Scheduler
// must not make concurrent calls to functions scheduled by the same Driver.
type Scheduler interface {
	// Now returns the scheduler's current time.
	Now() time.Time
	// ScheduleAt arranges for fn to be called with the time of
	// the call once the scheduler's time reaches t.
	ScheduleAt(t time.Time, fn func(now time.Time)) Token
	// Cancel prevents the function scheduled with the given
	// token from being called if it has not yet been called.
	Cancel(Token)
}

// State is the run state of a Driver.
type State int

const (
	Stopped State = iota
	Running
	Completed
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Completed:
		return "completed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Driver animates a FrameSet on a Node at a fixed frame period.
//
// A Driver is not safe for concurrent use. Start, Stop, SetRepeatCount,
// Detach and Advance must all be called from the same logical thread as
// the Scheduler's callbacks, for example within a [Loop.Do] call when the
// Scheduler is a [*Loop].
type Driver struct {
	node   Node
	frames *FrameSet
	sched  Scheduler
	log    *slog.Logger

	period time.Duration
	repeat int

	state   State
	index   int
	repeats int

	// next is the scheduled time of the next
	// advance and token is its handle.
	next  time.Time
	token Token

	detached bool
}

// Attach returns a stopped Driver animating frames on node, advancing one frame
// per period as timed by sched. The Driver repeats indefinitely until a repeat
// count is set with SetRepeatCount. If log is nil, logging is discarded.
func Attach(node Node, frames *FrameSet, period time.Duration, sched Scheduler, log *slog.Logger) (*Driver, error) {
	if period <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDuration, period)
	}
	if frames == nil || frames.Len() == 0 {
		return nil, ErrEmptySequence
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Driver{
		node:   node,
		frames: frames,
		sched:  sched,
		log:    log,
		period: period,
		repeat: RepeatInfinite,
	}, nil
}

// SetRepeatCount sets the number of complete passes through the frame set
// before the animation completes. A count of RepeatInfinite never completes.
// SetRepeatCount may only be called on a stopped Driver. If a finite count
// does not exceed the passes already completed, progress is reset so the
// next Start begins from the first frame.
func (d *Driver) SetRepeatCount(n int) error {
	if err := d.checkAttached(); err != nil {
		return err
	}
	if d.state != Stopped {
		return fmt.Errorf("%w: cannot set repeat count while %s", ErrInvalidState, d.state)
	}
	if n < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRepeatCount, n)
	}
	d.repeat = n
	if n != RepeatInfinite && d.repeats >= n {
		d.index = 0
		d.repeats = 0
	}
	return nil
}

// Start starts the animation, displaying the current frame and scheduling
// the next advance one period from now. A Driver that was stopped resumes
// from the frame it was stopped on. A completed Driver restarts from the
// first frame. Start is a no-op on a running Driver.
//
// If the node fails to redraw, the Driver is still started and the error
// is returned.
func (d *Driver) Start() error {
	if err := d.checkAttached(); err != nil {
		return err
	}
	switch d.state {
	case Running:
		return nil
	case Completed:
		d.index = 0
		d.repeats = 0
	}
	d.state = Running
	d.next = d.sched.Now().Add(d.period)
	d.token = d.sched.ScheduleAt(d.next, d.Advance)
	d.log.LogAttrs(context.Background(), slog.LevelDebug, "start", slog.Int("frame", d.index), slog.Int("repeats", d.repeats), slog.Time("next", d.next))
	return d.show()
}

// Stop stops the animation and cancels any pending advance. The current
// frame and repeat progress are retained so a subsequent Start resumes
// the animation, unless the animation had completed, in which case
// progress is reset.
func (d *Driver) Stop() {
	switch d.state {
	case Running:
		d.sched.Cancel(d.token)
	case Completed:
		d.index = 0
		d.repeats = 0
	}
	d.state = Stopped
	d.token = 0
	d.next = time.Time{}
	d.log.LogAttrs(context.Background(), slog.LevelDebug, "stop", slog.Int("frame", d.index), slog.Int("repeats", d.repeats))
}

// Detach stops the Driver and releases its node and frame set.
// A detached Driver cannot be restarted.
func (d *Driver) Detach() {
	if d.detached {
		return
	}
	d.Stop()
	d.node = nil
	d.frames = nil
	d.detached = true
}

// Advance moves the animation to its next frame. It is the callback
// registered with the Driver's Scheduler and has no effect unless the
// Driver is running and now is not before the scheduled advance time.
//
// The next advance is scheduled on the period grid started by Start,
// independent of now, so late calls do not accumulate drift. Periods that
// elapsed entirely before now are skipped and only the frame current at
// now is drawn.
func (d *Driver) Advance(now time.Time) {
	if d.state != Running || now.Before(d.next) {
		return
	}
	lag := now.Sub(d.next)
	steps := 1 + int(lag/d.period)
	n := d.frames.Len()
	pos := d.index + steps
	passes := pos / n
	if d.repeat != RepeatInfinite && d.repeats+passes >= d.repeat {
		d.repeats = d.repeat
		d.state = Completed
		d.token = 0
		d.next = time.Time{}
		last := n - 1
		d.log.LogAttrs(context.Background(), slog.LevelInfo, "animation complete", slog.Int("frame", last), slog.Int("repeats", d.repeats), slog.Int("skipped", steps-1))
		if d.index == last {
			return
		}
		d.index = last
		err := d.show()
		if err != nil {
			d.log.LogAttrs(context.Background(), slog.LevelError, "redraw", slog.Int("frame", d.index), slog.Any("error", err))
		}
		return
	}
	d.repeats += passes
	d.index = pos % n
	d.next = d.next.Add(time.Duration(steps) * d.period)
	d.token = d.sched.ScheduleAt(d.next, d.Advance)
	level := slog.LevelDebug
	if steps > 1 {
		level = slog.LevelWarn
	}
	d.log.LogAttrs(context.Background(), level, "advance", slog.Int("frame", d.index), slog.Int("repeats", d.repeats), slog.Int("skipped", steps-1), slog.Any("lag_ms", slogext.Millis(lag)))
	err := d.show()
	if err != nil {
		d.log.LogAttrs(context.Background(), slog.LevelError, "redraw", slog.Int("frame", d.index), slog.Any("error", err))
	}
}

// show displays the current frame on the node.
func (d *Driver) show() error {
	img, err := d.frames.Frame(d.index)
	if err != nil {
		// This should never happen.
		return err
	}
	d.node.SetContent(img)
	return d.node.RequestRedraw()
}

func (d *Driver) checkAttached() error {
	if d.detached {
		return fmt.Errorf("%w: %w", ErrInvalidState, ErrDetached)
	}
	return nil
}

// State returns the current run state.
func (d *Driver) State() State { return d.state }

// Index returns the index of the frame being displayed.
func (d *Driver) Index() int { return d.index }

// Repeats returns the number of complete passes through the frame set
// since the animation was started from its first frame.
func (d *Driver) Repeats() int { return d.repeats }

// RepeatCount returns the configured repeat count.
func (d *Driver) RepeatCount() int { return d.repeat }

// Period returns the frame period.
func (d *Driver) Period() time.Duration { return d.period }

// Next returns the time the next advance is scheduled for. It returns the
// zero time if the Driver is not running.
func (d *Driver) Next() time.Time { return d.next }
