// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Loop is a Scheduler that runs scheduled functions in time order on a single
// goroutine. The zero value is not usable; use NewLoop.
//
// Functions scheduled on a Loop, and functions passed to Do, are never run
// concurrently with each other, so Drivers scheduled on a Loop may be
// controlled safely from within Do.
type Loop struct {
	now func() time.Time

	mu      sync.Mutex
	queue   queue
	pending map[Token]*event
	last    Token

	wake chan struct{}
	work chan func()
}

// NewLoop returns a new Loop using the system clock.
func NewLoop() *Loop {
	return &Loop{
		now:     time.Now,
		pending: make(map[Token]*event),
		wake:    make(chan struct{}, 1),
		work:    make(chan func()),
	}
}

// Now returns the current time.
func (l *Loop) Now() time.Time {
	return l.now()
}

// ScheduleAt schedules fn to be called on the loop goroutine at or after t.
// It is safe to call ScheduleAt from any goroutine.
func (l *Loop) ScheduleAt(t time.Time, fn func(now time.Time)) Token {
	l.mu.Lock()
	l.last++
	e := &event{at: t, fn: fn, tok: l.last}
	heap.Push(&l.queue, e)
	l.pending[e.tok] = e
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return e.tok
}

// Cancel cancels the scheduled function identified by tok. Cancelling
// a token that has already run or been cancelled has no effect.
func (l *Loop) Cancel(tok Token) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.pending[tok]
	if !ok {
		return
	}
	delete(l.pending, tok)
	heap.Remove(&l.queue, e.idx)
}

// Do runs fn on the loop goroutine and waits for it to return. Do must not
// be called from a function running on the loop. If ctx is cancelled before
// fn starts, Do returns ctx.Err() and fn is not run.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case l.work <- func() { defer close(done); fn() }:
	case <-ctx.Done():
		return ctx.Err()
	}
	<-done
	return nil
}

// Run runs the loop until ctx is cancelled, returning ctx.Err().
func (l *Loop) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	timer.Stop()
	defer timer.Stop()
	for {
		// Events are taken one at a time so that an event
		// cancelled by an earlier event in the same pass
		// is not run.
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			now := l.now()
			e, ok := l.pop(now)
			if !ok {
				break
			}
			e.fn(now)
		}

		var alarm <-chan time.Time
		if at, ok := l.nextAt(); ok {
			timer.Reset(at.Sub(l.now()))
			alarm = timer.C
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-alarm:
		case <-l.wake:
		case fn := <-l.work:
			fn()
		}
		timer.Stop()
	}
}

// pop removes and returns the earliest event if it is scheduled at or
// before now.
func (l *Loop) pop(now time.Time) (*event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 || l.queue[0].at.After(now) {
		return nil, false
	}
	e := heap.Pop(&l.queue).(*event)
	delete(l.pending, e.tok)
	return e, true
}

// nextAt returns the time of the earliest scheduled event.
func (l *Loop) nextAt() (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return time.Time{}, false
	}
	return l.queue[0].at, true
}

type event struct {
	at  time.Time
	fn  func(time.Time)
	tok Token
	idx int
}

// queue is a min-heap of events ordered by time and then by
// scheduling order.
type queue []*event

func (q queue) Len() int { return len(q) }
func (q queue) Less(i, j int) bool {
	if q[i].at.Equal(q[j].at) {
		return q[i].tok < q[j].tok
	}
	return q[i].at.Before(q[j].at)
}
func (q queue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].idx = i
	q[j].idx = j
}
func (q *queue) Push(x any) {
	e := x.(*event)
	e.idx = len(*q)
	*q = append(*q, e)
}
func (q *queue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}
