package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually-advanced Clock for deterministic tests of the
// scheduler, activity signal, and worker cooldowns, none of which should
// have to make a real sleep call to be exercised. No ecosystem clock-faking
// library appears in the teacher's dependency set, and the surface needed
// here (Now/Sleep/NewTimer plus an Advance hook) is small enough that
// pulling one in would not pay for itself — see DESIGN.md.
type Fake struct {
	mu  sync.Mutex
	now time.Time

	timers []*fakeTimer
}

// NewFake builds a Fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward by d, firing any timers whose deadline
// has now been reached, in deadline order.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	now := f.now
	due := make([]*fakeTimer, 0, len(f.timers))
	var remaining []*fakeTimer
	for _, t := range f.timers {
		if !t.deadline.After(now) && !t.stopped {
			due = append(due, t)
		} else {
			remaining = append(remaining, t)
		}
	}
	f.timers = remaining
	f.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	for _, t := range due {
		select {
		case t.c <- now:
		default:
		}
	}
}

func (f *Fake) Sleep(ctxDone <-chan struct{}, d time.Duration) error {
	t := f.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C():
		return nil
	case <-ctxDone:
		return ErrCancelled()
	}
}

func (f *Fake) NewTimer(d time.Duration) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{c: make(chan time.Time, 1), deadline: f.now.Add(d), parent: f}
	if d <= 0 {
		t.c <- f.now
	} else {
		f.timers = append(f.timers, t)
	}
	return t
}

type fakeTimer struct {
	c        chan time.Time
	deadline time.Time
	stopped  bool
	parent   *Fake
}

func (t *fakeTimer) C() <-chan time.Time { return t.c }

func (t *fakeTimer) Stop() bool {
	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}

func (t *fakeTimer) Reset(d time.Duration) bool {
	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()
	wasActive := !t.stopped
	t.stopped = false
	t.deadline = t.parent.now.Add(d)
	t.parent.timers = append(t.parent.timers, t)
	return wasActive
}
