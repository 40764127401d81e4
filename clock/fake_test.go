package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFakeNowDoesNotAdvanceOnItsOwn(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start)
	require.Equal(t, start, f.Now())
	require.Equal(t, start, f.Now())
}

func TestFakeTimerFiresOnAdvancePastDeadline(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	timer := f.NewTimer(10 * time.Second)

	f.Advance(5 * time.Second)
	select {
	case <-timer.C():
		t.Fatal("timer fired before its deadline")
	default:
	}

	f.Advance(5 * time.Second)
	select {
	case <-timer.C():
	default:
		t.Fatal("timer did not fire at its deadline")
	}
}

func TestFakeZeroDurationTimerFiresImmediately(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	timer := f.NewTimer(0)
	select {
	case <-timer.C():
	default:
		t.Fatal("zero-duration timer should fire without an Advance")
	}
}

func TestFakeTimerStopPreventsFiring(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	timer := f.NewTimer(time.Second)
	require.True(t, timer.Stop())

	f.Advance(time.Minute)
	select {
	case <-timer.C():
		t.Fatal("stopped timer must not fire")
	default:
	}
}

func TestFakeMultipleTimersFireInDeadlineOrder(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	first := f.NewTimer(1 * time.Second)
	second := f.NewTimer(2 * time.Second)

	f.Advance(3 * time.Second)

	var firstAt, secondAt time.Time
	select {
	case firstAt = <-first.C():
	default:
		t.Fatal("first timer should have fired")
	}
	select {
	case secondAt = <-second.C():
	default:
		t.Fatal("second timer should have fired")
	}
	require.True(t, !secondAt.Before(firstAt))
}

func TestFakeSleepReturnsImmediatelyForZeroDuration(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	require.NoError(t, f.Sleep(make(chan struct{}), 0))
}

func TestFakeSleepReturnsCancelledOnCtxDone(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	ctxDone := make(chan struct{})
	close(ctxDone)

	err := f.Sleep(ctxDone, time.Hour)
	require.Error(t, err)
}
