package mining

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kadena-community/pact-toolbox-sub005/clock"
)

func TestActivitySignalDetected(t *testing.T) {
	a := NewActivitySignal(clock.Real)
	a.Signal()
	result := a.Wait(context.Background(), time.Second)
	require.Equal(t, ActivityDetected, result)
}

func TestActivitySignalTimeout(t *testing.T) {
	a := NewActivitySignal(clock.Real)
	result := a.Wait(context.Background(), 10*time.Millisecond)
	require.Equal(t, ActivityTimeout, result)
}

func TestActivitySignalAborted(t *testing.T) {
	a := NewActivitySignal(clock.Real)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := a.Wait(ctx, time.Hour)
	require.Equal(t, ActivityAborted, result)
}

// TestActivitySignalCollapsesConcurrentSignals covers §4.6: "Multiple
// concurrent signals collapse into one (edge-triggered)."
func TestActivitySignalCollapsesConcurrentSignals(t *testing.T) {
	a := NewActivitySignal(clock.Real)
	for i := 0; i < 5; i++ {
		a.Signal()
	}
	require.Equal(t, ActivityDetected, a.Wait(context.Background(), time.Second))
	// The extra signals were dropped, not queued: the next Wait times out.
	require.Equal(t, ActivityTimeout, a.Wait(context.Background(), 10*time.Millisecond))
}
