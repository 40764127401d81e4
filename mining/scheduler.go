package mining

import (
	"context"
	"sync"
	"time"

	"github.com/kadena-community/pact-toolbox-sub005/clock"
)

// Scheduler accumulates per-chain confirmation demands on a batching
// window, per spec.md §4.1. A single sync.Mutex guards the whole critical
// section; spec.md §5 requires mutations be serialized through one
// boundary, and a mutex around pending/nextDrainAt is that boundary.
type Scheduler struct {
	clock clock.Clock

	mu          sync.Mutex
	pending     map[ChainId]int
	nextDrainAt time.Time
	hasDeadline bool

	// wake is signaled (non-blockingly) on every Push so a goroutine
	// blocked in WaitNextDemands with a stale timer notices a freshly set
	// nextDrainAt instead of waiting out the old one.
	wake chan struct{}
}

// NewScheduler builds an empty Scheduler.
func NewScheduler(c clock.Clock) *Scheduler {
	if c == nil {
		c = clock.Real
	}
	return &Scheduler{
		clock:   c,
		pending: make(map[ChainId]int),
		wake:    make(chan struct{}, 1),
	}
}

// Push adds n to pending[chain]; if nextDrainAt is unset, it is set to
// now + batchWindow. Safe for concurrent callers.
func (s *Scheduler) Push(batchWindow time.Duration, chain ChainId, n int) {
	s.mu.Lock()
	s.pending[chain] += n
	if !s.hasDeadline {
		s.nextDrainAt = s.clock.Now().Add(batchWindow)
		s.hasDeadline = true
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// WaitNextDemands blocks until either (a) now >= nextDrainAt, (b) maxWait
// elapses with any pending entries, or (c) ctx is cancelled. On return it
// atomically drains all non-zero chains into one ConfirmationDemand with
// confirmations = max(pending values), clearing pending and nextDrainAt.
// If nothing is pending when maxWait elapses, it returns the empty
// sentinel demand.
func (s *Scheduler) WaitNextDemands(ctx context.Context, maxWait time.Duration) ConfirmationDemand {
	deadline := s.clock.Now().Add(maxWait)

	for {
		s.mu.Lock()
		drainAt := s.nextDrainAt
		hasDeadline := s.hasDeadline
		now := s.clock.Now()

		if hasDeadline && !now.Before(drainAt) {
			demand := s.drainLocked()
			s.mu.Unlock()
			return demand
		}
		if !now.Before(deadline) && len(s.pending) > 0 {
			demand := s.drainLocked()
			s.mu.Unlock()
			return demand
		}
		if !now.Before(deadline) {
			s.mu.Unlock()
			return ConfirmationDemand{}
		}
		s.mu.Unlock()

		wait := deadline.Sub(now)
		if hasDeadline && drainAt.Before(deadline) {
			wait = drainAt.Sub(now)
		}
		if wait < 0 {
			wait = 0
		}

		timer := s.clock.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ConfirmationDemand{}
		case <-timer.C():
		case <-s.wake:
			timer.Stop()
		}
	}
}

// drainLocked must be called with s.mu held. It builds the coalesced
// demand and resets scheduler state.
func (s *Scheduler) drainLocked() ConfirmationDemand {
	if len(s.pending) == 0 {
		s.hasDeadline = false
		return ConfirmationDemand{}
	}

	chains := make([]ChainId, 0, len(s.pending))
	maxN := 0
	for chain, n := range s.pending {
		if n <= 0 {
			continue
		}
		chains = append(chains, chain)
		if n > maxN {
			maxN = n
		}
	}
	s.pending = make(map[ChainId]int)
	s.hasDeadline = false

	if len(chains) == 0 {
		return ConfirmationDemand{}
	}
	return ConfirmationDemand{Chains: chains, Confirmations: maxN}
}
