package mining

import (
	"context"
	"math/rand"
	"time"

	"github.com/kadena-community/pact-toolbox-sub005/clock"
	"github.com/kadena-community/pact-toolbox-sub005/eventbus"
	"github.com/kadena-community/pact-toolbox-sub005/pactlog"
)

// idleWorker produces periodic liveness blocks on a random chain when no
// activity occurs, per spec.md §4.5.
type idleWorker struct {
	blocks   BlockRequester
	activity *ActivitySignal
	bus      *eventbus.Bus
	logger   pactlog.Logger
	clock    clock.Clock
	period   time.Duration
	rng      *rand.Rand
}

// Run loops until ctx is cancelled.
func (w *idleWorker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		result := w.activity.Wait(ctx, w.period)
		switch result {
		case ActivityAborted:
			return
		case ActivityTimeout:
			if err := w.fireIdleBlock(ctx); err != nil {
				w.logger.Error("idle worker error", "err", err)
				w.bus.Emit(eventbus.Error, ErrorPayload{Context: ContextIdleWorker, Err: err})
				if sleepErr := w.clock.Sleep(ctx.Done(), errorBackoff); sleepErr != nil {
					return
				}
			}
		case ActivityDetected:
			// Loop again; Wait's next call re-arms the period timer.
		}
	}
}

func (w *idleWorker) fireIdleBlock(ctx context.Context) error {
	chain := ChainId(w.rng.Intn(ChainCount))
	if err := w.blocks.RequestBlocks(ctx, []ChainId{chain}, 1); err != nil {
		w.logger.Warn("idle block request failed", "err", err, "chain", chain)
	}
	w.bus.Emit(eventbus.BlocksRequested, BlocksRequestedPayload{
		Chains: []ChainId{chain},
		Count:  1,
		Reason: ReasonIdle,
	})
	return nil
}
