package mining

import (
	"context"
	"time"

	"github.com/kadena-community/pact-toolbox-sub005/clock"
	"github.com/kadena-community/pact-toolbox-sub005/eventbus"
	"github.com/kadena-community/pact-toolbox-sub005/pactlog"
)

// errorBackoff is the fixed cooldown a worker sleeps after catching an
// internal error, per spec.md §4.4/§4.5, to avoid busy-looping.
const errorBackoff = 5 * time.Second

// confirmationWorker drains the scheduler and issues per-chain block
// bursts with cooldown, per spec.md §4.4.
type confirmationWorker struct {
	scheduler                *Scheduler
	blocks                   BlockRequester
	activity                 *ActivitySignal
	bus                      *eventbus.Bus
	logger                   pactlog.Logger
	clock                    clock.Clock
	confirmationTriggerPeriod time.Duration
	miningCooldown           time.Duration
}

// Run loops until ctx is cancelled, per the pseudocode in spec.md §4.4.
func (w *confirmationWorker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		demand := w.scheduler.WaitNextDemands(ctx, w.confirmationTriggerPeriod)
		if ctx.Err() != nil {
			return
		}

		w.activity.Signal()

		if demand.Empty() {
			continue
		}

		if err := w.runDemand(ctx, demand); err != nil {
			w.logger.Error("confirmation worker error", "err", err)
			w.bus.Emit(eventbus.Error, ErrorPayload{Context: ContextConfirmationWorker, Err: err})
			if sleepErr := w.clock.Sleep(ctx.Done(), errorBackoff); sleepErr != nil {
				return
			}
		}
	}
}

func (w *confirmationWorker) runDemand(ctx context.Context, demand ConfirmationDemand) error {
	w.bus.Emit(eventbus.ConfirmationTrigger, ConfirmationTriggerPayload{Demand: demand})

	for i := 0; i < demand.Confirmations; i++ {
		if ctx.Err() != nil {
			return nil
		}

		if err := w.blocks.RequestBlocks(ctx, demand.Chains, 1); err != nil {
			// MiningRequestFailed is non-fatal per spec.md §4.2/§7: log and
			// continue the burst rather than aborting the demand.
			w.logger.Warn("block request failed", "err", err, "chains", demand.Chains)
		}
		w.bus.Emit(eventbus.BlocksRequested, BlocksRequestedPayload{
			Chains: demand.Chains,
			Count:  1,
			Reason: ReasonConfirmation,
		})

		if i < demand.Confirmations-1 {
			if err := w.clock.Sleep(ctx.Done(), w.miningCooldown); err != nil {
				return nil
			}
		}
	}
	return nil
}
