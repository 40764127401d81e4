package mining

import (
	"context"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/kadena-community/pact-toolbox-sub005/clock"
	"github.com/kadena-community/pact-toolbox-sub005/eventbus"
	"github.com/kadena-community/pact-toolbox-sub005/pacterrors"
	"github.com/kadena-community/pact-toolbox-sub005/pactlog"
)

// State is the orchestrator's lifecycle state, per spec.md §4.7:
// Idle -> Starting -> Running -> Stopping -> Idle.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// allChains is the chain set used for the initialization block burst in
// spec.md §4.7 step 2.
func allChains() []ChainId {
	chains := make([]ChainId, ChainCount)
	for i := range chains {
		chains[i] = ChainId(i)
	}
	return chains
}

// Orchestrator owns MT's lifecycle: it aggregates the scheduler, block
// requester, proxy, and both workers, and emits lifecycle events. It never
// owns the HTTP server's listener — it only registers the proxy route on
// an already-constructed RouteRegistrar, per spec.md §9.
type Orchestrator struct {
	cfg       MiningTriggerConfig
	blocks    BlockRequester
	scheduler *Scheduler
	activity  *ActivitySignal
	bus       *eventbus.Bus
	logger    pactlog.Logger
	clock     clock.Clock
	registrar RouteRegistrar
	proxy     *TransactionProxy

	mu    sync.Mutex
	state State

	confirmCancel context.CancelFunc
	idleCancel    context.CancelFunc
	workersWG     sync.WaitGroup
}

// NewOrchestrator builds an Orchestrator in state Idle. downstream is the
// shared, thread-safe HTTP client used by the proxy to forward requests;
// registrar is the caller-owned HTTP app the proxy route is registered on.
func NewOrchestrator(
	cfg MiningTriggerConfig,
	blocks BlockRequester,
	downstream *http.Client,
	registrar RouteRegistrar,
	bus *eventbus.Bus,
	logger pactlog.Logger,
	c clock.Clock,
) *Orchestrator {
	if c == nil {
		c = clock.Real
	}
	if logger == nil {
		logger = pactlog.NewNop()
	}
	if bus == nil {
		bus = eventbus.New()
	}

	scheduler := NewScheduler(c)
	activity := NewActivitySignal(c)

	proxy := NewTransactionProxy(
		cfg.ChainwebServiceEndpoint,
		downstream,
		scheduler,
		activity,
		bus,
		logger,
		durationFromSeconds(cfg.TransactionBatchPeriodSec),
		cfg.DefaultConfirmationCount,
	)

	return &Orchestrator{
		cfg:       cfg,
		blocks:    blocks,
		scheduler: scheduler,
		activity:  activity,
		bus:       bus,
		logger:    logger,
		clock:     c,
		registrar: registrar,
		proxy:     proxy,
		state:     StateIdle,
	}
}

// Bus returns the event bus so callers can subscribe before Start.
func (o *Orchestrator) Bus() *eventbus.Bus { return o.bus }

// Scheduler returns the confirmation scheduler, exposed for tests and for
// callers that want to observe pending demand depth.
func (o *Orchestrator) Scheduler() *Scheduler { return o.scheduler }

func durationFromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Start validates configuration, issues the initialization block burst,
// registers the proxy route, and spawns the enabled workers. Calling Start
// on a running orchestrator is a no-op with a warning, per spec.md §4.7.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.state == StateRunning || o.state == StateStarting {
		o.mu.Unlock()
		o.logger.Warn("start called on already-running orchestrator")
		return nil
	}
	o.state = StateStarting
	o.mu.Unlock()

	if err := o.cfg.Validate(); err != nil {
		o.mu.Lock()
		o.state = StateIdle
		o.mu.Unlock()
		return pacterrors.Wrap(err, "start")
	}

	if err := o.blocks.RequestBlocks(ctx, allChains(), 2); err != nil {
		o.logger.Warn("initialization block request failed", "err", err)
	}
	o.bus.Emit(eventbus.BlocksRequested, BlocksRequestedPayload{
		Chains: allChains(),
		Count:  2,
		Reason: ReasonInitialization,
	})

	o.proxy.Register(o.registrar)

	if !o.cfg.DisableConfirmationWorker {
		confirmCtx, cancel := context.WithCancel(context.Background())
		o.confirmCancel = cancel
		w := &confirmationWorker{
			scheduler:                 o.scheduler,
			blocks:                    o.blocks,
			activity:                  o.activity,
			bus:                       o.bus,
			logger:                    o.logger,
			clock:                     o.clock,
			confirmationTriggerPeriod: durationFromSeconds(o.cfg.ConfirmationTriggerPeriodSec),
			miningCooldown:            durationFromSeconds(o.cfg.MiningCooldownSec),
		}
		o.workersWG.Add(1)
		go func() {
			defer o.workersWG.Done()
			w.Run(confirmCtx)
		}()
	}

	if !o.cfg.DisableIdleWorker {
		idleCtx, cancel := context.WithCancel(context.Background())
		o.idleCancel = cancel
		w := &idleWorker{
			blocks:   o.blocks,
			activity: o.activity,
			bus:      o.bus,
			logger:   o.logger,
			clock:    o.clock,
			period:   durationFromSeconds(o.cfg.IdleWorkerPeriod()),
			rng:      rand.New(rand.NewSource(o.clock.Now().UnixNano())),
		}
		o.workersWG.Add(1)
		go func() {
			defer o.workersWG.Done()
			w.Run(idleCtx)
		}()
	}

	o.mu.Lock()
	o.state = StateRunning
	o.mu.Unlock()

	o.bus.Emit(eventbus.Started, StartedPayload{})
	return nil
}

// Stop cancels both worker tokens, resolves any pending Wait, lets
// workers exit, and emits stopped. Idempotent: a second call is a no-op
// and emits nothing further, per spec.md §4.7 and testable property 4.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.state == StateIdle {
		o.mu.Unlock()
		return
	}
	o.state = StateStopping
	confirmCancel := o.confirmCancel
	idleCancel := o.idleCancel
	o.mu.Unlock()

	if confirmCancel != nil {
		confirmCancel()
	}
	if idleCancel != nil {
		idleCancel()
	}
	// Resolve any pending Wait() so the idle worker observes cancellation
	// promptly instead of waiting out its period.
	o.activity.Signal()

	o.workersWG.Wait()

	o.mu.Lock()
	o.state = StateIdle
	o.confirmCancel = nil
	o.idleCancel = nil
	o.mu.Unlock()

	o.bus.Emit(eventbus.Stopped, StoppedPayload{})
}

// StateValue reports the current lifecycle state, primarily for tests.
func (o *Orchestrator) StateValue() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}
