// Package eventbus implements the typed event fan-out used by the
// orchestrator, proxy, and workers. go-ethereum's event.Feed/Subscription
// (see event/example_feed_test.go, event/multisub_test.go in the reference
// corpus) pumps values through per-subscriber channels and a goroutine per
// consumer; spec.md's design notes explicitly redesign that into something
// simpler for this domain: an explicit, synchronous fan-out keyed by event
// name, where listeners are called in-line and are a contract-level
// obligation to stay non-blocking, not a goroutine-backed queue.
package eventbus

import "sync"

// Name identifies one of the fixed event kinds the core emits.
type Name string

const (
	Started              Name = "started"
	Stopped              Name = "stopped"
	Activity             Name = "activity"
	TransactionReceived  Name = "transactionReceived"
	TransactionProxied   Name = "transactionProxied"
	ConfirmationTrigger  Name = "confirmationTrigger"
	BlocksRequested      Name = "blocksRequested"
	Error                Name = "error"
)

// Handler receives a payload for one emitted event. Handlers MUST NOT
// block; Bus.Emit calls every registered handler synchronously on the
// emitting goroutine.
type Handler func(payload any)

// Subscription is returned by Bus.On and lets a caller deregister.
type Subscription struct {
	bus  *Bus
	name Name
	id   uint64
}

// Unsubscribe removes the handler. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	handlers := s.bus.handlers[s.name]
	for i, h := range handlers {
		if h.id == s.id {
			s.bus.handlers[s.name] = append(handlers[:i], handlers[i+1:]...)
			break
		}
	}
}

type registration struct {
	id uint64
	fn Handler
}

// Bus is a synchronous, typed fan-out. The zero value is not usable; use
// New.
type Bus struct {
	mu       sync.Mutex
	handlers map[Name][]registration
	nextID   uint64
}

// New builds an empty Bus.
func New() *Bus {
	return &Bus{handlers: make(map[Name][]registration)}
}

// On registers fn to be called synchronously every time name is emitted.
func (b *Bus) On(name Name, fn Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.handlers[name] = append(b.handlers[name], registration{id: id, fn: fn})
	return &Subscription{bus: b, name: name, id: id}
}

// Emit synchronously calls every handler registered for name, in
// registration order. A snapshot of the handler slice is taken under the
// lock so a handler that unsubscribes (itself or another) during Emit
// cannot corrupt iteration.
func (b *Bus) Emit(name Name, payload any) {
	b.mu.Lock()
	handlers := append([]registration(nil), b.handlers[name]...)
	b.mu.Unlock()
	for _, h := range handlers {
		h.fn(payload)
	}
}
