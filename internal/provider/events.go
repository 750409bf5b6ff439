package provider

import (
	"reflect"
	"sync"

	"github.com/walletbridge/walletbridge/internal/metrics"
)

// Event identifies a provider notification kind.
type Event string

const (
	EventAccountsChanged Event = "accountsChanged"
	EventChainChanged    Event = "chainChanged"
	EventDisconnect      Event = "disconnect"
)

// Listener receives event payloads: the new address list for
// accountsChanged, the new chain id for chainChanged, nil for disconnect.
type Listener func(payload any)

// Subscription is the handle returned by On. Unsubscribe is idempotent.
type Subscription struct {
	emitter *Emitter
	event   Event
	key     uintptr
}

// Unsubscribe removes the listener registration.
func (s *Subscription) Unsubscribe() {
	s.emitter.remove(s.event, s.key)
}

// Emitter is the provider's event channel. Registration is idempotent per
// listener function: registering the same function twice for the same
// event yields one delivery and the same subscription key.
type Emitter struct {
	mu        sync.Mutex
	listeners map[Event]map[uintptr]Listener
}

// NewEmitter creates an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{listeners: make(map[Event]map[uintptr]Listener)}
}

// On registers fn for the given event and returns its subscription handle.
func (e *Emitter) On(event Event, fn Listener) *Subscription {
	key := reflect.ValueOf(fn).Pointer()

	e.mu.Lock()
	defer e.mu.Unlock()

	byKey, ok := e.listeners[event]
	if !ok {
		byKey = make(map[uintptr]Listener)
		e.listeners[event] = byKey
	}
	byKey[key] = fn

	return &Subscription{emitter: e, event: event, key: key}
}

// Emit delivers the payload to every listener registered for event.
// Delivery is synchronous, outside the emitter lock.
func (e *Emitter) Emit(event Event, payload any) {
	e.mu.Lock()
	fns := make([]Listener, 0, len(e.listeners[event]))
	for _, fn := range e.listeners[event] {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(payload)
	}
	if len(fns) > 0 {
		metrics.EventsEmitted.WithLabelValues(string(event)).Add(float64(len(fns)))
	}
}

// EmitDisconnect delivers the terminal disconnect event and then clears
// all accountsChanged and chainChanged registrations.
func (e *Emitter) EmitDisconnect() {
	e.Emit(EventDisconnect, nil)

	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.listeners, EventAccountsChanged)
	delete(e.listeners, EventChainChanged)
}

func (e *Emitter) remove(event Event, key uintptr) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if byKey, ok := e.listeners[event]; ok {
		delete(byKey, key)
	}
}

// listenerCount is used by tests to observe registration state.
func (e *Emitter) listenerCount(event Event) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners[event])
}
