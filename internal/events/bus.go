package events

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Notification names emitted by the Connection Manager.
const (
	DiceRollResult = "dice_roll_result"
	CampaignUpdate = "campaign_update"
)

// Notification is a named local event carrying the inbound payload untouched.
type Notification struct {
	Name       string
	Payload    json.RawMessage
	ReceivedAt time.Time
}

// Handler receives notifications.
type Handler func(Notification)

// Emitter accepts notifications for delivery.
type Emitter interface {
	Emit(Notification)
}

// EmitterFunc adapts a plain function to the Emitter interface.
type EmitterFunc func(Notification)

// Emit calls f(n).
func (f EmitterFunc) Emit(n Notification) {
	f(n)
}

type subscription struct {
	id      uint64
	handler Handler
}

// Bus fans notifications out to handlers registered by name.
// Handlers run synchronously on the emitting goroutine, in registration order.
type Bus struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string][]subscription
	nextID   uint64

	// Stats
	emitted   int64
	delivered int64
	panics    int64
}

// BusStats contains runtime statistics.
type BusStats struct {
	Emitted   int64
	Delivered int64
	Panics    int64
}

// NewBus creates an empty Bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger:   logger,
		handlers: make(map[string][]subscription),
	}
}

// On registers h for notifications named name.
// The returned function removes the registration; calling it twice is harmless.
func (b *Bus) On(name string, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[name] = append(b.handlers[name], subscription{id: id, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(name, id) })
	}
}

func (b *Bus) remove(name string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[name]
	for i, s := range subs {
		if s.id == id {
			// Copy so an in-flight Emit keeps iterating its own snapshot
			next := make([]subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			if len(next) == 0 {
				delete(b.handlers, name)
			} else {
				b.handlers[name] = next
			}
			return
		}
	}
}

// Emit delivers n to every handler registered for n.Name.
func (b *Bus) Emit(n Notification) {
	b.mu.Lock()
	b.emitted++
	subs := b.handlers[n.Name]
	b.mu.Unlock()

	for _, s := range subs {
		b.deliver(s.handler, n)
	}
}

// deliver runs one handler, recovering panics so a bad subscriber
// cannot take down the socket read loop.
func (b *Bus) deliver(h Handler, n Notification) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("notification handler panicked", "name", n.Name, "panic", r)
			b.mu.Lock()
			b.panics++
			b.mu.Unlock()
		}
	}()

	h(n)

	b.mu.Lock()
	b.delivered++
	b.mu.Unlock()
}

// Stats returns current statistics.
func (b *Bus) Stats() BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return BusStats{
		Emitted:   b.emitted,
		Delivered: b.delivered,
		Panics:    b.panics,
	}
}
