package app

import (
	"log"
	"sync"
)

// Outbox is one connected transport channel. Send must be safe for use from
// multiple goroutines; implementations queue onto a per-connection writer.
type Outbox interface {
	Send(event string, payload any) error
}

// Broker maps room PINs to the outboxes currently listening on them, plus the
// participant identity bound to each outbox. It is the only mutable shared
// structure outside the store; all mutation happens under one mutex.
type Broker struct {
	mu    sync.RWMutex
	rooms map[string]map[Outbox]int64
}

func NewBroker() *Broker {
	return &Broker{rooms: make(map[string]map[Outbox]int64)}
}

// Join registers out under pin, bound to participantID. Callers must have
// verified the session exists; the broker itself never consults the store.
func (b *Broker) Join(pin string, participantID int64, out Outbox) {
	b.mu.Lock()
	defer b.mu.Unlock()
	room, ok := b.rooms[pin]
	if !ok {
		room = make(map[Outbox]int64)
		b.rooms[pin] = room
	}
	room[out] = participantID
}

// Leave removes out from pin and reports the participant it was bound to.
// Removing an absent outbox is a no-op.
func (b *Broker) Leave(pin string, out Outbox) (int64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	room, ok := b.rooms[pin]
	if !ok {
		return 0, false
	}
	id, ok := room[out]
	if !ok {
		return 0, false
	}
	delete(room, out)
	if len(room) == 0 {
		delete(b.rooms, pin)
	}
	return id, true
}

// MemberCount reports how many outboxes are registered under pin.
func (b *Broker) MemberCount(pin string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[pin])
}

// Broadcast delivers payload to every outbox in the room. Delivery is
// best-effort per recipient: a failing outbox is logged and skipped, never
// aborting the rest or surfacing an error to the caller.
func (b *Broker) Broadcast(pin, event string, payload any) {
	b.BroadcastExcept(pin, event, payload, nil)
}

// BroadcastExcept is Broadcast minus one recipient (used to avoid echoing the
// roster back to a joiner that already received it directly).
func (b *Broker) BroadcastExcept(pin, event string, payload any, skip Outbox) {
	b.mu.RLock()
	targets := make([]Outbox, 0, len(b.rooms[pin]))
	for out := range b.rooms[pin] {
		if out == skip {
			continue
		}
		targets = append(targets, out)
	}
	b.mu.RUnlock()

	for _, out := range targets {
		if err := out.Send(event, payload); err != nil {
			log.Printf("broadcast %s to room %s: drop one recipient: %v", event, pin, err)
		}
	}
}
