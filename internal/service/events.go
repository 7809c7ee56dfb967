package service

import (
	"sync"

	"github.com/prperemyshlev/access-service/internal/domain"
)

// Broadcaster fans identity events out to every subscriber, synchronously
// and in publish order per publisher
type Broadcaster struct {
	mu       sync.RWMutex
	handlers map[int]func(domain.AuthEvent)
	nextID   int
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{handlers: make(map[int]func(domain.AuthEvent))}
}

// Subscribe registers fn; the returned func removes it
func (b *Broadcaster) Subscribe(fn func(domain.AuthEvent)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers event to a snapshot of the current subscribers
func (b *Broadcaster) Publish(event domain.AuthEvent) {
	b.mu.RLock()
	handlers := make([]func(domain.AuthEvent), 0, len(b.handlers))
	for _, fn := range b.handlers {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(event)
	}
}
