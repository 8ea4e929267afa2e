package broadcast

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrClosed is returned when publishing on a closed bus.
var ErrClosed = errors.New("broadcast bus closed")

const defaultQueueSize = 64

// MemoryBus fans messages out to every subscriber of a channel inside one
// process. Each subscriber drains its own queue on a dedicated goroutine, so
// a subscriber sees one publisher's messages in publish order. A full queue
// drops the message for that subscriber only.
type MemoryBus struct {
	mu        sync.RWMutex
	channels  map[string]map[int]*subscriber
	nextID    int
	queueSize int
	closed    bool
}

type subscriber struct {
	queue chan []byte
	once  sync.Once
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.queue) })
}

// NewMemoryBus creates a bus whose subscribers buffer up to queueSize
// messages. A non-positive size selects the default.
func NewMemoryBus(queueSize int) *MemoryBus {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &MemoryBus{
		channels:  make(map[string]map[int]*subscriber),
		queueSize: queueSize,
	}
}

// Publish delivers payload to the current subscribers of channel.
func (b *MemoryBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	for id, sub := range b.channels[channel] {
		msg := make([]byte, len(payload))
		copy(msg, payload)
		select {
		case sub.queue <- msg:
		default:
			log.Warn().Str("channel", channel).Int("subscriber", id).Msg("subscriber queue full, message dropped")
		}
	}
	return nil
}

// Subscribe runs fn for every message published on channel until the
// returned cancel func is called.
func (b *MemoryBus) Subscribe(channel string, fn func(payload []byte)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	sub := &subscriber{queue: make(chan []byte, b.queueSize)}
	id := b.nextID
	b.nextID++
	if b.channels[channel] == nil {
		b.channels[channel] = make(map[int]*subscriber)
	}
	b.channels[channel][id] = sub

	go func() {
		for msg := range sub.queue {
			fn(msg)
		}
	}()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if subs, ok := b.channels[channel]; ok {
			if _, exists := subs[id]; exists {
				delete(subs, id)
				sub.stop()
				if len(subs) == 0 {
					delete(b.channels, channel)
				}
			}
		}
	}, nil
}

// Subscribers returns how many subscribers channel has.
func (b *MemoryBus) Subscribers(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.channels[channel])
}

// Close stops every subscriber. Further publishes fail with ErrClosed.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for channel, subs := range b.channels {
		for _, sub := range subs {
			sub.stop()
		}
		delete(b.channels, channel)
	}
	return nil
}
