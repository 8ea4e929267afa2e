package orderstore_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mesaqr/api/internal/enum"
	"github.com/mesaqr/api/internal/menu"
	"github.com/mesaqr/api/internal/orderstore"
	"github.com/shopspring/decimal"
)

// --- Mock Storage ---

type mockStorage struct {
	mu     sync.Mutex
	data   []byte
	saves  int
	loadFn func(ctx context.Context) ([]byte, error)
	saveFn func(ctx context.Context, data []byte) error
}

func (m *mockStorage) Load(ctx context.Context) ([]byte, error) {
	if m.loadFn != nil {
		return m.loadFn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data, nil
}

func (m *mockStorage) Save(ctx context.Context, data []byte) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, data)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	m.saves++
	return nil
}

// --- Synchronous loopback bus ---

// loopBus delivers every publish to every subscriber before Publish returns.
type loopBus struct {
	mu        sync.Mutex
	subs      map[string]map[int]func([]byte)
	next      int
	published map[string][][]byte
	subErr    error
}

func newLoopBus() *loopBus {
	return &loopBus{
		subs:      make(map[string]map[int]func([]byte)),
		published: make(map[string][][]byte),
	}
}

func (b *loopBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	b.published[channel] = append(b.published[channel], payload)
	fns := make([]func([]byte), 0, len(b.subs[channel]))
	for _, fn := range b.subs[channel] {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(payload)
	}
	return nil
}

func (b *loopBus) Subscribe(channel string, fn func([]byte)) (func(), error) {
	if b.subErr != nil {
		return nil, b.subErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[int]func([]byte))
	}
	b.subs[channel][id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[channel], id)
	}, nil
}

func (b *loopBus) count(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published[channel])
}

func (b *loopBus) last(channel string) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.published[channel]
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

var errUnavailable = errors.New("unavailable")

// --- Test helpers ---

// fixedClock returns the same instant on every call so timestamp
// uniqueness has to come from the tie-breaker.
func fixedClock() func() time.Time {
	t := time.UnixMilli(1_700_000_000_000)
	return func() time.Time { return t }
}

func beer() menu.Item {
	return menu.Item{ID: "beer", Name: "Beer", Price: decimal.RequireFromString("2.00"), Category: "drinks", Destination: enum.DestinationBar}
}

func fries() menu.Item {
	return menu.Item{ID: "fries", Name: "Fries", Price: decimal.RequireFromString("4.00"), Category: "food", Destination: enum.DestinationKitchen}
}

func newTestStore(storage orderstore.Storage, bus orderstore.Broadcaster) *orderstore.Store {
	s := orderstore.New(orderstore.Options{
		Storage:     storage,
		Broadcaster: bus,
		Now:         fixedClock(),
	})
	s.Open(context.Background())
	return s
}
