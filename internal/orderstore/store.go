package orderstore

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mesaqr/api/internal/enum"
	"github.com/mesaqr/api/internal/menu"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const defaultPersistTimeout = 3 * time.Second

// customIDPrefix keeps ad-hoc product ids out of the catalog namespace.
const customIDPrefix = "custom-"

// Options configures a Store. Storage and Broadcaster are optional: without
// them the store is memory-only and single-replica.
type Options struct {
	Storage        Storage
	Broadcaster    Broadcaster
	StateChannel   string
	NotifyChannel  string
	PersistTimeout time.Duration
	Origin         string
	Now            func() time.Time
	Logger         *zerolog.Logger
}

// LineRequest asks for Quantity units of a catalog item.
type LineRequest struct {
	Item     menu.Item
	Quantity int
}

// Change is delivered to local subscribers after every state change,
// local or received from another replica.
type Change struct {
	Snapshot Snapshot
	Event    *Event
	Remote   bool
}

// Store owns the canonical table state of one replica.
type Store struct {
	opts   Options
	logger zerolog.Logger

	mu     sync.Mutex
	tables Snapshot
	// highWater keeps timestamps increasing even after the newest line of a
	// table was removed.
	highWater map[string]int64
	open      bool
	cancelSub func()

	// seq numbers commits; guarded by mu.
	seq uint64

	// persistMu serializes local mutations end to end so snapshots reach
	// storage and the channels in commit order. It is taken before mu and
	// held across storage I/O; mu is not.
	persistMu sync.Mutex

	// notifyMu guards firedSeq. Subscribers only ever see newer snapshots.
	notifyMu sync.Mutex
	firedSeq uint64
	subsMu   sync.RWMutex
	subs     map[int]func(Change)
	nextSub  int

	persistFailures atomic.Int64
}

// New creates a store. Call Open to hydrate and join the broadcast.
func New(opts Options) *Store {
	if opts.StateChannel == "" {
		opts.StateChannel = enum.ChannelState
	}
	if opts.NotifyChannel == "" {
		opts.NotifyChannel = enum.ChannelNotify
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = defaultPersistTimeout
	}
	if opts.Origin == "" {
		opts.Origin = uuid.NewString()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Store{
		opts:      opts,
		logger:    logger.With().Str("component", "orderstore").Str("origin", opts.Origin).Logger(),
		tables:    Snapshot{},
		highWater: make(map[string]int64),
		subs:      make(map[int]func(Change)),
	}
}

// Origin identifies this replica on the broadcast channels.
func (s *Store) Origin() string {
	return s.opts.Origin
}

// PersistFailures counts snapshot writes that did not reach storage.
func (s *Store) PersistFailures() int64 {
	return s.persistFailures.Load()
}

// Open hydrates the store from storage and subscribes to the state channel.
// Neither step can fail the store: an unreadable record yields an empty
// store and an unavailable broadcaster leaves the replica on its own.
func (s *Store) Open(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return
	}
	s.open = true
	s.tables = s.hydrate(ctx)
	s.raiseHighWater()

	if s.opts.Broadcaster == nil {
		return
	}
	cancel, err := s.opts.Broadcaster.Subscribe(s.opts.StateChannel, s.receive)
	if err != nil {
		s.logger.Warn().Err(err).Str("channel", s.opts.StateChannel).
			Msg("state channel unavailable, running without cross-replica sync")
		return
	}
	s.cancelSub = cancel
}

// Close leaves the state channel. The in-memory state stays readable.
func (s *Store) Close() {
	s.mu.Lock()
	cancel := s.cancelSub
	s.cancelSub = nil
	s.open = false
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Store) hydrate(ctx context.Context) Snapshot {
	if s.opts.Storage == nil {
		return Snapshot{}
	}
	data, err := s.opts.Storage.Load(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("load snapshot failed, starting empty")
		return Snapshot{}
	}
	snap, err := DecodeSnapshot(data)
	if err != nil {
		s.logger.Warn().Err(err).Msg("stored snapshot unreadable, starting empty")
		return Snapshot{}
	}
	s.logger.Info().Int("tables", len(snap)).Msg("store hydrated")
	return snap
}

// Subscribe registers fn for every change. fn runs synchronously and must
// not call mutating methods of the store.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()
	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

// Snapshot returns a deep copy of all tables.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tables.Clone()
}

// Table returns a copy of one table. Unknown tables read as fresh state.
func (s *Store) Table(tableID string) (TableState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[tableID]
	if !ok {
		return NewTableState(), false
	}
	return t.Clone(), true
}

// --- Mutations ---

// AddOrderLines appends one line per requested unit, each stamped pending
// with its own ascending timestamp.
func (s *Store) AddOrderLines(ctx context.Context, tableID string, reqs []LineRequest) bool {
	if !validTableID(tableID) {
		return false
	}
	return s.mutate(ctx, tableID, true, func(t *TableState) *Event {
		added := 0
		for _, r := range reqs {
			for i := 0; i < r.Quantity; i++ {
				ts := s.nextTimestamp(tableID, *t)
				t.Items = append(t.Items, newLine(r.Item.ID, r.Item.Name, r.Item.Price, r.Item.Destination, ts))
				added++
			}
		}
		if added == 0 {
			return nil
		}
		return &Event{Kind: enum.EventNewOrder, TableID: tableID}
	})
}

// AddCustomProduct appends one ad-hoc line outside the catalog and records
// the product in the table's custom list.
func (s *Store) AddCustomProduct(ctx context.Context, tableID, name string, price decimal.Decimal) bool {
	name = strings.TrimSpace(name)
	if !validTableID(tableID) || name == "" || price.IsNegative() {
		return false
	}
	return s.mutate(ctx, tableID, true, func(t *TableState) *Event {
		ts := s.nextTimestamp(tableID, *t)
		id := customIDPrefix + uuid.NewString()
		line := newLine(id, name, price, enum.DestinationKitchen, ts)
		line.Custom = true
		t.Items = append(t.Items, line)
		t.CustomProducts = append(t.CustomProducts, CustomProduct{ID: id, Name: name, Price: price, AddedAt: ts})
		return &Event{Kind: enum.EventNewOrder, TableID: tableID}
	})
}

// AdvanceItemStatus moves one line forward in the preparation progression.
// Unknown lines, unknown statuses and backward moves are ignored.
func (s *Store) AdvanceItemStatus(ctx context.Context, tableID string, ts int64, status string) bool {
	if !enum.IsValidItemStatus(status) {
		return false
	}
	return s.mutate(ctx, tableID, false, func(t *TableState) *Event {
		i := t.lineIndex(ts)
		if i < 0 {
			return nil
		}
		if enum.ItemStatusRank(status) <= enum.ItemStatusRank(t.Items[i].Status) {
			return nil
		}
		t.Items[i].Status = status
		return &Event{Kind: enum.EventStatusChanged, TableID: tableID}
	})
}

// AdvanceAll moves every undelivered line of the table that is behind
// status up to status.
func (s *Store) AdvanceAll(ctx context.Context, tableID, status string) bool {
	if !enum.IsValidItemStatus(status) {
		return false
	}
	rank := enum.ItemStatusRank(status)
	return s.mutate(ctx, tableID, false, func(t *TableState) *Event {
		moved := false
		for i := range t.Items {
			if t.Items[i].Delivered || enum.ItemStatusRank(t.Items[i].Status) >= rank {
				continue
			}
			t.Items[i].Status = status
			moved = true
		}
		if !moved {
			return nil
		}
		return &Event{Kind: enum.EventStatusChanged, TableID: tableID}
	})
}

// MarkDelivered sets the terminal delivered flag. Marking twice is a no-op.
func (s *Store) MarkDelivered(ctx context.Context, tableID string, ts int64) bool {
	return s.mutate(ctx, tableID, false, func(t *TableState) *Event {
		i := t.lineIndex(ts)
		if i < 0 || t.Items[i].Delivered {
			return nil
		}
		t.Items[i].Delivered = true
		return syncOnly
	})
}

// IncrementLine adds another pending copy of the newest line for productID.
func (s *Store) IncrementLine(ctx context.Context, tableID, productID string) bool {
	return s.mutate(ctx, tableID, false, func(t *TableState) *Event {
		for i := len(t.Items) - 1; i >= 0; i-- {
			src := t.Items[i]
			if src.ProductID != productID {
				continue
			}
			line := newLine(src.ProductID, src.Name, src.Price, src.Destination, s.nextTimestamp(tableID, *t))
			line.Custom = src.Custom
			t.Items = append(t.Items, line)
			if src.Custom {
				t.CustomProducts = append(t.CustomProducts, CustomProduct{ID: src.ProductID, Name: src.Name, Price: src.Price, AddedAt: line.Timestamp})
			}
			return &Event{Kind: enum.EventNewOrder, TableID: tableID}
		}
		return nil
	})
}

// DecrementLine removes the most recently added undelivered line for
// productID. Delivered lines are never removed.
func (s *Store) DecrementLine(ctx context.Context, tableID, productID string) bool {
	return s.mutate(ctx, tableID, false, func(t *TableState) *Event {
		for i := len(t.Items) - 1; i >= 0; i-- {
			if t.Items[i].ProductID == productID && !t.Items[i].Delivered {
				t.Items = append(t.Items[:i], t.Items[i+1:]...)
				return syncOnly
			}
		}
		return nil
	})
}

// RemoveLine removes one undelivered line by timestamp.
func (s *Store) RemoveLine(ctx context.Context, tableID string, ts int64) bool {
	return s.mutate(ctx, tableID, false, func(t *TableState) *Event {
		i := t.lineIndex(ts)
		if i < 0 || t.Items[i].Delivered {
			return nil
		}
		t.Items = append(t.Items[:i], t.Items[i+1:]...)
		return syncOnly
	})
}

// RequestBill raises the bill flag unless it is already raised.
func (s *Store) RequestBill(ctx context.Context, tableID string) bool {
	if !validTableID(tableID) {
		return false
	}
	return s.mutate(ctx, tableID, true, func(t *TableState) *Event {
		if t.BillRequested {
			return nil
		}
		t.BillRequested = true
		return &Event{Kind: enum.EventBillRequested, TableID: tableID}
	})
}

// AcknowledgeBill lowers the bill flag; the order is kept and the flag may
// be raised again.
func (s *Store) AcknowledgeBill(ctx context.Context, tableID string) bool {
	return s.mutate(ctx, tableID, false, func(t *TableState) *Event {
		if !t.BillRequested {
			return nil
		}
		t.BillRequested = false
		return &Event{Kind: enum.EventBillAcknowledged, TableID: tableID}
	})
}

// CallStaff raises the call flag unless it is already raised.
func (s *Store) CallStaff(ctx context.Context, tableID string) bool {
	if !validTableID(tableID) {
		return false
	}
	return s.mutate(ctx, tableID, true, func(t *TableState) *Event {
		if t.StaffCalled {
			return nil
		}
		t.StaffCalled = true
		return &Event{Kind: enum.EventStaffCalled, TableID: tableID}
	})
}

// AcknowledgeCall lowers the call flag.
func (s *Store) AcknowledgeCall(ctx context.Context, tableID string) bool {
	return s.mutate(ctx, tableID, false, func(t *TableState) *Event {
		if !t.StaffCalled {
			return nil
		}
		t.StaffCalled = false
		return &Event{Kind: enum.EventCallAcknowledged, TableID: tableID}
	})
}

// SettleTable resets a known table to the fresh state. Irreversible.
func (s *Store) SettleTable(ctx context.Context, tableID string) bool {
	return s.mutate(ctx, tableID, false, func(t *TableState) *Event {
		*t = NewTableState()
		return &Event{Kind: enum.EventTableSettled, TableID: tableID}
	})
}

// syncOnly marks a change that is broadcast without an event kind.
var syncOnly = &Event{}

// mutate applies fn to a working copy of the table and commits it when fn
// reports a change. create controls whether an unknown table is started.
func (s *Store) mutate(ctx context.Context, tableID string, create bool, fn func(t *TableState) *Event) bool {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	current, ok := s.tables[tableID]
	if !ok && !create {
		s.mu.Unlock()
		return false
	}
	if !ok {
		current = NewTableState()
	}
	working := current.Clone()
	ev := fn(&working)
	if ev == nil {
		s.mu.Unlock()
		return false
	}
	if ev == syncOnly {
		ev = nil
	}
	s.tables[tableID] = working
	if hi := working.maxTimestamp(); hi > s.highWater[tableID] {
		s.highWater[tableID] = hi
	}
	s.seq++
	seq := s.seq
	snap := s.tables.Clone()
	s.mu.Unlock()

	s.persist(ctx, snap)
	s.publish(ctx, snap, ev)
	s.fire(seq, Change{Snapshot: snap, Event: ev})
	return true
}

// nextTimestamp returns a timestamp later than every line the table has had.
func (s *Store) nextTimestamp(tableID string, t TableState) int64 {
	ts := s.opts.Now().UnixMilli()
	floor := t.maxTimestamp()
	if hw := s.highWater[tableID]; hw > floor {
		floor = hw
	}
	if ts <= floor {
		ts = floor + 1
	}
	s.highWater[tableID] = ts
	return ts
}

func (s *Store) persist(ctx context.Context, snap Snapshot) {
	if s.opts.Storage == nil {
		return
	}
	data, err := EncodeSnapshot(snap)
	if err != nil {
		s.persistFailures.Add(1)
		s.logger.Error().Err(err).Msg("encode snapshot")
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.PersistTimeout)
	defer cancel()
	if err := s.opts.Storage.Save(ctx, data); err != nil {
		s.persistFailures.Add(1)
		s.logger.Error().Err(err).Msg("persist snapshot")
	}
}

func (s *Store) publish(ctx context.Context, snap Snapshot, ev *Event) {
	b := s.opts.Broadcaster
	if b == nil {
		return
	}
	msg := Message{Mesas: snap, Origin: s.opts.Origin}
	if ev != nil {
		msg.Tipo = ev.Kind
		msg.MesaID = ev.TableID
	}
	payload, err := EncodeMessage(msg)
	if err != nil {
		s.logger.Error().Err(err).Msg("encode state message")
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := b.Publish(ctx, s.opts.StateChannel, payload); err != nil {
		s.logger.Warn().Err(err).Str("channel", s.opts.StateChannel).Msg("publish state failed")
	}
	if ev == nil {
		return
	}
	note, err := EncodeNotification(Notification{Tipo: ev.Kind, MesaID: ev.TableID, Origin: s.opts.Origin})
	if err != nil {
		return
	}
	if err := b.Publish(ctx, s.opts.NotifyChannel, note); err != nil {
		s.logger.Warn().Err(err).Str("channel", s.opts.NotifyChannel).Msg("publish notification failed")
	}
}

// receive handles a raw state channel payload.
func (s *Store) receive(payload []byte) {
	msg, err := DecodeMessage(payload)
	if err != nil {
		s.logger.Warn().Err(err).Msg("dropping undecodable state message")
		return
	}
	s.Apply(msg)
}

// Apply reconciles a message from another replica by replacing the whole
// store with its snapshot. Messages this replica published are ignored.
// Applying the same message twice leaves the same state.
func (s *Store) Apply(msg Message) bool {
	if msg.Origin != "" && msg.Origin == s.opts.Origin {
		return false
	}
	s.mu.Lock()
	s.tables = msg.Mesas.Clone()
	s.raiseHighWater()
	s.seq++
	seq := s.seq
	snap := s.tables.Clone()
	s.mu.Unlock()

	s.fire(seq, Change{Snapshot: snap, Event: msg.Event(), Remote: true})
	return true
}

// raiseHighWater lifts the per-table timestamp floor to the newest line of
// every table. Must be called with mu held.
func (s *Store) raiseHighWater() {
	for id, t := range s.tables {
		if hi := t.maxTimestamp(); hi > s.highWater[id] {
			s.highWater[id] = hi
		}
	}
}

// fire delivers c to the subscribers unless a newer commit was already
// delivered. Every change carries a full snapshot, so skipping an older one
// loses nothing but its event kind.
func (s *Store) fire(seq uint64, c Change) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if seq <= s.firedSeq {
		return
	}
	s.firedSeq = seq

	s.subsMu.RLock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.RUnlock()
	for _, fn := range fns {
		fn(c)
	}
}

func validTableID(id string) bool {
	return strings.TrimSpace(id) != ""
}
