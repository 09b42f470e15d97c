package arena

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"showdown-arena/data"
	"showdown-arena/game"
	"showdown-arena/presence"
	"showdown-arena/session"
	"showdown-arena/storage"
)

type constRand float64

func (c constRand) Float64() float64 { return float64(c) }

type sent struct {
	conn    string
	event   string
	payload any
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sent
}

func (n *fakeNotifier) Send(connID, event string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sent{conn: connID, event: event, payload: payload})
}

func (n *fakeNotifier) events(conn string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, s := range n.sent {
		if s.conn == conn {
			out = append(out, s.event)
		}
	}
	return out
}

func (n *fakeNotifier) count(conn, event string) int {
	c := 0
	for _, e := range n.events(conn) {
		if e == event {
			c++
		}
	}
	return c
}

// last returns the latest payload sent to conn for event.
func (n *fakeNotifier) last(t *testing.T, conn, event string) any {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].conn == conn && n.sent[i].event == event {
			return n.sent[i].payload
		}
	}
	t.Fatalf("no %s sent to %s", event, conn)
	return nil
}

func (n *fakeNotifier) total() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type fakeTimer struct {
	clock   *fakeClock
	when    time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, time.May, 4, 18, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, when: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and fires due timers in deadline order on the
// calling goroutine.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var due []*fakeTimer
		for _, t := range c.timers {
			if !t.stopped && !t.fired && !t.when.After(target) {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			c.now = target
			c.mu.Unlock()
			return
		}
		sort.Slice(due, func(i, j int) bool { return due[i].when.Before(due[j].when) })
		next := due[0]
		next.fired = true
		c.now = next.when
		c.mu.Unlock()
		next.f()
	}
}

var errStoreDown = errors.New("store unavailable")

// flakyStore fails every Set while down is true.
type flakyStore struct {
	session.Store
	down atomic.Bool
}

func (s *flakyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.down.Load() {
		return errStoreDown
	}
	return s.Store.Set(ctx, key, value, ttl)
}

type fakePersist struct {
	mu           sync.Mutex
	leads        map[string]storage.LeadCreature
	records      []storage.BattleRecord
	progressions []storage.Progression
	failWith     error
}

func (p *fakePersist) LeadCreature(_ context.Context, userID string) (storage.LeadCreature, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.leads[userID]
	if !ok {
		return storage.LeadCreature{}, storage.ErrNotFound
	}
	return c, nil
}

func (p *fakePersist) RecordBattle(_ context.Context, r storage.BattleRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return p.failWith
	}
	p.records = append(p.records, r)
	return nil
}

func (p *fakePersist) ApplyProgression(_ context.Context, pr storage.Progression) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return p.failWith
	}
	p.progressions = append(p.progressions, pr)
	return nil
}

type harness struct {
	o       *Orchestrator
	reg     *presence.Memory
	store   *session.MemoryStore
	persist *fakePersist
	notes   *fakeNotifier
	clock   *fakeClock
	catalog *data.Catalog
}

func lead(owner, creatureID, species string, level int, base game.BaseStats, moves ...string) storage.LeadCreature {
	maxHP := game.DeriveStat(base.HP, level, true)
	slots := make([]storage.MoveSlot, 0, len(moves))
	for _, m := range moves {
		slots = append(slots, storage.MoveSlot{ID: m})
	}
	return storage.LeadCreature{
		OwnerID: owner, CreatureID: creatureID, SpeciesID: species,
		Level: level, HP: maxHP, MaxHP: maxHP, BaseStats: base, Moves: slots,
	}
}

func newHarness(t *testing.T, rng game.Rand) *harness {
	t.Helper()
	return newHarnessWithStore(t, rng, nil)
}

// newHarnessWithStore is newHarness with the orchestrator's session store
// wrapped by wrap.
func newHarnessWithStore(t *testing.T, rng game.Rand, wrap func(session.Store) session.Store) *harness {
	t.Helper()
	catalog, err := data.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	char, _ := catalog.Species("charmander")
	bulb, _ := catalog.Species("bulbasaur")

	h := &harness{
		reg:   presence.NewMemory(),
		notes: &fakeNotifier{},
		clock: newFakeClock(),
		persist: &fakePersist{leads: map[string]storage.LeadCreature{
			"u1": lead("u1", "cr-1", "charmander", 10, char.Base, "ember", "scratch", "growl"),
			"u2": lead("u2", "cr-2", "bulbasaur", 10, bulb.Base, "vine-whip", "growl", "tackle"),
		}},
		catalog: catalog,
	}
	h.store = session.NewMemoryStoreWithClock(h.clock.Now)
	var store session.Store = h.store
	if wrap != nil {
		store = wrap(h.store)
	}
	ids := 0
	h.o = New(h.reg, store, h.persist, catalog, h.notes, DefaultConfig(),
		WithClock(h.clock),
		WithRand(rng),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithIDGenerator(func() string {
			ids++
			return "room-" + strconv.Itoa(ids)
		}),
	)
	h.o.Connect("c1", presence.Identity{UserID: "u1", Username: "ash"})
	h.o.Connect("c2", presence.Identity{UserID: "u2", Username: "gary"})
	return h
}

// startBattle runs the handshake between c1 (challenger) and c2.
func (h *harness) startBattle(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	if err := h.o.RequestChallenge(ctx, "c1", "u2"); err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := h.o.AcceptChallenge(ctx, "c2", "u1"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	roomID, ok := h.reg.RoomOf("c1")
	if !ok {
		t.Fatal("challenger not bound to a room")
	}
	return roomID
}

func (h *harness) room(t *testing.T, roomID string) *game.Room {
	t.Helper()
	room, err := h.o.loadRoom(context.Background(), roomID)
	if err != nil {
		t.Fatalf("load room: %v", err)
	}
	return room
}
