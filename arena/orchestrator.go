// Package arena coordinates challenges, rooms, turn submission, timers and
// battle termination on top of the combat rules in package game.
//
// Each room is owned by a single process: every read-modify-write of a room,
// including timer callbacks, runs under that room's lock.
package arena

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"showdown-arena/data"
	"showdown-arena/game"
	"showdown-arena/presence"
	"showdown-arena/session"
	"showdown-arena/storage"
)

const (
	roomKeyPrefix      = "battle:room:"
	challengeKeyPrefix = "battle:challenge:"

	// callbackTimeout bounds store and persistence work done from timers.
	callbackTimeout = 10 * time.Second
)

func roomKey(roomID string) string { return roomKeyPrefix + roomID }

func challengeKey(fromUserID, toUserID string) string {
	return challengeKeyPrefix + fromUserID + ":" + toUserID
}

// Reason tags why a battle ended.
type Reason string

const (
	ReasonFainted    Reason = "fainted"
	ReasonForfeit    Reason = "forfeit"
	ReasonDisconnect Reason = "disconnect"
	ReasonTimeout    Reason = "timeout"
)

// Notifier delivers one server event to one connection. Delivery to a
// connection that has gone away is silently dropped.
type Notifier interface {
	Send(connID, event string, payload any)
}

type Config struct {
	ActionTimeout   time.Duration
	DisconnectGrace time.Duration
	ChallengeTTL    time.Duration
	RoomTTL         time.Duration
}

func DefaultConfig() Config {
	return Config{
		ActionTimeout:   30 * time.Second,
		DisconnectGrace: 15 * time.Second,
		ChallengeTTL:    60 * time.Second,
		RoomTTL:         30 * time.Minute,
	}
}

type Orchestrator struct {
	presence presence.Registry
	store    session.Store
	persist  storage.Store
	catalog  *data.Catalog
	notify   Notifier
	cfg      Config

	clock  Clock
	sched  *Scheduler
	rng    game.Rand
	log    *slog.Logger
	tracer trace.Tracer
	newID  func() string

	// handshakeMu serializes challenge bookkeeping so two accepts cannot
	// place the same user in two rooms.
	handshakeMu sync.Mutex

	locksMu sync.Mutex
	locks   map[string]*roomLock
}

type roomLock struct {
	mu   sync.Mutex
	refs int
}

type Option func(*Orchestrator)

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithRand replaces the random source. It is used under the orchestrator's
// own lock, so it need not be safe for concurrent use.
func WithRand(r game.Rand) Option {
	return func(o *Orchestrator) { o.rng = &lockedRand{src: r} }
}

func WithClock(c Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithIDGenerator sets the room id source. Defaults to random UUIDs.
func WithIDGenerator(f func() string) Option {
	return func(o *Orchestrator) { o.newID = f }
}

func New(reg presence.Registry, store session.Store, persist storage.Store, catalog *data.Catalog, notify Notifier, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		presence: reg,
		store:    store,
		persist:  persist,
		catalog:  catalog,
		notify:   notify,
		cfg:      cfg,
		clock:    realClock{},
		rng:      &lockedRand{src: rand.New(rand.NewSource(time.Now().UnixNano()))},
		log:      slog.Default(),
		tracer:   otel.Tracer("showdown-arena/arena"),
		newID:    newRoomID,
		locks:    make(map[string]*roomLock),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.sched = NewScheduler(o.clock)
	return o
}

// Scheduler exposes the timer owner, mainly for tests and shutdown.
func (o *Orchestrator) Scheduler() *Scheduler { return o.sched }

type lockedRand struct {
	mu  sync.Mutex
	src game.Rand
}

func (r *lockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Float64()
}

func (o *Orchestrator) lockRoom(roomID string) (unlock func()) {
	o.locksMu.Lock()
	l, ok := o.locks[roomID]
	if !ok {
		l = &roomLock{}
		o.locks[roomID] = l
	}
	l.refs++
	o.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		o.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(o.locks, roomID)
		}
		o.locksMu.Unlock()
	}
}

// Connect registers an authenticated connection.
func (o *Orchestrator) Connect(connID string, id presence.Identity) {
	o.presence.Register(connID, id)
	o.log.Info("player connected", "conn", connID, "user", id.UserID, "username", id.Username)
}

func (o *Orchestrator) identity(connID string) (presence.Identity, error) {
	id, ok := o.presence.Identity(connID)
	if !ok {
		return presence.Identity{}, ErrUnknownConnection
	}
	return id, nil
}

func (o *Orchestrator) loadRoom(ctx context.Context, roomID string) (*game.Room, error) {
	var room game.Room
	if err := session.GetJSON(ctx, o.store, roomKey(roomID), &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// saveRoom writes room and refreshes its TTL.
func (o *Orchestrator) saveRoom(ctx context.Context, room *game.Room) error {
	if err := session.PutJSON(ctx, o.store, roomKey(room.ID), room, o.cfg.RoomTTL); err != nil {
		return fmt.Errorf("save room %s: %w", room.ID, err)
	}
	return nil
}

// activeRoom returns the room connID is bound to when that room still exists.
// A binding to an expired room is cleared.
func (o *Orchestrator) activeRoom(ctx context.Context, connID string) (string, bool, error) {
	roomID, ok := o.presence.RoomOf(connID)
	if !ok {
		return "", false, nil
	}
	_, err := o.store.Get(ctx, roomKey(roomID))
	if errors.Is(err, session.ErrNotFound) {
		o.presence.UnbindRoom(connID)
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("check room %s: %w", roomID, err)
	}
	return roomID, true, nil
}

// withRoom loads the room connID is in and runs fn under the room lock. A
// missing binding or a room lost to TTL expiry is ErrNotInBattle.
func (o *Orchestrator) withRoom(ctx context.Context, connID string, fn func(room *game.Room, side game.Side) error) error {
	id, err := o.identity(connID)
	if err != nil {
		return err
	}
	roomID, ok := o.presence.RoomOf(connID)
	if !ok {
		return ErrNotInBattle
	}
	unlock := o.lockRoom(roomID)
	defer unlock()

	room, err := o.loadRoom(ctx, roomID)
	if errors.Is(err, session.ErrNotFound) {
		o.presence.UnbindRoom(connID)
		return ErrNotInBattle
	}
	if err != nil {
		return err
	}
	side := room.SideOf(id.UserID)
	if side == game.SideNone || room.Phase == game.PhaseEnded {
		return ErrNotInBattle
	}
	return fn(room, side)
}

func (o *Orchestrator) send(connID, event string, payload any) {
	if connID == "" {
		return
	}
	o.notify.Send(connID, event, payload)
}

func (o *Orchestrator) broadcast(room *game.Room, event string, payload any) {
	o.send(room.First.ConnID, event, payload)
	o.send(room.Second.ConnID, event, payload)
}
