// Package presence tracks which identity owns which live connection and which
// room each connection is currently bound to. Nothing here is persisted.
package presence

import "sync"

type Identity struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Registry is the presence abstraction the orchestrator depends on. The
// in-process Memory implementation is the only one today.
type Registry interface {
	Register(connID string, id Identity)
	Unregister(connID string) (Identity, bool)
	Identity(connID string) (Identity, bool)
	// Connection returns the latest connection registered for userID.
	Connection(userID string) (string, bool)
	BindRoom(connID, roomID string)
	UnbindRoom(connID string)
	RoomOf(connID string) (string, bool)
}

type Memory struct {
	mu         sync.RWMutex
	identities map[string]Identity // conn -> identity
	latest     map[string]string   // user -> conn
	rooms      map[string]string   // conn -> room
}

func NewMemory() *Memory {
	return &Memory{
		identities: make(map[string]Identity),
		latest:     make(map[string]string),
		rooms:      make(map[string]string),
	}
}

func (m *Memory) Register(connID string, id Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities[connID] = id
	m.latest[id.UserID] = connID
}

// Unregister drops connID. The user's latest-connection entry is only removed
// when it still points at connID, so a newer connection for the same user
// survives the close of an older one.
func (m *Memory) Unregister(connID string) (Identity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.identities[connID]
	if !ok {
		return Identity{}, false
	}
	delete(m.identities, connID)
	delete(m.rooms, connID)
	if m.latest[id.UserID] == connID {
		delete(m.latest, id.UserID)
	}
	return id, true
}

func (m *Memory) Identity(connID string) (Identity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.identities[connID]
	return id, ok
}

func (m *Memory) Connection(userID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.latest[userID]
	return conn, ok
}

func (m *Memory) BindRoom(connID, roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.identities[connID]; !ok {
		return
	}
	m.rooms[connID] = roomID
}

func (m *Memory) UnbindRoom(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, connID)
}

func (m *Memory) RoomOf(connID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[connID]
	return room, ok
}

var _ Registry = (*Memory)(nil)
