package arena

import (
	"sync"
	"time"
)

// Purpose distinguishes the independent timers a room can have armed.
type Purpose string

const PurposeAction Purpose = "action"

// gracePurpose keys the disconnect timer per side so both players dropping
// keeps two independent windows.
func gracePurpose(userID string) Purpose {
	return Purpose("grace:" + userID)
}

// Timer is a cancellable single-shot timer.
type Timer interface {
	Stop() bool
}

// Clock is the time source used for deadlines and timers.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

type timerKey struct {
	room    string
	purpose Purpose
}

type scheduled struct {
	timer Timer
	gen   uint64
}

// Scheduler owns every armed timer, keyed by room and purpose. Arming a key
// replaces any timer already armed under it.
type Scheduler struct {
	clock Clock

	mu     sync.Mutex
	timers map[timerKey]scheduled
	gen    uint64
}

func NewScheduler(clock Clock) *Scheduler {
	if clock == nil {
		clock = realClock{}
	}
	return &Scheduler{clock: clock, timers: make(map[timerKey]scheduled)}
}

// Schedule arms fn to run after d. A fire whose entry was cancelled or
// replaced in the meantime is dropped.
func (s *Scheduler) Schedule(roomID string, purpose Purpose, d time.Duration, fn func()) {
	key := timerKey{room: roomID, purpose: purpose}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.timers[key]; ok {
		existing.timer.Stop()
	}
	s.gen++
	gen := s.gen
	t := s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		cur, ok := s.timers[key]
		if !ok || cur.gen != gen {
			s.mu.Unlock()
			return
		}
		delete(s.timers, key)
		s.mu.Unlock()
		fn()
	})
	s.timers[key] = scheduled{timer: t, gen: gen}
}

func (s *Scheduler) Cancel(roomID string, purpose Purpose) {
	key := timerKey{room: roomID, purpose: purpose}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[key]; ok {
		t.timer.Stop()
		delete(s.timers, key)
	}
}

// CancelRoom stops every timer armed for roomID.
func (s *Scheduler) CancelRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, t := range s.timers {
		if key.room == roomID {
			t.timer.Stop()
			delete(s.timers, key)
		}
	}
}

func (s *Scheduler) Pending(roomID string, purpose Purpose) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[timerKey{room: roomID, purpose: purpose}]
	return ok
}

// Len is the number of armed timers.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
