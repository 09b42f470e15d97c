// Package storage defines the persistence contracts the battle orchestrator
// consumes: lead creature lookup, battle results and progression.
package storage

import (
	"context"
	"errors"
	"time"

	"showdown-arena/game"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
	ErrAlreadyExists = errors.New("record already exists")
)

// MoveSlot is one learned move and its stored PP.
type MoveSlot struct {
	ID string `json:"id"`
	PP int    `json:"pp"`
}

// LeadCreature is the snapshot of the first creature in a user's party.
type LeadCreature struct {
	OwnerID    string
	CreatureID string
	SpeciesID  string
	Nickname   string
	Level      int
	Experience int
	HP         int
	MaxHP      int
	BaseStats  game.BaseStats
	Moves      []MoveSlot
}

// BattleRecord is one finished battle. WinnerID and LoserID are empty when
// the battle ended without a winner.
type BattleRecord struct {
	ID        string
	WinnerID  string
	LoserID   string
	XPAwarded int
	Turns     int
	Reason    string
	EndedAt   time.Time
}

// Progression carries the post-battle updates for both creatures.
type Progression struct {
	WinnerCreatureID string
	WinnerHP         int
	XPGained         int
	LoserCreatureID  string
	LoserHP          int
}

// Store is the persistence collaborator used by the arena.
type Store interface {
	LeadCreature(ctx context.Context, userID string) (LeadCreature, error)
	RecordBattle(ctx context.Context, record BattleRecord) error
	ApplyProgression(ctx context.Context, p Progression) error
}
