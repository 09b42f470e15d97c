package game

import (
	"errors"
	"fmt"
	"time"
)

type Type string

type Category string

const (
	CategoryPhysical Category = "physical"
	CategorySpecial  Category = "special"
	CategoryStatus   Category = "status"
)

// Move is a static catalog definition. Fighters only reference moves by ID.
type Move struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Type     Type     `json:"type"`
	Category Category `json:"category"`
	Power    int      `json:"power"`
	Accuracy int      `json:"accuracy"`
	PP       int      `json:"pp"`
	Effect   Effect   `json:"effect,omitempty"`
	Priority bool     `json:"priority,omitempty"`
}

type BaseStats struct {
	HP        int `json:"hp"`
	Attack    int `json:"atk"`
	Defense   int `json:"def"`
	SpAttack  int `json:"spa"`
	SpDefense int `json:"spd"`
	Speed     int `json:"spe"`
}

type Species struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Types []Type    `json:"types"`
	Base  BaseStats `json:"baseStats"`
}

type Status string

const (
	StatusNone      Status = ""
	StatusBurn      Status = "burn"
	StatusParalysis Status = "paralysis"
)

// Side is the fixed role a fighter holds for the whole battle.
type Side uint8

const (
	SideNone Side = iota
	SideFirst
	SideSecond
)

func (s Side) Opponent() Side {
	switch s {
	case SideFirst:
		return SideSecond
	case SideSecond:
		return SideFirst
	default:
		return SideNone
	}
}

func (s Side) String() string {
	switch s {
	case SideFirst:
		return "first"
	case SideSecond:
		return "second"
	default:
		return ""
	}
}

func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(text []byte) error {
	switch string(text) {
	case "first":
		*s = SideFirst
	case "second":
		*s = SideSecond
	case "":
		*s = SideNone
	default:
		return fmt.Errorf("unknown side %q", text)
	}
	return nil
}

// Stats are the derived combat stats. HP is tracked on the fighter itself.
type Stats struct {
	Attack    int `json:"atk"`
	Defense   int `json:"def"`
	SpAttack  int `json:"spa"`
	SpDefense int `json:"spd"`
	Speed     int `json:"spe"`
}

// Fighter is one participant's combat state for one battle.
type Fighter struct {
	UserID     string `json:"userId"`
	ConnID     string `json:"connId"`
	Username   string `json:"username"`
	CreatureID string `json:"creatureId"`
	SpeciesID  string `json:"speciesId"`
	Name       string `json:"name"`
	Level      int    `json:"level"`
	HP         int    `json:"hp"`
	MaxHP      int    `json:"maxHp"`
	Stats      Stats  `json:"stats"`
	Types      []Type `json:"types"`

	Moves []string       `json:"moves"`
	PP    map[string]int `json:"pp"`

	Status      Status  `json:"status,omitempty"`
	AttackMod   float64 `json:"attackMod"`
	AccuracyMod float64 `json:"accuracyMod"`
}

// MaxMoves is the size of a fighter's move set.
const MaxMoves = 4

// NewFighter derives stats for species at level and seeds PP from each
// move's maximum. Extra moves beyond MaxMoves are ignored.
func NewFighter(species Species, level, hp, maxHP int, moves []Move) Fighter {
	if len(moves) > MaxMoves {
		moves = moves[:MaxMoves]
	}
	f := Fighter{
		SpeciesID: species.ID,
		Name:      species.Name,
		Level:     level,
		HP:        hp,
		MaxHP:     maxHP,
		Stats: Stats{
			Attack:    DeriveStat(species.Base.Attack, level, false),
			Defense:   DeriveStat(species.Base.Defense, level, false),
			SpAttack:  DeriveStat(species.Base.SpAttack, level, false),
			SpDefense: DeriveStat(species.Base.SpDefense, level, false),
			Speed:     DeriveStat(species.Base.Speed, level, false),
		},
		Types:       append([]Type(nil), species.Types...),
		Moves:       make([]string, 0, len(moves)),
		PP:          make(map[string]int, len(moves)),
		AttackMod:   1,
		AccuracyMod: 1,
	}
	if f.MaxHP <= 0 {
		f.MaxHP = DeriveStat(species.Base.HP, level, true)
	}
	if f.HP > f.MaxHP {
		f.HP = f.MaxHP
	}
	if f.HP < 0 {
		f.HP = 0
	}
	for _, m := range moves {
		f.Moves = append(f.Moves, m.ID)
		f.PP[m.ID] = m.PP
	}
	return f
}

func (f *Fighter) Fainted() bool { return f.HP <= 0 }

func (f *Fighter) KnowsMove(moveID string) bool {
	for _, id := range f.Moves {
		if id == moveID {
			return true
		}
	}
	return false
}

func (f *Fighter) PPLeft(moveID string) int { return f.PP[moveID] }

func (f *Fighter) usePP(moveID string) {
	if left := f.PP[moveID]; left > 0 {
		f.PP[moveID] = left - 1
	}
}

func (f *Fighter) takeDamage(amount int) {
	f.HP -= amount
	if f.HP < 0 {
		f.HP = 0
	}
}

// PendingActions buffers at most one move id per side for the current turn.
type PendingActions struct {
	First  string `json:"first,omitempty"`
	Second string `json:"second,omitempty"`
}

func (p *PendingActions) Get(side Side) string {
	switch side {
	case SideFirst:
		return p.First
	case SideSecond:
		return p.Second
	default:
		return ""
	}
}

func (p *PendingActions) Set(side Side, moveID string) {
	switch side {
	case SideFirst:
		p.First = moveID
	case SideSecond:
		p.Second = moveID
	}
}

func (p *PendingActions) Count() int {
	n := 0
	if p.First != "" {
		n++
	}
	if p.Second != "" {
		n++
	}
	return n
}

func (p *PendingActions) Clear() { *p = PendingActions{} }

// Phase is the turn lifecycle of a room.
type Phase string

const (
	PhaseAwaitingActions Phase = "awaiting_actions"
	PhaseResolving       Phase = "resolving"
	PhaseEnded           Phase = "ended"
)

var ErrInvalidTransition = errors.New("invalid phase transition")

func (p Phase) CanTransition(to Phase) bool {
	switch p {
	case PhaseAwaitingActions:
		return to == PhaseResolving || to == PhaseEnded
	case PhaseResolving:
		return to == PhaseAwaitingActions || to == PhaseEnded
	default:
		return false
	}
}

// Room is the authoritative shared state of one active battle.
type Room struct {
	ID        string         `json:"id"`
	First     Fighter        `json:"first"`
	Second    Fighter        `json:"second"`
	GoesFirst Side           `json:"goesFirst"`
	Pending   PendingActions `json:"pending"`
	Turn      int            `json:"turn"`
	Phase     Phase          `json:"phase"`
	CreatedAt time.Time      `json:"createdAt"`
	Deadline  *time.Time     `json:"deadline,omitempty"`
}

func NewRoom(id string, first, second Fighter, now time.Time) *Room {
	hint := SideFirst
	if second.Stats.Speed > first.Stats.Speed {
		hint = SideSecond
	}
	return &Room{
		ID:        id,
		First:     first,
		Second:    second,
		GoesFirst: hint,
		Phase:     PhaseAwaitingActions,
		CreatedAt: now,
	}
}

func (r *Room) Fighter(side Side) *Fighter {
	switch side {
	case SideFirst:
		return &r.First
	case SideSecond:
		return &r.Second
	default:
		return nil
	}
}

// SideOf returns the role held by userID, or SideNone.
func (r *Room) SideOf(userID string) Side {
	switch userID {
	case r.First.UserID:
		return SideFirst
	case r.Second.UserID:
		return SideSecond
	default:
		return SideNone
	}
}

func (r *Room) Transition(to Phase) error {
	if !r.Phase.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Phase, to)
	}
	r.Phase = to
	return nil
}
