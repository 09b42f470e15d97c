package parser

import (
	"showdown-arena/data"
	"showdown-arena/game"
)

type Incoming struct {
	FromUserID   string `json:"fromUserId"`
	FromUsername string `json:"fromUsername"`
}

type RequestSent struct {
	TargetUserID string `json:"targetUserId"`
}

type Error struct {
	Message string `json:"message"`
}

type Declined struct {
	ByUsername string `json:"byUsername"`
}

type ActionAck struct {
	MoveID string `json:"moveId"`
}

type OpponentDisconnected struct {
	Username string `json:"username"`
	GraceMs  int64  `json:"graceMs"`
}

// MoveInfo is the static move metadata sent once at battle start.
type MoveInfo struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Type     game.Type     `json:"type"`
	Category game.Category `json:"category"`
	Power    int           `json:"power"`
	Accuracy int           `json:"accuracy"`
	PP       int           `json:"pp"`
	MaxPP    int           `json:"maxPp"`
	Effect   game.Effect   `json:"effect,omitempty"`
	Priority bool          `json:"priority,omitempty"`
}

type PlayerSnapshot struct {
	UserID     string      `json:"userId"`
	Username   string      `json:"username"`
	CreatureID string      `json:"creatureId"`
	SpeciesID  string      `json:"speciesId"`
	Name       string      `json:"name"`
	Level      int         `json:"level"`
	CurrentHP  int         `json:"currentHp"`
	MaxHP      int         `json:"maxHp"`
	Status     game.Status `json:"status"`
	Types      []game.Type `json:"types"`
	Moves      []MoveInfo  `json:"moves"`
}

type Start struct {
	RoomID    string         `json:"roomId"`
	Player1   PlayerSnapshot `json:"player1"`
	Player2   PlayerSnapshot `json:"player2"`
	GoesFirst string         `json:"goesFirst"` // user id
}

// SideState is the per-turn delta for one fighter.
type SideState struct {
	CurrentHP int            `json:"currentHp"`
	MaxHP     int            `json:"maxHp"`
	Status    game.Status    `json:"status"`
	PPLeft    map[string]int `json:"ppLeft"`
}

type Update struct {
	Log        []string  `json:"log"`
	Player1    SideState `json:"player1"`
	Player2    SideState `json:"player2"`
	TurnNumber int       `json:"turnNumber"`
}

// End carries a nil WinnerID when the battle ended without a winner.
type End struct {
	WinnerID  *string `json:"winnerId"`
	XPAwarded int     `json:"xpAwarded"`
	Reason    string  `json:"reason"`
	TurnCount int     `json:"turnCount"`
}

// RenderStart builds the battle-start payload. player1 is always the
// challenger.
func RenderStart(room *game.Room, catalog *data.Catalog) Start {
	goesFirst := room.First.UserID
	if room.GoesFirst == game.SideSecond {
		goesFirst = room.Second.UserID
	}
	return Start{
		RoomID:    room.ID,
		Player1:   snapshot(&room.First, catalog),
		Player2:   snapshot(&room.Second, catalog),
		GoesFirst: goesFirst,
	}
}

func snapshot(f *game.Fighter, catalog *data.Catalog) PlayerSnapshot {
	moves := make([]MoveInfo, 0, len(f.Moves))
	for _, id := range f.Moves {
		m, ok := catalog.Move(id)
		if !ok {
			continue
		}
		moves = append(moves, MoveInfo{
			ID:       m.ID,
			Name:     m.Name,
			Type:     m.Type,
			Category: m.Category,
			Power:    m.Power,
			Accuracy: m.Accuracy,
			PP:       f.PPLeft(id),
			MaxPP:    m.PP,
			Effect:   m.Effect,
			Priority: m.Priority,
		})
	}
	return PlayerSnapshot{
		UserID:     f.UserID,
		Username:   f.Username,
		CreatureID: f.CreatureID,
		SpeciesID:  f.SpeciesID,
		Name:       f.Name,
		Level:      f.Level,
		CurrentHP:  f.HP,
		MaxHP:      f.MaxHP,
		Status:     f.Status,
		Types:      f.Types,
		Moves:      moves,
	}
}

// RenderUpdate builds the battle-update payload after a resolved turn.
func RenderUpdate(room *game.Room, log []string) Update {
	if log == nil {
		log = []string{}
	}
	return Update{
		Log:        log,
		Player1:    sideState(&room.First),
		Player2:    sideState(&room.Second),
		TurnNumber: room.Turn,
	}
}

func sideState(f *game.Fighter) SideState {
	pp := make(map[string]int, len(f.Moves))
	for _, id := range f.Moves {
		pp[id] = f.PPLeft(id)
	}
	return SideState{CurrentHP: f.HP, MaxHP: f.MaxHP, Status: f.Status, PPLeft: pp}
}
