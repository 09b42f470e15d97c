package client

import (
	"testing"

	"showdown-arena/game"
	"showdown-arena/parser"
)

func TestBestMove(t *testing.T) {
	moves := []parser.MoveInfo{
		{ID: "tackle", Type: game.TypeNormal, Category: game.CategoryPhysical, Power: 40, PP: 35},
		{ID: "ember", Type: game.TypeFire, Category: game.CategorySpecial, Power: 40, PP: 25},
		{ID: "thunder-shock", Type: game.TypeElectric, Category: game.CategorySpecial, Power: 40, PP: 30},
	}

	tests := []struct {
		name     string
		opponent []game.Type
		pp       map[string]int
		want     string
		ok       bool
	}{
		{"super effective wins", []game.Type{game.TypeGrass}, nil, "ember", true},
		{"immunity avoided", []game.Type{game.TypeGround}, map[string]int{"tackle": 0}, "ember", true},
		{"no pp left", []game.Type{game.TypeGrass}, map[string]int{"tackle": 0, "ember": 0, "thunder-shock": 0}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := BestMove(moves, tt.pp, tt.opponent)
			if ok != tt.ok || got.ID != tt.want {
				t.Fatalf("BestMove = %q, %v; want %q, %v", got.ID, ok, tt.want, tt.ok)
			}
		})
	}
}
