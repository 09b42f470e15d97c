package data

import (
	"strings"
	"testing"

	"showdown-arena/game"
)

func TestDefaultCatalogLoads(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	ember, ok := c.Move("Ember")
	if !ok {
		t.Fatal("ember not found")
	}
	if ember.ID != "ember" || ember.Name != "Ember" || ember.Effect != game.EffectBurn {
		t.Fatalf("ember = %+v", ember)
	}
	qa, ok := c.Move("quick-attack")
	if !ok || !qa.Priority || qa.Name != "Quick Attack" {
		t.Fatalf("quick-attack = %+v", qa)
	}
	bulba, ok := c.Species("bulbasaur")
	if !ok || len(bulba.Types) != 2 || bulba.Base.Speed != 45 {
		t.Fatalf("bulbasaur = %+v", bulba)
	}
}

func TestDecodeRejectsInvalidEntries(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown effect", `{"moves": {"x": {"type": "Ice", "category": "special", "power": 10, "accuracy": 100, "pp": 5, "effect": "freeze"}}}`},
		{"unknown category", `{"moves": {"x": {"type": "Ice", "category": "weird", "power": 10, "accuracy": 100, "pp": 5}}}`},
		{"zero power", `{"moves": {"x": {"type": "Ice", "category": "special", "power": 0, "accuracy": 100, "pp": 5}}}`},
		{"zero pp", `{"moves": {"x": {"type": "Ice", "category": "status", "accuracy": 100, "pp": 0}}}`},
		{"three types", `{"species": {"x": {"types": ["Ice", "Fire", "Water"], "baseStats": {"hp": 1}}}}`},
		{"bad json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(strings.NewReader(tt.doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestMovesResolvesInOrder(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	moves, err := c.Moves([]string{"tackle", "growl"})
	if err != nil {
		t.Fatalf("Moves: %v", err)
	}
	if moves[0].ID != "tackle" || moves[1].ID != "growl" {
		t.Fatalf("moves = %+v", moves)
	}
	if _, err := c.Moves([]string{"tackle", "hyper-beam"}); err == nil {
		t.Fatal("expected error for unknown move")
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("will-o-wisp"); got != "Will O Wisp" {
		t.Fatalf("DisplayName = %q", got)
	}
}
