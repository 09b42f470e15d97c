package game

import (
	"strings"
	"testing"
	"time"
)

func newTestRoom(first, second Fighter) *Room {
	first.UserID, second.UserID = "u1", "u2"
	return NewRoom("room-1", first, second, time.Unix(0, 0))
}

func TestResolveTurnDecrementsPPAndAdvancesTurn(t *testing.T) {
	room := newTestRoom(newTestFighter(fireMon, 10, flamethrower, tackle), newTestFighter(grassMon, 10, tackle))
	room.Pending.Set(SideFirst, "flamethrower")
	room.Pending.Set(SideSecond, "tackle")

	res := ResolveTurn(room, flamethrower, tackle, room.First.Types, room.Second.Types, constRand(0.5))

	if got := room.First.PPLeft("flamethrower"); got != flamethrower.PP-1 {
		t.Fatalf("first pp = %d, want %d", got, flamethrower.PP-1)
	}
	if got := room.Second.PPLeft("tackle"); got != tackle.PP-1 {
		t.Fatalf("second pp = %d, want %d", got, tackle.PP-1)
	}
	if got := room.First.PPLeft("tackle"); got != tackle.PP {
		t.Fatalf("unused move pp changed to %d", got)
	}
	if room.Turn != 1 || res.Turn != 1 {
		t.Fatalf("turn = %d/%d, want 1", room.Turn, res.Turn)
	}
	if room.Pending.Count() != 0 {
		t.Fatalf("pending buffer not cleared: %+v", room.Pending)
	}
}

func TestResolveTurnPPFloorsAtZero(t *testing.T) {
	room := newTestRoom(newTestFighter(fireMon, 10, tackle), newTestFighter(grassMon, 10, tackle))
	room.First.PP["tackle"] = 0
	ResolveTurn(room, tackle, tackle, room.First.Types, room.Second.Types, constRand(0.5))
	if got := room.First.PPLeft("tackle"); got != 0 {
		t.Fatalf("pp = %d, want 0", got)
	}
}

func TestResolveTurnFaintDeclaresWinner(t *testing.T) {
	room := newTestRoom(newTestFighter(fireMon, 50, flamethrower), newTestFighter(grassMon, 5, tackle))
	res := ResolveTurn(room, flamethrower, tackle, room.First.Types, room.Second.Types, constRand(0.5))
	if !res.Over || res.Winner != SideFirst {
		t.Fatalf("result = %+v, want first side winning", res)
	}
	if room.Second.HP != 0 {
		t.Fatalf("loser hp = %d, want 0", room.Second.HP)
	}
	if !containsLine(res.Log, "Sprout fainted!") {
		t.Fatalf("missing faint line in %q", res.Log)
	}
	// The fainted side never acts.
	if containsLine(res.Log, "Sprout used Tackle!") {
		t.Fatalf("fainted fighter acted: %q", res.Log)
	}
}

func TestResolveTurnSecondaryEffectOnFaintingHit(t *testing.T) {
	fireFang := Move{ID: "fire-fang", Name: "Fire Fang", Type: TypeFire, Category: CategoryPhysical, Power: 65, Accuracy: 100, PP: 15, Effect: EffectBurn}
	room := newTestRoom(newTestFighter(fireMon, 50, fireFang), newTestFighter(grassMon, 5, tackle))
	res := ResolveTurn(room, fireFang, tackle, room.First.Types, room.Second.Types, constRand(0))
	if !res.Over || room.Second.HP != 0 {
		t.Fatalf("defender hp = %d, want fainted", room.Second.HP)
	}
	if room.Second.Status != StatusBurn || !containsLine(res.Log, "Sprout was burned!") {
		t.Fatalf("status = %q log = %q, want burn applied", room.Second.Status, res.Log)
	}
}

func TestResolveTurnDoubleFaintHasNoWinner(t *testing.T) {
	first := newTestFighter(fireMon, 10, tackle)
	second := newTestFighter(grassMon, 10, tackle)
	first.HP, second.HP = 1, 1
	first.Status = StatusBurn
	room := newTestRoom(first, second)

	res := ResolveTurn(room, tackle, tackle, room.First.Types, room.Second.Types, constRand(0.5))

	if !res.Over {
		t.Fatal("battle should be over")
	}
	if res.Winner != SideNone {
		t.Fatalf("winner = %v, want none", res.Winner)
	}
	if room.First.HP != 0 || room.Second.HP != 0 {
		t.Fatalf("hp = %d/%d, want 0/0", room.First.HP, room.Second.HP)
	}
}

func TestResolveTurnPriorityBeatsSpeed(t *testing.T) {
	slow := newTestFighter(groundMon, 10, quickAttack)
	fast := newTestFighter(fireMon, 10, tackle)
	room := newTestRoom(fast, slow)
	res := ResolveTurn(room, tackle, quickAttack, room.First.Types, room.Second.Types, constRand(0.5))
	if !strings.HasPrefix(res.Log[0], "Mole used Quick Attack!") {
		t.Fatalf("first log line = %q, want priority move first", res.Log[0])
	}
}

func TestResolveTurnSpeedTieFavorsFirst(t *testing.T) {
	a := newTestFighter(grassMon, 10, tackle)
	b := newTestFighter(grassMon, 10, tackle)
	b.Name = "Other"
	room := newTestRoom(a, b)
	res := ResolveTurn(room, tackle, tackle, room.First.Types, room.Second.Types, constRand(0.5))
	if res.Log[0] != "Sprout used Tackle!" {
		t.Fatalf("first log line = %q, want first side", res.Log[0])
	}
}

func TestResolveTurnParalysisSkip(t *testing.T) {
	a := newTestFighter(fireMon, 10, tackle)
	a.Status = StatusParalysis
	room := newTestRoom(a, newTestFighter(grassMon, 10, growl))
	// Paralysis check draws first for the faster first side.
	res := ResolveTurn(room, tackle, growl, room.First.Types, room.Second.Types, &seqRand{vals: []float64{0.1}, fallback: 0.5})
	if res.Log[0] != "Emberling is paralyzed! It can't move!" {
		t.Fatalf("log = %q, want paralysis skip", res.Log)
	}
	if room.First.PPLeft("tackle") != tackle.PP-1 {
		t.Fatal("pp must be spent even when the action is skipped")
	}
}

func TestResolveTurnStatusMoveTargetsOpponent(t *testing.T) {
	room := newTestRoom(newTestFighter(fireMon, 10, growl), newTestFighter(grassMon, 10, growl))
	ResolveTurn(room, growl, growl, room.First.Types, room.Second.Types, constRand(0.5))
	if room.First.AttackMod != 0.75 || room.Second.AttackMod != 0.75 {
		t.Fatalf("attack mods = %v/%v, want 0.75/0.75", room.First.AttackMod, room.Second.AttackMod)
	}
}

func TestResolveTurnEndOfTurnBurn(t *testing.T) {
	a := newTestFighter(fireMon, 50, growl)
	a.Status = StatusBurn
	room := newTestRoom(a, newTestFighter(grassMon, 50, growl))
	before := room.First.HP
	ResolveTurn(room, growl, growl, room.First.Types, room.Second.Types, constRand(0.5))
	want := before - room.First.MaxHP/16
	if room.First.HP != want {
		t.Fatalf("hp = %d, want %d", room.First.HP, want)
	}
}

func TestApplyStatusEffectIsSetOnce(t *testing.T) {
	f := newTestFighter(grassMon, 10)
	if line := ApplyStatusEffect(EffectBurn, &f, constRand(0)); line == "" || f.Status != StatusBurn {
		t.Fatalf("burn did not apply: status=%q", f.Status)
	}
	if line := ApplyStatusEffect(EffectParalyze, &f, constRand(0)); line != "" || f.Status != StatusBurn {
		t.Fatalf("paralysis overwrote burn: status=%q", f.Status)
	}
	g := newTestFighter(grassMon, 10)
	if line := ApplyStatusEffect(EffectBurn, &g, constRand(0.99)); line != "" || g.Status != StatusNone {
		t.Fatalf("burn applied on a failed roll: status=%q", g.Status)
	}
}

func TestStatDropsFloorAtQuarter(t *testing.T) {
	f := newTestFighter(grassMon, 10)
	f.Status = StatusParalysis
	for i := 0; i < 6; i++ {
		ApplyStatusEffect(EffectAttackDown, &f, constRand(0.99))
		ApplyStatusEffect(EffectAccuracyDown, &f, constRand(0.99))
	}
	if f.AttackMod != ModifierFloor || f.AccuracyMod != ModifierFloor {
		t.Fatalf("mods = %v/%v, want %v", f.AttackMod, f.AccuracyMod, ModifierFloor)
	}
}

func TestEffectTextRoundTrip(t *testing.T) {
	for _, e := range []Effect{EffectNone, EffectBurn, EffectParalyze, EffectAttackDown, EffectAccuracyDown} {
		text, err := e.MarshalText()
		if err != nil {
			t.Fatalf("marshal %v: %v", e, err)
		}
		var got Effect
		if err := got.UnmarshalText(text); err != nil || got != e {
			t.Fatalf("round trip %v -> %q -> %v (%v)", e, text, got, err)
		}
	}
	var e Effect
	if err := e.UnmarshalText([]byte("freeze")); err == nil {
		t.Fatal("expected error for unknown effect")
	}
}

func TestEndOfTurnMinimumOne(t *testing.T) {
	f := newTestFighter(grassMon, 1)
	f.MaxHP, f.HP = 10, 10
	f.Status = StatusBurn
	if dmg := EndOfTurn(&f); dmg != 1 || f.HP != 9 {
		t.Fatalf("burn dmg = %d hp = %d, want 1/9", dmg, f.HP)
	}
}

func TestPhaseTransitions(t *testing.T) {
	room := newTestRoom(newTestFighter(fireMon, 10), newTestFighter(grassMon, 10))
	if err := room.Transition(PhaseResolving); err != nil {
		t.Fatalf("awaiting -> resolving: %v", err)
	}
	if err := room.Transition(PhaseAwaitingActions); err != nil {
		t.Fatalf("resolving -> awaiting: %v", err)
	}
	if err := room.Transition(PhaseEnded); err != nil {
		t.Fatalf("awaiting -> ended: %v", err)
	}
	if err := room.Transition(PhaseResolving); err == nil {
		t.Fatal("ended -> resolving should fail")
	}
}

func TestApplyExperience(t *testing.T) {
	p := ApplyExperience(10, ExperienceForLevel(10), ExperienceForLevel(12)-ExperienceForLevel(10), 45, 20, 29)
	if p.Level != 12 || p.LevelsUp != 2 {
		t.Fatalf("level = %d (+%d), want 12 (+2)", p.Level, p.LevelsUp)
	}
	wantMax := DeriveStat(45, 12, true)
	if p.MaxHP != wantMax || p.HP != 20+wantMax-29 {
		t.Fatalf("hp = %d/%d, want %d/%d", p.HP, p.MaxHP, 20+wantMax-29, wantMax)
	}

	capped := ApplyExperience(99, ExperienceForLevel(99), 10_000_000, 45, 1, 1)
	if capped.Level != MaxLevel {
		t.Fatalf("level = %d, want cap %d", capped.Level, MaxLevel)
	}

	none := ApplyExperience(10, ExperienceForLevel(10), 5, 45, 20, 29)
	if none.Level != 10 || none.MaxHP != 29 || none.HP != 20 {
		t.Fatalf("unexpected progression without level-up: %+v", none)
	}
}

func TestExperienceReward(t *testing.T) {
	if got := ExperienceReward(10, constRand(0)); got != 150 {
		t.Fatalf("reward = %d, want 150", got)
	}
	if got := ExperienceReward(10, constRand(0.5)); got != 165 {
		t.Fatalf("reward = %d, want 165", got)
	}
}

func containsLine(log []string, line string) bool {
	for _, l := range log {
		if l == line {
			return true
		}
	}
	return false
}
