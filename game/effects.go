package game

import (
	"fmt"
	"math"
)

// Rand is the random source consumed by the resolver. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// Effect is the closed set of secondary effects a move can carry.
type Effect uint8

const (
	EffectNone Effect = iota
	EffectBurn
	EffectParalyze
	EffectAttackDown
	EffectAccuracyDown
	effectCount
)

const (
	BurnChance      = 0.3
	ParalysisChance = 0.3
	ParalysisSkip   = 0.25
	StatDropStep    = 0.25
	ModifierFloor   = 0.25
)

var effectNames = [effectCount]string{
	EffectNone:         "",
	EffectBurn:         "burn",
	EffectParalyze:     "paralyze",
	EffectAttackDown:   "attack_down",
	EffectAccuracyDown: "accuracy_down",
}

func (e Effect) String() string {
	if e >= effectCount {
		return fmt.Sprintf("effect(%d)", uint8(e))
	}
	return effectNames[e]
}

func (e Effect) MarshalText() ([]byte, error) {
	if e >= effectCount {
		return nil, fmt.Errorf("unknown effect %d", uint8(e))
	}
	return []byte(effectNames[e]), nil
}

func (e *Effect) UnmarshalText(text []byte) error {
	for i, name := range effectNames {
		if name == string(text) {
			*e = Effect(i)
			return nil
		}
	}
	return fmt.Errorf("unknown effect %q", text)
}

// effectAppliers holds one application function per variant. Each returns
// the log line describing what happened, or "" when nothing took hold.
var effectAppliers = [effectCount]func(target *Fighter, rng Rand) string{
	EffectNone:         func(*Fighter, Rand) string { return "" },
	EffectBurn:         applyBurn,
	EffectParalyze:     applyParalysis,
	EffectAttackDown:   applyAttackDown,
	EffectAccuracyDown: applyAccuracyDown,
}

// ApplyStatusEffect applies effect to target and returns the resulting log
// line, empty when the effect did not take hold.
func ApplyStatusEffect(effect Effect, target *Fighter, rng Rand) string {
	if effect >= effectCount {
		return ""
	}
	return effectAppliers[effect](target, rng)
}

func applyBurn(target *Fighter, rng Rand) string {
	if target.Status != StatusNone {
		return ""
	}
	if rng.Float64() >= BurnChance {
		return ""
	}
	target.Status = StatusBurn
	return fmt.Sprintf("%s was burned!", target.Name)
}

func applyParalysis(target *Fighter, rng Rand) string {
	if target.Status != StatusNone {
		return ""
	}
	if rng.Float64() >= ParalysisChance {
		return ""
	}
	target.Status = StatusParalysis
	return fmt.Sprintf("%s is paralyzed! It may be unable to move!", target.Name)
}

func applyAttackDown(target *Fighter, _ Rand) string {
	target.AttackMod = lowerModifier(target.AttackMod)
	return fmt.Sprintf("%s's attack fell!", target.Name)
}

func applyAccuracyDown(target *Fighter, _ Rand) string {
	target.AccuracyMod = lowerModifier(target.AccuracyMod)
	return fmt.Sprintf("%s's accuracy fell!", target.Name)
}

func lowerModifier(current float64) float64 {
	return math.Max(ModifierFloor, current-StatDropStep)
}

// EndOfTurn applies residual burn damage and returns the damage dealt.
func EndOfTurn(f *Fighter) int {
	if f.Status != StatusBurn || f.Fainted() {
		return 0
	}
	dmg := f.MaxHP / 16
	if dmg < 1 {
		dmg = 1
	}
	f.takeDamage(dmg)
	return dmg
}

// ParalysisCheck reports whether a paralyzed fighter loses its action this
// turn. Fighters without paralysis never consume a random draw.
func ParalysisCheck(f *Fighter, rng Rand) bool {
	if f.Status != StatusParalysis {
		return false
	}
	return rng.Float64() < ParalysisSkip
}
