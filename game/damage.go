package game

import "math"

const (
	CriticalChance     = 0.0625
	CriticalMultiplier = 1.5
	minSpread          = 0.85
)

type DamageResult struct {
	Damage        int
	Missed        bool
	Critical      bool
	Effectiveness float64
}

// Damage computes the damage attacker deals to defender with move.
// Random draws are consumed in a fixed order: accuracy, critical, spread.
// Status moves consume no draws.
func Damage(attacker, defender *Fighter, move Move, defenderTypes []Type, rng Rand) DamageResult {
	if move.Category == CategoryStatus {
		return DamageResult{Effectiveness: 1}
	}
	eff := TypeMultiplier(move.Type, defenderTypes...)

	hitChance := float64(move.Accuracy) * attacker.AccuracyMod * defender.AccuracyMod
	if rng.Float64()*100 >= hitChance {
		return DamageResult{Missed: true, Effectiveness: eff}
	}

	physical := move.Category == CategoryPhysical
	var atk, def float64
	if physical {
		atk = float64(attacker.Stats.Attack) * attacker.AttackMod
		def = float64(defender.Stats.Defense)
	} else {
		atk = float64(attacker.Stats.SpAttack)
		def = float64(defender.Stats.SpDefense)
	}
	if def < 1 {
		def = 1
	}

	crit := rng.Float64() < CriticalChance
	critMult := 1.0
	if crit {
		critMult = CriticalMultiplier
	}
	spread := minSpread + rng.Float64()*(1-minSpread)

	base := ((2*float64(attacker.Level)/5+2)*float64(move.Power)*atk/def)/50 + 2
	dmg := int(math.Floor(base * eff * critMult * spread))
	if eff == 0 {
		return DamageResult{Effectiveness: eff}
	}
	if dmg < 1 {
		dmg = 1
	}
	if physical && attacker.Status == StatusBurn {
		dmg /= 2
		if dmg < 1 {
			dmg = 1
		}
	}
	return DamageResult{Damage: dmg, Critical: crit, Effectiveness: eff}
}
