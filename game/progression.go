package game

import "math"

const (
	MaxLevel    = 100
	XPPerLevel  = 15
	xpBonusSpan = 0.2
)

// ExperienceReward is the experience a winner earns for beating a creature
// at loserLevel: floor(loserLevel * 15 * (1 + roll*0.2)).
func ExperienceReward(loserLevel int, rng Rand) int {
	return int(math.Floor(float64(loserLevel) * XPPerLevel * (1 + rng.Float64()*xpBonusSpan)))
}

// ExperienceForLevel is the total experience needed to reach level.
func ExperienceForLevel(level int) int {
	return level * level * level
}

type Progress struct {
	Level      int
	Experience int
	HP         int
	MaxHP      int
	LevelsUp   int
}

// ApplyExperience accumulates gained experience, rolls level thresholds up
// to MaxLevel and recomputes max HP from baseHP on level-up. Current HP grows
// by the max HP gained.
func ApplyExperience(level, experience, gained, baseHP, hp, maxHP int) Progress {
	p := Progress{Level: level, Experience: experience + gained, HP: hp, MaxHP: maxHP}
	for p.Level < MaxLevel && p.Experience >= ExperienceForLevel(p.Level+1) {
		p.Level++
		p.LevelsUp++
	}
	if p.LevelsUp > 0 {
		newMax := DeriveStat(baseHP, p.Level, true)
		if newMax > p.MaxHP {
			p.HP += newMax - p.MaxHP
		}
		p.MaxHP = newMax
		if p.HP > p.MaxHP {
			p.HP = p.MaxHP
		}
	}
	return p
}
