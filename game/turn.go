package game

import "fmt"

type TurnResult struct {
	Log    []string
	Over   bool
	Winner Side
	Turn   int
}

// ResolveTurn resolves one full turn on room in place. moveA belongs to the
// first side and moveB to the second; typesA and typesB are each side's
// creature types.
func ResolveTurn(room *Room, moveA, moveB Move, typesA, typesB []Type, rng Rand) TurnResult {
	room.First.usePP(moveA.ID)
	room.Second.usePP(moveB.ID)

	moves := map[Side]Move{SideFirst: moveA, SideSecond: moveB}
	types := map[Side][]Type{SideFirst: typesA, SideSecond: typesB}
	var log []string

	for _, side := range actingOrder(room, moveA, moveB) {
		actor := room.Fighter(side)
		target := room.Fighter(side.Opponent())
		move := moves[side]

		if actor.Fainted() {
			continue
		}
		if ParalysisCheck(actor, rng) {
			log = append(log, fmt.Sprintf("%s is paralyzed! It can't move!", actor.Name))
			continue
		}
		log = append(log, fmt.Sprintf("%s used %s!", actor.Name, move.Name))

		if move.Category == CategoryStatus {
			if line := ApplyStatusEffect(move.Effect, target, rng); line != "" {
				log = append(log, line)
			} else {
				log = append(log, "But it failed!")
			}
		} else {
			log = append(log, attack(actor, target, move, types[side.Opponent()], rng)...)
		}

		if room.First.Fainted() || room.Second.Fainted() {
			break
		}
	}

	for _, side := range []Side{SideFirst, SideSecond} {
		f := room.Fighter(side)
		if f.HP > 0 {
			if dmg := EndOfTurn(f); dmg > 0 {
				log = append(log, fmt.Sprintf("%s is hurt by its burn! (-%d HP)", f.Name, dmg))
			}
		}
	}

	res := TurnResult{}
	firstDown, secondDown := room.First.Fainted(), room.Second.Fainted()
	if firstDown {
		log = append(log, fmt.Sprintf("%s fainted!", room.First.Name))
	}
	if secondDown {
		log = append(log, fmt.Sprintf("%s fainted!", room.Second.Name))
	}
	switch {
	case firstDown && secondDown:
		res.Over, res.Winner = true, SideNone
	case firstDown:
		res.Over, res.Winner = true, SideSecond
	case secondDown:
		res.Over, res.Winner = true, SideFirst
	}

	room.Turn++
	room.Pending.Clear()
	res.Turn = room.Turn
	res.Log = log
	return res
}

func attack(actor, target *Fighter, move Move, targetTypes []Type, rng Rand) []string {
	res := Damage(actor, target, move, targetTypes, rng)
	if res.Missed {
		return []string{fmt.Sprintf("%s's attack missed!", actor.Name)}
	}
	var log []string
	switch {
	case res.Effectiveness == 0:
		return append(log, fmt.Sprintf("It doesn't affect %s...", target.Name))
	case res.Effectiveness > 1:
		log = append(log, "It's super effective!")
	case res.Effectiveness < 1:
		log = append(log, "It's not very effective...")
	}
	if res.Critical {
		log = append(log, "A critical hit!")
	}
	target.takeDamage(res.Damage)
	log = append(log, fmt.Sprintf("%s took %d damage.", target.Name, res.Damage))

	if move.Effect != EffectNone {
		if line := ApplyStatusEffect(move.Effect, target, rng); line != "" {
			log = append(log, line)
		}
	}
	return log
}

// actingOrder puts a priority move first, then the faster fighter. Speed
// ties go to the first side.
func actingOrder(room *Room, moveA, moveB Move) [2]Side {
	if moveA.Priority != moveB.Priority {
		if moveA.Priority {
			return [2]Side{SideFirst, SideSecond}
		}
		return [2]Side{SideSecond, SideFirst}
	}
	if room.First.Stats.Speed >= room.Second.Stats.Speed {
		return [2]Side{SideFirst, SideSecond}
	}
	return [2]Side{SideSecond, SideFirst}
}
