package game

// DeriveStat computes a stat from its base value at level:
// floor(2*base*level/100) plus level+10 for HP or 5 for every other stat.
func DeriveStat(base, level int, isHP bool) int {
	bonus := 5
	if isHP {
		bonus = level + 10
	}
	// Non-negative operands, so integer division is floor.
	return 2*base*level/100 + bonus
}
