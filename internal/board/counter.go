package board

// CountFlagged returns how many cells are shown flagged.
func CountFlagged(cells []Class) int {
	n := 0
	for _, c := range cells {
		if c == ClassFlagged {
			n++
		}
	}
	return n
}

// Remaining is the remaining-mines display value. It goes negative when peers
// place more flags than there are mines; only local edits are refused at the limit.
func Remaining(numMines, flagged int) int {
	return numMines - flagged
}
