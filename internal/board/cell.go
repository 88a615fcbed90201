package board

import "strconv"

// Names of the shared maps. They match the document layout used by the
// browser clients so every peer reads the same keys.
const (
	MinesMap        = "boardMines"
	InteractionsMap = "boardInteractions"
	OptionsMap      = "boardOptions"
	CursorsMap      = "cursorPositions"
)

// Keys of the options map.
const (
	WidthKey  = "boardWidth"
	HeightKey = "boardHeight"
	MinesKey  = "numMines"
)

// Visibility is the stored state of a cell. Hidden is never written: a cell
// without an interaction entry is hidden.
type Visibility int

const (
	Hidden Visibility = iota
	Revealed
	Flagged
)

func (v Visibility) String() string {
	switch v {
	case Hidden:
		return "hidden"
	case Revealed:
		return "revealed"
	case Flagged:
		return "flagged"
	default:
		return "visibility(" + strconv.Itoa(int(v)) + ")"
	}
}

// Class is what a cell looks like after a pass.
type Class uint8

const (
	ClassHidden Class = iota
	ClassEmpty
	ClassOne
	ClassTwo
	ClassThree
	ClassFour
	ClassFive
	ClassSix
	ClassSeven
	ClassEight
	ClassMine
	ClassFlagged
)

// RevealedClass returns the class of a revealed non-mine cell with n adjacent mines.
func RevealedClass(n int) Class {
	if n < 0 || n > 8 {
		n = 0
	}
	return ClassEmpty + Class(n)
}

// Revealed reports whether the class shows a revealed cell.
func (c Class) Revealed() bool {
	return c >= ClassEmpty && c <= ClassMine
}

// Count returns the adjacent-mine count shown by a revealed non-mine cell.
func (c Class) Count() (int, bool) {
	if c < ClassEmpty || c > ClassEight {
		return 0, false
	}
	return int(c - ClassEmpty), true
}

func (c Class) String() string {
	switch {
	case c == ClassHidden:
		return "hidden"
	case c == ClassEmpty:
		return "revealed-empty"
	case c == ClassMine:
		return "revealed-mine"
	case c == ClassFlagged:
		return "flagged"
	}
	if n, ok := c.Count(); ok {
		return "revealed-" + strconv.Itoa(n)
	}
	return "class(" + strconv.Itoa(int(c)) + ")"
}

// Rune is the single-character form used by the text renderer.
func (c Class) Rune() rune {
	switch {
	case c == ClassHidden:
		return '#'
	case c == ClassEmpty:
		return '.'
	case c == ClassMine:
		return '*'
	case c == ClassFlagged:
		return 'F'
	}
	if n, ok := c.Count(); ok {
		return rune('0' + n)
	}
	return '?'
}

// cellKey is the map key of cell i: its decimal index.
func cellKey(i int) string {
	return strconv.Itoa(i)
}

// parseKey accepts only canonical decimal indexes, so "07" and "-1" are ignored.
func parseKey(key string) (int, bool) {
	i, err := strconv.Atoi(key)
	if err != nil || i < 0 || strconv.Itoa(i) != key {
		return 0, false
	}
	return i, true
}
