package board

// Snapshot is the result of one pass: every cell's class plus the counter.
type Snapshot struct {
	Config    Config
	Cells     []Class
	Flagged   int
	Remaining int
	// Pass numbers the recomputation that produced this snapshot; 0 means none has run.
	Pass uint64
}

// Class returns the class of cell i, or ClassHidden outside the board.
func (s Snapshot) Class(i int) Class {
	if i < 0 || i >= len(s.Cells) {
		return ClassHidden
	}
	return s.Cells[i]
}

// At returns the class of the cell at column x, row y.
func (s Snapshot) At(x, y int) Class {
	i, ok := s.Config.Index(x, y)
	if !ok {
		return ClassHidden
	}
	return s.Class(i)
}

// RevealedCount returns how many cells are shown revealed.
func (s Snapshot) RevealedCount() int {
	n := 0
	for _, c := range s.Cells {
		if c.Revealed() {
			n++
		}
	}
	return n
}

// Sink receives rendered state. Calls happen outside the Engine's lock and
// may come from any goroutine that mutates the document or fires a timer.
type Sink interface {
	DrawBoard(s Snapshot)
	DrawCursor(peer string, c Cursor)
	EraseCursor(peer string)
}

// Discard is a Sink that ignores everything.
type Discard struct{}

func (Discard) DrawBoard(Snapshot)        {}
func (Discard) DrawCursor(string, Cursor) {}
func (Discard) EraseCursor(string)        {}

// SinkFuncs adapts plain functions to Sink; nil fields are skipped.
type SinkFuncs struct {
	Board  func(s Snapshot)
	Cursor func(peer string, c Cursor)
	Erase  func(peer string)
}

func (f SinkFuncs) DrawBoard(s Snapshot) {
	if f.Board != nil {
		f.Board(s)
	}
}

func (f SinkFuncs) DrawCursor(peer string, c Cursor) {
	if f.Cursor != nil {
		f.Cursor(peer, c)
	}
}

func (f SinkFuncs) EraseCursor(peer string) {
	if f.Erase != nil {
		f.Erase(peer)
	}
}
