package viewmodel

// HomePage holds data for the create-room form.
type HomePage struct {
	Title  string
	Width  int
	Height int
	Mines  int
	MaxDim int
}

// RoomPage holds data for the main room page template.
type RoomPage struct {
	Title     string
	RoomID    string
	PeerID    string
	InviteURL string
	QRURL     string
	Width     int
	Height    int
	Mines     int
	MaxDim    int
	Board     BoardFragment
	Cursors   CursorsFragment
}

// Cell is one rendered board cell.
type Cell struct {
	Index int
	// Class is the CSS class list, e.g. "cell revealed three".
	Class string
	Label string
	Title string
}

// BoardFragment holds data for the board and the remaining-mines counter.
type BoardFragment struct {
	RoomID    string
	Width     int
	Height    int
	Cells     []Cell
	Remaining int
	Pass      uint64
}

// Cursor is a remote peer's pointer.
type Cursor struct {
	Peer  string
	Label string
	X     int
	Y     int
	Hue   int
}

// CursorsFragment holds data for the cursor overlay.
type CursorsFragment struct {
	Cursors []Cursor
	Peers   int
}
