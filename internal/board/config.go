package board

import "coopsweep/pkg/replica"

// MaxCells bounds the board size any peer may ask for.
const MaxCells = 1 << 16

// Config is the active board configuration.
type Config struct {
	Width    int
	Height   int
	NumMines int
}

// Cells returns the number of cells, or 0 for an unusable configuration.
func (c Config) Cells() int {
	if !c.Valid() {
		return 0
	}
	return c.Width * c.Height
}

// Valid reports whether the dimensions describe a usable board.
func (c Config) Valid() bool {
	return c.Width > 0 && c.Height > 0 && c.Width <= MaxCells && c.Height <= MaxCells && c.Width*c.Height <= MaxCells
}

// ClampMines limits NumMines to [0, Cells()].
func (c Config) ClampMines() Config {
	if c.NumMines < 0 {
		c.NumMines = 0
	}
	if n := c.Cells(); c.NumMines > n {
		c.NumMines = n
	}
	return c
}

// Contains reports whether i indexes a cell of this board.
func (c Config) Contains(i int) bool {
	return i >= 0 && i < c.Cells()
}

// Coords returns the column and row of cell i.
func (c Config) Coords(i int) (x, y int) {
	return i % c.Width, i / c.Width
}

// Index returns the index of the cell at column x, row y.
func (c Config) Index(x, y int) (int, bool) {
	if !c.Valid() || x < 0 || y < 0 || x >= c.Width || y >= c.Height {
		return 0, false
	}
	return y*c.Width + x, true
}

// Neighbors calls fn for every cell in the 8-neighborhood of i, clipped at the
// board edges so rows and columns never wrap.
func (c Config) Neighbors(i int, fn func(j int)) {
	if !c.Contains(i) {
		return
	}
	x, y := c.Coords(i)
	for ny := y - 1; ny <= y+1; ny++ {
		if ny < 0 || ny >= c.Height {
			continue
		}
		for nx := x - 1; nx <= x+1; nx++ {
			if nx < 0 || nx >= c.Width || (nx == x && ny == y) {
				continue
			}
			fn(ny*c.Width + nx)
		}
	}
}

// readConfig derives the configuration from the options map. Missing or
// unreadable keys read as zero, which yields an empty board until the
// writers of a new game have settled.
func readConfig(options *replica.Map) Config {
	w, _ := options.GetInt(WidthKey)
	h, _ := options.GetInt(HeightKey)
	n, _ := options.GetInt(MinesKey)
	return Config{Width: w, Height: h, NumMines: n}
}
