package board

// grid is the derived render state of one board. It is owned by an Engine,
// touched only under the Engine's lock, and rebuilt from the shared maps on
// every pass.
type grid struct {
	cfg     Config
	mines   []bool
	classes []Class
	visible []bool
}

func newGrid(cfg Config) *grid {
	g := &grid{}
	g.resize(cfg)
	return g
}

// resize adopts cfg, reallocating per-cell state when the cell count changes.
func (g *grid) resize(cfg Config) {
	n := cfg.Cells()
	if n != len(g.classes) {
		g.mines = make([]bool, n)
		g.classes = make([]Class, n)
		g.visible = make([]bool, n)
	}
	g.cfg = cfg
}

// reset returns every cell to hidden and forgets the mine layout.
func (g *grid) reset() {
	for i := range g.classes {
		g.classes[i] = ClassHidden
		g.visible[i] = false
		g.mines[i] = false
	}
}

// adjacentMines counts mines in the clipped 8-neighborhood of i.
func (g *grid) adjacentMines(i int) int {
	count := 0
	g.cfg.Neighbors(i, func(j int) {
		if g.mines[j] {
			count++
		}
	})
	return count
}

// reveal marks start revealed and floods outward through zero-count cells.
// The visited set belongs to this call alone, so the result does not depend
// on what other cascades in the same pass have already touched. It returns
// the number of cells visited.
func (g *grid) reveal(start int) int {
	if !g.cfg.Contains(start) {
		return 0
	}
	visited := make([]bool, len(g.classes))
	visited[start] = true
	stack := []int{start}
	n := 0
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n++

		g.visible[i] = true
		if g.mines[i] {
			g.classes[i] = ClassMine
			continue
		}
		count := g.adjacentMines(i)
		g.classes[i] = RevealedClass(count)
		if count != 0 {
			continue
		}
		g.cfg.Neighbors(i, func(j int) {
			if !visited[j] {
				visited[j] = true
				stack = append(stack, j)
			}
		})
	}
	return n
}

// flag shows i as flagged unless a cascade has already revealed it.
func (g *grid) flag(i int) {
	if !g.cfg.Contains(i) || g.visible[i] {
		return
	}
	g.classes[i] = ClassFlagged
}

func (g *grid) snapshot(pass uint64) Snapshot {
	cells := make([]Class, len(g.classes))
	copy(cells, g.classes)
	flagged := CountFlagged(cells)
	return Snapshot{
		Config:    g.cfg,
		Cells:     cells,
		Flagged:   flagged,
		Remaining: Remaining(g.cfg.NumMines, flagged),
		Pass:      pass,
	}
}
