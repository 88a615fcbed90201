package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGrid_RevealReturnsVisited(t *testing.T) {
	g := newGrid(Config{Width: 4, Height: 1, NumMines: 1})
	g.mines[3] = true
	// 0 and 1 are empty, 2 touches the mine.
	assert.Equal(t, 3, g.reveal(0))
	assert.Equal(t, []Class{ClassEmpty, ClassEmpty, ClassOne, ClassHidden}, g.classes)

	// A second cascade over the same cells starts with a fresh visited set.
	assert.Equal(t, 3, g.reveal(1))
	assert.Equal(t, 0, g.reveal(4))
}

func TestGrid_FlagSkipsVisible(t *testing.T) {
	g := newGrid(Config{Width: 2, Height: 1})
	g.reveal(0)
	g.flag(0)
	g.flag(1)
	assert.Equal(t, []Class{ClassEmpty, ClassEmpty}, g.classes)

	g.reset()
	g.flag(1)
	assert.Equal(t, []Class{ClassHidden, ClassFlagged}, g.classes)
}

func TestConfig_Neighbors(t *testing.T) {
	cfg := Config{Width: 3, Height: 3}
	var got []int
	cfg.Neighbors(0, func(j int) { got = append(got, j) })
	assert.Equal(t, []int{1, 3, 4}, got)

	got = nil
	cfg.Neighbors(4, func(j int) { got = append(got, j) })
	assert.Equal(t, []int{0, 1, 2, 3, 5, 6, 7, 8}, got)

	got = nil
	cfg.Neighbors(9, func(j int) { got = append(got, j) })
	assert.Empty(t, got)
}

func TestConfig_ClampMines(t *testing.T) {
	assert.Equal(t, 6, Config{Width: 2, Height: 3, NumMines: 9}.ClampMines().NumMines)
	assert.Equal(t, 0, Config{Width: 2, Height: 3, NumMines: -1}.ClampMines().NumMines)
	assert.Equal(t, 0, Config{NumMines: 4}.ClampMines().NumMines)
}

func TestClass_String(t *testing.T) {
	cases := map[Class]string{
		ClassHidden:      "hidden",
		ClassEmpty:       "revealed-empty",
		RevealedClass(3): "revealed-3",
		ClassEight:       "revealed-8",
		ClassMine:        "revealed-mine",
		ClassFlagged:     "flagged",
	}
	for c, want := range cases {
		assert.Equal(t, want, c.String())
	}
	assert.True(t, ClassMine.Revealed())
	assert.False(t, ClassFlagged.Revealed())
}

func TestParseKey(t *testing.T) {
	for key, want := range map[string]bool{"0": true, "42": true, "07": false, "-1": false, "x": false, " 1": false} {
		_, ok := parseKey(key)
		assert.Equal(t, want, ok, key)
	}
}

func TestRemaining(t *testing.T) {
	assert.Equal(t, 2, Remaining(3, CountFlagged([]Class{ClassFlagged, ClassHidden, ClassEmpty})))
	assert.Equal(t, -1, Remaining(1, 2))
}
