package board

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText_Cascade(t *testing.T) {
	h := newHarness(t, Options{})
	h.layout(Config{Width: 5, Height: 5, NumMines: 1}, 12)
	require.NoError(t, h.eng.Reveal(0))

	g := goldie.New(t)
	g.Assert(t, "cascade_5x5", []byte(Text(h.settle())))
}

func TestText_FlagAndCount(t *testing.T) {
	h := newHarness(t, Options{})
	h.layout(Config{Width: 3, Height: 3, NumMines: 1}, 4)
	require.NoError(t, h.eng.Reveal(0))
	require.NoError(t, h.eng.ToggleFlag(4))

	g := goldie.New(t)
	g.Assert(t, "flag_3x3", []byte(Text(h.settle())))
}

func TestText_NoBoard(t *testing.T) {
	assert.Equal(t, "(no board)\nmines remaining: 0\n", Text(Snapshot{}))
}
