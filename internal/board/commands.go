package board

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfRange    = errors.New("cell out of range")
	ErrRevealed      = errors.New("cell already revealed")
	ErrFlagged       = errors.New("cell is flagged")
	ErrNoFlagsLeft   = errors.New("no flags left")
	ErrInvalidConfig = errors.New("invalid board configuration")
)

// Reveal marks cell i revealed. Revealing an already revealed cell is a no-op;
// a flagged cell must be unflagged first.
func (e *Engine) Reveal(i int) error {
	cfg := readConfig(e.options)
	if !cfg.Contains(i) {
		return fmt.Errorf("reveal %d: %w", i, ErrOutOfRange)
	}
	switch e.Visibility(i) {
	case Revealed:
		return nil
	case Flagged:
		return fmt.Errorf("reveal %d: %w", i, ErrFlagged)
	}
	return e.interactions.Set(cellKey(i), int(Revealed))
}

// RevealAt reveals the cell at column x, row y.
func (e *Engine) RevealAt(x, y int) error {
	i, ok := readConfig(e.options).Index(x, y)
	if !ok {
		return fmt.Errorf("reveal (%d,%d): %w", x, y, ErrOutOfRange)
	}
	return e.Reveal(i)
}

// ToggleFlag flags a hidden cell or unflags a flagged one. Revealed cells,
// including those a cascade has reached, cannot be flagged, and no flag may be
// placed once every mine is accounted for.
func (e *Engine) ToggleFlag(i int) error {
	cfg := readConfig(e.options)
	if !cfg.Contains(i) {
		return fmt.Errorf("flag %d: %w", i, ErrOutOfRange)
	}
	key := cellKey(i)
	switch e.Visibility(i) {
	case Flagged:
		e.interactions.Delete(key)
		return nil
	case Revealed:
		return fmt.Errorf("flag %d: %w", i, ErrRevealed)
	}

	snap := e.Snapshot()
	shown := snap.Config == cfg
	if shown && snap.Class(i).Revealed() {
		return fmt.Errorf("flag %d: %w", i, ErrRevealed)
	}
	if e.flagsPlaced(cfg, snap, shown) >= cfg.NumMines {
		return fmt.Errorf("flag %d: %w", i, ErrNoFlagsLeft)
	}
	return e.interactions.Set(key, int(Flagged))
}

// ToggleFlagAt toggles the flag on the cell at column x, row y.
func (e *Engine) ToggleFlagAt(x, y int) error {
	i, ok := readConfig(e.options).Index(x, y)
	if !ok {
		return fmt.Errorf("flag (%d,%d): %w", x, y, ErrOutOfRange)
	}
	return e.ToggleFlag(i)
}

// flagsPlaced counts stored flags on the board that still display as flags.
// It reads the store rather than the last pass so back-to-back edits inside one
// debounce interval are still bounded.
func (e *Engine) flagsPlaced(cfg Config, snap Snapshot, shown bool) int {
	n := 0
	for _, i := range e.readInteractions().flagged {
		if !cfg.Contains(i) {
			continue
		}
		if shown && snap.Class(i).Revealed() {
			continue
		}
		n++
	}
	return n
}

// PointerMoved publishes the local peer's cursor position.
func (e *Engine) PointerMoved(x, y int) error {
	return e.presence.Move(e.doc.Peer(), x, y)
}
