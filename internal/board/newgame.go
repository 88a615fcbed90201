package board

import (
	"fmt"

	"coopsweep/pkg/replica"
)

// NewGame starts a fresh board. The three option keys are written one at a
// time, so peers may briefly see a torn configuration; every pass re-derives
// the board and settles once the writes have arrived. numMines is clamped to
// the number of cells.
func (e *Engine) NewGame(width, height, numMines int) (Config, error) {
	cfg := Config{Width: width, Height: height, NumMines: numMines}
	if !cfg.Valid() {
		return Config{}, fmt.Errorf("new game %dx%d: %w", width, height, ErrInvalidConfig)
	}
	cfg = cfg.ClampMines()

	for _, kv := range []struct {
		key string
		val int
	}{
		{WidthKey, cfg.Width},
		{HeightKey, cfg.Height},
		{MinesKey, cfg.NumMines},
	} {
		if err := e.options.Set(kv.key, kv.val); err != nil {
			return Config{}, fmt.Errorf("new game: write %s: %w", kv.key, err)
		}
	}

	// Every interaction goes, including keys left over from a larger board.
	stale := e.interactions.Keys()
	err := e.doc.Transact(func(tx *replica.Tx) error {
		for _, key := range stale {
			if err := tx.Delete(e.interactions, key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Config{}, fmt.Errorf("new game: clear board: %w", err)
	}

	n := cfg.Cells()
	layout := e.placeMines(n, cfg.NumMines)
	oldMines := e.mines.Keys()
	err = e.doc.Transact(func(tx *replica.Tx) error {
		for _, key := range oldMines {
			if i, ok := parseKey(key); ok && i < n {
				continue
			}
			if err := tx.Delete(e.mines, key); err != nil {
				return err
			}
		}
		for i, mine := range layout {
			if err := tx.Set(e.mines, cellKey(i), mine); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Config{}, fmt.Errorf("new game: place mines: %w", err)
	}
	e.logf("board: new game %dx%d with %d mines", cfg.Width, cfg.Height, cfg.NumMines)
	return cfg, nil
}

// placeMines picks count distinct cells out of n by drawing uniformly and
// redrawing cells already taken. Draws grow sharply as count approaches n.
func (e *Engine) placeMines(n, count int) []bool {
	layout := make([]bool, n)
	for placed := 0; placed < count; {
		i := e.intN(n)
		if layout[i] {
			continue
		}
		layout[i] = true
		placed++
	}
	return layout
}
