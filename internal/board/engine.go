// Package board derives a minesweeper board from four replicated maps and
// keeps it up to date as local and remote peers write to them.
//
// Every relevant change notification re-arms a debounce timer. When the timer
// fires the Engine throws away all derived state and rebuilds it from the
// current map contents, so missing, duplicated or reordered notifications
// only ever delay the rendering, never corrupt it.
package board

import (
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"coopsweep/pkg/realtime"
	"coopsweep/pkg/replica"
)

// Rand is the source of mine positions.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Options configures an Engine. The zero value is usable.
type Options struct {
	// Delay is the debounce interval; zero means realtime.DefaultDebounce.
	Delay time.Duration
	// Clock drives the debounce timer; nil means realtime.SystemClock.
	Clock realtime.Clock
	// Rand places mines; nil means the math/rand/v2 global source.
	Rand Rand
	// Sink receives every pass and cursor change; nil means Discard.
	Sink Sink
	// Members feeds peer joins and leaves to the presence tracker.
	Members *replica.Membership
	// CursorRate limits cursor writes per peer; zero means unlimited.
	CursorRate  rate.Limit
	CursorBurst int
	Logf        func(format string, args ...any)
}

// Stats counts what the Engine has seen since it was created.
type Stats struct {
	Notifications uint64
	Deletions     uint64
	Passes        uint64
	Rebuilds      uint64
}

// Engine owns the derived state of one replica's board.
type Engine struct {
	doc          *replica.Doc
	mines        *replica.Map
	interactions *replica.Map
	options      *replica.Map
	cursors      *replica.Map

	sched    *realtime.Scheduler
	sink     Sink
	presence *Presence
	logf     func(format string, args ...any)

	rngMu sync.Mutex
	rng   Rand

	// passMu serializes passes so snapshots reach the sink in the order they were read.
	passMu sync.Mutex

	mu      sync.Mutex
	grid    *grid
	last    Snapshot
	stats   Stats
	closed  bool
	cancels []func()
}

// New attaches an Engine to doc and schedules the first pass.
func New(doc *replica.Doc, opts Options) *Engine {
	e := &Engine{
		doc:          doc,
		mines:        doc.Map(MinesMap),
		interactions: doc.Map(InteractionsMap),
		options:      doc.Map(OptionsMap),
		cursors:      doc.Map(CursorsMap),
		sink:         opts.Sink,
		rng:          opts.Rand,
		logf:         opts.Logf,
		grid:         newGrid(Config{}),
	}
	if e.sink == nil {
		e.sink = Discard{}
	}
	if e.rng == nil {
		e.rng = globalRand{}
	}
	if e.logf == nil {
		e.logf = func(string, ...any) {}
	}
	e.sched = realtime.NewScheduler(opts.Delay, opts.Clock, e.recompute)
	e.presence = newPresence(e.cursors, doc.Peer(), e.sink, opts.CursorRate, opts.CursorBurst)

	e.cancels = append(e.cancels,
		e.options.Observe(e.notify),
		e.mines.Observe(e.notify),
		e.interactions.Observe(e.notify),
		e.cursors.Observe(e.presence.onCursors),
	)
	if opts.Members != nil {
		e.cancels = append(e.cancels, opts.Members.Observe(e.presence.PeerJoined, e.presence.PeerLeft))
		for _, id := range opts.Members.Peers() {
			e.presence.PeerJoined(id)
		}
	}
	e.schedule()
	return e
}

// notify counts a batch and re-arms the pass. A deletion is as significant as
// a write: it is how a cell goes back to hidden or how a new game clears the board.
func (e *Engine) notify(ev replica.Event) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.stats.Notifications++
	for _, c := range ev.Changes {
		if c.Deleted {
			e.stats.Deletions++
		}
	}
	e.mu.Unlock()
	e.schedule()
}

func (e *Engine) schedule() {
	if _, err := e.sched.Schedule(); err != nil {
		e.logf("board: schedule: %v", err)
	}
}

// interactionState is the stored state of the board read in one sweep.
type interactionState struct {
	revealed []int
	flagged  []int
}

func (e *Engine) readInteractions() interactionState {
	var st interactionState
	for _, key := range e.interactions.Keys() {
		i, ok := parseKey(key)
		if !ok {
			continue
		}
		v, ok := e.interactions.GetInt(key)
		if !ok {
			continue
		}
		switch Visibility(v) {
		case Revealed:
			st.revealed = append(st.revealed, i)
		case Flagged:
			st.flagged = append(st.flagged, i)
		}
	}
	return st
}

func (e *Engine) readMines() []int {
	var out []int
	for _, key := range e.mines.Keys() {
		i, ok := parseKey(key)
		if ok && e.mines.GetBool(key) {
			out = append(out, i)
		}
	}
	return out
}

// recompute is one full pass: reset every cell, then replay the stored
// reveals and flags against the current mine layout.
func (e *Engine) recompute() {
	e.passMu.Lock()
	defer e.passMu.Unlock()

	cfg := readConfig(e.options)
	mines := e.readMines()
	st := e.readInteractions()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	if cfg.Width != e.grid.cfg.Width || cfg.Height != e.grid.cfg.Height {
		e.stats.Rebuilds++
		e.logf("board: rebuild %dx%d", cfg.Width, cfg.Height)
	}
	g := e.grid
	g.resize(cfg)
	g.reset()
	for _, i := range mines {
		if cfg.Contains(i) {
			g.mines[i] = true
		}
	}
	for _, i := range st.revealed {
		g.reveal(i)
	}
	for _, i := range st.flagged {
		g.flag(i)
	}
	e.stats.Passes++
	snap := g.snapshot(e.stats.Passes)
	e.last = snap
	sink := e.sink
	e.mu.Unlock()

	sink.DrawBoard(snap)
}

// Snapshot returns the result of the latest pass.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Config returns the configuration currently stored in the options map.
func (e *Engine) Config() Config {
	return readConfig(e.options)
}

// AdjacentMines counts the mines around cell i from the stored layout.
func (e *Engine) AdjacentMines(i int) (int, error) {
	cfg := readConfig(e.options)
	if !cfg.Contains(i) {
		return 0, ErrOutOfRange
	}
	count := 0
	cfg.Neighbors(i, func(j int) {
		if e.mines.GetBool(cellKey(j)) {
			count++
		}
	})
	return count, nil
}

// Visibility returns the stored state of cell i.
func (e *Engine) Visibility(i int) Visibility {
	v, ok := e.interactions.GetInt(cellKey(i))
	if !ok {
		return Hidden
	}
	switch Visibility(v) {
	case Revealed, Flagged:
		return Visibility(v)
	}
	return Hidden
}

// Stats returns the counters since New.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Flush runs a pending pass immediately and reports whether one was pending.
func (e *Engine) Flush() bool {
	return e.sched.Flush()
}

// Pending reports whether a pass is armed.
func (e *Engine) Pending() bool {
	return e.sched.IsPending()
}

// Presence returns the cursor tracker.
func (e *Engine) Presence() *Presence {
	return e.presence
}

// Peer returns the local peer ID.
func (e *Engine) Peer() string {
	return e.doc.Peer()
}

// Close detaches the Engine from its document and cancels any pending pass.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	cancels := e.cancels
	e.cancels = nil
	e.mu.Unlock()

	e.sched.Stop()
	for _, cancel := range cancels {
		cancel()
	}
}

func (e *Engine) intN(n int) int {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.IntN(n)
}
