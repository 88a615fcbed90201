// Package components renders the HTML fragments streamed to the room page.
package components

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"coopsweep/internal/viewmodel"
)

// BoardFragment renders the counter and the board grid.
func BoardFragment(data viewmodel.BoardFragment) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		bw := &errWriter{w: w}
		bw.printf(`<div id="board-fragment" data-pass="%d">`, data.Pass)
		bw.printf(`<p class="counter">Mines remaining: <span id="remaining-mines">%d</span></p>`, data.Remaining)
		if len(data.Cells) == 0 {
			bw.printf(`<p class="empty">Waiting for a board.</p></div>`)
			return bw.err
		}
		bw.printf(`<ul class="board" style="grid-template-columns: repeat(%d, 16px)">`, data.Width)
		for _, c := range data.Cells {
			bw.printf(`<li class="%s" data-index="%d" title="%s">%s</li>`,
				templ.EscapeString(c.Class), c.Index, templ.EscapeString(c.Title), templ.EscapeString(c.Label))
		}
		bw.printf(`</ul></div>`)
		return bw.err
	})
}

// CursorsFragment renders the pointers of the other peers in the room.
func CursorsFragment(data viewmodel.CursorsFragment) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		bw := &errWriter{w: w}
		bw.printf(`<div id="cursors-fragment" data-peers="%d">`, data.Peers)
		for _, c := range data.Cursors {
			bw.printf(`<div class="cursor" data-peer="%s" style="left: %dpx; top: %dpx; --hue: %s">`,
				templ.EscapeString(c.Peer), c.X, c.Y, strconv.Itoa(c.Hue))
			bw.printf(`<span class="cursor-label">%s</span></div>`, templ.EscapeString(c.Label))
		}
		bw.printf(`</div>`)
		return bw.err
	})
}

// errWriter keeps the first write error so rendering code stays linear.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
