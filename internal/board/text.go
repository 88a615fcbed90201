package board

import (
	"fmt"
	"strings"
)

// Text renders a snapshot as one line per row followed by the counter line.
func Text(s Snapshot) string {
	var b strings.Builder
	cfg := s.Config
	if cfg.Cells() == 0 || len(s.Cells) != cfg.Cells() {
		b.WriteString("(no board)\n")
	} else {
		for y := 0; y < cfg.Height; y++ {
			for x := 0; x < cfg.Width; x++ {
				b.WriteRune(s.At(x, y).Rune())
			}
			b.WriteByte('\n')
		}
	}
	fmt.Fprintf(&b, "mines remaining: %d\n", s.Remaining)
	return b.String()
}
