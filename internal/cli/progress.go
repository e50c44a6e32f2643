package cli

import (
	"fmt"
	"strings"
)

// ─── Progress Bar ───────────────────────────────────────────────────────────
// Renders tier progress as: [=========>..........]  45%

const barWidth = 30 // Characters for the progress bar

func renderBar(pct int) string {
	pct = max(0, min(100, pct))

	filled := pct * barWidth / 100
	empty := barWidth - filled

	var bar string
	switch {
	case filled == barWidth:
		bar = strings.Repeat("=", filled)
	case filled > 0:
		bar = strings.Repeat("=", filled-1) + ">" + strings.Repeat(".", empty)
	default:
		bar = strings.Repeat(".", barWidth)
	}
	return fmt.Sprintf("[%s] %3d%%", bar, pct)
}
