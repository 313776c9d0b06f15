// Package ctl implements the satctl commands. Each command queries the
// monitor of a running satcheck and prints the answer as terminal text, or
// as the raw payload with --json.
package ctl

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	blue   = "\033[34m"
	cyan   = "\033[36m"
)

// colorOn is decided once per process: stdout must be a terminal and
// NO_COLOR unset.
var colorOn = sync.OnceValue(func() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	fi, err := os.Stdout.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
})

var stateColors = map[string]string{
	"BOOTING":    dim,
	"CATALOG":    yellow,
	"FETCHING":   yellow,
	"EVALUATING": blue,
	"REPORTING":  cyan,
	"DONE":       green,
	"FAILED":     red,
}

// stateColor returns the color of a run state, or "" for unknown states.
func stateColor(state string) string {
	return stateColors[state]
}

// colorize wraps text in color. An empty color or a non-terminal stdout
// leaves the text as is.
func colorize(color, text string) string {
	if color == "" || !colorOn() {
		return text
	}
	return color + text + reset
}

func header(title string) string {
	return colorize(bold, title)
}

// rule is the dimmed divider printed under section headers.
func rule(width int) string {
	return colorize(dim, "  "+strings.Repeat("─", width))
}

func padRight(s string, width int) string {
	return fmt.Sprintf("%-*s", width, s)
}

// nearMissDeg is the separation under which a close approach is shown in
// red rather than yellow.
const nearMissDeg = 1.0

// formatSeparation renders an angular separation in degrees, colored by
// how close the satellite came to the pointing.
func formatSeparation(deg float64) string {
	c := yellow
	if deg < nearMissDeg {
		c = red
	}
	return colorize(c, fmt.Sprintf("%6.3f°", deg))
}

// formatDuration renders d as "2h 14m 8s", "3m 2s" or "45s".
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	s := (d - m*time.Minute) / time.Second
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// formatBytes renders b in binary units up to GB.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit && exp < 2; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMG"[exp])
}

// meter draws frac (clamped to [0, 1]) as a bar of width cells.
func meter(frac float64, width int) string {
	frac = min(max(frac, 0), 1)
	filled := int(frac * float64(width))
	return colorize(green, strings.Repeat("=", filled)) + strings.Repeat(" ", width-filled)
}

// countLine renders "[=====     ] done/total" for a run phase.
func countLine(done, total int) string {
	frac := 0.0
	if total > 0 {
		frac = float64(done) / float64(total)
	}
	return fmt.Sprintf("[%s] %d/%d", meter(frac, 20), done, total)
}
