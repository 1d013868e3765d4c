package source

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ralph-pm/ralph/internal/future"
)

// objectCounterRe matches the "(12/345)" object counters in git
// sideband progress lines.
var objectCounterRe = regexp.MustCompile(`\((\d+)/(\d+)\)`)

// progressWriter adapts the transport's textual sideband progress
// into Notifier status and progress reports. Lines are terminated by
// either \n or \r (git rewrites counters in place with \r).
type progressWriter struct {
	n       future.Notifier
	partial strings.Builder
}

func (w *progressWriter) Write(p []byte) (int, error) {
	if err := w.n.Err(); err != nil {
		return 0, err
	}
	for _, b := range p {
		if b == '\n' || b == '\r' {
			w.flushLine()
			continue
		}
		w.partial.WriteByte(b)
	}
	return len(p), nil
}

func (w *progressWriter) flushLine() {
	line := strings.TrimSpace(w.partial.String())
	w.partial.Reset()
	if line == "" {
		return
	}

	if m := objectCounterRe.FindStringSubmatch(line); m != nil {
		current, _ := strconv.ParseUint(m[1], 10, 64)
		total, _ := strconv.ParseUint(m[2], 10, 64)
		_ = w.n.Progress(current, total)
	}
	_ = w.n.Status(line)
}
