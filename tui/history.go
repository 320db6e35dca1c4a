package tui

import "strings"

// recall keeps the commands typed at the prompt, newest last. Browsing it
// stashes the line being typed, and stepping past the newest entry gives
// that draft back.
type recall struct {
	lines []string
	limit int
	pos   int // len(lines) while not browsing
	draft string
}

func newRecall(limit int) *recall {
	return &recall{lines: make([]string, 0, limit), limit: limit}
}

// add records a submitted line and stops browsing. Repeats of the previous
// line and the "again" shorthands are not kept.
func (r *recall) add(line string) {
	defer r.reset()
	if isRepeat(line) {
		return
	}
	if n := len(r.lines); n > 0 && r.lines[n-1] == line {
		return
	}
	r.lines = append(r.lines, line)
	if len(r.lines) > r.limit {
		r.lines = r.lines[len(r.lines)-r.limit:]
	}
}

func (r *recall) reset() {
	r.pos = len(r.lines)
	r.draft = ""
}

// older steps back one entry, stopping at the oldest. current is the input
// line, stashed when browsing starts.
func (r *recall) older(current string) (string, bool) {
	if len(r.lines) == 0 {
		return "", false
	}
	if r.pos > 0 {
		if r.pos == len(r.lines) {
			r.draft = current
		}
		r.pos--
	}
	return r.lines[r.pos], true
}

// newer steps forward one entry. Past the newest it returns the draft;
// when not browsing there is nothing to return.
func (r *recall) newer() (string, bool) {
	if r.pos >= len(r.lines) {
		return "", false
	}
	r.pos++
	if r.pos == len(r.lines) {
		return r.draft, true
	}
	return r.lines[r.pos], true
}

func isRepeat(line string) bool {
	switch strings.ToLower(line) {
	case "again", "g":
		return true
	}
	return false
}
