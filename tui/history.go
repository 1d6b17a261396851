// Package tui provides a Bubble Tea terminal UI for the mirrorloop engine.
package tui

// inputHistory remembers submitted input lines for Up/Down recall.
type inputHistory struct {
	lines  []string
	limit  int
	cursor int // -1 = not browsing
}

func newInputHistory(limit int) *inputHistory {
	return &inputHistory{limit: limit, cursor: -1}
}

// Add records a line. Consecutive duplicates collapse into one entry.
func (h *inputHistory) Add(line string) {
	if n := len(h.lines); n > 0 && h.lines[n-1] == line {
		h.cursor = -1
		return
	}
	h.lines = append(h.lines, line)
	if len(h.lines) > h.limit {
		h.lines = h.lines[1:]
	}
	h.cursor = -1
}

// Older steps back toward the first recorded line.
func (h *inputHistory) Older() (string, bool) {
	if len(h.lines) == 0 {
		return "", false
	}
	switch {
	case h.cursor == -1:
		h.cursor = len(h.lines) - 1
	case h.cursor > 0:
		h.cursor--
	}
	return h.lines[h.cursor], true
}

// Newer steps forward; past the newest line it reports false and resets to
// fresh input.
func (h *inputHistory) Newer() (string, bool) {
	if h.cursor == -1 {
		return "", false
	}
	h.cursor++
	if h.cursor >= len(h.lines) {
		h.cursor = -1
		return "", false
	}
	return h.lines[h.cursor], true
}
