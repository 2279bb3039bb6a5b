package shell

import "strings"

// DefaultHistoryLimit bounds Session.History when no limit is configured.
const DefaultHistoryLimit = 500

// Session is the state one shell loop carries between lines. Steps take a
// session and return the next one; nothing else holds on to it.
type Session struct {
	History []string
	Limit   int
	// Done ends the loop after the current step.
	Done bool
}

// NewSession starts an empty session keeping at most limit history lines.
func NewSession(limit int) Session {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return Session{Limit: limit}
}

// Record returns s with line appended to the history. Blank lines and a
// repeat of the previous line are not recorded; the oldest entry falls off
// once Limit is reached. The receiver's history is left untouched.
func (s Session) Record(line string) Session {
	line = strings.TrimSpace(line)
	if line == "" {
		return s
	}
	if n := len(s.History); n > 0 && s.History[n-1] == line {
		return s
	}

	limit := s.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	keep := s.History
	if len(keep) >= limit {
		keep = keep[len(keep)-limit+1:]
	}
	h := make([]string, len(keep), len(keep)+1)
	copy(h, keep)
	s.History = append(h, line)
	return s
}
