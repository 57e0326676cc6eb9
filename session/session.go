// Package session holds the interactive state of one terminal session: the
// scrollback, the input line with its cursor, the inline suggestion and the
// command history. Session is not safe for concurrent use; it belongs to the
// scheduler goroutine.
package session

import (
	"slices"

	"github.com/Paranoid-AF/sprig/index"
)

// MaxScrollback is the number of output lines kept. Older lines are evicted
// first.
const MaxScrollback = 1000

// Renderer is notified of observable changes. Invalidate may be coalesced;
// Flush asks for an immediate redraw.
type Renderer interface {
	Invalidate()
	Flush()
}

type nopRenderer struct{}

func (nopRenderer) Invalidate() {}
func (nopRenderer) Flush()      {}

// Session is the aggregate of scrollback, input and suggestion state.
type Session struct {
	scrollback []string
	input      []rune
	cursor     int // rune index, 0 <= cursor <= len(input)
	suggestion string
	history    []string

	renderer Renderer
}

// New creates an empty Session. A nil renderer discards notifications.
func New(r Renderer) *Session {
	if r == nil {
		r = nopRenderer{}
	}
	return &Session{renderer: r}
}

// SetRenderer replaces the renderer.
func (s *Session) SetRenderer(r Renderer) {
	if r == nil {
		r = nopRenderer{}
	}
	s.renderer = r
}

// Input returns the input line.
func (s *Session) Input() string { return string(s.input) }

// Cursor returns the cursor position in runes.
func (s *Session) Cursor() int { return s.cursor }

// Suggestion returns the inline suggestion, or "".
func (s *Session) Suggestion() string { return s.suggestion }

// Scrollback returns a copy of the output lines, oldest first.
func (s *Session) Scrollback() []string {
	return append([]string(nil), s.scrollback...)
}

// Tail returns a copy of the last n scrollback lines. n <= 0 returns all.
func (s *Session) Tail(n int) []string {
	lines := s.scrollback
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return append([]string(nil), lines...)
}

// History returns a copy of the submitted commands, oldest first.
func (s *Session) History() []string {
	return append([]string(nil), s.history...)
}

// AppendLine adds an output line, evicting the oldest line past
// MaxScrollback.
func (s *Session) AppendLine(line string) {
	if len(s.scrollback) >= MaxScrollback {
		n := copy(s.scrollback, s.scrollback[len(s.scrollback)-MaxScrollback+1:])
		s.scrollback = s.scrollback[:n]
	}
	s.scrollback = append(s.scrollback, line)
	s.renderer.Invalidate()
}

// ClearScrollback drops all output lines.
func (s *Session) ClearScrollback() {
	s.scrollback = s.scrollback[:0]
	s.renderer.Invalidate()
}

// SetSuggestion replaces the inline suggestion.
func (s *Session) SetSuggestion(text string) {
	if text == s.suggestion {
		return
	}
	s.suggestion = text
	s.renderer.Invalidate()
}

// ClearSuggestion removes the inline suggestion.
func (s *Session) ClearSuggestion() { s.SetSuggestion("") }

// SetInput replaces the input line and moves the cursor to its end.
func (s *Session) SetInput(text string) {
	s.input = []rune(text)
	s.cursor = len(s.input)
	s.renderer.Invalidate()
}

// MoveCursor moves the cursor to pos, clamped to the input. It reports
// whether the cursor moved.
func (s *Session) MoveCursor(pos int) bool {
	pos = max(0, min(pos, len(s.input)))
	if pos == s.cursor {
		return false
	}
	s.cursor = pos
	s.renderer.Invalidate()
	return true
}

// Insert inserts runes at the cursor and advances past them.
func (s *Session) Insert(r ...rune) {
	if len(r) == 0 {
		return
	}
	s.input = slices.Insert(s.input, s.cursor, r...)
	s.cursor += len(r)
	s.renderer.Invalidate()
}

// DeleteBefore removes the rune before the cursor. It reports whether
// anything was removed.
func (s *Session) DeleteBefore() bool {
	if s.cursor == 0 {
		return false
	}
	s.input = slices.Delete(s.input, s.cursor-1, s.cursor)
	s.cursor--
	s.renderer.Invalidate()
	return true
}

// DeleteAt removes the rune under the cursor. It reports whether anything
// was removed.
func (s *Session) DeleteAt() bool {
	if s.cursor >= len(s.input) {
		return false
	}
	s.input = slices.Delete(s.input, s.cursor, s.cursor+1)
	s.renderer.Invalidate()
	return true
}

// AcceptSuggestion appends the suggestion to the input, moves the cursor to
// the end and clears the suggestion. It reports whether there was one.
func (s *Session) AcceptSuggestion() bool {
	if s.suggestion == "" {
		return false
	}
	s.input = append(s.input, []rune(s.suggestion)...)
	s.cursor = len(s.input)
	s.suggestion = ""
	s.renderer.Invalidate()
	return true
}

// Submit records the input as a command, echoes it to the scrollback and
// clears the input line. It returns the command, or "" when the input was
// empty and nothing happened.
func (s *Session) Submit() string {
	if len(s.input) == 0 {
		return ""
	}
	cmd := string(s.input)
	s.history = append(s.history, cmd)
	s.input = s.input[:0]
	s.cursor = 0
	s.suggestion = ""
	s.AppendLine(index.EchoPrefix + cmd)
	s.renderer.Flush()
	return cmd
}

// Clear empties the input line and the suggestion.
func (s *Session) Clear() {
	s.input = s.input[:0]
	s.cursor = 0
	s.suggestion = ""
	s.renderer.Invalidate()
}
