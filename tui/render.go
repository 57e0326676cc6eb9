package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"
)

// FrameInterval is the minimum gap between scrollback redraws.
const FrameInterval = 16 * time.Millisecond

type redrawMsg struct{}

// Throttle coalesces session change notifications into at most one
// scrollback redraw per FrameInterval, with a trailing redraw for changes
// that arrived inside the window. Flush bypasses the limit.
type Throttle struct {
	limiter  *rate.Limiter
	interval time.Duration
	dirty    bool
	forced   bool
	pending  bool
}

// NewThrottle creates a Throttle allowing one redraw per interval.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
	}
}

// Invalidate implements session.Renderer.
func (t *Throttle) Invalidate() { t.dirty = true }

// Flush implements session.Renderer.
func (t *Throttle) Flush() {
	t.dirty = true
	t.forced = true
}

// settle reports whether a redraw is due now. When a change is held back
// it returns a command that fires the trailing redraw.
func (t *Throttle) settle() (redraw bool, cmd tea.Cmd) {
	if !t.dirty {
		return false, nil
	}
	if t.forced || t.limiter.Allow() {
		t.dirty, t.forced = false, false
		return true, nil
	}
	if t.pending {
		return false, nil
	}
	t.pending = true
	return false, tea.Tick(t.interval, func(time.Time) tea.Msg { return redrawMsg{} })
}

// trailing handles the trailing tick: whatever is still dirty is drawn.
func (t *Throttle) trailing() bool {
	t.pending = false
	if !t.dirty {
		return false
	}
	t.dirty, t.forced = false, false
	return true
}
