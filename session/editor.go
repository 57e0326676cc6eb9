package session

import (
	"log/slog"

	"github.com/Paranoid-AF/sprig/logging"
)

// Shell is the process side of the editor.
type Shell interface {
	Write(text string)
	SendInterrupt()
	Clear()
}

// Completer is the completion side of the editor.
type Completer interface {
	NotifyInputChanged(input string, contextLines []string)
	Refresh(input string, contextLines []string)
	CancelPending()
	Reset()
}

// Recorder receives submitted commands, e.g. the history index.
type Recorder interface {
	Add(cmd string)
}

// EditorOptions configures an Editor.
type EditorOptions struct {
	// ContextLines caps the scrollback snapshot handed to the completer.
	// Zero or less sends the whole scrollback.
	ContextLines int
	History      Recorder
	Logger       *slog.Logger
}

// Editor applies key events to a Session. Handle must run on the scheduler
// goroutine.
type Editor struct {
	s         *Session
	shell     Shell
	completer Completer
	history   Recorder
	lines     int
	log       *slog.Logger

	// recall indexes the session history during Up/Down navigation;
	// len(history) means the live line, saved in draft.
	recall int
	draft  string
}

// NewEditor creates an Editor over s.
func NewEditor(s *Session, shell Shell, completer Completer, opts EditorOptions) *Editor {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Editor{
		s:         s,
		shell:     shell,
		completer: completer,
		history:   opts.History,
		lines:     opts.ContextLines,
		log:       log,
	}
}

// Session returns the edited session.
func (e *Editor) Session() *Session { return e.s }

// Handle applies ev. It returns true when the user asked to quit.
func (e *Editor) Handle(ev Event) (quit bool) {
	switch ev.Key {
	case KeyInterrupt:
		e.shell.SendInterrupt()
		e.s.Clear()
		e.completer.Reset()
		e.resetRecall()

	case KeyLeft:
		e.moveCursor(e.s.Cursor() - 1)
	case KeyRight:
		e.moveCursor(e.s.Cursor() + 1)
	case KeyHome:
		e.moveCursor(0)
	case KeyEnd:
		e.moveCursor(len([]rune(e.s.Input())))

	case KeyTab:
		if e.s.AcceptSuggestion() {
			e.completer.CancelPending()
		} else {
			e.log.Debug("completion requested", "input", e.s.Input())
			e.completer.Refresh(e.s.Input(), e.context())
		}

	case KeyEnter:
		cmd := e.s.Submit()
		if cmd == "" {
			return false
		}
		e.completer.Reset()
		e.shell.Write(cmd + "\n")
		if e.history != nil {
			e.history.Add(cmd)
		}
		e.resetRecall()
		e.log.Debug("command submitted", "command", cmd)

	case KeyBackspace:
		if e.s.DeleteBefore() {
			e.textChanged()
		}
	case KeyDelete:
		if e.s.DeleteAt() {
			e.textChanged()
		}

	case KeyRunes:
		if len(ev.Runes) > 0 {
			e.s.Insert(ev.Runes...)
			e.textChanged()
		}

	case KeyClearLine:
		if e.s.Input() != "" {
			e.s.Clear()
			e.textChanged()
		}
	case KeyClearScreen:
		e.s.ClearScrollback()
		e.shell.Clear()

	case KeyHistoryPrev:
		e.recallHistory(-1)
	case KeyHistoryNext:
		e.recallHistory(1)

	case KeyEOF:
		if e.s.Input() == "" {
			return true
		}
		if e.s.DeleteAt() {
			e.textChanged()
		}
	case KeyQuit:
		return true

	default:
		e.log.Debug("unhandled key", "key", ev.Key)
	}
	return false
}

func (e *Editor) context() []string { return e.s.Tail(e.lines) }

func (e *Editor) textChanged() {
	e.s.ClearSuggestion()
	e.completer.NotifyInputChanged(e.s.Input(), e.context())
}

func (e *Editor) moveCursor(pos int) {
	if e.s.MoveCursor(pos) {
		e.s.ClearSuggestion()
		e.completer.CancelPending()
	}
}

func (e *Editor) resetRecall() {
	e.recall = len(e.s.history)
	e.draft = ""
}

func (e *Editor) recallHistory(delta int) {
	n := len(e.s.history)
	if e.recall > n {
		e.recall = n
	}
	next := e.recall + delta
	if next < 0 || next > n || next == e.recall {
		return
	}
	if e.recall == n {
		e.draft = e.s.Input()
	}
	e.recall = next
	if next == n {
		e.s.SetInput(e.draft)
	} else {
		e.s.SetInput(e.s.history[next])
	}
	e.textChanged()
}
