package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Paranoid-AF/sprig/session"
)

// KeyMap binds terminal keys to editor events and view controls.
type KeyMap struct {
	Submit      key.Binding
	Complete    key.Binding
	Interrupt   key.Binding
	Backspace   key.Binding
	Delete      key.Binding
	Left        key.Binding
	Right       key.Binding
	Home        key.Binding
	End         key.Binding
	ClearLine   key.Binding
	ClearScreen key.Binding
	HistoryPrev key.Binding
	HistoryNext key.Binding
	EOF         key.Binding
	Quit        key.Binding

	PageUp   key.Binding
	PageDown key.Binding
	Help     key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "run"),
		),
		Complete: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "accept/suggest"),
		),
		Interrupt: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "interrupt"),
		),
		Backspace: key.NewBinding(key.WithKeys("backspace", "ctrl+h")),
		Delete:    key.NewBinding(key.WithKeys("delete")),
		Left:      key.NewBinding(key.WithKeys("left", "ctrl+b")),
		Right:     key.NewBinding(key.WithKeys("right", "ctrl+f")),
		Home: key.NewBinding(
			key.WithKeys("home", "ctrl+a"),
			key.WithHelp("C-a/C-e", "start/end"),
		),
		End: key.NewBinding(key.WithKeys("end", "ctrl+e")),
		ClearLine: key.NewBinding(
			key.WithKeys("ctrl+u"),
			key.WithHelp("C-u", "clear line"),
		),
		ClearScreen: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("C-l", "clear screen"),
		),
		HistoryPrev: key.NewBinding(
			key.WithKeys("up", "ctrl+p"),
			key.WithHelp("↑/↓", "history"),
		),
		HistoryNext: key.NewBinding(key.WithKeys("down", "ctrl+n")),
		EOF:         key.NewBinding(key.WithKeys("ctrl+d")),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+q"),
			key.WithHelp("C-q", "quit"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "shift+up"),
			key.WithHelp("PgUp/PgDn", "scroll"),
		),
		PageDown: key.NewBinding(key.WithKeys("pgdown", "shift+down")),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("F1", "help"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Complete, k.Submit, k.Interrupt, k.Quit, k.Help}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Complete, k.Submit, k.Interrupt},
		{k.Home, k.ClearLine, k.ClearScreen},
		{k.HistoryPrev, k.PageUp},
		{k.Quit, k.Help},
	}
}

// event maps a key press to an editor event.
func (k KeyMap) event(msg tea.KeyMsg) (session.Event, bool) {
	bindings := []struct {
		b   key.Binding
		key session.Key
	}{
		{k.Submit, session.KeyEnter},
		{k.Complete, session.KeyTab},
		{k.Interrupt, session.KeyInterrupt},
		{k.Backspace, session.KeyBackspace},
		{k.Delete, session.KeyDelete},
		{k.Left, session.KeyLeft},
		{k.Right, session.KeyRight},
		{k.Home, session.KeyHome},
		{k.End, session.KeyEnd},
		{k.ClearLine, session.KeyClearLine},
		{k.ClearScreen, session.KeyClearScreen},
		{k.HistoryPrev, session.KeyHistoryPrev},
		{k.HistoryNext, session.KeyHistoryNext},
		{k.EOF, session.KeyEOF},
		{k.Quit, session.KeyQuit},
	}
	for _, b := range bindings {
		if key.Matches(msg, b.b) {
			return session.Press(b.key), true
		}
	}

	switch msg.Type {
	case tea.KeyRunes:
		if msg.Alt {
			return session.Event{}, false
		}
		return session.Event{Key: session.KeyRunes, Runes: msg.Runes}, true
	case tea.KeySpace:
		return session.Runes(" "), true
	}
	return session.Event{}, false
}
