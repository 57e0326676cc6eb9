// Package tui is the bubbletea front-end. Update doubles as the scheduler
// goroutine: key presses, shell output and suggestions are all applied to
// the session there.
package tui

import (
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/Paranoid-AF/sprig/index"
	"github.com/Paranoid-AF/sprig/logging"
	"github.com/Paranoid-AF/sprig/session"
)

// BlinkInterval is the cursor blink period.
const BlinkInterval = 500 * time.Millisecond

type blinkMsg struct{}

// Options configures a Model.
type Options struct {
	Editor *session.Editor
	// Tasks and Done come from the scheduler loop.
	Tasks <-chan func()
	Done  <-chan struct{}
	// Exited closes when the shell process has exited.
	Exited <-chan struct{}
	// Status returns a short status string for the footer.
	Status func() string
	Keys   *KeyMap
	Styles *Styles
	Logger *slog.Logger
}

// Model renders a session as scrollback, an input line and a footer.
type Model struct {
	editor *session.Editor
	sess   *session.Session
	tasks  <-chan func()
	done   <-chan struct{}
	exited <-chan struct{}
	status func() string
	log    *slog.Logger

	keys     KeyMap
	styles   Styles
	help     help.Model
	viewport viewport.Model
	throttle *Throttle

	width, height int
	ready         bool
	follow        bool
	cursorOn      bool
	quitting      bool
}

// New creates a Model and registers it as the session's renderer.
func New(opts Options) *Model {
	keys := DefaultKeyMap()
	if opts.Keys != nil {
		keys = *opts.Keys
	}
	styles := DefaultStyles()
	if opts.Styles != nil {
		styles = *opts.Styles
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}

	m := &Model{
		editor:   opts.Editor,
		sess:     opts.Editor.Session(),
		tasks:    opts.Tasks,
		done:     opts.Done,
		exited:   opts.Exited,
		status:   opts.Status,
		log:      log,
		keys:     keys,
		styles:   styles,
		help:     help.New(),
		viewport: viewport.New(80, 20),
		throttle: NewThrottle(FrameInterval),
		follow:   true,
		cursorOn: true,
	}
	m.sess.SetRenderer(m.throttle)
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		waitTask(m.tasks, m.done),
		waitExit(m.exited),
		blink(),
	)
}

func blink() tea.Cmd {
	return tea.Tick(BlinkInterval, func(time.Time) tea.Msg { return blinkMsg{} })
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		if cmd := m.handleKey(msg); cmd != nil {
			return m, cmd
		}

	case taskMsg:
		msg()
		cmds = append(cmds, waitTask(m.tasks, m.done))

	case redrawMsg:
		if m.throttle.trailing() {
			m.refresh()
		}

	case blinkMsg:
		m.cursorOn = !m.cursorOn
		cmds = append(cmds, blink())

	case shellExitedMsg:
		m.log.Info("shell exited, quitting")
		m.quitting = true
		return m, tea.Quit
	}

	if redraw, cmd := m.throttle.settle(); redraw {
		m.refresh()
	} else if cmd != nil {
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.resize(m.width, m.height)
		return nil
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		m.follow = m.viewport.AtBottom()
		return nil
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		m.follow = m.viewport.AtBottom()
		return nil
	}

	ev, ok := m.keys.event(msg)
	if !ok {
		return nil
	}
	m.cursorOn = true
	if m.editor.Handle(ev) {
		m.quitting = true
		return tea.Quit
	}
	if ev.Key == session.KeyEnter {
		m.follow = true
	}
	return nil
}

func (m *Model) resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	m.width, m.height = width, height
	m.help.Width = width

	footer := strings.Count(m.footer(), "\n") + 1
	m.viewport.Width = width
	m.viewport.Height = max(1, height-1-footer)
	m.ready = true
	m.refresh()
}

// refresh rebuilds the scrollback content.
func (m *Model) refresh() {
	lines := m.sess.Scrollback()
	for i, l := range lines {
		style := m.styles.Output
		if strings.HasPrefix(l, index.EchoPrefix) {
			style = m.styles.Echo
		}
		if m.width > 0 {
			l = ansi.Hardwrap(l, m.width, true)
		}
		lines[i] = style.Render(l)
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	if m.follow {
		m.viewport.GotoBottom()
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return m.inputLine()
	}
	return m.viewport.View() + "\n" + m.inputLine() + "\n" + m.footer()
}

func (m *Model) inputLine() string {
	input := []rune(m.sess.Input())
	cur := m.sess.Cursor()

	var b strings.Builder
	b.WriteString(m.styles.Prompt.Render(index.EchoPrefix))
	b.WriteString(m.styles.Input.Render(string(input[:cur])))

	under := " "
	rest := ""
	if cur < len(input) {
		under = string(input[cur])
		rest = string(input[cur+1:])
	}
	if m.cursorOn {
		b.WriteString(m.styles.Cursor.Render(under))
	} else {
		b.WriteString(m.styles.Input.Render(under))
	}
	b.WriteString(m.styles.Input.Render(rest))

	if s := m.sess.Suggestion(); s != "" {
		b.WriteString(m.styles.Ghost.Render(s))
	}
	return b.String()
}

func (m *Model) footer() string {
	out := m.help.View(m.keys)
	if m.status != nil {
		if s := m.status(); s != "" {
			out = m.styles.Status.Render(s) + "  " + out
		}
	}
	return out
}
