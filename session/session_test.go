package session

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRenderer struct {
	invalidated int
	flushed     int
}

func (r *countingRenderer) Invalidate() { r.invalidated++ }
func (r *countingRenderer) Flush()      { r.flushed++ }

type fakeShell struct {
	writes     []string
	interrupts int
	clears     int
}

func (f *fakeShell) Write(text string) { f.writes = append(f.writes, text) }
func (f *fakeShell) SendInterrupt()    { f.interrupts++ }
func (f *fakeShell) Clear()            { f.clears++ }

type fakeCompleter struct {
	notified  []string
	refreshed []string
	lines     [][]string
	cancels   int
	resets    int
}

func (f *fakeCompleter) NotifyInputChanged(input string, lines []string) {
	f.notified = append(f.notified, input)
	f.lines = append(f.lines, lines)
}

func (f *fakeCompleter) Refresh(input string, lines []string) {
	f.refreshed = append(f.refreshed, input)
	f.lines = append(f.lines, lines)
}

func (f *fakeCompleter) CancelPending() { f.cancels++ }
func (f *fakeCompleter) Reset()         { f.resets++ }

type fakeRecorder struct{ cmds []string }

func (f *fakeRecorder) Add(cmd string) { f.cmds = append(f.cmds, cmd) }

type fixture struct {
	s     *Session
	r     *countingRenderer
	shell *fakeShell
	comp  *fakeCompleter
	rec   *fakeRecorder
	ed    *Editor
}

func newFixture(contextLines int) *fixture {
	f := &fixture{
		r:     &countingRenderer{},
		shell: &fakeShell{},
		comp:  &fakeCompleter{},
		rec:   &fakeRecorder{},
	}
	f.s = New(f.r)
	f.ed = NewEditor(f.s, f.shell, f.comp, EditorOptions{ContextLines: contextLines, History: f.rec})
	return f
}

func (f *fixture) typeText(s string) {
	for _, r := range s {
		f.ed.Handle(Event{Key: KeyRunes, Runes: []rune{r}})
	}
}

func TestCursorInvariant(t *testing.T) {
	keys := []Key{
		KeyRunes, KeyRunes, KeyRunes, KeyBackspace, KeyDelete, KeyLeft, KeyRight,
		KeyHome, KeyEnd, KeyTab, KeyInterrupt, KeyClearLine, KeyHistoryPrev, KeyHistoryNext, KeyEnter,
	}
	words := []string{"a", "é", "日本", " ", "git status", "🙂"}
	rng := rand.New(rand.NewPCG(1, 2))

	f := newFixture(0)
	for i := range 5000 {
		ev := Event{Key: keys[rng.IntN(len(keys))]}
		if ev.Key == KeyRunes {
			ev.Runes = []rune(words[rng.IntN(len(words))])
		}
		if rng.IntN(10) == 0 {
			f.s.SetSuggestion("xyz")
		}
		f.ed.Handle(ev)

		n := len([]rune(f.s.Input()))
		require.True(t, f.s.Cursor() >= 0 && f.s.Cursor() <= n,
			"step %d after %v: cursor %d outside [0,%d]", i, ev.Key, f.s.Cursor(), n)
	}
}

func TestCursorCountsRunes(t *testing.T) {
	f := newFixture(0)
	f.typeText("héllo")
	assert.Equal(t, 5, f.s.Cursor())

	f.ed.Handle(Press(KeyLeft))
	f.ed.Handle(Press(KeyLeft))
	f.ed.Handle(Press(KeyLeft))
	f.ed.Handle(Press(KeyLeft))
	f.ed.Handle(Press(KeyBackspace))
	assert.Equal(t, "éllo", f.s.Input())
	assert.Equal(t, 0, f.s.Cursor())

	f.ed.Handle(Press(KeyDelete))
	assert.Equal(t, "llo", f.s.Input())
}

func TestSubmit(t *testing.T) {
	f := newFixture(0)
	f.s.AppendLine("earlier output")
	f.typeText("ls -la")
	f.s.SetSuggestion(" /tmp")

	f.ed.Handle(Press(KeyEnter))

	assert.Equal(t, []string{"earlier output", "> ls -la"}, f.s.Scrollback())
	assert.Empty(t, f.s.Input())
	assert.Zero(t, f.s.Cursor())
	assert.Empty(t, f.s.Suggestion())
	assert.Equal(t, []string{"ls -la\n"}, f.shell.writes)
	assert.Equal(t, []string{"ls -la"}, f.s.History())
	assert.Equal(t, []string{"ls -la"}, f.rec.cmds)
	assert.Equal(t, 1, f.comp.resets)
	assert.Equal(t, 1, f.r.flushed)
}

func TestSubmitEmptyInputIsNoop(t *testing.T) {
	f := newFixture(0)
	f.ed.Handle(Press(KeyEnter))

	assert.Empty(t, f.s.Scrollback())
	assert.Empty(t, f.shell.writes)
	assert.Empty(t, f.s.History())
	assert.Zero(t, f.r.flushed)
}

func TestScrollbackCap(t *testing.T) {
	s := New(nil)
	for i := range MaxScrollback + 250 {
		s.AppendLine(fmt.Sprintf("line %d", i))
	}

	lines := s.Scrollback()
	require.Len(t, lines, MaxScrollback)
	assert.Equal(t, "line 250", lines[0])
	assert.Equal(t, fmt.Sprintf("line %d", MaxScrollback+249), lines[len(lines)-1])
}

func TestTailIsACopy(t *testing.T) {
	s := New(nil)
	for _, l := range []string{"a", "b", "c"} {
		s.AppendLine(l)
	}
	tail := s.Tail(2)
	assert.Equal(t, []string{"b", "c"}, tail)

	tail[0] = "changed"
	assert.Equal(t, []string{"a", "b", "c"}, s.Scrollback())
	assert.Equal(t, []string{"a", "b", "c"}, s.Tail(0))
}

func TestAcceptSuggestion(t *testing.T) {
	f := newFixture(0)
	f.typeText("git st")
	f.ed.Handle(Press(KeyLeft))
	f.s.SetSuggestion("atus")

	f.ed.Handle(Press(KeyTab))

	assert.Equal(t, "git status", f.s.Input())
	assert.Equal(t, 10, f.s.Cursor())
	assert.Empty(t, f.s.Suggestion())
	assert.Equal(t, 2, f.comp.cancels, "one for the cursor move, one for accept")
	assert.Empty(t, f.comp.refreshed)
}

func TestTabWithoutSuggestionRefreshes(t *testing.T) {
	f := newFixture(1)
	f.s.AppendLine("old")
	f.s.AppendLine("new")
	f.typeText("make")

	f.ed.Handle(Press(KeyTab))

	assert.Equal(t, []string{"make"}, f.comp.refreshed)
	assert.Equal(t, []string{"new"}, f.comp.lines[len(f.comp.lines)-1])
}

func TestTextChangesNotifyAndClearSuggestion(t *testing.T) {
	f := newFixture(0)
	f.typeText("gi")
	f.s.SetSuggestion("t status")
	f.typeText("t")

	assert.Empty(t, f.s.Suggestion())
	assert.Equal(t, []string{"g", "gi", "git"}, f.comp.notified)

	f.s.SetSuggestion(" status")
	f.ed.Handle(Press(KeyBackspace))
	assert.Empty(t, f.s.Suggestion())
	assert.Equal(t, "gi", f.comp.notified[len(f.comp.notified)-1])
}

func TestCursorMoveCancels(t *testing.T) {
	f := newFixture(0)
	f.typeText("ls")
	f.s.SetSuggestion(" -la")

	f.ed.Handle(Press(KeyRight))
	assert.Equal(t, " -la", f.s.Suggestion(), "cursor did not move")
	assert.Zero(t, f.comp.cancels)

	f.ed.Handle(Press(KeyHome))
	assert.Empty(t, f.s.Suggestion())
	assert.Equal(t, 1, f.comp.cancels)
	assert.Zero(t, f.s.Cursor())

	f.ed.Handle(Press(KeyEnd))
	assert.Equal(t, 2, f.s.Cursor())
}

func TestInterrupt(t *testing.T) {
	f := newFixture(0)
	f.typeText("sleep 100")
	f.s.SetSuggestion("0")

	f.ed.Handle(Press(KeyInterrupt))

	assert.Equal(t, 1, f.shell.interrupts)
	assert.Empty(t, f.s.Input())
	assert.Zero(t, f.s.Cursor())
	assert.Empty(t, f.s.Suggestion())
	assert.Equal(t, 1, f.comp.resets)
}

func TestClearLineAndScreen(t *testing.T) {
	f := newFixture(0)
	f.s.AppendLine("output")
	f.typeText("rm -rf")

	f.ed.Handle(Press(KeyClearLine))
	assert.Empty(t, f.s.Input())
	assert.Equal(t, "", f.comp.notified[len(f.comp.notified)-1])

	f.ed.Handle(Press(KeyClearScreen))
	assert.Empty(t, f.s.Scrollback())
	assert.Equal(t, 1, f.shell.clears)
}

func TestHistoryRecall(t *testing.T) {
	f := newFixture(0)
	for _, cmd := range []string{"one", "two"} {
		f.typeText(cmd)
		f.ed.Handle(Press(KeyEnter))
	}
	f.typeText("dra")

	f.ed.Handle(Press(KeyHistoryPrev))
	assert.Equal(t, "two", f.s.Input())
	assert.Equal(t, 3, f.s.Cursor())
	f.ed.Handle(Press(KeyHistoryPrev))
	assert.Equal(t, "one", f.s.Input())
	f.ed.Handle(Press(KeyHistoryPrev))
	assert.Equal(t, "one", f.s.Input())

	f.ed.Handle(Press(KeyHistoryNext))
	f.ed.Handle(Press(KeyHistoryNext))
	assert.Equal(t, "dra", f.s.Input())
	f.ed.Handle(Press(KeyHistoryNext))
	assert.Equal(t, "dra", f.s.Input())
}

func TestQuitKeys(t *testing.T) {
	f := newFixture(0)
	assert.True(t, f.ed.Handle(Press(KeyQuit)))

	f.typeText("ab")
	f.ed.Handle(Press(KeyHome))
	assert.False(t, f.ed.Handle(Press(KeyEOF)))
	assert.Equal(t, "b", f.s.Input())

	f.ed.Handle(Press(KeyClearLine))
	assert.True(t, f.ed.Handle(Press(KeyEOF)))
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "enter", KeyEnter.String())
	assert.Equal(t, "eof", KeyEOF.String())
	assert.Equal(t, "unknown", Key(-1).String())
}
