package session

// Key identifies an editor event.
type Key int

const (
	KeyRunes Key = iota // insert Event.Runes
	KeyEnter
	KeyBackspace
	KeyDelete
	KeyLeft
	KeyRight
	KeyHome
	KeyEnd
	KeyTab
	KeyInterrupt   // Ctrl+C
	KeyClearLine   // Ctrl+U
	KeyClearScreen // Ctrl+L
	KeyHistoryPrev
	KeyHistoryNext
	KeyQuit        // Ctrl+Q
	KeyEOF         // Ctrl+D: quit on an empty line, else delete
)

var keyNames = [...]string{
	KeyRunes:       "runes",
	KeyEnter:       "enter",
	KeyBackspace:   "backspace",
	KeyDelete:      "delete",
	KeyLeft:        "left",
	KeyRight:       "right",
	KeyHome:        "home",
	KeyEnd:         "end",
	KeyTab:         "tab",
	KeyInterrupt:   "interrupt",
	KeyClearLine:   "clear-line",
	KeyClearScreen: "clear-screen",
	KeyHistoryPrev: "history-prev",
	KeyHistoryNext: "history-next",
	KeyQuit:        "quit",
	KeyEOF:         "eof",
}

func (k Key) String() string {
	if k >= 0 && int(k) < len(keyNames) {
		return keyNames[k]
	}
	return "unknown"
}

// Event is one key press.
type Event struct {
	Key   Key
	Runes []rune
}

// Runes returns an insert event for s.
func Runes(s string) Event { return Event{Key: KeyRunes, Runes: []rune(s)} }

// Press returns an event for k.
func Press(k Key) Event { return Event{Key: k} }
