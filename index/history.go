package index

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// tailBytesPerLine is the guess used to seek near the end of large history files.
const tailBytesPerLine = 100

// ResolveHistoryPath picks the most recently modified shell history file,
// considering $HISTFILE, ~/.zsh_history and ~/.bash_history.
func ResolveHistoryPath() string {
	home, _ := os.UserHomeDir()
	var candidates []string
	if hf := os.Getenv("HISTFILE"); hf != "" {
		candidates = append(candidates, hf)
	}
	if home != "" {
		candidates = append(candidates,
			filepath.Join(home, ".zsh_history"),
			filepath.Join(home, ".bash_history"),
		)
	}

	var best string
	var bestMod time.Time
	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if best == "" || info.ModTime().After(bestMod) {
			best, bestMod = path, info.ModTime()
		}
	}
	return best
}

// parseHistoryLine returns the command part of one history line.
// Zsh extended history lines look like ": 1700000000:0;git status".
func parseHistoryLine(line string) string {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, ": ") {
		if i := strings.IndexByte(line, ';'); i >= 0 {
			return strings.TrimSpace(line[i+1:])
		}
	}
	return line
}

// readHistory returns up to n commands from the end of the history file at
// path, oldest first. Blank lines are skipped.
func readHistory(path string, n int) []string {
	if path == "" || n <= 0 {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var r io.Reader = f
	if info, err := f.Stat(); err == nil {
		if want := int64(n) * tailBytesPerLine; want < info.Size() {
			if _, err := f.Seek(-want, io.SeekEnd); err == nil {
				br := bufio.NewReader(f)
				br.ReadString('\n') // partial line
				r = br
			}
		}
	}

	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		cmd := parseHistoryLine(scanner.Text())
		if cmd == "" {
			continue
		}
		if len(ring) == n {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, cmd)
	}
	return ring
}
