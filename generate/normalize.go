package generate

import "strings"

// normalize turns the accumulated model output into an inline suggestion
// for input. It returns "" while there is nothing useful to show yet.
func normalize(raw, input string) string {
	s := firstLine(raw)
	s = strings.Trim(s, "`")
	s = trimQuotes(strings.TrimSpace(s))
	s = collapseSpaces(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	// Models often repeat the whole command. Keep only what follows the
	// typed input, including a leading space.
	typed := strings.TrimLeft(input, " \t")
	if typed != "" {
		if rest, ok := strings.CutPrefix(s, typed); ok {
			return strings.TrimRight(rest, " \t")
		}
		if strings.HasPrefix(typed, s) {
			// Still echoing the input.
			return ""
		}
		// A continuation that starts a new word keeps its separator.
		if startsBlank(raw) && !strings.HasSuffix(typed, " ") && !strings.HasSuffix(typed, "\t") {
			return " " + s
		}
	}
	return s
}

// startsBlank reports whether the first non-empty line of s begins with a
// space or tab.
func startsBlank(s string) bool {
	for line := range strings.SplitSeq(s, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		return line[0] == ' ' || line[0] == '\t'
	}
	return false
}

// firstLine returns the first non-empty line that is not a code fence.
func firstLine(s string) string {
	for line := range strings.SplitSeq(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		return line
	}
	return ""
}

func trimQuotes(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'') && first == last {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// collapseSpaces replaces runs of multiple spaces with a single space.
func collapseSpaces(s string) string {
	var buf strings.Builder
	buf.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == ' ' {
			if !prevSpace {
				buf.WriteByte(' ')
			}
			prevSpace = true
		} else {
			buf.WriteRune(r)
			prevSpace = false
		}
	}
	return buf.String()
}
