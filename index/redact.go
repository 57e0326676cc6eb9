package index

import (
	"bytes"
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// safeVars are non-secret variables that are useful as context.
var safeVars = map[string]bool{
	"HOME": true, "USER": true, "PWD": true, "OLDPWD": true,
	"SHELL": true, "PATH": true, "LANG": true, "TERM": true,
	"EDITOR": true, "PAGER": true, "HOSTNAME": true, "LOGNAME": true,
	"TMPDIR": true, "XDG_CONFIG_HOME": true, "XDG_DATA_HOME": true,
	"XDG_STATE_HOME": true, "XDG_RUNTIME_DIR": true, "DISPLAY": true,
	"HISTFILE": true, "SHLVL": true, "COLUMNS": true, "LINES": true,
	"LC_ALL": true, "LC_CTYPE": true, "GOPATH": true, "GOOS": true, "GOARCH": true,
}

func keepParam(name string) bool {
	if safeVars[name] {
		return true
	}
	// Special parameters: $?, $!, $#, $@, $*, $-, $$, $_ and positionals.
	return len(name) == 1 && strings.ContainsAny(name, "?!#@*-$_0123456789")
}

// RedactCommand masks secrets in a command before it leaves the machine:
// $VAR and ${VAR} references become $REDACTED, and VAR=value assignments
// become VAR=***. Safe and special variables are kept.
func RedactCommand(cmd string) string {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash), syntax.KeepComments(true))
	file, err := parser.Parse(strings.NewReader(cmd), "")
	if err != nil {
		return regexRedact(cmd)
	}

	syntax.Walk(file, func(node syntax.Node) bool {
		switch n := node.(type) {
		case *syntax.ParamExp:
			if n.Param != nil && !keepParam(n.Param.Value) {
				n.Param.Value = "REDACTED"
			}
		case *syntax.Assign:
			if n.Name != nil && n.Value != nil && !safeVars[n.Name.Value] {
				n.Value.Parts = []syntax.WordPart{&syntax.Lit{Value: "***"}}
			}
		}
		return true
	})

	var buf bytes.Buffer
	if err := syntax.NewPrinter(syntax.Indent(0)).Print(&buf, file); err != nil {
		return regexRedact(cmd)
	}
	return strings.TrimRight(buf.String(), "\n")
}

// EchoPrefix marks a submitted command in the scrollback.
const EchoPrefix = "> "

// RedactLine redacts a scrollback line if it is an echoed command. Other
// output is returned unchanged.
func RedactLine(line string) string {
	cmd, ok := strings.CutPrefix(line, EchoPrefix)
	if !ok {
		return line
	}
	return EchoPrefix + RedactCommand(cmd)
}

// RedactLines applies RedactLine to a copy of lines.
func RedactLines(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = RedactLine(l)
	}
	return out
}

var (
	reBraceVar  = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
	reSimpleVar = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
	reAssign    = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)=(\S+)`)
)

// regexRedact handles input the shell parser rejects, such as a half-typed quote.
func regexRedact(cmd string) string {
	cmd = reBraceVar.ReplaceAllStringFunc(cmd, func(m string) string {
		if keepParam(reBraceVar.FindStringSubmatch(m)[1]) {
			return m
		}
		return "${REDACTED}"
	})
	cmd = reSimpleVar.ReplaceAllStringFunc(cmd, func(m string) string {
		name := reSimpleVar.FindStringSubmatch(m)[1]
		if name == "REDACTED" || keepParam(name) {
			return m
		}
		return "$REDACTED"
	})
	return reAssign.ReplaceAllStringFunc(cmd, func(m string) string {
		name := reAssign.FindStringSubmatch(m)[1]
		if safeVars[name] {
			return m
		}
		return name + "=***"
	})
}
