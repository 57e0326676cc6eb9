package generate

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/template"

	defaults "github.com/Paranoid-AF/sprig/default"
)

// SystemMessage fixes the assistant's behavior for every request.
const SystemMessage = "You are a helpful terminal assistant. Complete the user's command based on common terminal commands and their history. Provide only the completion, no explanation."

// PromptData is the data passed to the prompt template.
type PromptData struct {
	ContextLines    []string
	RecentCommands  []string
	RelatedCommands []string
	Cwd             string
	DirListing      string
	PackageManager  string
	Manifests       map[string]string
	Input           string
}

var promptFuncs = template.FuncMap{
	"bullet": func(items []string) string {
		var sb strings.Builder
		for i, item := range items {
			if i > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString("- ")
			sb.WriteString(item)
		}
		return sb.String()
	},
	"join": func(items []string, sep string) string {
		return strings.Join(items, sep)
	},
}

// Prompt renders the user message for a completion request.
type Prompt struct {
	tmpl *template.Template
}

// ParsePrompt compiles a prompt template. An empty source uses the built-in default.
func ParsePrompt(src string) (*Prompt, error) {
	if src == "" {
		src = defaults.DefaultPrompt
	}
	t, err := template.New("prompt").Funcs(promptFuncs).Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}
	return &Prompt{tmpl: t}, nil
}

// DefaultPrompt returns the built-in prompt.
func DefaultPrompt() *Prompt {
	p, err := ParsePrompt("")
	if err != nil {
		panic("generate: invalid built-in prompt: " + err.Error())
	}
	return p
}

// LoadPrompt reads a custom template from path, falling back to the
// built-in prompt when the file is missing or does not parse.
func LoadPrompt(path string, log *slog.Logger) *Prompt {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("failed to read custom prompt", "path", path, "error", err)
		}
		return DefaultPrompt()
	}
	p, err := ParsePrompt(string(data))
	if err != nil {
		log.Warn("custom prompt is invalid, using built-in default", "path", path, "error", err)
		return DefaultPrompt()
	}
	log.Info("loaded custom prompt", "path", path)
	return p
}

// Render executes the template.
func (p *Prompt) Render(data PromptData) (string, error) {
	var buf strings.Builder
	if err := p.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return strings.TrimRight(buf.String(), " \t\n"), nil
}
