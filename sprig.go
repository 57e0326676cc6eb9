// Package sprig holds the configuration surface shared by every sprig component:
// the model registry, the TOML config file, and environment overrides.
package sprig

import (
	"errors"
	"fmt"
	"sort"
)

// DefaultModel is the registry key used when no model is selected.
const DefaultModel = "anthropic-sonnet"

// Model is one entry of the fixed model registry.
type Model struct {
	// Name is the registry key accepted by --model.
	Name string
	// ID is the provider-side model identifier sent in requests.
	ID string
	// Description is shown in --help.
	Description string
}

// Models is the fixed registry of selectable completion models.
var Models = map[string]Model{
	"anthropic-sonnet": {
		Name:        "anthropic-sonnet",
		ID:          "anthropic/claude-3.5-sonnet:beta",
		Description: "Anthropic Sonnet - short responses, good for command completion",
	},
	"gpt-4o-mini": {
		Name:        "gpt-4o-mini",
		ID:          "openai/gpt-4o-mini",
		Description: "GPT-4o Mini - fast and efficient for command completion",
	},
}

var (
	// ErrMissingAPIKey is returned when no API key is found in the environment or config.
	ErrMissingAPIKey = errors.New("API key not configured; set SPRIG_API_KEY or OPENROUTER_API_KEY")
	// ErrUnknownModel is returned for a model name not in the registry.
	ErrUnknownModel = errors.New("unknown model")
	// ErrNotTerminal is returned when stdin is not an interactive terminal.
	ErrNotTerminal = errors.New("stdin is not a terminal")
)

// LookupModel resolves a registry key. An empty name selects DefaultModel.
func LookupModel(name string) (Model, error) {
	if name == "" {
		name = DefaultModel
	}
	m, ok := Models[name]
	if !ok {
		return Model{}, fmt.Errorf("%w %q (available: %v)", ErrUnknownModel, name, ModelNames())
	}
	return m, nil
}

// ModelNames returns the registry keys in sorted order.
func ModelNames() []string {
	names := make([]string, 0, len(Models))
	for name := range Models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
