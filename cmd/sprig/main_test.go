package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Paranoid-AF/sprig"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SPRIG_CONFIG_DIR", dir)
	t.Setenv("SPRIG_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("SPRIG_MODEL", "")
	return dir
}

func TestResolveMissingAPIKey(t *testing.T) {
	isolate(t)
	_, err := resolve("")
	assert.ErrorIs(t, err, sprig.ErrMissingAPIKey)
}

func TestResolveUnknownModel(t *testing.T) {
	isolate(t)
	t.Setenv("SPRIG_API_KEY", "k")
	_, err := resolve("gpt-99")
	assert.ErrorIs(t, err, sprig.ErrUnknownModel)
}

func TestResolveDefaults(t *testing.T) {
	isolate(t)
	t.Setenv("OPENROUTER_API_KEY", "or-key")

	s, err := resolve("")
	require.NoError(t, err)
	assert.Equal(t, sprig.DefaultModel, s.model.Name)
	assert.Equal(t, "or-key", s.apiKey)

	s, err = resolve("gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4o-mini", s.model.ID)
}

func TestResolveBadConfig(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[generation\n"), 0644))
	_, err := resolve("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestHelpListsModels(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--help"})
	require.NoError(t, cmd.Execute())
	for _, want := range []string{"--model", "anthropic-sonnet", "gpt-4o-mini", "OPENROUTER_API_KEY"} {
		assert.Contains(t, out.String(), want)
	}
}

func TestRejectsArgs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"extra"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute(), "positional arguments should be rejected")
}
