// Command sprig wraps the user's shell in a terminal UI that suggests how to
// finish the command being typed.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Paranoid-AF/sprig"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "sprig:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var modelName string
	cmd := &cobra.Command{
		Use:   "sprig",
		Short: "Your shell, with AI command suggestions",
		Long: `sprig runs your shell inside a small terminal UI and suggests the rest of
the command you are typing. Press Tab to accept a suggestion, or to ask for
one when none is shown.

Models:
` + modelList() + `
The API key is read from SPRIG_API_KEY or OPENROUTER_API_KEY.`,
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), modelName)
		},
	}
	cmd.Flags().StringVar(&modelName, "model", "",
		"completion model ("+strings.Join(sprig.ModelNames(), ", ")+"; default "+sprig.DefaultModel+")")
	return cmd
}

func modelList() string {
	var b strings.Builder
	for _, name := range sprig.ModelNames() {
		fmt.Fprintf(&b, "  %-18s %s\n", name, sprig.Models[name].Description)
	}
	return b.String()
}
