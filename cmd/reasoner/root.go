package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const banner = `
  ┬─┐┌─┐┌─┐┌─┐┌─┐┌┐┌┌─┐┬─┐
  ├┬┘├┤ ├─┤└─┐│ ││││├┤ ├┬┘
  ┴└─└─┘┴ ┴└─┘└─┘┘└┘└─┘┴└─`

type rootOptions struct {
	fixture string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "reasoner",
		Short: "Graph reasoning over a declarative product knowledge graph",
		Long: `reasoner turns a free-text request into validated catalog items, the
constraints and risks that apply to them, and the next clarifying question,
using only rules stored in the knowledge graph.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// The flag wins over FIXTURE_PATH so a catalog file can be tried
			// without touching the environment.
			if opts.fixture != "" {
				if err := os.Setenv("FIXTURE_PATH", opts.fixture); err != nil {
					return fmt.Errorf("set fixture path: %w", err)
				}
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.fixture, "fixture", "", "YAML catalog to serve instead of ArangoDB")

	cmd.AddCommand(
		newQueryCmd(),
		newSchemaCmd(),
		newSetupCmd(),
	)
	return cmd
}
