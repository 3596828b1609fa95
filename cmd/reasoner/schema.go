package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"basegraph.app/reasoner/internal/model"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the reasoning result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(model.ResultSchema())
		},
	}
}
