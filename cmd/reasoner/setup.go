package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"basegraph.app/reasoner/common/arangodb"
	"basegraph.app/reasoner/internal/store"
)

type setupOptions struct {
	embedContexts bool
	reembed       bool
}

func newSetupCmd() *cobra.Command {
	opts := &setupOptions{}

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create the ArangoDB database, collections and knowledge graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSetup(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.embedContexts, "embed-contexts", false, "write embeddings for contexts that have none")
	cmd.Flags().BoolVar(&opts.reembed, "reembed", false, "with --embed-contexts, re-embed every context")
	return cmd
}

func runSetup(cmd *cobra.Command, opts *setupOptions) error {
	ctx := cmd.Context()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.openArango(ctx); err != nil {
		return err
	}
	if err := a.arango.EnsureDatabase(ctx); err != nil {
		return fmt.Errorf("ensure database: %w", err)
	}
	if err := a.arango.EnsureCollections(ctx); err != nil {
		return fmt.Errorf("ensure collections: %w", err)
	}
	if err := a.arango.EnsureGraph(ctx); err != nil {
		return fmt.Errorf("ensure graph: %w", err)
	}
	slog.InfoContext(ctx, "knowledge graph ready", "database", a.cfg.ArangoDB.Database)
	fmt.Fprintf(cmd.OutOrStdout(), "graph %s ready: %d collections, %d edge collections\n",
		arangodb.GraphName, len(arangodb.NodeCollections()), len(arangodb.EdgeDefinitions()))

	if !opts.embedContexts {
		return nil
	}

	if err := a.openEmbedder(ctx); err != nil {
		return err
	}
	if a.embedder == nil {
		return fmt.Errorf("--embed-contexts needs EMBEDDING_PROVIDER=openai or hash")
	}

	gs := store.NewGraphStore(a.arango, store.GraphStoreConfig{ApproxVector: a.cfg.ArangoDB.ApproxVector})
	n, err := gs.IndexContexts(ctx, a.embedder, opts.reembed)
	if err != nil {
		return fmt.Errorf("embed contexts: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "embedded %d context(s)\n", n)
	return nil
}
