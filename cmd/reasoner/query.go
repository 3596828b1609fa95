package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"basegraph.app/reasoner/internal/model"
	"basegraph.app/reasoner/internal/reasoning"
)

type queryOptions struct {
	jsonOutput bool
	hint       string
	asked      []string
	category   string
	watch      bool
}

func newQueryCmd() *cobra.Command {
	opts := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "query [text]",
		Short: "Reason over a request, or start an interactive session without one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "print the result record as JSON")
	cmd.Flags().StringVar(&opts.hint, "hint", "", "item hint used for retrieval instead of the query")
	cmd.Flags().StringSliceVar(&opts.asked, "asked", nil, "discriminator ids already asked")
	cmd.Flags().StringVar(&opts.category, "category", "", "category for the listing fallback")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "reload the fixture catalog when it changes")
	return cmd
}

func runQuery(cmd *cobra.Command, opts *queryOptions, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.openEmbedder(ctx); err != nil {
		return err
	}
	if err := a.openGraph(ctx); err != nil {
		return err
	}

	if opts.watch {
		if a.fixture == nil {
			return fmt.Errorf("--watch needs a fixture catalog")
		}
		go func() {
			if err := a.fixture.Watch(ctx); err != nil {
				slog.ErrorContext(ctx, "fixture watch stopped", "error", err)
			}
		}()
	}

	env := reasoning.NewEnv(a.graph, a.embedder, a.cfg.Reasoning)
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		req := reasoning.Request{
			Query:    args[0],
			ItemHint: opts.hint,
			Asked:    opts.asked,
			Category: opts.category,
		}
		result, err := reasoning.Process(ctx, env, req)
		if err != nil {
			return err
		}
		return render(out, result, opts.jsonOutput)
	}

	return interactive(ctx, env, cmd.InOrStdin(), out, opts)
}

// interactive reads one request per line. The discriminators shown so far
// are passed back as asked, so each turn moves to a new question; ":reset"
// forgets them.
func interactive(ctx context.Context, env reasoning.Env, in io.Reader, out io.Writer, opts *queryOptions) error {
	fmt.Fprintln(out, banner)
	fmt.Fprintln(out, "\nEnter a request (:reset clears asked questions, :quit exits).")

	asked := append([]string(nil), opts.asked...)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\n> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case ":quit", ":q":
			return nil
		case ":reset":
			asked = asked[:0]
			fmt.Fprintln(out, "asked questions cleared")
			continue
		}

		result, err := reasoning.Process(ctx, env, reasoning.Request{
			Query:    line,
			ItemHint: opts.hint,
			Asked:    asked,
			Category: opts.category,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		if err := render(out, result, opts.jsonOutput); err != nil {
			return err
		}
		if result.Discriminator != nil {
			asked = append(asked, result.Discriminator.ID)
		}
	}
}

func render(w io.Writer, result *model.ReasoningResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(w, "contexts (%s):", result.DetectionSource)
	if len(result.DetectedContexts) == 0 {
		fmt.Fprint(w, " none")
	}
	for _, c := range result.DetectedContexts {
		fmt.Fprintf(w, " %s (%.2f)", c.Name, c.Score)
	}
	fmt.Fprintln(w)

	for _, c := range result.ActiveConstraints {
		fmt.Fprintf(w, "  [%s] %s %s %s  (%s)\n", c.Severity, c.TargetKey, c.Operator, c.RequiredValue, c.SourceContext)
	}

	fmt.Fprintf(w, "\nvalid items (%d):\n", len(result.ValidItems))
	for _, it := range result.ValidItems {
		fmt.Fprintf(w, "  %-14s %s\n", it.ID, it.Name)
	}
	if len(result.RejectedItems) > 0 {
		fmt.Fprintf(w, "rejected (%d):\n", len(result.RejectedItems))
		for _, r := range result.RejectedItems {
			fmt.Fprintf(w, "  %-14s %s\n", r.Item.ID, r.Violation.Message)
		}
	}

	if result.NeedsClarification && result.Discriminator != nil {
		fmt.Fprintf(w, "\n? %s\n", result.Discriminator.Question)
		for _, o := range result.Discriminator.Options {
			fmt.Fprintf(w, "  - %s\n", o.Label)
		}
	}

	for _, r := range result.DetectedRisks {
		fmt.Fprintf(w, "\nrisk [%s] %s (%s, p=%.2f)", r.Severity, r.Name, r.SourceContext, r.Probability)
	}
	for _, m := range result.Mitigations {
		fmt.Fprintf(w, "\n  mitigated by %s: %s", m.ItemID, m.Description)
	}
	if len(result.DetectedRisks) > 0 {
		fmt.Fprintln(w)
	}

	if len(result.TriggeredStrategies) > 0 {
		fmt.Fprintln(w, "\nstrategies:")
		for _, s := range result.TriggeredStrategies {
			fmt.Fprintf(w, "  %-14s %s (%s)\n", s.Kind, s.Name, s.TriggeredBy)
		}
	}

	fmt.Fprintln(w, "\ntrace:")
	for _, s := range result.Trace {
		fmt.Fprintf(w, "  %d. %-22s %-9s %s\n", s.Step, s.Name, s.Status, s.Summary)
	}
	return nil
}
