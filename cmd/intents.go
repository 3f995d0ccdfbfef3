// File: cmd/intents.go
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/pathwright/internal/knowledge"
	"github.com/xkilldash9x/pathwright/internal/observability"
	"github.com/xkilldash9x/pathwright/internal/orchestrator"
	"github.com/xkilldash9x/pathwright/internal/service"
)

func newIntentsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "intents [intent]",
		Short: "Lists known intents, or the strategies recorded for one intent",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			store, cleanup, err := service.InitializeStore(cmd.Context(), cfg.Knowledge, logger)
			defer cleanup()
			if err != nil {
				return err
			}

			if len(args) == 1 {
				return showIntent(cmd.Context(), store, args[0], asJSON, cmd.OutOrStdout())
			}
			return listIntents(cmd.Context(), store, asJSON, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <intent> <strategy>",
		Short: "Records a strategy for an intent by hand",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			store, cleanup, err := service.InitializeStore(cmd.Context(), cfg.Knowledge, logger)
			defer cleanup()
			if err != nil {
				return err
			}

			return addStrategy(cmd.Context(), knowledge.NewGateway(store, nil, logger), args[0], args[1], cmd.OutOrStdout())
		},
	}
}

func listIntents(ctx context.Context, store knowledge.Store, asJSON bool, out io.Writer) error {
	intents, err := store.ListIntents(ctx)
	if err != nil {
		return fmt.Errorf("failed to list intents: %w", err)
	}

	if asJSON {
		kb := make(map[string][]string, len(intents))
		for _, intent := range intents {
			candidates, err := store.Get(ctx, intent)
			if err != nil {
				return fmt.Errorf("failed to read intent %q: %w", intent, err)
			}
			kb[intent] = candidates
		}
		return writeJSON(out, kb)
	}

	if len(intents) == 0 {
		fmt.Fprintln(out, "The knowledge base is empty.")
		return nil
	}
	for _, intent := range intents {
		candidates, err := store.Get(ctx, intent)
		if err != nil {
			return fmt.Errorf("failed to read intent %q: %w", intent, err)
		}
		fmt.Fprintf(out, "%-40s %d\n", intent, len(candidates))
	}
	return nil
}

func showIntent(ctx context.Context, store knowledge.Store, intent string, asJSON bool, out io.Writer) error {
	candidates, err := store.Get(ctx, intent)
	if err != nil {
		return fmt.Errorf("failed to read intent %q: %w", intent, err)
	}
	if len(candidates) == 0 {
		return fmt.Errorf("no strategies recorded for intent %q", intent)
	}

	if asJSON {
		return writeJSON(out, candidates)
	}
	for i, strategy := range candidates {
		fmt.Fprintf(out, "%2d. %s\n", i+1, strategy)
	}
	return nil
}

func addStrategy(ctx context.Context, committer orchestrator.Committer, intent, strategy string, out io.Writer) error {
	result, err := committer.Commit(ctx, intent, strategy)
	if err != nil {
		return fmt.Errorf("failed to record strategy: %w", err)
	}
	fmt.Fprintf(out, "%s: %q -> %q\n", result, intent, strategy)
	return nil
}

func writeJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
