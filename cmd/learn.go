// File: cmd/learn.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/pathwright/api/schemas"
	"github.com/xkilldash9x/pathwright/internal/observability"
	"github.com/xkilldash9x/pathwright/internal/observer"
	"github.com/xkilldash9x/pathwright/internal/service"
)

// urlLearner runs bulk discovery against a URL. *learning.Learner implements it.
type urlLearner interface {
	LearnFromURL(ctx context.Context, factory schemas.ActuatorFactory, url string) (int, error)
}

func newLearnCmd(factory service.ComponentFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "learn <url>...",
		Short: "Discovers strategies for the interactive elements of one or more pages",
		Long: `Opens each URL in a fresh browser session, asks the model for a selector
for every interactive element it can identify, and merges the findings into
the knowledge store.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			components, err := factory.Create(cmd.Context(), cfg, logger, observer.WriterSink(cmd.ErrOrStderr()))
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Shutdown()

			return runLearn(cmd.Context(), components.Learner, components.Actuators, args, cfg.Engine.WorkerConcurrency, cmd.OutOrStdout(), logger)
		},
	}
	cmd.Flags().IntP("concurrency", "j", 0, "number of pages learned at once")
	cmd.Flags().String("provider", "", "LLM provider (gemini, openai)")
	cmd.Flags().String("model", "", "LLM model name")
	cmd.Flags().Bool("headless", true, "run the browser without a window")
	return cmd
}

// runLearn learns every URL, at most concurrency at a time. A failing URL does
// not stop the others; the returned error lists every failure.
func runLearn(ctx context.Context, learner urlLearner, actuators schemas.ActuatorFactory, urls []string, concurrency int, out io.Writer, logger *zap.Logger) error {
	var (
		mu    sync.Mutex
		errs  []error
		total int
	)

	var g errgroup.Group
	g.SetLimit(max(1, concurrency))
	for _, raw := range urls {
		target := normalizeURL(raw)
		g.Go(func() error {
			added, err := learner.LearnFromURL(ctx, actuators, target)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warn("Learning failed.", zap.String("url", target), zap.Error(err))
				fmt.Fprintf(out, "%s: failed: %v\n", target, err)
				errs = append(errs, fmt.Errorf("%s: %w", target, err))
				return nil
			}
			total += added
			fmt.Fprintf(out, "%s: %d new strateg%s\n", target, added, plural(added, "y", "ies"))
			return nil
		})
	}
	_ = g.Wait()

	fmt.Fprintf(out, "Learned %d new strateg%s from %d page(s).\n", total, plural(total, "y", "ies"), len(urls)-len(errs))
	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.Join(errs...)
}

// normalizeURL adds https:// when the argument has no scheme.
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "://") {
		return raw
	}
	return "https://" + raw
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
