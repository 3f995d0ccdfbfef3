// File: cmd/run.go
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/pathwright/api/schemas"
	"github.com/xkilldash9x/pathwright/internal/observability"
	"github.com/xkilldash9x/pathwright/internal/observer"
	"github.com/xkilldash9x/pathwright/internal/orchestrator"
	"github.com/xkilldash9x/pathwright/internal/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// taskRunner executes one task. *orchestrator.Orchestrator implements it.
type taskRunner interface {
	Run(ctx context.Context, taskID, task string, observer schemas.Observer) orchestrator.Report
}

type runOptions struct {
	Concurrency int
	Timeout     time.Duration
	JSON        bool
}

func newRunCmd(factory service.ComponentFactory) *cobra.Command {
	var taskFile string
	var followFile string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run <task>...",
		Short: "Runs one or more natural language tasks in the browser",
		Long: `Runs each task through the planning and self-healing loop. Tasks run
concurrently up to --concurrency. Strategies verified while healing are
written back to the knowledge store.`,
		Example: `  pathwright run "go to example.com and search for gophers"
  pathwright run --file tasks.txt --concurrency 4
  pathwright run --follow queue.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			tasks := append([]string{}, args...)
			if taskFile != "" {
				fromFile, err := readTaskFile(taskFile)
				if err != nil {
					return err
				}
				tasks = append(tasks, fromFile...)
			}
			if len(tasks) == 0 && followFile == "" {
				return fmt.Errorf("at least one task is required")
			}

			// With --json, stdout carries only the reports.
			progress := cmd.OutOrStdout()
			if asJSON {
				progress = cmd.ErrOrStderr()
			}

			components, err := factory.Create(cmd.Context(), cfg, logger, observer.WriterSink(progress))
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Shutdown()

			observe := func(taskID string) schemas.Observer { return components.Observe(taskID) }
			opts := runOptions{
				Concurrency: cfg.Engine.WorkerConcurrency,
				Timeout:     cfg.Engine.DefaultTaskTimeout,
				JSON:        asJSON,
			}
			if followFile == "" {
				return runTasks(cmd.Context(), components.Orchestrator, observe, tasks, opts, cmd.OutOrStdout(), logger)
			}

			lines, stop, err := tailTaskFile(followFile, logger)
			if err != nil {
				return err
			}
			defer stop()
			return followTasks(cmd.Context(), components.Orchestrator, observe, prependTasks(cmd.Context(), tasks, lines), opts, cmd.OutOrStdout(), logger)
		},
	}

	cmd.Flags().StringVarP(&taskFile, "file", "f", "", "read additional tasks from a file, one per line")
	cmd.Flags().StringVar(&followFile, "follow", "", "keep running, taking each line appended to this file as a new task")
	cmd.Flags().IntP("concurrency", "j", 0, "number of tasks run at once")
	cmd.Flags().Duration("timeout", 0, "upper bound on a single task")
	cmd.Flags().String("ws-addr", "", "serve progress events over websocket on this address")
	cmd.Flags().String("provider", "", "LLM provider (gemini, openai)")
	cmd.Flags().String("model", "", "LLM model name")
	cmd.Flags().Bool("headless", true, "run the browser without a window")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the task reports as JSON")
	return cmd
}

// runTasks runs every task, at most opts.Concurrency at a time, and prints a
// report for each once all have finished.
func runTasks(ctx context.Context, runner taskRunner, observe func(taskID string) schemas.Observer, tasks []string, opts runOptions, out io.Writer, logger *zap.Logger) error {
	reports := make([]orchestrator.Report, len(tasks))

	var g errgroup.Group
	g.SetLimit(max(1, opts.Concurrency))
	for i, task := range tasks {
		g.Go(func() error {
			reports[i] = runOne(ctx, runner, observe, task, opts.Timeout, logger)
			return nil
		})
	}
	_ = g.Wait()

	if err := printReports(out, reports, opts.JSON); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	failed := 0
	for _, r := range reports {
		if !r.Succeeded() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d task(s) aborted", failed, len(reports))
	}
	return nil
}

// runOne runs a single task under its own ID and timeout.
func runOne(ctx context.Context, runner taskRunner, observe func(taskID string) schemas.Observer, task string, timeout time.Duration, logger *zap.Logger) orchestrator.Report {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	taskID := uuid.NewString()
	logger.Info("Starting task.", zap.String("task_id", taskID), zap.String("task", task))
	report := runner.Run(ctx, taskID, task, observe(taskID))
	logger.Info("Task finished.",
		zap.String("task_id", taskID),
		zap.String("final", string(report.Final)),
		zap.String("reason", string(report.Reason)),
		zap.Int("attempts", report.Attempts))
	return report
}

func printReports(out io.Writer, reports []orchestrator.Report, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(reports, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode reports: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	fmt.Fprintln(out)
	for _, r := range reports {
		if err := printReport(out, r, false); err != nil {
			return err
		}
	}
	return nil
}

// readTaskFile returns the non-empty lines of path, skipping # comments.
func readTaskFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open task file: %w", err)
	}
	defer f.Close()

	var tasks []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tasks = append(tasks, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read task file: %w", err)
	}
	return tasks, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
