// File: cmd/follow.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/hpcloud/tail"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/pathwright/api/schemas"
	"github.com/xkilldash9x/pathwright/internal/orchestrator"
)

// tailTaskFile streams the lines appended to path after the call. The file
// may be rotated or created later. stop must be called to release the tailer.
func tailTaskFile(path string, logger *zap.Logger) (<-chan string, func(), error) {
	t, err := tail.TailFile(path, tail.Config{
		Follow:   true,
		ReOpen:   true,
		Poll:     true,
		Location: &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:   tail.DiscardingLogger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to follow task file: %w", err)
	}

	lines := make(chan string)
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		defer close(lines)
		for {
			select {
			case <-done:
				return
			case line, ok := <-t.Lines:
				if !ok {
					return
				}
				if line.Err != nil {
					logger.Warn("Error reading from task file", zap.Error(line.Err))
					continue
				}
				select {
				case lines <- line.Text:
				case <-done:
					return
				}
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			<-exited
			_ = t.Stop()
			t.Cleanup()
		})
	}
	return lines, stop, nil
}

// prependTasks yields tasks before everything read from lines.
func prependTasks(ctx context.Context, tasks []string, lines <-chan string) <-chan string {
	if len(tasks) == 0 {
		return lines
	}
	out := make(chan string)
	go func() {
		defer close(out)
		for _, task := range tasks {
			select {
			case out <- task:
			case <-ctx.Done():
				return
			}
		}
		for line := range lines {
			select {
			case out <- line:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// followTasks runs each task read from lines until lines closes or ctx is
// done. Reports are printed as tasks finish; with JSON each report is one
// line.
func followTasks(ctx context.Context, runner taskRunner, observe func(taskID string) schemas.Observer, lines <-chan string, opts runOptions, out io.Writer, logger *zap.Logger) error {
	var g errgroup.Group
	g.SetLimit(max(1, opts.Concurrency))
	var mu sync.Mutex

	logger.Info("Waiting for tasks.")
	for {
		select {
		case <-ctx.Done():
			_ = g.Wait()
			return nil
		case line, ok := <-lines:
			if !ok {
				_ = g.Wait()
				return nil
			}
			task := strings.TrimSpace(line)
			if task == "" || strings.HasPrefix(task, "#") {
				continue
			}
			g.Go(func() error {
				report := runOne(ctx, runner, observe, task, opts.Timeout, logger)
				mu.Lock()
				defer mu.Unlock()
				if err := printReport(out, report, opts.JSON); err != nil {
					logger.Warn("Failed to print report", zap.Error(err))
				}
				return nil
			})
		}
	}
}

func printReport(out io.Writer, r orchestrator.Report, asJSON bool) error {
	if asJSON {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	_, err := fmt.Fprintf(out, "%s  %-9s  %s\n          %s\n", shortID(r.TaskID), r.Final, r.Task, r.Summary())
	return err
}
