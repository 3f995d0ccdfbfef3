// File: cmd/run_test.go
package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pathwright/api/schemas"
	"github.com/xkilldash9x/pathwright/internal/config"
	"github.com/xkilldash9x/pathwright/internal/mocks"
	"github.com/xkilldash9x/pathwright/internal/orchestrator"
	"github.com/xkilldash9x/pathwright/internal/service"
)

// runnerFunc adapts a function to taskRunner.
type runnerFunc func(ctx context.Context, taskID, task string, obs schemas.Observer) orchestrator.Report

func (f runnerFunc) Run(ctx context.Context, taskID, task string, obs schemas.Observer) orchestrator.Report {
	return f(ctx, taskID, task, obs)
}

func noObserver(string) schemas.Observer { return schemas.ObserverFunc(func(string) {}) }

func completed(taskID, task string) orchestrator.Report {
	return orchestrator.Report{TaskID: taskID, Task: task, Final: orchestrator.StateCompleted, Attempts: 1}
}

func TestRunTasks(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	t.Run("AllComplete", func(t *testing.T) {
		var out bytes.Buffer
		runner := runnerFunc(func(_ context.Context, id, task string, _ schemas.Observer) orchestrator.Report {
			return completed(id, task)
		})

		err := runTasks(ctx, runner, noObserver, []string{"open example.com", "search for gophers"}, runOptions{Concurrency: 2}, &out, logger)
		require.NoError(t, err)
		assert.Contains(t, out.String(), "open example.com")
		assert.Contains(t, out.String(), "search for gophers")
		assert.Contains(t, out.String(), "Task complete after 1 attempt(s)")
	})

	t.Run("AbortedTasksFailTheCommand", func(t *testing.T) {
		var out bytes.Buffer
		runner := runnerFunc(func(_ context.Context, id, task string, _ schemas.Observer) orchestrator.Report {
			if task == "bad" {
				return orchestrator.Report{TaskID: id, Task: task, Final: orchestrator.StateAborted,
					Reason: orchestrator.ReasonPlanInvalid, Detail: "no plan", Attempts: 1}
			}
			return completed(id, task)
		})

		err := runTasks(ctx, runner, noObserver, []string{"good", "bad", "good"}, runOptions{Concurrency: 1}, &out, logger)
		require.Error(t, err)
		assert.Equal(t, "1 of 3 task(s) aborted", err.Error())
		assert.Contains(t, out.String(), "Task aborted (PlanInvalid) after 1 attempt(s): no plan")
	})

	t.Run("ReportsKeepInputOrder", func(t *testing.T) {
		var out bytes.Buffer
		runner := runnerFunc(func(_ context.Context, id, task string, _ schemas.Observer) orchestrator.Report {
			if task == "slow" {
				time.Sleep(50 * time.Millisecond)
			}
			return completed(id, task)
		})

		require.NoError(t, runTasks(ctx, runner, noObserver, []string{"slow", "fast"}, runOptions{Concurrency: 2, JSON: true}, &out, logger))

		var reports []orchestrator.Report
		require.NoError(t, json.Unmarshal(out.Bytes(), &reports))
		require.Len(t, reports, 2)
		assert.Equal(t, "slow", reports[0].Task)
		assert.Equal(t, "fast", reports[1].Task)
		assert.NotEqual(t, reports[0].TaskID, reports[1].TaskID)
	})

	t.Run("ConcurrencyIsBounded", func(t *testing.T) {
		var running, peak atomic.Int32
		runner := runnerFunc(func(_ context.Context, id, task string, _ schemas.Observer) orchestrator.Report {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
			return completed(id, task)
		})

		tasks := []string{"a", "b", "c", "d", "e", "f"}
		require.NoError(t, runTasks(ctx, runner, noObserver, tasks, runOptions{Concurrency: 2}, &bytes.Buffer{}, logger))
		assert.LessOrEqual(t, peak.Load(), int32(2))
	})

	t.Run("TimeoutBoundsEachTask", func(t *testing.T) {
		runner := runnerFunc(func(ctx context.Context, id, task string, _ schemas.Observer) orchestrator.Report {
			deadline, ok := ctx.Deadline()
			assert.True(t, ok, "each task should carry a deadline")
			assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
			return completed(id, task)
		})
		require.NoError(t, runTasks(ctx, runner, noObserver, []string{"a"}, runOptions{Timeout: time.Minute}, &bytes.Buffer{}, logger))
	})

	t.Run("ObserverIsKeyedByTaskID", func(t *testing.T) {
		var mu sync.Mutex
		seen := map[string]string{}
		observe := func(taskID string) schemas.Observer {
			return schemas.ObserverFunc(func(msg string) {
				mu.Lock()
				defer mu.Unlock()
				seen[taskID] = msg
			})
		}
		runner := runnerFunc(func(_ context.Context, id, task string, obs schemas.Observer) orchestrator.Report {
			obs.Emit(task)
			return completed(id, task)
		})

		require.NoError(t, runTasks(ctx, runner, observe, []string{"one", "two"}, runOptions{Concurrency: 2}, &bytes.Buffer{}, logger))
		mu.Lock()
		defer mu.Unlock()
		require.Len(t, seen, 2)
		var messages []string
		for id, msg := range seen {
			assert.NotEmpty(t, id)
			messages = append(messages, msg)
		}
		assert.ElementsMatch(t, []string{"one", "two"}, messages)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		runner := runnerFunc(func(ctx context.Context, id, task string, _ schemas.Observer) orchestrator.Report {
			return orchestrator.Report{TaskID: id, Task: task, Final: orchestrator.StateAborted, Reason: orchestrator.ReasonCanceled}
		})
		err := runTasks(canceled, runner, noObserver, []string{"a"}, runOptions{}, &bytes.Buffer{}, logger)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestReadTaskFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.txt")
	content := "# smoke tests\nopen example.com\n\n   search for gophers  \n#skip me\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	tasks, err := readTaskFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"open example.com", "search for gophers"}, tasks)

	_, err = readTaskFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

// commitFunc adapts a function to orchestrator.Committer.
type commitFunc func(ctx context.Context, intent, strategy string) (schemas.AddResult, error)

func (f commitFunc) Commit(ctx context.Context, intent, strategy string) (schemas.AddResult, error) {
	return f(ctx, intent, strategy)
}

func TestRunCmd(t *testing.T) {
	t.Run("NoTasks", func(t *testing.T) {
		_, err := executeCommand(t, nil, "run")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least one task is required")
	})

	t.Run("FactoryFailure", func(t *testing.T) {
		factory := new(MockComponentFactory)
		factoryErr := errors.New("no api key")
		factory.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil, factoryErr)

		_, err := executeCommand(t, factory, "run", "open example.com")
		require.Error(t, err)
		assert.ErrorIs(t, err, factoryErr)
		assert.Contains(t, err.Error(), "failed to initialize components")
		factory.AssertExpectations(t)
	})

	t.Run("EmptyPlanCompletes", func(t *testing.T) {
		planner := new(mocks.MockPlanner)
		planner.On("Plan", mock.Anything, "open example.com").Return(schemas.Plan{}, nil)
		actuator := new(mocks.MockActuator)
		actuator.On("Close", mock.Anything).Return(nil)
		actuators := new(mocks.MockActuatorFactory)
		actuators.On("NewActuator", mock.Anything).Return(actuator, nil)

		orch, err := orchestrator.New(orchestrator.Dependencies{
			Planner:   planner,
			Actuators: actuators,
			Suggester: new(mocks.MockSuggester),
			Committer: commitFunc(func(context.Context, string, string) (schemas.AddResult, error) {
				return schemas.Added, nil
			}),
			Learner: new(mocks.MockLearner),
		}, orchestrator.Config{MaxAttempts: 3}, zap.NewNop())
		require.NoError(t, err)

		factory := new(MockComponentFactory)
		factory.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(&service.Components{Orchestrator: orch}, nil)

		out, err := executeCommand(t, factory, "run", "open example.com")
		require.NoError(t, err)
		assert.Contains(t, out, "Planning (attempt 1/3)...")
		assert.Contains(t, out, "Completed")
		assert.Contains(t, out, "open example.com")

		factory.AssertExpectations(t)
		planner.AssertExpectations(t)
		actuator.AssertExpectations(t)
	})

	t.Run("FlagsOverrideEngineConfig", func(t *testing.T) {
		factory := new(MockComponentFactory)
		factory.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("stop"))

		_, _ = executeCommand(t, factory, "run", "--concurrency", "7", "--timeout", "90s", "--provider", "openai", "task")

		require.Len(t, factory.Calls, 1)
		cfg := factory.Calls[0].Arguments.Get(1).(*config.Config)
		assert.Equal(t, 7, cfg.Engine.WorkerConcurrency)
		assert.Equal(t, 90*time.Second, cfg.Engine.DefaultTaskTimeout)
		assert.Equal(t, config.ProviderOpenAI, cfg.LLM.Provider)
	})
}
