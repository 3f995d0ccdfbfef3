// internal/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pathwright/api/schemas"
	"github.com/xkilldash9x/pathwright/internal/knowledge"
	"github.com/xkilldash9x/pathwright/internal/mocks"
	"github.com/xkilldash9x/pathwright/internal/observability"
)

const (
	task          = "log in to the shop"
	page          = "<html><body><form id='auth'><button class='btn-login'>Log in</button></form></body></html>"
	verifyTimeout = 3 * time.Second
)

var (
	loginStep  = schemas.ToolCall{Name: "click_element", Args: map[string]any{"intent": "login"}}
	loginPlan  = schemas.Plan{loginStep}
	loginMiss  = schemas.NotFoundFor("login", "could not find element for %q", "login")
	clickedOK  = schemas.Succeeded("Clicked %q", "login")
	liveHandle = &schemas.ElementHandle{Strategy: "#login-btn", Origin: "shop.example.com"}
)

// commitFunc adapts a function to the Committer interface.
type commitFunc func(ctx context.Context, intent, strategy string) (schemas.AddResult, error)

func (f commitFunc) Commit(ctx context.Context, intent, strategy string) (schemas.AddResult, error) {
	return f(ctx, intent, strategy)
}

// completingObserver records lines and the final completion line separately.
type completingObserver struct {
	mocks.RecordingObserver
	final string
}

func (c *completingObserver) Complete(message string) { c.final = message }

type harness struct {
	planner   *mocks.MockPlanner
	factory   *mocks.MockActuatorFactory
	suggester *mocks.MockSuggester
	learner   *mocks.MockLearner
	store     *knowledge.FileStore
	committer Committer
	observer  *mocks.RecordingObserver
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := observability.GetLogger()
	store, err := knowledge.NewFileStore(filepath.Join(t.TempDir(), "knowledge.json"), logger)
	require.NoError(t, err)
	return &harness{
		planner:   new(mocks.MockPlanner),
		factory:   new(mocks.MockActuatorFactory),
		suggester: new(mocks.MockSuggester),
		learner:   new(mocks.MockLearner),
		store:     store,
		committer: knowledge.NewGateway(store, nil, logger),
		observer:  &mocks.RecordingObserver{},
	}
}

func (h *harness) orchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	o, err := New(Dependencies{
		Planner:   h.planner,
		Actuators: h.factory,
		Suggester: h.suggester,
		Committer: h.committer,
		Learner:   h.learner,
	}, Config{MaxAttempts: 3, VerifyTimeout: verifyTimeout, MinPageContent: 20}, observability.GetLogger())
	require.NoError(t, err)
	return o
}

func (h *harness) run(t *testing.T) Report {
	t.Helper()
	return h.orchestrator(t).Run(context.Background(), "task-1", task, h.observer)
}

// session queues an actuator for the next attempt. Close is always expected.
func (h *harness) session() *mocks.MockActuator {
	act := new(mocks.MockActuator)
	act.On("Close", mock.Anything).Return(nil).Once()
	h.factory.On("NewActuator", mock.Anything).Return(act, nil).Once()
	return act
}

func (h *harness) assertAll(t *testing.T, acts ...*mocks.MockActuator) {
	t.Helper()
	h.planner.AssertExpectations(t)
	h.factory.AssertExpectations(t)
	h.suggester.AssertExpectations(t)
	h.learner.AssertExpectations(t)
	for _, a := range acts {
		a.AssertExpectations(t)
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Dependencies{}, Config{}, observability.GetLogger())
	assert.Error(t, err)
}

func TestRun_CompletesPlan(t *testing.T) {
	h := newHarness(t)
	plan := schemas.Plan{
		{Name: "navigate_to_url", Args: map[string]any{"url": "https://shop.example.com"}},
		loginStep,
	}
	h.planner.On("Plan", mock.Anything, task).Return(plan, nil).Once()
	act := h.session()
	act.On("Invoke", mock.Anything, plan[0]).Return(schemas.Succeeded("Navigated"), nil).Once()
	act.On("Invoke", mock.Anything, plan[1]).Return(clickedOK, nil).Once()

	report := h.run(t)

	assert.Equal(t, StateCompleted, report.Final)
	assert.Equal(t, ReasonNone, report.Reason)
	assert.Equal(t, 1, report.Attempts)
	assert.Equal(t, 1, report.PlanningPhases)
	assert.Equal(t, "task-1", report.TaskID)
	assert.True(t, report.Succeeded())
	h.assertAll(t, act)

	msgs := h.observer.Messages()
	require.NotEmpty(t, msgs)
	assert.True(t, strings.HasPrefix(msgs[len(msgs)-1], "Task complete"), msgs[len(msgs)-1])
}

func TestRun_SelfHealsAndCommits(t *testing.T) {
	h := newHarness(t)
	h.planner.On("Plan", mock.Anything, task).Return(loginPlan, nil).Twice()

	first := h.session()
	first.On("Invoke", mock.Anything, loginStep).Return(loginMiss, nil).Once()
	first.On("IsAlive", mock.Anything).Return(true).Once()
	first.On("CapturePage", mock.Anything).Return(page, nil).Once()
	first.On("Locate", mock.Anything, "#login-btn", verifyTimeout).Return(liveHandle, nil).Once()
	h.suggester.On("Suggest", mock.Anything, "login", task, page).Return("  #login-btn ", nil).Once()

	second := h.session()
	second.On("Invoke", mock.Anything, loginStep).Return(clickedOK, nil).Once()

	report := h.run(t)

	assert.Equal(t, StateCompleted, report.Final)
	assert.Equal(t, 2, report.Attempts)
	assert.Equal(t, 2, report.PlanningPhases)
	assert.True(t, report.Visited(StateCommitting))
	assert.False(t, report.Visited(StateDeepLearning))
	h.assertAll(t, first, second)

	got, err := h.store.Get(context.Background(), "login")
	require.NoError(t, err)
	assert.Equal(t, []string{"#login-btn"}, got)
}

// An unverifiable suggestion falls through to learning the whole page, and
// the retry succeeds with what was learned.
func TestRun_LoginDeepLearning(t *testing.T) {
	h := newHarness(t)
	h.planner.On("Plan", mock.Anything, task).Return(loginPlan, nil).Twice()

	first := h.session()
	first.On("Invoke", mock.Anything, loginStep).Return(loginMiss, nil).Once()
	first.On("IsAlive", mock.Anything).Return(true).Once()
	first.On("CapturePage", mock.Anything).Return(page, nil).Once()
	first.On("Locate", mock.Anything, "#bogus", verifyTimeout).Return(nil, nil).Once()
	h.suggester.On("Suggest", mock.Anything, "login", task, page).Return("#bogus", nil).Once()
	h.learner.On("LearnFromPage", mock.Anything, first).Return(2, nil).Once()

	second := h.session()
	second.On("Invoke", mock.Anything, loginStep).Return(clickedOK, nil).Once()

	report := h.run(t)

	assert.Equal(t, StateCompleted, report.Final)
	assert.Equal(t, 2, report.PlanningPhases)
	assert.True(t, report.Visited(StateDeepLearning))
	assert.False(t, report.Visited(StateCommitting))
	h.assertAll(t, first, second)

	// Nothing was committed inline.
	got, err := h.store.Get(context.Background(), "login")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRun_DeepLearningFailureStillRetries(t *testing.T) {
	h := newHarness(t)
	h.planner.On("Plan", mock.Anything, task).Return(loginPlan, nil).Twice()

	first := h.session()
	first.On("Invoke", mock.Anything, loginStep).Return(loginMiss, nil).Once()
	first.On("IsAlive", mock.Anything).Return(true).Once()
	first.On("CapturePage", mock.Anything).Return(page, nil).Once()
	first.On("Locate", mock.Anything, "#bogus", verifyTimeout).Return(nil, errors.New("invalid selector")).Once()
	h.suggester.On("Suggest", mock.Anything, "login", task, page).Return("#bogus", nil).Once()
	h.learner.On("LearnFromPage", mock.Anything, first).Return(0, errors.New("discovery failed")).Once()

	second := h.session()
	second.On("Invoke", mock.Anything, loginStep).Return(clickedOK, nil).Once()

	report := h.run(t)

	assert.Equal(t, StateCompleted, report.Final)
	h.assertAll(t, first, second)
}

func TestRun_UnresponsiveEveryAttempt(t *testing.T) {
	h := newHarness(t)
	h.planner.On("Plan", mock.Anything, task).Return(loginPlan, nil).Times(3)

	var acts []*mocks.MockActuator
	for i := 0; i < 3; i++ {
		act := h.session()
		act.On("Invoke", mock.Anything, loginStep).Return(schemas.Unresponsive("target closed"), nil).Once()
		acts = append(acts, act)
	}

	report := h.run(t)

	assert.Equal(t, StateAborted, report.Final)
	assert.Equal(t, ReasonMaxAttemptsExceeded, report.Reason)
	assert.Equal(t, 3, report.Attempts)
	assert.Equal(t, 3, report.PlanningPhases)
	h.planner.AssertNumberOfCalls(t, "Plan", 3)
	h.assertAll(t, acts...)
}

// Every recovery path shares the same attempt budget.
func TestRun_PlanningPhasesAreBounded(t *testing.T) {
	h := newHarness(t)
	_, err := h.store.Add(context.Background(), "login", "#login-btn")
	require.NoError(t, err)
	h.planner.On("Plan", mock.Anything, task).Return(loginPlan, nil).Times(3)
	h.suggester.On("Suggest", mock.Anything, "login", task, page).Return("#login-btn", nil).Times(2)
	h.learner.On("LearnFromPage", mock.Anything, mock.Anything).Return(0, nil).Once()

	// Attempt 1: verified but already known.
	a1 := h.session()
	a1.On("Invoke", mock.Anything, loginStep).Return(loginMiss, nil).Once()
	a1.On("IsAlive", mock.Anything).Return(true).Once()
	a1.On("CapturePage", mock.Anything).Return(page, nil).Once()
	a1.On("Locate", mock.Anything, "#login-btn", verifyTimeout).Return(liveHandle, nil).Once()
	// Attempt 2: browser died during diagnosis.
	a2 := h.session()
	a2.On("Invoke", mock.Anything, loginStep).Return(loginMiss, nil).Once()
	a2.On("IsAlive", mock.Anything).Return(false).Once()
	// Attempt 3: verification fails, deep learning finds nothing.
	a3 := h.session()
	a3.On("Invoke", mock.Anything, loginStep).Return(loginMiss, nil).Once()
	a3.On("IsAlive", mock.Anything).Return(true).Once()
	a3.On("CapturePage", mock.Anything).Return(page, nil).Once()
	a3.On("Locate", mock.Anything, "#login-btn", verifyTimeout).Return(nil, nil).Once()

	report := h.run(t)

	assert.Equal(t, ReasonMaxAttemptsExceeded, report.Reason)
	assert.Equal(t, 3, report.PlanningPhases)
	h.assertAll(t, a1, a2, a3)

	got, err := h.store.Get(context.Background(), "login")
	require.NoError(t, err)
	assert.Equal(t, []string{"#login-btn"}, got)
}

func TestRun_PlanInvalid(t *testing.T) {
	h := newHarness(t)
	h.planner.On("Plan", mock.Anything, task).Return(nil, fmt.Errorf("%w: no JSON", schemas.ErrPlanInvalid)).Once()

	report := h.run(t)

	assert.Equal(t, StateAborted, report.Final)
	assert.Equal(t, ReasonPlanInvalid, report.Reason)
	assert.Equal(t, 1, report.PlanningPhases)
	h.factory.AssertNotCalled(t, "NewActuator", mock.Anything)
	assert.Contains(t, h.observer.Messages(), report.Detail)
}

func TestRun_SkipsUnresolvedSteps(t *testing.T) {
	h := newHarness(t)
	bogus := schemas.ToolCall{Name: "teleport", Args: map[string]any{}}
	badArgs := schemas.ToolCall{Name: "click_element", Args: map[string]any{}}
	plan := schemas.Plan{bogus, badArgs, loginStep}
	h.planner.On("Plan", mock.Anything, task).Return(plan, nil).Once()
	act := h.session()
	act.On("Invoke", mock.Anything, bogus).Return(schemas.ToolResult{}, fmt.Errorf("%w: %q", schemas.ErrToolUnresolved, "teleport")).Once()
	act.On("Invoke", mock.Anything, badArgs).Return(schemas.ToolResult{}, fmt.Errorf("%w: missing intent", schemas.ErrInvalidArguments)).Once()
	act.On("Invoke", mock.Anything, loginStep).Return(clickedOK, nil).Once()

	report := h.run(t)

	assert.Equal(t, StateCompleted, report.Final)
	h.assertAll(t, act)
}

func TestRun_StepError(t *testing.T) {
	h := newHarness(t)
	h.planner.On("Plan", mock.Anything, task).Return(loginPlan, nil).Once()
	act := h.session()
	act.On("Invoke", mock.Anything, loginStep).Return(schemas.ToolResult{}, errors.New("click_element failed: node detached")).Once()

	report := h.run(t)

	assert.Equal(t, ReasonStepError, report.Reason)
	assert.Contains(t, report.Detail, "node detached")
	h.assertAll(t, act)
}

func TestRun_NoCandidate(t *testing.T) {
	tests := []struct {
		name    string
		capture func(*mocks.MockActuator)
		suggest func(*mocks.MockSuggester)
	}{
		{
			name: "page capture fails",
			capture: func(a *mocks.MockActuator) {
				a.On("CapturePage", mock.Anything).Return("", errors.New("no document")).Once()
			},
		},
		{
			name: "page too small",
			capture: func(a *mocks.MockActuator) {
				a.On("CapturePage", mock.Anything).Return("<html/>", nil).Once()
			},
		},
		{
			name: "oracle error",
			capture: func(a *mocks.MockActuator) {
				a.On("CapturePage", mock.Anything).Return(page, nil).Once()
			},
			suggest: func(s *mocks.MockSuggester) {
				s.On("Suggest", mock.Anything, "login", task, page).Return("", errors.New("quota")).Once()
			},
		},
		{
			name: "suggestion too short",
			capture: func(a *mocks.MockActuator) {
				a.On("CapturePage", mock.Anything).Return(page, nil).Once()
			},
			suggest: func(s *mocks.MockSuggester) {
				s.On("Suggest", mock.Anything, "login", task, page).Return(" a ", nil).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.planner.On("Plan", mock.Anything, task).Return(loginPlan, nil).Once()
			act := h.session()
			act.On("Invoke", mock.Anything, loginStep).Return(loginMiss, nil).Once()
			act.On("IsAlive", mock.Anything).Return(true).Once()
			tt.capture(act)
			if tt.suggest != nil {
				tt.suggest(h.suggester)
			}

			report := h.run(t)

			assert.Equal(t, StateAborted, report.Final)
			assert.Equal(t, ReasonNoCandidate, report.Reason)
			assert.Equal(t, 1, report.PlanningPhases)
			h.assertAll(t, act)
		})
	}
}

func TestRun_CommitFailed(t *testing.T) {
	h := newHarness(t)
	h.committer = commitFunc(func(context.Context, string, string) (schemas.AddResult, error) {
		return schemas.AddFailed, errors.New("disk full")
	})
	h.planner.On("Plan", mock.Anything, task).Return(loginPlan, nil).Once()
	act := h.session()
	act.On("Invoke", mock.Anything, loginStep).Return(loginMiss, nil).Once()
	act.On("IsAlive", mock.Anything).Return(true).Once()
	act.On("CapturePage", mock.Anything).Return(page, nil).Once()
	act.On("Locate", mock.Anything, "#login-btn", verifyTimeout).Return(liveHandle, nil).Once()
	h.suggester.On("Suggest", mock.Anything, "login", task, page).Return("#login-btn", nil).Once()

	report := h.run(t)

	assert.Equal(t, ReasonCommitFailed, report.Reason)
	assert.Contains(t, report.Detail, "disk full")
	h.assertAll(t, act)
}

func TestRun_NotFoundWithoutIntent(t *testing.T) {
	h := newHarness(t)
	h.planner.On("Plan", mock.Anything, task).Return(loginPlan, nil).Once()
	act := h.session()
	act.On("Invoke", mock.Anything, loginStep).Return(schemas.ToolResult{Status: schemas.StatusNotFound}, nil).Once()

	report := h.run(t)

	assert.Equal(t, ReasonStepError, report.Reason)
	h.assertAll(t, act)
}

func TestRun_Canceled(t *testing.T) {
	t.Run("before planning", func(t *testing.T) {
		h := newHarness(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		report := h.orchestrator(t).Run(ctx, "", task, h.observer)

		assert.Equal(t, ReasonCanceled, report.Reason)
		assert.Zero(t, report.PlanningPhases)
		assert.NotEmpty(t, report.TaskID)
		h.planner.AssertNotCalled(t, "Plan", mock.Anything, mock.Anything)
	})

	t.Run("mid attempt still tears the session down", func(t *testing.T) {
		h := newHarness(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		h.planner.On("Plan", mock.Anything, task).Return(loginPlan, nil).Once()
		act := h.session()
		act.On("Invoke", mock.Anything, loginStep).Run(func(mock.Arguments) { cancel() }).
			Return(schemas.ToolResult{}, context.Canceled).Once()

		report := h.orchestrator(t).Run(ctx, "task-2", task, h.observer)

		assert.Equal(t, ReasonCanceled, report.Reason)
		h.assertAll(t, act)
	})
}

func TestRun_CompletionGoesToCompleter(t *testing.T) {
	h := newHarness(t)
	h.planner.On("Plan", mock.Anything, task).Return(schemas.Plan{}, nil).Once()
	act := h.session()
	obs := &completingObserver{}

	report := h.orchestrator(t).Run(context.Background(), "task-3", task, obs)

	assert.Equal(t, StateCompleted, report.Final)
	assert.True(t, strings.HasPrefix(obs.final, "Task complete"))
	for _, m := range obs.Messages() {
		assert.NotContains(t, m, "Task complete")
	}
	h.assertAll(t, act)
}

func TestReport_Summary(t *testing.T) {
	ok := Report{Final: StateCompleted, Attempts: 2, Duration: 1500 * time.Millisecond}
	assert.Equal(t, "Task complete after 2 attempt(s) in 1.5s.", ok.Summary())

	failed := Report{Final: StateAborted, Reason: ReasonNoCandidate, Attempts: 1, Detail: "nothing usable"}
	assert.Equal(t, "Task aborted (NoCandidate) after 1 attempt(s): nothing usable", failed.Summary())
}
