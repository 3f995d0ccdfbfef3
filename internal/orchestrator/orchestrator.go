// File: internal/orchestrator/orchestrator.go
// Description: Runs one task through plan execution and the self-healing
// recovery loop. Every collaborator is injected through an interface.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pathwright/api/schemas"
	"github.com/xkilldash9x/pathwright/internal/config"
)

const (
	teardownTimeout = 10 * time.Second
	// minStrategyLen is the shortest suggestion treated as usable.
	minStrategyLen = 2
)

// Committer records a verified strategy. knowledge.Gateway implements it.
type Committer interface {
	Commit(ctx context.Context, intent, strategy string) (schemas.AddResult, error)
}

// completer is implemented by observers that mark the last line of a task.
type completer interface {
	Complete(message string)
}

// Dependencies are the collaborators a run needs.
type Dependencies struct {
	Planner   schemas.Planner
	Actuators schemas.ActuatorFactory
	Suggester schemas.Suggester
	Committer Committer
	Learner   schemas.Learner
}

// Config tunes the loop.
type Config struct {
	MaxAttempts    int
	VerifyTimeout  time.Duration
	StepDelay      time.Duration
	MinPageContent int
}

// NewConfig derives the loop settings from the application config.
func NewConfig(cfg *config.Config) Config {
	return Config{
		MaxAttempts:    config.MaxAttempts,
		VerifyTimeout:  cfg.Resolver.VerifyTimeout,
		StepDelay:      cfg.Orchestrator.StepDelay,
		MinPageContent: cfg.Orchestrator.MinPageContent,
	}
}

// Orchestrator executes tasks. It holds no per-task state and can run many
// tasks concurrently.
type Orchestrator struct {
	deps   Dependencies
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// New creates an Orchestrator.
func New(deps Dependencies, cfg Config, logger *zap.Logger) (*Orchestrator, error) {
	if deps.Planner == nil ||
		deps.Actuators == nil ||
		deps.Suggester == nil ||
		deps.Committer == nil ||
		deps.Learner == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = config.MaxAttempts
	}
	return &Orchestrator{
		deps:   deps,
		cfg:    cfg,
		logger: logger.Named("orchestrator"),
		now:    time.Now,
	}, nil
}

// Run drives task to Completed or Aborted and reports how it got there.
// observer may be nil.
func (o *Orchestrator) Run(ctx context.Context, taskID, task string, observer schemas.Observer) Report {
	if taskID == "" {
		taskID = uuid.NewString()
	}
	if observer == nil {
		observer = schemas.ObserverFunc(func(string) {})
	}

	r := &run{
		o:       o,
		task:    task,
		obs:     observer,
		log:     o.logger.With(zap.String("task_id", taskID)),
		state:   StatePlanning,
		attempt: 1,
		report:  Report{TaskID: taskID, Task: task},
	}
	start := o.now()
	r.log.Info("Task started.", zap.String("task", task))

	for !r.state.Terminal() {
		if err := ctx.Err(); err != nil {
			r.abort(ReasonCanceled, "task canceled: %v", err)
			break
		}
		r.step(ctx)
	}

	r.teardown(ctx)
	r.report.Final = r.state
	r.report.Attempts = min(r.attempt, o.cfg.MaxAttempts)
	r.report.Duration = o.now().Sub(start)

	summary := r.report.Summary()
	if c, ok := observer.(completer); ok {
		c.Complete(summary)
	} else {
		observer.Emit(summary)
	}
	r.log.Info("Task finished.",
		zap.String("final", string(r.report.Final)),
		zap.String("reason", string(r.report.Reason)),
		zap.Int("attempts", r.report.Attempts),
		zap.Int("planning_phases", r.report.PlanningPhases))
	return r.report
}

// run is the state of one task. It is confined to the goroutine calling Run.
type run struct {
	o    *Orchestrator
	task string
	obs  schemas.Observer
	log  *zap.Logger

	state   State
	attempt int
	report  Report

	// Per attempt.
	act       schemas.Actuator
	plan      schemas.Plan
	index     int
	intent    string
	candidate string
}

func (r *run) step(ctx context.Context) {
	switch r.state {
	case StatePlanning:
		r.planning(ctx)
	case StateExecuting:
		r.executing(ctx)
	case StateDiagnosing:
		r.diagnosing(ctx)
	case StateResolving:
		r.resolving(ctx)
	case StateVerifying:
		r.verifying(ctx)
	case StateCommitting:
		r.committing(ctx)
	case StateDeepLearning:
		r.deepLearning(ctx)
	case StateResetAndRetry:
		r.resetAndRetry(ctx)
	default:
		r.abort(ReasonStepError, "unknown state %q", r.state)
	}
}

func (r *run) to(next State, note string) {
	r.report.Trace = append(r.report.Trace, Transition{
		Attempt: r.attempt,
		From:    r.state,
		To:      next,
		Step:    r.index,
		Note:    note,
	})
	r.log.Debug("Transition.",
		zap.String("from", string(r.state)),
		zap.String("to", string(next)),
		zap.Int("attempt", r.attempt),
		zap.Int("step", r.index))
	r.state = next
}

func (r *run) abort(reason AbortReason, format string, args ...any) {
	detail := fmt.Sprintf(format, args...)
	r.report.Reason = reason
	r.report.Detail = detail
	r.obs.Emit(detail)
	r.log.Warn("Task aborted.", zap.String("reason", string(reason)), zap.String("detail", detail))
	r.to(StateAborted, string(reason))
}

// canceled aborts with Canceled when ctx is done and reports whether it did.
func (r *run) canceled(ctx context.Context) bool {
	if err := ctx.Err(); err != nil {
		r.abort(ReasonCanceled, "task canceled: %v", err)
		return true
	}
	return false
}

func (r *run) planning(ctx context.Context) {
	r.report.PlanningPhases++
	r.obs.Emit(fmt.Sprintf("Planning (attempt %d/%d)...", r.attempt, r.o.cfg.MaxAttempts))

	plan, err := r.o.deps.Planner.Plan(ctx, r.task)
	if err != nil {
		if r.canceled(ctx) {
			return
		}
		r.abort(ReasonPlanInvalid, "could not build a plan: %v", err)
		return
	}
	r.obs.Emit(fmt.Sprintf("Plan ready with %d step(s): %s", len(plan), describePlan(plan)))

	act, err := r.o.deps.Actuators.NewActuator(ctx)
	if err != nil {
		if r.canceled(ctx) {
			return
		}
		r.abort(ReasonStepError, "could not start a browser session: %v", err)
		return
	}

	r.act = act
	r.plan = plan
	r.index = 0
	r.intent = ""
	r.candidate = ""
	r.to(StateExecuting, "")
}

func (r *run) executing(ctx context.Context) {
	if r.index >= len(r.plan) {
		r.to(StateCompleted, "")
		return
	}

	call := r.plan[r.index]
	r.obs.Emit(fmt.Sprintf("Step %d/%d: %s", r.index+1, len(r.plan), call))

	result, err := r.act.Invoke(ctx, call)
	if err != nil {
		switch {
		case errors.Is(err, schemas.ErrToolUnresolved), errors.Is(err, schemas.ErrInvalidArguments):
			r.obs.Emit(fmt.Sprintf("Skipping step %d: %v", r.index+1, err))
			r.advance(ctx, "skipped")
		case r.canceled(ctx):
		default:
			r.abort(ReasonStepError, "step %d (%s) failed: %v", r.index+1, call.Name, err)
		}
		return
	}

	switch result.Status {
	case schemas.StatusSuccess:
		r.obs.Emit(fmt.Sprintf("Step %d result: %s", r.index+1, result.Message))
		r.advance(ctx, "")
	case schemas.StatusNotFound:
		if result.Intent == "" {
			r.abort(ReasonStepError, "step %d (%s) reported a missing element without an intent: %s", r.index+1, call.Name, result.Message)
			return
		}
		r.intent = result.Intent
		r.obs.Emit(fmt.Sprintf("Could not find %q. Checking the browser...", r.intent))
		r.to(StateDiagnosing, result.Intent)
	case schemas.StatusUnresponsive:
		r.obs.Emit(fmt.Sprintf("The browser stopped responding: %s", result.Message))
		r.to(StateResetAndRetry, "unresponsive")
	default:
		r.abort(ReasonStepError, "step %d (%s) returned unknown status %q", r.index+1, call.Name, result.Status)
	}
}

// advance moves to the next step, pausing between steps.
func (r *run) advance(ctx context.Context, note string) {
	r.index++
	if r.index < len(r.plan) && r.o.cfg.StepDelay > 0 {
		if err := sleepCtx(ctx, r.o.cfg.StepDelay); err != nil {
			r.canceled(ctx)
			return
		}
	}
	r.to(StateExecuting, note)
}

func (r *run) diagnosing(ctx context.Context) {
	if !r.act.IsAlive(ctx) {
		if r.canceled(ctx) {
			return
		}
		r.obs.Emit("The browser is not responding. Resetting the session.")
		r.to(StateResetAndRetry, "dead")
		return
	}
	r.obs.Emit("Browser is healthy. Asking for a new strategy...")
	r.to(StateResolving, "")
}

func (r *run) resolving(ctx context.Context) {
	page, err := r.act.CapturePage(ctx)
	if err != nil {
		if r.canceled(ctx) {
			return
		}
		r.abort(ReasonNoCandidate, "could not read the page to diagnose %q: %v", r.intent, err)
		return
	}
	if len(page) < r.o.cfg.MinPageContent {
		r.abort(ReasonNoCandidate, "the page is too small (%d bytes) to diagnose %q", len(page), r.intent)
		return
	}

	suggestion, err := r.o.deps.Suggester.Suggest(ctx, r.intent, r.task, page)
	if err != nil {
		if r.canceled(ctx) {
			return
		}
		r.abort(ReasonNoCandidate, "no strategy could be suggested for %q: %v", r.intent, err)
		return
	}
	suggestion = strings.TrimSpace(suggestion)
	if len([]rune(suggestion)) < minStrategyLen {
		r.abort(ReasonNoCandidate, "no usable strategy was suggested for %q", r.intent)
		return
	}

	r.candidate = suggestion
	r.obs.Emit(fmt.Sprintf("Suggested strategy for %q: %s", r.intent, suggestion))
	r.to(StateVerifying, suggestion)
}

func (r *run) verifying(ctx context.Context) {
	el, err := r.act.Locate(ctx, r.candidate, r.o.cfg.VerifyTimeout)
	if err != nil {
		if r.canceled(ctx) {
			return
		}
		r.log.Warn("Verification probe failed.", zap.String("strategy", r.candidate), zap.Error(err))
	}
	if el != nil {
		r.obs.Emit("Verified: the strategy matches an element on the page.")
		r.to(StateCommitting, "")
		return
	}
	r.obs.Emit(fmt.Sprintf("Verification failed: %s matches nothing. Learning the whole page instead.", r.candidate))
	r.to(StateDeepLearning, "")
}

func (r *run) committing(ctx context.Context) {
	result, err := r.o.deps.Committer.Commit(ctx, r.intent, r.candidate)
	if err != nil || result == schemas.AddFailed {
		if r.canceled(ctx) {
			return
		}
		r.abort(ReasonCommitFailed, "could not save strategy %s for %q: %v", r.candidate, r.intent, err)
		return
	}
	if result == schemas.AlreadyPresent {
		r.obs.Emit(fmt.Sprintf("Strategy for %q was already known. Retrying the task.", r.intent))
	} else {
		r.obs.Emit(fmt.Sprintf("Knowledge base learned a new strategy for %q. Retrying the task.", r.intent))
	}
	r.to(StateResetAndRetry, result.String())
}

func (r *run) deepLearning(ctx context.Context) {
	added, err := r.o.deps.Learner.LearnFromPage(ctx, r.act)
	switch {
	case err != nil:
		if r.canceled(ctx) {
			return
		}
		r.log.Warn("Deep learning failed.", zap.Error(err))
		r.obs.Emit(fmt.Sprintf("Page learning failed: %v. Retrying the task anyway.", err))
	case added > 0:
		r.obs.Emit(fmt.Sprintf("Learned %d new strategies. Retrying the task.", added))
	default:
		r.obs.Emit("Page learning found nothing new. Retrying the task.")
	}
	r.to(StateResetAndRetry, fmt.Sprintf("learned %d", added))
}

func (r *run) resetAndRetry(ctx context.Context) {
	r.teardown(ctx)
	r.attempt++
	if r.attempt > r.o.cfg.MaxAttempts {
		r.abort(ReasonMaxAttemptsExceeded, "giving up after %d attempts", r.o.cfg.MaxAttempts)
		return
	}
	r.to(StatePlanning, "")
}

// teardown closes the attempt's session even when ctx is already done.
func (r *run) teardown(ctx context.Context) {
	if r.act == nil {
		return
	}
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
	defer cancel()
	if err := r.act.Close(closeCtx); err != nil {
		r.log.Warn("Failed to close browser session.", zap.Error(err))
	}
	r.act = nil
}

func describePlan(plan schemas.Plan) string {
	steps := make([]string, len(plan))
	for i, c := range plan {
		steps[i] = c.String()
	}
	return strings.Join(steps, " -> ")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
