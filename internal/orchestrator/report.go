package orchestrator

import (
	"fmt"
	"time"
)

// Report is the outcome of one task.
type Report struct {
	TaskID string      `json:"task_id"`
	Task   string      `json:"task"`
	Final  State       `json:"final"`
	Reason AbortReason `json:"reason,omitempty"`
	// Detail is the abort message surfaced to the observer.
	Detail         string        `json:"detail,omitempty"`
	Attempts       int           `json:"attempts"`
	PlanningPhases int           `json:"planning_phases"`
	Trace          []Transition  `json:"trace"`
	Duration       time.Duration `json:"duration"`
}

// Succeeded reports whether the task ran to completion.
func (r Report) Succeeded() bool { return r.Final == StateCompleted }

// Summary renders the one line shown when the task ends.
func (r Report) Summary() string {
	if r.Succeeded() {
		return fmt.Sprintf("Task complete after %d attempt(s) in %s.", r.Attempts, r.Duration.Round(time.Millisecond))
	}
	return fmt.Sprintf("Task aborted (%s) after %d attempt(s): %s", r.Reason, r.Attempts, r.Detail)
}

// Visited reports whether the run ever entered s.
func (r Report) Visited(s State) bool {
	for _, t := range r.Trace {
		if t.To == s {
			return true
		}
	}
	return false
}
