package orchestrator

// State is a node of the self-healing state machine.
type State string

const (
	StatePlanning      State = "Planning"
	StateExecuting     State = "Executing"
	StateDiagnosing    State = "Diagnosing"
	StateResolving     State = "Resolving"
	StateVerifying     State = "Verifying"
	StateCommitting    State = "Committing"
	StateDeepLearning  State = "DeepLearning"
	StateResetAndRetry State = "ResetAndRetry"
	StateCompleted     State = "Completed"
	StateAborted       State = "Aborted"
)

// Terminal reports whether the machine stops in s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted
}

// AbortReason explains an Aborted run.
type AbortReason string

const (
	ReasonNone                AbortReason = ""
	ReasonPlanInvalid         AbortReason = "PlanInvalid"
	ReasonNoCandidate         AbortReason = "NoCandidate"
	ReasonCommitFailed        AbortReason = "CommitFailed"
	ReasonMaxAttemptsExceeded AbortReason = "MaxAttemptsExceeded"
	ReasonStepError           AbortReason = "StepError"
	ReasonCanceled            AbortReason = "Canceled"
)

// Transition records one edge taken by the machine.
type Transition struct {
	Attempt int    `json:"attempt"`
	From    State  `json:"from"`
	To      State  `json:"to"`
	Step    int    `json:"step"`
	Note    string `json:"note,omitempty"`
}
