package schemas

import (
	"context"
	"time"
)

// -- Browser Interfaces --

// Page is the low-level browser surface the resolver and the built-in tools
// drive. Strategies are passed through untouched; the implementation decides
// how to evaluate them against the current document.
type Page interface {
	// Navigate loads the URL in the current tab.
	Navigate(ctx context.Context, url string) error
	// CurrentURL returns the URL of the document currently loaded.
	CurrentURL(ctx context.Context) (string, error)
	// Locate waits at most `wait` for the strategy to match a visible element.
	// A timeout returns (nil, nil); only genuine faults return an error.
	Locate(ctx context.Context, strategy string, wait time.Duration) (*ElementHandle, error)
	// ScrollIntoView centers the element in the viewport.
	ScrollIntoView(ctx context.Context, el *ElementHandle) error
	Click(ctx context.Context, el *ElementHandle) error
	Type(ctx context.Context, el *ElementHandle, text string) error
	PressEnter(ctx context.Context, el *ElementHandle) error
	// Content returns the serialized outer HTML of the document.
	Content(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	// Alive reports whether the underlying browser still answers.
	Alive(ctx context.Context) bool
	Close(ctx context.Context) error
}

// -- Collaborator Interfaces --

// Actuator executes tool calls against one browser session. Each orchestrator
// attempt owns exactly one Actuator and closes it on every exit path.
//
//go:generate mockery --name Actuator --output ../../internal/mocks --outpkg mocks
type Actuator interface {
	// Invoke runs one validated tool call. A classified failure is reported
	// through ToolResult.Status; a non-nil error is an uncaught fault that
	// aborts the attempt. ErrToolUnresolved and ErrInvalidArguments mark
	// calls that should be skipped.
	Invoke(ctx context.Context, call ToolCall) (ToolResult, error)
	// IsAlive reports whether the browser behind the session still responds.
	IsAlive(ctx context.Context) bool
	// CapturePage returns the full content of the current page.
	CapturePage(ctx context.Context) (string, error)
	// Locate checks whether the strategy matches an element within the wait.
	Locate(ctx context.Context, strategy string, wait time.Duration) (*ElementHandle, error)
	// Close tears the session down. Safe to call more than once.
	Close(ctx context.Context) error
}

// ActuatorFactory creates a fresh actuator session for one task attempt.
type ActuatorFactory interface {
	NewActuator(ctx context.Context) (Actuator, error)
}

// Planner turns a task description into an ordered plan of tool calls.
// Unusable output is reported with an error wrapping ErrPlanInvalid.
type Planner interface {
	Plan(ctx context.Context, task string) (Plan, error)
}

// Suggester proposes a single new strategy for an intent that failed to resolve.
type Suggester interface {
	Suggest(ctx context.Context, intent, task, pageContent string) (string, error)
}

// Discoverer extracts every actionable intent it can find on a page.
type Discoverer interface {
	Discover(ctx context.Context, pageContent string) (Findings, error)
}

// Reconciler merges raw findings into the vocabulary of intents that already
// exist, renaming or grouping where the meaning matches.
type Reconciler interface {
	Reconcile(ctx context.Context, existing []string, findings Findings) (Findings, error)
}

// Learner runs a bulk discovery and consolidation pass against the page
// currently loaded in the actuator and reports how many strategies were added.
type Learner interface {
	LearnFromPage(ctx context.Context, act Actuator) (int, error)
}

// Observer receives human readable progress lines. Emit must never block.
type Observer interface {
	Emit(message string)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(message string)

// Emit calls f(message).
func (f ObserverFunc) Emit(message string) { f(message) }

// -- LLM Schemas & Interface --

// ModelTier allows for selecting a large language model based on a preference
// for speed versus advanced capabilities.
type ModelTier string

const (
	TierFast     ModelTier = "fast"     // Prefers a faster, potentially less capable model.
	TierPowerful ModelTier = "powerful" // Prefers a more capable, potentially slower model.
)

// GenerationOptions provides detailed parameters to control the text generation
// process of the LLM, such as creativity (temperature) and output format.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`
	ForceJSONFormat bool    `json:"force_json_format"`
}

// GenerationRequest encapsulates a complete request to the LLM.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Tier         ModelTier         `json:"tier"`
	Options      GenerationOptions `json:"options"`
}

// LLMClient defines a standard interface for interacting with a Large Language
// Model, abstracting the specifics of the underlying provider.
type LLMClient interface {
	// Generate produces a text completion based on the provided request.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Close cleans up any resources held by the client.
	Close() error
}
