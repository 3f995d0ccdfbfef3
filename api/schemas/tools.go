package schemas

import "fmt"

// ToolCall names a tool and the arguments to run it with.
type ToolCall struct {
	Name string         `json:"tool"`
	Args map[string]any `json:"args"`
}

func (c ToolCall) String() string {
	return fmt.Sprintf("%s(%v)", c.Name, c.Args)
}

// Plan is the ordered list of tool calls for one attempt. It is not modified
// once execution starts.
type Plan []ToolCall

// ToolStatus classifies the outcome of a tool invocation.
type ToolStatus string

const (
	StatusSuccess ToolStatus = "SUCCESS"
	// StatusNotFound means no known strategy located the element for Intent.
	StatusNotFound ToolStatus = "NOT_FOUND"
	// StatusUnresponsive means the browser stopped answering.
	StatusUnresponsive ToolStatus = "UNRESPONSIVE"
)

// ToolResult is what a tool reports back after running.
type ToolResult struct {
	Status  ToolStatus `json:"status"`
	Intent  string     `json:"intent,omitempty"`
	Message string     `json:"message"`
}

// Succeeded builds a success result.
func Succeeded(format string, args ...any) ToolResult {
	return ToolResult{Status: StatusSuccess, Message: fmt.Sprintf(format, args...)}
}

// NotFoundFor builds a classified resolution failure for the intent.
func NotFoundFor(intent, format string, args ...any) ToolResult {
	return ToolResult{Status: StatusNotFound, Intent: intent, Message: fmt.Sprintf(format, args...)}
}

// Unresponsive builds a result reporting a dead or disconnected browser.
func Unresponsive(format string, args ...any) ToolResult {
	return ToolResult{Status: StatusUnresponsive, Message: fmt.Sprintf(format, args...)}
}
