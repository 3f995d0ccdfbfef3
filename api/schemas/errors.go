package schemas

import "errors"

var (
	// ErrPlanInvalid marks planner output that could not be parsed into a plan.
	ErrPlanInvalid = errors.New("plan invalid")
	// ErrToolUnresolved marks a tool call whose name is not registered.
	ErrToolUnresolved = errors.New("tool unresolved")
	// ErrInvalidArguments marks a tool call whose arguments do not match the
	// tool's signature.
	ErrInvalidArguments = errors.New("invalid tool arguments")
	// ErrNotFound is returned when no strategy locates the element for an intent.
	ErrNotFound = errors.New("element not found")
	// ErrSessionClosed is returned by a page or actuator used after Close.
	ErrSessionClosed = errors.New("session closed")
)
