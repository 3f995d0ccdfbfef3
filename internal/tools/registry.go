// Package tools holds the tool surface a plan is executed against: the
// registry that validates planner output and the built-in browser tools.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/xkilldash9x/pathwright/api/schemas"
)

// Arg describes one named argument of a tool. All arguments are strings.
type Arg struct {
	Name        string
	Required    bool
	Description string
}

// Spec is a tool's public signature.
type Spec struct {
	Name        string
	Description string
	Args        []Arg
}

// Signature renders the spec the way it is shown to the planner, e.g.
// "perform_search(text, search_box_intent?)".
func (s Spec) Signature() string {
	names := make([]string, 0, len(s.Args))
	for _, a := range s.Args {
		if a.Required {
			names = append(names, a.Name)
		} else {
			names = append(names, a.Name+"?")
		}
	}
	return fmt.Sprintf("%s(%s)", s.Name, strings.Join(names, ", "))
}

// Handler runs a tool with validated arguments. A classified failure is
// returned as a ToolResult; a non-nil error is a fault.
type Handler func(ctx context.Context, env *Env, args Args) (schemas.ToolResult, error)

// Tool pairs a spec with its handler.
type Tool struct {
	Spec
	Run Handler
}

// Args are validated call arguments.
type Args map[string]string

// Get returns the argument value or def when it was omitted or blank.
func (a Args) Get(name, def string) string {
	if v, ok := a[name]; ok && strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

// Registry holds the tools a plan may call.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Names must be unique.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" || t.Run == nil {
		return fmt.Errorf("tool must have a name and a handler")
	}
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %q already registered", t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// Lookup finds a tool by name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Specs returns every registered spec sorted by name.
func (r *Registry) Specs() []Spec {
	specs := make([]Spec, 0, len(r.tools))
	for _, t := range r.tools {
		specs = append(specs, t.Spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Names returns every registered tool name sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Bind resolves call against the registry and validates its arguments.
// Unknown tools wrap schemas.ErrToolUnresolved; unknown, missing or
// non-scalar arguments wrap schemas.ErrInvalidArguments.
func (r *Registry) Bind(call schemas.ToolCall) (Tool, Args, error) {
	t, ok := r.tools[call.Name]
	if !ok {
		return Tool{}, nil, fmt.Errorf("%w: %q", schemas.ErrToolUnresolved, call.Name)
	}

	known := make(map[string]Arg, len(t.Args))
	for _, a := range t.Args {
		known[a.Name] = a
	}

	args := make(Args, len(call.Args))
	for name, raw := range call.Args {
		if _, ok := known[name]; !ok {
			return Tool{}, nil, fmt.Errorf("%w: %s does not take %q", schemas.ErrInvalidArguments, t.Name, name)
		}
		value, err := scalarString(raw)
		if err != nil {
			return Tool{}, nil, fmt.Errorf("%w: %s.%s: %v", schemas.ErrInvalidArguments, t.Name, name, err)
		}
		args[name] = value
	}
	for _, a := range t.Args {
		if !a.Required {
			continue
		}
		if v, ok := args[a.Name]; !ok || strings.TrimSpace(v) == "" {
			return Tool{}, nil, fmt.Errorf("%w: %s requires %q", schemas.ErrInvalidArguments, t.Name, a.Name)
		}
	}
	return t, args, nil
}

func scalarString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case nil:
		return "", fmt.Errorf("value is null")
	default:
		return "", fmt.Errorf("unsupported value of type %T", v)
	}
}
