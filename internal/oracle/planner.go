// Package oracle implements the LLM-backed collaborators of the self-healing
// loop: the planner, the strategy suggester, bulk discovery and the
// reconciler that folds discoveries into the existing vocabulary.
package oracle

import (
	"context"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pathwright/api/schemas"
	"github.com/xkilldash9x/pathwright/internal/llmutil"
	"github.com/xkilldash9x/pathwright/internal/tools"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Options carries the generation settings shared by every oracle.
type Options struct {
	Temperature float64
	// ContentLimit caps how much cleaned page content goes into a prompt.
	ContentLimit int
}

// Planner asks the model for a JSON plan and parses it against the tool
// registry's signatures.
type Planner struct {
	client schemas.LLMClient
	specs  []tools.Spec
	opts   Options
	logger *zap.Logger
}

var _ schemas.Planner = (*Planner)(nil)

// NewPlanner creates a planner that offers the tools in registry.
func NewPlanner(client schemas.LLMClient, registry *tools.Registry, opts Options, logger *zap.Logger) *Planner {
	return &Planner{
		client: client,
		specs:  registry.Specs(),
		opts:   opts,
		logger: logger.Named("planner"),
	}
}

// Plan generates and parses a plan for task. Model failures and unparsable
// output both wrap schemas.ErrPlanInvalid.
func (p *Planner) Plan(ctx context.Context, task string) (schemas.Plan, error) {
	req := schemas.GenerationRequest{
		SystemPrompt: plannerSystem(p.specs),
		UserPrompt:   plannerUser(task),
		Tier:         schemas.TierPowerful,
		Options:      schemas.GenerationOptions{Temperature: p.opts.Temperature},
	}

	response, err := p.client.Generate(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: llm generation failed: %v", schemas.ErrPlanInvalid, err)
	}

	plan, err := ParsePlan(response)
	if err != nil {
		p.logger.Warn("Planner output could not be parsed.",
			zap.Error(err), zap.String("response", llmutil.Truncate(response, 500)))
		return nil, err
	}
	p.logger.Debug("Plan generated.", zap.Int("steps", len(plan)))
	return plan, nil
}

// ParsePlan reads a JSON array of steps. A step is either an object
// {"tool": "...", "args": {...}} or a call string such as
// "click_element(intent='login button')". A top level {"plan": [...]} wrapper
// is also accepted. Steps that cannot be read are dropped; the executor skips
// steps naming unknown tools anyway.
func ParsePlan(response string) (schemas.Plan, error) {
	payload := llmutil.ExtractJSON(response)

	var entries []any
	if strings.HasPrefix(payload, "{") {
		var wrapped struct {
			Plan []any `json:"plan"`
		}
		if err := json.Unmarshal([]byte(payload), &wrapped); err != nil || wrapped.Plan == nil {
			return nil, fmt.Errorf("%w: no JSON list of steps in response", schemas.ErrPlanInvalid)
		}
		entries = wrapped.Plan
	} else if err := json.Unmarshal([]byte(payload), &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", schemas.ErrPlanInvalid, err)
	}

	plan := make(schemas.Plan, 0, len(entries))
	for _, entry := range entries {
		call, ok := stepFrom(entry)
		if !ok {
			continue
		}
		plan = append(plan, call)
	}
	if len(entries) > 0 && len(plan) == 0 {
		return nil, fmt.Errorf("%w: none of the %d steps could be read", schemas.ErrPlanInvalid, len(entries))
	}
	return plan, nil
}

func stepFrom(entry any) (schemas.ToolCall, bool) {
	switch v := entry.(type) {
	case string:
		call, err := ParseCall(v)
		if err != nil {
			return schemas.ToolCall{}, false
		}
		return call, true
	case map[string]any:
		name, _ := v["tool"].(string)
		if name == "" {
			return schemas.ToolCall{}, false
		}
		call := schemas.ToolCall{Name: strings.TrimSpace(name), Args: map[string]any{}}
		if args, ok := v["args"].(map[string]any); ok {
			call.Args = args
		}
		return call, true
	default:
		return schemas.ToolCall{}, false
	}
}
