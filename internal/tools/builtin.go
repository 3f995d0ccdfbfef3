package tools

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pathwright/api/schemas"
	"github.com/xkilldash9x/pathwright/internal/browser"
	"github.com/xkilldash9x/pathwright/internal/llmutil"
	"github.com/xkilldash9x/pathwright/internal/resolver"
)

// Tool names.
const (
	NavigateToURL  = "navigate_to_url"
	ClickElement   = "click_element"
	PerformSearch  = "perform_search"
	GetCurrentURL  = "get_current_url"
	TakeScreenshot = "take_screenshot"
	GetPageContent = "get_page_content"
)

// Options tune the built-in tools.
type Options struct {
	SearchBoxIntent    string
	SearchButtonIntent string
	ScreenshotDir      string
	// PageContentLimit caps what get_page_content reports back; zero means no cap.
	PageContentLimit int
}

// Env is what a handler runs against: the page of the current session and
// the resolver that maps intents onto it.
type Env struct {
	Page     schemas.Page
	Resolver *resolver.Resolver
	Options  Options
	Logger   *zap.Logger
	Now      func() time.Time
}

// resolve maps intent to an element. ok is false when the failure is
// classified; the caller reports result as is.
func (e *Env) resolve(ctx context.Context, intent string) (el *schemas.ElementHandle, result schemas.ToolResult, ok bool, err error) {
	el, err = e.Resolver.Resolve(ctx, e.Page, intent)
	if err != nil {
		if resolver.IsNotFound(err) {
			return nil, schemas.NotFoundFor(intent, "could not find element for %q: %v", intent, err), false, nil
		}
		return nil, schemas.ToolResult{}, false, err
	}
	return el, schemas.ToolResult{}, true, nil
}

// Builtins returns a registry holding the built-in browser tools.
func Builtins() *Registry {
	r := NewRegistry()
	for _, t := range []Tool{
		{
			Spec: Spec{
				Name:        NavigateToURL,
				Description: "Open a URL in the browser.",
				Args:        []Arg{{Name: "url", Required: true, Description: "absolute URL to open"}},
			},
			Run: navigateToURL,
		},
		{
			Spec: Spec{
				Name:        ClickElement,
				Description: "Click the element described by a semantic intent such as 'login button'.",
				Args:        []Arg{{Name: "intent", Required: true, Description: "what the element is for"}},
			},
			Run: clickElement,
		},
		{
			Spec: Spec{
				Name:        PerformSearch,
				Description: "Type text into the search box and submit it.",
				Args: []Arg{
					{Name: "text", Required: true, Description: "the search query"},
					{Name: "search_box_intent", Description: "intent of the input, default 'search box'"},
					{Name: "search_button_intent", Description: "intent of the submit button, default 'search button'"},
				},
			},
			Run: performSearch,
		},
		{
			Spec: Spec{Name: GetCurrentURL, Description: "Report the URL of the current page."},
			Run:  getCurrentURL,
		},
		{
			Spec: Spec{
				Name:        TakeScreenshot,
				Description: "Save a screenshot of the current page.",
				Args:        []Arg{{Name: "filename", Description: "file name for the PNG"}},
			},
			Run: takeScreenshot,
		},
		{
			Spec: Spec{Name: GetPageContent, Description: "Read the HTML of the current page."},
			Run:  getPageContent,
		},
	} {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

func navigateToURL(ctx context.Context, env *Env, args Args) (schemas.ToolResult, error) {
	url := args["url"]
	if err := env.Page.Navigate(ctx, url); err != nil {
		return schemas.ToolResult{}, err
	}
	return schemas.Succeeded("Navigated to %s", url), nil
}

func clickElement(ctx context.Context, env *Env, args Args) (schemas.ToolResult, error) {
	intent := args["intent"]
	el, result, ok, err := env.resolve(ctx, intent)
	if !ok {
		return result, err
	}
	if err := env.Page.Click(ctx, el); err != nil {
		return schemas.ToolResult{}, fmt.Errorf("failed to click %q: %w", intent, err)
	}
	return schemas.Succeeded("Clicked %q", intent), nil
}

func performSearch(ctx context.Context, env *Env, args Args) (schemas.ToolResult, error) {
	text := args["text"]
	boxIntent := args.Get("search_box_intent", env.Options.SearchBoxIntent)
	buttonIntent := args.Get("search_button_intent", env.Options.SearchButtonIntent)

	box, result, ok, err := env.resolve(ctx, boxIntent)
	if !ok {
		return result, err
	}
	if err := env.Page.Type(ctx, box, text); err != nil {
		return schemas.ToolResult{}, fmt.Errorf("failed to type into %q: %w", boxIntent, err)
	}

	before, err := env.Page.CurrentURL(ctx)
	if err != nil {
		return schemas.ToolResult{}, err
	}

	button, _, ok, err := env.resolve(ctx, buttonIntent)
	if err != nil {
		return schemas.ToolResult{}, err
	}
	if ok {
		if err := env.Page.Click(ctx, button); err != nil {
			env.Logger.Debug("Search button click failed; submitting with Enter.", zap.String("intent", buttonIntent), zap.Error(err))
			if err := env.Page.PressEnter(ctx, box); err != nil {
				return schemas.ToolResult{}, fmt.Errorf("failed to submit search: %w", err)
			}
		}
	} else {
		env.Logger.Debug("No search button resolved; submitting with Enter.", zap.String("intent", buttonIntent))
		if err := env.Page.PressEnter(ctx, box); err != nil {
			return schemas.ToolResult{}, fmt.Errorf("failed to submit search: %w", err)
		}
	}

	after, err := env.Page.CurrentURL(ctx)
	if err != nil {
		return schemas.ToolResult{}, err
	}
	if after == before {
		return schemas.NotFoundFor(buttonIntent, "search for %q did not leave %s", text, before), nil
	}
	return schemas.Succeeded("Searched for %q", text), nil
}

func getCurrentURL(ctx context.Context, env *Env, _ Args) (schemas.ToolResult, error) {
	url, err := env.Page.CurrentURL(ctx)
	if err != nil {
		return schemas.ToolResult{}, err
	}
	return schemas.Succeeded("Current URL: %s", url), nil
}

func takeScreenshot(ctx context.Context, env *Env, args Args) (schemas.ToolResult, error) {
	name := args.Get("filename", fmt.Sprintf("screenshot_%s.png", env.Now().Format("20060102_150405")))
	png, err := env.Page.Screenshot(ctx)
	if err != nil {
		return schemas.ToolResult{}, err
	}
	path, err := browser.WriteCapture(env.Options.ScreenshotDir, name, png)
	if err != nil {
		return schemas.ToolResult{}, err
	}
	return schemas.Succeeded("Screenshot saved to %s", path), nil
}

func getPageContent(ctx context.Context, env *Env, _ Args) (schemas.ToolResult, error) {
	content, err := env.Page.Content(ctx)
	if err != nil {
		return schemas.ToolResult{}, err
	}
	if limit := env.Options.PageContentLimit; limit > 0 {
		content = llmutil.Truncate(content, limit)
	}
	return schemas.Succeeded("%s", content), nil
}
