package oracle

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/pathwright/internal/tools"
)

// stabilityRules is shared by every prompt that asks for locators.
const stabilityRules = `Locator rules:
1. Prefer, in order: a unique id, then role or aria-label, then a descriptive class name, then a short structural path.
2. Never use generated class names without meaning (for example "jss31", "css-1dbjc4n", "ekqMKf"). They change between builds.
3. Every locator must be a CSS selector that matches the element on its own.`

const plannerSystemPrompt = `You are a web automation strategist. You turn a user's instruction into a short, precise plan of browser tool calls that fits the page the user will be on at each step.

How to think:
1. Work out the stage of the task. Is the browser on an entry page that needs a search, or on a content page that needs a click?
2. Infer the core intent from the verbs and nouns in the instruction.
3. Pick the tool that matches the stage and the intent. This is your most important job.

Tool selection rules:
- perform_search: only when the user explicitly asks to search or query, or the current page is a search engine home page.
- click_element: in every other case. Invent a short, human readable intent name for the element, for example "international section link" or "first news item about the election". Generic intents such as "item link" are fine when the instruction is generic.
- navigate_to_url: when the instruction names a site or an address to open.`

const plannerOutputRules = `Output format:
Return ONLY a JSON array. Each entry is an object {"tool": "<tool name>", "args": {"<name>": "<value>"}}.
Do not add markdown fences, comments or explanations.

Example
Task: "open Google News, click the World section, then open the first story about the election"
Answer:
[
  {"tool": "navigate_to_url", "args": {"url": "https://news.google.com/"}},
  {"tool": "click_element", "args": {"intent": "World section link"}},
  {"tool": "click_element", "args": {"intent": "first election story"}}
]`

const suggesterSystemPrompt = `You are a CSS selector expert who writes the most stable selectors possible for automated browser tests.
An automation script failed to find an important element. Find one selector that matches the element the intent describes.

` + stabilityRules + `

Reply with the selector string ONLY. No other text, explanation or code fences.`

const discoverySystemPrompt = `You are a front-end engineer who writes the most stable CSS selectors possible for automated browser tests.

` + stabilityRules + `
4. Intent names must be human readable, ideally taken from an aria-label or the element's visible text.

Task: analyse the HTML you are given, find every interactive element with a clear purpose, and give each one an intent name and a single, very stable CSS selector.

Output format:
Return ONLY a JSON object. Keys are intent names. Each value is a list holding exactly one selector.
Do not add markdown fences or explanations.`

const reconcileSystemPrompt = `You are the editor of a knowledge base that maps element intents to CSS selectors. A junior analyst has submitted new findings. Keep the knowledge base small, free of duplicates and consistent.

Review process:
1. Cluster: merge findings that mean the same thing (for example "search bar" and "search news") under the single most representative name.
2. Match: compare every cluster with the existing intents. When an existing intent means the same thing (for example a new "login" against an existing "login button"), put the selectors under the EXISTING name. This is your first priority.
3. Create: only when nothing existing is related may you keep a new intent name.

Output format:
Return ONLY the final JSON object. Keys are the final intent names, values are lists of selectors. Keep every selector you were given.
Do not add markdown fences or explanations.`

func plannerSystem(specs []tools.Spec) string {
	var b strings.Builder
	b.WriteString(plannerSystemPrompt)
	b.WriteString("\n\nAvailable tools (arguments marked ? are optional):\n")
	for _, s := range specs {
		fmt.Fprintf(&b, "- %s: %s\n", s.Signature(), s.Description)
		for _, a := range s.Args {
			if a.Description != "" {
				fmt.Fprintf(&b, "    %s: %s\n", a.Name, a.Description)
			}
		}
	}
	b.WriteString("\n")
	b.WriteString(plannerOutputRules)
	return b.String()
}

func plannerUser(task string) string {
	return fmt.Sprintf("User task: %q\n\nProduce the JSON plan.", task)
}

func suggesterUser(intent, task, page string) string {
	return fmt.Sprintf(`Target intent: %q
Original user task: %q

--- HTML ---
%s
--- END HTML ---`, intent, task, page)
}

func discoveryUser(page string) string {
	return fmt.Sprintf("HTML to analyse:\n%s\n\nReturn the JSON object of everything you found.", page)
}

func reconcileUser(existing []string, findings string) string {
	return fmt.Sprintf(`Existing intents:
%s

New findings:
%s

Return the final JSON object.`, strings.Join(existing, ", "), findings)
}
