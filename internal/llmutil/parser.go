// internal/llmutil/parser.go
package llmutil

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// fencedBlockRegex captures the body of a markdown code fence with any
// language tag. \x60 is a backtick, which raw strings cannot hold.
var fencedBlockRegex = regexp.MustCompile("(?s)\x60\x60\x60[a-zA-Z]*\\s*(.*?)\\s*\x60\x60\x60")

// ParseJSONResponse parses an LLM response into T. It tolerates a markdown
// fence around the payload and conversational text before or after it.
func ParseJSONResponse[T any](response string) (*T, error) {
	payload := ExtractJSON(response)

	var result T
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal LLM JSON response: %w. Extracted JSON (truncated): %s", err, Truncate(payload, 500))
	}
	return &result, nil
}

// ExtractJSON returns the most plausible JSON object or array in response.
func ExtractJSON(response string) string {
	response = strings.TrimSpace(response)
	if m := fencedBlockRegex.FindStringSubmatch(response); len(m) > 1 {
		response = strings.TrimSpace(m[1])
	}
	if strings.HasPrefix(response, "{") || strings.HasPrefix(response, "[") {
		return response
	}

	// Take whichever structure opens first and span to its last closer.
	objStart, arrStart := strings.Index(response, "{"), strings.Index(response, "[")
	open, closer := objStart, "}"
	if arrStart != -1 && (objStart == -1 || arrStart < objStart) {
		open, closer = arrStart, "]"
	}
	if open == -1 {
		return response
	}
	if end := strings.LastIndex(response, closer); end > open {
		return response[open : end+1]
	}
	return response
}

// CleanStrategy strips the decoration models like to put around a single
// locator: code fences, backticks, surrounding quotes and whitespace.
func CleanStrategy(raw string) string {
	s := strings.TrimSpace(raw)
	if m := fencedBlockRegex.FindStringSubmatch(s); len(m) > 1 {
		s = m[1]
	}
	s = strings.Trim(strings.TrimSpace(s), "`")
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == s[len(s)-1] && (s[0] == '"' || s[0] == '\'') {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// Truncate shortens s to at most maxLen bytes without splitting a rune,
// appending "..." when something was cut.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
