package llmutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type planEntry struct {
	Tool string            `json:"tool"`
	Args map[string]string `json:"args"`
}

func TestParseJSONResponse(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"bare array", `[{"tool":"navigate_to_url","args":{"url":"https://a.com"}}]`},
		{"json fence", "```json\n[{\"tool\":\"navigate_to_url\",\"args\":{\"url\":\"https://a.com\"}}]\n```"},
		{"untagged fence", "```\n[{\"tool\":\"navigate_to_url\",\"args\":{\"url\":\"https://a.com\"}}]\n```"},
		{"conversational", `Sure! Here is the plan: [{"tool":"navigate_to_url","args":{"url":"https://a.com"}}] Good luck.`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJSONResponse[[]planEntry](tt.response)
			require.NoError(t, err)
			require.Len(t, *got, 1)
			assert.Equal(t, "navigate_to_url", (*got)[0].Tool)
			assert.Equal(t, "https://a.com", (*got)[0].Args["url"])
		})
	}
}

func TestParseJSONResponse_Object(t *testing.T) {
	got, err := ParseJSONResponse[map[string][]string](`Found these: {"login": ["#login"], "search box": ["[name=q]"]}`)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"login": {"#login"}, "search box": {"[name=q]"}}, *got)
}

func TestParseJSONResponse_Invalid(t *testing.T) {
	_, err := ParseJSONResponse[[]planEntry]("I cannot help with that.")
	assert.ErrorContains(t, err, "failed to unmarshal LLM JSON response")
}

func TestCleanStrategy(t *testing.T) {
	tests := map[string]string{
		"  #login-btn  ":                   "#login-btn",
		"`#login-btn`":                     "#login-btn",
		"```css\n#login-btn\n```":          "#login-btn",
		"\"input[name='q']\"":              "input[name='q']",
		"'//button[text()=\"Go\"]'":        "//button[text()=\"Go\"]",
		"":                                 "",
		"``":                               "",
	}
	for in, want := range tests {
		assert.Equal(t, want, CleanStrategy(in), "input %q", in)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "ab...", Truncate("abcdef", 2))
	assert.Equal(t, "", Truncate("abc", 0))
	assert.Equal(t, "h...", Truncate("hé", 2), "never splits a rune")
}
