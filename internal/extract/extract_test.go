package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessagesJSONDirect(t *testing.T) {
	messages, err := parseMessagesJSON(`["first quote", "second quote"]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"first quote", "second quote"}, messages)
}

func TestParseMessagesJSONWithSurroundingText(t *testing.T) {
	response := "Here are the passages:\n[\"Cancel anytime during your trial\"]\nHope that helps!"
	messages, err := parseMessagesJSON(response)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cancel anytime during your trial"}, messages)
}

func TestParseMessagesJSONEmptyArray(t *testing.T) {
	messages, err := parseMessagesJSON("[]")
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestParseMessagesJSONNoArray(t *testing.T) {
	_, err := parseMessagesJSON("no suitable passages found")
	assert.Error(t, err)
}

func TestParseMessagesJSONUnclosedArray(t *testing.T) {
	_, err := parseMessagesJSON(`["truncated`)
	assert.Error(t, err)
}

func TestCapMessagesTrimsAndLimits(t *testing.T) {
	in := []string{" first ", "", "second", "third", "fourth"}
	assert.Equal(t, []string{"first", "second", "third"}, capMessages(in, 3))
}

func TestCapMessagesZeroMaxKeepsAll(t *testing.T) {
	in := []string{"a", "b"}
	assert.Equal(t, []string{"a", "b"}, capMessages(in, 0))
}

func TestNewProviderRejectsUnknown(t *testing.T) {
	_, err := NewProvider("bard", "")
	assert.ErrorContains(t, err, "unknown provider")
}

func TestBuildUserPromptMentionsLimit(t *testing.T) {
	prompt, err := buildUserPrompt(PageContent{URL: "https://example.com", Title: "Example", Text: "hello"}, 5)
	require.NoError(t, err)
	assert.Contains(t, prompt, "https://example.com")
	assert.Contains(t, prompt, "at most 5 passages")
}
