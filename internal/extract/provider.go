// Package extract asks a language model for short quotable passages on a
// page, feeding the auto capture mode.
package extract

import (
	"context"
	"fmt"
)

// PageContent is what the extractor sees of a page.
type PageContent struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Provider defines the interface for message extraction
type Provider interface {
	ExtractMessages(ctx context.Context, page PageContent, maxMessages int) ([]string, error)
}

// NewProvider creates a new extraction provider based on the provider name
func NewProvider(name, model string) (Provider, error) {
	switch name {
	case "claude", "anthropic":
		return NewClaudeProvider(model)
	case "openai", "gpt":
		return NewOpenAIProvider(model)
	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: claude, openai)", name)
	}
}
