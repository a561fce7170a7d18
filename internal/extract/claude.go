package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ClaudeProvider implements the Provider interface using Anthropic's Claude
type ClaudeProvider struct {
	client *anthropic.Client
	model  string
}

// NewClaudeProvider creates a new Claude provider
func NewClaudeProvider(model string) (*ClaudeProvider, error) {
	apiKey := os.Getenv("PROOFSHOT_ANTHROPIC_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("PROOFSHOT_ANTHROPIC_KEY or ANTHROPIC_API_KEY environment variable required")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_20250514)
	}

	return &ClaudeProvider{
		client: &client,
		model:  model,
	}, nil
}

// ExtractMessages asks Claude for quotable passages from the page text
func (p *ClaudeProvider) ExtractMessages(ctx context.Context, page PageContent, maxMessages int) ([]string, error) {
	userPrompt, err := buildUserPrompt(page, maxMessages)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("Claude API error: %w", err)
	}

	// Extract text content
	var responseText string
	for _, block := range resp.Content {
		if block.Type == "text" {
			responseText = block.Text
			break
		}
	}

	if responseText == "" {
		return nil, fmt.Errorf("empty response from Claude")
	}

	messages, err := parseMessagesJSON(responseText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Claude response as JSON: %w\nResponse: %s", err, responseText)
	}

	return capMessages(messages, maxMessages), nil
}

// parseMessagesJSON extracts and parses a JSON string array from a response
// that may contain surrounding text
func parseMessagesJSON(response string) ([]string, error) {
	// First try direct parsing
	var messages []string
	if err := json.Unmarshal([]byte(response), &messages); err == nil {
		return messages, nil
	}

	// Find JSON array in response (look for [ ... ])
	start := strings.Index(response, "[")
	if start == -1 {
		return nil, fmt.Errorf("no JSON array found in response")
	}

	// Find matching closing bracket
	depth := 0
	end := -1
	for i := start; i < len(response); i++ {
		switch response[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				end = i + 1
			}
		}
		if end != -1 {
			break
		}
	}

	if end == -1 {
		return nil, fmt.Errorf("no matching closing bracket found")
	}

	jsonStr := response[start:end]
	if err := json.Unmarshal([]byte(jsonStr), &messages); err != nil {
		return nil, fmt.Errorf("failed to parse extracted JSON: %w", err)
	}

	return messages, nil
}

// capMessages trims empties and enforces the requested maximum.
func capMessages(messages []string, maxMessages int) []string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		out = append(out, m)
		if maxMessages > 0 && len(out) >= maxMessages {
			break
		}
	}
	return out
}
