package extract

import (
	"encoding/json"
	"fmt"
)

const systemPrompt = `You are a content analyst. You receive the visible text of a web page and pick out short passages worth capturing as visual proof.

You will receive:
1. A JSON object with the page URL, title, and visible text
2. A maximum number of passages to return

Pick passages that are:
- Verbatim quotes from the page text (never paraphrase or summarize)
- Self-contained claims, offers, headlines, or statements (not navigation labels, button text, or boilerplate)
- Between roughly 4 and 25 words, so they can be located on the page

Respond ONLY with a JSON array of strings, no explanation or markdown.

Example output:
[
  "Trusted by over 40,000 teams worldwide",
  "Cancel anytime during your 14-day trial"
]

If the page has no suitable passages, return an empty array: []`

func buildUserPrompt(page PageContent, maxMessages int) (string, error) {
	pageJSON, err := json.MarshalIndent(page, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal page content: %w", err)
	}
	return fmt.Sprintf("Page:\n%s\n\nReturn at most %d passages.", pageJSON, maxMessages), nil
}
