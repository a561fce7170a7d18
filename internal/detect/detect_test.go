package detect

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBotChallengeRequiresMarkup(t *testing.T) {
	// Phrase alone must not classify: a blog post about Cloudflare walls is
	// not itself a wall.
	sig := Signals{
		Title:           "How 'checking your browser' pages work",
		BodyText:        "Many sites show a checking your browser interstitial before content loads.",
		ChallengeMarkup: false,
	}
	assert.False(t, IsBotChallenge(sig))

	sig.ChallengeMarkup = true
	assert.True(t, IsBotChallenge(sig))
}

func TestIsBotChallengeRequiresPhrase(t *testing.T) {
	sig := Signals{
		Title:           "Welcome",
		BodyText:        "Ordinary page content with a captcha widget in the signup form.",
		ChallengeMarkup: true,
	}
	assert.False(t, IsBotChallenge(sig))
}

func TestIsErrorPageForbidden(t *testing.T) {
	sig := Signals{
		URL:      "https://example.com/pricing",
		Title:    "Access Denied",
		BodyText: "403 Forbidden",
	}
	assert.True(t, IsErrorPage(sig))
}

func TestIsErrorPageShortBodyWithErrorTitle(t *testing.T) {
	sig := Signals{
		Title:    "Error",
		BodyText: "Something went wrong.",
	}
	assert.True(t, IsErrorPage(sig))
}

func TestIsErrorPageShortBodyNeutralTitle(t *testing.T) {
	sig := Signals{
		Title:    "Acme — Sign in",
		BodyText: "Welcome back.",
	}
	assert.False(t, IsErrorPage(sig))
}

func TestIsErrorPageHealthyPage(t *testing.T) {
	sig := Signals{
		URL:      "https://example.com/features",
		Title:    "Acme — Features",
		BodyText: strings.Repeat("Our product helps teams ship faster. ", 20),
	}
	assert.False(t, IsErrorPage(sig))
}

func TestIsErrorPageChallengeIsError(t *testing.T) {
	sig := Signals{
		Title:           "Just a moment...",
		BodyText:        "Checking your browser before accessing example.com",
		ChallengeMarkup: true,
	}
	assert.True(t, IsErrorPage(sig))
}
