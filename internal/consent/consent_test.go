package consent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchesProvider(t *testing.T) {
	assert.True(t, matchesProvider("https://cdn.cookielaw.org/scripttemplates/otsdkstub.js"))
	assert.True(t, matchesProvider("https://consent.cookiebot.com/uc.js"))
	assert.True(t, matchesProvider("https://app.usercentrics.eu/browser-ui/latest/loader.js"))
	assert.False(t, matchesProvider("https://example.com/assets/app.js"))
	assert.False(t, matchesProvider("https://example.com/blog/cookies-recipe"))
}

func TestBlockedResourceTypes(t *testing.T) {
	// Scripts, xhr/fetch, and sub-frame documents carry consent machinery;
	// images and stylesheets are left alone even from matching hosts.
	assert.True(t, blockedResourceTypes["script"])
	assert.True(t, blockedResourceTypes["xhr"])
	assert.True(t, blockedResourceTypes["fetch"])
	assert.True(t, blockedResourceTypes["document"])
	assert.False(t, blockedResourceTypes["image"])
	assert.False(t, blockedResourceTypes["stylesheet"])
	assert.False(t, blockedResourceTypes["font"])
}

func TestSuppressionCSS(t *testing.T) {
	css := SuppressionCSS()

	assert.Contains(t, css, `[id*="cookie-banner"]`)
	assert.Contains(t, css, `[class*="consent-modal"]`)
	assert.Contains(t, css, "#onetrust-consent-sdk")
	assert.Contains(t, css, "display: none !important")
	// Scroll locks applied by overlays must be undone.
	assert.Contains(t, css, "overflow: auto !important")
}

func TestEngineStatsReset(t *testing.T) {
	e := NewEngine(Config{})
	e.blocked.Add(3)
	e.stats.StylesApplied = true
	e.stats.TargetStrategy = "main"

	e.Reset()
	s := e.Stats()
	assert.Equal(t, 0, s.BlockedRequests)
	assert.False(t, s.StylesApplied)
	assert.Empty(t, s.TargetStrategy)
}

func TestEngineStatsReadLiveBlockCount(t *testing.T) {
	e := NewEngine(Config{})
	e.Reset()
	e.blocked.Add(2)
	e.SetTargetStrategy("exact")

	s := e.Stats()
	assert.Equal(t, 2, s.BlockedRequests)
	assert.Equal(t, "exact", s.TargetStrategy)
}

func TestConsentStateTables(t *testing.T) {
	// The big four vendors must be present in both state tables.
	for _, key := range []string{"OptanonAlertBoxClosed", "CookieConsent", "euconsent-v2"} {
		_, inStorage := consentStorageKeys[key]
		_, inCookies := consentCookies[key]
		assert.True(t, inStorage, key)
		assert.True(t, inCookies, key)
	}
}

func TestDomainOf(t *testing.T) {
	assert.Equal(t, "www.example.com", domainOf("https://www.example.com/pricing?x=1"))
	assert.Equal(t, "", domainOf("://bad"))
}
