package consent

// blockedProviders are URL substrings of consent-management and tracking
// vendors whose scripts/frames are aborted by the network layer. Matched
// case-insensitively.
var blockedProviders = []string{
	"onetrust",
	"cookielaw.org",
	"cookiebot",
	"usercentrics",
	"trustarc",
	"truste.com",
	"quantcast",
	"didomi",
	"consensu.org",
	"sourcepoint",
	"sp-prod.net",
	"privacy-mgmt",
	"consentmanager",
	"cookieyes",
	"iubenda",
	"osano",
	"termly.io",
	"cookie-script.com",
	"cookiefirst",
	"complianz",
	"borlabs",
	"klaro",
	"google-analytics.com",
	"googletagmanager.com",
	"doubleclick.net",
	"hotjar",
	"segment.io",
	"segment.com",
}

// blockedResourceTypes are the CDP resource kinds a blocked provider URL is
// aborted for. Sub-frame documents carry the consent iframes.
var blockedResourceTypes = map[string]bool{
	"script":   true,
	"xhr":      true,
	"fetch":    true,
	"document": true,
}

// consentStorageKeys simulate "already consented" state for the major
// consent-management vendors. Written to localStorage before any page script
// runs.
var consentStorageKeys = map[string]string{
	"OptanonAlertBoxClosed":  "2020-01-01T00:00:00.000Z",
	"CookieConsent":          `{stamp:'-1',necessary:true,preferences:true,statistics:true,marketing:true,method:'explicit',ver:1}`,
	"cookieyes-consent":      "consentid:,consent:yes,action:yes",
	"uc_user_interaction":    "true",
	"didomi_token":           "accepted",
	"euconsent-v2":           "CP0AAAAAAAAAAAAAAAENAwCAAAAAAAAAAAAAAAAAAAAA",
	"klaro":                  `{"consent":true}`,
	"complianz_consent":      "allow",
	"moove_gdpr_popup":       `{"strict":"1","thirdparty":"1","advanced":"1"}`,
	"cmplz_banner-status":    "dismissed",
	"cookie_notice_accepted": "true",
}

// consentCookies are first-party cookies the major banners check before
// rendering. Set for the capture target's domain.
var consentCookies = map[string]string{
	"OptanonAlertBoxClosed":  "2020-01-01T00:00:00.000Z",
	"CookieConsent":          "yes",
	"cookieconsent_status":   "dismiss",
	"euconsent-v2":           "CP0AAAAAAAAAAAAAAAENAwCAAAAAAAAAAAAAAAAAAAAA",
	"cookie_notice_accepted": "true",
	"cookies_accepted":       "true",
	"gdpr_consent":           "accepted",
	"cc_cookie_accept":       "cc_cookie_accept",
}

// suppressionSelectors hide residual consent/overlay UI after load. Each is
// an id/class substring match; the stylesheet expands them into
// [id*=] / [class*=] rules.
var suppressionSelectors = []string{
	"cookie-banner",
	"cookie-consent",
	"cookie-notice",
	"cookie-popup",
	"cookie-bar",
	"cookie-law",
	"cookie-wall",
	"cookiebanner",
	"cookieconsent",
	"consent-banner",
	"consent-manager",
	"consent-modal",
	"consent-popup",
	"gdpr-banner",
	"gdpr-consent",
	"privacy-banner",
	"privacy-notice",
	"privacy-popup",
	"onetrust",
	"ot-sdk",
	"truste",
	"trustarc",
	"didomi",
	"usercentrics",
	"cookiebot",
	"CybotCookiebot",
	"qc-cmp2",
	"sp_message",
	"cmp-container",
	"cmp-overlay",
	"banner-overlay",
	"overlay-backdrop",
	"modal-backdrop",
}

// elementSuppressionIDs are exact ids of well-known consent roots.
var elementSuppressionIDs = []string{
	"onetrust-consent-sdk",
	"onetrust-banner-sdk",
	"CybotCookiebotDialog",
	"usercentrics-root",
	"didomi-host",
	"qc-cmp2-container",
	"truste-consent-track",
	"cookiescript_injected",
}
