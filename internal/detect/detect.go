// Package detect classifies rendered pages as bot-challenge walls or error
// pages so the capture pipeline can refuse to screenshot them.
package detect

import (
	"strings"

	"github.com/go-rod/rod"
)

// Signals holds the page-level evidence the classifiers operate on. It is
// collected once per check so classification itself needs no live page.
type Signals struct {
	URL             string
	Title           string
	BodyText        string
	ChallengeMarkup bool // a known challenge wrapper element exists in the DOM
}

// challengePhrases are shown by anti-bot interstitials. A phrase match alone
// is not enough: pages merely discussing bot protection would false-positive,
// so IsBotChallenge also requires ChallengeMarkup.
var challengePhrases = []string{
	"checking your browser",
	"checking if the site connection is secure",
	"verify you are human",
	"verifying you are human",
	"just a moment",
	"attention required",
	"ddos protection by",
	"enable javascript and cookies to continue",
	"please complete the security check",
}

// challengeWrapperSelectors identify the DOM shells those interstitials render
// into. Queried in CollectSignals.
var challengeWrapperSelectors = []string{
	"#challenge-running",
	"#challenge-stage",
	"#challenge-form",
	"#cf-wrapper",
	".cf-browser-verification",
	"#cf-challenge-running",
	".g-recaptcha",
	"#captcha",
	"#px-captcha",
	".h-captcha",
}

var errorPhrases = []string{
	"access denied",
	"access to this page has been denied",
	"403 forbidden",
	"forbidden",
	"404 not found",
	"page not found",
	"this page isn't working",
	"this site can't be reached",
	"service unavailable",
	"too many requests",
}

var errorTitlePhrases = []string{
	"error",
	"denied",
	"forbidden",
	"not found",
	"unavailable",
	"blocked",
}

// minPlausibleBodyLen is the body-text length under which a page with an
// error-sounding title is treated as an error page.
const minPlausibleBodyLen = 200

// CollectSignals gathers classification evidence from the live page in a
// single evaluation.
func CollectSignals(page *rod.Page) (Signals, error) {
	res, err := page.Eval(`(selectors) => {
		let markup = false;
		for (const sel of selectors) {
			try {
				if (document.querySelector(sel)) { markup = true; break; }
			} catch (e) {}
		}
		return {
			url: window.location.href,
			title: document.title || '',
			bodyText: (document.body ? document.body.innerText : '').slice(0, 4000),
			challengeMarkup: markup,
		};
	}`, challengeWrapperSelectors)
	if err != nil {
		return Signals{}, err
	}

	return Signals{
		URL:             res.Value.Get("url").String(),
		Title:           res.Value.Get("title").String(),
		BodyText:        res.Value.Get("bodyText").String(),
		ChallengeMarkup: res.Value.Get("challengeMarkup").Bool(),
	}, nil
}

// IsBotChallenge reports whether the signals describe an anti-bot
// verification wall. Requires both a known phrase and a challenge wrapper
// element in the DOM.
func IsBotChallenge(sig Signals) bool {
	if !sig.ChallengeMarkup {
		return false
	}
	haystack := strings.ToLower(sig.Title + " " + sig.BodyText)
	for _, phrase := range challengePhrases {
		if strings.Contains(haystack, phrase) {
			return true
		}
	}
	return false
}

// IsErrorPage reports whether the page is a challenge wall, an access-denied
// or not-found page, or an implausibly empty page with an error-sounding
// title.
func IsErrorPage(sig Signals) bool {
	if IsBotChallenge(sig) {
		return true
	}

	title := strings.ToLower(sig.Title)
	body := strings.ToLower(sig.BodyText)
	pageURL := strings.ToLower(sig.URL)

	for _, phrase := range errorPhrases {
		if strings.Contains(title, phrase) || strings.Contains(body, phrase) || strings.Contains(pageURL, phrase) {
			return true
		}
	}

	if len(strings.TrimSpace(sig.BodyText)) < minPlausibleBodyLen {
		for _, phrase := range errorTitlePhrases {
			if strings.Contains(title, phrase) {
				return true
			}
		}
	}

	return false
}
