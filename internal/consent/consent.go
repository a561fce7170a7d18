// Package consent neutralizes cookie/consent/tracking overlays with four
// independent, fail-open defense layers: request blocking, pre-injected
// consent state, post-load suppression styling, and semantic capture
// targeting. A failing layer is logged and skipped; it never aborts a
// capture.
package consent

import (
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Layer 4 minimum size for a semantic capture container.
const (
	minRegionWidth  = 300
	minRegionHeight = 200
)

// Stats records which defense layers fired during one capture. Reset at the
// start of each capture, read-only afterwards.
type Stats struct {
	BlockedRequests int    `json:"blockedRequests"`
	StateInjected   bool   `json:"stateInjected"`
	StylesApplied   bool   `json:"stylesApplied"`
	TargetStrategy  string `json:"targetStrategy,omitempty"`
}

// Config toggles individual layers. Zero value enables everything.
type Config struct {
	DisableNetworkBlocking bool
	DisableStateInjection  bool
	DisableSuppressionCSS  bool
	DisableRegionTargeting bool

	Logger *log.Logger
}

// Engine applies the defense layers to one page at a time.
type Engine struct {
	cfg     Config
	logger  *log.Logger
	blocked atomic.Int64
	stats   Stats
}

func NewEngine(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Engine{cfg: cfg, logger: cfg.Logger}
}

// Reset clears per-capture counters. Call before each capture.
func (e *Engine) Reset() {
	e.blocked.Store(0)
	e.stats = Stats{}
}

// Stats returns the counters for the capture in progress. The blocked-request
// count is read live since the hijack router runs concurrently.
func (e *Engine) Stats() Stats {
	s := e.stats
	s.BlockedRequests = int(e.blocked.Load())
	return s
}

// ApplyPreNavigation installs layers 1 and 2 on a fresh page. Must run before
// Navigate. Each layer fails open.
func (e *Engine) ApplyPreNavigation(page *rod.Page, pageURL string) {
	if !e.cfg.DisableNetworkBlocking {
		if err := e.installNetworkBlocking(page); err != nil {
			e.logger.Warn("consent: network blocking unavailable", "err", err)
		}
	}
	if !e.cfg.DisableStateInjection {
		if err := e.injectConsentState(page, pageURL); err != nil {
			e.logger.Warn("consent: state injection failed", "err", err)
		} else {
			e.stats.StateInjected = true
		}
	}
}

// ApplyPostLoad installs layer 3 after navigation completes.
func (e *Engine) ApplyPostLoad(page *rod.Page) {
	if e.cfg.DisableSuppressionCSS {
		return
	}
	if err := e.applySuppressionCSS(page); err != nil {
		e.logger.Warn("consent: suppression styling failed", "err", err)
		return
	}
	e.stats.StylesApplied = true
}

// installNetworkBlocking aborts script/xhr/fetch/sub-document requests to
// known consent and tracking providers.
func (e *Engine) installNetworkBlocking(page *rod.Page) error {
	router := page.HijackRequests()

	err := router.Add("*", "", func(ctx *rod.Hijack) {
		reqURL := strings.ToLower(ctx.Request.URL().String())
		resType := strings.ToLower(string(ctx.Request.Type()))

		if blockedResourceTypes[resType] && matchesProvider(reqURL) {
			e.blocked.Add(1)
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})
	if err != nil {
		return fmt.Errorf("consent: hijack add: %w", err)
	}

	go router.Run()
	return nil
}

func matchesProvider(reqURL string) bool {
	for _, p := range blockedProviders {
		if strings.Contains(reqURL, p) {
			return true
		}
	}
	return false
}

// injectConsentState writes vendor consent flags into localStorage before any
// page script executes, and sets first-party consent cookies for the target
// domain.
func (e *Engine) injectConsentState(page *rod.Page, pageURL string) error {
	js := "() => { try {\n"
	for k, v := range consentStorageKeys {
		js += fmt.Sprintf("localStorage.setItem(%q, %q);\n", k, v)
	}
	js += "} catch (e) {} }"

	if _, err := (proto.PageAddScriptToEvaluateOnNewDocument{
		Source: fmt.Sprintf("(%s)()", js),
	}).Call(page); err != nil {
		return fmt.Errorf("consent: install storage script: %w", err)
	}

	domain := domainOf(pageURL)
	if domain == "" {
		return nil
	}
	cookies := make([]*proto.NetworkCookieParam, 0, len(consentCookies))
	for name, value := range consentCookies {
		cookies = append(cookies, &proto.NetworkCookieParam{
			Name:   name,
			Value:  value,
			Domain: domain,
			Path:   "/",
		})
	}
	if err := page.SetCookies(cookies); err != nil {
		return fmt.Errorf("consent: set cookies: %w", err)
	}
	return nil
}

func domainOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// applySuppressionCSS injects a stylesheet hiding residual consent UI and
// restoring page scroll.
func (e *Engine) applySuppressionCSS(page *rod.Page) error {
	_, err := page.Eval(`(css) => {
		const style = document.createElement('style');
		style.setAttribute('data-consent-suppression', '');
		style.textContent = css;
		(document.head || document.documentElement).appendChild(style);
	}`, SuppressionCSS())
	if err != nil {
		return fmt.Errorf("consent: inject stylesheet: %w", err)
	}
	return nil
}

// SuppressionCSS builds the layer-3 stylesheet from the selector tables.
func SuppressionCSS() string {
	var b strings.Builder

	var sels []string
	for _, s := range suppressionSelectors {
		sels = append(sels, fmt.Sprintf(`[id*="%s"]`, s), fmt.Sprintf(`[class*="%s"]`, s))
	}
	for _, id := range elementSuppressionIDs {
		sels = append(sels, "#"+id)
	}

	b.WriteString(strings.Join(sels, ",\n"))
	b.WriteString(" {\n  display: none !important;\n  visibility: hidden !important;\n  opacity: 0 !important;\n  pointer-events: none !important;\n}\n")

	// Overlays routinely lock scrolling on html/body; undo that.
	b.WriteString("html, body {\n  overflow: auto !important;\n  position: static !important;\n}\n")

	return b.String()
}

// PickContentRegion is layer 4: prefer a visible semantic content container
// of meaningful size over the full viewport, sidestepping any overlay that
// survived layers 1-3. Returns nil when no container qualifies.
func (e *Engine) PickContentRegion(page *rod.Page) *rod.Element {
	if e.cfg.DisableRegionTargeting {
		return nil
	}

	for _, sel := range []string{"main", "article", "[role=main]", "#content", ".content", ".main-content"} {
		el, err := page.Sleeper(rod.NotFoundSleeper).Element(sel)
		if err != nil {
			continue
		}
		visible, err := el.Visible()
		if err != nil || !visible {
			continue
		}
		box, err := el.Eval(`() => {
			const r = this.getBoundingClientRect();
			return { w: r.width, h: r.height };
		}`)
		if err != nil {
			continue
		}
		if box.Value.Get("w").Num() >= minRegionWidth && box.Value.Get("h").Num() >= minRegionHeight {
			e.stats.TargetStrategy = sel
			return el
		}
	}
	return nil
}

// SetTargetStrategy records which element-selection strategy produced the
// final screenshot region.
func (e *Engine) SetTargetStrategy(strategy string) {
	e.stats.TargetStrategy = strategy
}
