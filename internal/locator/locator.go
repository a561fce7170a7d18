// Package locator finds the element where a given piece of text renders on a
// live page, using an ordered cascade of matching strategies.
package locator

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-rod/rod"

	"github.com/v0xg/proofshot/internal/detect"
)

// Strategy tags, in cascade order.
const (
	StrategyExact     = "exact"
	StrategySplit     = "split-nodes"
	StrategyTextQuery = "text-query"
	StrategyFrame     = "cross-frame"
	StrategyPartial   = "partial"
	StrategyFallback  = "fallback-container"
)

// markerAttr is the transient attribute the extraction scripts stamp on
// candidate elements so the winner can be re-resolved to a handle.
const markerAttr = "data-psloc"

// textTags are the element types candidate text is read from.
const textTags = "h1,h2,h3,h4,h5,h6,p,span,a,li,td,th,blockquote,figcaption,label,strong,em,b,button,dt,dd"

const textQueryTimeout = 2 * time.Second

// Match is a located element plus the strategy that found it. HostFrame is
// set for cross-frame matches: the iframe element on the main page that
// contains the match.
type Match struct {
	Element   *rod.Element
	HostFrame *rod.Element
	Strategy  string
}

// Locator runs the strategy cascade.
type Locator struct {
	logger *log.Logger
}

func New(logger *log.Logger) *Locator {
	if logger == nil {
		logger = log.Default()
	}
	return &Locator{logger: logger}
}

type strategyFn func(page *rod.Page, target string) (*Match, error)

// Locate tries each strategy in order and returns the first match, or
// (nil, nil) when the text cannot be found anywhere. Strategy errors are
// logged and treated as "no match" so one broken strategy never masks the
// rest of the cascade.
func (l *Locator) Locate(page *rod.Page, target string) (*Match, error) {
	strategies := []struct {
		name string
		fn   strategyFn
	}{
		{StrategyExact, l.byScoredText},
		{StrategySplit, l.bySplitTextNodes},
		{StrategyTextQuery, l.byTextQuery},
		{StrategyFrame, l.byFrames},
		{StrategyPartial, l.byDegradedTargets},
		{StrategyFallback, l.byContentContainer},
	}

	for _, s := range strategies {
		m, err := s.fn(page, target)
		if err != nil {
			l.logger.Warn("locator strategy failed", "strategy", s.name, "err", err)
			continue
		}
		if m != nil {
			l.logger.Debug("located target", "strategy", m.Strategy)
			return m, nil
		}
	}
	return nil, nil
}

// extractCandidates stamps every visible text-bearing element with a marker
// index and returns its text and rendered area.
func extractCandidates(page *rod.Page) ([]Candidate, error) {
	res, err := page.Eval(`(tags, attr) => {
		const out = [];
		let idx = 0;
		for (const el of document.querySelectorAll(tags)) {
			const r = el.getBoundingClientRect();
			if (r.width <= 0 || r.height <= 0) continue;
			const text = (el.innerText || el.textContent || '').trim();
			if (!text || text.length > 2000) continue;
			el.setAttribute(attr, String(idx));
			out.push({ idx: idx, text: text, area: r.width * r.height });
			idx++;
		}
		return out;
	}`, textTags, markerAttr)
	if err != nil {
		return nil, err
	}

	var cands []Candidate
	for _, v := range res.Value.Arr() {
		cands = append(cands, Candidate{
			Index: v.Get("idx").Int(),
			Text:  v.Get("text").String(),
			Area:  v.Get("area").Num(),
		})
	}
	return cands, nil
}

// resolveMarked converts a marker index back into an element handle and
// clears all markers from the document.
func resolveMarked(page *rod.Page, idx int) (*rod.Element, error) {
	el, err := page.Element(fmt.Sprintf("[%s=%q]", markerAttr, fmt.Sprint(idx)))
	clearMarkers(page)
	if err != nil {
		return nil, err
	}
	return el, nil
}

func clearMarkers(page *rod.Page) {
	_, _ = page.Eval(`(attr) => {
		for (const el of document.querySelectorAll('[' + attr + ']')) {
			el.removeAttribute(attr);
		}
	}`, markerAttr)
}

// byScoredText is the primary strategy: score every visible text-bearing
// element against the target and take the best positive score, preferring
// the most specific (smallest) element on ties.
func (l *Locator) byScoredText(page *rod.Page, target string) (*Match, error) {
	cands, err := extractCandidates(page)
	if err != nil {
		return nil, err
	}
	best, _, ok := BestCandidate(target, cands)
	if !ok {
		clearMarkers(page)
		return nil, nil
	}
	el, err := resolveMarked(page, best.Index)
	if err != nil {
		return nil, err
	}
	return &Match{Element: el, Strategy: StrategyExact}, nil
}

// bySplitTextNodes handles text broken across adjacent inline nodes: it walks
// text nodes in document order and, when two consecutive nodes concatenate to
// the target, marks their nearest common ancestor.
func (l *Locator) bySplitTextNodes(page *rod.Page, target string) (*Match, error) {
	norm := Normalize(target)
	if norm == "" {
		return nil, nil
	}

	res, err := page.Eval(`(target, attr) => {
		const normalize = (s) => s.toLowerCase().replace(/\s+/g, ' ').trim();
		const walker = document.createTreeWalker(document.body, NodeFilter.SHOW_TEXT);
		const nodes = [];
		let n;
		while ((n = walker.nextNode())) {
			if (normalize(n.textContent)) nodes.push(n);
		}
		const ancestorOf = (a, b) => {
			let node = a.parentElement;
			while (node) {
				if (node.contains(b)) return node;
				node = node.parentElement;
			}
			return a.parentElement;
		};
		for (let i = 0; i + 1 < nodes.length; i++) {
			const joined = normalize(nodes[i].textContent + ' ' + nodes[i + 1].textContent);
			const fused = normalize(nodes[i].textContent + nodes[i + 1].textContent);
			if (joined.includes(target) || fused.includes(target)) {
				const host = ancestorOf(nodes[i], nodes[i + 1]) || nodes[i].parentElement;
				if (!host) return false;
				host.setAttribute(attr, 'split');
				return true;
			}
		}
		return false;
	}`, norm, markerAttr)
	if err != nil {
		return nil, err
	}
	if !res.Value.Bool() {
		return nil, nil
	}

	el, err := page.Element(fmt.Sprintf("[%s=%q]", markerAttr, "split"))
	clearMarkers(page)
	if err != nil {
		return nil, err
	}
	return &Match{Element: el, Strategy: StrategySplit}, nil
}

// byTextQuery leans on the driver's own text search as a third opinion.
func (l *Locator) byTextQuery(page *rod.Page, target string) (*Match, error) {
	norm := Normalize(target)
	if norm == "" {
		return nil, nil
	}
	el, err := page.Timeout(textQueryTimeout).ElementR(textTags, "/"+jsRegexEscape(norm)+"/i")
	if err != nil {
		// Not found within the timeout; let the cascade continue.
		return nil, nil
	}
	return &Match{Element: el.CancelTimeout(), Strategy: StrategyTextQuery}, nil
}

// byFrames repeats a simplified scored match inside each non-main frame.
func (l *Locator) byFrames(page *rod.Page, target string) (*Match, error) {
	iframes, err := page.Elements("iframe")
	if err != nil {
		return nil, err
	}

	for _, host := range iframes {
		frame, err := host.Frame()
		if err != nil {
			continue
		}
		cands, err := extractCandidates(frame)
		if err != nil {
			continue
		}
		best, _, ok := BestCandidate(target, cands)
		if !ok {
			clearMarkers(frame)
			continue
		}
		el, err := resolveMarked(frame, best.Index)
		if err != nil {
			continue
		}
		return &Match{Element: el, HostFrame: host, Strategy: StrategyFrame}, nil
	}
	return nil, nil
}

// byDegradedTargets retries scored matching with shrinking prefixes, then the
// first significant word, then a short key phrase.
func (l *Locator) byDegradedTargets(page *rod.Page, target string) (*Match, error) {
	for _, degraded := range DegradedTargets(target) {
		m, err := l.byScoredText(page, degraded)
		if err != nil {
			return nil, err
		}
		if m != nil {
			m.Strategy = StrategyPartial
			return m, nil
		}
	}
	return nil, nil
}

// contentContainerSelectors, in preference order.
var contentContainerSelectors = []string{
	"main",
	"article",
	"[role=main]",
	"#content",
	".content",
	".main-content",
	"#main",
}

// byContentContainer is the last resort: a semantic content container or the
// body itself. It refuses to run on pages classified as blocked or broken,
// re-checking signals right before deciding so a page that errored after
// navigation is still caught.
func (l *Locator) byContentContainer(page *rod.Page, target string) (*Match, error) {
	sig, err := detect.CollectSignals(page)
	if err != nil {
		return nil, err
	}
	if detect.IsErrorPage(sig) {
		return nil, nil
	}

	res, err := page.Eval(`(selectors, attr) => {
		for (const sel of selectors) {
			let el;
			try { el = document.querySelector(sel); } catch (e) { continue; }
			if (!el) continue;
			const r = el.getBoundingClientRect();
			const style = window.getComputedStyle(el);
			if (style.display === 'none' || style.visibility === 'hidden') continue;
			if (r.width < 300 || r.height < 200) continue;
			el.setAttribute(attr, 'container');
			return true;
		}
		if (document.body) {
			document.body.setAttribute(attr, 'container');
			return true;
		}
		return false;
	}`, contentContainerSelectors, markerAttr)
	if err != nil {
		return nil, err
	}
	if !res.Value.Bool() {
		return nil, nil
	}

	el, err := page.Element(fmt.Sprintf("[%s=%q]", markerAttr, "container"))
	clearMarkers(page)
	if err != nil {
		return nil, err
	}
	return &Match{Element: el, Strategy: StrategyFallback}, nil
}

// jsRegexEscape escapes a literal for embedding in a JavaScript regex.
func jsRegexEscape(s string) string {
	special := `\.+*?()|[]{}^$/`
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
