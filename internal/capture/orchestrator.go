// Package capture drives one end-to-end screenshot capture (navigate, defeat
// overlays, locate the text, frame it, shoot) and runs batches of captures
// with bounded concurrency and retries.
package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/v0xg/proofshot/internal/consent"
	"github.com/v0xg/proofshot/internal/detect"
	"github.com/v0xg/proofshot/internal/framing"
	"github.com/v0xg/proofshot/internal/imaging"
	"github.com/v0xg/proofshot/internal/locator"
	"github.com/v0xg/proofshot/internal/session"
)

// Options configures the orchestrator.
type Options struct {
	// NavTimeout bounds the initial navigation wait. Default 30s.
	NavTimeout time.Duration

	// LenientSettle is how long the lenient navigation retry sleeps instead
	// of waiting for the load event. Default 5s.
	LenientSettle time.Duration

	// StabilizerTimeout bounds the wait for the page stabilizer's readiness
	// flag. Default 6s.
	StabilizerTimeout time.Duration

	// SessionRetries is how many times the whole capture is retried after
	// the browser session crashes. Default 2.
	SessionRetries int

	// DisableHighlight skips outlining the located element in the shot.
	DisableHighlight bool

	Consent consent.Config
	Logger  *log.Logger
}

func (o *Options) defaults() {
	if o.NavTimeout <= 0 {
		o.NavTimeout = 30 * time.Second
	}
	if o.LenientSettle <= 0 {
		o.LenientSettle = 5 * time.Second
	}
	if o.StabilizerTimeout <= 0 {
		o.StabilizerTimeout = 6 * time.Second
	}
	if o.SessionRetries <= 0 {
		o.SessionRetries = 2
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	if o.Consent.Logger == nil {
		o.Consent.Logger = o.Logger
	}
}

// Orchestrator turns Requests into Results against a shared browser session.
type Orchestrator struct {
	sessions *session.Manager
	loc      *locator.Locator
	cfg      Options
}

func NewOrchestrator(sessions *session.Manager, cfg Options) *Orchestrator {
	cfg.defaults()
	return &Orchestrator{
		sessions: sessions,
		loc:      locator.New(cfg.Logger),
		cfg:      cfg,
	}
}

// Process produces exactly one Result for the request. Expected failures
// (blocked page, text not found, crash after retries) come back inside the
// Result; only unexpected faults return an error.
func (o *Orchestrator) Process(ctx context.Context, req Request) (*Result, error) {
	for attempt := 0; ; attempt++ {
		res, err := o.attempt(ctx, req)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return failed(req.ID, FailureFault, ctx.Err().Error()), nil
		}
		if !session.IsFatalError(err) {
			return nil, err
		}

		o.cfg.Logger.Warn("capture: session crashed, rebuilding", "id", req.ID, "attempt", attempt, "err", err)
		o.sessions.Teardown()
		if attempt >= o.cfg.SessionRetries {
			return failed(req.ID, FailureSessionCrashed, err.Error()), nil
		}
		time.Sleep(session.RestartDelay)
	}
}

// attempt runs one pass of the capture sequence on a fresh page.
func (o *Orchestrator) attempt(ctx context.Context, req Request) (*Result, error) {
	engine := consent.NewEngine(o.cfg.Consent)
	engine.Reset()

	page, err := o.sessions.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer o.sessions.Release(page)

	engine.ApplyPreNavigation(page, req.URL)

	if err := o.navigate(page, req.URL); err != nil {
		if session.IsFatalError(err) {
			return nil, err
		}
		res := failed(req.ID, FailureNavigation, err.Error())
		res.Consent = engine.Stats()
		return res, nil
	}

	session.WaitStable(page, o.cfg.StabilizerTimeout)

	sig, sigErr := detect.CollectSignals(page)
	if sigErr != nil {
		if session.IsFatalError(sigErr) {
			return nil, sigErr
		}
		o.cfg.Logger.Warn("capture: signal collection failed", "id", req.ID, "err", sigErr)
	} else {
		if detect.IsBotChallenge(sig) {
			res := failed(req.ID, FailureBlocked, "bot challenge wall detected")
			res.Consent = engine.Stats()
			return res, nil
		}
		if detect.IsErrorPage(sig) {
			res := failed(req.ID, FailureErrorPage, "page classified as error page")
			res.Consent = engine.Stats()
			return res, nil
		}
	}

	engine.ApplyPostLoad(page)
	o.sweepPopups(page)
	o.revealLazyContent(page)

	match, err := o.loc.Locate(page, req.TargetText)
	if err != nil {
		return nil, err
	}
	if match == nil {
		res := failed(req.ID, FailureTextNotFound, "no locator strategy matched")
		res.Consent = engine.Stats()
		return res, nil
	}
	engine.SetTargetStrategy(match.Strategy)

	target := match.Element
	if match.HostFrame != nil {
		// Cross-frame match: frame and shoot the hosting iframe region,
		// which lives in main-page coordinates.
		target = match.HostFrame
	}
	if match.Strategy == locator.StrategyFallback {
		if el := engine.PickContentRegion(page); el != nil {
			target = el
		}
	}

	if err := target.ScrollIntoView(); err != nil {
		o.cfg.Logger.Debug("capture: scroll into view", "id", req.ID, "err", err)
	}

	vw, vh := o.sessions.Viewport()
	box, err := framing.Frame(target, float64(vw), float64(vh))
	if err != nil {
		if session.IsFatalError(err) {
			return nil, err
		}
		res := failed(req.ID, FailureScreenshot, fmt.Sprintf("framing: %v", err))
		res.Consent = engine.Stats()
		return res, nil
	}

	if !o.cfg.DisableHighlight && match.HostFrame == nil {
		o.highlight(match.Element)
	}

	img, err := o.shoot(page, box)
	if err != nil {
		if session.IsFatalError(err) {
			return nil, err
		}
		res := failed(req.ID, FailureScreenshot, err.Error())
		res.Consent = engine.Stats()
		return res, nil
	}

	width, height, err := imaging.Dimensions(img)
	if err != nil {
		o.cfg.Logger.Warn("capture: dimension decode failed", "id", req.ID, "err", err)
	}

	return &Result{
		ID:         req.ID,
		Image:      img,
		Width:      width,
		Height:     height,
		CapturedAt: time.Now(),
		Strategy:   match.Strategy,
		Consent:    engine.Stats(),
	}, nil
}

// navigate loads the URL, retrying once with a lenient wait (no load event,
// fixed settle delay) when the strict wait times out.
func (o *Orchestrator) navigate(page *rod.Page, url string) error {
	strict := page.Timeout(o.cfg.NavTimeout)
	if err := strict.Navigate(url); err != nil {
		return err
	}
	if err := strict.WaitLoad(); err == nil {
		strict.CancelTimeout()
		return nil
	}
	strict.CancelTimeout()

	o.cfg.Logger.Debug("capture: load wait timed out, lenient retry", "url", url)
	lenient := page.Timeout(o.cfg.NavTimeout)
	defer lenient.CancelTimeout()
	if err := lenient.Navigate(url); err != nil {
		return fmt.Errorf("capture: lenient navigate: %w", err)
	}
	time.Sleep(o.cfg.LenientSettle)
	return nil
}

// popupVocabulary is the accessible-text wordlist the popup sweep clicks.
var popupVocabulary = []string{
	"accept all", "accept", "i agree", "agree", "allow all", "allow",
	"got it", "ok", "okay", "close", "dismiss", "no thanks", "continue",
}

// sweepPopups best-effort clicks visible accept/close/dismiss controls.
// Never required to succeed.
func (o *Orchestrator) sweepPopups(page *rod.Page) {
	res, err := page.Eval(`(vocab) => {
		const candidates = document.querySelectorAll('button, a, [role="button"], input[type="button"], input[type="submit"]');
		let clicked = 0;
		for (const el of candidates) {
			if (clicked >= 3) break;
			if (!el.offsetParent) continue;
			const text = (el.innerText || el.value || el.getAttribute('aria-label') || '')
				.trim().toLowerCase();
			if (!text || text.length > 30) continue;
			if (vocab.includes(text) || text === '×' || text === '✕') {
				try { el.click(); clicked++; } catch (e) {}
			}
		}
		return clicked;
	}`, popupVocabulary)
	if err != nil {
		o.cfg.Logger.Debug("capture: popup sweep failed", "err", err)
		return
	}
	if n := res.Value.Int(); n > 0 {
		o.cfg.Logger.Debug("capture: dismissed popups", "clicked", n)
		time.Sleep(300 * time.Millisecond)
	}
}

// revealLazyContent scrolls to the bottom and back so lazy sections load
// before locating.
func (o *Orchestrator) revealLazyContent(page *rod.Page) {
	steps := []string{
		`() => window.scrollTo(0, document.body.scrollHeight)`,
		`() => window.scrollTo(0, 0)`,
	}
	for _, js := range steps {
		if _, err := page.Eval(js); err != nil {
			o.cfg.Logger.Debug("capture: scroll reveal failed", "err", err)
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
}

// highlight outlines the located element so the proof shows exactly what
// matched.
func (o *Orchestrator) highlight(el *rod.Element) {
	_, err := el.Eval(`() => {
		this.style.outline = '3px solid #ff5a36';
		this.style.outlineOffset = '2px';
	}`)
	if err != nil {
		o.cfg.Logger.Debug("capture: highlight failed", "err", err)
	}
}

// shoot captures the clipped region. The clip is in page coordinates, so the
// current scroll offset is added to the viewport-relative box.
func (o *Orchestrator) shoot(page *rod.Page, box framing.Box) ([]byte, error) {
	res, err := page.Eval(`() => ({ x: window.scrollX, y: window.scrollY })`)
	if err != nil {
		return nil, fmt.Errorf("capture: read scroll offset: %w", err)
	}
	scrollX := res.Value.Get("x").Num()
	scrollY := res.Value.Get("y").Num()

	img, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
		Clip: &proto.PageViewport{
			X:      box.X + scrollX,
			Y:      box.Y + scrollY,
			Width:  box.Width,
			Height: box.Height,
			Scale:  1,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("capture: screenshot: %w", err)
	}
	return img, nil
}
