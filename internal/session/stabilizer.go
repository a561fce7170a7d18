package session

import (
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// stabilizerJS runs before any page script. It force-reveals content that
// pages keep hidden until scroll/intersection (lazy sections, fade-ins),
// eagerly loads lazy images, and exposes a readiness flag plus two wait
// helpers the capture pipeline polls.
const stabilizerJS = `(() => {
	if (window.__pageStabilizer) return;

	const reveal = () => {
		try {
			for (const el of document.querySelectorAll('img[loading="lazy"]')) {
				el.loading = 'eager';
			}
			for (const el of document.querySelectorAll('[data-src]')) {
				if (!el.src && el.dataset.src) el.src = el.dataset.src;
			}
			for (const el of document.querySelectorAll('.lazyload, .lazy, [data-aos], .animate-on-scroll, .fade-in, .reveal')) {
				el.style.opacity = '1';
				el.style.transform = 'none';
				el.style.visibility = 'visible';
			}
		} catch (e) {}
	};

	const stabilizer = {
		ready: false,
		waitForFonts: () => (document.fonts && document.fonts.ready)
			? document.fonts.ready.then(() => true)
			: Promise.resolve(true),
		waitForAnimations: () => new Promise((resolve) => {
			let frames = 0;
			const tick = () => (++frames >= 3) ? resolve(true) : requestAnimationFrame(tick);
			requestAnimationFrame(tick);
		}),
	};
	window.__pageStabilizer = stabilizer;

	const markReady = () => {
		reveal();
		stabilizer.waitForFonts()
			.then(() => stabilizer.waitForAnimations())
			.then(() => { stabilizer.ready = true; });
	};

	if (document.readyState === 'complete') {
		markReady();
	} else {
		window.addEventListener('load', markReady);
		// Belt and braces for pages that never fire load.
		setTimeout(markReady, 5000);
	}
})();`

const stabilizerPollInterval = 150 * time.Millisecond

// InstallStabilizer registers the stabilizer script to run on every new
// document of the page, before page scripts execute.
func InstallStabilizer(page *rod.Page) error {
	_, err := proto.PageAddScriptToEvaluateOnNewDocument{
		Source: stabilizerJS,
	}.Call(page)
	return err
}

// WaitStable polls the stabilizer readiness flag up to timeout, then returns
// regardless. Returns whether readiness was observed. Pages without the
// stabilizer (hook install failed) simply run out the clock's first poll.
func WaitStable(page *rod.Page, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		res, err := page.Eval(`() => !!(window.__pageStabilizer && window.__pageStabilizer.ready)`)
		if err == nil && res.Value.Bool() {
			return true
		}
		if err != nil {
			// Page gone or navigating; nothing to wait for.
			return false
		}
		time.Sleep(stabilizerPollInterval)
	}
	return false
}
