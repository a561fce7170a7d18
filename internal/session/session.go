// Package session owns the lifecycle of the shared automated-browser
// session: lazy launch, health-checked reuse, and teardown-with-relaunch
// after a crash. Pages are the per-capture unit of isolation; the browser
// and its on-disk profile are a singleton.
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/google/uuid"
)

// defaultUserAgent is a realistic desktop identity string; headless
// Chrome's own UA advertises automation.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// Config configures the session manager.
type Config struct {
	ViewportWidth  int
	ViewportHeight int
	UserAgent      string
	Headless       bool

	// ProfileRoot is the directory browser profiles are created under.
	// Default: os.TempDir().
	ProfileRoot string

	Logger *log.Logger
}

func (c *Config) defaults() {
	if c.ViewportWidth <= 0 {
		c.ViewportWidth = 1920
	}
	if c.ViewportHeight <= 0 {
		c.ViewportHeight = 1080
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.ProfileRoot == "" {
		c.ProfileRoot = os.TempDir()
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
}

// Manager owns the singleton browser session. All re-initialization is
// exclusive: once a relaunch starts, concurrent Acquire calls wait for it.
type Manager struct {
	cfg Config

	mu         sync.Mutex
	browser    *rod.Browser
	lnch       *launcher.Launcher
	profileDir string
}

// NewManager creates a session manager. The browser is launched lazily on
// first Acquire.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Acquire returns a fresh page on the live session, launching or relaunching
// the browser as needed. The page comes with stealth applied, the configured
// viewport and identity, and the page stabilizer installed.
func (m *Manager) Acquire(ctx context.Context) (*rod.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureBrowserLocked(ctx); err != nil {
		return nil, err
	}

	page, err := m.newPageLocked(ctx)
	if err == nil {
		return page, nil
	}

	// Page creation failing right after a health check usually means the
	// browser died in between; rebuild once before giving up.
	m.cfg.Logger.Warn("session: page creation failed, rebuilding browser", "err", err)
	m.teardownLocked()
	if err := m.ensureBrowserLocked(ctx); err != nil {
		return nil, err
	}
	return m.newPageLocked(ctx)
}

// Release closes the per-capture page. The session stays alive.
func (m *Manager) Release(page *rod.Page) {
	if page == nil {
		return
	}
	if err := page.Close(); err != nil {
		m.cfg.Logger.Debug("session: page close", "err", err)
	}
}

// Teardown closes the browser and deletes its profile directory. Safe to
// call repeatedly.
func (m *Manager) Teardown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()
}

// Viewport returns the configured viewport size.
func (m *Manager) Viewport() (width, height int) {
	return m.cfg.ViewportWidth, m.cfg.ViewportHeight
}

// ensureBrowserLocked verifies the current browser by enumerating its pages,
// discarding and relaunching it when the check fails. Caller holds mu.
func (m *Manager) ensureBrowserLocked(ctx context.Context) error {
	if m.browser != nil {
		if _, err := m.browser.Pages(); err == nil {
			return nil
		}
		m.cfg.Logger.Warn("session: health check failed, relaunching")
		m.teardownLocked()
	}
	return m.launchLocked(ctx)
}

// launchLocked starts a browser on a fresh, uniquely named profile
// directory. A new directory per launch avoids exclusive-lock collisions
// with a half-dead previous instance. Caller holds mu.
func (m *Manager) launchLocked(ctx context.Context) error {
	profileDir := filepath.Join(m.cfg.ProfileRoot, "proofshot-profile-"+uuid.NewString())

	l := launcher.New().
		Headless(m.cfg.Headless).
		UserDataDir(profileDir).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-infobars")

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("session: launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return fmt.Errorf("session: connect: %w", err)
	}

	m.browser = browser
	m.lnch = l
	m.profileDir = profileDir
	m.cfg.Logger.Info("session: browser launched", "profile", profileDir)
	return nil
}

// newPageLocked creates one configured page. Caller holds mu.
func (m *Manager) newPageLocked(ctx context.Context) (*rod.Page, error) {
	page, err := stealth.Page(m.browser)
	if err != nil {
		return nil, fmt.Errorf("session: create page: %w", err)
	}
	page = page.Context(ctx)

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             m.cfg.ViewportWidth,
		Height:            m.cfg.ViewportHeight,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		m.cfg.Logger.Warn("session: set viewport", "err", err)
	}

	if err := (proto.NetworkSetUserAgentOverride{
		UserAgent: m.cfg.UserAgent,
	}).Call(page); err != nil {
		m.cfg.Logger.Warn("session: set user agent", "err", err)
	}

	if err := InstallStabilizer(page); err != nil {
		m.cfg.Logger.Warn("session: stabilizer install", "err", err)
	}

	return page, nil
}

func (m *Manager) teardownLocked() {
	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			m.cfg.Logger.Debug("session: browser close", "err", err)
		}
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	if m.profileDir != "" {
		if err := os.RemoveAll(m.profileDir); err != nil {
			m.cfg.Logger.Debug("session: remove profile", "dir", m.profileDir, "err", err)
		}
		m.profileDir = ""
	}
}

// fatalErrorMarkers are substrings of browser-death errors. Seeing one means
// the session is gone and must be rebuilt rather than retried on.
var fatalErrorMarkers = []string{
	"target crashed",
	"session closed",
	"browser has been closed",
	"websocket: close",
	"connection reset by peer",
	"broken pipe",
	"cdp connection closed",
	"context canceled",
}

// IsFatalError reports whether err indicates the browser session itself has
// died (as opposed to a page-level failure).
func IsFatalError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range fatalErrorMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// RestartDelay is the pause before a capture retries after a session
// rebuild, giving the old process time to die.
const RestartDelay = 2 * time.Second
