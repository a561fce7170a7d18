package capture

import (
	"time"

	"github.com/v0xg/proofshot/internal/consent"
)

// Request asks for one framed screenshot of targetText as rendered at url.
// Immutable once issued.
type Request struct {
	URL        string `json:"url"`
	TargetText string `json:"targetText"`
	ID         string `json:"id"`
}

// FailureKind classifies expected capture failures. These travel inside the
// Result; only unexpected faults travel as Go errors.
type FailureKind string

const (
	FailureNone           FailureKind = ""
	FailureNavigation     FailureKind = "navigation"
	FailureBlocked        FailureKind = "blocked"
	FailureErrorPage      FailureKind = "error-page"
	FailureTextNotFound   FailureKind = "text-not-found"
	FailureScreenshot     FailureKind = "screenshot"
	FailureSessionCrashed FailureKind = "session-crashed"
	FailureFault          FailureKind = "fault"
)

// Result is the single outcome every Request yields. On success Image holds
// the encoded PNG and Failure is FailureNone.
type Result struct {
	ID         string        `json:"id"`
	Image      []byte        `json:"-"`
	Width      int           `json:"width,omitempty"`
	Height     int           `json:"height,omitempty"`
	CapturedAt time.Time     `json:"capturedAt"`
	Strategy   string        `json:"strategy,omitempty"`
	Consent    consent.Stats `json:"consent"`

	Failure       FailureKind `json:"failure,omitempty"`
	FailureDetail string      `json:"failureDetail,omitempty"`
}

// OK reports whether the capture succeeded.
func (r *Result) OK() bool {
	return r != nil && r.Failure == FailureNone && len(r.Image) > 0
}

func failed(id string, kind FailureKind, detail string) *Result {
	return &Result{
		ID:            id,
		CapturedAt:    time.Now(),
		Failure:       kind,
		FailureDetail: detail,
	}
}
