package locator

import (
	"strings"
	"unicode"
)

// Match scores, ordered. Equal scores tie-break on the smallest rendered area.
const (
	ScoreExact    = 100
	ScoreEdge     = 80 // candidate starts or ends with the target
	ScoreLoose    = 70 // contains, ignoring punctuation
	ScoreContains = 60
)

// degradedPrefixLens are the shrinking prefixes tried when full-text matching
// fails on dynamic pages that rewrap or truncate copy.
var degradedPrefixLens = []int{50, 40, 30, 20}

const minSignificantWordLen = 4

// Normalize lowercases and collapses all whitespace runs to single spaces.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// StripPunct removes everything but letters, digits, and spaces, then
// normalizes. Used for punctuation-insensitive comparison.
func StripPunct(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return Normalize(b.String())
}

// Candidate is one text-bearing element reported by the extraction script.
// Index refers to the transient marker attribute assigned in the DOM.
type Candidate struct {
	Index int
	Text  string
	Area  float64
}

// ScoreText rates how well a candidate's text matches the target. Both sides
// are expected raw; normalization happens here. Returns 0 for no match.
func ScoreText(target, candidate string) int {
	targetNorm := Normalize(target)
	candNorm := Normalize(candidate)
	if targetNorm == "" || candNorm == "" {
		return 0
	}

	if candNorm == targetNorm {
		return ScoreExact
	}
	if strings.HasPrefix(candNorm, targetNorm) || strings.HasSuffix(candNorm, targetNorm) {
		return ScoreEdge
	}
	if targetStripped := StripPunct(target); targetStripped != "" &&
		strings.Contains(StripPunct(candidate), targetStripped) {
		return ScoreLoose
	}
	if strings.Contains(candNorm, targetNorm) {
		return ScoreContains
	}
	return 0
}

// BestCandidate picks the highest-scoring candidate, preferring the smallest
// area on ties (the most specific element). Returns ok=false when nothing
// scores above zero. Zero-area candidates are never eligible.
func BestCandidate(target string, cands []Candidate) (Candidate, int, bool) {
	var best Candidate
	bestScore := 0
	found := false

	for _, c := range cands {
		if c.Area <= 0 {
			continue
		}
		score := ScoreText(target, c.Text)
		if score == 0 {
			continue
		}
		if !found || score > bestScore || (score == bestScore && c.Area < best.Area) {
			best = c
			bestScore = score
			found = true
		}
	}

	return best, bestScore, found
}

// DegradedTargets produces the fallback targets tried when the full text
// cannot be found: shrinking prefixes, then the first significant word, then
// a short key phrase. Order matters; duplicates and targets no shorter than
// the original are dropped.
func DegradedTargets(target string) []string {
	norm := Normalize(target)
	if norm == "" {
		return nil
	}

	var out []string
	seen := map[string]bool{norm: true}
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	runes := []rune(norm)
	for _, n := range degradedPrefixLens {
		if len(runes) > n {
			add(strings.TrimSpace(string(runes[:n])))
		}
	}

	words := strings.Fields(norm)
	for _, w := range words {
		if len(w) >= minSignificantWordLen {
			add(w)
			break
		}
	}

	if len(words) >= 3 {
		add(strings.Join(words[:3], " "))
	} else if len(words) == 2 {
		add(strings.Join(words[:2], " "))
	}

	return out
}
