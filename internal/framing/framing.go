// Package framing grows a located element's box into a visually meaningful
// capture region: it prefers a card-like ancestor as context, pads the result,
// and clamps it to the viewport and to an absolute size envelope.
package framing

import (
	"math"
	"strings"

	"github.com/go-rod/rod"
)

// Box is a rectangle in page coordinates.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns the box area in square pixels.
func (b Box) Area() float64 { return b.Width * b.Height }

// Framing thresholds. Kept as named constants so boundary behavior is
// assertable in tests.
const (
	Padding = 40

	MinWidth  = 300
	MaxWidth  = 1200
	MinHeight = 200
	MaxHeight = 800

	// Ancestors beyond these dimensions are page-level wrappers, not context.
	maxAncestorWidth  = 1400
	maxAncestorHeight = 800

	// How many ancestors above the element are considered.
	ancestorWalkDepth = 5

	// An ancestor bigger than this multiple of the element is too loose a
	// frame to be useful context.
	maxAreaRatio = 10

	// Candidates tighter than this multiple of the element's area get a
	// closeness bonus.
	closeAreaRatio = 3

	// Child heights within this relative tolerance of height/childCount mark
	// the candidate as a repeated grid (a list container, not a single item).
	gridTolerance = 0.30
)

// Ancestor describes one candidate context container above the element.
type Ancestor struct {
	Tag          string    `json:"tag"`
	Class        string    `json:"class"`
	Box          Box       `json:"box"`
	ChildCount   int       `json:"childCount"`
	ChildHeights []float64 `json:"childHeights"`
}

// scoring weights for ancestor classes
const (
	scoreCard      = 30
	scoreHero      = 20
	scoreSection   = 10
	closenessBonus = 15
)

var cardClasses = []string{"card", "article", "post", "item", "tile", "feature", "testimonial", "quote"}
var heroClasses = []string{"hero", "banner", "jumbotron", "masthead", "intro"}
var sectionClasses = []string{"section", "container", "wrapper", "box", "block", "content"}

// CollectAncestors returns the element's own box plus up to ancestorWalkDepth
// ancestor candidates, gathered in one evaluation.
func CollectAncestors(el *rod.Element) (Box, []Ancestor, error) {
	res, err := el.Eval(`(depth) => {
		// Viewport-relative: the caller scrolls the element into view first
		// and clamps against the viewport.
		const boxOf = (node) => {
			const r = node.getBoundingClientRect();
			return { x: r.x, y: r.y, width: r.width, height: r.height };
		};
		const out = { box: boxOf(this), ancestors: [] };
		let node = this.parentElement;
		for (let i = 0; i < depth && node && node !== document.body; i++) {
			const heights = [];
			for (const child of node.children) {
				heights.push(child.getBoundingClientRect().height);
			}
			out.ancestors.push({
				tag: node.tagName.toLowerCase(),
				class: (typeof node.className === 'string' ? node.className : '').toLowerCase(),
				box: boxOf(node),
				childCount: node.children.length,
				childHeights: heights,
			});
			node = node.parentElement;
		}
		return out;
	}`, ancestorWalkDepth)
	if err != nil {
		return Box{}, nil, err
	}

	var own Box
	own.X = res.Value.Get("box").Get("x").Num()
	own.Y = res.Value.Get("box").Get("y").Num()
	own.Width = res.Value.Get("box").Get("width").Num()
	own.Height = res.Value.Get("box").Get("height").Num()

	var ancestors []Ancestor
	for _, v := range res.Value.Get("ancestors").Arr() {
		a := Ancestor{
			Tag:        v.Get("tag").String(),
			Class:      v.Get("class").String(),
			ChildCount: v.Get("childCount").Int(),
			Box: Box{
				X:      v.Get("box").Get("x").Num(),
				Y:      v.Get("box").Get("y").Num(),
				Width:  v.Get("box").Get("width").Num(),
				Height: v.Get("box").Get("height").Num(),
			},
		}
		for _, h := range v.Get("childHeights").Arr() {
			a.ChildHeights = append(a.ChildHeights, h.Num())
		}
		ancestors = append(ancestors, a)
	}

	return own, ancestors, nil
}

// Frame picks the best context box for the element and returns it padded and
// clamped to the viewport.
func Frame(el *rod.Element, viewportWidth, viewportHeight float64) (Box, error) {
	own, ancestors, err := CollectAncestors(el)
	if err != nil {
		return Box{}, err
	}
	chosen := ChooseFrame(own, ancestors)
	return Clamp(Expand(chosen, Padding), viewportWidth, viewportHeight), nil
}

// ChooseFrame scores the ancestor candidates and returns the best context box,
// falling back to the element's own box when none qualifies.
func ChooseFrame(own Box, ancestors []Ancestor) Box {
	best := own
	bestScore := 0

	for _, a := range ancestors {
		score, ok := scoreAncestor(own, a)
		if !ok {
			continue
		}
		if score > bestScore {
			bestScore = score
			best = a.Box
		}
	}

	return best
}

// scoreAncestor returns the candidate's score and whether it qualifies at all.
func scoreAncestor(own Box, a Ancestor) (int, bool) {
	if a.Box.Height > maxAncestorHeight || a.Box.Width > maxAncestorWidth {
		return 0, false
	}
	if own.Area() > 0 && a.Box.Area() > maxAreaRatio*own.Area() {
		return 0, false
	}
	if isRepeatedGrid(a) {
		return 0, false
	}

	score := classScore(a.Tag, a.Class)
	if score == 0 {
		return 0, false
	}
	if own.Area() > 0 && a.Box.Area() < closeAreaRatio*own.Area() {
		score += closenessBonus
	}
	return score, true
}

func classScore(tag, class string) int {
	if tag == "article" {
		return scoreCard
	}
	for _, c := range cardClasses {
		if strings.Contains(class, c) {
			return scoreCard
		}
	}
	for _, c := range heroClasses {
		if strings.Contains(class, c) {
			return scoreHero
		}
	}
	if tag == "section" {
		return scoreSection
	}
	for _, c := range sectionClasses {
		if strings.Contains(class, c) {
			return scoreSection
		}
	}
	return 0
}

// isRepeatedGrid detects list/grid containers: several similarly sized
// children whose height tracks containerHeight/childCount.
func isRepeatedGrid(a Ancestor) bool {
	if a.ChildCount < 3 || a.Box.Height <= 0 {
		return false
	}
	expected := a.Box.Height / float64(a.ChildCount)
	matching := 0
	for _, h := range a.ChildHeights {
		if h <= 0 {
			continue
		}
		if math.Abs(h-expected) <= gridTolerance*expected {
			matching++
		}
	}
	return matching >= a.ChildCount-1
}

// Expand grows the box by pad pixels on every side.
func Expand(b Box, pad float64) Box {
	return Box{
		X:      b.X - pad,
		Y:      b.Y - pad,
		Width:  b.Width + 2*pad,
		Height: b.Height + 2*pad,
	}
}

// Clamp bounds the box to the size envelope and the viewport, shifting the
// origin when growth or viewport limits would push it outside. The result
// never has a negative origin and never exceeds the viewport.
func Clamp(b Box, viewportWidth, viewportHeight float64) Box {
	b.Width = clampRange(b.Width, MinWidth, MaxWidth)
	b.Height = clampRange(b.Height, MinHeight, MaxHeight)

	if b.Width > viewportWidth {
		b.Width = viewportWidth
	}
	if b.Height > viewportHeight {
		b.Height = viewportHeight
	}

	if b.X < 0 {
		b.X = 0
	}
	if b.Y < 0 {
		b.Y = 0
	}
	if b.X+b.Width > viewportWidth {
		b.X = viewportWidth - b.Width
	}
	if b.Y+b.Height > viewportHeight {
		b.Y = viewportHeight - b.Height
	}
	if b.X < 0 {
		b.X = 0
	}
	if b.Y < 0 {
		b.Y = 0
	}

	return b
}

func clampRange(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
