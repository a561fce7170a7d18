package framing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampOversizedBox(t *testing.T) {
	b := Clamp(Box{X: 0, Y: 0, Width: 3000, Height: 5000}, 1920, 1080)
	assert.Equal(t, float64(MaxWidth), b.Width)
	assert.Equal(t, float64(MaxHeight), b.Height)
	assert.GreaterOrEqual(t, b.X, 0.0)
	assert.GreaterOrEqual(t, b.Y, 0.0)
}

func TestClampNeverExceedsViewport(t *testing.T) {
	b := Clamp(Box{X: 100, Y: 100, Width: 3000, Height: 3000}, 1024, 600)
	assert.LessOrEqual(t, b.Width, 1024.0)
	assert.LessOrEqual(t, b.Height, 600.0)
	assert.LessOrEqual(t, b.X+b.Width, 1024.0)
	assert.LessOrEqual(t, b.Y+b.Height, 600.0)
}

func TestClampShiftsOriginInsteadOfOverflowing(t *testing.T) {
	// Near the bottom-right corner: the box must slide back inside, not hang
	// over the edge or go negative.
	b := Clamp(Box{X: 1800, Y: 1000, Width: 400, Height: 300}, 1920, 1080)
	assert.Equal(t, 1920-b.Width, b.X)
	assert.Equal(t, 1080-b.Height, b.Y)
	assert.GreaterOrEqual(t, b.X, 0.0)
	assert.GreaterOrEqual(t, b.Y, 0.0)
}

func TestClampGrowsTinyBoxes(t *testing.T) {
	b := Clamp(Box{X: 10, Y: 10, Width: 50, Height: 20}, 1920, 1080)
	assert.Equal(t, float64(MinWidth), b.Width)
	assert.Equal(t, float64(MinHeight), b.Height)
}

func TestClampNegativeOrigin(t *testing.T) {
	b := Clamp(Box{X: -60, Y: -25, Width: 400, Height: 300}, 1920, 1080)
	assert.Equal(t, 0.0, b.X)
	assert.Equal(t, 0.0, b.Y)
}

func TestExpand(t *testing.T) {
	b := Expand(Box{X: 100, Y: 100, Width: 200, Height: 100}, Padding)
	assert.Equal(t, 60.0, b.X)
	assert.Equal(t, 60.0, b.Y)
	assert.Equal(t, 280.0, b.Width)
	assert.Equal(t, 180.0, b.Height)
}

func TestChooseFramePrefersCardAncestor(t *testing.T) {
	own := Box{X: 120, Y: 220, Width: 300, Height: 40}
	ancestors := []Ancestor{
		{Tag: "div", Class: "text-wrap", Box: Box{X: 110, Y: 210, Width: 320, Height: 60}},
		{Tag: "div", Class: "pricing-card", Box: Box{X: 100, Y: 200, Width: 360, Height: 300}, ChildCount: 2, ChildHeights: []float64{40, 260}},
	}
	chosen := ChooseFrame(own, ancestors)
	assert.Equal(t, 360.0, chosen.Width)
	assert.Equal(t, 300.0, chosen.Height)
}

func TestChooseFrameSkipsHugeAncestors(t *testing.T) {
	own := Box{X: 10, Y: 10, Width: 200, Height: 30}
	ancestors := []Ancestor{
		{Tag: "div", Class: "card", Box: Box{X: 0, Y: 0, Width: 1920, Height: 400}},
		{Tag: "div", Class: "card tall", Box: Box{X: 0, Y: 0, Width: 800, Height: 2400}},
	}
	chosen := ChooseFrame(own, ancestors)
	assert.Equal(t, own, chosen)
}

func TestChooseFrameDisqualifiesLooseFrames(t *testing.T) {
	// Candidate area over 10x the element's: too loose to be context.
	own := Box{X: 0, Y: 0, Width: 100, Height: 20}
	ancestors := []Ancestor{
		{Tag: "div", Class: "card", Box: Box{X: 0, Y: 0, Width: 800, Height: 700}},
	}
	chosen := ChooseFrame(own, ancestors)
	assert.Equal(t, own, chosen)
}

func TestChooseFrameRejectsRepeatedGrid(t *testing.T) {
	own := Box{X: 0, Y: 0, Width: 300, Height: 90}
	grid := Ancestor{
		Tag:          "div",
		Class:        "card-list",
		Box:          Box{X: 0, Y: 0, Width: 320, Height: 400},
		ChildCount:   4,
		ChildHeights: []float64{100, 98, 102, 100},
	}
	chosen := ChooseFrame(own, []Ancestor{grid})
	assert.Equal(t, own, chosen)
}

func TestIsRepeatedGrid(t *testing.T) {
	assert.True(t, isRepeatedGrid(Ancestor{
		Box: Box{Height: 400}, ChildCount: 4,
		ChildHeights: []float64{100, 95, 105, 100},
	}))
	// Uneven children: a real card with heading, body, and footer.
	assert.False(t, isRepeatedGrid(Ancestor{
		Box: Box{Height: 400}, ChildCount: 3,
		ChildHeights: []float64{40, 320, 40},
	}))
	assert.False(t, isRepeatedGrid(Ancestor{Box: Box{Height: 300}, ChildCount: 2, ChildHeights: []float64{150, 150}}))
}
