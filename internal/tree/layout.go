package tree

import (
	"time"

	"storytree/internal/motion"
)

// Layout holds the geometry used for centering. Units are whatever the View reports
// (terminal cells in the TUI).
type Layout struct {
	ViewWidth  float64 `json:"viewWidth"`
	ViewHeight float64 `json:"viewHeight"`

	CardWidth float64 `json:"cardWidth"`
	// PlaceholderHeight is the height previewed for an empty child slot.
	PlaceholderHeight float64 `json:"placeholderHeight"`

	CardMargin   float64 `json:"cardMargin"`
	FamilyMargin float64 `json:"familyMargin"`
	PillarMargin float64 `json:"pillarMargin"`
	TopMargin    float64 `json:"topMargin"`

	// Period is the duration of one centering animation. Zero takes the default; NoAnimation
	// (any negative value) jumps straight to the target.
	Period      time.Duration `json:"period"`
	FramePeriod time.Duration `json:"framePeriod"`
}

// NoAnimation disables centering animations when used as Layout.Period.
const NoAnimation time.Duration = -1

func DefaultLayout() Layout {
	return Layout{
		ViewWidth:         120,
		ViewHeight:        40,
		CardWidth:         32,
		PlaceholderHeight: 3,
		CardMargin:        1,
		FamilyMargin:      1,
		PillarMargin:      4,
		TopMargin:         0,
		Period:            240 * time.Millisecond,
		FramePeriod:       motion.DefaultFramePeriod,
	}
}

func (l Layout) withDefaults() Layout {
	d := DefaultLayout()
	if l.ViewWidth <= 0 {
		l.ViewWidth = d.ViewWidth
	}
	if l.ViewHeight <= 0 {
		l.ViewHeight = d.ViewHeight
	}
	if l.CardWidth <= 0 {
		l.CardWidth = d.CardWidth
	}
	if l.PlaceholderHeight <= 0 {
		l.PlaceholderHeight = d.PlaceholderHeight
	}
	if l.FramePeriod <= 0 {
		l.FramePeriod = d.FramePeriod
	}
	if l.Period == 0 {
		l.Period = d.Period
	}
	return l
}

// PillarStride is the horizontal distance between neighbouring pillars.
func (l Layout) PillarStride() float64 { return l.CardWidth + l.PillarMargin }

// View reports the rendered extent of a card. Size must be cheap and free of side effects.
type View interface {
	Size() (width, height float64)
}

// ViewFactory builds the view for a card as it is attached to the tree.
type ViewFactory func(c *Card) View

// FixedView is a View of constant size.
type FixedView struct {
	Width  float64
	Height float64
}

func (v FixedView) Size() (float64, float64) { return v.Width, v.Height }
