package tree

import (
	"fmt"
	"time"

	"storytree/internal/motion"
)

// Pillar is one depth column: an ordered list of families, plus the controller that scrolls it.
type Pillar struct {
	depth    int
	families []*Family
	layout   *Layout
	ctrl     *motion.Controller
	period   func() time.Duration
}

func (p *Pillar) Depth() int { return p.depth }
func (p *Pillar) FamilyCount() int { return len(p.families) }
func (p *Pillar) Controller() *motion.Controller { return p.ctrl }

// Offset is the pillar's current on-screen origin.
func (p *Pillar) Offset() motion.Vec { return p.ctrl.Pos() }

func (p *Pillar) Family(index int) *Family {
	if index < 0 || index >= len(p.families) {
		return nil
	}
	return p.families[index]
}

func (p *Pillar) FamilyLen(index int) int {
	if f := p.Family(index); f != nil {
		return f.Len()
	}
	return 0
}

func (p *Pillar) InsertFamily(index int) error {
	if index < 0 || index > len(p.families) {
		return fmt.Errorf("insert family %d of %d at depth %d: %w", index, len(p.families), p.depth, ErrIndexOutOfBounds)
	}
	p.insertFamilies(index, []*Family{newFamily(p.layout.CardMargin)})
	return nil
}

func (p *Pillar) AppendFamily() *Family {
	f := newFamily(p.layout.CardMargin)
	p.families = append(p.families, f)
	return f
}

// DeleteFamily removes the family at index and returns the uids of its cards, whose positions are
// nulled. Later families move up by one.
func (p *Pillar) DeleteFamily(index int) ([]int, error) {
	return p.DeleteFamilies(index, index+1)
}

// DeleteFamilies removes the half-open family range [from, to).
func (p *Pillar) DeleteFamilies(from, to int) ([]int, error) {
	removed, err := p.removeFamilies(from, to)
	if err != nil {
		return nil, err
	}
	var uids []int
	for _, f := range removed {
		for f.Len() > 0 {
			uid, _ := f.DeleteCard(f.Len() - 1)
			uids = append(uids, uid)
		}
	}
	return uids, nil
}

func (p *Pillar) removeFamilies(from, to int) ([]*Family, error) {
	if from < 0 || to > len(p.families) || from > to {
		return nil, fmt.Errorf("delete families [%d,%d) of %d at depth %d: %w", from, to, len(p.families), p.depth, ErrIndexOutOfBounds)
	}
	n := to - from
	removed := make([]*Family, n)
	copy(removed, p.families[from:to])
	for _, f := range p.families[to:] {
		f.ShiftFamilyIndex(-n)
	}
	p.families = append(p.families[:from], p.families[to:]...)
	return removed, nil
}

func (p *Pillar) insertFamilies(at int, fams []*Family) {
	n := len(fams)
	for _, f := range p.families[at:] {
		f.ShiftFamilyIndex(n)
	}
	out := make([]*Family, 0, len(p.families)+n)
	out = append(out, p.families[:at]...)
	out = append(out, fams...)
	out = append(out, p.families[at:]...)
	p.families = out
}

// CountCards is the number of cards in the pillar.
func (p *Pillar) CountCards() int {
	return p.CountCardsBefore(len(p.families))
}

// CountCardsBefore is the number of cards in families [0, family). It is the flat index of the
// family's first card, and so the index of that card's child family in the next pillar.
func (p *Pillar) CountCardsBefore(family int) int {
	if family > len(p.families) {
		family = len(p.families)
	}
	n := 0
	for _, f := range p.families[:max(family, 0)] {
		n += f.Len()
	}
	return n
}

// FamilyAndIndex translates a flat card index into (family, index).
func (p *Pillar) FamilyAndIndex(flat int) (int, int, error) {
	if flat >= 0 {
		rest := flat
		for fi, f := range p.families {
			if rest < f.Len() {
				return fi, rest, nil
			}
			rest -= f.Len()
		}
	}
	return -1, -1, fmt.Errorf("flat index %d of %d at depth %d: %w", flat, p.CountCards(), p.depth, ErrIndexOutOfBounds)
}

// IsEmpty reports whether every family in [from, to) has no cards. A negative to means the end.
func (p *Pillar) IsEmpty(from int, to int) bool {
	if to < 0 || to > len(p.families) {
		to = len(p.families)
	}
	for i := max(from, 0); i < to; i++ {
		if !p.families[i].IsEmpty() {
			return false
		}
	}
	return true
}

// familyTop is the content offset of the family's top edge.
func (p *Pillar) familyTop(family int) float64 {
	y := p.layout.TopMargin
	for _, f := range p.families[:min(family, len(p.families))] {
		if f.IsEmpty() {
			continue
		}
		y += f.Extent() + p.layout.FamilyMargin
	}
	return y
}

func (p *Pillar) CenterCard(family, index int) {
	f := p.Family(family)
	if f == nil {
		return
	}
	p.centerOn(p.familyTop(family) + f.CardOffset(index))
}

func (p *Pillar) CenterFamily(family int) {
	f := p.Family(family)
	if f == nil {
		return
	}
	p.centerOn(p.familyTop(family) + f.Extent()/2)
}

// CenterBegin centers a would-be slot of the given height above the first family.
func (p *Pillar) CenterBegin(height float64) {
	p.centerOn(p.layout.TopMargin - p.layout.FamilyMargin - height/2)
}

// CenterEnd centers a would-be slot of the given height below the last family.
func (p *Pillar) CenterEnd(height float64) {
	p.centerOn(p.familyTop(len(p.families)) + height/2)
}

func (p *Pillar) centerOn(y float64) {
	target := p.ctrl.Target()
	delta := p.layout.ViewHeight/2 - (target.Y + y)
	p.ctrl.Shift(motion.Vec{Y: delta}, p.period())
}

// Slide moves the pillar horizontally by dx.
func (p *Pillar) Slide(dx float64) {
	p.ctrl.Shift(motion.Vec{X: dx}, p.period())
}
