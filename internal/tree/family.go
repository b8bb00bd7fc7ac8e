package tree

import (
	"fmt"

	"storytree/internal/model"
)

// Family is an ordered group of sibling cards sharing one parent. Member indices are always
// 0..Len()-1 in order.
type Family struct {
	cards  []*Card
	margin float64
}

func newFamily(cardMargin float64) *Family {
	return &Family{margin: cardMargin}
}

func (f *Family) Len() int { return len(f.cards) }
func (f *Family) IsEmpty() bool { return len(f.cards) == 0 }
func (f *Family) Cards() []*Card { return f.cards }

// Fixed reports whether the family still has its collapsed, fixed height (no cards yet).
func (f *Family) Fixed() bool { return f.IsEmpty() }

func (f *Family) Card(index int) *Card {
	if index < 0 || index >= len(f.cards) {
		return nil
	}
	return f.cards[index]
}

// InsertCard places card at card.Pos().Index, moving the member at that slot and every later
// member down by one.
func (f *Family) InsertCard(card *Card) error {
	idx := card.Pos().Index
	if idx < 0 || idx > len(f.cards) {
		return fmt.Errorf("insert card at index %d of %d: %w", idx, len(f.cards), ErrIndexOutOfBounds)
	}
	if idx == len(f.cards) {
		f.AppendCard(card)
		return nil
	}
	for _, c := range f.cards[idx:] {
		c.setPos(c.Pos().Inc())
	}
	f.cards = append(f.cards, nil)
	copy(f.cards[idx+1:], f.cards[idx:])
	f.cards[idx] = card
	return nil
}

func (f *Family) AppendCard(card *Card) {
	p := card.Pos()
	p.Index = len(f.cards)
	card.setPos(p)
	f.cards = append(f.cards, card)
}

// DeleteCard removes the member at index, nulls its position and returns its uid.
func (f *Family) DeleteCard(index int) (int, error) {
	c, err := f.removeCard(index)
	if err != nil {
		return -1, err
	}
	c.setPos(model.NullPosition)
	return c.UID(), nil
}

func (f *Family) removeCard(index int) (*Card, error) {
	if index < 0 || index >= len(f.cards) {
		return nil, fmt.Errorf("delete card at index %d of %d: %w", index, len(f.cards), ErrIndexOutOfBounds)
	}
	c := f.cards[index]
	copy(f.cards[index:], f.cards[index+1:])
	f.cards[len(f.cards)-1] = nil
	f.cards = f.cards[:len(f.cards)-1]
	for _, m := range f.cards[index:] {
		m.setPos(m.Pos().Dec())
	}
	return c, nil
}

// ShiftFamilyIndex moves every member's family coordinate by delta.
func (f *Family) ShiftFamilyIndex(delta int) {
	for _, c := range f.cards {
		c.setPos(c.Pos().Shift(model.PositionDelta{Family: delta}))
	}
}

// Extent is the family's rendered height. Empty families collapse to zero.
func (f *Family) Extent() float64 {
	total := 0.0
	for _, c := range f.cards {
		total += c.Height() + f.margin
	}
	return total
}

// CardOffset is the distance from the family top to the middle of the card at index.
// On an empty family it is half the family's own extent.
func (f *Family) CardOffset(index int) float64 {
	if f.IsEmpty() {
		return f.Extent() / 2
	}
	y := 0.0
	for i, c := range f.cards {
		if i == index {
			return y + c.Height()/2
		}
		y += c.Height() + f.margin
	}
	return y
}
