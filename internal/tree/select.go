package tree

import (
	"fmt"
	"log/slog"
	"sort"

	"storytree/internal/model"
)

// FamilyRef names a family within a pillar.
type FamilyRef struct {
	Depth  int `json:"depth"`
	Family int `json:"family"`
}

// Selection is the bookkeeping behind the highlighted lineage of the selected card.
type Selection struct {
	Current  model.Position `json:"current"`
	Parent   model.Position `json:"parent"`
	Family   FamilyRef      `json:"family"`
	Children FamilyRef      `json:"children"`
	Focused  bool           `json:"focused"`
}

func (t *Tree) Selection() Selection {
	pos := t.Selected()
	if pos.IsNull() {
		return Selection{Current: pos, Parent: model.NullPosition}
	}
	return Selection{
		Current:  pos,
		Parent:   t.Parent(pos),
		Family:   FamilyRef{Depth: pos.Depth, Family: pos.Family},
		Children: FamilyRef{Depth: pos.Depth + 1, Family: t.flatIndex(pos)},
		Focused:  t.focused,
	}
}

// Highlighted lists the positions of every emphasized card (selection, siblings, parent,
// children) in position order.
func (t *Tree) Highlighted() []model.Position {
	out := make([]model.Position, 0, len(t.highlighted))
	for _, uid := range t.highlighted {
		if p := t.index.Get(uid); !p.IsNull() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// SelectNode makes the card at pos current, optionally focusing it for editing, and moves the
// view so it is centered with its lineage lined up.
func (t *Tree) SelectNode(pos model.Position, focus bool) error {
	if err := t.validatePos(pos); err != nil {
		return fmt.Errorf("select node: %w", err)
	}
	t.applySelection(t.cardAt(pos), focus, true)
	return nil
}

func (t *Tree) applySelection(card *Card, focus, emit bool) {
	t.clearHighlight()

	pos := card.Pos()
	t.selected = card.UID()
	t.focused = focus

	if parent := t.cardAt(t.Parent(pos)); parent != nil {
		t.highlight(parent, StateHighlighted)
	}
	for _, sib := range t.pillars[pos.Depth].Family(pos.Family).cards {
		t.highlight(sib, StateHighlighted)
	}
	if children := t.pillars[pos.Depth+1].Family(t.flatIndex(pos)); children != nil {
		for _, c := range children.cards {
			t.highlight(c, StateHighlighted)
		}
	}
	if focus {
		card.setState(StateFocused)
	} else {
		card.setState(StateSelected)
	}

	if pos.Depth != t.viewDepth {
		dx := float64(t.viewDepth-pos.Depth) * t.layout.PillarStride()
		for _, p := range t.pillars {
			p.Slide(dx)
		}
		t.viewDepth = pos.Depth
	}
	t.center(pos)

	if emit {
		t.logger.Debug("node selected", slog.Int("uid", card.UID()), slog.String("pos", pos.String()), slog.Bool("focus", focus))
		t.events.OnSelectNode(card.Node())
	}
}

func (t *Tree) highlight(c *Card, s CardState) {
	c.setState(s)
	t.highlighted = append(t.highlighted, c.UID())
}

func (t *Tree) clearHighlight() {
	for _, uid := range t.highlighted {
		if c := t.cardAt(t.index.Get(uid)); c != nil {
			c.setState(StateDull)
		}
	}
	if c := t.cardAt(t.index.Get(t.selected)); c != nil {
		c.setState(StateDull)
	}
	t.highlighted = t.highlighted[:0]
}

// refresh re-applies the current selection after a structural change, without reporting it.
func (t *Tree) refresh() {
	c := t.cardAt(t.index.Get(t.selected))
	if c == nil {
		return
	}
	t.applySelection(c, t.focused, false)
}

// center scrolls the selected pillar onto pos, every ancestor pillar onto the lineage, and every
// descendant pillar onto the children (or onto where the first child would go).
func (t *Tree) center(pos model.Position) {
	t.pillars[pos.Depth].CenterCard(pos.Family, pos.Index)

	for cur := pos; cur.Depth > 0; {
		parent := t.Parent(cur)
		if parent.IsNull() {
			break
		}
		t.pillars[parent.Depth].CenterCard(parent.Family, parent.Index)
		cur = parent
	}

	family := t.flatIndex(pos)
	for depth := pos.Depth + 1; depth < len(t.pillars); depth++ {
		p := t.pillars[depth]
		f := p.Family(family)
		if f == nil {
			break
		}
		if !f.IsEmpty() {
			p.CenterFamily(family)
			family = p.CountCardsBefore(family)
			continue
		}
		h := t.layout.PlaceholderHeight
		switch {
		case p.IsEmpty(0, family):
			p.CenterBegin(h)
		case p.IsEmpty(family+1, -1):
			p.CenterEnd(h)
		default:
			p.CenterFamily(family)
		}
		break
	}
}

// Up selects the card above the selection; a no-op at the top of the pillar.
func (t *Tree) Up() error {
	pos := t.Selected()
	target := pos.Above(t.pillars[pos.Depth])
	if target.IsNull() {
		return nil
	}
	return t.SelectNode(target, false)
}

func (t *Tree) Down() error {
	pos := t.Selected()
	target := pos.Below(t.pillars[pos.Depth])
	if target.IsNull() {
		return nil
	}
	return t.SelectNode(target, false)
}

// Left selects the parent.
func (t *Tree) Left() error {
	parent := t.Parent(t.Selected())
	if parent.IsNull() {
		return nil
	}
	return t.SelectNode(parent, false)
}

// Right selects the first child. A card without children leads to the first child of the nearest
// sibling that has some, looking above before below at each distance.
func (t *Tree) Right() error {
	pos := t.Selected()
	if t.hasChildren(pos) {
		return t.SelectNode(t.ChildFamily(pos), false)
	}
	n := t.pillars[pos.Depth].FamilyLen(pos.Family)
	for dist := 1; pos.Index-dist >= 0 || pos.Index+dist < n; dist++ {
		for _, idx := range []int{pos.Index - dist, pos.Index + dist} {
			if idx < 0 || idx >= n {
				continue
			}
			sib := model.Pos(pos.Depth, pos.Family, idx)
			if t.hasChildren(sib) {
				return t.SelectNode(t.ChildFamily(sib), false)
			}
		}
	}
	return nil
}

// CreateAbove inserts an empty card in the selection's slot and focuses it.
func (t *Tree) CreateAbove() (model.Node, error) {
	return t.InsertNode(t.Selected(), true, nil)
}

// CreateBelow inserts an empty card right after the selection and focuses it.
func (t *Tree) CreateBelow() (model.Node, error) {
	return t.InsertNode(t.Selected().Inc(), true, nil)
}

// CreateChild appends an empty card to the selection's children and focuses it.
func (t *Tree) CreateChild() (model.Node, error) {
	child := t.ChildFamily(t.Selected())
	child.Index = t.pillars[child.Depth].FamilyLen(child.Family)
	return t.InsertNode(child, true, nil)
}
