package tree

import (
	"fmt"
	"log/slog"

	"storytree/internal/model"
)

// InsertNode creates a card at pos, moving the card already there (and its later siblings) down.
// The new card reserves an empty child family. A nil body means an empty one.
func (t *Tree) InsertNode(pos model.Position, focus bool, body model.Content) (model.Node, error) {
	if err := t.validateNewNode(pos); err != nil {
		return model.Node{}, fmt.Errorf("insert node: %w", err)
	}
	if body == nil {
		body = t.newContent()
	}
	uid := t.nextUID
	card := t.newCard(model.Node{UID: uid, Pos: pos, Content: body})

	p := t.pillars[pos.Depth]
	flat := p.CountCardsBefore(pos.Family) + pos.Index
	if err := p.Family(pos.Family).InsertCard(card); err != nil {
		return model.Node{}, fmt.Errorf("insert node: %w", err)
	}
	t.nextUID++
	if pos.Depth == len(t.pillars)-1 {
		t.appendPillar()
	}
	next := t.pillars[pos.Depth+1]
	if err := next.InsertFamily(flat); err != nil {
		return model.Node{}, fmt.Errorf("insert node: reserve child family: %w: %w", ErrDataInconsistency, err)
	}
	t.reindexFamily(pos.Depth, pos.Family, pos.Index)
	t.reindexPillar(pos.Depth+1, flat+1)

	t.logger.Debug("node inserted", slog.Int("uid", uid), slog.String("pos", pos.String()))
	t.events.OnNewNode(uid, pos)

	if focus {
		t.applySelection(card, true, true)
	} else {
		t.refresh()
	}
	return card.Node(), nil
}

// subtreeSpan is a half-open family range in one pillar.
type subtreeSpan struct {
	depth int
	from  int
	to    int
}

// subtreeSpans lists, pillar by pillar, the family ranges holding the descendants of the card at
// pos. Descendants of one card are contiguous in every pillar.
func (t *Tree) subtreeSpans(pos model.Position) []subtreeSpan {
	var spans []subtreeSpan
	from := t.flatIndex(pos)
	to := from + 1
	for depth := pos.Depth + 1; depth < len(t.pillars) && from < to; depth++ {
		p := t.pillars[depth]
		spans = append(spans, subtreeSpan{depth: depth, from: from, to: to})
		from, to = p.CountCardsBefore(from), p.CountCardsBefore(to)
	}
	return spans
}

// DeleteNode removes the card at pos together with its whole subtree, then selects the nearest
// remaining card above, else below, else the parent.
//
// The last root card is never removed: its content is cleared instead.
func (t *Tree) DeleteNode(pos model.Position) error {
	if err := t.validatePos(pos); err != nil {
		return fmt.Errorf("delete node: %w", err)
	}
	card := t.cardAt(pos)
	if pos.Depth == 0 && t.pillars[0].CountCards() == 1 {
		t.clearContent(card)
		return nil
	}
	node := card.Node()

	// Collect first: every doomed uid and family range, before anything moves.
	spans := t.subtreeSpans(pos)
	doomed := []int{node.UID}
	for _, sp := range spans {
		p := t.pillars[sp.depth]
		for fi := sp.from; fi < sp.to; fi++ {
			for _, c := range p.families[fi].cards {
				doomed = append(doomed, c.UID())
			}
		}
	}

	// Apply.
	if _, err := t.pillars[pos.Depth].Family(pos.Family).DeleteCard(pos.Index); err != nil {
		return fmt.Errorf("delete node: %w: %w", ErrDataInconsistency, err)
	}
	for _, sp := range spans {
		if _, err := t.pillars[sp.depth].DeleteFamilies(sp.from, sp.to); err != nil {
			return fmt.Errorf("delete node: %w: %w", ErrDataInconsistency, err)
		}
	}
	for _, uid := range doomed {
		t.index.Tombstone(uid)
	}
	t.reindexFamily(pos.Depth, pos.Family, pos.Index)
	for _, sp := range spans {
		t.reindexPillar(sp.depth, sp.from)
	}
	t.normalizePillars()

	t.logger.Debug("node deleted",
		slog.Int("uid", node.UID),
		slog.String("pos", pos.String()),
		slog.Int("subtree", len(doomed)),
	)
	t.events.OnDeleteNode(node)

	next := t.nearestAfterDelete(pos)
	if next.IsNull() {
		return fmt.Errorf("delete node %s: nothing left to select: %w", pos, ErrDataInconsistency)
	}
	t.applySelection(t.cardAt(next), false, true)
	return nil
}

// nearestAfterDelete picks the card to select once the card at pos is gone.
func (t *Tree) nearestAfterDelete(pos model.Position) model.Position {
	p := t.pillars[pos.Depth]
	if above := pos.Above(p); !above.IsNull() {
		return above
	}
	// The card that used to be below now sits at pos itself.
	if below := pos.Dec().Below(p); !below.IsNull() {
		return below
	}
	return t.Parent(pos)
}

func (t *Tree) clearContent(card *Card) {
	empty := t.newContent()
	if card.Content() == nil || card.Content().IsEmpty() {
		card.setContent(empty)
		return
	}
	delta := card.Content().Diff(empty)
	card.setContent(card.Content().Compose(delta))
	t.logger.Debug("last root card cleared", slog.Int("uid", card.UID()))
	t.events.OnModifyNode(card.UID(), delta)
	t.refresh()
}

// ModifyNode composes delta into the content of the card at pos.
func (t *Tree) ModifyNode(pos model.Position, delta model.Content) (model.Node, error) {
	if err := t.validatePos(pos); err != nil {
		return model.Node{}, fmt.Errorf("modify node: %w", err)
	}
	card := t.cardAt(pos)
	if delta == nil {
		return card.Node(), nil
	}
	base := card.Content()
	if base == nil {
		base = t.newContent()
	}
	card.setContent(base.Compose(delta))
	t.events.OnModifyNode(card.UID(), delta)
	t.refresh()
	return card.Node(), nil
}

// SetContent replaces the card's content, reporting the change as a delta.
func (t *Tree) SetContent(pos model.Position, body model.Content) (model.Node, error) {
	if err := t.validatePos(pos); err != nil {
		return model.Node{}, fmt.Errorf("set content: %w", err)
	}
	base := t.cardAt(pos).Content()
	if base == nil {
		base = t.newContent()
	}
	if base.Equal(body) {
		return t.cardAt(pos).Node(), nil
	}
	return t.ModifyNode(pos, base.Diff(body))
}
