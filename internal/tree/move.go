package tree

import (
	"fmt"
	"log/slog"

	"storytree/internal/model"
)

// detached is a card lifted out of the tree together with its descendants. blocks[j] holds the
// families of pillar depth+1+j that belong to the subtree; they are contiguous in every pillar.
type detached struct {
	card   *Card
	blocks [][]*Family
}

// MoveNode relocates the card at from, with its whole subtree, so that it ends up at to. The
// target is read against the tree with the subtree already lifted out, so moving a card down
// within its family means naming the slot after the sibling it should pass.
//
// On a rejected target the tree is left as it was.
func (t *Tree) MoveNode(from, to model.Position) (model.Node, error) {
	if err := t.validatePos(from); err != nil {
		return model.Node{}, fmt.Errorf("move node: %w", err)
	}
	d, err := t.detach(from)
	if err != nil {
		return model.Node{}, fmt.Errorf("move node: %w", err)
	}
	if verr := t.validateNewNode(to); verr != nil {
		if err := t.attach(d, from); err != nil {
			return model.Node{}, fmt.Errorf("move node: restore %s: %w: %w", from, ErrDataInconsistency, err)
		}
		t.refresh()
		return model.Node{}, fmt.Errorf("move node %s: %w", from, verr)
	}
	if err := t.attach(d, to); err != nil {
		return model.Node{}, fmt.Errorf("move node: %w: %w", ErrDataInconsistency, err)
	}

	uid := d.card.UID()
	if to != from {
		t.logger.Debug("node moved", slog.Int("uid", uid), slog.String("from", from.String()), slog.String("to", to.String()))
		t.events.OnMoveNode(uid, from, to)
	}
	t.refresh()
	return d.card.Node(), nil
}

func (t *Tree) detach(pos model.Position) (detached, error) {
	spans := t.subtreeSpans(pos)
	d := detached{card: t.cardAt(pos), blocks: make([][]*Family, 0, len(spans))}
	for _, sp := range spans {
		fams, err := t.pillars[sp.depth].removeFamilies(sp.from, sp.to)
		if err != nil {
			return detached{}, fmt.Errorf("%w: %w", ErrDataInconsistency, err)
		}
		d.blocks = append(d.blocks, fams)
	}
	if _, err := t.pillars[pos.Depth].Family(pos.Family).removeCard(pos.Index); err != nil {
		return detached{}, fmt.Errorf("%w: %w", ErrDataInconsistency, err)
	}
	t.normalizePillars()
	return d, nil
}

// attach inserts a detached subtree with its root at pos, which must already be validated.
func (t *Tree) attach(d detached, pos model.Position) error {
	d.card.setPos(pos)
	if err := t.pillars[pos.Depth].Family(pos.Family).InsertCard(d.card); err != nil {
		return err
	}
	at := t.flatIndex(pos)
	for j, block := range d.blocks {
		depth := pos.Depth + 1 + j
		if depth == len(t.pillars) {
			p := t.appendPillar()
			for i := t.pillars[depth-1].CountCards() - len(block); i > 0; i-- {
				p.AppendFamily()
			}
		}
		p := t.pillars[depth]
		if at > p.FamilyCount() {
			return fmt.Errorf("attach block at family %d of %d, depth %d: %w", at, p.FamilyCount(), depth, ErrIndexOutOfBounds)
		}
		p.insertFamilies(at, block)
		at = p.CountCardsBefore(at)
	}
	t.normalizePillars()
	t.renumber()
	return nil
}

// MoveUp swaps the selection with the sibling above it. The first card of a family moves to the
// end of the previous family instead.
func (t *Tree) MoveUp() error {
	pos := t.Selected()
	var to model.Position
	switch {
	case pos.Index > 0:
		to = pos.Dec()
	case pos.Family > 0:
		to = model.Pos(pos.Depth, pos.Family-1, t.pillars[pos.Depth].FamilyLen(pos.Family-1))
	default:
		return nil
	}
	_, err := t.MoveNode(pos, to)
	return err
}

// MoveDown swaps the selection with the sibling below it. The last card of a family moves to the
// start of the next family instead.
func (t *Tree) MoveDown() error {
	pos := t.Selected()
	p := t.pillars[pos.Depth]
	var to model.Position
	switch {
	case pos.Index+1 < p.FamilyLen(pos.Family):
		to = pos.Inc()
	case pos.Family+1 < p.FamilyCount():
		to = model.Pos(pos.Depth, pos.Family+1, 0)
	default:
		return nil
	}
	_, err := t.MoveNode(pos, to)
	return err
}

// Indent makes the selection the last child of the sibling above it.
func (t *Tree) Indent() error {
	pos := t.Selected()
	if pos.Index == 0 {
		return nil
	}
	prev := pos.Dec()
	to := t.ChildFamily(prev)
	to.Index = t.pillars[to.Depth].FamilyLen(to.Family)
	_, err := t.MoveNode(pos, to)
	return err
}

// Outdent makes the selection the sibling right after its parent.
func (t *Tree) Outdent() error {
	pos := t.Selected()
	parent := t.Parent(pos)
	if parent.IsNull() {
		return nil
	}
	_, err := t.MoveNode(pos, parent.Inc())
	return err
}
