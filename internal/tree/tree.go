// Package tree is the story-tree engine: positional addressing, structural mutation, selection
// and the viewport centering that follows it.
//
// Cards live in pillars (one per depth). Each pillar is a list of families; each family holds the
// ordered children of one card in the previous pillar. Every card reserves a family in the next
// pillar, even before it has children, so pillar d+1 always has exactly as many families as
// pillar d has cards. The last pillar is always empty ("ghost") and waits for the deepest cards'
// first children.
package tree

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"storytree/internal/content"
	"storytree/internal/model"
	"storytree/internal/motion"
)

type Options struct {
	Layout    Layout
	Events    Events
	Views     ViewFactory
	Scheduler motion.Scheduler
	Logger    *slog.Logger

	// NewContent returns an empty card body. Defaults to an empty content.Delta.
	NewContent func() model.Content
}

// Tree is not safe for concurrent use: mutations must not interleave. Only the pillar animations
// run on their own schedule.
type Tree struct {
	pillars []*Pillar
	index   Indexer

	selected    int
	focused     bool
	highlighted []int
	viewDepth   int

	nextUID int
	instant bool

	layout     Layout
	events     Events
	views      ViewFactory
	sched      motion.Scheduler
	logger     *slog.Logger
	newContent func() model.Content
}

// New returns a tree holding a single empty root card. The root is reported through OnNewNode.
func New(opts Options) *Tree {
	t := newTree(opts)
	t.instant = true
	defer func() { t.instant = false }()

	root := t.attachNew(model.Node{UID: 0, Pos: model.Pos(0, 0, 0), Content: t.newContent()})
	t.nextUID = 1
	t.events.OnNewNode(root.UID(), root.Pos())
	t.applySelection(root, false, false)
	return t
}

// NewFromNodes rebuilds a tree from nodes. UIDs must be exactly 0..len-1 and there must be at least
// one node at depth 0; within each family indices must be dense. An empty list behaves like New.
// No events are emitted.
func NewFromNodes(nodes []model.Node, opts Options) (*Tree, error) {
	if len(nodes) == 0 {
		return New(opts), nil
	}
	sorted := make([]model.Node, len(nodes))
	copy(sorted, nodes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].UID < sorted[j].UID })
	hasRoot := false
	for i, n := range sorted {
		if n.UID != i {
			return nil, fmt.Errorf("build tree: uid %d at slot %d (uids must be contiguous from 0): %w", n.UID, i, ErrDataInconsistency)
		}
		if n.Pos.Depth == 0 {
			hasRoot = true
		}
	}
	if !hasRoot {
		return nil, fmt.Errorf("build tree: no node at depth 0: %w", ErrDataInconsistency)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Pos.Less(sorted[j].Pos) })

	t := newTree(opts)
	t.instant = true
	defer func() { t.instant = false }()

	for _, n := range sorted {
		if err := t.validateNewNode(n.Pos); err != nil {
			return nil, fmt.Errorf("build tree: node %d at %s: %w", n.UID, n.Pos, err)
		}
		if n.Pos.Index != t.pillars[n.Pos.Depth].FamilyLen(n.Pos.Family) {
			return nil, fmt.Errorf("build tree: node %d at %s leaves a gap: %w", n.UID, n.Pos, ErrIndexOutOfBounds)
		}
		if n.Content == nil {
			n.Content = t.newContent()
		}
		t.attachNew(n)
	}
	t.nextUID = len(sorted)

	first := t.pillars[0].Family(0).Card(0)
	t.applySelection(first, false, false)
	return t, nil
}

func newTree(opts Options) *Tree {
	t := &Tree{
		layout:     opts.Layout.withDefaults(),
		events:     opts.Events,
		views:      opts.Views,
		sched:      opts.Scheduler,
		logger:     opts.Logger,
		newContent: opts.NewContent,
	}
	if t.events == nil {
		t.events = NopEvents{}
	}
	if t.views == nil {
		w, h := t.layout.CardWidth, t.layout.PlaceholderHeight
		t.views = func(*Card) View { return FixedView{Width: w, Height: h} }
	}
	if t.sched == nil {
		t.sched = motion.NewTickerScheduler()
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if t.newContent == nil {
		t.newContent = content.Empty
	}
	root := t.appendPillar()
	root.AppendFamily()
	t.appendPillar()
	return t
}

// attachNew appends a node while building: the card goes to the end of its family and reserves
// its child family at the end of the next pillar. Valid only for nodes arriving in position order.
func (t *Tree) attachNew(n model.Node) *Card {
	card := t.newCard(n)
	p := t.pillars[n.Pos.Depth]
	p.Family(n.Pos.Family).AppendCard(card)
	if n.Pos.Depth == len(t.pillars)-1 {
		t.appendPillar()
	}
	t.pillars[n.Pos.Depth+1].AppendFamily()
	t.index.Set(n.UID, card.Pos())
	return card
}

func (t *Tree) newCard(n model.Node) *Card {
	c := newCard(n)
	c.view = t.views(c)
	return c
}

// appendPillar adds an empty pillar (no families) at the end, lined up with the current view.
func (t *Tree) appendPillar() *Pillar {
	depth := len(t.pillars)
	start := motion.Vec{
		X: t.pillarX(depth),
		Y: t.layout.ViewHeight/2 - t.layout.TopMargin,
	}
	p := &Pillar{
		depth:  depth,
		layout: &t.layout,
		period: t.period,
	}
	p.ctrl = motion.NewController(t.sched,
		motion.WithFramePeriod(t.layout.FramePeriod),
		motion.WithLogger(t.logger),
		motion.WithName(fmt.Sprintf("pillar-%d", depth)),
		motion.WithStart(start),
	)
	t.pillars = append(t.pillars, p)
	return p
}

func (t *Tree) popPillar() {
	last := t.pillars[len(t.pillars)-1]
	last.ctrl.Stop()
	t.pillars[len(t.pillars)-1] = nil
	t.pillars = t.pillars[:len(t.pillars)-1]
}

// pillarX is the resting x offset of a pillar while the view is on viewDepth.
func (t *Tree) pillarX(depth int) float64 {
	return t.layout.ViewWidth/2 - t.layout.CardWidth/2 + float64(depth-t.viewDepth)*t.layout.PillarStride()
}

func (t *Tree) period() time.Duration {
	if t.instant || t.layout.Period < 0 {
		return 0
	}
	return t.layout.Period
}

// validatePos checks that pos addresses an existing card.
func (t *Tree) validatePos(pos model.Position) error {
	if !pos.Valid() {
		return fmt.Errorf("%s: %w", pos, ErrInvalidPosition)
	}
	if pos.Depth >= len(t.pillars)-1 {
		return fmt.Errorf("%s: depth %d of %d: %w", pos, pos.Depth, len(t.pillars)-1, ErrDepthExceeded)
	}
	p := t.pillars[pos.Depth]
	if pos.Family >= p.FamilyCount() {
		return fmt.Errorf("%s: family %d of %d: %w", pos, pos.Family, p.FamilyCount(), ErrIndexOutOfBounds)
	}
	if n := p.FamilyLen(pos.Family); pos.Index >= n {
		return fmt.Errorf("%s: index %d of %d: %w", pos, pos.Index, n, ErrIndexOutOfBounds)
	}
	return nil
}

// validateNewNode checks that a card could be inserted at pos.
func (t *Tree) validateNewNode(pos model.Position) error {
	if !pos.Valid() {
		return fmt.Errorf("%s: %w", pos, ErrInvalidPosition)
	}
	if pos.Depth > len(t.pillars)-1 {
		return fmt.Errorf("%s: depth %d of %d: %w", pos, pos.Depth, len(t.pillars)-1, ErrDepthExceeded)
	}
	if pos.Depth == 0 && pos.Family != 0 {
		return fmt.Errorf("%s: %w", pos, ErrOneRootFamily)
	}
	p := t.pillars[pos.Depth]
	if pos.Family >= p.FamilyCount() {
		return fmt.Errorf("%s: family %d of %d: %w", pos, pos.Family, p.FamilyCount(), ErrOrphanNode)
	}
	if n := p.FamilyLen(pos.Family); pos.Index > n {
		return fmt.Errorf("%s: index %d of %d: %w", pos, pos.Index, n, ErrIndexOutOfBounds)
	}
	return nil
}

func (t *Tree) cardAt(pos model.Position) *Card {
	if pos.Depth < 0 || pos.Depth >= len(t.pillars) {
		return nil
	}
	f := t.pillars[pos.Depth].Family(pos.Family)
	if f == nil {
		return nil
	}
	return f.Card(pos.Index)
}

// flatIndex is the card's index counted across its pillar, which is also the index of its child
// family in the next pillar.
func (t *Tree) flatIndex(pos model.Position) int {
	return t.pillars[pos.Depth].CountCardsBefore(pos.Family) + pos.Index
}

// ChildFamily returns the position of the first slot in the card's reserved child family.
func (t *Tree) ChildFamily(pos model.Position) model.Position {
	return model.Pos(pos.Depth+1, t.flatIndex(pos), 0)
}

// Parent returns the parent card's position, or the null position at depth 0.
func (t *Tree) Parent(pos model.Position) model.Position {
	if pos.Depth <= 0 || pos.Depth >= len(t.pillars) {
		return model.NullPosition
	}
	f, i, err := t.pillars[pos.Depth-1].FamilyAndIndex(pos.Family)
	if err != nil {
		return model.NullPosition
	}
	return model.Pos(pos.Depth-1, f, i)
}

func (t *Tree) hasChildren(pos model.Position) bool {
	return t.pillars[pos.Depth+1].FamilyLen(t.flatIndex(pos)) > 0
}

// reindexFamily records the positions of every card in the family from index on.
func (t *Tree) reindexFamily(depth, family, from int) {
	f := t.pillars[depth].Family(family)
	if f == nil {
		return
	}
	for _, c := range f.cards[min(max(from, 0), f.Len()):] {
		t.index.Set(c.UID(), c.Pos())
	}
}

// reindexPillar records the positions of every card in families [from, end).
func (t *Tree) reindexPillar(depth, from int) {
	if depth >= len(t.pillars) {
		return
	}
	p := t.pillars[depth]
	for fi := max(from, 0); fi < p.FamilyCount(); fi++ {
		t.reindexFamily(depth, fi, 0)
	}
}

// renumber rewrites every card position from scratch and refreshes the indexer.
func (t *Tree) renumber() {
	for d, p := range t.pillars {
		p.depth = d
		for fi, f := range p.families {
			for ci, c := range f.cards {
				c.setPos(model.Pos(d, fi, ci))
				t.index.Set(c.UID(), c.Pos())
			}
		}
	}
}

// normalizePillars restores the single trailing ghost pillar.
func (t *Tree) normalizePillars() {
	for {
		last := t.pillars[len(t.pillars)-1]
		n := last.CountCards()
		if n == 0 {
			break
		}
		ghost := t.appendPillar()
		for i := 0; i < n; i++ {
			ghost.AppendFamily()
		}
	}
	for len(t.pillars) > 2 && t.pillars[len(t.pillars)-2].CountCards() == 0 {
		t.popPillar()
	}
}

// Selected is the selected card's position.
func (t *Tree) Selected() model.Position { return t.index.Get(t.selected) }

func (t *Tree) SelectedNode() model.Node {
	if c := t.cardAt(t.Selected()); c != nil {
		return c.Node()
	}
	return model.Node{UID: -1, Pos: model.NullPosition}
}

// Focused reports whether the selected card is being edited.
func (t *Tree) Focused() bool { return t.focused }

func (t *Tree) Node(pos model.Position) (model.Node, error) {
	if err := t.validatePos(pos); err != nil {
		return model.Node{}, err
	}
	return t.cardAt(pos).Node(), nil
}

// Card returns the card at pos, or nil.
func (t *Tree) Card(pos model.Position) *Card { return t.cardAt(pos) }

// PositionOf returns the uid's position, or the null position once deleted.
func (t *Tree) PositionOf(uid int) model.Position { return t.index.Get(uid) }

// NextUID is the uid the next inserted card will get.
func (t *Tree) NextUID() int { return t.nextUID }

func (t *Tree) Layout() Layout { return t.layout }

// SetEvents replaces the listener. A nil listener silences the tree.
func (t *Tree) SetEvents(ev Events) {
	if ev == nil {
		ev = NopEvents{}
	}
	t.events = ev
}

// PillarCount includes the ghost pillar.
func (t *Tree) PillarCount() int { return len(t.pillars) }

func (t *Tree) Pillar(depth int) *Pillar {
	if depth < 0 || depth >= len(t.pillars) {
		return nil
	}
	return t.pillars[depth]
}

// Nodes returns every live node ordered by uid.
func (t *Tree) Nodes() []model.Node {
	var out []model.Node
	for _, p := range t.pillars {
		for _, f := range p.families {
			for _, c := range f.cards {
				out = append(out, c.Node())
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

// Typology lists the family sizes of every pillar except the ghost.
func (t *Tree) Typology() [][]int {
	out := make([][]int, 0, len(t.pillars)-1)
	for _, p := range t.pillars[:len(t.pillars)-1] {
		sizes := make([]int, p.FamilyCount())
		for i, f := range p.families {
			sizes[i] = f.Len()
		}
		out = append(out, sizes)
	}
	return out
}

// Animating reports whether any pillar is still moving.
func (t *Tree) Animating() bool {
	for _, p := range t.pillars {
		if p.ctrl.Animating() {
			return true
		}
	}
	return false
}

// SetViewport resizes the view. Every pillar is translated by half the size change, which keeps
// the selection centered; running animations carry on from the new place.
func (t *Tree) SetViewport(width, height float64) {
	if width <= 0 || height <= 0 {
		return
	}
	dw := (width - t.layout.ViewWidth) / 2
	dh := (height - t.layout.ViewHeight) / 2
	t.layout.ViewWidth = width
	t.layout.ViewHeight = height
	if dw == 0 && dh == 0 {
		return
	}
	for _, p := range t.pillars {
		p.ctrl.Translate(motion.Vec{X: dw, Y: dh})
	}
}

// CheckInvariants verifies the structural invariants and the indexer.
func (t *Tree) CheckInvariants() error {
	if len(t.pillars) < 2 {
		return fmt.Errorf("%d pillars: %w", len(t.pillars), ErrDataInconsistency)
	}
	if n := t.pillars[0].FamilyCount(); n != 1 {
		return fmt.Errorf("depth 0 has %d families: %w", n, ErrDataInconsistency)
	}
	if t.pillars[0].CountCards() == 0 {
		return fmt.Errorf("depth 0 has no cards: %w", ErrDataInconsistency)
	}
	for d := 0; d+1 < len(t.pillars); d++ {
		cards, fams := t.pillars[d].CountCards(), t.pillars[d+1].FamilyCount()
		if cards != fams {
			return fmt.Errorf("depth %d has %d cards but depth %d has %d families: %w", d, cards, d+1, fams, ErrDataInconsistency)
		}
	}
	if n := t.pillars[len(t.pillars)-1].CountCards(); n != 0 {
		return fmt.Errorf("ghost pillar holds %d cards: %w", n, ErrDataInconsistency)
	}
	alive := 0
	for d, p := range t.pillars {
		if p.depth != d {
			return fmt.Errorf("pillar %d reports depth %d: %w", d, p.depth, ErrDataInconsistency)
		}
		for fi, f := range p.families {
			for ci, c := range f.cards {
				want := model.Pos(d, fi, ci)
				if c.Pos() != want {
					return fmt.Errorf("card %d at %s records %s: %w", c.UID(), want, c.Pos(), ErrDataInconsistency)
				}
				if got := t.index.Get(c.UID()); got != want {
					return fmt.Errorf("indexer has card %d at %s, want %s: %w", c.UID(), got, want, ErrDataInconsistency)
				}
				alive++
			}
		}
	}
	if n := t.index.Alive(); n != alive {
		return fmt.Errorf("indexer has %d live uids, tree has %d cards: %w", n, alive, ErrDataInconsistency)
	}
	if t.index.Len() > t.nextUID {
		return fmt.Errorf("indexer has %d slots beyond next uid %d: %w", t.index.Len(), t.nextUID, ErrDataInconsistency)
	}
	if t.cardAt(t.Selected()) == nil {
		return fmt.Errorf("selection uid %d is not in the tree: %w", t.selected, ErrDataInconsistency)
	}
	return nil
}
