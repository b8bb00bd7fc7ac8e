package tree

import "storytree/internal/model"

// CardState is the visual emphasis of a card. Rendering it is up to the view.
type CardState int

const (
	StateDull CardState = iota
	StateHighlighted
	StateSelected
	StateFocused
)

func (s CardState) String() string {
	switch s {
	case StateHighlighted:
		return "highlighted"
	case StateSelected:
		return "selected"
	case StateFocused:
		return "focused"
	default:
		return "dull"
	}
}

// Card owns one node; it is the only writer of the node's position and content.
type Card struct {
	node  model.Node
	view  View
	state CardState
}

func newCard(node model.Node) *Card {
	return &Card{node: node}
}

func (c *Card) Node() model.Node { return c.node }
func (c *Card) UID() int { return c.node.UID }
func (c *Card) Pos() model.Position { return c.node.Pos }
func (c *Card) Content() model.Content { return c.node.Content }
func (c *Card) State() CardState { return c.state }
func (c *Card) Focused() bool { return c.state == StateFocused }
func (c *Card) Selected() bool { return c.state >= StateSelected }
func (c *Card) setPos(p model.Position) { c.node.Pos = p }
func (c *Card) setState(s CardState) { c.state = s }

func (c *Card) setContent(v model.Content) { c.node.Content = v }

// Height is the card's rendered height; cards without a view have none.
func (c *Card) Height() float64 {
	if c.view == nil {
		return 0
	}
	_, h := c.view.Size()
	return h
}

func (c *Card) Width() float64 {
	if c.view == nil {
		return 0
	}
	w, _ := c.view.Size()
	return w
}
