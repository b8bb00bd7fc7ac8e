package tree

import "storytree/internal/model"

// Events receives tree lifecycle notifications. Calls are fire-and-forget: the tree neither waits on
// nor rolls back for a listener.
type Events interface {
	OnNewNode(uid int, pos model.Position)
	OnMoveNode(uid int, oldPos, newPos model.Position)
	OnModifyNode(uid int, delta model.Content)
	OnDeleteNode(node model.Node)
	OnSelectNode(node model.Node)
}

// NopEvents ignores every event.
type NopEvents struct{}

func (NopEvents) OnNewNode(int, model.Position) {}
func (NopEvents) OnMoveNode(int, model.Position, model.Position) {}
func (NopEvents) OnModifyNode(int, model.Content) {}
func (NopEvents) OnDeleteNode(model.Node) {}
func (NopEvents) OnSelectNode(model.Node) {}

// MultiEvents fans every event out to each listener in order.
type MultiEvents []Events

func (m MultiEvents) OnNewNode(uid int, pos model.Position) {
	for _, e := range m {
		e.OnNewNode(uid, pos)
	}
}

func (m MultiEvents) OnMoveNode(uid int, oldPos, newPos model.Position) {
	for _, e := range m {
		e.OnMoveNode(uid, oldPos, newPos)
	}
}

func (m MultiEvents) OnModifyNode(uid int, delta model.Content) {
	for _, e := range m {
		e.OnModifyNode(uid, delta)
	}
}

func (m MultiEvents) OnDeleteNode(node model.Node) {
	for _, e := range m {
		e.OnDeleteNode(node)
	}
}

func (m MultiEvents) OnSelectNode(node model.Node) {
	for _, e := range m {
		e.OnSelectNode(node)
	}
}
