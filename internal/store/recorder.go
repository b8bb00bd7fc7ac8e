package store

import (
	"context"
	"log/slog"

	"storytree/internal/content"
	"storytree/internal/model"
	"storytree/internal/tree"
)

type NodeCreatePayload struct {
	UID     int            `json:"uid"`
	Pos     model.Position `json:"pos"`
	Content *content.Delta `json:"content,omitempty"`
}

type NodeMovePayload struct {
	UID  int            `json:"uid"`
	From model.Position `json:"from"`
	To   model.Position `json:"to"`
}

type NodeModifyPayload struct {
	UID   int           `json:"uid"`
	Delta content.Delta `json:"delta"`
}

type NodeDeletePayload struct {
	UID int            `json:"uid"`
	Pos model.Position `json:"pos"`
}

// Recorder appends tree events to a story's log. Failed appends are logged and dropped: the tree
// never waits on or rolls back for the log.
type Recorder struct {
	store  Store
	actor  string
	logger *slog.Logger
	ctx    context.Context
	tree   *tree.Tree
}

var _ tree.Events = (*Recorder)(nil)

func NewRecorder(ctx context.Context, st Store, actorID string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &Recorder{store: st, actor: actorID, logger: logger, ctx: ctx}
}

// Attach lets the recorder read card contents for node.create events.
func (r *Recorder) Attach(t *tree.Tree) { r.tree = t }

func (r *Recorder) append(typ string, uid int, payload any) {
	if err := r.store.AppendEvent(r.ctx, r.actor, typ, NodeEntityID(uid), payload); err != nil {
		r.logger.Error("event append failed", slog.String("type", typ), slog.Int("uid", uid), slog.Any("err", err))
	}
}

func (r *Recorder) OnNewNode(uid int, pos model.Position) {
	p := NodeCreatePayload{UID: uid, Pos: pos}
	if r.tree != nil {
		if n, err := r.tree.Node(pos); err == nil && n.Content != nil && !n.Content.IsEmpty() {
			d := content.FromContent(n.Content)
			p.Content = &d
		}
	}
	r.append(EventNodeCreate, uid, p)
}

func (r *Recorder) OnMoveNode(uid int, oldPos, newPos model.Position) {
	r.append(EventNodeMove, uid, NodeMovePayload{UID: uid, From: oldPos, To: newPos})
}

func (r *Recorder) OnModifyNode(uid int, delta model.Content) {
	r.append(EventNodeModify, uid, NodeModifyPayload{UID: uid, Delta: content.FromContent(delta)})
}

func (r *Recorder) OnDeleteNode(node model.Node) {
	r.append(EventNodeDelete, node.UID, NodeDeletePayload{UID: node.UID, Pos: node.Pos})
}

// Selection is UI state, kept in tui_state.json instead.
func (r *Recorder) OnSelectNode(model.Node) {}
