package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"storytree/internal/model"
	"storytree/internal/tree"
)

type ReplayResult struct {
	AppliedCount int
	SkippedCount int
	SkippedTypes map[string]int
}

// ReplayError pins a replay failure to the event that caused it.
type ReplayError struct {
	Index   int
	EventID string
	Type    string
	Err     error
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("replay event %d (%s %s): %v", e.Index, e.Type, e.EventID, e.Err)
}

func (e *ReplayError) Unwrap() error { return e.Err }

// Replay rebuilds the story's tree by re-running its recorded operations on a fresh tree built
// with opts. opts.Events is only attached once replay is done, so nothing is re-recorded. A story
// with no events yields a nil tree and no error.
func Replay(ctx context.Context, dir string, opts tree.Options) (*tree.Tree, error) {
	evs, err := ReadEvents(ctx, dir, 0)
	if err != nil {
		return nil, err
	}
	if len(evs) == 0 {
		return nil, nil
	}
	t, _, err := ReplayEvents(ctx, evs, opts)
	return t, err
}

// ReplayEvents applies evs in order. Unknown event types are skipped and counted.
func ReplayEvents(ctx context.Context, evs []Event, opts tree.Options) (*tree.Tree, ReplayResult, error) {
	listener := opts.Events
	opts.Events = nil
	t := tree.New(opts)

	res := ReplayResult{SkippedTypes: map[string]int{}}
	for i, ev := range evs {
		if err := ctx.Err(); err != nil {
			return nil, res, err
		}
		applied, err := applyEvent(t, ev)
		if err != nil {
			return nil, res, &ReplayError{Index: i, EventID: ev.ID, Type: ev.Type, Err: err}
		}
		if applied {
			res.AppliedCount++
		} else {
			res.SkippedCount++
			res.SkippedTypes[strings.TrimSpace(ev.Type)]++
		}
	}
	t.SetEvents(listener)
	return t, res, nil
}

func applyEvent(t *tree.Tree, ev Event) (bool, error) {
	switch strings.TrimSpace(ev.Type) {
	case EventNodeCreate:
		var p NodeCreatePayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return false, err
		}
		var body model.Content
		if p.Content != nil {
			body = *p.Content
		}
		if p.UID == 0 && t.NextUID() == 1 {
			// The fresh tree already holds the first root.
			if body != nil && !body.IsEmpty() {
				if _, err := t.SetContent(model.Pos(0, 0, 0), body); err != nil {
					return false, err
				}
			}
			return true, nil
		}
		if p.UID != t.NextUID() {
			return false, fmt.Errorf("create uid %d, expected %d: %w", p.UID, t.NextUID(), tree.ErrDataInconsistency)
		}
		if _, err := t.InsertNode(p.Pos, false, body); err != nil {
			return false, err
		}
		return true, nil

	case EventNodeMove:
		var p NodeMovePayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return false, err
		}
		if at := t.PositionOf(p.UID); at != p.From {
			return false, fmt.Errorf("move uid %d from %s, found at %s: %w", p.UID, p.From, at, tree.ErrDataInconsistency)
		}
		if _, err := t.MoveNode(p.From, p.To); err != nil {
			return false, err
		}
		return true, nil

	case EventNodeModify:
		var p NodeModifyPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return false, err
		}
		pos := t.PositionOf(p.UID)
		if pos.IsNull() {
			return false, fmt.Errorf("modify uid %d: %w", p.UID, tree.ErrDataInconsistency)
		}
		if _, err := t.ModifyNode(pos, p.Delta); err != nil {
			return false, err
		}
		return true, nil

	case EventNodeDelete:
		var p NodeDeletePayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return false, err
		}
		pos := t.PositionOf(p.UID)
		if pos.IsNull() {
			return false, fmt.Errorf("delete uid %d: %w", p.UID, tree.ErrDataInconsistency)
		}
		if err := t.DeleteNode(pos); err != nil {
			return false, err
		}
		return true, nil

	default:
		return false, nil
	}
}
