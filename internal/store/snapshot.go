package store

import (
	"sort"
	"time"

	"storytree/internal/content"
	"storytree/internal/model"
	"storytree/internal/tree"
)

type SnapshotNode struct {
	UID     int            `json:"uid" yaml:"uid"`
	Pos     model.Position `json:"pos" yaml:"pos"`
	Text    string         `json:"text" yaml:"text"`
	Content content.Delta  `json:"content" yaml:"content"`
}

// Snapshot is the exported state of a story: its shape plus every card in position order.
type Snapshot struct {
	StoryID    string         `json:"storyId,omitempty" yaml:"storyId,omitempty"`
	ExportedAt time.Time      `json:"exportedAt" yaml:"exportedAt"`
	NextUID    int            `json:"nextUid" yaml:"nextUid"`
	Typology   [][]int        `json:"typology" yaml:"typology"`
	Nodes      []SnapshotNode `json:"nodes" yaml:"nodes"`
}

func NewSnapshot(t *tree.Tree, storyID string) Snapshot {
	s := Snapshot{
		StoryID:    storyID,
		ExportedAt: time.Now().UTC(),
		NextUID:    t.NextUID(),
		Typology:   t.Typology(),
		Nodes:      []SnapshotNode{},
	}
	for _, n := range t.Nodes() {
		s.Nodes = append(s.Nodes, SnapshotNode{
			UID:     n.UID,
			Pos:     n.Pos,
			Text:    n.Text(),
			Content: content.FromContent(n.Content),
		})
	}
	sort.Slice(s.Nodes, func(i, j int) bool { return s.Nodes[i].Pos.Less(s.Nodes[j].Pos) })
	return s
}
