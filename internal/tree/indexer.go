package tree

import "storytree/internal/model"

// Indexer maps uid to the card's current position. Deleted uids keep their slot, set to the null
// position.
type Indexer struct {
	pos []model.Position
}

func (ix *Indexer) Set(uid int, p model.Position) {
	for uid >= len(ix.pos) {
		ix.pos = append(ix.pos, model.NullPosition)
	}
	ix.pos[uid] = p
}

func (ix *Indexer) Get(uid int) model.Position {
	if uid < 0 || uid >= len(ix.pos) {
		return model.NullPosition
	}
	return ix.pos[uid]
}

func (ix *Indexer) Tombstone(uid int) {
	if uid >= 0 && uid < len(ix.pos) {
		ix.pos[uid] = model.NullPosition
	}
}

// Len is the number of slots, alive or tombstoned.
func (ix *Indexer) Len() int { return len(ix.pos) }

func (ix *Indexer) Alive() int {
	n := 0
	for _, p := range ix.pos {
		if !p.IsNull() {
			n++
		}
	}
	return n
}
