package tree

import "errors"

var (
	// ErrInvalidPosition is returned for positions with a negative component.
	ErrInvalidPosition = errors.New("invalid position")
	// ErrIndexOutOfBounds is returned for family or card indices beyond the current structure.
	ErrIndexOutOfBounds = errors.New("index out of bounds")
	// ErrOneRootFamily is returned when a depth-0 position names a family other than 0.
	ErrOneRootFamily = errors.New("depth 0 has a single family")
	// ErrOrphanNode is returned when a new node's family has no parent card.
	ErrOrphanNode = errors.New("orphan node: family has no parent card")
	// ErrDepthExceeded is returned for depths beyond the current pillars.
	ErrDepthExceeded = errors.New("depth exceeded")
	// ErrDataInconsistency means an internal invariant was broken. Treat it as a bug, not user error.
	ErrDataInconsistency = errors.New("data inconsistency")
)
