package model

// Content is an opaque card body. The tree only composes deltas into it and compares values.
type Content interface {
	// Compose applies delta to the receiver and returns the result.
	Compose(delta Content) Content
	// Diff returns the delta that turns the receiver into target.
	Diff(target Content) Content
	Equal(other Content) bool
	IsEmpty() bool
	String() string
}

type Node struct {
	UID     int      `json:"uid"`
	Pos     Position `json:"pos"`
	Content Content  `json:"content,omitempty"`
}

// Text returns the content rendered as a string (empty for nil content).
func (n Node) Text() string {
	if n.Content == nil {
		return ""
	}
	return n.Content.String()
}
