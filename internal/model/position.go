package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Position addresses a card by depth (pillar), family within the pillar, and index within the family.
type Position struct {
	Depth  int `json:"depth" yaml:"depth"`
	Family int `json:"family" yaml:"family"`
	Index  int `json:"index" yaml:"index"`
}

// NullPosition means "no such place".
var NullPosition = Position{Depth: -1, Family: -1, Index: -1}

// PositionDelta is a partial shift applied by Position.Shift.
type PositionDelta struct {
	Depth  int
	Family int
	Index  int
}

// FamilyLayout is the view of a pillar needed for vertical traversal.
type FamilyLayout interface {
	FamilyCount() int
	FamilyLen(family int) int
}

func Pos(depth, family, index int) Position {
	return Position{Depth: depth, Family: family, Index: index}
}

func (p Position) IsNull() bool { return p == NullPosition }

// Valid reports whether every component is non-negative.
func (p Position) Valid() bool {
	return p.Depth >= 0 && p.Family >= 0 && p.Index >= 0
}

func (p Position) Equal(o Position) bool { return p == o }

func (p Position) Inc() Position {
	p.Index++
	return p
}

func (p Position) Dec() Position {
	p.Index--
	return p
}

func (p Position) Shift(d PositionDelta) Position {
	return Position{Depth: p.Depth + d.Depth, Family: p.Family + d.Family, Index: p.Index + d.Index}
}

// Above returns the card visited right before p in top-to-bottom order, skipping empty families.
func (p Position) Above(l FamilyLayout) Position {
	if p.Index > 0 {
		return Position{Depth: p.Depth, Family: p.Family, Index: p.Index - 1}
	}
	for f := p.Family - 1; f >= 0; f-- {
		if n := l.FamilyLen(f); n > 0 {
			return Position{Depth: p.Depth, Family: f, Index: n - 1}
		}
	}
	return NullPosition
}

// Below mirrors Above.
func (p Position) Below(l FamilyLayout) Position {
	if p.Family >= 0 && p.Family < l.FamilyCount() && p.Index+1 < l.FamilyLen(p.Family) {
		return Position{Depth: p.Depth, Family: p.Family, Index: p.Index + 1}
	}
	for f := p.Family + 1; f < l.FamilyCount(); f++ {
		if l.FamilyLen(f) > 0 {
			return Position{Depth: p.Depth, Family: f, Index: 0}
		}
	}
	return NullPosition
}

func (p Position) String() string {
	if p.IsNull() {
		return "null"
	}
	return fmt.Sprintf("%d.%d.%d", p.Depth, p.Family, p.Index)
}

// EDNTag prints the position as #storytree/pos "d.f.i" in EDN output.
func (p Position) EDNTag() (string, any) {
	return "storytree/pos", p.String()
}

// ParsePosition accepts "d.f.i" (also "d,f,i" and "d/f/i").
func ParsePosition(s string) (Position, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return NullPosition, fmt.Errorf("empty position")
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '.' || r == ',' || r == '/' })
	if len(parts) != 3 {
		return NullPosition, fmt.Errorf("invalid position %q (want depth.family.index)", s)
	}
	var vals [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return NullPosition, fmt.Errorf("invalid position %q: %w", s, err)
		}
		vals[i] = n
	}
	p := Position{Depth: vals[0], Family: vals[1], Index: vals[2]}
	if !p.Valid() {
		return NullPosition, fmt.Errorf("invalid position %q: components must be >= 0", s)
	}
	return p, nil
}

// Less orders positions by (depth, family, index).
func (p Position) Less(o Position) bool {
	if p.Depth != o.Depth {
		return p.Depth < o.Depth
	}
	if p.Family != o.Family {
		return p.Family < o.Family
	}
	return p.Index < o.Index
}
