// Package content implements card bodies as operational deltas.
//
// A document is a Delta holding only inserts. A change is a Delta mixing retain, insert and delete
// operations; composing a change into a document yields the edited document. Lengths are counted
// in runes; a byte that is not valid UTF-8 counts as one rune and is carried through unchanged.
package content

import (
	"encoding/json"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"storytree/internal/model"
)

type Op struct {
	Insert string `json:"insert,omitempty" yaml:"insert,omitempty"`
	Retain int    `json:"retain,omitempty" yaml:"retain,omitempty"`
	Delete int    `json:"delete,omitempty" yaml:"delete,omitempty"`
}

func (o Op) isInsert() bool { return o.Insert != "" }
func (o Op) isDelete() bool { return o.Delete > 0 }
func (o Op) isRetain() bool { return o.Retain > 0 }

func (o Op) length() int {
	switch {
	case o.isInsert():
		return utf8.RuneCountInString(o.Insert)
	case o.isDelete():
		return o.Delete
	default:
		return o.Retain
	}
}

type Delta struct {
	Ops []Op `json:"ops" yaml:"ops"`
}

var _ model.Content = Delta{}

// New returns a document holding text.
func New(text string) Delta {
	return Delta{}.Insert(text)
}

// Empty is the empty document.
func Empty() model.Content { return Delta{} }

func (d Delta) Insert(text string) Delta {
	if text == "" {
		return d
	}
	return d.push(Op{Insert: text})
}

func (d Delta) Retain(n int) Delta {
	if n <= 0 {
		return d
	}
	return d.push(Op{Retain: n})
}

func (d Delta) Delete(n int) Delta {
	if n <= 0 {
		return d
	}
	return d.push(Op{Delete: n})
}

func (d Delta) push(op Op) Delta {
	ops := make([]Op, len(d.Ops), len(d.Ops)+1)
	copy(ops, d.Ops)
	if n := len(ops); n > 0 {
		last := &ops[n-1]
		switch {
		case op.isInsert() && last.isInsert():
			last.Insert += op.Insert
			return Delta{Ops: ops}
		case op.isRetain() && last.isRetain():
			last.Retain += op.Retain
			return Delta{Ops: ops}
		case op.isDelete() && last.isDelete():
			last.Delete += op.Delete
			return Delta{Ops: ops}
		case op.isInsert() && last.isDelete():
			// Canonical order puts inserts before deletes at the same offset.
			del := *last
			ops[n-1] = op
			if n >= 2 && ops[n-2].isInsert() {
				ops[n-2].Insert += op.Insert
				ops[n-1] = del
				return Delta{Ops: ops}
			}
			return Delta{Ops: append(ops, del)}
		}
	}
	return Delta{Ops: append(ops, op)}
}

func (d Delta) chop() Delta {
	if n := len(d.Ops); n > 0 && d.Ops[n-1].isRetain() {
		return Delta{Ops: d.Ops[:n-1]}
	}
	return d
}

// String concatenates the inserted text; for a document this is its full text.
func (d Delta) String() string {
	var b strings.Builder
	for _, op := range d.Ops {
		b.WriteString(op.Insert)
	}
	return b.String()
}

// Len is the document length in runes.
func (d Delta) Len() int {
	n := 0
	for _, op := range d.Ops {
		if op.isInsert() {
			n += op.length()
		}
	}
	return n
}

func (d Delta) IsEmpty() bool { return d.Len() == 0 }

func (d Delta) Equal(other model.Content) bool {
	o, ok := other.(Delta)
	if !ok {
		return other != nil && d.String() == other.String()
	}
	a, b := d.chop().Ops, o.chop().Ops
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Compose applies delta after the receiver. A delta that is not a Delta replaces the whole text.
func (d Delta) Compose(delta model.Content) model.Content {
	if delta == nil {
		return d
	}
	other, ok := delta.(Delta)
	if !ok {
		return New(delta.String())
	}
	return d.compose(other)
}

func (d Delta) compose(other Delta) Delta {
	a := newIter(d.Ops)
	b := newIter(other.Ops)
	var out Delta
	for a.hasNext() || b.hasNext() {
		switch {
		case b.peek().isInsert():
			out = out.push(b.next(math.MaxInt))
		case a.peek().isDelete():
			out = out.push(a.next(math.MaxInt))
		default:
			n := min(a.peekLength(), b.peekLength())
			aOp := a.next(n)
			bOp := b.next(n)
			switch {
			case bOp.isRetain():
				if aOp.isRetain() {
					out = out.push(Op{Retain: n})
				} else {
					out = out.push(aOp)
				}
			case bOp.isDelete() && aOp.isRetain():
				out = out.push(bOp)
			}
			// Insert followed by delete cancels out.
		}
	}
	return out.chop()
}

var dmp = diffmatchpatch.New()

// Diff returns the change turning the receiver into target. Edits are cleaned up to word and
// line boundaries where that keeps the change small, so a reworded sentence reads as such in
// the event log.
func (d Delta) Diff(target model.Content) model.Content {
	from := d.String()
	var to string
	if target != nil {
		to = target.String()
	}
	if from == to {
		return Delta{}
	}
	var diffs []diffmatchpatch.Diff
	if utf8.ValidString(from) && utf8.ValidString(to) {
		diffs = dmp.DiffCleanupSemantic(dmp.DiffMain(from, to, false))
	} else {
		a, b := unitRunes(from, to)
		diffs = dmp.DiffMainRunes(a, b, false)
	}
	return fromDiffs(diffs, to).chop()
}

// fromDiffs turns an edit script into a change. Inserted text is cut from target so bytes the
// script could only see as U+FFFD survive.
func fromDiffs(diffs []diffmatchpatch.Diff, target string) Delta {
	var out Delta
	rest := target
	for _, df := range diffs {
		n := utf8.RuneCountInString(df.Text)
		switch df.Type {
		case diffmatchpatch.DiffEqual:
			out = out.Retain(n)
			_, rest = splitRunes(rest, n)
		case diffmatchpatch.DiffInsert:
			var ins string
			ins, rest = splitRunes(rest, n)
			out = out.Insert(ins)
		case diffmatchpatch.DiffDelete:
			out = out.Delete(n)
		}
	}
	return out
}

// unitRunes stands every rune of a and b in for a distinct valid rune, an invalid byte being a
// unit of its own, so the diff never takes two different bad bytes for the same U+FFFD.
func unitRunes(a, b string) ([]rune, []rune) {
	ids := map[string]rune{}
	conv := func(s string) []rune {
		out := make([]rune, 0, len(s))
		for len(s) > 0 {
			_, size := utf8.DecodeRuneInString(s)
			unit := s[:size]
			s = s[size:]
			r, ok := ids[unit]
			if !ok {
				r = rune(len(ids))
				if r >= 0xD800 {
					r += 0x800 // surrogates do not survive string conversion
				}
				ids[unit] = r
			}
			out = append(out, r)
		}
		return out
	}
	return conv(a), conv(b)
}

// splitRunes cuts s after n runes, counting an invalid byte as one.
func splitRunes(s string, n int) (string, string) {
	i := 0
	for ; n > 0 && i < len(s); n-- {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i], s[i:]
}

// FromJSON decodes a delta; a bare JSON string is read as a document.
func FromJSON(b []byte) (Delta, error) {
	if len(b) == 0 || string(b) == "null" {
		return Delta{}, nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return New(s), nil
	}
	var d Delta
	if err := json.Unmarshal(b, &d); err != nil {
		return Delta{}, err
	}
	return d, nil
}

// FromContent converts any content into a Delta document.
func FromContent(c model.Content) Delta {
	switch v := c.(type) {
	case nil:
		return Delta{}
	case Delta:
		return v
	default:
		return New(c.String())
	}
}

type iter struct {
	ops    []Op
	index  int
	offset int
}

func newIter(ops []Op) *iter { return &iter{ops: ops} }

func (it *iter) hasNext() bool { return it.index < len(it.ops) }

func (it *iter) peek() Op {
	if !it.hasNext() {
		return Op{Retain: math.MaxInt}
	}
	return it.ops[it.index]
}

func (it *iter) peekLength() int {
	if !it.hasNext() {
		return math.MaxInt
	}
	return it.ops[it.index].length() - it.offset
}

func (it *iter) next(n int) Op {
	if !it.hasNext() {
		return Op{Retain: n}
	}
	op := it.ops[it.index]
	rest := op.length() - it.offset
	if n >= rest {
		n = rest
	}
	start := it.offset
	if n == rest {
		it.index++
		it.offset = 0
	} else {
		it.offset += n
	}
	switch {
	case op.isInsert():
		_, tail := splitRunes(op.Insert, start)
		head, _ := splitRunes(tail, n)
		return Op{Insert: head}
	case op.isDelete():
		return Op{Delete: n}
	default:
		return Op{Retain: n}
	}
}
