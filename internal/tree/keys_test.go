package tree

import (
	"testing"

	"storytree/internal/model"
)

func TestParseKey(t *testing.T) {
	cases := []struct {
		in   string
		key  Key
		mods Modifiers
	}{
		{"up", KeyUp, 0},
		{"shift+up", KeyUp, ModShift},
		{"Ctrl+Backspace", KeyBackspace, ModCtrl},
		{"alt+right", KeyRight, ModAlt},
		{"ctrl+alt+delete", KeyDelete, ModCtrl | ModAlt},
	}
	for _, tc := range cases {
		key, mods := ParseKey(tc.in)
		if key != tc.key || mods != tc.mods {
			t.Fatalf("%q: expected %s/%d, got %s/%d", tc.in, tc.key, tc.mods, key, mods)
		}
	}
}

func TestHandleKey_Session(t *testing.T) {
	f := newFixture(t)
	tr := f.tree

	press := func(chord string) bool {
		t.Helper()
		key, mods := ParseKey(chord)
		handled, err := tr.HandleKey(key, mods)
		if err != nil {
			t.Fatalf("%s: %v", chord, err)
		}
		mustInvariants(t, tr)
		return handled
	}

	if !press("alt+down") {
		t.Fatalf("expected alt+down bound")
	}
	if !tr.Focused() || tr.Selected() != model.Pos(0, 0, 1) {
		t.Fatalf("expected a focused card at 0.0.1, got %s focused=%v", tr.Selected(), tr.Focused())
	}
	if press("up") {
		t.Fatalf("expected arrows left to the editor while focused")
	}
	press("esc")
	if tr.Focused() {
		t.Fatalf("expected esc to leave the editor")
	}

	press("alt+right")
	press("esc")
	press("alt+down")
	press("esc")
	expectTypology(t, tr, [][]int{{2}, {0, 2}})

	press("shift+right")
	if got := tr.Selected(); got != model.Pos(2, 0, 0) {
		t.Fatalf("expected indent to 2.0.0, got %s", got)
	}
	press("shift+left")
	press("shift+left")
	if got := tr.Selected(); got != model.Pos(0, 0, 2) {
		t.Fatalf("expected two outdents to reach 0.0.2, got %s", got)
	}
	press("shift+up")
	if got := tr.Selected(); got != model.Pos(0, 0, 1) {
		t.Fatalf("expected move up to 0.0.1, got %s", got)
	}
	expectTypology(t, tr, [][]int{{3}, {0, 0, 1}})

	press("ctrl+backspace")
	expectTypology(t, tr, [][]int{{2}, {0, 1}})
	if got := tr.Selected(); got != model.Pos(0, 0, 0) {
		t.Fatalf("expected 0.0.0 after delete, got %s", got)
	}

	press("enter")
	if !tr.Focused() {
		t.Fatalf("expected enter to focus")
	}
	if press("ctrl+delete") {
		t.Fatalf("expected delete ignored while focused")
	}
	press("esc")

	if press("x") {
		t.Fatalf("expected unbound key")
	}
	if press("alt+left") {
		t.Fatalf("expected alt+left unbound")
	}
}
