package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	storymodel "storytree/internal/model"
	"storytree/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	xansi "github.com/charmbracelet/x/ansi"
)

func newTestModel(t *testing.T, dir string) *model {
	t.Helper()
	t.Setenv("STORYTREE_CONFIG_DIR", t.TempDir())
	m, err := newModel(context.Background(), Options{Dir: dir, Story: "test", ActorID: "tester"})
	if err != nil {
		t.Fatalf("newModel: %v", err)
	}
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return m
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func typeText(m *model, s string) {
	for _, r := range s {
		m.Update(runes(string(r)))
	}
}

func TestModel_CreateEditPersists(t *testing.T) {
	dir := t.TempDir()
	m := newTestModel(t, dir)

	m.Update(runes("o"))
	if !m.editing || !m.tree.Focused() {
		t.Fatalf("expected new card to open the editor")
	}
	typeText(m, "hello")
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})

	if m.editing || m.tree.Focused() {
		t.Fatalf("expected esc to leave the editor")
	}
	n, err := m.tree.Node(storymodel.Pos(0, 0, 1))
	if err != nil {
		t.Fatalf("node 0.0.1: %v", err)
	}
	if n.Text() != "hello" {
		t.Fatalf("expected text %q, got %q", "hello", n.Text())
	}

	evs, err := store.ReadEvents(context.Background(), dir, 0)
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}
	var types []string
	for _, ev := range evs {
		types = append(types, ev.Type)
	}
	want := []string{store.EventNodeCreate, store.EventNodeCreate, store.EventNodeModify}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Fatalf("expected events %v, got %v", want, types)
	}

	reopened := newTestModel(t, dir)
	n, err = reopened.tree.Node(storymodel.Pos(0, 0, 1))
	if err != nil || n.Text() != "hello" {
		t.Fatalf("expected replayed card text hello, got %q (err=%v)", n.Text(), err)
	}
}

func TestModel_UnchangedEditRecordsNothing(t *testing.T) {
	dir := t.TempDir()
	m := newTestModel(t, dir)

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !m.editing {
		t.Fatalf("expected enter to open the editor")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})

	evs, err := store.ReadEvents(context.Background(), dir, 0)
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}
	if len(evs) != 1 {
		t.Fatalf("expected only the root create, got %d events", len(evs))
	}
}

func TestModel_QuitSavesSelection(t *testing.T) {
	dir := t.TempDir()
	m := newTestModel(t, dir)

	m.Update(runes("a"))
	typeText(m, "child")
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if got := m.tree.Selected(); got != storymodel.Pos(1, 0, 0) {
		t.Fatalf("expected child selected, got %v", got)
	}

	_, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}

	st, err := (store.Store{Dir: dir}).LoadTUIState()
	if err != nil {
		t.Fatalf("LoadTUIState: %v", err)
	}
	if st.SelectedUID != 1 {
		t.Fatalf("expected saved selection uid 1, got %d", st.SelectedUID)
	}

	reopened := newTestModel(t, dir)
	if got := reopened.tree.Selected(); got != storymodel.Pos(1, 0, 0) {
		t.Fatalf("expected restored selection 1.0.0, got %v", got)
	}
}

func TestModel_EditorFailureShowsInStatus(t *testing.T) {
	m := newTestModel(t, t.TempDir())

	path := filepath.Join(t.TempDir(), "card.md")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	m.externalEditorPath = path
	m.applyExternalEditorResult(externalEditorDoneMsg{err: errors.New("exit status 1")})

	if !m.minibufferErr || !strings.Contains(m.minibuffer, "exit status 1") {
		t.Fatalf("expected editor error in status, got %q", m.minibuffer)
	}
	if !strings.Contains(xansi.Strip(m.statusLine()), "exit status 1") {
		t.Fatalf("expected status line to carry the error, got %q", xansi.Strip(m.statusLine()))
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected temp file to be removed, stat err=%v", err)
	}

	m.Update(runes("j"))
	if m.minibuffer != "" {
		t.Fatalf("expected next key to clear the status message")
	}
}

func TestApplyExternalEditorResult_UpdatesEditor(t *testing.T) {
	m := newTestModel(t, t.TempDir())
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m.editor.SetValue("before")

	path := filepath.Join(t.TempDir(), "edited.md")
	if err := os.WriteFile(path, []byte("after\n"), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	m.externalEditorPath = path
	m.externalEditorBefore = "before"
	m.externalEditorName = "nano"
	m.applyExternalEditorResult(externalEditorDoneMsg{})

	if got := m.editor.Value(); got != "after" {
		t.Fatalf("expected editor to hold the edited text, got %q", got)
	}
	if m.minibuffer != "Updated from nano (esc to save)" {
		t.Fatalf("expected status to name the editor, got %q", m.minibuffer)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if got := m.tree.SelectedNode().Text(); got != "after" {
		t.Fatalf("expected esc to save the edited text, got %q", got)
	}
}

func TestModel_FrameLoopSettles(t *testing.T) {
	m := newTestModel(t, t.TempDir())

	_, cmd := m.Update(runes("o"))
	if !m.tree.Animating() {
		t.Fatalf("expected the new card to start an animation")
	}
	if cmd == nil || !m.ticking {
		t.Fatalf("expected a frame loop to start")
	}
	// A second trigger must not start another loop.
	if m.animate() != nil {
		t.Fatalf("expected a single frame loop")
	}

	if next := m.onFrame(m.lastFrame.Add(5 * time.Second)); next != nil {
		t.Fatalf("expected the loop to stop once settled")
	}
	if m.tree.Animating() || m.ticking {
		t.Fatalf("expected animations to be finished")
	}
}

func TestModel_PreviewToggleShrinksTree(t *testing.T) {
	m := newTestModel(t, t.TempDir())
	full := m.treeH

	m.Update(runes("p"))
	if !m.showPreview {
		t.Fatalf("expected preview on")
	}
	if m.treeH >= full {
		t.Fatalf("expected preview to take space from the tree (%d >= %d)", m.treeH, full)
	}
	if got := m.tree.Layout().ViewHeight; got != float64(m.treeH) {
		t.Fatalf("expected tree viewport height %d, got %v", m.treeH, got)
	}

	m.Update(runes("p"))
	if m.showPreview || m.treeH != full {
		t.Fatalf("expected preview off and full tree height")
	}
}

func TestModel_ViewShowsCards(t *testing.T) {
	m := newTestModel(t, t.TempDir())
	m.Update(runes("o"))
	typeText(m, "second card")
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m.onFrame(m.lastFrame.Add(5 * time.Second))

	out := xansi.Strip(m.View())
	if !strings.Contains(out, "second card") {
		t.Fatalf("expected view to show the card text, got:\n%s", out)
	}
	if !strings.Contains(out, "0.0.1") {
		t.Fatalf("expected status line to show the selected position")
	}
	if lines := strings.Count(out, "\n") + 1; lines > 40 {
		t.Fatalf("expected view to fit 40 rows, got %d", lines)
	}
}
