package tui

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

type externalEditorDoneMsg struct {
	err error
}

// openExternalEditor hands the editor text to the resolved editor through a temp file. The result
// lands back in the textarea; esc still commits it to the card.
func (m *model) openExternalEditor() (tea.Cmd, error) {
	ed, err := resolveEditor(m.editorLine, nil)
	if err != nil {
		return nil, err
	}

	f, err := os.CreateTemp("", "storytree-card-*.md")
	if err != nil {
		return nil, err
	}
	path := f.Name()

	if _, err := f.WriteString(m.editor.Value()); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, err
	}
	_ = f.Close()

	m.externalEditorPath = path
	m.externalEditorBefore = m.editor.Value()
	m.externalEditorName = ed.name

	return tea.ExecProcess(ed.command(path), func(err error) tea.Msg {
		return externalEditorDoneMsg{err: err}
	}), nil
}

func (m *model) applyExternalEditorResult(msg externalEditorDoneMsg) {
	path := m.externalEditorPath
	before := m.externalEditorBefore
	name := m.externalEditorName
	if name == "" {
		name = "editor"
	}

	m.externalEditorPath = ""
	m.externalEditorBefore = ""
	m.externalEditorName = ""
	if strings.TrimSpace(path) == "" {
		return
	}
	defer func() { _ = os.Remove(path) }()

	if msg.err != nil {
		m.minibuffer, m.minibufferErr = "Editor failed: "+msg.err.Error(), true
		return
	}

	b, err := os.ReadFile(path)
	if err != nil {
		m.minibuffer, m.minibufferErr = "Editor read failed: "+err.Error(), true
		return
	}

	// Editors append a trailing newline the card never had.
	after := strings.TrimSuffix(string(b), "\n")
	m.editor.SetValue(after)

	if after == before {
		m.minibuffer = fmt.Sprintf("No changes from %s", name)
		return
	}
	m.minibuffer = fmt.Sprintf("Updated from %s (esc to save)", name)
}
