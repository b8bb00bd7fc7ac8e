package tui

import (
	"storytree/internal/tree"

	"github.com/charmbracelet/bubbles/key"
)

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Left    key.Binding
	Right   key.Binding
	Edit    key.Binding
	Above   key.Binding
	Below   key.Binding
	Child   key.Binding
	MoveUp  key.Binding
	MoveDn  key.Binding
	Indent  key.Binding
	Outdent key.Binding
	Delete  key.Binding
	Preview key.Binding
	Editor  key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Left:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "parent")),
		Right:   key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "child")),
		Edit:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "edit")),
		Above:   key.NewBinding(key.WithKeys("alt+up", "O"), key.WithHelp("alt+↑/O", "new above")),
		Below:   key.NewBinding(key.WithKeys("alt+down", "o"), key.WithHelp("alt+↓/o", "new below")),
		Child:   key.NewBinding(key.WithKeys("alt+right", "a"), key.WithHelp("alt+→/a", "new child")),
		MoveUp:  key.NewBinding(key.WithKeys("shift+up", "K"), key.WithHelp("shift+↑", "move up")),
		MoveDn:  key.NewBinding(key.WithKeys("shift+down", "J"), key.WithHelp("shift+↓", "move down")),
		Indent:  key.NewBinding(key.WithKeys("shift+right", "tab"), key.WithHelp("tab", "indent")),
		Outdent: key.NewBinding(key.WithKeys("shift+left", "shift+tab"), key.WithHelp("shift+tab", "outdent")),
		Delete:  key.NewBinding(key.WithKeys("ctrl+d", "delete", "ctrl+backspace"), key.WithHelp("ctrl+d", "delete")),
		Preview: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "preview")),
		Editor:  key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "$EDITOR")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Edit, k.Below, k.Child, k.Indent, k.Delete, k.Preview, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		{k.Edit, k.Editor, k.Above, k.Below, k.Child},
		{k.MoveUp, k.MoveDn, k.Indent, k.Outdent, k.Delete},
		{k.Preview, k.Help, k.Quit},
	}
}

// chord is a key as tree.HandleKey understands it.
type chord struct {
	key  tree.Key
	mods tree.Modifiers
}

type boundChord struct {
	binding key.Binding
	chord   chord
}

// chords lists the bindings forwarded to the tree.
func (k keyMap) chords() []boundChord {
	return []boundChord{
		{k.Up, chord{tree.KeyUp, 0}},
		{k.Down, chord{tree.KeyDown, 0}},
		{k.Left, chord{tree.KeyLeft, 0}},
		{k.Right, chord{tree.KeyRight, 0}},
		{k.Edit, chord{tree.KeyEnter, 0}},
		{k.Above, chord{tree.KeyUp, tree.ModAlt}},
		{k.Below, chord{tree.KeyDown, tree.ModAlt}},
		{k.Child, chord{tree.KeyRight, tree.ModAlt}},
		{k.MoveUp, chord{tree.KeyUp, tree.ModShift}},
		{k.MoveDn, chord{tree.KeyDown, tree.ModShift}},
		{k.Indent, chord{tree.KeyRight, tree.ModShift}},
		{k.Outdent, chord{tree.KeyLeft, tree.ModShift}},
		{k.Delete, chord{tree.KeyDelete, tree.ModCtrl}},
	}
}
