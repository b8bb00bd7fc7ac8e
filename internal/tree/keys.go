package tree

import "strings"

type Key string

const (
	KeyUp        Key = "up"
	KeyDown      Key = "down"
	KeyLeft      Key = "left"
	KeyRight     Key = "right"
	KeyEnter     Key = "enter"
	KeyEsc       Key = "esc"
	KeyDelete    Key = "delete"
	KeyBackspace Key = "backspace"
)

// Modifiers is a bit set of held modifier keys.
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModAlt
	ModCtrl
)

func (m Modifiers) Has(o Modifiers) bool { return m&o == o }

// ParseKey splits a chord such as "ctrl+backspace" or "shift+up" into key and modifiers.
func ParseKey(s string) (Key, Modifiers) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	var mods Modifiers
	for _, p := range parts[:len(parts)-1] {
		switch p {
		case "shift":
			mods |= ModShift
		case "alt", "option", "meta":
			mods |= ModAlt
		case "ctrl", "control":
			mods |= ModCtrl
		}
	}
	return Key(parts[len(parts)-1]), mods
}

// HandleKey runs the command bound to key. It reports whether the key was bound; the error is
// the command's own.
//
// While a card is focused only Esc is handled: every other key belongs to the editor.
func (t *Tree) HandleKey(key Key, mods Modifiers) (bool, error) {
	if t.focused {
		if key == KeyEsc && mods == 0 {
			return true, t.SelectNode(t.Selected(), false)
		}
		return false, nil
	}

	switch {
	case mods == 0:
		switch key {
		case KeyUp:
			return true, t.Up()
		case KeyDown:
			return true, t.Down()
		case KeyLeft:
			return true, t.Left()
		case KeyRight:
			return true, t.Right()
		case KeyEnter:
			return true, t.SelectNode(t.Selected(), true)
		case KeyEsc:
			return true, nil
		}
	case mods == ModAlt:
		var err error
		switch key {
		case KeyUp:
			_, err = t.CreateAbove()
		case KeyDown:
			_, err = t.CreateBelow()
		case KeyRight:
			_, err = t.CreateChild()
		default:
			return false, nil
		}
		return true, err
	case mods == ModShift:
		switch key {
		case KeyUp:
			return true, t.MoveUp()
		case KeyDown:
			return true, t.MoveDown()
		case KeyRight:
			return true, t.Indent()
		case KeyLeft:
			return true, t.Outdent()
		}
	case mods == ModCtrl:
		if key == KeyDelete || key == KeyBackspace {
			return true, t.DeleteNode(t.Selected())
		}
	}
	return false, nil
}
