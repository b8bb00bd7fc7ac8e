package tui

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mattn/go-shellwords"
)

// fileWord marks where the card file goes in an editor command, e.g. "code --wait {file}".
const fileWord = "{file}"

// editorCommand is the external editor for card text, taken from tui.editor in config, then
// $VISUAL, then $EDITOR. Leading NAME=value words become the editor's environment.
type editorCommand struct {
	name string
	env  []string
	args []string
}

func resolveEditor(configured string, getenv func(string) string) (editorCommand, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	line, source := strings.TrimSpace(configured), "tui.editor"
	for _, k := range []string{"VISUAL", "EDITOR"} {
		if line != "" {
			break
		}
		line, source = strings.TrimSpace(getenv(k)), "$"+k
	}
	if line == "" {
		return editorCommand{name: "vi", args: []string{"vi"}}, nil
	}

	p := shellwords.NewParser()
	p.ParseEnv = true
	p.Getenv = getenv
	env, args, err := p.ParseWithEnvs(line)
	if err != nil {
		return editorCommand{}, fmt.Errorf("%s %q: %w", source, line, err)
	}
	if p.Position >= 0 {
		return editorCommand{}, fmt.Errorf("%s %q: pipes, redirects and command lists are not supported", source, line)
	}
	if len(args) == 0 {
		return editorCommand{}, fmt.Errorf("%s %q: no command", source, line)
	}
	return editorCommand{name: filepath.Base(args[0]), env: env, args: args}, nil
}

// argv places path at {file}, or after the last word when the command has no {file}.
func (e editorCommand) argv(path string) []string {
	out := make([]string, 0, len(e.args)+1)
	placed := false
	for _, a := range e.args {
		if strings.Contains(a, fileWord) {
			a = strings.ReplaceAll(a, fileWord, path)
			placed = true
		}
		out = append(out, a)
	}
	if !placed {
		out = append(out, path)
	}
	return out
}

func (e editorCommand) command(path string) *exec.Cmd {
	argv := e.argv(path)
	cmd := exec.Command(argv[0], argv[1:]...)
	if len(e.env) > 0 {
		cmd.Env = append(os.Environ(), e.env...)
	}
	return cmd
}
