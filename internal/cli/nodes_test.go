package cli

import (
	"fmt"
	"strings"
	"testing"
)

func TestNodes_EditSession(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	run := func(args ...string) map[string]any {
		t.Helper()
		return mustRun(t, append([]string{"--dir", dir}, args...)...)
	}

	added := dataMap(t, run("nodes", "add", "0.0.1", "--text", "second"))
	if added["pos"] != "0.0.1" || added["text"] != "second" || added["uid"] != float64(1) {
		t.Fatalf("unexpected add result: %#v", added)
	}

	kid := dataMap(t, run("nodes", "add", "0.0.0", "--as", "child", "--text", "kid"))
	if kid["pos"] != "1.0.0" || kid["parent"] != "0.0.0" || kid["uid"] != float64(2) {
		t.Fatalf("unexpected child result: %#v", kid)
	}

	list := run("nodes", "list")
	nodes, _ := list["data"].([]any)
	var got []string
	for _, n := range nodes {
		m := n.(map[string]any)
		got = append(got, fmt.Sprintf("%v=%v", m["pos"], m["text"]))
	}
	if want := "0.0.0=,0.0.1=second,1.0.0=kid"; strings.Join(got, ",") != want {
		t.Fatalf("expected %s, got %s", want, strings.Join(got, ","))
	}

	typ := run("typology")
	if s := fmt.Sprint(typ["data"]); s != "[[2] [1 0]]" {
		t.Fatalf("unexpected typology %s", s)
	}
	meta := typ["meta"].(map[string]any)
	if meta["cards"] != float64(3) || meta["nextUid"] != float64(3) {
		t.Fatalf("unexpected typology meta %#v", meta)
	}

	moved := run("nodes", "mv", "1.0.0", "--by", "outdent")
	if pos := dataMap(t, moved)["pos"]; pos != "0.0.1" {
		t.Fatalf("expected outdented card at 0.0.1, got %v", pos)
	}
	if from := moved["meta"].(map[string]any)["from"]; from != "1.0.0" {
		t.Fatalf("expected meta.from 1.0.0, got %v", from)
	}

	edited := dataMap(t, run("nodes", "edit", "0.0.1", "--append", "!"))
	if edited["text"] != "kid!" {
		t.Fatalf("expected appended text, got %#v", edited)
	}

	show := dataMap(t, run("nodes", "show", "0.0.2"))
	if n := show["node"].(map[string]any); n["text"] != "second" {
		t.Fatalf("expected second at 0.0.2, got %#v", n)
	}
	if _, ok := show["parent"]; ok {
		t.Fatalf("expected root-level card without parent")
	}

	moved = run("nodes", "mv", "0.0.2", "0.0.0")
	if pos := dataMap(t, moved)["pos"]; pos != "0.0.0" {
		t.Fatalf("expected card moved to 0.0.0, got %v", pos)
	}

	rm := dataMap(t, run("nodes", "rm", "0.0.0"))
	if rm["cleared"] != false || rm["uid"] != float64(1) {
		t.Fatalf("unexpected rm result %#v", rm)
	}
	list = run("nodes", "list")
	if n := len(list["data"].([]any)); n != 2 {
		t.Fatalf("expected 2 cards after rm, got %d", n)
	}
}

func TestNodes_RemoveLastRootClears(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	mustRun(t, "--dir", dir, "nodes", "edit", "0.0.0", "--text", "only")

	rm := dataMap(t, mustRun(t, "--dir", dir, "nodes", "rm", "0.0.0"))
	if rm["cleared"] != true {
		t.Fatalf("expected the sole root to be cleared, got %#v", rm)
	}
	show := dataMap(t, mustRun(t, "--dir", dir, "nodes", "show", "0.0.0"))
	if n := show["node"].(map[string]any); n["text"] != "" || n["uid"] != float64(0) {
		t.Fatalf("expected an empty root with uid 0, got %#v", n)
	}
}

func TestNodes_Errors(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing card", []string{"nodes", "show", "4.0.0"}, "card not found: 4.0.0"},
		{"bad position", []string{"nodes", "show", "zero"}, ""},
		{"bad placement", []string{"nodes", "add", "0.0.0", "--as", "beside"}, "invalid --as"},
		{"bad relative move", []string{"nodes", "mv", "0.0.0", "--by", "sideways"}, "invalid --by"},
		{"mv without target", []string{"nodes", "mv", "0.0.0"}, "needs a target"},
		{"edit without text", []string{"nodes", "edit", "0.0.0"}, "needs --text or --append"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, err := runCLI(t, append([]string{"--dir", dir}, tt.args...))
			if err == nil {
				t.Fatalf("expected error")
			}
			if tt.want != "" && !strings.Contains(string(stderr), tt.want) {
				t.Fatalf("expected stderr to contain %q, got %q", tt.want, stderr)
			}
		})
	}
}

func TestNodes_ReadCommandsRecordNothing(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	mustRun(t, "--dir", dir, "nodes", "list")
	mustRun(t, "--dir", dir, "typology")

	env := mustRun(t, "--dir", dir, "events")
	if n := len(env["data"].([]any)); n != 0 {
		t.Fatalf("expected no events from read-only commands, got %d", n)
	}
}
