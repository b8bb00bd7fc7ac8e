package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPublish_WritesMarkdown(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	mustRun(t, "--dir", dir, "nodes", "edit", "0.0.0", "--text", "Act one")
	mustRun(t, "--dir", dir, "nodes", "add", "1.0.0", "--text", "Setup")

	out := t.TempDir()
	env := mustRun(t, "--dir", dir, "publish", "--to", out, "--pillars", "--title", "Draft")
	written := dataMap(t, env)["written"].([]any)
	if len(written) != 3 {
		t.Fatalf("expected story.md and two pillar files, got %#v", written)
	}
	if _, ok := env["_hints"]; !ok {
		t.Fatalf("expected _hints in publish output")
	}
	b, err := os.ReadFile(filepath.Join(out, "story.md"))
	if err != nil {
		t.Fatalf("read story.md: %v", err)
	}
	if string(b) != "# Draft\n\nAct one\n\nSetup\n" {
		t.Fatalf("unexpected story.md %q", b)
	}

	if _, _, err := runCLI(t, []string{"--dir", dir, "publish", "--to", out}); err == nil {
		t.Fatalf("expected publish without --overwrite to refuse existing files")
	}
	if _, _, err := runCLI(t, []string{"--dir", dir, "publish"}); err == nil {
		t.Fatalf("expected publish without --to to fail")
	}
}

func TestDocs(t *testing.T) {
	isolate(t)

	env := mustRun(t, "docs")
	topics := dataMap(t, env)["topics"].([]any)
	if len(topics) == 0 {
		t.Fatalf("expected topics")
	}

	stdout, _, err := runCLI(t, []string{"docs", "positions", "--raw"})
	if err != nil {
		t.Fatalf("docs positions: %v", err)
	}
	if !strings.HasPrefix(string(stdout), "# Positions") {
		t.Fatalf("expected raw markdown, got %q", stdout)
	}

	_, stderr, err := runCLI(t, []string{"docs", "nope"})
	if err == nil || !strings.Contains(string(stderr), "unknown docs topic") {
		t.Fatalf("expected unknown topic error, got %v / %q", err, stderr)
	}
}
