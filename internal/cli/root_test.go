package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args []string) (stdout []byte, stderr []byte, err error) {
	t.Helper()

	cmd := NewRootCmd()

	var outBuf bytes.Buffer
	var errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)

	e := cmd.Execute()
	return outBuf.Bytes(), errBuf.Bytes(), e
}

// isolate points the config dir at a temp dir and clears env overrides.
func isolate(t *testing.T) string {
	t.Helper()
	cfgDir := t.TempDir()
	t.Setenv("STORYTREE_CONFIG_DIR", cfgDir)
	for _, k := range []string{"STORYTREE_DIR", "STORYTREE_STORY", "STORYTREE_FORMAT", "STORYTREE_LOG_LEVEL", "STORYTREE_EVENTLOG", "STORYTREE_AUTOCOMMIT", "STORYTREE_AUTOPUSH", "STORYTREE_AUTOPULL_REBASE"} {
		t.Setenv(k, "")
	}
	t.Setenv("STORYTREE_ACTOR", "tester")
	t.Chdir(t.TempDir())
	return cfgDir
}

func mustRun(t *testing.T, args ...string) map[string]any {
	t.Helper()
	stdout, stderr, err := runCLI(t, args)
	if err != nil {
		t.Fatalf("command failed: storytree %v\nerr: %v\nstderr:\n%s\nstdout:\n%s", args, err, string(stderr), string(stdout))
	}
	var env map[string]any
	if err := json.Unmarshal(stdout, &env); err != nil {
		t.Fatalf("unmarshal stdout as json envelope: %v\nstdout:\n%s\nargs: %v", err, string(stdout), args)
	}
	if _, ok := env["data"]; !ok {
		t.Fatalf("expected JSON envelope to contain data key; got: %v", env)
	}
	return env
}

func dataMap(t *testing.T, env map[string]any) map[string]any {
	t.Helper()
	m, ok := env["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %#v", env["data"])
	}
	return m
}

func TestRoot_UnknownFormat(t *testing.T) {
	isolate(t)
	_, stderr, err := runCLI(t, []string{"--dir", t.TempDir(), "--format", "xml", "typology"})
	if err == nil {
		t.Fatalf("expected error for unknown format")
	}
	if !strings.Contains(string(stderr), "unknown format") {
		t.Fatalf("expected stderr to mention the format, got %q", stderr)
	}
}

func TestRoot_InvalidLogLevel(t *testing.T) {
	isolate(t)
	if _, _, err := runCLI(t, []string{"--dir", t.TempDir(), "--log-level", "loud", "typology"}); err == nil {
		t.Fatalf("expected error for invalid log level")
	}
}

func TestRoot_YAMLOutput(t *testing.T) {
	isolate(t)
	stdout, _, err := runCLI(t, []string{"--dir", t.TempDir(), "--format", "yaml", "typology"})
	if err != nil {
		t.Fatalf("typology: %v", err)
	}
	out := string(stdout)
	if !strings.HasPrefix(out, "data:\n") || !strings.Contains(out, "nextUid: 1") {
		t.Fatalf("expected yaml envelope, got:\n%s", out)
	}
}

func TestRoot_StoryResolution(t *testing.T) {
	cfgDir := isolate(t)

	mustRun(t, "--story", "alpha", "nodes", "edit", "0.0.0", "--text", "in alpha")
	env := mustRun(t, "--story", "alpha", "nodes", "show", "0.0.0")
	node := dataMap(t, env)["node"].(map[string]any)
	if node["text"] != "in alpha" {
		t.Fatalf("expected text from story alpha, got %#v", node)
	}

	// Without --dir/--story the default story is used, which is still empty.
	env = mustRun(t, "nodes", "show", "0.0.0")
	node = dataMap(t, env)["node"].(map[string]any)
	if node["text"] != "" {
		t.Fatalf("expected default story to be empty, got %#v", node)
	}

	stories := mustRun(t, "stories", "list")
	names, _ := stories["data"].([]any)
	if len(names) != 1 || names[0] != "alpha" {
		t.Fatalf("expected only alpha under %s, got %#v", cfgDir, stories["data"])
	}
}
