package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// canonicalFiles are the story files worth versioning, relative to the story dir. The TUI
// selection state and the SQLite event log stay local.
var canonicalFiles = []string{"events.jsonl", "story.json"}

// CommitStory stages and commits the story's canonical files. An empty message is generated from
// the staged events. Returns committed=false when the story has nothing new or storyDir is not
// inside a repository.
func CommitStory(ctx context.Context, storyDir string, message string) (committed bool, err error) {
	storyDir = filepath.Clean(storyDir)

	st, err := GetStatus(ctx, storyDir)
	if err != nil {
		return false, err
	}
	if !st.IsRepo {
		return false, nil
	}
	if st.Blocked() {
		return false, errors.New("git repo has an in-progress merge/rebase; resolve first")
	}

	added, err := stageStory(ctx, storyDir, st.Root)
	if err != nil || !added {
		return false, err
	}

	out, err := runGit(ctx, st.Root, "diff", "--cached", "--name-only")
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(out) == "" {
		return false, nil
	}

	msg := strings.TrimSpace(message)
	if msg == "" {
		msg = StagedSummaryMessage(ctx, st.Root)
	}
	if msg == "" {
		msg = fmt.Sprintf("storytree: update (%s)", time.Now().UTC().Format(time.RFC3339))
	}
	if _, err := runGit(ctx, st.Root, "commit", "-m", msg); err != nil {
		return false, err
	}
	return true, nil
}

// runGit is git with stdout and stderr combined, for commands whose failure text matters more
// than their output.
func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), msg)
	}
	return string(out), nil
}

// stageStory adds the canonical files that exist, by their path relative to the repo root.
func stageStory(ctx context.Context, storyDir string, repoRoot string) (bool, error) {
	// Temp dirs on macOS sit behind symlinks (/var -> /private/var) while git reports the
	// resolved root.
	if v, err := filepath.EvalSymlinks(storyDir); err == nil {
		storyDir = v
	}
	if v, err := filepath.EvalSymlinks(repoRoot); err == nil {
		repoRoot = v
	}
	rel, err := filepath.Rel(repoRoot, storyDir)
	if err != nil {
		return false, err
	}

	args := []string{"-C", repoRoot, "add", "--"}
	for _, name := range canonicalFiles {
		if _, err := os.Stat(filepath.Join(storyDir, name)); err != nil {
			continue
		}
		args = append(args, filepath.ToSlash(filepath.Join(rel, name)))
	}
	if len(args) == 4 {
		return false, nil
	}
	if _, err := runGit(ctx, repoRoot, args...); err != nil {
		return false, err
	}
	return true, nil
}
