package gitrepo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

type Status struct {
	IsRepo bool `json:"isRepo" yaml:"isRepo"`

	Root     string `json:"root,omitempty" yaml:"root,omitempty"`
	Branch   string `json:"branch,omitempty" yaml:"branch,omitempty"`
	Upstream string `json:"upstream,omitempty" yaml:"upstream,omitempty"`
	Head     string `json:"head,omitempty" yaml:"head,omitempty"`

	Dirty bool `json:"dirty" yaml:"dirty"`
	// StoryDirty is Dirty restricted to the story's canonical files.
	StoryDirty bool `json:"storyDirty" yaml:"storyDirty"`
	Unmerged   bool `json:"unmerged" yaml:"unmerged"`

	InProgress     bool   `json:"inProgress" yaml:"inProgress"`
	InProgressKind string `json:"inProgressKind,omitempty" yaml:"inProgressKind,omitempty"`

	Ahead  int `json:"ahead,omitempty" yaml:"ahead,omitempty"`
	Behind int `json:"behind,omitempty" yaml:"behind,omitempty"`
}

// Blocked reports whether committing now would land on top of an unfinished merge or rebase.
func (s Status) Blocked() bool {
	return s.Unmerged || s.InProgress
}

// GetStatus describes the repository holding storyDir. A directory outside any repository is
// not an error: the status simply has IsRepo false.
func GetStatus(ctx context.Context, storyDir string) (Status, error) {
	root, err := git(ctx, storyDir, "rev-parse", "--show-toplevel")
	if err != nil {
		return Status{IsRepo: false}, nil
	}
	root = strings.TrimSpace(root)
	if root == "" {
		return Status{}, errors.New("git rev-parse returned empty root")
	}

	branch, _ := git(ctx, storyDir, "rev-parse", "--abbrev-ref", "HEAD")
	head, _ := git(ctx, storyDir, "rev-parse", "--short", "HEAD")
	upstream, _ := git(ctx, storyDir, "rev-parse", "--abbrev-ref", "--symbolic-full-name", "@{u}")

	porcelain, _ := git(ctx, storyDir, "status", "--porcelain=v1")
	dirty, unmerged := parsePorcelain(porcelain)
	args := append([]string{"status", "--porcelain=v1", "--"}, canonicalFiles...)
	storyPorcelain, _ := git(ctx, storyDir, args...)
	storyDirty, _ := parsePorcelain(storyPorcelain)

	kind, _ := InProgressKind(storyDir)

	st := Status{
		IsRepo:         true,
		Root:           root,
		Branch:         strings.TrimSpace(branch),
		Upstream:       strings.TrimSpace(upstream),
		Head:           strings.TrimSpace(head),
		Dirty:          dirty,
		StoryDirty:     storyDirty,
		Unmerged:       unmerged,
		InProgress:     kind != "",
		InProgressKind: kind,
	}
	if st.Upstream != "" {
		if counts, err := git(ctx, storyDir, "rev-list", "--left-right", "--count", "HEAD...@{u}"); err == nil {
			if a, b, ok := parseAheadBehind(counts); ok {
				st.Ahead, st.Behind = a, b
			}
		}
	}
	return st, nil
}

// git runs git in dir and returns stdout. The error carries stderr.
func git(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), msg)
	}
	return stdout.String(), nil
}

func parsePorcelain(out string) (dirty bool, unmerged bool) {
	for _, ln := range strings.Split(out, "\n") {
		ln = strings.TrimRight(ln, "\r")
		if len(ln) < 2 || strings.TrimSpace(ln[:2]) == "" {
			continue
		}
		dirty = true
		if isUnmergedXY(ln[:2]) {
			unmerged = true
		}
	}
	return dirty, unmerged
}

func isUnmergedXY(xy string) bool {
	switch xy {
	case "DD", "AU", "UD", "UA", "DU", "AA", "UU":
		return true
	}
	return xy[0] == 'U' || xy[1] == 'U'
}

// parseAheadBehind reads "<ahead>\t<behind>" from rev-list --left-right --count.
func parseAheadBehind(out string) (ahead int, behind int, ok bool) {
	fields := strings.Fields(out)
	if len(fields) != 2 {
		return 0, 0, false
	}
	a, err1 := strconv.Atoi(fields[0])
	b, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return a, b, true
}
