package gitrepo

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// FindGitDir walks up from start to the git directory, following the "gitdir:" file that
// worktrees and submodules use. It does not run git.
func FindGitDir(start string) (gitDir string, ok bool, err error) {
	dir := filepath.Clean(strings.TrimSpace(start))
	if strings.TrimSpace(start) == "" {
		return "", false, errors.New("empty start dir")
	}
	for {
		candidate := filepath.Join(dir, ".git")
		if fi, statErr := os.Stat(candidate); statErr == nil {
			if fi.IsDir() {
				return candidate, true, nil
			}
			target, err := readGitdirFile(candidate)
			if err != nil {
				return "", false, err
			}
			if target != "" {
				return target, true, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}

func readGitdirFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		ln := strings.TrimSpace(sc.Text())
		if ln == "" {
			continue
		}
		if !strings.HasPrefix(strings.ToLower(ln), "gitdir:") {
			break
		}
		p := strings.TrimSpace(ln[len("gitdir:"):])
		if p == "" {
			return "", nil
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(filepath.Dir(path), p)
		}
		return filepath.Clean(p), nil
	}
	return "", sc.Err()
}

// InProgressKind reports a merge, rebase, cherry-pick or revert by its marker files, or "" when
// the repo is idle. Writers check this before committing a story.
func InProgressKind(dir string) (string, error) {
	gitDir, ok, err := FindGitDir(dir)
	if err != nil || !ok {
		return "", err
	}
	markers := []struct{ kind, name string }{
		{"merge", "MERGE_HEAD"},
		{"rebase", "rebase-apply"},
		{"rebase", "rebase-merge"},
		{"cherry-pick", "CHERRY_PICK_HEAD"},
		{"revert", "REVERT_HEAD"},
	}
	for _, m := range markers {
		if _, err := os.Stat(filepath.Join(gitDir, m.name)); err == nil {
			return m.kind, nil
		}
	}
	return "", nil
}

func Init(ctx context.Context, dir string) error {
	_, err := runGit(ctx, dir, "init")
	return err
}

// SetRemoteURL adds the remote, or repoints it when it exists.
func SetRemoteURL(ctx context.Context, dir, remoteName, remoteURL string) error {
	remoteName = strings.TrimSpace(remoteName)
	remoteURL = strings.TrimSpace(remoteURL)
	if remoteName == "" {
		remoteName = "origin"
	}
	if remoteURL == "" {
		return errors.New("empty remote url")
	}
	if _, err := runGit(ctx, dir, "remote", "get-url", remoteName); err == nil {
		_, err := runGit(ctx, dir, "remote", "set-url", remoteName, remoteURL)
		return err
	}
	_, err := runGit(ctx, dir, "remote", "add", remoteName, remoteURL)
	return err
}
