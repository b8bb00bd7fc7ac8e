package gitrepo

import (
	"context"
	"strings"
)

func PullRebase(ctx context.Context, dir string) error {
	_, err := runGit(ctx, dir, "pull", "--rebase")
	return err
}

func Push(ctx context.Context, dir string) error {
	_, err := runGit(ctx, dir, "push")
	return err
}

func IsNonFastForwardPushErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{"non-fast-forward", "fetch first", "rejected"} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

type SyncOptions struct {
	Message string
	// Push pushes after a commit when the branch tracks an upstream.
	Push bool
	// PullRebase retries a rejected push once after `git pull --rebase`.
	PullRebase bool
}

type SyncResult struct {
	Committed bool `json:"committed" yaml:"committed"`
	Pushed    bool `json:"pushed" yaml:"pushed"`
}

// Sync commits the story and optionally pushes it. A story outside a repository is left alone.
func Sync(ctx context.Context, storyDir string, opts SyncOptions) (SyncResult, error) {
	var res SyncResult
	committed, err := CommitStory(ctx, storyDir, opts.Message)
	if err != nil {
		return res, err
	}
	res.Committed = committed
	if !opts.Push {
		return res, nil
	}

	st, err := GetStatus(ctx, storyDir)
	if err != nil || !st.IsRepo || st.Blocked() || st.Upstream == "" || st.Ahead == 0 {
		return res, err
	}
	if err := Push(ctx, storyDir); err != nil {
		if !opts.PullRebase || !IsNonFastForwardPushErr(err) {
			return res, err
		}
		if err := PullRebase(ctx, storyDir); err != nil {
			return res, err
		}
		if err := Push(ctx, storyDir); err != nil {
			return res, err
		}
	}
	res.Pushed = true
	return res, nil
}
