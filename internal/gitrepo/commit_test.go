package gitrepo

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

const (
	createLine = `{"eventId":"e1","type":"node.create","entityId":"node-1","entitySeq":1,"payload":{"uid":1,"pos":{"depth":0,"family":0,"index":1}}}` + "\n"
	modifyLine = `{"eventId":"e2","type":"node.modify","entityId":"node-1","entitySeq":2,"payload":{"uid":1,"delta":{"ops":[{"insert":"Hi"}]}}}` + "\n"
)

func TestCommitStory_CommitsCanonicalFilesOnly(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	storyDir := filepath.Join(repo, "stories", "saga")
	writeFile(t, filepath.Join(storyDir, "events.jsonl"), createLine)
	writeFile(t, filepath.Join(storyDir, "story.json"), `{"storyId":"s1"}`+"\n")
	writeFile(t, filepath.Join(storyDir, "tui_state.json"), `{"version":1}`+"\n")

	st, err := GetStatus(ctx, storyDir)
	if err != nil || !st.StoryDirty {
		t.Fatalf("expected a dirty story: %+v (%v)", st, err)
	}

	committed, err := CommitStory(ctx, storyDir, "")
	if err != nil || !committed {
		t.Fatalf("CommitStory: committed=%v err=%v", committed, err)
	}
	subject := strings.TrimSpace(runOut(t, repo, "git", "log", "-1", "--format=%s"))
	if subject != "storytree: create 0.0.1" {
		t.Fatalf("unexpected subject %q", subject)
	}
	files := runOut(t, repo, "git", "show", "--name-only", "--format=", "HEAD")
	if !strings.Contains(files, "stories/saga/events.jsonl") || !strings.Contains(files, "stories/saga/story.json") {
		t.Fatalf("canonical files missing from commit: %q", files)
	}
	if strings.Contains(files, "tui_state.json") {
		t.Fatalf("local state must not be committed: %q", files)
	}

	committed, err = CommitStory(ctx, storyDir, "")
	if err != nil || committed {
		t.Fatalf("expected nothing to commit, got committed=%v err=%v", committed, err)
	}

	writeFile(t, filepath.Join(storyDir, "events.jsonl"), createLine+modifyLine)
	res, err := Sync(ctx, storyDir, SyncOptions{Message: "manual", Push: true})
	if err != nil || !res.Committed || res.Pushed {
		t.Fatalf("Sync without upstream: %+v (%v)", res, err)
	}
	if subject := strings.TrimSpace(runOut(t, repo, "git", "log", "-1", "--format=%s")); subject != "manual" {
		t.Fatalf("expected explicit message, got %q", subject)
	}
}

func TestCommitStory_OutsideRepo(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "events.jsonl"), createLine)
	committed, err := CommitStory(context.Background(), dir, "")
	if err != nil || committed {
		t.Fatalf("expected a no-op outside git, got committed=%v err=%v", committed, err)
	}
}

func TestDescribeEvent(t *testing.T) {
	cases := []struct {
		line string
		want string
	}{
		{createLine, "create 0.0.1"},
		{modifyLine, "edit card 1"},
		{`{"type":"node.move","payload":{"uid":2,"from":{"depth":1,"family":0,"index":0},"to":{"depth":1,"family":0,"index":1}}}`, "move 1.0.0 to 1.0.1"},
		{`{"type":"node.delete","payload":{"uid":2,"pos":{"depth":1,"family":0,"index":0}}}`, "delete 1.0.0"},
		{`{"type":"story.set_title","payload":{}}`, "set title"},
	}
	for _, tc := range cases {
		evs := parseAddedJSONLines("+" + strings.TrimSpace(tc.line))
		if len(evs) != 1 {
			t.Fatalf("parse %q: got %d events", tc.line, len(evs))
		}
		if got := describeEvent(evs[0]); got != tc.want {
			t.Fatalf("describe %q: expected %q, got %q", tc.line, tc.want, got)
		}
	}
	if evs := parseAddedJSONLines("+++ b/events.jsonl\n+not json\n-{\"type\":\"node.create\"}"); len(evs) != 0 {
		t.Fatalf("expected headers, garbage and removals to be skipped: %+v", evs)
	}
}
