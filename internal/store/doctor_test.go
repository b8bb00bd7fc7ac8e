package store

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func issueCodes(rep DoctorReport) []string {
	var out []string
	for _, it := range rep.Issues {
		out = append(out, it.Code)
	}
	return out
}

func TestDoctorStory_Clean(t *testing.T) {
	forEachBackend(t, func(t *testing.T, dir string) {
		recordSession(t, dir)
		rep := DoctorStory(context.Background(), dir)
		if len(rep.Issues) != 0 {
			t.Fatalf("expected no issues, got %v", rep.Issues)
		}
		if rep.Events != 8 || !reflect.DeepEqual(rep.Typology, [][]int{{1}, {2}, {1, 0}}) {
			t.Fatalf("unexpected report %#v", rep)
		}
	})
}

func TestDoctorStory_ReplayFailure(t *testing.T) {
	forEachBackend(t, func(t *testing.T, dir string) {
		ctx := context.Background()
		recordSession(t, dir)
		// uid 1 was deleted; moving it cannot replay.
		err := Store{Dir: dir}.AppendEvent(ctx, "tester", EventNodeMove, NodeEntityID(1), NodeMovePayload{UID: 1})
		if err != nil {
			t.Fatalf("AppendEvent: %v", err)
		}
		rep := DoctorStory(ctx, dir)
		if !rep.HasErrors() {
			t.Fatalf("expected errors, got %v", rep.Issues)
		}
		last := rep.Issues[len(rep.Issues)-1]
		if last.Code != "replay_failed" || last.Type != EventNodeMove || last.EventID == "" {
			t.Fatalf("expected a pinned replay failure, got %#v", last)
		}
	})
}

func TestDoctorStory_CorruptJSONL(t *testing.T) {
	t.Setenv("STORYTREE_CONFIG_DIR", t.TempDir())
	t.Setenv(envEventLogBackend, string(EventLogBackendJSONL))
	dir := t.TempDir()
	recordSession(t, dir)

	f, err := os.OpenFile(filepath.Join(dir, "events.jsonl"), os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, _ = f.WriteString("{not json\n")
	_ = f.Close()

	rep := DoctorStory(context.Background(), dir)
	if got := issueCodes(rep); !reflect.DeepEqual(got, []string{"events_invalid_json"}) {
		t.Fatalf("expected an invalid json issue, got %v", got)
	}
}

func TestDoctorStory_Warnings(t *testing.T) {
	t.Setenv("STORYTREE_CONFIG_DIR", t.TempDir())
	t.Setenv(envEventLogBackend, string(EventLogBackendJSONL))
	dir := t.TempDir()
	ctx := context.Background()
	s := Store{Dir: dir}
	if err := s.AppendEvent(ctx, "tester", EventNodeCreate, NodeEntityID(0), NodeCreatePayload{}); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	if err := s.AppendEvent(ctx, "tester", "node.archive", NodeEntityID(0), map[string]any{}); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, storyMetaFileName)); err != nil {
		t.Fatalf("remove meta: %v", err)
	}

	rep := DoctorStory(ctx, dir)
	if rep.HasErrors() {
		t.Fatalf("expected only warnings, got %v", rep.Issues)
	}
	want := []string{"story_meta_missing", "event_type_unknown"}
	if got := issueCodes(rep); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
