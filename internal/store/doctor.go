package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storytree/internal/motion"
	"storytree/internal/tree"
)

type DoctorIssueLevel string

const (
	DoctorIssueLevelError DoctorIssueLevel = "error"
	DoctorIssueLevelWarn  DoctorIssueLevel = "warn"
)

type DoctorIssue struct {
	Level   DoctorIssueLevel `json:"level" yaml:"level"`
	Code    string           `json:"code" yaml:"code"`
	Message string           `json:"message" yaml:"message"`
	Path    string           `json:"path,omitempty" yaml:"path,omitempty"`
	Line    int              `json:"line,omitempty" yaml:"line,omitempty"`

	EventID  string `json:"eventId,omitempty" yaml:"eventId,omitempty"`
	EntityID string `json:"entityId,omitempty" yaml:"entityId,omitempty"`
	Type     string `json:"type,omitempty" yaml:"type,omitempty"`
}

type DoctorReport struct {
	Backend  EventLogBackend `json:"backend" yaml:"backend"`
	Events   int             `json:"events" yaml:"events"`
	Typology [][]int         `json:"typology,omitempty" yaml:"typology,omitempty"`
	Issues   []DoctorIssue   `json:"issues" yaml:"issues"`
}

func (r DoctorReport) HasErrors() bool {
	for _, it := range r.Issues {
		if it.Level == DoctorIssueLevelError {
			return true
		}
	}
	return false
}

func (r *DoctorReport) add(level DoctorIssueLevel, code, msg string) *DoctorIssue {
	r.Issues = append(r.Issues, DoctorIssue{Level: level, Code: code, Message: msg})
	return &r.Issues[len(r.Issues)-1]
}

// DoctorStory checks a story's metadata and event log, then replays it and verifies the tree's
// structural invariants.
func DoctorStory(ctx context.Context, dir string) DoctorReport {
	st := Store{Dir: dir}
	rep := DoctorReport{Backend: st.eventLogBackend(), Issues: []DoctorIssue{}}

	meta, hasMeta, metaErr := st.LoadStoryMeta()
	if metaErr != nil {
		rep.add(DoctorIssueLevelError, "story_meta_invalid", metaErr.Error()).Path = st.storyMetaPath()
	}

	if rep.Backend == EventLogBackendJSONL {
		if _, err := readEventV1Lines(st.jsonlPath()); err != nil {
			rep.add(DoctorIssueLevelError, "events_invalid_json", err.Error()).Path = st.jsonlPath()
			return rep
		}
	}

	evs, err := ReadEvents(ctx, dir, 0)
	if err != nil {
		rep.add(DoctorIssueLevelError, "events_unreadable", err.Error())
		return rep
	}
	rep.Events = len(evs)
	if len(evs) == 0 {
		return rep
	}
	if !hasMeta && metaErr == nil {
		rep.add(DoctorIssueLevelWarn, "story_meta_missing", "events recorded without story.json").Path = st.storyMetaPath()
	}

	lastSeq := map[string]int64{}
	for _, ev := range evs {
		if _, ok := ParseNodeEntityID(ev.EntityID); !ok {
			it := rep.add(DoctorIssueLevelError, "entity_id_invalid", fmt.Sprintf("entity id %q is not a node id", ev.EntityID))
			it.EventID, it.EntityID, it.Type = ev.ID, ev.EntityID, ev.Type
		}
		if want := lastSeq[ev.EntityID] + 1; ev.Seq != want {
			it := rep.add(DoctorIssueLevelWarn, "entity_seq_gap", fmt.Sprintf("entity seq %d, expected %d", ev.Seq, want))
			it.EventID, it.EntityID, it.Type = ev.ID, ev.EntityID, ev.Type
		}
		lastSeq[ev.EntityID] = ev.Seq
		if !isKnownEventType(ev.Type) {
			it := rep.add(DoctorIssueLevelWarn, "event_type_unknown", fmt.Sprintf("unknown event type %q", ev.Type))
			it.EventID, it.EntityID, it.Type = ev.ID, ev.EntityID, ev.Type
		}
	}
	if hasMeta {
		if mismatched := countForeignStoryIDs(ctx, st, meta.StoryID); mismatched > 0 {
			rep.add(DoctorIssueLevelWarn, "story_id_mismatch", fmt.Sprintf("%d events carry another story id", mismatched))
		}
	}

	t, _, err := ReplayEvents(ctx, evs, tree.Options{Scheduler: motion.NewManualScheduler()})
	if err != nil {
		it := rep.add(DoctorIssueLevelError, "replay_failed", err.Error())
		var re *ReplayError
		if errors.As(err, &re) {
			it.EventID, it.Type = re.EventID, re.Type
		}
		return rep
	}
	rep.Typology = t.Typology()
	if err := t.CheckInvariants(); err != nil {
		rep.add(DoctorIssueLevelError, "invariant_violated", err.Error())
	}
	return rep
}

func isKnownEventType(typ string) bool {
	switch strings.TrimSpace(typ) {
	case EventNodeCreate, EventNodeMove, EventNodeModify, EventNodeDelete:
		return true
	}
	return false
}

// countForeignStoryIDs counts events stamped with a story id other than storyID. Only the JSONL
// log is checked: copying lines between stories is the way that goes wrong.
func countForeignStoryIDs(ctx context.Context, st Store, storyID string) int {
	if st.eventLogBackend() != EventLogBackendJSONL {
		return 0
	}
	lines, err := readEventV1Lines(st.jsonlPath())
	if err != nil {
		return 0
	}
	n := 0
	for _, l := range lines {
		if ctx.Err() != nil {
			break
		}
		if l.Event.StoryID != storyID {
			n++
		}
	}
	return n
}
