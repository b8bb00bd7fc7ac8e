package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type EventV1Line struct {
	Path  string
	Line  int
	Event EventV1
}

func (s Store) jsonlPath() string {
	return filepath.Join(s.Dir, "events.jsonl")
}

// EventLogPath is the file a follower should watch for the active backend.
func (s Store) EventLogPath() string {
	if s.eventLogBackend() == EventLogBackendJSONL {
		return s.jsonlPath()
	}
	return s.sqlitePath()
}

func (s Store) appendEventJSONL(ctx context.Context, actorID, typ, entityID string, payload any) error {
	kind, actorID, typ, entityID, err := checkEventContract(actorID, typ, entityID)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	meta, _, err := s.loadOrInitStoryMeta()
	if err != nil {
		return err
	}

	lines, err := readEventV1Lines(s.jsonlPath())
	if err != nil {
		return err
	}
	// Single writer: the entity's head is its last line.
	var seq int64 = 1
	var parents []string
	for _, l := range lines {
		if l.Event.EntityID == entityID && l.Event.EntitySeq >= seq {
			seq = l.Event.EntitySeq + 1
			parents = []string{l.Event.EventID}
		}
	}

	pb, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	ev := EventV1{
		EventID:    uuid.NewString(),
		StoryID:    meta.StoryID,
		EntityKind: kind,
		EntityID:   entityID,
		EntitySeq:  seq,
		Type:       typ,
		Parents:    parents,
		IssuedAt:   time.Now().UTC(),
		ActorID:    actorID,
		Payload:    json.RawMessage(pb),
	}

	if err := s.Ensure(); err != nil {
		return err
	}
	f, err := os.OpenFile(s.jsonlPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = f.Write(append(line, '\n'))
	return err
}

// ReadEventsV1Lines exposes the raw JSONL lines, for diagnostics.
func ReadEventsV1Lines(dir string) ([]EventV1Line, error) {
	return readEventV1Lines(Store{Dir: dir}.jsonlPath())
}

// readEventsJSONL keeps file order: the log is append-only and timestamps may repeat.
func (s Store) readEventsJSONL(limit int) ([]Event, error) {
	lines, err := readEventV1Lines(s.jsonlPath())
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.Event.flatten())
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s Store) readEventsForEntityJSONL(entityID string, limit int) ([]Event, error) {
	lines, err := readEventV1Lines(s.jsonlPath())
	if err != nil {
		return nil, err
	}
	var evs []EventV1
	for _, l := range lines {
		if strings.TrimSpace(l.Event.EntityID) == entityID {
			evs = append(evs, l.Event)
		}
	}
	sort.SliceStable(evs, func(i, j int) bool { return evs[i].EntitySeq < evs[j].EntitySeq })

	out := []Event{}
	for _, e := range evs {
		out = append(out, e.flatten())
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func readEventV1Lines(path string) ([]EventV1Line, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []EventV1Line{}, nil
		}
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	out := []EventV1Line{}
	lineNo := 0
	for sc.Scan() {
		lineNo++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var ev EventV1
		if err := json.Unmarshal(b, &ev); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		out = append(out, EventV1Line{Path: path, Line: lineNo, Event: ev})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
