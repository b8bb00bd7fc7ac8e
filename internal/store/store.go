package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const localDirName = ".storytree"

// Store is one story directory: its event log, metadata and UI state.
type Store struct {
	Dir string
}

// DiscoverDir walks up from start looking for a .storytree directory.
func DiscoverDir(start string) (string, bool) {
	dir := start
	for {
		candidate := filepath.Join(dir, localDirName)
		if st, err := os.Stat(candidate); err == nil && st.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// StoryDir is where a named story lives under the config dir.
func StoryDir(name string) (string, error) {
	name, err := NormalizeStoryName(name)
	if err != nil {
		return "", err
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "stories", name), nil
}

func NormalizeStoryName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("story name is empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid story name %q", name)
	}
	return name, nil
}

func (s Store) Ensure() error {
	return os.MkdirAll(s.Dir, 0o755)
}

// HasEvents reports whether anything was ever recorded in this story.
func (s Store) HasEvents() bool {
	if s.hasJSONLEvents() {
		return true
	}
	_, ok := s.existingSQLitePath()
	return ok
}

// AppendEvent records one event on the selected backend.
func (s Store) AppendEvent(ctx context.Context, actorID, typ, entityID string, payload any) error {
	if s.eventLogBackend() == EventLogBackendJSONL {
		return s.appendEventJSONL(ctx, actorID, typ, entityID, payload)
	}
	return s.appendEventSQLite(ctx, actorID, typ, entityID, payload)
}

// ReadEvents returns the story's events oldest first. A positive limit keeps the first limit events.
func ReadEvents(ctx context.Context, dir string, limit int) ([]Event, error) {
	st := Store{Dir: dir}
	if st.eventLogBackend() == EventLogBackendJSONL {
		return st.readEventsJSONL(limit)
	}
	return st.readEventsSQLite(ctx, limit)
}

// ReadEventsTail returns the last limit events, still oldest first. A limit <= 0 returns all.
func ReadEventsTail(ctx context.Context, dir string, limit int) ([]Event, error) {
	evs, err := ReadEvents(ctx, dir, 0)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || len(evs) <= limit {
		return evs, nil
	}
	return evs[len(evs)-limit:], nil
}

// ReadEventsForEntity returns the events of one entity in per-entity order.
func ReadEventsForEntity(ctx context.Context, dir, entityID string, limit int) ([]Event, error) {
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return []Event{}, nil
	}
	st := Store{Dir: dir}
	if st.eventLogBackend() == EventLogBackendJSONL {
		return st.readEventsForEntityJSONL(entityID, limit)
	}
	return st.readEventsForEntitySQLite(ctx, entityID, limit)
}
