package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const storyMetaFileName = "story.json"

// StoryMeta identifies a story across backends; every event carries its StoryID.
type StoryMeta struct {
	StoryID   string    `json:"storyId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s Store) storyMetaPath() string {
	return filepath.Join(s.Dir, storyMetaFileName)
}

// LoadStoryMeta reads story.json. ok is false when the story has none yet.
func (s Store) LoadStoryMeta() (meta StoryMeta, ok bool, err error) {
	b, err := os.ReadFile(s.storyMetaPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return StoryMeta{}, false, nil
		}
		return StoryMeta{}, false, err
	}
	if err := json.Unmarshal(b, &meta); err != nil {
		return StoryMeta{}, false, fmt.Errorf("%s: %w", s.storyMetaPath(), err)
	}
	if strings.TrimSpace(meta.StoryID) == "" {
		return StoryMeta{}, false, fmt.Errorf("%s: missing storyId", s.storyMetaPath())
	}
	return meta, true, nil
}

// loadOrInitStoryMeta returns the story's meta, writing a fresh one when missing. created reports
// whether it was written by this call.
func (s Store) loadOrInitStoryMeta() (StoryMeta, bool, error) {
	meta, ok, err := s.LoadStoryMeta()
	if err != nil || ok {
		return meta, false, err
	}
	if err := s.Ensure(); err != nil {
		return StoryMeta{}, false, err
	}
	meta = StoryMeta{StoryID: uuid.NewString(), CreatedAt: time.Now().UTC()}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return StoryMeta{}, false, err
	}
	if err := atomicWriteFile(s.Dir, "story.json.*.tmp", s.storyMetaPath(), append(b, '\n'), 0o644); err != nil {
		return StoryMeta{}, false, err
	}
	return meta, true, nil
}
