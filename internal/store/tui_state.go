package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const tuiStateFileName = "tui_state.json"

// TUIState stores small UI state for restoring the last screen on relaunch. Selection lives here
// rather than in the event log. Callers should tolerate missing or invalid data.
type TUIState struct {
	Version int `json:"version"`

	// SelectedUID is the card selected when the TUI last quit. -1 means none.
	SelectedUID int `json:"selectedUid"`

	ShowPreview bool `json:"showPreview,omitempty"`
}

func defaultTUIState() *TUIState {
	return &TUIState{Version: 1, SelectedUID: -1}
}

func (s Store) tuiStatePath() string {
	return filepath.Join(s.Dir, tuiStateFileName)
}

func (s Store) LoadTUIState() (*TUIState, error) {
	if strings.TrimSpace(s.Dir) == "" {
		return defaultTUIState(), nil
	}
	b, err := os.ReadFile(s.tuiStatePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultTUIState(), nil
		}
		return nil, err
	}
	st := defaultTUIState()
	if err := json.Unmarshal(b, st); err != nil {
		// Corrupted state is treated as missing.
		return defaultTUIState(), nil
	}
	if st.Version == 0 {
		st.Version = 1
	}
	return st, nil
}

func (s Store) SaveTUIState(st *TUIState) error {
	if st == nil || strings.TrimSpace(s.Dir) == "" {
		return nil
	}
	if err := s.Ensure(); err != nil {
		return err
	}
	if st.Version == 0 {
		st.Version = 1
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return atomicWriteFile(s.Dir, "tui_state.json.*.tmp", s.tuiStatePath(), b, 0o644)
}
