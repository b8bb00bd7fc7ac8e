package store

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestTUIState_SaveLoad_RoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := Store{Dir: dir}

	// Missing file => default state.
	st0, err := s.LoadTUIState()
	if err != nil {
		t.Fatalf("LoadTUIState: %v", err)
	}
	if st0 == nil || st0.Version != 1 || st0.SelectedUID != -1 {
		t.Fatalf("expected default state; got %#v", st0)
	}

	want := &TUIState{Version: 1, SelectedUID: 4, ShowPreview: true}
	if err := s.SaveTUIState(want); err != nil {
		t.Fatalf("SaveTUIState: %v", err)
	}
	got, err := s.LoadTUIState()
	if err != nil {
		t.Fatalf("LoadTUIState (after save): %v", err)
	}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("roundtrip mismatch:\nwant: %#v\ngot:  %#v", want, got)
	}
}

func TestTUIState_CorruptIsDefault(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, tuiStateFileName), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	st, err := Store{Dir: dir}.LoadTUIState()
	if err != nil || st.SelectedUID != -1 {
		t.Fatalf("expected default state, got %#v %v", st, err)
	}
	if err := (Store{}).SaveTUIState(&TUIState{}); err != nil {
		t.Fatalf("expected a dirless save to be a no-op, got %v", err)
	}
}
