package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"storytree/internal/tree"
)

type GlobalConfig struct {
	CurrentStory string `json:"currentStory,omitempty"`

	// LogLevel is one of debug|info|warn|error. Flags and STORYTREE_LOG_LEVEL take precedence.
	LogLevel string `json:"logLevel,omitempty"`

	Layout *LayoutConfig `json:"layout,omitempty"`
	Motion *MotionConfig `json:"motion,omitempty"`

	// TUI holds optional user preferences for the interactive TUI.
	TUI *TUIConfig `json:"tui,omitempty"`

	Git *GitConfig `json:"git,omitempty"`
}

// GitConfig controls syncing of stories that live inside a git repository.
type GitConfig struct {
	// AutoCommit commits the story's canonical files after every write.
	AutoCommit bool `json:"autoCommit,omitempty"`
	// AutoPush pushes after an automatic commit when the branch tracks an upstream.
	AutoPush bool `json:"autoPush,omitempty"`
	// PullRebase retries a rejected push after `git pull --rebase`.
	PullRebase bool `json:"pullRebase,omitempty"`
}

// LayoutConfig overrides card geometry. Zero fields keep the defaults.
type LayoutConfig struct {
	CardWidth         float64 `json:"cardWidth,omitempty"`
	PlaceholderHeight float64 `json:"placeholderHeight,omitempty"`
	CardMargin        float64 `json:"cardMargin,omitempty"`
	FamilyMargin      float64 `json:"familyMargin,omitempty"`
	PillarMargin      float64 `json:"pillarMargin,omitempty"`
	TopMargin         float64 `json:"topMargin,omitempty"`
}

type MotionConfig struct {
	// PeriodMS is the duration of one centering animation. 0 keeps the default; negative disables
	// animation.
	PeriodMS int `json:"periodMs,omitempty"`
	FrameMS  int `json:"frameMs,omitempty"`
}

type TUIConfig struct {
	// Glyphs selects the glyph set ("unicode" or "ascii").
	Glyphs string `json:"glyphs,omitempty"`
	// Preview starts the TUI with the markdown preview open.
	Preview bool `json:"preview,omitempty"`
	// MarkdownStyle is a glamour style name ("dark", "light", "notty", "auto").
	MarkdownStyle string `json:"markdownStyle,omitempty"`
	// Editor is the external editor command; it overrides $VISUAL and $EDITOR. A {file} word
	// marks where the card file goes.
	Editor string `json:"editor,omitempty"`
}

// TreeLayout merges the configured geometry over tree.DefaultLayout.
func (c *GlobalConfig) TreeLayout() tree.Layout {
	l := tree.DefaultLayout()
	if c == nil {
		return l
	}
	if lc := c.Layout; lc != nil {
		setIfPositive(&l.CardWidth, lc.CardWidth)
		setIfPositive(&l.PlaceholderHeight, lc.PlaceholderHeight)
		setIfPositive(&l.CardMargin, lc.CardMargin)
		setIfPositive(&l.FamilyMargin, lc.FamilyMargin)
		setIfPositive(&l.PillarMargin, lc.PillarMargin)
		setIfPositive(&l.TopMargin, lc.TopMargin)
	}
	if mc := c.Motion; mc != nil {
		switch {
		case mc.PeriodMS < 0:
			l.Period = tree.NoAnimation
		case mc.PeriodMS > 0:
			l.Period = time.Duration(mc.PeriodMS) * time.Millisecond
		}
		if mc.FrameMS > 0 {
			l.FramePeriod = time.Duration(mc.FrameMS) * time.Millisecond
		}
	}
	return l
}

func setIfPositive(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}

func ConfigDir() (string, error) {
	// Test/advanced override (keeps unit tests from touching ~/.storytree).
	if v := strings.TrimSpace(os.Getenv("STORYTREE_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, localDirName), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

func LoadConfig() (*GlobalConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &GlobalConfig{}, nil
		}
		return nil, err
	}
	var cfg GlobalConfig
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func atomicWriteFile(dir, tmpPattern, path string, b []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = os.Chmod(tmp, perm)
	return os.Rename(tmp, path)
}

func SaveConfig(cfg *GlobalConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	// Keep the previous config around; a failed backup never blocks the save.
	if prev, err := os.ReadFile(path); err == nil && len(prev) > 0 {
		_ = atomicWriteFile(dir, "config.json.bak.*.tmp", path+".bak", prev, 0o644)
	}
	return atomicWriteFile(dir, "config.json.*.tmp", path, b, 0o600)
}

// ListStories returns the story directories under the config dir, sorted by name.
func ListStories() ([]string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	out := []string{}
	ents, err := os.ReadDir(filepath.Join(dir, "stories"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return out, nil
		}
		return nil, err
	}
	for _, e := range ents {
		if e.IsDir() && strings.TrimSpace(e.Name()) != "" {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}
