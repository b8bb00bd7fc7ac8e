package publish

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"storytree/internal/tree"
)

type WriteOptions struct {
	Title     string
	Headings  bool
	Pillars   bool
	Overwrite bool
}

type WriteResult struct {
	Written []string `json:"written"`
}

// WriteStory writes story.md and, with Pillars, one pillars/<depth>.md per non-empty pillar.
// The files are derived output; the event log stays canonical.
func WriteStory(t *tree.Tree, toDir string, opt WriteOptions) (WriteResult, error) {
	if t == nil {
		return WriteResult{}, errors.New("missing tree")
	}
	toDir = strings.TrimSpace(toDir)
	if toDir == "" {
		return WriteResult{}, errors.New("missing --to")
	}
	toDir = filepath.Clean(toDir)
	if err := os.MkdirAll(toDir, 0o755); err != nil {
		return WriteResult{}, err
	}

	ropt := RenderOptions{Title: opt.Title, Headings: opt.Headings}
	storyPath := filepath.Join(toDir, "story.md")
	if err := writeFile(storyPath, []byte(RenderStoryMarkdown(t, ropt)), opt.Overwrite); err != nil {
		return WriteResult{}, err
	}
	written := []string{storyPath}
	if !opt.Pillars {
		return WriteResult{Written: written}, nil
	}

	pillarsDir := filepath.Join(toDir, "pillars")
	if err := os.MkdirAll(pillarsDir, 0o755); err != nil {
		return WriteResult{}, err
	}
	for d := 0; d < t.PillarCount(); d++ {
		if t.Pillar(d).CountCards() == 0 {
			continue
		}
		md, err := RenderPillarMarkdown(t, d, ropt)
		if err != nil {
			return WriteResult{}, err
		}
		p := filepath.Join(pillarsDir, strconv.Itoa(d)+".md")
		if err := writeFile(p, []byte(md), opt.Overwrite); err != nil {
			return WriteResult{}, err
		}
		written = append(written, p)
	}
	return WriteResult{Written: written}, nil
}

func writeFile(path string, b []byte, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.New("file exists (use --overwrite): " + path)
		}
	}
	return os.WriteFile(path, b, 0o644)
}
