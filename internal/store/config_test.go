package store

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"storytree/internal/tree"
)

func TestSaveConfig_WritesBackup(t *testing.T) {
	cfgDir := t.TempDir()
	t.Setenv("STORYTREE_CONFIG_DIR", cfgDir)

	if err := SaveConfig(&GlobalConfig{CurrentStory: "a"}); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	if err := SaveConfig(&GlobalConfig{CurrentStory: "b", LogLevel: "debug"}); err != nil {
		t.Fatalf("SaveConfig (2): %v", err)
	}
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.CurrentStory != "b" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected config %#v", cfg)
	}
	bak, err := os.ReadFile(filepath.Join(cfgDir, "config.json.bak"))
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if !strings.Contains(string(bak), `"currentStory": "a"`) {
		t.Fatalf("expected the previous config in the backup, got %s", bak)
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	t.Setenv("STORYTREE_CONFIG_DIR", t.TempDir())
	cfg, err := LoadConfig()
	if err != nil || cfg == nil || cfg.CurrentStory != "" {
		t.Fatalf("expected an empty config, got %#v %v", cfg, err)
	}
}

func TestGlobalConfig_TreeLayout(t *testing.T) {
	def := tree.DefaultLayout()
	var nilCfg *GlobalConfig
	if nilCfg.TreeLayout() != def {
		t.Fatalf("expected defaults from a nil config")
	}

	cfg := &GlobalConfig{
		Layout: &LayoutConfig{CardWidth: 40, FamilyMargin: 2},
		Motion: &MotionConfig{PeriodMS: 100, FrameMS: 10},
	}
	l := cfg.TreeLayout()
	if l.CardWidth != 40 || l.FamilyMargin != 2 || l.CardMargin != def.CardMargin {
		t.Fatalf("unexpected geometry %#v", l)
	}
	if l.Period != 100*time.Millisecond || l.FramePeriod != 10*time.Millisecond {
		t.Fatalf("unexpected timing %v %v", l.Period, l.FramePeriod)
	}

	cfg.Motion.PeriodMS = -1
	if cfg.TreeLayout().Period != tree.NoAnimation {
		t.Fatalf("expected a negative period to disable animation")
	}
}

func TestStoryDirAndListStories(t *testing.T) {
	cfgDir := t.TempDir()
	t.Setenv("STORYTREE_CONFIG_DIR", cfgDir)

	if got, err := ListStories(); err != nil || len(got) != 0 {
		t.Fatalf("expected no stories, got %v %v", got, err)
	}
	for _, name := range []string{"zeta", "alpha"} {
		dir, err := StoryDir(name)
		if err != nil {
			t.Fatalf("StoryDir: %v", err)
		}
		if dir != filepath.Join(cfgDir, "stories", name) {
			t.Fatalf("unexpected dir %s", dir)
		}
		if err := (Store{Dir: dir}).Ensure(); err != nil {
			t.Fatalf("Ensure: %v", err)
		}
	}
	got, err := ListStories()
	if err != nil || !reflect.DeepEqual(got, []string{"alpha", "zeta"}) {
		t.Fatalf("expected sorted stories, got %v %v", got, err)
	}

	for _, bad := range []string{"", " ", "a/b", ".."} {
		if _, err := StoryDir(bad); err == nil {
			t.Fatalf("%q: expected an error", bad)
		}
	}
}

func TestDiscoverDir(t *testing.T) {
	root := t.TempDir()
	local := filepath.Join(root, ".storytree")
	deep := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(local, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatal(err)
	}
	got, ok := DiscoverDir(deep)
	if !ok || got != local {
		t.Fatalf("expected %s, got %s %v", local, got, ok)
	}
}
