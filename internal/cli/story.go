package cli

import (
	"context"
	"os"
	"strings"

	"storytree/internal/model"
	"storytree/internal/motion"
	"storytree/internal/store"
	"storytree/internal/tree"
)

const defaultStoryName = "default"

// resolveDir picks the story directory:
// 1) --dir
// 2) --story
// 3) a .storytree directory above the working directory
// 4) config currentStory
// 5) the "default" story
func resolveDir(app *App) (string, error) {
	if app.Dir != "" {
		return app.Dir, nil
	}
	if app.Story != "" {
		d, err := store.StoryDir(app.Story)
		if err != nil {
			return "", err
		}
		app.Dir = d
		return d, nil
	}
	if wd, err := os.Getwd(); err == nil {
		if d, ok := store.DiscoverDir(wd); ok {
			app.Dir = d
			return d, nil
		}
	}
	name := defaultStoryName
	if cfg, err := store.LoadConfig(); err == nil && strings.TrimSpace(cfg.CurrentStory) != "" {
		name = cfg.CurrentStory
	}
	d, err := store.StoryDir(name)
	if err != nil {
		return "", err
	}
	app.Story = name
	app.Dir = d
	return d, nil
}

// story is an opened story: its replayed tree and, for writers, the recorder attached to it.
type story struct {
	store store.Store
	tree  *tree.Tree
}

func treeOptions(app *App) tree.Options {
	opts := tree.Options{Scheduler: motion.NewManualScheduler(), Logger: app.logger}
	if cfg, err := store.LoadConfig(); err == nil {
		opts.Layout = cfg.TreeLayout()
	}
	// Commands never render, so pillars jump instead of animating.
	opts.Layout.Period = tree.NoAnimation
	return opts
}

// openStory replays the story. With write set, later mutations are recorded; a story without
// events then starts by recording its root card.
func openStory(ctx context.Context, app *App, write bool) (*story, error) {
	dir, err := resolveDir(app)
	if err != nil {
		return nil, err
	}
	st := store.Store{Dir: dir}
	opts := treeOptions(app)

	var rec *store.Recorder
	if write {
		rec = store.NewRecorder(ctx, st, app.ActorID, app.logger)
		opts.Events = rec
	}
	t, err := store.Replay(ctx, dir, opts)
	if err != nil {
		return nil, err
	}
	if t == nil {
		t = tree.New(opts)
	}
	if rec != nil {
		rec.Attach(t)
	}
	return &story{store: st, tree: t}, nil
}

// cardAt parses a position argument and checks that a card lives there.
func (s *story) cardAt(arg string) (model.Node, error) {
	pos, err := model.ParsePosition(arg)
	if err != nil {
		return model.Node{}, err
	}
	n, err := s.tree.Node(pos)
	if err != nil {
		return model.Node{}, errNoCard(pos)
	}
	return n, nil
}
