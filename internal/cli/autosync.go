package cli

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"storytree/internal/gitrepo"
	"storytree/internal/store"
)

// gitSyncOptions merges config git settings with the STORYTREE_AUTOCOMMIT, STORYTREE_AUTOPUSH and
// STORYTREE_AUTOPULL_REBASE overrides.
func gitSyncOptions() (autoCommit bool, opts gitrepo.SyncOptions) {
	gc := store.GitConfig{}
	if cfg, err := store.LoadConfig(); err == nil && cfg.Git != nil {
		gc = *cfg.Git
	}
	autoCommit = boolEnv("STORYTREE_AUTOCOMMIT", gc.AutoCommit)
	opts.Push = boolEnv("STORYTREE_AUTOPUSH", gc.AutoPush)
	opts.PullRebase = boolEnv("STORYTREE_AUTOPULL_REBASE", gc.PullRebase)
	return autoCommit, opts
}

func boolEnv(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	switch strings.ToLower(v) {
	case "y", "yes", "on":
		return true
	case "n", "no", "off":
		return false
	}
	return def
}

// autoSyncBestEffort commits the story after a write when auto-commit is on. Failures are
// logged, never returned: the event log already holds the write.
func autoSyncBestEffort(app *App, dir string) {
	autoCommit, opts := gitSyncOptions()
	if !autoCommit || strings.TrimSpace(dir) == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	res, err := gitrepo.Sync(ctx, dir, opts)
	if err != nil {
		app.logger.Warn("auto-sync failed", slog.String("dir", dir), slog.Any("err", err))
		return
	}
	app.logger.Debug("auto-sync", slog.Bool("committed", res.Committed), slog.Bool("pushed", res.Pushed))
}
