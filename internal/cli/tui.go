package cli

import (
	"storytree/internal/store"
	"storytree/internal/tui"

	"github.com/spf13/cobra"
)

// runTUI starts the interactive editor. Logs go to a file while the TUI owns the terminal.
func runTUI(cmd *cobra.Command, app *App) error {
	dir, err := resolveDir(app)
	if err != nil {
		return writeErr(cmd, err)
	}
	cfg, err := store.LoadConfig()
	if err != nil {
		return writeErr(cmd, err)
	}
	logger, closer, err := openLogFile(resolveLogLevel(app))
	if err != nil {
		return writeErr(cmd, err)
	}
	defer closer.Close()

	logger.Info("tui start", "dir", dir, "actor", app.ActorID)
	if err := tui.Run(cmd.Context(), tui.Options{
		Dir:     dir,
		Story:   app.Story,
		ActorID: app.ActorID,
		Config:  cfg,
		Logger:  logger,
	}); err != nil {
		return writeErr(cmd, err)
	}
	autoSyncBestEffort(app, dir)
	return nil
}
