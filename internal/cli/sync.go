package cli

import (
	"errors"

	"storytree/internal/gitrepo"
	"storytree/internal/store"

	"github.com/spf13/cobra"
)

func newSyncCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Git helpers for stories kept in a git repository",
	}
	cmd.AddCommand(newSyncStatusCmd(app))
	cmd.AddCommand(newSyncCommitCmd(app))
	cmd.AddCommand(newSyncInitCmd(app))
	return cmd
}

func newSyncStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the git status of the story's repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveDir(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			st, err := gitrepo.GetStatus(cmd.Context(), dir)
			if err != nil {
				return writeErr(cmd, err)
			}
			hints := []string{}
			switch {
			case !st.IsRepo:
				hints = append(hints, "storytree sync init")
			case st.Blocked():
				hints = append(hints, "git status")
			case st.StoryDirty:
				hints = append(hints, "storytree sync commit")
			}
			if st.IsRepo && st.Behind > 0 {
				hints = append(hints, "git pull --rebase")
			}
			return writeOut(cmd, app, map[string]any{"data": st, "meta": map[string]any{"dir": dir}, "_hints": hints})
		},
	}
}

func newSyncCommitCmd(app *App) *cobra.Command {
	var (
		message    string
		push       bool
		pullRebase bool
	)
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Commit the story's event log (and push with --push)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveDir(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			st, err := gitrepo.GetStatus(cmd.Context(), dir)
			if err != nil {
				return writeErr(cmd, err)
			}
			if !st.IsRepo {
				return writeErr(cmd, errors.New("story dir is not inside a git repository (try: storytree sync init)"))
			}
			res, err := gitrepo.Sync(cmd.Context(), dir, gitrepo.SyncOptions{Message: message, Push: push, PullRebase: pullRebase})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": res})
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "Commit message (default: summary of the new events)")
	cmd.Flags().BoolVar(&push, "push", false, "Push after committing")
	cmd.Flags().BoolVar(&pullRebase, "pull-rebase", false, "Retry a rejected push after git pull --rebase")
	return cmd
}

func newSyncInitCmd(app *App) *cobra.Command {
	var remote string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Make the story dir a git repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveDir(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			jsonl, err := store.Store{Dir: dir}.PreferJSONL()
			if err != nil {
				return writeErr(cmd, err)
			}
			st, err := gitrepo.GetStatus(cmd.Context(), dir)
			if err != nil {
				return writeErr(cmd, err)
			}
			if !st.IsRepo {
				if err := gitrepo.Init(cmd.Context(), dir); err != nil {
					return writeErr(cmd, err)
				}
			}
			if remote != "" {
				if err := gitrepo.SetRemoteURL(cmd.Context(), dir, "origin", remote); err != nil {
					return writeErr(cmd, err)
				}
			}
			if st, err = gitrepo.GetStatus(cmd.Context(), dir); err != nil {
				return writeErr(cmd, err)
			}
			hints := []string{"storytree sync commit"}
			if !jsonl {
				hints = append(hints, "sync tracks events.jsonl only; this story records to events.sqlite")
			}
			return writeOut(cmd, app, map[string]any{
				"data":   st,
				"meta":   map[string]any{"jsonl": jsonl},
				"_hints": hints,
			})
		},
	}
	cmd.Flags().StringVar(&remote, "remote", "", "URL for the origin remote")
	return cmd
}
