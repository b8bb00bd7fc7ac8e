package cli

import (
	"storytree/internal/store"

	"github.com/spf13/cobra"
)

func newStoriesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stories",
		Short: "Named stories under the config dir",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := store.ListStories()
			if err != nil {
				return writeErr(cmd, err)
			}
			cfg, err := store.LoadConfig()
			if err != nil {
				return writeErr(cmd, err)
			}
			current := cfg.CurrentStory
			if current == "" {
				current = defaultStoryName
			}
			return writeOut(cmd, app, map[string]any{
				"data": names,
				"meta": map[string]any{"current": current},
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "use <name>",
		Short: "Make a story current (created on first write)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := store.NormalizeStoryName(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			dir, err := store.StoryDir(name)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := (store.Store{Dir: dir}).Ensure(); err != nil {
				return writeErr(cmd, err)
			}
			cfg, err := store.LoadConfig()
			if err != nil {
				return writeErr(cmd, err)
			}
			cfg.CurrentStory = name
			if err := store.SaveConfig(cfg); err != nil {
				return writeErr(cmd, err)
			}
			app.logger.Info("story selected", "story", name, "dir", dir)
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"story": name, "dir": dir}})
		},
	})

	return cmd
}
