package cli

import (
	"storytree/internal/publish"

	"github.com/spf13/cobra"
)

func newPublishCmd(app *App) *cobra.Command {
	var (
		toDir     string
		title     string
		headings  bool
		pillars   bool
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Export the story as Markdown (derived, not canonical)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStory(cmd.Context(), app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			res, err := publish.WriteStory(s.tree, toDir, publish.WriteOptions{
				Title:     title,
				Headings:  headings,
				Pillars:   pillars,
				Overwrite: overwrite,
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": res,
				"_hints": []string{
					"git status",
					"git add -A",
					"git commit -m \"Publish story\"",
				},
			})
		},
	}

	cmd.Flags().StringVar(&toDir, "to", "", "Output directory")
	cmd.Flags().StringVar(&title, "title", "", "Top-level heading for the exported files")
	cmd.Flags().BoolVar(&headings, "headings", false, "Put a position heading above every card")
	cmd.Flags().BoolVar(&pillars, "pillars", false, "Also write one file per pillar (one level of detail each)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing files")
	return cmd
}
