package cli

import (
	"bytes"
	"os"

	"storytree/internal/format"
	"storytree/internal/store"

	"github.com/spf13/cobra"
)

func newExportCmd(app *App) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the story as a snapshot of its cards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStory(cmd.Context(), app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			meta, _, err := s.store.LoadStoryMeta()
			if err != nil {
				return writeErr(cmd, err)
			}
			snap := store.NewSnapshot(s.tree, meta.StoryID)
			if out == "" {
				return writeOut(cmd, app, map[string]any{"data": snap})
			}

			var buf bytes.Buffer
			if err := format.Write(&buf, snap, app.Format, app.PrettyJSON); err != nil {
				return writeErr(cmd, err)
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{"path": out, "nodes": len(snap.Nodes)},
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the snapshot to a file instead of stdout")
	return cmd
}
