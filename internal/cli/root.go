package cli

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"storytree/internal/format"

	"github.com/spf13/cobra"
)

type App struct {
	Dir        string
	Story      string
	ActorID    string
	PrettyJSON bool
	Format     string
	LogLevel   string

	logger *slog.Logger
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "storytree",
		Short:        "Story tree editor: TUI plus scriptable card commands",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive TUI
  storytree

  # Scriptable commands
  storytree nodes add 0.0.1 --text "Second act"
  storytree nodes mv 0.0.1 --by indent
  storytree typology

  # Direct card lookup (shortcut for: storytree nodes show <pos>)
  storytree 1.0.0
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if cmd.HasSubCommands() && len(args) == 0 {
				return runTUI(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(app.Format); err != nil {
			return writeErr(cmd, err)
		}
		logger, err := newLogger(cmd.ErrOrStderr(), resolveLogLevel(app))
		if err != nil {
			return writeErr(cmd, err)
		}
		app.logger = logger
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.Dir, "dir", envOr("STORYTREE_DIR", ""), "Path to a story dir (overrides story resolution)")
	cmd.PersistentFlags().StringVar(&app.Story, "story", envOr("STORYTREE_STORY", ""), "Story name under the config dir (default: current story, then 'default')")
	cmd.PersistentFlags().StringVar(&app.ActorID, "actor", envOr("STORYTREE_ACTOR", defaultActor()), "Actor id recorded on events")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON/EDN output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("STORYTREE_FORMAT", "json"), "Output format ("+strings.Join(format.Formats, "|")+")")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", envOr("STORYTREE_LOG_LEVEL", ""), "Log level (debug|info|warn|error)")

	cmd.AddCommand(newNodesCmd(app))
	cmd.AddCommand(newTypologyCmd(app))
	cmd.AddCommand(newEventsCmd(app))
	cmd.AddCommand(newExportCmd(app))
	cmd.AddCommand(newDoctorCmd(app))
	cmd.AddCommand(newStoriesCmd(app))
	cmd.AddCommand(newPublishCmd(app))
	cmd.AddCommand(newDocsCmd(app))
	cmd.AddCommand(newSyncCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newWebTUICmd(app))

	return cmd
}

func validateFormat(f string) error {
	f = strings.ToLower(strings.TrimSpace(f))
	if f == "" || f == "yml" || slices.Contains(format.Formats, f) {
		return nil
	}
	return fmt.Errorf("unknown format: %s", f)
}

func defaultActor() string {
	if u := strings.TrimSpace(os.Getenv("USER")); u != "" {
		return u
	}
	return "local"
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
