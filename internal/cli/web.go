package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"storytree/internal/store"
	"storytree/internal/web"
	"storytree/internal/webtui"

	"github.com/spf13/cobra"
)

func newServeCmd(app *App) *cobra.Command {
	var (
		addr     string
		readOnly bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the story as a live HTML page",
		Long: strings.TrimSpace(`
Serve the story's pillars as HTML. Open pages follow changes made anywhere (TUI, CLI, git pull)
over a datastar event stream. Unless --read-only, cards can be edited, created, moved and deleted
from the page; every change is recorded in the event log like any other.`),
		Example: strings.TrimSpace(`
storytree serve --addr 127.0.0.1:3335
storytree --story saga serve --read-only`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveDir(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			cfg := web.ServerConfig{
				Dir:        dir,
				Story:      app.Story,
				ActorID:    app.ActorID,
				ReadOnly:   readOnly,
				Logger:     app.logger,
				AfterWrite: func() { autoSyncBestEffort(app, dir) },
			}
			if gc, err := store.LoadConfig(); err == nil {
				cfg.Layout = gc.TreeLayout()
			}
			srv, err := web.NewServer(cfg)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer srv.Close()
			return listenAndServe(cmd, app, addr, srv.Handler(), map[string]any{"dir": dir, "readOnly": readOnly})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:3335", "Bind address (host:port or :port)")
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "Refuse mutations from the page")
	return cmd
}

func newWebTUICmd(app *App) *cobra.Command {
	var addr string
	var maxSessions int
	cmd := &cobra.Command{
		Use:   "webtui",
		Short: "Run the TUI in a browser tab (PTY + WebSocket)",
		Long: strings.TrimSpace(`
Run the storytree TUI over the web through a server-side pseudo-terminal and a browser terminal
emulator. Each browser tab starts its own TUI process on the server. There is no authentication:
bind to localhost.`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveDir(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			srv, err := webtui.NewServer(webtui.ServerConfig{
				Addr:        strings.TrimSpace(addr),
				Dir:         dir,
				Story:       app.Story,
				ActorID:     app.ActorID,
				Logger:      app.logger,
				MaxSessions: maxSessions,
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return listenAndServe(cmd, app, srv.Addr(), srv.Handler(), map[string]any{"dir": dir, "actor": app.ActorID})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:3334", "Bind address (host:port or :port)")
	cmd.Flags().IntVar(&maxSessions, "max-sessions", 8, "Most browser terminals served at once (0 = no limit)")
	return cmd
}

// listenAndServe binds addr, prints the address envelope and serves until interrupted.
func listenAndServe(cmd *cobra.Command, app *App, addr string, h http.Handler, data map[string]any) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return writeErr(cmd, errors.New("missing --addr"))
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return writeErr(cmd, err)
	}
	url := "http://" + ln.Addr().String() + "/"
	data["addr"] = ln.Addr().String()
	data["url"] = url
	data["startedAt"] = time.Now().UTC().Format(time.RFC3339Nano)
	if err := writeOut(cmd, app, map[string]any{"data": data, "_hints": []string{"open " + url}}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "storytree serving %s\n", url)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hs := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- hs.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return writeErr(cmd, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// Event streams never finish on their own; Close drops them after the grace period.
		if err := hs.Shutdown(shutdownCtx); err != nil {
			_ = hs.Close()
		}
		return nil
	}
}
