package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"storytree/internal/store"
)

// resolveLogLevel picks --log-level / STORYTREE_LOG_LEVEL, then the config file, then warn.
func resolveLogLevel(app *App) string {
	if lvl := strings.TrimSpace(app.LogLevel); lvl != "" {
		return lvl
	}
	if cfg, err := store.LoadConfig(); err == nil && strings.TrimSpace(cfg.LogLevel) != "" {
		return cfg.LogLevel
	}
	return "warn"
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return lvl, nil
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// openLogFile returns a logger writing to storytree.log in the config dir, for while the TUI owns
// the terminal. The caller closes the file.
func openLogFile(level string) (*slog.Logger, io.Closer, error) {
	dir, err := store.ConfigDir()
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, "storytree.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(f, level)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return logger, f, nil
}
