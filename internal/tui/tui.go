package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Run opens the story at opts.Dir and blocks until the user quits.
func Run(ctx context.Context, opts Options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	applyColorProfile()
	m, err := newModel(ctx, opts)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
