package cli

import (
	"context"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"storytree/internal/store"

	"github.com/spf13/cobra"
)

type eventOut struct {
	ID       string `json:"id"`
	TS       string `json:"ts"`
	ActorID  string `json:"actorId"`
	Type     string `json:"type"`
	EntityID string `json:"entityId"`
	Seq      int64  `json:"seq"`
	Payload  any    `json:"payload"`
}

func eventView(ev store.Event) eventOut {
	return eventOut{
		ID:       ev.ID,
		TS:       ev.TS.Format("2006-01-02T15:04:05.000Z07:00"),
		ActorID:  ev.ActorID,
		Type:     ev.Type,
		EntityID: ev.EntityID,
		Seq:      ev.Seq,
		Payload:  ev.DecodedPayload(),
	}
}

// entityArg accepts "node-3" or a bare uid.
func entityArg(s string) string {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return store.NodeEntityID(n)
	}
	return s
}

func newEventsCmd(app *App) *cobra.Command {
	var (
		limit  int
		entity string
		follow bool
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect the story's event log (oldest first)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveDir(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx := cmd.Context()

			var evs []store.Event
			if entity != "" {
				evs, err = store.ReadEventsForEntity(ctx, dir, entityArg(entity), limit)
			} else {
				evs, err = store.ReadEventsTail(ctx, dir, limit)
			}
			if err != nil {
				return writeErr(cmd, err)
			}

			if !follow {
				out := make([]eventOut, 0, len(evs))
				for _, ev := range evs {
					out = append(out, eventView(ev))
				}
				return writeOut(cmd, app, map[string]any{
					"data": out,
					"meta": map[string]any{"count": len(out), "backend": store.Store{Dir: dir}.Backend()},
				})
			}

			// Follow mode streams one document per event.
			for _, ev := range evs {
				if err := writeOut(cmd, app, eventView(ev)); err != nil {
					return err
				}
			}
			all, err := store.ReadEvents(ctx, dir, 0)
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return followEvents(ctx, cmd, app, dir, len(all), entityArg(entity))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 200, "Max events to return, newest kept (0 = all)")
	cmd.Flags().StringVar(&entity, "entity", "", "Only events of one card (node-<uid> or <uid>)")
	cmd.Flags().BoolVar(&follow, "follow", false, "Keep streaming new events until interrupted")
	return cmd
}

func followEvents(ctx context.Context, cmd *cobra.Command, app *App, dir string, seen int, entity string) error {
	err := store.Follow(ctx, dir, seen, app.logger, func(ev store.Event) error {
		if entity != "" && ev.EntityID != entity {
			return nil
		}
		return writeOut(cmd, app, eventView(ev))
	})
	if err != nil {
		return writeErr(cmd, err)
	}
	return nil
}
