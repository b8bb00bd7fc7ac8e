package gitrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"storytree/internal/model"
)

// maxSummaryEvents caps how many events are spelled out in a generated commit subject.
const maxSummaryEvents = 12

type stagedEvent struct {
	Type     string          `json:"type"`
	EntityID string          `json:"entityId"`
	Payload  json.RawMessage `json:"payload"`
}

// StagedSummaryMessage builds a commit message from the events staged in any events.jsonl under
// root, e.g. "storytree: create 1.0.0; edit 1.0.0". Best-effort: failures return "".
func StagedSummaryMessage(ctx context.Context, root string) string {
	diff, err := runGit(ctx, root, "diff", "--cached", "--unified=0", "--no-color", "--", "*events.jsonl")
	if err != nil {
		return ""
	}
	events := parseAddedJSONLines(diff)
	if len(events) == 0 {
		return ""
	}

	var phrases []string
	seen := map[string]bool{}
	for _, ev := range events[:min(len(events), maxSummaryEvents)] {
		p := describeEvent(ev)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		phrases = append(phrases, p)
	}
	if len(events) > maxSummaryEvents {
		phrases = append(phrases, fmt.Sprintf("+%d more", len(events)-maxSummaryEvents))
	}
	if len(phrases) == 0 {
		return ""
	}
	return "storytree: " + strings.Join(phrases, "; ")
}

func parseAddedJSONLines(diff string) []stagedEvent {
	var out []stagedEvent
	for _, ln := range strings.Split(diff, "\n") {
		ln = strings.TrimRight(ln, "\r")
		if !strings.HasPrefix(ln, "+") || strings.HasPrefix(ln, "+++") {
			continue
		}
		raw := strings.TrimSpace(ln[1:])
		if !strings.HasPrefix(raw, "{") {
			continue
		}
		var ev stagedEvent
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func describeEvent(ev stagedEvent) string {
	var p struct {
		Pos  *model.Position `json:"pos"`
		From *model.Position `json:"from"`
		To   *model.Position `json:"to"`
		UID  int             `json:"uid"`
	}
	_ = json.Unmarshal(ev.Payload, &p)

	switch ev.Type {
	case "node.create":
		if p.Pos != nil {
			return "create " + p.Pos.String()
		}
		return "create card"
	case "node.move":
		if p.From != nil && p.To != nil {
			return "move " + p.From.String() + " to " + p.To.String()
		}
		return "move card"
	case "node.modify":
		return fmt.Sprintf("edit card %d", p.UID)
	case "node.delete":
		if p.Pos != nil {
			return "delete " + p.Pos.String()
		}
		return "delete card"
	default:
		if _, rest, ok := strings.Cut(ev.Type, "."); ok {
			return strings.ReplaceAll(rest, "_", " ")
		}
		return strings.ReplaceAll(ev.Type, "_", " ")
	}
}
