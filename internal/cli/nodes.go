package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"storytree/internal/content"
	"storytree/internal/model"
	"storytree/internal/tree"

	"github.com/spf13/cobra"
)

type nodeOut struct {
	UID      int    `json:"uid"`
	Pos      string `json:"pos"`
	Text     string `json:"text"`
	Parent   string `json:"parent,omitempty"`
	Children int    `json:"children"`
}

func nodeView(t *tree.Tree, n model.Node) nodeOut {
	out := nodeOut{UID: n.UID, Pos: n.Pos.String(), Text: n.Text()}
	if p := t.Parent(n.Pos); !p.IsNull() {
		out.Parent = p.String()
	}
	cf := t.ChildFamily(n.Pos)
	if p := t.Pillar(cf.Depth); p != nil {
		out.Children = p.FamilyLen(cf.Family)
	}
	return out
}

func childrenOf(t *tree.Tree, pos model.Position) []nodeOut {
	out := []nodeOut{}
	cf := t.ChildFamily(pos)
	p := t.Pillar(cf.Depth)
	if p == nil {
		return out
	}
	for i := 0; i < p.FamilyLen(cf.Family); i++ {
		if n, err := t.Node(model.Pos(cf.Depth, cf.Family, i)); err == nil {
			out = append(out, nodeView(t, n))
		}
	}
	return out
}

func newNodesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "Cards of the story tree, addressed by depth.family.index",
	}
	cmd.AddCommand(newNodesListCmd(app))
	cmd.AddCommand(newNodesShowCmd(app))
	cmd.AddCommand(newNodesAddCmd(app))
	cmd.AddCommand(newNodesRmCmd(app))
	cmd.AddCommand(newNodesMvCmd(app))
	cmd.AddCommand(newNodesEditCmd(app))
	return cmd
}

func newNodesListCmd(app *App) *cobra.Command {
	var depth int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cards in position order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStory(cmd.Context(), app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			out := []nodeOut{}
			for _, n := range sortedNodes(s.tree) {
				if depth >= 0 && n.Pos.Depth != depth {
					continue
				}
				out = append(out, nodeView(s.tree, n))
			}
			return writeOut(cmd, app, map[string]any{
				"data": out,
				"meta": map[string]any{"count": len(out)},
			})
		},
	}
	cmd.Flags().IntVar(&depth, "depth", -1, "Only cards at this depth")
	return cmd
}

func sortedNodes(t *tree.Tree) []model.Node {
	nodes := t.Nodes()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Pos.Less(nodes[j].Pos) })
	return nodes
}

func newNodesShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <pos>",
		Short: "Show a card with its parent and children",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStory(cmd.Context(), app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			n, err := s.cardAt(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			data := map[string]any{
				"node":     nodeView(s.tree, n),
				"children": childrenOf(s.tree, n.Pos),
			}
			if p := s.tree.Parent(n.Pos); !p.IsNull() {
				if pn, err := s.tree.Node(p); err == nil {
					data["parent"] = nodeView(s.tree, pn)
				}
			}
			return writeOut(cmd, app, map[string]any{"data": data})
		},
	}
}

func newNodesAddCmd(app *App) *cobra.Command {
	var text, as string
	cmd := &cobra.Command{
		Use:   "add <pos>",
		Short: "Insert a card",
		Long: strings.TrimSpace(`
Insert a card. By default the new card takes <pos> and the card there moves down.
With --as above|below|child the card is created next to, or as the last child of, the card at <pos>.`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStory(cmd.Context(), app, true)
			if err != nil {
				return writeErr(cmd, err)
			}
			var body model.Content
			if text != "" {
				body = content.New(text)
			}

			var n model.Node
			switch strings.ToLower(strings.TrimSpace(as)) {
			case "", "at":
				pos, err := model.ParsePosition(args[0])
				if err != nil {
					return writeErr(cmd, err)
				}
				n, err = s.tree.InsertNode(pos, false, body)
				if err != nil {
					return writeErr(cmd, err)
				}
			case "above", "below", "child":
				anchor, err := s.cardAt(args[0])
				if err != nil {
					return writeErr(cmd, err)
				}
				if err := s.tree.SelectNode(anchor.Pos, false); err != nil {
					return writeErr(cmd, err)
				}
				create := map[string]func() (model.Node, error){
					"above": s.tree.CreateAbove,
					"below": s.tree.CreateBelow,
					"child": s.tree.CreateChild,
				}[strings.ToLower(strings.TrimSpace(as))]
				n, err = create()
				if err != nil {
					return writeErr(cmd, err)
				}
				if body != nil {
					if n, err = s.tree.SetContent(n.Pos, body); err != nil {
						return writeErr(cmd, err)
					}
				}
			default:
				return writeErr(cmd, fmt.Errorf("invalid --as %q (want at|above|below|child)", as))
			}
			autoSyncBestEffort(app, s.store.Dir)
			return writeOut(cmd, app, map[string]any{"data": nodeView(s.tree, n)})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "Card text")
	cmd.Flags().StringVar(&as, "as", "at", "Placement relative to <pos> (at|above|below|child)")
	return cmd
}

func newNodesRmCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <pos>",
		Short: "Delete a card and its whole subtree (the last root card is cleared instead)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStory(cmd.Context(), app, true)
			if err != nil {
				return writeErr(cmd, err)
			}
			n, err := s.cardAt(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := s.tree.DeleteNode(n.Pos); err != nil {
				return writeErr(cmd, err)
			}
			autoSyncBestEffort(app, s.store.Dir)
			cleared := !s.tree.PositionOf(n.UID).IsNull()
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"uid":      n.UID,
					"pos":      n.Pos.String(),
					"cleared":  cleared,
					"selected": s.tree.Selected().String(),
				},
			})
		},
	}
}

func newNodesMvCmd(app *App) *cobra.Command {
	var by string
	cmd := &cobra.Command{
		Use:   "mv <from> [to]",
		Short: "Move a card with its subtree",
		Long: strings.TrimSpace(`
Move the card at <from> so that it ends up at [to]. [to] is read with the card already lifted out:
to pass the next sibling, name the slot it occupies now.
Without [to], --by up|down|indent|outdent moves relative to the current place.`),
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStory(cmd.Context(), app, true)
			if err != nil {
				return writeErr(cmd, err)
			}
			n, err := s.cardAt(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			switch {
			case len(args) == 2:
				to, err := model.ParsePosition(args[1])
				if err != nil {
					return writeErr(cmd, err)
				}
				if _, err := s.tree.MoveNode(n.Pos, to); err != nil {
					return writeErr(cmd, err)
				}
			case by != "":
				if err := s.tree.SelectNode(n.Pos, false); err != nil {
					return writeErr(cmd, err)
				}
				var step func() error
				switch strings.ToLower(strings.TrimSpace(by)) {
				case "up":
					step = s.tree.MoveUp
				case "down":
					step = s.tree.MoveDown
				case "indent", "in":
					step = s.tree.Indent
				case "outdent", "out":
					step = s.tree.Outdent
				default:
					return writeErr(cmd, fmt.Errorf("invalid --by %q (want up|down|indent|outdent)", by))
				}
				if err := step(); err != nil {
					return writeErr(cmd, err)
				}
			default:
				return writeErr(cmd, errors.New("mv needs a target position or --by"))
			}
			moved, err := s.tree.Node(s.tree.PositionOf(n.UID))
			if err != nil {
				return writeErr(cmd, err)
			}
			autoSyncBestEffort(app, s.store.Dir)
			return writeOut(cmd, app, map[string]any{
				"data": nodeView(s.tree, moved),
				"meta": map[string]any{"from": n.Pos.String()},
			})
		},
	}
	cmd.Flags().StringVar(&by, "by", "", "Relative move (up|down|indent|outdent)")
	return cmd
}

func newNodesEditCmd(app *App) *cobra.Command {
	var text, appendText string
	cmd := &cobra.Command{
		Use:   "edit <pos>",
		Short: "Replace or extend a card's text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("text") && appendText == "" {
				return writeErr(cmd, errors.New("edit needs --text or --append"))
			}
			s, err := openStory(cmd.Context(), app, true)
			if err != nil {
				return writeErr(cmd, err)
			}
			n, err := s.cardAt(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			if cmd.Flags().Changed("text") {
				if n, err = s.tree.SetContent(n.Pos, content.New(text)); err != nil {
					return writeErr(cmd, err)
				}
			}
			if appendText != "" {
				delta := content.Delta{}.Retain(len([]rune(n.Text()))).Insert(appendText)
				if n, err = s.tree.ModifyNode(n.Pos, delta); err != nil {
					return writeErr(cmd, err)
				}
			}
			autoSyncBestEffort(app, s.store.Dir)
			return writeOut(cmd, app, map[string]any{"data": nodeView(s.tree, n)})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "New text")
	cmd.Flags().StringVar(&appendText, "append", "", "Text appended at the end")
	return cmd
}

func newTypologyCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "typology",
		Short: "Family sizes of every pillar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStory(cmd.Context(), app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			typ := s.tree.Typology()
			cards := 0
			for _, fams := range typ {
				for _, n := range fams {
					cards += n
				}
			}
			return writeOut(cmd, app, map[string]any{
				"data": typ,
				"meta": map[string]any{"pillars": len(typ), "cards": cards, "nextUid": s.tree.NextUID()},
			})
		},
	}
}
