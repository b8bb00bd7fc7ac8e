package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"storytree/internal/content"
	"storytree/internal/motion"
	"storytree/internal/store"
	"storytree/internal/tree"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	xansi "github.com/charmbracelet/x/ansi"
)

// frameMsg advances pillar animations by the wall time since the previous frame.
type frameMsg time.Time

type Options struct {
	Dir string
	// Story is the name shown in the status line.
	Story   string
	ActorID string
	Config  *store.GlobalConfig
	Logger  *slog.Logger
}

type model struct {
	ctx    context.Context
	store  store.Store
	name   string
	tree   *tree.Tree
	sched  *motion.ManualScheduler
	logger *slog.Logger

	keys    keyMap
	help    help.Model
	editor  textarea.Model
	preview viewport.Model

	mdStyle     string
	showPreview bool
	editing     bool

	width, height int
	treeH         int

	frame     time.Duration
	ticking   bool
	lastFrame time.Time

	minibuffer    string
	minibufferErr bool

	editorLine           string
	externalEditorPath   string
	externalEditorBefore string
	externalEditorName   string
}

// newModel replays the story and attaches a recorder, so every mutation made in the TUI lands in
// the event log as it happens.
func newModel(ctx context.Context, opts Options) (*model, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = &store.GlobalConfig{}
	}
	tuiCfg := store.TUIConfig{}
	if cfg.TUI != nil {
		tuiCfg = *cfg.TUI
	}
	applyGlyphPreference(tuiCfg.Glyphs)

	layout := cfg.TreeLayout()
	sched := motion.NewManualScheduler()
	st := store.Store{Dir: opts.Dir}
	rec := store.NewRecorder(ctx, st, opts.ActorID, logger)
	topts := tree.Options{
		Layout:    layout,
		Events:    rec,
		Views:     newViewFactory(int(layout.CardWidth)),
		Scheduler: sched,
		Logger:    logger,
	}
	t, err := store.Replay(ctx, opts.Dir, topts)
	if err != nil {
		return nil, err
	}
	if t == nil {
		t = tree.New(topts)
	}
	rec.Attach(t)

	m := &model{
		ctx:         ctx,
		store:       st,
		name:        opts.Story,
		tree:        t,
		sched:       sched,
		logger:      logger,
		keys:        defaultKeyMap(),
		help:        help.New(),
		preview:     viewport.New(0, 0),
		mdStyle:     markdownStyle(tuiCfg.MarkdownStyle),
		showPreview: tuiCfg.Preview,
		editorLine:  tuiCfg.Editor,
		frame:       t.Layout().FramePeriod,
	}
	if m.name == "" {
		m.name = opts.Dir
	}

	m.editor = textarea.New()
	m.editor.Placeholder = "Write…"
	m.editor.CharLimit = 0
	m.editor.ShowLineNumbers = false

	// Best-effort: restore the last selection for this story.
	if state, err := st.LoadTUIState(); err == nil {
		m.showPreview = m.showPreview || state.ShowPreview
		if state.SelectedUID >= 0 {
			if pos := t.PositionOf(state.SelectedUID); !pos.IsNull() {
				if err := t.SelectNode(pos, false); err != nil {
					logger.Debug("restore selection failed", slog.Int("uid", state.SelectedUID), slog.Any("err", err))
				}
			}
		}
	}
	return m, nil
}

func (m *model) Init() tea.Cmd { return nil }

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.relayout()
		return m, m.animate()

	case frameMsg:
		return m, m.onFrame(time.Time(msg))

	case externalEditorDoneMsg:
		m.applyExternalEditorResult(msg)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.editing {
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.minibuffer, m.minibufferErr = "", false
	if m.editing {
		return m.handleEditingKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.saveState()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.relayout()
		return m, nil
	case key.Matches(msg, m.keys.Preview):
		m.showPreview = !m.showPreview
		m.relayout()
		return m, nil
	case key.Matches(msg, m.keys.Editor):
		cmd := m.dispatch(tree.KeyEnter, 0)
		if !m.editing {
			return m, cmd
		}
		ext, err := m.openExternalEditor()
		if err != nil {
			m.report(err)
			return m, cmd
		}
		return m, tea.Batch(cmd, ext)
	}

	if m.showPreview {
		switch msg.String() {
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.preview, cmd = m.preview.Update(msg)
			return m, cmd
		}
	}

	for _, bc := range m.keys.chords() {
		if key.Matches(msg, bc.binding) {
			return m, m.dispatch(bc.chord.key, bc.chord.mods)
		}
	}
	// Chords without a binding of their own still reach the tree.
	k, mods := tree.ParseKey(msg.String())
	return m, m.dispatch(k, mods)
}

func (m *model) handleEditingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		if err := m.commitEdit(); err != nil {
			m.report(err)
		}
		m.endEdit()
		return m, m.animate()
	case "ctrl+s":
		if err := m.commitEdit(); err != nil {
			m.report(err)
		} else {
			m.minibuffer = "Saved"
		}
		return m, nil
	case "ctrl+g":
		cmd, err := m.openExternalEditor()
		if err != nil {
			m.report(err)
			return m, nil
		}
		return m, cmd
	case "ctrl+c":
		if err := m.commitEdit(); err != nil {
			m.report(err)
		}
		m.endEdit()
		m.saveState()
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

// dispatch hands a chord to the tree and follows up on focus changes and animations.
func (m *model) dispatch(k tree.Key, mods tree.Modifiers) tea.Cmd {
	handled, err := m.tree.HandleKey(k, mods)
	if err != nil {
		m.report(err)
	}
	if !handled {
		return nil
	}
	var cmds []tea.Cmd
	if m.tree.Focused() && !m.editing {
		cmds = append(cmds, m.beginEdit())
	}
	m.refreshPreview()
	cmds = append(cmds, m.animate())
	return tea.Batch(cmds...)
}

func (m *model) beginEdit() tea.Cmd {
	m.editing = true
	m.editor.SetValue(m.tree.SelectedNode().Text())
	m.relayout()
	return m.editor.Focus()
}

// commitEdit writes the editor text into the focused card. Unchanged text records nothing.
func (m *model) commitEdit() error {
	n := m.tree.SelectedNode()
	if m.editor.Value() == n.Text() {
		return nil
	}
	_, err := m.tree.SetContent(n.Pos, content.New(m.editor.Value()))
	return err
}

func (m *model) endEdit() {
	m.editing = false
	m.editor.Blur()
	if _, err := m.tree.HandleKey(tree.KeyEsc, 0); err != nil {
		m.report(err)
	}
	m.relayout()
}

func (m *model) report(err error) {
	m.minibuffer, m.minibufferErr = err.Error(), true
	m.logger.Info("command rejected", slog.Any("err", err))
}

func (m *model) saveState() {
	st := &store.TUIState{Version: 1, SelectedUID: m.tree.SelectedNode().UID, ShowPreview: m.showPreview}
	if err := m.store.SaveTUIState(st); err != nil {
		m.logger.Warn("save tui state failed", slog.Any("err", err))
	}
}

// animate starts the frame loop if a pillar is moving and no loop is running.
func (m *model) animate() tea.Cmd {
	if m.ticking || !m.tree.Animating() {
		return nil
	}
	m.ticking = true
	m.lastFrame = time.Now()
	return m.tick()
}

func (m *model) tick() tea.Cmd {
	return tea.Tick(m.frame, func(t time.Time) tea.Msg { return frameMsg(t) })
}

func (m *model) onFrame(at time.Time) tea.Cmd {
	elapsed := at.Sub(m.lastFrame)
	if elapsed <= 0 {
		elapsed = m.frame
	}
	m.lastFrame = at
	m.sched.Advance(elapsed)
	if m.tree.Animating() {
		return m.tick()
	}
	m.ticking = false
	return nil
}

func (m *model) panelHeight() int {
	if !m.editing && !m.showPreview {
		return 0
	}
	return max(3, min(12, m.height/3))
}

// relayout splits the screen between the tree, the bottom panel and the footer.
func (m *model) relayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	panel := m.panelHeight()
	footer := 1 + strings.Count(m.help.View(m.keys), "\n") + 1
	m.treeH = max(1, m.height-panel-footer)
	m.tree.SetViewport(float64(m.width), float64(m.treeH))

	inner := max(1, panel-1)
	m.editor.SetWidth(m.width)
	m.editor.SetHeight(inner)
	m.preview.Width = m.width
	m.preview.Height = inner
	m.refreshPreview()
}

func (m *model) refreshPreview() {
	if !m.showPreview || m.preview.Width <= 0 {
		return
	}
	text := m.tree.SelectedNode().Text()
	if strings.TrimSpace(text) == "" {
		m.preview.SetContent(stylePlaceholder.Render("empty card"))
		return
	}
	m.preview.SetContent(renderMarkdown(text, m.mdStyle, m.width))
}

func (m *model) statusLine() string {
	sel := m.tree.SelectedNode()
	sep := " " + glyphSeparator() + " "
	left := styleStatusPos.Render(sel.Pos.String()) + " " +
		styleStatus.Render(strings.Join([]string{
			m.name,
			fmt.Sprintf("uid %d", sel.UID),
			fmt.Sprintf("%d cards", len(m.tree.Nodes())),
		}, sep))
	if m.minibuffer == "" {
		return xansi.Truncate(left, m.width, glyphEllipsis())
	}
	msgStyle := styleMinibuffer
	if m.minibufferErr {
		msgStyle = styleError
	}
	return xansi.Truncate(left+sep+msgStyle.Render(m.minibuffer), m.width, glyphEllipsis())
}

func (m *model) View() string {
	if m.width <= 0 || m.height <= 0 {
		return ""
	}
	parts := []string{renderTree(m.tree, m.width, m.treeH)}
	switch {
	case m.editing:
		parts = append(parts, stylePanel.Width(m.width).Render(m.editor.View()))
	case m.showPreview:
		parts = append(parts, stylePanel.Width(m.width).Render(m.preview.View()))
	}
	parts = append(parts, m.statusLine(), m.help.View(m.keys))
	return strings.Join(parts, "\n")
}
