package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"storytree/internal/content"
	"storytree/internal/model"
	"storytree/internal/motion"
	"storytree/internal/store"
	"storytree/internal/tree"

	"github.com/starfederation/datastar-go/datastar"
)

//go:embed templates/*.html
var assetsFS embed.FS

type ServerConfig struct {
	Dir      string
	Story    string
	ActorID  string
	ReadOnly bool
	Logger   *slog.Logger

	// Layout is the card geometry used when replaying; only its ordering matters here.
	Layout tree.Layout
	// PollInterval is how often the story files are checked for outside writes.
	PollInterval time.Duration
	// AfterWrite runs after every successful mutation (e.g. git auto-commit).
	AfterWrite func()
}

// Server renders one story as HTML pillars and keeps open pages current over a datastar event
// stream. Mutations replay the log, apply one tree operation and record it, one at a time.
type Server struct {
	cfg     ServerConfig
	tmpl    *template.Template
	watch   *watcher
	writeMu sync.Mutex
}

func NewServer(cfg ServerConfig) (*Server, error) {
	cfg.Dir = strings.TrimSpace(cfg.Dir)
	if cfg.Dir == "" {
		return nil, errors.New("web: dir is empty")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Layout.CardWidth <= 0 {
		cfg.Layout = tree.DefaultLayout()
	}
	// Nothing is animated server-side.
	cfg.Layout.Period = tree.NoAnimation
	if cfg.Story == "" {
		cfg.Story = cfg.Dir
	}

	tmpl, err := template.New("base").ParseFS(assetsFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	s := &Server{cfg: cfg, tmpl: tmpl, watch: newWatcher(cfg.Dir, cfg.PollInterval)}
	go s.watch.loop()
	return s, nil
}

// Close stops watching the story files.
func (s *Server) Close() {
	s.watch.stop()
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /{$}", s.handleStory)
	mux.HandleFunc("POST /cards/{pos}/text", s.handleCardText)
	mux.HandleFunc("POST /cards/{pos}/new", s.handleCardNew)
	mux.HandleFunc("POST /cards/{pos}/move", s.handleCardMove)
	mux.HandleFunc("POST /cards/{pos}/delete", s.handleCardDelete)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

// openTree replays the story. With write set, mutations on the returned tree are recorded.
func (s *Server) openTree(ctx context.Context, write bool) (*tree.Tree, error) {
	opts := tree.Options{
		Layout:    s.cfg.Layout,
		Scheduler: motion.NewManualScheduler(),
		Logger:    s.cfg.Logger,
	}
	var rec *store.Recorder
	if write {
		rec = store.NewRecorder(ctx, store.Store{Dir: s.cfg.Dir}, s.cfg.ActorID, s.cfg.Logger)
		opts.Events = rec
	}
	t, err := store.Replay(ctx, s.cfg.Dir, opts)
	if err != nil {
		return nil, err
	}
	if t == nil {
		t = tree.New(opts)
	}
	if rec != nil {
		rec.Attach(t)
	}
	return t, nil
}

type cardVM struct {
	Pos         string
	UID         int
	HTML        template.HTML
	State       string
	HasChildren bool
}

type familyVM struct {
	Parent string
	Cards  []cardVM
}

type pillarVM struct {
	Depth    int
	Families []familyVM
}

type storyVM struct {
	Story    string
	Selected string
	Text     string
	ReadOnly bool
	Version  string
	Cards    int
	Pillars  []pillarVM
}

func stateClass(st tree.CardState) string {
	switch st {
	case tree.StateFocused, tree.StateSelected:
		return "selected"
	case tree.StateHighlighted:
		return "highlighted"
	default:
		return "dull"
	}
}

// storyView replays the story and selects sel, falling back to the root card when sel is not a
// card.
func (s *Server) storyView(ctx context.Context, sel string) (storyVM, error) {
	t, err := s.openTree(ctx, false)
	if err != nil {
		return storyVM{}, err
	}
	if pos, err := model.ParsePosition(sel); err == nil {
		if _, err := t.Node(pos); err == nil {
			if err := t.SelectNode(pos, false); err != nil {
				return storyVM{}, err
			}
		}
	}

	vm := storyVM{
		Story:    s.cfg.Story,
		Selected: t.Selected().String(),
		Text:     t.SelectedNode().Text(),
		ReadOnly: s.cfg.ReadOnly,
		Version:  s.watch.version(),
		Cards:    len(t.Nodes()),
	}
	for d := 0; d < t.PillarCount(); d++ {
		p := t.Pillar(d)
		if p.CountCards() == 0 {
			continue
		}
		pv := pillarVM{Depth: d}
		for f := 0; f < p.FamilyCount(); f++ {
			fam := p.Family(f)
			if fam.IsEmpty() {
				continue
			}
			fv := familyVM{Parent: t.Parent(fam.Card(0).Pos()).String()}
			for _, c := range fam.Cards() {
				cf := t.ChildFamily(c.Pos())
				next := t.Pillar(cf.Depth)
				fv.Cards = append(fv.Cards, cardVM{
					Pos:         c.Pos().String(),
					UID:         c.UID(),
					HTML:        renderMarkdownHTML(c.Node().Text()),
					State:       stateClass(c.State()),
					HasChildren: next != nil && next.FamilyLen(cf.Family) > 0,
				})
			}
			pv.Families = append(pv.Families, fv)
		}
		vm.Pillars = append(vm.Pillars, pv)
	}
	return vm, nil
}

func (s *Server) render(name string, data any) (string, error) {
	var b strings.Builder
	if err := s.tmpl.ExecuteTemplate(&b, name, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (s *Server) handleStory(w http.ResponseWriter, r *http.Request) {
	vm, err := s.storyView(r.Context(), r.URL.Query().Get("pos"))
	if err != nil {
		s.fail(w, err, http.StatusInternalServerError)
		return
	}
	html, err := s.render("page", vm)
	if err != nil {
		s.fail(w, err, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(html))
}

// handleEvents streams a fresh #story-main whenever the story changes on disk.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sel := r.URL.Query().Get("pos")
	sse := datastar.NewSSE(w, r)
	_ = sse.MarshalAndPatchSignals(map[string]any{"storyVersion": s.watch.version()})

	ch, cancel := s.watch.hub.subscribe()
	defer cancel()

	keepAlive := time.NewTicker(25 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-sse.Context().Done():
			return
		case <-keepAlive.C:
			_ = sse.PatchSignals([]byte(`{}`))
		case <-ch:
			vm, err := s.storyView(sse.Context(), sel)
			if err != nil {
				_ = sse.ExecuteScript(fmt.Sprintf(`console.error(%q)`, err.Error()))
				continue
			}
			html, err := s.render("main", vm)
			if err != nil {
				_ = sse.ExecuteScript(fmt.Sprintf(`console.error(%q)`, err.Error()))
				continue
			}
			_ = sse.PatchElements(html, datastar.WithSelector("#story-main"), datastar.WithMode(datastar.ElementPatchModeOuter))
			_ = sse.MarshalAndPatchSignals(map[string]any{"storyVersion": vm.Version})
		}
	}
}

var errReadOnly = errors.New("story is served read-only")

// mutate runs op on a recording tree and redirects to the card op returns.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, op func(t *tree.Tree, at model.Node) (model.Position, error)) {
	if s.cfg.ReadOnly {
		s.fail(w, errReadOnly, http.StatusForbidden)
		return
	}
	pos, err := model.ParsePosition(r.PathValue("pos"))
	if err != nil {
		s.fail(w, err, http.StatusBadRequest)
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	t, err := s.openTree(r.Context(), true)
	if err != nil {
		s.fail(w, err, http.StatusInternalServerError)
		return
	}
	at, err := t.Node(pos)
	if err != nil {
		s.fail(w, fmt.Errorf("card not found: %s", pos), http.StatusNotFound)
		return
	}
	next, err := op(t, at)
	if err != nil {
		s.fail(w, err, http.StatusUnprocessableEntity)
		return
	}
	s.cfg.Logger.Info("web mutation", slog.String("path", r.URL.Path), slog.String("pos", next.String()))
	if s.cfg.AfterWrite != nil {
		s.cfg.AfterWrite()
	}
	s.watch.check()
	http.Redirect(w, r, "/?pos="+url.QueryEscape(next.String()), http.StatusSeeOther)
}

func (s *Server) handleCardText(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(t *tree.Tree, at model.Node) (model.Position, error) {
		text := strings.ReplaceAll(r.FormValue("text"), "\r\n", "\n")
		if text == at.Text() {
			return at.Pos, nil
		}
		n, err := t.SetContent(at.Pos, content.New(text))
		return n.Pos, err
	})
}

func (s *Server) handleCardNew(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(t *tree.Tree, at model.Node) (model.Position, error) {
		if err := t.SelectNode(at.Pos, false); err != nil {
			return model.NullPosition, err
		}
		var create func() (model.Node, error)
		switch as := r.FormValue("as"); as {
		case "above":
			create = t.CreateAbove
		case "", "below":
			create = t.CreateBelow
		case "child":
			create = t.CreateChild
		default:
			return model.NullPosition, fmt.Errorf("invalid placement %q (want above|below|child)", as)
		}
		n, err := create()
		if err != nil {
			return model.NullPosition, err
		}
		if text := r.FormValue("text"); text != "" {
			if n, err = t.SetContent(n.Pos, content.New(text)); err != nil {
				return model.NullPosition, err
			}
		}
		return n.Pos, nil
	})
}

func (s *Server) handleCardMove(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(t *tree.Tree, at model.Node) (model.Position, error) {
		if err := t.SelectNode(at.Pos, false); err != nil {
			return model.NullPosition, err
		}
		var step func() error
		switch by := r.FormValue("by"); by {
		case "up":
			step = t.MoveUp
		case "down":
			step = t.MoveDown
		case "indent":
			step = t.Indent
		case "outdent":
			step = t.Outdent
		default:
			return model.NullPosition, fmt.Errorf("invalid move %q (want up|down|indent|outdent)", by)
		}
		if err := step(); err != nil {
			return model.NullPosition, err
		}
		return t.PositionOf(at.UID), nil
	})
}

func (s *Server) handleCardDelete(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(t *tree.Tree, at model.Node) (model.Position, error) {
		if err := t.DeleteNode(at.Pos); err != nil {
			return model.NullPosition, err
		}
		return t.Selected(), nil
	})
}

func (s *Server) fail(w http.ResponseWriter, err error, code int) {
	if code >= http.StatusInternalServerError {
		s.cfg.Logger.Error("web request failed", slog.Any("err", err))
	}
	http.Error(w, err.Error(), code)
}
