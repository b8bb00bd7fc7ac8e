package webtui

import (
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
)

//go:embed templates/*.html
var assetsFS embed.FS

type ServerConfig struct {
	Addr    string
	Dir     string
	Story   string
	ActorID string
	Logger  *slog.Logger

	// Exe is the storytree binary started per session. Empty means the running executable.
	Exe string
	// MaxSessions caps concurrent browser terminals; 0 means no cap.
	MaxSessions int
}

type Server struct {
	cfg   ServerConfig
	tmpl  *template.Template
	slots chan struct{}
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("webtui: missing addr")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	tmpl, err := template.ParseFS(assetsFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	srv := &Server{cfg: cfg, tmpl: tmpl}
	if cfg.MaxSessions > 0 {
		srv.slots = make(chan struct{}, cfg.MaxSessions)
	}
	return srv, nil
}

func (s *Server) Addr() string {
	return strings.TrimSpace(s.cfg.Addr)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/terminal", http.StatusFound)
	})
	mux.HandleFunc("GET /terminal", s.handleTerminal)
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

type terminalVM struct {
	Story   string
	ActorID string
}

func (s *Server) handleTerminal(w http.ResponseWriter, r *http.Request) {
	vm := terminalVM{Story: s.cfg.Story, ActorID: s.cfg.ActorID}
	if vm.Story == "" {
		vm.Story = s.cfg.Dir
	}
	var b strings.Builder
	if err := s.tmpl.ExecuteTemplate(&b, "terminal.html", vm); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(b.String()))
}
