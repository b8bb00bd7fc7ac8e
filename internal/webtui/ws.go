package webtui

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	maxControlMessage = 64 * 1024

	defaultCols, defaultRows = 120, 40
	maxTermSide              = 1000
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  32 * 1024,
	WriteBufferSize: 32 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, strings.TrimSpace(r.Host))
	},
}

// controlMsg is a JSON text frame from the browser. Anything else is keystrokes.
type controlMsg struct {
	Type string `json:"type"`
	Cols int    `json:"cols"`
	Rows int    `json:"rows"`
}

// session is one browser tab driving its own storytree TUI on a pseudo-terminal.
type session struct {
	id     string
	conn   *websocket.Conn
	ptmx   *os.File
	cmd    *exec.Cmd
	logger *slog.Logger
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.acquire() {
		http.Error(w, "too many terminal sessions", http.StatusServiceUnavailable)
		return
	}
	defer s.release()

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the request.
		s.cfg.Logger.Debug("webtui upgrade failed", slog.Any("err", err))
		return
	}
	defer conn.Close()

	id := uuid.NewString()[:8]
	logger := s.cfg.Logger.With(slog.String("session", id))
	ptmx, cmd, err := s.startTUI(initialSize(r.URL.Query()))
	if err != nil {
		logger.Error("webtui session failed", slog.Any("err", err))
		_ = conn.WriteMessage(websocket.TextMessage, []byte("failed to start storytree: "+err.Error()))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "storytree did not start"),
			time.Now().Add(writeWait))
		return
	}
	sess := &session{id: id, conn: conn, ptmx: ptmx, cmd: cmd, logger: logger}
	sess.run(r.Context())
}

// acquire takes a session slot; MaxSessions <= 0 means unlimited.
func (s *Server) acquire() bool {
	if s.slots == nil {
		return true
	}
	select {
	case s.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Server) release() {
	if s.slots != nil {
		<-s.slots
	}
}

// startTUI runs the storytree TUI for the served story on a fresh pseudo-terminal.
func (s *Server) startTUI(size pty.Winsize) (*os.File, *exec.Cmd, error) {
	exe := strings.TrimSpace(s.cfg.Exe)
	if exe == "" {
		var err error
		if exe, err = os.Executable(); err != nil {
			return nil, nil, err
		}
	}
	cmd := exec.Command(exe, sessionArgs(s.cfg)...)
	cmd.Env = append(os.Environ(),
		"TERM=xterm-256color",
		"COLORTERM=truecolor",
	)
	ptmx, err := pty.StartWithSize(cmd, &size)
	if err != nil {
		return nil, nil, err
	}
	return ptmx, cmd, nil
}

// sessionArgs pins the child to the served story. No subcommand starts the TUI.
func sessionArgs(cfg ServerConfig) []string {
	var args []string
	if dir := strings.TrimSpace(cfg.Dir); dir != "" {
		args = append(args, "--dir", dir)
	} else if story := strings.TrimSpace(cfg.Story); story != "" {
		args = append(args, "--story", story)
	}
	if actor := strings.TrimSpace(cfg.ActorID); actor != "" {
		args = append(args, "--actor", actor)
	}
	return args
}

// initialSize reads ?cols=&rows= so the tree is laid out for the browser terminal on first paint.
func initialSize(q url.Values) pty.Winsize {
	return pty.Winsize{
		Cols: termSide(q.Get("cols"), defaultCols),
		Rows: termSide(q.Get("rows"), defaultRows),
	}
}

func termSide(v string, def uint16) uint16 {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return def
	}
	return uint16(min(n, maxTermSide))
}

// run pumps bytes both ways until the TUI exits or the browser goes away, then tells the browser
// why the session ended.
func (s *session) run(ctx context.Context) {
	started := time.Now()
	s.logger.Info("webtui session started", slog.Int("pid", s.cmd.Process.Pid))

	outDone := make(chan struct{})
	go func() {
		defer close(outDone)
		s.pumpOutput()
	}()
	inDone := make(chan struct{})
	go func() {
		defer close(inDone)
		s.pumpInput()
	}()
	stop := make(chan struct{})
	go s.keepalive(stop)

	select {
	case <-outDone:
	case <-inDone:
	case <-ctx.Done():
	}
	close(stop)

	// A child that already exited keeps its status; Kill only ends a live one.
	_ = s.cmd.Process.Kill()
	werr := s.cmd.Wait()
	reason := exitReason(werr)
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
		time.Now().Add(writeWait))
	_ = s.conn.Close()
	_ = s.ptmx.Close()
	<-outDone
	<-inDone

	s.logger.Info("webtui session ended",
		slog.String("reason", reason),
		slog.Duration("duration", time.Since(started)))
}

func exitReason(err error) string {
	var ee *exec.ExitError
	switch {
	case err == nil:
		return "storytree exited"
	case errors.As(err, &ee) && ee.Exited():
		return "storytree exited: " + ee.Error()
	default:
		return "session closed"
	}
}

// pumpOutput copies TUI output to the browser. It ends when the pty closes, which on Linux reads
// as EIO once the child is gone.
func (s *session) pumpOutput() {
	buf := make([]byte, 32*1024)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if werr := s.conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				s.logger.Debug("webtui write failed", slog.Any("err", werr))
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// pumpInput feeds keystrokes to the TUI and applies resize requests.
func (s *session) pumpInput() {
	s.conn.SetReadLimit(maxControlMessage)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("webtui read ended", slog.Any("err", err))
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		if len(data) == 0 {
			continue
		}
		if mt == websocket.TextMessage && data[0] == '{' {
			s.control(data)
			continue
		}
		if _, err := s.ptmx.Write(data); err != nil {
			return
		}
	}
}

func (s *session) control(data []byte) {
	var m controlMsg
	if err := json.Unmarshal(data, &m); err != nil {
		s.logger.Debug("webtui bad control message", slog.Any("err", err))
		return
	}
	switch strings.ToLower(strings.TrimSpace(m.Type)) {
	case "resize":
		if m.Cols <= 0 || m.Rows <= 0 {
			return
		}
		size := pty.Winsize{Cols: uint16(min(m.Cols, maxTermSide)), Rows: uint16(min(m.Rows, maxTermSide))}
		if err := pty.Setsize(s.ptmx, &size); err != nil {
			s.logger.Debug("webtui resize failed", slog.Any("err", err))
		}
	}
}

func (s *session) keepalive(stop <-chan struct{}) {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
