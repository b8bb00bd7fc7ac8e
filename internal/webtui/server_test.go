package webtui

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestNewServer_RequiresAddr(t *testing.T) {
	if _, err := NewServer(ServerConfig{}); err == nil {
		t.Fatalf("expected missing addr to fail")
	}
}

func TestServer_TerminalPage(t *testing.T) {
	srv, err := NewServer(ServerConfig{Addr: "127.0.0.1:0", Story: "saga", ActorID: "tester"})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/terminal" {
		t.Fatalf("expected redirect to /terminal, got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/terminal", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("terminal: %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<title>saga · storytree</title>") || !strings.Contains(body, `data-actor="tester"`) {
		t.Fatalf("unexpected terminal page:\n%s", body)
	}
}

func TestSessionArgs(t *testing.T) {
	cases := []struct {
		cfg  ServerConfig
		want string
	}{
		{ServerConfig{Dir: "/s/saga", Story: "saga", ActorID: "ann"}, "--dir /s/saga --actor ann"},
		{ServerConfig{Story: "saga"}, "--story saga"},
		{ServerConfig{}, ""},
	}
	for _, tc := range cases {
		if got := strings.Join(sessionArgs(tc.cfg), " "); got != tc.want {
			t.Fatalf("sessionArgs(%+v) = %q, want %q", tc.cfg, got, tc.want)
		}
	}
}

func fakeStorytree(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("no pty on windows")
	}
	exe := filepath.Join(t.TempDir(), "fake-storytree")
	if err := os.WriteFile(exe, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	return exe
}

func wsURL(ts *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
}

func TestServer_WebSocketRunsSession(t *testing.T) {
	exe := fakeStorytree(t, "echo \"session $*\"\nstty size\nsleep 0.3\nexit 3\n")
	srv, err := NewServer(ServerConfig{Addr: "127.0.0.1:0", Dir: "/stories/saga", Exe: exe})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "?cols=90&rows=30"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var got strings.Builder
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if !errors.As(err, &ce) {
				t.Fatalf("read: %v (so far %q)", err, got.String())
			}
			if ce.Code != websocket.CloseNormalClosure || ce.Text != "storytree exited: exit status 3" {
				t.Fatalf("unexpected close %d %q", ce.Code, ce.Text)
			}
			break
		}
		got.Write(data)
	}
	out := got.String()
	if !strings.Contains(out, "session --dir /stories/saga") {
		t.Fatalf("expected session args in output, got %q", out)
	}
	if !strings.Contains(out, "30 90") {
		t.Fatalf("expected the pty to start at 90x30, got %q", out)
	}
}

func TestServer_SessionLimit(t *testing.T) {
	exe := fakeStorytree(t, "sleep 5\n")
	srv, err := NewServer(ServerConfig{Addr: "127.0.0.1:0", Dir: "/stories/saga", Exe: exe, MaxSessions: 1})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	first, _, err := websocket.DefaultDialer.Dial(wsURL(ts, ""), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, ""), nil)
	if !errors.Is(err, websocket.ErrBadHandshake) || resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for a second session, got err=%v resp=%v", err, resp)
	}

	// Closing the first tab frees its slot.
	_ = first.Close()
	deadline := time.Now().Add(5 * time.Second)
	for {
		again, _, err := websocket.DefaultDialer.Dial(wsURL(ts, ""), nil)
		if err == nil {
			_ = again.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("slot was not released: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestInitialSize(t *testing.T) {
	cases := []struct {
		query      string
		cols, rows uint16
	}{
		{"", defaultCols, defaultRows},
		{"cols=90&rows=30", 90, 30},
		{"cols=-4&rows=abc", defaultCols, defaultRows},
		{"cols=99999&rows=0", maxTermSide, defaultRows},
	}
	for _, tc := range cases {
		q, _ := url.ParseQuery(tc.query)
		got := initialSize(q)
		if got.Cols != tc.cols || got.Rows != tc.rows {
			t.Fatalf("%q: got %dx%d, want %dx%d", tc.query, got.Cols, got.Rows, tc.cols, tc.rows)
		}
	}
}

func TestExitReason(t *testing.T) {
	if got := exitReason(nil); got != "storytree exited" {
		t.Fatalf("clean exit: %q", got)
	}
	if got := exitReason(errors.New("wait: no child")); got != "session closed" {
		t.Fatalf("other error: %q", got)
	}
}
