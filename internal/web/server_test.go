package web

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestServer(t *testing.T, readOnly bool) *Server {
	t.Helper()
	t.Setenv("STORYTREE_CONFIG_DIR", t.TempDir())
	srv, err := NewServer(ServerConfig{Dir: t.TempDir(), Story: "saga", ActorID: "tester", ReadOnly: readOnly, PollInterval: time.Hour})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, srv *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func post(t *testing.T, srv *Server, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_EmptyStory(t *testing.T) {
	srv := newTestServer(t, false)
	rec := get(t, srv, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /: %d %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{`id="story-main"`, "0.0.0 · 1 cards", `class="card selected"`, "empty"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in page:\n%s", want, body)
		}
	}

	if rec := get(t, srv, "/health"); rec.Code != http.StatusOK || rec.Body.String() != "ok\n" {
		t.Fatalf("health: %d %q", rec.Code, rec.Body.String())
	}
}

func TestServer_MutationsRecordAndRedirect(t *testing.T) {
	srv := newTestServer(t, false)

	var afterWrite int
	srv.cfg.AfterWrite = func() { afterWrite++ }

	rec := post(t, srv, "/cards/0.0.0/new", url.Values{"as": {"child"}, "text": {"Hello"}})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/?pos=1.0.0" {
		t.Fatalf("new child: %d %q %s", rec.Code, rec.Header().Get("Location"), rec.Body.String())
	}

	rec = post(t, srv, "/cards/1.0.0/text", url.Values{"text": {"**bold** move"}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("edit: %d %s", rec.Code, rec.Body.String())
	}

	rec = post(t, srv, "/cards/1.0.0/new", url.Values{"as": {"below"}})
	if rec.Header().Get("Location") != "/?pos=1.0.1" {
		t.Fatalf("new below: %d %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = post(t, srv, "/cards/1.0.1/move", url.Values{"by": {"up"}})
	if rec.Header().Get("Location") != "/?pos=1.0.0" {
		t.Fatalf("move up: %d %q %s", rec.Code, rec.Header().Get("Location"), rec.Body.String())
	}
	if afterWrite != 4 {
		t.Fatalf("expected AfterWrite per mutation, got %d", afterWrite)
	}

	body := get(t, srv, "/?pos=1.0.1").Body.String()
	if !strings.Contains(body, "<strong>bold</strong>") {
		t.Fatalf("expected rendered markdown:\n%s", body)
	}
	if !strings.Contains(body, "1.0.1 · 3 cards") {
		t.Fatalf("expected the moved card selected:\n%s", body)
	}

	rec = post(t, srv, "/cards/1.0.1/delete", nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body.String())
	}
	if body := get(t, srv, "/").Body.String(); strings.Contains(body, "<strong>bold</strong>") {
		t.Fatalf("deleted card still rendered:\n%s", body)
	}
}

func TestServer_RejectsBadRequests(t *testing.T) {
	srv := newTestServer(t, false)
	cases := []struct {
		target string
		form   url.Values
		code   int
	}{
		{"/cards/nope/text", url.Values{"text": {"x"}}, http.StatusBadRequest},
		{"/cards/3.0.0/text", url.Values{"text": {"x"}}, http.StatusNotFound},
		{"/cards/0.0.0/new", url.Values{"as": {"sideways"}}, http.StatusUnprocessableEntity},
		{"/cards/0.0.0/move", url.Values{"by": {"around"}}, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		if rec := post(t, srv, tc.target, tc.form); rec.Code != tc.code {
			t.Fatalf("%s: expected %d, got %d (%s)", tc.target, tc.code, rec.Code, rec.Body.String())
		}
	}

	ro := newTestServer(t, true)
	if rec := post(t, ro, "/cards/0.0.0/text", url.Values{"text": {"x"}}); rec.Code != http.StatusForbidden {
		t.Fatalf("read-only: expected 403, got %d", rec.Code)
	}
	if body := get(t, ro, "/").Body.String(); strings.Contains(body, "<textarea") {
		t.Fatalf("read-only page must not offer an editor")
	}
}

func TestWatcher_BroadcastsOnChange(t *testing.T) {
	dir := t.TempDir()
	w := newWatcher(dir, time.Hour)
	ch, cancel := w.hub.subscribe()
	defer cancel()

	w.check()
	select {
	case <-ch:
		t.Fatalf("unchanged story must not broadcast")
	default:
	}

	if err := os.WriteFile(filepath.Join(dir, "events.jsonl"), []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	w.check()
	select {
	case <-ch:
	default:
		t.Fatalf("expected a broadcast after the log changed")
	}
	if w.version() == "" {
		t.Fatalf("expected a version stamp")
	}
}

func TestRenderMarkdownHTML_NoRawHTML(t *testing.T) {
	out := string(renderMarkdownHTML("hi <script>alert(1)</script> :smile:"))
	if strings.Contains(out, "<script>") {
		t.Fatalf("raw html passed through: %s", out)
	}
	if !strings.Contains(out, "&#x1f604;") {
		t.Fatalf("expected emoji shortcode to render: %s", out)
	}
	if renderMarkdownHTML("   ") != "" {
		t.Fatalf("blank text renders nothing")
	}
}

func TestRenderMarkdownHTML_CardLinksAndHeadings(t *testing.T) {
	out := string(renderMarkdownHTML("# Act one\n\nsee [notes](http://x.test/a?b=1&c=2) and https://example.com/q\n\n#### Aside"))
	if strings.Contains(out, "<a ") {
		t.Fatalf("card text must not nest anchors: %s", out)
	}
	for _, want := range []string{
		"<h3>Act one</h3>",
		`<span class="link" title="http://x.test/a?b=1&amp;c=2">notes</span>`,
		`<span class="link">https://example.com/q</span>`,
		"<h6>Aside</h6>",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in: %s", want, out)
		}
	}
}
