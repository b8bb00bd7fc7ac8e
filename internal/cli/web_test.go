package cli

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestServe_ServesStoryUntilCancelled(t *testing.T) {
	isolate(t)
	dir := seedStory(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out, errOut lockedBuffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"--dir", dir, "serve", "--addr", "127.0.0.1:0", "--read-only"})
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(out.String(), `"url"`) {
		if time.Now().After(deadline) {
			t.Fatalf("server did not start:\nstdout: %s\nstderr: %s", out.String(), errOut.String())
		}
		time.Sleep(20 * time.Millisecond)
	}
	var env struct {
		Data struct {
			URL      string `json:"url"`
			ReadOnly bool   `json:"readOnly"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(out.String())), &env); err != nil {
		t.Fatalf("decode envelope: %v\n%s", err, out.String())
	}
	if !env.Data.ReadOnly {
		t.Fatalf("expected read-only in envelope: %s", out.String())
	}

	resp, err := http.Get(env.Data.URL)
	if err != nil {
		t.Fatalf("GET page: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `id="story-main"`) {
		t.Fatalf("unexpected page %d:\n%s", resp.StatusCode, body)
	}

	resp, err = http.PostForm(env.Data.URL+"cards/0.0.0/text", url.Values{"text": {"x"}})
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected read-only rejection, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("serve did not stop after cancel")
	}
}

func TestServe_RejectsBadAddr(t *testing.T) {
	isolate(t)
	if _, _, err := runCLI(t, []string{"--dir", t.TempDir(), "serve", "--addr", ""}); err == nil {
		t.Fatalf("expected an empty --addr to fail")
	}
}
