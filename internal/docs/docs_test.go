package docs

import (
	"strings"
	"testing"
)

func TestTopics(t *testing.T) {
	got := strings.Join(Topics(), ",")
	if got != "config,events,keys,positions" {
		t.Fatalf("unexpected topics %s", got)
	}
}

func TestGet(t *testing.T) {
	body, ok := Get(" Keys ")
	if !ok || !strings.HasPrefix(body, "# Keys") {
		t.Fatalf("expected keys topic, got ok=%v", ok)
	}
	for _, topic := range []string{"", "missing", "../docs", "content/keys"} {
		if _, ok := Get(topic); ok {
			t.Fatalf("expected %q to be unknown", topic)
		}
	}
}
