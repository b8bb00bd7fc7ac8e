package web

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// hub fans change notifications out to every open event stream. Slow subscribers drop
// notifications; one pending notification is enough to trigger a re-render.
type hub struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

func newHub() *hub {
	return &hub{subs: map[chan struct{}]struct{}{}}
}

func (h *hub) subscribe() (ch chan struct{}, cancel func()) {
	ch = make(chan struct{}, 1)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
}

func (h *hub) broadcast() {
	h.mu.Lock()
	for ch := range h.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	h.mu.Unlock()
}

// storyFiles are stamped to notice writes by other processes (the TUI, the CLI, a git pull).
var storyFiles = []string{"events.jsonl", "events.sqlite", "events.sqlite-wal", "story.json"}

// watcher polls the story files and broadcasts when their stamp changes.
type watcher struct {
	dir      string
	interval time.Duration
	hub      *hub

	mu sync.Mutex
	fp string

	stopOnce sync.Once
	stopCh   chan struct{}
}

func newWatcher(dir string, interval time.Duration) *watcher {
	if interval <= 0 {
		interval = time.Second
	}
	w := &watcher{dir: dir, interval: interval, hub: newHub(), stopCh: make(chan struct{})}
	w.fp = w.fingerprint()
	return w
}

func (w *watcher) fingerprint() string {
	var modNano, size int64
	for _, name := range storyFiles {
		st, err := os.Stat(filepath.Join(w.dir, name))
		if err != nil {
			continue
		}
		modNano = max(modNano, st.ModTime().UnixNano())
		size += st.Size()
	}
	if modNano == 0 && size == 0 {
		return ""
	}
	return strconv.FormatInt(modNano, 10) + ":" + strconv.FormatInt(size, 10)
}

// version is the last observed stamp, sent to browsers as a signal.
func (w *watcher) version() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fp
}

// check re-stamps the files and broadcasts on change.
func (w *watcher) check() {
	fp := w.fingerprint()
	w.mu.Lock()
	changed := fp != w.fp
	w.fp = fp
	w.mu.Unlock()
	if changed {
		w.hub.broadcast()
	}
}

func (w *watcher) loop() {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-t.C:
			w.check()
		}
	}
}

func (w *watcher) stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}
