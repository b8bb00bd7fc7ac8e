package motion

import (
	"sort"
	"sync"
	"time"
)

// Scheduler runs fn every period until the returned stop func is called.
// stop must be safe to call more than once and must not wait for a running fn.
type Scheduler interface {
	Every(period time.Duration, fn func()) (stop func())
}

// TickerScheduler runs tasks on real time, one goroutine and time.Ticker per task.
type TickerScheduler struct{}

func NewTickerScheduler() TickerScheduler { return TickerScheduler{} }

func (TickerScheduler) Every(period time.Duration, fn func()) func() {
	if period <= 0 {
		period = time.Millisecond
	}
	done := make(chan struct{})
	var once sync.Once
	go func() {
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				select {
				case <-done:
					return
				default:
				}
				fn()
			}
		}
	}()
	return func() { once.Do(func() { close(done) }) }
}

// ManualScheduler is a virtual clock: tasks only run when Advance is called.
// Used by tests and by the TUI, which advances it from frame messages.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	nextID int
	tasks  map[int]*manualTask
}

type manualTask struct {
	id      int
	period  time.Duration
	due     time.Duration
	fn      func()
	stopped bool
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{tasks: map[int]*manualTask{}}
}

func (s *ManualScheduler) Every(period time.Duration, fn func()) func() {
	if period <= 0 {
		period = time.Millisecond
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	task := &manualTask{id: s.nextID, period: period, due: s.now + period, fn: fn}
	s.tasks[task.id] = task
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		task.stopped = true
		delete(s.tasks, task.id)
	}
}

// Now is the virtual time elapsed since creation.
func (s *ManualScheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Pending is the number of live tasks.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Advance moves the clock forward by d, running every tick that falls due in order.
// Callbacks run without the scheduler lock held, so they may start or stop tasks.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	end := s.now + d
	s.mu.Unlock()

	for {
		s.mu.Lock()
		task := s.nextDue(end)
		if task == nil {
			s.now = end
			s.mu.Unlock()
			return
		}
		s.now = task.due
		task.due += task.period
		fn := task.fn
		s.mu.Unlock()

		fn()
	}
}

func (s *ManualScheduler) nextDue(end time.Duration) *manualTask {
	var due []*manualTask
	for _, t := range s.tasks {
		if !t.stopped && t.due <= end {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].due != due[j].due {
			return due[i].due < due[j].due
		}
		return due[i].id < due[j].id
	})
	return due[0]
}
