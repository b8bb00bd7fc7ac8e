// Package motion animates a 2D offset toward a moving target with a two-phase quadratic ease.
package motion

import (
	"log/slog"
	"math"
	"sync"
	"time"
)

// DefaultFramePeriod is the tick length of an animation.
const DefaultFramePeriod = 16 * time.Millisecond

// ConvergenceTolerance is the residual (per axis) above which a finished animation is reported.
const ConvergenceTolerance = 1.0

type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vec) Add(o Vec) Vec { return Vec{X: v.X + o.X, Y: v.Y + o.Y} }
func (v Vec) Sub(o Vec) Vec { return Vec{X: v.X - o.X, Y: v.Y - o.Y} }

// Controller glides pos toward target. Starting an animation cancels the running one, so at most
// one animation ever applies steps.
type Controller struct {
	mu     sync.Mutex
	pos    Vec
	target Vec

	sched  Scheduler
	frame  time.Duration
	logger *slog.Logger
	name   string

	onFrame func(pos Vec)

	gen  uint64
	stop func()
	anim *animation
}

type animation struct {
	gen      uint64
	distance Vec
	alpha    Vec
	steps    int
	tick     int
}

type Option func(*Controller)

func WithFramePeriod(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.frame = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithName labels log records (e.g. "pillar-2").
func WithName(name string) Option {
	return func(c *Controller) { c.name = name }
}

// WithStart places the controller at pos without animating.
func WithStart(pos Vec) Option {
	return func(c *Controller) {
		c.pos = pos
		c.target = pos
	}
}

// OnFrame registers a callback run after every applied tick (outside the lock).
func OnFrame(fn func(pos Vec)) Option {
	return func(c *Controller) { c.onFrame = fn }
}

func NewController(sched Scheduler, opts ...Option) *Controller {
	if sched == nil {
		sched = NewTickerScheduler()
	}
	c := &Controller{
		sched:  sched,
		frame:  DefaultFramePeriod,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Pos() Vec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pos
}

func (c *Controller) Target() Vec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

func (c *Controller) Animating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.anim != nil
}

// Shift moves the target by delta and animates the remaining distance over period.
// A zero period jumps straight to the target.
func (c *Controller) Shift(delta Vec, period time.Duration) {
	c.mu.Lock()
	c.target = c.target.Add(delta)
	c.cancelLocked()

	if period <= 0 {
		c.pos = c.target
		pos := c.pos
		c.mu.Unlock()
		c.frameDone(pos)
		return
	}

	remaining := c.target.Sub(c.pos)
	if remaining == (Vec{}) {
		c.mu.Unlock()
		return
	}
	steps := int(period / c.frame)
	if steps < 1 {
		steps = 1
	}
	half := float64(steps) / 2
	c.gen++
	a := &animation{
		gen:      c.gen,
		distance: remaining,
		alpha: Vec{
			X: (remaining.X / 2) / (half * half),
			Y: (remaining.Y / 2) / (half * half),
		},
		steps: steps,
	}
	c.anim = a
	gen := c.gen
	c.stop = c.sched.Every(c.frame, func() { c.step(gen) })
	c.mu.Unlock()
}

// Translate moves pos and target together. A running animation keeps going, offset by delta.
func (c *Controller) Translate(delta Vec) {
	c.mu.Lock()
	c.pos = c.pos.Add(delta)
	c.target = c.target.Add(delta)
	pos := c.pos
	c.mu.Unlock()
	c.frameDone(pos)
}

// SetPos places the controller at pos and target without animating.
func (c *Controller) SetPos(pos Vec) {
	c.mu.Lock()
	c.cancelLocked()
	c.pos = pos
	c.target = pos
	c.mu.Unlock()
	c.frameDone(pos)
}

// Stop cancels the running animation, leaving pos where it is.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
}

func (c *Controller) cancelLocked() {
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	c.anim = nil
}

func (c *Controller) step(gen uint64) {
	c.mu.Lock()
	a := c.anim
	if a == nil || a.gen != gen {
		// Superseded by a newer Shift.
		c.mu.Unlock()
		return
	}
	prev := a.displacement(a.tick)
	a.tick++
	next := a.displacement(a.tick)
	c.pos = c.pos.Add(next.Sub(prev))

	if a.tick >= a.steps {
		residual := c.target.Sub(c.pos)
		if math.Abs(residual.X) > ConvergenceTolerance || math.Abs(residual.Y) > ConvergenceTolerance {
			c.logger.Warn("motion did not converge",
				slog.String("controller", c.name),
				slog.Float64("residual_x", residual.X),
				slog.Float64("residual_y", residual.Y),
				slog.Int("steps", a.steps),
			)
		}
		c.pos = c.target
		c.cancelLocked()
	}
	pos := c.pos
	c.mu.Unlock()
	c.frameDone(pos)
}

func (c *Controller) frameDone(pos Vec) {
	if c.onFrame != nil {
		c.onFrame(pos)
	}
}

// displacement is the distance covered after t ticks: alpha*t^2 while accelerating,
// mirrored while decelerating.
func (a *animation) displacement(t int) Vec {
	return Vec{
		X: eased(a.distance.X, a.alpha.X, t, a.steps),
		Y: eased(a.distance.Y, a.alpha.Y, t, a.steps),
	}
}

func eased(distance, alpha float64, t, steps int) float64 {
	if t >= steps {
		return distance
	}
	tf := float64(t)
	half := float64(steps) / 2
	if tf <= half {
		return alpha * tf * tf
	}
	rest := float64(steps) - tf
	return distance - alpha*rest*rest
}
