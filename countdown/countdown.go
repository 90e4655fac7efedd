package countdown

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

const DefaultTickInterval = 100 * time.Millisecond

// State is a read-only view of the current turn countdown.
type State struct {
	Active   bool
	Seat     int
	Deadline time.Time
	Total    time.Duration
}

/*
Timer derives a turn countdown from an absolute deadline.

Remaining time is always recomputed as deadline - now against the wall clock,
never decremented by tick counting, so a suspended process picks up the
correct value on resume. Start fully supersedes any previous countdown; at
most one is active at a time. Expiry is informational only: the timer goes
inactive and fires the callback, it never takes a game action itself.
*/
type Timer struct {
	mu         sync.Mutex
	clock      clockwork.Clock
	logger     zerolog.Logger
	interval   time.Duration
	state      State
	generation uint64
	onTick     func(seat int, remaining float64)
	onExpired  func(seat int)
}

type TimerOpt func(*Timer)

func WithClock(clock clockwork.Clock) TimerOpt {
	return func(t *Timer) {
		t.clock = clock
	}
}

func WithLogger(logger zerolog.Logger) TimerOpt {
	return func(t *Timer) {
		t.logger = logger.With().Str("component", "countdown").Logger()
	}
}

func WithTickInterval(interval time.Duration) TimerOpt {
	return func(t *Timer) {
		t.interval = interval
	}
}

func NewTimer(opts ...TimerOpt) *Timer {
	t := &Timer{
		clock:     clockwork.NewRealClock(),
		logger:    zerolog.Nop(),
		interval:  DefaultTickInterval,
		state:     State{Seat: -1},
		onTick:    func(int, float64) {},
		onExpired: func(int) {},
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

func (t *Timer) OnTick(fn func(seat int, remaining float64)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onTick = fn
}

func (t *Timer) OnExpired(fn func(seat int)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onExpired = fn
}

// Start arms the countdown for a seat. Any previous countdown is superseded,
// its tick loop exits on the next tick without firing callbacks.
func (t *Timer) Start(seat int, deadline time.Time, total time.Duration) {
	t.mu.Lock()
	t.generation++
	generation := t.generation
	t.state = State{
		Active:   true,
		Seat:     seat,
		Deadline: deadline,
		Total:    total,
	}
	t.mu.Unlock()

	t.logger.Debug().
		Int("seat", seat).
		Time("deadline", deadline).
		Dur("total", total).
		Msg("countdown started")

	go t.run(generation)
}

func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.generation++
	t.state.Active = false
}

func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// RemainingSeconds returns max(0, deadline - now) clamped to the total
// duration. Zero when no countdown is active.
func (t *Timer) RemainingSeconds() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remainingLocked()
}

func (t *Timer) remainingLocked() float64 {
	if !t.state.Active {
		return 0
	}

	remaining := t.state.Deadline.Sub(t.clock.Now()).Seconds()
	if remaining < 0 {
		return 0
	}
	if total := t.state.Total.Seconds(); remaining > total {
		return total
	}
	return remaining
}

func (t *Timer) run(generation uint64) {
	ticker := t.clock.NewTicker(t.interval)
	defer ticker.Stop()

	for range ticker.Chan() {
		t.mu.Lock()
		if t.generation != generation {
			t.mu.Unlock()
			return
		}

		remaining := t.remainingLocked()
		seat := t.state.Seat
		onTick := t.onTick
		onExpired := t.onExpired

		if remaining <= 0 {
			t.state.Active = false
			t.mu.Unlock()
			onExpired(seat)
			return
		}
		t.mu.Unlock()

		onTick(seat, remaining)
	}
}
