package tick

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultPeriod is the tick period of the appliance timer.
const DefaultPeriod = time.Second

// ErrStopped is returned by Manual.Tick when the source is stopped while a
// tick is pending.
var ErrStopped = errors.New("tick: source stopped")

// Source is a start/stop periodic notification source.
type Source interface {
	Start()
	Stop()
	C() <-chan struct{}
}

// Ticker is a wall clock Source.
type Ticker struct {
	period time.Duration
	c      chan struct{}

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewTicker returns a stopped Ticker. A non-positive period selects
// DefaultPeriod.
func NewTicker(period time.Duration) *Ticker {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Ticker{period: period, c: make(chan struct{})}
}

// Period returns the tick period.
func (t *Ticker) Period() time.Duration {
	return t.period
}

// C returns the notification channel.
func (t *Ticker) C() <-chan struct{} {
	return t.c
}

// Start begins ticking. The first tick arrives one period later. Calling
// Start on a running Ticker is a no-op.
func (t *Ticker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return
	}
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.run(t.stop, t.done)
}

// Stop halts ticking and discards pending ticks. It returns after the
// forwarding goroutine has exited.
func (t *Ticker) Stop() {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (t *Ticker) run(stop, done chan struct{}) {
	defer close(done)

	tk := time.NewTicker(t.period)
	defer tk.Stop()

	pending := 0
	for {
		var out chan struct{}
		if pending > 0 {
			out = t.c
		}
		select {
		case <-tk.C:
			pending++
		case out <- struct{}{}:
			pending--
		case <-stop:
			return
		}
	}
}

// Free ticks as fast as the consumer receives.
type Free struct {
	c chan struct{}

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewFree returns a stopped Free source.
func NewFree() *Free {
	return &Free{c: make(chan struct{})}
}

// C returns the notification channel.
func (f *Free) C() <-chan struct{} {
	return f.c
}

// Start begins ticking.
func (f *Free) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stop != nil {
		return
	}
	f.stop = make(chan struct{})
	f.done = make(chan struct{})
	go func(stop, done chan struct{}) {
		defer close(done)
		for {
			select {
			case f.c <- struct{}{}:
			case <-stop:
				return
			}
		}
	}(f.stop, f.done)
}

// Stop halts ticking.
func (f *Free) Stop() {
	f.mu.Lock()
	stop, done := f.stop, f.done
	f.stop, f.done = nil, nil
	f.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Manual is a Source advanced explicitly by Tick.
type Manual struct {
	c chan struct{}

	mu      sync.Mutex
	stop    chan struct{} // nil while stopped
	started chan struct{} // closed by the next Start
	starts  int
}

// NewManual returns a stopped Manual source.
func NewManual() *Manual {
	return &Manual{
		c:       make(chan struct{}),
		started: make(chan struct{}),
	}
}

// C returns the notification channel.
func (m *Manual) C() <-chan struct{} {
	return m.c
}

// Start marks the source running and releases any Tick waiting for it.
func (m *Manual) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		return
	}
	m.stop = make(chan struct{})
	m.starts++
	close(m.started)
}

// Stop marks the source stopped. A Tick blocked on delivery returns
// ErrStopped.
func (m *Manual) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop == nil {
		return
	}
	close(m.stop)
	m.stop = nil
	m.started = make(chan struct{})
}

// Starts returns how many times the source has been started.
func (m *Manual) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// Running reports whether the source is started.
func (m *Manual) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stop != nil
}

// Tick waits until the source is running and a consumer has received one
// notification.
func (m *Manual) Tick(ctx context.Context) error {
	for {
		m.mu.Lock()
		stop, started := m.stop, m.started
		m.mu.Unlock()

		if stop == nil {
			select {
			case <-started:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		select {
		case m.c <- struct{}{}:
			return nil
		case <-stop:
			return ErrStopped
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Advance delivers n ticks.
func (m *Manual) Advance(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := m.Tick(ctx); err != nil {
			return err
		}
	}
	return nil
}

var (
	_ Source = (*Ticker)(nil)
	_ Source = (*Free)(nil)
	_ Source = (*Manual)(nil)
)
