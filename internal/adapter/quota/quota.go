package quota

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrDailyExhausted is returned when the daily budget is spent. Unlike
// the hourly limit this is not worth waiting out; the caller aborts the
// remaining batch after flushing what it has.
var ErrDailyExhausted = errors.New("daily request quota exhausted")

const (
	hourWindow = time.Hour
	dayWindow  = 24 * time.Hour

	// Extra wait after the oldest hourly request leaves the window, so a
	// marginally fast clock on the API side does not reject the next call.
	cushion = 5 * time.Second
)

// Manager tracks remote-call budgets over rolling hourly and daily
// windows and enforces a minimum delay between consecutive requests.
// A request counts against each window for exactly the window length
// from its own timestamp; a request arriving exactly when the oldest
// timestamp ages out is allowed.
//
// The batch loop is single-threaded, but the mutex keeps the interface
// safe if parallel dispatch is ever added.
type Manager struct {
	mu          sync.Mutex
	maxPerHour  int
	maxPerDay   int
	delay       time.Duration
	hourly      []time.Time
	daily       []time.Time
	total       int
	lastRequest time.Time

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// Stats is a snapshot of quota usage for progress reporting.
type Stats struct {
	Hourly    int
	MaxHourly int
	Daily     int
	MaxDaily  int
	Total     int
}

func New(maxPerHour, maxPerDay int, delay time.Duration) *Manager {
	return NewWithClock(maxPerHour, maxPerDay, delay, time.Now, sleepContext)
}

// NewWithClock builds a manager with a custom time source and sleeper,
// used by tests that simulate window roll-off.
func NewWithClock(maxPerHour, maxPerDay int, delay time.Duration, now func() time.Time, sleep func(context.Context, time.Duration) error) *Manager {
	return &Manager{
		maxPerHour: maxPerHour,
		maxPerDay:  maxPerDay,
		delay:      delay,
		now:        now,
		sleep:      sleep,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// prune drops timestamps that have aged out of their windows.
// Caller holds the mutex.
func (m *Manager) prune(now time.Time) {
	cut := 0
	for cut < len(m.hourly) && now.Sub(m.hourly[cut]) >= hourWindow {
		cut++
	}
	m.hourly = m.hourly[cut:]

	cut = 0
	for cut < len(m.daily) && now.Sub(m.daily[cut]) >= dayWindow {
		cut++
	}
	m.daily = m.daily[cut:]
}

// Allow reports whether a request may proceed right now.
func (m *Manager) Allow() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prune(m.now())
	return len(m.hourly) < m.maxPerHour && len(m.daily) < m.maxPerDay
}

// WaitSlot blocks until a request may proceed. Hourly exhaustion sleeps
// until the oldest request leaves the window; daily exhaustion returns
// ErrDailyExhausted immediately.
func (m *Manager) WaitSlot(ctx context.Context) error {
	for {
		m.mu.Lock()
		m.prune(m.now())

		if len(m.daily) >= m.maxPerDay {
			m.mu.Unlock()
			return ErrDailyExhausted
		}
		if len(m.hourly) < m.maxPerHour {
			m.mu.Unlock()
			return nil
		}

		oldest := m.hourly[0]
		wait := hourWindow - m.now().Sub(oldest) + cushion
		m.mu.Unlock()

		if err := m.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Pace enforces the configured minimum delay since the last recorded
// request, sleeping for the remainder if called too soon.
func (m *Manager) Pace(ctx context.Context) error {
	m.mu.Lock()
	var wait time.Duration
	if m.delay > 0 && !m.lastRequest.IsZero() {
		if since := m.now().Sub(m.lastRequest); since < m.delay {
			wait = m.delay - since
		}
	}
	m.mu.Unlock()

	if wait > 0 {
		return m.sleep(ctx, wait)
	}
	return nil
}

// Record counts a request against both windows.
func (m *Manager) Record() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.hourly = append(m.hourly, now)
	m.daily = append(m.daily, now)
	m.total++
	m.lastRequest = now
}

// Stats returns current usage against the configured budgets.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prune(m.now())
	return Stats{
		Hourly:    len(m.hourly),
		MaxHourly: m.maxPerHour,
		Daily:     len(m.daily),
		MaxDaily:  m.maxPerDay,
		Total:     m.total,
	}
}
