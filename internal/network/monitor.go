package network

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/expense-sync/constants"
)

// Transition is one reported reachability edge.
type Transition struct {
	From constants.NetworkStatus
	To   constants.NetworkStatus
	At   time.Time
}

// CameOnline reports an offline -> online edge.
func (t Transition) CameOnline() bool {
	return t.From == constants.NetworkOffline && t.To == constants.NetworkOnline
}

// Handler receives transitions on the monitor goroutine; it must not block.
type Handler func(Transition)

type Config struct {
	Interval time.Duration // time between probes
	Debounce time.Duration // a new status must hold this long before it is reported
}

// Monitor polls a Prober and reports each reachability change exactly once.
// Flapping shorter than Debounce is coalesced away.
type Monitor struct {
	prober   Prober
	logger   *slog.Logger
	interval time.Duration
	debounce time.Duration
	now      func() time.Time

	mu             sync.Mutex
	status         constants.NetworkStatus
	candidate      constants.NetworkStatus
	candidateSince time.Time
	handlers       []Handler

	events chan Transition
	closed bool

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewMonitor(prober Prober, cfg Config, logger *slog.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	return &Monitor{
		prober:   prober,
		logger:   logger,
		interval: cfg.Interval,
		debounce: cfg.Debounce,
		now:      time.Now,
		status:   constants.NetworkUnknown,
		events:   make(chan Transition, 16),
		done:     make(chan struct{}),
	}
}

// OnChange registers a handler for every future transition.
func (m *Monitor) OnChange(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, h)
}

// Events is a buffered stream of transitions, closed by Stop. Slow readers
// miss transitions rather than stall the monitor.
func (m *Monitor) Events() <-chan Transition {
	return m.events
}

func (m *Monitor) Status() constants.NetworkStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Monitor) IsOnline() bool {
	return m.Status() == constants.NetworkOnline
}

// Start takes an initial reading and begins polling until ctx ends or Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		ctx, m.cancel = context.WithCancel(ctx)
		m.CheckNow(ctx)
		m.logger.Info("network monitor started", "status", m.Status(), "interval", m.interval, "debounce", m.debounce)

		go func() {
			defer close(m.done)
			ticker := time.NewTicker(m.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					m.observe(m.probe(ctx), false)
				}
			}
		}()
	})
}

// Stop halts polling and closes the event stream. Safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		started := m.cancel != nil
		if started {
			m.cancel()
			<-m.done
		}
		m.mu.Lock()
		m.closed = true
		close(m.events)
		m.mu.Unlock()
		m.logger.Info("network monitor stopped")
	})
}

// CheckNow probes immediately and reports the result without debouncing.
func (m *Monitor) CheckNow(ctx context.Context) constants.NetworkStatus {
	m.observe(m.probe(ctx), true)
	return m.Status()
}

func (m *Monitor) probe(ctx context.Context) constants.NetworkStatus {
	if err := m.prober.Probe(ctx); err != nil {
		m.logger.Debug("probe failed", "error", err)
		return constants.NetworkOffline
	}
	return constants.NetworkOnline
}

func (m *Monitor) observe(observed constants.NetworkStatus, immediate bool) {
	now := m.now()

	m.mu.Lock()
	if observed == m.status {
		m.candidate = ""
		m.mu.Unlock()
		return
	}
	if m.status == constants.NetworkUnknown {
		// first reading sets the baseline, it is not an edge
		m.status = observed
		m.candidate = ""
		m.mu.Unlock()
		return
	}
	if observed != m.candidate {
		m.candidate = observed
		m.candidateSince = now
	}
	if !immediate && now.Sub(m.candidateSince) < m.debounce {
		m.mu.Unlock()
		return
	}

	t := Transition{From: m.status, To: observed, At: now}
	m.status = observed
	m.candidate = ""
	handlers := append([]Handler(nil), m.handlers...)
	if !m.closed {
		select {
		case m.events <- t:
		default:
			m.logger.Warn("dropping network event, no reader", "from", t.From, "to", t.To)
		}
	}
	m.mu.Unlock()

	m.logger.Info("network status changed", "from", t.From, "to", t.To)
	for _, h := range handlers {
		h(t)
	}
}
