// Package state provides thread-safe progress tracking for a fitting run.
package state

import (
	"math"
	"sync"
	"time"

	"github.com/litescript/crsfit/internal/fit"
)

// EventType represents the type of progress event.
type EventType string

const (
	EventAttempt  EventType = "ATTEMPT"
	EventImproved EventType = "IMPROVED"
	EventFailed   EventType = "FAILED"
	EventFinished EventType = "FINISHED"
)

// Event is one entry of the run log.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Method    string    `json:"method,omitempty"`
	Rounding  bool      `json:"rounding,omitempty"`
	Unit      string    `json:"unit,omitempty"`
	Ellipsoid string    `json:"ellipsoid,omitempty"`
	Error     float64   `json:"error_deg,omitempty"`
	Err       string    `json:"err,omitempty"`
}

// TimeSeries is a single data point with timestamp.
type TimeSeries struct {
	Timestamp time.Time
	Value     float64
}

// Manager tracks attempts, the best error so far and the final result of
// one run. It implements fit.Recorder.
type Manager struct {
	mu sync.RWMutex

	started     time.Time
	finished    time.Time
	evaluations int64
	attempts    int
	failures    int

	best   *fit.Attempt
	result *fit.Result
	err    error

	// Best error over time
	history       []TimeSeries
	maxHistoryLen int

	// Event log (ring buffer)
	events       []Event
	maxEvents    int
	eventWriteAt int

	refreshInterval time.Duration
}

// Config holds configuration for the state manager.
type Config struct {
	MaxHistoryLen   int
	MaxEvents       int
	RefreshInterval time.Duration
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		MaxHistoryLen:   120,
		MaxEvents:       50,
		RefreshInterval: 250 * time.Millisecond,
	}
}

// NewManager creates a new state manager; the run clock starts now.
func NewManager(cfg Config) *Manager {
	maxEvents := cfg.MaxEvents
	if maxEvents <= 0 {
		maxEvents = 50
	}
	maxHistory := cfg.MaxHistoryLen
	if maxHistory <= 0 {
		maxHistory = 120
	}
	return &Manager{
		started:         time.Now(),
		maxHistoryLen:   maxHistory,
		maxEvents:       maxEvents,
		events:          make([]Event, 0, maxEvents),
		refreshInterval: cfg.RefreshInterval,
	}
}

// Record stores a completed attempt.
func (m *Manager) Record(a fit.Attempt) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.attempts++
	e := Event{
		Type:      EventAttempt,
		Timestamp: now,
		Method:    a.Type.String(),
		Rounding:  a.Rounding,
		Unit:      a.Unit.Name,
		Ellipsoid: a.Ellipsoid.Name,
		Error:     a.Error,
	}
	if a.Failed() {
		m.failures++
		e.Type = EventFailed
		e.Error = 0
		if a.Err != nil {
			e.Err = a.Err.Error()
		}
		m.addEvent(e)
		return
	}
	if m.best == nil || a.Error < m.best.Error {
		b := a
		m.best = &b
		e.Type = EventImproved
		m.history = append(m.history, TimeSeries{Timestamp: now, Value: a.Error})
		if len(m.history) > m.maxHistoryLen {
			m.history = m.history[1:]
		}
	}
	m.addEvent(e)
}

// SetEvaluations updates the objective evaluation counter.
func (m *Manager) SetEvaluations(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evaluations = n
}

// Finish stores the outcome of the run.
func (m *Manager) Finish(res *fit.Result, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.finished = time.Now()
	m.err = err
	e := Event{Type: EventFinished, Timestamp: m.finished}
	if res != nil {
		r := *res
		m.result = &r
		e.Method = r.Model.Type.String()
		e.Unit = r.Model.Unit.Name
		e.Ellipsoid = r.Ellipsoid.Name
		e.Error = r.Error
	}
	if err != nil {
		e.Err = err.Error()
	}
	m.addEvent(e)
}

// addEvent adds an event to the ring buffer.
func (m *Manager) addEvent(e Event) {
	if len(m.events) < m.maxEvents {
		m.events = append(m.events, e)
	} else {
		m.events[m.eventWriteAt] = e
		m.eventWriteAt = (m.eventWriteAt + 1) % m.maxEvents
	}
}

// Snapshot represents an immutable snapshot of current state.
type Snapshot struct {
	Started     time.Time
	Elapsed     time.Duration
	Done        bool
	Evaluations int64
	Attempts    int
	Failures    int
	Best        *fit.Attempt
	BestHistory []TimeSeries
	Result      *fit.Result
	Err         error
	Events      []Event
}

// BestError returns the best error so far, or +Inf.
func (s Snapshot) BestError() float64 {
	if s.Best == nil {
		return math.Inf(1)
	}
	return s.Best.Error
}

// Snapshot returns a consistent snapshot of current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	done := !m.finished.IsZero()
	end := time.Now()
	if done {
		end = m.finished
	}

	var best *fit.Attempt
	if m.best != nil {
		b := *m.best
		best = &b
	}
	var result *fit.Result
	if m.result != nil {
		r := *m.result
		result = &r
	}
	history := make([]TimeSeries, len(m.history))
	copy(history, m.history)

	return Snapshot{
		Started:     m.started,
		Elapsed:     end.Sub(m.started),
		Done:        done,
		Evaluations: m.evaluations,
		Attempts:    m.attempts,
		Failures:    m.failures,
		Best:        best,
		BestHistory: history,
		Result:      result,
		Err:         m.err,
		Events:      m.getEventsOrdered(),
	}
}

// getEventsOrdered returns events in chronological order.
func (m *Manager) getEventsOrdered() []Event {
	if len(m.events) == 0 {
		return nil
	}

	// If buffer isn't full yet, just copy
	if len(m.events) < m.maxEvents {
		result := make([]Event, len(m.events))
		copy(result, m.events)
		return result
	}

	// Ring buffer is full, reorder from oldest to newest
	result := make([]Event, m.maxEvents)
	for i := 0; i < m.maxEvents; i++ {
		idx := (m.eventWriteAt + i) % m.maxEvents
		result[i] = m.events[idx]
	}
	return result
}

// RecentEvents returns the last n events.
func (m *Manager) RecentEvents(n int) []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.getEventsOrdered()
	if len(all) <= n {
		return all
	}
	return all[len(all)-n:]
}

// RefreshInterval returns the configured refresh interval.
func (m *Manager) RefreshInterval() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refreshInterval
}

// SetRefreshInterval updates the refresh interval.
func (m *Manager) SetRefreshInterval(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshInterval = d
}

// HasData returns true once at least one attempt succeeded.
func (m *Manager) HasData() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.best != nil
}
