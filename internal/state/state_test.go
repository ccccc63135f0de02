package state

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/litescript/crsfit/internal/fit"
	"github.com/litescript/crsfit/internal/geodesy"
	"github.com/litescript/crsfit/internal/projection"
)

func attempt(typ projection.Type, errDeg float64) fit.Attempt {
	return fit.Attempt{Type: typ, Unit: geodesy.Metre, Ellipsoid: geodesy.WGS84, Error: errDeg}
}

func TestNewManager(t *testing.T) {
	cfg := DefaultConfig()
	m := NewManager(cfg)

	if m == nil {
		t.Fatal("NewManager returned nil")
	}

	if m.RefreshInterval() != cfg.RefreshInterval {
		t.Errorf("RefreshInterval = %v, want %v", m.RefreshInterval(), cfg.RefreshInterval)
	}

	if m.HasData() {
		t.Error("HasData should be false initially")
	}

	if got := m.Snapshot().BestError(); !math.IsInf(got, 1) {
		t.Errorf("BestError = %v, want +Inf", got)
	}
}

func TestManager_Record(t *testing.T) {
	m := NewManager(DefaultConfig())

	m.Record(attempt(projection.None, 3.2))
	m.Record(attempt(projection.TransverseMercator, 0.01))
	m.Record(attempt(projection.Polyconic, 0.5))

	if !m.HasData() {
		t.Error("HasData should be true after a successful attempt")
	}

	snap := m.Snapshot()
	if snap.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", snap.Attempts)
	}
	if snap.Best == nil || snap.Best.Type != projection.TransverseMercator {
		t.Fatalf("Best = %+v, want Transverse Mercator", snap.Best)
	}
	if snap.BestError() != 0.01 {
		t.Errorf("BestError = %v, want 0.01", snap.BestError())
	}
	if len(snap.BestHistory) != 2 {
		t.Errorf("BestHistory length = %d, want 2", len(snap.BestHistory))
	}
	if snap.Done {
		t.Error("Done should be false before Finish")
	}
}

func TestManager_RecordFailure(t *testing.T) {
	m := NewManager(DefaultConfig())

	a := attempt(projection.Krovak, math.Inf(1))
	a.Err = projection.ErrUnsupportedProjection
	m.Record(a)

	snap := m.Snapshot()
	if snap.Failures != 1 {
		t.Errorf("Failures = %d, want 1", snap.Failures)
	}
	if snap.Best != nil {
		t.Error("a failed attempt must not become the best")
	}
	events := m.RecentEvents(10)
	if len(events) != 1 || events[0].Type != EventFailed {
		t.Fatalf("events = %+v, want one FAILED", events)
	}
	if events[0].Err == "" {
		t.Error("FAILED event should carry the error text")
	}
}

func TestManager_EventTypes(t *testing.T) {
	m := NewManager(DefaultConfig())

	m.Record(attempt(projection.TransverseMercator, 0.1))
	m.Record(attempt(projection.TransverseMercator, 0.2))
	m.Record(attempt(projection.CassiniSoldner, 0.05))

	events := m.RecentEvents(10)
	want := []EventType{EventImproved, EventAttempt, EventImproved}
	if len(events) != len(want) {
		t.Fatalf("events = %d, want %d", len(events), len(want))
	}
	for i, w := range want {
		if events[i].Type != w {
			t.Errorf("event %d type = %q, want %q", i, events[i].Type, w)
		}
	}
	if events[2].Method != projection.CassiniSoldner.String() {
		t.Errorf("method = %q, want %q", events[2].Method, projection.CassiniSoldner.String())
	}
}

func TestManager_Finish(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.Record(attempt(projection.TransverseMercator, 0.01))
	m.SetEvaluations(1234)

	res := &fit.Result{Model: projection.New(projection.TransverseMercator), Ellipsoid: geodesy.WGS84, Error: 0.01}
	m.Finish(res, nil)
	res.Error = 99

	snap := m.Snapshot()
	if !snap.Done {
		t.Error("Done should be true after Finish")
	}
	if snap.Result == nil || snap.Result.Error != 0.01 {
		t.Errorf("Result = %+v, want a copy with error 0.01", snap.Result)
	}
	if snap.Evaluations != 1234 {
		t.Errorf("Evaluations = %d, want 1234", snap.Evaluations)
	}
	last := snap.Events[len(snap.Events)-1]
	if last.Type != EventFinished {
		t.Errorf("last event = %q, want FINISHED", last.Type)
	}

	// Elapsed freezes once finished.
	e1 := m.Snapshot().Elapsed
	time.Sleep(5 * time.Millisecond)
	if e2 := m.Snapshot().Elapsed; e2 != e1 {
		t.Errorf("Elapsed changed after Finish: %v -> %v", e1, e2)
	}
}

func TestManager_FinishWithError(t *testing.T) {
	m := NewManager(DefaultConfig())
	testErr := errors.New("no candidate")
	m.Finish(nil, testErr)

	snap := m.Snapshot()
	if snap.Err != testErr {
		t.Errorf("Err = %v, want %v", snap.Err, testErr)
	}
	if snap.Result != nil {
		t.Error("Result should be nil")
	}
}

func TestManager_HistoryBuffer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxHistoryLen = 3
	m := NewManager(cfg)

	// Five strictly improving attempts
	for i := 0; i < 5; i++ {
		m.Record(attempt(projection.TransverseMercator, 1/float64(i+1)))
	}

	hist := m.Snapshot().BestHistory
	if len(hist) != 3 {
		t.Fatalf("history length = %d, want 3", len(hist))
	}
	if hist[2].Value != 0.2 {
		t.Errorf("last history value = %v, want 0.2", hist[2].Value)
	}
}

func TestManager_Snapshot_IsCopy(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.Record(attempt(projection.TransverseMercator, 0.1))

	snap := m.Snapshot()
	snap.Best.Error = 999
	snap.BestHistory[0].Value = 999

	snap2 := m.Snapshot()
	if snap2.Best.Error == 999 || snap2.BestHistory[0].Value == 999 {
		t.Error("Snapshot modification affected manager state")
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	m := NewManager(DefaultConfig())

	var wg sync.WaitGroup
	iterations := 100

	// Writer goroutines, as the fitter's branches would be
	for w := 0; w < 3; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				m.Record(attempt(projection.TransverseMercator, float64(i)))
				m.SetEvaluations(int64(i))
			}
		}()
	}

	// Reader goroutines
	for r := 0; r < 5; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				_ = m.Snapshot()
				_ = m.HasData()
				_ = m.RefreshInterval()
				_ = m.RecentEvents(5)
			}
		}()
	}

	wg.Wait()

	if got := m.Snapshot().Attempts; got != 3*iterations {
		t.Errorf("Attempts = %d, want %d", got, 3*iterations)
	}
}

func TestManager_SetRefreshInterval(t *testing.T) {
	m := NewManager(DefaultConfig())

	newInterval := 30 * time.Second
	m.SetRefreshInterval(newInterval)

	if m.RefreshInterval() != newInterval {
		t.Errorf("RefreshInterval = %v, want %v", m.RefreshInterval(), newInterval)
	}
}

func TestManager_EventRingBuffer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEvents = 5
	m := NewManager(cfg)

	for i := 0; i < 10; i++ {
		m.Record(attempt(projection.TransverseMercator, float64(10-i)))
	}

	events := m.RecentEvents(100)
	if len(events) != 5 {
		t.Errorf("events count = %d, want 5 (max)", len(events))
	}

	// Oldest kept is the sixth attempt
	if events[0].Error != 5 {
		t.Errorf("oldest event error = %v, want 5", events[0].Error)
	}

	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.Before(events[i-1].Timestamp) {
			t.Errorf("events not in chronological order at index %d", i)
		}
	}
}

func TestManager_ImplementsRecorder(t *testing.T) {
	var _ fit.Recorder = NewManager(DefaultConfig())
}
