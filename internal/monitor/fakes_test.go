package monitor

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"busz-backend/internal/tago"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSource struct {
	mu          sync.Mutex
	stops       []tago.Stop
	stopsErr    error
	arrivals    []tago.Arrival
	arrivalsErr error
	findCalls   int
}

func (f *fakeSource) FindStopsNear(_ context.Context, _, _ float64) ([]tago.Stop, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++
	if f.stopsErr != nil {
		return nil, f.stopsErr
	}
	return f.stops, nil
}

func (f *fakeSource) ArrivalsAt(_ context.Context, _, _ string) ([]tago.Arrival, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.arrivalsErr != nil {
		return nil, f.arrivalsErr
	}
	return f.arrivals, nil
}

func (f *fakeSource) findCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findCalls
}

type pushRecord struct {
	sessionID string
	event     string
	payload   any
}

type fakePusher struct {
	ch chan pushRecord
}

func newFakePusher() *fakePusher {
	return &fakePusher{ch: make(chan pushRecord, 100)}
}

func (p *fakePusher) Push(sessionID, event string, payload any) {
	select {
	case p.ch <- pushRecord{sessionID: sessionID, event: event, payload: payload}:
	default:
	}
}

func (p *fakePusher) next(t *testing.T, timeout time.Duration) pushRecord {
	t.Helper()
	select {
	case rec := <-p.ch:
		return rec
	case <-time.After(timeout):
		t.Fatalf("no push within %v", timeout)
		return pushRecord{}
	}
}

func (p *fakePusher) expectNone(t *testing.T, window time.Duration) {
	t.Helper()
	select {
	case rec := <-p.ch:
		t.Fatalf("unexpected push: %+v", rec)
	case <-time.After(window):
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

var gangnamStop = tago.Stop{
	ID:       "DJB8001793",
	Name:     "강남역",
	CityCode: "25",
	Lat:      37.497975,
	Lng:      127.027568,
}
