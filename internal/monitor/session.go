package monitor

import (
	"context"
	"errors"

	"busz-backend/internal/tago"
)

var (
	// ErrNoActiveSession tells the caller to start monitoring first.
	ErrNoActiveSession = errors.New("no active monitoring session")
	// ErrSessionNotFound means the session disappeared between checks.
	ErrSessionNotFound = errors.New("session not found")
)

// ValidationError rejects a client request before any state change.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

type Status string

const (
	StatusActive  Status = "active"
	StatusStopped Status = "stopped"
)

// Session binds one client connection to its monitoring parameters. Records
// are owned exclusively by the Store; callers get copies.
type Session struct {
	ID         string     `json:"session_id"`
	Lat        float64    `json:"lat"`
	Lng        float64    `json:"lng"`
	BusNumber  string     `json:"bus_number"`
	Interval   int        `json:"interval"`
	Status     Status     `json:"status"`
	CachedStop *tago.Stop `json:"cached_stop,omitempty"`
}

// ArrivalSource is the upstream transit-data boundary the core polls.
// *tago.Client satisfies it.
type ArrivalSource interface {
	FindStopsNear(ctx context.Context, lat, lng float64) ([]tago.Stop, error)
	ArrivalsAt(ctx context.Context, stopID, cityCode string) ([]tago.Arrival, error)
}

// StopCache is an optional shared cache of resolved nearest stops, keyed by
// coordinates. A miss is (nil, nil).
type StopCache interface {
	GetStop(ctx context.Context, lat, lng float64) (*tago.Stop, error)
	SetStop(ctx context.Context, lat, lng float64, stop *tago.Stop) error
}

// Pusher delivers a server-pushed event to one session's client. Delivery to
// an unknown session is a silent no-op (removal races are expected).
type Pusher interface {
	Push(sessionID, event string, payload any)
}
