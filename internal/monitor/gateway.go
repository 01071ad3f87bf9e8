package monitor

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"busz-backend/internal/config"
	"busz-backend/internal/geo"
)

const (
	defaultIntervalSeconds = 30
	minIntervalSeconds     = 10
)

// Gateway is the connection-lifecycle glue between a transport and the
// monitoring core: it validates requests, creates sessions and spawns
// workers. Request handling never blocks on a worker's network call.
type Gateway struct {
	store    *Store
	source   ArrivalSource
	resolver *StopResolver
	pusher   Pusher
	metrics  *Collector
	logger   *slog.Logger
	validate *validator.Validate

	maxStopDistance float64
	distancePolicy  config.StopDistancePolicy
}

func NewGateway(store *Store, source ArrivalSource, resolver *StopResolver, pusher Pusher,
	metrics *Collector, logger *slog.Logger, maxStopDistance float64,
	distancePolicy config.StopDistancePolicy) *Gateway {
	return &Gateway{
		store:           store,
		source:          source,
		resolver:        resolver,
		pusher:          pusher,
		metrics:         metrics,
		logger:          logger,
		validate:        validator.New(),
		maxStopDistance: maxStopDistance,
		distancePolicy:  distancePolicy,
	}
}

type StartMonitoringRequest struct {
	Lat       *float64        `json:"lat" validate:"required"`
	Lng       *float64        `json:"lng" validate:"required"`
	BusNumber string          `json:"bus_number" validate:"required"`
	Interval  json.RawMessage `json:"interval"`
}

type StartAck struct {
	Message   string `json:"message"`
	BusNumber string `json:"bus_number"`
	Interval  int    `json:"interval"`
	SessionID string `json:"session_id"`
}

type StopAck struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type StatusReply struct {
	Active    bool   `json:"active"`
	BusNumber string `json:"bus_number,omitempty"`
	Interval  int    `json:"interval,omitempty"`
	SessionID string `json:"session_id"`
}

type StatsReply struct {
	ActiveSessions int    `json:"active_sessions"`
	Timestamp      string `json:"timestamp"`
}

type ConnectedReply struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// OnConnect performs no allocation; the greeting is pure bookkeeping.
func (g *Gateway) OnConnect(sessionID string) ConnectedReply {
	g.logger.Info("client connected", "sessionID", sessionID)
	return ConnectedReply{
		Message:   "서버에 연결되었습니다",
		SessionID: sessionID,
	}
}

// OnDisconnect tears the session down. Idempotent when already absent.
func (g *Gateway) OnDisconnect(sessionID string) {
	g.logger.Info("client disconnected", "sessionID", sessionID)
	if g.store.Remove(sessionID) {
		g.sessionRemoved()
	}
}

// StartMonitoring validates the request, registers a session (replacing any
// prior one for the same ID) and spawns its worker. The spawn is
// fire-and-forget; the store keeps the cancellation handle.
func (g *Gateway) StartMonitoring(sessionID string, req StartMonitoringRequest) (*StartAck, error) {
	if err := g.validate.Struct(req); err != nil {
		return nil, &ValidationError{Reason: "위도, 경도, 버스번호가 모두 필요합니다"}
	}
	if !geo.ValidCoordinates(*req.Lat, *req.Lng) {
		return nil, &ValidationError{Reason: "유효하지 않은 좌표입니다"}
	}

	interval := normalizeInterval(req.Interval)

	sess := Session{
		ID:        sessionID,
		Lat:       *req.Lat,
		Lng:       *req.Lng,
		BusNumber: req.BusNumber,
		Interval:  interval,
	}

	runCtx := g.store.Create(sess)
	w := newWorker(sess, g.store, g.source, g.resolver, g.pusher, g.metrics, g.logger,
		g.maxStopDistance, g.distancePolicy)
	g.store.Spawn(func() { w.Run(runCtx) })

	if g.metrics != nil {
		g.metrics.SessionsStarted.Inc()
		g.metrics.ActiveSessions.Set(float64(g.store.Count()))
	}
	g.logger.Info("monitoring started", "sessionID", sessionID, "busNumber", req.BusNumber, "interval", interval)

	return &StartAck{
		Message:   req.BusNumber + "번 버스 실시간 모니터링을 시작합니다",
		BusNumber: req.BusNumber,
		Interval:  interval,
		SessionID: sessionID,
	}, nil
}

// StopMonitoring removes the session. A stop without an active session is
// not exceptional; it is reported as ErrNoActiveSession for the transport to
// phrase.
func (g *Gateway) StopMonitoring(sessionID string) (*StopAck, error) {
	if !g.store.Remove(sessionID) {
		return nil, ErrNoActiveSession
	}
	g.sessionRemoved()
	g.logger.Info("monitoring stopped", "sessionID", sessionID)
	return &StopAck{
		Message:   "버스 모니터링이 중단되었습니다",
		SessionID: sessionID,
	}, nil
}

func (g *Gateway) SessionStatus(sessionID string) StatusReply {
	sess, ok := g.store.Get(sessionID)
	if !ok {
		return StatusReply{Active: false, SessionID: sessionID}
	}
	return StatusReply{
		Active:    sess.Status == StatusActive,
		BusNumber: sess.BusNumber,
		Interval:  sess.Interval,
		SessionID: sessionID,
	}
}

func (g *Gateway) ServerStats() StatsReply {
	return StatsReply{
		ActiveSessions: g.store.Count(),
		Timestamp:      time.Now().Format(time.RFC3339),
	}
}

func (g *Gateway) sessionRemoved() {
	if g.metrics != nil {
		g.metrics.SessionsStopped.Inc()
		g.metrics.ActiveSessions.Set(float64(g.store.Count()))
	}
}

// normalizeInterval coerces the requested poll interval: absent, non-integer
// or below the minimum all fall back to the default. Never rejects.
func normalizeInterval(raw json.RawMessage) int {
	if len(raw) == 0 {
		return defaultIntervalSeconds
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return defaultIntervalSeconds
	}
	if n < minIntervalSeconds {
		return defaultIntervalSeconds
	}
	return n
}
