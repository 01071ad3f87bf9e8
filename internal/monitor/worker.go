package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"busz-backend/internal/config"
	"busz-backend/internal/geo"
	"busz-backend/internal/tago"
)

// Worker is the background polling task bound 1:1 to a session. Parameters
// are copied at spawn time; changing them requires stop+restart. The Store
// stays authoritative: the worker rechecks it every cycle and never keeps a
// session copy of its own.
type Worker struct {
	sessionID string
	busNumber string
	interval  time.Duration

	store    *Store
	source   ArrivalSource
	resolver *StopResolver
	pusher   Pusher
	metrics  *Collector
	logger   *slog.Logger

	maxStopDistance float64
	distancePolicy  config.StopDistancePolicy
}

// Update is one bus_update push for a located stop.
type Update struct {
	Timestamp       string `json:"timestamp"`
	BusFound        bool   `json:"bus_found"`
	StationName     string `json:"station_name"`
	StationID       string `json:"station_id"`
	BusNumber       string `json:"bus_number"`
	ArrivalTime     int    `json:"arrival_time,omitempty"`
	ArrivalTimeFmt  string `json:"arrival_time_formatted,omitempty"`
	RemainingStops  int    `json:"remaining_stations,omitempty"`
	VehicleType     string `json:"vehicle_type,omitempty"`
	RouteType       string `json:"route_type,omitempty"`
	TotalBuses      int    `json:"total_buses,omitempty"`
	Message         string `json:"message,omitempty"`
	DistanceWarning string `json:"distance_warning,omitempty"`
}

// ErrorUpdate is one bus_update push for a cycle that produced no status.
type ErrorUpdate struct {
	Timestamp string `json:"timestamp"`
	Error     string `json:"error"`
}

func newWorker(sess Session, store *Store, source ArrivalSource, resolver *StopResolver,
	pusher Pusher, metrics *Collector, logger *slog.Logger,
	maxStopDistance float64, distancePolicy config.StopDistancePolicy) *Worker {
	return &Worker{
		sessionID:       sess.ID,
		busNumber:       sess.BusNumber,
		interval:        time.Duration(sess.Interval) * time.Second,
		store:           store,
		source:          source,
		resolver:        resolver,
		pusher:          pusher,
		metrics:         metrics,
		logger:          logger,
		maxStopDistance: maxStopDistance,
		distancePolicy:  distancePolicy,
	}
}

// Run executes the poll loop until cancellation, until the Store no longer
// knows the session, or until an unrecoverable upstream error. Cancellation
// is observed before each upstream call and during the inter-poll wait.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("monitoring worker started", "sessionID", w.sessionID, "busNumber", w.busNumber)
	defer w.logger.Info("monitoring worker exited", "sessionID", w.sessionID, "busNumber", w.busNumber)

	for {
		if ctx.Err() != nil || !w.store.IsActiveAndValid(w.sessionID) {
			return
		}

		if err := w.cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			// One unrecoverable error ends the worker: one error push,
			// then the session is gone.
			if w.metrics != nil {
				w.metrics.UpstreamErrors.Inc()
			}
			w.logger.Error("monitoring worker terminating", "sessionID", w.sessionID, "error", err)
			w.push(ErrorUpdate{
				Timestamp: time.Now().Format(time.RFC3339),
				Error:     "버스 정보 조회 실패: " + err.Error(),
			})
			w.store.Remove(w.sessionID)
			if w.metrics != nil {
				w.metrics.SessionsStopped.Inc()
				w.metrics.ActiveSessions.Set(float64(w.store.Count()))
			}
			return
		}

		timer := time.NewTimer(w.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// cycle performs one poll: resolve stop, fetch arrivals, push exactly one
// message. A non-nil return is unrecoverable; recoverable conditions are
// reported to the client and swallowed.
func (w *Worker) cycle(ctx context.Context) error {
	start := time.Now()
	if w.metrics != nil {
		w.metrics.Polls.Inc()
		defer func() {
			w.metrics.PollDuration.Observe(time.Since(start).Seconds())
		}()
	}

	timestamp := time.Now().Format(time.RFC3339)

	sess, ok := w.store.Get(w.sessionID)
	if !ok {
		return nil // removed mid-cycle, the loop check will exit
	}

	stop, dist, err := w.resolver.ResolveForSession(ctx, sess)
	if err != nil {
		if errors.Is(err, geo.ErrNoStopsNearby) {
			// Recoverable: report and try again next cycle.
			w.push(ErrorUpdate{Timestamp: timestamp, Error: "주변에 정류소가 없습니다"})
			return nil
		}
		return err
	}

	var warning string
	if dist > w.maxStopDistance {
		if w.distancePolicy == config.PolicyReject {
			w.push(ErrorUpdate{Timestamp: timestamp, Error: "주변에 정류소가 없습니다"})
			return nil
		}
		warning = tooFarWarning(stop.Name, dist)
	}

	arrivals, err := w.source.ArrivalsAt(ctx, stop.ID, stop.CityCode)
	if err != nil {
		return err
	}
	matching := tago.FilterByRoute(arrivals, w.busNumber)

	update := Update{
		Timestamp:       timestamp,
		StationName:     stop.Name,
		StationID:       stop.ID,
		BusNumber:       w.busNumber,
		DistanceWarning: warning,
	}

	if fastest := tago.FastestArrival(matching); fastest != nil {
		update.BusFound = true
		update.ArrivalTime = fastest.Seconds
		update.ArrivalTimeFmt = tago.FormatArrivalTime(fastest.Seconds)
		update.RemainingStops = fastest.RemainingStops
		update.VehicleType = fastest.VehicleType
		update.RouteType = fastest.RouteType
		update.TotalBuses = len(matching)
	} else {
		update.Message = w.busNumber + "번 버스를 찾을 수 없습니다"
	}

	w.push(update)
	return nil
}

func (w *Worker) push(payload any) {
	w.pusher.Push(w.sessionID, "bus_update", payload)
	if w.metrics != nil {
		w.metrics.UpdatesPushed.Inc()
	}
}

func tooFarWarning(stopName string, dist float64) string {
	return fmt.Sprintf("가장 가까운 정류소(%s)가 %.0fm 떨어져 있습니다. 정류소로 이동해주세요.", stopName, dist)
}
