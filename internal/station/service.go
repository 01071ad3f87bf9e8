// Package station serves the session-scoped arrival board: the full list of
// buses expected at the stop a monitoring session already resolved.
package station

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"
	"time"

	"busz-backend/internal/geo"
	"busz-backend/internal/monitor"
	"busz-backend/internal/tago"
)

// ErrRouteNotFound means the upstream has no record for the route ID.
var ErrRouteNotFound = errors.New("route not found")

// Directory is the stop/route lookup side of the upstream API, the part that
// needs no session. *tago.Client satisfies it.
type Directory interface {
	FindStopsByName(ctx context.Context, name, cityCode string) ([]tago.Stop, error)
	RouteInfo(ctx context.Context, routeID string) (*tago.Route, error)
}

type Service struct {
	store     *monitor.Store
	source    monitor.ArrivalSource
	directory Directory
	resolver  *monitor.StopResolver
	logger    *slog.Logger
}

func NewService(store *monitor.Store, source monitor.ArrivalSource, directory Directory, resolver *monitor.StopResolver, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		source:    source,
		directory: directory,
		resolver:  resolver,
		logger:    logger,
	}
}

type StationInfo struct {
	StationName      string  `json:"station_name"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	DistanceFromUser int     `json:"distance_from_user"`
}

type BusEntry struct {
	RouteName   string `json:"route_name"`
	ArrivalTime int    `json:"arrival_time"`
}

type Snapshot struct {
	Timestamp  string      `json:"timestamp"`
	Station    StationInfo `json:"station"`
	Buses      []BusEntry  `json:"buses"`
	TotalCount int         `json:"total_count"`
}

// Snapshot returns every route's soonest-known arrival at the session's
// stop, soonest first, entries without a prediction last. Requires a live
// session; reuses its cached stop when present.
func (s *Service) Snapshot(ctx context.Context, sessionID string) (*Snapshot, error) {
	if !s.store.IsActiveAndValid(sessionID) {
		return nil, monitor.ErrNoActiveSession
	}
	sess, ok := s.store.Get(sessionID)
	if !ok {
		return nil, monitor.ErrSessionNotFound
	}

	stop, _, err := s.resolver.ResolveForSession(ctx, sess)
	if err != nil {
		return nil, err
	}

	arrivals, err := s.source.ArrivalsAt(ctx, stop.ID, stop.CityCode)
	if err != nil {
		return nil, err
	}

	buses := make([]BusEntry, 0, len(arrivals))
	for _, a := range arrivals {
		buses = append(buses, BusEntry{RouteName: a.RouteName, ArrivalTime: a.Seconds})
	}
	sort.SliceStable(buses, func(i, j int) bool {
		return sortKey(buses[i].ArrivalTime) < sortKey(buses[j].ArrivalTime)
	})

	user := geo.Point{Lat: sess.Lat, Lng: sess.Lng}
	return &Snapshot{
		Timestamp: time.Now().Format(time.RFC3339),
		Station: StationInfo{
			StationName:      stop.Name,
			Latitude:         stop.Lat,
			Longitude:        stop.Lng,
			DistanceFromUser: int(math.Round(geo.Haversine(user, stop.Position()))),
		},
		Buses:      buses,
		TotalCount: len(buses),
	}, nil
}

// SearchStops looks stops up by name, optionally scoped to a city code. An
// empty result is not an error.
func (s *Service) SearchStops(ctx context.Context, name, cityCode string) ([]tago.Stop, error) {
	return s.directory.FindStopsByName(ctx, name, cityCode)
}

// RouteDetail returns the route record behind a route ID, or
// ErrRouteNotFound when the upstream knows nothing about it.
func (s *Service) RouteDetail(ctx context.Context, routeID string) (*tago.Route, error) {
	route, err := s.directory.RouteInfo(ctx, routeID)
	if err != nil {
		return nil, err
	}
	if route == nil {
		return nil, ErrRouteNotFound
	}
	return route, nil
}

// sortKey pushes no-data entries (<= 0) past every real prediction.
func sortKey(seconds int) int {
	if seconds <= 0 {
		return math.MaxInt
	}
	return seconds
}
