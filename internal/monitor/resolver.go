package monitor

import (
	"context"
	"log/slog"

	"busz-backend/internal/geo"
	"busz-backend/internal/tago"
)

// StopResolver finds the nearest stop for a coordinate, going through the
// shared stop cache before hitting the upstream API, and writes per-session
// resolutions back through the Store.
type StopResolver struct {
	store  *Store
	source ArrivalSource
	cache  StopCache
	logger *slog.Logger
}

func NewStopResolver(store *Store, source ArrivalSource, cache StopCache, logger *slog.Logger) *StopResolver {
	return &StopResolver{
		store:  store,
		source: source,
		cache:  cache,
		logger: logger,
	}
}

// ResolveForSession returns the monitored stop for a session and its distance
// from the user in meters. The first successful resolution is written back to
// the Store so later snapshot reads see it.
func (r *StopResolver) ResolveForSession(ctx context.Context, sess Session) (tago.Stop, float64, error) {
	user := geo.Point{Lat: sess.Lat, Lng: sess.Lng}
	if sess.CachedStop != nil {
		return *sess.CachedStop, geo.Haversine(user, sess.CachedStop.Position()), nil
	}

	stop, dist, err := r.ResolvePoint(ctx, sess.Lat, sess.Lng)
	if err != nil {
		return tago.Stop{}, 0, err
	}
	r.store.SetCachedStop(sess.ID, &stop)
	return stop, dist, nil
}

// ResolvePoint resolves the nearest stop to a raw coordinate. Fails with
// geo.ErrNoStopsNearby when the upstream reports no stops around the point,
// and with *tago.APIError on upstream failure.
func (r *StopResolver) ResolvePoint(ctx context.Context, lat, lng float64) (tago.Stop, float64, error) {
	user := geo.Point{Lat: lat, Lng: lng}

	if r.cache != nil {
		cached, err := r.cache.GetStop(ctx, lat, lng)
		if err != nil {
			r.logger.Warn("stop cache read failed", "error", err)
		} else if cached != nil {
			return *cached, geo.Haversine(user, cached.Position()), nil
		}
	}

	stops, err := r.source.FindStopsNear(ctx, lat, lng)
	if err != nil {
		return tago.Stop{}, 0, err
	}

	idx, dist, err := geo.Nearest(user, stops)
	if err != nil {
		return tago.Stop{}, 0, err
	}
	stop := stops[idx]

	if r.cache != nil {
		if err := r.cache.SetStop(ctx, lat, lng, &stop); err != nil {
			r.logger.Warn("stop cache write failed", "error", err)
		}
	}
	return stop, dist, nil
}
