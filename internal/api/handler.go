package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/matheodrd/httphelper/handler"

	"busz-backend/internal/monitor"
	"busz-backend/internal/station"
	"busz-backend/internal/tago"
)

func (s *Server) wsHandler() http.HandlerFunc {
	return handler.Handler(func(w http.ResponseWriter, r *http.Request) error {
		sessionID := r.URL.Query().Get("session_id")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			return handler.NewErrWithStatus(http.StatusInternalServerError, fmt.Errorf("websocket accept: %w", err))
		}

		s.wsm.HandleNewConnection(sessionID, conn)
		return nil
	})
}

// stationBusesHandler is the session-scoped arrival board: requires the
// X-Session-ID of a live monitoring session.
func (s *Server) stationBusesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.Header.Get("X-Session-ID")

		snap, err := s.stations.Snapshot(r.Context(), sessionID)
		if err != nil {
			var apiErr *tago.APIError
			switch {
			case errors.Is(err, monitor.ErrNoActiveSession):
				s.writeError(w, http.StatusUnauthorized, "NO_ACTIVE_SESSION",
					"활성 모니터링 세션이 없습니다. 모니터링을 먼저 시작해주세요.")
			case errors.Is(err, monitor.ErrSessionNotFound):
				s.writeError(w, http.StatusUnauthorized, "SESSION_NOT_FOUND",
					"세션 정보를 찾을 수 없습니다.")
			case errors.As(err, &apiErr):
				s.logger.Error("station snapshot failed upstream", "sessionID", sessionID, "error", err)
				s.writeError(w, http.StatusServiceUnavailable, "TAGO_API_ERROR",
					"버스 정보 조회 실패")
			default:
				s.logger.Error("station snapshot failed", "sessionID", sessionID, "error", err)
				s.writeError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR",
					"서버 내부 오류가 발생했습니다")
			}
			return
		}

		s.writeJSON(w, http.StatusOK, stationBusesResponse{
			Success:    true,
			Timestamp:  snap.Timestamp,
			Station:    snap.Station,
			Buses:      snap.Buses,
			TotalCount: snap.TotalCount,
		})
	}
}

// stationSearchHandler looks stops up by name. Public: needs no session.
func (s *Server) stationSearchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSpace(r.URL.Query().Get("name"))
		if name == "" {
			s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "정류소 이름이 필요합니다")
			return
		}

		stops, err := s.stations.SearchStops(r.Context(), name, r.URL.Query().Get("city_code"))
		if err != nil {
			var apiErr *tago.APIError
			if errors.As(err, &apiErr) {
				s.logger.Error("stop search failed upstream", "name", name, "error", err)
				s.writeError(w, http.StatusServiceUnavailable, "TAGO_API_ERROR", "버스 정보 조회 실패")
				return
			}
			s.logger.Error("stop search failed", "name", name, "error", err)
			s.writeError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "서버 내부 오류가 발생했습니다")
			return
		}

		s.writeJSON(w, http.StatusOK, stationSearchResponse{
			Success:    true,
			Timestamp:  time.Now().Format(time.RFC3339),
			Stations:   stops,
			TotalCount: len(stops),
		})
	}
}

func (s *Server) routeInfoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		routeID := chi.URLParam(r, "routeID")

		route, err := s.stations.RouteDetail(r.Context(), routeID)
		if err != nil {
			var apiErr *tago.APIError
			switch {
			case errors.Is(err, station.ErrRouteNotFound):
				s.writeError(w, http.StatusNotFound, "ROUTE_NOT_FOUND", "노선 정보를 찾을 수 없습니다")
			case errors.As(err, &apiErr):
				s.logger.Error("route lookup failed upstream", "routeID", routeID, "error", err)
				s.writeError(w, http.StatusServiceUnavailable, "TAGO_API_ERROR", "버스 정보 조회 실패")
			default:
				s.logger.Error("route lookup failed", "routeID", routeID, "error", err)
				s.writeError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "서버 내부 오류가 발생했습니다")
			}
			return
		}

		s.writeJSON(w, http.StatusOK, routeInfoResponse{
			Success:   true,
			Timestamp: time.Now().Format(time.RFC3339),
			Route:     route,
		})
	}
}
