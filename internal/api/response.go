package api

import (
	"encoding/json"
	"net/http"
	"time"

	"busz-backend/internal/station"
	"busz-backend/internal/tago"
)

type stationBusesResponse struct {
	Success    bool                `json:"success"`
	Timestamp  string              `json:"timestamp"`
	Station    station.StationInfo `json:"station"`
	Buses      []station.BusEntry  `json:"buses"`
	TotalCount int                 `json:"total_count"`
}

type stationSearchResponse struct {
	Success    bool        `json:"success"`
	Timestamp  string      `json:"timestamp"`
	Stations   []tago.Stop `json:"stations"`
	TotalCount int         `json:"total_count"`
}

type routeInfoResponse struct {
	Success   bool        `json:"success"`
	Timestamp string      `json:"timestamp"`
	Route     *tago.Route `json:"route"`
}

type errorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, errorResponse{
		Success:   false,
		Error:     message,
		ErrorCode: code,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}
