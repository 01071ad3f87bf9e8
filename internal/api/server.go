package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"busz-backend/internal/config"
	"busz-backend/internal/monitor"
	"busz-backend/internal/station"
	"busz-backend/internal/ws"
)

type Server struct {
	Config   *config.Config
	logger   *slog.Logger
	wsm      *ws.Manager
	stations *station.Service
	metrics  *monitor.Collector
}

func NewServer(config *config.Config, logger *slog.Logger, wsm *ws.Manager, stations *station.Service, metrics *monitor.Collector) *Server {
	return &Server{
		Config:   config,
		logger:   logger,
		wsm:      wsm,
		stations: stations,
		metrics:  metrics,
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Add("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("API server is started.")); err != nil {
		s.logger.Error(fmt.Sprintf("Error writing response: %v", err))
	}
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With", "X-Session-ID"},
		AllowCredentials: false,
	}))

	r.Get("/health", s.health)
	r.Get("/ws", s.wsHandler())
	r.Post("/api/station/buses", s.stationBusesHandler())
	r.Get("/api/stations/search", s.stationSearchHandler())
	r.Get("/api/routes/{routeID}", s.routeInfoHandler())
	r.Handle("/metrics", s.metrics.Handler())
	return r
}

func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:    net.JoinHostPort(s.Config.APIServerHost, s.Config.APIServerPort),
		Handler: s.router(),
	}

	go func() {
		s.logger.Info("API server is running", "port", s.Config.APIServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("API server failed to listen and serve", "error", err)
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("API server failed to shutdown", "error", err)
		}
	}()

	wg.Wait()
	return nil
}
