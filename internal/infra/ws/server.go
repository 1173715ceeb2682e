package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"video-recon-pipeline/internal/config"
	"video-recon-pipeline/internal/domain/model"
	"video-recon-pipeline/internal/domain/ports/repository"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Server is the progress gateway: WebSocket fan-out to dashboards plus
// the HTTP bridge workers push into. Progress posted over HTTP is
// re-published to the Redis channel so pub/sub stays the authoritative
// path and every gateway instance sees it.
type Server struct {
	cfg      config.GatewayConfig
	hub      *Hub
	status   repository.JobStatusStore
	progress repository.ProgressPublisher
	upgrader websocket.Upgrader
	log      *zerolog.Logger
}

func NewServer(
	cfg config.GatewayConfig,
	hub *Hub,
	status repository.JobStatusStore,
	progress repository.ProgressPublisher,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "GatewayServer").Logger()
	return &Server{
		cfg:      cfg,
		hub:      hub,
		status:   status,
		progress: progress,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dashboards connect from arbitrary origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: &l,
	}
}

// HandleProgress is the hub-side consumer for the Redis progress
// listener.
func (s *Server) HandleProgress(ev model.ProgressEvent) {
	s.hub.Broadcast("progress_update", ev)
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/ws", s.handleWS)
	r.Post("/progress", s.handlePostProgress)
	r.Post("/metrics", s.handlePostMetrics)
	r.Post("/errors", s.handlePostError)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return r
}

func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting gateway server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	// net/http cancels r.Context() when this handler returns, hijacked
	// connections included; the pumps need a context that lives as long
	// as the connection does.
	client := newClient(context.WithoutCancel(r.Context()), conn, s.hub, s.status,
		s.cfg.PingInterval, s.cfg.PongWait, s.log)
	s.hub.register <- client
	go client.writePump()
	go client.readPump()
}

func (s *Server) handlePostProgress(w http.ResponseWriter, r *http.Request) {
	var ev model.ProgressEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil || ev.JobID == "" {
		http.Error(w, "bad progress payload", http.StatusBadRequest)
		return
	}
	if err := s.progress.Publish(r.Context(), ev); err != nil {
		// Pub/sub is the authoritative path; when it is down, at least
		// serve the clients on this instance directly.
		s.log.Warn().Err(err).Str("job_id", ev.JobID).Msg("progress republish failed")
		s.hub.Broadcast("progress_update", ev)
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handlePostMetrics(w http.ResponseWriter, r *http.Request) {
	var sample model.ResourceSample
	if err := json.NewDecoder(r.Body).Decode(&sample); err != nil {
		http.Error(w, "bad metrics payload", http.StatusBadRequest)
		return
	}
	s.hub.Broadcast("system_metrics", sample)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handlePostError(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Error == "" {
		http.Error(w, "bad error payload", http.StatusBadRequest)
		return
	}
	s.hub.Broadcast("error_report", map[string]string{"error": body.Error})
	w.WriteHeader(http.StatusOK)
}
