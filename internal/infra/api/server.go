package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"video-recon-pipeline/internal/config"
	"video-recon-pipeline/internal/domain"
	"video-recon-pipeline/internal/domain/ports/repository"
	"video-recon-pipeline/internal/infra/metrics"
	red "video-recon-pipeline/internal/infra/redis"
	"video-recon-pipeline/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var allowedUploadExt = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true,
}

// Pinger is the slice of the queue-store client /health needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the ingest/admin HTTP surface: video upload + enqueue, job
// status for dashboards, health, Prometheus metrics, and a JWT-guarded
// admin API over the dead-letter list and the terminal-job archive.
type Server struct {
	cfg         config.APIConfig
	inputRoot   string
	submit      *usecase.Submit
	status      repository.JobStatusStore
	queue       repository.JobQueue
	deadLetters repository.DeadLetterStore
	archive     repository.JobArchive
	redis       Pinger
	limiter     *red.RateLimiter
	auth        *AuthManager
	log         *zerolog.Logger
}

func NewServer(
	cfg config.APIConfig,
	inputRoot string,
	submit *usecase.Submit,
	status repository.JobStatusStore,
	queue repository.JobQueue,
	deadLetters repository.DeadLetterStore,
	archive repository.JobArchive,
	redisClient Pinger,
	limiter *red.RateLimiter,
	dev bool,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "APIServer").Logger()
	var auth *AuthManager
	if cfg.AdminAPIKey != "" {
		auth = NewAuthManager(cfg.JWTSecret, !dev, cfg.SessionTTL)
	}
	return &Server{
		cfg:         cfg,
		inputRoot:   inputRoot,
		submit:      submit,
		status:      status,
		queue:       queue,
		deadLetters: deadLetters,
		archive:     archive,
		redis:       redisClient,
		limiter:     limiter,
		auth:        auth,
		log:         &l,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), Recover(s.log), RequestLog(s.log))

	r.Post("/upload", s.handleUpload)
	r.Get("/job/{jobID}/status", s.handleJobStatus)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	if s.auth != nil {
		r.Route("/api/v1", func(r chi.Router) {
			r.Post("/admin/login", s.handleLogin)
			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Get("/admin/deadletter", s.handleDeadLetterList)
				r.Post("/admin/deadletter/{jobID}/requeue", s.handleDeadLetterRequeue)
				r.Get("/jobs", s.handleArchiveList)
			})
		})
	}
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
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting API server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ----- upload / status / health -----

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ok, err := s.limiter.Allow(r.Context(), red.UploadKey(host), 10, time.Minute)
		if err == nil && !ok {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "upload rate limit exceeded"})
			return
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing file field"})
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedUploadExt[ext] {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported file type " + ext})
		return
	}

	// The stored name carries the job id so work dirs, scene dirs and
	// uploads can all be correlated on disk.
	jobID := uuid.NewString()
	dstPath := filepath.Join(s.inputRoot, jobID+"_"+filename)
	dst, err := os.Create(dstPath)
	if err != nil {
		s.log.Error().Err(err).Str("path", dstPath).Msg("upload save failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not store upload"})
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(dstPath)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "upload truncated"})
		return
	}
	dst.Close()

	job, err := s.submit.EnqueueWithID(r.Context(), jobID, dstPath, filename, 0)
	if err != nil {
		os.Remove(dstPath)
		s.log.Error().Err(err).Msg("enqueue failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not enqueue job"})
		return
	}

	if depth, err := s.queue.Depth(r.Context()); err == nil {
		metrics.SetQueueDepth("pending", depth)
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "queued",
		"job_id":  job.ID,
		"message": "video queued for reconstruction",
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, err := s.status.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
			return
		}
		s.log.Error().Err(err).Str("job_id", jobID).Msg("status read failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "status read failed"})
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	redisOK := s.redis.Ping(ctx) == nil
	_, gpuErr := os.Stat("/dev/nvidia0")

	status := http.StatusOK
	if !redisOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"redis": redisOK,
		"gpu":   gpuErr == nil,
	})
}

// ----- admin -----

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.APIKey != s.cfg.AdminAPIKey {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not mint session"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil || claims.Role != "admin" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleDeadLetterList(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	entries, err := s.deadLetters.List(r.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("dead-letter list failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

func (s *Server) handleDeadLetterRequeue(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, err := s.submit.RequeueDeadLetter(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no dead-letter entry for job"})
			return
		}
		s.log.Error().Err(err).Str("job_id", jobID).Msg("requeue failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "requeue failed"})
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleArchiveList(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	jobs, err := s.archive.ListRecent(r.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("archive list failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "archive list failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs, "count": len(jobs)})
}

// ----- helpers -----

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
