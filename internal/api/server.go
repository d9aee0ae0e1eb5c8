package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/contact-harvester/internal/collector"
	"github.com/JakeFAU/contact-harvester/internal/config"
	"github.com/JakeFAU/contact-harvester/internal/harvest"
	"github.com/JakeFAU/contact-harvester/internal/metrics"
	"github.com/JakeFAU/contact-harvester/internal/progress"
	progresssinks "github.com/JakeFAU/contact-harvester/internal/progress/sinks"
)

// Service is the application surface the handlers drive.
type Service interface {
	Config() config.Config
	Store() harvest.Store
	Streams() *progresssinks.StreamSink
	StartRun(flow progress.Flow) *progress.Run
	Collect(ctx context.Context, req collector.Request, emit progress.Emitter) ([]harvest.Contact, error)
	ComposeMessage(subject, html, text string, attachments ...string) (harvest.Message, error)
	Send(
		ctx context.Context,
		contacts []harvest.Contact,
		msg harvest.Message,
		delay time.Duration,
		emit progress.Emitter,
	) (harvest.DispatchResult, error)
}

// Server wires HTTP handlers to the harvester services.
type Server struct {
	router chi.Router
	svc    Service
	runs   *Runs
	cfg    config.Config
	logger *zap.Logger

	// streamTail bounds how long a stream waits for trailing events after
	// its run has returned.
	streamTail time.Duration
}

const (
	requestTimeout    = 30 * time.Second
	defaultStreamTail = 2 * time.Second
)

// NewServer constructs a Server with middleware and routes.
func NewServer(svc Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		svc:    svc,
		runs:   NewRuns(),
		cfg:        svc.Config(),
		logger:     logger,
		streamTail: defaultStreamTail,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if s.cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(s.cfg.Auth.APIKey))
		}
		r.Group(func(r chi.Router) {
			r.Use(timeoutMiddleware(requestTimeout))
			r.Get("/config", s.getConfig)
			r.Get("/contacts", s.listContacts)
			r.Delete("/contacts/pending", s.clearPending)
			r.Get("/runs", s.listRuns)
			r.Post("/runs/{run_id}/cancel", s.cancelRun)
		})
		r.Get("/collect/stream", s.collectStream)
		r.Post("/send/stream", s.sendStream)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Runs exposes the active-run registry.
func (s *Server) Runs() *Runs {
	return s.runs
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getConfig(w http.ResponseWriter, _ *http.Request) {
	terms := s.cfg.Search.Terms
	if terms == nil {
		terms = []string{}
	}
	cities := s.cfg.Search.Cities
	if cities == nil {
		cities = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"searchTerms": terms, "cities": cities})
}

type contactStats struct {
	PendingCount int `json:"pendingCount"`
	SentCount    int `json:"sentCount"`
	TotalCount   int `json:"totalCount"`
}

func (s *Server) listContacts(w http.ResponseWriter, r *http.Request) {
	store := s.svc.Store()
	pending, err := store.LoadPending(r.Context())
	if err != nil {
		s.logger.Error("load pending contacts failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load contacts")
		return
	}
	sent, err := store.LoadSent(r.Context())
	if err != nil {
		s.logger.Error("load sent contacts failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load contacts")
		return
	}
	if pending == nil {
		pending = []harvest.Contact{}
	}
	if sent == nil {
		sent = []harvest.Contact{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pending": pending,
		"sent":    sent,
		"stats": contactStats{
			PendingCount: len(pending),
			SentCount:    len(sent),
			TotalCount:   len(pending) + len(sent),
		},
	})
}

func (s *Server) clearPending(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Store().ClearPending(r.Context()); err != nil {
		s.logger.Error("clear pending contacts failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to clear contacts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "pending contacts cleared"})
}

func (s *Server) listRuns(w http.ResponseWriter, _ *http.Request) {
	ids := s.runs.Active()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

func (s *Server) cancelRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "run_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}
	if !s.runs.Cancel(id) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": id.String(), "status": "canceling"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
