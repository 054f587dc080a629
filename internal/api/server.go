// Package api is the HTTP command surface of the orchestrator:
// create_training, end_training, get_sessions, and get_notification,
// plus the training catalog listing.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/rangeburo/orchestrator/internal/auth"
	"github.com/rangeburo/orchestrator/internal/catalog"
	"github.com/rangeburo/orchestrator/internal/peers"
	"github.com/rangeburo/orchestrator/internal/registry"
	"github.com/rangeburo/orchestrator/internal/workflow"
)

type Server struct {
	router          *chi.Mux
	engine          *workflow.Engine
	catalog         *catalog.Catalog
	configs         *catalog.Configurations
	users           *auth.Users
	requirePassword bool
	logger          *logrus.Logger
}

func NewServer(engine *workflow.Engine, cat *catalog.Catalog, configs *catalog.Configurations, users *auth.Users, requirePassword bool, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Server{
		router:          chi.NewRouter(),
		engine:          engine,
		catalog:         cat,
		configs:         configs,
		users:           users,
		requirePassword: requirePassword,
		logger:          logger,
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(10 * time.Minute))

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.router.Route("/api", func(r chi.Router) {
		if s.users != nil {
			r.Use(auth.Middleware(s.users, s.requirePassword))
		}

		r.Get("/catalog", s.listCatalog)
		r.Get("/configurations", s.listConfigurations)

		r.Route("/trainings", func(r chi.Router) {
			r.Get("/", s.listTrainings)
			r.Post("/", s.createTraining)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getTraining)
				r.Delete("/", s.endTraining)
				r.Get("/notification", s.getNotification)
			})
		})
	})
}

// Handlers

func (s *Server) listCatalog(w http.ResponseWriter, r *http.Request) {
	templates := s.catalog.Templates()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"templates": templates,
		"total":     len(templates),
	})
}

func (s *Server) listConfigurations(w http.ResponseWriter, r *http.Request) {
	var entries []catalog.Configuration
	if s.configs != nil {
		entries = s.configs.ForOwner(auth.UserFrom(r.Context()))
	}
	if entries == nil {
		entries = []catalog.Configuration{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"configurations": entries,
		"total":          len(entries),
	})
}

func (s *Server) createTraining(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Template    string `json:"template"`
		Trainees    int    `json:"trainees"`
		Trainer     string `json:"trainer"`
		ContentRef  string `json:"content_ref"`
		TopologyRef string `json:"topology_ref"`
		Progression string `json:"progression"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &workflow.ValidationError{Reason: "malformed request body"}, 0)
		return
	}

	desc := workflow.Description{
		Trainer:      req.Trainer,
		ContentRef:   req.ContentRef,
		TopologyRef:  req.TopologyRef,
		Progression:  req.Progression,
		TraineeCount: req.Trainees,
	}
	if user := auth.UserFrom(r.Context()); user != "" {
		desc.Trainer = user
	}
	if req.Template != "" {
		resolved, err := s.catalog.Resolve(req.Template, req.Trainees)
		if err != nil {
			writeError(w, &workflow.ValidationError{Reason: err.Error()}, 0)
			return
		}
		desc.ContentRef = resolved.ContentRef
		desc.TopologyRef = resolved.TopologyRef
		desc.Progression = resolved.Progression
	}

	// A client disconnect must not cancel an in-flight peer call; the
	// session either completes its step or fails on its own terms.
	ctx := context.WithoutCancel(r.Context())
	sess, err := s.engine.CreateTraining(ctx, desc)
	if err != nil {
		id := 0
		if sess != nil {
			id = sess.ID
		}
		writeError(w, err, id)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"session": sess.Summary()})
}

func (s *Server) endTraining(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, &workflow.ValidationError{Reason: "session id must be an integer"}, 0)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	sess, err := s.engine.EndTraining(ctx, id)
	if err != nil {
		writeError(w, err, id)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"session": sess.Summary()})
}

func (s *Server) listTrainings(w http.ResponseWriter, r *http.Request) {
	filter := registry.State(r.URL.Query().Get("state"))
	summaries, err := s.engine.Sessions(filter)
	if err != nil {
		writeError(w, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": summaries,
		"total":    len(summaries),
	})
}

func (s *Server) getTraining(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, &workflow.ValidationError{Reason: "session id must be an integer"}, 0)
		return
	}
	summary, err := s.engine.Session(id)
	if err != nil {
		writeError(w, err, id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session": summary})
}

func (s *Server) getNotification(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, &workflow.ValidationError{Reason: "session id must be an integer"}, 0)
		return
	}
	endpoints, err := s.engine.Notification(id)
	if err != nil {
		writeError(w, err, id)
		return
	}
	writeJSON(w, http.StatusOK, endpoints)
}

// Error mapping

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error, sessionID int) {
	kind, status := classify(err)
	body := map[string]interface{}{
		"error": err.Error(),
		"kind":  kind,
	}
	if sessionID != 0 {
		body["session_id"] = sessionID
	}
	writeJSON(w, status, body)
}

func classify(err error) (string, int) {
	var validationErr *workflow.ValidationError
	var upstreamErr *peers.UpstreamError
	switch {
	case errors.As(err, &validationErr):
		return "validation", http.StatusBadRequest
	case errors.Is(err, workflow.ErrNotFound):
		return "not_found", http.StatusNotFound
	case errors.Is(err, workflow.ErrConflict):
		return "conflict", http.StatusConflict
	case errors.Is(err, workflow.ErrInvalidState):
		return "invalid_state", http.StatusConflict
	case errors.Is(err, registry.ErrCapacity):
		return "capacity", http.StatusServiceUnavailable
	case errors.As(err, &upstreamErr):
		return "upstream", http.StatusBadGateway
	default:
		return "internal", http.StatusInternalServerError
	}
}
