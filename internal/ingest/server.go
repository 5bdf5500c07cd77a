package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/metrics"
	"github.com/JakeFAU/sitecrawler/internal/store"
)

const (
	// DefaultRecentLimit is the page count returned by a listing without ?limit.
	DefaultRecentLimit = 50
	// MaxRecentLimit caps ?limit.
	MaxRecentLimit = 500

	maxBodyBytes = 1 << 20
)

// Clock supplies timestamps for stored pages.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces identifiers for newly stored pages.
type IDGenerator interface {
	NewID() (string, error)
}

// Options configures a Server.
type Options struct {
	Store       store.PageRepository
	IDGen       IDGenerator
	Clock       Clock
	Logger      *zap.Logger
	RecentLimit int
}

// Server wires the ingest routes to a page repository.
type Server struct {
	router      chi.Router
	store       store.PageRepository
	idGen       IDGenerator
	clock       Clock
	logger      *zap.Logger
	recentLimit int
}

type pageRequest struct {
	URL   string   `json:"url"`
	Title string   `json:"title"`
	Links []string `json:"links"`
}

// NewServer constructs a Server with middleware and routes.
func NewServer(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("page store is required")
	}
	if opts.IDGen == nil {
		return nil, errors.New("id generator is required")
	}
	if opts.Clock == nil {
		return nil, errors.New("clock is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := opts.RecentLimit
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}
	metrics.Init()

	s := &Server{
		store:       opts.Store,
		idGen:       opts.IDGen,
		clock:       opts.Clock,
		logger:      logger,
		recentLimit: limit,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/pages", func(r chi.Router) {
		r.Post("/", s.createPage)
		r.Get("/", s.listPages)
		r.Get("/{id}", s.getPage)
	})

	s.router = r
	return s, nil
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) createPage(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		metrics.ObserveIngest("invalid")
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		metrics.ObserveIngest("invalid")
		s.writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	id, err := s.idGen.NewID()
	if err != nil {
		metrics.ObserveIngest("error")
		s.logger.Error("generate page id failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to store page")
		return
	}
	links := req.Links
	if links == nil {
		links = []string{}
	}
	now := s.clock.Now()
	rec, err := s.store.UpsertPage(r.Context(), store.PageRecord{
		ID:        id,
		URL:       req.URL,
		Title:     req.Title,
		Links:     links,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		metrics.ObserveIngest("error")
		s.logger.Error("store page failed", zap.String("url", req.URL), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to store page")
		return
	}

	metrics.ObserveIngest("stored")
	s.logger.Debug("page stored", zap.String("id", rec.ID), zap.String("url", rec.URL), zap.Int("links", len(rec.Links)))
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": rec.ID, "url": rec.URL})
}

func (s *Server) listPages(w http.ResponseWriter, r *http.Request) {
	limit, err := s.parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pages, err := s.store.RecentPages(r.Context(), limit)
	if err != nil {
		s.logger.Error("list pages failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list pages")
		return
	}
	if pages == nil {
		pages = []store.PageRecord{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"pages": pages})
}

func (s *Server) getPage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.store.GetPage(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "page not found")
			return
		}
		s.logger.Error("get page failed", zap.String("id", id), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to fetch page")
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) parseLimit(raw string) (int, error) {
	if raw == "" {
		return s.recentLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	if n > MaxRecentLimit {
		n = MaxRecentLimit
	}
	return n, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
