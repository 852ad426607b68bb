// Package server implements a small asset API compatible with the catalog
// and upload gateways: it lists catalog entries, accepts processed images and
// serves them back. It stands in for the production asset backend locally
// and in end-to-end tests.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/AnyUserName/bulkimg/internal/catalog"
	"github.com/AnyUserName/bulkimg/internal/gateway"
)

// Options holds optional configuration for the Server.
type Options struct {
	// APIKey, when set, is required in the x-api-key header on /buildings
	// endpoints.
	APIKey string
	Logger *slog.Logger
}

// Server is the HTTP server for the asset API.
type Server struct {
	router  *mux.Router
	catalog catalog.Source
	store   *gateway.Directory
	opts    Options
	log     *slog.Logger
}

// New creates and configures a Server over a catalog source and a directory
// store.
func New(src catalog.Source, store *gateway.Directory, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		router:  mux.NewRouter(),
		catalog: src,
		store:   store,
		opts:    opts,
		log:     log,
	}
	s.registerRoutes()
	return s
}

// ServeHTTP implements http.Handler, delegating to the mux router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(s.logRequests)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/"+s.store.Prefix+"{id}.jpg", s.handleAsset).Methods(http.MethodGet, http.MethodHead)

	api := r.PathPrefix("/buildings").Subrouter()
	api.Use(apiKeyMiddleware(s.opts.APIKey))
	api.HandleFunc("/", s.handleList).Methods(http.MethodGet)
	api.HandleFunc("/{id}/image", s.handleUpload).Methods(http.MethodPost)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request", "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration", time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func apiKeyMiddleware(key string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("x-api-key") != key {
				writeJSON(w, http.StatusUnauthorized, gateway.UploadResponse{Error: "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
