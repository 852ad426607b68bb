package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/AnyUserName/bulkimg/internal/catalog"
	"github.com/AnyUserName/bulkimg/internal/gateway"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
	// maxUploadSize bounds the request body; the stored image limit is
	// enforced separately by the store.
	maxUploadSize = 4 << 20
)

// building is the JSON representation of a catalog entry.
type building struct {
	UUID     string  `json:"uuid"`
	Title    string  `json:"title"`
	ImageURL *string `json:"imageUrl"`
	HasImage bool    `json:"hasImage"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// parsePagination extracts skip and limit from query parameters.
func parsePagination(r *http.Request) (skip, limit int) {
	q := r.URL.Query()
	skip, _ = strconv.Atoi(q.Get("skip"))
	limit, _ = strconv.Atoi(q.Get("limit"))
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return
}

// handleHealth serves a simple health-check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleList serves one page of catalog entries with their image state.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.catalog.Entries(r.Context())
	if err != nil {
		s.log.Error("catalog error", "error", err)
		http.Error(w, "catalog error", http.StatusInternalServerError)
		return
	}

	skip, limit := parsePagination(r)
	if skip > len(entries) {
		skip = len(entries)
	}
	page := entries[skip:min(skip+limit, len(entries))]

	out := make([]building, 0, len(page))
	for _, e := range page {
		b := building{UUID: e.ID, Title: e.DisplayName}
		if s.store.Exists(e.ID) {
			key, _ := gateway.Key(s.store.Prefix, e.ID)
			u := gateway.PublicURL(s.store.PublicURL, key, "")
			b.ImageURL, b.HasImage = &u, true
		}
		out = append(out, b)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleUpload stores the multipart "file" field as the entry's image.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	entries, err := s.catalog.Entries(r.Context())
	if err != nil {
		s.log.Error("catalog error", "error", err)
		writeJSON(w, http.StatusInternalServerError, gateway.UploadResponse{Error: "catalog error"})
		return
	}
	if _, ok := catalog.Lookup(entries, id); !ok {
		writeJSON(w, http.StatusNotFound, gateway.UploadResponse{Error: "building not found"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, gateway.UploadResponse{Error: "No file provided"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, gateway.UploadResponse{Error: "failed to read file"})
		return
	}

	url, err := s.store.Upload(r.Context(), id, data)
	switch {
	case err == nil:
		s.log.Info("image stored", "building", id, "bytes", len(data))
		writeJSON(w, http.StatusOK, gateway.UploadResponse{Success: true, ImageURL: url})
	case errors.Is(err, gateway.ErrNotJPEG), errors.Is(err, gateway.ErrTooLarge),
		errors.Is(err, gateway.ErrEmpty), errors.Is(err, gateway.ErrInvalidID):
		writeJSON(w, http.StatusBadRequest, gateway.UploadResponse{Error: err.Error()})
	default:
		s.log.Error("store failed", "building", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, gateway.UploadResponse{Error: "Failed to store image"})
	}
}

// handleAsset serves a stored image.
func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	path, err := s.store.Path(mux.Vars(r)["id"])
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", gateway.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=300")
	http.ServeFile(w, r, path)
}
