// internal/adapters/http_server/handlers.go
package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"hotel_catalog/internal/app"
	"hotel_catalog/internal/domain"
)

type Searcher interface {
	Search(ctx context.Context, req domain.SearchRequest) (app.SearchResult, error)
}

type CatalogReader interface {
	Get(ctx context.Context, hid int64) (domain.CatalogHotel, error)
}

type Handlers struct {
	S Searcher
	C CatalogReader
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Post("/v1/search", h.search)
	s.mux.Get("/v1/catalog/hotels/{hid}", h.getCatalogHotel)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	var req domain.SearchRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}

	res, err := h.S.Search(r.Context(), req)
	switch {
	case errors.Is(err, app.ErrInvalidRequest):
		writeProblem(w, http.StatusBadRequest, "Invalid search", err.Error())
		return
	case err != nil:
		log.Error().Err(err).Msg("search failed")
		writeProblem(w, http.StatusServiceUnavailable, "Search unavailable", "try again later")
		return
	}

	body, err := json.Marshal(res)
	if err != nil {
		log.Error().Err(err).Msg("marshal search result failed")
		writeProblem(w, http.StatusInternalServerError, "Internal error", "")
		return
	}
	if res.Degraded {
		w.Header().Set("Warning", `199 - "inventory unavailable; fallback data"`)
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handlers) getCatalogHotel(w http.ResponseWriter, r *http.Request) {
	hid, err := strconv.ParseInt(chi.URLParam(r, "hid"), 10, 64)
	if err != nil || hid <= 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid HID", "hid must be a positive number")
		return
	}
	hotel, err := h.C.Get(r.Context(), hid)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", "hotel not found")
		return
	case err != nil:
		log.Error().Err(err).Int64("hid", hid).Msg("catalog lookup failed")
		writeProblem(w, http.StatusServiceUnavailable, "Catalog unavailable", "try again later")
		return
	}

	etag, body := calcETagAndBody(hotel)
	// If client already has this version, short-circuit.
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	writeJSON(w, http.StatusOK, body)
}
