package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/conneroisu/folio/internal/content"
	"github.com/conneroisu/folio/internal/middleware"
	"github.com/conneroisu/folio/internal/renderer"
	"github.com/conneroisu/folio/internal/version"
)

// DatabaseErrorBody is the whole response body for any failure on the home
// page. Internal error text never reaches the client.
const DatabaseErrorBody = "an error has occurred while interacting with the database"

const healthTimeout = 2 * time.Second

// handleIndex renders every published post. Either the whole page renders
// or the client gets the fixed 500.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rows, err := s.source.FetchPublishedPosts(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	posts, err := content.ProjectPublished(rows)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	page, err := renderer.RenderIndex(ctx, renderer.HomeTitle, posts)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(page); err != nil {
		s.logger.Debug(ctx, "Client went away during write", "error", err.Error())
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.errors.Handle(r.Context(), err,
		"path", r.URL.Path,
		"request_id", middleware.RequestID(r.Context()),
	)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = io.WriteString(w, DatabaseErrorBody)
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// handleHealth reports 200 while the store answers a ping, 503 otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status := http.StatusOK
	body := healthResponse{Status: "ok", Version: version.GetShortVersion()}
	if err := s.source.Ping(ctx); err != nil {
		s.logger.Warn(ctx, err, "Health check failed")
		status = http.StatusServiceUnavailable
		body = healthResponse{Status: "unavailable"}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Debug(ctx, "Failed to encode health response", "error", err.Error())
	}
}
