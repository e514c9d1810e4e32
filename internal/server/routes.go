package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/lazypower/groundtruth/internal/engine"
	"github.com/lazypower/groundtruth/internal/store"
)

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q required")
		return
	}

	opts := engine.QueryOptions{}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		opts.Limit = n
	}
	if v := r.URL.Query().Get("include_superseded"); v == "true" || v == "1" {
		opts.IncludeHistorical = true
	}

	result, err := s.engine.Retrieve(r.Context(), q, opts)
	if err != nil {
		if errors.Is(err, engine.ErrEmbeddingUnavailable) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "entityID")

	ent, err := s.db.GetEntity(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"kind":   ent.EntityKind(),
		"entity": ent,
	})
}

func (s *Server) handleEntityRelations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "entityID")

	if ok, err := s.db.HasEntity(id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	} else if !ok {
		writeError(w, http.StatusNotFound, "entity "+id+" not found")
		return
	}

	out, err := s.db.Outgoing(id, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	in, err := s.db.Incoming(id, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":       id,
		"outgoing": out,
		"incoming": in,
	})
}

// handleSync accepts either an inline bundle or a path to a bundle file on
// the server host. A run with per-entity failures still returns the report,
// with status 207 to flag the partial result.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path   string         `json:"path,omitempty"`
		Bundle *engine.Bundle `json:"bundle,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	var report *engine.Report
	var err error
	switch {
	case req.Bundle != nil:
		report, err = s.engine.SyncBundle(r.Context(), "inline", req.Bundle)
	case req.Path != "":
		report, err = s.engine.Sync(r.Context(), engine.FileSource{Path: req.Path})
	default:
		writeError(w, http.StatusBadRequest, "path or bundle required")
		return
	}

	if err != nil && !errors.Is(err, engine.ErrSyncPartial) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusOK
	if errors.Is(err, engine.ErrSyncPartial) {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, report)
}
