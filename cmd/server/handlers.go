package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/example/docindex/internal/apperrors"
	"github.com/example/docindex/internal/coordinator"
	"github.com/example/docindex/internal/hybridsearch"
	"github.com/example/docindex/internal/relstore"
)

// handlers holds the dependencies every HTTP endpoint needs: the
// Coordinator façade for operations that span stores, and a direct
// RelStore handle for read-only collection/document listing that doesn't
// need the façade's cross-store ordering.
type handlers struct {
	coord *coordinator.Coordinator
	rel   *relstore.Store
}

func newHandlers(coord *coordinator.Coordinator, rel *relstore.Store) *handlers {
	return &handlers{coord: coord, rel: rel}
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) readiness(w http.ResponseWriter, r *http.Request) {
	stats := h.coord.SyncStats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ready",
		"sync":   stats,
	})
}

type createCollectionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *handlers) createCollection(w http.ResponseWriter, r *http.Request) {
	var req createCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.Validation("invalid request body"))
		return
	}
	coll, err := h.rel.CreateCollection(r.Context(), req.Name, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, coll)
}

func (h *handlers) listCollections(w http.ResponseWriter, r *http.Request) {
	colls, err := h.rel.ListCollections(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, colls)
}

func (h *handlers) deleteCollection(w http.ResponseWriter, r *http.Request) {
	collectionID := chi.URLParam(r, "collectionID")
	if err := h.coord.DeleteCollection(r.Context(), collectionID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type importDocumentRequest struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	Mime    string `json:"mime"`
	Content string `json:"content"`
}

type importDocumentResponse struct {
	Document *relstore.Document `json:"document"`
	SyncJob  *relstore.SyncJob  `json:"syncJob"`
}

func (h *handlers) importDocument(w http.ResponseWriter, r *http.Request) {
	collectionID := chi.URLParam(r, "collectionID")

	var req importDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.Validation("invalid request body"))
		return
	}
	if req.Content == "" {
		writeError(w, apperrors.Validation("content must not be empty"))
		return
	}

	doc, job, err := h.coord.Import(r.Context(), collectionID, req.Key, req.Name, req.Mime, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, importDocumentResponse{Document: doc, SyncJob: job})
}

func (h *handlers) deleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	if err := h.coord.Delete(r.Context(), docID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) resyncDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	job, err := h.coord.Resync(r.Context(), docID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (h *handlers) cancelDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	h.coord.Cancel(docID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) search(w http.ResponseWriter, r *http.Request) {
	collectionID := chi.URLParam(r, "collectionID")
	query := r.URL.Query().Get("q")

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}

	results, err := h.coord.Search(r.Context(), query, collectionID, hybridsearch.Options{Limit: limit})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}
