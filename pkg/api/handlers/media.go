package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/mediaforge/internal/logger"
	"github.com/marmos91/mediaforge/pkg/media"
)

// MaxListLimit caps GET /api/v1/media page sizes.
const MaxListLimit = 1000

// MediaHandler serves the read-only media catalogue.
type MediaHandler struct {
	store media.Store
}

func NewMediaHandler(store media.Store) *MediaHandler {
	return &MediaHandler{store: store}
}

// List handles GET /api/v1/media?status=&limit=.
func (h *MediaHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := media.ListOptions{Limit: 100}

	if s := r.URL.Query().Get("status"); s != "" {
		st, err := media.ParseStatus(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.Status = st
	}

	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		opts.Limit = min(n, MaxListLimit)
	}

	records, err := h.store.ListMedia(r.Context(), opts)
	if err != nil {
		logger.ErrorCtx(r.Context(), "Failed to list media", logger.KeyError, err)
		writeError(w, http.StatusInternalServerError, "failed to list media")
		return
	}
	if records == nil {
		records = []*media.Record{}
	}
	writeJSON(w, http.StatusOK, okResponse(records))
}

// Get handles GET /api/v1/media/{id}.
func (h *MediaHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.store.GetMedia(r.Context(), id)
	if errors.Is(err, media.ErrMediaNotFound) {
		writeError(w, http.StatusNotFound, "media not found")
		return
	}
	if err != nil {
		logger.ErrorCtx(r.Context(), "Failed to get media", logger.KeyMediaID, id, logger.KeyError, err)
		writeError(w, http.StatusInternalServerError, "failed to get media")
		return
	}
	writeJSON(w, http.StatusOK, okResponse(rec))
}
