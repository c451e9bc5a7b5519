package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smart-directory/referral-service/internal/middleware"
	"github.com/smart-directory/referral-service/internal/model"
	"github.com/smart-directory/referral-service/internal/store"
)

const (
	defaultBrowseLimit = 50
	maxBrowseLimit     = 200
)

// AdminHandler serves the dashboard's data browser and partner management.
type AdminHandler struct {
	data     *store.Memory
	partners store.PartnerStore
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(data *store.Memory, partners store.PartnerStore) *AdminHandler {
	return &AdminHandler{
		data:     data,
		partners: partners,
	}
}

// ListCollections handles GET /api/v1/collections
func (h *AdminHandler) ListCollections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"collections": store.Collections(),
	})
}

// BrowseCollection handles GET /api/v1/collections/{name}
func (h *AdminHandler) BrowseCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := middleware.ValidateCollectionName(name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := queryInt(r, "limit", defaultBrowseLimit)
	if limit > maxBrowseLimit {
		limit = maxBrowseLimit
	}
	skip := queryInt(r, "skip", 0)

	docs, total, err := h.data.Browse(r.Context(), name, limit, skip)
	if err != nil {
		if errors.Is(err, store.ErrUnknownCollection) {
			writeError(w, http.StatusNotFound, "unknown collection")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to browse collection")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"collection": name,
		"total":      total,
		"limit":      limit,
		"skip":       skip,
		"documents":  docs,
	})
}

// GetDocument handles GET /api/v1/collections/{name}/{id}
func (h *AdminHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateCollectionName(name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.data.GetDocument(r.Context(), name, id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrUnknownCollection):
			writeError(w, http.StatusNotFound, "unknown collection")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "document not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to load document")
		}
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /api/v1/collections/{name}/{id}
func (h *AdminHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateCollectionName(name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.data.DeleteDocument(r.Context(), name, id); err != nil {
		switch {
		case errors.Is(err, store.ErrUnknownCollection):
			writeError(w, http.StatusNotFound, "unknown collection")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "document not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to delete document")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ListReferrals handles GET /api/v1/referrals/{senderID}
func (h *AdminHandler) ListReferrals(w http.ResponseWriter, r *http.Request) {
	senderID := chi.URLParam(r, "senderID")
	if err := middleware.ValidateSenderID(senderID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	referrals, err := h.data.ListBySender(r.Context(), senderID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list referrals")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sender_id": senderID,
		"referrals": referrals,
	})
}

// UpsertPartner handles PUT /api/v1/partners. Partner records arrive from the
// onboarding pipeline with embeddings already computed.
func (h *AdminHandler) UpsertPartner(w http.ResponseWriter, r *http.Request) {
	var partner model.Partner
	if err := json.NewDecoder(r.Body).Decode(&partner); err != nil {
		writeError(w, http.StatusBadRequest, "invalid partner payload")
		return
	}
	if partner.ID == "" || partner.Name == "" {
		writeError(w, http.StatusBadRequest, "partner ID and name are required")
		return
	}

	partner.UpdatedAt = time.Now()
	if err := h.partners.Upsert(r.Context(), partner); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to upsert partner")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"id":     partner.ID,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
