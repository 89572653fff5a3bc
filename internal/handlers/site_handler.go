package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
	"github.com/ternarybob/vigil/internal/services/orchestrator"
)

// SiteHandler handles HTTP requests for site management
type SiteHandler struct {
	orchestrator *orchestrator.Service
	storage      interfaces.StorageManager
	logger       arbor.ILogger
}

// NewSiteHandler creates a new SiteHandler
func NewSiteHandler(orch *orchestrator.Service, storage interfaces.StorageManager, logger arbor.ILogger) *SiteHandler {
	return &SiteHandler{
		orchestrator: orch,
		storage:      storage,
		logger:       logger,
	}
}

// ListSitesHandler handles GET /api/sites
func (h *SiteHandler) ListSitesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	activeOnly := r.URL.Query().Get("active") == "true"
	sites, err := h.storage.SiteStorage().ListSites(r.Context(), activeOnly)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list sites")
		WriteError(w, http.StatusInternalServerError, "Failed to list sites")
		return
	}
	if sites == nil {
		sites = []*models.Site{}
	}

	WriteJSON(w, http.StatusOK, sites)
}

// CreateSiteHandler handles POST /api/sites
func (h *SiteHandler) CreateSiteHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var site models.Site
	if err := json.NewDecoder(r.Body).Decode(&site); err != nil {
		h.logger.Error().Err(err).Msg("Failed to decode request body")
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.orchestrator.RegisterSite(r.Context(), &site); err != nil {
		h.logger.Error().Err(err).Str("url", site.URL).Msg("Failed to register site")
		if strings.Contains(err.Error(), "invalid") || strings.Contains(err.Error(), "already exists") {
			WriteError(w, http.StatusBadRequest, err.Error())
		} else {
			WriteError(w, http.StatusInternalServerError, "Failed to register site")
		}
		return
	}

	WriteJSON(w, http.StatusCreated, site)
}

// GetSiteHandler handles GET /api/sites/{id}
func (h *SiteHandler) GetSiteHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	id := extractIDFromPath(r.URL.Path, "/api/sites/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Site ID is required")
		return
	}

	site, err := h.storage.SiteStorage().GetSite(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Str("id", id).Msg("Failed to get site")
		WriteError(w, http.StatusInternalServerError, "Failed to get site")
		return
	}
	if site == nil {
		WriteError(w, http.StatusNotFound, "Site not found")
		return
	}

	WriteJSON(w, http.StatusOK, site)
}

// UpdateSiteHandler handles PUT /api/sites/{id}
func (h *SiteHandler) UpdateSiteHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "PUT") {
		return
	}

	id := extractIDFromPath(r.URL.Path, "/api/sites/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Site ID is required")
		return
	}

	existing, err := h.storage.SiteStorage().GetSite(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Str("id", id).Msg("Failed to get site")
		WriteError(w, http.StatusInternalServerError, "Failed to get site")
		return
	}
	if existing == nil {
		WriteError(w, http.StatusNotFound, "Site not found")
		return
	}

	var site models.Site
	if err := json.NewDecoder(r.Body).Decode(&site); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	site.ID = id
	site.CreatedAt = existing.CreatedAt

	if err := h.orchestrator.UpdateSite(r.Context(), &site); err != nil {
		h.logger.Error().Err(err).Str("id", id).Msg("Failed to update site")
		if strings.Contains(err.Error(), "invalid") {
			WriteError(w, http.StatusBadRequest, err.Error())
		} else {
			WriteError(w, http.StatusInternalServerError, "Failed to update site")
		}
		return
	}

	WriteJSON(w, http.StatusOK, site)
}

// DeleteSiteHandler handles DELETE /api/sites/{id}
func (h *SiteHandler) DeleteSiteHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "DELETE") {
		return
	}

	id := extractIDFromPath(r.URL.Path, "/api/sites/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Site ID is required")
		return
	}

	if err := h.orchestrator.UnregisterSite(r.Context(), id); err != nil {
		h.logger.Error().Err(err).Str("id", id).Msg("Failed to unregister site")
		WriteError(w, http.StatusInternalServerError, "Failed to unregister site")
		return
	}

	WriteSuccess(w, "Site and its history removed")
}

// PauseSiteHandler handles POST /api/sites/{id}/pause
func (h *SiteHandler) PauseSiteHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	id := extractIDFromPath(r.URL.Path, "/api/sites/")
	if err := h.orchestrator.PauseSite(id); err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to pause site")
		return
	}
	WriteSuccess(w, "Monitoring paused")
}

// ResumeSiteHandler handles POST /api/sites/{id}/resume
func (h *SiteHandler) ResumeSiteHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	id := extractIDFromPath(r.URL.Path, "/api/sites/")
	if err := h.orchestrator.ResumeSite(id); err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to resume site")
		return
	}
	WriteSuccess(w, "Monitoring resumed")
}

// CheckNowHandler handles POST /api/sites/{id}/check
func (h *SiteHandler) CheckNowHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	id := extractIDFromPath(r.URL.Path, "/api/sites/")
	executionID, err := h.orchestrator.TriggerImmediate(id)
	if err != nil {
		h.logger.Warn().Err(err).Str("id", id).Msg("Immediate check rejected")
		if strings.Contains(err.Error(), "no job") {
			WriteError(w, http.StatusNotFound, err.Error())
		} else {
			WriteError(w, http.StatusConflict, err.Error())
		}
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"status":       "started",
		"execution_id": executionID,
	})
}

// SiteStatusHandler handles GET /api/sites/{id}/status
func (h *SiteHandler) SiteStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	id := extractIDFromPath(r.URL.Path, "/api/sites/")
	status, err := h.orchestrator.SiteStatus(r.Context(), id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			WriteError(w, http.StatusNotFound, "Site not found")
		} else {
			h.logger.Error().Err(err).Str("id", id).Msg("Failed to get site status")
			WriteError(w, http.StatusInternalServerError, "Failed to get site status")
		}
		return
	}

	WriteJSON(w, http.StatusOK, status)
}

// ListSnapshotsHandler handles GET /api/sites/{id}/snapshots
func (h *SiteHandler) ListSnapshotsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	id := extractIDFromPath(r.URL.Path, "/api/sites/")
	limit := GetLimitParam(r, 20, 200)

	snapshots, err := h.storage.SnapshotStorage().ListSnapshots(r.Context(), id, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("id", id).Msg("Failed to list snapshots")
		WriteError(w, http.StatusInternalServerError, "Failed to list snapshots")
		return
	}

	// Strip raw HTML from the listing; it can be megabytes per row
	summaries := make([]map[string]interface{}, 0, len(snapshots))
	for _, snap := range snapshots {
		summaries = append(summaries, map[string]interface{}{
			"id":                 snap.ID,
			"captured_at":        snap.CapturedAt,
			"http_status":        snap.HTTPStatus,
			"verdict":            snap.Verdict,
			"confidence":         snap.Confidence,
			"prev_similarity":    snap.PrevSimilarity,
			"classifier_summary": snap.ClassifierSummary,
		})
	}

	WriteJSON(w, http.StatusOK, summaries)
}
