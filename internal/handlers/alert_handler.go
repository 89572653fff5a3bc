package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
	"github.com/ternarybob/vigil/internal/services/classifier"
)

// AlertHandler handles the operator workflow on alerts
type AlertHandler struct {
	storage interfaces.StorageManager
	logger  arbor.ILogger
}

// NewAlertHandler creates a new AlertHandler
func NewAlertHandler(storage interfaces.StorageManager, logger arbor.ILogger) *AlertHandler {
	return &AlertHandler{
		storage: storage,
		logger:  logger,
	}
}

// ListAlertsHandler handles GET /api/alerts with an optional site_id filter
func (h *AlertHandler) ListAlertsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	siteID := r.URL.Query().Get("site_id")
	alerts, err := h.storage.AlertStorage().OpenAlerts(r.Context(), siteID)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list alerts")
		WriteError(w, http.StatusInternalServerError, "Failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []*models.Alert{}
	}

	WriteJSON(w, http.StatusOK, alerts)
}

// GetAlertHandler handles GET /api/alerts/{id}
func (h *AlertHandler) GetAlertHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	alert, ok := h.loadAlert(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, alert)
}

// AckAlertHandler handles POST /api/alerts/{id}/ack
func (h *AlertHandler) AckAlertHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	h.transition(w, r, models.AlertAcknowledged)
}

// ResolveAlertHandler handles POST /api/alerts/{id}/resolve
func (h *AlertHandler) ResolveAlertHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	h.transition(w, r, models.AlertResolved)
}

// FalsePositiveHandler handles POST /api/alerts/{id}/false-positive.
// The alert is resolved, its snapshot is re-labelled benign so the
// baseline can move forward, and the site's false-positive rate feeds
// back into classification confidence.
func (h *AlertHandler) FalsePositiveHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	alert, ok := h.loadAlert(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	now := time.Now()

	weights, err := h.storage.WeightsStorage().GetWeights(ctx, alert.SiteID)
	if err != nil {
		h.logger.Error().Err(err).Str("site_id", alert.SiteID).Msg("Failed to load classifier weights")
		WriteError(w, http.StatusInternalServerError, "Failed to record feedback")
		return
	}
	weights = classifier.RecordFalsePositive(weights, alert.SiteID, true, now)
	if err := h.storage.WeightsStorage().SaveWeights(ctx, weights); err != nil {
		h.logger.Error().Err(err).Str("site_id", alert.SiteID).Msg("Failed to save classifier weights")
		WriteError(w, http.StatusInternalServerError, "Failed to record feedback")
		return
	}

	if alert.SnapshotID != "" {
		err := h.storage.SnapshotStorage().UpdateVerdict(ctx, alert.SnapshotID,
			models.VerdictBenign, 1.0, "Relabelled benign by operator feedback")
		if err != nil {
			h.logger.Warn().Err(err).Str("snapshot_id", alert.SnapshotID).Msg("Failed to relabel snapshot")
		}
	}

	if err := h.storage.AlertStorage().UpdateAlertStatus(ctx, alert.ID, models.AlertResolved); err != nil {
		h.logger.Error().Err(err).Str("id", alert.ID).Msg("Failed to resolve alert")
		WriteError(w, http.StatusInternalServerError, "Failed to resolve alert")
		return
	}

	h.logger.Info().
		Str("alert_id", alert.ID).
		Str("site_id", alert.SiteID).
		Float64("false_pos_rate", weights.FalsePosRate).
		Msg("False positive recorded")

	WriteSuccess(w, "False positive recorded")
}

func (h *AlertHandler) transition(w http.ResponseWriter, r *http.Request, status models.AlertStatus) {
	alert, ok := h.loadAlert(w, r)
	if !ok {
		return
	}

	if err := h.storage.AlertStorage().UpdateAlertStatus(r.Context(), alert.ID, status); err != nil {
		h.logger.Error().Err(err).Str("id", alert.ID).Msg("Failed to update alert status")
		WriteError(w, http.StatusInternalServerError, "Failed to update alert")
		return
	}
	WriteSuccess(w, "Alert "+string(status))
}

func (h *AlertHandler) loadAlert(w http.ResponseWriter, r *http.Request) (*models.Alert, bool) {
	id := extractIDFromPath(r.URL.Path, "/api/alerts/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Alert ID is required")
		return nil, false
	}

	alert, err := h.storage.AlertStorage().GetAlert(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Str("id", id).Msg("Failed to get alert")
		WriteError(w, http.StatusInternalServerError, "Failed to get alert")
		return nil, false
	}
	if alert == nil {
		WriteError(w, http.StatusNotFound, "Alert not found")
		return nil, false
	}
	return alert, true
}
