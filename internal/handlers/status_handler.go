package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/services/orchestrator"
)

// StatusHandler reports overall application status
type StatusHandler struct {
	orchestrator *orchestrator.Service
	storage      interfaces.StorageManager
	logger       arbor.ILogger
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(orch *orchestrator.Service, storage interfaces.StorageManager, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		orchestrator: orch,
		storage:      storage,
		logger:       logger,
	}
}

// GetStatusHandler handles GET /api/status
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	ctx := r.Context()
	status := map[string]interface{}{
		"version":       common.GetVersion(),
		"active_checks": h.orchestrator.ActiveChecks(),
	}

	if sites, err := h.storage.SiteStorage().ListSites(ctx, false); err == nil {
		active := 0
		for _, site := range sites {
			if site.Active {
				active++
			}
		}
		status["sites_total"] = len(sites)
		status["sites_active"] = active
	} else {
		h.logger.Warn().Err(err).Msg("Failed to count sites")
	}

	if alerts, err := h.storage.AlertStorage().OpenAlerts(ctx, ""); err == nil {
		status["open_alerts"] = len(alerts)
	} else {
		h.logger.Warn().Err(err).Msg("Failed to count open alerts")
	}

	WriteJSON(w, http.StatusOK, status)
}
