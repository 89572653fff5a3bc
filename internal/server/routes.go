package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Site management
	mux.HandleFunc("/api/sites", s.handleSitesRoute)  // GET (list), POST (create)
	mux.HandleFunc("/api/sites/", s.handleSiteRoutes) // GET/PUT/DELETE /{id} and subpaths

	// API routes - Alerts
	mux.HandleFunc("/api/alerts", s.app.AlertHandler.ListAlertsHandler)
	mux.HandleFunc("/api/alerts/", s.handleAlertRoutes) // GET /{id} and operator actions

	// API routes - Global monitoring controls
	mux.HandleFunc("/api/monitoring/pause", s.pauseAllHandler)
	mux.HandleFunc("/api/monitoring/resume", s.resumeAllHandler)

	// API routes - System
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleSitesRoute routes /api/sites requests (list and create)
func (s *Server) handleSitesRoute(w http.ResponseWriter, r *http.Request) {
	RouteByMethod(w, r, MethodRouter{
		"GET":  s.app.SiteHandler.ListSitesHandler,
		"POST": s.app.SiteHandler.CreateSiteHandler,
	})
}

// handleSiteRoutes routes /api/sites/{id} requests and subpaths
func (s *Server) handleSiteRoutes(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	// POST /api/sites/{id}/pause
	if r.Method == "POST" && strings.HasSuffix(path, "/pause") {
		s.app.SiteHandler.PauseSiteHandler(w, r)
		return
	}

	// POST /api/sites/{id}/resume
	if r.Method == "POST" && strings.HasSuffix(path, "/resume") {
		s.app.SiteHandler.ResumeSiteHandler(w, r)
		return
	}

	// POST /api/sites/{id}/check
	if r.Method == "POST" && strings.HasSuffix(path, "/check") {
		s.app.SiteHandler.CheckNowHandler(w, r)
		return
	}

	// GET /api/sites/{id}/status
	if r.Method == "GET" && strings.HasSuffix(path, "/status") {
		s.app.SiteHandler.SiteStatusHandler(w, r)
		return
	}

	// GET /api/sites/{id}/snapshots
	if r.Method == "GET" && strings.HasSuffix(path, "/snapshots") {
		s.app.SiteHandler.ListSnapshotsHandler(w, r)
		return
	}

	RouteByMethod(w, r, MethodRouter{
		"GET":    s.app.SiteHandler.GetSiteHandler,
		"PUT":    s.app.SiteHandler.UpdateSiteHandler,
		"DELETE": s.app.SiteHandler.DeleteSiteHandler,
	})
}

// handleAlertRoutes routes /api/alerts/{id} requests and operator actions
func (s *Server) handleAlertRoutes(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if r.Method == "POST" {
		switch {
		case strings.HasSuffix(path, "/ack"):
			s.app.AlertHandler.AckAlertHandler(w, r)
		case strings.HasSuffix(path, "/resolve"):
			s.app.AlertHandler.ResolveAlertHandler(w, r)
		case strings.HasSuffix(path, "/false-positive"):
			s.app.AlertHandler.FalsePositiveHandler(w, r)
		default:
			http.Error(w, "Not found", http.StatusNotFound)
		}
		return
	}

	RouteByMethod(w, r, MethodRouter{
		"GET": s.app.AlertHandler.GetAlertHandler,
	})
}

// pauseAllHandler handles POST /api/monitoring/pause
func (s *Server) pauseAllHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.app.Orchestrator.PauseAll(); err != nil {
		http.Error(w, "Failed to pause monitoring", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// resumeAllHandler handles POST /api/monitoring/resume
func (s *Server) resumeAllHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.app.Orchestrator.ResumeAll(); err != nil {
		http.Error(w, "Failed to resume monitoring", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}
