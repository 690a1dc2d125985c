package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Job lifecycle
	mux.HandleFunc("/api/run", s.app.JobHandler.RunHandler)                // POST - submit a generation job
	mux.HandleFunc("/api/status/", s.app.JobHandler.StatusHandler)         // GET /{id} - poll job status
	mux.HandleFunc("/api/recent-jobs", s.app.JobHandler.RecentJobsHandler) // GET - list recent jobs
	mux.HandleFunc("/api/cancel/", s.app.JobHandler.CancelHandler)         // POST /{id} - request cancellation
	mux.HandleFunc("/api/retry/", s.app.JobHandler.RetryHandler)           // POST /{id} - retry failed/canceled job
	mux.HandleFunc("/api/download/", s.app.JobHandler.DownloadHandler)     // GET /{id} - download rendered PDF

	// API routes - Draft editing (terminal jobs only)
	mux.HandleFunc("/api/draft/", s.app.DraftHandler.DraftHandlerFunc)                      // GET/POST /{id}
	mux.HandleFunc("/api/rebuild/", s.app.DraftHandler.RebuildHandler)                      // POST /{id}
	mux.HandleFunc("/api/quality-fix/", s.app.DraftHandler.QualityFixHandler)               // POST /{id}
	mux.HandleFunc("/api/regenerate-section/", s.app.DraftHandler.RegenerateSectionHandler) // POST /{id}

	// API routes - Administration
	mux.HandleFunc("/api/cleanup", s.app.AdminHandler.CleanupHandler) // POST - purge old artifacts

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}
