// -----------------------------------------------------------------------
// Admin handler - operational endpoints guarded by the admin API key
// -----------------------------------------------------------------------

package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/services/cleanup"
)

// AdminHandler handles administrative API requests
type AdminHandler struct {
	cleanupService *cleanup.Service
	config         *common.Config
	logger         arbor.ILogger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(cleanupService *cleanup.Service, config *common.Config, logger arbor.ILogger) *AdminHandler {
	return &AdminHandler{
		cleanupService: cleanupService,
		config:         config,
		logger:         logger,
	}
}

func (h *AdminHandler) authorized(w http.ResponseWriter, r *http.Request) bool {
	configured := h.config.Admin.APIKey
	if configured == "" {
		return true
	}
	supplied := r.Header.Get("X-Admin-Key")
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(configured)) != 1 {
		WriteError(w, http.StatusUnauthorized, "invalid admin key")
		return false
	}
	return true
}

// CleanupHandler deletes artifacts and job records past the retention age.
// POST /api/cleanup?max_age_hours=720&dry_run=true
func (h *AdminHandler) CleanupHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if !h.authorized(w, r) {
		return
	}

	maxAge := QueryInt(r, "max_age_hours", h.config.Cleanup.MaxAgeHours)
	dryRun := r.URL.Query().Get("dry_run") == "true"

	result, err := h.cleanupService.Run(r.Context(), maxAge, dryRun)
	if err != nil {
		h.logger.Error().Err(err).Msg("Cleanup run failed")
		WriteError(w, http.StatusInternalServerError, "cleanup failed")
		return
	}
	WriteJSON(w, http.StatusOK, result)
}
