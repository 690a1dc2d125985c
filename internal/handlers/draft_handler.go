// -----------------------------------------------------------------------
// Draft handler - post-completion edit operations on the stored report
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/services/jobs"
)

// DraftHandler handles draft editing API requests
type DraftHandler struct {
	jobService *jobs.Service
	config     *common.Config
	logger     arbor.ILogger
}

// NewDraftHandler creates a new draft handler
func NewDraftHandler(jobService *jobs.Service, config *common.Config, logger arbor.ILogger) *DraftHandler {
	return &DraftHandler{
		jobService: jobService,
		config:     config,
		logger:     logger,
	}
}

// DraftHandlerFunc serves the stored draft and accepts edited text.
// GET /api/draft/{id} returns the current draft; POST saves edits.
func (h *DraftHandler) DraftHandlerFunc(w http.ResponseWriter, r *http.Request) {
	jobID := PathSuffix(r, "/api/draft/")

	switch r.Method {
	case http.MethodGet:
		draft, err := h.jobService.GetDraft(r.Context(), jobID)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, draft)

	case http.MethodPost:
		var body struct {
			ReportText string `json:"report_text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := h.jobService.SaveDraft(r.Context(), jobID, body.ReportText); err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"job_id": jobID,
			"saved":  true,
		})

	default:
		WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// RebuildHandler re-renders the PDF from the stored (possibly edited) draft.
// POST /api/rebuild/{id}
func (h *DraftHandler) RebuildHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	jobID := PathSuffix(r, "/api/rebuild/")
	if err := h.jobService.Rebuild(r.Context(), jobID); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":       jobID,
		"rebuilt":      true,
		"download_url": "/api/download/" + jobID,
	})
}

// QualityFixHandler runs one repair attempt against the stored draft.
// POST /api/quality-fix/{id}
func (h *DraftHandler) QualityFixHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	jobID := PathSuffix(r, "/api/quality-fix/")
	result, err := h.jobService.QualityFix(r.Context(), jobID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":  jobID,
		"quality": result,
	})
}

// RegenerateSectionHandler rewrites one named section of the stored draft.
// POST /api/regenerate-section/{id}
func (h *DraftHandler) RegenerateSectionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	jobID := PathSuffix(r, "/api/regenerate-section/")

	var body struct {
		Section      string `json:"section"`
		Instructions string `json:"instructions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Section == "" {
		WriteError(w, http.StatusBadRequest, "field 'section' is required")
		return
	}

	if err := h.jobService.RegenerateSection(r.Context(), jobID, body.Section, body.Instructions); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":       jobID,
		"section":      body.Section,
		"regenerated":  true,
		"download_url": "/api/download/" + jobID,
	})
}
