// -----------------------------------------------------------------------
// Job handler - submission, status, listing, lifecycle and download
// -----------------------------------------------------------------------

package handlers

import (
	"crypto/subtle"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/services/jobs"
	"golang.org/x/time/rate"
)

// maxUploadBytes bounds the multipart submission body (manual PDF + CSV)
const maxUploadBytes = 64 << 20

// JobHandler handles job-related API requests
type JobHandler struct {
	jobService *jobs.Service
	config     *common.Config
	logger     arbor.ILogger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobService *jobs.Service, config *common.Config, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		jobService: jobService,
		config:     config,
		logger:     logger,
		limiters:   make(map[string]*rate.Limiter),
	}
}

// limiterFor returns the per-client rate limiter, keyed on remote IP.
func (h *JobHandler) limiterFor(r *http.Request) *rate.Limiter {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	limiter, ok := h.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(h.config.RateLimit.Rate), h.config.RateLimit.Burst)
		h.limiters[ip] = limiter
	}
	return limiter
}

// requireAdminKey checks the X-Admin-Key header when an admin key is
// configured. With no key configured the check is a no-op (development).
func (h *JobHandler) requireAdminKey(w http.ResponseWriter, r *http.Request) bool {
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

// RunHandler accepts a submission and returns the queued job.
// POST /api/run (multipart/form-data)
func (h *JobHandler) RunHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if h.config.RateLimit.Enabled && !h.limiterFor(r).Allow() {
		WriteError(w, http.StatusTooManyRequests, "too many submissions, slow down")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid form submission")
		return
	}

	req := &jobs.SubmitRequest{
		Template:          r.FormValue("template"),
		ManualText:        r.FormValue("manual_text"),
		Goal:              r.FormValue("goal"),
		ExtraInstructions: r.FormValue("extra_instructions"),
		IncludeReview:     isTruthyForm(r.FormValue("include_review")),
		Title:             r.FormValue("report_title"),
		Name:              r.FormValue("student_name"),
		Course:            r.FormValue("course"),
		Group:             r.FormValue("group"),
		Date:              r.FormValue("date"),
	}

	pdfPath, err := h.saveUpload(r, "manual_pdf", ".pdf")
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.ManualPDFPath = pdfPath

	csvPath, err := h.saveUpload(r, "data_csv", ".csv")
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.CSVPath = csvPath

	job, err := h.jobService.Submit(r.Context(), req)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":     job.ID,
		"status":     job.Status,
		"queue_mode": job.QueueMode,
		"status_url": "/api/status/" + job.ID,
	})
}

// saveUpload persists one optional uploaded file into the uploads directory
// and returns its path, or "" when the field is absent.
func (h *JobHandler) saveUpload(r *http.Request, field, wantExt string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile {
			return "", nil
		}
		return "", fmt.Errorf("failed to read upload '%s'", field)
	}
	defer file.Close()

	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != wantExt {
		return "", fmt.Errorf("field '%s' must be a %s file", field, wantExt)
	}

	if err := os.MkdirAll(h.config.Storage.Uploads, 0755); err != nil {
		return "", fmt.Errorf("failed to prepare uploads directory")
	}
	path := filepath.Join(h.config.Storage.Uploads, uuid.New().String()+wantExt)
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to store upload")
	}
	defer out.Close()
	if _, err := io.Copy(out, file); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to store upload")
	}
	return path, nil
}

// StatusHandler returns the polling view for one job.
// GET /api/status/{id}
func (h *JobHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	jobID := PathSuffix(r, "/api/status/")
	status, err := h.jobService.GetStatus(r.Context(), jobID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

// RecentJobsHandler lists recent jobs.
// GET /api/recent-jobs?limit=20&status=done,failed
func (h *JobHandler) RecentJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	limit := QueryInt(r, "limit", 20)
	if limit > 100 {
		limit = 100
	}
	summaries, err := h.jobService.ListRecent(r.Context(), r.URL.Query().Get("status"), limit)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"jobs": summaries})
}

// CancelHandler requests cooperative cancellation.
// POST /api/cancel/{id}
func (h *JobHandler) CancelHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if !h.requireAdminKey(w, r) {
		return
	}

	jobID := PathSuffix(r, "/api/cancel/")
	job, err := h.jobService.Cancel(r.Context(), jobID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	resp := map[string]interface{}{
		"job_id":           job.ID,
		"status":           job.Status,
		"cancel_requested": job.CancelRequested,
	}
	if job.IsTerminal() && !job.CancelRequested {
		resp["message"] = fmt.Sprintf("job is already %s", job.Status)
	}
	WriteJSON(w, http.StatusOK, resp)
}

// RetryHandler creates a new job from a failed or canceled one.
// POST /api/retry/{id}
func (h *JobHandler) RetryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	jobID := PathSuffix(r, "/api/retry/")
	retry, err := h.jobService.Retry(r.Context(), jobID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":     retry.ID,
		"retry_of":   retry.RetryOf,
		"status":     retry.Status,
		"queue_mode": retry.QueueMode,
		"status_url": "/api/status/" + retry.ID,
	})
}

// DownloadHandler streams the rendered PDF.
// GET /api/download/{id}
func (h *JobHandler) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	jobID := PathSuffix(r, "/api/download/")
	pdfBytes, err := h.jobService.GetDocument(r.Context(), jobID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", jobID+".pdf"))
	w.Write(pdfBytes)
}

func isTruthyForm(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
