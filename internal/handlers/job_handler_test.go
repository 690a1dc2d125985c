package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
	"github.com/ternarybob/scriba/internal/services/jobs"
	storagebadger "github.com/ternarybob/scriba/internal/storage/badger"
	"github.com/ternarybob/scriba/internal/templates"
)

// ----- Mocks -----

type mockQueue struct {
	submitErr error
}

func (m *mockQueue) Submit(ctx context.Context, job *models.Job) (*interfaces.SubmitResult, error) {
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	return &interfaces.SubmitResult{Mode: models.QueueModeBackground}, nil
}

func (m *mockQueue) Cancel(ctx context.Context, jobID string) (*models.Job, error) {
	return nil, interfaces.ErrJobNotFound
}

func (m *mockQueue) Retry(ctx context.Context, jobID string) (*models.Job, error) {
	return nil, interfaces.ErrJobNotFound
}

type mockPDF struct{}

func (m *mockPDF) RenderDocument(input *interfaces.RenderInput) ([]byte, error) {
	return []byte("%PDF-fake"), nil
}

type mockExtractor struct{}

func (m *mockExtractor) ExtractText(path string, maxPages int) (string, error) {
	return "", errors.New("no extraction in tests")
}

func newTestHandler(t *testing.T, cfg *common.Config) *JobHandler {
	t.Helper()
	manager, err := storagebadger.NewManager(arbor.NewLogger(), &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "handler-db"),
	})
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { manager.Close() })

	service := jobs.NewService(manager, &mockQueue{}, &interfaces.AgentSet{},
		&mockPDF{}, &mockExtractor{}, templates.NewRegistry(), cfg, arbor.NewLogger())
	return NewJobHandler(service, cfg, arbor.NewLogger())
}

// ----- Status / lifecycle handlers -----

func TestStatusHandlerUnknownJob(t *testing.T) {
	handler := newTestHandler(t, common.NewDefaultConfig())

	req := httptest.NewRequest("GET", "/api/status/"+common.NewJobID(), nil)
	w := httptest.NewRecorder()
	handler.StatusHandler(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", w.Code)
	}
}

func TestStatusHandlerMalformedID(t *testing.T) {
	handler := newTestHandler(t, common.NewDefaultConfig())

	req := httptest.NewRequest("GET", "/api/status/not-a-job-id", nil)
	w := httptest.NewRecorder()
	handler.StatusHandler(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", w.Code)
	}
}

func TestStatusHandlerRejectsPost(t *testing.T) {
	handler := newTestHandler(t, common.NewDefaultConfig())

	req := httptest.NewRequest("POST", "/api/status/"+common.NewJobID(), nil)
	w := httptest.NewRecorder()
	handler.StatusHandler(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Status = %d, want 405", w.Code)
	}
}

func TestCancelHandlerRequiresAdminKey(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Admin.APIKey = "secret-key"
	handler := newTestHandler(t, cfg)

	req := httptest.NewRequest("POST", "/api/cancel/"+common.NewJobID(), nil)
	w := httptest.NewRecorder()
	handler.CancelHandler(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Status without key = %d, want 401", w.Code)
	}

	req = httptest.NewRequest("POST", "/api/cancel/"+common.NewJobID(), nil)
	req.Header.Set("X-Admin-Key", "secret-key")
	w = httptest.NewRecorder()
	handler.CancelHandler(w, req)
	// Key accepted; the unknown job is the remaining failure.
	if w.Code != http.StatusNotFound {
		t.Errorf("Status with key = %d, want 404", w.Code)
	}
}

func TestRunHandlerRateLimited(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.Rate = 0
	cfg.RateLimit.Burst = 0
	handler := newTestHandler(t, cfg)

	req := httptest.NewRequest("POST", "/api/run", nil)
	req.RemoteAddr = "203.0.113.7:4242"
	w := httptest.NewRecorder()
	handler.RunHandler(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Status = %d, want 429", w.Code)
	}
}

// ----- Version / health / 404 -----

func TestVersionHandler(t *testing.T) {
	handler := NewAPIHandler()

	req := httptest.NewRequest("GET", "/api/version", nil)
	w := httptest.NewRecorder()
	handler.VersionHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "version") || !strings.Contains(body, "git_commit") {
		t.Errorf("Body = %s", body)
	}
}

func TestHealthHandler(t *testing.T) {
	handler := NewAPIHandler()

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	handler.HealthHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("Body = %s", w.Body.String())
	}
}

func TestNotFoundHandler(t *testing.T) {
	handler := NewAPIHandler()

	req := httptest.NewRequest("GET", "/api/nope", nil)
	w := httptest.NewRecorder()
	handler.NotFoundHandler(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", w.Code)
	}
	if !strings.Contains(w.Body.String(), "/api/nope") {
		t.Errorf("Body should echo the path, got %s", w.Body.String())
	}
}

// ----- Helpers -----

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation error", &jobs.ValidationError{Message: "bad input"}, http.StatusBadRequest},
		{"job not found", interfaces.ErrJobNotFound, http.StatusNotFound},
		{"internal error", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteServiceError(w, tt.err)
			if w.Code != tt.want {
				t.Errorf("Status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestPathSuffix(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/status/job_abc", nil)
	if got := PathSuffix(req, "/api/status/"); got != "job_abc" {
		t.Errorf("PathSuffix() = %q, want job_abc", got)
	}

	req = httptest.NewRequest("GET", "/api/status/", nil)
	if got := PathSuffix(req, "/api/status/"); got != "" {
		t.Errorf("PathSuffix() = %q, want empty", got)
	}
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/recent-jobs?limit=5", nil)
	if got := QueryInt(req, "limit", 20); got != 5 {
		t.Errorf("QueryInt() = %d, want 5", got)
	}

	req = httptest.NewRequest("GET", "/api/recent-jobs?limit=abc", nil)
	if got := QueryInt(req, "limit", 20); got != 20 {
		t.Errorf("QueryInt() with junk = %d, want default 20", got)
	}
}

func TestIsTruthyForm(t *testing.T) {
	truthy := []string{"1", "true", "TRUE", "yes", "on", " True "}
	for _, v := range truthy {
		if !isTruthyForm(v) {
			t.Errorf("isTruthyForm(%q) = false, want true", v)
		}
	}
	falsy := []string{"", "0", "false", "off", "nope"}
	for _, v := range falsy {
		if isTruthyForm(v) {
			t.Errorf("isTruthyForm(%q) = true, want false", v)
		}
	}
}

