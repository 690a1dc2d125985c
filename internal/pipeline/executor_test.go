package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
	storagebadger "github.com/ternarybob/scriba/internal/storage/badger"
	"github.com/ternarybob/scriba/internal/templates"
)

// ----- Executor fakes -----

type stubPDF struct {
	err      error
	rendered int
}

func (p *stubPDF) RenderDocument(input *interfaces.RenderInput) ([]byte, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.rendered++
	return []byte("%PDF-1.4 stub"), nil
}

// cancelingResearcher files a cancel request through storage while the
// research stage is running, the way the API process would.
type cancelingResearcher struct {
	inner   *fakeAgents
	storage interfaces.JobStorage
}

func (c *cancelingResearcher) Research(ctx context.Context, inputs interfaces.StageInputs) (*models.ResearchNotes, error) {
	notes, err := c.inner.Research(ctx, inputs)
	if err != nil {
		return nil, err
	}
	if _, cerr := c.storage.RequestCancel(ctx, inputs.JobID); cerr != nil {
		return nil, cerr
	}
	return notes, nil
}

// finishingWriter drives the job to a terminal state behind the executor's
// back, simulating a reaper or operator intervening mid-run.
type finishingWriter struct {
	inner   *fakeAgents
	storage interfaces.JobStorage
}

func (w *finishingWriter) Write(ctx context.Context, inputs interfaces.StageInputs, rules *templates.RuleSet,
	notes *models.ResearchNotes, data *models.DataSummary) (*models.WriterDraft, error) {
	job, err := w.storage.GetJob(ctx, inputs.JobID)
	if err != nil {
		return nil, err
	}
	job.MarkCanceled()
	if err := w.storage.SaveJob(ctx, job); err != nil {
		return nil, err
	}
	return w.inner.Write(ctx, inputs, rules, notes, data)
}

// ----- Harness -----

type execHarness struct {
	executor *Executor
	storage  interfaces.StorageManager
	pdf      *stubPDF
	exports  string
}

func newExecHarness(t *testing.T, agents *interfaces.AgentSet, pdf *stubPDF) *execHarness {
	t.Helper()
	manager, err := storagebadger.NewManager(arbor.NewLogger(), &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "db"),
	})
	if err != nil {
		t.Fatalf("Failed to create storage manager: %v", err)
	}
	t.Cleanup(func() { manager.Close() })

	cfg := common.NewDefaultConfig()
	cfg.Storage.Exports = filepath.Join(t.TempDir(), "exports")

	orch := NewOrchestrator(agents, arbor.NewLogger())
	return &execHarness{
		executor: NewExecutor(orch, manager, pdf, templates.NewRegistry(), cfg, arbor.NewLogger()),
		storage:  manager,
		pdf:      pdf,
		exports:  cfg.Storage.Exports,
	}
}

func seedQueued(t *testing.T, js interfaces.JobStorage, id, template string) *models.Job {
	t.Helper()
	job := models.NewJob(id, models.RequestPayload{
		Template:   template,
		ManualText: "lecture notes on heat transfer",
		Goal:       "prepare for the thermodynamics exam",
	})
	if err := js.SaveJob(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	return job
}

func studyDraft() string {
	return strings.Join([]string{
		"Overview:\nCovers the heat transfer unit.",
		"Key Concepts:\nConduction and convection.",
		"Definitions:\nConduction moves heat through solids.",
		"Common Mistakes:\nMixing up units.",
		"Practice Questions:\nWhat drives conduction?",
		"Answer Key (brief):\nThe answer is a temperature gradient.",
	}, "\n\n")
}

// ----- Tests -----

func TestExecuteCompletesJob(t *testing.T) {
	f := &fakeAgents{writerText: studyDraft(), repairText: studyDraft()}
	h := newExecHarness(t, f.agentSet(), &stubPDF{})
	ctx := context.Background()

	job := seedQueued(t, h.storage.JobStorage(), "job-exec-1", "study_guide")
	if err := h.executor.Execute(ctx, job.ID); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	// study_guide has no CSV, review or figures stages.
	wantCalls := []string{"research", "writer", "repair"}
	if strings.Join(f.calls, ",") != strings.Join(wantCalls, ",") {
		t.Errorf("Stage calls = %v, want %v", f.calls, wantCalls)
	}

	got, err := h.storage.JobStorage().GetJob(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.JobStatusDone || got.Progress != 100 {
		t.Errorf("Job = %+v, want done/100", got.Summary())
	}
	if got.LastHeartbeat == nil {
		t.Error("Executor should have heartbeated through storage")
	}

	if doc, err := h.storage.ArtifactStorage().GetDocument(ctx, job.ID); err != nil || len(doc) == 0 {
		t.Errorf("GetDocument() = %d bytes, err %v", len(doc), err)
	}
	if _, err := os.Stat(filepath.Join(h.exports, job.ID+".pdf")); err != nil {
		t.Errorf("Expected exported PDF on disk: %v", err)
	}

	debug, err := h.storage.ArtifactStorage().GetDebug(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetDebug() error = %v", err)
	}
	if debug.Template != "study_guide" || debug.Quality == nil {
		t.Errorf("Debug record = %+v", debug)
	}
}

func TestExecuteCanceledWhileQueued(t *testing.T) {
	f := &fakeAgents{writerText: studyDraft()}
	h := newExecHarness(t, f.agentSet(), &stubPDF{})
	ctx := context.Background()

	job := seedQueued(t, h.storage.JobStorage(), "job-exec-2", "study_guide")
	if _, err := h.storage.JobStorage().RequestCancel(ctx, job.ID); err != nil {
		t.Fatal(err)
	}

	if err := h.executor.Execute(ctx, job.ID); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(f.calls) != 0 {
		t.Errorf("No stage should run for a pre-canceled job, got %v", f.calls)
	}
	got, _ := h.storage.JobStorage().GetJob(ctx, job.ID)
	if got.Status != models.JobStatusCanceled {
		t.Errorf("Status = %q, want canceled", got.Status)
	}
}

func TestExecuteTerminalJobIsNoOp(t *testing.T) {
	f := &fakeAgents{writerText: studyDraft()}
	h := newExecHarness(t, f.agentSet(), &stubPDF{})
	ctx := context.Background()

	job := seedQueued(t, h.storage.JobStorage(), "job-exec-3", "study_guide")
	job.MarkStarted()
	job.MarkDone()
	if err := h.storage.JobStorage().SaveJob(ctx, job); err != nil {
		t.Fatal(err)
	}

	// Stale queue redelivery after the job already finished.
	if err := h.executor.Execute(ctx, job.ID); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(f.calls) != 0 {
		t.Errorf("Redelivered terminal job must not execute, got calls %v", f.calls)
	}
	got, _ := h.storage.JobStorage().GetJob(ctx, job.ID)
	if got.Status != models.JobStatusDone {
		t.Errorf("Status = %q, want done", got.Status)
	}
}

func TestExecuteObservesMidRunCancel(t *testing.T) {
	f := &fakeAgents{writerText: studyDraft()}
	pdf := &stubPDF{}
	// Harness is wired after the storage exists, so build the agent set by hand.
	manager, err := storagebadger.NewManager(arbor.NewLogger(), &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "db"),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { manager.Close() })

	agents := f.agentSet()
	agents.Researcher = &cancelingResearcher{inner: f, storage: manager.JobStorage()}

	cfg := common.NewDefaultConfig()
	cfg.Storage.Exports = ""
	executor := NewExecutor(NewOrchestrator(agents, arbor.NewLogger()), manager, pdf,
		templates.NewRegistry(), cfg, arbor.NewLogger())

	ctx := context.Background()
	job := seedQueued(t, manager.JobStorage(), "job-exec-4", "study_guide")
	if err := executor.Execute(ctx, job.ID); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	// Cancel filed during research is observed at the next stage boundary;
	// the writer never runs and the progress writes along the way must not
	// have clobbered the flag.
	wantCalls := []string{"research"}
	if strings.Join(f.calls, ",") != strings.Join(wantCalls, ",") {
		t.Errorf("Stage calls = %v, want %v", f.calls, wantCalls)
	}
	got, _ := manager.JobStorage().GetJob(ctx, job.ID)
	if got.Status != models.JobStatusCanceled {
		t.Errorf("Status = %q, want canceled", got.Status)
	}
	if !got.CancelRequested {
		t.Error("Cancel flag was lost during the run")
	}
	if pdf.rendered != 0 {
		t.Error("Canceled job must not render a document")
	}
}

func TestExecuteDoesNotOverwriteExternalTerminal(t *testing.T) {
	f := &fakeAgents{writerText: studyDraft(), repairText: studyDraft()}
	pdf := &stubPDF{}
	manager, err := storagebadger.NewManager(arbor.NewLogger(), &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "db"),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { manager.Close() })

	agents := f.agentSet()
	agents.Writer = &finishingWriter{inner: f, storage: manager.JobStorage()}

	cfg := common.NewDefaultConfig()
	cfg.Storage.Exports = ""
	executor := NewExecutor(NewOrchestrator(agents, arbor.NewLogger()), manager, pdf,
		templates.NewRegistry(), cfg, arbor.NewLogger())

	ctx := context.Background()
	job := seedQueued(t, manager.JobStorage(), "job-exec-5", "study_guide")
	if err := executor.Execute(ctx, job.ID); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	got, _ := manager.JobStorage().GetJob(ctx, job.ID)
	if got.Status != models.JobStatusCanceled {
		t.Errorf("Status = %q; externally reached terminal state must stand", got.Status)
	}
	if pdf.rendered != 0 {
		t.Error("Executor must not render once the job is terminal externally")
	}
}

func TestExecuteRenderFailureMarksFailed(t *testing.T) {
	f := &fakeAgents{writerText: studyDraft(), repairText: studyDraft()}
	h := newExecHarness(t, f.agentSet(), &stubPDF{err: errors.New("render exploded")})
	ctx := context.Background()

	job := seedQueued(t, h.storage.JobStorage(), "job-exec-6", "study_guide")
	if err := h.executor.Execute(ctx, job.ID); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	got, _ := h.storage.JobStorage().GetJob(ctx, job.ID)
	if got.Status != models.JobStatusFailed {
		t.Fatalf("Status = %q, want failed", got.Status)
	}
	if got.Error == nil || got.Error.Stage != string(models.StageRender) {
		t.Errorf("Error = %+v, want render stage failure", got.Error)
	}
}

func TestExecuteUnknownTemplate(t *testing.T) {
	f := &fakeAgents{}
	h := newExecHarness(t, f.agentSet(), &stubPDF{})
	ctx := context.Background()

	job := seedQueued(t, h.storage.JobStorage(), "job-exec-7", "mystery_template")
	if err := h.executor.Execute(ctx, job.ID); err == nil {
		t.Fatal("Expected error for unknown template")
	}

	got, _ := h.storage.JobStorage().GetJob(ctx, job.ID)
	if got.Status != models.JobStatusFailed {
		t.Errorf("Status = %q, want failed", got.Status)
	}
	if got.Error == nil || got.Error.Stage != string(models.StageQueued) {
		t.Errorf("Error = %+v, want failure at queued stage", got.Error)
	}
	if len(f.calls) != 0 {
		t.Errorf("No stage should run, got %v", f.calls)
	}
}
