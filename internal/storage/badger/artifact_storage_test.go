package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
)

func TestTextArtifactRoundTrip(t *testing.T) {
	storage := newTestManager(t).ArtifactStorage()
	ctx := context.Background()

	if err := storage.SaveText(ctx, "job-1", interfaces.ArtifactTheory, "theory body"); err != nil {
		t.Fatalf("SaveText() error = %v", err)
	}

	got, err := storage.GetText(ctx, "job-1", interfaces.ArtifactTheory)
	if err != nil {
		t.Fatalf("GetText() error = %v", err)
	}
	if got != "theory body" {
		t.Errorf("GetText() = %q", got)
	}

	// Overwrite replaces, not appends.
	if err := storage.SaveText(ctx, "job-1", interfaces.ArtifactTheory, "updated"); err != nil {
		t.Fatal(err)
	}
	got, _ = storage.GetText(ctx, "job-1", interfaces.ArtifactTheory)
	if got != "updated" {
		t.Errorf("GetText() after overwrite = %q", got)
	}
}

func TestSectionsArtifactRoundTrip(t *testing.T) {
	storage := newTestManager(t).ArtifactStorage()
	ctx := context.Background()

	sections := []models.Section{
		{Name: "Objective", Required: true, Body: "measure", Origin: models.OriginGenerated},
		{Name: "Results", Required: true, Body: "numbers", Origin: models.OriginRepaired},
	}
	if err := storage.SaveSections(ctx, "job-1", sections); err != nil {
		t.Fatalf("SaveSections() error = %v", err)
	}

	got, err := storage.GetSections(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetSections() error = %v", err)
	}
	if len(got) != 2 || got[1].Origin != models.OriginRepaired {
		t.Errorf("GetSections() = %+v", got)
	}
}

func TestDebugArtifact(t *testing.T) {
	storage := newTestManager(t).ArtifactStorage()
	ctx := context.Background()

	record := &models.DebugRecord{
		JobID:    "job-1",
		Template: "lab_report",
		Timings:  []models.StageTiming{{Stage: "writer", DurationMS: 120}},
	}
	if err := storage.SaveDebug(ctx, record); err != nil {
		t.Fatalf("SaveDebug() error = %v", err)
	}

	got, err := storage.GetDebug(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetDebug() error = %v", err)
	}
	if got.Template != "lab_report" || len(got.Timings) != 1 {
		t.Errorf("GetDebug() = %+v", got)
	}

	if err := storage.SaveDebug(ctx, &models.DebugRecord{}); err == nil {
		t.Error("Expected error saving a debug record with no job ID")
	}
}

func TestDocumentArtifact(t *testing.T) {
	storage := newTestManager(t).ArtifactStorage()
	ctx := context.Background()

	if err := storage.SaveDocument(ctx, "job-1", nil); err == nil {
		t.Error("Expected error saving an empty document")
	}

	pdf := []byte("%PDF-1.4 test")
	if err := storage.SaveDocument(ctx, "job-1", pdf); err != nil {
		t.Fatalf("SaveDocument() error = %v", err)
	}
	got, err := storage.GetDocument(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}
	if string(got) != string(pdf) {
		t.Errorf("GetDocument() = %q", got)
	}
}

func TestDeleteArtifactsRemovesAll(t *testing.T) {
	storage := newTestManager(t).ArtifactStorage()
	ctx := context.Background()

	storage.SaveText(ctx, "job-1", interfaces.ArtifactTheory, "a")
	storage.SaveText(ctx, "job-1", interfaces.ArtifactReport, "b")
	storage.SaveText(ctx, "job-2", interfaces.ArtifactTheory, "keep")

	if err := storage.DeleteArtifacts(ctx, "job-1"); err != nil {
		t.Fatalf("DeleteArtifacts() error = %v", err)
	}

	if _, err := storage.GetText(ctx, "job-1", interfaces.ArtifactTheory); !errors.Is(err, interfaces.ErrJobNotFound) {
		t.Errorf("Expected job-1 artifacts gone, got %v", err)
	}
	if got, err := storage.GetText(ctx, "job-2", interfaces.ArtifactTheory); err != nil || got != "keep" {
		t.Errorf("job-2 artifacts must survive, got %q, %v", got, err)
	}
}

func TestListJobIDsOlderThan(t *testing.T) {
	storage := newTestManager(t).ArtifactStorage()
	ctx := context.Background()

	storage.SaveText(ctx, "job-old", interfaces.ArtifactTheory, "old")
	time.Sleep(5 * time.Millisecond)
	cutoff := time.Now().UTC()
	time.Sleep(5 * time.Millisecond)
	storage.SaveText(ctx, "job-new", interfaces.ArtifactTheory, "new")

	// A newer artifact on an old job keeps the whole job.
	storage.SaveText(ctx, "job-mixed", interfaces.ArtifactTheory, "first")
	storage.SaveText(ctx, "job-mixed", interfaces.ArtifactReport, "second")

	ids, err := storage.ListJobIDsOlderThan(ctx, cutoff)
	if err != nil {
		t.Fatalf("ListJobIDsOlderThan() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != "job-old" {
		t.Errorf("ListJobIDsOlderThan() = %v, want [job-old]", ids)
	}
}
