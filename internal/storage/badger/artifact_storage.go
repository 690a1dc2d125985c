package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// Artifact is one persisted per-job artifact record. A single record type
// carries text outputs, section sets, the debug record and the rendered PDF;
// exactly one payload field is set per record.
type Artifact struct {
	Key       string    `badgerhold:"key"` // "<job_id>/<name>"
	JobID     string    `badgerhold:"index"`
	Name      string
	Text      string              `json:"text,omitempty"`
	Sections  []models.Section    `json:"sections,omitempty"`
	Debug     *models.DebugRecord `json:"debug,omitempty"`
	PDF       []byte              `json:"pdf,omitempty"`
	UpdatedAt time.Time
}

// Reserved artifact names for non-text payloads
const (
	artifactDebug    = "debug.json"
	artifactSections = "sections.json"
	artifactDocument = "document.pdf"
)

// ArtifactStorage implements the ArtifactStorage interface for Badger
type ArtifactStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

var _ interfaces.ArtifactStorage = (*ArtifactStorage)(nil)

// NewArtifactStorage creates a new ArtifactStorage instance
func NewArtifactStorage(db *BadgerDB, logger arbor.ILogger) *ArtifactStorage {
	return &ArtifactStorage{
		db:     db,
		logger: logger,
	}
}

func artifactKey(jobID, name string) string {
	return jobID + "/" + name
}

func (s *ArtifactStorage) upsert(a *Artifact) error {
	a.Key = artifactKey(a.JobID, a.Name)
	a.UpdatedAt = time.Now().UTC()
	if err := s.db.Store().Upsert(a.Key, a); err != nil {
		return fmt.Errorf("failed to save artifact %s: %w", a.Key, err)
	}
	return nil
}

func (s *ArtifactStorage) get(jobID, name string) (*Artifact, error) {
	var a Artifact
	if err := s.db.Store().Get(artifactKey(jobID, name), &a); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get artifact %s/%s: %w", jobID, name, err)
	}
	return &a, nil
}

func (s *ArtifactStorage) SaveDebug(ctx context.Context, record *models.DebugRecord) error {
	if record == nil || record.JobID == "" {
		return fmt.Errorf("debug record requires a job ID")
	}
	return s.upsert(&Artifact{JobID: record.JobID, Name: artifactDebug, Debug: record})
}

func (s *ArtifactStorage) GetDebug(ctx context.Context, jobID string) (*models.DebugRecord, error) {
	a, err := s.get(jobID, artifactDebug)
	if err != nil {
		return nil, err
	}
	return a.Debug, nil
}

func (s *ArtifactStorage) SaveText(ctx context.Context, jobID, name, text string) error {
	return s.upsert(&Artifact{JobID: jobID, Name: name, Text: text})
}

func (s *ArtifactStorage) GetText(ctx context.Context, jobID, name string) (string, error) {
	a, err := s.get(jobID, name)
	if err != nil {
		return "", err
	}
	return a.Text, nil
}

func (s *ArtifactStorage) SaveSections(ctx context.Context, jobID string, sections []models.Section) error {
	return s.upsert(&Artifact{JobID: jobID, Name: artifactSections, Sections: sections})
}

func (s *ArtifactStorage) GetSections(ctx context.Context, jobID string) ([]models.Section, error) {
	a, err := s.get(jobID, artifactSections)
	if err != nil {
		return nil, err
	}
	return a.Sections, nil
}

func (s *ArtifactStorage) SaveDocument(ctx context.Context, jobID string, pdf []byte) error {
	if len(pdf) == 0 {
		return fmt.Errorf("document payload is empty")
	}
	return s.upsert(&Artifact{JobID: jobID, Name: artifactDocument, PDF: pdf})
}

func (s *ArtifactStorage) GetDocument(ctx context.Context, jobID string) ([]byte, error) {
	a, err := s.get(jobID, artifactDocument)
	if err != nil {
		return nil, err
	}
	return a.PDF, nil
}

// DeleteArtifacts removes every artifact belonging to the job.
func (s *ArtifactStorage) DeleteArtifacts(ctx context.Context, jobID string) error {
	if err := s.db.Store().DeleteMatching(&Artifact{}, badgerhold.Where("JobID").Eq(jobID)); err != nil {
		return fmt.Errorf("failed to delete artifacts for %s: %w", jobID, err)
	}
	return nil
}

// ListJobIDsOlderThan returns job IDs whose newest artifact predates cutoff.
// Used by the cleanup service to find expired jobs.
func (s *ArtifactStorage) ListJobIDsOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	var artifacts []Artifact
	if err := s.db.Store().Find(&artifacts, badgerhold.Where("JobID").Ne("")); err != nil {
		return nil, fmt.Errorf("failed to scan artifacts: %w", err)
	}

	newest := make(map[string]time.Time)
	for _, a := range artifacts {
		if t, ok := newest[a.JobID]; !ok || a.UpdatedAt.After(t) {
			newest[a.JobID] = a.UpdatedAt
		}
	}

	var ids []string
	for jobID, t := range newest {
		if t.Before(cutoff) {
			ids = append(ids, jobID)
		}
	}
	return ids, nil
}
