package badger

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
)

// Manager aggregates the Badger-backed storage services behind one handle
type Manager struct {
	db              *BadgerDB
	jobStorage      interfaces.JobStorage
	artifactStorage interfaces.ArtifactStorage
	logger          arbor.ILogger
}

var _ interfaces.StorageManager = (*Manager)(nil)

// NewManager opens the database and constructs the storage services
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize badger database: %w", err)
	}

	return &Manager{
		db:              db,
		jobStorage:      NewJobStorage(db, logger),
		artifactStorage: NewArtifactStorage(db, logger),
		logger:          logger,
	}, nil
}

func (m *Manager) JobStorage() interfaces.JobStorage {
	return m.jobStorage
}

func (m *Manager) ArtifactStorage() interfaces.ArtifactStorage {
	return m.artifactStorage
}

// DB exposes the underlying connection for services that need their own
// record types, such as the durable queue.
func (m *Manager) DB() *BadgerDB {
	return m.db
}

func (m *Manager) Close() error {
	m.logger.Debug().Msg("Closing storage manager")
	return m.db.Close()
}
