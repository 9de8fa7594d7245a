package badger

import (
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/meridian/internal/interfaces"
	"github.com/ternarybob/meridian/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ReportStorage persists completed briefs keyed by day. Unlike the lease and
// result cache entries, archive records never expire.
type ReportStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewReportStorage creates a new ReportStorage instance
func NewReportStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ReportArchive {
	return &ReportStorage{
		db:     db,
		logger: logger,
	}
}

// SaveBrief inserts or replaces the archived brief for its day
func (s *ReportStorage) SaveBrief(brief *models.ArchivedBrief) error {
	if brief == nil || brief.Day == "" {
		return fmt.Errorf("archived brief requires a day key")
	}
	if err := s.db.Store().Upsert(brief.Day, brief); err != nil {
		return fmt.Errorf("failed to save brief for %s: %w", brief.Day, err)
	}
	s.logger.Debug().Str("day", brief.Day).Msg("Archived brief saved")
	return nil
}

// GetBrief retrieves the archived brief for a day
func (s *ReportStorage) GetBrief(day string) (*models.ArchivedBrief, error) {
	var brief models.ArchivedBrief
	err := s.db.Store().Get(day, &brief)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get brief for %s: %w", day, err)
	}
	return &brief, nil
}

// ListBriefs returns archived briefs, most recent day first
func (s *ReportStorage) ListBriefs(limit int) ([]*models.ArchivedBrief, error) {
	if limit <= 0 {
		limit = 30
	}

	var briefs []*models.ArchivedBrief
	query := badgerhold.Where(badgerhold.Key).Ne("").SortBy("Day").Reverse().Limit(limit)
	if err := s.db.Store().Find(&briefs, query); err != nil {
		return nil, fmt.Errorf("failed to list briefs: %w", err)
	}
	return briefs, nil
}

// Ensure ReportStorage implements the ReportArchive interface
var _ interfaces.ReportArchive = (*ReportStorage)(nil)
