package interfaces

import (
	"context"

	"github.com/ternarybob/meridian/internal/models"
)

// ReportArchive persists completed briefs beyond the cache TTL window so
// historical days stay queryable after their result records expire.
type ReportArchive interface {
	SaveBrief(brief *models.ArchivedBrief) error
	GetBrief(day string) (*models.ArchivedBrief, error)
	ListBriefs(limit int) ([]*models.ArchivedBrief, error)
}

// CorpusSource supplies the input bundle for scheduler-triggered runs. The
// news and market-data collaborators behind it are external to this service;
// a deployment registers whatever source it has.
type CorpusSource interface {
	Fetch(ctx context.Context) (*models.BriefRequest, error)
}
