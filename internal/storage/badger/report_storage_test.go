package badger

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/meridian/internal/interfaces"
	"github.com/ternarybob/meridian/internal/models"
)

func archivedBrief(day string) *models.ArchivedBrief {
	return &models.ArchivedBrief{
		Day: day,
		Report: models.Report{
			Content: "DAILY BRIEF " + day,
			Provenance: models.Provenance{
				RunID:    "run-" + day,
				Provider: "gemini",
			},
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestReportStorage_SaveAndGet(t *testing.T) {
	archive := NewReportStorage(newTestDB(t), arbor.NewLogger())

	require.NoError(t, archive.SaveBrief(archivedBrief("2026-08-30")))

	got, err := archive.GetBrief("2026-08-30")
	require.NoError(t, err)
	assert.Equal(t, "run-2026-08-30", got.Report.Provenance.RunID)
}

func TestReportStorage_SaveOverwritesSameDay(t *testing.T) {
	archive := NewReportStorage(newTestDB(t), arbor.NewLogger())

	first := archivedBrief("2026-08-30")
	require.NoError(t, archive.SaveBrief(first))

	second := archivedBrief("2026-08-30")
	second.Report.Provenance.RunID = "run-forced"
	require.NoError(t, archive.SaveBrief(second))

	got, err := archive.GetBrief("2026-08-30")
	require.NoError(t, err)
	assert.Equal(t, "run-forced", got.Report.Provenance.RunID)
}

func TestReportStorage_GetMissingDay(t *testing.T) {
	archive := NewReportStorage(newTestDB(t), arbor.NewLogger())

	_, err := archive.GetBrief("2026-01-01")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
}

func TestReportStorage_SaveRequiresDay(t *testing.T) {
	archive := NewReportStorage(newTestDB(t), arbor.NewLogger())

	assert.Error(t, archive.SaveBrief(nil))
	assert.Error(t, archive.SaveBrief(&models.ArchivedBrief{}))
}

func TestReportStorage_ListNewestFirst(t *testing.T) {
	archive := NewReportStorage(newTestDB(t), arbor.NewLogger())

	for day := 1; day <= 5; day++ {
		require.NoError(t, archive.SaveBrief(archivedBrief(fmt.Sprintf("2026-08-%02d", day))))
	}

	briefs, err := archive.ListBriefs(3)
	require.NoError(t, err)
	require.Len(t, briefs, 3)
	assert.Equal(t, "2026-08-05", briefs[0].Day)
	assert.Equal(t, "2026-08-04", briefs[1].Day)
	assert.Equal(t, "2026-08-03", briefs[2].Day)
}

func TestReportStorage_ListEmptyArchive(t *testing.T) {
	archive := NewReportStorage(newTestDB(t), arbor.NewLogger())

	briefs, err := archive.ListBriefs(10)
	require.NoError(t, err)
	assert.Empty(t, briefs)
}
