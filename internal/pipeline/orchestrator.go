package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/meridian/internal/interfaces"
	"github.com/ternarybob/meridian/internal/models"
)

// Orchestrator sequences a full brief run: lease negotiation, the three
// generation rounds, assembly, and result publication.
type Orchestrator struct {
	stages    *Stages
	lease     *LeaseManager
	archive   interfaces.ReportArchive
	generator interfaces.TextGenerator
	logger    arbor.ILogger
}

func NewOrchestrator(stages *Stages, lease *LeaseManager, archive interfaces.ReportArchive, generator interfaces.TextGenerator, logger arbor.ILogger) *Orchestrator {
	return &Orchestrator{
		stages:    stages,
		lease:     lease,
		archive:   archive,
		generator: generator,
		logger:    logger,
	}
}

// Run produces the brief for the request's period. Concurrent callers for
// the same period coordinate through the lease: exactly one executes the
// pipeline, the rest observe pending or the cached result. A forced run
// bypasses both and regenerates unconditionally.
func (o *Orchestrator) Run(ctx context.Context, req *models.BriefRequest) (*models.RunResult, error) {
	if err := o.generator.Available(req.Model); err != nil {
		return nil, fmt.Errorf("backend unavailable: %w", err)
	}

	period := req.PeriodKey()

	if req.Force {
		if !o.lease.ForceRefresh(ctx, period) {
			// Refresh never loses its own acquire unless the store raced us.
			o.logger.Warn().Str("period", period).Msg("Force refresh lost lease acquisition")
			return &models.RunResult{Status: models.RunStatusPending}, nil
		}
	} else {
		// The cached result is checked before the lease state: once a brief
		// exists it is served even if a forced regeneration happens to hold
		// the lease at that moment.
		if rec, ok := o.lease.Result(ctx, period); ok {
			o.logger.Info().Str("period", period).Msg("Returning cached brief")
			return &models.RunResult{Status: models.RunStatusSuccess, Report: &rec.Report}, nil
		}
		if o.lease.Status(ctx, period) == LeaseStatePending {
			return &models.RunResult{Status: models.RunStatusPending}, nil
		}
		if !o.lease.Acquire(ctx, period) {
			return &models.RunResult{Status: models.RunStatusPending}, nil
		}
	}

	report, err := o.execute(ctx, req)
	if err != nil {
		o.lease.ReleaseOnFailure(ctx, period)
		return nil, err
	}

	if err := o.lease.Complete(ctx, period, *report); err != nil {
		o.logger.Warn().Err(err).Str("period", period).Msg("Failed to publish brief result to cache")
	}

	if o.archive != nil {
		archived := &models.ArchivedBrief{Day: period, Report: *report, CreatedAt: time.Now().UTC()}
		if err := o.archive.SaveBrief(archived); err != nil {
			o.logger.Warn().Err(err).Str("period", period).Msg("Failed to archive brief")
		}
	}

	return &models.RunResult{Status: models.RunStatusSuccess, Report: report}, nil
}

func (o *Orchestrator) execute(ctx context.Context, req *models.BriefRequest) (*models.Report, error) {
	runID := uuid.New().String()
	provider, model := o.generator.Describe(req.Model)
	started := time.Now().UTC()

	o.logger.Info().
		Str("run_id", runID).
		Str("provider", provider).
		Str("model", model).
		Int("news_items", len(req.NewsItems)).
		Msg("Starting brief run")

	roundOne := o.stages.RoundOne(ctx, req)

	var categories []string
	if classifier, ok := roundOne[sectionClassifier]; ok && classifier.OK() {
		categories = ParseCategories(classifier.Content)
	} else {
		o.logger.Warn().Str("run_id", runID).Msg("Classifier failed, no topic sections scheduled")
	}

	roundTwo := o.stages.RoundTwo(ctx, req, categories)

	synthesis, err := o.stages.Synthesize(ctx, req, categories, roundOne, roundTwo)
	if err != nil {
		o.logger.Error().Err(err).Str("run_id", runID).Msg("Brief run failed at synthesis")
		return nil, err
	}

	prov := BuildProvenance(runID, provider, model, started, req, categories, roundOne, roundTwo, true)
	report := AssembleReport(req, categories, roundOne, roundTwo, synthesis, prov)

	o.logger.Info().
		Str("run_id", runID).
		Str("duration", time.Since(started).Round(time.Millisecond).String()).
		Int("sections", len(prov.Sections)).
		Msg("Brief run completed")

	return &report, nil
}
