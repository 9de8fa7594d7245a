package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/meridian/internal/interfaces"
	"github.com/ternarybob/meridian/internal/models"
	"github.com/ternarybob/meridian/internal/pipeline"
)

// Service triggers a brief run on a cron schedule. The corpus for each
// scheduled run comes from a registered CorpusSource; without one the
// scheduler ticks but skips, since the pipeline needs an input bundle.
type Service struct {
	orchestrator *pipeline.Orchestrator
	source       interfaces.CorpusSource
	cron         *cron.Cron
	logger       arbor.ILogger
	mu           sync.Mutex
	running      bool
	lastRun      *time.Time
	lastError    string
}

// NewService creates a new scheduler service
func NewService(orchestrator *pipeline.Orchestrator, logger arbor.ILogger) *Service {
	return &Service{
		orchestrator: orchestrator,
		cron:         cron.New(),
		logger:       logger,
	}
}

// RegisterSource sets the corpus source used for scheduled runs.
func (s *Service) RegisterSource(source interfaces.CorpusSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = source
}

// Start begins the scheduler with the given cron expression
func (s *Service) Start(cronExpr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	if cronExpr == "" {
		cronExpr = "0 6 * * *" // Default: 06:00 daily
	}

	if _, err := s.cron.AddFunc(cronExpr, s.runScheduledBrief); err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("cron_expr", cronExpr).
		Msg("Brief scheduler started")

	return nil
}

// Stop halts the scheduler and waits for any in-flight run to finish
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false

	s.logger.Info().Msg("Brief scheduler stopped")
}

// IsRunning returns whether the scheduler is active
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Service) runScheduledBrief() {
	s.mu.Lock()
	source := s.source
	s.mu.Unlock()

	if source == nil {
		s.logger.Warn().Msg("Scheduled brief skipped: no corpus source registered")
		return
	}

	now := time.Now().UTC()
	s.mu.Lock()
	s.lastRun = &now
	s.mu.Unlock()

	ctx := context.Background()

	req, err := source.Fetch(ctx)
	if err != nil {
		s.recordError(fmt.Errorf("corpus fetch failed: %w", err))
		return
	}

	result, err := s.orchestrator.Run(ctx, req)
	if err != nil {
		s.recordError(err)
		return
	}

	s.mu.Lock()
	s.lastError = ""
	s.mu.Unlock()

	if result.Status == models.RunStatusPending {
		s.logger.Info().Str("period", req.PeriodKey()).Msg("Scheduled brief already in progress elsewhere")
		return
	}

	s.logger.Info().
		Str("period", req.PeriodKey()).
		Msg("Scheduled brief completed")
}

func (s *Service) recordError(err error) {
	s.mu.Lock()
	s.lastError = err.Error()
	s.mu.Unlock()
	s.logger.Error().Err(err).Msg("Scheduled brief failed")
}
