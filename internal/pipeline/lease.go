package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/meridian/internal/interfaces"
	"github.com/ternarybob/meridian/internal/models"
)

const (
	leaseKeyPrefix  = "brief:lease:"
	resultKeyPrefix = "brief:result:"
)

// Lease states as seen by the orchestrator.
const (
	LeaseStateNone      = "none"
	LeaseStatePending   = models.LeaseStatusPending
	LeaseStateCompleted = models.LeaseStatusCompleted
)

// LeaseManager coordinates run ownership for a reporting period through the
// shared cache: none -> pending (short TTL) -> completed, with the completed
// result stored separately under a long TTL. There is deliberately no
// process-local mutex; correctness across server instances comes from the
// cache's single-key atomicity. When the cache itself errors, every read
// degrades to "lease not held" so a cache outage can never block reporting,
// at the documented cost of possible duplicate runs during the outage.
type LeaseManager struct {
	store     interfaces.KeyValueStore
	logger    arbor.ILogger
	leaseTTL  time.Duration
	resultTTL time.Duration
}

// NewLeaseManager creates a lease manager over the shared cache
func NewLeaseManager(store interfaces.KeyValueStore, logger arbor.ILogger, leaseTTL, resultTTL time.Duration) *LeaseManager {
	return &LeaseManager{
		store:     store,
		logger:    logger,
		leaseTTL:  leaseTTL,
		resultTTL: resultTTL,
	}
}

// Status reports the lease state for a period key
func (m *LeaseManager) Status(ctx context.Context, key string) string {
	data, err := m.store.Get(ctx, leaseKeyPrefix+key)
	if err == interfaces.ErrKeyNotFound {
		return LeaseStateNone
	}
	if err != nil {
		m.logger.Warn().Err(err).Str("period", key).Msg("Cache read failed, treating lease as not held")
		return LeaseStateNone
	}

	var record models.LeaseRecord
	if err := json.Unmarshal(data, &record); err != nil {
		m.logger.Warn().Err(err).Str("period", key).Msg("Unreadable lease record, treating lease as not held")
		return LeaseStateNone
	}
	return record.Status
}

// Acquire claims the period for this caller. It succeeds only when no lease
// record exists; the existence check and the pending write are one atomic
// cache operation. A cache failure is logged and treated as "lease not
// held", letting this caller proceed rather than silently blocking runs.
func (m *LeaseManager) Acquire(ctx context.Context, key string) bool {
	record := models.LeaseRecord{
		Status:    models.LeaseStatusPending,
		StartedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		m.logger.Warn().Err(err).Str("period", key).Msg("Failed to encode lease record")
		return true
	}

	ok, err := m.store.SetIfAbsent(ctx, leaseKeyPrefix+key, data, m.leaseTTL)
	if err != nil {
		m.logger.Warn().Err(err).Str("period", key).Msg("Cache write failed, treating lease as not held")
		return true
	}
	return ok
}

// ForceRefresh deletes any existing lease before acquiring, so the caller
// wins unconditionally. Two concurrent forced refreshes race: both delete,
// both may acquire, last completed run's result wins. That race is accepted
// and documented, not masked.
func (m *LeaseManager) ForceRefresh(ctx context.Context, key string) bool {
	if err := m.store.Delete(ctx, leaseKeyPrefix+key); err != nil {
		m.logger.Warn().Err(err).Str("period", key).Msg("Failed to delete lease for forced refresh")
	}
	return m.Acquire(ctx, key)
}

// Complete stores the finished report under the long result TTL and marks
// the lease completed under the short lease TTL. The result record is
// authoritative from here on; the lease lapsing is harmless.
func (m *LeaseManager) Complete(ctx context.Context, key string, report models.Report) error {
	result := models.ResultRecord{
		Status:      models.LeaseStatusCompleted,
		Report:      report,
		GeneratedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result record: %w", err)
	}
	if err := m.store.Set(ctx, resultKeyPrefix+key, data, m.resultTTL); err != nil {
		return fmt.Errorf("failed to store result record: %w", err)
	}

	lease := models.LeaseRecord{
		Status:    models.LeaseStatusCompleted,
		StartedAt: time.Now().UTC(),
	}
	leaseData, err := json.Marshal(lease)
	if err == nil {
		err = m.store.Set(ctx, leaseKeyPrefix+key, leaseData, m.leaseTTL)
	}
	if err != nil {
		// Result record is already written; the stale pending lease expires
		// on its own TTL.
		m.logger.Warn().Err(err).Str("period", key).Msg("Failed to mark lease completed")
	}
	return nil
}

// ReleaseOnFailure deletes the lease outright so the next caller may retry
// immediately instead of waiting out the TTL.
func (m *LeaseManager) ReleaseOnFailure(ctx context.Context, key string) {
	if err := m.store.Delete(ctx, leaseKeyPrefix+key); err != nil {
		m.logger.Warn().Err(err).Str("period", key).Msg("Failed to release lease after run failure")
	}
}

// Result fetches the stored result record for a period key, if one exists
func (m *LeaseManager) Result(ctx context.Context, key string) (*models.ResultRecord, bool) {
	data, err := m.store.Get(ctx, resultKeyPrefix+key)
	if err == interfaces.ErrKeyNotFound {
		return nil, false
	}
	if err != nil {
		m.logger.Warn().Err(err).Str("period", key).Msg("Cache read failed fetching result record")
		return nil, false
	}

	var record models.ResultRecord
	if err := json.Unmarshal(data, &record); err != nil {
		m.logger.Warn().Err(err).Str("period", key).Msg("Unreadable result record")
		return nil, false
	}
	if record.Status != models.LeaseStatusCompleted {
		return nil, false
	}
	return &record, true
}
