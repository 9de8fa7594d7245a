package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/meridian/internal/interfaces"
	"github.com/ternarybob/meridian/internal/models"
)

// fakeGenerator scripts responses per stage, keyed off the system prompt.
type fakeGenerator struct {
	mu            sync.Mutex
	calls         []string
	classifierOut string
	failSynthesis bool
	unavailable   error
}

func (g *fakeGenerator) Generate(ctx context.Context, systemText, userText string, opts interfaces.GenerateOptions) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, systemText)
	g.mu.Unlock()

	switch {
	case strings.Contains(systemText, "topic classifier"):
		return g.classifierOut, nil
	case strings.Contains(systemText, "market analyst"):
		return "Markets were mixed.", nil
	case strings.Contains(systemText, "news editor"):
		return "Three stories mattered today.", nil
	case strings.Contains(systemText, "risk analyst"):
		return "Rate risk remains elevated.", nil
	case strings.Contains(systemText, "lead editor"):
		if g.failSynthesis {
			return "", fmt.Errorf("model overloaded")
		}
		return "The day in one narrative.", nil
	default:
		return "Deep-dive analysis.", nil
	}
}

func (g *fakeGenerator) Available(model string) error {
	return g.unavailable
}

func (g *fakeGenerator) Describe(model string) (string, string) {
	return "gemini", "gemini-3-flash-preview"
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

var _ interfaces.TextGenerator = (*fakeGenerator)(nil)

func newTestOrchestrator(gen interfaces.TextGenerator, store interfaces.KeyValueStore) *Orchestrator {
	logger := createTestLogger()
	stages := NewStages(gen, logger, time.Minute, time.Minute, 1024)
	lease := NewLeaseManager(store, logger, 10*time.Minute, time.Hour)
	return NewOrchestrator(stages, lease, nil, gen, logger)
}

func briefRequest() *models.BriefRequest {
	return &models.BriefRequest{
		NewsItems: []string{
			"Energy prices spike amid supply fears",
			"Crude oil inventories fall sharply",
			"Technology shares rally on chip demand",
		},
		MarketSummary: "Index up 0.3%, breadth negative.",
		AsOf:          time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		Coverage:      0.92,
	}
}

func TestOrchestrator_FullRun(t *testing.T) {
	gen := &fakeGenerator{classifierOut: `["Energy", "Technology"]`}
	o := newTestOrchestrator(gen, newMemStore())

	result, err := o.Run(context.Background(), briefRequest())
	require.NoError(t, err)
	require.Equal(t, models.RunStatusSuccess, result.Status)
	require.NotNil(t, result.Report)

	content := result.Report.Content
	assert.Contains(t, content, "=== MARKET CONDITIONS ===")
	assert.Contains(t, content, "=== HEADLINE DIGEST ===")
	assert.Contains(t, content, "=== TOPIC: ENERGY ===")
	assert.Contains(t, content, "=== TOPIC: TECHNOLOGY ===")
	assert.Contains(t, content, "=== RISK ASSESSMENT ===")
	assert.Contains(t, content, "=== EXECUTIVE SYNTHESIS ===")
	assert.Contains(t, content, "The day in one narrative.")

	// 3 in round 1, risk + two matched topics in round 2, 1 synthesis.
	assert.Equal(t, 7, gen.callCount())

	prov := result.Report.Provenance
	assert.Equal(t, "gemini", prov.Provider)
	assert.Equal(t, "gemini-3-flash-preview", prov.Model)
	assert.NotEmpty(t, prov.RunID)
	assert.InDelta(t, 0.92, prov.Coverage, 0.001)
}

func TestOrchestrator_TopicWithoutCorpusIsSkipped(t *testing.T) {
	gen := &fakeGenerator{classifierOut: `["Energy", "Agriculture"]`}
	o := newTestOrchestrator(gen, newMemStore())

	result, err := o.Run(context.Background(), briefRequest())
	require.NoError(t, err)
	require.NotNil(t, result.Report)

	content := result.Report.Content
	assert.Contains(t, content, "=== TOPIC: AGRICULTURE ===")
	assert.Contains(t, content, noDataPlaceholder)

	// 3 + (risk + energy only) + 1 synthesis.
	assert.Equal(t, 6, gen.callCount())

	var agriStatus string
	for _, s := range result.Report.Provenance.Sections {
		if s.Name == "topic:Agriculture" {
			agriStatus = s.Status
		}
	}
	assert.Equal(t, models.SectionStatusSkipped, agriStatus)
}

func TestOrchestrator_CachedResultSkipsGeneration(t *testing.T) {
	gen := &fakeGenerator{classifierOut: `["Energy"]`}
	store := newMemStore()
	o := newTestOrchestrator(gen, store)

	first, err := o.Run(context.Background(), briefRequest())
	require.NoError(t, err)
	callsAfterFirst := gen.callCount()

	second, err := o.Run(context.Background(), briefRequest())
	require.NoError(t, err)
	require.Equal(t, models.RunStatusSuccess, second.Status)

	assert.Equal(t, callsAfterFirst, gen.callCount(), "cached run must make zero generation calls")
	assert.Equal(t, first.Report.Content, second.Report.Content)
	assert.Equal(t, first.Report.Provenance.RunID, second.Report.Provenance.RunID)
}

func TestOrchestrator_PendingLeaseShortCircuits(t *testing.T) {
	gen := &fakeGenerator{classifierOut: `["Energy"]`}
	store := newMemStore()
	o := newTestOrchestrator(gen, store)

	// Another instance holds the day's lease.
	lease := NewLeaseManager(store, createTestLogger(), 10*time.Minute, time.Hour)
	require.True(t, lease.Acquire(context.Background(), briefRequest().PeriodKey()))

	result, err := o.Run(context.Background(), briefRequest())
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPending, result.Status)
	assert.Nil(t, result.Report)
	assert.Zero(t, gen.callCount())
}

func TestOrchestrator_ForceBypassesCacheAndLease(t *testing.T) {
	gen := &fakeGenerator{classifierOut: `["Energy"]`}
	store := newMemStore()
	o := newTestOrchestrator(gen, store)

	first, err := o.Run(context.Background(), briefRequest())
	require.NoError(t, err)

	req := briefRequest()
	req.Force = true
	second, err := o.Run(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, models.RunStatusSuccess, second.Status)

	assert.NotEqual(t, first.Report.Provenance.RunID, second.Report.Provenance.RunID)
}

func TestOrchestrator_ForceOverridesPendingLease(t *testing.T) {
	gen := &fakeGenerator{classifierOut: `["Energy"]`}
	store := newMemStore()
	o := newTestOrchestrator(gen, store)

	// Another instance holds the day's lease but has not completed.
	lease := NewLeaseManager(store, createTestLogger(), 10*time.Minute, time.Hour)
	require.True(t, lease.Acquire(context.Background(), briefRequest().PeriodKey()))

	req := briefRequest()
	req.Force = true
	result, err := o.Run(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, models.RunStatusSuccess, result.Status)
	require.NotNil(t, result.Report)
	assert.Contains(t, result.Report.Content, "=== EXECUTIVE SYNTHESIS ===")
	assert.NotZero(t, gen.callCount())
}

func TestOrchestrator_SynthesisFailureReleasesLease(t *testing.T) {
	gen := &fakeGenerator{classifierOut: `["Energy"]`, failSynthesis: true}
	store := newMemStore()
	o := newTestOrchestrator(gen, store)

	_, err := o.Run(context.Background(), briefRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "synthesis failed")

	// The failed run must not leave the day locked.
	lease := NewLeaseManager(store, createTestLogger(), 10*time.Minute, time.Hour)
	assert.Equal(t, LeaseStateNone, lease.Status(context.Background(), briefRequest().PeriodKey()))

	// A retry can run straight through.
	gen.failSynthesis = false
	result, err := o.Run(context.Background(), briefRequest())
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSuccess, result.Status)
}

func TestOrchestrator_UnavailableBackendFailsBeforeLease(t *testing.T) {
	gen := &fakeGenerator{unavailable: fmt.Errorf("no api key configured")}
	store := newMemStore()
	o := newTestOrchestrator(gen, store)

	_, err := o.Run(context.Background(), briefRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend unavailable")

	lease := NewLeaseManager(store, createTestLogger(), 10*time.Minute, time.Hour)
	assert.Equal(t, LeaseStateNone, lease.Status(context.Background(), briefRequest().PeriodKey()))
	assert.Zero(t, gen.callCount())
}

func TestOrchestrator_ClassifierGarbageStillProducesReport(t *testing.T) {
	gen := &fakeGenerator{classifierOut: "I could not find any clear themes today, sorry!"}
	o := newTestOrchestrator(gen, newMemStore())

	result, err := o.Run(context.Background(), briefRequest())
	require.NoError(t, err)
	require.Equal(t, models.RunStatusSuccess, result.Status)
	assert.Contains(t, result.Report.Content, "=== RISK ASSESSMENT ===")
}
