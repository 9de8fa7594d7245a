package models

import "time"

// Section completion statuses recorded in provenance.
const (
	SectionStatusOK      = "ok"
	SectionStatusFailed  = "failed"
	SectionStatusSkipped = "skipped"
)

// Run statuses returned to callers.
const (
	RunStatusSuccess = "success"
	RunStatusPending = "pending"
)

// SectionStatus names one pipeline section and whether it completed.
type SectionStatus struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Provenance describes how a brief was produced.
type Provenance struct {
	RunID       string          `json:"run_id"`
	Provider    string          `json:"provider"`
	Model       string          `json:"model"`
	GeneratedAt time.Time       `json:"generated_at"`
	Coverage    float64         `json:"coverage"`
	Sections    []SectionStatus `json:"sections"`
}

// Report is the assembled multi-section brief plus its provenance block.
type Report struct {
	Content    string     `json:"content"`
	Provenance Provenance `json:"provenance"`
}

// RunResult is what a run invocation returns: either the report, or a
// pending marker when another run already owns the period's lease.
type RunResult struct {
	Status string  `json:"status"`
	Report *Report `json:"report,omitempty"`
}

// ArchivedBrief is the persisted record of a completed day's brief, kept
// beyond the cache TTL for the archive endpoints.
type ArchivedBrief struct {
	Day       string    `badgerhold:"key" json:"day"`
	Report    Report    `json:"report"`
	CreatedAt time.Time `json:"created_at"`
}
