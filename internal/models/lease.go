package models

import "time"

// Lease statuses stored in the shared cache.
const (
	LeaseStatusPending   = "pending"
	LeaseStatusCompleted = "completed"
)

// LeaseRecord signals that a run is in progress (or recently finished) for a
// reporting period. It lives under a short TTL; once a ResultRecord exists
// the lease may lapse harmlessly.
type LeaseRecord struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ResultRecord holds a completed brief under a long TTL, keyed by the same
// period identifier as the lease but stored independently of it.
type ResultRecord struct {
	Status      string    `json:"status"`
	Report      Report    `json:"report"`
	GeneratedAt time.Time `json:"generated_at"`
}
