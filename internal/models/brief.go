package models

import "time"

// BriefRequest is the immutable input bundle for one pipeline run. Callers
// supply the corpus as plain text; the upstream news and market collaborators
// that produce it are external to this service.
type BriefRequest struct {
	// NewsItems are free-text corpus segments, one item per headline/article.
	NewsItems []string `json:"news_items"`

	// MarketSummary is the structured market-data summary rendered as text.
	MarketSummary string `json:"market_summary"`

	// AsOf anchors the reporting period; zero means now.
	AsOf time.Time `json:"as_of"`

	// Coverage is the upstream-computed corpus coverage score, carried into
	// provenance unchanged.
	Coverage float64 `json:"coverage"`

	// Model optionally overrides the configured backend/model.
	Model string `json:"model,omitempty"`

	// ThinkingLevel is an optional reasoning-effort hint.
	ThinkingLevel string `json:"thinking_level,omitempty"`

	// Force discards any existing lease before acquiring, guaranteeing a
	// fresh run even while another is pending.
	Force bool `json:"force,omitempty"`
}

// PeriodKey returns the reporting-period identifier: the UTC calendar day of
// the as-of timestamp. At most one successful run is cached per period.
func (r *BriefRequest) PeriodKey() string {
	asOf := r.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}
	return asOf.UTC().Format("2006-01-02")
}
