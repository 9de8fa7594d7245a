package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/meridian/internal/interfaces"
	"github.com/ternarybob/meridian/internal/models"
	"github.com/ternarybob/meridian/internal/pipeline"
)

// BriefSubmission is the POST /api/brief request payload.
// All fields are validated using go-playground/validator tags.
type BriefSubmission struct {
	NewsItems     []string `json:"news_items" validate:"required,min=1,dive,required"`
	MarketSummary string   `json:"market_summary" validate:"required"`
	AsOf          string   `json:"as_of,omitempty"`
	Coverage      float64  `json:"coverage" validate:"gte=0,lte=1"`
	Model         string   `json:"model,omitempty"`
	ThinkingLevel string   `json:"thinking_level,omitempty" validate:"omitempty,oneof=none minimal low medium high"`
	Force         bool     `json:"force,omitempty"`
}

// Validate validates the submission using go-playground/validator.
func (s *BriefSubmission) Validate() error {
	validate := validator.New()
	return validate.Struct(s)
}

// ToRequest converts the submission into the pipeline's request model.
func (s *BriefSubmission) ToRequest() (*models.BriefRequest, error) {
	req := &models.BriefRequest{
		NewsItems:     s.NewsItems,
		MarketSummary: s.MarketSummary,
		Coverage:      s.Coverage,
		Model:         s.Model,
		ThinkingLevel: s.ThinkingLevel,
		Force:         s.Force,
	}

	if s.AsOf != "" {
		asOf, err := time.Parse(time.RFC3339, s.AsOf)
		if err != nil {
			return nil, fmt.Errorf("invalid as_of timestamp: %w", err)
		}
		req.AsOf = asOf
	}

	return req, nil
}

type BriefHandler struct {
	orchestrator *pipeline.Orchestrator
	archive      interfaces.ReportArchive
	logger       arbor.ILogger
}

func NewBriefHandler(orchestrator *pipeline.Orchestrator, archive interfaces.ReportArchive, logger arbor.ILogger) *BriefHandler {
	return &BriefHandler{
		orchestrator: orchestrator,
		archive:      archive,
		logger:       logger,
	}
}

// GenerateHandler handles POST /api/brief - runs the brief pipeline for the
// submitted corpus. Returns 200 with the report, or 202 when another run
// already holds the period's lease.
func (h *BriefHandler) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var submission BriefSubmission
	if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON payload: "+err.Error())
		return
	}

	if err := submission.Validate(); err != nil {
		WriteError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	req, err := submission.ToRequest()
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.orchestrator.Run(r.Context(), req)
	if err != nil {
		h.logger.Error().Err(err).Str("period", req.PeriodKey()).Msg("Brief run failed")
		WriteError(w, http.StatusInternalServerError, "Brief generation failed: "+err.Error())
		return
	}

	if result.Status == models.RunStatusPending {
		WriteJSON(w, http.StatusAccepted, map[string]string{
			"status": models.RunStatusPending,
			"period": req.PeriodKey(),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": result.Status,
		"period": req.PeriodKey(),
		"report": result.Report,
	})
}

// GetHandler handles GET /api/brief?date=YYYY-MM-DD - returns an archived
// brief. Defaults to today when no date is given.
func (h *BriefHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	day := r.URL.Query().Get("date")
	if day == "" {
		day = time.Now().UTC().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", day); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	}

	brief, err := h.archive.GetBrief(day)
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		WriteError(w, http.StatusNotFound, "No brief archived for "+day)
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("day", day).Msg("Failed to load archived brief")
		WriteError(w, http.StatusInternalServerError, "Failed to load brief")
		return
	}

	WriteJSON(w, http.StatusOK, brief)
}

// ListHandler handles GET /api/briefs?limit=N - lists archived briefs,
// newest first.
func (h *BriefHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	limit := 30
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 && n <= 365 {
			limit = n
		}
	}

	briefs, err := h.archive.ListBriefs(limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list archived briefs")
		WriteError(w, http.StatusInternalServerError, "Failed to list briefs")
		return
	}

	summaries := make([]map[string]interface{}, 0, len(briefs))
	for _, brief := range briefs {
		summaries = append(summaries, map[string]interface{}{
			"day":        brief.Day,
			"run_id":     brief.Report.Provenance.RunID,
			"provider":   brief.Report.Provenance.Provider,
			"model":      brief.Report.Provenance.Model,
			"created_at": brief.CreatedAt,
		})
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(summaries),
		"briefs": summaries,
	})
}
