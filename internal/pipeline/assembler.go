package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/meridian/internal/models"
)

const sectionDelimiter = "================================================================"

// AssembleReport deterministically renders every outcome into one delimited
// plain-text document plus its provenance block. Section order is fixed:
// the Round 1 analyses, topics in classifier order, risk assessment, then
// the synthesis. Failed or unscheduled sections render the placeholder; the
// downstream rendering collaborator consumes this text as-is.
func AssembleReport(req *models.BriefRequest, categories []string, roundOne, roundTwo map[string]models.ModuleOutcome, synthesis string, prov models.Provenance) models.Report {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("DAILY BRIEF %s\n", req.PeriodKey()))
	b.WriteString(sectionDelimiter)
	b.WriteString("\n\n")

	writeSection := func(title string, outcome models.ModuleOutcome, scheduled bool) {
		b.WriteString(fmt.Sprintf("=== %s ===\n", title))
		if scheduled && outcome.OK() && strings.TrimSpace(outcome.Content) != "" {
			b.WriteString(strings.TrimSpace(outcome.Content))
		} else {
			b.WriteString(noDataPlaceholder)
		}
		b.WriteString("\n\n")
	}

	marketOutcome, marketOK := roundOne[sectionMarket]
	writeSection("MARKET CONDITIONS", marketOutcome, marketOK)

	headlinesOutcome, headlinesOK := roundOne[sectionHeadlines]
	writeSection("HEADLINE DIGEST", headlinesOutcome, headlinesOK)

	for _, category := range categories {
		outcome, scheduled := roundTwo[topicSectionPrefix+category]
		writeSection("TOPIC: "+strings.ToUpper(category), outcome, scheduled)
	}

	riskOutcome, riskOK := roundTwo[sectionRisk]
	writeSection("RISK ASSESSMENT", riskOutcome, riskOK)

	writeSection("EXECUTIVE SYNTHESIS", models.TextOutcome(synthesis), true)

	b.WriteString(sectionDelimiter)
	b.WriteString("\n")
	b.WriteString(renderProvenance(prov))

	return models.Report{
		Content:    b.String(),
		Provenance: prov,
	}
}

// BuildProvenance records how the run went: backend identity, per-section
// completion status in the same deterministic order the report renders, and
// the upstream-supplied coverage score. Failure reasons stay out of the
// report body; here they are reduced to a status only.
func BuildProvenance(runID, provider, model string, generatedAt time.Time, req *models.BriefRequest, categories []string, roundOne, roundTwo map[string]models.ModuleOutcome, synthesisOK bool) models.Provenance {
	var sections []models.SectionStatus

	appendOutcome := func(name string, outcomes map[string]models.ModuleOutcome) {
		outcome, scheduled := outcomes[name]
		status := models.SectionStatusSkipped
		if scheduled {
			if outcome.OK() {
				status = models.SectionStatusOK
			} else {
				status = models.SectionStatusFailed
			}
		}
		sections = append(sections, models.SectionStatus{Name: name, Status: status})
	}

	appendOutcome(sectionMarket, roundOne)
	appendOutcome(sectionHeadlines, roundOne)
	appendOutcome(sectionClassifier, roundOne)
	for _, category := range categories {
		appendOutcome(topicSectionPrefix+category, roundTwo)
	}
	appendOutcome(sectionRisk, roundTwo)

	synthStatus := models.SectionStatusOK
	if !synthesisOK {
		synthStatus = models.SectionStatusFailed
	}
	sections = append(sections, models.SectionStatus{Name: sectionSynthesis, Status: synthStatus})

	return models.Provenance{
		RunID:       runID,
		Provider:    provider,
		Model:       model,
		GeneratedAt: generatedAt,
		Coverage:    req.Coverage,
		Sections:    sections,
	}
}

func renderProvenance(prov models.Provenance) string {
	var b strings.Builder
	b.WriteString("PROVENANCE\n")
	b.WriteString(fmt.Sprintf("run_id:       %s\n", prov.RunID))
	b.WriteString(fmt.Sprintf("provider:     %s\n", prov.Provider))
	b.WriteString(fmt.Sprintf("model:        %s\n", prov.Model))
	b.WriteString(fmt.Sprintf("generated_at: %s\n", prov.GeneratedAt.UTC().Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf("coverage:     %.2f\n", prov.Coverage))
	b.WriteString("sections:\n")
	for _, section := range prov.Sections {
		b.WriteString(fmt.Sprintf("  - %s: %s\n", section.Name, section.Status))
	}
	return b.String()
}
