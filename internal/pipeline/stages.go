package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/meridian/internal/interfaces"
	"github.com/ternarybob/meridian/internal/models"
)

// Section names. Round 2 topic sections are keyed by topicSectionPrefix plus
// the classifier's label.
const (
	sectionMarket      = "market_conditions"
	sectionHeadlines   = "headline_digest"
	sectionClassifier  = "topic_classifier"
	sectionRisk        = "risk_assessment"
	sectionSynthesis   = "executive_synthesis"
	topicSectionPrefix = "topic:"
)

// noDataPlaceholder stands in for any section whose task failed or had no
// corpus. Raw failure reasons stay in logs and provenance status, never in
// generated narrative.
const noDataPlaceholder = "No data available for this section."

const (
	marketSystemPrompt = "You are a senior market analyst writing the market-conditions section of a daily brief. " +
		"Summarize the state of the market from the data provided: direction, breadth, notable movers, volumes. " +
		"Plain text, no headings, no speculation beyond the data."

	headlinesSystemPrompt = "You are a news editor writing the headline-digest section of a daily brief. " +
		"Condense the supplied headlines into the handful of developments a reader must know today. " +
		"Plain text, no headings, group related items."

	classifierSystemPrompt = "You are a topic classifier. From the supplied headlines, identify the distinct themes " +
		"that deserve their own deep-dive section in a daily brief. " +
		"Respond with ONLY a JSON array of short topic labels, most important first, at most " +
		"10 entries. Example: [\"rate decisions\", \"energy prices\"]. No other text."

	topicSystemPrompt = "You are a senior analyst writing a themed deep-dive section of a daily brief. " +
		"Analyze only the supplied items for the topic %q: what happened, why it matters, what to watch. " +
		"Plain text, no headings."

	riskSystemPrompt = "You are a risk analyst writing the risk-assessment section of a daily brief. " +
		"From the market data and headlines supplied, name the material risks currently in play and their likely triggers. " +
		"Plain text, no headings."

	synthesisSystemPrompt = "You are the lead editor of a daily analytical brief. Combine the section drafts supplied " +
		"into one coherent executive synthesis: the day's narrative in a few tight paragraphs. " +
		"Do not repeat the sections verbatim and do not invent data that is not in them."
)

// Stages builds the prompts for each pipeline round and issues the calls
// through the normalized generator. Round boundaries are strict: Round 2's
// task set is computed from Round 1's settled output.
type Stages struct {
	generator        interfaces.TextGenerator
	logger           arbor.ILogger
	callTimeout      time.Duration
	synthesisTimeout time.Duration
	maxTokens        int
}

// NewStages creates the stage runner
func NewStages(generator interfaces.TextGenerator, logger arbor.ILogger, callTimeout, synthesisTimeout time.Duration, maxTokens int) *Stages {
	return &Stages{
		generator:        generator,
		logger:           logger,
		callTimeout:      callTimeout,
		synthesisTimeout: synthesisTimeout,
		maxTokens:        maxTokens,
	}
}

// RoundOne runs the fixed fan-out: market conditions, headline digest, and
// the topic classifier whose output drives Round 2.
func (s *Stages) RoundOne(ctx context.Context, req *models.BriefRequest) map[string]models.ModuleOutcome {
	corpus := joinCorpus(req.NewsItems)

	tasks := map[string]Task{
		sectionMarket: s.task(req, marketSystemPrompt,
			fmt.Sprintf("As of %s.\n\nMarket data summary:\n%s", req.PeriodKey(), req.MarketSummary)),
		sectionHeadlines: s.task(req, headlinesSystemPrompt,
			fmt.Sprintf("As of %s.\n\nHeadlines:\n%s", req.PeriodKey(), corpus)),
		sectionClassifier: s.task(req, classifierSystemPrompt,
			fmt.Sprintf("Headlines:\n%s", corpus)),
	}

	s.logger.Info().Int("tasks", len(tasks)).Msg("Running round 1 fan-out")
	return RunAll(ctx, s.logger, tasks)
}

// RoundTwo runs the dynamic fan-out: one deep-dive per classifier topic that
// has matching corpus items, plus the fixed risk-assessment task. Topics
// whose filtered corpus slice is empty are not scheduled at all; that is how
// the fan-out width shrinks below the category count.
func (s *Stages) RoundTwo(ctx context.Context, req *models.BriefRequest, categories []string) map[string]models.ModuleOutcome {
	tasks := map[string]Task{
		sectionRisk: s.task(req, riskSystemPrompt,
			fmt.Sprintf("Market data summary:\n%s\n\nHeadlines:\n%s", req.MarketSummary, joinCorpus(req.NewsItems))),
	}

	for _, category := range categories {
		matched := FilterCorpus(req.NewsItems, category)
		if len(matched) == 0 {
			s.logger.Debug().
				Str("topic", category).
				Msg("No corpus items match topic, skipping deep-dive")
			continue
		}
		tasks[topicSectionPrefix+category] = s.task(req,
			fmt.Sprintf(topicSystemPrompt, category),
			fmt.Sprintf("Items for this topic:\n%s", joinCorpus(matched)))
	}

	s.logger.Info().
		Int("tasks", len(tasks)).
		Int("topics", len(categories)).
		Msg("Running round 2 fan-out")
	return RunAll(ctx, s.logger, tasks)
}

// Synthesize runs the single Round 3 call over every earlier outcome. Failed
// outcomes contribute the fixed placeholder so internal failure detail never
// leaks into the generated narrative. Unlike sub-task failures, an error
// here fails the whole run.
func (s *Stages) Synthesize(ctx context.Context, req *models.BriefRequest, categories []string, roundOne, roundTwo map[string]models.ModuleOutcome) (string, error) {
	var input strings.Builder
	writeSection := func(title string, outcome models.ModuleOutcome, ok bool) {
		input.WriteString("## ")
		input.WriteString(title)
		input.WriteString("\n")
		if ok && outcome.OK() {
			input.WriteString(outcome.Content)
		} else {
			input.WriteString(noDataPlaceholder)
		}
		input.WriteString("\n\n")
	}

	marketOutcome, marketOK := roundOne[sectionMarket]
	writeSection("Market conditions", marketOutcome, marketOK)
	headlinesOutcome, headlinesOK := roundOne[sectionHeadlines]
	writeSection("Headline digest", headlinesOutcome, headlinesOK)
	for _, category := range categories {
		outcome, ok := roundTwo[topicSectionPrefix+category]
		writeSection("Topic: "+category, outcome, ok)
	}
	riskOutcome, riskOK := roundTwo[sectionRisk]
	writeSection("Risk assessment", riskOutcome, riskOK)

	text, err := s.generator.Generate(ctx, synthesisSystemPrompt, input.String(), interfaces.GenerateOptions{
		Model:         req.Model,
		MaxTokens:     s.maxTokens,
		Timeout:       s.synthesisTimeout,
		ThinkingLevel: req.ThinkingLevel,
	})
	if err != nil {
		return "", fmt.Errorf("synthesis failed: %w", err)
	}
	return text, nil
}

// task builds a thunk for one analysis call with the standard per-call timeout
func (s *Stages) task(req *models.BriefRequest, systemText, userText string) Task {
	return func(ctx context.Context) (string, error) {
		return s.generator.Generate(ctx, systemText, userText, interfaces.GenerateOptions{
			Model:         req.Model,
			MaxTokens:     s.maxTokens,
			Timeout:       s.callTimeout,
			ThinkingLevel: req.ThinkingLevel,
		})
	}
}

// FilterCorpus returns the corpus items matching a topic label by
// case-insensitive keyword match: the whole label as a substring, or any
// label word of four or more characters. Short connective words would match
// everything and are ignored.
func FilterCorpus(items []string, category string) []string {
	label := strings.ToLower(strings.TrimSpace(category))
	if label == "" {
		return nil
	}

	var keywords []string
	for _, word := range strings.Fields(label) {
		if len(word) >= 4 {
			keywords = append(keywords, word)
		}
	}

	var matched []string
	for _, item := range items {
		lower := strings.ToLower(item)
		if strings.Contains(lower, label) {
			matched = append(matched, item)
			continue
		}
		for _, keyword := range keywords {
			if strings.Contains(lower, keyword) {
				matched = append(matched, item)
				break
			}
		}
	}
	return matched
}

// joinCorpus renders corpus items one per line for prompt inclusion
func joinCorpus(items []string) string {
	var b strings.Builder
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(strings.TrimSpace(item))
		b.WriteString("\n")
	}
	return b.String()
}
