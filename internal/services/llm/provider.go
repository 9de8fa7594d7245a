package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/meridian/internal/common"
	"github.com/ternarybob/meridian/internal/interfaces"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// ProviderType represents the AI provider type
type ProviderType string

const (
	// ProviderGemini uses Google Gemini API
	ProviderGemini ProviderType = "gemini"
	// ProviderClaude uses Anthropic Claude API
	ProviderClaude ProviderType = "claude"
)

// CallError is the uniform failure for any backend call that did not produce
// usable text: transport errors, non-success statuses, empty or unreadable
// bodies. Callers never see partially parsed data as success.
type CallError struct {
	Provider ProviderType
	Reason   string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s call failed: %s", e.Provider, e.Reason)
}

func callFailed(provider ProviderType, reason string) *CallError {
	return &CallError{Provider: provider, Reason: reason}
}

// ProviderFactory normalizes the two supported backend wire shapes into one
// text-generation call. Claude takes a role-tagged message list and returns
// one message of text blocks; Gemini takes a system instruction plus content
// and returns candidate parts, of which reasoning parts are discarded.
// Which backend handles a call is decided from the configured or overridden
// model identity, never from a caller flag. Each Generate performs exactly
// one outbound request.
type ProviderFactory struct {
	geminiConfig *common.GeminiConfig
	claudeConfig *common.ClaudeConfig
	llmConfig    *common.LLMConfig
	logger       arbor.ILogger

	mu           sync.Mutex
	geminiClient *genai.Client
	claudeClient anthropic.Client
	claudeReady  bool

	geminiLimiter *rate.Limiter
	claudeLimiter *rate.Limiter
}

// NewProviderFactory creates a new provider factory
func NewProviderFactory(
	geminiConfig *common.GeminiConfig,
	claudeConfig *common.ClaudeConfig,
	llmConfig *common.LLMConfig,
	logger arbor.ILogger,
) *ProviderFactory {
	return &ProviderFactory{
		geminiConfig:  geminiConfig,
		claudeConfig:  claudeConfig,
		llmConfig:     llmConfig,
		logger:        logger,
		geminiLimiter: rate.NewLimiter(rate.Every(geminiConfig.GetRateLimit()), 1),
		claudeLimiter: rate.NewLimiter(rate.Every(claudeConfig.GetRateLimit()), 1),
	}
}

// DetectProvider determines the provider type from a model string.
// Model strings can be:
// - "claude-sonnet-4-20250514" -> Claude
// - "claude/claude-sonnet-4-20250514" -> Claude (with prefix)
// - "gemini-3-flash" -> Gemini
// - "gemini/gemini-3-flash" -> Gemini (with prefix)
// - Empty string -> uses default provider from config
func (f *ProviderFactory) DetectProvider(model string) ProviderType {
	if model == "" {
		return ProviderType(f.llmConfig.DefaultProvider)
	}

	model = strings.ToLower(model)

	if strings.HasPrefix(model, "claude/") || strings.HasPrefix(model, "anthropic/") {
		return ProviderClaude
	}
	if strings.HasPrefix(model, "gemini/") || strings.HasPrefix(model, "google/") {
		return ProviderGemini
	}

	if strings.HasPrefix(model, "claude-") {
		return ProviderClaude
	}
	if strings.HasPrefix(model, "gemini-") {
		return ProviderGemini
	}

	return ProviderType(f.llmConfig.DefaultProvider)
}

// NormalizeModel removes provider prefix from model name if present
func (f *ProviderFactory) NormalizeModel(model string) string {
	prefixes := []string{"claude/", "anthropic/", "gemini/", "google/"}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToLower(model), prefix) {
			return model[len(prefix):]
		}
	}
	return model
}

// Describe resolves a model override to its provider name and effective model
func (f *ProviderFactory) Describe(model string) (string, string) {
	provider := f.DetectProvider(model)
	effective := f.NormalizeModel(model)
	if effective == "" {
		effective = f.defaultModel(provider)
	}
	return string(provider), effective
}

// Available reports whether credentials exist for the provider the given
// model override resolves to.
func (f *ProviderFactory) Available(model string) error {
	switch f.DetectProvider(model) {
	case ProviderClaude:
		if f.claudeConfig.APIKey == "" {
			return fmt.Errorf("no Anthropic API key configured")
		}
	default:
		if f.geminiConfig.APIKey == "" {
			return fmt.Errorf("no Gemini API key configured")
		}
	}
	return nil
}

// defaultModel returns the configured default model for a provider
func (f *ProviderFactory) defaultModel(provider ProviderType) string {
	switch provider {
	case ProviderClaude:
		return f.claudeConfig.Model
	default:
		return f.geminiConfig.Model
	}
}

// Generate performs one backend call and returns the response text.
// opts.Timeout bounds the call including rate-limiter admission.
func (f *ProviderFactory) Generate(ctx context.Context, systemText, userText string, opts interfaces.GenerateOptions) (string, error) {
	provider := f.DetectProvider(opts.Model)
	model := f.NormalizeModel(opts.Model)
	if model == "" {
		model = f.defaultModel(provider)
	}

	callCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	f.logger.Debug().
		Str("provider", string(provider)).
		Str("model", model).
		Int("max_tokens", opts.MaxTokens).
		Msg("Generating content with provider")

	switch provider {
	case ProviderClaude:
		return f.generateWithClaude(callCtx, systemText, userText, model, opts)
	default:
		return f.generateWithGemini(callCtx, systemText, userText, model, opts)
	}
}

// generateWithClaude generates content using the Claude API
func (f *ProviderFactory) generateWithClaude(ctx context.Context, systemText, userText, model string, opts interfaces.GenerateOptions) (string, error) {
	client, err := f.getClaudeClient()
	if err != nil {
		return "", callFailed(ProviderClaude, err.Error())
	}

	if err := f.claudeLimiter.Wait(ctx); err != nil {
		return "", callFailed(ProviderClaude, err.Error())
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = f.claudeConfig.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userText)),
		},
	}
	if f.claudeConfig.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(f.claudeConfig.Temperature))
	}
	if systemText != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemText},
		}
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return "", callFailed(ProviderClaude, err.Error())
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", callFailed(ProviderClaude, "empty response body")
	}

	return text.String(), nil
}

// generateWithGemini generates content using the Gemini API
func (f *ProviderFactory) generateWithGemini(ctx context.Context, systemText, userText, model string, opts interfaces.GenerateOptions) (string, error) {
	client, err := f.getGeminiClient(ctx)
	if err != nil {
		return "", callFailed(ProviderGemini, err.Error())
	}

	if err := f.geminiLimiter.Wait(ctx); err != nil {
		return "", callFailed(ProviderGemini, err.Error())
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(f.geminiConfig.Temperature),
	}
	if opts.MaxTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}

	thinkingLevel := opts.ThinkingLevel
	if thinkingLevel == "" {
		thinkingLevel = f.geminiConfig.Thinking
	}
	if parsed := parseGeminiThinkingLevel(thinkingLevel); parsed != "" {
		config.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingLevel: parsed,
		}
	}

	contents := []*genai.Content{genai.NewContentFromText(userText, genai.RoleUser)}

	resp, err := client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", callFailed(ProviderGemini, err.Error())
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", callFailed(ProviderGemini, "no candidates in response")
	}

	// Concatenate text parts, discarding reasoning parts
	var text strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Thought {
				continue
			}
			text.WriteString(part.Text)
		}
		if text.Len() > 0 {
			break
		}
	}
	if text.Len() == 0 {
		return "", callFailed(ProviderGemini, "empty response body")
	}

	return text.String(), nil
}

// getClaudeClient returns the Claude client, creating it on first use
func (f *ProviderFactory) getClaudeClient() (anthropic.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.claudeReady {
		return f.claudeClient, nil
	}
	if f.claudeConfig.APIKey == "" {
		return anthropic.Client{}, fmt.Errorf("no Anthropic API key configured")
	}

	f.claudeClient = anthropic.NewClient(
		option.WithAPIKey(f.claudeConfig.APIKey),
	)
	f.claudeReady = true
	return f.claudeClient, nil
}

// getGeminiClient returns the Gemini client, creating it on first use
func (f *ProviderFactory) getGeminiClient(ctx context.Context) (*genai.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.geminiClient != nil {
		return f.geminiClient, nil
	}
	if f.geminiConfig.APIKey == "" {
		return nil, fmt.Errorf("no Gemini API key configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  f.geminiConfig.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	f.geminiClient = client
	return client, nil
}

// parseGeminiThinkingLevel converts a string thinking level to genai.ThinkingLevel
func parseGeminiThinkingLevel(level string) genai.ThinkingLevel {
	switch strings.ToUpper(level) {
	case "MINIMAL":
		return genai.ThinkingLevelMinimal
	case "LOW":
		return genai.ThinkingLevelLow
	case "MEDIUM":
		return genai.ThinkingLevelMedium
	case "HIGH":
		return genai.ThinkingLevelHigh
	default:
		return ""
	}
}

// Ensure ProviderFactory implements the TextGenerator interface
var _ interfaces.TextGenerator = (*ProviderFactory)(nil)
