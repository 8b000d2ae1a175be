// Package contextual produces a qualitative narrative assessment of a text
// via a generative model. The assessment is advisory: every failure mode
// degrades to a static message instead of failing the pipeline.
package contextual

import (
	"context"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const promptTemplate = `Analyze the following text for harmful content, specifically identifying:
1. Whether this contains cyberbullying, toxicity, or harmful language
2. The specific type of harmful content (e.g., insults, threats, hate speech)
3. The severity level (mild, moderate, severe)
4. Context analysis - could this be misinterpreted or is it clearly harmful?

Provide a brief, objective assessment focused on content moderation.

Text to analyze:
"%s"`

// Degraded-mode messages stored verbatim on the submission record.
const (
	MessageNotConfigured = "Contextual analysis is not configured."
	MessageUnavailable   = "Unable to perform contextual analysis at this time."
	MessageEmptyResponse = "No meaningful response from the analysis model."
)

// generator is the slice of *genai.GenerativeModel the analyzer needs.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Config for the analyzer.
type Config struct {
	APIKey         string
	ModelName      string // Default: "gemini-2.0-flash-exp"
	MaxAttempts    int
	BaseDelay      time.Duration
	AttemptTimeout time.Duration
}

// Analyzer calls the generative model with linear backoff between attempts.
type Analyzer struct {
	client         *genai.Client
	model          generator
	logger         *zap.Logger
	maxAttempts    int
	baseDelay      time.Duration
	attemptTimeout time.Duration
	sleep          func(time.Duration)
}

// NewAnalyzer creates the analyzer. A missing API key yields a disabled
// analyzer that reports MessageNotConfigured without ever calling out.
func NewAnalyzer(cfg Config, logger *zap.Logger) (*Analyzer, error) {
	if cfg.ModelName == "" {
		cfg.ModelName = "gemini-2.0-flash-exp"
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.AttemptTimeout == 0 {
		cfg.AttemptTimeout = 30 * time.Second
	}

	analyzer := &Analyzer{
		logger:         logger,
		maxAttempts:    cfg.MaxAttempts,
		baseDelay:      cfg.BaseDelay,
		attemptTimeout: cfg.AttemptTimeout,
		sleep:          time.Sleep,
	}

	if cfg.APIKey == "" {
		logger.Info("Contextual analyzer disabled (no API key configured)")
		return analyzer, nil
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	model := client.GenerativeModel(cfg.ModelName)
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr[float32](0.3),
		MaxOutputTokens: genai.Ptr[int32](500),
	}

	logger.Info("Contextual analyzer initialized",
		zap.String("model", cfg.ModelName),
		zap.Int("max_attempts", cfg.MaxAttempts))

	analyzer.client = client
	analyzer.model = model
	return analyzer, nil
}

// Close closes the underlying client.
func (a *Analyzer) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

// Analyze returns the model's assessment of the text. Attempts are bounded
// by a per-attempt timeout; transient failures retry with a delay of
// baseDelay times the attempt number. A response without usable content is
// treated as successful-but-empty and is not retried. Exhausting all
// attempts yields MessageUnavailable.
func (a *Analyzer) Analyze(ctx context.Context, text string) string {
	if a.model == nil {
		return MessageNotConfigured
	}

	prompt := fmt.Sprintf(promptTemplate, text)

	var lastErr error
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := a.baseDelay * time.Duration(attempt-1)
			a.logger.Warn("Retrying contextual analysis",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			a.sleep(delay)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, a.attemptTimeout)
		resp, err := a.model.GenerateContent(attemptCtx, genai.Text(prompt))
		cancel()

		if err != nil {
			lastErr = err
			a.logger.Error("Contextual analysis attempt failed", zap.Error(err), zap.Int("attempt", attempt))
			continue
		}

		assessment, ok := extractText(resp)
		if !ok {
			a.logger.Warn("Contextual analysis returned no usable content", zap.Int("attempt", attempt))
			return MessageEmptyResponse
		}
		return assessment
	}

	a.logger.Error("Contextual analysis unavailable after all attempts",
		zap.Int("attempts", a.maxAttempts),
		zap.Error(lastErr))
	return MessageUnavailable
}

// extractText pulls the first text part out of a generation response.
func extractText(resp *genai.GenerateContentResponse) (string, bool) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", false
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", false
	}
	textPart, ok := candidate.Content.Parts[0].(genai.Text)
	if !ok || string(textPart) == "" {
		return "", false
	}
	return string(textPart), true
}
