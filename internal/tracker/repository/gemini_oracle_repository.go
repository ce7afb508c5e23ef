package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang-price-watcher/internal/tracker/config"
	"golang-price-watcher/internal/tracker/dto"
	"golang-price-watcher/pkg/logger"
	"golang-price-watcher/pkg/ratelimit"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// geminiOracleRepository implements OracleRepository against the Google
// Gemini API, with request and token budgets enforced client-side.
type geminiOracleRepository struct {
	client         *http.Client
	cfg            *config.Config
	logger         *logger.Logger
	requestLimiter *rate.Limiter
	tokenLimiter   *ratelimit.TokenLimiter
	genAiClient    *genai.Client
}

// NewGeminiOracleRepository creates a Gemini-backed oracle.
func NewGeminiOracleRepository(cfg *config.Config, log *logger.Logger, genAiClient *genai.Client) (OracleRepository, error) {
	if cfg.Gemini.MaxRequestPerMinute <= 0 {
		return nil, fmt.Errorf("gemini max_request_per_minute must be positive")
	}
	secondsPerRequest := time.Minute / time.Duration(cfg.Gemini.MaxRequestPerMinute)

	return &geminiOracleRepository{
		client: &http.Client{
			Timeout: 90 * time.Second,
		},
		cfg:            cfg,
		logger:         log,
		requestLimiter: rate.NewLimiter(rate.Every(secondsPerRequest), 1),
		tokenLimiter:   ratelimit.NewTokenLimiter(cfg.Gemini.MaxTokenPerMinute),
		genAiClient:    genAiClient,
	}, nil
}

// Extract asks the oracle to read the product page from scratch.
func (r *geminiOracleRepository) Extract(ctx context.Context, html string) (*dto.OracleExtraction, error) {
	resp, err := r.executeRequest(ctx, BuildExtractPrompt(r.truncate(html)))
	if err != nil {
		return nil, err
	}

	var result dto.OracleExtraction
	if err := decodeOracleJSON(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Verify asks the oracle to judge a claimed price.
func (r *geminiOracleRepository) Verify(ctx context.Context, html string, claimedPrice float64, currency string) (*dto.OracleVerification, error) {
	resp, err := r.executeRequest(ctx, BuildVerifyPrompt(r.truncate(html), claimedPrice, currency))
	if err != nil {
		return nil, err
	}

	var result dto.OracleVerification
	if err := decodeOracleJSON(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Arbitrate asks the oracle to pick among disagreeing candidates.
func (r *geminiOracleRepository) Arbitrate(ctx context.Context, html string, candidates []dto.PriceCandidate) (*dto.OracleArbitration, error) {
	resp, err := r.executeRequest(ctx, BuildArbitratePrompt(r.truncate(html), candidates))
	if err != nil {
		return nil, err
	}

	var result dto.OracleArbitration
	if err := decodeOracleJSON(resp, &result); err != nil {
		return nil, err
	}
	if result.SelectedIndex < 0 || result.SelectedIndex >= len(candidates) {
		return nil, fmt.Errorf("oracle selected index %d out of range", result.SelectedIndex)
	}
	return &result, nil
}

// CheckVariantStock asks whether the variant at the given price is purchasable.
func (r *geminiOracleRepository) CheckVariantStock(ctx context.Context, html string, price float64, currency string) (*dto.OracleStockCheck, error) {
	resp, err := r.executeRequest(ctx, BuildVariantStockPrompt(r.truncate(html), price, currency))
	if err != nil {
		return nil, err
	}

	var result dto.OracleStockCheck
	if err := decodeOracleJSON(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *geminiOracleRepository) truncate(html string) string {
	max := r.cfg.Tracker.OracleMaxHTMLBytes
	if max > 0 && len(html) > max {
		return html[:max]
	}
	return html
}

func (r *geminiOracleRepository) executeRequest(ctx context.Context, prompt string) (*dto.GeminiAPIResponse, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, "user"),
	}
	tokenResp, err := r.genAiClient.Models.CountTokens(ctx, r.cfg.Gemini.Model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count tokens: %w", err)
	}

	r.logger.Debug("Gemini token count",
		logger.IntField("total_tokens", int(tokenResp.TotalTokens)),
		logger.IntField("remaining", r.tokenLimiter.GetRemaining()),
	)

	if err := r.tokenLimiter.Wait(ctx, int(tokenResp.TotalTokens)); err != nil {
		return nil, fmt.Errorf("failed to wait for token limit: %w", err)
	}
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for request limit: %w", err)
	}

	payload := dto.GeminiAPIRequest{
		Contents: []dto.Content{{Parts: []dto.Part{{Text: prompt}}}},
	}
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	apiURL := fmt.Sprintf("%s/%s:generateContent?key=%s", r.cfg.Gemini.BaseURL, r.cfg.Gemini.Model, r.cfg.Gemini.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to Gemini API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		r.logger.Error("Received non-OK response from Gemini API",
			logger.IntField("status_code", resp.StatusCode))
		return nil, fmt.Errorf("received non-OK response from Gemini API: %d - %s", resp.StatusCode, string(body))
	}

	var geminiResp dto.GeminiAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}

	return &geminiResp, nil
}

// decodeOracleJSON pulls the first text part out of a Gemini response and
// unmarshals it, tolerating markdown code fences around the JSON.
func decodeOracleJSON(resp *dto.GeminiAPIResponse, out interface{}) error {
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return fmt.Errorf("no content found in Gemini response")
	}

	raw := resp.Candidates[0].Content.Parts[0].Text
	raw = strings.Trim(raw, "`json\n`")
	raw = strings.TrimSpace(raw)

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("failed to unmarshal oracle response: %w", err)
	}
	return nil
}
