// Package extraction wraps the hosted document-AI service used for passport
// field extraction and signature similarity scoring.
package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type PassportData struct {
	GivenNames string `json:"givenNames"`
	Surname    string `json:"surname"`
	BirthDate  string `json:"birthDate,omitempty"`
	Number     string `json:"number,omitempty"`
}

type MatchResult struct {
	Score float64 `json:"matchScore"`
}

// Client talks to the extraction API. Every call is bounded by the
// configured HTTP timeout and throttled by a shared limiter so a burst of
// document uploads cannot exhaust the vendor quota.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewClient(baseURL, apiKey string, timeout TimeoutConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout.HTTPTimeout},
		limiter: rate.NewLimiter(rate.Limit(timeout.RatePerSecond), 1),
		logger:  logger.With(zap.String("client", "extraction")),
	}
}

// TimeoutConfig bundles the network bounds for the client.
type TimeoutConfig struct {
	HTTPTimeout   time.Duration
	RatePerSecond float64
}

func (c *Client) ExtractPassport(ctx context.Context, content []byte) (*PassportData, error) {
	var out PassportData
	payload := map[string]string{
		"document": base64.StdEncoding.EncodeToString(content),
	}
	if err := c.post(ctx, "/v1/passport/extract", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) VerifySignature(ctx context.Context, passport, signature []byte) (*MatchResult, error) {
	var out MatchResult
	payload := map[string]string{
		"reference": base64.StdEncoding.EncodeToString(passport),
		"candidate": base64.StdEncoding.EncodeToString(signature),
	}
	if err := c.post(ctx, "/v1/signature/verify", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("extraction rate limit: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("extraction call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("extraction call %s: status %d: %s", path, resp.StatusCode, raw)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
