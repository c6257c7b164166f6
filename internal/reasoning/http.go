package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/rowanhealth/clinsight/internal/models"
	"github.com/rowanhealth/clinsight/internal/retry"
)

// HTTPClient calls a reasoning service over JSON/HTTP. Each stage posts to
// /v1/analyze/{stage} and expects a structured JSON body matching that
// stage's schema.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// HTTPClientOption configures an HTTPClient.
type HTTPClientOption func(*HTTPClient)

// WithHTTPTimeout sets the per-call HTTP timeout.
func WithHTTPTimeout(d time.Duration) HTTPClientOption {
	return func(c *HTTPClient) { c.client.Timeout = d }
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) HTTPClientOption {
	return func(c *HTTPClient) { c.logger = logger }
}

// NewHTTPClient creates a client for the reasoning service at baseURL.
func NewHTTPClient(baseURL string, opts ...HTTPClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *HTTPClient) AnalyzeMood(ctx context.Context, req *StageRequest) (*models.MoodResult, error) {
	var out models.MoodResult
	if err := c.call(ctx, models.StageMood, req, &out); err != nil {
		return nil, err
	}
	out.Confidence = models.ClampConfidence(out.Confidence)
	return &out, nil
}

func (c *HTTPClient) ExtractThemes(ctx context.Context, req *StageRequest) (*models.ThemesResult, error) {
	var out models.ThemesResult
	if err := c.call(ctx, models.StageThemes, req, &out); err != nil {
		return nil, err
	}
	out.Confidence = models.ClampConfidence(out.Confidence)
	return &out, nil
}

func (c *HTTPClient) DetectBreakthroughs(ctx context.Context, req *StageRequest) (*models.BreakthroughResult, error) {
	var out models.BreakthroughResult
	if err := c.call(ctx, models.StageBreakthrough, req, &out); err != nil {
		return nil, err
	}
	out.Confidence = models.ClampConfidence(out.Confidence)
	return &out, nil
}

func (c *HTTPClient) Synthesize(ctx context.Context, req *SynthesisRequest) (*models.SessionInsights, error) {
	var out models.SessionInsights
	if err := c.call(ctx, models.StageSynthesis, req, &out); err != nil {
		return nil, err
	}
	out.Confidence = models.ClampConfidence(out.Confidence)
	return &out, nil
}

// call posts the request body, classifies transport and server failures, and
// schema-validates the response before decoding it into out.
func (c *HTTPClient) call(ctx context.Context, stage models.Stage, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return retry.Permanent(fmt.Errorf("marshaling %s request: %w", stage, err))
	}

	url := fmt.Sprintf("%s/v1/analyze/%s", c.baseURL, stage)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return retry.Permanent(fmt.Errorf("building %s request: %w", stage, err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		// Connection failures and client-side timeouts are transient.
		return retry.Transient(fmt.Errorf("calling %s: %w", stage, err))
	}
	defer resp.Body.Close()

	c.logger.Debug("reasoning call finished",
		"stage", stage, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return retry.Transient(fmt.Errorf("reading %s response: %w", stage, err))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return retry.Transient(fmt.Errorf("%s returned %d: %s", stage, resp.StatusCode, truncate(respBody)))
	case resp.StatusCode != http.StatusOK:
		return retry.Permanent(fmt.Errorf("%s returned %d: %s", stage, resp.StatusCode, truncate(respBody)))
	}

	var payload map[string]any
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return retry.Validation(fmt.Errorf("parsing %s response: %w", stage, err))
	}
	if err := validatePayload(stage, payload); err != nil {
		return err
	}
	return decodePayload(stage, payload, out)
}

func truncate(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
