// Package gateway speaks the LLM gateway's two edge-function contracts: the
// intake classifier and the itinerary generator. Both are plain HTTP JSON
// endpoints; the model itself is never reached directly.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/travesia/internal/app/models"
	"github.com/FACorreiaa/travesia/internal/app/observability/metrics"
	"github.com/FACorreiaa/travesia/internal/pkg/config"
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	logger     *zap.Logger
}

func NewClient(cfg config.GatewayConfig, logger *zap.Logger) *Client {
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger,
	}
}

// errorReply is the error envelope both functions share.
type errorReply struct {
	Error string `json:"error"`
}

// post issues one JSON call and decodes the body into out. HTTP 429 and 402
// map onto the transient error taxonomy; any 5xx is ErrGatewayUnavailable and
// eligible for the caller's retry policy.
func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("gateway rate limiter: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	metrics.Get().GatewayCallDuration.Record(ctx, elapsed.Seconds())
	if err != nil {
		metrics.Get().GatewayErrorsTotal.Add(ctx, 1)
		c.logger.Warn("Gateway call failed",
			zap.String("path", path),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return fmt.Errorf("%w: %v", models.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.Get().GatewayErrorsTotal.Add(ctx, 1)
		return fmt.Errorf("%w: reading body: %v", models.ErrGatewayUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.Get().GatewayErrorsTotal.Add(ctx, 1)
		return models.ErrRateLimited
	case resp.StatusCode == http.StatusPaymentRequired:
		metrics.Get().GatewayErrorsTotal.Add(ctx, 1)
		return models.ErrQuotaExceeded
	case resp.StatusCode >= 500:
		metrics.Get().GatewayErrorsTotal.Add(ctx, 1)
		return fmt.Errorf("%w: status %d", models.ErrGatewayUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		metrics.Get().GatewayErrorsTotal.Add(ctx, 1)
		var er errorReply
		if json.Unmarshal(raw, &er) == nil && er.Error != "" {
			return fmt.Errorf("%w: %s", models.ErrBadGatewayReply, er.Error)
		}
		return fmt.Errorf("%w: status %d", models.ErrBadGatewayReply, resp.StatusCode)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		metrics.Get().GatewayErrorsTotal.Add(ctx, 1)
		return fmt.Errorf("%w: %v", models.ErrBadGatewayReply, err)
	}

	c.logger.Debug("Gateway call completed",
		zap.String("path", path),
		zap.Duration("elapsed", elapsed))
	return nil
}
