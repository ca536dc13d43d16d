package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pet-rehoming/backend/internal/metrics"
	"go.uber.org/zap"
)

// HTTPGateway talks to the payment provider's REST API.
type HTTPGateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *zap.Logger
}

func NewHTTPGateway(baseURL, apiKey string, log *zap.Logger) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

func (g *HTTPGateway) Authorize(ctx context.Context, req AuthorizeRequest) (*Result, error) {
	return g.post(ctx, "authorize", "/v1/authorizations", req.IdempotencyKey, req)
}

func (g *HTTPGateway) Capture(ctx context.Context, ref string, amount int64, idempotencyKey string) (*Result, error) {
	path := fmt.Sprintf("/v1/authorizations/%s/capture", url.PathEscape(ref))
	return g.post(ctx, "capture", path, idempotencyKey, map[string]any{"amount": amount})
}

func (g *HTTPGateway) Refund(ctx context.Context, ref string, amount int64, idempotencyKey string) (*Result, error) {
	path := fmt.Sprintf("/v1/charges/%s/refunds", url.PathEscape(ref))
	return g.post(ctx, "refund", path, idempotencyKey, map[string]any{"amount": amount})
}

func (g *HTTPGateway) Payout(ctx context.Context, req PayoutRequest) (*Result, error) {
	return g.post(ctx, "payout", "/v1/payouts", req.IdempotencyKey, req)
}

func (g *HTTPGateway) post(ctx context.Context, op, path, idempotencyKey string, payload any) (*Result, error) {
	start := time.Now()
	defer func() {
		metrics.GatewayCallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payment gateway unavailable: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusUnprocessableEntity:
		b, _ := io.ReadAll(resp.Body)
		g.log.Info("payment gateway declined", zap.String("op", op), zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: %s", ErrDeclined, strings.TrimSpace(string(b)))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("payment gateway returned %d: %s", resp.StatusCode, string(b))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if result.Ref == "" {
		return nil, fmt.Errorf("payment gateway %s: empty reference", op)
	}
	return &result, nil
}
