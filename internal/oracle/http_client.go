package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"agent-arena/internal/domain"
)

// HTTPClient calls a decision oracle over HTTP.
type HTTPClient struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
}

// HTTPClientOptions configures the oracle client.
type HTTPClientOptions struct {
	Endpoint  string
	Timeout   time.Duration // default 30s
	RateLimit rate.Limit    // requests per second; 0 means no limit
}

// NewHTTPClient creates an oracle client.
func NewHTTPClient(opts HTTPClientOptions) *HTTPClient {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	limit := opts.RateLimit
	if limit == 0 {
		limit = rate.Inf
	}
	return &HTTPClient{
		endpoint: opts.Endpoint,
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// Decide posts the decision context and decodes the suggestion.
func (c *HTTPClient) Decide(ctx context.Context, dc *DecisionContext) (*domain.Suggestion, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(dc)
	if err != nil {
		return nil, fmt.Errorf("encode decision context: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build oracle request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call oracle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oracle returned status %d", resp.StatusCode)
	}

	var sug domain.Suggestion
	if err := json.NewDecoder(resp.Body).Decode(&sug); err != nil {
		return nil, fmt.Errorf("decode oracle response: %w", err)
	}

	switch sug.Action {
	case domain.ActionBuy, domain.ActionSell, domain.ActionHold:
	default:
		return nil, fmt.Errorf("oracle returned unknown action %q", sug.Action)
	}
	if sug.SizePct < 0 || sug.SizePct > 1 {
		return nil, fmt.Errorf("oracle returned sizePct %f outside [0,1]", sug.SizePct)
	}
	return &sug, nil
}

var _ Oracle = (*HTTPClient)(nil)
