// Package agentmemory talks to the optional agent memory service. The memory
// service is advisory: every failure here is swallowed by callers, so the
// trading pipeline never depends on its availability.
package agentmemory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"agent-arena/internal/domain"
)

// Client reads and refreshes an agent's per-arena memory context.
type Client interface {
	// Context fetches the agent's memory text for an arena. Empty on none.
	Context(ctx context.Context, agentID, arenaID string) (string, error)

	// Update refreshes memory with the latest trade history and realized pnl.
	Update(ctx context.Context, agentID, arenaID string, trades []*domain.Trade, realizedPnl float64) error
}

// HTTPClient is a Client over an HTTP memory service.
type HTTPClient struct {
	endpoint string
	client   *http.Client
}

// NewHTTPClient creates a memory service client.
func NewHTTPClient(endpoint string, timeout time.Duration) *HTTPClient {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

// Context fetches the agent's memory text for an arena.
func (c *HTTPClient) Context(ctx context.Context, agentID, arenaID string) (string, error) {
	url := fmt.Sprintf("%s/memory/%s/%s", c.endpoint, agentID, arenaID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch memory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("memory service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read memory response: %w", err)
	}
	return string(body), nil
}

// Update refreshes memory with the latest trade history and realized pnl.
func (c *HTTPClient) Update(ctx context.Context, agentID, arenaID string, trades []*domain.Trade, realizedPnl float64) error {
	payload := struct {
		Trades      []*domain.Trade `json:"trades"`
		RealizedPnl float64         `json:"realizedPnl"`
	}{Trades: trades, RealizedPnl: realizedPnl}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode memory update: %w", err)
	}

	url := fmt.Sprintf("%s/memory/%s/%s", c.endpoint, agentID, arenaID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("update memory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("memory service returned status %d", resp.StatusCode)
	}
	return nil
}

var _ Client = (*HTTPClient)(nil)

// Nop is a Client that remembers nothing.
type Nop struct{}

func (Nop) Context(context.Context, string, string) (string, error) { return "", nil }

func (Nop) Update(context.Context, string, string, []*domain.Trade, float64) error { return nil }

var _ Client = Nop{}
