package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient defines the interface for HTTP operations
type HTTPClient interface {
	FetchJSON(ctx context.Context, url string, result any) error
}

// HTTPClientImpl is the standard HTTP client implementation
type HTTPClientImpl struct {
	client *http.Client
}

// NewHTTPClient creates a new HTTP client
func NewHTTPClient(timeout time.Duration) HTTPClient {
	return &HTTPClientImpl{
		client: &http.Client{Timeout: timeout},
	}
}

func (d *HTTPClientImpl) FetchJSON(ctx context.Context, url string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode JSON failed: %w", err)
	}

	return nil
}
