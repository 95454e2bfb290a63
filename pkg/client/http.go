package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrUsageHint is returned when the service answered with its usage text
// instead of a classification, which happens when no complaint reached it.
var ErrUsageHint = errors.New("service did not receive a complaint")

// StatusError carries a non-200 answer from the service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("classifier returned %d: %s", e.StatusCode, e.Body)
}

// ComplaintClassifier classifies complaints against a running service.
type ComplaintClassifier interface {
	Classify(ctx context.Context, complaint string) (*ClassificationResponse, error)
	Close() error
}

// HTTPClient calls the /api/Clasificador endpoint.
type HTTPClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPClient builds a client for baseURL, e.g. "http://localhost:8080".
// A nil httpClient gets a client with a 30s timeout.
func NewHTTPClient(baseURL string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPClient{
		endpoint:   strings.TrimRight(baseURL, "/") + "/api/Clasificador",
		httpClient: httpClient,
	}
}

func (c *HTTPClient) Classify(ctx context.Context, complaint string) (*ClassificationResponse, error) {
	payload, err := json.Marshal(ComplaintRequest{Queja: complaint})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call classifier: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		return nil, ErrUsageHint
	}

	var result ClassificationResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &result, nil
}

func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
