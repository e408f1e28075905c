package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/anchorageoss/tlsn-verifier/presentation"
	"github.com/anchorageoss/tlsn-verifier/verify"
)

// maxResponseBytes bounds response bodies read from the server
const maxResponseBytes = 16 << 20

// HTTPClient interface for dependency injection
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls a verifier server
type Client struct {
	HostURI    string
	HTTPClient HTTPClient
}

// NewClient creates a new verifier API client
func NewClient(hostURI string, httpClient HTTPClient) (*Client, error) {
	if hostURI == "" {
		return nil, errors.New("host URI is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		HostURI:    strings.TrimRight(hostURI, "/"),
		HTTPClient: httpClient,
	}, nil
}

// Verify submits raw presentation bytes and returns the server's output.
// An invalid presentation is not an error; check Output.Valid.
func (c *Client) Verify(ctx context.Context, raw []byte) (*verify.Output, error) {
	url := fmt.Sprintf("%s/v1/verify", c.HostURI)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	contentType := "application/json"
	if presentation.IsCBOR(raw) {
		contentType = "application/cbor"
	}
	httpReq.Header.Set("Content-Type", contentType)

	body, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	var out verify.Output
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode verification response: %w", err)
	}
	return &out, nil
}

// Health checks that the server is up
func (c *Client) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.HostURI+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	body, err := c.do(httpReq)
	if err != nil {
		return err
	}

	var health HealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return fmt.Errorf("failed to decode health response: %w", err)
	}
	if health.Status != "ok" {
		return fmt.Errorf("verifier unhealthy: %s", health.Status)
	}
	return nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to verifier: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("verifier returned status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("verifier returned non-OK status: %d, body: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
