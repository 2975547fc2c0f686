// Package platform is the client for the storefront platform API the widget
// consumes: assistant turns, escalation, session history, appointments,
// prescription uploads, Rx orders and the cart.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// identityHeader carries the anonymous chat identity. The widget endpoints
// are not otherwise authenticated.
const identityHeader = "X-Chat-Id"

type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	// Identity returns the current anonymous chat id, or "" before the
	// first assistant reply. When it yields a value, the id is attached to
	// every request.
	Identity func() string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.attachIdentity(req)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) attachIdentity(req *http.Request) {
	if c.Identity == nil {
		return
	}
	if id := c.Identity(); id != "" {
		req.Header.Set(identityHeader, id)
	}
}

// decodeError turns a non-2xx response into an *APIError, keeping the
// envelope's message and code when the body is the standard envelope.
func decodeError(resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var envelope struct {
		Message string `json:"message"`
		Code    string `json:"code"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(bodyBytes, &envelope); err == nil {
		apiErr.Code = envelope.Code
		apiErr.Detail = envelope.Message
		if apiErr.Detail == "" {
			apiErr.Detail = envelope.Error
		}
	}
	if apiErr.Detail == "" {
		trimmed := strings.TrimSpace(string(bodyBytes))
		if len(trimmed) > 0 && len(trimmed) <= 200 {
			apiErr.Detail = trimmed
		}
	}
	return apiErr
}
