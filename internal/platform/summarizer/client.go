// Package summarizer calls the external service that turns a formatted
// patient history into free text.
package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const DefaultTimeout = 20 * time.Second

// maxResponseBytes bounds how much of a reply is read.
const maxResponseBytes = 1 << 20

// ErrEmptySummary is returned when the service answers without a summary or an error.
var ErrEmptySummary = errors.New("summarizer returned no summary")

type request struct {
	History       string `json:"history"`
	EmergencyMode bool   `json:"emergencyMode"`
}

type response struct {
	Summary string `json:"summary"`
	Error   string `json:"error"`
}

// ServiceError carries the error text reported by the summarizer itself.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("summarizer error (status %d): %s", e.StatusCode, e.Message)
}

type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

type Client struct {
	url        string
	httpClient *http.Client
}

func New(url string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Summarize posts the history and returns the summary text.
func (c *Client) Summarize(ctx context.Context, history string, emergency bool) (string, error) {
	payload, err := json.Marshal(request{History: history, EmergencyMode: emergency})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build summarizer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call summarizer: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read summarizer response: %w", err)
	}

	var out response
	if err := json.Unmarshal(body, &out); err != nil {
		if resp.StatusCode >= 300 {
			return "", &ServiceError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return "", fmt.Errorf("decode summarizer response: %w", err)
	}
	if out.Error != "" {
		return "", &ServiceError{StatusCode: resp.StatusCode, Message: out.Error}
	}
	if resp.StatusCode >= 300 {
		return "", &ServiceError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	if out.Summary == "" {
		return "", ErrEmptySummary
	}
	return out.Summary, nil
}
