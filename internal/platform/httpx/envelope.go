package httpx

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

// Envelope is the {success, data, message} shape used by the generation
// endpoints.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// EnvelopeError is returned for non-2xx responses and for success=false bodies.
type EnvelopeError struct {
	StatusCode int
	Message    string
}

func (e *EnvelopeError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = "request failed"
	}
	return fmt.Sprintf("envelope error (status %d): %s", e.StatusCode, msg)
}

func (e *EnvelopeError) HTTPStatusCode() int { return e.StatusCode }

type EnvelopeClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewEnvelopeClient(baseURL string, timeout time.Duration) *EnvelopeClient {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &EnvelopeClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

func (c *EnvelopeClient) PostJSON(ctx context.Context, path string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *EnvelopeClient) GetJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *EnvelopeClient) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env Envelope
	decodeErr := json.Unmarshal(body, &env)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := env.Message
		if decodeErr != nil || msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return &EnvelopeError{StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return &EnvelopeError{StatusCode: resp.StatusCode, Message: "invalid envelope: " + decodeErr.Error()}
	}
	if !env.Success {
		return &EnvelopeError{StatusCode: resp.StatusCode, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode envelope data: %w", err)
	}
	return nil
}
