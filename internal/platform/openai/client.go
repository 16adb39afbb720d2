package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minischools/academy-backend/internal/platform/envutil"
	"github.com/minischools/academy-backend/internal/platform/httpx"
	"github.com/minischools/academy-backend/internal/platform/logger"
)

// Image is a generated image payload.
type Image struct {
	Bytes         []byte
	MimeType      string
	RevisedPrompt string
}

// Speech is synthesized narration audio.
type Speech struct {
	Bytes    []byte
	MimeType string
}

type Client interface {
	GenerateText(ctx context.Context, system, user string) (string, error)
	GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error)
	GenerateImage(ctx context.Context, prompt string) (Image, error)
	Synthesize(ctx context.Context, text, voice string) (Speech, error)
}

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	ImageModel  string
	ImageSize   string
	TTSModel    string
	TTSVoice    string
	Timeout     time.Duration
	MaxRetries  int
	Temperature *float64
}

// ConfigFromEnv reads OPENAI_* variables.
func ConfigFromEnv() Config {
	cfg := Config{
		APIKey:     envutil.String("OPENAI_API_KEY", ""),
		BaseURL:    envutil.String("OPENAI_BASE_URL", "https://api.openai.com"),
		Model:      envutil.String("OPENAI_MODEL", "gpt-4.1-mini"),
		ImageModel: envutil.String("OPENAI_IMAGE_MODEL", "gpt-image-1"),
		ImageSize:  envutil.String("OPENAI_IMAGE_SIZE", "1024x1536"),
		TTSModel:   envutil.String("OPENAI_TTS_MODEL", "gpt-4o-mini-tts"),
		TTSVoice:   envutil.String("OPENAI_TTS_VOICE", "alloy"),
		Timeout:    time.Duration(envutil.Int("OPENAI_TIMEOUT_SECONDS", 300)) * time.Second,
		MaxRetries: envutil.Int("OPENAI_MAX_RETRIES", 2),
	}
	if !envutil.Bool("OPENAI_DISABLE_TEMPERATURE", false) {
		t := 0.7
		cfg.Temperature = &t
	}
	return cfg
}

type client struct {
	log        *logger.Logger
	cfg        Config
	baseURL    string
	httpClient *http.Client
	// retrySleep is swapped in tests.
	retrySleep func(ctx context.Context, d time.Duration) error
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, errors.New("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("missing OPENAI_API_KEY")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 300 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = "https://api.openai.com"
	}
	return &client{
		log:        log.With("client", "OpenAIClient"),
		cfg:        cfg,
		baseURL:    base,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		retrySleep: httpx.Sleep,
	}, nil
}

type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *httpError) HTTPStatusCode() int { return e.StatusCode }

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &httpError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

// do issues the request with provider-level retries. It returns the raw
// body so binary endpoints (speech) can skip JSON decoding.
func (c *client) do(ctx context.Context, method, path string, body any) ([]byte, string, error) {
	backoff := time.Second
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			return raw, resp.Header.Get("Content-Type"), nil
		}
		if !httpx.IsRetryableError(err) || attempt >= c.cfg.MaxRetries || ctx.Err() != nil {
			return nil, "", err
		}
		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("OpenAI request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.cfg.MaxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		if err := c.retrySleep(ctx, sleepFor); err != nil {
			return nil, "", err
		}
		backoff *= 2
	}
}

func (c *client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	raw, _, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("openai decode error: %w", err)
	}
	return nil
}

func (c *client) download(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	if c.sameHost(rawURL) {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &httpError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, strings.TrimSpace(resp.Header.Get("Content-Type")), nil
}

// Signed blob URLs break when an unrelated Authorization header is sent.
func (c *client) sameHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	b, err := url.Parse(c.baseURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), b.Hostname())
}
