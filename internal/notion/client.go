package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	apiVersion        = "2022-06-28"
	maxAttempts       = 5
	defaultRetryAfter = time.Second
)

var (
	errMissingToken   = errors.New("api token is required")
	errMissingBaseURL = errors.New("base url is required")
	noOpLogger        = zap.NewNop()
)

// SleepFunc suspends for the given duration or until the context is done.
// Injected so retry timing is observable in tests.
type SleepFunc func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClientConfig carries the dependencies of a Client.
type ClientConfig struct {
	Token      string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
	Sleep      SleepFunc
}

// Client issues authenticated requests against the remote API. Every call
// goes through the rate-limited executor in do.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	sleep      SleepFunc
}

// NewClient validates the configuration and returns a ready client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Token == "" {
		return nil, errMissingToken
	}
	if cfg.BaseURL == "" {
		return nil, errMissingBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = defaultSleep
	}

	return &Client{
		token:      cfg.Token,
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		logger:     logger,
		sleep:      sleep,
	}, nil
}

// do executes one API call with bounded retries. Throttling responses are
// retried after the server-suggested wait; transport errors are retried with
// exponential backoff. Any other non-2xx status is terminal and returned as
// an *APIError without retrying.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	var bodyBytes []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request payload: %w", err)
		}
		bodyBytes = encoded
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var reader io.Reader
		if bodyBytes != nil {
			reader = bytes.NewReader(bodyBytes)
		}
		request, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		request.Header.Set("Authorization", "Bearer "+c.token)
		request.Header.Set("Notion-Version", apiVersion)
		request.Header.Set("Content-Type", "application/json")

		response, err := c.httpClient.Do(request)
		if err != nil {
			lastErr = fmt.Errorf("request %s %s: %w", method, path, err)
			if attempt == maxAttempts {
				break
			}
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			c.logger.Warn("transient request failure, backing off",
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(err))
			if err := c.sleep(ctx, backoff); err != nil {
				return nil, err
			}
			continue
		}

		responseBody, readErr := io.ReadAll(response.Body)
		response.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("read response body: %w", readErr)
			if attempt == maxAttempts {
				break
			}
			continue
		}

		if response.StatusCode == http.StatusTooManyRequests {
			lastErr = &APIError{Status: response.StatusCode, Body: string(responseBody)}
			if attempt == maxAttempts {
				break
			}
			wait := retryAfter(response.Header)
			c.logger.Warn("rate limited, honoring retry-after",
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait))
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		if response.StatusCode < 200 || response.StatusCode >= 300 {
			return nil, &APIError{Status: response.StatusCode, Body: string(responseBody)}
		}

		return responseBody, nil
	}

	return nil, fmt.Errorf("retries exhausted after %d attempts: %w", maxAttempts, lastErr)
}

func retryAfter(header http.Header) time.Duration {
	raw := header.Get("Retry-After")
	if raw == "" {
		return defaultRetryAfter
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return defaultRetryAfter
	}
	return time.Duration(seconds) * time.Second
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	body, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := c.do(ctx, http.MethodPost, path, nil, payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// Download fetches an arbitrary URL (attachment hosting) without the API
// headers; hosted attachment URLs are pre-signed and expect no bearer token.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return nil, &APIError{Status: response.StatusCode, Body: http.StatusText(response.StatusCode)}
	}
	return io.ReadAll(response.Body)
}
