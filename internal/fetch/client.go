package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"beraflow/config"
	"beraflow/logger"
)

// Client issues JSON requests against exchange REST APIs. Every call carries
// its own timeout; a hung upstream is bounded by that timeout only, there is
// no caller-initiated cancellation beyond the passed context.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
	userAgent  string
	log        *logger.Log
}

// NewClient builds a client with a tuned transport shared by all venues.
func NewClient(cfg config.FetchConfig) *Client {
	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConns,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		DisableCompression:  false,
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = 1
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Transport: transport, Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		timeout:    timeout,
		userAgent:  cfg.UserAgent,
		log:        logger.GetLogger(),
	}
}

// HTTPClient exposes the underlying client so exchange SDK clients can share
// the same transport and timeout.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// GetJSON fetches url and decodes the response body into out.
func (c *Client) GetJSON(ctx context.Context, url string, out interface{}) error {
	return c.roundTrip(ctx, http.MethodGet, url, nil, out)
}

// GetRaw fetches url and returns the raw response body.
func (c *Client) GetRaw(ctx context.Context, url string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.roundTrip(ctx, http.MethodGet, url, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// PostJSON sends body as JSON to url and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, url string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}
	return c.roundTrip(ctx, http.MethodPost, url, payload, out)
}

// PostRaw sends body as JSON to url and returns the raw response body.
func (c *Client) PostRaw(ctx context.Context, url string, body interface{}) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.PostJSON(ctx, url, body, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) roundTrip(ctx context.Context, method, url string, body []byte, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger.IncrementFetch()
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	c.log.WithComponent("fetch").WithFields(logger.Fields{
		"url":         url,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("api request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
