// Package eodhd is a client of the EOD Historical Data API (eodhd.com).
//
// It serves end of day and real-time quotes for exchange tickers such as
// "AAPL.US" or "VWCE.XETRA", and forex rates through the "FOREX" virtual
// exchange.
package eodhd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// DefaultURL is the base address of the API.
const DefaultURL = "https://eodhd.com/api"

// ErrNoKey is returned when the client has no API key.
var ErrNoKey = errors.New("eodhd: missing api key")

// Client queries the EODHD API. It is safe for concurrent use.
type Client struct {
	APIKey  string
	BaseURL string

	// ChunkSize is the maximum number of tickers per real-time bulk call.
	ChunkSize int
	// Parallelism bounds the number of concurrent calls of a bulk fetch.
	Parallelism int

	http     *http.Client
	cacheDir string
	limiter  *rate.Limiter
	log      zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithDiskCache caches successful end of day responses in dir for the day.
// The cache wraps the transport of the final http client, whatever the
// order of the options.
func WithDiskCache(dir string) Option {
	return func(c *Client) { c.cacheDir = dir }
}

// WithRateLimit limits the client to n requests per second.
func WithRateLimit(n float64) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(n), max(1, int(n))) }
}

// New returns a Client. Every request is bounded by timeout.
func New(apiKey string, timeout time.Duration, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		APIKey:      apiKey,
		BaseURL:     DefaultURL,
		ChunkSize:   15,
		Parallelism: 4,
		http:        &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(rate.Every(100*time.Millisecond), 10),
		log:         log.With().Str("component", "eodhd").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cacheDir != "" {
		h := *c.http
		if h.Transport == nil {
			h.Transport = http.DefaultTransport
		}
		h.Transport = &diskCache{base: h.Transport, dir: c.cacheDir, log: c.log}
		c.http = &h
	}
	return c
}

// endpoint builds the address of an API call.
func (c *Client) endpoint(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api_token", c.APIKey)
	query.Set("fmt", "json")
	return c.BaseURL + path + "?" + query.Encode()
}

// jwget performs an HTTP GET request and unmarshals the JSON response into
// the provided data structure.
func (c *Client) jwget(ctx context.Context, addr string, data any) error {
	if c.APIKey == "" {
		return ErrNoKey
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cannot http GET %v%v: %v", resp.Request.URL.Host, resp.Request.URL.Path, resp.Status)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return err
	}
	return json.Unmarshal(buf.Bytes(), data)
}
