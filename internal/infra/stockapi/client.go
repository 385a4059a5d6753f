// Package stockapi is the HTTP client for the stocks service.
package stockapi

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

	"github.com/rs/zerolog/log"
	"github.com/wonny/stockanalyzer/internal/domain/stock"
)

// DefaultTimeout bounds a whole request including the body read
const DefaultTimeout = 30 * time.Second

// drainLimit caps how much of an error body is discarded to keep the connection reusable
const drainLimit = 64 * 1024

// Client fetches stock prices from GET {base}/api/stocks/{ticker}
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithTimeout sets the request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new stocks service client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service base address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetStockPrices fetches every price the service returns for ticker.
// Single attempt; the service is trusted to filter by ticker.
func (c *Client) GetStockPrices(ctx context.Context, ticker string) ([]stock.StockPrice, error) {
	endpoint := fmt.Sprintf("%s/api/stocks/%s", c.baseURL, url.PathEscape(ticker))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, stock.NewNetworkError(endpoint, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, stock.NewNetworkError(endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))
		log.Warn().
			Str("url", endpoint).
			Int("status", resp.StatusCode).
			Msg("Stocks service returned non-success status")
		return nil, stock.NewHTTPStatusError(endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, stock.NewNetworkError(endpoint, fmt.Errorf("read response: %w", err))
	}

	prices, err := decodePrices(body)
	if err != nil {
		return nil, stock.NewDecodeError(endpoint, err)
	}

	log.Debug().
		Str("url", endpoint).
		Int("count", len(prices)).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("Stock prices fetched")

	return prices, nil
}

var errNotArray = errors.New("response body is not a JSON array")

func decodePrices(body []byte) ([]stock.StockPrice, error) {
	if trimmed := bytes.TrimSpace(body); len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errNotArray
	}

	prices := []stock.StockPrice{}
	if err := json.Unmarshal(body, &prices); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return prices, nil
}
