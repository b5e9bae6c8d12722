// Package pricefeed is an HTTP client for a remote price service exposing
// GET {base}/prices/{asset}.
package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"
)

// ErrNotQuoted is returned when the service has no price for the asset.
var ErrNotQuoted = errors.New("price service has no quote for asset")

// Quote is the service's answer for one asset. Price is a decimal string in USD.
type Quote struct {
	Asset     string    `json:"asset"`
	Price     string    `json:"price"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Error is the error body returned by the service.
type Error struct {
	Message *string `json:"message,omitempty"`
	Status  *string `json:"status,omitempty"`
}

// Client calls the price service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
}

// Option configures the client.
type Option func(*Client)

// WithAPIKey sends the key in the X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(key)
	}
}

// NewClient instantiates the client with sane defaults.
func NewClient(baseURL string, httpClient *http.Client, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("price service base URL is required")
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("price service base URL %q must be http or https", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	c := &Client{baseURL: baseURL, httpClient: httpClient}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// GetPrice fetches the latest quote for asset.
func (c *Client) GetPrice(ctx context.Context, asset string) (*Quote, error) {
	if c == nil || c.httpClient == nil {
		return nil, errors.New("price client not configured")
	}
	pathParam, err := runtime.StyleParamWithLocation("simple", false, "asset", runtime.ParamLocationPath, asset)
	if err != nil {
		return nil, fmt.Errorf("encode asset: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/prices/"+pathParam, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call price service: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read price response: %w", err)
	}

	switch status := resp.StatusCode; {
	case status == http.StatusOK:
		var quote Quote
		if err := json.Unmarshal(body, &quote); err != nil {
			return nil, fmt.Errorf("decode price response: %w", err)
		}
		return &quote, nil
	case status == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotQuoted, asset)
	case status >= http.StatusBadRequest:
		return nil, fmt.Errorf("price service error: %s", errorMessage(body, resp.Status))
	default:
		return nil, fmt.Errorf("price service unexpected status: %s", resp.Status)
	}
}

func errorMessage(raw []byte, fallback string) string {
	var body Error
	if err := json.Unmarshal(raw, &body); err != nil {
		return fallback
	}
	if body.Message != nil {
		if msg := strings.TrimSpace(*body.Message); msg != "" {
			return msg
		}
	}
	if body.Status != nil {
		if msg := strings.TrimSpace(*body.Status); msg != "" {
			return msg
		}
	}
	return fallback
}
