// Package aladdin provides a client for the vendor analytics API.
package aladdin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jlancaster7/allocator-backend/internal/modules/universe"
)

const (
	maxAttempts    = 3
	initialBackoff = 500 * time.Millisecond
)

// APIError is a non-2xx response from the vendor
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("aladdin API error (status %d): %s", e.StatusCode, e.Message)
}

// Client calls the vendor analytics API. In mock mode it serves
// deterministic synthetic analytics instead, for development without
// vendor credentials.
type Client struct {
	baseURL string
	client  *http.Client
	mock    bool
	log     zerolog.Logger
}

// NewClient creates a new vendor client
func NewClient(baseURL string, timeout time.Duration, mock bool, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		mock:    mock,
		log:     log.With().Str("client", "aladdin").Logger(),
	}
	if mock {
		c.log.Info().Msg("Using mock vendor analytics")
	}
	return c
}

// analyticsResponse is the vendor wire format for security analytics
type analyticsResponse struct {
	CUSIP          string  `json:"cusip"`
	Price          float64 `json:"price"`
	Duration       float64 `json:"effectiveDuration"`
	SpreadDuration float64 `json:"spreadDuration"`
	OAS            float64 `json:"oas"`
	AsOf           string  `json:"asOfTime"`
}

// SecurityAnalytics fetches current analytics for one security
func (c *Client) SecurityAnalytics(ctx context.Context, cusip string) (universe.Analytics, error) {
	if c.mock {
		return mockAnalytics(cusip), nil
	}

	url := fmt.Sprintf("%s/analytics/securities/%s", c.baseURL, cusip)

	body, err := c.getWithRetry(ctx, url)
	if err != nil {
		return universe.Analytics{}, err
	}

	var resp analyticsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return universe.Analytics{}, fmt.Errorf("failed to parse analytics response: %w", err)
	}

	asOf := time.Now().UTC()
	if ts, err := time.Parse(time.RFC3339, resp.AsOf); err == nil {
		asOf = ts
	}

	return universe.Analytics{
		CUSIP:          cusip,
		Price:          resp.Price,
		Duration:       resp.Duration,
		SpreadDuration: resp.SpreadDuration,
		OAS:            resp.OAS,
		AsOf:           asOf,
	}, nil
}

// getWithRetry performs a GET with exponential backoff. 4xx responses are
// not retried; the request is wrong, not the network.
func (c *Client) getWithRetry(ctx context.Context, url string) ([]byte, error) {
	backoff := initialBackoff
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		body, err := c.get(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return nil, err
		}

		if attempt < maxAttempts {
			c.log.Warn().
				Err(err).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Vendor request failed, retrying")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	return nil, fmt.Errorf("vendor request failed after %d attempts: %w", maxAttempts, lastErr)
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("VND.com.blackrock.Request-ID", uuid.New().String())
	req.Header.Set("VND.com.blackrock.Origin-Timestamp",
		time.Now().UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT"))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	return body, nil
}

// mockAnalytics generates stable synthetic analytics keyed off the CUSIP,
// so repeated calls in dev mode agree with each other.
func mockAnalytics(cusip string) universe.Analytics {
	h := fnv.New64a()
	h.Write([]byte(cusip))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	duration := 1.0 + rng.Float64()*9.0
	return universe.Analytics{
		CUSIP:          cusip,
		Price:          0.90 + rng.Float64()*0.20,
		Duration:       duration,
		SpreadDuration: duration * (0.90 + rng.Float64()*0.07),
		OAS:            float64(int(30 + rng.Float64()*120)),
		AsOf:           time.Now().UTC(),
	}
}
