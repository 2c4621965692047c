package realearth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/storm-radar-loop/internal/observability"
	"github.com/sony/gobreaker"
)

var (
	// ErrNoTimes is returned when the products API lists no times for a product.
	ErrNoTimes = errors.New("realearth: no times available")
	// ErrCircuitOpen is returned while the circuit breaker rejects requests.
	ErrCircuitOpen = errors.New("realearth: circuit breaker open")
)

// Client looks up the latest acquisition time of RealEarth products.
// It implements frames.TimestampLookup.
type Client struct {
	baseURL    string
	httpClient *http.Client
	circuit    *gobreaker.CircuitBreaker
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a RealEarth products API client.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		circuit:    newBreaker(),
		logger:     logger,
		metrics:    metrics,
	}
}

func newBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "realearth",
		MaxRequests: 1,
		Interval:    1 * time.Minute,
		Timeout:     30 * time.Second,
	})
}

// LatestTimestamp returns the most recent time token listed for product.
func (c *Client) LatestTimestamp(ctx context.Context, product string) (string, error) {
	start := time.Now()
	token, err := c.latest(ctx, product)
	c.metrics.TimestampAPIDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		c.metrics.TimestampLookups.WithLabelValues("error").Inc()
		return "", err
	}
	c.metrics.TimestampLookups.WithLabelValues("success").Inc()
	c.logger.Debug("realearth latest time", "product", product, "time", token)
	return token, nil
}

func (c *Client) latest(ctx context.Context, product string) (string, error) {
	params := url.Values{
		"products": {product},
		"allapps":  {"true"},
		"proxy":    {"true"},
	}
	u := c.baseURL + "/api/products?" + params.Encode()

	result, err := c.circuit.Execute(func() (interface{}, error) {
		return c.doRequest(ctx, u)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return "", err
	}

	products, ok := result.([]productTimes)
	if !ok {
		return "", errors.New("realearth: unexpected result type from circuit breaker")
	}
	if len(products) == 0 || len(products[0].Times) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoTimes, product)
	}
	times := products[0].Times
	return times[len(times)-1], nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]productTimes, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("products request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("realearth API error: status %d: %s", resp.StatusCode, body)
	}

	var products []productTimes
	if err := json.NewDecoder(resp.Body).Decode(&products); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return products, nil
}

// RealEarth products API response types.

type productTimes struct {
	ID    string   `json:"id"`
	Times []string `json:"times"`
}
