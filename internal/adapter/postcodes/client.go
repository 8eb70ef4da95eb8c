package postcodes

import (
	"bytes"
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

	"github.com/couchcryptid/commute-heatmap/internal/domain"
	"github.com/couchcryptid/commute-heatmap/internal/observability"
	"github.com/sony/gobreaker"
)

// MaxBulk is the postcodes.io limit on postcodes per bulk lookup.
const MaxBulk = 100

// Client implements domain.PostcodeGeocoder using the postcodes.io API.
// Requests run through a circuit breaker and are never retried.
type Client struct {
	httpClient *http.Client
	baseURL    string
	breaker    *gobreaker.CircuitBreaker
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a postcodes.io client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		breaker:    newBreaker(logger),
		metrics:    metrics,
		logger:     logger,
	}
}

func newBreaker(logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "postcodes.io",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})
}

// Search returns the postcodes matching a district query that start with the district itself,
// so "LS1" does not pick up "LS10".
func (c *Client) Search(ctx context.Context, district string) ([]string, error) {
	u := c.baseURL + "/postcodes?" + url.Values{"q": {district}}.Encode()

	var resp searchResponse
	if err := c.do(ctx, "search", http.MethodGet, u, nil, &resp); err != nil {
		return nil, fmt.Errorf("search %s: %w", district, err)
	}

	prefix := strings.ToUpper(district) + " "
	var out []string
	for _, r := range resp.Result {
		if strings.HasPrefix(strings.ToUpper(r.Postcode), prefix) {
			out = append(out, r.Postcode)
		}
	}
	return out, nil
}

// BulkGeocode resolves up to MaxBulk postcodes. Unknown postcodes are returned with Found=false.
func (c *Client) BulkGeocode(ctx context.Context, postcodes []string) ([]domain.PostcodeLocation, error) {
	if len(postcodes) == 0 {
		return nil, nil
	}
	if len(postcodes) > MaxBulk {
		return nil, fmt.Errorf("bulk geocode: %d postcodes exceeds limit of %d", len(postcodes), MaxBulk)
	}

	body, err := json.Marshal(bulkRequest{Postcodes: postcodes})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	var resp bulkResponse
	if err := c.do(ctx, "bulk", http.MethodPost, c.baseURL+"/postcodes", body, &resp); err != nil {
		return nil, fmt.Errorf("bulk geocode: %w", err)
	}

	out := make([]domain.PostcodeLocation, 0, len(resp.Result))
	for _, r := range resp.Result {
		loc := domain.PostcodeLocation{Postcode: r.Query}
		if r.Result != nil {
			loc.Lat = r.Result.Latitude
			loc.Lon = r.Result.Longitude
			loc.Found = true
		}
		out = append(out, loc)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, httpMethod, fullURL string, body []byte, into any) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, httpMethod, fullURL, reader)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, msg)
		}
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return nil, nil
	})

	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.Warn("postcodes.io circuit open, skipping request", "method", method)
		}
		return fmt.Errorf("%w: %w", domain.ErrService, err)
	}
	c.metrics.GeocodeRequests.WithLabelValues(method, "success").Inc()
	return nil
}

// postcodes.io request and response types.

type searchResponse struct {
	Result []struct {
		Postcode string `json:"postcode"`
	} `json:"result"`
}

type bulkRequest struct {
	Postcodes []string `json:"postcodes"`
}

type bulkResponse struct {
	Result []bulkResult `json:"result"`
}

type bulkResult struct {
	Query  string    `json:"query"`
	Result *location `json:"result"`
}

type location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
