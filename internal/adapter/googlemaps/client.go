package googlemaps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/commute-heatmap/internal/domain"
	"github.com/couchcryptid/commute-heatmap/internal/observability"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/distancematrix/json"

// Client implements domain.TravelTimeProvider using the Google Distance Matrix API.
type Client struct {
	apiKey     string
	mode       string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Distance Matrix client. It fails with domain.ErrMissingCredential
// when apiKey is empty so callers abort before any request is made.
func NewClient(apiKey, mode string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_MAPS_API_KEY is not set: %w", domain.ErrMissingCredential)
	}
	return &Client{
		apiKey: apiKey,
		mode:   mode,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// TravelTimes issues one request for all destinations and returns one record per destination.
func (c *Client) TravelTimes(ctx context.Context, origin domain.LatLon, destinations []domain.SamplePoint) ([]domain.TravelTimeRecord, error) {
	if len(destinations) == 0 {
		return nil, nil
	}

	dests := make([]string, len(destinations))
	for i, d := range destinations {
		dests[i] = d.LatLon().String()
	}
	params := url.Values{
		"origins":      {origin.String()},
		"destinations": {strings.Join(dests, "|")},
		"mode":         {c.mode},
		"key":          {c.apiKey},
	}

	start := time.Now()
	dm, err := c.doRequest(ctx, c.baseURL+"?"+params.Encode())
	c.metrics.DistanceAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("distance matrix: %w: %w", domain.ErrService, err)
	}

	if dm.Status != "OK" {
		return nil, fmt.Errorf("distance matrix: %w: status %s: %s", domain.ErrService, dm.Status, dm.ErrorMessage)
	}
	if len(dm.Rows) == 0 {
		return nil, fmt.Errorf("distance matrix: %w: response has no rows", domain.ErrService)
	}
	elements := dm.Rows[0].Elements
	if len(elements) != len(destinations) {
		return nil, fmt.Errorf("distance matrix: %w: got %d elements for %d destinations",
			domain.ErrService, len(elements), len(destinations))
	}

	records := make([]domain.TravelTimeRecord, len(destinations))
	for i, el := range elements {
		if el.Status != "OK" || el.Duration == nil {
			c.logger.Debug("no duration for destination",
				"destination", dests[i], "status", el.Status)
			records[i] = domain.AbsentRecord(destinations[i])
			continue
		}
		records[i] = domain.NewTravelTimeRecord(destinations[i], el.Duration.Value)
	}
	return records, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return response{}, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}

	var dm response
	if err := json.NewDecoder(resp.Body).Decode(&dm); err != nil {
		return response{}, fmt.Errorf("decode response: %w", err)
	}
	return dm, nil
}

// Distance Matrix response types.

type response struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	Rows         []row  `json:"rows"`
}

type row struct {
	Elements []element `json:"elements"`
}

type element struct {
	Status   string    `json:"status"`
	Duration *duration `json:"duration"`
}

type duration struct {
	Value float64 `json:"value"` // seconds
}
