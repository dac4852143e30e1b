// Package external contains clients for services outside this process.
package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/injury-assessment-server/internal/domain"
)

// ErrPlacesStatus is returned when the places service answers with a
// non-OK status.
var ErrPlacesStatus = errors.New("places service error")

// PlacesClient queries a nearby-search HTTP service for urgent-care
// facilities.
type PlacesClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	retryCount int
	logger     *logrus.Logger
}

// PlacesResponse is the nearby-search response body.
type PlacesResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message,omitempty"`
	Results []PlaceResult `json:"results"`
}

// PlaceResult is one place returned by the service.
type PlaceResult struct {
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Types     []string `json:"types"`
}

// NewPlacesClient creates a places client from configuration.
func NewPlacesClient(config domain.RemotePlacesConfig, logger *logrus.Logger) *PlacesClient {
	return NewPlacesClientWithBreaker(config, DefaultBreakerSettings(), logger)
}

// NewPlacesClientWithBreaker creates a places client with explicit breaker
// settings.
func NewPlacesClientWithBreaker(config domain.RemotePlacesConfig, breaker BreakerSettings, logger *logrus.Logger) *PlacesClient {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}

	baseURL := config.BaseURL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return &PlacesClient{
		baseURL: baseURL,
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		rateLimit:  rate.NewLimiter(limit, 1),
		breaker:    newCircuitBreaker("places", breaker, logger),
		retryCount: config.RetryCount,
		logger:     logger,
	}
}

// NearbySearch returns facilities around query.Center. The call passes
// through the rate limiter and the circuit breaker; an open breaker fails
// fast with gobreaker.ErrOpenState.
func (c *PlacesClient) NearbySearch(ctx context.Context, query domain.FacilityQuery) ([]domain.FacilityRecord, error) {
	if err := c.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.searchWithRetry(ctx, query)
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.FacilityRecord), nil
}

// State returns the breaker state, for health reporting.
func (c *PlacesClient) State() gobreaker.State {
	return c.breaker.State()
}

func (c *PlacesClient) searchWithRetry(ctx context.Context, query domain.FacilityQuery) ([]domain.FacilityRecord, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 200 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		records, retryable, err := c.search(ctx, query)
		if err == nil {
			return records, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		c.logger.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"error":   err,
		}).Debug("Retrying nearby search")
	}
	return nil, lastErr
}

func (c *PlacesClient) search(ctx context.Context, query domain.FacilityQuery) ([]domain.FacilityRecord, bool, error) {
	params := url.Values{
		"latitude":  {strconv.FormatFloat(query.Center.Latitude, 'f', 6, 64)},
		"longitude": {strconv.FormatFloat(query.Center.Longitude, 'f', 6, 64)},
		"radius":    {strconv.Itoa(query.RadiusMeters)},
	}
	for _, category := range query.CategoryFilter {
		params.Add("type", category)
	}
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}

	fullURL := fmt.Sprintf("%snearby?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create nearby request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("failed to execute nearby request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, true, fmt.Errorf("%w: status %d", ErrPlacesStatus, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("%w: status %d", ErrPlacesStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, true, fmt.Errorf("failed to read nearby response: %w", err)
	}

	var parsed PlacesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, false, fmt.Errorf("failed to parse nearby response: %w", err)
	}

	switch parsed.Status {
	case "OK", "":
	case "ZERO_RESULTS":
		return []domain.FacilityRecord{}, false, nil
	default:
		return nil, false, fmt.Errorf("%w: %s %s", ErrPlacesStatus, parsed.Status, parsed.Message)
	}

	records := make([]domain.FacilityRecord, 0, len(parsed.Results))
	for _, p := range parsed.Results {
		category := ""
		if len(p.Types) > 0 {
			category = p.Types[0]
		}
		records = append(records, domain.FacilityRecord{
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
			Name:      p.Name,
			Address:   p.Address,
			Category:  category,
		})
	}
	return records, false, nil
}
