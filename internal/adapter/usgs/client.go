// Package usgs queries the USGS FDSN event web service for GeoJSON features.
package usgs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Bhupin123/Sismicity/internal/domain"
	"github.com/Bhupin123/Sismicity/internal/observability"
)

const queryPath = "/fdsnws/event/1/query"

// Client fetches feature collections from an FDSN event endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a client for baseURL, e.g. https://earthquake.usgs.gov.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		metrics:    metrics,
	}
}

// Fetch returns the raw features that occurred in [start, end) with magnitude
// at least minMagnitude, newest first. Features are not parsed here; the
// ingestion pipeline owns validation.
func (c *Client) Fetch(ctx context.Context, start, end time.Time, minMagnitude float64) ([]domain.RawFeature, error) {
	params := url.Values{
		"format":       {"geojson"},
		"starttime":    {start.UTC().Format(time.RFC3339)},
		"endtime":      {end.UTC().Format(time.RFC3339)},
		"minmagnitude": {strconv.FormatFloat(minMagnitude, 'f', -1, 64)},
		"orderby":      {"time"},
	}
	fullURL := c.baseURL + queryPath + "?" + params.Encode()

	features, err := c.get(ctx, fullURL)
	if err != nil {
		c.metrics.FetchErrors.Inc()
		return nil, err
	}
	c.metrics.FeaturesFetched.Add(float64(len(features)))
	c.logger.Debug("usgs features fetched", "count", len(features), "start", start, "end", end)
	return features, nil
}

func (c *Client) get(ctx context.Context, fullURL string) ([]domain.RawFeature, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("usgs request: %w", err)
	}
	defer resp.Body.Close()

	// FDSN answers 204 when the query matches nothing.
	if resp.StatusCode == http.StatusNoContent {
		return []domain.RawFeature{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("usgs API error: status %d: %s", resp.StatusCode, body)
	}
	return DecodeFeatureCollection(resp.Body)
}

// DecodeFeatureCollection splits a GeoJSON FeatureCollection into raw
// features, keeping each feature's bytes untouched.
func DecodeFeatureCollection(r io.Reader) ([]domain.RawFeature, error) {
	var collection struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	if err := json.NewDecoder(r).Decode(&collection); err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}
	if collection.Type != "" && collection.Type != "FeatureCollection" {
		return nil, fmt.Errorf("decode feature collection: unexpected type %q", collection.Type)
	}

	features := make([]domain.RawFeature, 0, len(collection.Features))
	for _, raw := range collection.Features {
		var head struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return nil, fmt.Errorf("decode feature id: %w", err)
		}
		features = append(features, domain.RawFeature{ID: head.ID, Payload: raw})
	}
	return features, nil
}
