package geocode

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"googlemaps.github.io/maps"

	"github.com/smart-directory/referral-service/pkg/logger"
	"github.com/smart-directory/referral-service/pkg/metrics"
)

// GoogleClient geocodes through the Google Maps Geocoding API.
type GoogleClient struct {
	maps        *maps.Client
	countryName string
	countryCode string
	timeout     time.Duration
	logger      *logger.Logger
}

// NewGoogleClient creates a new Google-backed geocoder constrained to one
// country. countryCode is the ISO 3166-1 alpha-2 code (e.g. "GT").
func NewGoogleClient(apiKey, countryName, countryCode string, timeout time.Duration, log *logger.Logger) (*GoogleClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Google Maps API key is required")
	}

	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}

	return &GoogleClient{
		maps:        client,
		countryName: countryName,
		countryCode: strings.ToUpper(countryCode),
		timeout:     timeout,
		logger:      log,
	}, nil
}

// Geocode tries successive query variants until one resolves inside the
// target country. Out-of-country matches are rejected even when the geocoder
// returns them.
func (c *GoogleClient) Geocode(ctx context.Context, text string) (*Result, error) {
	var lastErr error

	for _, req := range queryVariants(text, c.countryName, c.countryCode) {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		results, err := c.maps.Geocode(callCtx, &req)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}

		if res := firstInCountry(results, c.countryCode); res != nil {
			metrics.RecordGeocode("found")
			return res, nil
		}
	}

	if lastErr != nil {
		metrics.RecordGeocode("error")
		return nil, fmt.Errorf("geocoding service failed: %w", lastErr)
	}

	c.logger.Debug("no in-country geocoding result", zap.String("query", text))
	metrics.RecordGeocode("not_found")
	return nil, ErrNotFound
}

// queryVariants builds the lookup attempts: the raw text, the text qualified
// with the country name, and the raw text with a hard country component
// filter.
func queryVariants(text, countryName, countryCode string) []maps.GeocodingRequest {
	region := strings.ToLower(countryCode)
	return []maps.GeocodingRequest{
		{Address: text, Region: region},
		{Address: fmt.Sprintf("%s, %s", text, countryName), Region: region},
		{
			Address: text,
			Components: map[maps.Component]string{
				maps.ComponentCountry: countryCode,
			},
		},
	}
}

// firstInCountry returns the first result whose country component matches
// countryCode, or nil.
func firstInCountry(results []maps.GeocodingResult, countryCode string) *Result {
	for _, r := range results {
		if !inCountry(r, countryCode) {
			continue
		}
		return &Result{
			Lat:     r.Geometry.Location.Lat,
			Lon:     r.Geometry.Location.Lng,
			Address: r.FormattedAddress,
		}
	}
	return nil
}

func inCountry(r maps.GeocodingResult, countryCode string) bool {
	for _, comp := range r.AddressComponents {
		for _, t := range comp.Types {
			if t == "country" {
				return strings.EqualFold(comp.ShortName, countryCode)
			}
		}
	}
	return false
}
