// Package geocode resolves free-text location references to coordinates,
// constrained to a single target country.
package geocode

import (
	"context"
	"errors"
)

// ErrNotFound means the lookup succeeded but produced no in-country result.
// Any other error from a Client is a service failure.
var ErrNotFound = errors.New("no in-country geocoding result")

// Result is a resolved location.
type Result struct {
	Lat     float64
	Lon     float64
	Address string
}

// Client resolves a text reference within the configured country.
type Client interface {
	Geocode(ctx context.Context, text string) (*Result, error)
}
