// Package geo resolves a free-text birth place to coordinates and an IANA
// timezone.
package geo

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound means the lookup succeeded but nothing matched the candidate.
var ErrNotFound = errors.New("location not found")

// Location is a resolved place.
type Location struct {
	Name      string
	Latitude  float64
	Longitude float64
	Timezone  string
}

// Resolver looks up a place candidate. Implementations return ErrNotFound
// when the candidate does not resolve; any other error is a service failure.
type Resolver interface {
	Resolve(ctx context.Context, candidate string) (Location, error)
}

// StaticResolver serves a fixed set of places, keyed case-insensitively. It
// backs local runs and tests.
type StaticResolver struct {
	places map[string]Location
}

// NewStaticResolver returns a resolver over places.
func NewStaticResolver(places map[string]Location) *StaticResolver {
	m := make(map[string]Location, len(places))
	for k, v := range places {
		m[key(k)] = v
	}
	return &StaticResolver{places: m}
}

// DefaultPlaces is a small gazetteer for development.
func DefaultPlaces() map[string]Location {
	return map[string]Location{
		"London, UK":        {Name: "London, UK", Latitude: 51.5074, Longitude: -0.1278, Timezone: "Europe/London"},
		"London":            {Name: "London, UK", Latitude: 51.5074, Longitude: -0.1278, Timezone: "Europe/London"},
		"Madrid, Spain":     {Name: "Madrid, Spain", Latitude: 40.4168, Longitude: -3.7038, Timezone: "Europe/Madrid"},
		"Madrid, España":    {Name: "Madrid, España", Latitude: 40.4168, Longitude: -3.7038, Timezone: "Europe/Madrid"},
		"Paris, France":     {Name: "Paris, France", Latitude: 48.8566, Longitude: 2.3522, Timezone: "Europe/Paris"},
		"Lyon, France":      {Name: "Lyon, France", Latitude: 45.7640, Longitude: 4.8357, Timezone: "Europe/Paris"},
		"New York, USA":     {Name: "New York, USA", Latitude: 40.7128, Longitude: -74.0060, Timezone: "America/New_York"},
		"Mexico City":       {Name: "Mexico City", Latitude: 19.4326, Longitude: -99.1332, Timezone: "America/Mexico_City"},
		"Mumbai, India":     {Name: "Mumbai, India", Latitude: 19.0760, Longitude: 72.8777, Timezone: "Asia/Kolkata"},
		"Sydney, Australia": {Name: "Sydney, Australia", Latitude: -33.8688, Longitude: 151.2093, Timezone: "Australia/Sydney"},
	}
}

func (r *StaticResolver) Resolve(_ context.Context, candidate string) (Location, error) {
	loc, ok := r.places[key(candidate)]
	if !ok {
		return Location{}, ErrNotFound
	}
	return loc, nil
}

func key(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
