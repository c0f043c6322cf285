package locator

import (
	"context"
	"errors"
	"fmt"

	"github.com/lox/miniquoter/internal/metrics"
	"github.com/lox/miniquoter/internal/models"
)

// ErrInvalidLocation is returned when a postal code cannot be resolved to coordinates.
var ErrInvalidLocation = errors.New("invalid ZIP code")

// Geocoder resolves a normalized five-digit postal code. Implementations
// return a nil place and nil error when the code is unknown.
type Geocoder interface {
	LookupPostalCode(ctx context.Context, code string) (*models.Place, error)
}

// Locator finds the climate data for a postal code.
type Locator struct {
	geocoder Geocoder
	stations *StationTable
}

func New(geocoder Geocoder, stations *StationTable) *Locator {
	return &Locator{geocoder: geocoder, stations: stations}
}

func (l *Locator) Stations() *StationTable {
	return l.stations
}

// Locate resolves zip and returns the nearest station's degree days.
func (l *Locator) Locate(ctx context.Context, zip string) (models.LocationResult, error) {
	code, ok := NormalizePostalCode(zip)
	if !ok {
		metrics.GeocodeLookups.WithLabelValues("malformed").Inc()
		return models.LocationResult{}, fmt.Errorf("%w: %q", ErrInvalidLocation, zip)
	}

	place, err := l.geocoder.LookupPostalCode(ctx, code)
	if err != nil {
		metrics.GeocodeLookups.WithLabelValues("error").Inc()
		return models.LocationResult{}, fmt.Errorf("lookup %s: %w", code, err)
	}
	if place == nil || !isFinite(place.Point.Latitude) || !isFinite(place.Point.Longitude) {
		metrics.GeocodeLookups.WithLabelValues("not_found").Inc()
		return models.LocationResult{}, fmt.Errorf("%w: %q", ErrInvalidLocation, zip)
	}

	metrics.GeocodeLookups.WithLabelValues("found").Inc()
	return Resolve(*place, l.stations), nil
}

// Resolve pairs a place with its nearest station. It is a pure function of
// its arguments.
func Resolve(place models.Place, stations *StationTable) models.LocationResult {
	st, dist := stations.Nearest(place.Point)
	return models.LocationResult{
		Name:           fmt.Sprintf("%s, %s", place.City, place.State),
		City:           place.City,
		State:          place.State,
		HDD65:          st.HDD65,
		CDD65:          st.CDD65,
		NearestStation: st.Name,
		StationID:      st.StationID,
		DistanceMiles:  dist,
	}
}
