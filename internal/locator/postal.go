package locator

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/lox/miniquoter/internal/models"
)

//go:embed data/postal_us.txt
var defaultPostalTSV []byte

// GeoNames postal code dump columns.
const (
	colCountry    = 0
	colPostalCode = 1
	colPlaceName  = 2
	colStateName  = 3
	colStateCode  = 4
	colCounty     = 5
	colLatitude   = 9
	colLongitude  = 10
	minColumns    = 11
)

// NormalizePostalCode reduces a US ZIP or ZIP+4 to its five-digit form.
// It reports false for anything that is not syntactically a ZIP code.
func NormalizePostalCode(code string) (string, bool) {
	code = strings.TrimSpace(code)
	if len(code) == 10 && code[5] == '-' {
		if !allDigits(code[6:]) {
			return "", false
		}
		code = code[:5]
	}
	if len(code) != 5 || !allDigits(code) {
		return "", false
	}
	return code, true
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// ParsePostalCodes reads a GeoNames postal code dump (tab separated, no header).
// Rows without usable coordinates are dropped, so they resolve as not found.
func ParsePostalCodes(r io.Reader) ([]models.Place, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	var places []models.Place
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) < minColumns {
			continue
		}

		lat, err := strconv.ParseFloat(strings.TrimSpace(rec[colLatitude]), 64)
		if err != nil || !isFinite(lat) {
			continue
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(rec[colLongitude]), 64)
		if err != nil || !isFinite(lon) {
			continue
		}

		places = append(places, models.Place{
			PostalCode: strings.TrimSpace(rec[colPostalCode]),
			City:       rec[colPlaceName],
			State:      rec[colStateCode],
			StateName:  rec[colStateName],
			County:     rec[colCounty],
			Point:      models.GeoPoint{Latitude: lat, Longitude: lon},
		})
	}
	return places, nil
}

// PostalIndex is an in-memory Geocoder.
type PostalIndex struct {
	places map[string]models.Place
}

// NewPostalIndex indexes places by postal code. The first row for a code wins.
func NewPostalIndex(places []models.Place) *PostalIndex {
	idx := &PostalIndex{places: make(map[string]models.Place, len(places))}
	for _, p := range places {
		if _, ok := idx.places[p.PostalCode]; ok {
			continue
		}
		idx.places[p.PostalCode] = p
	}
	return idx
}

// DefaultPostalPlaces returns the postal codes embedded in the binary.
func DefaultPostalPlaces() ([]models.Place, error) {
	return ParsePostalCodes(bytes.NewReader(defaultPostalTSV))
}

func (idx *PostalIndex) Len() int {
	return len(idx.places)
}

func (idx *PostalIndex) LookupPostalCode(_ context.Context, code string) (*models.Place, error) {
	p, ok := idx.places[code]
	if !ok {
		return nil, nil
	}
	return &p, nil
}
