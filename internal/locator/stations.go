package locator

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/lox/miniquoter/internal/models"
)

//go:embed data/stations.csv
var defaultStationsCSV []byte

var requiredStationColumns = []string{"NAME", "LATITUDE", "LONGITUDE", "HDD65", "CDD65"}

// StationTable is an immutable, ordered set of weather stations. Order is
// significant: when two stations are exactly equidistant from a point, the
// one that appears first wins.
type StationTable struct {
	stations []models.WeatherStation
}

// NewStationTable copies the given stations into a table after validating each.
func NewStationTable(stations []models.WeatherStation) (*StationTable, error) {
	if len(stations) == 0 {
		return nil, errors.New("station table is empty")
	}
	out := make([]models.WeatherStation, len(stations))
	for i, st := range stations {
		if err := ValidateStation(st); err != nil {
			return nil, fmt.Errorf("station %d (%s): %w", i, st.Name, err)
		}
		out[i] = st
	}
	return &StationTable{stations: out}, nil
}

// DefaultStationTable returns the station table embedded in the binary.
func DefaultStationTable() (*StationTable, error) {
	return ParseStations(bytes.NewReader(defaultStationsCSV))
}

func (t *StationTable) Len() int {
	return len(t.stations)
}

// Stations returns a copy of the table rows in table order.
func (t *StationTable) Stations() []models.WeatherStation {
	out := make([]models.WeatherStation, len(t.stations))
	copy(out, t.stations)
	return out
}

// Nearest returns the station closest to p and its distance in miles.
func (t *StationTable) Nearest(p models.GeoPoint) (models.WeatherStation, float64) {
	best := 0
	bestDist := math.Inf(1)
	for i, st := range t.stations {
		d := DistanceMiles(p, st.Point())
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	return t.stations[best], bestDist
}

// ValidateStation checks coordinate ranges and degree days for a single row.
func ValidateStation(st models.WeatherStation) error {
	switch {
	case !isFinite(st.Latitude) || st.Latitude < -90 || st.Latitude > 90:
		return fmt.Errorf("latitude %v out of range", st.Latitude)
	case !isFinite(st.Longitude) || st.Longitude < -180 || st.Longitude > 180:
		return fmt.Errorf("longitude %v out of range", st.Longitude)
	case !isFinite(st.HDD65) || st.HDD65 < 0:
		return fmt.Errorf("HDD65 %v invalid", st.HDD65)
	case !isFinite(st.CDD65) || st.CDD65 < 0:
		return fmt.Errorf("CDD65 %v invalid", st.CDD65)
	}
	return nil
}

// ParseStations reads a NOAA-style degree-day CSV. The header must contain
// NAME, LATITUDE, LONGITUDE, HDD65 and CDD65; STATION is optional.
func ParseStations(r io.Reader) (*StationTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, name := range requiredStationColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %s", name)
		}
	}
	idCol, hasID := cols["STATION"]

	var stations []models.WeatherStation
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		st := models.WeatherStation{Name: field(rec, cols["NAME"])}
		if hasID {
			st.StationID = field(rec, idCol)
		}
		floats := []struct {
			col string
			dst *float64
		}{
			{"LATITUDE", &st.Latitude},
			{"LONGITUDE", &st.Longitude},
			{"HDD65", &st.HDD65},
			{"CDD65", &st.CDD65},
		}
		for _, f := range floats {
			v, err := strconv.ParseFloat(field(rec, cols[f.col]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, f.col, err)
			}
			*f.dst = v
		}
		if err := ValidateStation(st); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		stations = append(stations, st)
	}

	return NewStationTable(stations)
}

// WriteStations writes the table in the format ParseStations reads.
func WriteStations(w io.Writer, t *StationTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"STATION"}, requiredStationColumns...)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	format := func(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
	for _, st := range t.stations {
		row := []string{
			st.StationID,
			st.Name,
			format(st.Latitude),
			format(st.Longitude),
			format(st.HDD65),
			format(st.CDD65),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", st.Name, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func field(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
