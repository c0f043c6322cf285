package models

// GeoPoint is a location in decimal degrees.
type GeoPoint struct {
	Latitude  float64
	Longitude float64
}

// Place is a resolved postal code.
type Place struct {
	PostalCode string
	City       string
	State      string // two-letter code, e.g. "WI"
	StateName  string
	County     string
	Point      GeoPoint
}

// WeatherStation is one row of the degree-day reference table.
type WeatherStation struct {
	StationID string
	Name      string
	Latitude  float64
	Longitude float64
	HDD65     float64
	CDD65     float64
}

func (s WeatherStation) Point() GeoPoint {
	return GeoPoint{Latitude: s.Latitude, Longitude: s.Longitude}
}

type LocationResult struct {
	Name           string  `json:"name"` // "City, ST"
	City           string  `json:"city"`
	State          string  `json:"state"`
	HDD65          float64 `json:"hdd65"`
	CDD65          float64 `json:"cdd65"`
	NearestStation string  `json:"nearest_station"`
	StationID      string  `json:"station_id,omitempty"`
	DistanceMiles  float64 `json:"distance_miles"`
}
