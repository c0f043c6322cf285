package ingest

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/lox/miniquoter/internal/locator"
	"github.com/lox/miniquoter/internal/metrics"
	"github.com/lox/miniquoter/internal/models"
	"github.com/lox/miniquoter/internal/store"
)

// PostalSource selects where postal codes come from: a local GeoNames dump,
// a download, or the sample embedded in the binary.
type PostalSource struct {
	File     string
	Download bool
	URL      string
}

// LoadPostalCodes returns the places and a description of where they came
// from. A failed download falls back to the embedded sample.
func LoadPostalCodes(ctx context.Context, src PostalSource) ([]models.Place, string, error) {
	if src.File != "" {
		f, err := os.Open(src.File)
		if err != nil {
			return nil, "", fmt.Errorf("open postal file: %w", err)
		}
		defer f.Close()
		places, err := locator.ParsePostalCodes(f)
		if err != nil {
			return nil, "", fmt.Errorf("parse postal file: %w", err)
		}
		return places, src.File, nil
	}

	if src.Download {
		client := NewGeoNamesClient(src.URL)
		places, err := client.Fetch(ctx)
		if err == nil {
			return places, client.url, nil
		}
		log.Printf("ingest: postal download failed, using embedded sample: %v", err)
	}

	places, err := locator.DefaultPostalPlaces()
	if err != nil {
		return nil, "", err
	}
	return places, "embedded", nil
}

// SeedPostalCodes loads postal codes into the store.
func SeedPostalCodes(ctx context.Context, st *store.Store, src PostalSource) error {
	places, origin, err := LoadPostalCodes(ctx, src)
	if err != nil {
		return err
	}
	if err := st.ReplacePostalCodes(places); err != nil {
		return fmt.Errorf("store postal codes: %w", err)
	}
	metrics.PostalCodesLoaded.Set(float64(len(places)))
	log.Printf("ingest: loaded %d postal codes from %s", len(places), origin)
	return nil
}

// LoadStations reads the station table from a file, an FTP source, or the
// embedded default, in that order.
func LoadStations(ctx context.Context, file, ftpSource string) (*locator.StationTable, error) {
	var (
		table  *locator.StationTable
		origin string
		err    error
	)
	switch {
	case file != "":
		var f *os.File
		f, err = os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("open stations file: %w", err)
		}
		defer f.Close()
		table, err = locator.ParseStations(f)
		origin = file
	case ftpSource != "":
		var src *FTPSource
		src, err = ParseFTPSource(ftpSource)
		if err != nil {
			return nil, err
		}
		table, err = src.Fetch(ctx)
		origin = src.String()
	default:
		table, err = locator.DefaultStationTable()
		origin = "embedded"
	}
	if err != nil {
		return nil, fmt.Errorf("load stations: %w", err)
	}

	log.Printf("ingest: loaded %d stations from %s", table.Len(), origin)
	return table, nil
}
