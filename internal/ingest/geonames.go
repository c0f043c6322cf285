package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lox/miniquoter/internal/htmlutil"
	"github.com/lox/miniquoter/internal/httputil"
	"github.com/lox/miniquoter/internal/locator"
	"github.com/lox/miniquoter/internal/models"
)

// GeoNamesUSURL is the GeoNames postal code dump for the United States.
const GeoNamesUSURL = "https://download.geonames.org/export/zip/US.zip"

type GeoNamesClient struct {
	client  *http.Client
	url     string
	backoff func() backoff.BackOff
}

func NewGeoNamesClient(url string) *GeoNamesClient {
	if url == "" {
		url = GeoNamesUSURL
	}
	return &GeoNamesClient{
		client: httputil.NewClient(),
		url:    url,
		backoff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.MaxElapsedTime = 2 * time.Minute
			return bo
		},
	}
}

// Fetch downloads the archive and parses the postal code table inside it.
func (g *GeoNamesClient) Fetch(ctx context.Context) ([]models.Place, error) {
	var body []byte
	operation := func() error {
		req, err := httputil.NewRequest(g.url)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := g.client.Do(req.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("fetch postal codes: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("fetch postal codes: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return backoff.Permanent(fmt.Errorf("fetch postal codes: status %d: %s", resp.StatusCode, htmlutil.Snippet(b, 200)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(g.backoff(), ctx)); err != nil {
		return nil, err
	}

	return parsePostalArchive(body)
}

// parsePostalArchive extracts the data file from a GeoNames zip. The archive
// also carries a readme.txt which is skipped.
func parsePostalArchive(body []byte) ([]models.Place, error) {
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	for _, f := range zr.File {
		name := path.Base(f.Name)
		if !strings.HasSuffix(name, ".txt") || strings.EqualFold(name, "readme.txt") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()

		places, err := locator.ParsePostalCodes(rc)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		return places, nil
	}
	return nil, fmt.Errorf("no postal code table in archive")
}
