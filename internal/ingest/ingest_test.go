package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/cenkalti/backoff/v4"
)

const sampleTSV = "US\t53529\tDane\tWisconsin\tWI\tDane\t025\t\t\t43.2561\t-89.5017\t4\n" +
	"US\t10562\tOssining\tNew York\tNY\tWestchester\t119\t\t\t41.1675\t-73.8507\t4\n"

func buildArchive(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		"readme.txt": "GeoNames postal codes\n",
		"US.txt":     sampleTSV,
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(content))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func testClient(url string) *GeoNamesClient {
	c := NewGeoNamesClient(url)
	c.backoff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)
	}
	return c
}

func TestGeoNamesClient_Fetch(t *testing.T) {
	archive := buildArchive(t)
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(archive)
	}))
	defer srv.Close()

	places, err := testClient(srv.URL + "/US.zip").Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2 (one retry after 503)", calls.Load())
	}
	if len(places) != 2 {
		t.Fatalf("len(places) = %d, want 2", len(places))
	}
	if places[1].City != "Ossining" || places[1].State != "NY" {
		t.Errorf("places[1] = %+v", places[1])
	}
}

func TestGeoNamesClient_NotFoundIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).Fetch(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 404)", calls.Load())
	}
}

func TestParsePostalArchive_NoTable(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("readme.txt")
	w.Write([]byte("nothing here"))
	zw.Close()

	if _, err := parsePostalArchive(buf.Bytes()); err == nil {
		t.Error("expected error for archive without data file")
	}
}

func TestLoadPostalCodes(t *testing.T) {
	ctx := context.Background()

	places, origin, err := LoadPostalCodes(ctx, PostalSource{})
	if err != nil {
		t.Fatalf("embedded: %v", err)
	}
	if origin != "embedded" || len(places) == 0 {
		t.Errorf("embedded = %d places from %q", len(places), origin)
	}

	path := filepath.Join(t.TempDir(), "US.txt")
	if err := os.WriteFile(path, []byte(sampleTSV), 0644); err != nil {
		t.Fatal(err)
	}
	places, origin, err = LoadPostalCodes(ctx, PostalSource{File: path})
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	if origin != path || len(places) != 2 {
		t.Errorf("file = %d places from %q", len(places), origin)
	}
}

func TestLoadStations(t *testing.T) {
	ctx := context.Background()

	table, err := LoadStations(ctx, "", "")
	if err != nil {
		t.Fatalf("embedded: %v", err)
	}
	if table.Len() == 0 {
		t.Error("embedded table is empty")
	}

	path := filepath.Join(t.TempDir(), "stations.csv")
	csv := "NAME,LATITUDE,LONGITUDE,HDD65,CDD65\nONLY,43,-89,7000,600\n"
	if err := os.WriteFile(path, []byte(csv), 0644); err != nil {
		t.Fatal(err)
	}
	table, err = LoadStations(ctx, path, "")
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	if table.Len() != 1 {
		t.Errorf("Len = %d, want 1", table.Len())
	}

	if _, err := LoadStations(ctx, "", "http://example.com/stations.csv"); err == nil {
		t.Error("expected error for non-ftp source")
	}
}

func TestParseFTPSource(t *testing.T) {
	tests := []struct {
		in       string
		wantAddr string
		wantPath string
		wantErr  bool
	}{
		{"ftp://ftp.example.gov/pub/normals/hdd_cdd.csv", "ftp.example.gov:21", "/pub/normals/hdd_cdd.csv", false},
		{"ftp.example.gov:2121/data.csv", "ftp.example.gov:2121", "/data.csv", false},
		{"ftp://ftp.example.gov/", "", "", true},
		{"https://example.gov/data.csv", "", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFTPSource(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseFTPSource(%q) = %+v, want error", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFTPSource(%q): %v", tt.in, err)
			continue
		}
		if got.Addr != tt.wantAddr || got.Path != tt.wantPath {
			t.Errorf("ParseFTPSource(%q) = %s %s, want %s %s", tt.in, got.Addr, got.Path, tt.wantAddr, tt.wantPath)
		}
	}
}

func TestFTPSource_Fetch(t *testing.T) {
	src := os.Getenv("STATIONS_FTP")
	if testing.Short() || src == "" {
		t.Skip("skipping integration test (set STATIONS_FTP)")
	}
	f, err := ParseFTPSource(src)
	if err != nil {
		t.Fatal(err)
	}
	table, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	t.Logf("fetched %d stations from %s", table.Len(), f)
}
