package api_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/lox/miniquoter/internal/api"
	"github.com/lox/miniquoter/internal/locator"
	"github.com/lox/miniquoter/internal/narrative"
	"github.com/lox/miniquoter/internal/quote"
	"github.com/lox/miniquoter/internal/ratelimit"
	"github.com/lox/miniquoter/internal/store"
)

type fakeGenerator struct{ text string }

func (f fakeGenerator) Generate(context.Context, narrative.Prompt) (string, error) {
	return f.text, nil
}

func setupServer(t *testing.T, limit int) *api.Server {
	t.Helper()
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	st := store.New(db)
	if err := st.Migrate(); err != nil {
		t.Fatal(err)
	}
	places, err := locator.DefaultPostalPlaces()
	if err != nil {
		t.Fatal(err)
	}
	if err := st.ReplacePostalCodes(places); err != nil {
		t.Fatal(err)
	}
	stations, err := locator.DefaultStationTable()
	if err != nil {
		t.Fatal(err)
	}

	chicago, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 10, 16, 22, 30, 0, 0, chicago)
	limiter := ratelimit.New(st, limit, chicago, ratelimit.WithClock(func() time.Time { return now }))

	svc := quote.NewService(
		locator.New(st, stations),
		limiter,
		narrative.NewFormatter(fakeGenerator{text: "Savings are substantial."}),
	)
	return api.NewServer(st, svc, "8080")
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, 3)

	w := do(t, srv.Handler(), httptest.NewRequest("GET", "/health", nil))
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var health api.HealthStatus
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "ok" || health.Stations == 0 || health.DailyLimit != 3 || health.SchemaVersion < 2 {
		t.Errorf("health = %+v", health)
	}
}

func TestIndexPage(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, 3)

	w := do(t, srv.Handler(), httptest.NewRequest("GET", "/", nil))
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `value="53715"`) {
		t.Error("expected default ZIP in form")
	}
	if !strings.Contains(body, "Run Simulation") {
		t.Error("expected submit button")
	}

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "mqid" {
			cookie = c
		}
	}
	if cookie == nil || len(cookie.Value) != 32 {
		t.Fatalf("expected mqid cookie, got %+v", cookie)
	}
	if cookie.MaxAge != 60*60*24*365 {
		t.Errorf("MaxAge = %d, want one year", cookie.MaxAge)
	}
}

func TestQuotePage(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, 3)

	form := url.Values{"zip": {"53529"}, "sqft": {"10000"}}
	req := httptest.NewRequest("POST", "/quote", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := do(t, srv.Handler(), req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	for _, want := range []string{
		"Building Location: Dane, WI",
		"LODI",
		"Savings are substantial.",
		"1/3 AI requests used today",
		"/api/chart.png?",
		"conduction-only",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in page", want)
		}
	}
}

func TestQuotePage_InvalidZIP(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, 3)

	form := url.Values{"zip": {"abcde"}}
	req := httptest.NewRequest("POST", "/quote", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := do(t, srv.Handler(), req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "invalid ZIP code") {
		t.Error("expected error message in page")
	}
}

func postQuote(t *testing.T, h http.Handler, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/quote", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return do(t, h, req)
}

func TestAPIQuote(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, 3)

	w := postQuote(t, srv.Handler(), `{"zip":"10562","baseline":{"r_value":10,"afue":0.8,"seer":13}}`, nil)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var res quote.Result
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.Location.Name != "Ossining, NY" {
		t.Errorf("Name = %q", res.Location.Name)
	}
	if !strings.HasPrefix(res.Location.NearestStation, "YORKTOWN") {
		t.Errorf("NearestStation = %q", res.Location.NearestStation)
	}
	// Omitted proposed scenario falls back to the form defaults.
	if res.ProposedInputs.RValue != 20 {
		t.Errorf("proposed R = %v, want 20", res.ProposedInputs.RValue)
	}
	if res.Narrative != "Savings are substantial." {
		t.Errorf("Narrative = %q", res.Narrative)
	}
}

func TestAPIQuote_Errors(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, 3)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"unknown zip", `{"zip":"99999"}`, http.StatusBadRequest},
		{"malformed zip", `{"zip":"1234"}`, http.StatusBadRequest},
		{"afue out of range", `{"proposed":{"r_value":20,"afue":1.5,"seer":18}}`, http.StatusBadRequest},
		{"negative area", `{"sqft":-1}`, http.StatusBadRequest},
		{"bad json", `{"zip":`, http.StatusBadRequest},
		{"overflowing area", `{"sqft":1e308,"baseline":{"r_value":0.5,"afue":0.8,"seer":13}}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postQuote(t, srv.Handler(), tt.body, nil)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), `"error"`) {
				t.Error("expected error field")
			}
		})
	}
}

func TestAPIQuote_DailyLimit(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, 2)
	h := srv.Handler()
	cookie := &http.Cookie{Name: "mqid", Value: "0123456789abcdef0123456789abcdef"}

	for i := 0; i < 2; i++ {
		if w := postQuote(t, h, `{}`, cookie); w.Code != 200 {
			t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
		}
	}

	w := postQuote(t, h, `{}`, cookie)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	// 22:30 Chicago, resets at midnight.
	if got := w.Header().Get("Retry-After"); got != "5400" {
		t.Errorf("Retry-After = %q, want 5400", got)
	}
	if !strings.Contains(w.Body.String(), "resets in 1h 30m") {
		t.Errorf("body = %s", w.Body.String())
	}

	// Downloads are not counted against the limit.
	if w := do(t, h, httptest.NewRequest("GET", "/api/quote.csv", nil)); w.Code != 200 {
		t.Errorf("csv after limit: expected 200, got %d", w.Code)
	}
}

func TestAPILocate(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, 3)

	w := do(t, srv.Handler(), httptest.NewRequest("GET", "/api/locate?zip=53529-1234", nil))
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"name":"Dane, WI"`) || !strings.Contains(body, "LODI") {
		t.Errorf("body = %s", body)
	}

	w = do(t, srv.Handler(), httptest.NewRequest("GET", "/api/locate?zip=00000", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestQuoteCSV(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, 3)

	w := do(t, srv.Handler(), httptest.NewRequest("GET", "/api/quote.csv?zip=53715&sqft=5000", nil))
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "quoter_results.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	records, err := csv.NewReader(w.Body).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 4 || records[0][0] != "scenario" || records[3][0] != "Savings" {
		t.Errorf("records = %v", records)
	}

	w = do(t, srv.Handler(), httptest.NewRequest("GET", "/api/quote.csv?sqft=lots", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-numeric sqft: expected 400, got %d", w.Code)
	}
}

func TestChart(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, 3)
	h := srv.Handler()

	for i := 0; i < 2; i++ {
		w := do(t, h, httptest.NewRequest("GET", "/api/chart.png?zip=53529", nil))
		if w.Code != 200 {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != "image/png" {
			t.Errorf("Content-Type = %q", ct)
		}
		if _, err := png.Decode(bytes.NewReader(w.Body.Bytes())); err != nil {
			t.Errorf("decode png: %v", err)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, 3)
	h := srv.Handler()

	do(t, h, httptest.NewRequest("GET", "/api/locate?zip=53715", nil))

	w := do(t, h, httptest.NewRequest("GET", "/metrics", nil))
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "miniquoter_geocode_lookups_total") {
		t.Error("expected geocode lookup counter")
	}
}

func TestQuoteCSV_NonFiniteQuery(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, 3)

	for _, q := range []string{"sqft=Inf", "base_seer=NaN", "sqft=1e308&base_r=0.5"} {
		w := do(t, srv.Handler(), httptest.NewRequest("GET", "/api/quote.csv?"+q, nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, w.Code)
		}
	}
}
