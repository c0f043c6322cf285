package api

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"

	"github.com/lox/miniquoter/internal/imagegen"
	"github.com/lox/miniquoter/internal/quote"
	"github.com/lox/miniquoter/internal/report"
)

const maxBodyBytes = 64 << 10

// IndexData drives templates/index.html.
type IndexData struct {
	Form       quote.Request
	Result     *quote.Result
	Rows       []report.Row
	Query      template.URL
	Error      string
	Limit      int
	Timezone   string
	Disclaimer string
}

func (s *Server) indexData(req quote.Request) IndexData {
	data := IndexData{Form: req, Disclaimer: report.Disclaimer}
	if l := s.quotes.Limiter(); l != nil {
		data.Limit = l.Limit()
		data.Timezone = l.Location().String()
	}
	return data
}

func (s *Server) render(w http.ResponseWriter, status int, data IndexData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		log.Printf("api: render index: %v", err)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	identity(w, r)
	s.render(w, http.StatusOK, s.indexData(quote.DefaultRequest()))
}

func (s *Server) handleQuotePage(w http.ResponseWriter, r *http.Request) {
	id := identity(w, r)
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req, err := parseRequest(r.PostForm)
	data := s.indexData(req)
	if err != nil {
		data.Error = err.Error()
		s.render(w, statusFor(w, err), data)
		return
	}

	res, err := s.quotes.Run(r.Context(), id, req)
	if err != nil {
		status := statusFor(w, err)
		data.Error = err.Error()
		if status == http.StatusInternalServerError {
			data.Error = "Something went wrong computing the quote."
		}
		s.render(w, status, data)
		return
	}

	data.Result = res
	data.Rows = report.Rows(res)
	data.Query = template.URL(encodeRequest(req).Encode())
	s.render(w, http.StatusOK, data)
}

func (s *Server) handleAPIQuote(w http.ResponseWriter, r *http.Request) {
	id := identity(w, r)

	req := quote.DefaultRequest()
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && err != io.EOF {
		writeJSONError(w, fmt.Errorf("%w: %v", quote.ErrInvalidInput, err))
		return
	}

	res, err := s.quotes.Run(r.Context(), id, req)
	if err != nil {
		writeJSONError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAPILocate(w http.ResponseWriter, r *http.Request) {
	loc, err := s.quotes.Locator().Locate(r.Context(), r.URL.Query().Get(paramZIP))
	if err != nil {
		writeJSONError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// computeNumbers runs a quote from query parameters without a narrative, so
// downloads do not count against the daily limit.
func (s *Server) computeNumbers(r *http.Request) (quote.Request, *quote.Result, error) {
	req, err := parseRequest(r.URL.Query())
	if err != nil {
		return req, nil, err
	}
	req.SkipNarrative = true
	res, err := s.quotes.Run(r.Context(), "", req)
	return req, res, err
}

func (s *Server) handleQuoteCSV(w http.ResponseWriter, r *http.Request) {
	_, res, err := s.computeNumbers(r)
	if err != nil {
		writeJSONError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename))
	if err := report.WriteCSV(w, res); err != nil {
		log.Printf("api: write csv: %v", err)
	}
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	req, res, err := s.computeNumbers(r)
	if err != nil {
		writeJSONError(w, err)
		return
	}

	key := encodeRequest(req).Encode()
	data, ok := s.charts.Get(key)
	if !ok {
		data, err = imagegen.BarChart("Cost ($/yr)", []imagegen.Bar{
			{Label: "Baseline", Value: res.Baseline.Cost},
			{Label: "Proposed", Value: res.Proposed.Cost},
		})
		if err != nil {
			writeJSONError(w, err)
			return
		}
		s.charts.Set(key, data)
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=600")
	w.Write(data)
}

type HealthStatus struct {
	Status        string `json:"status"`
	SchemaVersion int    `json:"schema_version"`
	Stations      int    `json:"stations"`
	DailyLimit    int    `json:"daily_limit,omitempty"`
	Timezone      string `json:"timezone,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	version, err := s.store.MigrationVersion()
	if err != nil {
		log.Printf("api: health: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "error": err.Error()})
		return
	}

	health := HealthStatus{
		Status:        "ok",
		SchemaVersion: version,
		Stations:      s.quotes.Locator().Stations().Len(),
	}
	if l := s.quotes.Limiter(); l != nil {
		health.DailyLimit = l.Limit()
		health.Timezone = l.Location().String()
	}
	writeJSON(w, http.StatusOK, health)
}
