package api

import (
	"embed"
	"html/template"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/lox/miniquoter/internal/report"
)

//go:embed templates/*
var templateFS embed.FS

// newTemplates creates and parses the HTML templates with custom functions.
func newTemplates() *template.Template {
	funcs := template.FuncMap{
		"dollars": report.Dollars,
		"whole":   report.Whole,
		"comma": func(f float64) string {
			return humanize.Comma(int64(math.Round(f)))
		},
		"pct": func(f float64) string {
			return humanize.FtoaWithDigits(f, 1) + "%"
		},
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}
