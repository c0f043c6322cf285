// Package report renders a quote as the comparison table: CSV for download,
// aligned text for the terminal.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/lox/miniquoter/internal/quote"
)

// Filename is the suggested name for the CSV download.
const Filename = "quoter_results.csv"

var csvHeader = []string{"scenario", "therms/yr", "kWh/yr", "$/yr"}

// Row is one line of the comparison table.
type Row struct {
	Scenario string
	Therms   float64
	KWh      float64
	Cost     float64
}

// Rows returns Baseline, Proposed and Savings in that order.
func Rows(res *quote.Result) []Row {
	return []Row{
		{"Baseline", res.Baseline.Therms, res.Baseline.KWh, res.Baseline.Cost},
		{"Proposed", res.Proposed.Therms, res.Proposed.KWh, res.Proposed.Cost},
		{"Savings", res.Savings.Therms, res.Savings.KWh, res.Savings.Cost},
	}
}

// WriteCSV writes the table with full precision values.
func WriteCSV(w io.Writer, res *quote.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}
	for _, r := range Rows(res) {
		row := []string{
			r.Scenario,
			formatFloat(r.Therms),
			formatFloat(r.KWh),
			formatFloat(r.Cost),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Whole formats a quantity to zero decimal places.
func Whole(v float64) string {
	return strconv.FormatFloat(v, 'f', 0, 64)
}

// Dollars formats v as whole dollars with thousands separators, e.g. "$1,656".
func Dollars(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return "$" + formatFloat(v)
	}
	return "$" + humanize.Comma(int64(math.Round(v)))
}

// WriteTable prints the location, the comparison table and the narrative.
func WriteTable(w io.Writer, res *quote.Result) error {
	loc := res.Location
	fmt.Fprintf(w, "Building Location: %s\n", loc.Name)
	fmt.Fprintf(w, "HDD65 %s  •  CDD65 %s  •  Weather Station %s (%.1f mi)\n\n",
		humanize.Comma(int64(math.Round(loc.HDD65))),
		humanize.Comma(int64(math.Round(loc.CDD65))),
		loc.NearestStation, loc.DistanceMiles)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "\ttherms/yr\tkWh/yr\t$/yr\t")
	for _, r := range Rows(res) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", r.Scenario, Whole(r.Therms), Whole(r.KWh), Dollars(r.Cost))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nEnvelope conductance reduced %.0f%% (UA %.0f → %.0f)\n",
		res.UAReductionPct, res.Baseline.UA, res.Proposed.UA)

	switch {
	case res.Narrative != "":
		fmt.Fprintf(w, "\n%s\n", res.Narrative)
	case res.NarrativeError != "":
		fmt.Fprintf(w, "\nNarrative unavailable: %s\n", res.NarrativeError)
	}
	if res.Usage != nil {
		fmt.Fprintf(w, "\n%d/%d AI requests used today\n", res.Usage.Used, res.Usage.Limit)
	}

	_, err := fmt.Fprintln(w, "\n"+Disclaimer)
	return err
}

// Disclaimer qualifies every set of results.
const Disclaimer = "Please note: this data is a conduction-only model (UA·HDD/CDD). " +
	"Calculations ignore potential air leakage and HVAC part-loading."
