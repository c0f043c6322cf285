package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/lox/miniquoter/internal/quote"
)

// Form and query parameter names. The same names drive the HTML form, the
// CSV download and the chart URL.
const (
	paramZIP           = "zip"
	paramSqFt          = "sqft"
	paramPricePerTherm = "price_per_therm"
	paramPricePerKWh   = "price_per_kwh"
	paramBaseR         = "base_r"
	paramBaseAFUE      = "base_afue"
	paramBaseSEER      = "base_seer"
	paramPropR         = "prop_r"
	paramPropAFUE      = "prop_afue"
	paramPropSEER      = "prop_seer"
)

// parseRequest reads a quote request from form or query values. Missing
// fields keep their defaults.
func parseRequest(v url.Values) (quote.Request, error) {
	req := quote.DefaultRequest()
	if zip := strings.TrimSpace(v.Get(paramZIP)); v.Has(paramZIP) {
		req.ZIP = zip
	}

	fields := []struct {
		name string
		dst  *float64
	}{
		{paramSqFt, &req.SqFt},
		{paramPricePerTherm, &req.PricePerTherm},
		{paramPricePerKWh, &req.PricePerKWh},
		{paramBaseR, &req.Baseline.RValue},
		{paramBaseAFUE, &req.Baseline.AFUE},
		{paramBaseSEER, &req.Baseline.SEER},
		{paramPropR, &req.Proposed.RValue},
		{paramPropAFUE, &req.Proposed.AFUE},
		{paramPropSEER, &req.Proposed.SEER},
	}
	for _, f := range fields {
		raw := strings.TrimSpace(v.Get(f.name))
		if raw == "" {
			continue
		}
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return req, fmt.Errorf("%w: %s is not a number", quote.ErrInvalidInput, f.name)
		}
		*f.dst = n
	}
	return req, nil
}

// encodeRequest is the inverse of parseRequest.
func encodeRequest(req quote.Request) url.Values {
	format := func(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }
	return url.Values{
		paramZIP:           {req.ZIP},
		paramSqFt:          {format(req.SqFt)},
		paramPricePerTherm: {format(req.PricePerTherm)},
		paramPricePerKWh:   {format(req.PricePerKWh)},
		paramBaseR:         {format(req.Baseline.RValue)},
		paramBaseAFUE:      {format(req.Baseline.AFUE)},
		paramBaseSEER:      {format(req.Baseline.SEER)},
		paramPropR:         {format(req.Proposed.RValue)},
		paramPropAFUE:      {format(req.Proposed.AFUE)},
		paramPropSEER:      {format(req.Proposed.SEER)},
	}
}
