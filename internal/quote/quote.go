// Package quote runs a full comparison: locate the building, model the
// baseline and proposed scenarios, and ask for a narrative summary.
package quote

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/lox/miniquoter/internal/locator"
	"github.com/lox/miniquoter/internal/metrics"
	"github.com/lox/miniquoter/internal/models"
	"github.com/lox/miniquoter/internal/narrative"
	"github.com/lox/miniquoter/internal/ratelimit"
	"github.com/lox/miniquoter/internal/sim"
)

// ErrInvalidInput wraps validation failures on a Request.
var ErrInvalidInput = errors.New("invalid input")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	})
	return v
}

// Scenario is the envelope and equipment for one side of the comparison.
type Scenario struct {
	RValue float64 `json:"r_value" validate:"finite,gt=0"`
	AFUE   float64 `json:"afue" validate:"finite,gt=0,lte=1"`
	SEER   float64 `json:"seer" validate:"finite,gt=0"`
}

type Request struct {
	ZIP           string   `json:"zip" validate:"required"`
	SqFt          float64  `json:"sqft" validate:"finite,gt=0"`
	PricePerTherm float64  `json:"price_per_therm" validate:"finite,gte=0"`
	PricePerKWh   float64  `json:"price_per_kwh" validate:"finite,gte=0"`
	Baseline      Scenario `json:"baseline"`
	Proposed      Scenario `json:"proposed"`

	// SkipNarrative computes the numbers only. Such requests do not count
	// against the daily limit.
	SkipNarrative bool `json:"skip_narrative,omitempty"`
}

// DefaultRequest is the form's starting point.
func DefaultRequest() Request {
	return Request{
		ZIP:           "53715",
		SqFt:          10000,
		PricePerTherm: 1.20,
		PricePerKWh:   0.15,
		Baseline:      Scenario{RValue: 10, AFUE: 0.80, SEER: 13},
		Proposed:      Scenario{RValue: 20, AFUE: 0.95, SEER: 18},
	}
}

// Validate checks the ranges the thermal model needs.
func (r Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s must satisfy %s", ErrInvalidInput, fe.Namespace(), constraint(fe))
		}
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func constraint(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

func (r Request) inputs(s Scenario, loc models.LocationResult) sim.Inputs {
	return sim.Inputs{
		SqFt:          r.SqFt,
		RValue:        s.RValue,
		AFUE:          s.AFUE,
		SEER:          s.SEER,
		HDD65:         loc.HDD65,
		CDD65:         loc.CDD65,
		PricePerTherm: r.PricePerTherm,
		PricePerKWh:   r.PricePerKWh,
	}
}

type Result struct {
	Location       models.LocationResult `json:"location"`
	BaselineInputs sim.Inputs            `json:"baseline_inputs"`
	ProposedInputs sim.Inputs            `json:"proposed_inputs"`
	Baseline       sim.Result            `json:"baseline"`
	Proposed       sim.Result            `json:"proposed"`
	Savings        sim.Savings           `json:"savings"`
	UAReductionPct float64               `json:"ua_reduction_pct"`
	Narrative      string                `json:"narrative,omitempty"`
	NarrativeError string                `json:"narrative_error,omitempty"`
	Usage          *Usage                `json:"usage,omitempty"`
}

// Usage is the caller's daily allowance after this quote.
type Usage struct {
	Used         int   `json:"used"`
	Remaining    int   `json:"remaining"`
	Limit        int   `json:"limit"`
	ResetSeconds int64 `json:"reset_seconds"`
}

func newUsage(d ratelimit.Decision) *Usage {
	return &Usage{
		Used:         d.Used,
		Remaining:    d.Remaining,
		Limit:        d.Limit,
		ResetSeconds: int64(d.ResetIn.Seconds()),
	}
}

// Service wires the locator, the daily limiter and the narrative formatter.
type Service struct {
	locator   *locator.Locator
	limiter   *ratelimit.Limiter
	formatter *narrative.Formatter
}

// NewService returns a service. A nil limiter disables the daily limit and a
// nil formatter behaves as one without credentials.
func NewService(loc *locator.Locator, limiter *ratelimit.Limiter, formatter *narrative.Formatter) *Service {
	return &Service{locator: loc, limiter: limiter, formatter: formatter}
}

func (s *Service) Locator() *locator.Locator {
	return s.locator
}

func (s *Service) Limiter() *ratelimit.Limiter {
	return s.limiter
}

// Run executes one quote for identity. Narrative failures are reported in
// Result.NarrativeError and never fail the quote.
func (s *Service) Run(ctx context.Context, identity string, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		metrics.QuotesTotal.WithLabelValues("invalid_input").Inc()
		return nil, err
	}

	var usage *Usage
	if !req.SkipNarrative && s.limiter != nil {
		d, err := s.limiter.Take(ctx, identity)
		if err != nil {
			metrics.QuotesTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("rate limit: %w", err)
		}
		if !d.Allowed {
			metrics.QuotesTotal.WithLabelValues("rate_limited").Inc()
			metrics.RateLimitRejections.Inc()
			log.Printf("quote: daily limit reached for %s (%d/%d)", identity, d.Used, d.Limit)
			return nil, &ratelimit.LimitError{Limit: d.Limit, Used: d.Used, ResetIn: d.ResetIn}
		}
		usage = newUsage(d)
	}

	loc, err := s.locator.Locate(ctx, req.ZIP)
	if err != nil {
		if errors.Is(err, locator.ErrInvalidLocation) {
			metrics.QuotesTotal.WithLabelValues("invalid_location").Inc()
		} else {
			metrics.QuotesTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	res := &Result{
		Location:       loc,
		BaselineInputs: req.inputs(req.Baseline, loc),
		ProposedInputs: req.inputs(req.Proposed, loc),
		Usage:          usage,
	}
	res.Baseline = sim.Calc(res.BaselineInputs)
	res.Proposed = sim.Calc(res.ProposedInputs)
	res.Savings = sim.Compare(res.Baseline, res.Proposed)
	res.UAReductionPct = sim.UAReductionPercent(res.Baseline.UA, res.Proposed.UA)

	if err := checkFinite(res); err != nil {
		metrics.QuotesTotal.WithLabelValues("invalid_input").Inc()
		return nil, err
	}

	if !req.SkipNarrative {
		text, err := s.formatter.Format(ctx, narrative.Input{
			Location:       loc,
			Baseline:       res.Baseline,
			Proposed:       res.Proposed,
			BaselineInputs: res.BaselineInputs,
			ProposedInputs: res.ProposedInputs,
		})
		if err != nil {
			log.Printf("quote: narrative for %s: %v", loc.Name, err)
			res.NarrativeError = err.Error()
		} else {
			res.Narrative = text
		}
	}

	metrics.QuotesTotal.WithLabelValues("ok").Inc()
	return res, nil
}

// checkFinite rejects inputs whose results overflow float64, such as a huge
// area over a small R-value.
func checkFinite(res *Result) error {
	check := func(name string, vals ...float64) error {
		for _, v := range vals {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: %s result is out of range", ErrInvalidInput, name)
			}
		}
		return nil
	}
	for _, sc := range []struct {
		name string
		r    sim.Result
	}{{"baseline", res.Baseline}, {"proposed", res.Proposed}} {
		r := sc.r
		if err := check(sc.name, r.UA, r.HDDHours, r.CDDHours, r.QHeatBTU, r.QCoolBTU, r.Therms, r.KWh, r.Cost); err != nil {
			return err
		}
	}
	sv := res.Savings
	return check("savings", sv.UA, sv.QHeatBTU, sv.QCoolBTU, sv.Therms, sv.KWh, sv.Cost, res.UAReductionPct)
}
