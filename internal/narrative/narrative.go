package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lox/miniquoter/internal/metrics"
	"github.com/lox/miniquoter/internal/models"
	"github.com/lox/miniquoter/internal/sim"
)

var (
	ErrMissingCredential = errors.New("narrative service credential not configured")
	ErrNarrativeService  = errors.New("narrative service failed")
)

// SystemPrompt pins the tone of the generated summary.
const SystemPrompt = "You are an energy analyst. Write a concise, neutral summary for a proposal. " +
	"Do not use 'we', 'our', or 'your'. Plain language. 3 or 4 sentences. " +
	"Use only the provided data; do not invent or project values."

// Input is everything the summary is allowed to mention.
type Input struct {
	Location       models.LocationResult
	Baseline       sim.Result
	Proposed       sim.Result
	BaselineInputs sim.Inputs
	ProposedInputs sim.Inputs
}

type Prompt struct {
	System string
	User   string
}

// Generator turns a prompt into text. The OpenAI client is the production
// implementation.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// BuildPrompt renders the single data-summary message sent with SystemPrompt.
// Efficiency and R-values are printed to six significant digits.
func BuildPrompt(in Input) Prompt {
	savings := sim.Compare(in.Baseline, in.Proposed)
	reduction := sim.UAReductionPercent(in.Baseline.UA, in.Proposed.UA)

	var b strings.Builder
	b.WriteString("Write the 'Narrative' as one paragraph:\n")
	fmt.Fprintf(&b, "- Location and climate: %s (HDD65=%.0f, CDD65=%.0f).\n",
		in.Location.Name, in.Location.HDD65, in.Location.CDD65)
	fmt.Fprintf(&b, "- Insulation: R-value improved from R-%.6g to R-%.6g.\n",
		in.BaselineInputs.RValue, in.ProposedInputs.RValue)
	fmt.Fprintf(&b, "- UA change: %.0f → %.0f; heating demand reduction %.0f%%.\n",
		in.Baseline.UA, in.Proposed.UA, reduction)
	fmt.Fprintf(&b, "- Annual savings: ~%.0f therms, ~%.0f kWh, ~$%.0f.\n",
		savings.Therms, savings.KWh, savings.Cost)
	fmt.Fprintf(&b, "- Efficiency references: AFUE %.6g → %.6g, SEER %.6g → %.6g.",
		in.BaselineInputs.AFUE, in.ProposedInputs.AFUE, in.BaselineInputs.SEER, in.ProposedInputs.SEER)

	return Prompt{System: SystemPrompt, User: b.String()}
}

// Formatter builds prompts and delegates generation.
type Formatter struct {
	gen Generator
}

// NewFormatter returns a formatter. A nil generator means no credential was
// configured; Format then fails with ErrMissingCredential.
func NewFormatter(gen Generator) *Formatter {
	return &Formatter{gen: gen}
}

func (f *Formatter) Enabled() bool {
	return f != nil && f.gen != nil
}

// Format returns the generated narrative with surrounding whitespace trimmed.
func (f *Formatter) Format(ctx context.Context, in Input) (string, error) {
	if !f.Enabled() {
		metrics.NarrativeCallsTotal.WithLabelValues("no_credential").Inc()
		return "", ErrMissingCredential
	}

	start := time.Now()
	text, err := f.gen.Generate(ctx, BuildPrompt(in))
	metrics.NarrativeLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, ErrMissingCredential) {
			metrics.NarrativeCallsTotal.WithLabelValues("no_credential").Inc()
			return "", err
		}
		metrics.NarrativeCallsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: %v", ErrNarrativeService, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		metrics.NarrativeCallsTotal.WithLabelValues("empty").Inc()
		return "", fmt.Errorf("%w: empty response", ErrNarrativeService)
	}

	metrics.NarrativeCallsTotal.WithLabelValues("ok").Inc()
	return text, nil
}
