// Package sim is a static annual conduction model: the envelope is a single
// lumped resistance (UA = area / R) driven by base-65°F degree days.
package sim

const (
	ThermBTU    = 100_000.0
	WhPerKWh    = 1_000.0
	HoursPerDay = 24.0
)

// Inputs describes one scenario. Ranges are the caller's responsibility:
// R, AFUE and SEER of zero produce Inf/NaN rather than an error.
type Inputs struct {
	SqFt          float64 `json:"sqft"`
	RValue        float64 `json:"r_value"`
	AFUE          float64 `json:"afue"`
	SEER          float64 `json:"seer"`
	HDD65         float64 `json:"hdd65"`
	CDD65         float64 `json:"cdd65"`
	PricePerTherm float64 `json:"price_per_therm"`
	PricePerKWh   float64 `json:"price_per_kwh"`
}

type Result struct {
	UA       float64 `json:"ua"`        // BTU/°F·hr
	HDDHours float64 `json:"hdd_hours"` // °F·hr
	CDDHours float64 `json:"cdd_hours"`
	QHeatBTU float64 `json:"q_heat_btu"`
	QCoolBTU float64 `json:"q_cool_btu"`
	Therms   float64 `json:"therms"`
	KWh      float64 `json:"kwh"`
	Cost     float64 `json:"cost"`
}

// Calc runs the model for one scenario.
func Calc(in Inputs) Result {
	hddHours := in.HDD65 * HoursPerDay
	cddHours := in.CDD65 * HoursPerDay

	ua := in.SqFt / in.RValue

	qHeat := ua * hddHours
	qCool := ua * cddHours

	therms := (qHeat / in.AFUE) / ThermBTU
	kwh := (qCool / in.SEER) / WhPerKWh

	return Result{
		UA:       ua,
		HDDHours: hddHours,
		CDDHours: cddHours,
		QHeatBTU: qHeat,
		QCoolBTU: qCool,
		Therms:   therms,
		KWh:      kwh,
		Cost:     therms*in.PricePerTherm + kwh*in.PricePerKWh,
	}
}

// Savings is baseline minus proposed for each consumption field.
type Savings struct {
	UA       float64 `json:"ua"`
	QHeatBTU float64 `json:"q_heat_btu"`
	QCoolBTU float64 `json:"q_cool_btu"`
	Therms   float64 `json:"therms"`
	KWh      float64 `json:"kwh"`
	Cost     float64 `json:"cost"`
}

func Compare(baseline, proposed Result) Savings {
	return Savings{
		UA:       baseline.UA - proposed.UA,
		QHeatBTU: baseline.QHeatBTU - proposed.QHeatBTU,
		QCoolBTU: baseline.QCoolBTU - proposed.QCoolBTU,
		Therms:   baseline.Therms - proposed.Therms,
		KWh:      baseline.KWh - proposed.KWh,
		Cost:     baseline.Cost - proposed.Cost,
	}
}

// UAReductionPercent is the relative drop in envelope conductance. It is 0
// when the baseline conductance is not positive.
func UAReductionPercent(baselineUA, proposedUA float64) float64 {
	if baselineUA > 0 {
		return 100 * (baselineUA - proposedUA) / baselineUA
	}
	return 0
}
