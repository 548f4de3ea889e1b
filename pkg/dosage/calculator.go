// Package dosage derives mix volume, recommended dose and safety thresholds
// for a chemical application. All results are advisory.
package dosage

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/nicco6482/desintesa/pkg/ontology"
)

const (
	// AreaToLitersFactor converts treated square meters into liters of mix.
	AreaToLitersFactor = 20.0
	// SafetyTolerance is the band above the recommended dose still accepted.
	SafetyTolerance = 1.10
	// lowBandRatio marks doses well under the recommendation.
	lowBandRatio = 0.8
)

// Band classifies an applied quantity against the recommendation.
type Band string

const (
	BandNone     Band = "none"
	BandLow      Band = "low"
	BandOptimal  Band = "optimal"
	BandExceeded Band = "exceeded"
)

type Input struct {
	AreaM2          float64
	TankLiters      float64
	AppliedQuantity float64
	Entry           *ontology.ChemicalCatalogEntry
}

type Result struct {
	MixLiters         float64    `json:"mix_liters"`
	RecommendedDose   float64    `json:"recommended_dose"`
	SafetyLimit       float64    `json:"safety_limit"`
	AppliedQuantity   float64    `json:"applied_quantity"`
	HasRecommendation bool       `json:"has_recommendation"`
	ExceedsLimit      bool       `json:"exceeds_limit"`
	IsWithinSafeRange bool       `json:"is_within_safe_range"`
	Band              Band       `json:"band"`
	DoseUnit          string     `json:"dose_unit,omitempty"`
	ReentryAt         *time.Time `json:"reentry_at,omitempty"`
}

// MixLiters returns the tank volume when set, otherwise the volume derived
// from the treated area.
func MixLiters(areaM2, tankLiters float64) float64 {
	tank := finite(tankLiters)
	area := finite(areaM2)
	switch {
	case tank > 0:
		return tank
	case area > 0:
		return area / AreaToLitersFactor
	default:
		return 0
	}
}

func Calculate(in Input, now time.Time) Result {
	mix := MixLiters(in.AreaM2, in.TankLiters)
	applied := finite(in.AppliedQuantity)

	var recommended float64
	if in.Entry != nil && mix > 0 {
		recommended = mix * finite(in.Entry.DosePerLiter)
	}
	limit := recommended * SafetyTolerance

	res := Result{
		MixLiters:         mix,
		RecommendedDose:   recommended,
		SafetyLimit:       limit,
		AppliedQuantity:   applied,
		HasRecommendation: recommended > 0,
	}
	res.ExceedsLimit = res.HasRecommendation && applied > limit
	res.IsWithinSafeRange = res.HasRecommendation && applied > 0 && !res.ExceedsLimit
	res.Band = classify(res)

	if in.Entry != nil {
		res.DoseUnit = in.Entry.DoseUnit
		at := ReentryAt(*in.Entry, now)
		res.ReentryAt = &at
	}
	return res
}

// ReentryAt is the earliest time the treated area may be occupied again.
func ReentryAt(entry ontology.ChemicalCatalogEntry, now time.Time) time.Time {
	hours := finite(entry.ReentryHours)
	return now.Add(time.Duration(hours * float64(time.Hour)))
}

func classify(r Result) Band {
	switch {
	case !r.HasRecommendation:
		return BandNone
	case r.ExceedsLimit:
		return BandExceeded
	case r.AppliedQuantity >= r.RecommendedDose*lowBandRatio:
		return BandOptimal
	default:
		return BandLow
	}
}

// ForApplication runs the calculator over a stored line item using its own
// catalog snapshot. Applications without a product id carry no
// recommendation.
func ForApplication(app ontology.ChemicalApplication, now time.Time) Result {
	in := Input{
		AreaM2:          deref(app.AreaM2),
		TankLiters:      deref(app.TankLiters),
		AppliedQuantity: deref(app.AppliedQuantity),
	}
	if app.ProductID != "" {
		entry := app.Entry()
		in.Entry = &entry
	}
	return Calculate(in, now)
}

// SelectEntry snapshots a catalog entry into the application. When a mix
// volume is known the recommended dose is proposed as applied quantity;
// otherwise the previous quantity is kept. A nil entry clears the product.
func SelectEntry(app ontology.ChemicalApplication, entry *ontology.ChemicalCatalogEntry) ontology.ChemicalApplication {
	out := app.Clone()
	if entry == nil {
		out.ProductID = ""
		out.Name = ""
		out.ActiveIngredient = ""
		out.SanitaryRegistry = ""
		out.DosePerLiter = 0
		out.DoseUnit = "ml"
		out.ReentryHours = 0
		return out
	}
	out.ProductID = entry.ID
	out.Name = entry.Name
	out.ActiveIngredient = entry.ActiveIngredient
	out.SanitaryRegistry = entry.SanitaryRegistry
	out.DosePerLiter = finite(entry.DosePerLiter)
	out.DoseUnit = entry.DoseUnit
	out.ReentryHours = finite(entry.ReentryHours)

	mix := MixLiters(deref(app.AreaM2), deref(app.TankLiters))
	if proposed := round2(mix * out.DosePerLiter); proposed > 0 {
		out.AppliedQuantity = &proposed
	}
	return out
}

// ToNumber coerces user input to a finite number. Empty, non-numeric and
// non-finite values become 0.
func ToNumber(v interface{}) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		return finite(n)
	case float32:
		return finite(float64(n))
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case *float64:
		return deref(n)
	case bool:
		if n {
			return 1
		}
		return 0
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return finite(f)
	default:
		return 0
	}
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return finite(*f)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
