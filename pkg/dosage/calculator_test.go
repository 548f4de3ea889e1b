package dosage

import (
	"math"
	"testing"
	"time"

	"github.com/nicco6482/desintesa/pkg/ontology"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func floatPtr(f float64) *float64 { return &f }

func testEntry() *ontology.ChemicalCatalogEntry {
	return &ontology.ChemicalCatalogEntry{
		ID:               "deltamethrin-25",
		Name:             "Deltamethrin 2.5% EC",
		ActiveIngredient: "deltamethrin",
		SanitaryRegistry: "RSCO-URB-INAC-102-301-009-2.5",
		DosePerLiter:     2,
		DoseUnit:         "ml",
		ReentryHours:     4,
	}
}

func TestCalculateAreaBasedDose(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	cases := []struct {
		name     string
		applied  float64
		exceeds  bool
		safe     bool
		wantBand Band
	}{
		{"over limit", 60, true, false, BandExceeded},
		{"inside band", 52, false, true, BandOptimal},
		{"nothing applied", 0, false, false, BandLow},
		{"under recommendation", 20, false, true, BandLow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Calculate(Input{AreaM2: 500, AppliedQuantity: tc.applied, Entry: testEntry()}, now)
			if !approx(res.MixLiters, 25) || !approx(res.RecommendedDose, 50) || !approx(res.SafetyLimit, 55) {
				t.Fatalf("unexpected math: %+v", res)
			}
			if !res.HasRecommendation {
				t.Fatalf("expected recommendation")
			}
			if res.ExceedsLimit != tc.exceeds || res.IsWithinSafeRange != tc.safe {
				t.Fatalf("flags exceeds=%v safe=%v, want %v %v", res.ExceedsLimit, res.IsWithinSafeRange, tc.exceeds, tc.safe)
			}
			if res.Band != tc.wantBand {
				t.Fatalf("band %s, want %s", res.Band, tc.wantBand)
			}
		})
	}
}

func TestCalculateTankTakesPrecedence(t *testing.T) {
	res := Calculate(Input{AreaM2: 500, TankLiters: 10, Entry: testEntry()}, time.Now())
	if !approx(res.MixLiters, 10) || !approx(res.RecommendedDose, 20) {
		t.Fatalf("tank volume should win: %+v", res)
	}
}

func TestCalculateWithoutEntry(t *testing.T) {
	res := Calculate(Input{AreaM2: 500, AppliedQuantity: 999}, time.Now())
	if res.HasRecommendation || res.ExceedsLimit || res.IsWithinSafeRange {
		t.Fatalf("no entry must not classify: %+v", res)
	}
	if res.ReentryAt != nil {
		t.Fatalf("re-entry needs a selected entry")
	}
	if res.Band != BandNone {
		t.Fatalf("band %s", res.Band)
	}
}

func TestCalculateNoMixVolume(t *testing.T) {
	res := Calculate(Input{AppliedQuantity: 5, Entry: testEntry()}, time.Now())
	if res.MixLiters != 0 || res.RecommendedDose != 0 || res.HasRecommendation {
		t.Fatalf("expected zero recommendation: %+v", res)
	}
}

func TestCalculateIgnoresNonFinite(t *testing.T) {
	res := Calculate(Input{AreaM2: math.Inf(1), TankLiters: math.NaN(), AppliedQuantity: math.NaN(), Entry: testEntry()}, time.Now())
	if res.MixLiters != 0 || res.AppliedQuantity != 0 {
		t.Fatalf("non-finite inputs must coerce to 0: %+v", res)
	}
}

func TestReentryAt(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	res := Calculate(Input{Entry: testEntry()}, now)
	if res.ReentryAt == nil || !res.ReentryAt.Equal(now.Add(4*time.Hour)) {
		t.Fatalf("re-entry %v", res.ReentryAt)
	}
	half := ReentryAt(ontology.ChemicalCatalogEntry{ReentryHours: 1.5}, now)
	if !half.Equal(now.Add(90 * time.Minute)) {
		t.Fatalf("fractional hours: %v", half)
	}
}

func TestToNumber(t *testing.T) {
	cases := []struct {
		in   interface{}
		want float64
	}{
		{nil, 0},
		{"", 0},
		{"  ", 0},
		{"abc", 0},
		{"12.5", 12.5},
		{" 3 ", 3},
		{"Inf", 0},
		{"NaN", 0},
		{float64(7), 7},
		{42, 42},
		{true, 1},
		{floatPtr(2.5), 2.5},
		{[]string{"1"}, 0},
	}
	for _, tc := range cases {
		if got := ToNumber(tc.in); got != tc.want {
			t.Errorf("ToNumber(%#v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestSelectEntryProposesRecommendedDose(t *testing.T) {
	app := ontology.ChemicalApplication{AreaM2: floatPtr(500), AppliedQuantity: floatPtr(10), Dilution: "1 ml/L", Lot: "L-1"}
	got := SelectEntry(app, testEntry())
	if got.ProductID != "deltamethrin-25" || got.SanitaryRegistry == "" || got.DosePerLiter != 2 || got.ReentryHours != 4 {
		t.Fatalf("catalog fields not copied: %+v", got)
	}
	if got.AppliedQuantity == nil || *got.AppliedQuantity != 50 {
		t.Fatalf("expected proposed quantity 50, got %v", got.AppliedQuantity)
	}
	if *app.AppliedQuantity != 10 {
		t.Fatalf("input application must not be mutated")
	}
}

func TestSelectEntryKeepsQuantityWithoutMix(t *testing.T) {
	app := ontology.ChemicalApplication{AppliedQuantity: floatPtr(10)}
	got := SelectEntry(app, testEntry())
	if got.AppliedQuantity == nil || *got.AppliedQuantity != 10 {
		t.Fatalf("quantity should be kept: %v", got.AppliedQuantity)
	}
}

func TestSelectEntryIsSnapshot(t *testing.T) {
	entry := testEntry()
	got := SelectEntry(ontology.ChemicalApplication{TankLiters: floatPtr(5)}, entry)
	entry.DosePerLiter = 99
	entry.ReentryHours = 48
	if got.DosePerLiter != 2 || got.ReentryHours != 4 {
		t.Fatalf("catalog edits leaked into the application: %+v", got)
	}
}

func TestSelectEntryClear(t *testing.T) {
	app := SelectEntry(ontology.ChemicalApplication{TankLiters: floatPtr(5)}, testEntry())
	cleared := SelectEntry(app, nil)
	if cleared.ProductID != "" || cleared.Name != "" || cleared.DosePerLiter != 0 || cleared.DoseUnit != "ml" {
		t.Fatalf("selection not cleared: %+v", cleared)
	}
}

func TestForApplicationUsesSnapshot(t *testing.T) {
	app := SelectEntry(ontology.ChemicalApplication{AreaM2: floatPtr(500)}, testEntry())
	over := 70.0
	app.AppliedQuantity = &over
	res := ForApplication(app, time.Now())
	if !res.ExceedsLimit {
		t.Fatalf("expected exceeded: %+v", res)
	}

	free := ontology.ChemicalApplication{Name: "Boric acid", AreaM2: floatPtr(500), AppliedQuantity: &over}
	if ForApplication(free, time.Now()).HasRecommendation {
		t.Fatalf("free-text entries carry no recommendation")
	}
}
