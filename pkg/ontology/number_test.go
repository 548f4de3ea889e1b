package ontology

import (
	"encoding/json"
	"testing"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		raw       string
		allowText bool
		want      float64
		state     NumberState
	}{
		{``, true, 0, NumberAbsent},
		{`null`, true, 0, NumberAbsent},
		{`""`, true, 0, NumberAbsent},
		{`"  "`, false, 0, NumberAbsent},
		{`12.5`, false, 12.5, NumberSupplied},
		{`0`, true, 0, NumberSupplied},
		{`"12.5"`, true, 12.5, NumberSupplied},
		{`"12.5"`, false, 0, NumberInvalid},
		{`"abc"`, true, 0, NumberInvalid},
		{`"NaN"`, true, 0, NumberInvalid},
		{`true`, true, 0, NumberInvalid},
		{`{"v":1}`, true, 0, NumberInvalid},
	}
	for _, tt := range tests {
		got, state := ParseNumber(json.RawMessage(tt.raw), tt.allowText)
		if got != tt.want || state != tt.state {
			t.Errorf("ParseNumber(%s, %v) = %v, %v; want %v, %v", tt.raw, tt.allowText, got, state, tt.want, tt.state)
		}
	}
}

func TestChemicalApplicationDecodesLooseQuantities(t *testing.T) {
	tests := []struct {
		body  string
		state NumberState
	}{
		{`{"name":"A","applied_quantity":""}`, NumberAbsent},
		{`{"name":"A"}`, NumberAbsent},
		{`{"name":"A","applied_quantity":"7.5"}`, NumberSupplied},
		{`{"name":"A","applied_quantity":7.5}`, NumberSupplied},
		{`{"name":"A","applied_quantity":"lots"}`, NumberInvalid},
	}
	for _, tt := range tests {
		var c ChemicalApplication
		if err := json.Unmarshal([]byte(tt.body), &c); err != nil {
			t.Fatalf("%s: %v", tt.body, err)
		}
		if c.Name != "A" {
			t.Fatalf("%s: plain fields lost: %+v", tt.body, c)
		}
		if got := c.QuantityState(); got != tt.state {
			t.Errorf("%s: state %v, want %v", tt.body, got, tt.state)
		}
		if tt.state == NumberSupplied && *c.AppliedQuantity != 7.5 {
			t.Errorf("%s: quantity %v", tt.body, *c.AppliedQuantity)
		}
	}

	var c ChemicalApplication
	if err := json.Unmarshal([]byte(`{"area_m2":"400","tank_liters":""}`), &c); err != nil {
		t.Fatal(err)
	}
	if c.AreaM2 == nil || *c.AreaM2 != 400 || c.TankLiters != nil {
		t.Fatalf("area/tank: %v %v", c.AreaM2, c.TankLiters)
	}
}

func TestGPSRejectsNonNumbers(t *testing.T) {
	var g GPS
	if err := json.Unmarshal([]byte(`{"lat":"19.4","lng":-99.1}`), &g); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if g.Lat != nil || g.Lng == nil || *g.Lng != -99.1 {
		t.Fatalf("gps %+v", g)
	}
}

func TestChemicalApplicationRoundTrip(t *testing.T) {
	qty := 3.0
	in := ChemicalApplication{Name: "A", SanitaryRegistry: "R", AppliedQuantity: &qty, Dilution: "d", Lot: "l"}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out ChemicalApplication
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.QuantityState() != NumberSupplied || *out.AppliedQuantity != 3 || out.Lot != "l" {
		t.Fatalf("round trip %+v", out)
	}
}
