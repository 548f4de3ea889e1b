package ontology

import "encoding/json"

// ChemicalCatalogEntry is read-only reference data describing a product.
type ChemicalCatalogEntry struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	ActiveIngredient string  `json:"active_ingredient"`
	SanitaryRegistry string  `json:"sanitary_registry"`
	DosePerLiter     float64 `json:"dose_per_liter"`
	DoseUnit         string  `json:"dose_unit"`
	ReentryHours     float64 `json:"reentry_hours"`
}

// ChemicalApplication is one line item of an order. Dose, unit and re-entry
// values are copied from the catalog when the product is selected and never
// refer back to it.
type ChemicalApplication struct {
	ProductID        string   `json:"product_id"`
	Name             string   `json:"name"`
	ActiveIngredient string   `json:"active_ingredient"`
	SanitaryRegistry string   `json:"sanitary_registry"`
	DosePerLiter     float64  `json:"dose_per_liter"`
	DoseUnit         string   `json:"dose_unit"`
	ReentryHours     float64  `json:"reentry_hours"`
	AreaM2           *float64 `json:"area_m2"`
	TankLiters       *float64 `json:"tank_liters"`
	AppliedQuantity  *float64 `json:"applied_quantity"`
	Dilution         string   `json:"dilution"`
	Lot              string   `json:"lot"`

	quantityInvalid bool
}

// UnmarshalJSON accepts numeric text for the quantity fields, the way the
// form submits them. Empty text counts as not supplied; text that is not a
// number leaves the field unset and marks the quantity invalid.
func (c *ChemicalApplication) UnmarshalJSON(data []byte) error {
	type plain ChemicalApplication
	var aux struct {
		plain
		AreaM2          json.RawMessage `json:"area_m2"`
		TankLiters      json.RawMessage `json:"tank_liters"`
		AppliedQuantity json.RawMessage `json:"applied_quantity"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*c = ChemicalApplication(aux.plain)
	c.AreaM2, _ = decodeNumber(aux.AreaM2, true)
	c.TankLiters, _ = decodeNumber(aux.TankLiters, true)
	var state NumberState
	c.AppliedQuantity, state = decodeNumber(aux.AppliedQuantity, true)
	c.quantityInvalid = state == NumberInvalid
	return nil
}

// QuantityState reports whether the applied quantity was supplied.
func (c ChemicalApplication) QuantityState() NumberState {
	switch {
	case c.AppliedQuantity != nil:
		return NumberSupplied
	case c.quantityInvalid:
		return NumberInvalid
	default:
		return NumberAbsent
	}
}

func (c ChemicalApplication) Clone() ChemicalApplication {
	out := c
	out.AreaM2 = cloneFloat(c.AreaM2)
	out.TankLiters = cloneFloat(c.TankLiters)
	out.AppliedQuantity = cloneFloat(c.AppliedQuantity)
	return out
}

// Entry reconstructs the catalog snapshot held by the application.
func (c ChemicalApplication) Entry() ChemicalCatalogEntry {
	return ChemicalCatalogEntry{
		ID:               c.ProductID,
		Name:             c.Name,
		ActiveIngredient: c.ActiveIngredient,
		SanitaryRegistry: c.SanitaryRegistry,
		DosePerLiter:     c.DosePerLiter,
		DoseUnit:         c.DoseUnit,
		ReentryHours:     c.ReentryHours,
	}
}
