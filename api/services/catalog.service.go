package services

import (
	"context"
	"fmt"
	"time"

	"github.com/nicco6482/desintesa/db"
	"github.com/nicco6482/desintesa/pkg/dosage"
	"github.com/nicco6482/desintesa/pkg/ontology"
	"github.com/nicco6482/desintesa/pkg/shared"
)

// DosageRequest mirrors the calculator form. Numeric fields accept numbers
// or numeric strings; anything else counts as zero.
type DosageRequest struct {
	ProductID       string      `json:"product_id"`
	AreaM2          interface{} `json:"area_m2"`
	TankLiters      interface{} `json:"tank_liters"`
	AppliedQuantity interface{} `json:"applied_quantity"`
}

type DosageResponse struct {
	Result dosage.Result `json:"result"`
	// Application is the line item produced by selecting the product, with
	// the recommended dose proposed as applied quantity when it is known.
	Application *ontology.ChemicalApplication `json:"application,omitempty"`
}

type CatalogService struct {
	catalog db.CatalogProvider
	now     func() time.Time
}

func NewCatalogService(catalog db.CatalogProvider) *CatalogService {
	return &CatalogService{catalog: catalog, now: time.Now}
}

func (s *CatalogService) ListChemicals(ctx context.Context) ([]ontology.ChemicalCatalogEntry, error) {
	entries, err := s.catalog.LoadCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load chemical catalog: %w", err)
	}
	return entries, nil
}

// Calculate runs the dosage calculator. An empty product id yields a result
// without recommendation; an unknown one is a NotFoundError.
func (s *CatalogService) Calculate(ctx context.Context, req *DosageRequest) (*DosageResponse, error) {
	if req == nil {
		req = &DosageRequest{}
	}
	in := dosage.Input{
		AreaM2:          dosage.ToNumber(req.AreaM2),
		TankLiters:      dosage.ToNumber(req.TankLiters),
		AppliedQuantity: dosage.ToNumber(req.AppliedQuantity),
	}

	resp := &DosageResponse{}
	if req.ProductID != "" {
		entries, err := s.ListChemicals(ctx)
		if err != nil {
			return nil, err
		}
		entry, ok := db.LookupChemical(entries, req.ProductID)
		if !ok {
			return nil, &shared.NotFoundError{Resource: "chemical", ID: req.ProductID}
		}
		in.Entry = entry

		app := ontology.ChemicalApplication{
			AreaM2:     positive(in.AreaM2),
			TankLiters: positive(in.TankLiters),
		}
		if in.AppliedQuantity > 0 {
			app.AppliedQuantity = &in.AppliedQuantity
		}
		selected := dosage.SelectEntry(app, entry)
		resp.Application = &selected
	}

	resp.Result = dosage.Calculate(in, s.now())
	return resp, nil
}

func positive(v float64) *float64 {
	if v <= 0 {
		return nil
	}
	return &v
}
