// Package validation checks service orders against field-level and
// cross-field rules. Validators never stop at the first failure: every
// violated rule contributes one message, in evaluation order.
package validation

import (
	"fmt"
	"math"

	"github.com/nicco6482/desintesa/pkg/ontology"
	"github.com/nicco6482/desintesa/pkg/shared"
)

// Mode selects which rules apply.
type Mode int

const (
	// ModeStrict enforces every required field. Used on create and on the
	// merged candidate of a full update.
	ModeStrict Mode = iota
	// ModePartial only checks the fields that are present.
	ModePartial
)

func (m Mode) String() string {
	if m == ModePartial {
		return "partial"
	}
	return "strict"
}

// ParseMode maps "strict" / "partial"; anything else is strict.
func ParseMode(s string) Mode {
	if s == "partial" {
		return ModePartial
	}
	return ModeStrict
}

const (
	MsgInvalidInfestation = "infestation level must be low, medium or high."
	MsgInvalidStatus      = "status must be scheduled, completed or cancelled."
	MsgAddressRequired    = "service address is required."
	MsgInvalidGPS         = "GPS location must include numeric lat and lng."
	MsgChemicalsEmpty     = "at least one chemical product is required."
	MsgChemicalIdentity   = "each chemical product requires a name and a sanitary registry."
	MsgChemicalQuantity   = "each chemical product requires an applied quantity."
	MsgChemicalTraceable  = "each chemical product requires a dilution and a lot."
	MsgInvalidAppDate     = "application date is invalid."
	MsgInvalidNextDate    = "next visit date is invalid."
	MsgDateOrder          = "next visit date must be after the application date."
	MsgCertificateState   = "a certificate can only be held by a completed service."
)

// RequiredFields lists the fields enforced in strict mode, by wire name.
var RequiredFields = []string{
	"client_id",
	"client_name",
	"location",
	"assigned_technician",
	"pest_type",
	"infestation_level",
	"chemicals_used",
	"application_date",
	"next_visit_date",
}

// RequiredMessage is the violation reported for a missing required field.
func RequiredMessage(field string) string {
	return fmt.Sprintf("field '%s' is required.", field)
}

func Validate(o *ontology.ServiceOrder, mode Mode) []string {
	errs := []string{}
	if o == nil {
		for _, f := range RequiredFields {
			errs = append(errs, RequiredMessage(f))
		}
		return errs
	}

	if mode == ModeStrict {
		present := map[string]bool{
			"client_id":           o.ClientID != "",
			"client_name":         o.ClientName != "",
			"location":            o.Location != nil,
			"assigned_technician": o.AssignedTechnician != "",
			"pest_type":           o.PestType != "",
			"infestation_level":   o.InfestationLevel != "",
			"chemicals_used":      o.ChemicalsUsed != nil,
			"application_date":    o.ApplicationDate != "",
			"next_visit_date":     o.NextVisitDate != "",
		}
		for _, f := range RequiredFields {
			if !present[f] {
				errs = append(errs, RequiredMessage(f))
			}
		}
	}

	if o.InfestationLevel != "" && !contains(shared.InfestationLevels, o.InfestationLevel) {
		errs = append(errs, MsgInvalidInfestation)
	}

	if o.Status != "" && !contains(shared.OrderStatuses, o.Status) {
		errs = append(errs, MsgInvalidStatus)
	}

	if o.Location != nil {
		if o.Location.Address == "" {
			errs = append(errs, MsgAddressRequired)
		}
		if !validGPS(o.Location.GPS) {
			errs = append(errs, MsgInvalidGPS)
		}
	}

	if o.ChemicalsUsed != nil {
		if msg := validateChemicals(o.ChemicalsUsed); msg != "" {
			errs = append(errs, msg)
		}
	}

	errs = append(errs, validateDates(o.ApplicationDate, o.NextVisitDate)...)

	if o.Certificate.Issued && o.Status != shared.StatusCompleted {
		errs = append(errs, MsgCertificateState)
	}

	return errs
}

// validateChemicals reports the first failing rule across the list.
func validateChemicals(chemicals []ontology.ChemicalApplication) string {
	if len(chemicals) == 0 {
		return MsgChemicalsEmpty
	}
	for _, c := range chemicals {
		if c.Name == "" || c.SanitaryRegistry == "" {
			return MsgChemicalIdentity
		}
		// Supplied is enough here; the intake step check requires > 0.
		if c.QuantityState() != ontology.NumberSupplied {
			return MsgChemicalQuantity
		}
		if c.Dilution == "" || c.Lot == "" {
			return MsgChemicalTraceable
		}
	}
	return ""
}

func validateDates(application, nextVisit string) []string {
	if application == "" && nextVisit == "" {
		return nil
	}
	var errs []string
	appDate, appOK := ontology.ParseDate(application)
	nextDate, nextOK := ontology.ParseDate(nextVisit)
	if !appOK {
		errs = append(errs, MsgInvalidAppDate)
	}
	if !nextOK {
		errs = append(errs, MsgInvalidNextDate)
	}
	if appOK && nextOK && !nextDate.After(appDate) {
		errs = append(errs, MsgDateOrder)
	}
	return errs
}

func validGPS(gps *ontology.GPS) bool {
	if gps == nil || gps.Lat == nil || gps.Lng == nil {
		return false
	}
	return isFinite(*gps.Lat) && isFinite(*gps.Lng)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
