package validation

import (
	"fmt"

	"github.com/nicco6482/desintesa/pkg/ontology"
)

// Intake steps of the order form. Each step also re-checks the previous ones.
const (
	StepClient    = 1
	StepTreatment = 2
	StepSchedule  = 3
)

const (
	MsgIntakeClient     = "client id and name are required."
	MsgIntakeAddress    = "address is required."
	MsgIntakeGPS        = "GPS latitude and longitude are required."
	MsgIntakePest       = "select a pest type."
	MsgIntakeChemicals  = "add at least one chemical product."
	MsgIntakeTechnician = "assign a technician."
	MsgIntakeDates      = "application and next visit dates are required."
	MsgIntakeDateOrder  = "next visit must be after the application date."
)

// ValidateIntakeStep runs the cumulative checks of the intake form up to
// step. Unlike Validate it requires every applied quantity to be > 0.
func ValidateIntakeStep(form *ontology.ServiceOrder, step int) []string {
	errs := []string{}
	if form == nil {
		form = &ontology.ServiceOrder{}
	}

	if step >= StepClient {
		if form.ClientID == "" || form.ClientName == "" {
			errs = append(errs, MsgIntakeClient)
		}
		if form.Location == nil || form.Location.Address == "" {
			errs = append(errs, MsgIntakeAddress)
		}
		if form.Location == nil || form.Location.GPS == nil || form.Location.GPS.Lat == nil || form.Location.GPS.Lng == nil {
			errs = append(errs, MsgIntakeGPS)
		}
	}

	if step >= StepTreatment {
		if form.PestType == "" {
			errs = append(errs, MsgIntakePest)
		}
		if len(form.ChemicalsUsed) == 0 {
			errs = append(errs, MsgIntakeChemicals)
		}
		for i, c := range form.ChemicalsUsed {
			n := i + 1
			if c.Name == "" || c.SanitaryRegistry == "" {
				errs = append(errs, fmt.Sprintf("product #%d: name and sanitary registry are required.", n))
			}
			if c.AppliedQuantity == nil || !(*c.AppliedQuantity > 0) {
				errs = append(errs, fmt.Sprintf("product #%d: invalid applied quantity.", n))
			}
			if c.Dilution == "" || c.Lot == "" {
				errs = append(errs, fmt.Sprintf("product #%d: dilution and lot are required.", n))
			}
		}
	}

	if step >= StepSchedule {
		if form.AssignedTechnician == "" {
			errs = append(errs, MsgIntakeTechnician)
		}
		if form.ApplicationDate == "" || form.NextVisitDate == "" {
			errs = append(errs, MsgIntakeDates)
		}
		appDate, appOK := ontology.ParseDate(form.ApplicationDate)
		nextDate, nextOK := ontology.ParseDate(form.NextVisitDate)
		if appOK && nextOK && !nextDate.After(appDate) {
			errs = append(errs, MsgIntakeDateOrder)
		}
	}

	return errs
}
