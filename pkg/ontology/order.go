package ontology

import (
	"encoding/json"
	"time"
)

type ServiceOrder struct {
	ID                 string                `json:"id"`
	ClientID           string                `json:"client_id"`
	ClientName         string                `json:"client_name"`
	Location           *Location             `json:"location,omitempty"`
	AssignedTechnician string                `json:"assigned_technician"`
	PestType           string                `json:"pest_type"`
	InfestationLevel   string                `json:"infestation_level"`
	ChemicalsUsed      []ChemicalApplication `json:"chemicals_used"`
	ApplicationDate    string                `json:"application_date"`
	NextVisitDate      string                `json:"next_visit_date"`
	Status             string                `json:"status"`
	ServiceNotes       string                `json:"service_notes"`
	Certificate        Certificate           `json:"certificate"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

type Location struct {
	Address string `json:"address"`
	GPS     *GPS   `json:"gps,omitempty"`
}

// GPS keeps both coordinates optional so a payload carrying only one of them
// can be told apart from a complete pair.
type GPS struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// UnmarshalJSON only accepts JSON numbers for coordinates. Anything else,
// numeric text included, leaves the coordinate unset so the pair fails
// validation instead of the request failing to decode.
func (g *GPS) UnmarshalJSON(data []byte) error {
	var aux struct {
		Lat json.RawMessage `json:"lat"`
		Lng json.RawMessage `json:"lng"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	g.Lat, _ = decodeNumber(aux.Lat, false)
	g.Lng, _ = decodeNumber(aux.Lng, false)
	return nil
}

type Certificate struct {
	Issued   bool       `json:"issued"`
	IssuedAt *time.Time `json:"issued_at"`
	Folio    *string    `json:"folio"`
}

// CreateOrderRequest carries the author-supplied fields of a new order.
// Identity, audit stamps and the certificate are assigned by the service.
type CreateOrderRequest struct {
	ClientID           string                `json:"client_id"`
	ClientName         string                `json:"client_name"`
	Location           *Location             `json:"location,omitempty"`
	AssignedTechnician string                `json:"assigned_technician"`
	PestType           string                `json:"pest_type"`
	InfestationLevel   string                `json:"infestation_level"`
	ChemicalsUsed      []ChemicalApplication `json:"chemicals_used"`
	ApplicationDate    string                `json:"application_date"`
	NextVisitDate      string                `json:"next_visit_date"`
	Status             string                `json:"status,omitempty"`
	ServiceNotes       string                `json:"service_notes,omitempty"`
}

// UpdateOrderRequest is a patch: nil fields keep the stored value. The
// certificate is not patchable; it only changes through issuance.
type UpdateOrderRequest struct {
	ClientID           *string                `json:"client_id,omitempty"`
	ClientName         *string                `json:"client_name,omitempty"`
	Location           *LocationPatch         `json:"location,omitempty"`
	AssignedTechnician *string                `json:"assigned_technician,omitempty"`
	PestType           *string                `json:"pest_type,omitempty"`
	InfestationLevel   *string                `json:"infestation_level,omitempty"`
	ChemicalsUsed      *[]ChemicalApplication `json:"chemicals_used,omitempty"`
	ApplicationDate    *string                `json:"application_date,omitempty"`
	NextVisitDate      *string                `json:"next_visit_date,omitempty"`
	Status             *string                `json:"status,omitempty"`
	ServiceNotes       *string                `json:"service_notes,omitempty"`
}

// LocationPatch is merged shallowly into the stored location.
type LocationPatch struct {
	Address *string `json:"address,omitempty"`
	GPS     *GPS    `json:"gps,omitempty"`
}

// CertificateView is the triple handed to the certificate document renderer.
type CertificateView struct {
	Folio    string       `json:"folio"`
	IssuedAt *time.Time   `json:"issued_at"`
	Order    ServiceOrder `json:"order"`
}

// Clone returns a deep copy so callers can mutate a candidate without
// touching the stored order.
func (o ServiceOrder) Clone() ServiceOrder {
	out := o
	if o.Location != nil {
		loc := *o.Location
		if o.Location.GPS != nil {
			gps := GPS{Lat: cloneFloat(o.Location.GPS.Lat), Lng: cloneFloat(o.Location.GPS.Lng)}
			loc.GPS = &gps
		}
		out.Location = &loc
	}
	if o.ChemicalsUsed != nil {
		out.ChemicalsUsed = make([]ChemicalApplication, len(o.ChemicalsUsed))
		for i, c := range o.ChemicalsUsed {
			out.ChemicalsUsed[i] = c.Clone()
		}
	}
	if o.Certificate.IssuedAt != nil {
		t := *o.Certificate.IssuedAt
		out.Certificate.IssuedAt = &t
	}
	if o.Certificate.Folio != nil {
		f := *o.Certificate.Folio
		out.Certificate.Folio = &f
	}
	return out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
