// Package agenda derives read-only views over the order collection:
// scheduling agenda, client dashboards, fleet counts and week buckets.
// Every function leaves its input untouched and sorts stably, so ties keep
// collection order.
package agenda

import (
	"sort"
	"time"

	"github.com/nicco6482/desintesa/pkg/ontology"
	"github.com/nicco6482/desintesa/pkg/shared"
)

type Dashboard struct {
	ClientID            string                  `json:"client_id"`
	PendingCertificates []ontology.ServiceOrder `json:"pending_certificates"`
	VisitHistory        []ontology.ServiceOrder `json:"visit_history"`
}

type Stats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Scheduled int `json:"scheduled"`
	Cancelled int `json:"cancelled"`
	Certified int `json:"certified"`
}

// WeekGroups buckets active orders by next visit relative to a reference day.
type WeekGroups struct {
	ThisWeek []ontology.ServiceOrder `json:"this_week"`
	Upcoming []ontology.ServiceOrder `json:"upcoming"`
	Past     []ontology.ServiceOrder `json:"past"`
}

// MapPoint is a located order for the service heat map.
type MapPoint struct {
	OrderID          string  `json:"order_id"`
	ClientName       string  `json:"client_name"`
	Address          string  `json:"address"`
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
	InfestationLevel string  `json:"infestation_level"`
	PestType         string  `json:"pest_type"`
	Status           string  `json:"status"`
}

// Agenda returns every order that is not cancelled, earliest next visit first.
func Agenda(orders []ontology.ServiceOrder) []ontology.ServiceOrder {
	out := active(orders)
	sortByDate(out, func(o ontology.ServiceOrder) string { return o.NextVisitDate }, false)
	return out
}

func ClientDashboard(orders []ontology.ServiceOrder, clientID string) Dashboard {
	d := Dashboard{
		ClientID:            clientID,
		PendingCertificates: []ontology.ServiceOrder{},
		VisitHistory:        []ontology.ServiceOrder{},
	}
	for _, o := range orders {
		if o.ClientID != clientID || o.Status != shared.StatusCompleted {
			continue
		}
		d.VisitHistory = append(d.VisitHistory, o)
		if !o.Certificate.Issued {
			d.PendingCertificates = append(d.PendingCertificates, o)
		}
	}
	byApplication := func(o ontology.ServiceOrder) string { return o.ApplicationDate }
	sortByDate(d.PendingCertificates, byApplication, true)
	sortByDate(d.VisitHistory, byApplication, true)
	return d
}

func ComputeStats(orders []ontology.ServiceOrder) Stats {
	s := Stats{Total: len(orders)}
	for _, o := range orders {
		switch o.Status {
		case shared.StatusCompleted:
			s.Completed++
		case shared.StatusScheduled:
			s.Scheduled++
		case shared.StatusCancelled:
			s.Cancelled++
		}
		if o.Certificate.Issued {
			s.Certified++
		}
	}
	return s
}

// GroupByWeek splits the non-cancelled orders into past visits (before the
// calendar day of now), visits up to the end of the current week (the
// coming Sunday; on a Sunday, the next one) and later visits. Dates are
// read in now's location.
func GroupByWeek(orders []ontology.ServiceOrder, now time.Time) WeekGroups {
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	endOfWeek := today.AddDate(0, 0, 7-int(today.Weekday()))

	g := WeekGroups{
		ThisWeek: []ontology.ServiceOrder{},
		Upcoming: []ontology.ServiceOrder{},
		Past:     []ontology.ServiceOrder{},
	}
	for _, o := range Agenda(orders) {
		visit, ok := ontology.ParseDateIn(o.NextVisitDate, loc)
		visit = visit.In(loc)
		day := time.Date(visit.Year(), visit.Month(), visit.Day(), 0, 0, 0, 0, loc)
		switch {
		case !ok || day.Before(today):
			g.Past = append(g.Past, o)
		case !day.After(endOfWeek):
			g.ThisWeek = append(g.ThisWeek, o)
		default:
			g.Upcoming = append(g.Upcoming, o)
		}
	}
	return g
}

// Filter keeps orders matching the optional client id and status.
func Filter(orders []ontology.ServiceOrder, clientID, status string) []ontology.ServiceOrder {
	out := []ontology.ServiceOrder{}
	for _, o := range orders {
		if clientID != "" && o.ClientID != clientID {
			continue
		}
		if status != "" && o.Status != status {
			continue
		}
		out = append(out, o)
	}
	return out
}

// MapPoints passes coordinates through for every located order.
func MapPoints(orders []ontology.ServiceOrder) []MapPoint {
	points := []MapPoint{}
	for _, o := range orders {
		if o.Location == nil || o.Location.GPS == nil || o.Location.GPS.Lat == nil || o.Location.GPS.Lng == nil {
			continue
		}
		points = append(points, MapPoint{
			OrderID:          o.ID,
			ClientName:       o.ClientName,
			Address:          o.Location.Address,
			Lat:              *o.Location.GPS.Lat,
			Lng:              *o.Location.GPS.Lng,
			InfestationLevel: o.InfestationLevel,
			PestType:         o.PestType,
			Status:           o.Status,
		})
	}
	return points
}

func active(orders []ontology.ServiceOrder) []ontology.ServiceOrder {
	out := []ontology.ServiceOrder{}
	for _, o := range orders {
		if o.Status != shared.StatusCancelled {
			out = append(out, o)
		}
	}
	return out
}

// sortByDate sorts in place by the parsed date; unparseable dates sort as
// the zero time.
func sortByDate(orders []ontology.ServiceOrder, field func(ontology.ServiceOrder) string, descending bool) {
	keys := make(map[string]time.Time, len(orders))
	key := func(o ontology.ServiceOrder) time.Time {
		v := field(o)
		if t, ok := keys[v]; ok {
			return t
		}
		t, _ := ontology.ParseDate(v)
		keys[v] = t
		return t
	}
	sort.SliceStable(orders, func(i, j int) bool {
		a, b := key(orders[i]), key(orders[j])
		if descending {
			return a.After(b)
		}
		return a.Before(b)
	})
}
