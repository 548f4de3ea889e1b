package agenda

import (
	"reflect"
	"testing"
	"time"

	"github.com/nicco6482/desintesa/pkg/ontology"
	"github.com/nicco6482/desintesa/pkg/shared"
)

func order(id, client, status, application, next string) ontology.ServiceOrder {
	return ontology.ServiceOrder{
		ID:              id,
		ClientID:        client,
		Status:          status,
		ApplicationDate: application,
		NextVisitDate:   next,
	}
}

func ids(orders []ontology.ServiceOrder) []string {
	out := []string{}
	for _, o := range orders {
		out = append(out, o.ID)
	}
	return out
}

func TestAgendaExcludesCancelled(t *testing.T) {
	orders := []ontology.ServiceOrder{
		order("a", "c1", shared.StatusCancelled, "2026-03-01", "2026-05-01"),
		order("b", "c1", shared.StatusScheduled, "2026-03-01", "2026-04-01"),
	}
	if got := ids(Agenda(orders)); !reflect.DeepEqual(got, []string{"b"}) {
		t.Fatalf("agenda %v", got)
	}
}

func TestAgendaSortsAscendingAndStable(t *testing.T) {
	orders := []ontology.ServiceOrder{
		order("late", "c1", shared.StatusScheduled, "2026-03-01", "2026-06-01"),
		order("tie-1", "c2", shared.StatusCompleted, "2026-03-01", "2026-04-01"),
		order("early", "c1", shared.StatusScheduled, "2026-03-01", "2026-03-15"),
		order("tie-2", "c3", shared.StatusScheduled, "2026-03-01", "2026-04-01"),
	}
	want := []string{"early", "tie-1", "tie-2", "late"}
	if got := ids(Agenda(orders)); !reflect.DeepEqual(got, want) {
		t.Fatalf("agenda %v, want %v", got, want)
	}
	if orders[0].ID != "late" {
		t.Fatalf("input must not be reordered")
	}
}

func TestClientDashboard(t *testing.T) {
	issued := order("issued", "c1", shared.StatusCompleted, "2026-02-01", "2026-03-01")
	issued.Certificate.Issued = true
	orders := []ontology.ServiceOrder{
		order("old", "c1", shared.StatusCompleted, "2026-01-01", "2026-02-01"),
		issued,
		order("other-client", "c2", shared.StatusCompleted, "2026-03-01", "2026-04-01"),
		order("scheduled", "c1", shared.StatusScheduled, "2026-03-05", "2026-04-05"),
		order("new", "c1", shared.StatusCompleted, "2026-03-01", "2026-04-01"),
	}
	d := ClientDashboard(orders, "c1")
	if d.ClientID != "c1" {
		t.Fatalf("client id %q", d.ClientID)
	}
	if got := ids(d.PendingCertificates); !reflect.DeepEqual(got, []string{"new", "old"}) {
		t.Fatalf("pending %v", got)
	}
	if got := ids(d.VisitHistory); !reflect.DeepEqual(got, []string{"new", "issued", "old"}) {
		t.Fatalf("history %v", got)
	}
}

func TestClientDashboardUnknownClient(t *testing.T) {
	d := ClientDashboard(nil, "nobody")
	if d.PendingCertificates == nil || d.VisitHistory == nil || len(d.VisitHistory) != 0 {
		t.Fatalf("expected empty, non-nil lists: %+v", d)
	}
}

func TestComputeStats(t *testing.T) {
	certified := order("d", "c1", shared.StatusCompleted, "", "")
	certified.Certificate.Issued = true
	orders := []ontology.ServiceOrder{
		order("a", "c1", shared.StatusScheduled, "", ""),
		order("b", "c1", shared.StatusCancelled, "", ""),
		order("c", "c1", shared.StatusCompleted, "", ""),
		certified,
	}
	want := Stats{Total: 4, Completed: 2, Scheduled: 1, Cancelled: 1, Certified: 1}
	if got := ComputeStats(orders); got != want {
		t.Fatalf("stats %+v, want %+v", got, want)
	}
}

func TestGroupByWeek(t *testing.T) {
	// Wednesday; the week closes on Sunday 2026-03-15.
	now := time.Date(2026, 3, 11, 15, 0, 0, 0, time.UTC)
	orders := []ontology.ServiceOrder{
		order("yesterday", "c1", shared.StatusScheduled, "2026-03-01", "2026-03-10"),
		order("today", "c1", shared.StatusScheduled, "2026-03-01", "2026-03-11"),
		order("sunday", "c1", shared.StatusScheduled, "2026-03-01", "2026-03-15"),
		order("monday", "c1", shared.StatusScheduled, "2026-03-01", "2026-03-16"),
		order("cancelled", "c1", shared.StatusCancelled, "2026-03-01", "2026-03-12"),
	}
	g := GroupByWeek(orders, now)
	if got := ids(g.Past); !reflect.DeepEqual(got, []string{"yesterday"}) {
		t.Fatalf("past %v", got)
	}
	if got := ids(g.ThisWeek); !reflect.DeepEqual(got, []string{"today", "sunday"}) {
		t.Fatalf("this week %v", got)
	}
	if got := ids(g.Upcoming); !reflect.DeepEqual(got, []string{"monday"}) {
		t.Fatalf("upcoming %v", got)
	}
}

func TestGroupByWeekOnSunday(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	orders := []ontology.ServiceOrder{
		order("next-sunday", "c1", shared.StatusScheduled, "2026-03-01", "2026-03-22"),
		order("after", "c1", shared.StatusScheduled, "2026-03-01", "2026-03-23"),
	}
	g := GroupByWeek(orders, now)
	if got := ids(g.ThisWeek); !reflect.DeepEqual(got, []string{"next-sunday"}) {
		t.Fatalf("this week %v", got)
	}
	if got := ids(g.Upcoming); !reflect.DeepEqual(got, []string{"after"}) {
		t.Fatalf("upcoming %v", got)
	}
}

func TestGroupByWeekReadsTimestampsInReferenceZone(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	orders := []ontology.ServiceOrder{
		// 2026-10-17T22:00Z, the day before now.
		order("offset", "c1", shared.StatusScheduled, "2026-10-01", "2026-10-18T03:00:00+05:00"),
		order("utc", "c1", shared.StatusScheduled, "2026-10-01", "2026-10-18T03:00:00Z"),
	}
	g := GroupByWeek(orders, now)
	if got := ids(g.Past); !reflect.DeepEqual(got, []string{"offset"}) {
		t.Fatalf("past %v", got)
	}
	if got := ids(g.ThisWeek); !reflect.DeepEqual(got, []string{"utc"}) {
		t.Fatalf("this week %v", got)
	}
}

func TestQueriesAreIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 11, 15, 0, 0, 0, time.UTC)
	orders := []ontology.ServiceOrder{
		order("a", "c1", shared.StatusCompleted, "2026-03-01", "2026-03-20"),
		order("b", "c1", shared.StatusScheduled, "2026-03-02", "2026-03-12"),
		order("c", "c2", shared.StatusCancelled, "2026-03-03", "2026-03-13"),
	}
	if !reflect.DeepEqual(Agenda(orders), Agenda(orders)) {
		t.Fatalf("agenda not idempotent")
	}
	if !reflect.DeepEqual(GroupByWeek(orders, now), GroupByWeek(orders, now)) {
		t.Fatalf("grouping not idempotent")
	}
	if !reflect.DeepEqual(ClientDashboard(orders, "c1"), ClientDashboard(orders, "c1")) {
		t.Fatalf("dashboard not idempotent")
	}
	if ComputeStats(orders) != ComputeStats(orders) {
		t.Fatalf("stats not idempotent")
	}
}

func TestFilter(t *testing.T) {
	orders := []ontology.ServiceOrder{
		order("a", "c1", shared.StatusCompleted, "", ""),
		order("b", "c2", shared.StatusCompleted, "", ""),
		order("c", "c1", shared.StatusScheduled, "", ""),
	}
	if got := ids(Filter(orders, "c1", "")); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Fatalf("by client %v", got)
	}
	if got := ids(Filter(orders, "", shared.StatusCompleted)); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("by status %v", got)
	}
	if got := ids(Filter(orders, "c1", shared.StatusCompleted)); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("both %v", got)
	}
}

func TestMapPoints(t *testing.T) {
	lat, lng := 19.43, -99.13
	located := order("located", "c1", shared.StatusScheduled, "", "")
	located.InfestationLevel = shared.InfestationHigh
	located.Location = &ontology.Location{Address: "Centro", GPS: &ontology.GPS{Lat: &lat, Lng: &lng}}
	orders := []ontology.ServiceOrder{located, order("nowhere", "c1", shared.StatusScheduled, "", "")}
	points := MapPoints(orders)
	if len(points) != 1 || points[0].OrderID != "located" || points[0].Lat != lat || points[0].InfestationLevel != shared.InfestationHigh {
		t.Fatalf("points %+v", points)
	}
}
