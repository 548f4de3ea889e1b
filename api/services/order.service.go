package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nicco6482/desintesa/db"
	"github.com/nicco6482/desintesa/pkg/agenda"
	"github.com/nicco6482/desintesa/pkg/dosage"
	"github.com/nicco6482/desintesa/pkg/lifecycle"
	"github.com/nicco6482/desintesa/pkg/metrics"
	"github.com/nicco6482/desintesa/pkg/ontology"
	"github.com/nicco6482/desintesa/pkg/shared"
	"github.com/nicco6482/desintesa/pkg/validation"
)

// EventPublisher is satisfied by the embedded NATS server.
type EventPublisher interface {
	PublishWithDedup(subject string, data []byte, msgID string) error
}

// OrderService owns the order collection. Every operation runs inside one
// critical section: load the whole collection, index it by id, mutate,
// save the whole collection. A failed save leaves the stored collection as
// it was.
type OrderService struct {
	mu        sync.Mutex
	store     db.OrderStore
	folios    *lifecycle.FolioGenerator
	publisher EventPublisher
	metrics   *metrics.Metrics
	log       zerolog.Logger

	now   func() time.Time
	newID func() string

	inflight sync.WaitGroup
}

func NewOrderService(store db.OrderStore, folios *lifecycle.FolioGenerator, publisher EventPublisher, m *metrics.Metrics, log zerolog.Logger) *OrderService {
	if folios == nil {
		folios = lifecycle.NewFolioGenerator("")
	}
	return &OrderService{
		store:     store,
		folios:    folios,
		publisher: publisher,
		metrics:   m,
		log:       log.With().Str("component", "order-service").Logger(),
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// collection is the loaded order list plus its id index.
type collection struct {
	orders []ontology.ServiceOrder
	index  map[string]int
}

func (c *collection) find(id string) (int, bool) {
	i, ok := c.index[id]
	return i, ok
}

func (s *OrderService) load(ctx context.Context) (*collection, error) {
	started := time.Now()
	orders, err := s.store.LoadAll(ctx)
	s.metrics.ObserveStore(string(s.store.Driver()), "load", started)
	if err != nil {
		return nil, &shared.StorageError{Op: "load", Err: err}
	}
	c := &collection{orders: orders, index: make(map[string]int, len(orders))}
	for i, o := range orders {
		c.index[o.ID] = i
	}
	return c, nil
}

func (s *OrderService) save(ctx context.Context, c *collection) error {
	started := time.Now()
	err := s.store.SaveAll(ctx, c.orders)
	s.metrics.ObserveStore(string(s.store.Driver()), "save", started)
	if err != nil {
		return &shared.StorageError{Op: "save", Err: err}
	}
	return nil
}

func (s *OrderService) CreateOrder(ctx context.Context, req *ontology.CreateOrderRequest) (*ontology.ServiceOrder, error) {
	order, err := s.createOrder(ctx, req)
	s.metrics.ObserveOperation("create", err)
	return order, err
}

func (s *OrderService) createOrder(ctx context.Context, req *ontology.CreateOrderRequest) (*ontology.ServiceOrder, error) {
	if req == nil {
		req = &ontology.CreateOrderRequest{}
	}

	now := s.now().UTC()
	status := req.Status
	if status == "" {
		status = shared.StatusScheduled
	}

	candidate := ontology.ServiceOrder{
		ID:                 s.newID(),
		ClientID:           req.ClientID,
		ClientName:         req.ClientName,
		Location:           req.Location,
		AssignedTechnician: req.AssignedTechnician,
		PestType:           req.PestType,
		InfestationLevel:   req.InfestationLevel,
		ChemicalsUsed:      req.ChemicalsUsed,
		ApplicationDate:    req.ApplicationDate,
		NextVisitDate:      req.NextVisitDate,
		Status:             status,
		ServiceNotes:       req.ServiceNotes,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	candidate = candidate.Clone()

	if errs := validation.Validate(&candidate, validation.ModeStrict); len(errs) > 0 {
		s.metrics.ObserveValidationFailure(validation.ModeStrict.String())
		return nil, &shared.ValidationError{Messages: errs}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	c.orders = append(c.orders, candidate)
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}

	s.log.Info().Str("order_id", candidate.ID).Str("client_id", candidate.ClientID).Msg("Order created")
	created := candidate.Clone()
	s.afterSave(created, shared.EventTypeCreated)
	return &created, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (*ontology.ServiceOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	i, ok := c.find(id)
	if !ok {
		return nil, &shared.NotFoundError{Resource: "order", ID: id}
	}
	order := c.orders[i]
	return &order, nil
}

// ListOrders returns the collection in stored order, optionally filtered.
func (s *OrderService) ListOrders(ctx context.Context, clientID, status string) ([]ontology.ServiceOrder, error) {
	orders, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return agenda.Filter(orders, clientID, status), nil
}

// UpdateOrder merges the patch into the stored order and validates the
// merged result strictly. The certificate and audit stamps are not
// patchable.
func (s *OrderService) UpdateOrder(ctx context.Context, id string, req *ontology.UpdateOrderRequest) (*ontology.ServiceOrder, error) {
	order, err := s.updateOrder(ctx, id, req)
	s.metrics.ObserveOperation("update", err)
	return order, err
}

func (s *OrderService) updateOrder(ctx context.Context, id string, req *ontology.UpdateOrderRequest) (*ontology.ServiceOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	i, ok := c.find(id)
	if !ok {
		return nil, &shared.NotFoundError{Resource: "order", ID: id}
	}

	candidate := applyPatch(c.orders[i], req)
	if errs := validation.Validate(&candidate, validation.ModeStrict); len(errs) > 0 {
		s.metrics.ObserveValidationFailure(validation.ModeStrict.String())
		return nil, &shared.ValidationError{Messages: errs}
	}
	lifecycle.Touch(&candidate, s.now().UTC())

	c.orders[i] = candidate
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}

	s.log.Info().Str("order_id", id).Str("status", candidate.Status).Msg("Order updated")
	updated := candidate.Clone()
	s.afterSave(updated, shared.EventTypeUpdated)
	return &updated, nil
}

func (s *OrderService) DeleteOrder(ctx context.Context, id string) error {
	err := s.deleteOrder(ctx, id)
	s.metrics.ObserveOperation("delete", err)
	return err
}

func (s *OrderService) deleteOrder(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.load(ctx)
	if err != nil {
		return err
	}
	i, ok := c.find(id)
	if !ok {
		return &shared.NotFoundError{Resource: "order", ID: id}
	}

	deleted := c.orders[i]
	c.orders = append(c.orders[:i:i], c.orders[i+1:]...)
	if err := s.save(ctx, c); err != nil {
		return err
	}

	s.log.Info().Str("order_id", id).Msg("Order deleted")
	s.publishOrderEvent(deleted, shared.EventTypeDeleted)
	return nil
}

// IssueCertificate certifies a completed order. Repeated calls reissue with
// a fresh folio.
func (s *OrderService) IssueCertificate(ctx context.Context, id string) (*ontology.ServiceOrder, error) {
	order, err := s.issueCertificate(ctx, id)
	s.metrics.ObserveOperation("issue_certificate", err)
	return order, err
}

func (s *OrderService) issueCertificate(ctx context.Context, id string) (*ontology.ServiceOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	i, ok := c.find(id)
	if !ok {
		return nil, &shared.NotFoundError{Resource: "order", ID: id}
	}

	candidate := c.orders[i].Clone()
	if err := lifecycle.Issue(&candidate, s.folios); err != nil {
		return nil, err
	}

	c.orders[i] = candidate
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}

	s.metrics.ObserveCertificate()
	s.log.Info().Str("order_id", id).Str("folio", *candidate.Certificate.Folio).Msg("Certificate issued")

	issued := candidate.Clone()
	if view, err := lifecycle.Retrieve(issued); err == nil {
		s.publishCertificate(issued.ClientID, view)
	}
	return &issued, nil
}

// GetCertificate returns the renderer data for a completed order.
func (s *OrderService) GetCertificate(ctx context.Context, id string) (ontology.CertificateView, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return ontology.CertificateView{}, err
	}
	return lifecycle.Retrieve(*order)
}

// ValidateDraft runs the validator without touching the collection.
func (s *OrderService) ValidateDraft(draft *ontology.ServiceOrder, mode validation.Mode) []string {
	errs := validation.Validate(draft, mode)
	if len(errs) > 0 {
		s.metrics.ObserveValidationFailure(mode.String())
	}
	return errs
}

func (s *OrderService) Agenda(ctx context.Context) ([]ontology.ServiceOrder, error) {
	orders, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return agenda.Agenda(orders), nil
}

func (s *OrderService) ClientDashboard(ctx context.Context, clientID string) (agenda.Dashboard, error) {
	orders, err := s.snapshot(ctx)
	if err != nil {
		return agenda.Dashboard{}, err
	}
	return agenda.ClientDashboard(orders, clientID), nil
}

func (s *OrderService) Stats(ctx context.Context) (agenda.Stats, error) {
	orders, err := s.snapshot(ctx)
	if err != nil {
		return agenda.Stats{}, err
	}
	return agenda.ComputeStats(orders), nil
}

// WeekGroups buckets the agenda around now; a zero now means the current
// time.
func (s *OrderService) WeekGroups(ctx context.Context, now time.Time) (agenda.WeekGroups, error) {
	orders, err := s.snapshot(ctx)
	if err != nil {
		return agenda.WeekGroups{}, err
	}
	if now.IsZero() {
		now = s.now()
	}
	return agenda.GroupByWeek(orders, now), nil
}

func (s *OrderService) MapPoints(ctx context.Context) ([]agenda.MapPoint, error) {
	orders, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return agenda.MapPoints(orders), nil
}

// Wait blocks until in-flight event publishes finish.
func (s *OrderService) Wait() {
	s.inflight.Wait()
}

func (s *OrderService) snapshot(ctx context.Context) ([]ontology.ServiceOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return c.orders, nil
}

// applyPatch overlays the supplied fields on a copy of the stored order.
// Location merges one level deep.
func applyPatch(existing ontology.ServiceOrder, req *ontology.UpdateOrderRequest) ontology.ServiceOrder {
	out := existing.Clone()
	if req == nil {
		return out
	}
	if req.ClientID != nil {
		out.ClientID = *req.ClientID
	}
	if req.ClientName != nil {
		out.ClientName = *req.ClientName
	}
	if req.Location != nil {
		loc := ontology.Location{}
		if out.Location != nil {
			loc = *out.Location
		}
		if req.Location.Address != nil {
			loc.Address = *req.Location.Address
		}
		if req.Location.GPS != nil {
			gps := *req.Location.GPS
			loc.GPS = &gps
		}
		out.Location = &loc
	}
	if req.AssignedTechnician != nil {
		out.AssignedTechnician = *req.AssignedTechnician
	}
	if req.PestType != nil {
		out.PestType = *req.PestType
	}
	if req.InfestationLevel != nil {
		out.InfestationLevel = *req.InfestationLevel
	}
	if req.ChemicalsUsed != nil {
		chemicals := make([]ontology.ChemicalApplication, len(*req.ChemicalsUsed))
		for i, c := range *req.ChemicalsUsed {
			chemicals[i] = c.Clone()
		}
		out.ChemicalsUsed = chemicals
	}
	if req.ApplicationDate != nil {
		out.ApplicationDate = *req.ApplicationDate
	}
	if req.NextVisitDate != nil {
		out.NextVisitDate = *req.NextVisitDate
	}
	if req.Status != nil {
		out.Status = *req.Status
	}
	if req.ServiceNotes != nil {
		out.ServiceNotes = *req.ServiceNotes
	}
	return out.Clone()
}

// afterSave publishes the order event and a dose alert for every
// application above its safety limit.
func (s *OrderService) afterSave(order ontology.ServiceOrder, eventType string) {
	s.publishOrderEvent(order, eventType)

	now := s.now()
	for idx, app := range order.ChemicalsUsed {
		res := dosage.ForApplication(app, now)
		if !res.ExceedsLimit {
			continue
		}
		s.metrics.ObserveDoseAlert()
		s.log.Warn().
			Str("order_id", order.ID).
			Str("product_id", app.ProductID).
			Float64("applied", res.AppliedQuantity).
			Float64("limit", res.SafetyLimit).
			Msg("Applied dose exceeds safety limit")
		s.publishDoseAlert(order, idx, app, res)
	}
}

func (s *OrderService) publishOrderEvent(order ontology.ServiceOrder, eventType string) {
	event := shared.Event{
		ID:      uuid.New().String(),
		Type:    eventType,
		Subject: shared.OrderEventSubject(order.ClientID, eventType),
		Data: map[string]interface{}{
			"order_id":  order.ID,
			"client_id": order.ClientID,
			"status":    order.Status,
		},
		Timestamp: time.Now().UTC(),
		Source:    "order-service",
	}
	if eventType != shared.EventTypeDeleted {
		event.Data["order"] = order
	}
	s.publish(event, fmt.Sprintf("%s-%s-%d", order.ID, eventType, time.Now().UnixNano()))
}

func (s *OrderService) publishCertificate(clientID string, view ontology.CertificateView) {
	event := shared.Event{
		ID:      uuid.New().String(),
		Type:    shared.EventTypeCertificateIssued,
		Subject: shared.CertificateIssuedSubject(clientID),
		Data: map[string]interface{}{
			"order_id":    view.Order.ID,
			"folio":       view.Folio,
			"issued_at":   view.IssuedAt,
			"certificate": view,
		},
		Timestamp: time.Now().UTC(),
		Source:    "order-service",
	}
	// The folio is unique per issuance, so it doubles as the dedup id.
	s.publish(event, view.Folio)
}

func (s *OrderService) publishDoseAlert(order ontology.ServiceOrder, idx int, app ontology.ChemicalApplication, res dosage.Result) {
	event := shared.Event{
		ID:      uuid.New().String(),
		Type:    shared.EventTypeDoseExceeded,
		Subject: shared.DoseExceededSubject(order.ClientID),
		Data: map[string]interface{}{
			"order_id":         order.ID,
			"client_id":        order.ClientID,
			"line":             idx,
			"product_id":       app.ProductID,
			"product_name":     app.Name,
			"applied_quantity": res.AppliedQuantity,
			"recommended_dose": res.RecommendedDose,
			"safety_limit":     res.SafetyLimit,
			"dose_unit":        res.DoseUnit,
		},
		Timestamp: time.Now().UTC(),
		Source:    "order-service",
	}
	s.publish(event, fmt.Sprintf("%s-dose-%d-%d", order.ID, idx, order.UpdatedAt.UnixNano()))
}

// publish sends the event in the background; failures are logged and never
// reach the caller.
func (s *OrderService) publish(event shared.Event, msgID string) {
	if s.publisher == nil {
		s.log.Debug().Str("event_type", event.Type).Msg("NATS not available for publishing event")
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		s.log.Error().Err(err).Str("event_type", event.Type).Msg("Failed to marshal event")
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		err := s.publisher.PublishWithDedup(event.Subject, data, msgID)
		s.metrics.ObservePublish(event.Type, err)
		if err != nil {
			s.log.Warn().Err(err).Str("subject", event.Subject).Msg("Failed to publish event")
			return
		}
		s.log.Debug().Str("event_type", event.Type).Str("subject", event.Subject).Msg("Published event")
	}()
}
