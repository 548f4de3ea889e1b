package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/nicco6482/desintesa/api/services"
	"github.com/nicco6482/desintesa/pkg/ontology"
	"github.com/nicco6482/desintesa/pkg/shared"
	"github.com/nicco6482/desintesa/pkg/validation"
)

// HealthCheck reports the state of one dependency.
type HealthCheck func() error

type Handlers struct {
	orderService   *services.OrderService
	catalogService *services.CatalogService
	log            zerolog.Logger

	service string
	version string
	checks  map[string]HealthCheck
}

func NewHandlers(orders *services.OrderService, catalog *services.CatalogService, log zerolog.Logger) *Handlers {
	return &Handlers{
		orderService:   orders,
		catalogService: catalog,
		log:            log.With().Str("component", "api").Logger(),
		service:        "desintesa",
		checks:         make(map[string]HealthCheck),
	}
}

// WithVersion sets the service identity reported by /health.
func (h *Handlers) WithVersion(service, version string) *Handlers {
	h.service = service
	h.version = version
	return h
}

// AddHealthCheck registers a dependency probe for /health.
func (h *Handlers) AddHealthCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

// ValidationReport is returned by the draft and intake validation endpoints.
type ValidationReport struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Order handlers
func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req ontology.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	order, err := h.orderService.CreateOrder(r.Context(), &req)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	sendSuccess(w, http.StatusCreated, order)
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orders, err := h.orderService.ListOrders(r.Context(), q.Get("client_id"), q.Get("status"))
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	sendSuccess(w, http.StatusOK, orders)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderService.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	sendSuccess(w, http.StatusOK, order)
}

func (h *Handlers) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	var req ontology.UpdateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	order, err := h.orderService.UpdateOrder(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	sendSuccess(w, http.StatusOK, order)
}

func (h *Handlers) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orderService.DeleteOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.sendServiceError(w, err)
		return
	}

	sendSuccess(w, http.StatusOK, map[string]string{"message": "Order deleted successfully"})
}

// ValidateOrder checks a draft without saving it. mode=partial only checks
// supplied fields.
func (h *Handlers) ValidateOrder(w http.ResponseWriter, r *http.Request) {
	var draft ontology.ServiceOrder
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	mode := validation.ParseMode(r.URL.Query().Get("mode"))
	errs := h.orderService.ValidateDraft(&draft, mode)
	sendSuccess(w, http.StatusOK, ValidationReport{Valid: len(errs) == 0, Errors: errs})
}

// ValidateIntake checks the intake form up to the given step (1-3).
func (h *Handlers) ValidateIntake(w http.ResponseWriter, r *http.Request) {
	step, err := strconv.Atoi(r.URL.Query().Get("step"))
	if err != nil || step < 1 || step > validation.StepSchedule {
		sendError(w, http.StatusBadRequest, "INVALID_STEP", "step must be 1, 2 or 3")
		return
	}

	var form ontology.ServiceOrder
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	errs := validation.ValidateIntakeStep(&form, step)
	sendSuccess(w, http.StatusOK, ValidationReport{Valid: len(errs) == 0, Errors: errs})
}

// Certificate handlers
func (h *Handlers) IssueCertificate(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderService.IssueCertificate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	sendSuccess(w, http.StatusOK, order)
}

func (h *Handlers) GetCertificate(w http.ResponseWriter, r *http.Request) {
	view, err := h.orderService.GetCertificate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	sendSuccess(w, http.StatusOK, view)
}

// Catalog handlers
func (h *Handlers) ListChemicals(w http.ResponseWriter, r *http.Request) {
	entries, err := h.catalogService.ListChemicals(r.Context())
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	sendSuccess(w, http.StatusOK, entries)
}

func (h *Handlers) CalculateDosage(w http.ResponseWriter, r *http.Request) {
	var req services.DosageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	resp, err := h.catalogService.Calculate(r.Context(), &req)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	sendSuccess(w, http.StatusOK, resp)
}

// ListPests returns the suggested pest labels; pest type stays free text.
func (h *Handlers) ListPests(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, http.StatusOK, shared.CommonPests)
}

// Aggregate handlers
func (h *Handlers) ClientDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.orderService.ClientDashboard(r.Context(), chi.URLParam(r, "clientId"))
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	sendSuccess(w, http.StatusOK, dashboard)
}

func (h *Handlers) Agenda(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderService.Agenda(r.Context())
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	sendSuccess(w, http.StatusOK, orders)
}

// AgendaGroups buckets the agenda by week. now accepts a date or timestamp
// and defaults to the current time.
func (h *Handlers) AgendaGroups(w http.ResponseWriter, r *http.Request) {
	var now time.Time
	if raw := r.URL.Query().Get("now"); raw != "" {
		parsed, ok := ontology.ParseDate(raw)
		if !ok {
			sendError(w, http.StatusBadRequest, "INVALID_DATE", "now must be a date (YYYY-MM-DD) or an RFC 3339 timestamp")
			return
		}
		now = parsed
	}

	groups, err := h.orderService.WeekGroups(r.Context(), now)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	sendSuccess(w, http.StatusOK, groups)
}

func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orderService.Stats(r.Context())
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	sendSuccess(w, http.StatusOK, stats)
}

func (h *Handlers) MapPoints(w http.ResponseWriter, r *http.Request) {
	points, err := h.orderService.MapPoints(r.Context())
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	sendSuccess(w, http.StatusOK, points)
}

// Health check
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := shared.HealthStatus{
		Status:    "healthy",
		Service:   h.service,
		Version:   h.version,
		Timestamp: time.Now(),
		Details:   make(map[string]string),
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := h.checks[name](); err != nil {
			health.Status = "unhealthy"
			health.Details[name] = "unhealthy: " + err.Error()
		} else {
			health.Details[name] = "healthy"
		}
	}

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	sendSuccess(w, statusCode, health)
}

// sendServiceError maps service errors onto status codes: validation 400,
// not found 404, lifecycle gate 409, anything else 500.
func (h *Handlers) sendServiceError(w http.ResponseWriter, err error) {
	var (
		validationErr *shared.ValidationError
		notFoundErr   *shared.NotFoundError
		stateErr      *shared.InvalidStateError
		storageErr    *shared.StorageError
	)

	switch {
	case errors.As(err, &validationErr):
		sendResponse(w, http.StatusBadRequest, shared.Response{
			Success: false,
			Error: &shared.Error{
				Code:    "VALIDATION_FAILED",
				Message: "the order has invalid or missing fields",
				Errors:  validationErr.Messages,
			},
		})
	case errors.As(err, &notFoundErr):
		sendError(w, http.StatusNotFound, "NOT_FOUND", notFoundErr.Error())
	case errors.As(err, &stateErr):
		sendError(w, http.StatusConflict, "INVALID_STATE", stateErr.Message)
	case errors.As(err, &storageErr):
		h.log.Error().Err(err).Str("op", storageErr.Op).Msg("Order storage failure")
		sendError(w, http.StatusInternalServerError, "STORAGE_ERROR", "order storage is unavailable")
	default:
		h.log.Error().Err(err).Msg("Unhandled service error")
		sendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

// Helper functions
func sendSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	sendResponse(w, statusCode, shared.Response{
		Success: true,
		Data:    data,
	})
}

func sendError(w http.ResponseWriter, statusCode int, code, message string) {
	sendResponse(w, statusCode, shared.Response{
		Success: false,
		Error: &shared.Error{
			Code:    code,
			Message: message,
		},
	})
}

func sendResponse(w http.ResponseWriter, statusCode int, response shared.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}
