package shared

import (
	"time"
)

// API Response types
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

type Error struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

// Event types
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Subject   string                 `json:"subject"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
}

// Health check
type HealthStatus struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Version   string            `json:"version,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Details   map[string]string `json:"details,omitempty"`
}

// Constants
const (
	// Order Status
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"

	// Infestation Levels
	InfestationLow    = "low"
	InfestationMedium = "medium"
	InfestationHigh   = "high"

	// Event Types
	EventTypeCreated           = "created"
	EventTypeUpdated           = "updated"
	EventTypeDeleted           = "deleted"
	EventTypeCertificateIssued = "certificate_issued"
	EventTypeDoseExceeded      = "dose_exceeded"

	// PendingFolio is reported for completed orders without a certificate.
	PendingFolio = "PENDING"
)

var (
	OrderStatuses     = []string{StatusScheduled, StatusCompleted, StatusCancelled}
	InfestationLevels = []string{InfestationLow, InfestationMedium, InfestationHigh}

	// CommonPests seeds the pest picker; pest type stays free text.
	CommonPests = []string{"cockroach", "rodent", "termite", "mosquito", "fly", "wasp", "ant", "flea"}
)
