package shared

import "fmt"

// NATS Subject patterns
const (
	// Base subject prefixes
	SubjectPrefix = "desintesa"

	// Order subjects
	SubjectOrders       = "desintesa.orders"
	SubjectOrdersAll    = "desintesa.orders.>"
	SubjectOrderCreated = "desintesa.orders.%s.created" // client_id
	SubjectOrderUpdated = "desintesa.orders.%s.updated" // client_id
	SubjectOrderDeleted = "desintesa.orders.%s.deleted" // client_id

	// Certificate subjects
	SubjectCertificates      = "desintesa.certificates"
	SubjectCertificatesAll   = "desintesa.certificates.>"
	SubjectCertificateIssued = "desintesa.certificates.%s.issued" // client_id

	// Alert subjects
	SubjectAlerts       = "desintesa.alerts"
	SubjectAlertsAll    = "desintesa.alerts.>"
	SubjectDoseExceeded = "desintesa.alerts.%s.dose" // client_id
)

// Stream names
const (
	StreamOrders       = "DESINTESA_ORDERS"
	StreamCertificates = "DESINTESA_CERTIFICATES"
	StreamAlerts       = "DESINTESA_ALERTS"
)

// Consumer names
const (
	ConsumerOrderProcessor       = "order-processor"
	ConsumerCertificateProcessor = "certificate-processor"
	ConsumerAlertProcessor       = "alert-processor"
)

// Helper functions to generate subjects
func OrderEventSubject(clientID, eventType string) string {
	switch eventType {
	case EventTypeCreated:
		return fmt.Sprintf(SubjectOrderCreated, subjectToken(clientID))
	case EventTypeDeleted:
		return fmt.Sprintf(SubjectOrderDeleted, subjectToken(clientID))
	default:
		return fmt.Sprintf(SubjectOrderUpdated, subjectToken(clientID))
	}
}

func CertificateIssuedSubject(clientID string) string {
	return fmt.Sprintf(SubjectCertificateIssued, subjectToken(clientID))
}

func DoseExceededSubject(clientID string) string {
	return fmt.Sprintf(SubjectDoseExceeded, subjectToken(clientID))
}

// subjectToken keeps client ids from breaking subject tokenization.
func subjectToken(id string) string {
	if id == "" {
		return "_"
	}
	out := []byte(id)
	for i, b := range out {
		switch b {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			out[i] = '_'
		}
	}
	return string(out)
}
