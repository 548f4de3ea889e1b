package shared

import "testing"

func TestOrderEventSubject(t *testing.T) {
	tests := []struct {
		client, event, want string
	}{
		{"CLI-001", EventTypeCreated, "desintesa.orders.CLI-001.created"},
		{"CLI-001", EventTypeUpdated, "desintesa.orders.CLI-001.updated"},
		{"CLI-001", EventTypeDeleted, "desintesa.orders.CLI-001.deleted"},
		{"acme.mx", EventTypeCreated, "desintesa.orders.acme_mx.created"},
		{"", EventTypeUpdated, "desintesa.orders._.updated"},
		{"a b>*", EventTypeCreated, "desintesa.orders.a_b__.created"},
	}
	for _, tt := range tests {
		if got := OrderEventSubject(tt.client, tt.event); got != tt.want {
			t.Errorf("OrderEventSubject(%q, %q) = %s, want %s", tt.client, tt.event, got, tt.want)
		}
	}
}

func TestCertificateAndAlertSubjects(t *testing.T) {
	if got := CertificateIssuedSubject("CLI-9"); got != "desintesa.certificates.CLI-9.issued" {
		t.Errorf("certificate subject %s", got)
	}
	if got := DoseExceededSubject("CLI-9"); got != "desintesa.alerts.CLI-9.dose" {
		t.Errorf("alert subject %s", got)
	}
}
