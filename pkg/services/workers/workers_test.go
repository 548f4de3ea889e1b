package workers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/nicco6482/desintesa/pkg/shared"
)

func eventMsg(t *testing.T, subject string, event shared.Event) *nats.Msg {
	t.Helper()
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return &nats.Msg{Subject: subject, Data: data}
}

func TestDecodeEventRejectsGarbage(t *testing.T) {
	if _, err := decodeEvent(&nats.Msg{Subject: "x", Data: []byte("not json")}); err == nil {
		t.Fatalf("expected decode error")
	}
	if _, err := decodeEvent(&nats.Msg{Subject: "x", Data: []byte(`{"id":"1"}`)}); err == nil {
		t.Fatalf("expected missing type error")
	}
}

func TestOrderWorkerHandle(t *testing.T) {
	w := NewOrderWorker(nil, zerolog.Nop())
	msg := eventMsg(t, shared.OrderEventSubject("CLI-1", shared.EventTypeCreated), shared.Event{
		ID:        "e1",
		Type:      shared.EventTypeCreated,
		Data:      map[string]interface{}{"order_id": "o1", "client_id": "CLI-1", "status": "scheduled"},
		Timestamp: time.Now(),
	})
	if err := w.handle(msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := w.handle(&nats.Msg{Data: []byte("{")}); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
}

func TestCertificateWorkerLedger(t *testing.T) {
	w := NewCertificateWorker(nil, zerolog.Nop())
	for _, folio := range []string{"DES-2026-0001", "DES-2026-0002"} {
		msg := eventMsg(t, shared.CertificateIssuedSubject("CLI-1"), shared.Event{
			ID:   folio,
			Type: shared.EventTypeCertificateIssued,
			Data: map[string]interface{}{"order_id": "o1", "folio": folio},
		})
		if err := w.handle(msg); err != nil {
			t.Fatalf("handle %s: %v", folio, err)
		}
	}

	if w.Issued() != 2 {
		t.Fatalf("issued = %d, want 2", w.Issued())
	}
	if id, ok := w.OrderFor("DES-2026-0002"); !ok || id != "o1" {
		t.Fatalf("OrderFor = %q %v", id, ok)
	}

	missing := eventMsg(t, "desintesa.certificates.CLI-1.issued", shared.Event{
		ID:   "bad",
		Type: shared.EventTypeCertificateIssued,
		Data: map[string]interface{}{"order_id": "o1"},
	})
	if err := w.handle(missing); err == nil {
		t.Fatalf("expected error without folio")
	}

	other := eventMsg(t, "desintesa.certificates.CLI-1.issued", shared.Event{ID: "x", Type: shared.EventTypeUpdated})
	if err := w.handle(other); err != nil {
		t.Fatalf("non-certificate events are skipped: %v", err)
	}
	if w.Issued() != 2 {
		t.Fatalf("ledger changed: %d", w.Issued())
	}
}

func TestAlertWorkerCounts(t *testing.T) {
	w := NewAlertWorker(nil, zerolog.Nop())
	for i := 0; i < 3; i++ {
		msg := eventMsg(t, shared.DoseExceededSubject("CLI-9"), shared.Event{
			ID:   "a",
			Type: shared.EventTypeDoseExceeded,
			Data: map[string]interface{}{
				"order_id":         "o9",
				"client_id":        "CLI-9",
				"applied_quantity": 250.0,
				"safety_limit":     220.0,
			},
		})
		if err := w.handle(msg); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	if got := w.Count("CLI-9"); got != 3 {
		t.Fatalf("count = %d, want 3", got)
	}
	if got := w.Count("CLI-1"); got != 0 {
		t.Fatalf("count = %d, want 0", got)
	}
}
