package workers

import (
	"context"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/nicco6482/desintesa/pkg/shared"
)

// CertificateWorker keeps a ledger of issued folios keyed to their orders.
// A reissue shows up as a second folio for the same order.
type CertificateWorker struct {
	*BaseWorker

	mu      sync.RWMutex
	byFolio map[string]string
}

func NewCertificateWorker(js nats.JetStreamContext, log zerolog.Logger) *CertificateWorker {
	return &CertificateWorker{
		BaseWorker: NewBaseWorker(
			"CertificateWorker",
			js,
			shared.StreamCertificates,
			shared.ConsumerCertificateProcessor,
			shared.SubjectCertificatesAll,
			log,
		),
		byFolio: make(map[string]string),
	}
}

func (w *CertificateWorker) Start(ctx context.Context) error {
	return w.processMessages(ctx, w.handle)
}

func (w *CertificateWorker) handle(msg *nats.Msg) error {
	event, err := decodeEvent(msg)
	if err != nil {
		return err
	}
	if event.Type != shared.EventTypeCertificateIssued {
		w.log.Debug().Str("event_type", event.Type).Msg("Ignoring non-certificate event")
		return nil
	}

	folio := stringField(event.Data, "folio")
	orderID := stringField(event.Data, "order_id")
	if folio == "" || orderID == "" {
		return fmt.Errorf("certificate event %s is missing folio or order id", event.ID)
	}

	w.mu.Lock()
	w.byFolio[folio] = orderID
	w.mu.Unlock()

	w.log.Info().Str("folio", folio).Str("order_id", orderID).Msg("Certificate issued")
	return nil
}

// OrderFor returns the order a folio was issued for.
func (w *CertificateWorker) OrderFor(folio string) (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	id, ok := w.byFolio[folio]
	return id, ok
}

// Issued counts the folios seen so far.
func (w *CertificateWorker) Issued() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.byFolio)
}
