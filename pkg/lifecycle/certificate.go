// Package lifecycle holds the state gates of a service order. Status itself
// is a plain enumerated field: any of the three values may follow any other.
// The only gated operations are certificate issuance and retrieval.
package lifecycle

import (
	"fmt"
	"sync"
	"time"

	"github.com/nicco6482/desintesa/pkg/ontology"
	"github.com/nicco6482/desintesa/pkg/shared"
)

const (
	MsgCertifyRequiresCompleted  = "only completed services may be certified"
	MsgRetrieveRequiresCompleted = "the service must be completed to produce a certificate"

	DefaultFolioPrefix = "DES"
)

// FolioGenerator produces human-readable certificate codes of the form
// PREFIX-YEAR-NNNNNN where the suffix is derived from the clock in
// milliseconds. The suffix never repeats within one generator even when the
// clock has not advanced between calls.
type FolioGenerator struct {
	Prefix string
	Now    func() time.Time

	mu   sync.Mutex
	last int64
}

func NewFolioGenerator(prefix string) *FolioGenerator {
	if prefix == "" {
		prefix = DefaultFolioPrefix
	}
	return &FolioGenerator{Prefix: prefix, Now: time.Now}
}

func (g *FolioGenerator) Next() (string, time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.Now()
	stamp := now.UnixMilli()
	if stamp <= g.last {
		stamp = g.last + 1
	}
	g.last = stamp
	return fmt.Sprintf("%s-%d-%06d", g.Prefix, now.Year(), stamp%1000000), now
}

// Issue certifies a completed order in place. Calling it again on an
// already certified order reissues: a new folio and timestamp replace the
// previous certificate.
func Issue(order *ontology.ServiceOrder, folios *FolioGenerator) error {
	if order.Status != shared.StatusCompleted {
		return &shared.InvalidStateError{Message: MsgCertifyRequiresCompleted}
	}
	folio, now := folios.Next()
	issuedAt := now
	order.Certificate = ontology.Certificate{
		Issued:   true,
		IssuedAt: &issuedAt,
		Folio:    &folio,
	}
	Touch(order, now)
	return nil
}

// Retrieve returns the data handed to the certificate renderer. The folio
// reads PENDING while no certificate was issued.
func Retrieve(order ontology.ServiceOrder) (ontology.CertificateView, error) {
	if order.Status != shared.StatusCompleted {
		return ontology.CertificateView{}, &shared.InvalidStateError{Message: MsgRetrieveRequiresCompleted}
	}
	view := ontology.CertificateView{
		Folio: shared.PendingFolio,
		Order: order,
	}
	if order.Certificate.Folio != nil && *order.Certificate.Folio != "" {
		view.Folio = *order.Certificate.Folio
	}
	if order.Certificate.IssuedAt != nil {
		at := *order.Certificate.IssuedAt
		view.IssuedAt = &at
	}
	return view, nil
}

// Touch refreshes UpdatedAt without letting it move backwards or fall
// behind CreatedAt.
func Touch(order *ontology.ServiceOrder, now time.Time) {
	next := now
	if next.Before(order.UpdatedAt) {
		next = order.UpdatedAt
	}
	if next.Before(order.CreatedAt) {
		next = order.CreatedAt
	}
	order.UpdatedAt = next
}
