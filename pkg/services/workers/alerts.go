package workers

import (
	"context"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/nicco6482/desintesa/pkg/shared"
)

// AlertWorker consumes dose alerts and tallies them per client.
type AlertWorker struct {
	*BaseWorker

	mu       sync.Mutex
	byClient map[string]int
}

func NewAlertWorker(js nats.JetStreamContext, log zerolog.Logger) *AlertWorker {
	return &AlertWorker{
		BaseWorker: NewBaseWorker(
			"AlertWorker",
			js,
			shared.StreamAlerts,
			shared.ConsumerAlertProcessor,
			shared.SubjectAlertsAll,
			log,
		),
		byClient: make(map[string]int),
	}
}

func (w *AlertWorker) Start(ctx context.Context) error {
	return w.processMessages(ctx, w.handle)
}

func (w *AlertWorker) handle(msg *nats.Msg) error {
	event, err := decodeEvent(msg)
	if err != nil {
		return err
	}

	clientID := stringField(event.Data, "client_id")
	w.mu.Lock()
	w.byClient[clientID]++
	w.mu.Unlock()

	w.log.Warn().
		Str("order_id", stringField(event.Data, "order_id")).
		Str("client_id", clientID).
		Str("product_id", stringField(event.Data, "product_id")).
		Float64("applied_quantity", numberField(event.Data, "applied_quantity")).
		Float64("safety_limit", numberField(event.Data, "safety_limit")).
		Str("dose_unit", stringField(event.Data, "dose_unit")).
		Msg("Applied dose exceeds safety limit")
	return nil
}

// Count returns how many dose alerts a client has accumulated.
func (w *AlertWorker) Count(clientID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.byClient[clientID]
}
