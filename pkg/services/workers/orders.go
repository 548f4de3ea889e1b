package workers

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/nicco6482/desintesa/pkg/shared"
)

// OrderWorker records order lifecycle events in the service log.
type OrderWorker struct {
	*BaseWorker
}

func NewOrderWorker(js nats.JetStreamContext, log zerolog.Logger) *OrderWorker {
	return &OrderWorker{
		BaseWorker: NewBaseWorker(
			"OrderWorker",
			js,
			shared.StreamOrders,
			shared.ConsumerOrderProcessor,
			shared.SubjectOrdersAll,
			log,
		),
	}
}

func (w *OrderWorker) Start(ctx context.Context) error {
	return w.processMessages(ctx, w.handle)
}

func (w *OrderWorker) handle(msg *nats.Msg) error {
	event, err := decodeEvent(msg)
	if err != nil {
		return err
	}

	w.log.Info().
		Str("event_type", event.Type).
		Str("order_id", stringField(event.Data, "order_id")).
		Str("client_id", stringField(event.Data, "client_id")).
		Str("status", stringField(event.Data, "status")).
		Msg("Order event")
	return nil
}
