package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/nicco6482/desintesa/pkg/shared"
)

type Worker interface {
	Start(ctx context.Context) error
	Stop() error
	Name() string
}

type BaseWorker struct {
	name     string
	js       nats.JetStreamContext
	mu       sync.Mutex
	sub      *nats.Subscription
	consumer string
	stream   string
	subject  string
	log      zerolog.Logger
}

func NewBaseWorker(name string, js nats.JetStreamContext, stream, consumer, subject string, log zerolog.Logger) *BaseWorker {
	return &BaseWorker{
		name:     name,
		js:       js,
		consumer: consumer,
		stream:   stream,
		subject:  subject,
		log:      log.With().Str("worker", name).Logger(),
	}
}

func (w *BaseWorker) Name() string {
	return w.name
}

func (w *BaseWorker) Stop() error {
	w.mu.Lock()
	sub := w.sub
	w.mu.Unlock()
	if sub != nil {
		return sub.Drain()
	}
	return nil
}

// processMessages pulls batches from the bound consumer until ctx is done.
// A handler error terminates the message instead of redelivering it.
func (w *BaseWorker) processMessages(ctx context.Context, handler func(*nats.Msg) error) error {
	if w.js == nil {
		return fmt.Errorf("JetStream not initialized")
	}

	sub, err := w.js.PullSubscribe(w.subject, "",
		nats.Durable(w.consumer),
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.DeliverAll(),
		nats.Bind(w.stream, w.consumer),
	)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.sub = sub
	w.mu.Unlock()

	w.log.Info().Str("stream", w.stream).Str("consumer", w.consumer).Msg("Starting worker")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping")
			return ctx.Err()
		default:
			msgs, err := sub.Fetch(10, nats.MaxWait(2*time.Second))
			if err != nil && !errors.Is(err, nats.ErrTimeout) {
				if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
					return err
				}
				w.log.Warn().Err(err).Msg("Error fetching messages")
				continue
			}

			for _, msg := range msgs {
				if err := handler(msg); err != nil {
					w.log.Error().Err(err).Str("subject", msg.Subject).Msg("Dropping unprocessable message")
					if err := msg.Term(); err != nil {
						w.log.Warn().Err(err).Msg("Error terminating message")
					}
					continue
				}
				if err := msg.Ack(); err != nil {
					w.log.Warn().Err(err).Msg("Error acknowledging message")
				}
			}
		}
	}
}

// decodeEvent parses an event envelope published by the order service.
func decodeEvent(msg *nats.Msg) (shared.Event, error) {
	var event shared.Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return event, fmt.Errorf("decode event on %s: %w", msg.Subject, err)
	}
	if event.Type == "" {
		return event, fmt.Errorf("event on %s has no type", msg.Subject)
	}
	return event, nil
}

func stringField(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func numberField(data map[string]interface{}, key string) float64 {
	if v, ok := data[key].(float64); ok {
		return v
	}
	return 0
}
