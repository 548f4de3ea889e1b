package embeddednats

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/rs/zerolog"

	"github.com/nicco6482/desintesa/pkg/shared"
)

func startTestNATS(t *testing.T) *EmbeddedNATS {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Port = server.RANDOM_PORT
	cfg.DataDir = t.TempDir()
	cfg.NoLog = true

	en, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := en.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = en.Shutdown(ctx)
	})
	return en
}

func TestNewRequiresDataDir(t *testing.T) {
	if _, err := New(&Config{}, zerolog.Nop()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPublishBeforeStart(t *testing.T) {
	en, _ := New(DefaultConfig(), zerolog.Nop())
	if err := en.PublishWithDedup("desintesa.orders.x.created", nil, "id"); err == nil {
		t.Fatalf("expected error before start")
	}
	if err := en.HealthCheck(); err == nil {
		t.Fatalf("expected unhealthy before start")
	}
}

func TestStreamsAndDedup(t *testing.T) {
	en := startTestNATS(t)
	if err := en.CreateDesintesaStreams(); err != nil {
		t.Fatalf("streams: %v", err)
	}
	// Declaring twice updates in place.
	if err := en.CreateDesintesaStreams(); err != nil {
		t.Fatalf("streams again: %v", err)
	}
	if err := en.CreateDesintesaConsumers(); err != nil {
		t.Fatalf("consumers: %v", err)
	}
	if err := en.HealthCheck(); err != nil {
		t.Fatalf("health: %v", err)
	}

	subject := shared.OrderEventSubject("CLI-001", shared.EventTypeCreated)
	for i := 0; i < 3; i++ {
		if err := en.PublishWithDedup(subject, []byte(`{"type":"created"}`), "order-1-created"); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	info, err := en.JetStream().StreamInfo(shared.StreamOrders)
	if err != nil {
		t.Fatalf("stream info: %v", err)
	}
	if info.State.Msgs != 1 {
		t.Fatalf("dedup failed: %d messages", info.State.Msgs)
	}
}
