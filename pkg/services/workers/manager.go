package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	embeddednats "github.com/nicco6482/desintesa/pkg/services/embedded-nats"
)

type Manager struct {
	workers      []Worker
	certificates *CertificateWorker
	alerts       *AlertWorker
	js           nats.JetStreamContext
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
	log          zerolog.Logger
}

func NewManager(natsClient *embeddednats.EmbeddedNATS, log zerolog.Logger) (*Manager, error) {
	if natsClient.Connection() == nil {
		return nil, fmt.Errorf("NATS connection not initialized")
	}

	js := natsClient.JetStream()
	if js == nil {
		return nil, fmt.Errorf("JetStream not initialized")
	}

	ctx, cancel := context.WithCancel(context.Background())
	log = log.With().Str("component", "workers").Logger()

	certificates := NewCertificateWorker(js, log)
	alerts := NewAlertWorker(js, log)

	return &Manager{
		js:           js,
		ctx:          ctx,
		cancel:       cancel,
		log:          log,
		certificates: certificates,
		alerts:       alerts,
		workers: []Worker{
			NewOrderWorker(js, log),
			certificates,
			alerts,
		},
	}, nil
}

// Certificates exposes the ledger of certificates seen on the stream.
func (m *Manager) Certificates() *CertificateWorker {
	return m.certificates
}

// Alerts exposes the dose alert tallies.
func (m *Manager) Alerts() *AlertWorker {
	return m.alerts
}

func (m *Manager) Start() error {
	m.log.Info().Msg("Starting NATS workers")

	for _, worker := range m.workers {
		m.wg.Add(1)
		go func(w Worker) {
			defer m.wg.Done()

			if err := w.Start(m.ctx); err != nil && !errors.Is(err, context.Canceled) {
				m.log.Error().Err(err).Str("worker", w.Name()).Msg("Worker error")
			}
			m.log.Debug().Str("worker", w.Name()).Msg("Worker stopped")
		}(worker)
	}

	m.log.Info().Int("count", len(m.workers)).Msg("Started workers")
	return nil
}

func (m *Manager) Stop() error {
	m.log.Info().Msg("Stopping NATS workers")

	m.cancel()

	for _, worker := range m.workers {
		if err := worker.Stop(); err != nil {
			m.log.Warn().Err(err).Str("worker", worker.Name()).Msg("Error stopping worker")
		}
	}

	m.wg.Wait()

	m.log.Info().Msg("All workers stopped")
	return nil
}
