package embeddednats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/nicco6482/desintesa/pkg/shared"
)

type Config struct {
	Host            string
	Port            int
	WSPort          int
	DataDir         string
	MaxMemory       int64
	MaxFileStore    int64
	JetStreamDomain string
	EnableTLS       bool
	TLSCert         string
	TLSKey          string
	// NoLog silences the server's own logger.
	NoLog bool
}

type EmbeddedNATS struct {
	server  *server.Server
	nc      *nats.Conn
	js      nats.JetStreamContext
	config  *Config
	streams map[string]*StreamConfig
	log     zerolog.Logger
}

type StreamConfig struct {
	Name            string
	Subjects        []string
	Retention       nats.RetentionPolicy
	MaxMsgs         int64
	MaxBytes        int64
	MaxAge          time.Duration
	MaxMsgSize      int32
	Replicas        int
	DuplicateWindow time.Duration
	AllowRollup     bool
	AllowDirect     bool
	DiscardPolicy   nats.DiscardPolicy
}

// ConsumerBinding names a durable pull consumer on a stream.
type ConsumerBinding struct {
	Stream   string
	Consumer string
	Filter   string
}

// DesintesaConsumers are the durable consumers the workers bind to.
var DesintesaConsumers = []ConsumerBinding{
	{shared.StreamOrders, shared.ConsumerOrderProcessor, shared.SubjectOrdersAll},
	{shared.StreamCertificates, shared.ConsumerCertificateProcessor, shared.SubjectCertificatesAll},
	{shared.StreamAlerts, shared.ConsumerAlertProcessor, shared.SubjectAlertsAll},
}

func DefaultConfig() *Config {
	return &Config{
		Host:            "127.0.0.1",
		Port:            4222,
		WSPort:          8222,
		DataDir:         "./data/nats",
		MaxMemory:       256 * 1024 * 1024,      // 256MB
		MaxFileStore:    2 * 1024 * 1024 * 1024, // 2GB
		JetStreamDomain: "desintesa",
		EnableTLS:       false,
	}
}

func New(cfg *Config, log zerolog.Logger) (*EmbeddedNATS, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("NATS data directory is required")
	}

	return &EmbeddedNATS{
		config:  cfg,
		streams: make(map[string]*StreamConfig),
		log:     log.With().Str("component", "nats").Logger(),
	}, nil
}

func (en *EmbeddedNATS) Start() error {
	opts := &server.Options{
		Host:      en.config.Host,
		Port:      en.config.Port,
		JetStream: true,
		StoreDir:  en.config.DataDir,
		NoSigs:    true,
		NoLog:     en.config.NoLog,
	}

	// Only enable websocket if we have TLS
	if en.config.EnableTLS {
		opts.Websocket = server.WebsocketOpts{
			Port:  en.config.WSPort,
			NoTLS: false,
		}
	}

	// Configure JetStream limits
	opts.JetStreamMaxMemory = en.config.MaxMemory
	opts.JetStreamMaxStore = en.config.MaxFileStore

	if en.config.JetStreamDomain != "" {
		opts.JetStreamDomain = en.config.JetStreamDomain
	}

	if en.config.EnableTLS && en.config.TLSCert != "" && en.config.TLSKey != "" {
		opts.TLSCert = en.config.TLSCert
		opts.TLSKey = en.config.TLSKey
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return fmt.Errorf("failed to create NATS server: %w", err)
	}

	if !en.config.NoLog {
		ns.ConfigureLogger()
	}

	go ns.Start()

	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return fmt.Errorf("NATS server not ready for connections")
	}

	en.server = ns

	if err := en.connect(); err != nil {
		ns.Shutdown()
		return fmt.Errorf("failed to connect to embedded NATS: %w", err)
	}

	en.log.Info().Str("url", ns.ClientURL()).Msg("Embedded NATS server started")
	return nil
}

func (en *EmbeddedNATS) connect() error {
	nc, err := nats.Connect(en.server.ClientURL(),
		nats.Name("desintesa"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			en.log.Error().Err(err).Msg("NATS error")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				en.log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			en.log.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	en.nc = nc
	en.js = js
	return nil
}

func (en *EmbeddedNATS) AddStream(streamConfig *StreamConfig) error {
	if en.js == nil {
		return fmt.Errorf("JetStream not initialized")
	}

	config := &nats.StreamConfig{
		Name:        streamConfig.Name,
		Subjects:    streamConfig.Subjects,
		Retention:   streamConfig.Retention,
		MaxMsgs:     streamConfig.MaxMsgs,
		MaxBytes:    streamConfig.MaxBytes,
		MaxAge:      streamConfig.MaxAge,
		MaxMsgSize:  streamConfig.MaxMsgSize,
		Replicas:    streamConfig.Replicas,
		Duplicates:  streamConfig.DuplicateWindow,
		AllowRollup: streamConfig.AllowRollup,
		AllowDirect: streamConfig.AllowDirect,
		Discard:     streamConfig.DiscardPolicy,
	}

	// Try to update stream if it exists, otherwise create it
	stream, err := en.js.StreamInfo(streamConfig.Name)
	if err == nil {
		stream, err = en.js.UpdateStream(config)
		if err != nil {
			return fmt.Errorf("failed to update stream %s: %w", streamConfig.Name, err)
		}
		en.log.Debug().Str("stream", streamConfig.Name).Msg("Updated existing stream")
	} else {
		stream, err = en.js.AddStream(config)
		if err != nil {
			return fmt.Errorf("failed to add stream %s: %w", streamConfig.Name, err)
		}
		en.log.Debug().Str("stream", streamConfig.Name).Msg("Created new stream")
	}

	en.streams[streamConfig.Name] = streamConfig
	en.log.Info().Str("stream", stream.Config.Name).Strs("subjects", stream.Config.Subjects).Msg("Stream ready")

	return nil
}

// CreateDesintesaStreams declares the order, certificate and alert streams.
func (en *EmbeddedNATS) CreateDesintesaStreams() error {
	streams := []StreamConfig{
		{
			Name:            shared.StreamOrders,
			Subjects:        []string{shared.SubjectOrdersAll},
			Retention:       nats.LimitsPolicy,
			MaxMsgs:         100000,
			MaxBytes:        256 * 1024 * 1024,   // 256MB
			MaxAge:          30 * 24 * time.Hour, // 30 days
			MaxMsgSize:      1024 * 1024,         // 1MB
			Replicas:        1,
			DuplicateWindow: 2 * time.Minute,
			AllowRollup:     false,
			AllowDirect:     true,
			DiscardPolicy:   nats.DiscardOld,
		},
		{
			Name:            shared.StreamCertificates,
			Subjects:        []string{shared.SubjectCertificatesAll},
			Retention:       nats.LimitsPolicy, // Kept for the certificate archive
			MaxMsgs:         50000,
			MaxBytes:        128 * 1024 * 1024, // 128MB
			MaxAge:          365 * 24 * time.Hour,
			MaxMsgSize:      1024 * 1024, // 1MB
			Replicas:        1,
			DuplicateWindow: 10 * time.Minute,
			AllowRollup:     false,
			AllowDirect:     true,
			DiscardPolicy:   nats.DiscardOld,
		},
		{
			Name:            shared.StreamAlerts,
			Subjects:        []string{shared.SubjectAlertsAll},
			Retention:       nats.WorkQueuePolicy, // Alerts consumed once
			MaxMsgs:         10000,
			MaxBytes:        32 * 1024 * 1024, // 32MB
			MaxAge:          7 * 24 * time.Hour,
			MaxMsgSize:      64 * 1024, // 64KB
			Replicas:        1,
			DuplicateWindow: 2 * time.Minute,
			AllowRollup:     false,
			AllowDirect:     false,
			DiscardPolicy:   nats.DiscardOld,
		},
	}

	for i := range streams {
		if err := en.AddStream(&streams[i]); err != nil {
			return err
		}
	}

	return nil
}

// CreateDesintesaConsumers declares the worker consumers.
func (en *EmbeddedNATS) CreateDesintesaConsumers() error {
	for _, c := range DesintesaConsumers {
		if err := en.CreateDurableConsumer(c.Stream, c.Consumer, c.Filter); err != nil {
			return fmt.Errorf("failed to create consumer %s: %w", c.Consumer, err)
		}
	}
	return nil
}

func (en *EmbeddedNATS) PublishWithDedup(subject string, data []byte, msgID string) error {
	if en.js == nil {
		return fmt.Errorf("JetStream not initialized")
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, msgID)

	if _, err := en.js.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	return nil
}

func (en *EmbeddedNATS) CreateDurableConsumer(streamName, consumerName string, filterSubject string) error {
	config := &nats.ConsumerConfig{
		Durable:       consumerName,
		FilterSubject: filterSubject,
		AckPolicy:     nats.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    3,
		MaxAckPending: 1000,
		DeliverPolicy: nats.DeliverAllPolicy,
		ReplayPolicy:  nats.ReplayInstantPolicy,
	}

	if _, err := en.js.ConsumerInfo(streamName, consumerName); err == nil {
		en.log.Debug().Str("consumer", consumerName).Str("stream", streamName).Msg("Durable consumer already exists")
		return nil
	}

	if _, err := en.js.AddConsumer(streamName, config); err != nil {
		return fmt.Errorf("failed to create consumer %s: %w", consumerName, err)
	}

	en.log.Info().Str("consumer", consumerName).Str("stream", streamName).Msg("Created durable consumer")
	return nil
}

func (en *EmbeddedNATS) Connection() *nats.Conn {
	return en.nc
}

func (en *EmbeddedNATS) JetStream() nats.JetStreamContext {
	return en.js
}

func (en *EmbeddedNATS) Shutdown(ctx context.Context) error {
	if en.nc != nil {
		en.nc.Close()
	}

	if en.server != nil {
		en.server.Shutdown()
		done := make(chan struct{})
		go func() {
			en.server.WaitForShutdown()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			return fmt.Errorf("NATS shutdown: %w", ctx.Err())
		}
	}

	return nil
}

func (en *EmbeddedNATS) HealthCheck() error {
	if en.nc == nil {
		return fmt.Errorf("NATS connection not initialized")
	}

	if !en.nc.IsConnected() {
		return fmt.Errorf("NATS not connected")
	}

	if en.server != nil && !en.server.Running() {
		return fmt.Errorf("NATS server not running")
	}

	return nil
}
