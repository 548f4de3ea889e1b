package db

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/nicco6482/desintesa/pkg/ontology"
	"github.com/rs/zerolog"
)

// OrderStore persists the order collection as a whole. LoadAll on a store
// that was never written returns an empty collection.
type OrderStore interface {
	LoadAll(ctx context.Context) ([]ontology.ServiceOrder, error)
	SaveAll(ctx context.Context, orders []ontology.ServiceOrder) error
	Driver() Driver
}

// Driver identifies an order store backend.
type Driver string

const (
	DriverFile     Driver = "file"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverS3       Driver = "s3"
	DriverMemory   Driver = "memory"
)

// StoreConfig selects and configures the order store backend.
type StoreConfig struct {
	Driver      Driver
	OrdersFile  string
	SQLitePath  string
	PostgresDSN string
	S3          S3Config
}

// OpenStore builds the configured order store. The returned closer releases
// any underlying connection and is never nil.
func OpenStore(ctx context.Context, cfg StoreConfig, log zerolog.Logger) (OrderStore, func() error, error) {
	noop := func() error { return nil }
	driver := Driver(strings.ToLower(string(cfg.Driver)))
	if driver == "" {
		driver = DriverFile
	}

	switch driver {
	case DriverFile:
		store := NewFileStore(cfg.OrdersFile)
		log.Info().Str("driver", string(driver)).Str("path", store.Path()).Msg("Order store ready")
		return store, noop, nil
	case DriverSQLite, DriverPostgres:
		dbCfg := DefaultConfig()
		if driver == DriverPostgres {
			dbCfg.SQLDriver = SQLDriverPostgres
			dbCfg.DSN = cfg.PostgresDSN
			dbCfg.MaxOpenConns = 10
			dbCfg.MaxIdleConns = 5
		} else if cfg.SQLitePath != "" {
			dbCfg.DSN = cfg.SQLitePath
		}
		svc, err := New(dbCfg, log)
		if err != nil {
			return nil, noop, err
		}
		if err := svc.VerifySchema(); err != nil {
			log.Warn().Err(err).Msg("Schema verification failed, initializing schema")
			if err := svc.InitializeSchema(); err != nil {
				_ = svc.Close()
				return nil, noop, fmt.Errorf("failed to initialize schema: %w", err)
			}
		}
		log.Info().Str("driver", string(driver)).Msg("Order store ready")
		return NewSQLStore(svc, driver), svc.Close, nil
	case DriverS3:
		store, err := NewS3Store(ctx, cfg.S3)
		if err != nil {
			return nil, noop, err
		}
		log.Info().Str("driver", string(driver)).Str("bucket", cfg.S3.Bucket).Str("key", store.Key()).Msg("Order store ready")
		return store, noop, nil
	case DriverMemory:
		log.Warn().Msg("Using in-memory order store; data is lost on restart")
		return NewMemoryStore(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown order store driver %s", cfg.Driver)
	}
}

// MemoryStore keeps the collection in process memory. Loads and saves copy
// the slice so callers never share backing arrays with the store.
type MemoryStore struct {
	mu     sync.Mutex
	orders []ontology.ServiceOrder
}

func NewMemoryStore(seed ...ontology.ServiceOrder) *MemoryStore {
	return &MemoryStore{orders: cloneOrders(seed)}
}

func (s *MemoryStore) Driver() Driver { return DriverMemory }

func (s *MemoryStore) LoadAll(ctx context.Context) ([]ontology.ServiceOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneOrders(s.orders), nil
}

func (s *MemoryStore) SaveAll(ctx context.Context, orders []ontology.ServiceOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = cloneOrders(orders)
	return nil
}

func cloneOrders(orders []ontology.ServiceOrder) []ontology.ServiceOrder {
	out := make([]ontology.ServiceOrder, len(orders))
	for i, o := range orders {
		out[i] = o.Clone()
	}
	return out
}
