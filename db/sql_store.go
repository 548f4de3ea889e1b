package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nicco6482/desintesa/pkg/ontology"
)

// OrdersCollection is the snapshot row holding the order collection.
const OrdersCollection = "service_orders"

// SQLStore keeps the order collection as one JSON snapshot row in
// order_snapshots. Each save replaces the row and appends an audit entry in
// the same transaction.
type SQLStore struct {
	svc    *Service
	driver Driver
}

func NewSQLStore(svc *Service, driver Driver) *SQLStore {
	return &SQLStore{svc: svc, driver: driver}
}

func (s *SQLStore) Driver() Driver { return s.driver }

// Health pings the underlying database.
func (s *SQLStore) Health() error { return s.svc.Health() }

func (s *SQLStore) LoadAll(ctx context.Context) ([]ontology.ServiceOrder, error) {
	query := s.svc.Rebind(`SELECT payload FROM order_snapshots WHERE collection = ?`)

	var payload string
	err := s.svc.DB.QueryRowContext(ctx, query, OrdersCollection).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return []ontology.ServiceOrder{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order snapshot: %w", err)
	}

	return decodeOrders([]byte(payload))
}

func (s *SQLStore) SaveAll(ctx context.Context, orders []ontology.ServiceOrder) error {
	payload, err := encodeOrders(orders)
	if err != nil {
		return err
	}
	savedAt := time.Now().UTC().Format(time.RFC3339Nano)

	upsert := s.svc.Rebind(`
		INSERT INTO order_snapshots (collection, payload, order_count, saved_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(collection) DO UPDATE SET
			payload = excluded.payload,
			order_count = excluded.order_count,
			saved_at = excluded.saved_at`)
	audit := s.svc.Rebind(`INSERT INTO snapshot_audit (collection, order_count, saved_at) VALUES (?, ?, ?)`)

	return s.svc.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, upsert, OrdersCollection, string(payload), len(orders), savedAt); err != nil {
			return fmt.Errorf("failed to save order snapshot: %w", err)
		}
		if _, err := tx.ExecContext(ctx, audit, OrdersCollection, len(orders), savedAt); err != nil {
			return fmt.Errorf("failed to record snapshot audit: %w", err)
		}
		return nil
	})
}

// SnapshotCount returns how many snapshots were written for the collection.
func (s *SQLStore) SnapshotCount(ctx context.Context) (int, error) {
	var count int
	query := s.svc.Rebind(`SELECT COUNT(*) FROM snapshot_audit WHERE collection = ?`)
	if err := s.svc.DB.QueryRowContext(ctx, query, OrdersCollection).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return count, nil
}

func encodeOrders(orders []ontology.ServiceOrder) ([]byte, error) {
	if orders == nil {
		orders = []ontology.ServiceOrder{}
	}
	data, err := json.MarshalIndent(orders, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode orders: %w", err)
	}
	return data, nil
}

func decodeOrders(data []byte) ([]ontology.ServiceOrder, error) {
	orders := []ontology.ServiceOrder{}
	if len(data) == 0 {
		return orders, nil
	}
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	if orders == nil {
		orders = []ontology.ServiceOrder{}
	}
	return orders, nil
}
