package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func newTestSQLite(t *testing.T) *Service {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DSN = filepath.Join(t.TempDir(), "desintesa.db")
	svc, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestServiceInitializesSchema(t *testing.T) {
	svc := newTestSQLite(t)
	if err := svc.VerifySchema(); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := svc.Health(); err != nil {
		t.Fatalf("health: %v", err)
	}
}

func TestNewRequiresDSN(t *testing.T) {
	if _, err := New(&Config{SQLDriver: SQLDriverPostgres}, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
}

func TestRebind(t *testing.T) {
	sqlite := &Service{Driver: SQLDriverSQLite}
	pg := &Service{Driver: SQLDriverPostgres}
	query := `SELECT a FROM t WHERE b = ? AND c = ?`

	if got := sqlite.Rebind(query); got != query {
		t.Fatalf("sqlite rebind changed query: %s", got)
	}
	if got := pg.Rebind(query); got != `SELECT a FROM t WHERE b = $1 AND c = $2` {
		t.Fatalf("postgres rebind: %s", got)
	}
}

func TestSQLStoreEmptyBeforeFirstSave(t *testing.T) {
	store := NewSQLStore(newTestSQLite(t), DriverSQLite)
	orders, err := store.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if orders == nil || len(orders) != 0 {
		t.Fatalf("expected empty collection, got %v", orders)
	}
	if err := store.Health(); err != nil {
		t.Fatalf("health: %v", err)
	}
}

func TestSQLStoreRoundTripAndOverwrite(t *testing.T) {
	ctx := context.Background()
	store := NewSQLStore(newTestSQLite(t), DriverSQLite)

	want := sampleOrders()
	if err := store.SaveAll(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assertSameOrders(t, got, want)

	if err := store.SaveAll(ctx, want[:1]); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, _ = store.LoadAll(ctx)
	assertSameOrders(t, got, want[:1])

	count, err := store.SnapshotCount(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("snapshot count %d, want 2", count)
	}
}
