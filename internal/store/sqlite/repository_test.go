package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/fedquery/fedquery/internal/store"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := Open(context.Background(), DBConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewRepository(db)
}

func TestDomainLifecycle(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	seeded, err := repo.GetDomain(ctx, store.DefaultDomainID)
	if err != nil {
		t.Fatalf("GetDomain(default) error = %v", err)
	}
	if seeded.Name != "Default" {
		t.Fatalf("default domain = %+v", seeded)
	}

	created, err := repo.CreateDomain(ctx, store.CreateDomainInput{
		Name:        "analytics",
		Description: "Warehouse sources",
	})
	if err != nil {
		t.Fatalf("CreateDomain() error = %v", err)
	}
	if created.ID == "" || created.CreatedAt.IsZero() {
		t.Fatalf("CreateDomain() = %+v", created)
	}

	newName := "reporting"
	updated, err := repo.UpdateDomain(ctx, created.ID, store.UpdateDomainInput{Name: &newName})
	if err != nil {
		t.Fatalf("UpdateDomain() error = %v", err)
	}
	if updated.Name != "reporting" || updated.Description != "Warehouse sources" {
		t.Fatalf("UpdateDomain() = %+v", updated)
	}

	all, err := repo.ListDomains(ctx)
	if err != nil {
		t.Fatalf("ListDomains() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("ListDomains() len = %d, want 2", len(all))
	}

	connection, err := repo.CreateConnection(ctx, store.CreateConnectionInput{
		DomainID: created.ID,
		Name:     "analytics-pg",
		Engine:   "postgresql",
		Host:     "db.internal",
		Port:     5432,
	})
	if err != nil {
		t.Fatalf("CreateConnection() error = %v", err)
	}
	if connection.DomainID != created.ID {
		t.Fatalf("connection DomainID = %q, want %q", connection.DomainID, created.ID)
	}

	count, err := repo.CountDomainConnections(ctx, created.ID)
	if err != nil {
		t.Fatalf("CountDomainConnections() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("CountDomainConnections() = %d, want 1", count)
	}

	scoped, err := repo.ListConnectionsByDomain(ctx, created.ID)
	if err != nil {
		t.Fatalf("ListConnectionsByDomain() error = %v", err)
	}
	if len(scoped) != 1 || scoped[0].ID != connection.ID {
		t.Fatalf("ListConnectionsByDomain() = %+v", scoped)
	}

	deleted, err := repo.DeleteDomain(ctx, created.ID)
	if err != nil {
		t.Fatalf("DeleteDomain() error = %v", err)
	}
	if !deleted {
		t.Fatal("DeleteDomain() = false, want true")
	}
	if _, err := repo.GetConnection(ctx, connection.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("GetConnection() after domain delete error = %v, want ErrNotFound", err)
	}
}

func TestDeleteDomainMissing(t *testing.T) {
	repo := newTestRepository(t)
	deleted, err := repo.DeleteDomain(context.Background(), "missing")
	if err != nil {
		t.Fatalf("DeleteDomain() error = %v", err)
	}
	if deleted {
		t.Fatal("DeleteDomain() = true for missing domain")
	}
}

func TestConnectionLifecycle(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created, err := repo.CreateConnection(ctx, store.CreateConnectionInput{
		Name:         "orders-pg",
		Engine:       "postgresql",
		Host:         "db.internal",
		Port:         5432,
		DatabaseName: "orders",
		Username:     "reader",
		Password:     "secret",
		Params:       map[string]string{"sslmode": "require"},
	})
	if err != nil {
		t.Fatalf("CreateConnection() error = %v", err)
	}
	if created.ID == "" {
		t.Fatal("CreateConnection() returned empty ID")
	}
	if created.DomainID != store.DefaultDomainID {
		t.Fatalf("DomainID = %q, want the default domain", created.DomainID)
	}

	fetched, err := repo.GetConnection(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetConnection() error = %v", err)
	}
	if fetched.Name != "orders-pg" || fetched.Params["sslmode"] != "require" {
		t.Fatalf("GetConnection() = %+v", fetched)
	}

	newHost := "replica.internal"
	updated, err := repo.UpdateConnection(ctx, created.ID, store.UpdateConnectionInput{Host: &newHost})
	if err != nil {
		t.Fatalf("UpdateConnection() error = %v", err)
	}
	if updated.Host != "replica.internal" || updated.Port != 5432 {
		t.Fatalf("UpdateConnection() = %+v", updated)
	}

	all, err := repo.ListConnections(ctx)
	if err != nil {
		t.Fatalf("ListConnections() error = %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("ListConnections() len = %d, want 1", len(all))
	}

	deleted, err := repo.DeleteConnection(ctx, created.ID)
	if err != nil {
		t.Fatalf("DeleteConnection() error = %v", err)
	}
	if !deleted {
		t.Fatal("DeleteConnection() = false, want true")
	}
	if _, err := repo.GetConnection(ctx, created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("GetConnection() after delete error = %v, want ErrNotFound", err)
	}
}

func TestDeleteConnectionMissing(t *testing.T) {
	repo := newTestRepository(t)
	deleted, err := repo.DeleteConnection(context.Background(), "missing")
	if err != nil {
		t.Fatalf("DeleteConnection() error = %v", err)
	}
	if deleted {
		t.Fatal("DeleteConnection() = true for missing connection")
	}
}

func TestSavedQueryLifecycle(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created, err := repo.CreateSavedQuery(ctx, store.CreateSavedQueryInput{
		Name:          "daily-joined-report",
		Description:   "orders joined with click events",
		SQL:           "SELECT * FROM pg.orders JOIN druid.events ON orders.id = events.order_id",
		ConnectionIDs: []string{"conn-a", "conn-b"},
	})
	if err != nil {
		t.Fatalf("CreateSavedQuery() error = %v", err)
	}

	fetched, err := repo.GetSavedQuery(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetSavedQuery() error = %v", err)
	}
	if len(fetched.ConnectionIDs) != 2 || fetched.ConnectionIDs[1] != "conn-b" {
		t.Fatalf("GetSavedQuery() ConnectionIDs = %v", fetched.ConnectionIDs)
	}

	all, err := repo.ListSavedQueries(ctx)
	if err != nil {
		t.Fatalf("ListSavedQueries() error = %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("ListSavedQueries() len = %d, want 1", len(all))
	}

	deleted, err := repo.DeleteSavedQuery(ctx, created.ID)
	if err != nil || !deleted {
		t.Fatalf("DeleteSavedQuery() = %v, %v", deleted, err)
	}
	if _, err := repo.GetSavedQuery(ctx, created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("GetSavedQuery() after delete error = %v, want ErrNotFound", err)
	}
}

func TestHistoryInsertAndList(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := repo.InsertHistory(ctx, store.InsertHistoryInput{
			Query:           "SELECT 1",
			ConnectionIDs:   []string{"conn-a"},
			Status:          "success",
			RowCount:        i,
			ExecutionTimeMs: int64(10 * i),
		})
		if err != nil {
			t.Fatalf("InsertHistory() error = %v", err)
		}
	}
	_, err := repo.InsertHistory(ctx, store.InsertHistoryInput{
		Query:         "SELECT nope",
		ConnectionIDs: []string{"conn-a"},
		Status:        "error",
		ErrorMessage:  "relation does not exist",
	})
	if err != nil {
		t.Fatalf("InsertHistory() error = %v", err)
	}

	entries, err := repo.ListHistory(ctx, 2)
	if err != nil {
		t.Fatalf("ListHistory() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ListHistory() len = %d, want 2", len(entries))
	}
	if entries[0].Status != "error" || entries[0].ErrorMessage == "" {
		t.Fatalf("ListHistory() newest = %+v, want the failed run first", entries[0])
	}
}
