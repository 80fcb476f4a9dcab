package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/fedquery/fedquery/internal/adapter"
	"github.com/fedquery/fedquery/internal/federation"
	"github.com/fedquery/fedquery/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeFederator struct {
	response federation.Response
	err      error

	mu          sync.Mutex
	calls       int
	lastRequest federation.Request
}

func (f *fakeFederator) Execute(_ context.Context, request federation.Request) (federation.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastRequest = request
	if f.err != nil {
		return federation.Response{}, f.err
	}
	return f.response, nil
}

type fakeSchemas struct {
	tables []adapter.TableMetadata
	cached bool
	err    error

	mu       sync.Mutex
	calls    int
	lastID   string
	lastFlag bool
}

func (f *fakeSchemas) Metadata(_ context.Context, connectionID string, refresh bool) ([]adapter.TableMetadata, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastID = connectionID
	f.lastFlag = refresh
	if f.err != nil {
		return nil, false, f.err
	}
	return f.tables, f.cached, nil
}

type fakeEvictor struct {
	mu      sync.Mutex
	evicted []string
}

func (f *fakeEvictor) Evict(connectionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evicted = append(f.evicted, connectionID)
}

// memoryStore is an in-memory store.Repository for handler tests.
type memoryStore struct {
	mu          sync.Mutex
	nextID      int
	domains     map[string]store.Domain
	connections map[string]store.Connection
	queries     map[string]store.SavedQuery
	history     []store.HistoryEntry
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		domains: map[string]store.Domain{
			store.DefaultDomainID: {ID: store.DefaultDomainID, Name: "Default"},
		},
		connections: map[string]store.Connection{},
		queries:     map[string]store.SavedQuery{},
	}
}

func (m *memoryStore) HealthCheck(context.Context) error { return nil }

func (m *memoryStore) CreateDomain(_ context.Context, in store.CreateDomainInput) (store.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	domain := store.Domain{
		ID:          fmt.Sprintf("domain-%d", m.nextID),
		Name:        in.Name,
		Description: in.Description,
	}
	m.domains[domain.ID] = domain
	return domain, nil
}

func (m *memoryStore) GetDomain(_ context.Context, domainID string) (store.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	domain, ok := m.domains[domainID]
	if !ok {
		return store.Domain{}, store.ErrNotFound
	}
	return domain, nil
}

func (m *memoryStore) ListDomains(context.Context) ([]store.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	domains := make([]store.Domain, 0, len(m.domains))
	for _, domain := range m.domains {
		domains = append(domains, domain)
	}
	return domains, nil
}

func (m *memoryStore) UpdateDomain(_ context.Context, domainID string, in store.UpdateDomainInput) (store.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	domain, ok := m.domains[domainID]
	if !ok {
		return store.Domain{}, store.ErrNotFound
	}
	if in.Name != nil {
		domain.Name = *in.Name
	}
	if in.Description != nil {
		domain.Description = *in.Description
	}
	m.domains[domainID] = domain
	return domain, nil
}

func (m *memoryStore) DeleteDomain(_ context.Context, domainID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.domains[domainID]; !ok {
		return false, nil
	}
	delete(m.domains, domainID)
	for id, connection := range m.connections {
		if connection.DomainID == domainID {
			delete(m.connections, id)
		}
	}
	return true, nil
}

func (m *memoryStore) ListConnectionsByDomain(_ context.Context, domainID string) ([]store.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	connections := make([]store.Connection, 0)
	for _, connection := range m.connections {
		if connection.DomainID == domainID {
			connections = append(connections, connection)
		}
	}
	return connections, nil
}

func (m *memoryStore) CountDomainConnections(_ context.Context, domainID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, connection := range m.connections {
		if connection.DomainID == domainID {
			count++
		}
	}
	return count, nil
}

func (m *memoryStore) CreateConnection(_ context.Context, in store.CreateConnectionInput) (store.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	domainID := in.DomainID
	if domainID == "" {
		domainID = store.DefaultDomainID
	}
	connection := store.Connection{
		ID:           fmt.Sprintf("conn-%d", m.nextID),
		DomainID:     domainID,
		Name:         in.Name,
		Engine:       in.Engine,
		Host:         in.Host,
		Port:         in.Port,
		DatabaseName: in.DatabaseName,
		Username:     in.Username,
		Password:     in.Password,
		Params:       in.Params,
	}
	m.connections[connection.ID] = connection
	return connection, nil
}

func (m *memoryStore) GetConnection(_ context.Context, connectionID string) (store.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	connection, ok := m.connections[connectionID]
	if !ok {
		return store.Connection{}, store.ErrNotFound
	}
	return connection, nil
}

func (m *memoryStore) ListConnections(context.Context) ([]store.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	connections := make([]store.Connection, 0, len(m.connections))
	for _, connection := range m.connections {
		connections = append(connections, connection)
	}
	return connections, nil
}

func (m *memoryStore) UpdateConnection(_ context.Context, connectionID string, in store.UpdateConnectionInput) (store.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	connection, ok := m.connections[connectionID]
	if !ok {
		return store.Connection{}, store.ErrNotFound
	}
	if in.DomainID != nil {
		connection.DomainID = *in.DomainID
	}
	if in.Name != nil {
		connection.Name = *in.Name
	}
	if in.Host != nil {
		connection.Host = *in.Host
	}
	if in.Port != nil {
		connection.Port = *in.Port
	}
	if in.DatabaseName != nil {
		connection.DatabaseName = *in.DatabaseName
	}
	if in.Username != nil {
		connection.Username = *in.Username
	}
	if in.Password != nil {
		connection.Password = *in.Password
	}
	if in.Params != nil {
		connection.Params = in.Params
	}
	m.connections[connectionID] = connection
	return connection, nil
}

func (m *memoryStore) DeleteConnection(_ context.Context, connectionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.connections[connectionID]; !ok {
		return false, nil
	}
	delete(m.connections, connectionID)
	return true, nil
}

func (m *memoryStore) CreateSavedQuery(_ context.Context, in store.CreateSavedQueryInput) (store.SavedQuery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	saved := store.SavedQuery{
		ID:            fmt.Sprintf("query-%d", m.nextID),
		Name:          in.Name,
		Description:   in.Description,
		SQL:           in.SQL,
		ConnectionIDs: in.ConnectionIDs,
	}
	m.queries[saved.ID] = saved
	return saved, nil
}

func (m *memoryStore) GetSavedQuery(_ context.Context, queryID string) (store.SavedQuery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved, ok := m.queries[queryID]
	if !ok {
		return store.SavedQuery{}, store.ErrNotFound
	}
	return saved, nil
}

func (m *memoryStore) ListSavedQueries(context.Context) ([]store.SavedQuery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	queries := make([]store.SavedQuery, 0, len(m.queries))
	for _, saved := range m.queries {
		queries = append(queries, saved)
	}
	return queries, nil
}

func (m *memoryStore) DeleteSavedQuery(_ context.Context, queryID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.queries[queryID]; !ok {
		return false, nil
	}
	delete(m.queries, queryID)
	return true, nil
}

func (m *memoryStore) InsertHistory(_ context.Context, in store.InsertHistoryInput) (store.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := store.HistoryEntry{
		ID:              int64(len(m.history) + 1),
		Query:           in.Query,
		ConnectionIDs:   in.ConnectionIDs,
		Status:          in.Status,
		ErrorMessage:    in.ErrorMessage,
		RowCount:        in.RowCount,
		ExecutionTimeMs: in.ExecutionTimeMs,
	}
	m.history = append(m.history, entry)
	return entry, nil
}

func (m *memoryStore) ListHistory(_ context.Context, limit int) ([]store.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]store.HistoryEntry, 0, limit)
	for i := len(m.history) - 1; i >= 0 && len(entries) < limit; i-- {
		entries = append(entries, m.history[i])
	}
	return entries, nil
}
