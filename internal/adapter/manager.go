package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	metadataCacheSize = 64
	metadataCacheTTL  = 10 * time.Minute
)

// SourceProvider resolves a connection ID to its registered parameters.
type SourceProvider interface {
	GetSource(ctx context.Context, connectionID string) (Source, error)
}

// Manager hands out adapters by connection ID and keeps the underlying
// connection pools alive across requests.
type Manager struct {
	Provider SourceProvider
	Logger   *slog.Logger
	Build    func(ctx context.Context, source Source) (Adapter, error)

	mu       sync.RWMutex
	adapters map[string]Adapter
	metadata *expirable.LRU[string, []TableMetadata]
}

func NewManager(provider SourceProvider, logger *slog.Logger) *Manager {
	return &Manager{
		Provider: provider,
		Logger:   logger,
		Build:    New,
		adapters: map[string]Adapter{},
		metadata: expirable.NewLRU[string, []TableMetadata](metadataCacheSize, nil, metadataCacheTTL),
	}
}

func (m *Manager) Get(ctx context.Context, connectionID string) (Adapter, error) {
	m.mu.RLock()
	cached, ok := m.adapters[connectionID]
	m.mu.RUnlock()
	if ok {
		return cached, nil
	}

	source, err := m.Provider.GetSource(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("resolve connection %q: %w", connectionID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cached, ok := m.adapters[connectionID]; ok {
		return cached, nil
	}

	built, err := m.Build(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("connect %q (%s): %w", connectionID, source.Engine, err)
	}
	m.adapters[connectionID] = built
	if m.Logger != nil {
		m.Logger.Info("adapter connected", "connection_id", connectionID, "engine", source.Engine)
	}
	return built, nil
}

// Metadata introspects one connection's schema, serving repeat calls from
// a TTL cache. The second return reports whether the cache was used;
// refresh forces a fresh introspection.
func (m *Manager) Metadata(ctx context.Context, connectionID string, refresh bool) ([]TableMetadata, bool, error) {
	if !refresh {
		if cached, ok := m.metadata.Get(connectionID); ok {
			return cached, true, nil
		}
	}

	connected, err := m.Get(ctx, connectionID)
	if err != nil {
		return nil, false, err
	}
	tables, err := connected.Metadata(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("introspect connection %q: %w", connectionID, err)
	}
	m.metadata.Add(connectionID, tables)
	return tables, false, nil
}

// Evict drops the cached adapter for one connection, closing its pool.
// Called when a connection's registration changes or is deleted.
func (m *Manager) Evict(connectionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cached, ok := m.adapters[connectionID]; ok {
		_ = cached.Close()
		delete(m.adapters, connectionID)
	}
	m.metadata.Remove(connectionID)
}

func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, cached := range m.adapters {
		if err := cached.Close(); err != nil && m.Logger != nil {
			m.Logger.Warn("adapter close failed", "connection_id", id, "error", err)
		}
		delete(m.adapters, id)
	}
}
