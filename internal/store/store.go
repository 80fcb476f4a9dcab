// Package store defines the metadata repository: registered connections,
// saved queries, and the execution history log.
package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("store: not found")

// DefaultDomainID is seeded at schema creation and cannot be deleted;
// connections created without an explicit domain land here.
const DefaultDomainID = "default"

type Repository interface {
	HealthCheck(ctx context.Context) error
	CreateDomain(ctx context.Context, in CreateDomainInput) (Domain, error)
	GetDomain(ctx context.Context, domainID string) (Domain, error)
	ListDomains(ctx context.Context) ([]Domain, error)
	UpdateDomain(ctx context.Context, domainID string, in UpdateDomainInput) (Domain, error)
	DeleteDomain(ctx context.Context, domainID string) (bool, error)
	ListConnectionsByDomain(ctx context.Context, domainID string) ([]Connection, error)
	CountDomainConnections(ctx context.Context, domainID string) (int, error)
	CreateConnection(ctx context.Context, in CreateConnectionInput) (Connection, error)
	GetConnection(ctx context.Context, connectionID string) (Connection, error)
	ListConnections(ctx context.Context) ([]Connection, error)
	UpdateConnection(ctx context.Context, connectionID string, in UpdateConnectionInput) (Connection, error)
	DeleteConnection(ctx context.Context, connectionID string) (bool, error)
	CreateSavedQuery(ctx context.Context, in CreateSavedQueryInput) (SavedQuery, error)
	GetSavedQuery(ctx context.Context, queryID string) (SavedQuery, error)
	ListSavedQueries(ctx context.Context) ([]SavedQuery, error)
	DeleteSavedQuery(ctx context.Context, queryID string) (bool, error)
	InsertHistory(ctx context.Context, in InsertHistoryInput) (HistoryEntry, error)
	ListHistory(ctx context.Context, limit int) ([]HistoryEntry, error)
}

// Domain groups connections into isolated organizational units, such as
// production versus analytics estates.
type Domain struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateDomainInput struct {
	Name        string
	Description string
}

type UpdateDomainInput struct {
	Name        *string
	Description *string
}

// Connection is one registered external database.
type Connection struct {
	ID           string            `json:"id"`
	DomainID     string            `json:"domain_id"`
	Name         string            `json:"name"`
	Engine       string            `json:"engine"`
	Host         string            `json:"host"`
	Port         int               `json:"port"`
	DatabaseName string            `json:"database_name"`
	Username     string            `json:"username"`
	Password     string            `json:"-"`
	Params       map[string]string `json:"params,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

type CreateConnectionInput struct {
	DomainID     string
	Name         string
	Engine       string
	Host         string
	Port         int
	DatabaseName string
	Username     string
	Password     string
	Params       map[string]string
}

// UpdateConnectionInput applies partial updates; nil fields keep the stored
// value.
type UpdateConnectionInput struct {
	DomainID     *string
	Name         *string
	Host         *string
	Port         *int
	DatabaseName *string
	Username     *string
	Password     *string
	Params       map[string]string
}

// SavedQuery is a named federated query kept for re-execution.
type SavedQuery struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	SQL           string    `json:"sql"`
	ConnectionIDs []string  `json:"connection_ids"`
	CreatedAt     time.Time `json:"created_at"`
}

type CreateSavedQueryInput struct {
	Name          string
	Description   string
	SQL           string
	ConnectionIDs []string
}

// HistoryEntry records one federated execution, successful or not.
type HistoryEntry struct {
	ID              int64     `json:"id"`
	Query           string    `json:"query"`
	ConnectionIDs   []string  `json:"connection_ids"`
	Status          string    `json:"status"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	RowCount        int       `json:"row_count"`
	ExecutionTimeMs int64     `json:"execution_time_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

type InsertHistoryInput struct {
	Query           string
	ConnectionIDs   []string
	Status          string
	ErrorMessage    string
	RowCount        int
	ExecutionTimeMs int64
}
