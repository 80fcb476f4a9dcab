package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fedquery/fedquery/internal/store"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping metadata db: %w", err)
	}
	return nil
}

func (r *Repository) CreateDomain(ctx context.Context, in store.CreateDomainInput) (store.Domain, error) {
	domain := store.Domain{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		CreatedAt:   time.Now().UTC(),
	}
	domain.UpdatedAt = domain.CreatedAt

	query := `
INSERT INTO domain (domain_id, name, description, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query,
		domain.ID, domain.Name, domain.Description, domain.CreatedAt, domain.UpdatedAt,
	); err != nil {
		return store.Domain{}, fmt.Errorf("create domain: %w", err)
	}
	return domain, nil
}

func (r *Repository) GetDomain(ctx context.Context, domainID string) (store.Domain, error) {
	query := `
SELECT domain_id, name, description, created_at, updated_at
FROM domain
WHERE domain_id = ?`

	var domain store.Domain
	if err := r.db.QueryRowContext(ctx, query, domainID).Scan(
		&domain.ID, &domain.Name, &domain.Description, &domain.CreatedAt, &domain.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Domain{}, store.ErrNotFound
		}
		return store.Domain{}, fmt.Errorf("get domain: %w", err)
	}
	return domain, nil
}

func (r *Repository) ListDomains(ctx context.Context) ([]store.Domain, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT domain_id, name, description, created_at, updated_at
FROM domain
ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	defer func() { _ = rows.Close() }()

	domains := make([]store.Domain, 0)
	for rows.Next() {
		var domain store.Domain
		if err := rows.Scan(&domain.ID, &domain.Name, &domain.Description, &domain.CreatedAt, &domain.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan domain row: %w", err)
		}
		domains = append(domains, domain)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate domain rows: %w", err)
	}
	return domains, nil
}

func (r *Repository) UpdateDomain(ctx context.Context, domainID string, in store.UpdateDomainInput) (store.Domain, error) {
	current, err := r.GetDomain(ctx, domainID)
	if err != nil {
		return store.Domain{}, err
	}

	if in.Name != nil {
		current.Name = *in.Name
	}
	if in.Description != nil {
		current.Description = *in.Description
	}
	current.UpdatedAt = time.Now().UTC()

	query := `
UPDATE domain
SET name = ?, description = ?, updated_at = ?
WHERE domain_id = ?`
	if _, err := r.db.ExecContext(ctx, query,
		current.Name, current.Description, current.UpdatedAt, domainID,
	); err != nil {
		return store.Domain{}, fmt.Errorf("update domain: %w", err)
	}
	return current, nil
}

// DeleteDomain removes a domain together with every connection scoped to it.
func (r *Repository) DeleteDomain(ctx context.Context, domainID string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete domain: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM connection WHERE domain_id = ?`, domainID); err != nil {
		return false, fmt.Errorf("delete domain connections: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM domain WHERE domain_id = ?`, domainID)
	if err != nil {
		return false, fmt.Errorf("delete domain: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete domain rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete domain: %w", err)
	}
	return affected > 0, nil
}

func (r *Repository) ListConnectionsByDomain(ctx context.Context, domainID string) ([]store.Connection, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT connection_id, domain_id, name, engine, host, port, database_name, username, password, params, created_at, updated_at
FROM connection
WHERE domain_id = ?
ORDER BY name ASC`, domainID)
	if err != nil {
		return nil, fmt.Errorf("list domain connections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	connections := make([]store.Connection, 0)
	for rows.Next() {
		connection, err := r.scanConnection(rows)
		if err != nil {
			return nil, err
		}
		connections = append(connections, connection)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connection rows: %w", err)
	}
	return connections, nil
}

func (r *Repository) CountDomainConnections(ctx context.Context, domainID string) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM connection WHERE domain_id = ?`, domainID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count domain connections: %w", err)
	}
	return count, nil
}

func (r *Repository) CreateConnection(ctx context.Context, in store.CreateConnectionInput) (store.Connection, error) {
	params, err := encodeParams(in.Params)
	if err != nil {
		return store.Connection{}, err
	}

	domainID := in.DomainID
	if domainID == "" {
		domainID = store.DefaultDomainID
	}
	connection := store.Connection{
		ID:           uuid.NewString(),
		DomainID:     domainID,
		Name:         in.Name,
		Engine:       in.Engine,
		Host:         in.Host,
		Port:         in.Port,
		DatabaseName: in.DatabaseName,
		Username:     in.Username,
		Password:     in.Password,
		Params:       in.Params,
		CreatedAt:    time.Now().UTC(),
	}
	connection.UpdatedAt = connection.CreatedAt

	query := `
INSERT INTO connection (connection_id, domain_id, name, engine, host, port, database_name, username, password, params, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query,
		connection.ID, connection.DomainID, connection.Name, connection.Engine, connection.Host, connection.Port,
		connection.DatabaseName, connection.Username, connection.Password, params,
		connection.CreatedAt, connection.UpdatedAt,
	); err != nil {
		return store.Connection{}, fmt.Errorf("create connection: %w", err)
	}
	return connection, nil
}

func (r *Repository) GetConnection(ctx context.Context, connectionID string) (store.Connection, error) {
	query := `
SELECT connection_id, domain_id, name, engine, host, port, database_name, username, password, params, created_at, updated_at
FROM connection
WHERE connection_id = ?`
	return r.scanConnection(r.db.QueryRowContext(ctx, query, connectionID))
}

func (r *Repository) ListConnections(ctx context.Context) ([]store.Connection, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT connection_id, domain_id, name, engine, host, port, database_name, username, password, params, created_at, updated_at
FROM connection
ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	connections := make([]store.Connection, 0)
	for rows.Next() {
		connection, err := r.scanConnection(rows)
		if err != nil {
			return nil, err
		}
		connections = append(connections, connection)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connection rows: %w", err)
	}
	return connections, nil
}

func (r *Repository) UpdateConnection(ctx context.Context, connectionID string, in store.UpdateConnectionInput) (store.Connection, error) {
	current, err := r.GetConnection(ctx, connectionID)
	if err != nil {
		return store.Connection{}, err
	}

	if in.DomainID != nil {
		current.DomainID = *in.DomainID
	}
	if in.Name != nil {
		current.Name = *in.Name
	}
	if in.Host != nil {
		current.Host = *in.Host
	}
	if in.Port != nil {
		current.Port = *in.Port
	}
	if in.DatabaseName != nil {
		current.DatabaseName = *in.DatabaseName
	}
	if in.Username != nil {
		current.Username = *in.Username
	}
	if in.Password != nil {
		current.Password = *in.Password
	}
	if in.Params != nil {
		current.Params = in.Params
	}
	current.UpdatedAt = time.Now().UTC()

	params, err := encodeParams(current.Params)
	if err != nil {
		return store.Connection{}, err
	}

	query := `
UPDATE connection
SET domain_id = ?, name = ?, host = ?, port = ?, database_name = ?, username = ?, password = ?, params = ?, updated_at = ?
WHERE connection_id = ?`
	if _, err := r.db.ExecContext(ctx, query,
		current.DomainID, current.Name, current.Host, current.Port, current.DatabaseName,
		current.Username, current.Password, params, current.UpdatedAt, connectionID,
	); err != nil {
		return store.Connection{}, fmt.Errorf("update connection: %w", err)
	}
	return current, nil
}

func (r *Repository) DeleteConnection(ctx context.Context, connectionID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM connection WHERE connection_id = ?`, connectionID)
	if err != nil {
		return false, fmt.Errorf("delete connection: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete connection rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *Repository) CreateSavedQuery(ctx context.Context, in store.CreateSavedQueryInput) (store.SavedQuery, error) {
	connectionIDs, err := json.Marshal(in.ConnectionIDs)
	if err != nil {
		return store.SavedQuery{}, fmt.Errorf("encode connection ids: %w", err)
	}

	saved := store.SavedQuery{
		ID:            uuid.NewString(),
		Name:          in.Name,
		Description:   in.Description,
		SQL:           in.SQL,
		ConnectionIDs: in.ConnectionIDs,
		CreatedAt:     time.Now().UTC(),
	}

	query := `
INSERT INTO saved_query (query_id, name, description, sql_text, connection_ids, created_at)
VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query,
		saved.ID, saved.Name, saved.Description, saved.SQL, string(connectionIDs), saved.CreatedAt,
	); err != nil {
		return store.SavedQuery{}, fmt.Errorf("create saved query: %w", err)
	}
	return saved, nil
}

func (r *Repository) GetSavedQuery(ctx context.Context, queryID string) (store.SavedQuery, error) {
	query := `
SELECT query_id, name, description, sql_text, connection_ids, created_at
FROM saved_query
WHERE query_id = ?`

	var saved store.SavedQuery
	var connectionIDs string
	if err := r.db.QueryRowContext(ctx, query, queryID).Scan(
		&saved.ID, &saved.Name, &saved.Description, &saved.SQL, &connectionIDs, &saved.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.SavedQuery{}, store.ErrNotFound
		}
		return store.SavedQuery{}, fmt.Errorf("get saved query: %w", err)
	}
	if err := json.Unmarshal([]byte(connectionIDs), &saved.ConnectionIDs); err != nil {
		return store.SavedQuery{}, fmt.Errorf("decode connection ids: %w", err)
	}
	return saved, nil
}

func (r *Repository) ListSavedQueries(ctx context.Context) ([]store.SavedQuery, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT query_id, name, description, sql_text, connection_ids, created_at
FROM saved_query
ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list saved queries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	queries := make([]store.SavedQuery, 0)
	for rows.Next() {
		var saved store.SavedQuery
		var connectionIDs string
		if err := rows.Scan(&saved.ID, &saved.Name, &saved.Description, &saved.SQL, &connectionIDs, &saved.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan saved query row: %w", err)
		}
		if err := json.Unmarshal([]byte(connectionIDs), &saved.ConnectionIDs); err != nil {
			return nil, fmt.Errorf("decode connection ids: %w", err)
		}
		queries = append(queries, saved)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate saved query rows: %w", err)
	}
	return queries, nil
}

func (r *Repository) DeleteSavedQuery(ctx context.Context, queryID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM saved_query WHERE query_id = ?`, queryID)
	if err != nil {
		return false, fmt.Errorf("delete saved query: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete saved query rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *Repository) InsertHistory(ctx context.Context, in store.InsertHistoryInput) (store.HistoryEntry, error) {
	connectionIDs, err := json.Marshal(in.ConnectionIDs)
	if err != nil {
		return store.HistoryEntry{}, fmt.Errorf("encode connection ids: %w", err)
	}

	entry := store.HistoryEntry{
		Query:           in.Query,
		ConnectionIDs:   in.ConnectionIDs,
		Status:          in.Status,
		ErrorMessage:    in.ErrorMessage,
		RowCount:        in.RowCount,
		ExecutionTimeMs: in.ExecutionTimeMs,
		CreatedAt:       time.Now().UTC(),
	}

	query := `
INSERT INTO query_history (query, connection_ids, status, error_message, row_count, execution_time_ms, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, query,
		entry.Query, string(connectionIDs), entry.Status, entry.ErrorMessage,
		entry.RowCount, entry.ExecutionTimeMs, entry.CreatedAt,
	)
	if err != nil {
		return store.HistoryEntry{}, fmt.Errorf("insert history: %w", err)
	}
	entry.ID, err = result.LastInsertId()
	if err != nil {
		return store.HistoryEntry{}, fmt.Errorf("history insert id: %w", err)
	}
	return entry, nil
}

func (r *Repository) ListHistory(ctx context.Context, limit int) ([]store.HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT history_id, query, connection_ids, status, error_message, row_count, execution_time_ms, created_at
FROM query_history
ORDER BY history_id DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]store.HistoryEntry, 0)
	for rows.Next() {
		var entry store.HistoryEntry
		var connectionIDs string
		if err := rows.Scan(
			&entry.ID, &entry.Query, &connectionIDs, &entry.Status, &entry.ErrorMessage,
			&entry.RowCount, &entry.ExecutionTimeMs, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		if err := json.Unmarshal([]byte(connectionIDs), &entry.ConnectionIDs); err != nil {
			return nil, fmt.Errorf("decode connection ids: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanConnection(row rowScanner) (store.Connection, error) {
	var connection store.Connection
	var params string
	if err := row.Scan(
		&connection.ID, &connection.DomainID, &connection.Name, &connection.Engine, &connection.Host, &connection.Port,
		&connection.DatabaseName, &connection.Username, &connection.Password, &params,
		&connection.CreatedAt, &connection.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Connection{}, store.ErrNotFound
		}
		return store.Connection{}, fmt.Errorf("scan connection: %w", err)
	}
	if err := json.Unmarshal([]byte(params), &connection.Params); err != nil {
		return store.Connection{}, fmt.Errorf("decode connection params: %w", err)
	}
	return connection, nil
}

func encodeParams(params map[string]string) (string, error) {
	if params == nil {
		return "{}", nil
	}
	encoded, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encode connection params: %w", err)
	}
	return string(encoded), nil
}
