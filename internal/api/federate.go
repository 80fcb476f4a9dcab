package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fedquery/fedquery/internal/auth"
	"github.com/fedquery/fedquery/internal/federation"
	"github.com/fedquery/fedquery/internal/nl2sql"
	"github.com/fedquery/fedquery/internal/store"
)

type federateRequest struct {
	Query           string            `json:"query"`
	ConnectionIDs   []string          `json:"connection_ids"`
	DatabaseAliases map[string]string `json:"database_aliases"`
	TimeoutSecs     int               `json:"timeout_secs"`
	ApplyLimit      *bool             `json:"apply_limit"`
	LimitValue      int               `json:"limit_value"`
}

func handleFederate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Federator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "FEDERATION_NOT_CONFIGURED", "federation dependencies are not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleQueryRunner); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request federateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid federate request body", false, map[string]any{"details": err.Error()})
		return
	}

	if strings.TrimSpace(request.Query) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "query is required", false, nil)
		return
	}
	if !isAllowedSQL(request.Query) {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_NOT_ALLOWED", "only read-only SELECT/WITH queries are allowed", false, nil)
		return
	}
	if len(request.ConnectionIDs) == 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "CONNECTIONS_REQUIRED", "at least one connection id is required", false, nil)
		return
	}
	if max := deps.Federation.MaxSubQueries; max > 0 && len(request.ConnectionIDs) > max {
		writeError(r.Context(), w, http.StatusBadRequest, "TOO_MANY_CONNECTIONS",
			fmt.Sprintf("at most %d connections per query", max), false, nil)
		return
	}

	timeout := deps.Federation.DefaultTimeout
	if request.TimeoutSecs > 0 {
		timeout = time.Duration(request.TimeoutSecs) * time.Second
	}
	applyLimit := deps.Federation.ApplyLimitDefault
	if request.ApplyLimit != nil {
		applyLimit = *request.ApplyLimit
	}
	limitValue := deps.Federation.DefaultLimit
	if request.LimitValue > 0 {
		limitValue = request.LimitValue
	}

	response, err := deps.Federator.Execute(r.Context(), federation.Request{
		Query:           request.Query,
		ConnectionIDs:   request.ConnectionIDs,
		DatabaseAliases: request.DatabaseAliases,
		Timeout:         timeout,
		ApplyLimit:      applyLimit,
		LimitValue:      limitValue,
	})
	recordHistory(deps, r, request, response, err)
	if err != nil {
		writeFederationError(deps, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

func writeFederationError(deps Dependencies, w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *federation.ValidationError
	if errors.As(err, &validationErr) {
		writeError(r.Context(), w, http.StatusBadRequest, "VALIDATION_ERROR", validationErr.Error(), false, nil)
		return
	}
	var sqlErr *federation.InvalidSQLError
	if errors.As(err, &sqlErr) {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_SQL", sqlErr.Error(), false, nil)
		return
	}
	var timeoutErr *federation.TimeoutError
	if errors.As(err, &timeoutErr) {
		writeError(r.Context(), w, http.StatusGatewayTimeout, "SUBQUERY_TIMEOUT", timeoutErr.Error(), true, map[string]any{
			"connection_id": timeoutErr.ConnectionID,
			"timeout":       timeoutErr.Timeout.String(),
		})
		return
	}
	var connErr *federation.ConnectionError
	if errors.As(err, &connErr) {
		writeError(r.Context(), w, http.StatusBadGateway, "CONNECTION_FAILED", connErr.Error(), true, map[string]any{
			"connection_id": connErr.ConnectionID,
		})
		return
	}
	var execErr *federation.ExecutionError
	if errors.As(err, &execErr) {
		writeError(r.Context(), w, http.StatusBadRequest, "EXECUTION_FAILED", execErr.Error(), false, map[string]any{
			"connection_id": execErr.ConnectionID,
		})
		return
	}
	if deps.Logger != nil {
		deps.Logger.ErrorContext(r.Context(), "federation failed", "error", err)
	}
	writeError(r.Context(), w, http.StatusInternalServerError, "FEDERATION_FAILED", "federated query failed", true, map[string]any{"details": err.Error()})
}

// recordHistory logs the execution outcome; history failures must not fail
// the request itself.
func recordHistory(deps Dependencies, r *http.Request, request federateRequest, response federation.Response, execErr error) {
	if deps.Store == nil {
		return
	}
	entry := store.InsertHistoryInput{
		Query:         request.Query,
		ConnectionIDs: request.ConnectionIDs,
		Status:        "success",
	}
	if execErr != nil {
		entry.Status = "error"
		entry.ErrorMessage = execErr.Error()
	} else {
		entry.RowCount = len(response.MergedRows)
		entry.ExecutionTimeMs = response.ExecutionTimeMs
	}
	if _, err := deps.Store.InsertHistory(r.Context(), entry); err != nil && deps.Logger != nil {
		deps.Logger.WarnContext(r.Context(), "history insert failed", "error", err)
	}
}

type translateRequest struct {
	NaturalLanguage string   `json:"natural_language"`
	ConnectionIDs   []string `json:"connection_ids"`
}

func handleTranslate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.QueryTranslator == nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "TRANSLATE_DISABLED", "natural language translation is not enabled", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleQueryRunner); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request translateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid translate request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.NaturalLanguage) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "PROMPT_REQUIRED", "natural_language is required", false, nil)
		return
	}

	connections, err := translateContext(deps, r, request.ConnectionIDs)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "UNKNOWN_CONNECTION", err.Error(), false, nil)
		return
	}

	result, err := deps.QueryTranslator.Translate(r.Context(), nl2sql.Request{
		NaturalLanguage: request.NaturalLanguage,
		Connections:     connections,
	})
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "TRANSLATE_FAILED", "translation failed", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func translateContext(deps Dependencies, r *http.Request, connectionIDs []string) ([]nl2sql.ConnectionContext, error) {
	if deps.Store == nil {
		return nil, nil
	}
	if len(connectionIDs) == 0 {
		all, err := deps.Store.ListConnections(r.Context())
		if err != nil {
			return nil, fmt.Errorf("list connections: %w", err)
		}
		contexts := make([]nl2sql.ConnectionContext, 0, len(all))
		for _, connection := range all {
			contexts = append(contexts, nl2sql.ConnectionContext{
				ConnectionID: connection.ID,
				Engine:       connection.Engine,
				Tables:       connectionTables(deps, r, connection.ID),
			})
		}
		return contexts, nil
	}

	contexts := make([]nl2sql.ConnectionContext, 0, len(connectionIDs))
	for _, connectionID := range connectionIDs {
		connection, err := deps.Store.GetConnection(r.Context(), connectionID)
		if err != nil {
			return nil, fmt.Errorf("connection %q: %w", connectionID, err)
		}
		contexts = append(contexts, nl2sql.ConnectionContext{
			ConnectionID: connection.ID,
			Engine:       connection.Engine,
			Tables:       connectionTables(deps, r, connection.ID),
		})
	}
	return contexts, nil
}

// connectionTables introspects a connection's schema for translation
// context. Introspection failures degrade to an empty table list rather
// than failing the translation.
func connectionTables(deps Dependencies, r *http.Request, connectionID string) []nl2sql.TableContext {
	if deps.Schemas == nil {
		return nil
	}
	tables, _, err := deps.Schemas.Metadata(r.Context(), connectionID, false)
	if err != nil {
		if deps.Logger != nil {
			deps.Logger.Warn("schema introspection skipped", "connection_id", connectionID, "error", err)
		}
		return nil
	}
	contexts := make([]nl2sql.TableContext, 0, len(tables))
	for _, table := range tables {
		columns := make([]string, 0, len(table.Columns))
		for _, column := range table.Columns {
			columns = append(columns, column.Name+" "+column.DataType)
		}
		contexts = append(contexts, nl2sql.TableContext{TableName: table.Name, Columns: columns})
	}
	return contexts
}

func requireRole(r *http.Request, role string) error {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil
	}
	if identity.HasRole(role) || identity.HasRole(auth.RoleAdmin) {
		return nil
	}
	return fmt.Errorf("missing required role %q", role)
}

func isAllowedSQL(sqlText string) bool {
	normalized := strings.ToLower(strings.TrimSpace(sqlText))
	if normalized == "" {
		return false
	}
	return strings.HasPrefix(normalized, "select") || strings.HasPrefix(normalized, "with")
}
