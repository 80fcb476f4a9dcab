package api

import (
	"errors"
	"net/http"

	"github.com/fedquery/fedquery/internal/store"
)

// handleConnectionMetadata reports the tables and columns of one registered
// connection, introspected through its adapter. Results come from a TTL
// cache unless ?refresh=true.
func handleConnectionMetadata(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Store == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "STORE_NOT_CONFIGURED", "metadata store is not configured", false, nil)
		return
	}
	if deps.Schemas == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "METADATA_NOT_CONFIGURED", "schema introspection is not configured", false, nil)
		return
	}

	connectionID := r.PathValue("id")
	connection, err := deps.Store.GetConnection(r.Context(), connectionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "CONNECTION_NOT_FOUND", "connection was not found", false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "STORE_ERROR", "failed to load connection", true, map[string]any{"details": err.Error()})
		return
	}

	refresh := r.URL.Query().Get("refresh") == "true"
	tables, cached, err := deps.Schemas.Metadata(r.Context(), connectionID, refresh)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "METADATA_FAILED", "failed to introspect connection schema", true, map[string]any{"details": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"connection_id": connection.ID,
		"engine":        connection.Engine,
		"tables":        tables,
		"cached":        cached,
	})
}
