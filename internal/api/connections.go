package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/fedquery/fedquery/internal/adapter"
	"github.com/fedquery/fedquery/internal/auth"
	"github.com/fedquery/fedquery/internal/store"
)

type createConnectionRequest struct {
	Name         string            `json:"name"`
	DomainID     string            `json:"domain_id"`
	Engine       string            `json:"engine"`
	Host         string            `json:"host"`
	Port         int               `json:"port"`
	DatabaseName string            `json:"database_name"`
	Username     string            `json:"username"`
	Password     string            `json:"password"`
	Params       map[string]string `json:"params"`
}

type updateConnectionRequest struct {
	Name         *string           `json:"name"`
	DomainID     *string           `json:"domain_id"`
	Host         *string           `json:"host"`
	Port         *int              `json:"port"`
	DatabaseName *string           `json:"database_name"`
	Username     *string           `json:"username"`
	Password     *string           `json:"password"`
	Params       map[string]string `json:"params"`
}

func supportedEngine(engine string) bool {
	switch engine {
	case adapter.EnginePostgres, adapter.EngineMySQL, adapter.EngineDoris, adapter.EngineDruid:
		return true
	}
	return false
}

func handleCreateConnection(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Store == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "STORE_NOT_CONFIGURED", "metadata store is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request createConnectionRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid connection request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Name) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "NAME_REQUIRED", "name is required", false, nil)
		return
	}
	if !supportedEngine(request.Engine) {
		writeError(r.Context(), w, http.StatusBadRequest, "UNSUPPORTED_ENGINE", "engine must be one of postgresql, mysql, doris, druid", false, map[string]any{"engine": request.Engine})
		return
	}
	if strings.TrimSpace(request.Host) == "" || request.Port <= 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "ENDPOINT_REQUIRED", "host and port are required", false, nil)
		return
	}
	if request.DomainID != "" {
		if !domainExists(deps, r, request.DomainID, w) {
			return
		}
	}

	connection, err := deps.Store.CreateConnection(r.Context(), store.CreateConnectionInput{
		DomainID:     request.DomainID,
		Name:         request.Name,
		Engine:       request.Engine,
		Host:         request.Host,
		Port:         request.Port,
		DatabaseName: request.DatabaseName,
		Username:     request.Username,
		Password:     request.Password,
		Params:       request.Params,
	})
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "STORE_ERROR", "failed to create connection", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, connection)
}

func handleListConnections(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Store == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "STORE_NOT_CONFIGURED", "metadata store is not configured", false, nil)
		return
	}
	connections, err := deps.Store.ListConnections(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "STORE_ERROR", "failed to list connections", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"connections": connections})
}

func handleGetConnection(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Store == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "STORE_NOT_CONFIGURED", "metadata store is not configured", false, nil)
		return
	}
	connection, err := deps.Store.GetConnection(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "CONNECTION_NOT_FOUND", "connection was not found", false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "STORE_ERROR", "failed to load connection", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, connection)
}

func handleUpdateConnection(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Store == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "STORE_NOT_CONFIGURED", "metadata store is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request updateConnectionRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid connection request body", false, map[string]any{"details": err.Error()})
		return
	}

	if request.DomainID != nil {
		if !domainExists(deps, r, *request.DomainID, w) {
			return
		}
	}

	connectionID := r.PathValue("id")
	connection, err := deps.Store.UpdateConnection(r.Context(), connectionID, store.UpdateConnectionInput{
		DomainID:     request.DomainID,
		Name:         request.Name,
		Host:         request.Host,
		Port:         request.Port,
		DatabaseName: request.DatabaseName,
		Username:     request.Username,
		Password:     request.Password,
		Params:       request.Params,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "CONNECTION_NOT_FOUND", "connection was not found", false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "STORE_ERROR", "failed to update connection", true, map[string]any{"details": err.Error()})
		return
	}
	if deps.Adapters != nil {
		deps.Adapters.Evict(connectionID)
	}
	writeJSON(w, http.StatusOK, connection)
}

func handleDeleteConnection(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Store == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "STORE_NOT_CONFIGURED", "metadata store is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	connectionID := r.PathValue("id")
	deleted, err := deps.Store.DeleteConnection(r.Context(), connectionID)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "STORE_ERROR", "failed to delete connection", true, map[string]any{"details": err.Error()})
		return
	}
	if !deleted {
		writeError(r.Context(), w, http.StatusNotFound, "CONNECTION_NOT_FOUND", "connection was not found", false, nil)
		return
	}
	if deps.Adapters != nil {
		deps.Adapters.Evict(connectionID)
	}
	w.WriteHeader(http.StatusNoContent)
}
