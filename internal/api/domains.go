package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode"

	"github.com/fedquery/fedquery/internal/auth"
	"github.com/fedquery/fedquery/internal/store"
)

const (
	maxDomainNameLength        = 50
	maxDomainDescriptionLength = 500
)

type createDomainRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updateDomainRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// validDomainName accepts 1-50 characters of letters, digits, spaces,
// hyphens and underscores.
func validDomainName(name string) bool {
	if name == "" || len(name) > maxDomainNameLength {
		return false
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != ' ' && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

func handleListDomains(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Store == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "STORE_NOT_CONFIGURED", "metadata store is not configured", false, nil)
		return
	}
	domains, err := deps.Store.ListDomains(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "STORE_ERROR", "failed to list domains", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"domains": domains})
}

func handleCreateDomain(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Store == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "STORE_NOT_CONFIGURED", "metadata store is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request createDomainRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid domain request body", false, map[string]any{"details": err.Error()})
		return
	}
	request.Name = strings.TrimSpace(request.Name)
	if request.Name == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "NAME_REQUIRED", "name is required", false, nil)
		return
	}
	if !validDomainName(request.Name) {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_DOMAIN_NAME", "name must be at most 50 characters of letters, digits, spaces, hyphens or underscores", false, nil)
		return
	}
	if len(request.Description) > maxDomainDescriptionLength {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_DOMAIN_DESCRIPTION", "description must be at most 500 characters", false, nil)
		return
	}

	domain, err := deps.Store.CreateDomain(r.Context(), store.CreateDomainInput{
		Name:        request.Name,
		Description: request.Description,
	})
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "STORE_ERROR", "failed to create domain", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, domain)
}

func handleGetDomain(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Store == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "STORE_NOT_CONFIGURED", "metadata store is not configured", false, nil)
		return
	}
	domainID := r.PathValue("id")
	domain, err := deps.Store.GetDomain(r.Context(), domainID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "DOMAIN_NOT_FOUND", "domain was not found", false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "STORE_ERROR", "failed to load domain", true, map[string]any{"details": err.Error()})
		return
	}
	count, err := deps.Store.CountDomainConnections(r.Context(), domainID)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "STORE_ERROR", "failed to count domain connections", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":               domain.ID,
		"name":             domain.Name,
		"description":      domain.Description,
		"created_at":       domain.CreatedAt,
		"updated_at":       domain.UpdatedAt,
		"connection_count": count,
	})
}

func handleUpdateDomain(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Store == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "STORE_NOT_CONFIGURED", "metadata store is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request updateDomainRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid domain request body", false, map[string]any{"details": err.Error()})
		return
	}
	if request.Name != nil {
		trimmed := strings.TrimSpace(*request.Name)
		if !validDomainName(trimmed) {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_DOMAIN_NAME", "name must be at most 50 characters of letters, digits, spaces, hyphens or underscores", false, nil)
			return
		}
		request.Name = &trimmed
	}
	if request.Description != nil && len(*request.Description) > maxDomainDescriptionLength {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_DOMAIN_DESCRIPTION", "description must be at most 500 characters", false, nil)
		return
	}

	domain, err := deps.Store.UpdateDomain(r.Context(), r.PathValue("id"), store.UpdateDomainInput{
		Name:        request.Name,
		Description: request.Description,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "DOMAIN_NOT_FOUND", "domain was not found", false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "STORE_ERROR", "failed to update domain", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, domain)
}

func handleDeleteDomain(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Store == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "STORE_NOT_CONFIGURED", "metadata store is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	domainID := r.PathValue("id")
	if domainID == store.DefaultDomainID {
		writeError(r.Context(), w, http.StatusBadRequest, "DOMAIN_PROTECTED", "the default domain cannot be deleted", false, nil)
		return
	}

	// Deleting a domain removes its connections, so their pooled adapters
	// have to go too.
	scoped, err := deps.Store.ListConnectionsByDomain(r.Context(), domainID)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "STORE_ERROR", "failed to list domain connections", true, map[string]any{"details": err.Error()})
		return
	}

	deleted, err := deps.Store.DeleteDomain(r.Context(), domainID)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "STORE_ERROR", "failed to delete domain", true, map[string]any{"details": err.Error()})
		return
	}
	if !deleted {
		writeError(r.Context(), w, http.StatusNotFound, "DOMAIN_NOT_FOUND", "domain was not found", false, nil)
		return
	}
	if deps.Adapters != nil {
		for _, connection := range scoped {
			deps.Adapters.Evict(connection.ID)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleListDomainConnections(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Store == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "STORE_NOT_CONFIGURED", "metadata store is not configured", false, nil)
		return
	}
	domainID := r.PathValue("id")
	if _, err := deps.Store.GetDomain(r.Context(), domainID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "DOMAIN_NOT_FOUND", "domain was not found", false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "STORE_ERROR", "failed to load domain", true, map[string]any{"details": err.Error()})
		return
	}
	connections, err := deps.Store.ListConnectionsByDomain(r.Context(), domainID)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "STORE_ERROR", "failed to list domain connections", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"connections": connections})
}

// domainExists verifies a referenced domain and writes the error response
// itself when it does not resolve.
func domainExists(deps Dependencies, r *http.Request, domainID string, w http.ResponseWriter) bool {
	if _, err := deps.Store.GetDomain(r.Context(), domainID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(r.Context(), w, http.StatusBadRequest, "UNKNOWN_DOMAIN", "domain was not found", false, map[string]any{"domain_id": domainID})
			return false
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "STORE_ERROR", "failed to load domain", true, map[string]any{"details": err.Error()})
		return false
	}
	return true
}
