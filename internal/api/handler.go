package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fedquery/fedquery/internal/adapter"
	"github.com/fedquery/fedquery/internal/config"
	"github.com/fedquery/fedquery/internal/federation"
	"github.com/fedquery/fedquery/internal/nl2sql"
	"github.com/fedquery/fedquery/internal/observability"
	"github.com/fedquery/fedquery/internal/store"
)

type ReadinessCheck func(ctx context.Context) error

// FederationRunner executes one federated query end to end.
type FederationRunner interface {
	Execute(ctx context.Context, request federation.Request) (federation.Response, error)
}

// AdapterEvictor drops a pooled adapter after its connection record changes.
type AdapterEvictor interface {
	Evict(connectionID string)
}

// SchemaProvider introspects one connection's tables, reporting whether the
// result came from cache.
type SchemaProvider interface {
	Metadata(ctx context.Context, connectionID string, refresh bool) ([]adapter.TableMetadata, bool, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Store             store.Repository
	Federator         FederationRunner
	Adapters          AdapterEvictor
	Schemas           SchemaProvider
	QueryTranslator   nl2sql.Translator
	Federation        config.FederationConfig
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	protected := http.NewServeMux()
	protected.HandleFunc("POST /v1/federate", func(w http.ResponseWriter, r *http.Request) {
		handleFederate(deps, w, r)
	})
	protected.HandleFunc("POST /v1/federate/translate", func(w http.ResponseWriter, r *http.Request) {
		handleTranslate(deps, w, r)
	})
	protected.HandleFunc("GET /v1/connections", func(w http.ResponseWriter, r *http.Request) {
		handleListConnections(deps, w, r)
	})
	protected.HandleFunc("POST /v1/connections", func(w http.ResponseWriter, r *http.Request) {
		handleCreateConnection(deps, w, r)
	})
	protected.HandleFunc("GET /v1/connections/{id}", func(w http.ResponseWriter, r *http.Request) {
		handleGetConnection(deps, w, r)
	})
	protected.HandleFunc("PUT /v1/connections/{id}", func(w http.ResponseWriter, r *http.Request) {
		handleUpdateConnection(deps, w, r)
	})
	protected.HandleFunc("DELETE /v1/connections/{id}", func(w http.ResponseWriter, r *http.Request) {
		handleDeleteConnection(deps, w, r)
	})
	protected.HandleFunc("GET /v1/connections/{id}/metadata", func(w http.ResponseWriter, r *http.Request) {
		handleConnectionMetadata(deps, w, r)
	})
	protected.HandleFunc("GET /v1/domains", func(w http.ResponseWriter, r *http.Request) {
		handleListDomains(deps, w, r)
	})
	protected.HandleFunc("POST /v1/domains", func(w http.ResponseWriter, r *http.Request) {
		handleCreateDomain(deps, w, r)
	})
	protected.HandleFunc("GET /v1/domains/{id}", func(w http.ResponseWriter, r *http.Request) {
		handleGetDomain(deps, w, r)
	})
	protected.HandleFunc("PUT /v1/domains/{id}", func(w http.ResponseWriter, r *http.Request) {
		handleUpdateDomain(deps, w, r)
	})
	protected.HandleFunc("DELETE /v1/domains/{id}", func(w http.ResponseWriter, r *http.Request) {
		handleDeleteDomain(deps, w, r)
	})
	protected.HandleFunc("GET /v1/domains/{id}/connections", func(w http.ResponseWriter, r *http.Request) {
		handleListDomainConnections(deps, w, r)
	})
	protected.HandleFunc("GET /v1/queries", func(w http.ResponseWriter, r *http.Request) {
		handleListSavedQueries(deps, w, r)
	})
	protected.HandleFunc("POST /v1/queries", func(w http.ResponseWriter, r *http.Request) {
		handleCreateSavedQuery(deps, w, r)
	})
	protected.HandleFunc("GET /v1/queries/{id}", func(w http.ResponseWriter, r *http.Request) {
		handleGetSavedQuery(deps, w, r)
	})
	protected.HandleFunc("DELETE /v1/queries/{id}", func(w http.ResponseWriter, r *http.Request) {
		handleDeleteSavedQuery(deps, w, r)
	})
	protected.HandleFunc("GET /v1/history", func(w http.ResponseWriter, r *http.Request) {
		handleListHistory(deps, w, r)
	})

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	mux.Handle("POST /v1/federate", protectedHandler)
	mux.Handle("POST /v1/federate/translate", protectedHandler)
	mux.Handle("GET /v1/connections", protectedHandler)
	mux.Handle("POST /v1/connections", protectedHandler)
	mux.Handle("GET /v1/connections/{id}", protectedHandler)
	mux.Handle("PUT /v1/connections/{id}", protectedHandler)
	mux.Handle("DELETE /v1/connections/{id}", protectedHandler)
	mux.Handle("GET /v1/connections/{id}/metadata", protectedHandler)
	mux.Handle("GET /v1/domains", protectedHandler)
	mux.Handle("POST /v1/domains", protectedHandler)
	mux.Handle("GET /v1/domains/{id}", protectedHandler)
	mux.Handle("PUT /v1/domains/{id}", protectedHandler)
	mux.Handle("DELETE /v1/domains/{id}", protectedHandler)
	mux.Handle("GET /v1/domains/{id}/connections", protectedHandler)
	mux.Handle("GET /v1/queries", protectedHandler)
	mux.Handle("POST /v1/queries", protectedHandler)
	mux.Handle("GET /v1/queries/{id}", protectedHandler)
	mux.Handle("DELETE /v1/queries/{id}", protectedHandler)
	mux.Handle("GET /v1/history", protectedHandler)

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func CheckMetadataStore(repo store.Repository) ReadinessCheck {
	return func(ctx context.Context) error {
		if repo == nil {
			return errors.New("metadata store is not configured")
		}
		return repo.HealthCheck(ctx)
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
