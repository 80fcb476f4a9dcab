package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fedquery/fedquery/internal/adapter"
	"github.com/fedquery/fedquery/internal/store"
)

func TestConnectionMetadata(t *testing.T) {
	st := newMemoryStore()
	connection, err := st.CreateConnection(context.Background(), store.CreateConnectionInput{
		Name: "orders-pg", Engine: adapter.EnginePostgres, Host: "db", Port: 5432,
	})
	if err != nil {
		t.Fatalf("CreateConnection() error = %v", err)
	}
	schemas := &fakeSchemas{
		tables: []adapter.TableMetadata{{
			Schema: "public",
			Name:   "orders",
			Columns: []adapter.ColumnMetadata{
				{Name: "id", DataType: "bigint"},
				{Name: "total", DataType: "numeric", Nullable: true},
			},
		}},
		cached: true,
	}
	cfg := testConfig(t)
	handler := NewHandler(cfg, Dependencies{Logger: testLogger(), Store: st, Schemas: schemas})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/connections/"+connection.ID+"/metadata", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var response struct {
		ConnectionID string                  `json:"connection_id"`
		Engine       string                  `json:"engine"`
		Tables       []adapter.TableMetadata `json:"tables"`
		Cached       bool                    `json:"cached"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.ConnectionID != connection.ID || response.Engine != adapter.EnginePostgres {
		t.Fatalf("response = %+v", response)
	}
	if !response.Cached || len(response.Tables) != 1 || response.Tables[0].Name != "orders" {
		t.Fatalf("tables = %+v, cached = %v", response.Tables, response.Cached)
	}
	if schemas.lastID != connection.ID || schemas.lastFlag {
		t.Fatalf("schemas called with id = %q refresh = %v", schemas.lastID, schemas.lastFlag)
	}
}

func TestConnectionMetadataRefreshFlag(t *testing.T) {
	st := newMemoryStore()
	connection, err := st.CreateConnection(context.Background(), store.CreateConnectionInput{
		Name: "orders-pg", Engine: adapter.EnginePostgres, Host: "db", Port: 5432,
	})
	if err != nil {
		t.Fatalf("CreateConnection() error = %v", err)
	}
	schemas := &fakeSchemas{}
	cfg := testConfig(t)
	handler := NewHandler(cfg, Dependencies{Logger: testLogger(), Store: st, Schemas: schemas})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/connections/"+connection.ID+"/metadata?refresh=true", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if !schemas.lastFlag {
		t.Fatal("refresh=true should bypass the metadata cache")
	}
}

func TestConnectionMetadataUnknownConnection(t *testing.T) {
	cfg := testConfig(t)
	handler := NewHandler(cfg, Dependencies{Logger: testLogger(), Store: newMemoryStore(), Schemas: &fakeSchemas{}})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/connections/missing/metadata", nil))
	if rr.Code != http.StatusNotFound || !strings.Contains(rr.Body.String(), "CONNECTION_NOT_FOUND") {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
}

func TestConnectionMetadataIntrospectionFailure(t *testing.T) {
	st := newMemoryStore()
	connection, err := st.CreateConnection(context.Background(), store.CreateConnectionInput{
		Name: "orders-pg", Engine: adapter.EnginePostgres, Host: "db", Port: 5432,
	})
	if err != nil {
		t.Fatalf("CreateConnection() error = %v", err)
	}
	schemas := &fakeSchemas{err: errors.New("connection refused")}
	cfg := testConfig(t)
	handler := NewHandler(cfg, Dependencies{Logger: testLogger(), Store: st, Schemas: schemas})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/connections/"+connection.ID+"/metadata", nil))
	if rr.Code != http.StatusBadGateway || !strings.Contains(rr.Body.String(), "METADATA_FAILED") {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
}
