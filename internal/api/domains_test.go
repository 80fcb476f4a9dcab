package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fedquery/fedquery/internal/store"
)

func TestDomainCRUD(t *testing.T) {
	st := newMemoryStore()
	cfg := testConfig(t)
	handler := NewHandler(cfg, Dependencies{Logger: testLogger(), Store: st})

	createBody := `{"name":"analytics","description":"Warehouse sources"}`
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/domains", strings.NewReader(createBody)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/domains/"+created.ID, nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"connection_count":0`) {
		t.Fatalf("get status = %d, body = %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/domains", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "analytics") {
		t.Fatalf("list status = %d, body = %s", rr.Code, rr.Body.String())
	}

	updateBody := `{"description":"Reporting sources"}`
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/v1/domains/"+created.ID, strings.NewReader(updateBody)))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Reporting sources") {
		t.Fatalf("update status = %d, body = %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/v1/domains/"+created.ID, nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, body = %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/domains/"+created.ID, nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", rr.Code)
	}
}

func TestCreateDomainRejectsInvalidName(t *testing.T) {
	cfg := testConfig(t)
	handler := NewHandler(cfg, Dependencies{Logger: testLogger(), Store: newMemoryStore()})

	for _, body := range []string{
		`{"name":""}`,
		`{"name":"` + strings.Repeat("a", 51) + `"}`,
		`{"name":"bad;name"}`,
	} {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/domains", strings.NewReader(body)))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("body %s: status = %d, want 400", body, rr.Code)
		}
	}
}

func TestCreateDomainRejectsLongDescription(t *testing.T) {
	cfg := testConfig(t)
	handler := NewHandler(cfg, Dependencies{Logger: testLogger(), Store: newMemoryStore()})

	body := `{"name":"ok","description":"` + strings.Repeat("d", 501) + `"}`
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/domains", strings.NewReader(body)))
	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), "INVALID_DOMAIN_DESCRIPTION") {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
}

func TestDeleteDefaultDomainRejected(t *testing.T) {
	cfg := testConfig(t)
	handler := NewHandler(cfg, Dependencies{Logger: testLogger(), Store: newMemoryStore()})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/v1/domains/"+store.DefaultDomainID, nil))
	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), "DOMAIN_PROTECTED") {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
}

func TestDeleteDomainEvictsScopedConnections(t *testing.T) {
	st := newMemoryStore()
	evictor := &fakeEvictor{}
	cfg := testConfig(t)
	handler := NewHandler(cfg, Dependencies{Logger: testLogger(), Store: st, Adapters: evictor})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/domains", strings.NewReader(`{"name":"staging"}`)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create domain status = %d", rr.Code)
	}
	var domain struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &domain); err != nil {
		t.Fatalf("decode domain: %v", err)
	}

	connBody := `{"name":"staging-pg","domain_id":"` + domain.ID + `","engine":"postgresql","host":"db","port":5432}`
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/connections", strings.NewReader(connBody)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create connection status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var connection struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &connection); err != nil {
		t.Fatalf("decode connection: %v", err)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/domains/"+domain.ID+"/connections", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), connection.ID) {
		t.Fatalf("domain connections status = %d, body = %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/v1/domains/"+domain.ID, nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete domain status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if len(evictor.evicted) != 1 || evictor.evicted[0] != connection.ID {
		t.Fatalf("evicted = %v, want [%s]", evictor.evicted, connection.ID)
	}
	if _, err := st.GetConnection(context.Background(), connection.ID); err == nil {
		t.Fatal("scoped connection should be deleted with its domain")
	}
}

func TestCreateConnectionRejectsUnknownDomain(t *testing.T) {
	cfg := testConfig(t)
	handler := NewHandler(cfg, Dependencies{Logger: testLogger(), Store: newMemoryStore()})

	body := `{"name":"x","domain_id":"nope","engine":"postgresql","host":"db","port":5432}`
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/connections", strings.NewReader(body)))
	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), "UNKNOWN_DOMAIN") {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
}
