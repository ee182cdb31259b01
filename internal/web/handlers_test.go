package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ixoworld/datavault/internal/query"
	"github.com/ixoworld/datavault/internal/vault"
)

func newTestHandlers(t *testing.T) (*Handlers, *vault.Store) {
	t.Helper()
	store := vault.NewStore(100, 51200, 10000, 30*time.Minute, 5*time.Minute)
	engine, err := query.NewEngine(store)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	t.Cleanup(func() {
		engine.Close()
		store.Close()
	})
	return NewHandlers(store, engine), store
}

func TestHandleRetrieve_Success(t *testing.T) {
	h, store := newTestHandlers(t)
	handle, envelope, err := store.Put([]vault.Row{{{Key: "id", Value: float64(1)}}}, "owner-1", "sess-1", "search_orders", vault.DataSource{ToolName: "search_orders"}, nil)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/data-vault/"+handle, nil)
	req.SetPathValue("handleId", handle)
	req.Header.Set("x-user-did", "owner-1")
	req.Header.Set("x-data-token", envelope.FetchToken)
	rec := httptest.NewRecorder()

	h.HandleRetrieve(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	var body retrieveResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if !body.Success || body.RowCount != 1 {
		t.Errorf("body = %+v, want success with rowCount 1", body)
	}
}

func TestHandleRetrieve_MissingHeadersReturns401(t *testing.T) {
	h, store := newTestHandlers(t)
	handle, _, err := store.Put([]vault.Row{{{Key: "id", Value: float64(1)}}}, "owner-1", "sess-1", "t", vault.DataSource{}, nil)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/data-vault/"+handle, nil)
	req.SetPathValue("handleId", handle)
	rec := httptest.NewRecorder()

	h.HandleRetrieve(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestHandleRetrieve_WrongTokenReturns404(t *testing.T) {
	h, store := newTestHandlers(t)
	handle, _, err := store.Put([]vault.Row{{{Key: "id", Value: float64(1)}}}, "owner-1", "sess-1", "t", vault.DataSource{}, nil)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/data-vault/"+handle, nil)
	req.SetPathValue("handleId", handle)
	req.Header.Set("x-user-did", "owner-1")
	req.Header.Set("x-data-token", "wrong-token")
	rec := httptest.NewRecorder()

	h.HandleRetrieve(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleRetrieve_UnknownHandleReturns404(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/data-vault/vault-nonexistent", nil)
	req.SetPathValue("handleId", "vault-nonexistent")
	req.Header.Set("x-user-did", "owner-1")
	req.Header.Set("x-data-token", "some-token")
	rec := httptest.NewRecorder()

	h.HandleRetrieve(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleHealthz(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	h.HandleHealthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
