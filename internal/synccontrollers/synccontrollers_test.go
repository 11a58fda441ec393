package synccontrollers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
)

func newTestHandlers() *Handlers {
	return NewHandlers(fakeAcquirer{conn: newFakeConn()}, "main")
}

func withEntity(r *http.Request, entity string) *http.Request {
	return mux.SetURLVars(r, map[string]string{"entity": entity})
}

func TestSyncUnknownEntityIsBadRequest(t *testing.T) {
	h := newTestHandlers()

	req := withEntity(httptest.NewRequest(http.MethodPost, "/sync/widgets", bytes.NewBufferString(`{}`)), "widgets")
	rec := httptest.NewRecorder()
	h.Sync(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown entity, got %d", rec.Code)
	}
}

func TestSyncProductsAllNewItemsSucceed(t *testing.T) {
	h := newTestHandlers()

	body := `{"products":[{"id":1,"Name":"Widget","Price":9.99}]}`
	req := withEntity(httptest.NewRequest(http.MethodPost, "/sync/products", bytes.NewBufferString(body)), "products")
	rec := httptest.NewRecorder()
	h.Sync(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp syncResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !resp.Success || resp.Processed != 1 || resp.SuccessCount != 1 || resp.Failed != 0 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestSyncOrderItemsPathAcceptsItemsArrayKey(t *testing.T) {
	h := newTestHandlers()

	// URL path segment is "orderitems" (spec.md §6.1) but the JSON body
	// array key is "items" (spec.md §3.4) — the two are not the same word.
	body := `{"items":[{"id":1,"OrderId":5,"ProductId":7,"Quantity":2,"Price":4.5}]}`
	req := withEntity(httptest.NewRequest(http.MethodPost, "/sync/orderitems", bytes.NewBufferString(body)), "orderitems")
	rec := httptest.NewRecorder()
	h.Sync(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp syncResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !resp.Success || resp.Processed != 1 || resp.SuccessCount != 1 || resp.Failed != 0 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestSyncInvalidBodyIsBadRequest(t *testing.T) {
	h := newTestHandlers()

	req := withEntity(httptest.NewRequest(http.MethodPost, "/sync/products", bytes.NewBufferString("not json")), "products")
	rec := httptest.NewRecorder()
	h.Sync(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestChangesRequiresLastSync(t *testing.T) {
	h := newTestHandlers()

	req := withEntity(httptest.NewRequest(http.MethodGet, "/sync/products/changes", nil), "products")
	rec := httptest.NewRecorder()
	h.Changes(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing lastSync, got %d", rec.Code)
	}
}

func TestChangesReturnsRawJSON(t *testing.T) {
	h := newTestHandlers()

	req := withEntity(httptest.NewRequest(http.MethodGet, "/sync/products/changes?lastSync=1970-01-01T00:00:00Z", nil), "products")
	rec := httptest.NewRecorder()
	h.Changes(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != `[{"id":1}]` {
		t.Errorf("expected raw changes JSON passthrough, got %s", rec.Body.String())
	}
}

func TestChangesInvalidTimestampIsBadRequest(t *testing.T) {
	h := newTestHandlers()

	req := withEntity(httptest.NewRequest(http.MethodGet, "/sync/products/changes?lastSync=not-a-date", nil), "products")
	rec := httptest.NewRecorder()
	h.Changes(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid lastSync, got %d", rec.Code)
	}
}
