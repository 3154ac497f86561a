package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/starford/flowcrm/internal/models"
	"github.com/starford/flowcrm/internal/testutil"
)

// testEnv builds a router over testutil.Service. A non-empty authToken
// enables token mode.
func testEnv(t *testing.T, authToken string) http.Handler {
	t.Helper()
	return testEnvWithSSE(t, authToken, nil)
}

func testEnvWithSSE(t *testing.T, authToken string, sseHandler http.Handler) http.Handler {
	t.Helper()
	svc, _ := testutil.Service(t)
	return NewRouter(svc, authToken != "", authToken, sseHandler)
}

func do(t *testing.T, h http.Handler, method, target string, body any, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

var bigDealsView = map[string]any{
	"name": "Big deals",
	"type": "deals",
	"filters": []map[string]any{
		{"id": 1, "field": "value", "operator": "greaterThan", "value": 1000, "logic": nil},
		{"id": 2, "field": "probability", "operator": "greaterThan", "value": 50, "logic": "AND"},
	},
}

func TestCreateAndGetView(t *testing.T) {
	router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/views", bigDealsView)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	created := decode[models.SavedView](t, w)
	if created.ID != 1 || created.CreatedAt.IsZero() || w.Header().Get("ETag") == "" {
		t.Errorf("created = %+v, etag %q", created, w.Header().Get("ETag"))
	}

	w = do(t, router, http.MethodGet, "/views/1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	got := decode[models.SavedView](t, w)
	if got.Name != "Big deals" || len(got.Filters) != 2 {
		t.Errorf("got = %+v", got)
	}
	if !strings.Contains(w.Body.String(), `"id":1,"field":"value"`) {
		t.Errorf("numeric rule id not preserved: %s", w.Body.String())
	}
}

func TestCreateView_Invalid(t *testing.T) {
	router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/views", map[string]any{"name": " ", "type": "deals"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank name = %d, want 400", w.Code)
	}
	w = do(t, router, http.MethodPost, "/views", map[string]any{
		"name": "x", "type": "contacts",
		"filters": []map[string]any{{"field": "salary", "operator": "equals", "value": 1}},
	})
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "salary") {
		t.Errorf("unknown field = %d %s", w.Code, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodPost, "/views", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON = %d, want 400", rec.Code)
	}
}

func TestListViews_ScopedByType(t *testing.T) {
	router := testEnv(t, "")
	do(t, router, http.MethodPost, "/views", bigDealsView)
	do(t, router, http.MethodPost, "/views", map[string]any{"name": "Everyone", "type": "contacts"})

	w := do(t, router, http.MethodGet, "/views?type=deals", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode[ViewListResponse](t, w)
	if len(resp.Views) != 1 || resp.Views[0].Type != models.ViewDeals {
		t.Errorf("deal views = %+v", resp.Views)
	}

	w = do(t, router, http.MethodGet, "/views", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing type = %d, want 400", w.Code)
	}
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	router := testEnv(t, "")
	w := do(t, router, http.MethodPost, "/views", bigDealsView)
	etag := w.Header().Get("ETag")

	w = do(t, router, http.MethodPut, "/views/1", map[string]any{"name": "Renamed"}, "If-Match", `"stale"`)
	if w.Code != http.StatusConflict {
		t.Errorf("stale If-Match = %d, want 409", w.Code)
	}

	w = do(t, router, http.MethodPut, "/views/1", map[string]any{"name": "Renamed"}, "If-Match", etag)
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d, body = %s", w.Code, w.Body.String())
	}
	got := decode[models.SavedView](t, w)
	if got.Name != "Renamed" || len(got.Filters) != 2 {
		t.Errorf("updated = %+v", got)
	}
	if w.Header().Get("ETag") == etag {
		t.Error("ETag unchanged after update")
	}
}

func TestUpdateWithoutIfMatch(t *testing.T) {
	router := testEnv(t, "")
	do(t, router, http.MethodPost, "/views", bigDealsView)

	w := do(t, router, http.MethodPut, "/views/1", map[string]any{"description": "no lock"})
	if w.Code != http.StatusOK {
		t.Errorf("update without If-Match = %d", w.Code)
	}
}

func TestViewNotFound(t *testing.T) {
	router := testEnv(t, "")
	for _, tc := range []struct{ method, target string }{
		{http.MethodGet, "/views/9"},
		{http.MethodPut, "/views/9"},
		{http.MethodDelete, "/views/9"},
	} {
		w := do(t, router, tc.method, tc.target, map[string]any{})
		if w.Code != http.StatusNotFound {
			t.Errorf("%s %s = %d, want 404", tc.method, tc.target, w.Code)
		}
	}

	w := do(t, router, http.MethodGet, "/views/abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-numeric id = %d, want 400", w.Code)
	}
}

func TestDeleteView(t *testing.T) {
	router := testEnv(t, "")
	do(t, router, http.MethodPost, "/views", bigDealsView)

	w := do(t, router, http.MethodDelete, "/views/1", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	w = do(t, router, http.MethodGet, "/views/1", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", w.Code)
	}
}

func TestFilterDeals_AdHoc(t *testing.T) {
	router := testEnv(t, "")
	w := do(t, router, http.MethodPost, "/deals/filter", map[string]any{"rules": bigDealsView["filters"]})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[DealListResponse](t, w)
	if resp.Total != 1 || resp.Deals[0].Value != 5000 {
		t.Errorf("deals = %+v", resp)
	}
}

func TestListDeals_ThroughSavedView(t *testing.T) {
	router := testEnv(t, "")
	do(t, router, http.MethodPost, "/views", bigDealsView)

	w := do(t, router, http.MethodGet, "/deals?view=1", nil)
	resp := decode[DealListResponse](t, w)
	if w.Code != http.StatusOK || resp.Total != 1 {
		t.Errorf("status %d, deals = %+v", w.Code, resp)
	}

	w = do(t, router, http.MethodGet, "/deals", nil)
	if resp := decode[DealListResponse](t, w); resp.Total != 3 {
		t.Errorf("unfiltered total = %d, want 3", resp.Total)
	}

	w = do(t, router, http.MethodGet, "/contacts?view=1", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("deal view on contacts = %d, want 400", w.Code)
	}
	w = do(t, router, http.MethodGet, "/deals?view=x", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad view param = %d, want 400", w.Code)
	}
}

func TestListContacts_QuickSearch(t *testing.T) {
	router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/contacts?q=ACME", nil)
	resp := decode[ContactListResponse](t, w)
	if resp.Total != 1 || resp.Contacts[0].Name != "Mike Chen" {
		t.Errorf("contacts = %+v", resp)
	}
}

func TestSchemaEndpoint(t *testing.T) {
	router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/schema/contacts", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode[SchemaResponse](t, w)
	if resp.Type != models.ViewContacts || len(resp.Fields) == 0 {
		t.Errorf("schema = %+v", resp)
	}

	w = do(t, router, http.MethodGet, "/schema/tasks", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown type = %d, want 404", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router := testEnv(t, "secret123")
	w := do(t, router, http.MethodPost, "/views", bigDealsView, "Authorization", "Bearer secret123")
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	router := testEnv(t, "secret123")
	w := do(t, router, http.MethodGet, "/views?type=deals", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	router := testEnv(t, "secret123")
	w := do(t, router, http.MethodGet, "/views?type=deals", nil, "Authorization", "Bearer wrong")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/views?type=deals", nil)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	sse := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	router := testEnvWithSSE(t, "tok", sse)
	if w := do(t, router, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/events", nil, "Authorization", "Bearer tok"); w.Code != http.StatusOK {
		t.Errorf("SSE with token = %d, want 200", w.Code)
	}

	router = testEnvWithSSE(t, "", sse)
	if w := do(t, router, http.MethodGet, "/events", nil); w.Code != http.StatusOK {
		t.Errorf("SSE auth disabled = %d, want 200", w.Code)
	}
}
