package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rhuss/relais/pkg/api"
	"github.com/rhuss/relais/pkg/auth"
	"github.com/rhuss/relais/pkg/config"
	"github.com/rhuss/relais/pkg/function"
	"github.com/rhuss/relais/pkg/source"
	"github.com/rhuss/relais/pkg/storage"
	"github.com/rhuss/relais/pkg/storage/memory"
)

// fakeSource is a minimal Source for gateway tests.
type fakeSource struct {
	info source.Info
	caps []source.Capability
}

func (f *fakeSource) Info() source.Info                 { return f.info }
func (f *fakeSource) Capabilities() []source.Capability { return f.caps }

func testRegistry() *source.Registry {
	reg := source.NewRegistry()
	reg.Initialize(&config.Sources{}, []source.Factory{
		{
			Name:  "metal",
			Class: source.ClassDataSource,
			New: func(*config.Sources) (source.Source, error) {
				return &fakeSource{
					info: source.Info{Name: "metal", DisplayName: "Metal Price", Description: "Gold price index"},
					caps: []source.Capability{{
						Name:    "get_gold_price",
						Summary: "Returns the current gold index",
					}},
				}, nil
			},
		},
	})
	return reg
}

// executorStub runs a backend that records decoded requests and replies
// with the given result.
func executorStub(t *testing.T, reply api.CallResult) (*httptest.Server, *[]api.CallRequest) {
	t.Helper()
	var requests []api.CallRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req api.CallRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		requests = append(requests, req)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(srv.Close)

	return srv, &requests
}

// newTestGateway builds a gateway over one basic and one mcp function,
// both pointed at the stub executor.
func newTestGateway(t *testing.T, reply api.CallResult, opts ...Option) (*Gateway, *[]api.CallRequest) {
	t.Helper()
	srv, requests := executorStub(t, reply)

	descriptors := []function.Descriptor{
		{Name: "get_stock_price", Kind: function.KindBasic, Parameters: []function.Parameter{{Name: "symbol"}}},
		{Name: "search_tweets", Kind: function.KindMCP},
	}
	proxies := map[string]*function.Proxy{}
	for _, d := range descriptors {
		proxies[d.Name] = function.New(d, function.WithEndpoint(srv.URL), function.WithCaller("test-agent"))
	}

	return New(testRegistry(), descriptors, proxies, opts...), requests
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeAPIError(t *testing.T, rr *httptest.ResponseRecorder) api.APIError {
	t.Helper()
	var resp api.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding error response: %v (body %q)", err, rr.Body.String())
	}
	if resp.Error == nil {
		t.Fatalf("error response missing \"error\" object (body %q)", rr.Body.String())
	}
	return *resp.Error
}

func TestHealthz(t *testing.T) {
	g, _ := newTestGateway(t, api.CallResult{Message: "ok"})
	rr := do(t, g.Handler(), http.MethodGet, "/healthz", "")

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
	if got := rr.Body.String(); got != "ok\n" {
		t.Errorf("body = %q, want %q", got, "ok\n")
	}
}

func TestListSources(t *testing.T) {
	g, _ := newTestGateway(t, api.CallResult{Message: "ok"})
	rr := do(t, g.Handler(), http.MethodGet, "/v1/sources", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var infos map[string]source.BasicInfo
	if err := json.Unmarshal(rr.Body.Bytes(), &infos); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got := infos["metal"].SourceName; got != "Metal Price" {
		t.Errorf("source_name = %q, want %q", got, "Metal Price")
	}
}

func TestSourceDoc(t *testing.T) {
	g, _ := newTestGateway(t, api.CallResult{Message: "ok"})
	rr := do(t, g.Handler(), http.MethodGet, "/v1/sources/metal/doc", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("Content-Type = %q, want text/markdown", ct)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "## Metal Price") {
		t.Errorf("doc missing source heading:\n%s", body)
	}
	if !strings.Contains(body, "### get_gold_price") {
		t.Errorf("doc missing capability heading:\n%s", body)
	}
}

func TestSourceDocUnknown(t *testing.T) {
	g, _ := newTestGateway(t, api.CallResult{Message: "ok"})
	rr := do(t, g.Handler(), http.MethodGet, "/v1/sources/bogus/doc", "")

	// The not-found document is still a successful render.
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "does not exist") {
		t.Errorf("body = %q, want not-found line", rr.Body.String())
	}
}

func TestListFunctions(t *testing.T) {
	g, _ := newTestGateway(t, api.CallResult{Message: "ok"})
	rr := do(t, g.Handler(), http.MethodGet, "/v1/functions", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp struct {
		Data []function.Descriptor `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("got %d descriptors, want 2", len(resp.Data))
	}
	if resp.Data[0].Name != "get_stock_price" {
		t.Errorf("first descriptor = %q, want get_stock_price", resp.Data[0].Name)
	}
}

func TestInvoke(t *testing.T) {
	g, requests := newTestGateway(t, api.CallResult{Message: "AAPL: 123.45"})
	rr := do(t, g.Handler(), http.MethodPost, "/v1/functions/get_stock_price/invoke",
		`{"parameters": {"symbol": "AAPL"}}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}
	var result api.ToolResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if result.IsError {
		t.Errorf("unexpected error result: %s", result.Message)
	}
	if result.Message != "AAPL: 123.45" {
		t.Errorf("message = %q, want %q", result.Message, "AAPL: 123.45")
	}

	if len(*requests) != 1 {
		t.Fatalf("executor saw %d requests, want 1", len(*requests))
	}
	req := (*requests)[0]
	if got := req.Parameters["symbol"]; got != "AAPL" {
		t.Errorf("symbol = %v, want AAPL", got)
	}
	if req.CallerName != "test-agent" {
		t.Errorf("caller_name = %q, want test-agent", req.CallerName)
	}
}

func TestInvokeRemoteError(t *testing.T) {
	g, _ := newTestGateway(t, api.CallResult{IsError: true, Message: "market closed"})
	rr := do(t, g.Handler(), http.MethodPost, "/v1/functions/get_stock_price/invoke",
		`{"parameters": {"symbol": "AAPL"}}`)

	// A failed function call is still a delivered result.
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var result api.ToolResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if !result.IsError {
		t.Error("is_error = false, want true")
	}
	if result.Message != "market closed" {
		t.Errorf("message = %q, want %q", result.Message, "market closed")
	}
}

func TestInvokeEmptyBody(t *testing.T) {
	g, requests := newTestGateway(t, api.CallResult{Message: "ok"})
	rr := do(t, g.Handler(), http.MethodPost, "/v1/functions/get_stock_price/invoke", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}
	if len(*requests) != 1 {
		t.Fatalf("executor saw %d requests, want 1", len(*requests))
	}
	if n := len((*requests)[0].Parameters); n != 0 {
		t.Errorf("got %d parameters, want 0", n)
	}
}

func TestInvokeMCPKind(t *testing.T) {
	g, requests := newTestGateway(t, api.CallResult{Message: "ok"})
	rr := do(t, g.Handler(), http.MethodPost, "/v1/functions/search_tweets/invoke",
		`{"parameters": {"query": "golang", "limit": 5}}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}
	// mcp-kind functions forward the parameter object verbatim.
	got := (*requests)[0].Parameters
	if got["query"] != "golang" || got["limit"] != float64(5) {
		t.Errorf("parameters = %v, want query/limit forwarded untouched", got)
	}
}

func TestInvokeUnknownFunction(t *testing.T) {
	g, _ := newTestGateway(t, api.CallResult{Message: "ok"})
	rr := do(t, g.Handler(), http.MethodPost, "/v1/functions/bogus/invoke", `{}`)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	apiErr := decodeAPIError(t, rr)
	if apiErr.Type != api.ErrorTypeNotFound {
		t.Errorf("error type = %q, want %q", apiErr.Type, api.ErrorTypeNotFound)
	}
	if apiErr.Message != "Function bogus not found" {
		t.Errorf("message = %q, want %q", apiErr.Message, "Function bogus not found")
	}
}

func TestInvokeBadContentType(t *testing.T) {
	g, _ := newTestGateway(t, api.CallResult{Message: "ok"})

	req := httptest.NewRequest(http.MethodPost, "/v1/functions/get_stock_price/invoke",
		strings.NewReader("symbol=AAPL"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	g.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want 415", rr.Code)
	}
	if apiErr := decodeAPIError(t, rr); apiErr.Type != api.ErrorTypeInvalidRequest {
		t.Errorf("error type = %q, want %q", apiErr.Type, api.ErrorTypeInvalidRequest)
	}
}

func TestInvokeMalformedJSON(t *testing.T) {
	g, _ := newTestGateway(t, api.CallResult{Message: "ok"})
	rr := do(t, g.Handler(), http.MethodPost, "/v1/functions/get_stock_price/invoke", `{"parameters": `)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	apiErr := decodeAPIError(t, rr)
	if apiErr.Param != "body" {
		t.Errorf("param = %q, want body", apiErr.Param)
	}
}

func TestInvokeBodyTooLarge(t *testing.T) {
	g, _ := newTestGateway(t, api.CallResult{Message: "ok"}, WithMaxBodySize(64))

	big := `{"parameters": {"blob": "` + strings.Repeat("x", 256) + `"}}`
	rr := do(t, g.Handler(), http.MethodPost, "/v1/functions/get_stock_price/invoke", big)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rr.Code)
	}
}

func TestListCallsNoStore(t *testing.T) {
	g, _ := newTestGateway(t, api.CallResult{Message: "ok"})
	rr := do(t, g.Handler(), http.MethodGet, "/v1/calls", "")

	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d, want 501", rr.Code)
	}
	if apiErr := decodeAPIError(t, rr); !strings.Contains(apiErr.Message, "no store configured") {
		t.Errorf("message = %q, want store hint", apiErr.Message)
	}
}

// seededStore returns a memory store holding n records for fn, oldest
// first in insertion order.
func seededStore(t *testing.T, n int, fn string) storage.CallStore {
	t.Helper()
	store := memory.New(0)
	t.Cleanup(func() { store.Close() })

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		rec := &storage.CallRecord{
			ID:           api.NewCallID(),
			RequestID:    api.NewRequestID(),
			FunctionName: fn,
			FunctionKind: "basic",
			CallerName:   "test-agent",
			Message:      "ok",
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Record(context.Background(), rec); err != nil {
			t.Fatalf("seeding store: %v", err)
		}
	}
	return store
}

func TestListCalls(t *testing.T) {
	store := seededStore(t, 3, "get_stock_price")
	g, _ := newTestGateway(t, api.CallResult{Message: "ok"}, WithCallStore(store))

	rr := do(t, g.Handler(), http.MethodGet, "/v1/calls?limit=2", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}

	var resp struct {
		Data []*storage.CallRecord `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("got %d records, want 2", len(resp.Data))
	}
	// Newest first.
	if !resp.Data[0].CreatedAt.After(resp.Data[1].CreatedAt) {
		t.Errorf("records not newest first: %v then %v", resp.Data[0].CreatedAt, resp.Data[1].CreatedAt)
	}
}

func TestListCallsBadLimit(t *testing.T) {
	store := seededStore(t, 1, "get_stock_price")
	g, _ := newTestGateway(t, api.CallResult{Message: "ok"}, WithCallStore(store))

	for _, limit := range []string{"abc", "0", "-5"} {
		rr := do(t, g.Handler(), http.MethodGet, "/v1/calls?limit="+limit, "")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("limit %q: status = %d, want 400", limit, rr.Code)
		}
	}
}

func TestListCallsBadBefore(t *testing.T) {
	store := seededStore(t, 1, "get_stock_price")
	g, _ := newTestGateway(t, api.CallResult{Message: "ok"}, WithCallStore(store))

	rr := do(t, g.Handler(), http.MethodGet, "/v1/calls?before=yesterday", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if apiErr := decodeAPIError(t, rr); apiErr.Param != "before" {
		t.Errorf("param = %q, want before", apiErr.Param)
	}
}

func TestGetCall(t *testing.T) {
	store := seededStore(t, 1, "get_stock_price")
	recs, err := store.List(context.Background(), storage.ListOptions{})
	if err != nil || len(recs) != 1 {
		t.Fatalf("listing seeded store: %v (%d records)", err, len(recs))
	}

	g, _ := newTestGateway(t, api.CallResult{Message: "ok"}, WithCallStore(store))
	rr := do(t, g.Handler(), http.MethodGet, "/v1/calls/"+recs[0].ID, "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}
	var rec storage.CallRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decoding record: %v", err)
	}
	if rec.ID != recs[0].ID {
		t.Errorf("id = %q, want %q", rec.ID, recs[0].ID)
	}
}

func TestGetCallMalformedID(t *testing.T) {
	store := seededStore(t, 1, "get_stock_price")
	g, _ := newTestGateway(t, api.CallResult{Message: "ok"}, WithCallStore(store))

	rr := do(t, g.Handler(), http.MethodGet, "/v1/calls/not-a-call-id", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestGetCallNotFound(t *testing.T) {
	store := seededStore(t, 1, "get_stock_price")
	g, _ := newTestGateway(t, api.CallResult{Message: "ok"}, WithCallStore(store))

	rr := do(t, g.Handler(), http.MethodGet, "/v1/calls/"+api.NewCallID(), "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if apiErr := decodeAPIError(t, rr); apiErr.Type != api.ErrorTypeNotFound {
		t.Errorf("error type = %q, want %q", apiErr.Type, api.ErrorTypeNotFound)
	}
}

// rejectAll denies every request, so only bypass endpoints get through.
type rejectAll struct{}

func (rejectAll) Authenticate(ctx context.Context, r *http.Request) auth.Result {
	return auth.Result{Decision: auth.No}
}

func TestAuthWiring(t *testing.T) {
	chain := &auth.Chain{
		Authenticators:  []auth.Authenticator{rejectAll{}},
		DefaultDecision: auth.No,
	}
	mcpStub := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	g, _ := newTestGateway(t, api.CallResult{Message: "ok"},
		WithAuth(chain, nil),
		WithMCP("/mcp", mcpStub),
	)
	h := g.Handler()

	tests := []struct {
		path string
		want int
	}{
		{"/healthz", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/mcp", http.StatusOK},
		{"/v1/functions", http.StatusUnauthorized},
		{"/v1/sources", http.StatusUnauthorized},
		{"/v1/calls", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		rr := do(t, h, http.MethodGet, tt.path, "")
		if rr.Code != tt.want {
			t.Errorf("GET %s: status = %d, want %d", tt.path, rr.Code, tt.want)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	g, _ := newTestGateway(t, api.CallResult{Message: "ok"})
	rr := do(t, g.Handler(), http.MethodGet, "/metrics", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "relais_") {
		t.Error("metrics exposition missing relais_ series")
	}
}

func TestMetricsDisabled(t *testing.T) {
	g, _ := newTestGateway(t, api.CallResult{Message: "ok"}, WithMetrics(""))
	rr := do(t, g.Handler(), http.MethodGet, "/metrics", "")

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	g, _ := newTestGateway(t, api.CallResult{Message: "ok"})
	h := g.Handler()

	rr := do(t, h, http.MethodGet, "/healthz", "")
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not set")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-from-client")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Request-ID"); got != "req-from-client" {
		t.Errorf("X-Request-ID = %q, want client value echoed", got)
	}
}
