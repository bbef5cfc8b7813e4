package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/relais/pkg/api"
	"github.com/rhuss/relais/pkg/auth"
	"github.com/rhuss/relais/pkg/function"
	"github.com/rhuss/relais/pkg/observability"
	"github.com/rhuss/relais/pkg/source"
	"github.com/rhuss/relais/pkg/storage"
)

// Gateway routes the capability API. It serves source discovery,
// function listing and invocation, and call ledger queries; the
// optional MCP bridge and metrics endpoint mount alongside.
type Gateway struct {
	registry    *source.Registry
	descriptors []function.Descriptor
	proxies     map[string]*function.Proxy
	store       storage.CallStore
	chain       *auth.Chain
	limiter     auth.RateLimiter
	mcpPath     string
	mcpHandler  http.Handler
	metricsPath string
	logger      *slog.Logger
	maxBodySize int64
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithCallStore attaches the call ledger queried by the calls endpoints.
func WithCallStore(store storage.CallStore) Option {
	return func(g *Gateway) { g.store = store }
}

// WithAuth attaches the authenticator chain and optional rate limiter.
// Without a chain, the API is served unauthenticated.
func WithAuth(chain *auth.Chain, limiter auth.RateLimiter) Option {
	return func(g *Gateway) { g.chain = chain; g.limiter = limiter }
}

// WithMCP mounts the MCP discovery handler at the given path.
func WithMCP(path string, handler http.Handler) Option {
	return func(g *Gateway) { g.mcpPath = path; g.mcpHandler = handler }
}

// WithMetrics sets the metrics endpoint path. An empty path disables
// the endpoint.
func WithMetrics(path string) Option {
	return func(g *Gateway) { g.metricsPath = path }
}

// WithLogger sets the logger used by the gateway and its middleware.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithMaxBodySize sets the maximum invocation request body size.
func WithMaxBodySize(n int64) Option {
	return func(g *Gateway) { g.maxBodySize = n }
}

// New creates a gateway over the given registry, manifest descriptors,
// and function proxies.
func New(reg *source.Registry, descriptors []function.Descriptor, proxies map[string]*function.Proxy, opts ...Option) *Gateway {
	g := &Gateway{
		registry:    reg,
		descriptors: descriptors,
		proxies:     proxies,
		metricsPath: "/metrics",
		logger:      slog.Default(),
		maxBodySize: 10 << 20, // 10 MB
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Handler assembles the full middleware stack around the routed mux:
// recovery, request IDs, access logging, HTTP metrics, and (when a
// chain is configured) authentication with health, metrics, and MCP
// left open.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	g.routes(mux)

	var handler http.Handler = mux
	if g.chain != nil {
		bypass := []string{"/healthz"}
		if g.metricsPath != "" {
			bypass = append(bypass, g.metricsPath)
		}
		if g.mcpHandler != nil {
			bypass = append(bypass, g.mcpPath)
		}
		handler = auth.Middleware(g.chain, g.limiter, bypass)(handler)
	}

	handler = observability.MetricsMiddleware(handler)
	handler = LoggingMiddleware(g.logger)(handler)
	handler = RequestIDMiddleware(handler)
	handler = RecoveryMiddleware(g.logger)(handler)
	return handler
}

func (g *Gateway) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", g.handleHealthz)
	if g.metricsPath != "" {
		mux.Handle("GET "+g.metricsPath, promhttp.Handler())
	}

	mux.HandleFunc("GET /v1/sources", g.handleListSources)
	mux.HandleFunc("GET /v1/sources/{name}/doc", g.handleSourceDoc)
	mux.HandleFunc("GET /v1/functions", g.handleListFunctions)
	mux.HandleFunc("GET /v1/functions/docs", g.handleFunctionDocs)
	mux.HandleFunc("POST /v1/functions/{name}/invoke", g.handleInvoke)
	mux.HandleFunc("GET /v1/calls", g.handleListCalls)
	mux.HandleFunc("GET /v1/calls/{id}", g.handleGetCall)

	if g.mcpHandler != nil {
		mux.Handle(g.mcpPath, g.mcpHandler)
	}
}

func (g *Gateway) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// handleListSources handles GET /v1/sources.
func (g *Gateway) handleListSources(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(g.registry.ListBasicInfo())
}

// handleSourceDoc handles GET /v1/sources/{name}/doc. An unknown name
// renders the registry's not-found line; the response is still a 200
// because the document is the contract, not the lookup.
func (g *Gateway) handleSourceDoc(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	io.WriteString(w, g.registry.RenderCapabilityDoc(name))
}

// handleListFunctions handles GET /v1/functions.
func (g *Gateway) handleListFunctions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Data []function.Descriptor `json:"data"`
	}{Data: g.descriptors})
}

// handleFunctionDocs handles GET /v1/functions/docs.
func (g *Gateway) handleFunctionDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	io.WriteString(w, g.registry.RenderAllFunctionDocs())
}

// invokeRequest is the invocation endpoint's body shape.
type invokeRequest struct {
	Parameters map[string]any `json:"parameters"`
}

// handleInvoke handles POST /v1/functions/{name}/invoke. The proxy
// result is the response even when it carries is_error: the envelope is
// the wire contract, and only transport-level failures map to HTTP
// error codes.
func (g *Gateway) handleInvoke(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	p, ok := g.proxies[name]
	if !ok {
		WriteAPIError(w, api.NewNotFoundError(fmt.Sprintf("Function %s not found", name)))
		return
	}

	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" {
		WriteErrorResponse(w,
			api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
			http.StatusUnsupportedMediaType,
		)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, g.maxBodySize)

	var req invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			// An empty body invokes with no parameters.
		case errors.As(err, &maxBytesErr):
			WriteErrorResponse(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", g.maxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return
		default:
			WriteErrorResponse(w,
				api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()),
				http.StatusBadRequest,
			)
			return
		}
	}

	// The caller identity comes from the authenticated subject on the
	// request context; mcp-kind proxies take the mapping verbatim.
	var result api.ToolResult
	if p.Kind() == function.KindMCP {
		params := req.Parameters
		if params == nil {
			params = map[string]any{}
		}
		result = p.Invoke(r.Context(), params)
	} else {
		result = p.InvokeNamed(r.Context(), req.Parameters)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// handleListCalls handles GET /v1/calls.
func (g *Gateway) handleListCalls(w http.ResponseWriter, r *http.Request) {
	if g.store == nil {
		WriteErrorResponse(w,
			api.NewInvalidRequestError("", "call history is not available (no store configured)"),
			http.StatusNotImplemented,
		)
		return
	}

	opts, apiErr := parseCallListOptions(r)
	if apiErr != nil {
		WriteErrorResponse(w, apiErr, http.StatusBadRequest)
		return
	}

	records, err := g.store.List(r.Context(), opts)
	if err != nil {
		WriteAPIError(w, api.NewServerError(err.Error()))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Data []*storage.CallRecord `json:"data"`
	}{Data: records})
}

// handleGetCall handles GET /v1/calls/{id}.
func (g *Gateway) handleGetCall(w http.ResponseWriter, r *http.Request) {
	if g.store == nil {
		WriteErrorResponse(w,
			api.NewInvalidRequestError("", "call history is not available (no store configured)"),
			http.StatusNotImplemented,
		)
		return
	}

	id := r.PathValue("id")
	if !api.ValidateCallID(id) {
		WriteErrorResponse(w,
			api.NewInvalidRequestError("id", "malformed call ID"),
			http.StatusBadRequest,
		)
		return
	}

	rec, err := g.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			WriteAPIError(w, api.NewNotFoundError("call "+id+" not found"))
		} else {
			WriteAPIError(w, api.NewServerError(err.Error()))
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

// parseCallListOptions extracts ledger query parameters from the query
// string: function (name filter), limit, and before (exclusive RFC 3339
// timestamp cursor).
func parseCallListOptions(r *http.Request) (storage.ListOptions, *api.APIError) {
	q := r.URL.Query()
	opts := storage.ListOptions{Function: q.Get("function")}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			return opts, api.NewInvalidRequestError("limit", "limit must be a positive integer")
		}
		opts.Limit = limit
	}

	if beforeStr := q.Get("before"); beforeStr != "" {
		before, err := time.Parse(time.RFC3339Nano, beforeStr)
		if err != nil {
			return opts, api.NewInvalidRequestError("before", "before must be an RFC 3339 timestamp")
		}
		opts.Before = before
	}

	return opts, nil
}
