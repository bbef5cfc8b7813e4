package function

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	rtdebug "runtime/debug"
	"time"

	"github.com/rhuss/relais/pkg/api"
	"github.com/rhuss/relais/pkg/auth"
	"github.com/rhuss/relais/pkg/config"
	"github.com/rhuss/relais/pkg/debug"
	"github.com/rhuss/relais/pkg/observability"
)

const (
	// DefaultPort is the executor port used when no option overrides it.
	DefaultPort = 12306

	// DefaultTimeout bounds one invocation end to end. Proxied calls
	// are long-running remote computations, not low-latency RPCs.
	DefaultTimeout = time.Hour
)

// Recorder observes completed invocations, successful or not. The
// proxy never acts on recording failures; implementations handle
// their own errors.
type Recorder interface {
	RecordCall(ctx context.Context, req api.CallRequest, result api.ToolResult, elapsed time.Duration)
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(ctx context.Context, req api.CallRequest, result api.ToolResult, elapsed time.Duration)

func (f RecorderFunc) RecordCall(ctx context.Context, req api.CallRequest, result api.ToolResult, elapsed time.Duration) {
	f(ctx, req, result, elapsed)
}

// Proxy makes one declared function callable. Every invocation builds
// a CallRequest, runs the interception chain, POSTs to the executor's
// /execute endpoint, and converges on an api.ToolResult.
//
// A Proxy is safe for concurrent use; invocations share no mutable
// state and each call uses its own connection.
type Proxy struct {
	desc     Descriptor
	endpoint string
	timeout  time.Duration
	caller   string
	client   *http.Client
	sentinel io.Writer
	logger   *slog.Logger
	recorder Recorder

	reqInterceptors []RequestInterceptor
	resInterceptors []ResultInterceptor
}

// Option configures a Proxy.
type Option func(*Proxy)

// WithEndpoint sets the executor base URL (e.g. "http://localhost:12306").
func WithEndpoint(url string) Option {
	return func(p *Proxy) { p.endpoint = url }
}

// WithExecutor sets the executor host and port.
func WithExecutor(host string, port int) Option {
	return func(p *Proxy) { p.endpoint = fmt.Sprintf("http://%s:%d", host, port) }
}

// WithTimeout sets the total per-invocation timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Proxy) { p.timeout = d }
}

// WithCaller sets the caller identity attached to outgoing requests.
// An authenticated identity on the invocation context takes precedence.
func WithCaller(name string) Option {
	return func(p *Proxy) { p.caller = name }
}

// WithSentinelWriter redirects the completion sentinel line. It
// defaults to standard output.
func WithSentinelWriter(w io.Writer) Option {
	return func(p *Proxy) { p.sentinel = w }
}

// WithLogger sets the logger for proxy diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(p *Proxy) { p.logger = l }
}

// WithRecorder attaches a call ledger recorder.
func WithRecorder(r Recorder) Option {
	return func(p *Proxy) { p.recorder = r }
}

// WithRequestInterceptor appends a pre-call interceptor. The builtin
// agent gate always runs first.
func WithRequestInterceptor(i RequestInterceptor) Option {
	return func(p *Proxy) { p.reqInterceptors = append(p.reqInterceptors, i) }
}

// WithResultInterceptor appends a post-call interceptor. The builtin
// completion sentinel always runs last.
func WithResultInterceptor(i ResultInterceptor) Option {
	return func(p *Proxy) { p.resInterceptors = append(p.resInterceptors, i) }
}

// OptionsFromConfig derives the proxy options a deployment configures:
// executor endpoint, total timeout, and caller identity.
func OptionsFromConfig(cfg *config.Config) []Option {
	return []Option{
		WithExecutor(cfg.Executor.Host, cfg.Executor.Port),
		WithTimeout(cfg.Executor.Timeout.Std()),
		WithCaller(cfg.Agent.Name),
	}
}

// New builds a proxy for the given descriptor.
func New(desc Descriptor, opts ...Option) *Proxy {
	if desc.Kind == "" {
		desc.Kind = KindBasic
	}

	p := &Proxy{
		desc:     desc,
		endpoint: fmt.Sprintf("http://localhost:%d", DefaultPort),
		timeout:  DefaultTimeout,
		sentinel: os.Stdout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.client = &http.Client{
		Timeout: p.timeout,
		// Executor calls are long-running; connection reuse across
		// invocations buys nothing.
		Transport: &http.Transport{DisableKeepAlives: true},
	}

	p.reqInterceptors = append([]RequestInterceptor{agentGate(p)}, p.reqInterceptors...)
	p.resInterceptors = append(p.resInterceptors, completionSentinel(p))

	return p
}

// Name returns the local function name.
func (p *Proxy) Name() string { return p.desc.Name }

// Kind returns the function kind.
func (p *Proxy) Kind() Kind { return p.desc.Kind }

// Descriptor returns a copy of the proxy's descriptor.
func (p *Proxy) Descriptor() Descriptor { return p.desc }

// Invoke calls the function with positional arguments. For mcp-kind
// functions the single argument must be a map[string]any used verbatim
// as the parameter set; otherwise arguments are mapped left-to-right
// onto the declared parameter names and excess arguments are dropped.
//
// Invoke never panics and never returns an error: every outcome is an
// api.ToolResult.
func (p *Proxy) Invoke(ctx context.Context, args ...any) api.ToolResult {
	return p.InvokeNamed(ctx, nil, args...)
}

// InvokeNamed calls the function with named arguments plus positional
// arguments. Positional arguments overwrite named ones on collision.
func (p *Proxy) InvokeNamed(ctx context.Context, named map[string]any, args ...any) api.ToolResult {
	start := time.Now()
	result, status, req := p.invoke(ctx, named, args)
	elapsed := time.Since(start)

	observability.InvocationsTotal.WithLabelValues(p.desc.Name, string(p.desc.Kind), status).Inc()
	observability.InvocationDuration.WithLabelValues(p.desc.Name, string(p.desc.Kind)).Observe(elapsed.Seconds())

	if p.recorder != nil && req != nil {
		p.recorder.RecordCall(ctx, *req, result, elapsed)
	}

	return result
}

// invoke runs the full pipeline and reports the outcome status
// (ok, error, denied, timeout) plus the assembled request, if any.
func (p *Proxy) invoke(ctx context.Context, named map[string]any, args []any) (api.ToolResult, string, *api.CallRequest) {
	params, err := p.buildParameters(named, args)
	if err != nil {
		return api.ToolResult{IsError: true, Message: err.Error()}, "error", nil
	}

	req := api.CallRequest{
		RequestID:    api.NewRequestID(),
		FunctionName: p.desc.Target(),
		FunctionKind: string(p.desc.Kind),
		CallerName:   auth.CallerFromContext(ctx, p.caller),
		Parameters:   params,
	}

	for _, ic := range p.reqInterceptors {
		if res := ic.InterceptRequest(ctx, &req); res != nil {
			p.logger.Debug("invocation intercepted",
				"function", p.desc.Name,
				"request_id", req.RequestID,
			)
			return *res, "denied", &req
		}
	}

	result, status := p.execute(ctx, req)

	for _, ic := range p.resInterceptors {
		result = ic.InterceptResult(ctx, req, result)
	}

	return result, status, &req
}

// buildParameters merges named and positional arguments into the
// outgoing parameter mapping.
func (p *Proxy) buildParameters(named map[string]any, args []any) (map[string]any, error) {
	if p.desc.Kind == KindMCP {
		if len(args) != 1 {
			return nil, fmt.Errorf("mcp function %s takes exactly one parameter mapping, got %d arguments", p.desc.Name, len(args))
		}
		params, ok := args[0].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("mcp function %s takes a parameter mapping, got %T", p.desc.Name, args[0])
		}
		return params, nil
	}

	params := make(map[string]any, len(named)+len(args))
	for k, v := range named {
		params[k] = v
	}
	for i, arg := range args {
		if i >= len(p.desc.Parameters) {
			// Excess positional arguments are dropped.
			p.logger.Debug("dropping excess positional arguments",
				"function", p.desc.Name,
				"count", len(args)-len(p.desc.Parameters),
			)
			break
		}
		params[p.desc.Parameters[i].Name] = arg
	}
	return params, nil
}

// execute performs the HTTP exchange with the executor and maps the
// response onto a ToolResult.
func (p *Proxy) execute(ctx context.Context, req api.CallRequest) (api.ToolResult, string) {
	body, err := json.Marshal(req)
	if err != nil {
		return unexpectedFailure(err), "error"
	}

	debug.Log("proxy", "executor request",
		"function", p.desc.Name,
		"request_id", req.RequestID,
		"endpoint", p.endpoint,
	)
	debug.Raw("proxy", string(body))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/execute", bytes.NewReader(body))
	if err != nil {
		return unexpectedFailure(err), "error"
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return p.timeoutResult(req.RequestID), "timeout"
		}
		return unexpectedFailure(err), "error"
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return p.timeoutResult(req.RequestID), "timeout"
		}
		return unexpectedFailure(err), "error"
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return api.ToolResult{
			IsError: true,
			Message: fmt.Sprintf("Function call failed: %s", respBody),
		}, "error"
	}

	// Message is a pointer so an absent field and an explicit empty
	// string stay distinguishable.
	var remote struct {
		IsError bool    `json:"is_error"`
		Message *string `json:"message"`
	}
	if err := json.Unmarshal(respBody, &remote); err != nil {
		return unexpectedFailure(err), "error"
	}

	if remote.IsError {
		msg := "Unknown error"
		if remote.Message != nil {
			msg = *remote.Message
		}
		return api.ToolResult{IsError: true, Message: msg}, "error"
	}

	msg := "succeed"
	if remote.Message != nil {
		msg = *remote.Message
	}
	return api.ToolResult{Message: msg}, "ok"
}

func (p *Proxy) timeoutResult(requestID string) api.ToolResult {
	p.logger.Warn("function call timed out",
		"function", p.desc.Name,
		"request_id", requestID,
		"timeout", p.timeout,
	)
	return api.ToolResult{
		IsError: true,
		Message: fmt.Sprintf("Timeout when calling function %s after %s", p.desc.Name, p.timeout),
	}
}

// unexpectedFailure converts an unexpected error into an error result
// carrying the stack, so operators can locate the failure from the
// message alone.
func unexpectedFailure(err error) api.ToolResult {
	return api.ToolResult{
		IsError: true,
		Message: fmt.Sprintf("Error: %v\nTraceback:\n%s", err, rtdebug.Stack()),
	}
}

// isTimeout reports whether err is a deadline or timeout failure.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
