package function

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rhuss/relais/pkg/api"
)

// CompletionFunction is the function name whose successful result is
// echoed to the process output for supervisor scraping.
const CompletionFunction = "task_done"

// plannerMarker is the substring a caller identity must contain to be
// treated as a planner. Orchestration layers compose caller names such
// as "travel_planner_v2", so membership is substring-based.
const plannerMarker = "planner"

// RequestInterceptor inspects a call request before any network
// activity. A non-nil result aborts the call and is returned to the
// caller as-is; no request is sent.
type RequestInterceptor interface {
	InterceptRequest(ctx context.Context, req *api.CallRequest) *api.ToolResult
}

// RequestInterceptorFunc adapts a function to the RequestInterceptor interface.
type RequestInterceptorFunc func(ctx context.Context, req *api.CallRequest) *api.ToolResult

func (f RequestInterceptorFunc) InterceptRequest(ctx context.Context, req *api.CallRequest) *api.ToolResult {
	return f(ctx, req)
}

// ResultInterceptor observes the outcome of a call and may replace it.
// It runs for every invocation that produced a result over the wire.
type ResultInterceptor interface {
	InterceptResult(ctx context.Context, req api.CallRequest, result api.ToolResult) api.ToolResult
}

// ResultInterceptorFunc adapts a function to the ResultInterceptor interface.
type ResultInterceptorFunc func(ctx context.Context, req api.CallRequest, result api.ToolResult) api.ToolResult

func (f ResultInterceptorFunc) InterceptResult(ctx context.Context, req api.CallRequest, result api.ToolResult) api.ToolResult {
	return f(ctx, req, result)
}

var (
	_ RequestInterceptor = (RequestInterceptorFunc)(nil)
	_ ResultInterceptor  = (ResultInterceptorFunc)(nil)
)

// agentGate hides agent-kind functions from non-planner callers. The
// denial is indistinguishable from a missing function: callers learn
// nothing about capabilities they may not use. An empty caller identity
// is an unattributed local process and passes through. The gate checks
// the assembled request, so per-call identities from the invocation
// context are honored.
func agentGate(p *Proxy) RequestInterceptorFunc {
	return func(ctx context.Context, req *api.CallRequest) *api.ToolResult {
		if p.desc.Kind == KindAgent && req.CallerName != "" && !strings.Contains(req.CallerName, plannerMarker) {
			return &api.ToolResult{
				IsError: true,
				Message: fmt.Sprintf("Function %s not found", p.desc.Name),
			}
		}
		return nil
	}
}

// completionSentinel echoes a successful completion result to the
// configured writer as a single sentinel-wrapped JSON line, so a
// supervising process can scrape the final result from the output
// stream. Error results are not echoed.
func completionSentinel(p *Proxy) ResultInterceptorFunc {
	return func(ctx context.Context, req api.CallRequest, result api.ToolResult) api.ToolResult {
		if p.desc.Name == CompletionFunction && !result.IsError {
			writeSentinel(p.sentinel, result)
		}
		return result
	}
}

// writeSentinel emits one "task_done>>>{json}<<<task_done" line.
func writeSentinel(w io.Writer, result api.ToolResult) {
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "task_done>>>%s<<<task_done\n", data)
}
