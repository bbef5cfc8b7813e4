package integration

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/rhuss/relais/pkg/api"
)

// executorRequestsFor filters the mock executor's log by function name.
func executorRequestsFor(name string) []api.CallRequest {
	var out []api.CallRequest
	for _, req := range testEnv.ExecutorRequests() {
		if req.FunctionName == name {
			out = append(out, req)
		}
	}
	return out
}

func TestInvokeFunction(t *testing.T) {
	result := invoke(t, "get_stock_price", map[string]any{"symbol": "AAPL"})

	if result.IsError {
		t.Fatalf("unexpected error result: %q", result.Message)
	}
	if !strings.Contains(result.Message, "AAPL") || !strings.Contains(result.Message, "$217.51") {
		t.Errorf("message = %q, want the canned AAPL price", result.Message)
	}

	reqs := executorRequestsFor("get_stock_price")
	if len(reqs) == 0 {
		t.Fatal("executor never received the call")
	}
	last := reqs[len(reqs)-1]
	if last.Parameters["symbol"] != "AAPL" {
		t.Errorf("executor saw parameters %v, want symbol=AAPL", last.Parameters)
	}
	if !api.ValidateRequestID(last.RequestID) {
		t.Errorf("executor saw malformed request ID %q", last.RequestID)
	}
}

func TestInvokeCallerIdentity(t *testing.T) {
	// The authenticated API key subject, not the configured default
	// caller, must reach the executor as the caller identity.
	invoke(t, "get_stock_price", map[string]any{"symbol": "GOOG"})

	reqs := executorRequestsFor("get_stock_price")
	if len(reqs) == 0 {
		t.Fatal("executor never received the call")
	}
	last := reqs[len(reqs)-1]
	if last.CallerName != testSubject {
		t.Errorf("caller_name = %q, want %q", last.CallerName, testSubject)
	}
}

func TestInvokeRemoteError(t *testing.T) {
	// A failure reported by the executor is a delivered result, not a
	// transport error: HTTP 200 with is_error set.
	result := invoke(t, "fail", nil)

	if !result.IsError {
		t.Fatal("expected an error result")
	}
	if result.Message != "fail always fails" {
		t.Errorf("message = %q, want %q", result.Message, "fail always fails")
	}
}

func TestInvokeAgentGated(t *testing.T) {
	// dispatch_helper is agent-kind and the test identity is not a
	// planner, so the gate denies the call before any network activity.
	// The denial is shaped like a missing function.
	result := invoke(t, "dispatch_helper", map[string]any{"task": "book a flight"})

	if !result.IsError {
		t.Fatal("expected a denial result")
	}
	if result.Message != "Function dispatch_helper not found" {
		t.Errorf("message = %q, want the not-found shape", result.Message)
	}

	if reqs := executorRequestsFor("dispatch_helper"); len(reqs) != 0 {
		t.Errorf("executor received %d dispatch_helper calls, want 0", len(reqs))
	}
}

func TestInvokeTaskDone(t *testing.T) {
	result := invoke(t, "task_done", map[string]any{"message": "All done."})

	if result.IsError {
		t.Fatalf("unexpected error result: %q", result.Message)
	}
	if result.Message != "All done." {
		t.Errorf("message = %q, want %q", result.Message, "All done.")
	}
}

func TestInvokeEmptyBody(t *testing.T) {
	// An empty body is a zero-parameter invocation.
	req := authedRequest(t, http.MethodPost,
		testEnv.BaseURL()+"/v1/functions/fail/invoke", bytes.NewReader(nil))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp))
	}

	reqs := executorRequestsFor("fail")
	if len(reqs) == 0 {
		t.Fatal("executor never received the call")
	}
	if last := reqs[len(reqs)-1]; len(last.Parameters) != 0 {
		t.Errorf("executor saw parameters %v, want none", last.Parameters)
	}
}
