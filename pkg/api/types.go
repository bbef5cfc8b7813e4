package api

import "fmt"

// CallRequest is the envelope POSTed to the executor's /execute endpoint.
// One CallRequest is built per invocation and never reused; RequestID is
// the correlation key on the remote side.
type CallRequest struct {
	RequestID    string         `json:"request_id"`
	FunctionName string         `json:"function_name"`
	FunctionKind string         `json:"function_kind"`
	CallerName   string         `json:"caller_name"`
	Parameters   map[string]any `json:"parameters"`
}

// Validate checks the fields an executor must be able to rely on.
// Parameters may legitimately be empty (zero-argument functions).
func (r *CallRequest) Validate() error {
	if r.RequestID == "" {
		return fmt.Errorf("call request: missing request_id")
	}
	if r.FunctionName == "" {
		return fmt.Errorf("call request: missing function_name")
	}
	return nil
}

// CallResult is the executor's response body. Any non-2xx HTTP status
// bypasses this type entirely; the raw body becomes the diagnostic text.
type CallResult struct {
	IsError bool   `json:"is_error"`
	Message string `json:"message"`
}

// ToolResult is the uniform outcome of a proxied function call. Every
// path out of a proxy invocation (success, remote-reported failure,
// transport failure, timeout, interception) produces exactly this type;
// nothing else escapes the proxy boundary.
//
// Field order matters: the completion sentinel emits the serialized form
// and supervisors match on {"message":...,"is_error":...}.
type ToolResult struct {
	Message string `json:"message"`
	IsError bool   `json:"is_error"`
}
