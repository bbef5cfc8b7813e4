// Package api defines the wire and result types shared by the relais
// function proxy, the local executor protocol, and the gateway surface.
//
// This package provides the request envelope sent to the executor
// ([CallRequest]), the executor's response body ([CallResult]), and the
// uniform outcome type every invocation path converges on ([ToolResult]),
// plus ID generation and the structured error taxonomy used by the HTTP
// gateway.
//
// Apart from ID generation (github.com/google/uuid) the package performs
// no I/O and has no internal state. All types serialize to the executor
// wire format:
//
//	{"request_id": "...", "function_name": "...", "function_kind": "...",
//	 "caller_name": "...", "parameters": {...}}
//
// A ToolResult serializes as {"message": "...", "is_error": false}; that
// exact shape is also what the completion sentinel writes to stdout, so
// supervisors can deserialize scraped lines back into a ToolResult.
package api
