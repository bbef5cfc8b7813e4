// Package gateway serves the relais capability API over HTTP.
//
// The Gateway assembles the routing surface: source discovery and
// rendered capability docs, manifest function listing and invocation,
// call ledger queries, health, metrics, and the optional MCP discovery
// mount. Cross-cutting behavior (request IDs, panic recovery, access
// logging, HTTP metrics, authentication) is layered as middleware
// around the mux.
//
// Server wraps an http.Server around the assembled handler and manages
// the lifecycle: startup, signal handling, and graceful shutdown.
package gateway
