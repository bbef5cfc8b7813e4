// Package mcpbridge exposes the gateway's capability discovery surface
// to MCP (Model Context Protocol) clients. It wraps the official MCP Go
// SDK (github.com/modelcontextprotocol/go-sdk) and serves four read-only
// tools over streamable HTTP: list_sources, describe_source,
// list_functions and describe_function.
//
// The bridge is discovery only. Agents that want to call a function go
// through the HTTP invocation API, where authentication and call
// recording apply.
package mcpbridge
