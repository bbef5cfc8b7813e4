// Package function turns declared function manifests into callable
// proxies. A proxy sends each invocation as a CallRequest to the local
// executor over HTTP and maps every possible outcome onto an
// api.ToolResult; errors never escape an invocation. Interceptors hook
// the request before any network activity and the result after it.
package function
