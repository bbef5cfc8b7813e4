// Package storage defines the call ledger: the persistent record of
// completed function invocations, keyed by record ID and correlated
// with the wire protocol through the request ID.
//
// The [CallStore] interface is implemented by the memory, postgres and
// redis subpackages. [Recorder] adapts any CallStore to the proxy's
// post-invocation hook so that recording failures never influence the
// outcome of the call being recorded.
package storage
