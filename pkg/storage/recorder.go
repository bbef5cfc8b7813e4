package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/rhuss/relais/pkg/api"
	"github.com/rhuss/relais/pkg/observability"
)

// recordTimeout bounds one ledger write. Recording happens after the
// invocation has already completed, so the write gets its own deadline
// instead of inheriting whatever is left of the call's.
const recordTimeout = 5 * time.Second

// Recorder writes completed invocations to a CallStore. It satisfies
// the proxy's recorder hook: failures are counted and logged, never
// returned, so a broken ledger cannot fail a call that succeeded.
type Recorder struct {
	store   CallStore
	backend string
	logger  *slog.Logger
}

// NewRecorder wraps store for post-invocation recording. The backend
// name labels the calls-recorded metric ("memory", "postgres", "redis").
func NewRecorder(store CallStore, backend string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, backend: backend, logger: logger}
}

// RecordCall persists one completed invocation. The invocation context
// may already be canceled (timeouts are recorded too), so the write
// runs on a detached context with its own deadline.
func (r *Recorder) RecordCall(ctx context.Context, req api.CallRequest, result api.ToolResult, elapsed time.Duration) {
	rec := &CallRecord{
		ID:           api.NewCallID(),
		RequestID:    req.RequestID,
		FunctionName: req.FunctionName,
		FunctionKind: req.FunctionKind,
		CallerName:   req.CallerName,
		Parameters:   req.Parameters,
		Message:      result.Message,
		IsError:      result.IsError,
		DurationMS:   elapsed.Milliseconds(),
		CreatedAt:    time.Now().UTC(),
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := r.store.Record(writeCtx, rec); err != nil {
		observability.CallsRecordedTotal.WithLabelValues(r.backend, "error").Inc()
		r.logger.Warn("call record failed",
			"backend", r.backend,
			"request_id", req.RequestID,
			"function", req.FunctionName,
			"error", err)
		return
	}
	observability.CallsRecordedTotal.WithLabelValues(r.backend, "ok").Inc()
}
