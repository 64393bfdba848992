package ingest

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/Veraticus/tgpulse/internal/metrics"
)

// PanicHandler is told about an event whose processing panicked. The
// listener keeps running afterwards.
type PanicHandler interface {
	HandlePanic(phone string, panicValue any, stackTrace []byte)
}

// LogPanicHandler logs panics with their stack trace and counts them.
type LogPanicHandler struct {
	logger *slog.Logger
}

// NewLogPanicHandler returns a handler logging to logger.
func NewLogPanicHandler(logger *slog.Logger) *LogPanicHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPanicHandler{logger: logger}
}

// HandlePanic implements PanicHandler.
func (h *LogPanicHandler) HandlePanic(phone string, panicValue any, stackTrace []byte) {
	metrics.EventPanics.Inc()
	h.logger.ErrorContext(context.Background(), "PANIC while processing update",
		slog.String("phone", phone),
		slog.Any("panic", panicValue),
		slog.String("stack_trace", string(stackTrace)))
}

// handleRecoveredPanic forwards a recovered panic to handler.
func handleRecoveredPanic(phone string, panicValue any, handler PanicHandler) {
	handler.HandlePanic(phone, panicValue, debug.Stack())
}
