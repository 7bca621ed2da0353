// Package notify holds the in-process subscribers of sale domain events.
package notify

import (
	"context"

	"go.uber.org/zap"

	"sales_service/internal/sales"
)

// LogHandler writes every received event to the structured log.
type LogHandler struct {
	logger *zap.Logger
}

// NewLogHandler creates a LogHandler.
func NewLogHandler(logger *zap.Logger) *LogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogHandler{logger: logger.Named("events")}
}

func (h *LogHandler) Handle(_ context.Context, event sales.Event) error {
	fields := []zap.Field{
		zap.String("event", string(event.Kind())),
		zap.String("sale_id", event.AggregateID()),
		zap.Time("occurred_at", event.OccurredAt()),
	}
	if ic, ok := event.(sales.ItemCancelled); ok {
		fields = append(fields, zap.String("item_id", ic.ItemID))
	}
	h.logger.Info("sale event received", fields...)
	return nil
}
