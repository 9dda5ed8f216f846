package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"PriceShaper/internal/domain/models"
	domrepo "PriceShaper/internal/domain/repository"
	pkgkafka "PriceShaper/pkg/kafka"
	applogger "PriceShaper/pkg/logger"
)

// AdjustmentEventType is the queue message type carrying an AdjustmentEvent.
const AdjustmentEventType = "adjustment_event"

// Invalidator drops cached adjustment snapshots. An empty instrument drops all.
type Invalidator interface {
	Invalidate(ctx context.Context, instrument string) error
}

// AdjustmentEventsHandler consumes admin change notifications so the next
// tick sees a created, shortened or deleted adjustment without waiting for
// the snapshot TTL.
type AdjustmentEventsHandler struct {
	topic   string
	cache   Invalidator
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewAdjustmentEventsHandler(topic string, cache Invalidator, metrics domrepo.Metrics, l *applogger.Logger) *AdjustmentEventsHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &AdjustmentEventsHandler{topic: topic, cache: cache, metrics: metrics, l: l}
}

func (h *AdjustmentEventsHandler) Topic() string { return h.topic }

// incoming message schema: {type, id, instrument_id}
func (h *AdjustmentEventsHandler) Handle(ctx context.Context, b []byte) error {
	var ev models.AdjustmentEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		h.metrics.RecordError("events_unmarshal")
		return fmt.Errorf("%w: %v", errInvalidEvent, err)
	}
	switch ev.Type {
	case "created", "updated", "stopped", "deleted":
	default:
		h.metrics.RecordError("events_type")
		return fmt.Errorf("%w: unknown type %q", errInvalidEvent, ev.Type)
	}

	if err := h.cache.Invalidate(ctx, ev.InstrumentID); err != nil {
		h.metrics.RecordError("events_invalidate")
		return fmt.Errorf("invalidate %q: %w", ev.InstrumentID, err)
	}
	h.metrics.RecordMessageSent("events", ev.InstrumentID)
	h.l.Info("adjustment event applied",
		applogger.String("type", ev.Type),
		applogger.String("id", ev.ID),
		applogger.String("instrument", ev.InstrumentID))
	return nil
}

var _ pkgkafka.MessageHandler = (*AdjustmentEventsHandler)(nil)
