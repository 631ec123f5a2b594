package activity

import (
	"context"

	"go.uber.org/zap"
)

// ZapHook writes every event to a zap logger at debug level.
type ZapHook struct {
	Logger *zap.Logger
}

// Notify logs the event.
func (h ZapHook) Notify(_ context.Context, event Event) error {
	if h.Logger == nil {
		return nil
	}
	fields := []zap.Field{
		zap.String("verb", event.Verb),
		zap.String("object_type", event.ObjectType),
		zap.String("object_id", event.ObjectID),
		zap.String("channel", event.Channel),
		zap.Time("occurred_at", event.OccurredAt),
	}
	if event.Flag != "" {
		fields = append(fields, zap.String("flag", event.Flag))
	}
	if len(event.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", event.Metadata))
	}
	h.Logger.Debug("dataset activity", fields...)
	return nil
}
