package order

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Funclose/Ef-HomeWork/internal/config"
	"github.com/Funclose/Ef-HomeWork/internal/messaging"
	ordersvc "github.com/Funclose/Ef-HomeWork/internal/service/order"
	"github.com/Funclose/Ef-HomeWork/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Funclose/Ef-HomeWork/worker/order")

// Module registers order-related worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewOrderEventsHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewOrderEventsHandler sets up a worker handler that logs order lifecycle events.
func NewOrderEventsHandler(logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.orders.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		event, err := decode(msg)
		if err != nil {
			logger.Error("failed to decode order event", zap.Error(err), zap.Int64("offset", msg.Offset))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}
		span.SetAttributes(attribute.String("order.event", event.Type), attribute.Int64("order.id", event.ID))

		switch event.Type {
		case ordersvc.EventOrderCreated:
			logger.Info("order created event processed",
				zap.Int64("id", event.ID),
				zap.Time("ordered_at", event.OrderedAt),
				zap.Int("products", event.ProductCount),
			)
		case ordersvc.EventOrderDeleted:
			logger.Info("order deleted event processed", zap.Int64("id", event.ID))
		default:
			err := fmt.Errorf("unknown order event type %q", event.Type)
			span.RecordError(err)
			span.SetStatus(codes.Error, "unknown event")
			return err
		}

		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}

// decode reads the event payload. The event-type header wins over the payload
// type when both are present.
func decode(msg messaging.Message) (ordersvc.OrderEvent, error) {
	var event ordersvc.OrderEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return event, fmt.Errorf("decode order event: %w", err)
	}
	if t := msg.Headers[messaging.HeaderEventType]; t != "" {
		event.Type = t
	}
	return event, nil
}
