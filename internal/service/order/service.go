package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Funclose/Ef-HomeWork/internal/config"
	"github.com/Funclose/Ef-HomeWork/internal/entity"
	"github.com/Funclose/Ef-HomeWork/internal/messaging"
	repo "github.com/Funclose/Ef-HomeWork/internal/repository/order"
	"github.com/Funclose/Ef-HomeWork/pkg/errorbank"
)

// timestampPrecision is the finest precision every supported store keeps.
const timestampPrecision = time.Microsecond

var (
	serviceTracer = otel.Tracer("github.com/Funclose/Ef-HomeWork/service/order")
	serviceMeter  = otel.Meter("github.com/Funclose/Ef-HomeWork/service/order")
)

// Service is the facade over order aggregates. Orders it returns always have
// their products loaded.
type Service struct {
	repo      *repo.Repository
	logger    *zap.Logger
	publisher messaging.Client
	messaging messagingConfig
	now       func() time.Time

	created metric.Int64Counter
	deleted metric.Int64Counter
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client `optional:"true"`
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		repo:      p.Repository,
		logger:    logger,
		publisher: p.Publisher,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
		now: func() time.Time { return time.Now().UTC() },
	}

	var err error
	if s.created, err = serviceMeter.Int64Counter("orders.created", metric.WithDescription("Orders persisted")); err != nil {
		logger.Warn("orders.created counter unavailable", zap.Error(err))
	}
	if s.deleted, err = serviceMeter.Int64Counter("orders.deleted", metric.WithDescription("Orders removed")); err != nil {
		logger.Warn("orders.deleted counter unavailable", zap.Error(err))
	}

	return s
}

// Add persists the order and any new products as one unit. An order without a
// timestamp is stamped with the current time. The timestamp is normalised to
// UTC at microsecond precision and repeated products are dropped, so order
// matches what Get returns afterwards.
func (s *Service) Add(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errorbank.BadRequest("order payload is required")
	}
	if order.OrderedAt.IsZero() {
		order.OrderedAt = s.now()
	}
	order.OrderedAt = order.OrderedAt.UTC().Truncate(timestampPrecision)
	order.Products = compact(order.Products)

	ctx, span := serviceTracer.Start(ctx, "OrderService.Add", trace.WithAttributes(attribute.Int("order.products", len(order.Products))))
	defer span.End()

	if err := s.repo.Create(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Persistence("failed to save order", errorbank.WithCause(err))
	}

	s.logger.Info("order added", zap.Int64("id", order.ID), zap.Int("products", len(order.Products)))
	s.count(ctx, s.created)
	s.publish(ctx, EventOrderCreated, order)
	return nil
}

// Get returns the order with the given id. A missing order yields a not_found
// error that wraps repository.ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found", errorbank.WithDetail("id", id), errorbank.WithCause(err))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Persistence("failed to load order", errorbank.WithCause(err))
	}
	return order, nil
}

// Delete removes the order and its products. Deleting a missing order is a no-op.
func (s *Service) Delete(ctx context.Context, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Delete", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Persistence("failed to delete order", errorbank.WithCause(err))
	}
	if !deleted {
		s.logger.Debug("order already absent", zap.Int64("id", id))
		return nil
	}

	s.logger.Info("order deleted", zap.Int64("id", id))
	s.count(ctx, s.deleted)
	s.publish(ctx, EventOrderDeleted, &entity.Order{ID: id})
	return nil
}

// List returns every order with its products, ordered by id.
func (s *Service) List(ctx context.Context) ([]*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.List")
	defer span.End()

	orders, err := s.repo.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Persistence("failed to list orders", errorbank.WithCause(err))
	}
	return orders, nil
}

func (s *Service) count(ctx context.Context, counter metric.Int64Counter) {
	if counter != nil {
		counter.Add(ctx, 1)
	}
}

func (s *Service) publish(ctx context.Context, eventType string, order *entity.Order) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	event := OrderEvent{
		Type:         eventType,
		ID:           order.ID,
		OrderedAt:    order.OrderedAt,
		ProductCount: len(order.Products),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal order event", zap.String("type", eventType), zap.Error(err))
		return
	}
	headers := map[string]string{messaging.HeaderEventType: eventType}
	if err := s.publisher.Publish(ctx, []byte(fmt.Sprintf("order-%d", order.ID)), payload, headers); err != nil {
		s.logger.Error("publish order event", zap.String("type", eventType), zap.String("topic", s.messaging.topic), zap.Error(err))
	}
}

// compact drops nil entries and repeats of the same product, either the same
// pointer or the same stored ID.
func compact(products []*entity.Product) []*entity.Product {
	out := make([]*entity.Product, 0, len(products))
	seenPtr := make(map[*entity.Product]struct{}, len(products))
	seenID := make(map[int64]struct{}, len(products))
	for _, p := range products {
		if p == nil {
			continue
		}
		if _, dup := seenPtr[p]; dup {
			continue
		}
		seenPtr[p] = struct{}{}
		if p.ID != 0 {
			if _, dup := seenID[p.ID]; dup {
				continue
			}
			seenID[p.ID] = struct{}{}
		}
		out = append(out, p)
	}
	return out
}

// Event types published on the order topic.
const (
	EventOrderCreated = "order.created"
	EventOrderDeleted = "order.deleted"
)

// OrderEvent is emitted when an order is persisted or removed.
type OrderEvent struct {
	Type         string    `json:"type"`
	ID           int64     `json:"id"`
	OrderedAt    time.Time `json:"ordered_at"`
	ProductCount int       `json:"product_count"`
}
