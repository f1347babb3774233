package seeder

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Funclose/Ef-HomeWork/internal/database"
	"github.com/Funclose/Ef-HomeWork/internal/entity"
	ordersvc "github.com/Funclose/Ef-HomeWork/internal/service/order"
	"github.com/Funclose/Ef-HomeWork/pkg/errorbank"
)

// Module provides the seeder to Fx.
var Module = fx.Provide(New)

// Seeder rebuilds the schema and loads the fixed demo data.
type Seeder struct {
	db     *bun.DB
	orders *ordersvc.Service
	logger *zap.Logger
	now    func() time.Time
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, orders *ordersvc.Service, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{
		db:     conns.Writer,
		orders: orders,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Reset drops every table, recreates the schema, inserts the seed products and
// stores one order holding the first of them. All prior data is lost. The
// seeded order is returned with its products loaded.
func (s *Seeder) Reset(ctx context.Context) (*entity.Order, error) {
	if err := database.Reset(ctx, s.db); err != nil {
		return nil, err
	}

	seed := entity.SeedProducts()
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, p := range seed {
			if _, err := tx.NewInsert().Model(p).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errorbank.Persistence("insert seed products", errorbank.WithCause(err))
	}

	first := new(entity.Product)
	if err := s.db.NewSelect().Model(first).Order("id ASC").Limit(1).Scan(ctx); err != nil {
		return nil, errorbank.Persistence("load first seed product", errorbank.WithCause(err))
	}

	order := &entity.Order{OrderedAt: s.now(), Products: []*entity.Product{first}}
	if err := s.orders.Add(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info("database seeded",
		zap.Int("products", len(seed)),
		zap.Int64("order_id", order.ID),
	)
	return s.orders.Get(ctx, order.ID)
}
