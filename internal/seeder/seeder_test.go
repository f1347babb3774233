package seeder

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Funclose/Ef-HomeWork/internal/config"
	"github.com/Funclose/Ef-HomeWork/internal/database"
	"github.com/Funclose/Ef-HomeWork/internal/database/dbtest"
	"github.com/Funclose/Ef-HomeWork/internal/entity"
	repo "github.com/Funclose/Ef-HomeWork/internal/repository/order"
	ordersvc "github.com/Funclose/Ef-HomeWork/internal/service/order"
)

func newSeeder(t *testing.T) (*Seeder, *ordersvc.Service, *database.Connections) {
	t.Helper()
	conns := dbtest.Open(t)
	logger := zaptest.NewLogger(t)
	svc := ordersvc.NewService(ordersvc.Params{
		Repository: repo.NewRepository(conns),
		Config:     config.Config{},
		Logger:     logger,
	})
	return New(conns, svc, logger), svc, conns
}

func allProducts(t *testing.T, conns *database.Connections) []*entity.Product {
	t.Helper()
	var products []*entity.Product
	require.NoError(t, conns.Writer.NewSelect().Model(&products).Order("id ASC").Scan(context.Background()))
	return products
}

func assertSeeded(t *testing.T, svc *ordersvc.Service, conns *database.Connections) {
	t.Helper()
	products := allProducts(t, conns)
	require.Len(t, products, 2)
	assert.Equal(t, "Test", products[0].Name)
	assert.True(t, decimal.RequireFromString("2.3").Equal(products[0].Price))
	assert.Equal(t, "Tester2", products[1].Name)
	assert.True(t, decimal.NewFromInt(5).Equal(products[1].Price))
	assert.Nil(t, products[1].OrderID)

	orders, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Len(t, orders[0].Products, 1)
	assert.Equal(t, "Test", orders[0].Products[0].Name)
	assert.Equal(t, products[0].ID, orders[0].Products[0].ID)
}

func TestResetSeedsFixedData(t *testing.T) {
	s, svc, conns := newSeeder(t)
	stamp := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	s.now = func() time.Time { return stamp }

	order, err := s.Reset(context.Background())
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, 1, order.ProductCount())
	assert.WithinDuration(t, stamp, order.OrderedAt, time.Second)

	assertSeeded(t, svc, conns)
}

func TestResetDiscardsPriorData(t *testing.T) {
	ctx := context.Background()
	s, svc, conns := newSeeder(t)

	extra := &entity.Order{Products: []*entity.Product{
		{Name: "Stale", Price: decimal.NewFromInt(1)},
		{Name: "Stale too", Price: decimal.NewFromInt(2)},
	}}
	require.NoError(t, svc.Add(ctx, extra))

	_, err := s.Reset(ctx)
	require.NoError(t, err)
	assertSeeded(t, svc, conns)

	// A second reset leaves exactly the same state.
	_, err = s.Reset(ctx)
	require.NoError(t, err)
	assertSeeded(t, svc, conns)
}

func TestResetCreatesMissingSchema(t *testing.T) {
	s, svc, conns := newSeeder(t)
	require.NoError(t, database.EnsureDeleted(context.Background(), conns.Writer))

	_, err := s.Reset(context.Background())
	require.NoError(t, err)
	assertSeeded(t, svc, conns)
}
