package order_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Funclose/Ef-HomeWork/internal/database/dbtest"
	"github.com/Funclose/Ef-HomeWork/internal/entity"
	repo "github.com/Funclose/Ef-HomeWork/internal/repository/order"
)

func newOrder(products ...*entity.Product) *entity.Order {
	return &entity.Order{
		OrderedAt: time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
		Products:  products,
	}
}

func product(name, price string) *entity.Product {
	return &entity.Product{Name: name, Price: decimal.RequireFromString(price)}
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	r := repo.NewRepository(dbtest.Open(t))

	order := newOrder(product("Apple", "1.25"), product("Pear", "2"))
	require.NoError(t, r.Create(ctx, order))
	require.NotZero(t, order.ID)
	for _, p := range order.Products {
		require.NotZero(t, p.ID)
		require.NotNil(t, p.OrderID)
		assert.Equal(t, order.ID, *p.OrderID)
	}

	got, err := r.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
	assert.WithinDuration(t, order.OrderedAt, got.OrderedAt, time.Second)
	require.Len(t, got.Products, 2)
	assert.Equal(t, "Apple", got.Products[0].Name)
	assert.True(t, decimal.RequireFromString("1.25").Equal(got.Products[0].Price))
	assert.Equal(t, "Pear", got.Products[1].Name)
	assert.True(t, decimal.NewFromInt(2).Equal(got.Products[1].Price))
}

func TestCreateWithoutProducts(t *testing.T) {
	ctx := context.Background()
	r := repo.NewRepository(dbtest.Open(t))

	order := newOrder()
	require.NoError(t, r.Create(ctx, order))

	got, err := r.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.Products)
	assert.Empty(t, got.Products)
}

func TestCreateReassignsExistingProduct(t *testing.T) {
	ctx := context.Background()
	conns := dbtest.Open(t)
	r := repo.NewRepository(conns)

	loose := product("Loose", "9.99")
	_, err := conns.Writer.NewInsert().Model(loose).Exec(ctx)
	require.NoError(t, err)
	require.Nil(t, loose.OrderID)

	order := newOrder(&entity.Product{ID: loose.ID})
	require.NoError(t, r.Create(ctx, order))

	assert.Equal(t, "Loose", order.Products[0].Name)
	got, err := r.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, got.Products, 1)
	assert.Equal(t, loose.ID, got.Products[0].ID)

	count, err := conns.Writer.NewSelect().Model((*entity.Product)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCreateIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	r := repo.NewRepository(dbtest.Open(t))

	order := newOrder(product("Fresh", "1"), &entity.Product{ID: 4242})
	err := r.Create(ctx, order)
	require.Error(t, err)
	assert.Zero(t, order.ID)
	assert.Zero(t, order.Products[0].ID)
	assert.Nil(t, order.Products[0].OrderID)

	orders, err := r.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestGetByIDNotFound(t *testing.T) {
	r := repo.NewRepository(dbtest.Open(t))

	got, err := r.GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	assert.Nil(t, got)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	r := repo.NewRepository(dbtest.Open(t))

	orders, err := r.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)

	first := newOrder(product("A", "1"))
	second := newOrder()
	third := newOrder(product("B", "2"), product("C", "3"))
	for _, o := range []*entity.Order{first, second, third} {
		require.NoError(t, r.Create(ctx, o))
	}

	orders, err = r.List(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, []int64{first.ID, second.ID, third.ID}, []int64{orders[0].ID, orders[1].ID, orders[2].ID})
	assert.Len(t, orders[0].Products, 1)
	assert.NotNil(t, orders[1].Products)
	assert.Empty(t, orders[1].Products)
	assert.Len(t, orders[2].Products, 2)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	conns := dbtest.Open(t)
	r := repo.NewRepository(conns)

	keep := newOrder(product("Keep", "1"))
	drop := newOrder(product("Drop", "1"), product("Drop too", "2"))
	require.NoError(t, r.Create(ctx, keep))
	require.NoError(t, r.Create(ctx, drop))

	deleted, err := r.Delete(ctx, drop.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = r.GetByID(ctx, drop.ID)
	assert.ErrorIs(t, err, repo.ErrNotFound)

	var names []string
	require.NoError(t, conns.Writer.NewSelect().Model((*entity.Product)(nil)).Column("name").Scan(ctx, &names))
	assert.Equal(t, []string{"Keep"}, names)

	deleted, err = r.Delete(ctx, drop.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestCreateStoresPricesExactly(t *testing.T) {
	ctx := context.Background()
	r := repo.NewRepository(dbtest.Open(t))

	order := newOrder(product("Large", "1234567890123456.78"), product("Half cent", "1.005"), product("Whole", "5"))
	require.NoError(t, r.Create(ctx, order))
	assert.Equal(t, "1.01", order.Products[1].Price.StringFixed(2))

	got, err := r.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, got.Products, 3)
	assert.True(t, decimal.RequireFromString("1234567890123456.78").Equal(got.Products[0].Price), got.Products[0].Price.String())
	assert.True(t, decimal.RequireFromString("1.01").Equal(got.Products[1].Price), got.Products[1].Price.String())
	assert.True(t, decimal.NewFromInt(5).Equal(got.Products[2].Price))
	for i, p := range got.Products {
		assert.True(t, order.Products[i].Price.Equal(p.Price), "product %d", i)
	}
}
