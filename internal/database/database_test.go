package database_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/Funclose/Ef-HomeWork/internal/config"
	"github.com/Funclose/Ef-HomeWork/internal/database"
	"github.com/Funclose/Ef-HomeWork/internal/database/dbtest"
	"github.com/Funclose/Ef-HomeWork/internal/entity"
	"github.com/Funclose/Ef-HomeWork/pkg/errorbank"
)

func TestOpenAndClose(t *testing.T) {
	ctx := context.Background()
	conns, err := database.Open(ctx, dbtest.Config(t), zap.NewNop())
	require.NoError(t, err)
	assert.Same(t, conns.Writer, conns.Reader)

	require.NoError(t, conns.Ping(ctx))
	require.NoError(t, conns.Close())
	require.NoError(t, conns.Close())
	assert.Error(t, conns.Writer.DB.PingContext(ctx))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	cfg := config.Database{Connection: config.Connection{Driver: "oracle", DSN: "x"}}

	_, err := database.Open(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindConfiguration))
}

func TestOpenRejectsEmptyDSN(t *testing.T) {
	cfg := config.Database{Connection: config.Connection{Driver: "sqlite"}}

	_, err := database.Open(context.Background(), cfg, zap.NewNop())
	assert.True(t, errorbank.IsKind(err, errorbank.KindConfiguration))
}

func TestOpenReportsUnreachableStore(t *testing.T) {
	cfg := config.Database{Connection: config.Connection{
		Driver: "sqlite",
		DSN:    "file:" + filepath.Join(t.TempDir(), "missing", "shop.db") + "?mode=ro",
	}}

	_, err := database.Open(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindPersistence))
}

func TestWithReleasesOnError(t *testing.T) {
	boom := errors.New("boom")
	var held *database.Connections

	err := database.With(context.Background(), dbtest.Config(t), zap.NewNop(), func(conns *database.Connections) error {
		held = conns
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NotNil(t, held)
	assert.Error(t, held.Writer.DB.PingContext(context.Background()))
}

func TestWithReleasesOnSuccess(t *testing.T) {
	var held *database.Connections

	err := database.With(context.Background(), dbtest.Config(t), zap.NewNop(), func(conns *database.Connections) error {
		held = conns
		return database.EnsureCreated(context.Background(), conns.Writer)
	})
	require.NoError(t, err)
	assert.Error(t, held.Writer.DB.PingContext(context.Background()))
}

func TestNewTiesHandleToLifecycle(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	cfg := config.Config{Database: dbtest.Config(t)}

	conns, err := database.New(lc, cfg, zap.NewNop())
	require.NoError(t, err)

	lc.RequireStart()
	require.NoError(t, conns.Writer.DB.PingContext(context.Background()))
	lc.RequireStop()
	assert.Error(t, conns.Writer.DB.PingContext(context.Background()))
}

func TestSchemaLifecycle(t *testing.T) {
	ctx := context.Background()
	conns := dbtest.Open(t)
	db := conns.Writer

	// Creating twice is harmless.
	require.NoError(t, database.EnsureCreated(ctx, db))

	product := &entity.Product{Name: "Widget", Price: decimal.NewFromInt(3)}
	_, err := db.NewInsert().Model(product).Exec(ctx)
	require.NoError(t, err)

	count, err := db.NewSelect().Model((*entity.Product)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, database.Reset(ctx, db))

	count, err = db.NewSelect().Model((*entity.Product)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, database.EnsureDeleted(ctx, db))
	_, err = db.NewSelect().Model((*entity.Product)(nil)).Count(ctx)
	assert.Error(t, err)

	// Dropping a missing schema is harmless too.
	require.NoError(t, database.EnsureDeleted(ctx, db))
}

func TestForeignKeyCascade(t *testing.T) {
	ctx := context.Background()
	conns := dbtest.Open(t)
	db := conns.Writer

	order := &entity.Order{}
	_, err := db.NewInsert().Model(order).Exec(ctx)
	require.NoError(t, err)

	product := &entity.Product{Name: "Widget", Price: decimal.NewFromInt(3), OrderID: &order.ID}
	_, err = db.NewInsert().Model(product).Exec(ctx)
	require.NoError(t, err)

	_, err = db.NewDelete().Model((*entity.Order)(nil)).Where("id = ?", order.ID).Exec(ctx)
	require.NoError(t, err)

	count, err := db.NewSelect().Model((*entity.Product)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
