package database

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/Funclose/Ef-HomeWork/internal/entity"
	"github.com/Funclose/Ef-HomeWork/pkg/errorbank"
)

// EnsureCreated creates the orders and products tables when they are missing.
func EnsureCreated(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewCreateTable().
		Model((*entity.Order)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return errorbank.Persistence("create orders table", errorbank.WithCause(err))
	}

	if _, err := db.NewCreateTable().
		Model(productsTable(db)).
		IfNotExists().
		ForeignKey("(?) REFERENCES ? (?) ON DELETE CASCADE", bun.Ident("order_id"), bun.Ident("orders"), bun.Ident("id")).
		Exec(ctx); err != nil {
		return errorbank.Persistence("create products table", errorbank.WithCause(err))
	}

	return nil
}

// sqliteProduct declares the products table for SQLite. SQLite gives
// decimal(18,2) NUMERIC affinity and stores prices as REAL; a TEXT column keeps
// the decimal string exact. Columns must match entity.Product.
type sqliteProduct struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ID      int64           `bun:"id,pk,autoincrement"`
	Name    string          `bun:"name,notnull"`
	Price   decimal.Decimal `bun:"price,type:text,notnull"`
	OrderID *int64          `bun:"order_id,nullzero"`
}

func productsTable(db bun.IDB) any {
	if db.Dialect().Name() == dialect.SQLite {
		return (*sqliteProduct)(nil)
	}
	return (*entity.Product)(nil)
}

// EnsureDeleted drops every table of the schema. All data is lost.
func EnsureDeleted(ctx context.Context, db bun.IDB) error {
	// products references orders, so it goes first.
	if _, err := db.NewDropTable().Model((*entity.Product)(nil)).IfExists().Exec(ctx); err != nil {
		return errorbank.Persistence("drop products table", errorbank.WithCause(err))
	}
	if _, err := db.NewDropTable().Model((*entity.Order)(nil)).IfExists().Exec(ctx); err != nil {
		return errorbank.Persistence("drop orders table", errorbank.WithCause(err))
	}
	return nil
}

// Reset drops and recreates the schema.
func Reset(ctx context.Context, db bun.IDB) error {
	if err := EnsureDeleted(ctx, db); err != nil {
		return err
	}
	return EnsureCreated(ctx, db)
}
