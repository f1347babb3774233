package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Funclose/Ef-HomeWork/internal/database"
	"github.com/Funclose/Ef-HomeWork/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Funclose/Ef-HomeWork/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// Repository encapsulates read/write access for order aggregates.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Create persists an order together with its products in one transaction.
// Products without an ID are inserted; products with an ID are reassigned to
// the new order.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.Int("order.products", len(order.Products))))
	defer span.End()

	restore := snapshot(order)
	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		for _, product := range order.Products {
			if product == nil {
				continue
			}
			orderID := order.ID
			product.OrderID = &orderID
			if product.ID == 0 {
				if _, err := tx.NewInsert().Model(product).Exec(ctx); err != nil {
					return fmt.Errorf("insert product %q: %w", product.Name, err)
				}
				continue
			}
			if err := reassignProduct(ctx, tx, product); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		restore()
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}

	span.SetAttributes(attribute.Int64("order.id", order.ID))
	return nil
}

// snapshot records the identity fields Create touches and returns a func
// putting them back, so a rolled back write leaves the aggregate unsaved.
func snapshot(order *entity.Order) func() {
	type ident struct {
		id      int64
		orderID *int64
	}
	idents := make([]ident, len(order.Products))
	for i, p := range order.Products {
		if p != nil {
			idents[i] = ident{id: p.ID, orderID: p.OrderID}
		}
	}
	orderID := order.ID
	return func() {
		order.ID = orderID
		for i, p := range order.Products {
			if p != nil {
				p.ID, p.OrderID = idents[i].id, idents[i].orderID
			}
		}
	}
}

func reassignProduct(ctx context.Context, tx bun.Tx, product *entity.Product) error {
	res, err := tx.NewUpdate().
		Model((*entity.Product)(nil)).
		Set("order_id = ?", *product.OrderID).
		Where("id = ?", product.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("assign product %d: %w", product.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("assign product %d: %w", product.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("assign product %d: %w", product.ID, sql.ErrNoRows)
	}

	// Reload so the caller sees the stored name and price.
	if err := tx.NewSelect().Model(product).WherePK().Scan(ctx); err != nil {
		return fmt.Errorf("reload product %d: %w", product.ID, err)
	}
	return nil
}

// GetByID fetches an order and its products by primary key using the read
// replica when available.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := &entity.Order{ID: id}
	err := r.reader.NewSelect().
		Model(order).
		WherePK().
		Relation("Products", orderProducts).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	normalize(order)
	return order, nil
}

// List fetches every order with its products, ordered by id.
func (r *Repository) List(ctx context.Context) ([]*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.List")
	defer span.End()

	orders := make([]*entity.Order, 0)
	err := r.reader.NewSelect().
		Model(&orders).
		Relation("Products", orderProducts).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	for _, order := range orders {
		normalize(order)
	}
	span.SetAttributes(attribute.Int("orders.count", len(orders)))
	return orders, nil
}

// Delete removes an order and its products in one transaction. It reports
// whether the order existed.
func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Delete", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	var deleted bool
	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*entity.Order)(nil)).Where("id = ?", id).Exists(ctx)
		if err != nil {
			return fmt.Errorf("lookup order: %w", err)
		}
		if !exists {
			return nil
		}
		if _, err := tx.NewDelete().Model((*entity.Product)(nil)).Where("order_id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete products: %w", err)
		}
		if _, err := tx.NewDelete().Model((*entity.Order)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete order: %w", err)
		}
		deleted = true
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return false, err
	}
	span.SetAttributes(attribute.Bool("order.deleted", deleted))
	return deleted, nil
}

func orderProducts(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Order("id ASC")
}

func normalize(order *entity.Order) {
	if order.Products == nil {
		order.Products = []*entity.Product{}
	}
}
