package order

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Funclose/Ef-HomeWork/internal/dto"
	"github.com/Funclose/Ef-HomeWork/internal/entity"
	"github.com/Funclose/Ef-HomeWork/internal/presentation/http/response"
	service "github.com/Funclose/Ef-HomeWork/internal/service/order"
	"github.com/Funclose/Ef-HomeWork/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Funclose/Ef-HomeWork/transport/http/order")

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc      *service.Service
	validate *validator.Validate
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.GET("", h.list)
	g.GET("/:id", h.getByID)
	g.POST("", h.create)
	g.DELETE("/:id", h.delete)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.list")
	defer span.End()

	orders, err := h.svc.List(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toDTO(o))
	}
	return b.WithData(out).WithMeta("count", len(out)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(toDTO(order)).Build()
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload dto.CreateOrderRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if err := h.validate.Struct(payload); err != nil {
		return b.WithError(validationError(err)).Build()
	}

	order := &entity.Order{Products: make([]*entity.Product, 0, len(payload.Products)+len(payload.ProductIDs))}
	if payload.OrderedAt != nil {
		order.OrderedAt = payload.OrderedAt.UTC()
	}
	for i, p := range payload.Products {
		if p.Price.IsNegative() {
			return b.WithError(errorbank.Unprocessable("price must not be negative",
				errorbank.WithDetail("field", "products["+strconv.Itoa(i)+"].price"))).Build()
		}
		order.Products = append(order.Products, &entity.Product{Name: p.Name, Price: p.Price})
	}
	for _, id := range payload.ProductIDs {
		order.Products = append(order.Products, &entity.Product{ID: id})
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create")
	span.SetAttributes(attribute.Int("order.products", len(order.Products)))
	defer span.End()

	if err := h.svc.Add(ctx, order); err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(toDTO(order)).Build()
}

func (h *Handler) delete(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.delete", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if err := h.svc.Delete(ctx, id); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusNoContent).Build()
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, errorbank.BadRequest("invalid id", errorbank.WithCause(err))
	}
	return id, nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errorbank.BadRequest("invalid payload", errorbank.WithCause(err))
	}
	fields := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		fields[fe.Namespace()] = fe.Tag()
	}
	return errorbank.Unprocessable("payload failed validation", errorbank.WithDetails(fields), errorbank.WithCause(err))
}

func toDTO(order *entity.Order) dto.OrderResponse {
	products := make([]dto.ProductResponse, 0, len(order.Products))
	for _, p := range order.Products {
		products = append(products, dto.ProductResponse{ID: p.ID, Name: p.Name, Price: p.Price})
	}
	return dto.OrderResponse{
		ID:           order.ID,
		OrderedAt:    order.OrderedAt,
		ProductCount: order.ProductCount(),
		Products:     products,
	}
}
