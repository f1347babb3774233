package response

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Funclose/Ef-HomeWork/pkg/errorbank"
)

// Envelope is the JSON body of every non-empty response.
type Envelope struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   *ErrorBody     `json:"error,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Builder helps construct consistent HTTP responses.
type Builder struct {
	ctx    echo.Context
	status int
	data   any
	err    error
	meta   map[string]any
}

// New instantiates a Builder for the provided request context.
func New(ctx echo.Context) *Builder {
	return &Builder{ctx: ctx, status: http.StatusOK}
}

// WithStatus overrides the response status code.
func (b *Builder) WithStatus(status int) *Builder {
	if status > 0 {
		b.status = status
	}
	return b
}

// WithData attaches a success payload.
func (b *Builder) WithData(data any) *Builder {
	b.data = data
	return b
}

// WithError records an error to be rendered. Its kind decides the status
// unless an error status was set explicitly.
func (b *Builder) WithError(err error) *Builder {
	b.err = err
	return b
}

// WithMeta appends auxiliary metadata to the response.
func (b *Builder) WithMeta(key string, value any) *Builder {
	if key == "" {
		return b
	}
	if b.meta == nil {
		b.meta = make(map[string]any)
	}
	b.meta[key] = value
	return b
}

// Build finalises and emits the HTTP response. A 204 success has no body.
func (b *Builder) Build() error {
	if b.err != nil {
		appErr := errorbank.From(b.err)
		status := b.status
		if status < http.StatusBadRequest {
			status = appErr.StatusCode()
		}
		return b.ctx.JSON(status, Envelope{
			Error: &ErrorBody{
				Kind:    string(appErr.Kind()),
				Message: appErr.Message(),
				Details: appErr.Details(),
			},
			Meta: b.meta,
		})
	}

	if b.status == http.StatusNoContent {
		return b.ctx.NoContent(b.status)
	}
	return b.ctx.JSON(b.status, Envelope{Success: true, Data: b.data, Meta: b.meta})
}
