package console_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Funclose/Ef-HomeWork/internal/console"
	"github.com/Funclose/Ef-HomeWork/internal/entity"
)

func sampleOrders() []*entity.Order {
	return []*entity.Order{
		{
			ID:        1,
			OrderedAt: time.Date(2024, 2, 29, 8, 5, 3, 0, time.UTC),
			Products: []*entity.Product{
				{Name: "Test", Price: decimal.RequireFromString("2.3")},
				{Name: "Tester2", Price: decimal.NewFromInt(5)},
			},
		},
		{
			ID:        2,
			OrderedAt: time.Date(2024, 3, 1, 23, 59, 59, 0, time.UTC),
			Products:  []*entity.Product{},
		},
	}
}

func TestOrders(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, console.NewPrinter(&buf).Orders(sampleOrders()))

	want := "Order 1 made on 2024-02-29 08:05:03 contains the following products:\n" +
		"- Test, Price: 2.30\n" +
		"- Tester2, Price: 5.00\n" +
		"Order 2 made on 2024-03-01 23:59:59 contains the following products:\n"
	assert.Equal(t, want, buf.String())
}

func TestSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, console.NewPrinter(&buf).Summary(sampleOrders()))

	assert.Equal(t, "Order 1 has 2 products.\nOrder 2 has 0 products.\n", buf.String())
}

func TestEmptyListPrintsNothing(t *testing.T) {
	var buf bytes.Buffer
	p := console.NewPrinter(&buf)
	require.NoError(t, p.Orders(nil))
	require.NoError(t, p.Summary(nil))
	assert.Empty(t, buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestWriteErrorsPropagate(t *testing.T) {
	p := console.NewPrinter(failingWriter{})
	assert.Error(t, p.Orders(sampleOrders()))
	assert.Error(t, p.Summary(sampleOrders()))
}
