// Package console renders orders as plain text for the CLI.
package console

import (
	"fmt"
	"io"

	"github.com/Funclose/Ef-HomeWork/internal/entity"
)

// TimestampLayout is the layout used for order timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// Printer writes orders to an output stream.
type Printer struct {
	w io.Writer
}

// NewPrinter returns a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Orders prints every order followed by its products.
func (p *Printer) Orders(orders []*entity.Order) error {
	for _, o := range orders {
		if err := p.Order(o); err != nil {
			return err
		}
	}
	return nil
}

// Order prints a single order followed by its products.
func (p *Printer) Order(o *entity.Order) error {
	if _, err := fmt.Fprintf(p.w, "Order %d made on %s contains the following products:\n",
		o.ID, o.OrderedAt.Format(TimestampLayout)); err != nil {
		return err
	}
	for _, product := range o.Products {
		if _, err := fmt.Fprintf(p.w, "- %s, Price: %s\n", product.Name, product.Price.StringFixed(2)); err != nil {
			return err
		}
	}
	return nil
}

// Summary prints one product count line per order.
func (p *Printer) Summary(orders []*entity.Order) error {
	for _, o := range orders {
		if _, err := fmt.Fprintf(p.w, "Order %d has %d products.\n", o.ID, o.ProductCount()); err != nil {
			return err
		}
	}
	return nil
}

// Line prints a single status line.
func (p *Printer) Line(msg string) error {
	_, err := fmt.Fprintln(p.w, msg)
	return err
}
