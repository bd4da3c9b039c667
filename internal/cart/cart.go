// Package cart implements the session-local shopping cart. A Cart belongs to
// exactly one user session and never touches the entity store; it only turns
// into a persisted order through the order service's Assemble.
package cart

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/vendora/storefront-api/internal/model"
)

var (
	ErrQuantityTooLow = errors.New("quantity must be at least 1")
	ErrItemNotInCart  = errors.New("product not in cart")
)

// Line is one cart entry, unique per catalog product id.
type Line struct {
	ProductID string
	Name      string
	Price     decimal.Decimal
	Image     string
	Quantity  int
}

// Cart accumulates lines and keeps the running total equal to
// sum(price * quantity) after every mutation.
type Cart struct {
	lines []Line
	total decimal.Decimal
}

func New() *Cart {
	return &Cart{total: decimal.Zero}
}

// AddItem appends a line with quantity 1, or bumps the quantity if the
// product is already in the cart.
func (c *Cart) AddItem(p model.Product) {
	id := p.ID.Hex()
	for i := range c.lines {
		if c.lines[i].ProductID == id {
			c.lines[i].Quantity++
			c.recompute()
			return
		}
	}
	c.lines = append(c.lines, Line{
		ProductID: id,
		Name:      p.Name,
		Price:     decimal.NewFromFloat(p.Price),
		Image:     p.Image,
		Quantity:  1,
	})
	c.recompute()
}

// RemoveItem deletes the matching line. Removing an absent product is a no-op.
func (c *Cart) RemoveItem(productID string) {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			c.recompute()
			return
		}
	}
}

// SetQuantity sets the line's quantity exactly. Quantities below 1 are
// rejected; callers that want the line gone must use RemoveItem. Setting a
// quantity for a product that is not in the cart reports ErrItemNotInCart.
func (c *Cart) SetQuantity(productID string, quantity int) error {
	if quantity < 1 {
		return ErrQuantityTooLow
	}
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			c.lines[i].Quantity = quantity
			c.recompute()
			return nil
		}
	}
	return ErrItemNotInCart
}

func (c *Cart) Clear() {
	c.lines = nil
	c.total = decimal.Zero
}

func (c *Cart) Total() decimal.Decimal {
	return c.total
}

func (c *Cart) Len() int {
	return len(c.lines)
}

// Lines returns a copy of the current lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Snapshot freezes the cart into order item snapshots for assembly.
func (c *Cart) Snapshot() []model.OrderItem {
	items := make([]model.OrderItem, 0, len(c.lines))
	for _, l := range c.lines {
		items = append(items, model.OrderItem{
			Name:     l.Name,
			Price:    l.Price.InexactFloat64(),
			Quantity: l.Quantity,
			Image:    l.Image,
		})
	}
	return items
}

func (c *Cart) recompute() {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	c.total = total
}
