package cart

import (
	"sync"

	"pos-system/internal/domain"
)

// Cart aggregates line items into a running subtotal. The total is
// maintained incrementally and must always equal the sum of
// unitPrice*quantity over the lines.
type Cart struct {
	mu    sync.Mutex
	lines []domain.CartLine
	total float64
}

func New() *Cart { return &Cart{} }

// AddItem appends a new line with quantity 1, or bumps the quantity of an
// existing line with the same id.
func (c *Cart) AddItem(id, name string, unitPrice float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.lines {
		if c.lines[i].ID == id {
			c.lines[i].Quantity++
			c.total += unitPrice
			return
		}
	}
	c.lines = append(c.lines, domain.CartLine{ID: id, Name: name, UnitPrice: unitPrice, Quantity: 1})
	c.total += unitPrice
}

// UpdateQuantity sets the quantity of a line. Zero or negative removes the
// line. Unknown ids are ignored.
func (c *Cart) UpdateQuantity(id string, quantity int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.lines {
		if c.lines[i].ID != id {
			continue
		}
		if quantity <= 0 {
			c.total -= c.lines[i].UnitPrice * float64(c.lines[i].Quantity)
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
		} else {
			diff := quantity - c.lines[i].Quantity
			c.total += c.lines[i].UnitPrice * float64(diff)
			c.lines[i].Quantity = quantity
		}
		c.clampLocked()
		return
	}
}

func (c *Cart) RemoveItem(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.lines {
		if c.lines[i].ID == id {
			c.total -= c.lines[i].UnitPrice * float64(c.lines[i].Quantity)
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			c.clampLocked()
			return
		}
	}
}

func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
	c.total = 0
}

func (c *Cart) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines) == 0
}

// Lines returns a copy; callers cannot mutate cart state through it.
func (c *Cart) Lines() []domain.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Total() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// A malformed quantity must never corrupt state into a negative total.
func (c *Cart) clampLocked() {
	if c.total < 0 {
		c.total = 0
	}
	if len(c.lines) == 0 {
		c.total = 0
	}
}
