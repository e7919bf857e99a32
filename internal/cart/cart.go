package cart

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/instrugate/api/internal/domain"
)

var (
	// ErrInvalidEntry indicates an entry that cannot be added as-is.
	ErrInvalidEntry = errors.New("cart: invalid entry")
	// ErrIndexOutOfRange indicates an entry index outside the cart.
	ErrIndexOutOfRange = errors.New("cart: entry index out of range")
	// ErrClearNotRequested indicates a confirmation token that does not match a pending clear request.
	ErrClearNotRequested = errors.New("cart: clear was not requested")
)

// Store is the persistence port behind the cart. Implementations only need
// whole-list semantics; the last writer wins.
type Store interface {
	Load(ctx context.Context) ([]domain.CartEntry, error)
	Save(ctx context.Context, entries []domain.CartEntry) error
	Clear(ctx context.Context) error
}

// Cart accumulates configured instruments pending quotation submission.
// Every mutation is written through to the injected store so the list
// survives process restarts.
type Cart struct {
	mu      sync.Mutex
	store   Store
	entries []domain.CartEntry

	clearToken string
	tokenGen   func() string
}

// Option customises cart construction.
type Option func(*Cart)

// WithTokenGenerator overrides the clear-confirmation token source.
func WithTokenGenerator(gen func() string) Option {
	return func(c *Cart) {
		if gen != nil {
			c.tokenGen = gen
		}
	}
}

// New constructs a cart backed by the given store and loads its current contents.
func New(ctx context.Context, store Store, opts ...Option) (*Cart, error) {
	if store == nil {
		return nil, errors.New("cart: store is required")
	}
	c := &Cart{
		store:    store,
		tokenGen: func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	entries, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	c.entries = entries
	return c, nil
}

// Entries returns a copy of the current entries in insertion order.
func (c *Cart) Entries() []domain.CartEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.CartEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// AddEntry records a finalized configuration. Adding a configuration that is
// already in the cart bumps its quantity instead of appending a duplicate line.
func (c *Cart) AddEntry(ctx context.Context, entry domain.CartEntry) error {
	if strings.TrimSpace(entry.InstrumentID) == "" || strings.TrimSpace(entry.ProductCode) == "" {
		return ErrInvalidEntry
	}
	if entry.Quantity < 1 {
		entry.Quantity = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	next := append([]domain.CartEntry(nil), c.entries...)
	if i := indexOfConfiguration(next, entry); i >= 0 {
		next[i].Quantity += entry.Quantity
	} else {
		next = append(next, entry)
	}
	if err := c.store.Save(ctx, next); err != nil {
		return err
	}
	c.entries = next
	c.clearToken = ""
	return nil
}

// indexOfConfiguration finds an entry with the same instrument, the same
// selections in field order, and the same add-on set. Product codes alone
// are not compared; they can collide across instruments.
func indexOfConfiguration(entries []domain.CartEntry, entry domain.CartEntry) int {
	for i, existing := range entries {
		if sameConfiguration(existing, entry) {
			return i
		}
	}
	return -1
}

func sameConfiguration(a, b domain.CartEntry) bool {
	if a.InstrumentID != b.InstrumentID || len(a.Selections) != len(b.Selections) || len(a.AddOns) != len(b.AddOns) {
		return false
	}
	for i := range a.Selections {
		if a.Selections[i].FieldID != b.Selections[i].FieldID || a.Selections[i].OptionID != b.Selections[i].OptionID {
			return false
		}
	}
	addOns := make(map[string]int, len(a.AddOns))
	for _, addOn := range a.AddOns {
		addOns[addOn.AddOnID]++
	}
	for _, addOn := range b.AddOns {
		addOns[addOn.AddOnID]--
		if addOns[addOn.AddOnID] < 0 {
			return false
		}
	}
	return true
}

// RemoveEntry drops the entry at the given position.
func (c *Cart) RemoveEntry(ctx context.Context, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeLocked(ctx, index)
}

// SetQuantity updates the entry's quantity. A quantity of zero or less
// removes the entry.
func (c *Cart) SetQuantity(ctx context.Context, index, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.entries) {
		return ErrIndexOutOfRange
	}
	if quantity <= 0 {
		return c.removeLocked(ctx, index)
	}

	next := append([]domain.CartEntry(nil), c.entries...)
	next[index].Quantity = quantity
	if err := c.store.Save(ctx, next); err != nil {
		return err
	}
	c.entries = next
	return nil
}

// RequestClear starts the destructive clear flow and returns the token that
// must be echoed back to ConfirmClear. Any other mutation voids the token.
func (c *Cart) RequestClear() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearToken = c.tokenGen()
	return c.clearToken
}

// ConfirmClear empties the cart when the token matches the pending request.
func (c *Cart) ConfirmClear(ctx context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clearToken == "" || token != c.clearToken {
		return ErrClearNotRequested
	}
	if err := c.store.Clear(ctx); err != nil {
		return err
	}
	c.entries = nil
	c.clearToken = ""
	return nil
}

// AggregateTotal sums unit totals weighted by quantity, in minor currency units.
func (c *Cart) AggregateTotal() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total int64
	for _, entry := range c.entries {
		qty := entry.Quantity
		if qty < 1 {
			qty = 1
		}
		total += entry.UnitTotal() * int64(qty)
	}
	return total
}

func (c *Cart) removeLocked(ctx context.Context, index int) error {
	if index < 0 || index >= len(c.entries) {
		return ErrIndexOutOfRange
	}
	next := append([]domain.CartEntry(nil), c.entries[:index]...)
	next = append(next, c.entries[index+1:]...)
	if err := c.store.Save(ctx, next); err != nil {
		return err
	}
	c.entries = next
	c.clearToken = ""
	return nil
}
