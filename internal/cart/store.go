// Package cart owns the authoritative cart state for one shopping session:
// its line items, every mutation applied to them and their persistence.
package cart

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-bakery/internal/catalog"
	"github.com/noah-isme/backend-bakery/internal/common"
	"github.com/noah-isme/backend-bakery/internal/obs"
	"github.com/noah-isme/backend-bakery/internal/pricing"
)

// Options configures a Store.
type Options struct {
	Catalog      catalog.Lookup
	Storage      Storage
	Key          string
	Discount     pricing.PairDiscount
	WriteTimeout time.Duration
	Logger       zerolog.Logger
	NewID        func() string
}

// Store is the single source of truth for one cart. Mutations are serialized
// by a mutex and each one replaces the whole item slice.
type Store struct {
	mu       sync.Mutex
	items    []LineItem
	catalog  catalog.Lookup
	discount pricing.PairDiscount
	newID    func() string
	logger   zerolog.Logger
	writer   *writer
	closed   bool
}

// Open loads the cart stored under opts.Key and starts its background writer.
// Load failures are logged and produce an empty cart.
func Open(ctx context.Context, opts Options) *Store {
	s := &Store{
		catalog:  opts.Catalog,
		discount: opts.Discount,
		newID:    opts.NewID,
		logger:   opts.Logger,
	}
	if s.catalog == nil {
		s.catalog = catalog.Default()
	}
	if s.discount.Category == "" {
		s.discount = pricing.LoafPairDiscount
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	items, err := loadItems(ctx, opts.Storage, opts.Key)
	if err != nil {
		obs.ObserveCartStorageFailure("load")
		s.logger.Warn().Err(err).Str("key", opts.Key).Msg("cart reset to empty")
	}
	s.items = items
	if opts.Storage != nil {
		s.writer = newWriter(opts.Storage, opts.Key, opts.WriteTimeout, s.logger)
	}
	return s
}

// Close flushes pending persistence and stops the writer. The in-memory cart
// stays usable but later mutations are no longer persisted.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.writer != nil {
		s.writer.close()
	}
}

func (s *Store) mutate(op string, fn func(items []LineItem) ([]LineItem, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := fn(cloneItems(s.items))
	if err != nil {
		obs.ObserveCartMutation(op, "rejected")
		return err
	}
	s.items = next
	obs.ObserveCartMutation(op, "ok")
	if s.writer != nil && !s.closed {
		s.writer.enqueue(cloneItems(next))
	}
	return nil
}

// Items returns a copy of the line items in insertion order.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.items)
}

// Len returns the number of line items.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Subtotal sums unit price times quantity over all line items.
func (s *Store) Subtotal() pricing.Money {
	return pricing.Subtotal(PricingItems(s.Items()))
}

// Totals prices the raw cart including the pair discount.
func (s *Store) Totals() pricing.Summary {
	return pricing.Compute(PricingItems(s.Items()), s.discount)
}

// AddSimple adds one unit of a simple product, merging into the existing line
// item for that product when there is one.
func (s *Store) AddSimple(productID string) (LineItem, error) {
	product, err := s.catalog.Product(productID)
	if err != nil {
		return LineItem{}, err
	}
	if product.Category.IsBox() {
		return LineItem{}, common.ValidationError(map[string]any{"productId": productID}, "product %q must be customized before it is added", productID)
	}
	var added LineItem
	err = s.mutate("add_simple", func(items []LineItem) ([]LineItem, error) {
		for i := range items {
			if !items[i].IsBox() && items[i].ProductID == productID {
				items[i].Quantity++
				added = items[i].Clone()
				return items, nil
			}
		}
		added = LineItem{
			ID:        s.newID(),
			ProductID: product.ID,
			Name:      product.Name,
			Category:  product.Category,
			UnitPrice: product.UnitPrice,
			Quantity:  1,
		}
		return append(items, added.Clone()), nil
	})
	return added, err
}

// AddCustomized appends a confirmed box as a new line item. Boxes are never
// merged; the item always receives a fresh identifier.
func (s *Store) AddCustomized(item LineItem) (LineItem, error) {
	if !item.IsBox() {
		return LineItem{}, common.ValidationError(map[string]any{"productId": item.ProductID}, "line item is not a customizable box")
	}
	product, err := s.catalog.Product(item.ProductID)
	if err != nil {
		return LineItem{}, err
	}
	if !product.Category.IsBox() {
		return LineItem{}, common.ValidationError(map[string]any{"productId": item.ProductID}, "product %q is not customizable", item.ProductID)
	}
	if item.Quantity != 0 && item.Quantity != 1 {
		return LineItem{}, common.ValidationError(map[string]any{"quantity": item.Quantity}, "box quantity is always 1")
	}
	if len(item.Toppings) == 0 {
		return LineItem{}, common.ValidationError(nil, "select at least one topping")
	}
	if len(item.Toppings) > product.MaxToppings {
		return LineItem{}, common.ValidationError(map[string]any{"max": product.MaxToppings}, "too many toppings")
	}
	candidate := item.Clone()
	candidate.ID = "pending"
	candidate.Quantity = 1
	if err := validateRecords([]LineItem{candidate}); err != nil {
		return LineItem{}, common.ValidationError(nil, "box distribution does not match its toppings")
	}
	for _, toppingID := range candidate.Toppings {
		if _, err := s.catalog.Topping(toppingID); err != nil {
			return LineItem{}, err
		}
		if candidate.Distribution[toppingID] < MinToppingUnits {
			return LineItem{}, common.ValidationError(issue("", toppingID, "min_per_topping"), "a topping needs at least %d units", MinToppingUnits)
		}
	}
	if candidate.Units() > product.BaseQuantity {
		return LineItem{}, common.ValidationError(map[string]any{"baseQuantity": product.BaseQuantity}, "distribution exceeds %d units", product.BaseQuantity)
	}

	var added LineItem
	err = s.mutate("add_customized", func(items []LineItem) ([]LineItem, error) {
		candidate.ID = s.newID()
		added = candidate.Clone()
		return append(items, candidate), nil
	})
	return added, err
}

// Remove deletes what sel selects and returns how many line items went away.
// Removing something absent is not an error.
func (s *Store) Remove(sel RemoveBy) int {
	removed := 0
	op := "remove_line_item"
	if sel.Kind == SelectProduct {
		op = "remove_product"
	}
	_ = s.mutate(op, func(items []LineItem) ([]LineItem, error) {
		kept := items[:0]
		for _, it := range items {
			switch {
			case sel.Kind == SelectLineItem && it.ID == sel.ID,
				sel.Kind == SelectProduct && !it.IsBox() && it.ProductID == sel.ID:
				removed++
				continue
			}
			kept = append(kept, it)
		}
		return kept, nil
	})
	return removed
}

// RemoveByLineItem deletes a single line item.
func (s *Store) RemoveByLineItem(lineItemID string) bool {
	return s.Remove(ByLineItem(lineItemID)) > 0
}

// RemoveByProduct deletes every simple line item of a product.
func (s *Store) RemoveByProduct(productID string) int {
	return s.Remove(ByProduct(productID))
}

// UpdateQuantity adds delta to a simple line item's quantity and removes the
// item once the quantity drops to zero or below.
func (s *Store) UpdateQuantity(lineItemID string, delta int) error {
	return s.mutate("update_quantity", func(items []LineItem) ([]LineItem, error) {
		idx := indexOf(items, lineItemID)
		if idx < 0 {
			return nil, common.ValidationError(issue(lineItemID, "", "not_found"), "line item %q not found", lineItemID)
		}
		if items[idx].IsBox() {
			return nil, common.ValidationError(issue(lineItemID, "", "box_quantity"), "box quantity cannot be adjusted")
		}
		if delta == 0 {
			return nil, common.ValidationError(issue(lineItemID, "", "zero_delta"), "delta must not be zero")
		}
		next := items[idx].Quantity + delta
		if next <= 0 {
			return slices.Delete(items, idx, idx+1), nil
		}
		items[idx].Quantity = next
		return items, nil
	})
}

// UpdateDistribution moves delta units of a topping into (or out of) a box.
// Increments may not push the box above its base quantity and may not add a
// topping beyond the product's limit; a new topping starts at the per-topping
// minimum. Decrements may land on zero, which drops the topping, but never
// between zero and the minimum. A rejected edit leaves the box untouched.
func (s *Store) UpdateDistribution(lineItemID, toppingID string, delta int) error {
	return s.mutate("update_distribution", func(items []LineItem) ([]LineItem, error) {
		idx := indexOf(items, lineItemID)
		if idx < 0 {
			return nil, common.ValidationError(issue(lineItemID, toppingID, "not_found"), "line item %q not found", lineItemID)
		}
		item := items[idx]
		if !item.IsBox() {
			return nil, common.ValidationError(issue(lineItemID, toppingID, "not_a_box"), "line item %q is not a customizable box", lineItemID)
		}
		if delta == 0 {
			return nil, common.ValidationError(issue(lineItemID, toppingID, "zero_delta"), "delta must not be zero")
		}
		product, err := s.catalog.Product(item.ProductID)
		if err != nil {
			return nil, err
		}
		top, err := s.catalog.Topping(toppingID)
		if err != nil {
			return nil, err
		}

		current, present := item.Distribution[toppingID]
		next := current + delta
		if delta > 0 {
			if item.Units()+delta > product.BaseQuantity {
				return nil, common.ValidationError(issue(lineItemID, toppingID, "max_total"), "box holds at most %d units", product.BaseQuantity)
			}
			if !present && len(item.Distribution) >= product.MaxToppings {
				return nil, common.ValidationError(issue(lineItemID, toppingID, "max_toppings"), "too many toppings")
			}
			if !present && next < MinToppingUnits {
				return nil, common.ValidationError(issue(lineItemID, toppingID, "min_per_topping"), "a topping needs at least %d units", MinToppingUnits)
			}
		} else {
			if !present {
				return nil, common.ValidationError(issue(lineItemID, toppingID, "not_selected"), "topping %q is not in this box", toppingID)
			}
			if next < 0 {
				return nil, common.ValidationError(issue(lineItemID, toppingID, "min_per_topping"), "topping %q only has %d units", toppingID, current)
			}
			if next > 0 && next < MinToppingUnits {
				return nil, common.ValidationError(issue(lineItemID, toppingID, "min_per_topping"), "a topping needs at least %d units", MinToppingUnits)
			}
		}

		if item.Distribution == nil {
			item.Distribution = map[string]int{}
		}
		switch {
		case next == 0:
			delete(item.Distribution, toppingID)
			item.Toppings = slices.DeleteFunc(item.Toppings, func(id string) bool { return id == toppingID })
			item.UnitPrice -= top.AdditionalCost
			if item.UnitPrice < 0 {
				item.UnitPrice = 0
			}
		case !present:
			item.Distribution[toppingID] = next
			item.Toppings = append(item.Toppings, toppingID)
			item.UnitPrice += top.AdditionalCost
		default:
			item.Distribution[toppingID] = next
		}
		items[idx] = item
		return items, nil
	})
}

// Clear empties the cart.
func (s *Store) Clear() {
	_ = s.mutate("clear", func([]LineItem) ([]LineItem, error) {
		return []LineItem{}, nil
	})
}

// Settle removes what a submission took from the cart and reports how many
// line items were dropped. Items added after the snapshot stay. A simple item
// keeps any quantity added since, and a box edited since is kept as it is now.
func (s *Store) Settle(submitted []LineItem) int {
	removed := 0
	_ = s.mutate("settle", func(items []LineItem) ([]LineItem, error) {
		taken := make(map[string]LineItem, len(submitted))
		for _, it := range submitted {
			taken[it.ID] = it
		}
		kept := items[:0]
		for _, it := range items {
			sub, ok := taken[it.ID]
			switch {
			case !ok || sub.ProductID != it.ProductID:
			case !it.IsBox():
				if rest := it.Quantity - sub.Quantity; rest > 0 {
					it.Quantity = rest
					break
				}
				removed++
				continue
			case sameBox(it, sub):
				removed++
				continue
			}
			kept = append(kept, it)
		}
		return kept, nil
	})
	return removed
}

func sameBox(a, b LineItem) bool {
	return a.UnitPrice == b.UnitPrice &&
		slices.Equal(a.Toppings, b.Toppings) &&
		maps.Equal(a.Distribution, b.Distribution)
}

// EditIssue identifies the line item and rule behind a rejected edit.
type EditIssue struct {
	LineItemID string `json:"lineItemId"`
	ToppingID  string `json:"toppingId,omitempty"`
	Rule       string `json:"rule"`
}

func issue(lineItemID, toppingID, rule string) EditIssue {
	return EditIssue{LineItemID: lineItemID, ToppingID: toppingID, Rule: rule}
}
