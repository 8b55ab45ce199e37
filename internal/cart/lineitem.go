package cart

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/noah-isme/backend-bakery/internal/catalog"
	"github.com/noah-isme/backend-bakery/internal/pricing"
	"github.com/noah-isme/backend-bakery/internal/topping"
)

// MinToppingUnits is the smallest count a selected topping may hold in a box.
const MinToppingUnits = 3

// LineItem is one cart entry. Category selects the variant: simple products
// carry a Quantity of at least one, customizable boxes always carry Quantity 1
// plus their Toppings (selection order) and Distribution.
type LineItem struct {
	ID           string           `json:"lineItemId"`
	ProductID    string           `json:"productId"`
	Name         string           `json:"name"`
	Category     catalog.Category `json:"category"`
	UnitPrice    pricing.Money    `json:"unitPrice"`
	Quantity     int              `json:"quantity"`
	Toppings     []string         `json:"toppings,omitempty"`
	Distribution map[string]int   `json:"distribution,omitempty"`
}

// IsBox reports whether the line item is a customized box.
func (li LineItem) IsBox() bool { return li.Category.IsBox() }

// Units returns the number of box units assigned across all toppings.
func (li LineItem) Units() int {
	total := 0
	for _, c := range li.Distribution {
		total += c
	}
	return total
}

// LineTotal is UnitPrice times Quantity.
func (li LineItem) LineTotal() pricing.Money {
	return li.UnitPrice * pricing.Money(li.Quantity)
}

// Clone returns a deep copy of the line item.
func (li LineItem) Clone() LineItem {
	out := li
	out.Toppings = slices.Clone(li.Toppings)
	if li.Distribution != nil {
		out.Distribution = make(map[string]int, len(li.Distribution))
		for k, v := range li.Distribution {
			out.Distribution[k] = v
		}
	}
	return out
}

// NewBoxItem turns a confirmed customization into a box line item. The
// identifier is assigned by the store when the item is added.
func NewBoxItem(box topping.Box) LineItem {
	return LineItem{
		ProductID:    box.Product.ID,
		Name:         box.Product.Name,
		Category:     box.Product.Category,
		UnitPrice:    box.Price,
		Quantity:     1,
		Toppings:     box.Distribution.IDs(),
		Distribution: box.Distribution.Map(),
	}
}

// PricingItems converts raw line items into pricing inputs.
func PricingItems(items []LineItem) []pricing.Item {
	out := make([]pricing.Item, 0, len(items))
	for _, it := range items {
		out = append(out, pricing.Item{Category: it.Category, Qty: it.Quantity, UnitPrice: it.UnitPrice})
	}
	return out
}

func cloneItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}

func indexOf(items []LineItem, lineItemID string) int {
	for i, it := range items {
		if it.ID == lineItemID {
			return i
		}
	}
	return -1
}

// SelectorKind distinguishes the two removal targets.
type SelectorKind int

const (
	// SelectLineItem removes exactly one line item.
	SelectLineItem SelectorKind = iota
	// SelectProduct removes every simple line item of a product.
	SelectProduct
)

// RemoveBy selects what a removal applies to.
type RemoveBy struct {
	Kind SelectorKind
	ID   string
}

// ByLineItem selects a single line item by identifier.
func ByLineItem(id string) RemoveBy { return RemoveBy{Kind: SelectLineItem, ID: id} }

// ByProduct selects all simple line items of a product.
func ByProduct(id string) RemoveBy { return RemoveBy{Kind: SelectProduct, ID: id} }

var errMalformed = errors.New("malformed cart record")

// validateRecords checks a decoded cart before it is trusted. Box records
// written without a toppings order get one derived from their distribution.
func validateRecords(items []LineItem) error {
	seen := make(map[string]struct{}, len(items))
	for i := range items {
		it := &items[i]
		if strings.TrimSpace(it.ID) == "" || strings.TrimSpace(it.ProductID) == "" {
			return fmt.Errorf("%w: record %d missing identifiers", errMalformed, i)
		}
		if _, dup := seen[it.ID]; dup {
			return fmt.Errorf("%w: duplicate line item %q", errMalformed, it.ID)
		}
		seen[it.ID] = struct{}{}
		if !it.Category.Valid() {
			return fmt.Errorf("%w: line item %q has category %q", errMalformed, it.ID, it.Category)
		}
		if it.UnitPrice < 0 {
			return fmt.Errorf("%w: line item %q has negative price", errMalformed, it.ID)
		}
		if !it.IsBox() {
			if it.Quantity < 1 || len(it.Distribution) > 0 || len(it.Toppings) > 0 {
				return fmt.Errorf("%w: simple line item %q invalid", errMalformed, it.ID)
			}
			continue
		}
		if it.Quantity != 1 {
			return fmt.Errorf("%w: box line item %q has quantity %d", errMalformed, it.ID, it.Quantity)
		}
		for toppingID, count := range it.Distribution {
			if count < 1 {
				return fmt.Errorf("%w: box line item %q has %d units of %q", errMalformed, it.ID, count, toppingID)
			}
		}
		if len(it.Toppings) == 0 && len(it.Distribution) > 0 {
			for toppingID := range it.Distribution {
				it.Toppings = append(it.Toppings, toppingID)
			}
			sort.Strings(it.Toppings)
			continue
		}
		if len(it.Toppings) != len(it.Distribution) {
			return fmt.Errorf("%w: box line item %q toppings do not match distribution", errMalformed, it.ID)
		}
		listed := make(map[string]struct{}, len(it.Toppings))
		for _, toppingID := range it.Toppings {
			_, ok := it.Distribution[toppingID]
			if _, dup := listed[toppingID]; dup || !ok {
				return fmt.Errorf("%w: box line item %q toppings do not match distribution", errMalformed, it.ID)
			}
			listed[toppingID] = struct{}{}
		}
	}
	return nil
}
