// Package topping splits a box's fixed unit count across the toppings a
// customer picked and prices the resulting box.
package topping

import (
	"strings"

	"github.com/noah-isme/backend-bakery/internal/catalog"
	"github.com/noah-isme/backend-bakery/internal/common"
)

// Share is the number of box units assigned to one topping.
type Share struct {
	ToppingID string `json:"toppingId"`
	Count     int    `json:"count"`
}

// Distribution lists shares in selection order.
type Distribution []Share

// Total returns the sum of all shares.
func (d Distribution) Total() int {
	total := 0
	for _, s := range d {
		total += s.Count
	}
	return total
}

// IDs returns the topping ids in selection order.
func (d Distribution) IDs() []string {
	ids := make([]string, 0, len(d))
	for _, s := range d {
		ids = append(ids, s.ToppingID)
	}
	return ids
}

// Map returns the distribution keyed by topping id.
func (d Distribution) Map() map[string]int {
	m := make(map[string]int, len(d))
	for _, s := range d {
		m[s.ToppingID] = s.Count
	}
	return m
}

// Distribute splits baseQuantity units across selected. Every topping gets
// baseQuantity/n units and the first baseQuantity%n toppings, in the order
// given, get one more.
func Distribute(baseQuantity, maxToppings int, selected []string) (Distribution, error) {
	n := len(selected)
	if n == 0 {
		return nil, common.ValidationError(nil, "select at least one topping")
	}
	if n > maxToppings {
		return nil, common.ValidationError(map[string]any{"max": maxToppings, "selected": n}, "too many toppings")
	}
	if baseQuantity < n {
		return nil, common.ValidationError(map[string]any{"baseQuantity": baseQuantity}, "box cannot hold %d toppings", n)
	}
	seen := make(map[string]struct{}, n)
	for _, id := range selected {
		if strings.TrimSpace(id) == "" {
			return nil, common.ValidationError(nil, "topping id is required")
		}
		if _, dup := seen[id]; dup {
			return nil, common.ValidationError(map[string]any{"toppingId": id}, "topping %q selected twice", id)
		}
		seen[id] = struct{}{}
	}

	base := baseQuantity / n
	remainder := baseQuantity % n
	out := make(Distribution, n)
	for i, id := range selected {
		count := base
		if i < remainder {
			count++
		}
		out[i] = Share{ToppingID: id, Count: count}
	}
	return out, nil
}

// Box is a confirmed customization ready to become a cart line item.
type Box struct {
	Product      catalog.Product `json:"product"`
	Distribution Distribution    `json:"distribution"`
	Price        int64           `json:"price"`
}

// Customize validates a topping selection for a box product against the
// catalog, distributes the units and prices the box as the product price plus
// every selected topping's surcharge.
func Customize(lookup catalog.Lookup, productID string, selected []string) (Box, error) {
	product, err := lookup.Product(productID)
	if err != nil {
		return Box{}, err
	}
	if !product.Category.IsBox() {
		return Box{}, common.ValidationError(map[string]any{"productId": productID}, "product %q is not customizable", productID)
	}
	price := product.UnitPrice
	for _, id := range selected {
		t, err := lookup.Topping(id)
		if err != nil {
			return Box{}, err
		}
		price += t.AdditionalCost
	}
	dist, err := Distribute(product.BaseQuantity, product.MaxToppings, selected)
	if err != nil {
		return Box{}, err
	}
	return Box{Product: product, Distribution: dist, Price: price}, nil
}
