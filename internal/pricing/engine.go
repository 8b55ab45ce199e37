package pricing

import "github.com/noah-isme/backend-bakery/internal/catalog"

// Money represents a monetary value stored in minor units.
type Money = int64

// Item describes a line item used for pricing calculation. Box line items
// always carry Qty 1 and a UnitPrice that already includes topping surcharges.
type Item struct {
	Category  catalog.Category
	Qty       int
	UnitPrice Money
}

// PairDiscount grants PerPair off for every two units of Category.
type PairDiscount struct {
	Category catalog.Category
	PerPair  Money
}

// LoafPairDiscount is the storefront's standing loaf promotion.
var LoafPairDiscount = PairDiscount{Category: catalog.CategoryLoaf, PerPair: 400}

// Summary aggregates computed pricing components.
type Summary struct {
	Subtotal      Money `json:"subtotal"`
	Discount      Money `json:"discount"`
	DiscountPairs int   `json:"discountPairs"`
	Total         Money `json:"total"`
}

// Subtotal sums unit price times quantity across items.
func Subtotal(items []Item) Money {
	var subtotal Money
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		subtotal += Money(it.Qty) * it.UnitPrice
	}
	return subtotal
}

// Pairs counts complete pairs of units in the rule's category. Units are
// counted per raw line item, never from a grouped view.
func (d PairDiscount) Pairs(items []Item) int {
	units := 0
	for _, it := range items {
		if it.Category == d.Category && it.Qty > 0 {
			units += it.Qty
		}
	}
	return units / 2
}

// Compute calculates cart totals for the provided items.
func Compute(items []Item, rule PairDiscount) Summary {
	subtotal := Subtotal(items)
	pairs := rule.Pairs(items)
	discount := Money(pairs) * rule.PerPair
	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		discount = 0
	}
	return Summary{
		Subtotal:      subtotal,
		Discount:      discount,
		DiscountPairs: pairs,
		Total:         subtotal - discount,
	}
}
