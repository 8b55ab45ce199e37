// Package order projects raw cart line items into the grouped view shown to
// shoppers. The projection is display only; pricing always reads raw items.
package order

import (
	"github.com/noah-isme/backend-bakery/internal/cart"
	"github.com/noah-isme/backend-bakery/internal/catalog"
	"github.com/noah-isme/backend-bakery/internal/pricing"
)

// Entry kinds.
const (
	KindSimple = "simple"
	KindBox    = "box"
)

// ToppingCount is one topping's share of a box in selection order.
type ToppingCount struct {
	ToppingID string `json:"toppingId"`
	Name      string `json:"name,omitempty"`
	Count     int    `json:"count"`
}

// DisplayEntry is one row of the grouped cart.
type DisplayEntry struct {
	Key         string           `json:"key"`
	Kind        string           `json:"kind"`
	ProductID   string           `json:"productId"`
	Name        string           `json:"name"`
	Category    catalog.Category `json:"category"`
	Quantity    int              `json:"quantity"`
	UnitPrice   pricing.Money    `json:"unitPrice"`
	LineTotal   pricing.Money    `json:"lineTotal"`
	LineItemIDs []string         `json:"lineItemIds"`
	Toppings    []ToppingCount   `json:"toppings,omitempty"`
	Units       int              `json:"units,omitempty"`
	BaseUnits   int              `json:"baseQuantity,omitempty"`
	Complete    bool             `json:"complete"`
}

// Project groups simple line items by product in order of first appearance and
// keeps every box as its own entry. lookup supplies box base quantities and
// topping names; it may be nil. Project never modifies items.
func Project(items []cart.LineItem, lookup catalog.Lookup) []DisplayEntry {
	out := make([]DisplayEntry, 0, len(items))
	byProduct := make(map[string]int)
	for _, it := range items {
		if it.IsBox() {
			out = append(out, boxEntry(it, lookup))
			continue
		}
		if idx, ok := byProduct[it.ProductID]; ok {
			e := &out[idx]
			e.Quantity += it.Quantity
			e.LineTotal += it.LineTotal()
			e.LineItemIDs = append(e.LineItemIDs, it.ID)
			continue
		}
		byProduct[it.ProductID] = len(out)
		out = append(out, DisplayEntry{
			Key:         it.ProductID,
			Kind:        KindSimple,
			ProductID:   it.ProductID,
			Name:        it.Name,
			Category:    it.Category,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.LineTotal(),
			LineItemIDs: []string{it.ID},
			Complete:    true,
		})
	}
	return out
}

func boxEntry(it cart.LineItem, lookup catalog.Lookup) DisplayEntry {
	e := DisplayEntry{
		Key:         it.ID,
		Kind:        KindBox,
		ProductID:   it.ProductID,
		Name:        it.Name,
		Category:    it.Category,
		Quantity:    it.Quantity,
		UnitPrice:   it.UnitPrice,
		LineTotal:   it.LineTotal(),
		LineItemIDs: []string{it.ID},
		Units:       it.Units(),
	}
	for _, id := range it.Toppings {
		tc := ToppingCount{ToppingID: id, Count: it.Distribution[id]}
		if lookup != nil {
			if t, err := lookup.Topping(id); err == nil {
				tc.Name = t.Name
			}
		}
		e.Toppings = append(e.Toppings, tc)
	}
	if lookup != nil {
		if p, err := lookup.Product(it.ProductID); err == nil {
			e.BaseUnits = p.BaseQuantity
			e.Complete = e.Units == p.BaseQuantity
		}
	}
	return e
}
