// Package catalog holds the read-only product and topping reference data.
// The data is compiled into the binary and never mutated at runtime.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/backend-bakery/internal/common"
)

// Category is the closed set of product kinds.
type Category string

const (
	CategoryLoaf   Category = "simple-loaf"
	CategoryCookie Category = "simple-cookie"
	CategoryBox    Category = "customizable-box"
)

// PlainToppingID is the surcharge-free topping.
const PlainToppingID = "plain"

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryLoaf, CategoryCookie, CategoryBox:
		return true
	}
	return false
}

// IsBox reports whether products of this category are customizable boxes.
func (c Category) IsBox() bool { return c == CategoryBox }

// Product is a sellable item. BaseQuantity and MaxToppings are only set for
// customizable boxes.
type Product struct {
	ID           string   `yaml:"id" json:"id"`
	Name         string   `yaml:"name" json:"name"`
	UnitPrice    int64    `yaml:"unitPrice" json:"unitPrice"`
	Category     Category `yaml:"category" json:"category"`
	BaseQuantity int      `yaml:"baseQuantity,omitempty" json:"baseQuantity,omitempty"`
	MaxToppings  int      `yaml:"maxToppings,omitempty" json:"maxToppings,omitempty"`
}

// Topping is a box topping with its per-box surcharge.
type Topping struct {
	ID             string `yaml:"id" json:"id"`
	Name           string `yaml:"name" json:"name"`
	AdditionalCost int64  `yaml:"additionalCost" json:"additionalCost"`
}

// Lookup is the read side of the catalog used by the cart core.
type Lookup interface {
	Product(id string) (Product, error)
	Topping(id string) (Topping, error)
}

// Catalog indexes products and toppings while keeping their declared order.
type Catalog struct {
	products    []Product
	toppings    []Topping
	productByID map[string]Product
	toppingByID map[string]Topping
}

type document struct {
	Products []Product `yaml:"products"`
	Toppings []Topping `yaml:"toppings"`
}

//go:embed catalog.yaml
var defaultData []byte

// Default returns the catalog shipped with the binary.
func Default() *Catalog {
	c, err := Parse(defaultData)
	if err != nil {
		panic(fmt.Errorf("catalog: embedded data invalid: %w", err))
	}
	return c
}

// Parse decodes and validates a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(doc.Products, doc.Toppings)
}

// New builds a catalog from the given products and toppings.
func New(products []Product, toppings []Topping) (*Catalog, error) {
	c := &Catalog{
		productByID: make(map[string]Product, len(products)),
		toppingByID: make(map[string]Topping, len(toppings)),
	}
	var errs []error
	for _, p := range products {
		p.ID = strings.TrimSpace(p.ID)
		if err := validateProduct(p); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := c.productByID[p.ID]; dup {
			errs = append(errs, fmt.Errorf("product %q declared twice", p.ID))
			continue
		}
		c.productByID[p.ID] = p
		c.products = append(c.products, p)
	}
	for _, t := range toppings {
		t.ID = strings.TrimSpace(t.ID)
		switch {
		case t.ID == "":
			errs = append(errs, errors.New("topping id is required"))
			continue
		case t.AdditionalCost < 0:
			errs = append(errs, fmt.Errorf("topping %q has negative cost", t.ID))
			continue
		case t.ID == PlainToppingID && t.AdditionalCost != 0:
			errs = append(errs, fmt.Errorf("topping %q must be free", t.ID))
			continue
		}
		if _, dup := c.toppingByID[t.ID]; dup {
			errs = append(errs, fmt.Errorf("topping %q declared twice", t.ID))
			continue
		}
		c.toppingByID[t.ID] = t
		c.toppings = append(c.toppings, t)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return c, nil
}

func validateProduct(p Product) error {
	if p.ID == "" {
		return errors.New("product id is required")
	}
	if !p.Category.Valid() {
		return fmt.Errorf("product %q has unknown category %q", p.ID, p.Category)
	}
	if p.UnitPrice < 0 {
		return fmt.Errorf("product %q has negative price", p.ID)
	}
	if p.Category.IsBox() {
		if p.BaseQuantity < 1 || p.MaxToppings < 1 {
			return fmt.Errorf("box product %q needs baseQuantity and maxToppings", p.ID)
		}
		return nil
	}
	if p.BaseQuantity != 0 || p.MaxToppings != 0 {
		return fmt.Errorf("simple product %q cannot declare box fields", p.ID)
	}
	return nil
}

// Product returns the product with the given id.
func (c *Catalog) Product(id string) (Product, error) {
	p, ok := c.productByID[id]
	if !ok {
		return Product{}, common.CatalogError("unknown product %q", id)
	}
	return p, nil
}

// Topping returns the topping with the given id.
func (c *Catalog) Topping(id string) (Topping, error) {
	t, ok := c.toppingByID[id]
	if !ok {
		return Topping{}, common.CatalogError("unknown topping %q", id)
	}
	return t, nil
}

// Products lists products in declaration order.
func (c *Catalog) Products() []Product {
	return append([]Product(nil), c.products...)
}

// Toppings lists toppings in declaration order.
func (c *Catalog) Toppings() []Topping {
	return append([]Topping(nil), c.toppings...)
}
