// Package checkout decides whether a cart may be submitted and hands
// confirmed carts to the order queue.
package checkout

import (
	"fmt"
	"net/http"

	"github.com/noah-isme/backend-bakery/internal/cart"
	"github.com/noah-isme/backend-bakery/internal/catalog"
	"github.com/noah-isme/backend-bakery/internal/common"
	"github.com/noah-isme/backend-bakery/internal/obs"
)

// State is the gate's verdict.
type State string

const (
	StateReady   State = "ready"
	StateBlocked State = "blocked"
)

// Issue rules.
const (
	RuleEmptyCart      = "empty_cart"
	RuleIncomplete     = "incomplete_distribution"
	RuleOverfilled     = "overfilled_distribution"
	RuleUnknownProduct = "unknown_product"
)

// Issue names one reason a cart is blocked.
type Issue struct {
	LineItemID string `json:"lineItemId,omitempty"`
	ProductID  string `json:"productId,omitempty"`
	Rule       string `json:"rule"`
	Expected   int    `json:"expected,omitempty"`
	Actual     int    `json:"actual,omitempty"`
	Message    string `json:"message"`
}

// Result is the outcome of Evaluate.
type Result struct {
	State  State   `json:"state"`
	Issues []Issue `json:"issues"`
}

// Ready reports whether the cart may be submitted.
func (r Result) Ready() bool { return r.State == StateReady }

// Err returns an integrity error listing every issue, or nil when ready.
func (r Result) Err() error {
	if r.Ready() {
		return nil
	}
	return IntegrityError(r.Issues)
}

// IntegrityError builds the 409 error rendered for a blocked checkout.
func IntegrityError(issues []Issue) *common.AppError {
	msg := "cart is not ready for checkout"
	if len(issues) == 1 {
		msg = issues[0].Message
	}
	return &common.AppError{
		Code:       common.CodeIntegrity,
		Message:    msg,
		HTTPStatus: http.StatusConflict,
		Err:        fmt.Errorf("%s: %w", msg, common.ErrIntegrity),
		Details:    issues,
	}
}

// Evaluate checks that the cart is non-empty and that every box holds exactly
// its product's base quantity. Items are never modified.
func Evaluate(items []cart.LineItem, lookup catalog.Lookup) Result {
	if lookup == nil {
		lookup = catalog.Default()
	}
	res := Result{State: StateReady, Issues: []Issue{}}
	if len(items) == 0 {
		res.Issues = append(res.Issues, Issue{Rule: RuleEmptyCart, Message: "cart is empty"})
	}
	for _, it := range items {
		product, err := lookup.Product(it.ProductID)
		if err != nil {
			res.Issues = append(res.Issues, Issue{
				LineItemID: it.ID,
				ProductID:  it.ProductID,
				Rule:       RuleUnknownProduct,
				Message:    fmt.Sprintf("product %q is no longer available", it.ProductID),
			})
			continue
		}
		if !it.IsBox() {
			continue
		}
		units := it.Units()
		switch {
		case units < product.BaseQuantity:
			res.Issues = append(res.Issues, Issue{
				LineItemID: it.ID,
				ProductID:  it.ProductID,
				Rule:       RuleIncomplete,
				Expected:   product.BaseQuantity,
				Actual:     units,
				Message:    fmt.Sprintf("%s has %d of %d items assigned", product.Name, units, product.BaseQuantity),
			})
		case units > product.BaseQuantity:
			res.Issues = append(res.Issues, Issue{
				LineItemID: it.ID,
				ProductID:  it.ProductID,
				Rule:       RuleOverfilled,
				Expected:   product.BaseQuantity,
				Actual:     units,
				Message:    fmt.Sprintf("%s has %d items assigned but holds %d", product.Name, units, product.BaseQuantity),
			})
		}
	}
	if len(res.Issues) > 0 {
		res.State = StateBlocked
	}
	obs.ObserveCheckoutGate(string(res.State))
	return res
}
