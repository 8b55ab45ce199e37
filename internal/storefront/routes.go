package storefront

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
)

// NewValidator returns a validator that reports fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Mutating wraps handlers that change a cart, e.g. with a rate limiter.
type Mutating func(http.Handler) http.Handler

// Routes mounts the cart and box endpoints under r. mutate wraps every cart
// mutation and submit wraps the checkout submission. Either may be nil.
func (h *Handler) Routes(r chi.Router, mutate, submit Mutating) {
	wrap := func(mw Mutating, fn http.HandlerFunc) http.Handler {
		if mw == nil {
			return fn
		}
		return mw(fn)
	}

	r.Post("/boxes/quote", h.QuoteBox)
	r.Route("/carts/{sessionId}", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Method(http.MethodDelete, "/", wrap(mutate, h.ClearCart))
		r.Method(http.MethodPost, "/items", wrap(mutate, h.AddItem))
		r.Method(http.MethodPost, "/boxes", wrap(mutate, h.AddBox))
		r.Method(http.MethodPatch, "/items/{lineItemId}", wrap(mutate, h.UpdateItem))
		r.Method(http.MethodDelete, "/items/{lineItemId}", wrap(mutate, h.RemoveItem))
		r.Method(http.MethodPatch, "/items/{lineItemId}/toppings/{toppingId}", wrap(mutate, h.UpdateTopping))
		r.Method(http.MethodDelete, "/products/{productId}", wrap(mutate, h.RemoveProduct))
		r.Get("/checkout", h.CheckoutStatus)
		r.Method(http.MethodPost, "/checkout", wrap(submit, h.Checkout))
	})
}
