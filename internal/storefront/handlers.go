// Package storefront exposes the cart, box builder and checkout over HTTP.
package storefront

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-bakery/internal/cart"
	"github.com/noah-isme/backend-bakery/internal/catalog"
	"github.com/noah-isme/backend-bakery/internal/checkout"
	"github.com/noah-isme/backend-bakery/internal/common"
	"github.com/noah-isme/backend-bakery/internal/lock"
	"github.com/noah-isme/backend-bakery/internal/order"
	"github.com/noah-isme/backend-bakery/internal/pricing"
	"github.com/noah-isme/backend-bakery/internal/topping"
)

// Handler serves the storefront API.
type Handler struct {
	catalog  *catalog.Catalog
	sessions *cart.Manager
	checkout *checkout.Service
	validate *validator.Validate
	discount pricing.PairDiscount
	currency string
	logger   zerolog.Logger
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Catalog  *catalog.Catalog
	Sessions *cart.Manager
	Checkout *checkout.Service
	Validate *validator.Validate
	Discount pricing.PairDiscount
	Currency string
	Logger   zerolog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.Default()
	}
	if cfg.Validate == nil {
		cfg.Validate = NewValidator()
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.Discount.Category == "" {
		cfg.Discount = pricing.LoafPairDiscount
	}
	return &Handler{
		catalog:  cfg.Catalog,
		sessions: cfg.Sessions,
		checkout: cfg.Checkout,
		validate: cfg.Validate,
		discount: cfg.Discount,
		currency: cfg.Currency,
		logger:   cfg.Logger,
	}
}

type addItemPayload struct {
	ProductID string `json:"productId" validate:"required,max=64"`
}

type boxPayload struct {
	ProductID  string   `json:"productId" validate:"required,max=64"`
	ToppingIDs []string `json:"toppingIds" validate:"required,min=1,max=8,dive,required,max=64"`
}

type deltaPayload struct {
	Delta *int `json:"delta" validate:"required,min=-1000,max=1000"`
}

type cartView struct {
	SessionID string               `json:"sessionId"`
	Currency  string               `json:"currency"`
	Items     []cart.LineItem      `json:"items"`
	Display   []order.DisplayEntry `json:"display"`
	Pricing   pricing.Summary      `json:"pricing"`
	Checkout  checkout.Result      `json:"checkout"`
}

type quoteView struct {
	ProductID    string         `json:"productId"`
	BaseQuantity int            `json:"baseQuantity"`
	Toppings     []string       `json:"toppingIds"`
	Distribution map[string]int `json:"distribution"`
	Price        pricing.Money  `json:"price"`
	Currency     string         `json:"currency"`
}

// QuoteBox handles POST /api/v1/boxes/quote.
func (h *Handler) QuoteBox(w http.ResponseWriter, r *http.Request) {
	var payload boxPayload
	if !h.decode(w, r, &payload) {
		return
	}
	box, err := topping.Customize(h.catalog, payload.ProductID, payload.ToppingIDs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": quoteView{
		ProductID:    box.Product.ID,
		BaseQuantity: box.Product.BaseQuantity,
		Toppings:     box.Distribution.IDs(),
		Distribution: box.Distribution.Map(),
		Price:        box.Price,
		Currency:     h.currency,
	}})
}

// GetCart handles GET /api/v1/carts/{sessionId}.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "cart sessions not configured", nil)
		return
	}
	items, err := h.sessions.Snapshot(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.view(r, items)})
}

// ClearCart handles DELETE /api/v1/carts/{sessionId}.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	store.Clear()
	common.JSON(w, http.StatusOK, map[string]any{"data": h.view(r, store.Items())})
}

// AddItem handles POST /api/v1/carts/{sessionId}/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	var payload addItemPayload
	if !h.decode(w, r, &payload) {
		return
	}
	item, err := store.AddSimple(strings.TrimSpace(payload.ProductID))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"item": item, "cart": h.view(r, store.Items())}})
}

// AddBox handles POST /api/v1/carts/{sessionId}/boxes.
func (h *Handler) AddBox(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	var payload boxPayload
	if !h.decode(w, r, &payload) {
		return
	}
	box, err := topping.Customize(h.catalog, payload.ProductID, payload.ToppingIDs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	item, err := store.AddCustomized(cart.NewBoxItem(box))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"item": item, "cart": h.view(r, store.Items())}})
}

// UpdateItem handles PATCH /api/v1/carts/{sessionId}/items/{lineItemId}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	var payload deltaPayload
	if !h.decode(w, r, &payload) {
		return
	}
	if err := store.UpdateQuantity(chi.URLParam(r, "lineItemId"), *payload.Delta); err != nil {
		h.fail(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.view(r, store.Items())})
}

// UpdateTopping handles PATCH /api/v1/carts/{sessionId}/items/{lineItemId}/toppings/{toppingId}.
func (h *Handler) UpdateTopping(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	var payload deltaPayload
	if !h.decode(w, r, &payload) {
		return
	}
	err := store.UpdateDistribution(chi.URLParam(r, "lineItemId"), chi.URLParam(r, "toppingId"), *payload.Delta)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.view(r, store.Items())})
}

// RemoveItem handles DELETE /api/v1/carts/{sessionId}/items/{lineItemId}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	removed := store.Remove(cart.ByLineItem(chi.URLParam(r, "lineItemId")))
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"removed": removed, "cart": h.view(r, store.Items())}})
}

// RemoveProduct handles DELETE /api/v1/carts/{sessionId}/products/{productId}.
func (h *Handler) RemoveProduct(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	removed := store.Remove(cart.ByProduct(chi.URLParam(r, "productId")))
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"removed": removed, "cart": h.view(r, store.Items())}})
}

// CheckoutStatus handles GET /api/v1/carts/{sessionId}/checkout.
func (h *Handler) CheckoutStatus(w http.ResponseWriter, r *http.Request) {
	if h.checkout == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "checkout not configured", nil)
		return
	}
	res, err := h.checkout.Preview(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": res})
}

// Checkout handles POST /api/v1/carts/{sessionId}/checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.checkout == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "checkout not configured", nil)
		return
	}
	out, err := h.checkout.Submit(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			common.JSONError(w, http.StatusConflict, "CHECKOUT_IN_PROGRESS", "checkout already in progress", nil)
			return
		}
		h.fail(w, r, err)
		return
	}
	common.JSON(w, http.StatusAccepted, map[string]any{"data": out})
}

func (h *Handler) store(w http.ResponseWriter, r *http.Request) (*cart.Store, bool) {
	if h.sessions == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "cart sessions not configured", nil)
		return nil, false
	}
	store, err := h.sessions.Session(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return store, true
}

// view renders one snapshot of the cart; every section is derived from items.
func (h *Handler) view(r *http.Request, items []cart.LineItem) cartView {
	return cartView{
		SessionID: chi.URLParam(r, "sessionId"),
		Currency:  h.currency,
		Items:     items,
		Display:   order.Project(items, h.catalog),
		Pricing:   pricing.Compute(cart.PricingItems(items), h.discount),
		Checkout:  checkout.Evaluate(items, h.catalog),
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid payload", nil)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid payload", fields)
			return false
		}
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid payload", nil)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if !common.IsAppError(err) {
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("storefront request failed")
	}
	common.WriteError(w, err)
}
