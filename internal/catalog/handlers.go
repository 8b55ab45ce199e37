package catalog

import (
	"net/http"

	"github.com/noah-isme/backend-bakery/internal/common"
)

// Handler exposes public catalog endpoints.
type Handler struct {
	catalog *Catalog
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Catalog *Catalog
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{catalog: cfg.Catalog}
}

// Products handles GET /api/v1/catalog/products.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "catalog not configured", nil)
		return
	}
	products := h.catalog.Products()
	if category := Category(r.URL.Query().Get("category")); category != "" {
		if !category.Valid() {
			common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "unknown category", nil)
			return
		}
		filtered := products[:0]
		for _, p := range products {
			if p.Category == category {
				filtered = append(filtered, p)
			}
		}
		products = filtered
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": products})
}

// Toppings handles GET /api/v1/catalog/toppings.
func (h *Handler) Toppings(w http.ResponseWriter, _ *http.Request) {
	if h.catalog == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "catalog not configured", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.catalog.Toppings()})
}
