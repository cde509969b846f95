package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kharidari/api/internal/platform/auth"
	"github.com/kharidari/api/internal/platform/httpx"
	"github.com/kharidari/api/internal/services"
)

const (
	maxCartBodySize  = 16 * 1024
	couponRateLimit  = 10
	couponRateWindow = time.Minute
)

// CartHandlers exposes authenticated cart endpoints for the current user.
type CartHandlers struct {
	authn       *auth.Authenticator
	carts       services.CartService
	couponLimit rateLimiter
}

// CartHandlersOption customises cart handler construction.
type CartHandlersOption func(*CartHandlers)

// WithCouponRateLimiter overrides the limiter applied to coupon submissions.
func WithCouponRateLimiter(limiter rateLimiter) CartHandlersOption {
	return func(h *CartHandlers) {
		h.couponLimit = limiter
	}
}

// NewCartHandlers constructs handlers requiring a gateway identity before
// invoking the cart service. Coupon submissions are rate limited per user to
// slow down code guessing.
func NewCartHandlers(authn *auth.Authenticator, carts services.CartService, opts ...CartHandlersOption) *CartHandlers {
	h := &CartHandlers{
		authn:       authn,
		carts:       carts,
		couponLimit: newSimpleRateLimiter(couponRateLimit, couponRateWindow, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireIdentity(auth.RoleUser, auth.RoleStaff, auth.RoleAdmin))
	}
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Get("/estimate", h.estimate)
	r.Post("/items", h.addItem)
	r.Patch("/items/{itemID}", h.updateItem)
	r.Delete("/items/{itemID}", h.removeItem)
	r.Post("/coupon", h.applyCoupon)
	r.Delete("/coupon", h.removeDiscount)
	r.Post("/account-discount", h.selectAccountDiscount)
	r.Delete("/discount", h.removeDiscount)
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	cart, err := h.carts.GetOrCreateCart(ctx, uid)
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	if err := h.carts.ClearCart(ctx, uid); err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandlers) estimate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	pricing, err := h.carts.Estimate(ctx, uid)
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, estimateResponse{Estimate: buildPricingPayload(pricing)})
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	var req addCartItemRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}

	cart, err := h.carts.AddItem(ctx, services.AddCartItemCommand{
		UserID:    uid,
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		Name:      req.Name,
		UnitPrice: req.UnitPrice,
		Quantity:  req.Quantity,
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	var req updateCartItemRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}

	cart, err := h.carts.UpdateItemQuantity(ctx, services.UpdateCartItemCommand{
		UserID:   uid,
		ItemID:   chi.URLParam(r, "itemID"),
		Quantity: req.Quantity,
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	cart, err := h.carts.RemoveItem(ctx, services.RemoveCartItemCommand{
		UserID: uid,
		ItemID: chi.URLParam(r, "itemID"),
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) applyCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}
	if h.couponLimit != nil && !h.couponLimit.Allow(uid) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many coupon attempts; try again later", http.StatusTooManyRequests))
		return
	}

	var req applyCouponRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}

	cart, err := h.carts.ApplyCoupon(ctx, services.ApplyCouponCommand{
		UserID: uid,
		Code:   req.Code,
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) selectAccountDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	var req selectAccountDiscountRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}

	cart, err := h.carts.SelectAccountDiscount(ctx, services.SelectAccountDiscountCommand{
		UserID:     uid,
		DiscountID: req.DiscountID,
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) removeDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	cart, err := h.carts.RemoveDiscount(ctx, uid)
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) requireUser(ctx context.Context, w http.ResponseWriter) (string, bool) {
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	return identity.UID, true
}

func (h *CartHandlers) decodeBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) bool {
	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
			return false
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", errEmptyBody.Error(), http.StatusBadRequest))
		return false
	}
	if err := json.Unmarshal(body, out); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return false
	}
	return true
}

func (h *CartHandlers) writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCouponNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_not_found", "coupon code is not recognised", http.StatusNotFound))
	case errors.Is(err, services.ErrCouponInactive):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_inactive", "coupon is not currently active", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCouponMinimumNotMet):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_minimum_not_met", "cart subtotal is below the coupon minimum", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCouponUsageExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_usage_exceeded", "coupon usage limit reached", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrDiscountNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("discount_not_found", "discount not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCartInvalidInput), errors.Is(err, services.ErrDiscountInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartItemNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_item_not_found", "cart item not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCartNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_not_found", "cart not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCartConflict):
		httpx.WriteError(ctx, w, httpx.NewError("cart_conflict", "cart has been modified; refresh and retry", http.StatusConflict))
	case errors.Is(err, services.ErrCartUnavailable), errors.Is(err, services.ErrDiscountUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "cart request failed", http.StatusInternalServerError))
	}
}

func buildCartPayload(cart services.Cart) cartPayload {
	payload := cartPayload{
		ID:         strings.TrimSpace(cart.ID),
		UserID:     strings.TrimSpace(cart.UserID),
		Currency:   strings.ToUpper(strings.TrimSpace(cart.Currency)),
		ItemsCount: len(cart.Items),
		Items:      buildCartItems(cart.Items),
		Metadata:   cloneMap(cart.Metadata),
	}
	if cart.Discount != nil {
		payload.Discount = &cartDiscountPayload{
			DiscountID: cart.Discount.DiscountID,
			Code:       cart.Discount.Code,
			Name:       cart.Discount.Name,
			Kind:       string(cart.Discount.Kind),
			SelectedAt: formatTime(cart.Discount.SelectedAt),
		}
	}
	if cart.Estimate != nil {
		estimate := buildPricingPayload(*cart.Estimate)
		payload.Estimate = &estimate
	}
	if !cart.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(cart.UpdatedAt)
	}
	return payload
}

func buildCartItems(items []services.LineItem) []cartItemPayload {
	if len(items) == 0 {
		return []cartItemPayload{}
	}
	payload := make([]cartItemPayload, 0, len(items))
	for _, item := range items {
		entry := cartItemPayload{
			ID:        strings.TrimSpace(item.ID),
			ProductID: strings.TrimSpace(item.ProductID),
			VariantID: strings.TrimSpace(item.VariantID),
			Name:      strings.TrimSpace(item.Name),
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		}
		if !item.AddedAt.IsZero() {
			entry.AddedAt = formatTime(item.AddedAt)
		}
		if item.UpdatedAt != nil && !item.UpdatedAt.IsZero() {
			entry.UpdatedAt = formatTime(*item.UpdatedAt)
		}
		payload = append(payload, entry)
	}
	return payload
}

type cartResponse struct {
	Cart cartPayload `json:"cart"`
}

type estimateResponse struct {
	Estimate pricingPayload `json:"estimate"`
}

type cartPayload struct {
	ID         string               `json:"id"`
	UserID     string               `json:"user_id"`
	Currency   string               `json:"currency"`
	ItemsCount int                  `json:"items_count"`
	Items      []cartItemPayload    `json:"items"`
	Discount   *cartDiscountPayload `json:"discount,omitempty"`
	Estimate   *pricingPayload      `json:"estimate,omitempty"`
	Metadata   map[string]any       `json:"metadata,omitempty"`
	UpdatedAt  string               `json:"updated_at,omitempty"`
}

type cartDiscountPayload struct {
	DiscountID string `json:"discount_id"`
	Code       string `json:"code,omitempty"`
	Name       string `json:"name,omitempty"`
	Kind       string `json:"kind"`
	SelectedAt string `json:"selected_at,omitempty"`
}

type cartItemPayload struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	AddedAt   string `json:"added_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type addCartItemRequest struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

type applyCouponRequest struct {
	Code string `json:"code"`
}

type selectAccountDiscountRequest struct {
	DiscountID string `json:"discount_id"`
}
