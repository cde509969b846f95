package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kharidari/api/internal/platform/auth"
	"github.com/kharidari/api/internal/platform/httpx"
	"github.com/kharidari/api/internal/services"
)

const maxCheckoutBodySize = 8 * 1024

// CheckoutHandlers assembles the checkout page quote for the current user.
type CheckoutHandlers struct {
	authn    *auth.Authenticator
	checkout services.CheckoutService
}

// NewCheckoutHandlers constructs handlers requiring a gateway identity before
// invoking the checkout service.
func NewCheckoutHandlers(authn *auth.Authenticator, checkout services.CheckoutService) *CheckoutHandlers {
	return &CheckoutHandlers{
		authn:    authn,
		checkout: checkout,
	}
}

// Routes wires the /checkout endpoints onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireIdentity(auth.RoleUser, auth.RoleStaff, auth.RoleAdmin))
	}
	r.Post("/quote", h.quote)
}

func (h *CheckoutHandlers) quote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_service_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	var req checkoutQuoteRequest
	body, err := readLimitedBody(r, maxCheckoutBodySize)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	// An empty body quotes the default prepaid flow.
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
			return
		}
	}

	quote, err := h.checkout.Quote(ctx, services.CheckoutQuoteCommand{
		UserID:        identity.UID,
		PaymentMethod: services.PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod))),
		UseWallet:     req.UseWallet,
	})
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, checkoutQuoteResponse{Quote: buildCheckoutQuotePayload(quote)})
}

func (h *CheckoutHandlers) writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCheckoutEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart has no items to check out", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCheckoutCODUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("cod_unavailable", "cash on delivery is not available for this order", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_service_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "checkout request failed", http.StatusInternalServerError))
	}
}

func buildCheckoutQuotePayload(quote services.CheckoutQuote) checkoutQuotePayload {
	return checkoutQuotePayload{
		CartID:        quote.CartID,
		Pricing:       buildPricingPayload(quote.Pricing),
		CODAvailable:  quote.CODAvailable,
		CODLimit:      quote.CODLimit,
		WalletBalance: quote.WalletBalance,
		WalletApplied: quote.WalletApplied,
		AmountDue:     quote.AmountDue,
		QuotedAt:      formatTime(quote.QuotedAt),
	}
}

type checkoutQuoteRequest struct {
	PaymentMethod string `json:"payment_method"`
	UseWallet     bool   `json:"use_wallet"`
}

type checkoutQuoteResponse struct {
	Quote checkoutQuotePayload `json:"quote"`
}

type checkoutQuotePayload struct {
	CartID        string         `json:"cart_id"`
	Pricing       pricingPayload `json:"pricing"`
	CODAvailable  bool           `json:"cod_available"`
	CODLimit      int64          `json:"cod_limit"`
	WalletBalance int64          `json:"wallet_balance"`
	WalletApplied int64          `json:"wallet_applied"`
	AmountDue     int64          `json:"amount_due"`
	QuotedAt      string         `json:"quoted_at"`
}
