package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kharidari/api/internal/platform/auth"
	"github.com/kharidari/api/internal/platform/httpx"
	"github.com/kharidari/api/internal/services"
)

const (
	defaultWalletPageSize = 20
	maxWalletPageSize     = 100
)

// MeHandlers exposes the authenticated account surface: wallet balance, the
// wallet ledger, and the account discounts available to this user.
type MeHandlers struct {
	authn     *auth.Authenticator
	wallets   services.WalletService
	discounts services.DiscountService
	carts     services.CartService
}

// NewMeHandlers constructs handlers requiring a gateway identity.
func NewMeHandlers(authn *auth.Authenticator, wallets services.WalletService, discounts services.DiscountService, carts services.CartService) *MeHandlers {
	return &MeHandlers{
		authn:     authn,
		wallets:   wallets,
		discounts: discounts,
		carts:     carts,
	}
}

// Routes wires the /me endpoints onto the provided router.
func (h *MeHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireIdentity(auth.RoleUser, auth.RoleStaff, auth.RoleAdmin))
	}
	r.Get("/wallet", h.getWallet)
	r.Get("/wallet/entries", h.listWalletEntries)
	r.Get("/discounts", h.listAccountDiscounts)
}

func (h *MeHandlers) getWallet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}
	if h.wallets == nil {
		httpx.WriteError(ctx, w, httpx.NewError("wallet_service_unavailable", "wallet service is unavailable", http.StatusServiceUnavailable))
		return
	}

	wallet, err := h.wallets.GetWallet(ctx, uid)
	if err != nil {
		h.writeWalletError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, walletResponse{Wallet: walletPayload{
		UserID:    wallet.UserID,
		Balance:   wallet.Balance,
		UpdatedAt: formatTime(wallet.UpdatedAt),
	}})
}

func (h *MeHandlers) listWalletEntries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}
	if h.wallets == nil {
		httpx.WriteError(ctx, w, httpx.NewError("wallet_service_unavailable", "wallet service is unavailable", http.StatusServiceUnavailable))
		return
	}

	page, err := h.wallets.ListEntries(ctx, uid, parsePagination(r, defaultWalletPageSize, maxWalletPageSize))
	if err != nil {
		h.writeWalletError(ctx, w, err)
		return
	}

	payload := walletEntriesResponse{
		Entries:       make([]walletEntryPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, entry := range page.Items {
		item := walletEntryPayload{
			ID:        entry.ID,
			Amount:    entry.Amount,
			Reason:    entry.Reason,
			CreatedAt: formatTime(entry.CreatedAt),
		}
		if entry.OrderRef != nil {
			item.OrderRef = *entry.OrderRef
		}
		payload.Entries = append(payload.Entries, item)
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

// listAccountDiscounts returns the account discounts this user can pick from,
// evaluated against the provided subtotal (defaulting to the current cart).
func (h *MeHandlers) listAccountDiscounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}
	if h.discounts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("discount_service_unavailable", "discount service is unavailable", http.StatusServiceUnavailable))
		return
	}

	subtotal := int64(0)
	if raw := strings.TrimSpace(r.URL.Query().Get("subtotal")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "subtotal must be a non-negative integer", http.StatusBadRequest))
			return
		}
		subtotal = parsed
	} else if h.carts != nil {
		if pricing, err := h.carts.Estimate(ctx, uid); err == nil {
			subtotal = pricing.Subtotal
		}
	}

	discounts, err := h.discounts.ListAccountDiscounts(ctx, services.AccountDiscountQuery{
		UserID:   uid,
		Subtotal: subtotal,
	})
	if err != nil {
		h.writeDiscountError(ctx, w, err)
		return
	}

	payload := accountDiscountsResponse{Discounts: make([]accountDiscountPayload, 0, len(discounts))}
	for _, discount := range discounts {
		payload.Discounts = append(payload.Discounts, accountDiscountPayload{
			ID:            discount.ID,
			Name:          discount.Name,
			DiscountType:  string(discount.DiscountType),
			DiscountValue: discount.DiscountValue,
			MinimumAmount: discount.MinimumAmount,
			Eligible:      subtotal >= discount.MinimumAmount,
		})
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *MeHandlers) requireUser(ctx context.Context, w http.ResponseWriter) (string, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	return identity.UID, true
}

func (h *MeHandlers) writeWalletError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrWalletInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrWalletUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("wallet_service_unavailable", "wallet service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("wallet_error", "wallet request failed", http.StatusInternalServerError))
	}
}

func (h *MeHandlers) writeDiscountError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrDiscountInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrDiscountUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("discount_service_unavailable", "discount service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("discount_error", "discount request failed", http.StatusInternalServerError))
	}
}

type walletResponse struct {
	Wallet walletPayload `json:"wallet"`
}

type walletPayload struct {
	UserID    string `json:"user_id"`
	Balance   int64  `json:"balance"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type walletEntriesResponse struct {
	Entries       []walletEntryPayload `json:"entries"`
	NextPageToken string               `json:"next_page_token,omitempty"`
}

type walletEntryPayload struct {
	ID        string `json:"id"`
	Amount    int64  `json:"amount"`
	Reason    string `json:"reason"`
	OrderRef  string `json:"order_ref,omitempty"`
	CreatedAt string `json:"created_at"`
}

type accountDiscountsResponse struct {
	Discounts []accountDiscountPayload `json:"discounts"`
}

type accountDiscountPayload struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	DiscountType  string `json:"discount_type"`
	DiscountValue int64  `json:"discount_value"`
	MinimumAmount int64  `json:"minimum_amount"`
	Eligible      bool   `json:"eligible"`
}
