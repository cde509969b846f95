package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/kharidari/api/internal/domain"
	"github.com/kharidari/api/internal/platform/auth"
	"github.com/kharidari/api/internal/services"
)

func newMeRouter(wallets services.WalletService, discounts services.DiscountService, carts services.CartService) chi.Router {
	handler := NewMeHandlers(nil, wallets, discounts, carts)
	router := chi.NewRouter()
	router.Route("/me", handler.Routes)
	return router
}

func meRequest(target string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-5", Roles: []string{auth.RoleUser}}))
}

func TestMeHandlersGetWallet(t *testing.T) {
	updatedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	wallets := &stubWalletService{
		getFunc: func(ctx context.Context, userID string) (services.Wallet, error) {
			if userID != "user-5" {
				t.Fatalf("unexpected user id %q", userID)
			}
			return services.Wallet{UserID: "user-5", Balance: 35_000, UpdatedAt: updatedAt}, nil
		},
	}

	router := newMeRouter(wallets, nil, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, meRequest("/me/wallet"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp walletResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Wallet.Balance != 35_000 {
		t.Fatalf("unexpected balance %d", resp.Wallet.Balance)
	}
	if resp.Wallet.UpdatedAt != "2026-03-01T12:00:00Z" {
		t.Fatalf("unexpected updated_at %q", resp.Wallet.UpdatedAt)
	}
}

func TestMeHandlersListWalletEntries(t *testing.T) {
	orderRef := "order-2"
	wallets := &stubWalletService{
		listEntriesFunc: func(ctx context.Context, userID string, pager services.Pagination) (domain.CursorPage[services.WalletEntry], error) {
			if pager.PageSize != 10 {
				t.Fatalf("unexpected page size %d", pager.PageSize)
			}
			if pager.PageToken != "tok-1" {
				t.Fatalf("unexpected page token %q", pager.PageToken)
			}
			return domain.CursorPage[services.WalletEntry]{
				Items: []services.WalletEntry{
					{ID: "entry-1", Amount: 15_000, Reason: "order refund", OrderRef: &orderRef, CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
					{ID: "entry-2", Amount: -5_000, Reason: "order payment", CreatedAt: time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)},
				},
				NextPageToken: "tok-2",
			}, nil
		},
	}

	router := newMeRouter(wallets, nil, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, meRequest("/me/wallet/entries?page_size=10&page_token=tok-1"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp walletEntriesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Entries) != 2 || resp.NextPageToken != "tok-2" {
		t.Fatalf("unexpected entries payload: %#v", resp)
	}
	if resp.Entries[0].OrderRef != "order-2" {
		t.Fatalf("expected order ref on credit entry, got %q", resp.Entries[0].OrderRef)
	}
	if resp.Entries[1].Amount != -5_000 {
		t.Fatalf("expected negative debit amount, got %d", resp.Entries[1].Amount)
	}
}

func TestMeHandlersListAccountDiscounts(t *testing.T) {
	discounts := &stubDiscountService{
		listAccountFunc: func(ctx context.Context, query services.AccountDiscountQuery) ([]services.Discount, error) {
			if query.UserID != "user-5" {
				t.Fatalf("unexpected user id %q", query.UserID)
			}
			if query.Subtotal != 90_000 {
				t.Fatalf("unexpected subtotal %d", query.Subtotal)
			}
			return []services.Discount{
				{
					ID:            "disc-1",
					Name:          "Loyalty 5%",
					Kind:          services.DiscountKindAccount,
					DiscountType:  services.DiscountTypePercentage,
					DiscountValue: 5,
					MinimumAmount: 50_000,
				},
				{
					ID:            "disc-2",
					Name:          "Big basket",
					Kind:          services.DiscountKindAccount,
					DiscountType:  services.DiscountTypeFixed,
					DiscountValue: 20_000,
					MinimumAmount: 150_000,
				},
			}, nil
		},
	}

	router := newMeRouter(nil, discounts, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, meRequest("/me/discounts?subtotal=90000"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp accountDiscountsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Discounts) != 2 {
		t.Fatalf("expected two discounts, got %d", len(resp.Discounts))
	}
	if !resp.Discounts[0].Eligible {
		t.Fatalf("expected first discount to be eligible at 90000")
	}
	if resp.Discounts[1].Eligible {
		t.Fatalf("expected second discount to miss its minimum at 90000")
	}
}

func TestMeHandlersListAccountDiscountsUsesCartSubtotal(t *testing.T) {
	carts := &stubCartService{
		estimateFunc: func(ctx context.Context, userID string) (services.PricingResult, error) {
			return services.PricingResult{Subtotal: 120_000}, nil
		},
	}
	discounts := &stubDiscountService{
		listAccountFunc: func(ctx context.Context, query services.AccountDiscountQuery) ([]services.Discount, error) {
			if query.Subtotal != 120_000 {
				t.Fatalf("expected cart subtotal 120000, got %d", query.Subtotal)
			}
			return nil, nil
		},
	}

	router := newMeRouter(nil, discounts, carts)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, meRequest("/me/discounts"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestMeHandlersListAccountDiscountsInvalidSubtotal(t *testing.T) {
	router := newMeRouter(nil, &stubDiscountService{}, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, meRequest("/me/discounts?subtotal=-5"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestMeHandlersUnauthenticated(t *testing.T) {
	router := newMeRouter(&stubWalletService{}, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/me/wallet", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestMeHandlersWalletUnavailable(t *testing.T) {
	wallets := &stubWalletService{
		getFunc: func(ctx context.Context, userID string) (services.Wallet, error) {
			return services.Wallet{}, services.ErrWalletUnavailable
		},
	}
	router := newMeRouter(wallets, nil, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, meRequest("/me/wallet"))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
