package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/kharidari/api/internal/domain"
)

func newTestWalletService(t *testing.T, repo *stubWalletRepository) WalletService {
	t.Helper()
	svc, err := NewWalletService(WalletServiceDeps{
		Repository:  repo,
		Clock:       func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
		IDGenerator: func() string { return "entry-1" },
	})
	if err != nil {
		t.Fatalf("NewWalletService: %v", err)
	}
	return svc
}

func TestWalletCreditAppendsPositiveEntry(t *testing.T) {
	ctx := context.Background()
	var appended domain.WalletEntry
	repo := &stubWalletRepository{
		appendFunc: func(_ context.Context, entry domain.WalletEntry) (domain.Wallet, domain.WalletEntry, error) {
			appended = entry
			return domain.Wallet{UserID: entry.UserID, Balance: entry.Amount}, entry, nil
		},
	}
	svc := newTestWalletService(t, repo)

	ref := "order-1"
	entry, err := svc.Credit(ctx, WalletCreditCommand{UserID: "user-1", Amount: 25_000, Reason: "order cancelled", OrderRef: &ref})
	if err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if entry.Amount != 25_000 || entry.ID != "entry-1" {
		t.Fatalf("unexpected entry %#v", entry)
	}
	if appended.OrderRef == nil || *appended.OrderRef != "order-1" {
		t.Fatalf("expected order ref preserved, got %#v", appended.OrderRef)
	}
}

func TestWalletDebitNegatesAmount(t *testing.T) {
	ctx := context.Background()
	var appended domain.WalletEntry
	repo := &stubWalletRepository{
		appendFunc: func(_ context.Context, entry domain.WalletEntry) (domain.Wallet, domain.WalletEntry, error) {
			appended = entry
			return domain.Wallet{UserID: entry.UserID}, entry, nil
		},
	}
	svc := newTestWalletService(t, repo)

	_, err := svc.Debit(ctx, WalletDebitCommand{UserID: "user-1", Amount: 10_000, Reason: "order payment"})
	if err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if appended.Amount != -10_000 {
		t.Fatalf("expected ledger amount -10000, got %d", appended.Amount)
	}
}

func TestWalletDebitInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	repo := &stubWalletRepository{
		appendFunc: func(context.Context, domain.WalletEntry) (domain.Wallet, domain.WalletEntry, error) {
			return domain.Wallet{}, domain.WalletEntry{}, errStubConflict
		},
	}
	svc := newTestWalletService(t, repo)

	_, err := svc.Debit(ctx, WalletDebitCommand{UserID: "user-1", Amount: 10_000, Reason: "order payment"})
	if !errors.Is(err, ErrWalletInsufficientBalance) {
		t.Fatalf("expected ErrWalletInsufficientBalance, got %v", err)
	}
}

func TestWalletEntryValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestWalletService(t, &stubWalletRepository{})

	cases := []struct {
		name string
		cmd  WalletCreditCommand
	}{
		{"missing user", WalletCreditCommand{Amount: 100, Reason: "refund"}},
		{"zero amount", WalletCreditCommand{UserID: "user-1", Reason: "refund"}},
		{"negative amount", WalletCreditCommand{UserID: "user-1", Amount: -5, Reason: "refund"}},
		{"missing reason", WalletCreditCommand{UserID: "user-1", Amount: 100}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Credit(ctx, tc.cmd); !errors.Is(err, ErrWalletInvalidInput) {
				t.Fatalf("expected ErrWalletInvalidInput, got %v", err)
			}
		})
	}
}

func TestWalletGetAndList(t *testing.T) {
	ctx := context.Background()
	repo := &stubWalletRepository{
		getFunc: func(_ context.Context, userID string) (domain.Wallet, error) {
			return domain.Wallet{UserID: userID, Balance: 55_000}, nil
		},
		listFunc: func(_ context.Context, userID string, _ domain.Pagination) (domain.CursorPage[domain.WalletEntry], error) {
			return domain.CursorPage[domain.WalletEntry]{
				Items: []domain.WalletEntry{{ID: "entry-1", UserID: userID, Amount: 55_000, Reason: "promo credit"}},
			}, nil
		},
	}
	svc := newTestWalletService(t, repo)

	wallet, err := svc.GetWallet(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetWallet: %v", err)
	}
	if wallet.Balance != 55_000 {
		t.Fatalf("unexpected balance %d", wallet.Balance)
	}

	page, err := svc.ListEntries(ctx, "user-1", Pagination{PageSize: 10})
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Reason != "promo credit" {
		t.Fatalf("unexpected page %#v", page)
	}

	if _, err := svc.GetWallet(ctx, " "); !errors.Is(err, ErrWalletInvalidInput) {
		t.Fatalf("expected ErrWalletInvalidInput for blank user, got %v", err)
	}
}
