package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/kharidari/api/internal/domain"
)

func newTestDiscountService(t *testing.T, discounts *stubDiscountRepository, usage *stubUsageRepository, now time.Time) DiscountService {
	t.Helper()
	if usage == nil {
		usage = &stubUsageRepository{}
	}
	svc, err := NewDiscountService(DiscountServiceDeps{
		Discounts:   discounts,
		Usage:       usage,
		Clock:       func() time.Time { return now },
		IDGenerator: func() string { return "discount-test-id" },
	})
	if err != nil {
		t.Fatalf("NewDiscountService: %v", err)
	}
	return svc
}

func activeCoupon(now time.Time) domain.Discount {
	return domain.Discount{
		ID:            "disc-1",
		Code:          "STORE50",
		Name:          "Store 50",
		Kind:          domain.DiscountKindCoupon,
		DiscountType:  domain.DiscountTypePercentage,
		DiscountValue: 50,
		MinimumAmount: 10_000,
		Active:        true,
		StartsAt:      now.Add(-24 * time.Hour),
		EndsAt:        now.Add(24 * time.Hour),
	}
}

func TestValidateCouponSuccess(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var lookedUp string
	repo := &stubDiscountRepository{
		findByCodeFunc: func(_ context.Context, code string) (domain.Discount, error) {
			lookedUp = code
			return activeCoupon(now), nil
		},
	}
	svc := newTestDiscountService(t, repo, nil, now)

	discount, err := svc.ValidateCoupon(ctx, ValidateCouponCommand{
		UserID:   "user-1",
		Code:     "  store50 ",
		Subtotal: 20_000,
	})
	if err != nil {
		t.Fatalf("ValidateCoupon: %v", err)
	}
	if lookedUp != "STORE50" {
		t.Fatalf("expected normalised lookup STORE50, got %q", lookedUp)
	}
	if discount.ID != "disc-1" {
		t.Fatalf("unexpected discount %q", discount.ID)
	}
}

func TestValidateCouponNormalisesFullWidthCodes(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var lookedUp string
	repo := &stubDiscountRepository{
		findByCodeFunc: func(_ context.Context, code string) (domain.Discount, error) {
			lookedUp = code
			return activeCoupon(now), nil
		},
	}
	svc := newTestDiscountService(t, repo, nil, now)

	if _, err := svc.ValidateCoupon(ctx, ValidateCouponCommand{
		UserID:   "user-1",
		Code:     "ｓｔｏｒｅ５０",
		Subtotal: 20_000,
	}); err != nil {
		t.Fatalf("ValidateCoupon: %v", err)
	}
	if lookedUp != "STORE50" {
		t.Fatalf("expected full-width input folded to STORE50, got %q", lookedUp)
	}
}

func TestValidateCouponRejections(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	limit := 1
	cases := []struct {
		name     string
		discount func() domain.Discount
		usage    *stubUsageRepository
		subtotal int64
		wantErr  error
	}{
		{
			name: "inactive",
			discount: func() domain.Discount {
				d := activeCoupon(now)
				d.Active = false
				return d
			},
			subtotal: 20_000,
			wantErr:  ErrCouponInactive,
		},
		{
			name: "not started",
			discount: func() domain.Discount {
				d := activeCoupon(now)
				d.StartsAt = now.Add(time.Hour)
				return d
			},
			subtotal: 20_000,
			wantErr:  ErrCouponInactive,
		},
		{
			name: "expired",
			discount: func() domain.Discount {
				d := activeCoupon(now)
				d.EndsAt = now.Add(-time.Hour)
				return d
			},
			subtotal: 20_000,
			wantErr:  ErrCouponInactive,
		},
		{
			name:     "below minimum",
			discount: func() domain.Discount { return activeCoupon(now) },
			subtotal: 9_999,
			wantErr:  ErrCouponMinimumNotMet,
		},
		{
			name: "usage exhausted",
			discount: func() domain.Discount {
				d := activeCoupon(now)
				d.MaxUsagePerUser = &limit
				return d
			},
			usage: &stubUsageRepository{
				getFunc: func(_ context.Context, discountID, userID string) (domain.DiscountUsage, error) {
					return domain.DiscountUsage{DiscountID: discountID, UserID: userID, Count: 1}, nil
				},
			},
			subtotal: 20_000,
			wantErr:  ErrCouponUsageExceeded,
		},
	}

	for _, tc := range cases {
		repo := &stubDiscountRepository{
			findByCodeFunc: func(context.Context, string) (domain.Discount, error) {
				return tc.discount(), nil
			},
		}
		svc := newTestDiscountService(t, repo, tc.usage, now)
		_, err := svc.ValidateCoupon(ctx, ValidateCouponCommand{UserID: "user-1", Code: "STORE50", Subtotal: tc.subtotal})
		if !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.wantErr, err)
		}
	}
}

func TestValidateCouponUnknownCode(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestDiscountService(t, &stubDiscountRepository{}, nil, now)

	_, err := svc.ValidateCoupon(ctx, ValidateCouponCommand{UserID: "user-1", Code: "NOPE", Subtotal: 20_000})
	if !errors.Is(err, ErrCouponNotFound) {
		t.Fatalf("expected ErrCouponNotFound, got %v", err)
	}
}

func TestValidateCouponRejectsAccountDiscountCodes(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	repo := &stubDiscountRepository{
		findByCodeFunc: func(context.Context, string) (domain.Discount, error) {
			d := activeCoupon(now)
			d.Kind = domain.DiscountKindAccount
			return d, nil
		},
	}
	svc := newTestDiscountService(t, repo, nil, now)

	_, err := svc.ValidateCoupon(ctx, ValidateCouponCommand{UserID: "user-1", Code: "STORE50", Subtotal: 20_000})
	if !errors.Is(err, ErrCouponNotFound) {
		t.Fatalf("expected ErrCouponNotFound for account discount, got %v", err)
	}
}

func TestListAccountDiscountsDropsExhausted(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	limit := 2
	repo := &stubDiscountRepository{
		listByKindFunc: func(_ context.Context, kind domain.DiscountKind, _ time.Time) ([]domain.Discount, error) {
			if kind != domain.DiscountKindAccount {
				t.Fatalf("expected account kind, got %s", kind)
			}
			return []domain.Discount{
				{ID: "disc-open", Kind: kind, Active: true},
				{ID: "disc-capped", Kind: kind, Active: true, MaxUsagePerUser: &limit},
			}, nil
		},
	}
	usage := &stubUsageRepository{
		getFunc: func(_ context.Context, discountID, userID string) (domain.DiscountUsage, error) {
			if discountID == "disc-capped" {
				return domain.DiscountUsage{DiscountID: discountID, UserID: userID, Count: 2}, nil
			}
			return domain.DiscountUsage{DiscountID: discountID, UserID: userID}, nil
		},
	}
	svc := newTestDiscountService(t, repo, usage, now)

	discounts, err := svc.ListAccountDiscounts(ctx, AccountDiscountQuery{UserID: "user-1", Subtotal: 50_000})
	if err != nil {
		t.Fatalf("ListAccountDiscounts: %v", err)
	}
	if len(discounts) != 1 || discounts[0].ID != "disc-open" {
		t.Fatalf("expected only disc-open, got %#v", discounts)
	}
}

func TestCreateDiscountRejectsDuplicateCode(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	repo := &stubDiscountRepository{
		findByCodeFunc: func(context.Context, string) (domain.Discount, error) {
			return activeCoupon(now), nil
		},
	}
	svc := newTestDiscountService(t, repo, nil, now)

	_, err := svc.CreateDiscount(ctx, UpsertDiscountCommand{
		Discount: Discount{
			Name:          "Duplicate",
			Code:          "STORE50",
			Kind:          DiscountKindCoupon,
			DiscountType:  DiscountTypeFixed,
			DiscountValue: 1000,
		},
	})
	if !errors.Is(err, ErrDiscountConflict) {
		t.Fatalf("expected ErrDiscountConflict, got %v", err)
	}
}

func TestCreateDiscountAccountKindDropsCode(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var inserted domain.Discount
	repo := &stubDiscountRepository{
		insertFunc: func(_ context.Context, discount domain.Discount) error {
			inserted = discount
			return nil
		},
	}
	svc := newTestDiscountService(t, repo, nil, now)

	_, err := svc.CreateDiscount(ctx, UpsertDiscountCommand{
		Discount: Discount{
			Name:          "Loyalty",
			Code:          "SHOULD-VANISH",
			Kind:          DiscountKindAccount,
			DiscountType:  DiscountTypePercentage,
			DiscountValue: 10,
		},
	})
	if err != nil {
		t.Fatalf("CreateDiscount: %v", err)
	}
	if inserted.Code != "" {
		t.Fatalf("expected account discount code cleared, got %q", inserted.Code)
	}
	if inserted.ID != "discount-test-id" {
		t.Fatalf("expected generated id, got %q", inserted.ID)
	}
}

func TestRecordUsageIncrements(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var incremented bool
	usage := &stubUsageRepository{
		incrementFunc: func(_ context.Context, discountID, userID string, at time.Time) (domain.DiscountUsage, error) {
			incremented = true
			if discountID != "disc-1" || userID != "user-1" {
				t.Fatalf("unexpected increment args %s/%s", discountID, userID)
			}
			return domain.DiscountUsage{DiscountID: discountID, UserID: userID, Count: 1, LastUsedAt: at}, nil
		},
	}
	svc := newTestDiscountService(t, &stubDiscountRepository{}, usage, now)

	if err := svc.RecordUsage(ctx, "disc-1", "user-1"); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}
	if !incremented {
		t.Fatal("expected usage increment")
	}
}
