package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/kharidari/api/internal/domain"
	"github.com/kharidari/api/internal/platform/textutil"
	"github.com/kharidari/api/internal/repositories"
)

// ErrDiscountInvalidInput indicates the caller supplied invalid discount data.
var ErrDiscountInvalidInput = errors.New("discount service: invalid input")

// ErrDiscountNotFound indicates the requested discount does not exist.
var ErrDiscountNotFound = errors.New("discount service: not found")

// ErrDiscountConflict indicates the discount could not be stored due to a duplicate or concurrent change.
var ErrDiscountConflict = errors.New("discount service: conflict")

// ErrDiscountUnavailable indicates the discount backend cannot fulfil the request.
var ErrDiscountUnavailable = errors.New("discount service: unavailable")

// ErrCouponNotFound indicates no coupon matches the entered code.
var ErrCouponNotFound = errors.New("discount service: coupon not found")

// ErrCouponInactive indicates the coupon exists but is disabled or outside its validity window.
var ErrCouponInactive = errors.New("discount service: coupon inactive")

// ErrCouponMinimumNotMet indicates the cart subtotal is below the coupon's minimum order amount.
var ErrCouponMinimumNotMet = errors.New("discount service: minimum order amount not met")

// ErrCouponUsageExceeded indicates the user exhausted the coupon's per-user redemption limit.
var ErrCouponUsageExceeded = errors.New("discount service: usage limit reached")

const maxDiscountNameLength = 200

// DiscountServiceDeps wires repositories and ambient dependencies for discount resolution.
type DiscountServiceDeps struct {
	Discounts   repositories.DiscountRepository
	Usage       repositories.DiscountUsageRepository
	Clock       func() time.Time
	Logger      func(context.Context, string, map[string]any)
	IDGenerator func() string
}

type discountService struct {
	discounts repositories.DiscountRepository
	usage     repositories.DiscountUsageRepository
	now       func() time.Time
	logger    func(context.Context, string, map[string]any)
	newID     func() string
}

// NewDiscountService constructs a DiscountService enforcing dependency validation.
func NewDiscountService(deps DiscountServiceDeps) (DiscountService, error) {
	if deps.Discounts == nil {
		return nil, errors.New("discount service: discount repository is required")
	}
	if deps.Usage == nil {
		return nil, errors.New("discount service: usage repository is required")
	}
	if deps.Clock == nil {
		return nil, errors.New("discount service: clock is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &discountService{
		discounts: deps.Discounts,
		usage:     deps.Usage,
		now:       func() time.Time { return deps.Clock().UTC() },
		logger:    logger,
		newID:     idGen,
	}, nil
}

// ValidateCoupon resolves the entered code and checks every eligibility rule
// against the supplied subtotal: active flag, validity window, minimum order
// amount, and the per-user usage cap.
func (s *discountService) ValidateCoupon(ctx context.Context, cmd ValidateCouponCommand) (Discount, error) {
	if s == nil || s.discounts == nil {
		return Discount{}, ErrDiscountUnavailable
	}

	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Discount{}, ErrDiscountInvalidInput
	}
	code := textutil.NormalizeCode(cmd.Code)
	if code == "" {
		return Discount{}, fmt.Errorf("%w: coupon code is required", ErrDiscountInvalidInput)
	}
	if cmd.Subtotal < 0 {
		return Discount{}, fmt.Errorf("%w: subtotal cannot be negative", ErrDiscountInvalidInput)
	}

	discount, err := s.discounts.FindByCode(ctx, code)
	if err != nil {
		if isRepoNotFound(err) {
			return Discount{}, ErrCouponNotFound
		}
		return Discount{}, s.translateRepoError(err)
	}
	if discount.Kind != DiscountKindCoupon {
		return Discount{}, ErrCouponNotFound
	}

	if err := s.checkEligibility(ctx, discount, userID, cmd.Subtotal); err != nil {
		return Discount{}, err
	}
	return discount, nil
}

// ListAccountDiscounts returns the account discounts the user could apply
// right now. Discounts whose minimum the subtotal does not meet are still
// returned so the storefront can show them greyed out; usage-exhausted ones
// are dropped.
func (s *discountService) ListAccountDiscounts(ctx context.Context, cmd AccountDiscountQuery) ([]Discount, error) {
	if s == nil || s.discounts == nil {
		return nil, ErrDiscountUnavailable
	}
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return nil, ErrDiscountInvalidInput
	}

	discounts, err := s.discounts.ListActiveByKind(ctx, DiscountKindAccount, s.now())
	if err != nil {
		return nil, s.translateRepoError(err)
	}

	eligible := make([]Discount, 0, len(discounts))
	for _, discount := range discounts {
		if discount.MaxUsagePerUser != nil {
			usage, err := s.usage.Get(ctx, discount.ID, userID)
			if err != nil {
				return nil, s.translateRepoError(err)
			}
			if usage.Count >= *discount.MaxUsagePerUser {
				continue
			}
		}
		eligible = append(eligible, discount)
	}
	return eligible, nil
}

// GetEligibleDiscount re-checks a previously selected discount against the
// current subtotal. Carts re-run this on every estimate because item changes
// can move the subtotal below a coupon's minimum.
func (s *discountService) GetEligibleDiscount(ctx context.Context, cmd EligibleDiscountQuery) (Discount, error) {
	if s == nil || s.discounts == nil {
		return Discount{}, ErrDiscountUnavailable
	}
	userID := strings.TrimSpace(cmd.UserID)
	discountID := strings.TrimSpace(cmd.DiscountID)
	if userID == "" || discountID == "" {
		return Discount{}, ErrDiscountInvalidInput
	}
	if cmd.Subtotal < 0 {
		return Discount{}, fmt.Errorf("%w: subtotal cannot be negative", ErrDiscountInvalidInput)
	}

	discount, err := s.discounts.FindByID(ctx, discountID)
	if err != nil {
		if isRepoNotFound(err) {
			return Discount{}, ErrDiscountNotFound
		}
		return Discount{}, s.translateRepoError(err)
	}
	if cmd.Kind != "" && discount.Kind != cmd.Kind {
		return Discount{}, ErrDiscountNotFound
	}

	if err := s.checkEligibility(ctx, discount, userID, cmd.Subtotal); err != nil {
		return Discount{}, err
	}
	return discount, nil
}

// RecordUsage bumps the per-user redemption count after successful order submission.
func (s *discountService) RecordUsage(ctx context.Context, discountID, userID string) error {
	if s == nil || s.usage == nil {
		return ErrDiscountUnavailable
	}
	discountID = strings.TrimSpace(discountID)
	userID = strings.TrimSpace(userID)
	if discountID == "" || userID == "" {
		return ErrDiscountInvalidInput
	}
	if _, err := s.usage.Increment(ctx, discountID, userID, s.now()); err != nil {
		return s.translateRepoError(err)
	}
	return nil
}

func (s *discountService) ListDiscounts(ctx context.Context, filter DiscountListFilter) (domain.CursorPage[Discount], error) {
	if s == nil || s.discounts == nil {
		return domain.CursorPage[Discount]{}, ErrDiscountUnavailable
	}

	repoFilter := repositories.DiscountListFilter{
		Kind:       filter.Kind,
		ActiveOnly: filter.ActiveOnly,
		Pagination: filter.Pagination,
	}
	if filter.ActiveOnly {
		repoFilter.Now = s.now()
	}

	page, err := s.discounts.List(ctx, repoFilter)
	if err != nil {
		return domain.CursorPage[Discount]{}, s.translateRepoError(err)
	}
	return page, nil
}

func (s *discountService) GetDiscount(ctx context.Context, discountID string) (Discount, error) {
	if s == nil || s.discounts == nil {
		return Discount{}, ErrDiscountUnavailable
	}
	discountID = strings.TrimSpace(discountID)
	if discountID == "" {
		return Discount{}, ErrDiscountInvalidInput
	}
	discount, err := s.discounts.FindByID(ctx, discountID)
	if err != nil {
		return Discount{}, s.translateRepoError(err)
	}
	return discount, nil
}

func (s *discountService) CreateDiscount(ctx context.Context, cmd UpsertDiscountCommand) (Discount, error) {
	if s == nil || s.discounts == nil {
		return Discount{}, ErrDiscountUnavailable
	}

	discount, err := normaliseDiscount(cmd.Discount)
	if err != nil {
		return Discount{}, err
	}

	if discount.Kind == DiscountKindCoupon {
		if existing, err := s.discounts.FindByCode(ctx, discount.Code); err == nil && existing.ID != "" {
			return Discount{}, fmt.Errorf("%w: code %s already exists", ErrDiscountConflict, discount.Code)
		} else if err != nil && !isRepoNotFound(err) {
			return Discount{}, s.translateRepoError(err)
		}
	}

	now := s.now()
	discount.ID = s.newID()
	discount.CreatedAt = now
	discount.UpdatedAt = now

	if err := s.discounts.Insert(ctx, discount); err != nil {
		return Discount{}, s.translateRepoError(err)
	}

	s.logger(ctx, "discount_created", map[string]any{
		"discountId": discount.ID,
		"kind":       string(discount.Kind),
		"actorId":    cmd.ActorID,
	})
	return discount, nil
}

func (s *discountService) UpdateDiscount(ctx context.Context, cmd UpsertDiscountCommand) (Discount, error) {
	if s == nil || s.discounts == nil {
		return Discount{}, ErrDiscountUnavailable
	}
	if cmd.DiscountID == nil || strings.TrimSpace(*cmd.DiscountID) == "" {
		return Discount{}, fmt.Errorf("%w: discount id is required", ErrDiscountInvalidInput)
	}
	discountID := strings.TrimSpace(*cmd.DiscountID)

	existing, err := s.discounts.FindByID(ctx, discountID)
	if err != nil {
		return Discount{}, s.translateRepoError(err)
	}

	discount, err := normaliseDiscount(cmd.Discount)
	if err != nil {
		return Discount{}, err
	}

	if discount.Kind == DiscountKindCoupon && discount.Code != existing.Code {
		if other, err := s.discounts.FindByCode(ctx, discount.Code); err == nil && other.ID != "" && other.ID != discountID {
			return Discount{}, fmt.Errorf("%w: code %s already exists", ErrDiscountConflict, discount.Code)
		} else if err != nil && !isRepoNotFound(err) {
			return Discount{}, s.translateRepoError(err)
		}
	}

	discount.ID = discountID
	discount.CreatedAt = existing.CreatedAt
	discount.UpdatedAt = s.now()

	if err := s.discounts.Update(ctx, discount); err != nil {
		return Discount{}, s.translateRepoError(err)
	}

	s.logger(ctx, "discount_updated", map[string]any{
		"discountId": discount.ID,
		"actorId":    cmd.ActorID,
	})
	return discount, nil
}

func (s *discountService) DeleteDiscount(ctx context.Context, discountID string) error {
	if s == nil || s.discounts == nil {
		return ErrDiscountUnavailable
	}
	discountID = strings.TrimSpace(discountID)
	if discountID == "" {
		return ErrDiscountInvalidInput
	}
	if _, err := s.discounts.FindByID(ctx, discountID); err != nil {
		return s.translateRepoError(err)
	}
	if err := s.discounts.Delete(ctx, discountID); err != nil {
		return s.translateRepoError(err)
	}
	return nil
}

func (s *discountService) checkEligibility(ctx context.Context, discount Discount, userID string, subtotal int64) error {
	now := s.now()
	if !discount.Active {
		return ErrCouponInactive
	}
	if !discount.StartsAt.IsZero() && now.Before(discount.StartsAt) {
		return ErrCouponInactive
	}
	if !discount.EndsAt.IsZero() && now.After(discount.EndsAt) {
		return ErrCouponInactive
	}
	if subtotal < discount.MinimumAmount {
		return fmt.Errorf("%w: requires subtotal of at least %d", ErrCouponMinimumNotMet, discount.MinimumAmount)
	}
	if discount.MaxUsagePerUser != nil {
		usage, err := s.usage.Get(ctx, discount.ID, userID)
		if err != nil {
			return s.translateRepoError(err)
		}
		if usage.Count >= *discount.MaxUsagePerUser {
			return ErrCouponUsageExceeded
		}
	}
	return nil
}

func normaliseDiscount(discount Discount) (Discount, error) {
	discount.Name = strings.TrimSpace(discount.Name)
	if discount.Name == "" {
		return Discount{}, fmt.Errorf("%w: name is required", ErrDiscountInvalidInput)
	}
	if len(discount.Name) > maxDiscountNameLength {
		return Discount{}, fmt.Errorf("%w: name exceeds %d characters", ErrDiscountInvalidInput, maxDiscountNameLength)
	}

	switch discount.Kind {
	case DiscountKindCoupon:
		discount.Code = textutil.NormalizeCode(discount.Code)
		if discount.Code == "" {
			return Discount{}, fmt.Errorf("%w: coupon code is required", ErrDiscountInvalidInput)
		}
	case DiscountKindAccount:
		discount.Code = ""
	default:
		return Discount{}, fmt.Errorf("%w: unknown discount kind %q", ErrDiscountInvalidInput, discount.Kind)
	}

	switch discount.DiscountType {
	case DiscountTypePercentage:
		if discount.DiscountValue <= 0 || discount.DiscountValue > 100 {
			return Discount{}, fmt.Errorf("%w: percentage must be between 1 and 100", ErrDiscountInvalidInput)
		}
		if discount.MaximumDiscount != nil && *discount.MaximumDiscount <= 0 {
			return Discount{}, fmt.Errorf("%w: maximum discount must be positive", ErrDiscountInvalidInput)
		}
	case DiscountTypeFixed:
		if discount.DiscountValue <= 0 {
			return Discount{}, fmt.Errorf("%w: fixed amount must be positive", ErrDiscountInvalidInput)
		}
		discount.MaximumDiscount = nil
	default:
		return Discount{}, fmt.Errorf("%w: unknown discount type %q", ErrDiscountInvalidInput, discount.DiscountType)
	}

	if discount.MinimumAmount < 0 {
		return Discount{}, fmt.Errorf("%w: minimum amount cannot be negative", ErrDiscountInvalidInput)
	}
	if discount.MaxUsagePerUser != nil && *discount.MaxUsagePerUser <= 0 {
		return Discount{}, fmt.Errorf("%w: usage limit must be positive", ErrDiscountInvalidInput)
	}
	if !discount.StartsAt.IsZero() && !discount.EndsAt.IsZero() && discount.EndsAt.Before(discount.StartsAt) {
		return Discount{}, fmt.Errorf("%w: validity window ends before it starts", ErrDiscountInvalidInput)
	}
	discount.StartsAt = discount.StartsAt.UTC()
	discount.EndsAt = discount.EndsAt.UTC()

	return discount, nil
}

func (s *discountService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrDiscountNotFound
		case repoErr.IsConflict():
			return ErrDiscountConflict
		case repoErr.IsUnavailable():
			return ErrDiscountUnavailable
		}
	}
	return ErrDiscountUnavailable
}
