package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrCheckoutInvalidInput indicates the caller supplied invalid input.
var ErrCheckoutInvalidInput = errors.New("checkout service: invalid input")

// ErrCheckoutEmptyCart indicates the cart has no items to check out.
var ErrCheckoutEmptyCart = errors.New("checkout service: cart is empty")

// ErrCheckoutCODUnavailable indicates cash on delivery cannot be used for this order.
var ErrCheckoutCODUnavailable = errors.New("checkout service: cod unavailable")

// ErrCheckoutUnavailable indicates a downstream dependency failed.
var ErrCheckoutUnavailable = errors.New("checkout service: unavailable")

const defaultCODLimit = 5_000_000

// CheckoutServiceDeps wires cart pricing and wallet balances into quote assembly.
type CheckoutServiceDeps struct {
	Carts      CartService
	Wallets    WalletService
	Clock      func() time.Time
	Logger     func(context.Context, string, map[string]any)
	CODLimit   int64
	EnableCOD  bool
	WalletsOn  bool
}

type checkoutService struct {
	carts     CartService
	wallets   WalletService
	now       func() time.Time
	logger    func(context.Context, string, map[string]any)
	codLimit  int64
	enableCOD bool
	walletsOn bool
}

// NewCheckoutService constructs a CheckoutService enforcing dependency validation.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Carts == nil {
		return nil, errors.New("checkout service: cart service is required")
	}
	if deps.Clock == nil {
		return nil, errors.New("checkout service: clock is required")
	}
	if deps.WalletsOn && deps.Wallets == nil {
		return nil, errors.New("checkout service: wallet service is required when wallets are enabled")
	}

	codLimit := deps.CODLimit
	if codLimit <= 0 {
		codLimit = defaultCODLimit
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &checkoutService{
		carts:     deps.Carts,
		wallets:   deps.Wallets,
		now:       func() time.Time { return deps.Clock().UTC() },
		logger:    logger,
		codLimit:  codLimit,
		enableCOD: deps.EnableCOD,
		walletsOn: deps.WalletsOn,
	}, nil
}

// Quote assembles the checkout page payload: the priced cart, COD
// eligibility against the configured ceiling, and a wallet application
// preview when requested.
func (s *checkoutService) Quote(ctx context.Context, cmd CheckoutQuoteCommand) (CheckoutQuote, error) {
	if s == nil || s.carts == nil {
		return CheckoutQuote{}, ErrCheckoutUnavailable
	}
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return CheckoutQuote{}, ErrCheckoutInvalidInput
	}

	cart, err := s.carts.GetOrCreateCart(ctx, uid)
	if err != nil {
		if errors.Is(err, ErrCartInvalidInput) {
			return CheckoutQuote{}, ErrCheckoutInvalidInput
		}
		return CheckoutQuote{}, ErrCheckoutUnavailable
	}
	if len(cart.Items) == 0 {
		return CheckoutQuote{}, ErrCheckoutEmptyCart
	}
	if cart.Estimate == nil {
		return CheckoutQuote{}, ErrCheckoutUnavailable
	}
	pricing := *cart.Estimate

	quote := CheckoutQuote{
		CartID:       cart.ID,
		Pricing:      pricing,
		CODLimit:     s.codLimit,
		CODAvailable: s.enableCOD && pricing.Total <= s.codLimit,
		AmountDue:    pricing.Total,
		QuotedAt:     s.now(),
	}

	if s.walletsOn && s.wallets != nil {
		wallet, err := s.wallets.GetWallet(ctx, uid)
		if err != nil {
			return CheckoutQuote{}, ErrCheckoutUnavailable
		}
		quote.WalletBalance = wallet.Balance
		if cmd.UseWallet && wallet.Balance > 0 {
			applied := wallet.Balance
			if applied > pricing.Total {
				applied = pricing.Total
			}
			quote.WalletApplied = applied
			quote.AmountDue = pricing.Total - applied
		}
	} else if cmd.UseWallet {
		return CheckoutQuote{}, fmt.Errorf("%w: wallet payments are disabled", ErrCheckoutInvalidInput)
	}

	switch cmd.PaymentMethod {
	case "", PaymentMethodPrepaid:
		// always available
	case PaymentMethodCOD:
		if !quote.CODAvailable {
			return CheckoutQuote{}, ErrCheckoutCODUnavailable
		}
	case PaymentMethodWallet:
		if !s.walletsOn {
			return CheckoutQuote{}, fmt.Errorf("%w: wallet payments are disabled", ErrCheckoutInvalidInput)
		}
		if quote.WalletBalance < pricing.Total {
			return CheckoutQuote{}, fmt.Errorf("%w: wallet balance cannot cover the order", ErrCheckoutInvalidInput)
		}
		quote.WalletApplied = pricing.Total
		quote.AmountDue = 0
	default:
		return CheckoutQuote{}, fmt.Errorf("%w: unknown payment method %q", ErrCheckoutInvalidInput, cmd.PaymentMethod)
	}

	return quote, nil
}
