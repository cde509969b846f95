package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/kharidari/api/internal/domain"
	"github.com/kharidari/api/internal/repositories"
)

// ErrOrderInvalidInput indicates the caller supplied invalid input.
var ErrOrderInvalidInput = errors.New("order service: invalid input")

// ErrOrderNotFound indicates the requested order does not exist or is not visible to the caller.
var ErrOrderNotFound = errors.New("order service: not found")

// ErrOrderEmptyCart indicates submission was attempted with an empty cart.
var ErrOrderEmptyCart = errors.New("order service: cart is empty")

// ErrOrderInvalidTransition indicates the requested status change is not allowed from the current state.
var ErrOrderInvalidTransition = errors.New("order service: invalid status transition")

// ErrOrderConflict indicates the order changed concurrently and the write was rejected.
var ErrOrderConflict = errors.New("order service: conflict")

// ErrOrderCODUnavailable indicates cash on delivery cannot be used for this order.
var ErrOrderCODUnavailable = errors.New("order service: cod unavailable")

// ErrOrderUnavailable indicates the order backend cannot fulfil the request.
var ErrOrderUnavailable = errors.New("order service: unavailable")

const (
	orderNumberCounter       = "orders"
	defaultOrderNumberPrefix = "KH"
	maxCancelReasonLength    = 500
)

// orderTransitions names the allowed forward moves of the order lifecycle.
// Cancellation is handled separately because it carries refund side effects.
var orderTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPlaced:    {domain.OrderStatusConfirmed, domain.OrderStatusCancelled},
	domain.OrderStatusConfirmed: {domain.OrderStatusShipped, domain.OrderStatusCancelled},
	domain.OrderStatusShipped:   {domain.OrderStatusDelivered},
	domain.OrderStatusDelivered: {domain.OrderStatusReturned},
}

// OrderServiceDeps wires persistence, pricing, wallet, and eventing dependencies.
type OrderServiceDeps struct {
	Orders            repositories.OrderRepository
	Carts             CartService
	Discounts         DiscountService
	Wallets           WalletService
	Counters          repositories.CounterRepository
	Publisher         OrderEventsPublisher
	Clock             func() time.Time
	Logger            func(context.Context, string, map[string]any)
	IDGenerator       func() string
	CODLimit          int64
	EnableCOD         bool
	WalletsOn         bool
	OrderNumberPrefix string
}

type orderService struct {
	orders    repositories.OrderRepository
	carts     CartService
	discounts DiscountService
	wallets   WalletService
	counters  repositories.CounterRepository
	publisher OrderEventsPublisher
	now       func() time.Time
	logger    func(context.Context, string, map[string]any)
	newID     func() string
	codLimit  int64
	enableCOD bool
	walletsOn bool
	prefix    string
}

// NewOrderService constructs an OrderService enforcing dependency validation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("order service: cart service is required")
	}
	if deps.Discounts == nil {
		return nil, errors.New("order service: discount service is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}
	if deps.Clock == nil {
		return nil, errors.New("order service: clock is required")
	}
	if deps.WalletsOn && deps.Wallets == nil {
		return nil, errors.New("order service: wallet service is required when wallets are enabled")
	}

	codLimit := deps.CODLimit
	if codLimit <= 0 {
		codLimit = defaultCODLimit
	}
	prefix := strings.TrimSpace(deps.OrderNumberPrefix)
	if prefix == "" {
		prefix = defaultOrderNumberPrefix
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &orderService{
		orders:    deps.Orders,
		carts:     deps.Carts,
		discounts: deps.Discounts,
		wallets:   deps.Wallets,
		counters:  deps.Counters,
		publisher: deps.Publisher,
		now:       func() time.Time { return deps.Clock().UTC() },
		logger:    logger,
		newID:     idGen,
		codLimit:  codLimit,
		enableCOD: deps.EnableCOD,
		walletsOn: deps.WalletsOn,
		prefix:    prefix,
	}, nil
}

// SubmitOrder turns the user's cart into an immutable order. The cart is
// re-priced server side; whatever estimate the client saw is discarded.
func (s *orderService) SubmitOrder(ctx context.Context, cmd SubmitOrderCommand) (Order, error) {
	if s == nil || s.orders == nil {
		return Order{}, ErrOrderUnavailable
	}

	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return Order{}, ErrOrderInvalidInput
	}
	if err := validateShippingAddress(cmd.ShippingAddress); err != nil {
		return Order{}, err
	}

	cart, err := s.carts.GetOrCreateCart(ctx, uid)
	if err != nil {
		return Order{}, s.translateCartError(err)
	}
	if len(cart.Items) == 0 {
		return Order{}, ErrOrderEmptyCart
	}

	pricing, err := s.carts.Estimate(ctx, uid)
	if err != nil {
		return Order{}, s.translateCartError(err)
	}

	walletApplied, amountDue, err := s.resolvePayment(ctx, uid, cmd, pricing.Total)
	if err != nil {
		return Order{}, err
	}

	now := s.now()
	orderID := s.newID()
	orderNumber, err := s.nextOrderNumber(ctx, now)
	if err != nil {
		return Order{}, ErrOrderUnavailable
	}

	order := domain.Order{
		ID:            orderID,
		OrderNumber:   orderNumber,
		UserID:        uid,
		Status:        domain.OrderStatusPlaced,
		Currency:      pricing.Currency,
		Items:         orderLinesFromPricing(cart, pricing),
		Discount:      pricing.Discount,
		Totals:        pricing,
		PaymentMethod: cmd.PaymentMethod,
		WalletApplied: walletApplied,
		AmountDue:     amountDue,
		PlacedAt:      now,
		UpdatedAt:     now,
	}
	address := cmd.ShippingAddress
	order.ShippingAddress = &address

	if walletApplied > 0 {
		orderRef := orderID
		if _, err := s.wallets.Debit(ctx, WalletDebitCommand{
			UserID:   uid,
			Amount:   walletApplied,
			Reason:   "order payment",
			OrderRef: &orderRef,
		}); err != nil {
			return Order{}, s.translateWalletError(err)
		}
	}

	if err := s.orders.Insert(ctx, order); err != nil {
		// The wallet hold must not outlive a failed submission.
		if walletApplied > 0 {
			orderRef := orderID
			if _, refundErr := s.wallets.Credit(ctx, WalletCreditCommand{
				UserID:   uid,
				Amount:   walletApplied,
				Reason:   "order submission failed",
				OrderRef: &orderRef,
			}); refundErr != nil {
				s.logger(ctx, "order_wallet_refund_failed", map[string]any{
					"orderId": orderID,
					"userId":  uid,
					"amount":  walletApplied,
					"error":   refundErr.Error(),
				})
			}
		}
		return Order{}, s.translateRepoError(err)
	}

	if pricing.Discount != nil {
		if err := s.discounts.RecordUsage(ctx, pricing.Discount.DiscountID, uid); err != nil {
			s.logger(ctx, "order_discount_usage_record_failed", map[string]any{
				"orderId":    orderID,
				"discountId": pricing.Discount.DiscountID,
				"error":      err.Error(),
			})
		}
	}

	if err := s.carts.ClearCart(ctx, uid); err != nil {
		s.logger(ctx, "order_cart_clear_failed", map[string]any{
			"orderId": orderID,
			"userId":  uid,
			"error":   err.Error(),
		})
	}

	s.publish(ctx, domain.OrderEvent{
		Type:        domain.OrderEventPlaced,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Total:       order.Totals.Total,
		Currency:    order.Currency,
		OccurredAt:  now,
	})

	s.logger(ctx, "order_placed", map[string]any{
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
		"userId":      uid,
		"total":       order.Totals.Total,
	})
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	if s == nil || s.orders == nil {
		return domain.CursorPage[Order]{}, ErrOrderUnavailable
	}

	repoFilter := repositories.OrderListFilter{
		UserID:     strings.TrimSpace(filter.UserID),
		Status:     filter.Status,
		Pagination: filter.Pagination,
	}
	repoFilter.DateRange = domain.RangeQuery[time.Time]{
		From: filter.PlacedFrom,
		To:   filter.PlacedTo,
	}

	page, err := s.orders.List(ctx, repoFilter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.translateRepoError(err)
	}
	return page, nil
}

func (s *orderService) GetOrder(ctx context.Context, cmd GetOrderQuery) (Order, error) {
	if s == nil || s.orders == nil {
		return Order{}, ErrOrderUnavailable
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, ErrOrderInvalidInput
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}
	if uid := strings.TrimSpace(cmd.UserID); uid != "" && order.UserID != uid {
		// Non-owners see the same response as a missing order.
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

// TransitionStatus moves the order forward through its lifecycle. Cancelling
// through this path delegates to Cancel so refunds are not skipped.
func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error) {
	if s == nil || s.orders == nil {
		return Order{}, ErrOrderUnavailable
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, ErrOrderInvalidInput
	}
	if cmd.TargetStatus == domain.OrderStatusCancelled {
		return s.Cancel(ctx, CancelOrderCommand{
			OrderID: orderID,
			ActorID: cmd.ActorID,
			Reason:  cmd.Reason,
		})
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}
	if cmd.ExpectedStatus != nil && order.Status != *cmd.ExpectedStatus {
		return Order{}, ErrOrderConflict
	}
	if !transitionAllowed(order.Status, cmd.TargetStatus) {
		return Order{}, fmt.Errorf("%w: %s to %s", ErrOrderInvalidTransition, order.Status, cmd.TargetStatus)
	}

	now := s.now()
	order.Status = cmd.TargetStatus
	order.UpdatedAt = now
	if cmd.TargetStatus == domain.OrderStatusDelivered {
		delivered := now
		order.DeliveredAt = &delivered
	}

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, s.translateRepoError(err)
	}

	s.logger(ctx, "order_status_changed", map[string]any{
		"orderId": order.ID,
		"status":  string(order.Status),
		"actorId": cmd.ActorID,
	})
	return order, nil
}

// Cancel stops the order before shipment and refunds any wallet amount spent
// on it as store credit.
func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	if s == nil || s.orders == nil {
		return Order{}, ErrOrderUnavailable
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, ErrOrderInvalidInput
	}
	reason := strings.TrimSpace(cmd.Reason)
	if len(reason) > maxCancelReasonLength {
		return Order{}, fmt.Errorf("%w: reason exceeds %d characters", ErrOrderInvalidInput, maxCancelReasonLength)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}
	if uid := strings.TrimSpace(cmd.UserID); uid != "" && order.UserID != uid {
		return Order{}, ErrOrderNotFound
	}
	if !transitionAllowed(order.Status, domain.OrderStatusCancelled) {
		return Order{}, fmt.Errorf("%w: %s to %s", ErrOrderInvalidTransition, order.Status, domain.OrderStatusCancelled)
	}

	now := s.now()
	order.Status = domain.OrderStatusCancelled
	order.UpdatedAt = now
	cancelled := now
	order.CancelledAt = &cancelled
	if reason != "" {
		order.CancelReason = &reason
	}

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, s.translateRepoError(err)
	}

	if order.WalletApplied > 0 && s.walletsOn && s.wallets != nil {
		orderRef := order.ID
		if _, err := s.wallets.Credit(ctx, WalletCreditCommand{
			UserID:   order.UserID,
			Amount:   order.WalletApplied,
			Reason:   "order cancelled",
			OrderRef: &orderRef,
		}); err != nil {
			s.logger(ctx, "order_cancel_refund_failed", map[string]any{
				"orderId": order.ID,
				"userId":  order.UserID,
				"amount":  order.WalletApplied,
				"error":   err.Error(),
			})
		}
	}

	s.publish(ctx, domain.OrderEvent{
		Type:        domain.OrderEventCancelled,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Total:       order.Totals.Total,
		Currency:    order.Currency,
		OccurredAt:  now,
	})

	s.logger(ctx, "order_cancelled", map[string]any{
		"orderId": order.ID,
		"actorId": cmd.ActorID,
	})
	return order, nil
}

func (s *orderService) resolvePayment(ctx context.Context, userID string, cmd SubmitOrderCommand, total int64) (walletApplied, amountDue int64, err error) {
	amountDue = total

	useWallet := cmd.UseWallet || cmd.PaymentMethod == PaymentMethodWallet
	if useWallet {
		if !s.walletsOn || s.wallets == nil {
			return 0, 0, fmt.Errorf("%w: wallet payments are disabled", ErrOrderInvalidInput)
		}
		wallet, err := s.wallets.GetWallet(ctx, userID)
		if err != nil {
			return 0, 0, s.translateWalletError(err)
		}
		walletApplied = wallet.Balance
		if walletApplied > total {
			walletApplied = total
		}
		amountDue = total - walletApplied
	}

	switch cmd.PaymentMethod {
	case PaymentMethodPrepaid:
		// always available
	case PaymentMethodCOD:
		if !s.enableCOD {
			return 0, 0, ErrOrderCODUnavailable
		}
		if amountDue > s.codLimit {
			return 0, 0, fmt.Errorf("%w: amount due %d exceeds the cod limit of %d", ErrOrderCODUnavailable, amountDue, s.codLimit)
		}
	case PaymentMethodWallet:
		if amountDue > 0 {
			return 0, 0, fmt.Errorf("%w: wallet balance cannot cover the order", ErrOrderInvalidInput)
		}
	default:
		return 0, 0, fmt.Errorf("%w: unknown payment method %q", ErrOrderInvalidInput, cmd.PaymentMethod)
	}

	return walletApplied, amountDue, nil
}

// nextOrderNumber formats a human-facing sequence number such as KH-20260828-000042.
func (s *orderService) nextOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, orderNumberCounter, 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%06d", s.prefix, now.Format("20060102"), seq), nil
}

func (s *orderService) publish(ctx context.Context, event domain.OrderEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order_event_publish_failed", map[string]any{
			"orderId": event.OrderID,
			"type":    string(event.Type),
			"error":   err.Error(),
		})
	}
}

// orderLinesFromPricing snapshots the cart lines with the offers the engine
// actually applied, keyed back to the cart items by line item id.
func orderLinesFromPricing(cart Cart, pricing PricingResult) []domain.OrderLineItem {
	names := make(map[string]string, len(cart.Items))
	for _, item := range cart.Items {
		names[item.ID] = item.Name
	}

	lines := make([]domain.OrderLineItem, 0, len(pricing.Items))
	for _, priced := range pricing.Items {
		line := domain.OrderLineItem{
			ProductID:      priced.ProductID,
			VariantID:      priced.VariantID,
			Name:           names[priced.ItemID],
			Quantity:       priced.Quantity,
			UnitPrice:      priced.UnitPrice,
			FinalUnitPrice: priced.FinalUnitPrice,
			LineTotal:      priced.LineTotal,
		}
		if priced.Offer != nil {
			offer := *priced.Offer
			line.Offer = &offer
		}
		lines = append(lines, line)
	}
	return lines
}

func transitionAllowed(from, to domain.OrderStatus) bool {
	for _, allowed := range orderTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func validateShippingAddress(addr Address) error {
	if strings.TrimSpace(addr.Recipient) == "" {
		return fmt.Errorf("%w: shipping recipient is required", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(addr.Line1) == "" {
		return fmt.Errorf("%w: shipping address line is required", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(addr.City) == "" {
		return fmt.Errorf("%w: shipping city is required", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(addr.PostalCode) == "" {
		return fmt.Errorf("%w: shipping postal code is required", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(addr.Country) == "" {
		return fmt.Errorf("%w: shipping country is required", ErrOrderInvalidInput)
	}
	return nil
}

func (s *orderService) translateCartError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCartInvalidInput):
		return ErrOrderInvalidInput
	case errors.Is(err, ErrCartNotFound):
		return ErrOrderEmptyCart
	default:
		return ErrOrderUnavailable
	}
}

func (s *orderService) translateWalletError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrWalletInsufficientBalance):
		return fmt.Errorf("%w: wallet balance changed during submission", ErrOrderConflict)
	case errors.Is(err, ErrWalletInvalidInput):
		return ErrOrderInvalidInput
	default:
		return ErrOrderUnavailable
	}
}

func (s *orderService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrOrderNotFound
		case repoErr.IsConflict():
			return ErrOrderConflict
		case repoErr.IsUnavailable():
			return ErrOrderUnavailable
		}
	}
	return ErrOrderUnavailable
}
