package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/kharidari/api/internal/domain"
	"github.com/kharidari/api/internal/platform/auth"
	"github.com/kharidari/api/internal/platform/httpx"
	"github.com/kharidari/api/internal/services"
)

const (
	maxOrderBodySize     = 32 * 1024
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
)

// OrderHandlers exposes order submission, reads, and cancellation for the
// current user.
type OrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
	// submitMiddleware guards POST / with idempotency-key replay protection.
	submitMiddleware func(http.Handler) http.Handler
}

// OrderHandlersOption customises order handler construction.
type OrderHandlersOption func(*OrderHandlers)

// WithSubmitMiddleware wraps the submission endpoint, typically with the
// idempotency middleware so retried POSTs replay the stored response.
func WithSubmitMiddleware(mw func(http.Handler) http.Handler) OrderHandlersOption {
	return func(h *OrderHandlers) {
		h.submitMiddleware = mw
	}
}

// NewOrderHandlers constructs handlers requiring a gateway identity before
// invoking the order service.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, opts ...OrderHandlersOption) *OrderHandlers {
	h := &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireIdentity(auth.RoleUser, auth.RoleStaff, auth.RoleAdmin))
	}
	if h.submitMiddleware != nil {
		r.With(h.submitMiddleware).Post("/", h.submit)
	} else {
		r.Post("/", h.submit)
	}
	r.Get("/", h.list)
	r.Get("/{orderID}", h.get)
	r.Post("/{orderID}/cancel", h.cancel)
}

func (h *OrderHandlers) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", errEmptyBody.Error(), http.StatusBadRequest))
		return
	}

	var req submitOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}
	if req.ShippingAddress == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "shipping_address is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.SubmitOrder(ctx, services.SubmitOrderCommand{
		UserID:          uid,
		PaymentMethod:   services.PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod))),
		UseWallet:       req.UseWallet,
		ShippingAddress: req.ShippingAddress.toAddress(),
		Metadata:        req.Metadata,
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	filter := services.OrderListFilter{
		UserID:     uid,
		Pagination: parsePagination(r, defaultOrderPageSize, maxOrderPageSize),
	}
	if statuses, err := parseOrderStatuses(r.URL.Query().Get("status")); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	} else {
		filter.Status = statuses
	}

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	payload := orderListResponse{
		Orders:        make([]orderPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, order := range page.Items {
		payload.Orders = append(payload.Orders, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *OrderHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, services.GetOrderQuery{
		OrderID: chi.URLParam(r, "orderID"),
		UserID:  uid,
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	var req cancelOrderRequest
	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil && !errors.Is(err, errEmptyBody) {
		if errors.Is(err, errBodyTooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
			return
		}
	}

	order, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		OrderID: chi.URLParam(r, "orderID"),
		ActorID: uid,
		UserID:  uid,
		Reason:  req.Reason,
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) requireUser(ctx context.Context, w http.ResponseWriter) (string, bool) {
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	return identity.UID, true
}

func (h *OrderHandlers) writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	writeOrderServiceError(ctx, w, err)
}

func writeOrderServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart has no items to submit", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrOrderCODUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("cod_unavailable", "cash on delivery is not available for this order", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrOrderInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", "order changed concurrently; refresh and retry", http.StatusConflict))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "order request failed", http.StatusInternalServerError))
	}
}

func parseOrderStatuses(raw string) ([]services.OrderStatus, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	statuses := make([]services.OrderStatus, 0, len(parts))
	for _, part := range parts {
		status := domain.OrderStatus(strings.ToLower(strings.TrimSpace(part)))
		if status == "" {
			continue
		}
		switch status {
		case domain.OrderStatusPlaced, domain.OrderStatusConfirmed, domain.OrderStatusShipped,
			domain.OrderStatusDelivered, domain.OrderStatusCancelled, domain.OrderStatusReturned:
			statuses = append(statuses, status)
		default:
			return nil, errors.New("unknown order status " + string(status))
		}
	}
	return statuses, nil
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		Status:        string(order.Status),
		Currency:      strings.ToUpper(strings.TrimSpace(order.Currency)),
		Items:         buildOrderLines(order.Items),
		Totals:        buildPricingPayload(order.Totals),
		PaymentMethod: string(order.PaymentMethod),
		WalletApplied: order.WalletApplied,
		AmountDue:     order.AmountDue,
		PlacedAt:      formatTime(order.PlacedAt),
		UpdatedAt:     formatTime(order.UpdatedAt),
	}
	if order.Discount != nil {
		payload.Discount = &appliedDiscountPayload{
			DiscountID: order.Discount.DiscountID,
			Code:       order.Discount.Code,
			Name:       order.Discount.Name,
			Kind:       string(order.Discount.Kind),
			Amount:     order.Discount.Amount,
		}
	}
	if order.ShippingAddress != nil {
		addr := buildAddressPayload(*order.ShippingAddress)
		payload.ShippingAddress = &addr
	}
	if order.DeliveredAt != nil {
		payload.DeliveredAt = formatTime(*order.DeliveredAt)
	}
	if order.CancelledAt != nil {
		payload.CancelledAt = formatTime(*order.CancelledAt)
	}
	if order.CancelReason != nil {
		payload.CancelReason = *order.CancelReason
	}
	return payload
}

func buildOrderLines(items []services.OrderLineItem) []orderLinePayload {
	if len(items) == 0 {
		return []orderLinePayload{}
	}
	lines := make([]orderLinePayload, 0, len(items))
	for _, item := range items {
		line := orderLinePayload{
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			FinalUnitPrice: item.FinalUnitPrice,
			LineTotal:      item.LineTotal,
		}
		if item.Offer != nil {
			line.Offer = &appliedOfferPayload{
				OfferID:    item.Offer.OfferID,
				OfferName:  item.Offer.OfferName,
				UnitAmount: item.Offer.UnitAmount,
				LineAmount: item.Offer.LineAmount,
			}
		}
		lines = append(lines, line)
	}
	return lines
}

type submitOrderRequest struct {
	PaymentMethod   string          `json:"payment_method"`
	UseWallet       bool            `json:"use_wallet"`
	ShippingAddress *addressPayload `json:"shipping_address"`
	Metadata        map[string]any  `json:"metadata"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderListResponse struct {
	Orders        []orderPayload `json:"orders"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

type orderPayload struct {
	ID              string                  `json:"id"`
	OrderNumber     string                  `json:"order_number"`
	UserID          string                  `json:"user_id"`
	Status          string                  `json:"status"`
	Currency        string                  `json:"currency"`
	Items           []orderLinePayload      `json:"items"`
	Discount        *appliedDiscountPayload `json:"discount,omitempty"`
	Totals          pricingPayload          `json:"totals"`
	PaymentMethod   string                  `json:"payment_method"`
	WalletApplied   int64                   `json:"wallet_applied"`
	AmountDue       int64                   `json:"amount_due"`
	ShippingAddress *addressPayload         `json:"shipping_address,omitempty"`
	PlacedAt        string                  `json:"placed_at"`
	UpdatedAt       string                  `json:"updated_at,omitempty"`
	DeliveredAt     string                  `json:"delivered_at,omitempty"`
	CancelledAt     string                  `json:"cancelled_at,omitempty"`
	CancelReason    string                  `json:"cancel_reason,omitempty"`
}

type orderLinePayload struct {
	ProductID      string               `json:"product_id"`
	VariantID      string               `json:"variant_id,omitempty"`
	Name           string               `json:"name"`
	Quantity       int                  `json:"quantity"`
	UnitPrice      int64                `json:"unit_price"`
	FinalUnitPrice int64                `json:"final_unit_price"`
	LineTotal      int64                `json:"line_total"`
	Offer          *appliedOfferPayload `json:"offer,omitempty"`
}
