package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	domain "github.com/kharidari/api/internal/domain"
	"github.com/kharidari/api/internal/services"
)

var (
	errBodyTooLarge = errors.New("request body too large")
	errEmptyBody    = errors.New("request body is required")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	defer func() {
		_ = r.Body.Close()
	}()

	reader := io.LimitReader(r.Body, limit+1)
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, errBodyTooLarge
	}
	return body, nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// parsePagination reads page_size and page_token query parameters, bounding
// page sizes between 1 and maxSize.
func parsePagination(r *http.Request, defaultSize, maxSize int) domain.Pagination {
	pager := domain.Pagination{PageSize: defaultSize}
	if r == nil {
		return pager
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("page_size")); raw != "" {
		if size, err := strconv.Atoi(raw); err == nil && size > 0 {
			pager.PageSize = size
		}
	}
	if pager.PageSize > maxSize {
		pager.PageSize = maxSize
	}
	pager.PageToken = strings.TrimSpace(r.URL.Query().Get("page_token"))
	return pager
}

// Pricing payloads are shared between the cart, checkout, and order surfaces
// so the storefront renders one consistent breakdown shape.

type pricingPayload struct {
	Currency              string                   `json:"currency"`
	Items                 []linePricingPayload     `json:"items,omitempty"`
	Subtotal              int64                    `json:"subtotal"`
	UndiscountedSubtotal  int64                    `json:"undiscounted_subtotal"`
	OfferSavings          int64                    `json:"offer_savings"`
	Discount              *appliedDiscountPayload  `json:"discount,omitempty"`
	DiscountAmount        int64                    `json:"discount_amount"`
	SubtotalAfterDiscount int64                    `json:"subtotal_after_discount"`
	Shipping              int64                    `json:"shipping"`
	Total                 int64                    `json:"total"`
}

type linePricingPayload struct {
	ItemID         string              `json:"item_id"`
	ProductID      string              `json:"product_id"`
	VariantID      string              `json:"variant_id,omitempty"`
	Quantity       int                 `json:"quantity"`
	UnitPrice      int64               `json:"unit_price"`
	FinalUnitPrice int64               `json:"final_unit_price"`
	LineSubtotal   int64               `json:"line_subtotal"`
	LineTotal      int64               `json:"line_total"`
	Offer          *appliedOfferPayload `json:"offer,omitempty"`
}

type appliedOfferPayload struct {
	OfferID    string `json:"offer_id"`
	OfferName  string `json:"offer_name,omitempty"`
	UnitAmount int64  `json:"unit_amount"`
	LineAmount int64  `json:"line_amount"`
}

type appliedDiscountPayload struct {
	DiscountID string `json:"discount_id"`
	Code       string `json:"code,omitempty"`
	Name       string `json:"name,omitempty"`
	Kind       string `json:"kind"`
	Amount     int64  `json:"amount"`
}

func buildPricingPayload(pricing services.PricingResult) pricingPayload {
	payload := pricingPayload{
		Currency:              strings.ToUpper(strings.TrimSpace(pricing.Currency)),
		Subtotal:              pricing.Subtotal,
		UndiscountedSubtotal:  pricing.UndiscountedSubtotal,
		OfferSavings:          pricing.OfferSavings,
		DiscountAmount:        pricing.DiscountAmount,
		SubtotalAfterDiscount: pricing.SubtotalAfterDiscount,
		Shipping:              pricing.Shipping,
		Total:                 pricing.Total,
	}
	for _, line := range pricing.Items {
		entry := linePricingPayload{
			ItemID:         line.ItemID,
			ProductID:      line.ProductID,
			VariantID:      line.VariantID,
			Quantity:       line.Quantity,
			UnitPrice:      line.UnitPrice,
			FinalUnitPrice: line.FinalUnitPrice,
			LineSubtotal:   line.LineSubtotal,
			LineTotal:      line.LineTotal,
		}
		if line.Offer != nil {
			entry.Offer = &appliedOfferPayload{
				OfferID:    line.Offer.OfferID,
				OfferName:  line.Offer.OfferName,
				UnitAmount: line.Offer.UnitAmount,
				LineAmount: line.Offer.LineAmount,
			}
		}
		payload.Items = append(payload.Items, entry)
	}
	if pricing.Discount != nil {
		payload.Discount = &appliedDiscountPayload{
			DiscountID: pricing.Discount.DiscountID,
			Code:       pricing.Discount.Code,
			Name:       pricing.Discount.Name,
			Kind:       string(pricing.Discount.Kind),
			Amount:     pricing.Discount.Amount,
		}
	}
	return payload
}

type addressPayload struct {
	Recipient  string  `json:"recipient"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      *string `json:"state,omitempty"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
	Phone      *string `json:"phone,omitempty"`
}

func buildAddressPayload(addr services.Address) addressPayload {
	return addressPayload{
		Recipient:  addr.Recipient,
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
		Phone:      addr.Phone,
	}
}

func (p addressPayload) toAddress() services.Address {
	return services.Address{
		Recipient:  strings.TrimSpace(p.Recipient),
		Line1:      strings.TrimSpace(p.Line1),
		Line2:      trimOptional(p.Line2),
		City:       strings.TrimSpace(p.City),
		State:      trimOptional(p.State),
		PostalCode: strings.TrimSpace(p.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(p.Country)),
		Phone:      trimOptional(p.Phone),
	}
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
