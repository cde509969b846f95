package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kharidari/api/internal/platform/httpx"
	"github.com/kharidari/api/internal/services"
)

const (
	maxOfferBodySize     = 16 * 1024
	defaultOfferPageSize = 20
	maxOfferPageSize     = 100
	maxResolveProducts   = 50
)

// OfferHandlers exposes the public offer surface: active offer listings and
// best-offer resolution for product pages.
type OfferHandlers struct {
	offers services.OfferService
}

// NewOfferHandlers constructs the public offer handlers.
func NewOfferHandlers(offers services.OfferService) *OfferHandlers {
	return &OfferHandlers{offers: offers}
}

// Routes wires the /offers endpoints onto the provided router.
func (h *OfferHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.list)
	r.Post("/resolve", h.resolve)
}

func (h *OfferHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.offers == nil {
		httpx.WriteError(ctx, w, httpx.NewError("offer_service_unavailable", "offer service is unavailable", http.StatusServiceUnavailable))
		return
	}

	filter := services.OfferListFilter{
		ActiveOnly: true,
		Pagination: parsePagination(r, defaultOfferPageSize, maxOfferPageSize),
	}
	if productID := strings.TrimSpace(r.URL.Query().Get("product_id")); productID != "" {
		filter.ProductID = &productID
	}

	page, err := h.offers.ListOffers(ctx, filter)
	if err != nil {
		h.writeOfferError(ctx, w, err)
		return
	}

	payload := offerListResponse{
		Offers:        make([]offerPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, offer := range page.Items {
		payload.Offers = append(payload.Offers, buildOfferPayload(offer))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

// resolve returns the single best offer per product for the submitted unit
// prices, exactly as cart pricing would apply them.
func (h *OfferHandlers) resolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.offers == nil {
		httpx.WriteError(ctx, w, httpx.NewError("offer_service_unavailable", "offer service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxOfferBodySize)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	var req resolveOffersRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}
	if len(req.Products) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "products is required", http.StatusBadRequest))
		return
	}
	if len(req.Products) > maxResolveProducts {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "too many products in one request", http.StatusBadRequest))
		return
	}

	unitPrices := make(map[string]int64, len(req.Products))
	for _, product := range req.Products {
		productID := strings.TrimSpace(product.ProductID)
		if productID == "" || product.UnitPrice < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "each product needs an id and a non-negative unit price", http.StatusBadRequest))
			return
		}
		unitPrices[productID] = product.UnitPrice
	}

	best, err := h.offers.BestOffersForProducts(ctx, unitPrices)
	if err != nil {
		h.writeOfferError(ctx, w, err)
		return
	}

	payload := resolveOffersResponse{Offers: make(map[string]offerPayload, len(best))}
	for productID, offer := range best {
		payload.Offers[productID] = buildOfferPayload(offer)
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *OfferHandlers) writeOfferError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOfferInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOfferNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("offer_not_found", "offer not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOfferUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("offer_service_unavailable", "offer service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("offer_error", "offer request failed", http.StatusInternalServerError))
	}
}

func buildOfferPayload(offer services.Offer) offerPayload {
	payload := offerPayload{
		ID:            offer.ID,
		Name:          offer.Name,
		DiscountType:  string(offer.DiscountType),
		DiscountValue: offer.DiscountValue,
		ProductIDs:    append([]string(nil), offer.ProductIDs...),
		Active:        offer.Active,
	}
	if offer.MaximumDiscount != nil {
		payload.MaximumDiscount = offer.MaximumDiscount
	}
	payload.StartsAt = formatTime(offer.StartsAt)
	payload.EndsAt = formatTime(offer.EndsAt)
	return payload
}

type resolveOffersRequest struct {
	Products []resolveOfferProduct `json:"products"`
}

type resolveOfferProduct struct {
	ProductID string `json:"product_id"`
	UnitPrice int64  `json:"unit_price"`
}

type resolveOffersResponse struct {
	Offers map[string]offerPayload `json:"offers"`
}

type offerListResponse struct {
	Offers        []offerPayload `json:"offers"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

type offerPayload struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	DiscountType    string   `json:"discount_type"`
	DiscountValue   int64    `json:"discount_value"`
	MaximumDiscount *int64   `json:"maximum_discount,omitempty"`
	ProductIDs      []string `json:"product_ids"`
	Active          bool     `json:"active"`
	StartsAt        string   `json:"starts_at,omitempty"`
	EndsAt          string   `json:"ends_at,omitempty"`
}
