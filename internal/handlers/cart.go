package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/instrugate/api/internal/domain"
	"github.com/instrugate/api/internal/platform/auth"
	"github.com/instrugate/api/internal/platform/httpx"
	"github.com/instrugate/api/internal/services"
)

// CartHandlersDeps bundles the dependencies of the cart endpoints.
type CartHandlersDeps struct {
	Carts services.CartService
	Auth  *auth.Authenticator
}

// CartHandlers serves the per-account cart mirror.
type CartHandlers struct {
	carts services.CartService
	auth  *auth.Authenticator
}

// NewCartHandlers validates dependencies and constructs the handlers.
func NewCartHandlers(deps CartHandlersDeps) (*CartHandlers, error) {
	if deps.Carts == nil {
		return nil, errors.New("handlers: cart service is required")
	}
	if deps.Auth == nil {
		return nil, errors.New("handlers: authenticator is required")
	}
	return &CartHandlers{carts: deps.Carts, auth: deps.Auth}, nil
}

// Routes registers the cart endpoints on the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	r.Use(h.auth.RequireAuth())
	r.Get("/", h.getCart)
	r.Put("/", h.replaceCart)
	r.Delete("/", h.clearCart)
}

type selectionLinePayload struct {
	FieldID    string `json:"field_id"`
	FieldName  string `json:"field_name,omitempty"`
	OptionID   string `json:"option_id"`
	OptionCode string `json:"option_code"`
	Label      string `json:"label,omitempty"`
	Price      int64  `json:"price"`
}

type addOnLinePayload struct {
	AddOnID string `json:"add_on_id"`
	Label   string `json:"label,omitempty"`
	Code    string `json:"code"`
	Price   int64  `json:"price"`
}

type cartEntryPayload struct {
	InstrumentID string                 `json:"instrument_id"`
	ProductCode  string                 `json:"product_code"`
	BasePrice    int64                  `json:"base_price"`
	Selections   []selectionLinePayload `json:"selections,omitempty"`
	AddOns       []addOnLinePayload     `json:"add_ons,omitempty"`
	Quantity     int                    `json:"quantity"`
	AddedAt      string                 `json:"added_at,omitempty"`
	UnitTotal    int64                  `json:"unit_total,omitempty"`
}

type replaceCartRequest struct {
	Entries []cartEntryPayload `json:"entries"`
}

type cartResponse struct {
	Entries []cartEntryPayload `json:"entries"`
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	entries, err := h.carts.GetCart(ctx, identity.UID)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	payload := cartResponse{Entries: make([]cartEntryPayload, 0, len(entries))}
	for _, entry := range entries {
		payload.Entries = append(payload.Entries, renderCartEntry(entry))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *CartHandlers) replaceCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req replaceCartRequest
	if err := decodeJSONBody(r, defaultMaxBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	entries := make([]domain.CartEntry, 0, len(req.Entries))
	for _, entry := range req.Entries {
		entries = append(entries, cartEntryFromPayload(entry))
	}

	if err := h.carts.ReplaceCart(ctx, identity.UID, entries); err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]int{"entries": len(entries)})
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	if err := h.carts.ClearCart(ctx, identity.UID); err != nil {
		writeCartError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func renderCartEntry(entry domain.CartEntry) cartEntryPayload {
	return cartEntryPayload{
		InstrumentID: entry.InstrumentID,
		ProductCode:  entry.ProductCode,
		BasePrice:    entry.BasePrice,
		Selections:   renderSelectionLines(entry.Selections),
		AddOns:       renderAddOnLines(entry.AddOns),
		Quantity:     entry.Quantity,
		AddedAt:      formatTime(entry.AddedAt),
		UnitTotal:    entry.UnitTotal(),
	}
}

func cartEntryFromPayload(payload cartEntryPayload) domain.CartEntry {
	entry := domain.CartEntry{
		InstrumentID: payload.InstrumentID,
		ProductCode:  payload.ProductCode,
		BasePrice:    payload.BasePrice,
		Quantity:     payload.Quantity,
	}
	for _, sel := range payload.Selections {
		entry.Selections = append(entry.Selections, domain.SelectionLine{
			FieldID:    sel.FieldID,
			FieldName:  sel.FieldName,
			OptionID:   sel.OptionID,
			OptionCode: sel.OptionCode,
			Label:      sel.Label,
			Price:      sel.Price,
		})
	}
	for _, addOn := range payload.AddOns {
		entry.AddOns = append(entry.AddOns, domain.AddOnLine{
			AddOnID: addOn.AddOnID,
			Label:   addOn.Label,
			Code:    addOn.Code,
			Price:   addOn.Price,
		})
	}
	return entry
}

func renderSelectionLines(lines []domain.SelectionLine) []selectionLinePayload {
	if len(lines) == 0 {
		return nil
	}
	payload := make([]selectionLinePayload, 0, len(lines))
	for _, line := range lines {
		payload = append(payload, selectionLinePayload{
			FieldID:    line.FieldID,
			FieldName:  line.FieldName,
			OptionID:   line.OptionID,
			OptionCode: line.OptionCode,
			Label:      line.Label,
			Price:      line.Price,
		})
	}
	return payload
}

func renderAddOnLines(lines []domain.AddOnLine) []addOnLinePayload {
	if len(lines) == 0 {
		return nil
	}
	payload := make([]addOnLinePayload, 0, len(lines))
	for _, line := range lines {
		payload = append(payload, addOnLinePayload{
			AddOnID: line.AddOnID,
			Label:   line.Label,
			Code:    line.Code,
			Price:   line.Price,
		})
	}
	return payload
}

func writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrCartInvalidInput) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	writeRepoError(ctx, w, err)
}
