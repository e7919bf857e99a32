package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/instrugate/api/internal/domain"
	"github.com/instrugate/api/internal/platform/auth"
	"github.com/instrugate/api/internal/platform/httpx"
	"github.com/instrugate/api/internal/services"
)

// QuotationHandlersDeps bundles the dependencies of the quotation endpoints.
type QuotationHandlersDeps struct {
	Quotations services.QuotationService
	Carts      services.CartService
	Auth       *auth.Authenticator

	// Idempotency guards quotation creation against client retries.
	// Optional.
	Idempotency func(http.Handler) http.Handler
}

// QuotationHandlers serves the quotation lifecycle endpoints.
type QuotationHandlers struct {
	quotations  services.QuotationService
	carts       services.CartService
	auth        *auth.Authenticator
	idempotency func(http.Handler) http.Handler
}

// NewQuotationHandlers validates dependencies and constructs the handlers.
func NewQuotationHandlers(deps QuotationHandlersDeps) (*QuotationHandlers, error) {
	if deps.Quotations == nil {
		return nil, errors.New("handlers: quotation service is required")
	}
	if deps.Auth == nil {
		return nil, errors.New("handlers: authenticator is required")
	}
	return &QuotationHandlers{
		quotations:  deps.Quotations,
		carts:       deps.Carts,
		auth:        deps.Auth,
		idempotency: deps.Idempotency,
	}, nil
}

// Routes registers the quotation endpoints on the provided router.
func (h *QuotationHandlers) Routes(r chi.Router) {
	r.Use(h.auth.RequireAuth())
	if h.idempotency != nil {
		r.With(h.idempotency).Post("/", h.create)
	} else {
		r.Post("/", h.create)
	}
	r.Get("/", h.list)
	r.Get("/{quotationID}", h.get)
	r.Post("/{quotationID}/approve", h.approve)
	r.Post("/{quotationID}/reject", h.reject)
	r.Post("/{quotationID}/submit", h.submit)
}

type createQuotationRequest struct {
	CompanyName string             `json:"company_name"`
	ProjectName string             `json:"project_name"`
	Remarks     string             `json:"remarks,omitempty"`
	Entries     []cartEntryPayload `json:"entries"`
}

type reviewQuotationRequest struct {
	Remarks string `json:"remarks,omitempty"`
}

type quotationItemResponse struct {
	ID           string                 `json:"id"`
	InstrumentID string                 `json:"instrument_id"`
	ProductCode  string                 `json:"product_code"`
	BasePrice    int64                  `json:"base_price"`
	Selections   []selectionLinePayload `json:"selections,omitempty"`
	AddOns       []addOnLinePayload     `json:"add_ons,omitempty"`
	Quantity     int                    `json:"quantity"`
	UnitTotal    int64                  `json:"unit_total"`
	LineTotal    int64                  `json:"line_total"`
}

type quotationResponse struct {
	ID          string                  `json:"id"`
	ClientID    string                  `json:"client_id"`
	CompanyName string                  `json:"company_name"`
	ProjectName string                  `json:"project_name"`
	Status      string                  `json:"status"`
	Remarks     string                  `json:"remarks,omitempty"`
	ReviewedBy  string                  `json:"reviewed_by,omitempty"`
	Items       []quotationItemResponse `json:"items"`
	TotalPrice  int64                   `json:"total_price"`
	CreatedAt   string                  `json:"created_at,omitempty"`
	UpdatedAt   string                  `json:"updated_at,omitempty"`
	ApprovedAt  string                  `json:"approved_at,omitempty"`
	RejectedAt  string                  `json:"rejected_at,omitempty"`
	SubmittedAt string                  `json:"submitted_at,omitempty"`
}

type quotationListResponse struct {
	Quotations    []quotationResponse `json:"quotations"`
	NextPageToken string              `json:"next_page_token,omitempty"`
}

func (h *QuotationHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if !identity.HasAnyRole(auth.RoleClient, auth.RoleAdmin) {
		writeRoleError(ctx, w)
		return
	}

	var req createQuotationRequest
	if err := decodeJSONBody(r, defaultMaxBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	entries := make([]domain.CartEntry, 0, len(req.Entries))
	for _, entry := range req.Entries {
		entries = append(entries, cartEntryFromPayload(entry))
	}

	quotation, err := h.quotations.CreateFromCart(ctx, services.CreateQuotationCommand{
		ClientID:    identity.UID,
		CompanyName: req.CompanyName,
		ProjectName: req.ProjectName,
		Remarks:     req.Remarks,
		Entries:     entries,
	})
	if err != nil {
		writeQuotationError(ctx, w, err)
		return
	}

	// The mirror is stale once the cart became a quotation. Best effort.
	if h.carts != nil {
		_ = h.carts.ClearCart(ctx, identity.UID)
	}

	writeJSONResponse(w, http.StatusCreated, renderQuotation(quotation))
}

func (h *QuotationHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	paging, err := parsePagination(r)
	if err != nil {
		writePaginationError(ctx, w, err)
		return
	}

	filter := services.QuotationListFilter{Pagination: paging}
	for _, raw := range strings.Split(r.URL.Query().Get("status"), ",") {
		status := domain.QuotationStatus(strings.TrimSpace(raw))
		if status.Valid() {
			filter.Statuses = append(filter.Statuses, status)
		}
	}

	page, err := h.quotations.ListQuotations(ctx, filter, actorFromIdentity(identity))
	if err != nil {
		writeQuotationError(ctx, w, err)
		return
	}

	payload := quotationListResponse{
		Quotations:    make([]quotationResponse, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, quotation := range page.Items {
		payload.Quotations = append(payload.Quotations, renderQuotation(quotation))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *QuotationHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	quotation, err := h.quotations.GetQuotation(ctx, chi.URLParam(r, "quotationID"), actorFromIdentity(identity))
	if err != nil {
		writeQuotationError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, renderQuotation(quotation))
}

func (h *QuotationHandlers) approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.quotations.Approve)
}

func (h *QuotationHandlers) reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.quotations.Reject)
}

func (h *QuotationHandlers) review(w http.ResponseWriter, r *http.Request, decide func(context.Context, services.ReviewQuotationCommand) (domain.Quotation, error)) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if !identity.HasAnyRole(auth.RoleEngineer, auth.RoleAdmin) {
		writeRoleError(ctx, w)
		return
	}

	var req reviewQuotationRequest
	if err := decodeJSONBody(r, defaultMaxBodySize, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeBodyError(ctx, w, err)
		return
	}

	quotation, err := decide(ctx, services.ReviewQuotationCommand{
		QuotationID: chi.URLParam(r, "quotationID"),
		ReviewerID:  identity.UID,
		Remarks:     req.Remarks,
	})
	if err != nil {
		writeQuotationError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, renderQuotation(quotation))
}

func (h *QuotationHandlers) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if !identity.HasAnyRole(auth.RoleClient, auth.RoleAdmin) {
		writeRoleError(ctx, w)
		return
	}

	quotation, err := h.quotations.Submit(ctx, services.SubmitQuotationCommand{
		QuotationID: chi.URLParam(r, "quotationID"),
		ClientID:    identity.UID,
	})
	if err != nil {
		writeQuotationError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, renderQuotation(quotation))
}

func renderQuotation(quotation domain.Quotation) quotationResponse {
	payload := quotationResponse{
		ID:          quotation.ID,
		ClientID:    quotation.ClientID,
		CompanyName: quotation.CompanyName,
		ProjectName: quotation.ProjectName,
		Status:      string(quotation.Status),
		Remarks:     quotation.Remarks,
		ReviewedBy:  quotation.ReviewedBy,
		Items:       make([]quotationItemResponse, 0, len(quotation.Items)),
		TotalPrice:  quotation.TotalPrice(),
		CreatedAt:   formatTime(quotation.CreatedAt),
		UpdatedAt:   formatTime(quotation.UpdatedAt),
		ApprovedAt:  formatTimePtr(quotation.ApprovedAt),
		RejectedAt:  formatTimePtr(quotation.RejectedAt),
		SubmittedAt: formatTimePtr(quotation.SubmittedAt),
	}
	for _, item := range quotation.Items {
		payload.Items = append(payload.Items, quotationItemResponse{
			ID:           item.ID,
			InstrumentID: item.InstrumentID,
			ProductCode:  item.ProductCode,
			BasePrice:    item.BasePrice,
			Selections:   renderSelectionLines(item.Selections),
			AddOns:       renderAddOnLines(item.AddOns),
			Quantity:     item.Quantity,
			UnitTotal:    item.UnitTotal(),
			LineTotal:    item.LineTotal(),
		})
	}
	return payload
}

func writeRoleError(ctx context.Context, w http.ResponseWriter) {
	httpx.WriteError(ctx, w, httpx.NewError("insufficient_role", "identity does not have required role", http.StatusForbidden))
}

func writeQuotationError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrQuotationInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrQuotationRemarksRequired):
		httpx.WriteError(ctx, w, httpx.NewError("remarks_required", "rejection requires remarks", http.StatusBadRequest))
	case errors.Is(err, services.ErrQuotationForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "quotation belongs to another account", http.StatusForbidden))
	case errors.Is(err, services.ErrQuotationNotPending):
		httpx.WriteError(ctx, w, httpx.NewError("not_pending", "quotation was already reviewed", http.StatusConflict))
	case errors.Is(err, services.ErrQuotationNotApproved):
		httpx.WriteError(ctx, w, httpx.NewError("not_approved", "quotation must be approved before submission", http.StatusConflict))
	default:
		writeRepoError(ctx, w, err)
	}
}
