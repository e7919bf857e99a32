package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/instrugate/api/internal/domain"
	"github.com/instrugate/api/internal/services"
)

type stubQuotationService struct {
	quotation domain.Quotation
	err       error

	lastCreate services.CreateQuotationCommand
	lastReview services.ReviewQuotationCommand
	lastActor  services.Actor
	deletedID  string
}

func (s *stubQuotationService) CreateFromCart(_ context.Context, cmd services.CreateQuotationCommand) (domain.Quotation, error) {
	s.lastCreate = cmd
	return s.quotation, s.err
}

func (s *stubQuotationService) GetQuotation(_ context.Context, _ string, actor services.Actor) (domain.Quotation, error) {
	s.lastActor = actor
	return s.quotation, s.err
}

func (s *stubQuotationService) ListQuotations(_ context.Context, _ services.QuotationListFilter, actor services.Actor) (domain.CursorPage[domain.Quotation], error) {
	s.lastActor = actor
	if s.err != nil {
		return domain.CursorPage[domain.Quotation]{}, s.err
	}
	return domain.CursorPage[domain.Quotation]{Items: []domain.Quotation{s.quotation}}, nil
}

func (s *stubQuotationService) Approve(_ context.Context, cmd services.ReviewQuotationCommand) (domain.Quotation, error) {
	s.lastReview = cmd
	return s.quotation, s.err
}

func (s *stubQuotationService) Reject(_ context.Context, cmd services.ReviewQuotationCommand) (domain.Quotation, error) {
	s.lastReview = cmd
	return s.quotation, s.err
}

func (s *stubQuotationService) Submit(context.Context, services.SubmitQuotationCommand) (domain.Quotation, error) {
	return s.quotation, s.err
}

func (s *stubQuotationService) DeleteQuotation(_ context.Context, quotationID string, actor services.Actor) error {
	s.lastActor = actor
	s.deletedID = quotationID
	return s.err
}

type stubCartService struct {
	entries    []domain.CartEntry
	clearCalls int
}

func (s *stubCartService) GetCart(context.Context, string) ([]domain.CartEntry, error) {
	return s.entries, nil
}

func (s *stubCartService) ReplaceCart(_ context.Context, _ string, entries []domain.CartEntry) error {
	s.entries = entries
	return nil
}

func (s *stubCartService) ClearCart(context.Context, string) error {
	s.clearCalls++
	s.entries = nil
	return nil
}

func quotationTestRouter(t *testing.T, quotations *stubQuotationService, carts *stubCartService) (http.Handler, func(id, username, role string) string) {
	t.Helper()
	authenticator, issue := newTestAuth(t)
	var cartService services.CartService
	if carts != nil {
		cartService = carts
	}
	handlers, err := NewQuotationHandlers(QuotationHandlersDeps{
		Quotations: quotations,
		Carts:      cartService,
		Auth:       authenticator,
	})
	if err != nil {
		t.Fatalf("NewQuotationHandlers returned error: %v", err)
	}
	return NewRouter(WithQuotationRoutes(handlers.Routes)), issue
}

func sampleQuotation() domain.Quotation {
	created := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	return domain.Quotation{
		ID:          "quote-1",
		ClientID:    "user-1",
		CompanyName: "Acme Process",
		ProjectName: "Refinery upgrade",
		Status:      domain.QuotationStatusPending,
		Items: []domain.QuotationItem{{
			ID:           "item-1",
			InstrumentID: "inst-1",
			ProductCode:  "[PG100][A1]",
			BasePrice:    10000,
			Selections:   []domain.SelectionLine{{FieldID: "f-1", OptionID: "o-1", OptionCode: "A1", Price: 500}},
			Quantity:     2,
			CreatedAt:    created,
		}},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestCreateQuotationRequiresAuth(t *testing.T) {
	router, _ := quotationTestRouter(t, &stubQuotationService{quotation: sampleQuotation()}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/quotations/", strings.NewReader(`{"company_name":"Acme"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestCreateQuotationClearsCartMirror(t *testing.T) {
	stub := &stubQuotationService{quotation: sampleQuotation()}
	carts := &stubCartService{}
	router, issue := quotationTestRouter(t, stub, carts)

	body := `{"company_name":"Acme Process","project_name":"Refinery upgrade","entries":[{"instrument_id":"inst-1","product_code":"[PG100][A1]","base_price":10000,"quantity":2}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/quotations/", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+issue("user-1", "acme-buyer", "client"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if stub.lastCreate.ClientID != "user-1" {
		t.Fatalf("expected client id from token, got %q", stub.lastCreate.ClientID)
	}
	if len(stub.lastCreate.Entries) != 1 || stub.lastCreate.Entries[0].InstrumentID != "inst-1" {
		t.Fatalf("unexpected entries %+v", stub.lastCreate.Entries)
	}
	if carts.clearCalls != 1 {
		t.Fatalf("expected cart mirror cleared once, got %d", carts.clearCalls)
	}

	var payload quotationResponse
	decodeResponse(t, rec, &payload)
	if payload.TotalPrice != 21000 {
		t.Fatalf("expected derived total 21000, got %d", payload.TotalPrice)
	}
}

func TestApproveRejectedForClients(t *testing.T) {
	router, issue := quotationTestRouter(t, &stubQuotationService{quotation: sampleQuotation()}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/quotations/quote-1/approve", nil)
	req.Header.Set("Authorization", "Bearer "+issue("user-1", "acme-buyer", "client"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for client, got %d", rec.Code)
	}
}

func TestApproveRecordsReviewer(t *testing.T) {
	stub := &stubQuotationService{quotation: sampleQuotation()}
	router, issue := quotationTestRouter(t, stub, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/quotations/quote-1/approve", strings.NewReader(`{"remarks":"checked"}`))
	req.Header.Set("Authorization", "Bearer "+issue("eng-1", "engineer", "proposal_engineer"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if stub.lastReview.QuotationID != "quote-1" || stub.lastReview.ReviewerID != "eng-1" {
		t.Fatalf("unexpected review command %+v", stub.lastReview)
	}
}

func TestRejectMapsRemarksRequired(t *testing.T) {
	router, issue := quotationTestRouter(t, &stubQuotationService{err: services.ErrQuotationRemarksRequired}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/quotations/quote-1/reject", nil)
	req.Header.Set("Authorization", "Bearer "+issue("eng-1", "engineer", "proposal_engineer"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSubmitMapsNotApproved(t *testing.T) {
	router, issue := quotationTestRouter(t, &stubQuotationService{err: services.ErrQuotationNotApproved}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/quotations/quote-1/submit", nil)
	req.Header.Set("Authorization", "Bearer "+issue("user-1", "acme-buyer", "client"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestListQuotationsPassesActor(t *testing.T) {
	stub := &stubQuotationService{quotation: sampleQuotation()}
	router, issue := quotationTestRouter(t, stub, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/quotations/?status=pending,approved", nil)
	req.Header.Set("Authorization", "Bearer "+issue("user-1", "acme-buyer", "client"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if stub.lastActor.UserID != "user-1" || stub.lastActor.Role != domain.RoleClient {
		t.Fatalf("unexpected actor %+v", stub.lastActor)
	}
}
