package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/instrugate/api/internal/domain"
	"github.com/instrugate/api/internal/repositories"
	"github.com/instrugate/api/internal/services"
)

// stubCatalogService overrides only what each test exercises; anything else
// panics through the embedded nil interface.
type stubCatalogService struct {
	services.CatalogService

	categories []domain.Category
	types      []domain.InstrumentType
	page       domain.CursorPage[domain.Instrument]
	instrument domain.Instrument
	config     domain.InstrumentConfig
	download   services.SignedDownload
	err        error

	lastFilter services.InstrumentListFilter
}

func (s *stubCatalogService) ListCategories(context.Context) ([]domain.Category, error) {
	return s.categories, s.err
}

func (s *stubCatalogService) ListInstrumentTypes(context.Context, string) ([]domain.InstrumentType, error) {
	return s.types, s.err
}

func (s *stubCatalogService) ListInstruments(_ context.Context, filter services.InstrumentListFilter) (domain.CursorPage[domain.Instrument], error) {
	s.lastFilter = filter
	return s.page, s.err
}

func (s *stubCatalogService) GetInstrument(context.Context, string) (domain.Instrument, error) {
	return s.instrument, s.err
}

func (s *stubCatalogService) GetInstrumentConfig(context.Context, string) (domain.InstrumentConfig, error) {
	return s.config, s.err
}

func (s *stubCatalogService) SignInstrumentImageDownload(context.Context, string) (services.SignedDownload, error) {
	return s.download, s.err
}

func catalogTestRouter(t *testing.T, catalog *stubCatalogService) chi.Router {
	t.Helper()
	handlers, err := NewCatalogHandlers(CatalogHandlersDeps{Catalog: catalog})
	if err != nil {
		t.Fatalf("NewCatalogHandlers returned error: %v", err)
	}
	return NewRouter(WithCatalogRoutes(handlers.Routes))
}

func TestListCategoriesIsPublic(t *testing.T) {
	router := catalogTestRouter(t, &stubCatalogService{categories: []domain.Category{
		{ID: "cat-1", Name: "Pressure", Slug: "pressure", SortIndex: 1},
	}})

	rec := doRequest(t, router, httptest.NewRequest(http.MethodGet, "/api/catalog/categories", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string][]categoryResponse
	decodeResponse(t, rec, &body)
	if len(body["categories"]) != 1 || body["categories"][0].Slug != "pressure" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestListInstrumentsForwardsFilter(t *testing.T) {
	stub := &stubCatalogService{page: domain.CursorPage[domain.Instrument]{
		Items:         []domain.Instrument{{ID: "inst-1", TypeID: "type-1", Name: "PG-100", BasePrice: 10000, IsActive: true}},
		NextPageToken: "next",
	}}
	router := catalogTestRouter(t, stub)

	rec := doRequest(t, router, httptest.NewRequest(http.MethodGet, "/api/catalog/instruments?type_id=type-1&category_id=cat-1&page_size=5&page_token=abc", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if stub.lastFilter.TypeID != "type-1" || stub.lastFilter.CategoryID != "cat-1" ||
		stub.lastFilter.Pagination.PageSize != 5 || stub.lastFilter.Pagination.PageToken != "abc" {
		t.Fatalf("unexpected filter %+v", stub.lastFilter)
	}

	var payload instrumentListResponse
	decodeResponse(t, rec, &payload)
	if payload.NextPageToken != "next" || len(payload.Instruments) != 1 {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestGetInstrumentMapsNotFound(t *testing.T) {
	router := catalogTestRouter(t, &stubCatalogService{err: &repositories.NotFoundError{Entity: "instrument", ID: "missing"}})

	rec := doRequest(t, router, httptest.NewRequest(http.MethodGet, "/api/catalog/instruments/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetInstrumentImageURLIsPublic(t *testing.T) {
	router := catalogTestRouter(t, &stubCatalogService{download: services.SignedDownload{
		URL:       "https://storage.example/catalog/instruments/inst-1/images/img-1.png",
		ExpiresAt: time.Date(2026, 2, 3, 10, 5, 0, 0, time.UTC),
	}})

	rec := doRequest(t, router, httptest.NewRequest(http.MethodGet, "/api/catalog/instruments/inst-1/image-url", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var payload imageURLResponse
	decodeResponse(t, rec, &payload)
	if payload.URL == "" || payload.ExpiresAt.IsZero() {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestGetInstrumentImageURLUnavailableWithoutSigner(t *testing.T) {
	router := catalogTestRouter(t, &stubCatalogService{err: services.ErrCatalogImageSignerMissing})

	rec := doRequest(t, router, httptest.NewRequest(http.MethodGet, "/api/catalog/instruments/inst-1/image-url", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestGetInstrumentConfigAssemblesPayload(t *testing.T) {
	router := catalogTestRouter(t, &stubCatalogService{config: domain.InstrumentConfig{
		Instrument: domain.Instrument{ID: "inst-1", Name: "PG-100", BasePrice: 10000},
		Fields: []domain.ConfigurableField{
			{ID: "f-1", Name: "Range", SortIndex: 1},
			{ID: "f-2", Name: "Connection", SortIndex: 2, ParentFieldID: "f-1", TriggerValue: "A1"},
		},
		Options: map[string][]domain.FieldOption{
			"f-1": {{ID: "o-1", FieldID: "f-1", Label: "0-10 bar", Code: "A1", Price: 500}},
		},
		AddOnTypes: []domain.AddOnType{{ID: "at-1", Name: "Mounting"}},
		AddOns: map[string][]domain.AddOn{
			"at-1": {{ID: "a-1", TypeID: "at-1", Label: "Panel bracket", Code: "PB", Price: 1500}},
		},
	}})

	rec := doRequest(t, router, httptest.NewRequest(http.MethodGet, "/api/catalog/instruments/inst-1/config", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var payload instrumentConfigResponse
	decodeResponse(t, rec, &payload)
	if len(payload.Fields) != 2 {
		t.Fatalf("expected two fields, got %+v", payload.Fields)
	}
	if len(payload.Fields[0].Options) != 1 || payload.Fields[0].Options[0].Code != "A1" {
		t.Fatalf("expected options nested under field, got %+v", payload.Fields[0])
	}
	if payload.Fields[1].ParentFieldID != "f-1" || payload.Fields[1].TriggerValue != "A1" {
		t.Fatalf("expected dependency wiring preserved, got %+v", payload.Fields[1])
	}
	if len(payload.AddOnTypes) != 1 || len(payload.AddOnTypes[0].AddOns) != 1 {
		t.Fatalf("expected add-ons nested under type, got %+v", payload.AddOnTypes)
	}
}
