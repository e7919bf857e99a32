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

type adminCatalogStub struct {
	stubCatalogService

	lastCategory domain.Category
	lastSign     services.SignImageUploadCommand
	deletedID    string
}

func (s *adminCatalogStub) UpsertCategory(_ context.Context, category domain.Category) (domain.Category, error) {
	category.ID = "cat-1"
	s.lastCategory = category
	return category, s.err
}

func (s *adminCatalogStub) DeleteCategory(_ context.Context, categoryID string) error {
	s.deletedID = categoryID
	return s.err
}

func (s *adminCatalogStub) SignInstrumentImageUpload(_ context.Context, cmd services.SignImageUploadCommand) (services.SignedUpload, error) {
	s.lastSign = cmd
	if s.err != nil {
		return services.SignedUpload{}, s.err
	}
	return services.SignedUpload{
		URL:        "https://storage.example/instruments/inst-1/img",
		ObjectPath: "instruments/inst-1/img",
		ExpiresAt:  time.Date(2026, 2, 3, 10, 15, 0, 0, time.UTC),
	}, nil
}

func adminTestRouter(t *testing.T, catalog *adminCatalogStub, users *stubUserService) (http.Handler, func(id, username, role string) string) {
	t.Helper()
	if users == nil {
		users = &stubUserService{}
	}
	authenticator, issue := newTestAuth(t)
	handlers, err := NewAdminHandlers(AdminHandlersDeps{
		Catalog:    catalog,
		Users:      users,
		Quotations: &stubQuotationService{},
		Auth:       authenticator,
	})
	if err != nil {
		t.Fatalf("NewAdminHandlers returned error: %v", err)
	}
	return NewRouter(WithAdminRoutes(handlers.Routes)), issue
}

func TestAdminRoutesRejectNonAdmins(t *testing.T) {
	router, issue := adminTestRouter(t, &adminCatalogStub{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/catalog/categories", strings.NewReader(`{"name":"Pressure"}`))
	req.Header.Set("Authorization", "Bearer "+issue("user-1", "acme-buyer", "client"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for client token, got %d", rec.Code)
	}
}

func TestAdminUpsertCategory(t *testing.T) {
	catalog := &adminCatalogStub{}
	router, issue := adminTestRouter(t, catalog, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/catalog/categories", strings.NewReader(`{"name":"Pressure","slug":"pressure","sort_index":1}`))
	req.Header.Set("Authorization", "Bearer "+issue("admin-1", "admin", "admin"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if catalog.lastCategory.Name != "Pressure" || catalog.lastCategory.Slug != "pressure" {
		t.Fatalf("unexpected category %+v", catalog.lastCategory)
	}
}

func TestAdminDeleteCategory(t *testing.T) {
	catalog := &adminCatalogStub{}
	router, issue := adminTestRouter(t, catalog, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/catalog/categories/cat-1", nil)
	req.Header.Set("Authorization", "Bearer "+issue("admin-1", "admin", "admin"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if catalog.deletedID != "cat-1" {
		t.Fatalf("expected cat-1 deleted, got %q", catalog.deletedID)
	}
}

func TestAdminSignImageUpload(t *testing.T) {
	catalog := &adminCatalogStub{}
	router, issue := adminTestRouter(t, catalog, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/catalog/instruments/inst-1/image-upload", strings.NewReader(`{"content_type":"image/png"}`))
	req.Header.Set("Authorization", "Bearer "+issue("admin-1", "admin", "admin"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if catalog.lastSign.InstrumentID != "inst-1" || catalog.lastSign.ContentType != "image/png" {
		t.Fatalf("unexpected sign command %+v", catalog.lastSign)
	}

	var payload signedUploadResponse
	decodeResponse(t, rec, &payload)
	if payload.URL == "" || payload.ObjectPath == "" || payload.ExpiresAt == "" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestAdminUpsertUserForwardsPassword(t *testing.T) {
	users := &stubUserService{user: domain.User{ID: "user-9", Username: "engineer", Role: domain.RoleProposalEngineer, IsActive: true}}
	router, issue := adminTestRouter(t, &adminCatalogStub{}, users)

	body := `{"username":"engineer","email":"eng@instrugate.example","role":"proposal_engineer","is_active":true,"password":"long enough"}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/users/", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+issue("admin-1", "admin", "admin"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if users.lastUpsert.Password != "long enough" || users.lastUpsert.User.Role != domain.RoleProposalEngineer {
		t.Fatalf("unexpected upsert command %+v", users.lastUpsert)
	}
}

func TestAdminDeleteUser(t *testing.T) {
	users := &stubUserService{}
	router, issue := adminTestRouter(t, &adminCatalogStub{}, users)

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/users/user-9", nil)
	req.Header.Set("Authorization", "Bearer "+issue("admin-1", "admin", "admin"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if users.lastDeleted != "user-9" {
		t.Fatalf("expected user-9 deleted, got %q", users.lastDeleted)
	}
}

func TestAdminDeleteQuotation(t *testing.T) {
	quotations := &stubQuotationService{}
	authenticator, issue := newTestAuth(t)
	adminHandlers, err := NewAdminHandlers(AdminHandlersDeps{
		Catalog:    &adminCatalogStub{},
		Users:      &stubUserService{},
		Quotations: quotations,
		Auth:       authenticator,
	})
	if err != nil {
		t.Fatalf("NewAdminHandlers returned error: %v", err)
	}
	router := NewRouter(WithAdminRoutes(adminHandlers.Routes))

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/quotations/quo-1", nil)
	req.Header.Set("Authorization", "Bearer "+issue("admin-1", "admin", "admin"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if quotations.deletedID != "quo-1" || quotations.lastActor.Role != domain.RoleAdmin {
		t.Fatalf("expected admin delete of quo-1, got %q by %+v", quotations.deletedID, quotations.lastActor)
	}
}
