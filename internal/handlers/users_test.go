package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/instrugate/api/internal/domain"
	"github.com/instrugate/api/internal/services"
)

type stubUserService struct {
	user domain.User
	err  error

	lastRegister services.RegisterUserCommand
	lastUpsert   services.UpsertUserCommand
	lastDeleted  string
}

func (s *stubUserService) Register(_ context.Context, cmd services.RegisterUserCommand) (domain.User, error) {
	s.lastRegister = cmd
	return s.user, s.err
}

func (s *stubUserService) Authenticate(context.Context, string, string) (domain.User, error) {
	return s.user, s.err
}

func (s *stubUserService) GetUser(context.Context, string) (domain.User, error) {
	return s.user, s.err
}

func (s *stubUserService) ListUsers(context.Context, services.UserListFilter) (domain.CursorPage[domain.User], error) {
	if s.err != nil {
		return domain.CursorPage[domain.User]{}, s.err
	}
	return domain.CursorPage[domain.User]{Items: []domain.User{s.user}}, nil
}

func (s *stubUserService) UpsertUser(_ context.Context, cmd services.UpsertUserCommand) (domain.User, error) {
	s.lastUpsert = cmd
	return s.user, s.err
}

func (s *stubUserService) DeleteUser(_ context.Context, userID string) error {
	s.lastDeleted = userID
	return s.err
}

func userTestRouter(t *testing.T, users *stubUserService) (http.Handler, func(id, username, role string) string) {
	t.Helper()
	authenticator, issue := newTestAuth(t)
	handlers, err := NewUserHandlers(UserHandlersDeps{Users: users, Auth: authenticator})
	if err != nil {
		t.Fatalf("NewUserHandlers returned error: %v", err)
	}
	return NewRouter(WithUserRoutes(handlers.Routes)), issue
}

func TestRegisterCreatesAccount(t *testing.T) {
	stub := &stubUserService{user: domain.User{
		ID:       "user-1",
		Username: "acme-buyer",
		Email:    "buyer@acme.example",
		Role:     domain.RoleClient,
		IsActive: true,
	}}
	router, _ := userTestRouter(t, stub)

	body := `{"username":"acme-buyer","email":"buyer@acme.example","password":"correct horse","company_name":"Acme Process"}`
	req := httptest.NewRequest(http.MethodPost, "/api/users/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if stub.lastRegister.Username != "acme-buyer" || stub.lastRegister.CompanyName != "Acme Process" {
		t.Fatalf("unexpected register command %+v", stub.lastRegister)
	}

	var payload userResponse
	decodeResponse(t, rec, &payload)
	if payload.ID != "user-1" || payload.Role != "client" {
		t.Fatalf("unexpected user payload %+v", payload)
	}
}

func TestRegisterMapsValidationError(t *testing.T) {
	router, _ := userTestRouter(t, &stubUserService{err: services.ErrUserInvalidInput})

	req := httptest.NewRequest(http.MethodPost, "/api/users/", strings.NewReader(`{"username":""}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMeReturnsTokenAccount(t *testing.T) {
	stub := &stubUserService{user: domain.User{
		ID:       "user-1",
		Username: "acme-buyer",
		Role:     domain.RoleClient,
		IsActive: true,
	}}
	router, issue := userTestRouter(t, stub)

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+issue("user-1", "acme-buyer", "client"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var payload userResponse
	decodeResponse(t, rec, &payload)
	if payload.Username != "acme-buyer" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestMeRequiresToken(t *testing.T) {
	router, _ := userTestRouter(t, &stubUserService{})

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}
