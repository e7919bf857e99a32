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

// UserHandlersDeps bundles the dependencies of the account endpoints.
type UserHandlersDeps struct {
	Users services.UserService
	Auth  *auth.Authenticator
}

// UserHandlers serves self registration and the current-account endpoint.
type UserHandlers struct {
	users services.UserService
	auth  *auth.Authenticator
}

// NewUserHandlers validates dependencies and constructs the handlers.
func NewUserHandlers(deps UserHandlersDeps) (*UserHandlers, error) {
	if deps.Users == nil {
		return nil, errors.New("handlers: user service is required")
	}
	if deps.Auth == nil {
		return nil, errors.New("handlers: authenticator is required")
	}
	return &UserHandlers{users: deps.Users, auth: deps.Auth}, nil
}

// Routes registers the account endpoints on the provided router.
func (h *UserHandlers) Routes(r chi.Router) {
	r.Post("/", h.register)
	r.Group(func(g chi.Router) {
		g.Use(h.auth.RequireAuth())
		g.Get("/me", h.me)
	})
}

type registerRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	CompanyName string `json:"company_name"`
}

type userResponse struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	CompanyName string `json:"company_name,omitempty"`
	IsActive    bool   `json:"is_active"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
	LastLoginAt string `json:"last_login_at,omitempty"`
}

func (h *UserHandlers) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := decodeJSONBody(r, defaultMaxBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	user, err := h.users.Register(ctx, services.RegisterUserCommand{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		CompanyName: req.CompanyName,
	})
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, renderUser(user))
}

func (h *UserHandlers) me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	user, err := h.users.GetUser(ctx, identity.UID)
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, renderUser(user))
}

func renderUser(user domain.User) userResponse {
	return userResponse{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		Role:        string(user.Role),
		CompanyName: user.CompanyName,
		IsActive:    user.IsActive,
		CreatedAt:   formatTime(user.CreatedAt),
		UpdatedAt:   formatTime(user.UpdatedAt),
		LastLoginAt: formatTimePtr(user.LastLoginAt),
	}
}

func writeUserError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrUserInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrUserCredentialsInvalid):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_credentials", "username or password is incorrect", http.StatusUnauthorized))
	case errors.Is(err, services.ErrUserInactive):
		httpx.WriteError(ctx, w, httpx.NewError("account_inactive", "account is deactivated", http.StatusForbidden))
	default:
		writeRepoError(ctx, w, err)
	}
}
