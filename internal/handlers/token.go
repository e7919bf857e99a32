package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/instrugate/api/internal/platform/auth"
	"github.com/instrugate/api/internal/platform/httpx"
	"github.com/instrugate/api/internal/services"
)

// TokenHandlersDeps bundles the dependencies of the token endpoints.
type TokenHandlersDeps struct {
	Tokens services.TokenService

	// Limiter throttles credential attempts per remote address. Optional.
	Limiter RateLimiter
}

// TokenHandlers serves login and refresh-token rotation.
type TokenHandlers struct {
	tokens  services.TokenService
	limiter RateLimiter
}

// NewTokenHandlers validates dependencies and constructs the handlers.
func NewTokenHandlers(deps TokenHandlersDeps) (*TokenHandlers, error) {
	if deps.Tokens == nil {
		return nil, errors.New("handlers: token service is required")
	}
	return &TokenHandlers{tokens: deps.Tokens, limiter: deps.Limiter}, nil
}

// Routes registers the token endpoints on the provided router.
func (h *TokenHandlers) Routes(r chi.Router) {
	r.Post("/", h.login)
	r.Post("/refresh", h.refresh)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type tokenPairResponse struct {
	Access           string `json:"access"`
	Refresh          string `json:"refresh"`
	AccessExpiresAt  string `json:"access_expires_at"`
	RefreshExpiresAt string `json:"refresh_expires_at"`
}

func (h *TokenHandlers) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.allow(r) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many attempts, retry later", http.StatusTooManyRequests))
		return
	}

	var req loginRequest
	if err := decodeJSONBody(r, defaultMaxBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	pair, err := h.tokens.Login(ctx, req.Username, req.Password)
	if err != nil {
		writeTokenError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, renderTokenPair(pair))
}

func (h *TokenHandlers) refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.allow(r) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many attempts, retry later", http.StatusTooManyRequests))
		return
	}

	var req refreshRequest
	if err := decodeJSONBody(r, defaultMaxBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if strings.TrimSpace(req.Refresh) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "refresh token is required", http.StatusBadRequest))
		return
	}

	pair, err := h.tokens.Refresh(ctx, req.Refresh)
	if err != nil {
		writeTokenError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, renderTokenPair(pair))
}

func (h *TokenHandlers) allow(r *http.Request) bool {
	if h.limiter == nil {
		return true
	}
	return h.limiter.Allow(r.RemoteAddr)
}

func renderTokenPair(pair auth.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		Access:           pair.Access,
		Refresh:          pair.Refresh,
		AccessExpiresAt:  formatTime(pair.AccessExpiresAt),
		RefreshExpiresAt: formatTime(pair.RefreshExpiresAt),
	}
}

func writeTokenError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrUserCredentialsInvalid):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_credentials", "username or password is incorrect", http.StatusUnauthorized))
	case errors.Is(err, services.ErrUserInactive):
		httpx.WriteError(ctx, w, httpx.NewError("account_inactive", "account is deactivated", http.StatusForbidden))
	case errors.Is(err, services.ErrTokenUserGone):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_token", "refresh token no longer matches an active account", http.StatusUnauthorized))
	case errors.Is(err, auth.ErrTokenExpired):
		httpx.WriteError(ctx, w, httpx.NewError("token_expired", "refresh token expired", http.StatusUnauthorized))
	case errors.Is(err, auth.ErrTokenInvalid):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_token", "refresh token invalid", http.StatusUnauthorized))
	case errors.Is(err, services.ErrUserInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "username and password are required", http.StatusBadRequest))
	default:
		writeRepoError(ctx, w, err)
	}
}
