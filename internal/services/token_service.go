package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/instrugate/api/internal/platform/auth"
	"github.com/instrugate/api/internal/repositories"
)

// ErrTokenUserGone indicates a refresh for an account that no longer exists
// or was deactivated since the pair was issued.
var ErrTokenUserGone = errors.New("token service: account unavailable")

// TokenServiceDeps bundles constructor inputs for the token service.
type TokenServiceDeps struct {
	Users  UserService
	Lookup repositories.UserRepository
	Issuer *auth.Issuer
}

type tokenService struct {
	users  UserService
	lookup repositories.UserRepository
	issuer *auth.Issuer
}

// NewTokenService constructs the token service with the supplied dependencies.
func NewTokenService(deps TokenServiceDeps) (TokenService, error) {
	if deps.Users == nil {
		return nil, fmt.Errorf("token service: user service is required")
	}
	if deps.Lookup == nil {
		return nil, fmt.Errorf("token service: user repository is required")
	}
	if deps.Issuer == nil {
		return nil, fmt.Errorf("token service: issuer is required")
	}
	return &tokenService{
		users:  deps.Users,
		lookup: deps.Lookup,
		issuer: deps.Issuer,
	}, nil
}

func (s *tokenService) Login(ctx context.Context, username, password string) (auth.TokenPair, error) {
	user, err := s.users.Authenticate(ctx, username, password)
	if err != nil {
		return auth.TokenPair{}, err
	}
	return s.issuer.IssuePair(user.ID, user.Username, string(user.Role))
}

// Refresh verifies the refresh token and re-checks the account before issuing
// a new pair, so deactivating an account cuts off rotation.
func (s *tokenService) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	claims, err := s.issuer.Verify(refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		return auth.TokenPair{}, err
	}

	user, err := s.lookup.FindByID(ctx, claims.Subject)
	if err != nil {
		if isRepoNotFound(err) {
			return auth.TokenPair{}, ErrTokenUserGone
		}
		return auth.TokenPair{}, err
	}
	if !user.IsActive {
		return auth.TokenPair{}, ErrTokenUserGone
	}
	return s.issuer.IssuePair(user.ID, user.Username, string(user.Role))
}
