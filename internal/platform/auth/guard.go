package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// CredentialStore is the device-local persistence port for the token pair.
type CredentialStore interface {
	AccessToken() (string, bool)
	RefreshToken() (string, bool)
	StoreAccessToken(token string) error
	Clear() error
}

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (string, error)
}

// Decision is the guard's verdict for a protected navigation.
type Decision struct {
	Allowed         bool
	RedirectToLogin bool
}

// Guard gates protected views: it checks the stored access token's expiry
// locally and performs at most one refresh exchange before deciding.
type Guard struct {
	store     CredentialStore
	refresher Refresher
	clock     func() time.Time
}

// GuardOption customises Guard behaviour.
type GuardOption func(*Guard)

// WithGuardClock injects a custom clock, primarily for tests.
func WithGuardClock(clock func() time.Time) GuardOption {
	return func(g *Guard) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// NewGuard constructs a Guard over the given credential store and refresher.
func NewGuard(store CredentialStore, refresher Refresher, opts ...GuardOption) (*Guard, error) {
	if store == nil {
		return nil, errors.New("auth: credential store is required")
	}
	if refresher == nil {
		return nil, errors.New("auth: refresher is required")
	}
	g := &Guard{store: store, refresher: refresher, clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

// Authorize decides whether a protected view may render. With no stored
// credentials it redirects without touching the network. An expired or
// unreadable access token triggers exactly one refresh attempt; if that
// fails, both credentials are cleared and the caller is sent to login.
func (g *Guard) Authorize(ctx context.Context) (Decision, error) {
	access, hasAccess := g.store.AccessToken()
	refresh, hasRefresh := g.store.RefreshToken()
	if !hasAccess && !hasRefresh {
		return Decision{RedirectToLogin: true}, nil
	}

	if hasAccess && !g.expired(access) {
		return Decision{Allowed: true}, nil
	}
	if !hasRefresh {
		if err := g.store.Clear(); err != nil {
			return Decision{}, err
		}
		return Decision{RedirectToLogin: true}, nil
	}

	newAccess, err := g.refresher.Refresh(ctx, refresh)
	if err != nil {
		if clearErr := g.store.Clear(); clearErr != nil {
			return Decision{}, clearErr
		}
		return Decision{RedirectToLogin: true}, nil
	}
	if err := g.store.StoreAccessToken(newAccess); err != nil {
		return Decision{}, err
	}
	return Decision{Allowed: true}, nil
}

// expired reads the exp claim without signature verification; the client
// never holds the signing secret. Unreadable tokens count as expired.
func (g *Guard) expired(tokenStr string) bool {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return true
	}
	return !claims.ExpiresAt.Time.After(g.clock())
}
