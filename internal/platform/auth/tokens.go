package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
	defaultIssuerName = "instrugate-api"

	// TokenTypeAccess marks short-lived tokens presented on every request.
	TokenTypeAccess = "access"
	// TokenTypeRefresh marks long-lived tokens exchanged for new pairs.
	TokenTypeRefresh = "refresh"
)

var (
	// ErrTokenExpired signals that the presented token is past its expiry.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid signals a token that failed verification for any other reason.
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// Claims is the signed payload carried by both halves of a token pair.
type Claims struct {
	Username  string `json:"username"`
	Role      string `json:"role"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair bundles an access/refresh credential set.
type TokenPair struct {
	Access           string
	Refresh          string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Issuer signs and verifies HMAC token pairs.
type Issuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	clock      func() time.Time
}

// IssuerOption customises Issuer behaviour.
type IssuerOption func(*Issuer)

// WithAccessTTL overrides the access token lifetime.
func WithAccessTTL(d time.Duration) IssuerOption {
	return func(i *Issuer) {
		if d > 0 {
			i.accessTTL = d
		}
	}
}

// WithRefreshTTL overrides the refresh token lifetime.
func WithRefreshTTL(d time.Duration) IssuerOption {
	return func(i *Issuer) {
		if d > 0 {
			i.refreshTTL = d
		}
	}
}

// WithIssuerName overrides the iss claim.
func WithIssuerName(name string) IssuerOption {
	return func(i *Issuer) {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			i.issuer = trimmed
		}
	}
}

// WithClock injects a custom clock, primarily for tests.
func WithClock(clock func() time.Time) IssuerOption {
	return func(i *Issuer) {
		if clock != nil {
			i.clock = clock
		}
	}
}

// NewIssuer constructs an Issuer around the shared signing secret.
func NewIssuer(secret []byte, opts ...IssuerOption) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	issuer := &Issuer{
		secret:     secret,
		issuer:     defaultIssuerName,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		clock:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(issuer)
		}
	}
	return issuer, nil
}

// IssuePair signs a fresh access/refresh pair for the given principal.
func (i *Issuer) IssuePair(subject, username, role string) (TokenPair, error) {
	if strings.TrimSpace(subject) == "" {
		return TokenPair{}, errors.New("auth: subject is required")
	}
	now := i.clock().UTC()

	accessExpiry := now.Add(i.accessTTL)
	access, err := i.sign(subject, username, role, TokenTypeAccess, now, accessExpiry)
	if err != nil {
		return TokenPair{}, err
	}

	refreshExpiry := now.Add(i.refreshTTL)
	refresh, err := i.sign(subject, username, role, TokenTypeRefresh, now, refreshExpiry)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		Access:           access,
		Refresh:          refresh,
		AccessExpiresAt:  accessExpiry,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

// Verify parses the token, checks the signature and expiry, and enforces the
// expected token type.
func (i *Issuer) Verify(tokenStr, wantType string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.TokenType != wantType {
		return nil, fmt.Errorf("%w: unexpected token type %q", ErrTokenInvalid, claims.TokenType)
	}
	if claims.Issuer != i.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer", ErrTokenInvalid)
	}
	return claims, nil
}

// IdentityFromClaims converts verified claims into the request identity.
func IdentityFromClaims(claims *Claims) *Identity {
	if claims == nil {
		return nil
	}
	return &Identity{
		UID:      claims.Subject,
		Username: claims.Username,
		Role:     strings.ToLower(strings.TrimSpace(claims.Role)),
	}
}

func (i *Issuer) sign(subject, username, role, tokenType string, now, expiry time.Time) (string, error) {
	claims := Claims{
		Username:  username,
		Role:      strings.ToLower(strings.TrimSpace(role)),
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign %s token: %w", tokenType, err)
	}
	return signed, nil
}
