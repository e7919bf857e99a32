package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/instrugate/api/internal/cart"
	"github.com/instrugate/api/internal/domain"
	"github.com/instrugate/api/internal/repositories"
)

// ErrCartInvalidInput indicates a malformed cart command.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// CartServiceDeps bundles constructor inputs for the cart service.
type CartServiceDeps struct {
	Mirrors repositories.CartMirrorRepository
	Clock   func() time.Time
}

type cartService struct {
	mirrors repositories.CartMirrorRepository
	clock   func() time.Time
}

// NewCartService constructs the cart service with the supplied dependencies.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Mirrors == nil {
		return nil, fmt.Errorf("cart service: cart mirror repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &cartService{
		mirrors: deps.Mirrors,
		clock:   func() time.Time { return clock().UTC() },
	}, nil
}

func (s *cartService) GetCart(ctx context.Context, userID string) ([]domain.CartEntry, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	return s.mirrors.Load(ctx, userID)
}

func (s *cartService) ReplaceCart(ctx context.Context, userID string, entries []domain.CartEntry) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	now := s.clock()
	for i := range entries {
		if entries[i].Quantity < 1 {
			return fmt.Errorf("%w: entry quantity must be positive", ErrCartInvalidInput)
		}
		if strings.TrimSpace(entries[i].InstrumentID) == "" {
			return fmt.Errorf("%w: entry instrument id is required", ErrCartInvalidInput)
		}
		if entries[i].AddedAt.IsZero() {
			entries[i].AddedAt = now
		}
	}
	return s.mirrors.Replace(ctx, userID, entries)
}

func (s *cartService) ClearCart(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	return s.mirrors.Clear(ctx, userID)
}

// UserCartStore binds the shared mirror repository to one user so it can back
// a cart.Cart as its persistence port.
type UserCartStore struct {
	mirrors repositories.CartMirrorRepository
	userID  string
}

// NewUserCartStore wraps the mirror repository for the given user.
func NewUserCartStore(mirrors repositories.CartMirrorRepository, userID string) (*UserCartStore, error) {
	if mirrors == nil {
		return nil, errors.New("cart service: cart mirror repository is required")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	return &UserCartStore{mirrors: mirrors, userID: userID}, nil
}

func (s *UserCartStore) Load(ctx context.Context) ([]domain.CartEntry, error) {
	return s.mirrors.Load(ctx, s.userID)
}

func (s *UserCartStore) Save(ctx context.Context, entries []domain.CartEntry) error {
	return s.mirrors.Replace(ctx, s.userID, entries)
}

func (s *UserCartStore) Clear(ctx context.Context) error {
	return s.mirrors.Clear(ctx, s.userID)
}

var _ cart.Store = (*UserCartStore)(nil)
