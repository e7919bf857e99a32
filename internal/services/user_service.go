package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/instrugate/api/internal/domain"
	"github.com/instrugate/api/internal/repositories"
)

const minPasswordLength = 8

var (
	// ErrUserInvalidInput indicates a malformed account command.
	ErrUserInvalidInput = errors.New("user service: invalid input")
	// ErrUserCredentialsInvalid indicates a failed username/password check.
	ErrUserCredentialsInvalid = errors.New("user service: invalid credentials")
	// ErrUserInactive indicates a login attempt against a deactivated account.
	ErrUserInactive = errors.New("user service: account is inactive")
)

// UserServiceDeps bundles constructor inputs for the user service.
type UserServiceDeps struct {
	Users       repositories.UserRepository
	BcryptCost  int
	Clock       func() time.Time
	IDGenerator func() string
}

type userService struct {
	users      repositories.UserRepository
	bcryptCost int
	clock      func() time.Time
	newID      func() string
}

// NewUserService constructs the user service with the supplied dependencies.
func NewUserService(deps UserServiceDeps) (UserService, error) {
	if deps.Users == nil {
		return nil, fmt.Errorf("user service: user repository is required")
	}
	if deps.IDGenerator == nil {
		return nil, fmt.Errorf("user service: id generator is required")
	}
	cost := deps.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("user service: bcrypt cost %d out of range", cost)
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &userService{
		users:      deps.Users,
		bcryptCost: cost,
		clock:      func() time.Time { return clock().UTC() },
		newID:      deps.IDGenerator,
	}, nil
}

func (s *userService) Register(ctx context.Context, cmd RegisterUserCommand) (domain.User, error) {
	username := strings.TrimSpace(cmd.Username)
	email := strings.TrimSpace(cmd.Email)
	if username == "" {
		return domain.User{}, fmt.Errorf("%w: username is required", ErrUserInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.User{}, fmt.Errorf("%w: email is invalid", ErrUserInvalidInput)
	}
	if len(cmd.Password) < minPasswordLength {
		return domain.User{}, fmt.Errorf("%w: password must be at least %d characters", ErrUserInvalidInput, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), s.bcryptCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("user service: hash password: %w", err)
	}

	now := s.clock()
	user := domain.User{
		ID:           s.newID(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         domain.RoleClient,
		CompanyName:  strings.TrimSpace(cmd.CompanyName),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Insert(ctx, user); err != nil {
		return domain.User{}, err
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *userService) Authenticate(ctx context.Context, username, password string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.User{}, ErrUserCredentialsInvalid
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if isRepoNotFound(err) {
			return domain.User{}, ErrUserCredentialsInvalid
		}
		return domain.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return domain.User{}, ErrUserCredentialsInvalid
	}
	if !user.IsActive {
		return domain.User{}, ErrUserInactive
	}

	now := s.clock()
	user.LastLoginAt = &now
	user.UpdatedAt = now
	if updated, err := s.users.Update(ctx, user); err == nil {
		user = updated
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *userService) GetUser(ctx context.Context, userID string) (domain.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.User{}, fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context, filter UserListFilter) (domain.CursorPage[domain.User], error) {
	page, err := s.users.List(ctx, repositories.UserFilter{
		Role:       filter.Role,
		ActiveOnly: filter.ActiveOnly,
		Pagination: domain.Pagination{
			PageSize:  filter.Pagination.PageSize,
			PageToken: strings.TrimSpace(filter.Pagination.PageToken),
		},
	})
	if err != nil {
		return domain.CursorPage[domain.User]{}, err
	}
	for i := range page.Items {
		page.Items[i].PasswordHash = ""
	}
	return page, nil
}

func (s *userService) UpsertUser(ctx context.Context, cmd UpsertUserCommand) (domain.User, error) {
	user := cmd.User
	user.Username = strings.TrimSpace(user.Username)
	user.Email = strings.TrimSpace(user.Email)
	user.CompanyName = strings.TrimSpace(user.CompanyName)
	if user.Username == "" {
		return domain.User{}, fmt.Errorf("%w: username is required", ErrUserInvalidInput)
	}
	if !user.Role.Valid() {
		return domain.User{}, fmt.Errorf("%w: unknown role %q", ErrUserInvalidInput, user.Role)
	}

	now := s.clock()
	isNew := strings.TrimSpace(user.ID) == ""
	if isNew {
		if cmd.Password == "" {
			return domain.User{}, fmt.Errorf("%w: password is required for new accounts", ErrUserInvalidInput)
		}
		user.ID = s.newID()
		user.CreatedAt = now
	} else {
		existing, err := s.users.FindByID(ctx, user.ID)
		if err != nil {
			return domain.User{}, err
		}
		user.CreatedAt = existing.CreatedAt
		user.LastLoginAt = existing.LastLoginAt
		user.PasswordHash = existing.PasswordHash
	}
	if cmd.Password != "" {
		if len(cmd.Password) < minPasswordLength {
			return domain.User{}, fmt.Errorf("%w: password must be at least %d characters", ErrUserInvalidInput, minPasswordLength)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), s.bcryptCost)
		if err != nil {
			return domain.User{}, fmt.Errorf("user service: hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}
	user.UpdatedAt = now

	var err error
	if isNew {
		err = s.users.Insert(ctx, user)
	} else {
		user, err = s.users.Update(ctx, user)
	}
	if err != nil {
		return domain.User{}, err
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *userService) DeleteUser(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}
	return s.users.Delete(ctx, userID)
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
