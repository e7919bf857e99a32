package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/instrugate/api/internal/domain"
	"github.com/instrugate/api/internal/repositories"
	pfirestore "github.com/instrugate/api/internal/platform/firestore"
)

const collectionUsers = "users"

type userDocument struct {
	Username     string     `firestore:"username"`
	Email        string     `firestore:"email"`
	PasswordHash string     `firestore:"password_hash"`
	Role         string     `firestore:"role"`
	CompanyName  string     `firestore:"company_name,omitempty"`
	IsActive     bool       `firestore:"is_active"`
	CreatedAt    time.Time  `firestore:"created_at"`
	UpdatedAt    time.Time  `firestore:"updated_at"`
	LastLoginAt  *time.Time `firestore:"last_login_at,omitempty"`
}

// UserRepository persists platform accounts. Usernames are unique; Insert
// rejects a duplicate before creating the document.
type UserRepository struct {
	base *pfirestore.BaseRepository[userDocument]
}

// NewUserRepository binds the users collection to the provider.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("firestore: provider is required")
	}
	return &UserRepository{
		base: pfirestore.NewBaseRepository[userDocument](provider, collectionUsers, nil, nil),
	}, nil
}

func (r *UserRepository) Insert(ctx context.Context, user domain.User) error {
	if strings.TrimSpace(user.ID) == "" {
		return errors.New("firestore: user id is required")
	}
	if _, err := r.FindByUsername(ctx, user.Username); err == nil {
		return &repositories.ConflictError{Entity: "user", ID: user.Username, Reason: "username taken"}
	} else if !isNotFound(err) {
		return err
	}

	ref, err := r.base.DocumentRef(ctx, user.ID)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, userToDocument(user)); err != nil {
		return pfirestore.WrapError("users.create", err)
	}
	return nil
}

func (r *UserRepository) Update(ctx context.Context, user domain.User) (domain.User, error) {
	if strings.TrimSpace(user.ID) == "" {
		return domain.User{}, errors.New("firestore: user id is required")
	}
	if _, err := r.base.Set(ctx, user.ID, userToDocument(user)); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (domain.User, error) {
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	return userFromDocument(doc.ID, doc.Data), nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	trimmed := strings.TrimSpace(username)
	if trimmed == "" {
		return domain.User{}, errors.New("firestore: username is required")
	}
	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("username", "==", trimmed).Limit(1)
	})
	if err != nil {
		return domain.User{}, err
	}
	if len(docs) == 0 {
		return domain.User{}, &repositories.NotFoundError{Entity: "user", ID: trimmed}
	}
	return userFromDocument(docs[0].ID, docs[0].Data), nil
}

func (r *UserRepository) List(ctx context.Context, filter repositories.UserFilter) (domain.CursorPage[domain.User], error) {
	startAfter, err := decodeCursor(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.User]{}, err
	}
	size := pageSize(filter.Pagination)

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		if filter.Role != "" {
			query = query.Where("role", "==", string(filter.Role))
		}
		if filter.ActiveOnly {
			query = query.Where("is_active", "==", true)
		}
		query = query.OrderBy(firestore.DocumentID, firestore.Asc)
		if startAfter != "" {
			query = query.StartAfter(startAfter)
		}
		return query.Limit(size + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.User]{}, err
	}

	page := domain.CursorPage[domain.User]{}
	for i, doc := range docs {
		if i == size {
			page.NextPageToken = encodeCursor(docs[size-1].ID)
			break
		}
		page.Items = append(page.Items, userFromDocument(doc.ID, doc.Data))
	}
	return page, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return deleteDocument(ctx, r.base, id, "users.delete")
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func userToDocument(user domain.User) userDocument {
	return userDocument{
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Role:         string(user.Role),
		CompanyName:  user.CompanyName,
		IsActive:     user.IsActive,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
		LastLoginAt:  user.LastLoginAt,
	}
}

func userFromDocument(id string, doc userDocument) domain.User {
	return domain.User{
		ID:           id,
		Username:     doc.Username,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		Role:         domain.Role(doc.Role),
		CompanyName:  doc.CompanyName,
		IsActive:     doc.IsActive,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
		LastLoginAt:  doc.LastLoginAt,
	}
}

var _ repositories.UserRepository = (*UserRepository)(nil)
