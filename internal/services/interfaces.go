package services

import (
	"context"
	"time"

	"github.com/instrugate/api/internal/domain"
	"github.com/instrugate/api/internal/platform/auth"
)

// CatalogService serves the browsable catalog and the admin CRUD behind it.
type CatalogService interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	ListInstrumentTypes(ctx context.Context, categoryID string) ([]domain.InstrumentType, error)
	ListInstruments(ctx context.Context, filter InstrumentListFilter) (domain.CursorPage[domain.Instrument], error)
	GetInstrument(ctx context.Context, instrumentID string) (domain.Instrument, error)

	// GetInstrumentConfig returns the full configuration payload used by the
	// option configurator: fields with their options plus offered add-ons.
	GetInstrumentConfig(ctx context.Context, instrumentID string) (domain.InstrumentConfig, error)

	// SignInstrumentImageUpload issues a signed PUT URL for an instrument
	// image and returns the object path to store on the instrument.
	SignInstrumentImageUpload(ctx context.Context, cmd SignImageUploadCommand) (SignedUpload, error)

	// SignInstrumentImageDownload issues a short-lived signed GET URL for
	// the instrument's stored image. Catalog images are public.
	SignInstrumentImageDownload(ctx context.Context, instrumentID string) (SignedDownload, error)

	UpsertCategory(ctx context.Context, category domain.Category) (domain.Category, error)
	DeleteCategory(ctx context.Context, categoryID string) error
	UpsertInstrumentType(ctx context.Context, instrumentType domain.InstrumentType) (domain.InstrumentType, error)
	DeleteInstrumentType(ctx context.Context, typeID string) error
	UpsertInstrument(ctx context.Context, instrument domain.Instrument) (domain.Instrument, error)
	DeleteInstrument(ctx context.Context, instrumentID string) error
	UpsertField(ctx context.Context, field domain.ConfigurableField) (domain.ConfigurableField, error)
	DeleteField(ctx context.Context, fieldID string) error
	UpsertOption(ctx context.Context, option domain.FieldOption) (domain.FieldOption, error)
	DeleteOption(ctx context.Context, optionID string) error
	UpsertAddOnType(ctx context.Context, addOnType domain.AddOnType) (domain.AddOnType, error)
	DeleteAddOnType(ctx context.Context, typeID string) error
	UpsertAddOn(ctx context.Context, addOn domain.AddOn) (domain.AddOn, error)
	DeleteAddOn(ctx context.Context, addOnID string) error
}

// QuotationService owns the quotation lifecycle from cart snapshot to review.
type QuotationService interface {
	CreateFromCart(ctx context.Context, cmd CreateQuotationCommand) (domain.Quotation, error)
	GetQuotation(ctx context.Context, quotationID string, actor Actor) (domain.Quotation, error)
	ListQuotations(ctx context.Context, filter QuotationListFilter, actor Actor) (domain.CursorPage[domain.Quotation], error)
	Approve(ctx context.Context, cmd ReviewQuotationCommand) (domain.Quotation, error)
	Reject(ctx context.Context, cmd ReviewQuotationCommand) (domain.Quotation, error)
	Submit(ctx context.Context, cmd SubmitQuotationCommand) (domain.Quotation, error)

	// DeleteQuotation removes a quotation and its items. Admin only.
	DeleteQuotation(ctx context.Context, quotationID string, actor Actor) error
}

// UserService manages accounts: self registration, login bookkeeping and the
// admin surface.
type UserService interface {
	Register(ctx context.Context, cmd RegisterUserCommand) (domain.User, error)
	Authenticate(ctx context.Context, username, password string) (domain.User, error)
	GetUser(ctx context.Context, userID string) (domain.User, error)
	ListUsers(ctx context.Context, filter UserListFilter) (domain.CursorPage[domain.User], error)
	UpsertUser(ctx context.Context, cmd UpsertUserCommand) (domain.User, error)
	DeleteUser(ctx context.Context, userID string) error
}

// TokenService exchanges credentials for token pairs and rotates them.
type TokenService interface {
	Login(ctx context.Context, username, password string) (auth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error)
}

// CartService mirrors per-user carts so a fresh session can restore them.
type CartService interface {
	GetCart(ctx context.Context, userID string) ([]domain.CartEntry, error)
	ReplaceCart(ctx context.Context, userID string, entries []domain.CartEntry) error
	ClearCart(ctx context.Context, userID string) error
}

// Actor identifies the caller for authorization decisions inside services.
type Actor struct {
	UserID string
	Role   domain.Role
}

// InstrumentListFilter narrows catalog listings.
type InstrumentListFilter struct {
	TypeID          string
	CategoryID      string
	IncludeInactive bool
	Pagination      domain.Pagination
}

// SignImageUploadCommand requests a signed upload slot for an instrument image.
type SignImageUploadCommand struct {
	InstrumentID string
	ContentType  string
}

// SignedUpload carries the signed URL and the object path to persist.
type SignedUpload struct {
	URL        string
	ObjectPath string
	ExpiresAt  time.Time
}

// SignedDownload carries a signed GET URL for a stored object.
type SignedDownload struct {
	URL       string
	ExpiresAt time.Time
}

// CreateQuotationCommand snapshots the client's cart into a new quotation.
type CreateQuotationCommand struct {
	ClientID    string
	CompanyName string
	ProjectName string
	Remarks     string
	Entries     []domain.CartEntry
}

// ReviewQuotationCommand carries an engineer's approve/reject decision.
type ReviewQuotationCommand struct {
	QuotationID string
	ReviewerID  string
	Remarks     string
}

// SubmitQuotationCommand sends an approved quotation onward.
type SubmitQuotationCommand struct {
	QuotationID string
	ClientID    string
}

// QuotationListFilter narrows quotation listings.
type QuotationListFilter struct {
	Statuses   []domain.QuotationStatus
	Pagination domain.Pagination
}

// RegisterUserCommand creates a client account.
type RegisterUserCommand struct {
	Username    string
	Email       string
	Password    string
	CompanyName string
}

// UpsertUserCommand is the admin account mutation. A non-empty Password
// replaces the stored hash.
type UpsertUserCommand struct {
	User     domain.User
	Password string
}

// UserListFilter narrows account listings.
type UserListFilter struct {
	Role       domain.Role
	ActiveOnly bool
	Pagination domain.Pagination
}
