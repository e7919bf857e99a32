package repositories

import (
	"context"

	"github.com/instrugate/api/internal/domain"
)

// Registry exposes all persistence aggregates behind one handle so the
// service layer never touches a concrete datastore directly.
type Registry interface {
	Catalog() CatalogRepository
	Quotations() QuotationRepository
	Users() UserRepository
	CartMirrors() CartMirrorRepository
	ChatMessages() ChatMessageRepository
	Health() HealthRepository

	UnitOfWork

	// Close releases any underlying clients. Safe to call more than once.
	Close(ctx context.Context) error
}

// UnitOfWork runs a function inside a single datastore transaction. Reads and
// writes performed through the registry passed to fn share the transaction.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RepositoryError lets callers classify datastore failures without importing
// the driver package.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CatalogRepository persists the instrument catalog tree: categories,
// instrument types, instruments, their configurable fields and options, and
// the add-on groups offered alongside them.
type CatalogRepository interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategory(ctx context.Context, id string) (domain.Category, error)
	UpsertCategory(ctx context.Context, category domain.Category) (domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	ListInstrumentTypes(ctx context.Context, categoryID string) ([]domain.InstrumentType, error)
	GetInstrumentType(ctx context.Context, id string) (domain.InstrumentType, error)
	UpsertInstrumentType(ctx context.Context, instrumentType domain.InstrumentType) (domain.InstrumentType, error)
	DeleteInstrumentType(ctx context.Context, id string) error

	ListInstruments(ctx context.Context, filter InstrumentFilter) (domain.CursorPage[domain.Instrument], error)
	GetInstrument(ctx context.Context, id string) (domain.Instrument, error)
	UpsertInstrument(ctx context.Context, instrument domain.Instrument) (domain.Instrument, error)
	DeleteInstrument(ctx context.Context, id string) error

	ListFields(ctx context.Context, instrumentID string) ([]domain.ConfigurableField, error)
	UpsertField(ctx context.Context, field domain.ConfigurableField) (domain.ConfigurableField, error)
	DeleteField(ctx context.Context, id string) error

	ListOptions(ctx context.Context, fieldID string) ([]domain.FieldOption, error)
	UpsertOption(ctx context.Context, option domain.FieldOption) (domain.FieldOption, error)
	DeleteOption(ctx context.Context, id string) error

	ListAddOnTypes(ctx context.Context, instrumentID string) ([]domain.AddOnType, error)
	UpsertAddOnType(ctx context.Context, addOnType domain.AddOnType) (domain.AddOnType, error)
	DeleteAddOnType(ctx context.Context, id string) error

	ListAddOns(ctx context.Context, typeID string) ([]domain.AddOn, error)
	UpsertAddOn(ctx context.Context, addOn domain.AddOn) (domain.AddOn, error)
	DeleteAddOn(ctx context.Context, id string) error

	// GetInstrumentConfig assembles the full configuration payload for one
	// instrument: fields sorted by SortIndex, options grouped per field and
	// add-ons grouped per offered add-on type.
	GetInstrumentConfig(ctx context.Context, instrumentID string) (domain.InstrumentConfig, error)
}

// QuotationRepository persists quotations and their captured items.
type QuotationRepository interface {
	Insert(ctx context.Context, quotation domain.Quotation) error
	Update(ctx context.Context, quotation domain.Quotation) (domain.Quotation, error)
	FindByID(ctx context.Context, id string) (domain.Quotation, error)
	List(ctx context.Context, filter QuotationFilter) (domain.CursorPage[domain.Quotation], error)
	Delete(ctx context.Context, id string) error
}

// UserRepository persists platform accounts.
type UserRepository interface {
	Insert(ctx context.Context, user domain.User) error
	Update(ctx context.Context, user domain.User) (domain.User, error)
	FindByID(ctx context.Context, id string) (domain.User, error)
	FindByUsername(ctx context.Context, username string) (domain.User, error)
	List(ctx context.Context, filter UserFilter) (domain.CursorPage[domain.User], error)
	Delete(ctx context.Context, id string) error
}

// CartMirrorRepository keeps a server-side copy of each client's cart so a
// new session can restore it.
type CartMirrorRepository interface {
	Load(ctx context.Context, userID string) ([]domain.CartEntry, error)
	Replace(ctx context.Context, userID string, entries []domain.CartEntry) error
	Clear(ctx context.Context, userID string) error
}

// ChatMessageRepository persists the support-chat transcript per room.
type ChatMessageRepository interface {
	SaveMessage(ctx context.Context, message domain.ChatMessage) error
	MarkRead(ctx context.Context, room string, messageIDs []string) error
	ListRoom(ctx context.Context, room string, limit int) ([]domain.ChatMessage, error)
}

// HealthRepository answers readiness probes against the datastore.
type HealthRepository interface {
	Ping(ctx context.Context) error
}

// InstrumentFilter narrows instrument listings.
type InstrumentFilter struct {
	TypeID     string
	CategoryID string
	ActiveOnly bool
	Pagination domain.Pagination
}

// QuotationFilter narrows quotation listings.
type QuotationFilter struct {
	ClientID   string
	Statuses   []domain.QuotationStatus
	Pagination domain.Pagination
}

// UserFilter narrows account listings.
type UserFilter struct {
	Role       domain.Role
	ActiveOnly bool
	Pagination domain.Pagination
}
