package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// CursorPage wraps one page of list results together with the opaque token
// that fetches the next page. An empty token means the listing is exhausted.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// Role enumerates the account roles recognised across the platform.
type Role string

const (
	// RoleAdmin grants full administrative access.
	RoleAdmin Role = "admin"
	// RoleProposalEngineer reviews quotations and staffs the support chat pool.
	RoleProposalEngineer Role = "proposal_engineer"
	// RoleClient is the default purchasing role.
	RoleClient Role = "client"
)

// Valid reports whether the role is one of the recognised values.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleProposalEngineer, RoleClient:
		return true
	default:
		return false
	}
}

// User represents a platform account.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	CompanyName  string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  *time.Time
}

// Category groups instrument types at the top of the catalog tree.
type Category struct {
	ID        string
	Name      string
	Slug      string
	SortIndex int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// InstrumentType subdivides a category, e.g. gauge vs. transmitter.
type InstrumentType struct {
	ID         string
	CategoryID string
	Name       string
	SortIndex  int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Instrument is a configurable catalog product.
type Instrument struct {
	ID     string
	TypeID string
	// CategoryID is copied from the instrument type so category listings
	// resolve with a single query.
	CategoryID  string
	Name        string
	Description string
	// BasePrice is expressed in minor currency units.
	BasePrice int64
	ImagePath string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ConfigurableField is one bracket position of an instrument's product code.
// A field with a ParentFieldID is only offered while the parent's selected
// option code equals TriggerValue.
type ConfigurableField struct {
	ID            string
	InstrumentID  string
	Name          string
	SortIndex     int
	ParentFieldID string
	TriggerValue  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FieldOption is a selectable value for a configurable field.
type FieldOption struct {
	ID      string
	FieldID string
	Label   string
	// Code is the bracket contribution, e.g. "A1".
	Code string
	// Price is the option's surcharge in minor currency units.
	Price     int64
	SortIndex int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AddOnType groups add-ons offered for a set of instruments.
type AddOnType struct {
	ID   string
	Name string
	// InstrumentIDs lists the instruments this group is offered for.
	InstrumentIDs []string
	SortIndex     int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AddOn is an optional extra appended to the product code as a trailing bracket.
type AddOn struct {
	ID     string
	TypeID string
	Label  string
	Code   string
	// Price is the add-on surcharge in minor currency units.
	Price     int64
	SortIndex int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// InstrumentConfig bundles everything needed to configure one instrument.
type InstrumentConfig struct {
	Instrument Instrument
	Fields     []ConfigurableField
	Options    map[string][]FieldOption
	AddOnTypes []AddOnType
	AddOns     map[string][]AddOn
}

// QuotationStatus describes the quotation review lifecycle.
type QuotationStatus string

const (
	// QuotationStatusPending awaits engineer review.
	QuotationStatusPending QuotationStatus = "pending"
	// QuotationStatusApproved passed review and may be submitted.
	QuotationStatusApproved QuotationStatus = "approved"
	// QuotationStatusRejected failed review.
	QuotationStatusRejected QuotationStatus = "rejected"
	// QuotationStatusSubmitted was sent onward by the client after approval.
	QuotationStatusSubmitted QuotationStatus = "submitted"
)

// Valid reports whether the status is one of the recognised values.
func (s QuotationStatus) Valid() bool {
	switch s {
	case QuotationStatusPending, QuotationStatusApproved, QuotationStatusRejected, QuotationStatusSubmitted:
		return true
	default:
		return false
	}
}

// SelectionLine records one field choice inside a quotation item.
type SelectionLine struct {
	FieldID    string
	FieldName  string
	OptionID   string
	OptionCode string
	Label      string
	Price      int64
}

// AddOnLine records one chosen add-on inside a quotation item.
type AddOnLine struct {
	AddOnID string
	Label   string
	Code    string
	Price   int64
}

// QuotationItem is a configured instrument captured at quotation time.
type QuotationItem struct {
	ID           string
	QuotationID  string
	InstrumentID string
	ProductCode  string
	BasePrice    int64
	Selections   []SelectionLine
	AddOns       []AddOnLine
	Quantity     int
	CreatedAt    time.Time
}

// UnitTotal returns the per-unit price of the item in minor currency units.
func (i QuotationItem) UnitTotal() int64 {
	total := i.BasePrice
	for _, sel := range i.Selections {
		total += sel.Price
	}
	for _, addOn := range i.AddOns {
		total += addOn.Price
	}
	return total
}

// LineTotal returns the item total across its quantity.
func (i QuotationItem) LineTotal() int64 {
	qty := i.Quantity
	if qty < 1 {
		qty = 1
	}
	return i.UnitTotal() * int64(qty)
}

// Quotation is a client's priced request awaiting engineer review.
type Quotation struct {
	ID          string
	ClientID    string
	CompanyName string
	ProjectName string
	Status      QuotationStatus
	Remarks     string
	ReviewedBy  string
	Items       []QuotationItem
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ApprovedAt  *time.Time
	RejectedAt  *time.Time
	SubmittedAt *time.Time
}

// TotalPrice sums all item line totals. The value is derived, never stored.
func (q Quotation) TotalPrice() int64 {
	var total int64
	for _, item := range q.Items {
		total += item.LineTotal()
	}
	return total
}

// CartEntry mirrors one configured instrument kept between sessions.
type CartEntry struct {
	InstrumentID string
	ProductCode  string
	BasePrice    int64
	Selections   []SelectionLine
	AddOns       []AddOnLine
	Quantity     int
	AddedAt      time.Time
}

// UnitTotal returns the per-unit entry price in minor currency units.
func (e CartEntry) UnitTotal() int64 {
	total := e.BasePrice
	for _, sel := range e.Selections {
		total += sel.Price
	}
	for _, addOn := range e.AddOns {
		total += addOn.Price
	}
	return total
}

// ChatSenderType distinguishes message authors on the support channel.
type ChatSenderType string

const (
	// ChatSenderClient marks messages written by clients.
	ChatSenderClient ChatSenderType = "client"
	// ChatSenderAgent marks messages written by proposal engineers.
	ChatSenderAgent ChatSenderType = "agent"
)

// ChatMessage is one persisted support-chat message.
type ChatMessage struct {
	ID         string
	Room       string
	Sender     string
	SenderType ChatSenderType
	Receiver   string
	Body       string
	Read       bool
	CreatedAt  time.Time
}
