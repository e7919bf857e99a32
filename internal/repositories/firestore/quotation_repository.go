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

const collectionQuotations = "quotations"

type selectionLineDocument struct {
	FieldID    string `firestore:"field_id"`
	FieldName  string `firestore:"field_name"`
	OptionID   string `firestore:"option_id"`
	OptionCode string `firestore:"option_code"`
	Label      string `firestore:"label"`
	Price      int64  `firestore:"price"`
}

type addOnLineDocument struct {
	AddOnID string `firestore:"addon_id"`
	Label   string `firestore:"label"`
	Code    string `firestore:"code"`
	Price   int64  `firestore:"price"`
}

type quotationItemDocument struct {
	ID           string                  `firestore:"id"`
	InstrumentID string                  `firestore:"instrument_id"`
	ProductCode  string                  `firestore:"product_code"`
	BasePrice    int64                   `firestore:"base_price"`
	Selections   []selectionLineDocument `firestore:"selections"`
	AddOns       []addOnLineDocument     `firestore:"addons"`
	Quantity     int                     `firestore:"quantity"`
	CreatedAt    time.Time               `firestore:"created_at"`
}

type quotationDocument struct {
	ClientID    string                  `firestore:"client_id"`
	CompanyName string                  `firestore:"company_name"`
	ProjectName string                  `firestore:"project_name"`
	Status      string                  `firestore:"status"`
	Remarks     string                  `firestore:"remarks,omitempty"`
	ReviewedBy  string                  `firestore:"reviewed_by,omitempty"`
	Items       []quotationItemDocument `firestore:"items"`
	CreatedAt   time.Time               `firestore:"created_at"`
	UpdatedAt   time.Time               `firestore:"updated_at"`
	ApprovedAt  *time.Time              `firestore:"approved_at,omitempty"`
	RejectedAt  *time.Time              `firestore:"rejected_at,omitempty"`
	SubmittedAt *time.Time              `firestore:"submitted_at,omitempty"`
}

// QuotationRepository persists quotations with their items embedded in one
// document, matching how they are always read and written together.
type QuotationRepository struct {
	base *pfirestore.BaseRepository[quotationDocument]
}

// NewQuotationRepository binds the quotations collection to the provider.
func NewQuotationRepository(provider *pfirestore.Provider) (*QuotationRepository, error) {
	if provider == nil {
		return nil, errors.New("firestore: provider is required")
	}
	return &QuotationRepository{
		base: pfirestore.NewBaseRepository[quotationDocument](provider, collectionQuotations, nil, nil),
	}, nil
}

func (r *QuotationRepository) Insert(ctx context.Context, quotation domain.Quotation) error {
	if strings.TrimSpace(quotation.ID) == "" {
		return errors.New("firestore: quotation id is required")
	}
	ref, err := r.base.DocumentRef(ctx, quotation.ID)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, quotationToDocument(quotation)); err != nil {
		return pfirestore.WrapError("quotations.create", err)
	}
	return nil
}

func (r *QuotationRepository) Update(ctx context.Context, quotation domain.Quotation) (domain.Quotation, error) {
	if strings.TrimSpace(quotation.ID) == "" {
		return domain.Quotation{}, errors.New("firestore: quotation id is required")
	}
	if _, err := r.base.Set(ctx, quotation.ID, quotationToDocument(quotation)); err != nil {
		return domain.Quotation{}, err
	}
	return quotation, nil
}

func (r *QuotationRepository) FindByID(ctx context.Context, id string) (domain.Quotation, error) {
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Quotation{}, err
	}
	return quotationFromDocument(doc.ID, doc.Data), nil
}

func (r *QuotationRepository) List(ctx context.Context, filter repositories.QuotationFilter) (domain.CursorPage[domain.Quotation], error) {
	startAfter, err := decodeCursor(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Quotation]{}, err
	}
	size := pageSize(filter.Pagination)

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		if strings.TrimSpace(filter.ClientID) != "" {
			query = query.Where("client_id", "==", filter.ClientID)
		}
		if len(filter.Statuses) == 1 {
			query = query.Where("status", "==", string(filter.Statuses[0]))
		} else if len(filter.Statuses) > 1 {
			statuses := make([]string, 0, len(filter.Statuses))
			for _, status := range filter.Statuses {
				statuses = append(statuses, string(status))
			}
			query = query.Where("status", "in", statuses)
		}
		query = query.OrderBy(firestore.DocumentID, firestore.Asc)
		if startAfter != "" {
			query = query.StartAfter(startAfter)
		}
		return query.Limit(size + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Quotation]{}, err
	}

	page := domain.CursorPage[domain.Quotation]{}
	for i, doc := range docs {
		if i == size {
			page.NextPageToken = encodeCursor(docs[size-1].ID)
			break
		}
		page.Items = append(page.Items, quotationFromDocument(doc.ID, doc.Data))
	}
	return page, nil
}

func (r *QuotationRepository) Delete(ctx context.Context, id string) error {
	return deleteDocument(ctx, r.base, id, "quotations.delete")
}

func quotationToDocument(quotation domain.Quotation) quotationDocument {
	items := make([]quotationItemDocument, 0, len(quotation.Items))
	for _, item := range quotation.Items {
		selections := make([]selectionLineDocument, 0, len(item.Selections))
		for _, sel := range item.Selections {
			selections = append(selections, selectionLineDocument{
				FieldID:    sel.FieldID,
				FieldName:  sel.FieldName,
				OptionID:   sel.OptionID,
				OptionCode: sel.OptionCode,
				Label:      sel.Label,
				Price:      sel.Price,
			})
		}
		addOns := make([]addOnLineDocument, 0, len(item.AddOns))
		for _, addOn := range item.AddOns {
			addOns = append(addOns, addOnLineDocument{
				AddOnID: addOn.AddOnID,
				Label:   addOn.Label,
				Code:    addOn.Code,
				Price:   addOn.Price,
			})
		}
		items = append(items, quotationItemDocument{
			ID:           item.ID,
			InstrumentID: item.InstrumentID,
			ProductCode:  item.ProductCode,
			BasePrice:    item.BasePrice,
			Selections:   selections,
			AddOns:       addOns,
			Quantity:     item.Quantity,
			CreatedAt:    item.CreatedAt,
		})
	}
	return quotationDocument{
		ClientID:    quotation.ClientID,
		CompanyName: quotation.CompanyName,
		ProjectName: quotation.ProjectName,
		Status:      string(quotation.Status),
		Remarks:     quotation.Remarks,
		ReviewedBy:  quotation.ReviewedBy,
		Items:       items,
		CreatedAt:   quotation.CreatedAt,
		UpdatedAt:   quotation.UpdatedAt,
		ApprovedAt:  quotation.ApprovedAt,
		RejectedAt:  quotation.RejectedAt,
		SubmittedAt: quotation.SubmittedAt,
	}
}

func quotationFromDocument(id string, doc quotationDocument) domain.Quotation {
	items := make([]domain.QuotationItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		selections := make([]domain.SelectionLine, 0, len(item.Selections))
		for _, sel := range item.Selections {
			selections = append(selections, domain.SelectionLine{
				FieldID:    sel.FieldID,
				FieldName:  sel.FieldName,
				OptionID:   sel.OptionID,
				OptionCode: sel.OptionCode,
				Label:      sel.Label,
				Price:      sel.Price,
			})
		}
		addOns := make([]domain.AddOnLine, 0, len(item.AddOns))
		for _, addOn := range item.AddOns {
			addOns = append(addOns, domain.AddOnLine{
				AddOnID: addOn.AddOnID,
				Label:   addOn.Label,
				Code:    addOn.Code,
				Price:   addOn.Price,
			})
		}
		items = append(items, domain.QuotationItem{
			ID:           item.ID,
			QuotationID:  id,
			InstrumentID: item.InstrumentID,
			ProductCode:  item.ProductCode,
			BasePrice:    item.BasePrice,
			Selections:   selections,
			AddOns:       addOns,
			Quantity:     item.Quantity,
			CreatedAt:    item.CreatedAt,
		})
	}
	return domain.Quotation{
		ID:          id,
		ClientID:    doc.ClientID,
		CompanyName: doc.CompanyName,
		ProjectName: doc.ProjectName,
		Status:      domain.QuotationStatus(doc.Status),
		Remarks:     doc.Remarks,
		ReviewedBy:  doc.ReviewedBy,
		Items:       items,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
		ApprovedAt:  doc.ApprovedAt,
		RejectedAt:  doc.RejectedAt,
		SubmittedAt: doc.SubmittedAt,
	}
}

var _ repositories.QuotationRepository = (*QuotationRepository)(nil)
