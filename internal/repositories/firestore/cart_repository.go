package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/instrugate/api/internal/domain"
	"github.com/instrugate/api/internal/repositories"
	pfirestore "github.com/instrugate/api/internal/platform/firestore"
)

const collectionCartMirrors = "cart_mirrors"

type cartEntryDocument struct {
	InstrumentID string                  `firestore:"instrument_id"`
	ProductCode  string                  `firestore:"product_code"`
	BasePrice    int64                   `firestore:"base_price"`
	Selections   []selectionLineDocument `firestore:"selections"`
	AddOns       []addOnLineDocument     `firestore:"addons"`
	Quantity     int                     `firestore:"quantity"`
	AddedAt      time.Time               `firestore:"added_at"`
}

type cartMirrorDocument struct {
	Entries   []cartEntryDocument `firestore:"entries"`
	UpdatedAt time.Time           `firestore:"updated_at,serverTimestamp"`
}

// CartMirrorRepository keeps one document per user holding the full cart, so
// restoring a session is a single read and saving is a single overwrite.
type CartMirrorRepository struct {
	base *pfirestore.BaseRepository[cartMirrorDocument]
}

// NewCartMirrorRepository binds the cart mirror collection to the provider.
func NewCartMirrorRepository(provider *pfirestore.Provider) (*CartMirrorRepository, error) {
	if provider == nil {
		return nil, errors.New("firestore: provider is required")
	}
	return &CartMirrorRepository{
		base: pfirestore.NewBaseRepository[cartMirrorDocument](provider, collectionCartMirrors, nil, nil),
	}, nil
}

func (r *CartMirrorRepository) Load(ctx context.Context, userID string) ([]domain.CartEntry, error) {
	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	entries := make([]domain.CartEntry, 0, len(doc.Data.Entries))
	for _, entry := range doc.Data.Entries {
		entries = append(entries, cartEntryFromDocument(entry))
	}
	return entries, nil
}

func (r *CartMirrorRepository) Replace(ctx context.Context, userID string, entries []domain.CartEntry) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("firestore: user id is required")
	}
	docs := make([]cartEntryDocument, 0, len(entries))
	for _, entry := range entries {
		docs = append(docs, cartEntryToDocument(entry))
	}
	_, err := r.base.Set(ctx, userID, cartMirrorDocument{Entries: docs})
	return err
}

func (r *CartMirrorRepository) Clear(ctx context.Context, userID string) error {
	return deleteDocument(ctx, r.base, userID, "cart_mirrors.delete")
}

func cartEntryToDocument(entry domain.CartEntry) cartEntryDocument {
	selections := make([]selectionLineDocument, 0, len(entry.Selections))
	for _, sel := range entry.Selections {
		selections = append(selections, selectionLineDocument{
			FieldID:    sel.FieldID,
			FieldName:  sel.FieldName,
			OptionID:   sel.OptionID,
			OptionCode: sel.OptionCode,
			Label:      sel.Label,
			Price:      sel.Price,
		})
	}
	addOns := make([]addOnLineDocument, 0, len(entry.AddOns))
	for _, addOn := range entry.AddOns {
		addOns = append(addOns, addOnLineDocument{
			AddOnID: addOn.AddOnID,
			Label:   addOn.Label,
			Code:    addOn.Code,
			Price:   addOn.Price,
		})
	}
	return cartEntryDocument{
		InstrumentID: entry.InstrumentID,
		ProductCode:  entry.ProductCode,
		BasePrice:    entry.BasePrice,
		Selections:   selections,
		AddOns:       addOns,
		Quantity:     entry.Quantity,
		AddedAt:      entry.AddedAt,
	}
}

func cartEntryFromDocument(doc cartEntryDocument) domain.CartEntry {
	selections := make([]domain.SelectionLine, 0, len(doc.Selections))
	for _, sel := range doc.Selections {
		selections = append(selections, domain.SelectionLine{
			FieldID:    sel.FieldID,
			FieldName:  sel.FieldName,
			OptionID:   sel.OptionID,
			OptionCode: sel.OptionCode,
			Label:      sel.Label,
			Price:      sel.Price,
		})
	}
	addOns := make([]domain.AddOnLine, 0, len(doc.AddOns))
	for _, addOn := range doc.AddOns {
		addOns = append(addOns, domain.AddOnLine{
			AddOnID: addOn.AddOnID,
			Label:   addOn.Label,
			Code:    addOn.Code,
			Price:   addOn.Price,
		})
	}
	return domain.CartEntry{
		InstrumentID: doc.InstrumentID,
		ProductCode:  doc.ProductCode,
		BasePrice:    doc.BasePrice,
		Selections:   selections,
		AddOns:       addOns,
		Quantity:     doc.Quantity,
		AddedAt:      doc.AddedAt,
	}
}

var _ repositories.CartMirrorRepository = (*CartMirrorRepository)(nil)
