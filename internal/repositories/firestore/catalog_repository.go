package firestore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/instrugate/api/internal/domain"
	"github.com/instrugate/api/internal/repositories"
	pfirestore "github.com/instrugate/api/internal/platform/firestore"
)

const (
	collectionCategories      = "categories"
	collectionInstrumentTypes = "instrument_types"
	collectionInstruments     = "instruments"
	collectionFields          = "configurable_fields"
	collectionFieldOptions    = "field_options"
	collectionAddOnTypes      = "addon_types"
	collectionAddOns          = "addons"
)

type categoryDocument struct {
	Name      string    `firestore:"name"`
	Slug      string    `firestore:"slug"`
	SortIndex int       `firestore:"sort_index"`
	CreatedAt time.Time `firestore:"created_at"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

type instrumentTypeDocument struct {
	CategoryID string    `firestore:"category_id"`
	Name       string    `firestore:"name"`
	SortIndex  int       `firestore:"sort_index"`
	CreatedAt  time.Time `firestore:"created_at"`
	UpdatedAt  time.Time `firestore:"updated_at"`
}

type instrumentDocument struct {
	TypeID      string    `firestore:"type_id"`
	CategoryID  string    `firestore:"category_id"`
	Name        string    `firestore:"name"`
	Description string    `firestore:"description"`
	BasePrice   int64     `firestore:"base_price"`
	ImagePath   string    `firestore:"image_path"`
	IsActive    bool      `firestore:"is_active"`
	CreatedAt   time.Time `firestore:"created_at"`
	UpdatedAt   time.Time `firestore:"updated_at"`
}

type fieldDocument struct {
	InstrumentID  string    `firestore:"instrument_id"`
	Name          string    `firestore:"name"`
	SortIndex     int       `firestore:"sort_index"`
	ParentFieldID string    `firestore:"parent_field_id,omitempty"`
	TriggerValue  string    `firestore:"trigger_value,omitempty"`
	CreatedAt     time.Time `firestore:"created_at"`
	UpdatedAt     time.Time `firestore:"updated_at"`
}

type fieldOptionDocument struct {
	FieldID   string    `firestore:"field_id"`
	Label     string    `firestore:"label"`
	Code      string    `firestore:"code"`
	Price     int64     `firestore:"price"`
	SortIndex int       `firestore:"sort_index"`
	CreatedAt time.Time `firestore:"created_at"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

type addOnTypeDocument struct {
	Name          string    `firestore:"name"`
	InstrumentIDs []string  `firestore:"instrument_ids"`
	SortIndex     int       `firestore:"sort_index"`
	CreatedAt     time.Time `firestore:"created_at"`
	UpdatedAt     time.Time `firestore:"updated_at"`
}

type addOnDocument struct {
	TypeID    string    `firestore:"type_id"`
	Label     string    `firestore:"label"`
	Code      string    `firestore:"code"`
	Price     int64     `firestore:"price"`
	SortIndex int       `firestore:"sort_index"`
	CreatedAt time.Time `firestore:"created_at"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// CatalogRepository stores the catalog tree across a handful of flat
// collections keyed by parent IDs.
type CatalogRepository struct {
	categories      *pfirestore.BaseRepository[categoryDocument]
	instrumentTypes *pfirestore.BaseRepository[instrumentTypeDocument]
	instruments     *pfirestore.BaseRepository[instrumentDocument]
	fields          *pfirestore.BaseRepository[fieldDocument]
	options         *pfirestore.BaseRepository[fieldOptionDocument]
	addOnTypes      *pfirestore.BaseRepository[addOnTypeDocument]
	addOns          *pfirestore.BaseRepository[addOnDocument]
}

// NewCatalogRepository wires the catalog collections against the shared provider.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("firestore: provider is required")
	}
	return &CatalogRepository{
		categories:      pfirestore.NewBaseRepository[categoryDocument](provider, collectionCategories, nil, nil),
		instrumentTypes: pfirestore.NewBaseRepository[instrumentTypeDocument](provider, collectionInstrumentTypes, nil, nil),
		instruments:     pfirestore.NewBaseRepository[instrumentDocument](provider, collectionInstruments, nil, nil),
		fields:          pfirestore.NewBaseRepository[fieldDocument](provider, collectionFields, nil, nil),
		options:         pfirestore.NewBaseRepository[fieldOptionDocument](provider, collectionFieldOptions, nil, nil),
		addOnTypes:      pfirestore.NewBaseRepository[addOnTypeDocument](provider, collectionAddOnTypes, nil, nil),
		addOns:          pfirestore.NewBaseRepository[addOnDocument](provider, collectionAddOns, nil, nil),
	}, nil
}

func (r *CatalogRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	docs, err := r.categories.Query(ctx, nil)
	if err != nil {
		return nil, err
	}
	categories := make([]domain.Category, 0, len(docs))
	for _, doc := range docs {
		categories = append(categories, categoryFromDocument(doc.ID, doc.Data))
	}
	sortBySortIndex(categories, func(c domain.Category) int { return c.SortIndex })
	return categories, nil
}

func (r *CatalogRepository) GetCategory(ctx context.Context, id string) (domain.Category, error) {
	doc, err := r.categories.Get(ctx, id)
	if err != nil {
		return domain.Category{}, err
	}
	return categoryFromDocument(doc.ID, doc.Data), nil
}

func (r *CatalogRepository) UpsertCategory(ctx context.Context, category domain.Category) (domain.Category, error) {
	if strings.TrimSpace(category.ID) == "" {
		return domain.Category{}, errors.New("firestore: category id is required")
	}
	if _, err := r.categories.Set(ctx, category.ID, categoryToDocument(category)); err != nil {
		return domain.Category{}, err
	}
	return category, nil
}

func (r *CatalogRepository) DeleteCategory(ctx context.Context, id string) error {
	return deleteDocument(ctx, r.categories, id, "categories.delete")
}

func (r *CatalogRepository) ListInstrumentTypes(ctx context.Context, categoryID string) ([]domain.InstrumentType, error) {
	docs, err := r.instrumentTypes.Query(ctx, whereEq("category_id", categoryID))
	if err != nil {
		return nil, err
	}
	types := make([]domain.InstrumentType, 0, len(docs))
	for _, doc := range docs {
		types = append(types, instrumentTypeFromDocument(doc.ID, doc.Data))
	}
	sortBySortIndex(types, func(t domain.InstrumentType) int { return t.SortIndex })
	return types, nil
}

func (r *CatalogRepository) GetInstrumentType(ctx context.Context, id string) (domain.InstrumentType, error) {
	doc, err := r.instrumentTypes.Get(ctx, id)
	if err != nil {
		return domain.InstrumentType{}, err
	}
	return instrumentTypeFromDocument(doc.ID, doc.Data), nil
}

func (r *CatalogRepository) UpsertInstrumentType(ctx context.Context, instrumentType domain.InstrumentType) (domain.InstrumentType, error) {
	if strings.TrimSpace(instrumentType.ID) == "" {
		return domain.InstrumentType{}, errors.New("firestore: instrument type id is required")
	}
	if _, err := r.instrumentTypes.Set(ctx, instrumentType.ID, instrumentTypeToDocument(instrumentType)); err != nil {
		return domain.InstrumentType{}, err
	}
	return instrumentType, nil
}

func (r *CatalogRepository) DeleteInstrumentType(ctx context.Context, id string) error {
	return deleteDocument(ctx, r.instrumentTypes, id, "instrument_types.delete")
}

func (r *CatalogRepository) ListInstruments(ctx context.Context, filter repositories.InstrumentFilter) (domain.CursorPage[domain.Instrument], error) {
	startAfter, err := decodeCursor(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Instrument]{}, err
	}
	size := pageSize(filter.Pagination)

	docs, err := r.instruments.Query(ctx, func(query firestore.Query) firestore.Query {
		if strings.TrimSpace(filter.TypeID) != "" {
			query = query.Where("type_id", "==", filter.TypeID)
		}
		if strings.TrimSpace(filter.CategoryID) != "" {
			query = query.Where("category_id", "==", filter.CategoryID)
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
		return domain.CursorPage[domain.Instrument]{}, err
	}

	page := domain.CursorPage[domain.Instrument]{}
	for i, doc := range docs {
		if i == size {
			page.NextPageToken = encodeCursor(docs[size-1].ID)
			break
		}
		page.Items = append(page.Items, instrumentFromDocument(doc.ID, doc.Data))
	}
	return page, nil
}

func (r *CatalogRepository) GetInstrument(ctx context.Context, id string) (domain.Instrument, error) {
	doc, err := r.instruments.Get(ctx, id)
	if err != nil {
		return domain.Instrument{}, err
	}
	return instrumentFromDocument(doc.ID, doc.Data), nil
}

func (r *CatalogRepository) UpsertInstrument(ctx context.Context, instrument domain.Instrument) (domain.Instrument, error) {
	if strings.TrimSpace(instrument.ID) == "" {
		return domain.Instrument{}, errors.New("firestore: instrument id is required")
	}
	if _, err := r.instruments.Set(ctx, instrument.ID, instrumentToDocument(instrument)); err != nil {
		return domain.Instrument{}, err
	}
	return instrument, nil
}

func (r *CatalogRepository) DeleteInstrument(ctx context.Context, id string) error {
	return deleteDocument(ctx, r.instruments, id, "instruments.delete")
}

func (r *CatalogRepository) ListFields(ctx context.Context, instrumentID string) ([]domain.ConfigurableField, error) {
	docs, err := r.fields.Query(ctx, whereEq("instrument_id", instrumentID))
	if err != nil {
		return nil, err
	}
	fields := make([]domain.ConfigurableField, 0, len(docs))
	for _, doc := range docs {
		fields = append(fields, fieldFromDocument(doc.ID, doc.Data))
	}
	sortBySortIndex(fields, func(f domain.ConfigurableField) int { return f.SortIndex })
	return fields, nil
}

func (r *CatalogRepository) UpsertField(ctx context.Context, field domain.ConfigurableField) (domain.ConfigurableField, error) {
	if strings.TrimSpace(field.ID) == "" {
		return domain.ConfigurableField{}, errors.New("firestore: field id is required")
	}
	if _, err := r.fields.Set(ctx, field.ID, fieldToDocument(field)); err != nil {
		return domain.ConfigurableField{}, err
	}
	return field, nil
}

func (r *CatalogRepository) DeleteField(ctx context.Context, id string) error {
	return deleteDocument(ctx, r.fields, id, "configurable_fields.delete")
}

func (r *CatalogRepository) ListOptions(ctx context.Context, fieldID string) ([]domain.FieldOption, error) {
	docs, err := r.options.Query(ctx, whereEq("field_id", fieldID))
	if err != nil {
		return nil, err
	}
	options := make([]domain.FieldOption, 0, len(docs))
	for _, doc := range docs {
		options = append(options, fieldOptionFromDocument(doc.ID, doc.Data))
	}
	sortBySortIndex(options, func(o domain.FieldOption) int { return o.SortIndex })
	return options, nil
}

func (r *CatalogRepository) UpsertOption(ctx context.Context, option domain.FieldOption) (domain.FieldOption, error) {
	if strings.TrimSpace(option.ID) == "" {
		return domain.FieldOption{}, errors.New("firestore: option id is required")
	}
	if _, err := r.options.Set(ctx, option.ID, fieldOptionToDocument(option)); err != nil {
		return domain.FieldOption{}, err
	}
	return option, nil
}

func (r *CatalogRepository) DeleteOption(ctx context.Context, id string) error {
	return deleteDocument(ctx, r.options, id, "field_options.delete")
}

func (r *CatalogRepository) ListAddOnTypes(ctx context.Context, instrumentID string) ([]domain.AddOnType, error) {
	build := QueryBuilderForAddOnTypes(instrumentID)
	docs, err := r.addOnTypes.Query(ctx, build)
	if err != nil {
		return nil, err
	}
	types := make([]domain.AddOnType, 0, len(docs))
	for _, doc := range docs {
		types = append(types, addOnTypeFromDocument(doc.ID, doc.Data))
	}
	sortBySortIndex(types, func(t domain.AddOnType) int { return t.SortIndex })
	return types, nil
}

// QueryBuilderForAddOnTypes matches add-on groups offered for the given
// instrument; an empty ID lists every group.
func QueryBuilderForAddOnTypes(instrumentID string) pfirestore.QueryBuilder {
	trimmed := strings.TrimSpace(instrumentID)
	if trimmed == "" {
		return nil
	}
	return func(query firestore.Query) firestore.Query {
		return query.Where("instrument_ids", "array-contains", trimmed)
	}
}

func (r *CatalogRepository) UpsertAddOnType(ctx context.Context, addOnType domain.AddOnType) (domain.AddOnType, error) {
	if strings.TrimSpace(addOnType.ID) == "" {
		return domain.AddOnType{}, errors.New("firestore: add-on type id is required")
	}
	if _, err := r.addOnTypes.Set(ctx, addOnType.ID, addOnTypeToDocument(addOnType)); err != nil {
		return domain.AddOnType{}, err
	}
	return addOnType, nil
}

func (r *CatalogRepository) DeleteAddOnType(ctx context.Context, id string) error {
	return deleteDocument(ctx, r.addOnTypes, id, "addon_types.delete")
}

func (r *CatalogRepository) ListAddOns(ctx context.Context, typeID string) ([]domain.AddOn, error) {
	docs, err := r.addOns.Query(ctx, whereEq("type_id", typeID))
	if err != nil {
		return nil, err
	}
	addOns := make([]domain.AddOn, 0, len(docs))
	for _, doc := range docs {
		addOns = append(addOns, addOnFromDocument(doc.ID, doc.Data))
	}
	sortBySortIndex(addOns, func(a domain.AddOn) int { return a.SortIndex })
	return addOns, nil
}

func (r *CatalogRepository) UpsertAddOn(ctx context.Context, addOn domain.AddOn) (domain.AddOn, error) {
	if strings.TrimSpace(addOn.ID) == "" {
		return domain.AddOn{}, errors.New("firestore: add-on id is required")
	}
	if _, err := r.addOns.Set(ctx, addOn.ID, addOnToDocument(addOn)); err != nil {
		return domain.AddOn{}, err
	}
	return addOn, nil
}

func (r *CatalogRepository) DeleteAddOn(ctx context.Context, id string) error {
	return deleteDocument(ctx, r.addOns, id, "addons.delete")
}

// GetInstrumentConfig loads the instrument with its fields, options and
// offered add-on groups in one call.
func (r *CatalogRepository) GetInstrumentConfig(ctx context.Context, instrumentID string) (domain.InstrumentConfig, error) {
	instrument, err := r.GetInstrument(ctx, instrumentID)
	if err != nil {
		return domain.InstrumentConfig{}, err
	}

	fields, err := r.ListFields(ctx, instrumentID)
	if err != nil {
		return domain.InstrumentConfig{}, err
	}

	options := make(map[string][]domain.FieldOption, len(fields))
	for _, field := range fields {
		fieldOptions, err := r.ListOptions(ctx, field.ID)
		if err != nil {
			return domain.InstrumentConfig{}, err
		}
		options[field.ID] = fieldOptions
	}

	addOnTypes, err := r.ListAddOnTypes(ctx, instrumentID)
	if err != nil {
		return domain.InstrumentConfig{}, err
	}
	addOns := make(map[string][]domain.AddOn, len(addOnTypes))
	for _, addOnType := range addOnTypes {
		typeAddOns, err := r.ListAddOns(ctx, addOnType.ID)
		if err != nil {
			return domain.InstrumentConfig{}, err
		}
		addOns[addOnType.ID] = typeAddOns
	}

	return domain.InstrumentConfig{
		Instrument: instrument,
		Fields:     fields,
		Options:    options,
		AddOnTypes: addOnTypes,
		AddOns:     addOns,
	}, nil
}

func whereEq(field, value string) pfirestore.QueryBuilder {
	return func(query firestore.Query) firestore.Query {
		return query.Where(field, "==", strings.TrimSpace(value))
	}
}

func sortBySortIndex[T any](items []T, index func(T) int) {
	sort.SliceStable(items, func(i, j int) bool { return index(items[i]) < index(items[j]) })
}

func deleteDocument[T any](ctx context.Context, repo *pfirestore.BaseRepository[T], id, op string) error {
	ref, err := repo.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return pfirestore.WrapError(op, err)
	}
	return nil
}

func categoryFromDocument(id string, doc categoryDocument) domain.Category {
	return domain.Category{
		ID:        id,
		Name:      doc.Name,
		Slug:      doc.Slug,
		SortIndex: doc.SortIndex,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

func categoryToDocument(category domain.Category) categoryDocument {
	return categoryDocument{
		Name:      category.Name,
		Slug:      category.Slug,
		SortIndex: category.SortIndex,
		CreatedAt: category.CreatedAt,
		UpdatedAt: category.UpdatedAt,
	}
}

func instrumentTypeFromDocument(id string, doc instrumentTypeDocument) domain.InstrumentType {
	return domain.InstrumentType{
		ID:         id,
		CategoryID: doc.CategoryID,
		Name:       doc.Name,
		SortIndex:  doc.SortIndex,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
}

func instrumentTypeToDocument(instrumentType domain.InstrumentType) instrumentTypeDocument {
	return instrumentTypeDocument{
		CategoryID: instrumentType.CategoryID,
		Name:       instrumentType.Name,
		SortIndex:  instrumentType.SortIndex,
		CreatedAt:  instrumentType.CreatedAt,
		UpdatedAt:  instrumentType.UpdatedAt,
	}
}

func instrumentFromDocument(id string, doc instrumentDocument) domain.Instrument {
	return domain.Instrument{
		ID:          id,
		TypeID:      doc.TypeID,
		CategoryID:  doc.CategoryID,
		Name:        doc.Name,
		Description: doc.Description,
		BasePrice:   doc.BasePrice,
		ImagePath:   doc.ImagePath,
		IsActive:    doc.IsActive,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}

func instrumentToDocument(instrument domain.Instrument) instrumentDocument {
	return instrumentDocument{
		TypeID:      instrument.TypeID,
		CategoryID:  instrument.CategoryID,
		Name:        instrument.Name,
		Description: instrument.Description,
		BasePrice:   instrument.BasePrice,
		ImagePath:   instrument.ImagePath,
		IsActive:    instrument.IsActive,
		CreatedAt:   instrument.CreatedAt,
		UpdatedAt:   instrument.UpdatedAt,
	}
}

func fieldFromDocument(id string, doc fieldDocument) domain.ConfigurableField {
	return domain.ConfigurableField{
		ID:            id,
		InstrumentID:  doc.InstrumentID,
		Name:          doc.Name,
		SortIndex:     doc.SortIndex,
		ParentFieldID: doc.ParentFieldID,
		TriggerValue:  doc.TriggerValue,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
}

func fieldToDocument(field domain.ConfigurableField) fieldDocument {
	return fieldDocument{
		InstrumentID:  field.InstrumentID,
		Name:          field.Name,
		SortIndex:     field.SortIndex,
		ParentFieldID: field.ParentFieldID,
		TriggerValue:  field.TriggerValue,
		CreatedAt:     field.CreatedAt,
		UpdatedAt:     field.UpdatedAt,
	}
}

func fieldOptionFromDocument(id string, doc fieldOptionDocument) domain.FieldOption {
	return domain.FieldOption{
		ID:        id,
		FieldID:   doc.FieldID,
		Label:     doc.Label,
		Code:      doc.Code,
		Price:     doc.Price,
		SortIndex: doc.SortIndex,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

func fieldOptionToDocument(option domain.FieldOption) fieldOptionDocument {
	return fieldOptionDocument{
		FieldID:   option.FieldID,
		Label:     option.Label,
		Code:      option.Code,
		Price:     option.Price,
		SortIndex: option.SortIndex,
		CreatedAt: option.CreatedAt,
		UpdatedAt: option.UpdatedAt,
	}
}

func addOnTypeFromDocument(id string, doc addOnTypeDocument) domain.AddOnType {
	return domain.AddOnType{
		ID:            id,
		Name:          doc.Name,
		InstrumentIDs: doc.InstrumentIDs,
		SortIndex:     doc.SortIndex,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
}

func addOnTypeToDocument(addOnType domain.AddOnType) addOnTypeDocument {
	return addOnTypeDocument{
		Name:          addOnType.Name,
		InstrumentIDs: addOnType.InstrumentIDs,
		SortIndex:     addOnType.SortIndex,
		CreatedAt:     addOnType.CreatedAt,
		UpdatedAt:     addOnType.UpdatedAt,
	}
}

func addOnFromDocument(id string, doc addOnDocument) domain.AddOn {
	return domain.AddOn{
		ID:        id,
		TypeID:    doc.TypeID,
		Label:     doc.Label,
		Code:      doc.Code,
		Price:     doc.Price,
		SortIndex: doc.SortIndex,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

func addOnToDocument(addOn domain.AddOn) addOnDocument {
	return addOnDocument{
		TypeID:    addOn.TypeID,
		Label:     addOn.Label,
		Code:      addOn.Code,
		Price:     addOn.Price,
		SortIndex: addOn.SortIndex,
		CreatedAt: addOn.CreatedAt,
		UpdatedAt: addOn.UpdatedAt,
	}
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)
