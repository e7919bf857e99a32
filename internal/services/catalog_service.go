package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/instrugate/api/internal/domain"
	"github.com/instrugate/api/internal/platform/storage"
	"github.com/instrugate/api/internal/repositories"
)

var (
	// ErrCatalogInvalidInput indicates the caller supplied invalid data to a catalog mutation.
	ErrCatalogInvalidInput = errors.New("catalog service: invalid input")
	// ErrCatalogImageSignerMissing indicates image uploads are not configured.
	ErrCatalogImageSignerMissing = errors.New("catalog service: image signer is not configured")
)

var allowedImageContentTypes = []string{"image/png", "image/jpeg", "image/webp"}

// maxImageUploadBytes caps instrument image uploads at 8 MiB.
const maxImageUploadBytes = 8 << 20

// ImageSigner issues signed URLs for instrument image uploads.
type ImageSigner interface {
	SignedURL(ctx context.Context, bucket, object string, opts storage.SignedURLOptions) (storage.SignedURLResult, error)
}

// CatalogServiceDeps bundles constructor inputs for the catalog service.
type CatalogServiceDeps struct {
	Catalog     repositories.CatalogRepository
	Images      ImageSigner
	ImageBucket string
	Clock       func() time.Time
	IDGenerator func() string
}

type catalogService struct {
	repo        repositories.CatalogRepository
	images      ImageSigner
	imageBucket string
	clock       func() time.Time
	newID       func() string
}

// NewCatalogService constructs the catalog service with the supplied dependencies.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Catalog == nil {
		return nil, fmt.Errorf("catalog service: catalog repository is required")
	}
	if deps.IDGenerator == nil {
		return nil, fmt.Errorf("catalog service: id generator is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &catalogService{
		repo:        deps.Catalog,
		images:      deps.Images,
		imageBucket: strings.TrimSpace(deps.ImageBucket),
		clock:       func() time.Time { return clock().UTC() },
		newID:       deps.IDGenerator,
	}, nil
}

func (s *catalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *catalogService) ListInstrumentTypes(ctx context.Context, categoryID string) ([]domain.InstrumentType, error) {
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return nil, fmt.Errorf("%w: category id is required", ErrCatalogInvalidInput)
	}
	return s.repo.ListInstrumentTypes(ctx, categoryID)
}

func (s *catalogService) ListInstruments(ctx context.Context, filter InstrumentListFilter) (domain.CursorPage[domain.Instrument], error) {
	return s.repo.ListInstruments(ctx, repositories.InstrumentFilter{
		TypeID:     strings.TrimSpace(filter.TypeID),
		CategoryID: strings.TrimSpace(filter.CategoryID),
		ActiveOnly: !filter.IncludeInactive,
		Pagination: domain.Pagination{
			PageSize:  filter.Pagination.PageSize,
			PageToken: strings.TrimSpace(filter.Pagination.PageToken),
		},
	})
}

func (s *catalogService) GetInstrument(ctx context.Context, instrumentID string) (domain.Instrument, error) {
	instrumentID = strings.TrimSpace(instrumentID)
	if instrumentID == "" {
		return domain.Instrument{}, fmt.Errorf("%w: instrument id is required", ErrCatalogInvalidInput)
	}
	return s.repo.GetInstrument(ctx, instrumentID)
}

func (s *catalogService) GetInstrumentConfig(ctx context.Context, instrumentID string) (domain.InstrumentConfig, error) {
	instrumentID = strings.TrimSpace(instrumentID)
	if instrumentID == "" {
		return domain.InstrumentConfig{}, fmt.Errorf("%w: instrument id is required", ErrCatalogInvalidInput)
	}
	return s.repo.GetInstrumentConfig(ctx, instrumentID)
}

func (s *catalogService) SignInstrumentImageUpload(ctx context.Context, cmd SignImageUploadCommand) (SignedUpload, error) {
	if s.images == nil || s.imageBucket == "" {
		return SignedUpload{}, ErrCatalogImageSignerMissing
	}
	instrumentID := strings.TrimSpace(cmd.InstrumentID)
	if instrumentID == "" {
		return SignedUpload{}, fmt.Errorf("%w: instrument id is required", ErrCatalogInvalidInput)
	}
	contentType := strings.TrimSpace(cmd.ContentType)
	if contentType == "" {
		return SignedUpload{}, fmt.Errorf("%w: content type is required", ErrCatalogInvalidInput)
	}

	object, err := storage.InstrumentImagePath(instrumentID, s.newID())
	if err != nil {
		return SignedUpload{}, fmt.Errorf("%w: %v", ErrCatalogInvalidInput, err)
	}
	result, err := s.images.SignedURL(ctx, s.imageBucket, object, storage.SignedURLOptions{
		Upload: &storage.UploadOptions{
			Method:              "PUT",
			ContentType:         contentType,
			AllowedContentTypes: allowedImageContentTypes,
			MaxSize:             maxImageUploadBytes,
		},
	})
	if err != nil {
		return SignedUpload{}, err
	}
	return SignedUpload{
		URL:        result.URL,
		ObjectPath: object,
		ExpiresAt:  result.ExpiresAt,
	}, nil
}

func (s *catalogService) SignInstrumentImageDownload(ctx context.Context, instrumentID string) (SignedDownload, error) {
	if s.images == nil || s.imageBucket == "" {
		return SignedDownload{}, ErrCatalogImageSignerMissing
	}
	instrument, err := s.GetInstrument(ctx, instrumentID)
	if err != nil {
		return SignedDownload{}, err
	}
	if instrument.ImagePath == "" {
		return SignedDownload{}, fmt.Errorf("%w: instrument has no image", ErrCatalogInvalidInput)
	}
	result, err := s.images.SignedURL(ctx, s.imageBucket, instrument.ImagePath, storage.SignedURLOptions{
		Download: &storage.DownloadOptions{AllowAnonymous: true},
	})
	if err != nil {
		return SignedDownload{}, err
	}
	return SignedDownload{URL: result.URL, ExpiresAt: result.ExpiresAt}, nil
}

func (s *catalogService) UpsertCategory(ctx context.Context, category domain.Category) (domain.Category, error) {
	category.Name = strings.TrimSpace(category.Name)
	category.Slug = strings.TrimSpace(category.Slug)
	if category.Name == "" {
		return domain.Category{}, fmt.Errorf("%w: category name is required", ErrCatalogInvalidInput)
	}
	now := s.clock()
	if strings.TrimSpace(category.ID) == "" {
		category.ID = s.newID()
		category.CreatedAt = now
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = now
	}
	category.UpdatedAt = now
	return s.repo.UpsertCategory(ctx, category)
}

func (s *catalogService) DeleteCategory(ctx context.Context, categoryID string) error {
	return s.deleteByID(ctx, categoryID, s.repo.DeleteCategory)
}

func (s *catalogService) UpsertInstrumentType(ctx context.Context, instrumentType domain.InstrumentType) (domain.InstrumentType, error) {
	instrumentType.Name = strings.TrimSpace(instrumentType.Name)
	instrumentType.CategoryID = strings.TrimSpace(instrumentType.CategoryID)
	if instrumentType.Name == "" || instrumentType.CategoryID == "" {
		return domain.InstrumentType{}, fmt.Errorf("%w: instrument type name and category are required", ErrCatalogInvalidInput)
	}
	if _, err := s.repo.GetCategory(ctx, instrumentType.CategoryID); err != nil {
		return domain.InstrumentType{}, err
	}
	now := s.clock()
	if strings.TrimSpace(instrumentType.ID) == "" {
		instrumentType.ID = s.newID()
		instrumentType.CreatedAt = now
	}
	if instrumentType.CreatedAt.IsZero() {
		instrumentType.CreatedAt = now
	}
	instrumentType.UpdatedAt = now
	return s.repo.UpsertInstrumentType(ctx, instrumentType)
}

func (s *catalogService) DeleteInstrumentType(ctx context.Context, typeID string) error {
	return s.deleteByID(ctx, typeID, s.repo.DeleteInstrumentType)
}

func (s *catalogService) UpsertInstrument(ctx context.Context, instrument domain.Instrument) (domain.Instrument, error) {
	instrument.Name = strings.TrimSpace(instrument.Name)
	instrument.TypeID = strings.TrimSpace(instrument.TypeID)
	instrument.Description = strings.TrimSpace(instrument.Description)
	instrument.ImagePath = strings.TrimSpace(instrument.ImagePath)
	if instrument.Name == "" || instrument.TypeID == "" {
		return domain.Instrument{}, fmt.Errorf("%w: instrument name and type are required", ErrCatalogInvalidInput)
	}
	if instrument.BasePrice < 0 {
		return domain.Instrument{}, fmt.Errorf("%w: base price cannot be negative", ErrCatalogInvalidInput)
	}
	instrumentType, err := s.repo.GetInstrumentType(ctx, instrument.TypeID)
	if err != nil {
		return domain.Instrument{}, err
	}
	instrument.CategoryID = instrumentType.CategoryID
	now := s.clock()
	if strings.TrimSpace(instrument.ID) == "" {
		instrument.ID = s.newID()
		instrument.CreatedAt = now
	}
	if instrument.CreatedAt.IsZero() {
		instrument.CreatedAt = now
	}
	instrument.UpdatedAt = now
	return s.repo.UpsertInstrument(ctx, instrument)
}

func (s *catalogService) DeleteInstrument(ctx context.Context, instrumentID string) error {
	return s.deleteByID(ctx, instrumentID, s.repo.DeleteInstrument)
}

func (s *catalogService) UpsertField(ctx context.Context, field domain.ConfigurableField) (domain.ConfigurableField, error) {
	field.Name = strings.TrimSpace(field.Name)
	field.InstrumentID = strings.TrimSpace(field.InstrumentID)
	field.ParentFieldID = strings.TrimSpace(field.ParentFieldID)
	field.TriggerValue = strings.TrimSpace(field.TriggerValue)
	if field.Name == "" || field.InstrumentID == "" {
		return domain.ConfigurableField{}, fmt.Errorf("%w: field name and instrument are required", ErrCatalogInvalidInput)
	}
	// A dependent field needs both halves of the parent condition.
	if (field.ParentFieldID == "") != (field.TriggerValue == "") {
		return domain.ConfigurableField{}, fmt.Errorf("%w: parent field and trigger value must be set together", ErrCatalogInvalidInput)
	}
	if field.ParentFieldID == field.ID && field.ID != "" {
		return domain.ConfigurableField{}, fmt.Errorf("%w: field cannot depend on itself", ErrCatalogInvalidInput)
	}
	if _, err := s.repo.GetInstrument(ctx, field.InstrumentID); err != nil {
		return domain.ConfigurableField{}, err
	}
	if field.ParentFieldID != "" {
		if err := s.validateParentField(ctx, field); err != nil {
			return domain.ConfigurableField{}, err
		}
	}
	now := s.clock()
	if strings.TrimSpace(field.ID) == "" {
		field.ID = s.newID()
		field.CreatedAt = now
	}
	if field.CreatedAt.IsZero() {
		field.CreatedAt = now
	}
	field.UpdatedAt = now
	return s.repo.UpsertField(ctx, field)
}

// validateParentField checks a dependent field against its parent. The
// configurator reveals children in a single ordered pass, so the parent
// must sort before the child or the trigger would never fire.
func (s *catalogService) validateParentField(ctx context.Context, field domain.ConfigurableField) error {
	siblings, err := s.repo.ListFields(ctx, field.InstrumentID)
	if err != nil {
		return err
	}
	for _, sibling := range siblings {
		if sibling.ID != field.ParentFieldID {
			continue
		}
		if sibling.SortIndex >= field.SortIndex {
			return fmt.Errorf("%w: parent field must sort before its dependent", ErrCatalogInvalidInput)
		}
		return nil
	}
	return fmt.Errorf("%w: parent field does not exist on this instrument", ErrCatalogInvalidInput)
}

func (s *catalogService) DeleteField(ctx context.Context, fieldID string) error {
	return s.deleteByID(ctx, fieldID, s.repo.DeleteField)
}

func (s *catalogService) UpsertOption(ctx context.Context, option domain.FieldOption) (domain.FieldOption, error) {
	option.Label = strings.TrimSpace(option.Label)
	option.Code = strings.TrimSpace(option.Code)
	option.FieldID = strings.TrimSpace(option.FieldID)
	if option.Label == "" || option.Code == "" || option.FieldID == "" {
		return domain.FieldOption{}, fmt.Errorf("%w: option label, code and field are required", ErrCatalogInvalidInput)
	}
	if option.Price < 0 {
		return domain.FieldOption{}, fmt.Errorf("%w: option price cannot be negative", ErrCatalogInvalidInput)
	}
	now := s.clock()
	if strings.TrimSpace(option.ID) == "" {
		option.ID = s.newID()
		option.CreatedAt = now
	}
	if option.CreatedAt.IsZero() {
		option.CreatedAt = now
	}
	option.UpdatedAt = now
	return s.repo.UpsertOption(ctx, option)
}

func (s *catalogService) DeleteOption(ctx context.Context, optionID string) error {
	return s.deleteByID(ctx, optionID, s.repo.DeleteOption)
}

func (s *catalogService) UpsertAddOnType(ctx context.Context, addOnType domain.AddOnType) (domain.AddOnType, error) {
	addOnType.Name = strings.TrimSpace(addOnType.Name)
	if addOnType.Name == "" {
		return domain.AddOnType{}, fmt.Errorf("%w: add-on type name is required", ErrCatalogInvalidInput)
	}
	now := s.clock()
	if strings.TrimSpace(addOnType.ID) == "" {
		addOnType.ID = s.newID()
		addOnType.CreatedAt = now
	}
	if addOnType.CreatedAt.IsZero() {
		addOnType.CreatedAt = now
	}
	addOnType.UpdatedAt = now
	return s.repo.UpsertAddOnType(ctx, addOnType)
}

func (s *catalogService) DeleteAddOnType(ctx context.Context, typeID string) error {
	return s.deleteByID(ctx, typeID, s.repo.DeleteAddOnType)
}

func (s *catalogService) UpsertAddOn(ctx context.Context, addOn domain.AddOn) (domain.AddOn, error) {
	addOn.Label = strings.TrimSpace(addOn.Label)
	addOn.Code = strings.TrimSpace(addOn.Code)
	addOn.TypeID = strings.TrimSpace(addOn.TypeID)
	if addOn.Label == "" || addOn.Code == "" || addOn.TypeID == "" {
		return domain.AddOn{}, fmt.Errorf("%w: add-on label, code and type are required", ErrCatalogInvalidInput)
	}
	if addOn.Price < 0 {
		return domain.AddOn{}, fmt.Errorf("%w: add-on price cannot be negative", ErrCatalogInvalidInput)
	}
	now := s.clock()
	if strings.TrimSpace(addOn.ID) == "" {
		addOn.ID = s.newID()
		addOn.CreatedAt = now
	}
	if addOn.CreatedAt.IsZero() {
		addOn.CreatedAt = now
	}
	addOn.UpdatedAt = now
	return s.repo.UpsertAddOn(ctx, addOn)
}

func (s *catalogService) DeleteAddOn(ctx context.Context, addOnID string) error {
	return s.deleteByID(ctx, addOnID, s.repo.DeleteAddOn)
}

func (s *catalogService) deleteByID(ctx context.Context, id string, del func(context.Context, string) error) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: id is required", ErrCatalogInvalidInput)
	}
	return del(ctx, id)
}
