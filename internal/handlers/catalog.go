package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/instrugate/api/internal/domain"
	"github.com/instrugate/api/internal/platform/httpx"
	"github.com/instrugate/api/internal/services"
)

// CatalogHandlersDeps bundles the dependencies of the public catalog endpoints.
type CatalogHandlersDeps struct {
	Catalog services.CatalogService
}

// CatalogHandlers serves the browsable catalog tree and configurator payloads.
type CatalogHandlers struct {
	catalog services.CatalogService
}

// NewCatalogHandlers validates dependencies and constructs the handlers.
func NewCatalogHandlers(deps CatalogHandlersDeps) (*CatalogHandlers, error) {
	if deps.Catalog == nil {
		return nil, errors.New("handlers: catalog service is required")
	}
	return &CatalogHandlers{catalog: deps.Catalog}, nil
}

// Routes registers the catalog endpoints on the provided router.
func (h *CatalogHandlers) Routes(r chi.Router) {
	r.Get("/categories", h.listCategories)
	r.Get("/categories/{categoryID}/types", h.listInstrumentTypes)
	r.Get("/instruments", h.listInstruments)
	r.Get("/instruments/{instrumentID}", h.getInstrument)
	r.Get("/instruments/{instrumentID}/config", h.getInstrumentConfig)
	r.Get("/instruments/{instrumentID}/image-url", h.getInstrumentImageURL)
}

type categoryResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	SortIndex int    `json:"sort_index"`
}

type instrumentTypeResponse struct {
	ID         string `json:"id"`
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
	SortIndex  int    `json:"sort_index"`
}

type instrumentResponse struct {
	ID          string `json:"id"`
	TypeID      string `json:"type_id"`
	CategoryID  string `json:"category_id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	BasePrice   int64  `json:"base_price"`
	ImagePath   string `json:"image_path,omitempty"`
	IsActive    bool   `json:"is_active"`
}

type instrumentListResponse struct {
	Instruments   []instrumentResponse `json:"instruments"`
	NextPageToken string               `json:"next_page_token,omitempty"`
}

type fieldResponse struct {
	ID            string                `json:"id"`
	Name          string                `json:"name"`
	SortIndex     int                   `json:"sort_index"`
	ParentFieldID string                `json:"parent_field_id,omitempty"`
	TriggerValue  string                `json:"trigger_value,omitempty"`
	Options       []fieldOptionResponse `json:"options"`
}

type fieldOptionResponse struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Code      string `json:"code"`
	Price     int64  `json:"price"`
	SortIndex int    `json:"sort_index"`
}

type addOnTypeResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	SortIndex int             `json:"sort_index"`
	AddOns    []addOnResponse `json:"add_ons"`
}

type addOnResponse struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Code      string `json:"code"`
	Price     int64  `json:"price"`
	SortIndex int    `json:"sort_index"`
}

type imageURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type instrumentConfigResponse struct {
	Instrument instrumentResponse  `json:"instrument"`
	Fields     []fieldResponse     `json:"fields"`
	AddOnTypes []addOnTypeResponse `json:"add_on_types"`
}

func (h *CatalogHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	categories, err := h.catalog.ListCategories(ctx)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	payload := make([]categoryResponse, 0, len(categories))
	for _, category := range categories {
		payload = append(payload, categoryResponse{
			ID:        category.ID,
			Name:      category.Name,
			Slug:      category.Slug,
			SortIndex: category.SortIndex,
		})
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"categories": payload})
}

func (h *CatalogHandlers) listInstrumentTypes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	types, err := h.catalog.ListInstrumentTypes(ctx, chi.URLParam(r, "categoryID"))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	payload := make([]instrumentTypeResponse, 0, len(types))
	for _, instrumentType := range types {
		payload = append(payload, instrumentTypeResponse{
			ID:         instrumentType.ID,
			CategoryID: instrumentType.CategoryID,
			Name:       instrumentType.Name,
			SortIndex:  instrumentType.SortIndex,
		})
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"instrument_types": payload})
}

func (h *CatalogHandlers) listInstruments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	paging, err := parsePagination(r)
	if err != nil {
		writePaginationError(ctx, w, err)
		return
	}

	page, err := h.catalog.ListInstruments(ctx, services.InstrumentListFilter{
		TypeID:     r.URL.Query().Get("type_id"),
		CategoryID: r.URL.Query().Get("category_id"),
		Pagination: paging,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	payload := instrumentListResponse{
		Instruments:   make([]instrumentResponse, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, instrument := range page.Items {
		payload.Instruments = append(payload.Instruments, renderInstrument(instrument))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *CatalogHandlers) getInstrument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	instrument, err := h.catalog.GetInstrument(ctx, chi.URLParam(r, "instrumentID"))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, renderInstrument(instrument))
}

func (h *CatalogHandlers) getInstrumentConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	config, err := h.catalog.GetInstrumentConfig(ctx, chi.URLParam(r, "instrumentID"))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, renderInstrumentConfig(config))
}

func (h *CatalogHandlers) getInstrumentImageURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	download, err := h.catalog.SignInstrumentImageDownload(ctx, chi.URLParam(r, "instrumentID"))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, imageURLResponse{
		URL:       download.URL,
		ExpiresAt: download.ExpiresAt,
	})
}

func renderInstrument(instrument domain.Instrument) instrumentResponse {
	return instrumentResponse{
		ID:          instrument.ID,
		TypeID:      instrument.TypeID,
		CategoryID:  instrument.CategoryID,
		Name:        instrument.Name,
		Description: instrument.Description,
		BasePrice:   instrument.BasePrice,
		ImagePath:   instrument.ImagePath,
		IsActive:    instrument.IsActive,
	}
}

func renderInstrumentConfig(config domain.InstrumentConfig) instrumentConfigResponse {
	payload := instrumentConfigResponse{
		Instrument: renderInstrument(config.Instrument),
		Fields:     make([]fieldResponse, 0, len(config.Fields)),
		AddOnTypes: make([]addOnTypeResponse, 0, len(config.AddOnTypes)),
	}

	for _, field := range config.Fields {
		rendered := fieldResponse{
			ID:            field.ID,
			Name:          field.Name,
			SortIndex:     field.SortIndex,
			ParentFieldID: field.ParentFieldID,
			TriggerValue:  field.TriggerValue,
			Options:       make([]fieldOptionResponse, 0, len(config.Options[field.ID])),
		}
		for _, option := range config.Options[field.ID] {
			rendered.Options = append(rendered.Options, fieldOptionResponse{
				ID:        option.ID,
				Label:     option.Label,
				Code:      option.Code,
				Price:     option.Price,
				SortIndex: option.SortIndex,
			})
		}
		payload.Fields = append(payload.Fields, rendered)
	}

	for _, addOnType := range config.AddOnTypes {
		rendered := addOnTypeResponse{
			ID:        addOnType.ID,
			Name:      addOnType.Name,
			SortIndex: addOnType.SortIndex,
			AddOns:    make([]addOnResponse, 0, len(config.AddOns[addOnType.ID])),
		}
		for _, addOn := range config.AddOns[addOnType.ID] {
			rendered.AddOns = append(rendered.AddOns, addOnResponse{
				ID:        addOn.ID,
				Label:     addOn.Label,
				Code:      addOn.Code,
				Price:     addOn.Price,
				SortIndex: addOn.SortIndex,
			})
		}
		payload.AddOnTypes = append(payload.AddOnTypes, rendered)
	}

	return payload
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogImageSignerMissing):
		httpx.WriteError(ctx, w, httpx.NewError("uploads_unavailable", "image uploads are not configured", http.StatusServiceUnavailable))
	default:
		writeRepoError(ctx, w, err)
	}
}
