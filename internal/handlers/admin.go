package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/instrugate/api/internal/domain"
	"github.com/instrugate/api/internal/platform/auth"
	"github.com/instrugate/api/internal/services"
)

// AdminHandlersDeps bundles the dependencies of the admin endpoints.
type AdminHandlersDeps struct {
	Catalog    services.CatalogService
	Users      services.UserService
	Quotations services.QuotationService
	Auth       *auth.Authenticator
}

// AdminHandlers serves catalog maintenance and account administration.
// Every route requires the admin role.
type AdminHandlers struct {
	catalog    services.CatalogService
	users      services.UserService
	quotations services.QuotationService
	auth       *auth.Authenticator
}

// NewAdminHandlers validates dependencies and constructs the handlers.
func NewAdminHandlers(deps AdminHandlersDeps) (*AdminHandlers, error) {
	if deps.Catalog == nil {
		return nil, errors.New("handlers: catalog service is required")
	}
	if deps.Users == nil {
		return nil, errors.New("handlers: user service is required")
	}
	if deps.Quotations == nil {
		return nil, errors.New("handlers: quotation service is required")
	}
	if deps.Auth == nil {
		return nil, errors.New("handlers: authenticator is required")
	}
	return &AdminHandlers{
		catalog:    deps.Catalog,
		users:      deps.Users,
		quotations: deps.Quotations,
		auth:       deps.Auth,
	}, nil
}

// Routes registers the admin endpoints on the provided router.
func (h *AdminHandlers) Routes(r chi.Router) {
	r.Use(h.auth.RequireAuth(auth.RoleAdmin))

	r.Route("/catalog", func(c chi.Router) {
		c.Post("/categories", h.upsertCategory)
		c.Delete("/categories/{categoryID}", h.deleteCategory)
		c.Post("/types", h.upsertInstrumentType)
		c.Delete("/types/{typeID}", h.deleteInstrumentType)
		c.Post("/instruments", h.upsertInstrument)
		c.Delete("/instruments/{instrumentID}", h.deleteInstrument)
		c.Post("/instruments/{instrumentID}/image-upload", h.signImageUpload)
		c.Post("/fields", h.upsertField)
		c.Delete("/fields/{fieldID}", h.deleteField)
		c.Post("/options", h.upsertOption)
		c.Delete("/options/{optionID}", h.deleteOption)
		c.Post("/addon-types", h.upsertAddOnType)
		c.Delete("/addon-types/{typeID}", h.deleteAddOnType)
		c.Post("/addons", h.upsertAddOn)
		c.Delete("/addons/{addOnID}", h.deleteAddOn)
	})

	r.Route("/users", func(u chi.Router) {
		u.Get("/", h.listUsers)
		u.Get("/{userID}", h.getUser)
		u.Post("/", h.upsertUser)
		u.Delete("/{userID}", h.deleteUser)
	})

	r.Delete("/quotations/{quotationID}", h.deleteQuotation)
}

type categoryRequest struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	SortIndex int    `json:"sort_index"`
}

type instrumentTypeRequest struct {
	ID         string `json:"id,omitempty"`
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
	SortIndex  int    `json:"sort_index"`
}

type instrumentRequest struct {
	ID          string `json:"id,omitempty"`
	TypeID      string `json:"type_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	BasePrice   int64  `json:"base_price"`
	ImagePath   string `json:"image_path,omitempty"`
	IsActive    bool   `json:"is_active"`
}

type fieldRequest struct {
	ID            string `json:"id,omitempty"`
	InstrumentID  string `json:"instrument_id"`
	Name          string `json:"name"`
	SortIndex     int    `json:"sort_index"`
	ParentFieldID string `json:"parent_field_id,omitempty"`
	TriggerValue  string `json:"trigger_value,omitempty"`
}

type fieldOptionRequest struct {
	ID        string `json:"id,omitempty"`
	FieldID   string `json:"field_id"`
	Label     string `json:"label"`
	Code      string `json:"code"`
	Price     int64  `json:"price"`
	SortIndex int    `json:"sort_index"`
}

type addOnTypeRequest struct {
	ID            string   `json:"id,omitempty"`
	Name          string   `json:"name"`
	InstrumentIDs []string `json:"instrument_ids,omitempty"`
	SortIndex     int      `json:"sort_index"`
}

type addOnRequest struct {
	ID        string `json:"id,omitempty"`
	TypeID    string `json:"type_id"`
	Label     string `json:"label"`
	Code      string `json:"code"`
	Price     int64  `json:"price"`
	SortIndex int    `json:"sort_index"`
}

type signImageUploadRequest struct {
	ContentType string `json:"content_type"`
}

type signedUploadResponse struct {
	URL        string `json:"url"`
	ObjectPath string `json:"object_path"`
	ExpiresAt  string `json:"expires_at"`
}

type upsertUserRequest struct {
	ID          string `json:"id,omitempty"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	CompanyName string `json:"company_name,omitempty"`
	IsActive    bool   `json:"is_active"`
	Password    string `json:"password,omitempty"`
}

type userListResponse struct {
	Users         []userResponse `json:"users"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

func (h *AdminHandlers) upsertCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req categoryRequest
	if err := decodeJSONBody(r, defaultMaxBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	category, err := h.catalog.UpsertCategory(ctx, domain.Category{
		ID:        req.ID,
		Name:      req.Name,
		Slug:      req.Slug,
		SortIndex: req.SortIndex,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, categoryResponse{
		ID:        category.ID,
		Name:      category.Name,
		Slug:      category.Slug,
		SortIndex: category.SortIndex,
	})
}

func (h *AdminHandlers) deleteCategory(w http.ResponseWriter, r *http.Request) {
	h.deleteByID(w, r, h.catalog.DeleteCategory, "categoryID")
}

func (h *AdminHandlers) upsertInstrumentType(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req instrumentTypeRequest
	if err := decodeJSONBody(r, defaultMaxBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	instrumentType, err := h.catalog.UpsertInstrumentType(ctx, domain.InstrumentType{
		ID:         req.ID,
		CategoryID: req.CategoryID,
		Name:       req.Name,
		SortIndex:  req.SortIndex,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, instrumentTypeResponse{
		ID:         instrumentType.ID,
		CategoryID: instrumentType.CategoryID,
		Name:       instrumentType.Name,
		SortIndex:  instrumentType.SortIndex,
	})
}

func (h *AdminHandlers) deleteInstrumentType(w http.ResponseWriter, r *http.Request) {
	h.deleteByID(w, r, h.catalog.DeleteInstrumentType, "typeID")
}

func (h *AdminHandlers) upsertInstrument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req instrumentRequest
	if err := decodeJSONBody(r, defaultMaxBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	instrument, err := h.catalog.UpsertInstrument(ctx, domain.Instrument{
		ID:          req.ID,
		TypeID:      req.TypeID,
		Name:        req.Name,
		Description: req.Description,
		BasePrice:   req.BasePrice,
		ImagePath:   req.ImagePath,
		IsActive:    req.IsActive,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, renderInstrument(instrument))
}

func (h *AdminHandlers) deleteInstrument(w http.ResponseWriter, r *http.Request) {
	h.deleteByID(w, r, h.catalog.DeleteInstrument, "instrumentID")
}

func (h *AdminHandlers) signImageUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req signImageUploadRequest
	if err := decodeJSONBody(r, defaultMaxBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	upload, err := h.catalog.SignInstrumentImageUpload(ctx, services.SignImageUploadCommand{
		InstrumentID: chi.URLParam(r, "instrumentID"),
		ContentType:  req.ContentType,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, signedUploadResponse{
		URL:        upload.URL,
		ObjectPath: upload.ObjectPath,
		ExpiresAt:  formatTime(upload.ExpiresAt),
	})
}

func (h *AdminHandlers) upsertField(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req fieldRequest
	if err := decodeJSONBody(r, defaultMaxBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	field, err := h.catalog.UpsertField(ctx, domain.ConfigurableField{
		ID:            req.ID,
		InstrumentID:  req.InstrumentID,
		Name:          req.Name,
		SortIndex:     req.SortIndex,
		ParentFieldID: req.ParentFieldID,
		TriggerValue:  req.TriggerValue,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, fieldResponse{
		ID:            field.ID,
		Name:          field.Name,
		SortIndex:     field.SortIndex,
		ParentFieldID: field.ParentFieldID,
		TriggerValue:  field.TriggerValue,
	})
}

func (h *AdminHandlers) deleteField(w http.ResponseWriter, r *http.Request) {
	h.deleteByID(w, r, h.catalog.DeleteField, "fieldID")
}

func (h *AdminHandlers) upsertOption(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req fieldOptionRequest
	if err := decodeJSONBody(r, defaultMaxBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	option, err := h.catalog.UpsertOption(ctx, domain.FieldOption{
		ID:        req.ID,
		FieldID:   req.FieldID,
		Label:     req.Label,
		Code:      req.Code,
		Price:     req.Price,
		SortIndex: req.SortIndex,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, fieldOptionResponse{
		ID:        option.ID,
		Label:     option.Label,
		Code:      option.Code,
		Price:     option.Price,
		SortIndex: option.SortIndex,
	})
}

func (h *AdminHandlers) deleteOption(w http.ResponseWriter, r *http.Request) {
	h.deleteByID(w, r, h.catalog.DeleteOption, "optionID")
}

func (h *AdminHandlers) upsertAddOnType(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req addOnTypeRequest
	if err := decodeJSONBody(r, defaultMaxBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	addOnType, err := h.catalog.UpsertAddOnType(ctx, domain.AddOnType{
		ID:            req.ID,
		Name:          req.Name,
		InstrumentIDs: req.InstrumentIDs,
		SortIndex:     req.SortIndex,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, addOnTypeResponse{
		ID:        addOnType.ID,
		Name:      addOnType.Name,
		SortIndex: addOnType.SortIndex,
	})
}

func (h *AdminHandlers) deleteAddOnType(w http.ResponseWriter, r *http.Request) {
	h.deleteByID(w, r, h.catalog.DeleteAddOnType, "typeID")
}

func (h *AdminHandlers) upsertAddOn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req addOnRequest
	if err := decodeJSONBody(r, defaultMaxBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	addOn, err := h.catalog.UpsertAddOn(ctx, domain.AddOn{
		ID:        req.ID,
		TypeID:    req.TypeID,
		Label:     req.Label,
		Code:      req.Code,
		Price:     req.Price,
		SortIndex: req.SortIndex,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, addOnResponse{
		ID:        addOn.ID,
		Label:     addOn.Label,
		Code:      addOn.Code,
		Price:     addOn.Price,
		SortIndex: addOn.SortIndex,
	})
}

func (h *AdminHandlers) deleteAddOn(w http.ResponseWriter, r *http.Request) {
	h.deleteByID(w, r, h.catalog.DeleteAddOn, "addOnID")
}

func (h *AdminHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	paging, err := parsePagination(r)
	if err != nil {
		writePaginationError(ctx, w, err)
		return
	}

	filter := services.UserListFilter{
		Role:       domain.Role(r.URL.Query().Get("role")),
		ActiveOnly: r.URL.Query().Get("active") == "true",
		Pagination: paging,
	}

	page, err := h.users.ListUsers(ctx, filter)
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}

	payload := userListResponse{
		Users:         make([]userResponse, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, user := range page.Items {
		payload.Users = append(payload.Users, renderUser(user))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *AdminHandlers) getUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.users.GetUser(ctx, chi.URLParam(r, "userID"))
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, renderUser(user))
}

func (h *AdminHandlers) upsertUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req upsertUserRequest
	if err := decodeJSONBody(r, defaultMaxBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	user, err := h.users.UpsertUser(ctx, services.UpsertUserCommand{
		User: domain.User{
			ID:          req.ID,
			Username:    req.Username,
			Email:       req.Email,
			Role:        domain.Role(req.Role),
			CompanyName: req.CompanyName,
			IsActive:    req.IsActive,
		},
		Password: req.Password,
	})
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, renderUser(user))
}

func (h *AdminHandlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.users.DeleteUser(ctx, chi.URLParam(r, "userID")); err != nil {
		writeUserError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandlers) deleteQuotation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if err := h.quotations.DeleteQuotation(ctx, chi.URLParam(r, "quotationID"), actorFromIdentity(identity)); err != nil {
		writeQuotationError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandlers) deleteByID(w http.ResponseWriter, r *http.Request, remove func(context.Context, string) error, param string) {
	ctx := r.Context()
	if err := remove(ctx, chi.URLParam(r, param)); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
