package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/instrugate/api/internal/domain"
	"github.com/instrugate/api/internal/platform/events"
	"github.com/instrugate/api/internal/repositories"
)

var (
	// ErrQuotationInvalidInput indicates a malformed quotation command.
	ErrQuotationInvalidInput = errors.New("quotation service: invalid input")
	// ErrQuotationForbidden indicates the actor may not touch this quotation.
	ErrQuotationForbidden = errors.New("quotation service: forbidden")
	// ErrQuotationNotPending indicates a review decision on a settled quotation.
	ErrQuotationNotPending = errors.New("quotation service: quotation is not pending")
	// ErrQuotationNotApproved indicates a submit on an unapproved quotation.
	ErrQuotationNotApproved = errors.New("quotation service: quotation is not approved")
	// ErrQuotationRemarksRequired indicates a rejection without an explanation.
	ErrQuotationRemarksRequired = errors.New("quotation service: rejection remarks are required")
)

// QuotationEventPublisher emits lifecycle events for downstream consumers.
type QuotationEventPublisher interface {
	PublishQuotationEvent(ctx context.Context, event events.QuotationEvent) (string, error)
}

// QuotationServiceDeps bundles constructor inputs for the quotation service.
type QuotationServiceDeps struct {
	Quotations repositories.QuotationRepository

	// Tx wraps status transitions so concurrent reviews cannot both pass
	// the pending check. Optional; direct writes when absent.
	Tx repositories.UnitOfWork

	Publisher   QuotationEventPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, msg string, fields map[string]any)
}

type quotationService struct {
	quotations repositories.QuotationRepository
	tx         repositories.UnitOfWork
	publisher  QuotationEventPublisher
	clock      func() time.Time
	newID      func() string
	log        func(ctx context.Context, msg string, fields map[string]any)
}

// NewQuotationService constructs the quotation service with the supplied dependencies.
func NewQuotationService(deps QuotationServiceDeps) (QuotationService, error) {
	if deps.Quotations == nil {
		return nil, fmt.Errorf("quotation service: quotation repository is required")
	}
	if deps.IDGenerator == nil {
		return nil, fmt.Errorf("quotation service: id generator is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &quotationService{
		quotations: deps.Quotations,
		tx:         deps.Tx,
		publisher:  deps.Publisher,
		clock:      func() time.Time { return clock().UTC() },
		newID:      deps.IDGenerator,
		log:        logger,
	}, nil
}

func (s *quotationService) CreateFromCart(ctx context.Context, cmd CreateQuotationCommand) (domain.Quotation, error) {
	clientID := strings.TrimSpace(cmd.ClientID)
	if clientID == "" {
		return domain.Quotation{}, fmt.Errorf("%w: client id is required", ErrQuotationInvalidInput)
	}
	if len(cmd.Entries) == 0 {
		return domain.Quotation{}, fmt.Errorf("%w: cart is empty", ErrQuotationInvalidInput)
	}

	now := s.clock()
	quotation := domain.Quotation{
		ID:          s.newID(),
		ClientID:    clientID,
		CompanyName: strings.TrimSpace(cmd.CompanyName),
		ProjectName: strings.TrimSpace(cmd.ProjectName),
		Status:      domain.QuotationStatusPending,
		Remarks:     strings.TrimSpace(cmd.Remarks),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, entry := range cmd.Entries {
		quantity := entry.Quantity
		if quantity < 1 {
			quantity = 1
		}
		quotation.Items = append(quotation.Items, domain.QuotationItem{
			ID:           s.newID(),
			QuotationID:  quotation.ID,
			InstrumentID: entry.InstrumentID,
			ProductCode:  entry.ProductCode,
			BasePrice:    entry.BasePrice,
			Selections:   entry.Selections,
			AddOns:       entry.AddOns,
			Quantity:     quantity,
			CreatedAt:    now,
		})
	}

	if err := s.quotations.Insert(ctx, quotation); err != nil {
		return domain.Quotation{}, err
	}
	s.publish(ctx, events.EventQuotationCreated, quotation)
	return quotation, nil
}

func (s *quotationService) GetQuotation(ctx context.Context, quotationID string, actor Actor) (domain.Quotation, error) {
	quotationID = strings.TrimSpace(quotationID)
	if quotationID == "" {
		return domain.Quotation{}, fmt.Errorf("%w: quotation id is required", ErrQuotationInvalidInput)
	}
	quotation, err := s.quotations.FindByID(ctx, quotationID)
	if err != nil {
		return domain.Quotation{}, err
	}
	if !canReadQuotation(actor, quotation) {
		return domain.Quotation{}, ErrQuotationForbidden
	}
	return quotation, nil
}

func (s *quotationService) ListQuotations(ctx context.Context, filter QuotationListFilter, actor Actor) (domain.CursorPage[domain.Quotation], error) {
	repoFilter := repositories.QuotationFilter{
		Statuses: filter.Statuses,
		Pagination: domain.Pagination{
			PageSize:  filter.Pagination.PageSize,
			PageToken: strings.TrimSpace(filter.Pagination.PageToken),
		},
	}
	// Clients only ever see their own quotations.
	if actor.Role == domain.RoleClient {
		repoFilter.ClientID = actor.UserID
	}
	return s.quotations.List(ctx, repoFilter)
}

func (s *quotationService) Approve(ctx context.Context, cmd ReviewQuotationCommand) (domain.Quotation, error) {
	return s.review(ctx, cmd, true)
}

func (s *quotationService) Reject(ctx context.Context, cmd ReviewQuotationCommand) (domain.Quotation, error) {
	if strings.TrimSpace(cmd.Remarks) == "" {
		return domain.Quotation{}, ErrQuotationRemarksRequired
	}
	return s.review(ctx, cmd, false)
}

func (s *quotationService) review(ctx context.Context, cmd ReviewQuotationCommand, approve bool) (domain.Quotation, error) {
	quotationID := strings.TrimSpace(cmd.QuotationID)
	reviewerID := strings.TrimSpace(cmd.ReviewerID)
	if quotationID == "" || reviewerID == "" {
		return domain.Quotation{}, fmt.Errorf("%w: quotation and reviewer ids are required", ErrQuotationInvalidInput)
	}

	var updated domain.Quotation
	eventType := events.EventQuotationApproved
	err := s.runInTx(ctx, func(ctx context.Context) error {
		quotation, err := s.quotations.FindByID(ctx, quotationID)
		if err != nil {
			return err
		}
		if quotation.Status != domain.QuotationStatusPending {
			return ErrQuotationNotPending
		}

		now := s.clock()
		quotation.ReviewedBy = reviewerID
		quotation.UpdatedAt = now
		if remarks := strings.TrimSpace(cmd.Remarks); remarks != "" {
			quotation.Remarks = remarks
		}
		if approve {
			quotation.Status = domain.QuotationStatusApproved
			quotation.ApprovedAt = &now
		} else {
			quotation.Status = domain.QuotationStatusRejected
			quotation.RejectedAt = &now
			eventType = events.EventQuotationRejected
		}

		updated, err = s.quotations.Update(ctx, quotation)
		return err
	})
	if err != nil {
		return domain.Quotation{}, err
	}
	s.publish(ctx, eventType, updated)
	return updated, nil
}

func (s *quotationService) Submit(ctx context.Context, cmd SubmitQuotationCommand) (domain.Quotation, error) {
	quotationID := strings.TrimSpace(cmd.QuotationID)
	clientID := strings.TrimSpace(cmd.ClientID)
	if quotationID == "" || clientID == "" {
		return domain.Quotation{}, fmt.Errorf("%w: quotation and client ids are required", ErrQuotationInvalidInput)
	}

	var updated domain.Quotation
	err := s.runInTx(ctx, func(ctx context.Context) error {
		quotation, err := s.quotations.FindByID(ctx, quotationID)
		if err != nil {
			return err
		}
		if quotation.ClientID != clientID {
			return ErrQuotationForbidden
		}
		if quotation.Status != domain.QuotationStatusApproved {
			return ErrQuotationNotApproved
		}

		now := s.clock()
		quotation.Status = domain.QuotationStatusSubmitted
		quotation.SubmittedAt = &now
		quotation.UpdatedAt = now

		updated, err = s.quotations.Update(ctx, quotation)
		return err
	})
	if err != nil {
		return domain.Quotation{}, err
	}
	s.publish(ctx, events.EventQuotationSubmitted, updated)
	return updated, nil
}

func (s *quotationService) DeleteQuotation(ctx context.Context, quotationID string, actor Actor) error {
	quotationID = strings.TrimSpace(quotationID)
	if quotationID == "" {
		return fmt.Errorf("%w: quotation id is required", ErrQuotationInvalidInput)
	}
	if actor.Role != domain.RoleAdmin {
		return ErrQuotationForbidden
	}
	return s.quotations.Delete(ctx, quotationID)
}

func (s *quotationService) runInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx.RunInTx(ctx, fn)
}

// publish is best effort: a broker outage must not fail the user's request.
func (s *quotationService) publish(ctx context.Context, eventType string, quotation domain.Quotation) {
	if s.publisher == nil {
		return
	}
	_, err := s.publisher.PublishQuotationEvent(ctx, events.QuotationEvent{
		EventType:   eventType,
		QuotationID: quotation.ID,
		ClientID:    quotation.ClientID,
		Status:      string(quotation.Status),
		ReviewedBy:  quotation.ReviewedBy,
		TotalPrice:  quotation.TotalPrice(),
		OccurredAt:  s.clock(),
	})
	if err != nil {
		s.log(ctx, "quotation event publish failed", map[string]any{
			"quotation_id": quotation.ID,
			"event_type":   eventType,
			"error":        err.Error(),
		})
	}
}

func canReadQuotation(actor Actor, quotation domain.Quotation) bool {
	switch actor.Role {
	case domain.RoleAdmin, domain.RoleProposalEngineer:
		return true
	case domain.RoleClient:
		return actor.UserID == quotation.ClientID
	default:
		return false
	}
}
