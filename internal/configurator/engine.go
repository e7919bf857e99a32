package configurator

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/instrugate/api/internal/domain"
)

var (
	// ErrSessionClosed indicates the session was already snapshotted and must not be reused.
	ErrSessionClosed = errors.New("configurator: session is closed")
	// ErrIncomplete indicates a stage transition was requested before every visible field had a selection.
	ErrIncomplete = errors.New("configurator: selection is incomplete")
	// ErrStage indicates an operation that is not allowed in the session's current stage.
	ErrStage = errors.New("configurator: operation not allowed in current stage")
)

// ValidationError reports a selection that does not fit the instrument's configuration.
type ValidationError struct {
	FieldID  string
	OptionID string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configurator: invalid selection for field %q: %s", e.FieldID, e.Reason)
}

// Stage names the phases a configuration session moves through.
type Stage string

const (
	// StageSelectingFields is the initial phase where bracket fields are chosen.
	StageSelectingFields Stage = "selecting_fields"
	// StageSelectingAddOns follows once every visible field is selected.
	StageSelectingAddOns Stage = "selecting_add_ons"
	// StageReviewReady is terminal; the session can only be snapshotted.
	StageReviewReady Stage = "review_ready"
)

// Session holds the live configuration state for a single instrument.
// It is not safe for concurrent use.
type Session struct {
	config  domain.InstrumentConfig
	fields  []domain.ConfigurableField
	options map[string]map[string]domain.FieldOption
	addOns  map[string]domain.AddOn

	selections map[string]string
	chosen     map[string]struct{}

	stage  Stage
	closed bool

	clock func() time.Time
}

// NewSession validates the instrument configuration and opens a session in the
// field-selection stage.
func NewSession(cfg domain.InstrumentConfig) (*Session, error) {
	if strings.TrimSpace(cfg.Instrument.ID) == "" {
		return nil, errors.New("configurator: instrument id is required")
	}

	fields := append([]domain.ConfigurableField(nil), cfg.Fields...)
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].SortIndex < fields[j].SortIndex })

	byID := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		byID[field.ID] = struct{}{}
	}
	for _, field := range fields {
		if field.ParentFieldID == "" {
			continue
		}
		if _, ok := byID[field.ParentFieldID]; !ok {
			return nil, fmt.Errorf("configurator: field %q references unknown parent %q", field.ID, field.ParentFieldID)
		}
	}

	options := make(map[string]map[string]domain.FieldOption, len(cfg.Options))
	for fieldID, opts := range cfg.Options {
		indexed := make(map[string]domain.FieldOption, len(opts))
		for _, opt := range opts {
			indexed[opt.ID] = opt
		}
		options[fieldID] = indexed
	}

	addOns := make(map[string]domain.AddOn)
	for _, group := range cfg.AddOns {
		for _, addOn := range group {
			addOns[addOn.ID] = addOn
		}
	}

	return &Session{
		config:     cfg,
		fields:     fields,
		options:    options,
		addOns:     addOns,
		selections: make(map[string]string),
		chosen:     make(map[string]struct{}),
		stage:      StageSelectingFields,
		clock:      time.Now,
	}, nil
}

// Stage returns the session's current phase.
func (s *Session) Stage() Stage {
	return s.stage
}

// SelectOption records the option chosen for a field, or clears the field's
// selection when optionID is empty. A selection that is already hidden by a
// parent change is kept and resurfaces if the parent reverts; hidden fields
// never contribute to the product code, the price, or completeness.
func (s *Session) SelectOption(fieldID, optionID string) error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.stage != StageSelectingFields {
		return ErrStage
	}

	opts, ok := s.options[fieldID]
	if !ok {
		if !s.hasField(fieldID) {
			return &ValidationError{FieldID: fieldID, OptionID: optionID, Reason: "unknown field"}
		}
		opts = map[string]domain.FieldOption{}
	}

	if optionID == "" {
		delete(s.selections, fieldID)
		return nil
	}
	if _, ok := opts[optionID]; !ok {
		return &ValidationError{FieldID: fieldID, OptionID: optionID, Reason: "option does not belong to field"}
	}
	s.selections[fieldID] = optionID
	return nil
}

// ToggleAddOn adds the add-on to the chosen set, or removes it when already
// present. Only valid after the session has advanced past field selection.
func (s *Session) ToggleAddOn(addOnID string) error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.stage != StageSelectingAddOns {
		return ErrStage
	}
	if _, ok := s.addOns[addOnID]; !ok {
		return &ValidationError{OptionID: addOnID, Reason: "unknown add-on"}
	}
	if _, ok := s.chosen[addOnID]; ok {
		delete(s.chosen, addOnID)
		return nil
	}
	s.chosen[addOnID] = struct{}{}
	return nil
}

// VisibleFields recomputes the offered fields from the live selection state:
// a field is visible when it has no parent, or when its parent is visible and
// the parent's selected option code equals the field's trigger value.
func (s *Session) VisibleFields() []domain.ConfigurableField {
	visible := make(map[string]bool, len(s.fields))
	out := make([]domain.ConfigurableField, 0, len(s.fields))
	for _, field := range s.fields {
		if field.ParentFieldID == "" {
			visible[field.ID] = true
			out = append(out, field)
			continue
		}
		if !visible[field.ParentFieldID] {
			continue
		}
		if s.selectedCode(field.ParentFieldID) != field.TriggerValue {
			continue
		}
		visible[field.ID] = true
		out = append(out, field)
	}
	return out
}

// IsComplete reports whether every currently visible field has a selection.
func (s *Session) IsComplete() bool {
	for _, field := range s.VisibleFields() {
		if _, ok := s.selections[field.ID]; !ok {
			return false
		}
	}
	return true
}

// ProceedToAddOns advances the session once every visible field is selected.
func (s *Session) ProceedToAddOns() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.stage != StageSelectingFields {
		return ErrStage
	}
	if !s.IsComplete() {
		return ErrIncomplete
	}
	s.stage = StageSelectingAddOns
	return nil
}

// ProceedToReview moves the session to its terminal stage.
func (s *Session) ProceedToReview() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.stage != StageSelectingAddOns {
		return ErrStage
	}
	s.stage = StageReviewReady
	return nil
}

// ProductCode renders one bracket per visible field in order, the selected
// option's code inside or empty brackets when unselected, plus a single
// trailing bracket with the chosen add-on codes when any are selected.
func (s *Session) ProductCode() string {
	var b strings.Builder
	for _, field := range s.VisibleFields() {
		b.WriteString("[")
		b.WriteString(s.selectedCode(field.ID))
		b.WriteString("]")
	}
	if codes := s.addOnCodes(); len(codes) > 0 {
		b.WriteString("[")
		b.WriteString(strings.Join(codes, ""))
		b.WriteString("]")
	}
	return b.String()
}

// TotalPrice sums the base price, the selected options of visible fields, and
// the chosen add-ons, in minor currency units.
func (s *Session) TotalPrice() int64 {
	total := s.config.Instrument.BasePrice
	for _, field := range s.VisibleFields() {
		optionID, ok := s.selections[field.ID]
		if !ok {
			continue
		}
		total += s.options[field.ID][optionID].Price
	}
	for addOnID := range s.chosen {
		total += s.addOns[addOnID].Price
	}
	return total
}

// Snapshot freezes the finished configuration into a cart entry and closes
// the session.
func (s *Session) Snapshot() (domain.CartEntry, error) {
	if s.closed {
		return domain.CartEntry{}, ErrSessionClosed
	}
	if s.stage != StageReviewReady {
		return domain.CartEntry{}, ErrStage
	}

	entry := domain.CartEntry{
		InstrumentID: s.config.Instrument.ID,
		ProductCode:  s.ProductCode(),
		BasePrice:    s.config.Instrument.BasePrice,
		Quantity:     1,
		AddedAt:      s.clock(),
	}
	for _, field := range s.VisibleFields() {
		optionID, ok := s.selections[field.ID]
		if !ok {
			continue
		}
		opt := s.options[field.ID][optionID]
		entry.Selections = append(entry.Selections, domain.SelectionLine{
			FieldID:    field.ID,
			FieldName:  field.Name,
			OptionID:   opt.ID,
			OptionCode: opt.Code,
			Label:      opt.Label,
			Price:      opt.Price,
		})
	}
	for _, addOnID := range s.sortedAddOnIDs() {
		addOn := s.addOns[addOnID]
		entry.AddOns = append(entry.AddOns, domain.AddOnLine{
			AddOnID: addOn.ID,
			Label:   addOn.Label,
			Code:    addOn.Code,
			Price:   addOn.Price,
		})
	}

	s.closed = true
	return entry, nil
}

func (s *Session) hasField(fieldID string) bool {
	for _, field := range s.fields {
		if field.ID == fieldID {
			return true
		}
	}
	return false
}

func (s *Session) selectedCode(fieldID string) string {
	optionID, ok := s.selections[fieldID]
	if !ok {
		return ""
	}
	return s.options[fieldID][optionID].Code
}

func (s *Session) sortedAddOnIDs() []string {
	ids := make([]string, 0, len(s.chosen))
	for id := range s.chosen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Session) addOnCodes() []string {
	ids := s.sortedAddOnIDs()
	codes := make([]string, 0, len(ids))
	for _, id := range ids {
		codes = append(codes, s.addOns[id].Code)
	}
	return codes
}
