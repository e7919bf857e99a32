package configurator

import (
	"errors"
	"testing"

	"github.com/instrugate/api/internal/domain"
)

func testConfig() domain.InstrumentConfig {
	return domain.InstrumentConfig{
		Instrument: domain.Instrument{ID: "inst-1", Name: "Pressure Gauge", BasePrice: 10000},
		Fields: []domain.ConfigurableField{
			{ID: "f1", InstrumentID: "inst-1", Name: "Connection", SortIndex: 1},
			{ID: "f1c", InstrumentID: "inst-1", Name: "Connection Detail", SortIndex: 2, ParentFieldID: "f1", TriggerValue: "A1"},
			{ID: "f2", InstrumentID: "inst-1", Name: "Range", SortIndex: 3},
		},
		Options: map[string][]domain.FieldOption{
			"f1": {
				{ID: "o-a1", FieldID: "f1", Label: "Threaded", Code: "A1", Price: 500},
				{ID: "o-a2", FieldID: "f1", Label: "Flanged", Code: "A2", Price: 700},
			},
			"f1c": {
				{ID: "o-c1", FieldID: "f1c", Label: "NPT 1/2", Code: "C1", Price: 250},
			},
			"f2": {
				{ID: "o-b1", FieldID: "f2", Label: "0-10 bar", Code: "B1", Price: 0},
			},
		},
		AddOnTypes: []domain.AddOnType{{ID: "t1", Name: "Certificates", InstrumentIDs: []string{"inst-1"}}},
		AddOns: map[string][]domain.AddOn{
			"t1": {
				{ID: "a1", TypeID: "t1", Label: "Calibration cert", Code: "K", Price: 1500},
				{ID: "a2", TypeID: "t1", Label: "Material cert", Code: "M", Price: 2000},
			},
		},
	}
}

func mustSession(t *testing.T) *Session {
	t.Helper()
	session, err := NewSession(testConfig())
	if err != nil {
		t.Fatalf("NewSession returned error: %v", err)
	}
	return session
}

func TestNewSessionRejectsUnknownParent(t *testing.T) {
	cfg := testConfig()
	cfg.Fields = append(cfg.Fields, domain.ConfigurableField{ID: "f9", ParentFieldID: "missing"})
	if _, err := NewSession(cfg); err == nil {
		t.Fatalf("expected error for unknown parent field")
	}
}

func TestVisibleFieldsFollowsParentTrigger(t *testing.T) {
	session := mustSession(t)

	fields := session.VisibleFields()
	if len(fields) != 2 {
		t.Fatalf("expected 2 visible fields before selection, got %d", len(fields))
	}

	if err := session.SelectOption("f1", "o-a1"); err != nil {
		t.Fatalf("SelectOption returned error: %v", err)
	}
	fields = session.VisibleFields()
	if len(fields) != 3 {
		t.Fatalf("expected child field to appear after trigger selection, got %d fields", len(fields))
	}
	if fields[1].ID != "f1c" {
		t.Fatalf("expected child field in order position 2, got %q", fields[1].ID)
	}

	if err := session.SelectOption("f1", "o-a2"); err != nil {
		t.Fatalf("SelectOption returned error: %v", err)
	}
	fields = session.VisibleFields()
	if len(fields) != 2 {
		t.Fatalf("expected child field hidden after parent changed, got %d fields", len(fields))
	}
}

func TestVisibilityUnaffectedByUnrelatedSelection(t *testing.T) {
	session := mustSession(t)
	if err := session.SelectOption("f1", "o-a1"); err != nil {
		t.Fatalf("SelectOption returned error: %v", err)
	}
	before := len(session.VisibleFields())

	if err := session.SelectOption("f2", "o-b1"); err != nil {
		t.Fatalf("SelectOption returned error: %v", err)
	}
	if after := len(session.VisibleFields()); after != before {
		t.Fatalf("unrelated selection changed visibility: %d -> %d", before, after)
	}
}

func TestSelectOptionRejectsForeignOption(t *testing.T) {
	session := mustSession(t)

	err := session.SelectOption("f2", "o-a1")
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if validation.FieldID != "f2" {
		t.Fatalf("expected field f2 in error, got %q", validation.FieldID)
	}
}

func TestSelectOptionClearsWithEmptyOption(t *testing.T) {
	session := mustSession(t)
	if err := session.SelectOption("f2", "o-b1"); err != nil {
		t.Fatalf("SelectOption returned error: %v", err)
	}
	if err := session.SelectOption("f2", ""); err != nil {
		t.Fatalf("clearing selection returned error: %v", err)
	}
	if got := session.ProductCode(); got != "[][]" {
		t.Fatalf("expected empty brackets after clearing, got %q", got)
	}
}

func TestProductCodeScenario(t *testing.T) {
	session := mustSession(t)

	if err := session.SelectOption("f1", "o-a1"); err != nil {
		t.Fatalf("SelectOption returned error: %v", err)
	}
	if err := session.SelectOption("f1c", "o-c1"); err != nil {
		t.Fatalf("SelectOption returned error: %v", err)
	}
	if err := session.SelectOption("f2", "o-b1"); err != nil {
		t.Fatalf("SelectOption returned error: %v", err)
	}

	if got := session.ProductCode(); got != "[A1][C1][B1]" {
		t.Fatalf("unexpected product code %q", got)
	}
	if got := session.ProductCode(); got != "[A1][C1][B1]" {
		t.Fatalf("product code not stable across calls: %q", got)
	}

	// Switching the parent away hides the child bracket regardless of its
	// retained selection.
	if err := session.SelectOption("f1", "o-a2"); err != nil {
		t.Fatalf("SelectOption returned error: %v", err)
	}
	if got := session.ProductCode(); got != "[A2][B1]" {
		t.Fatalf("unexpected product code after hiding child: %q", got)
	}

	// Reverting the parent restores the retained child selection.
	if err := session.SelectOption("f1", "o-a1"); err != nil {
		t.Fatalf("SelectOption returned error: %v", err)
	}
	if got := session.ProductCode(); got != "[A1][C1][B1]" {
		t.Fatalf("expected retained child selection to resurface, got %q", got)
	}
}

func TestProductCodeAppendsAddOnBracket(t *testing.T) {
	session := mustSession(t)
	completeSelection(t, session)

	if err := session.ProceedToAddOns(); err != nil {
		t.Fatalf("ProceedToAddOns returned error: %v", err)
	}
	if got := session.ProductCode(); got != "[A1][C1][B1]" {
		t.Fatalf("expected no add-on bracket while set is empty, got %q", got)
	}

	if err := session.ToggleAddOn("a2"); err != nil {
		t.Fatalf("ToggleAddOn returned error: %v", err)
	}
	if err := session.ToggleAddOn("a1"); err != nil {
		t.Fatalf("ToggleAddOn returned error: %v", err)
	}
	if got := session.ProductCode(); got != "[A1][C1][B1][KM]" {
		t.Fatalf("unexpected product code with add-ons %q", got)
	}

	if err := session.ToggleAddOn("a1"); err != nil {
		t.Fatalf("ToggleAddOn returned error: %v", err)
	}
	if got := session.ProductCode(); got != "[A1][C1][B1][M]" {
		t.Fatalf("expected toggle to remove add-on, got %q", got)
	}
}

func TestToggleAddOnRejectsUnknownID(t *testing.T) {
	session := mustSession(t)
	completeSelection(t, session)
	if err := session.ProceedToAddOns(); err != nil {
		t.Fatalf("ProceedToAddOns returned error: %v", err)
	}

	err := session.ToggleAddOn("nope")
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestTotalPriceSumsComponents(t *testing.T) {
	session := mustSession(t)
	if got := session.TotalPrice(); got != 10000 {
		t.Fatalf("expected base price only, got %d", got)
	}

	completeSelection(t, session)
	if got := session.TotalPrice(); got != 10750 {
		t.Fatalf("expected base + option prices, got %d", got)
	}

	if err := session.ProceedToAddOns(); err != nil {
		t.Fatalf("ProceedToAddOns returned error: %v", err)
	}
	prev := session.TotalPrice()
	for _, id := range []string{"a1", "a2"} {
		if err := session.ToggleAddOn(id); err != nil {
			t.Fatalf("ToggleAddOn returned error: %v", err)
		}
		if got := session.TotalPrice(); got < prev {
			t.Fatalf("total decreased after adding add-on: %d -> %d", prev, got)
		} else {
			prev = got
		}
	}
	if prev != 10750+1500+2000 {
		t.Fatalf("unexpected final total %d", prev)
	}
}

func TestIsCompleteFlipsWhenChildAppears(t *testing.T) {
	session := mustSession(t)

	if err := session.SelectOption("f1", "o-a2"); err != nil {
		t.Fatalf("SelectOption returned error: %v", err)
	}
	if err := session.SelectOption("f2", "o-b1"); err != nil {
		t.Fatalf("SelectOption returned error: %v", err)
	}
	if !session.IsComplete() {
		t.Fatalf("expected completeness with both top-level fields selected")
	}

	// Selecting the trigger option reveals the child and breaks completeness.
	if err := session.SelectOption("f1", "o-a1"); err != nil {
		t.Fatalf("SelectOption returned error: %v", err)
	}
	if session.IsComplete() {
		t.Fatalf("expected incompleteness while revealed child is unselected")
	}

	if err := session.SelectOption("f1c", "o-c1"); err != nil {
		t.Fatalf("SelectOption returned error: %v", err)
	}
	if !session.IsComplete() {
		t.Fatalf("expected completeness after child selection")
	}
}

func TestStageTransitions(t *testing.T) {
	session := mustSession(t)

	if err := session.ProceedToAddOns(); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
	if err := session.ToggleAddOn("a1"); !errors.Is(err, ErrStage) {
		t.Fatalf("expected ErrStage before add-on stage, got %v", err)
	}

	completeSelection(t, session)
	if err := session.ProceedToAddOns(); err != nil {
		t.Fatalf("ProceedToAddOns returned error: %v", err)
	}
	if err := session.SelectOption("f1", "o-a2"); !errors.Is(err, ErrStage) {
		t.Fatalf("expected no backward transition to field selection, got %v", err)
	}

	if err := session.ProceedToReview(); err != nil {
		t.Fatalf("ProceedToReview returned error: %v", err)
	}
	if got := session.Stage(); got != StageReviewReady {
		t.Fatalf("unexpected stage %q", got)
	}
}

func TestSnapshotClosesSession(t *testing.T) {
	session := mustSession(t)
	completeSelection(t, session)
	if err := session.ProceedToAddOns(); err != nil {
		t.Fatalf("ProceedToAddOns returned error: %v", err)
	}
	if err := session.ToggleAddOn("a1"); err != nil {
		t.Fatalf("ToggleAddOn returned error: %v", err)
	}
	if err := session.ProceedToReview(); err != nil {
		t.Fatalf("ProceedToReview returned error: %v", err)
	}

	entry, err := session.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot returned error: %v", err)
	}
	if entry.ProductCode != "[A1][C1][B1][K]" {
		t.Fatalf("unexpected snapshot product code %q", entry.ProductCode)
	}
	if entry.Quantity != 1 {
		t.Fatalf("expected default quantity 1, got %d", entry.Quantity)
	}
	if got := entry.UnitTotal(); got != 10750+1500 {
		t.Fatalf("unexpected snapshot unit total %d", got)
	}
	if len(entry.Selections) != 3 || len(entry.AddOns) != 1 {
		t.Fatalf("unexpected snapshot lines: %d selections, %d add-ons", len(entry.Selections), len(entry.AddOns))
	}

	if _, err := session.Snapshot(); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed on reuse, got %v", err)
	}
}

func completeSelection(t *testing.T, session *Session) {
	t.Helper()
	for fieldID, optionID := range map[string]string{"f1": "o-a1", "f1c": "o-c1", "f2": "o-b1"} {
		if err := session.SelectOption(fieldID, optionID); err != nil {
			t.Fatalf("SelectOption(%s) returned error: %v", fieldID, err)
		}
	}
}
