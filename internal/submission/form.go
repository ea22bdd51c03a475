package submission

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tOgg1/approvalctl/internal/models"
)

// ErrUnknownField is returned when setting a field the kind does not have.
var ErrUnknownField = errors.New("unknown field")

const dateLayout = "2006-01-02"

// CheckCeiling is the single comparison behind both the live and the
// submit-time check: value must be present, numeric and not above ceiling.
func CheckCeiling(value string, ceiling float64) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return models.ErrRequired
	}
	n, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return models.ErrNotNumeric
	}
	if n > ceiling {
		return fmt.Errorf("%w: %s is above %s", models.ErrCeilingExceeded,
			strconv.FormatFloat(n, 'f', -1, 64), strconv.FormatFloat(ceiling, 'f', -1, 64))
	}
	return nil
}

// Form collects the inputs of one request against one workflow.
type Form struct {
	workflow models.WorkflowDefinition
	spec     KindSpec
	values   map[string]string
}

// NewForm derives the form for a workflow, failing fast for condition
// fields outside the supported kinds.
func NewForm(def *models.WorkflowDefinition) (*Form, error) {
	if def == nil {
		return nil, errors.New("workflow is required")
	}
	spec, err := Classify(def.ConditionField)
	if err != nil {
		return nil, err
	}
	return &Form{workflow: *def, spec: spec, values: make(map[string]string)}, nil
}

func (f *Form) Kind() KindSpec { return f.spec }

func (f *Form) Fields() []Field { return f.spec.Fields }

// Ceiling is the workflow's condition value.
func (f *Form) Ceiling() float64 { return f.workflow.ConditionValue }

func (f *Form) WorkflowID() int64 { return f.workflow.ID }

// Set stores a value and returns the live check for that field. The value
// is kept even when it fails so the user can correct it.
func (f *Form) Set(name, value string) error {
	field, ok := f.spec.Field(name)
	if !ok {
		return fmt.Errorf("%w %q for %s requests", ErrUnknownField, name, f.spec.Kind)
	}
	f.values[name] = value
	return f.check(field, value)
}

// Value returns the current raw value of a field.
func (f *Form) Value(name string) string {
	return f.values[name]
}

// Values returns a copy of the raw values.
func (f *Form) Values() map[string]string {
	out := make(map[string]string, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

func (f *Form) check(field Field, value string) error {
	if field.Name == f.spec.CeilingField {
		return CheckCeiling(value, f.workflow.ConditionValue)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if field.Numeric {
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return models.ErrNotNumeric
		}
	}
	if field.Date {
		if _, err := time.Parse(dateLayout, value); err != nil {
			return fmt.Errorf("must be a date (YYYY-MM-DD)")
		}
	}
	return nil
}

// Validate re-runs every field check.
func (f *Form) Validate() error {
	validation := &models.ValidationErrors{}
	for _, field := range f.spec.Fields {
		validation.Add(field.Name, f.check(field, f.values[field.Name]))
	}
	return validation.Err()
}

// CanSubmit reports whether Submit would succeed.
func (f *Form) CanSubmit() bool {
	return f.Validate() == nil
}

// Submit validates again and builds the request payload. On failure the
// form keeps its values.
func (f *Form) Submit(initiatorID int64) (*models.SubmitPayload, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	data := make(map[string]any, len(f.values))
	for _, field := range f.spec.Fields {
		value := strings.TrimSpace(f.values[field.Name])
		if value == "" {
			continue
		}
		if field.Numeric {
			n, _ := strconv.ParseFloat(value, 64)
			data[field.Name] = n
			continue
		}
		data[field.Name] = value
	}

	return &models.SubmitPayload{
		WorkflowID:  f.workflow.ID,
		InitiatorID: initiatorID,
		Data:        data,
	}, nil
}
