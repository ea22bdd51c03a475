package workflow

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/tOgg1/approvalctl/internal/models"
	"gopkg.in/yaml.v3"
)

// File is the on-disk YAML form of a workflow.
type File struct {
	ID              int64         `yaml:"id,omitempty"`
	Name            string        `yaml:"name"`
	Description     string        `yaml:"description,omitempty"`
	Condition       FileCondition `yaml:"condition"`
	EscalationHours *int          `yaml:"escalation_hours"`
	Levels          []FileLevel   `yaml:"levels"`
}

// FileCondition is the condition block of a workflow file.
type FileCondition struct {
	Field    string                   `yaml:"field"`
	Operator models.ConditionOperator `yaml:"operator"`
	Value    *float64                 `yaml:"value"`
}

// FileLevel is one level entry. Level numbers come from list order.
type FileLevel struct {
	Role string `yaml:"role"`
}

// ReadDraft decodes a workflow file into a draft. Unknown keys are errors;
// missing values are left empty for ValidateForSubmit to report.
func ReadDraft(r io.Reader, opts ...Option) (*Draft, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("workflow file is empty")
		}
		return nil, fmt.Errorf("failed to parse workflow file: %w", err)
	}

	d := NewDraft(opts...)
	d.ID = f.ID
	d.Name = f.Name
	d.Description = f.Description
	if f.Condition.Field != "" {
		d.ConditionField = f.Condition.Field
	}
	if f.Condition.Operator != "" {
		d.ConditionOperator = f.Condition.Operator
	}
	if f.Condition.Value != nil {
		d.ConditionValue = formatNumber(*f.Condition.Value)
	}
	if f.EscalationHours != nil {
		d.EscalationHours = strconv.Itoa(*f.EscalationHours)
	}
	d.Levels = make([]LevelDraft, 0, len(f.Levels))
	for _, level := range f.Levels {
		d.Levels = append(d.Levels, LevelDraft{Key: uuid.NewString(), Role: level.Role})
	}
	return d, nil
}

// LoadDraftFile reads a draft from path.
func LoadDraftFile(path string, opts ...Option) (*Draft, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workflow file: %w", err)
	}
	defer fh.Close()
	return ReadDraft(fh, opts...)
}

// ToFile converts a definition into its file form.
func ToFile(def *models.WorkflowDefinition) File {
	value := def.ConditionValue
	hours := def.EscalationHours
	f := File{
		ID:          def.ID,
		Name:        def.Name,
		Description: def.Description,
		Condition: FileCondition{
			Field:    def.ConditionField,
			Operator: def.ConditionOperator,
			Value:    &value,
		},
		EscalationHours: &hours,
	}
	for _, level := range def.SortedLevels() {
		f.Levels = append(f.Levels, FileLevel{Role: level.Role})
	}
	return f
}

// WriteFile encodes a definition as YAML.
func WriteFile(w io.Writer, def *models.WorkflowDefinition) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(ToFile(def)); err != nil {
		return fmt.Errorf("failed to encode workflow: %w", err)
	}
	return enc.Close()
}
