// Package submission builds request forms from a workflow's condition and
// enforces the workflow ceiling before anything reaches the network.
package submission

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// ErrUnsupportedCondition is returned for condition fields outside the
// known kinds.
var ErrUnsupportedCondition = errors.New("unsupported workflow condition")

// Kind names a supported condition family.
type Kind string

const (
	KindPurchase Kind = "purchase"
	KindLeave    Kind = "leave"
)

// Field is one input of a request form.
type Field struct {
	Name    string
	Label   string
	Numeric bool
	Date    bool
}

// KindSpec declares a kind's inputs and which one is held to the ceiling.
type KindSpec struct {
	Kind         Kind
	Fields       []Field
	CeilingField string
	aliases      []string
}

var kinds = []KindSpec{
	{
		Kind: KindPurchase,
		Fields: []Field{
			{Name: "amount", Label: "Amount", Numeric: true},
			{Name: "reason", Label: "Reason"},
		},
		CeilingField: "amount",
		aliases:      []string{"amount"},
	},
	{
		Kind: KindLeave,
		Fields: []Field{
			{Name: "leaveDays", Label: "Leave Days", Numeric: true},
			{Name: "fromDate", Label: "From Date", Date: true},
			{Name: "reason", Label: "Reason"},
		},
		CeilingField: "leaveDays",
		aliases:      []string{"leavedays", "leave"},
	},
}

// Kinds returns the supported kinds.
func Kinds() []KindSpec {
	out := make([]KindSpec, len(kinds))
	copy(out, kinds)
	return out
}

var folder = cases.Fold()

func fold(s string) string {
	return folder.String(strings.TrimSpace(s))
}

// Classify maps a workflow condition field onto its kind.
func Classify(conditionField string) (KindSpec, error) {
	key := fold(conditionField)
	for _, spec := range kinds {
		for _, alias := range spec.aliases {
			if key == alias {
				return spec, nil
			}
		}
	}
	return KindSpec{}, fmt.Errorf("%w: condition field %q has no request form", ErrUnsupportedCondition, conditionField)
}

// Field returns the named field of the kind.
func (k KindSpec) Field(name string) (Field, bool) {
	for _, field := range k.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

// FieldNames lists the kind's inputs in form order.
func (k KindSpec) FieldNames() []string {
	names := make([]string, len(k.Fields))
	for i, field := range k.Fields {
		names[i] = field.Name
	}
	return names
}
