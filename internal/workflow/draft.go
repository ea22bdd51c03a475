// Package workflow models the create/edit form for approval workflows.
package workflow

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/tOgg1/approvalctl/internal/models"
)

const (
	// DefaultMaxLevels is the product cap on approval levels.
	DefaultMaxLevels = 2

	DefaultConditionField = "amount"
	DefaultOperator       = models.OperatorGreater

	// FirstLevelRole seeds a new draft and backs prefill of level-less records.
	FirstLevelRole = "Manager"
	// NextLevelRole seeds levels added after the first.
	NextLevelRole = "Finance"

	// CreatedBy is stamped on every definition this client writes.
	CreatedBy = "Admin"
)

// LevelDraft is one editable approval level. Key is a stable local handle
// for editing; ID is the backend id, when the level came from a record.
type LevelDraft struct {
	Key  string
	ID   int64
	Role string
}

// Draft mirrors the workflow form. Numeric inputs stay text until submit so
// an empty field is distinguishable from zero.
type Draft struct {
	ID                int64
	Name              string
	Description       string
	ConditionField    string
	ConditionOperator models.ConditionOperator
	ConditionValue    string
	EscalationHours   string
	Levels            []LevelDraft
	Status            string

	maxLevels int
}

// Option configures a Draft.
type Option func(*Draft)

// WithMaxLevels overrides the level cap.
func WithMaxLevels(n int) Option {
	return func(d *Draft) {
		if n > 0 {
			d.maxLevels = n
		}
	}
}

// NewDraft returns the blank create form: condition "amount >", one
// Manager level.
func NewDraft(opts ...Option) *Draft {
	d := &Draft{
		ConditionField:    DefaultConditionField,
		ConditionOperator: DefaultOperator,
		Levels:            []LevelDraft{newLevel(FirstLevelRole)},
		maxLevels:         DefaultMaxLevels,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func newLevel(role string) LevelDraft {
	return LevelDraft{Key: uuid.NewString(), Role: role}
}

// MaxLevels returns the configured cap.
func (d *Draft) MaxLevels() int {
	if d.maxLevels <= 0 {
		return DefaultMaxLevels
	}
	return d.maxLevels
}

// AddResult reports the outcome of AddLevel.
type AddResult int

const (
	Added AddResult = iota
	Capped
)

func (r AddResult) String() string {
	if r == Capped {
		return "capped"
	}
	return "added"
}

// AddLevel appends a level. At the cap the draft is left unchanged and
// Capped is returned.
func (d *Draft) AddLevel() AddResult {
	if len(d.Levels) >= d.MaxLevels() {
		return Capped
	}
	role := NextLevelRole
	if len(d.Levels) == 0 {
		role = FirstLevelRole
	}
	d.Levels = append(d.Levels, newLevel(role))
	return Added
}

// SetLevelRole changes the role of the level with the given key.
func (d *Draft) SetLevelRole(key, role string) bool {
	for i := range d.Levels {
		if d.Levels[i].Key == key {
			d.Levels[i].Role = role
			return true
		}
	}
	return false
}

// RemoveLevel drops the level with the given key.
func (d *Draft) RemoveLevel(key string) bool {
	for i := range d.Levels {
		if d.Levels[i].Key == key {
			d.Levels = append(d.Levels[:i], d.Levels[i+1:]...)
			return true
		}
	}
	return false
}

// Prefill loads an existing definition into an edit draft. Levels follow
// levelNo order; a record without levels gets a single Manager level.
func Prefill(def *models.WorkflowDefinition, opts ...Option) *Draft {
	d := NewDraft(opts...)
	if def == nil {
		return d
	}

	d.ID = def.ID
	d.Name = def.Name
	d.Description = def.Description
	d.Status = def.Status
	if def.ConditionField != "" {
		d.ConditionField = def.ConditionField
	}
	if def.ConditionOperator != "" {
		d.ConditionOperator = def.ConditionOperator
	}
	d.ConditionValue = formatNumber(def.ConditionValue)
	d.EscalationHours = strconv.Itoa(def.EscalationHours)

	levels := def.SortedLevels()
	if len(levels) == 0 {
		d.Levels = []LevelDraft{newLevel(FirstLevelRole)}
		return d
	}
	d.Levels = make([]LevelDraft, 0, len(levels))
	for _, level := range levels {
		d.Levels = append(d.Levels, LevelDraft{Key: uuid.NewString(), ID: level.ID, Role: level.Role})
	}
	return d
}

// ValidateForSubmit returns nil or *models.ValidationErrors naming every
// missing or invalid field.
func ValidateForSubmit(d *Draft) error {
	validation := &models.ValidationErrors{}

	if strings.TrimSpace(d.Name) == "" {
		validation.Add("name", models.ErrRequired)
	}
	if strings.TrimSpace(d.ConditionField) == "" {
		validation.Add("conditionField", models.ErrRequired)
	}
	if !d.ConditionOperator.Valid() {
		validation.Add("conditionOperator", models.ErrInvalidOperator)
	}

	switch value := strings.TrimSpace(d.ConditionValue); {
	case value == "":
		validation.Add("conditionValue", models.ErrRequired)
	default:
		if _, err := parseNumber(value); err != nil {
			validation.Add("conditionValue", models.ErrNotNumeric)
		}
	}

	switch hours := strings.TrimSpace(d.EscalationHours); {
	case hours == "":
		validation.Add("escalationHours", models.ErrRequired)
	default:
		n, err := parseNumber(hours)
		switch {
		case err != nil || n != float64(int(n)):
			validation.Add("escalationHours", models.ErrNotNumeric)
		case n <= 0:
			validation.Add("escalationHours", models.ErrNotPositive)
		}
	}

	if len(d.Levels) == 0 {
		validation.Add("approvalLevels", models.ErrRequired)
	}
	if len(d.Levels) > d.MaxLevels() {
		validation.AddMessage("approvalLevels", "at most "+strconv.Itoa(d.MaxLevels())+" levels")
	}
	for i, level := range d.Levels {
		field := "approvalLevels[" + strconv.Itoa(i) + "].role"
		role := strings.TrimSpace(level.Role)
		switch {
		case role == "":
			validation.Add(field, models.ErrRequired)
		case models.RoleAdmin.Matches(role):
			validation.Add(field, models.ErrPrivilegedRole)
		}
	}

	return validation.Err()
}

// ToDefinition validates the draft and builds the submit payload with
// levels renumbered from 1 in draft order.
func (d *Draft) ToDefinition() (*models.WorkflowDefinition, error) {
	if err := ValidateForSubmit(d); err != nil {
		return nil, err
	}

	value, _ := parseNumber(strings.TrimSpace(d.ConditionValue))
	hours, _ := parseNumber(strings.TrimSpace(d.EscalationHours))

	def := &models.WorkflowDefinition{
		ID:                d.ID,
		Name:              strings.TrimSpace(d.Name),
		Description:       d.Description,
		ConditionField:    strings.TrimSpace(d.ConditionField),
		ConditionOperator: d.ConditionOperator,
		ConditionValue:    value,
		EscalationHours:   int(hours),
		Status:            d.Status,
		CreatedBy:         CreatedBy,
		ApprovalLevels:    make([]models.ApprovalLevel, 0, len(d.Levels)),
	}
	for i, level := range d.Levels {
		def.ApprovalLevels = append(def.ApprovalLevels, models.ApprovalLevel{
			ID:      level.ID,
			LevelNo: i + 1,
			Role:    strings.TrimSpace(level.Role),
		})
	}
	return def, nil
}

// ConditionString renders the draft's display-only condition.
func (d *Draft) ConditionString() string {
	value, err := parseNumber(strings.TrimSpace(d.ConditionValue))
	if err != nil {
		return strings.TrimSpace(strings.Join([]string{d.ConditionField, string(d.ConditionOperator), d.ConditionValue}, " "))
	}
	return models.ConditionString(d.ConditionField, d.ConditionOperator, value)
}

// LevelRoles returns the level roles in order.
func (d *Draft) LevelRoles() []string {
	roles := make([]string, len(d.Levels))
	for i, level := range d.Levels {
		roles[i] = level.Role
	}
	return roles
}

func parseNumber(value string) (float64, error) {
	n, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, models.ErrNotNumeric
	}
	return n, nil
}

func formatNumber(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// SortByName orders definitions by name, then id.
func SortByName(defs []models.WorkflowDefinition) {
	sort.SliceStable(defs, func(i, j int) bool {
		a, b := strings.ToLower(defs[i].Name), strings.ToLower(defs[j].Name)
		if a != b {
			return a < b
		}
		return defs[i].ID < defs[j].ID
	})
}
