package workflow

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/tOgg1/approvalctl/internal/models"
)

// Condition is a workflow's trigger triplet.
type Condition struct {
	Field    string
	Operator models.ConditionOperator
	Value    float64
}

// ConditionOf extracts the trigger of a definition.
func ConditionOf(def *models.WorkflowDefinition) Condition {
	return Condition{Field: def.ConditionField, Operator: def.ConditionOperator, Value: def.ConditionValue}
}

func (c Condition) String() string {
	return models.ConditionString(c.Field, c.Operator, c.Value)
}

// Evaluator checks request values against workflow conditions. Programs are
// compiled once per operator from the operator itself, never from the
// display string.
type Evaluator struct {
	env      *cel.Env
	mu       sync.RWMutex
	programs map[models.ConditionOperator]cel.Program
}

// NewEvaluator builds the CEL environment.
func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("value", cel.DoubleType),
		cel.Variable("threshold", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	return &Evaluator{env: env, programs: make(map[models.ConditionOperator]cel.Program)}, nil
}

func (e *Evaluator) program(op models.ConditionOperator) (cel.Program, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidOperator, op)
	}

	e.mu.RLock()
	prg, ok := e.programs[op]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, ok := e.programs[op]; ok {
		return prg, nil
	}
	ast, issues := e.env.Compile("value " + string(op) + " threshold")
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compile error: %w", issues.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("CEL program error: %w", err)
	}
	e.programs[op] = prg
	return prg, nil
}

// Matches reports whether value triggers the condition.
func (e *Evaluator) Matches(c Condition, value float64) (bool, error) {
	prg, err := e.program(c.Operator)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(map[string]any{
		"value":     value,
		"threshold": c.Value,
	})
	if err != nil {
		return false, fmt.Errorf("CEL eval error: %w", err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition result is not boolean")
	}
	return matched, nil
}

// Match filters definitions whose condition field equals field
// (case-insensitively) and whose condition value triggers.
func (e *Evaluator) Match(defs []models.WorkflowDefinition, field string, value float64) ([]models.WorkflowDefinition, error) {
	out := make([]models.WorkflowDefinition, 0)
	for i := range defs {
		def := &defs[i]
		if field != "" && !sameField(def.ConditionField, field) {
			continue
		}
		ok, err := e.Matches(ConditionOf(def), value)
		if err != nil {
			return nil, fmt.Errorf("workflow %d: %w", def.ID, err)
		}
		if ok {
			out = append(out, *def)
		}
	}
	return out, nil
}

var (
	defaultEvaluator     *Evaluator
	defaultEvaluatorErr  error
	defaultEvaluatorOnce sync.Once
)

// Matches evaluates with a shared evaluator.
func (c Condition) Matches(value float64) (bool, error) {
	defaultEvaluatorOnce.Do(func() {
		defaultEvaluator, defaultEvaluatorErr = NewEvaluator()
	})
	if defaultEvaluatorErr != nil {
		return false, defaultEvaluatorErr
	}
	return defaultEvaluator.Matches(c, value)
}

func sameField(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
