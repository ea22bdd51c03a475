package submission

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tOgg1/approvalctl/internal/models"
)

func purchaseWorkflow() *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		ID:                7,
		Name:              "Purchase",
		ConditionField:    "amount",
		ConditionOperator: models.OperatorGreater,
		ConditionValue:    50000,
		EscalationHours:   24,
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		field string
		want  Kind
	}{
		{"amount", KindPurchase},
		{"AMOUNT", KindPurchase},
		{" Amount ", KindPurchase},
		{"leaveDays", KindLeave},
		{"LEAVEDAYS", KindLeave},
		{"leave", KindLeave},
	}
	for _, tt := range tests {
		spec, err := Classify(tt.field)
		require.NoError(t, err, tt.field)
		require.Equal(t, tt.want, spec.Kind, tt.field)
	}

	_, err := Classify("distance")
	require.ErrorIs(t, err, ErrUnsupportedCondition)
	_, err = Classify("")
	require.ErrorIs(t, err, ErrUnsupportedCondition)
}

func TestKindFields(t *testing.T) {
	purchase, err := Classify("amount")
	require.NoError(t, err)
	require.Equal(t, []string{"amount", "reason"}, purchase.FieldNames())
	require.Equal(t, "amount", purchase.CeilingField)

	leave, err := Classify("leaveDays")
	require.NoError(t, err)
	require.Equal(t, []string{"leaveDays", "fromDate", "reason"}, leave.FieldNames())
	require.Equal(t, "leaveDays", leave.CeilingField)

	require.Len(t, Kinds(), 2)
}

func TestCheckCeiling(t *testing.T) {
	require.NoError(t, CheckCeiling("50000", 50000))
	require.NoError(t, CheckCeiling(" 12.5 ", 50000))
	require.ErrorIs(t, CheckCeiling("", 50000), models.ErrRequired)
	require.ErrorIs(t, CheckCeiling("abc", 50000), models.ErrNotNumeric)
	require.ErrorIs(t, CheckCeiling("NaN", 50000), models.ErrNotNumeric)

	err := CheckCeiling("60000", 50000)
	require.ErrorIs(t, err, models.ErrCeilingExceeded)
	require.Contains(t, err.Error(), "60000 is above 50000")
}

func TestFormBlocksAmountAboveCeiling(t *testing.T) {
	form, err := NewForm(purchaseWorkflow())
	require.NoError(t, err)

	err = form.Set("amount", "60000")
	require.ErrorIs(t, err, models.ErrCeilingExceeded)
	require.False(t, form.CanSubmit())

	payload, err := form.Submit(3)
	require.Nil(t, payload)
	require.ErrorIs(t, err, models.ErrCeilingExceeded)

	// The value survives so it can be corrected.
	require.Equal(t, "60000", form.Value("amount"))

	require.NoError(t, form.Set("amount", "45000"))
	require.NoError(t, form.Set("reason", "laptops"))
	require.True(t, form.CanSubmit())

	payload, err = form.Submit(3)
	require.NoError(t, err)
	require.Equal(t, &models.SubmitPayload{
		WorkflowID:  7,
		InitiatorID: 3,
		Data:        map[string]any{"amount": float64(45000), "reason": "laptops"},
	}, payload)
}

func TestFormLeave(t *testing.T) {
	def := purchaseWorkflow()
	def.ConditionField = "leaveDays"
	def.ConditionValue = 5

	form, err := NewForm(def)
	require.NoError(t, err)
	require.Equal(t, KindLeave, form.Kind().Kind)

	require.NoError(t, form.Set("leaveDays", "3"))
	require.Error(t, form.Set("fromDate", "next monday"))
	require.False(t, form.CanSubmit())

	require.NoError(t, form.Set("fromDate", "2026-11-02"))
	payload, err := form.Submit(9)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"leaveDays": float64(3), "fromDate": "2026-11-02"}, payload.Data)
}

func TestFormRejectsUnknownField(t *testing.T) {
	form, err := NewForm(purchaseWorkflow())
	require.NoError(t, err)
	require.ErrorIs(t, form.Set("leaveDays", "2"), ErrUnknownField)
}

func TestFormRequiresCeilingField(t *testing.T) {
	form, err := NewForm(purchaseWorkflow())
	require.NoError(t, err)
	require.NoError(t, form.Set("reason", "chairs"))

	_, err = form.Submit(1)
	list, ok := err.(*models.ValidationErrors)
	require.True(t, ok)
	require.Equal(t, []string{"amount"}, list.Fields())
}

func TestNewFormUnsupported(t *testing.T) {
	def := purchaseWorkflow()
	def.ConditionField = "distance"
	_, err := NewForm(def)
	require.ErrorIs(t, err, ErrUnsupportedCondition)

	_, err = NewForm(nil)
	require.Error(t, err)
}
