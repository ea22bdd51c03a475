package workflow

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tOgg1/approvalctl/internal/models"
)

const sampleFile = `
name: Purchase over 50k
description: Large purchases
condition:
  field: amount
  operator: ">"
  value: 50000
escalation_hours: 24
levels:
  - role: Manager
  - role: Finance
`

func TestReadDraft(t *testing.T) {
	d, err := ReadDraft(strings.NewReader(sampleFile))
	require.NoError(t, err)

	def, err := d.ToDefinition()
	require.NoError(t, err)
	require.Equal(t, "Purchase over 50k", def.Name)
	require.Equal(t, "amount > 50000", def.Condition())
	require.Equal(t, 24, def.EscalationHours)
	require.Equal(t, []models.ApprovalLevel{{LevelNo: 1, Role: "Manager"}, {LevelNo: 2, Role: "Finance"}}, def.ApprovalLevels)
}

func TestReadDraftMissingValuesSurfaceInValidation(t *testing.T) {
	d, err := ReadDraft(strings.NewReader("name: Partial\nlevels: []\n"))
	require.NoError(t, err)

	fields := validationFields(t, ValidateForSubmit(d))
	require.ElementsMatch(t, []string{"conditionValue", "escalationHours", "approvalLevels"}, fields)
}

func TestReadDraftRejectsUnknownKeys(t *testing.T) {
	_, err := ReadDraft(strings.NewReader("name: x\nthreshold: 5\n"))
	require.ErrorContains(t, err, "failed to parse workflow file")
}

func TestReadDraftEmpty(t *testing.T) {
	_, err := ReadDraft(strings.NewReader(""))
	require.ErrorContains(t, err, "empty")
}

func TestWriteThenLoadRoundTrip(t *testing.T) {
	def := &models.WorkflowDefinition{
		ID:                4,
		Name:              "Leave",
		ConditionField:    "leaveDays",
		ConditionOperator: models.OperatorGreater,
		ConditionValue:    3,
		EscalationHours:   12,
		ApprovalLevels: []models.ApprovalLevel{
			{LevelNo: 2, Role: "Finance"},
			{LevelNo: 1, Role: "Manager"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteFile(&buf, def))
	require.Contains(t, buf.String(), "escalation_hours: 12")

	path := filepath.Join(t.TempDir(), "leave.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	d, err := LoadDraftFile(path)
	require.NoError(t, err)
	got, err := d.ToDefinition()
	require.NoError(t, err)

	require.Equal(t, def.ID, got.ID)
	require.Equal(t, def.Condition(), got.Condition())
	require.Equal(t, []string{"Manager", "Finance"}, d.LevelRoles())
}

func TestLoadDraftFileMissing(t *testing.T) {
	_, err := LoadDraftFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorContains(t, err, "failed to open workflow file")
}
