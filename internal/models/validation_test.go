package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationMatchesSentinel(t *testing.T) {
	problems := &ValidationErrors{}
	problems.Add("conditionValue", ErrRequired)

	err := problems.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequired)
	assert.NotErrorIs(t, err, ErrInvalidRole)
	assert.Equal(t, "conditionValue: is required", err.Error())
}

func TestValidationFlattensNestedLevels(t *testing.T) {
	level := &ValidationErrors{}
	level.AddMessage("role", "level role is required")
	level.Add("", ErrRequired)

	problems := &ValidationErrors{}
	problems.Add("approvalLevels[0]", level)

	assert.Equal(t, []string{"approvalLevels[0].role", "approvalLevels[0]"}, problems.Fields())
	assert.ErrorIs(t, problems.Err(), ErrRequired)
}

func TestValidationFieldsKeepFirstOccurrence(t *testing.T) {
	problems := &ValidationErrors{}
	problems.Add("name", ErrRequired)
	problems.AddMessage("name", "name is too short")
	problems.AddMessage("ignored", "")
	problems.Add("escalationHours", ErrNotPositive)
	problems.Add("also-ignored", nil)

	assert.Equal(t, []string{"name", "escalationHours"}, problems.Fields())
	assert.True(t, problems.Has("escalationHours"))
	assert.False(t, problems.Has("conditionField"))
	assert.Equal(t, "name: is required; name: name is too short; escalationHours: "+ErrNotPositive.Error(), problems.Error())
}

func TestEmptyValidationIsNil(t *testing.T) {
	assert.NoError(t, (&ValidationErrors{}).Err())

	var nilProblems *ValidationErrors
	assert.NoError(t, nilProblems.Err())
	assert.False(t, nilProblems.Has("name"))
	assert.False(t, errors.Is(nilProblems, ErrRequired))
}
