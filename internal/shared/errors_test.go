package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidationErrorFormatsSortedFields(t *testing.T) {
	verr := NewValidationError("date", "required")
	verr.Add("amount", "must be greater than zero")
	verr.Add("amount", "ignored")

	require.Equal(t, "validation failed: amount: must be greater than zero; date: required", verr.Error())
	require.ErrorIs(t, verr, ErrValidation)
	require.Nil(t, (&ValidationError{}).OrNil())
}

func TestRuleViolationKeepsMessageVerbatim(t *testing.T) {
	err := fmt.Errorf("loans: disburse: %w", Rule("Insufficient cash balance"))

	var rule *RuleViolation
	require.True(t, errors.As(err, &rule))
	require.Equal(t, "Insufficient cash balance", rule.Message)
	require.ErrorIs(t, err, ErrRuleViolation)
}

func TestNotFoundfWrapsSentinel(t *testing.T) {
	err := NotFoundf("members: member")
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, "members: member not found", err.Error())
}
