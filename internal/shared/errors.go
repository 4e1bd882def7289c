package shared

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrRuleViolation marks a business-rule breach with a user-facing reason.
	ErrRuleViolation = errors.New("business rule violation")
	// ErrConsistency marks a bookkeeping invariant breach; the operation was rolled back.
	ErrConsistency = errors.New("consistency violation")
)

// ValidationError carries field-level detail for malformed input.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError returns a ValidationError holding a single field message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// Add records a field message. The first message per field wins.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; exists {
		return
	}
	e.Fields[field] = message
}

// OrNil returns nil when no field failed.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// RuleViolation is a business-rule breach whose Message is shown to the caller verbatim.
type RuleViolation struct {
	Message string
}

// Rule builds a RuleViolation.
func Rule(message string) error {
	return &RuleViolation{Message: message}
}

func (e *RuleViolation) Error() string { return e.Message }

func (e *RuleViolation) Unwrap() error { return ErrRuleViolation }

// ConsistencyError reports a debit/credit or allocation-sum mismatch.
type ConsistencyError struct {
	Reason string
}

// Inconsistent builds a ConsistencyError with a formatted reason.
func Inconsistent(format string, args ...any) error {
	return &ConsistencyError{Reason: fmt.Sprintf(format, args...)}
}

func (e *ConsistencyError) Error() string { return "consistency: " + e.Reason }

func (e *ConsistencyError) Unwrap() error { return ErrConsistency }

// NotFoundf wraps ErrNotFound with a subject, e.g. NotFoundf("members: member").
func NotFoundf(subject string) error {
	return fmt.Errorf("%s %w", subject, ErrNotFound)
}

// RuleMessage returns the message of a RuleViolation in err's chain, or "".
func RuleMessage(err error) string {
	var rule *RuleViolation
	if errors.As(err, &rule) {
		return rule.Message
	}
	return ""
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
