package gymplan

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrValidation         = errors.New("validation failed")
)

// NotFoundError means a referenced entity does not exist. The caller can fix it,
// it is never retried automatically.
type NotFoundError struct {
	Entity string
	Key    string
}

func NotFound(entity string, keyvals ...any) *NotFoundError {
	return &NotFoundError{Entity: entity, Key: formatKey(keyvals)}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found [%s]", e.Entity, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ConflictError means a uniqueness constraint would be broken.
type ConflictError struct {
	Entity string
	Key    string
}

func Conflict(entity string, keyvals ...any) *ConflictError {
	return &ConflictError{Entity: entity, Key: formatKey(keyvals)}
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s conflict [%s]", e.Entity, e.Key)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// Rule names one of the plan/actual consistency rules checked on every workout set write.
type Rule string

const (
	// RuleNumberAgreement - workout set number equals its planned set number.
	RuleNumberAgreement Rule = "A"
	// RuleLineageAgreement - workout exercise and planned set point at the same exercise slot.
	RuleLineageAgreement Rule = "B"
	// RuleBoundedCardinality - logged sets never outnumber planned sets of a slot.
	RuleBoundedCardinality Rule = "C"
)

// InvariantViolation is a broken caller contract, not bad user input.
// It must not be retried without fixing the call.
type InvariantViolation struct {
	Rule   Rule
	Detail string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant %s violated: %s", e.Rule, e.Detail)
}

func (e *InvariantViolation) Is(target error) bool {
	return target == ErrInvariantViolation
}

type ValidationError struct {
	Field  string
	Reason string
}

func Invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ViolatedRule returns the rule carried by err, if err is an InvariantViolation.
func ViolatedRule(err error) (Rule, bool) {
	var iv *InvariantViolation
	if errors.As(err, &iv) {
		return iv.Rule, true
	}
	return "", false
}

func formatKey(keyvals []any) string {
	if len(keyvals) == 1 {
		return fmt.Sprint(keyvals[0])
	}
	parts := make([]string, 0, len(keyvals)/2+1)
	for i := 0; i+1 < len(keyvals); i += 2 {
		parts = append(parts, fmt.Sprintf("%v=%v", keyvals[i], keyvals[i+1]))
	}
	if len(keyvals)%2 == 1 && len(keyvals) > 1 {
		parts = append(parts, fmt.Sprint(keyvals[len(keyvals)-1]))
	}
	return strings.Join(parts, " ")
}
