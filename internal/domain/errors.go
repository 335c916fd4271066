package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Specific errors below wrap one of these so callers can map
// them with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPolicyViolation   = errors.New("attempt policy violation")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrValidation        = errors.New("validation failed")
)

var (
	// ErrAnswerNotFound is returned for unknown answer ids.
	ErrAnswerNotFound = fmt.Errorf("answer %w", ErrNotFound)
	// ErrLeaderNotFound is returned when a leader is not in the roster.
	ErrLeaderNotFound = fmt.Errorf("leader %w", ErrNotFound)
	// ErrSessionNotFound is returned for unknown drill sessions.
	ErrSessionNotFound = fmt.Errorf("drill session %w", ErrNotFound)

	ErrAttemptLimitReached = fmt.Errorf("%w: maximum attempts reached", ErrPolicyViolation)
	ErrAttemptPending      = fmt.Errorf("%w: previous attempt is awaiting review", ErrPolicyViolation)
	ErrAlreadyApproved     = fmt.Errorf("%w: question already approved", ErrPolicyViolation)
	ErrSessionNotLive      = fmt.Errorf("%w: drill session is not live", ErrPolicyViolation)
	ErrAttemptNotRejected  = fmt.Errorf("%w: previous attempt was not rejected", ErrPolicyViolation)

	ErrAnswerNotPending   = fmt.Errorf("%w: answer is not pending", ErrInvalidTransition)
	ErrSessionAlreadyLive = fmt.Errorf("%w: another drill session is live", ErrInvalidTransition)

	ErrReviewerNotAssigned = fmt.Errorf("%w: reviewer is not assigned to this leader", ErrUnauthorized)

	ErrImmutableField = fmt.Errorf("%w: field cannot change after submission", ErrValidation)
)

func immutable(field string) error {
	return fmt.Errorf("%w: %s", ErrImmutableField, field)
}

// ValidationError describes one rejected input field.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule,omitempty"`
}

// ValidationErrors is a collection of field errors; it matches ErrValidation.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ErrValidation.Error()
	}
	if len(ve) == 1 {
		return fmt.Sprintf("%s: %s %s", ErrValidation, ve[0].Field, ve[0].Message)
	}
	fields := make([]string, 0, len(ve))
	for _, e := range ve {
		fields = append(fields, e.Field)
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(fields, ", "))
}

func (ve ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}
