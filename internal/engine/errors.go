package engine

import (
	"errors"
	"fmt"
)

// RepairErrorCode categorizes repair failures.
type RepairErrorCode string

const (
	// ErrCodeAmbiguousDate indicates a payload date that could be read
	// two ways; the event is tagged needs-review and left untouched.
	ErrCodeAmbiguousDate RepairErrorCode = "AMBIGUOUS_DATE"

	// ErrCodeConcurrencyConflict indicates a conditional patch that
	// failed even after the single refetch-and-retry.
	ErrCodeConcurrencyConflict RepairErrorCode = "CONCURRENCY_CONFLICT"

	// ErrCodeReadOnlyTarget indicates the calendar refused the write.
	ErrCodeReadOnlyTarget RepairErrorCode = "READ_ONLY_TARGET"

	// ErrCodeTemplateConfig indicates a malformed title template. Fatal
	// for the offending rule for the remainder of the run; never a
	// per-event failure.
	ErrCodeTemplateConfig RepairErrorCode = "TEMPLATE_CONFIG"
)

// RepairError is a structured error carrying enough context to act on
// without re-deriving it from logs.
type RepairError struct {
	Code    RepairErrorCode
	Message string

	CalendarID string
	EventID    string
	RuleID     string
}

// Error implements the error interface.
func (e *RepairError) Error() string {
	switch {
	case e.RuleID != "" && e.EventID != "":
		return fmt.Sprintf("%s: %s (rule=%s, event=%s)", e.Code, e.Message, e.RuleID, e.EventID)
	case e.RuleID != "":
		return fmt.Sprintf("%s: %s (rule=%s)", e.Code, e.Message, e.RuleID)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// IsTemplateConfigError reports whether err is a template configuration
// error. Uses errors.As to handle wrapping.
func IsTemplateConfigError(err error) bool {
	var re *RepairError
	if errors.As(err, &re) {
		return re.Code == ErrCodeTemplateConfig
	}
	return false
}

// newTemplateError builds the fatal-for-this-rule configuration error.
func newTemplateError(ruleID, message string) *RepairError {
	return &RepairError{
		Code:    ErrCodeTemplateConfig,
		Message: message,
		RuleID:  ruleID,
	}
}
