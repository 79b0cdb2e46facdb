package ports

import (
	"errors"
	"fmt"

	"kycstatus/internal/kyc/domain"
)

// ErrorCategory normalizes upstream failures for logs and metrics.
// The resolution core does not branch on it.
type ErrorCategory string

const (
	// CategoryTimeout indicates the upstream took too long to respond
	CategoryTimeout ErrorCategory = "timeout"

	// CategoryBadData indicates the upstream returned malformed data
	CategoryBadData ErrorCategory = "bad_data"

	// CategoryOutage indicates the upstream is unavailable
	CategoryOutage ErrorCategory = "provider_outage"

	// CategoryRateLimited indicates the upstream rejected us for request volume
	CategoryRateLimited ErrorCategory = "rate_limited"

	// CategoryInternal indicates anything else
	CategoryInternal ErrorCategory = "internal"
)

// LookupError wraps a failed KYC lookup for one client.
type LookupError struct {
	Category   ErrorCategory
	ClientID   domain.ClientID
	Message    string
	Underlying error
	Retryable  bool
}

// Error implements the error interface
func (e *LookupError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("kyc lookup for client %d [%s]: %s: %v", e.ClientID, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("kyc lookup for client %d [%s]: %s", e.ClientID, e.Category, e.Message)
}

// Unwrap supports error unwrapping
func (e *LookupError) Unwrap() error {
	return e.Underlying
}

// NewLookupError creates a categorized lookup error.
func NewLookupError(category ErrorCategory, id domain.ClientID, message string, underlying error) *LookupError {
	retryable := category == CategoryTimeout ||
		category == CategoryOutage ||
		category == CategoryRateLimited

	return &LookupError{
		Category:   category,
		ClientID:   id,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

// IsRetryable reports whether err is a LookupError worth retrying.
func IsRetryable(err error) bool {
	var le *LookupError
	if errors.As(err, &le) {
		return le.Retryable
	}
	return false
}

// CategoryOf extracts the category from err, defaulting to CategoryInternal.
func CategoryOf(err error) ErrorCategory {
	var le *LookupError
	if errors.As(err, &le) {
		return le.Category
	}
	return CategoryInternal
}
