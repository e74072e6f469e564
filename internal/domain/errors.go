package domain

import "errors"

var (
	// Not found
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrModelNotFound        = errors.New("model not found")

	// Validation
	ErrNoFieldsToUpdate = errors.New("no fields to update")
	ErrEmptyContent     = errors.New("message content is required")
	ErrInvalidRequest   = errors.New("invalid request")

	// Completion provider
	ErrProviderNotConfigured = errors.New("API key not configured")
	ErrUpstream              = errors.New("completion provider error")
	ErrStreamInterrupted     = errors.New("completion stream interrupted")
)

// IsNotFound reports whether err is one of the not-found errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrConversationNotFound) ||
		errors.Is(err, ErrMessageNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrModelNotFound)
}

// IsValidation reports whether err was caused by a bad caller request.
func IsValidation(err error) bool {
	return errors.Is(err, ErrNoFieldsToUpdate) ||
		errors.Is(err, ErrEmptyContent) ||
		errors.Is(err, ErrInvalidRequest)
}
