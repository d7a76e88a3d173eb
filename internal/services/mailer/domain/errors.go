package domain

import "errors"

var (
	// ErrSenderNotConfigured indicates the handler has no email transport.
	ErrSenderNotConfigured = errors.New("email sender is not configured")
	// ErrComposerNotConfigured indicates the handler cannot build messages.
	ErrComposerNotConfigured = errors.New("message composer is not configured")
	// ErrSenderAddressRequired indicates the From address is missing.
	ErrSenderAddressRequired = errors.New("sender address is required")
	// ErrRecipientRequired indicates no usable recipient was configured.
	ErrRecipientRequired = errors.New("at least one recipient is required")
	// ErrIDGeneratorNotConfigured indicates an ID generator is required.
	ErrIDGeneratorNotConfigured = errors.New("message id generator is not configured")
)

type permanentError struct {
	cause error
}

func (e permanentError) Error() string {
	if e.cause == nil {
		return "permanent error"
	}
	return e.cause.Error()
}

func (e permanentError) Unwrap() error {
	return e.cause
}

// Permanent marks a delivery error as one that repeating the same message
// cannot fix, such as a rejected address.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	if IsPermanent(err) {
		return err
	}
	return permanentError{cause: err}
}

// IsPermanent reports whether err was explicitly marked as non-retryable.
func IsPermanent(err error) bool {
	var target permanentError
	return errors.As(err, &target)
}
