package fs

import "errors"

var (
	ErrAccessDenied      = errors.New("access denied")
	ErrNoAccess          = errors.New("no root granted")
	ErrPathNotFound      = errors.New("path not found")
	ErrEnumerationFailed = errors.New("enumeration failed")
	ErrReadFailed        = errors.New("read failed")
	ErrUnsupported       = errors.New("unsupported operation")

	// ErrEntrySkipped marks a single entry that could not be described.
	// Listings drop the entry and carry on.
	ErrEntrySkipped = errors.New("entry skipped")
)

type wrapError struct {
	underlying error
	msg        string
	cause      error
}

var _ error = (*wrapError)(nil)

func newError(underlying error, msg string, cause error) error {
	return &wrapError{underlying: underlying, msg: msg, cause: cause}
}

func (err *wrapError) Error() string {
	if err == nil {
		return "(*wrapError)(nil)"
	}
	message := err.underlying.Error() + ": " + err.msg
	if err.cause != nil {
		message += ": " + err.cause.Error()
	}
	return message
}

func (err *wrapError) Unwrap() []error {
	if err.cause == nil {
		return []error{err.underlying}
	}
	return []error{err.underlying, err.cause}
}
