package waterfalls

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport marks a request that never produced an HTTP response.
	ErrTransport = errors.New("transport error")
	// ErrCodec marks a malformed consensus-encoded payload.
	ErrCodec = errors.New("invalid consensus encoding")
	// ErrHex marks malformed hex text.
	ErrHex = errors.New("invalid hex")
	// ErrDecode marks malformed or unexpected JSON.
	ErrDecode = errors.New("invalid json response")
	// ErrParse marks malformed numeric text.
	ErrParse = errors.New("invalid number")
	// ErrInvalidConfig marks a client configuration rejected at construction.
	ErrInvalidConfig = errors.New("invalid client config")
)

// HTTPResponseError is returned when the server answered with a non-success
// status that was not retried, or kept answering with a retryable status
// until retries ran out.
type HTTPResponseError struct {
	Status  int
	Message string
}

func (e *HTTPResponseError) Error() string {
	return fmt.Sprintf("http response status %d: %s", e.Status, e.Message)
}

// NotFoundError is returned by lookups that require the object to exist.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.ID)
}

// IsHTTPStatus reports whether err carries an HTTP response with status.
func IsHTTPStatus(err error, status int) bool {
	var httpErr *HTTPResponseError
	return errors.As(err, &httpErr) && httpErr.Status == status
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
