package pinballmap

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when the API does not know the requested entity
	ErrNotFound = errors.New("not found")
	// ErrRateLimited is returned when the API kept rejecting requests after all retries
	ErrRateLimited = errors.New("rate limited by api")
)

// StatusError is returned for unexpected HTTP status codes
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("received unexpected status code from api: %d (%s)", e.StatusCode, e.URL)
}

// IsNotFound reports whether err is, or wraps, ErrNotFound
func IsNotFound(err error) bool {
	return errors.Cause(err) == ErrNotFound
}
