package crawler

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrInvalidSource is returned when a source cannot be crawled at all.
var ErrInvalidSource = errors.New("invalid source")

// ErrBodyTooLarge is returned when a response body exceeds the configured limit.
var ErrBodyTooLarge = errors.New("response body exceeds max_body_bytes")

// StatusError reports a non-success HTTP status.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}
