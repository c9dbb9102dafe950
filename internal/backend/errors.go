package backend

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a lookup yields no record.
var ErrNotFound = errors.New("backend: not found")

// APIError is a failed upstream call. Message is the API's own text and is
// only meant for logs.
type APIError struct {
	Endpoint string
	Status   int
	Code     int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: %s: status %d code %d: %s", e.Endpoint, e.Status, e.Code, e.Message)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
