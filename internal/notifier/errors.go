package notifier

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is matched by errors for messages or channels that no longer exist.
var ErrNotFound = errors.New("not found")

// Discord JSON error codes for missing resources.
const (
	codeUnknownChannel = 10003
	codeUnknownMessage = 10008
)

// APIError is a non-2xx response from the REST API.
type APIError struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("discord api: %d %s (code %d)", e.Status, e.Message, e.Code)
	}
	return fmt.Sprintf("discord api: %d %s", e.Status, http.StatusText(e.Status))
}

// Is lets errors.Is(err, ErrNotFound) match missing-resource responses.
func (e *APIError) Is(target error) bool {
	if target != ErrNotFound {
		return false
	}
	return e.Status == http.StatusNotFound || e.Code == codeUnknownMessage || e.Code == codeUnknownChannel
}

// clientError reports whether err is a 4xx response, which says nothing about
// the health of the remote service.
func clientError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 400 && apiErr.Status < 500
	}
	return false
}
