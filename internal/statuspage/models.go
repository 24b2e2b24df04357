// Package statuspage normalizes third-party status page payloads into
// a uniform snapshot of page metadata and component statuses.
package statuspage

import (
	"errors"
	"fmt"
	"net/http"
)

// UnknownValue marks page fields that could not be read from the payload.
const UnknownValue = "?"

// Status page errors.
var (
	ErrServiceNotFound = errors.New("service not found")
)

// PageInfo describes the status page itself.
type PageInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	TimeZone  string `json:"time_zone"`
	UpdatedAt string `json:"updated_at"`
	URL       string `json:"url"`
}

// Component is one monitored sub-system of a service.
type Component struct {
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	Name      string `json:"name"`

	// Status is the provider's own vocabulary (e.g. "operational",
	// "partial_outage"). It is passed through untouched.
	Status   string `json:"status"`
	Position int    `json:"position"`
	ID       string `json:"id"`
	PageID   string `json:"page_id"`

	// Optional fields. Absent values keep their zero value.
	StartDate          *string `json:"start_date"`
	Description        *string `json:"description"`
	Group              bool    `json:"group"`
	GroupID            *string `json:"group_id"`
	Showcase           bool    `json:"showcase"`
	OnlyShowIfDegraded bool    `json:"only_show_if_degraded"`
}

// Snapshot is the normalized result of a single fetch.
type Snapshot struct {
	Page       PageInfo    `json:"page"`
	Components []Component `json:"components"`
}

// NotFoundError reports a service name that is not in the registry.
// It matches ErrServiceNotFound with errors.Is.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("unknown service %q", e.Name)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrServiceNotFound
}

// TransportError reports a failed request to a status page.
type TransportError struct {
	URL string

	// StatusCode is the HTTP status returned, or 0 when no response arrived.
	StatusCode int

	Err error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("request to %s failed: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	if e.Err != nil {
		return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
	}
	return "request to " + e.URL + " failed"
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// FormatError reports a payload that does not have the expected shape.
// Detail may reference payload structure and is meant for logs only.
type FormatError struct {
	Detail string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return "response format error: " + e.Detail + ": " + e.Err.Error()
	}
	return "response format error: " + e.Detail
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

func formatErrorf(format string, args ...interface{}) *FormatError {
	return &FormatError{Detail: fmt.Sprintf(format, args...)}
}

// User-facing messages.
const (
	MessageRequestError  = "Service Status Request Error"
	MessageFormatError   = "Response Format Error"
	MessageInternalError = "Service Status Error"
)

// UserMessage renders err as a short message that is safe to show to an
// end user. Format error details are never included.
func UserMessage(err error) string {
	var transportErr *TransportError
	var formatErr *FormatError
	var notFoundErr *NotFoundError

	switch {
	case err == nil:
		return ""
	case errors.As(err, &transportErr):
		if transportErr.StatusCode != 0 {
			return fmt.Sprintf("%s: %s returned %d", MessageRequestError, transportErr.URL, transportErr.StatusCode)
		}
		return fmt.Sprintf("%s: %s", MessageRequestError, transportErr.URL)
	case errors.As(err, &formatErr):
		return MessageFormatError
	case errors.As(err, &notFoundErr):
		return fmt.Sprintf("Unknown service %q", notFoundErr.Name)
	case errors.Is(err, ErrServiceNotFound):
		return "Unknown service"
	default:
		return MessageInternalError
	}
}
