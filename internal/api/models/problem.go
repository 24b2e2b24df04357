package models

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC 7807 error body, served as application/problem+json.
type Problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`

	// Detail explains this occurrence. Upstream failures carry the
	// user-facing status message here unchanged.
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// FieldError points at one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

const problemBase = "https://servicestatus.dev/problems/"

// Problem type URIs.
const (
	ProblemTypeValidation       = problemBase + "validation-error"
	ProblemTypeUnauthorized     = problemBase + "unauthorized"
	ProblemTypeForbidden        = problemBase + "forbidden"
	ProblemTypeNotFound         = problemBase + "not-found"
	ProblemTypeUnsupportedMedia = problemBase + "unsupported-media-type"
	ProblemTypeTooManyRequests  = problemBase + "too-many-requests"
	ProblemTypeInternal         = problemBase + "internal-error"
	ProblemTypeUpstream         = problemBase + "upstream-error"
	ProblemTypeUnavailable      = problemBase + "service-unavailable"
	ProblemTypeTLSRequired      = problemBase + "tls-required"
)

// Kind is a class of problem: its type URI, title and HTTP status.
type Kind struct {
	Type   string
	Title  string
	Status int
}

var (
	KindValidation       = Kind{ProblemTypeValidation, "Validation error", http.StatusBadRequest}
	KindUnauthorized     = Kind{ProblemTypeUnauthorized, "Unauthorized", http.StatusUnauthorized}
	KindForbidden        = Kind{ProblemTypeForbidden, "Forbidden", http.StatusForbidden}
	KindTLSRequired      = Kind{ProblemTypeTLSRequired, "TLS required", http.StatusForbidden}
	KindNotFound         = Kind{ProblemTypeNotFound, "Not found", http.StatusNotFound}
	KindUnsupportedMedia = Kind{ProblemTypeUnsupportedMedia, "Unsupported media type", http.StatusUnsupportedMediaType}
	KindTooManyRequests  = Kind{ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests}
	KindInternal         = Kind{ProblemTypeInternal, "Internal server error", http.StatusInternalServerError}

	// KindUpstream covers a status page that could not be fetched or
	// whose document could not be read.
	KindUpstream    = Kind{ProblemTypeUpstream, "Upstream status page error", http.StatusBadGateway}
	KindUnavailable = Kind{ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable}
)

// New returns a Problem of this kind.
func (k Kind) New(traceID, detail string) *Problem {
	return &Problem{
		Type:    k.Type,
		Title:   k.Title,
		Status:  k.Status,
		Detail:  detail,
		TraceID: traceID,
	}
}

// WithInstance sets the request path the problem occurred on.
func (p *Problem) WithInstance(instance string) *Problem {
	p.Instance = instance
	return p
}

// WithErrors attaches field errors.
func (p *Problem) WithErrors(errs []FieldError) *Problem {
	p.Errors = errs
	return p
}

// Write sends p with its status code. The trace ID is echoed as
// X-Request-Id when set.
func (p *Problem) Write(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "application/problem+json")
	if p.TraceID != "" {
		h.Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
