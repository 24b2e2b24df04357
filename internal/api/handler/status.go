package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/servicestatus/servicestatus/internal/api/models"
	"github.com/servicestatus/servicestatus/internal/api/response"
	"github.com/servicestatus/servicestatus/internal/statuspage"
	"github.com/servicestatus/servicestatus/internal/table"
)

// StatusChecker resolves service names and returns their current status.
type StatusChecker interface {
	Registry() *statuspage.Registry
	Status(ctx context.Context, name string) (*statuspage.Snapshot, error)
}

// StatusHandler handles the service directory and status queries.
type StatusHandler struct {
	checker        StatusChecker
	defaultService string
	logger         zerolog.Logger
}

// NewStatusHandler creates a new StatusHandler. An empty defaultService
// falls back to statuspage.DefaultServiceName.
func NewStatusHandler(checker StatusChecker, defaultService string, logger zerolog.Logger) *StatusHandler {
	if defaultService == "" {
		defaultService = statuspage.DefaultServiceName
	}
	return &StatusHandler{
		checker:        checker,
		defaultService: defaultService,
		logger:         logger,
	}
}

// ListServices handles GET /v1/services - the service directory table.
func (h *StatusHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	services := h.checker.Registry().All()
	response.JSON(w, r, http.StatusOK, models.ServiceDirectory{
		Count: len(services),
		Table: table.RenderServiceDirectory(services),
	})
}

// GetServiceStatus handles GET /v1/services/{name}/status.
func (h *StatusHandler) GetServiceStatus(w http.ResponseWriter, r *http.Request) {
	name, err := pathName(r)
	if err != nil || name == "" {
		response.Invalid(w, r, "service name is required", []models.FieldError{
			{Field: "name", Message: "must be a service name", Code: "INVALID"},
		})
		return
	}
	h.writeStatus(w, r, name)
}

// GetStatus handles GET /v1/status?service=X. Without a service it
// reports the default service.
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("service")
	if name == "" {
		name = h.defaultService
	}
	h.writeStatus(w, r, name)
}

func (h *StatusHandler) writeStatus(w http.ResponseWriter, r *http.Request, name string) {
	snapshot, err := h.checker.Status(r.Context(), name)
	if err != nil {
		writeStatusError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.ServiceStatus{
		Service: name,
		Page:    snapshot.Page,
		Table:   table.RenderStatusTable(snapshot),
	})
}

// pathName returns the {name} parameter decoded exactly once. chi matches
// against RawPath when the request has one, which leaves the parameter
// escaped; otherwise it is already decoded.
func pathName(r *http.Request) (string, error) {
	name := chi.URLParam(r, "name")
	if r.URL.RawPath == "" {
		return name, nil
	}
	return url.PathUnescape(name)
}

// writeStatusError maps a status query failure to a Problem carrying the
// user-facing message. Format error details never reach the caller.
func writeStatusError(w http.ResponseWriter, r *http.Request, err error) {
	msg := statuspage.UserMessage(err)

	var transportErr *statuspage.TransportError
	var formatErr *statuspage.FormatError
	switch {
	case errors.Is(err, statuspage.ErrServiceNotFound):
		response.Problem(w, r, models.KindNotFound, msg)
	case errors.As(err, &transportErr), errors.As(err, &formatErr):
		response.Problem(w, r, models.KindUpstream, msg)
	default:
		response.Problem(w, r, models.KindInternal, msg)
	}
}
